package daemon

import (
	"fmt"
	"log/slog"
	"net/rpc"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LivenessThresholds controls how heartbeat age maps to a LivenessState.
type LivenessThresholds struct {
	Unresponsive time.Duration
	Stopped      time.Duration
}

// DefaultLivenessThresholds matches the daemon's documented defaults:
// under 3s since the last heartbeat is Running, under 10s is
// Unresponsive, anything older (or a dead PID) is Stopped.
func DefaultLivenessThresholds() LivenessThresholds {
	return LivenessThresholds{Unresponsive: 3 * time.Second, Stopped: 10 * time.Second}
}

// subscriber is one callback connection: the daemon is the RPC client
// on this connection, calling into the subscriber's own RPC server.
type subscriber struct {
	id     string
	client *rpc.Client
}

// Registry is the daemon's in-memory session table plus its subscriber
// list. One Registry backs every connection accepted by a Server.
type Registry struct {
	mu            sync.Mutex
	sessions      map[string]SessionRecord
	thresholds    LivenessThresholds
	subscribers   map[string]*subscriber
	nextSubID     int
	logger        *slog.Logger
	now           func() time.Time
	pidAlive      func(int) bool
	sessionsGauge prometheus.Gauge
}

// NewRegistry creates an empty registry with the given liveness
// thresholds.
func NewRegistry(thresholds LivenessThresholds, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions:    make(map[string]SessionRecord),
		thresholds:  thresholds,
		subscribers: make(map[string]*subscriber),
		logger:      logger,
		now:         time.Now,
		pidAlive:    isProcessAlive,
	}
}

// SetSessionsGauge wires a gauge that tracks the number of registered
// sessions, updated on every Register/Update.
func (reg *Registry) SetSessionsGauge(gauge prometheus.Gauge) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.sessionsGauge = gauge
	if gauge != nil {
		gauge.Set(float64(len(reg.sessions)))
	}
}

func (reg *Registry) refreshSessionsGaugeLocked() {
	if reg.sessionsGauge != nil {
		reg.sessionsGauge.Set(float64(len(reg.sessions)))
	}
}

// Register adds or atomically replaces a session record. Re-registering
// under a session id whose existing record the registry currently
// reports as Stopped replaces it outright; otherwise it's an update.
func (reg *Registry) Register(record SessionRecord) {
	reg.mu.Lock()
	reg.sessions[record.WorkflowSessionId] = record
	reg.refreshSessionsGaugeLocked()
	reg.mu.Unlock()
	reg.notify(record)
}

// Update overwrites the stored record for an already-registered
// session, preserving nothing from the prior record.
func (reg *Registry) Update(record SessionRecord) {
	reg.mu.Lock()
	reg.sessions[record.WorkflowSessionId] = record
	reg.refreshSessionsGaugeLocked()
	reg.mu.Unlock()
	reg.notify(record)
}

// Heartbeat refreshes a session's last-heartbeat timestamp.
func (reg *Registry) Heartbeat(sessionID string) error {
	reg.mu.Lock()
	record, ok := reg.sessions[sessionID]
	if !ok {
		reg.mu.Unlock()
		return ErrUnknownSession
	}
	record.UpdateHeartbeat(reg.now())
	reg.sessions[sessionID] = record
	reg.mu.Unlock()
	return nil
}

// ForceStop marks a session Stopped regardless of heartbeat age or PID
// liveness; used to recover a workflow the user explicitly killed.
func (reg *Registry) ForceStop(sessionID string) error {
	reg.mu.Lock()
	record, ok := reg.sessions[sessionID]
	if !ok {
		reg.mu.Unlock()
		return ErrUnknownSession
	}
	record.Liveness = LivenessStopped
	reg.sessions[sessionID] = record
	reg.mu.Unlock()
	reg.notify(record)
	return nil
}

// List returns every registered session with liveness freshly computed
// from the current time and PID state.
func (reg *Registry) List() []SessionRecord {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	records := make([]SessionRecord, 0, len(reg.sessions))
	for _, record := range reg.sessions {
		record.Liveness = reg.computeLiveness(record)
		records = append(records, record)
	}
	return records
}

func (reg *Registry) computeLiveness(record SessionRecord) LivenessState {
	if record.Liveness == LivenessStopped {
		return LivenessStopped
	}
	if !reg.pidAlive(record.Pid) {
		return LivenessStopped
	}

	age := reg.now().Sub(record.LastHeartbeatAt)
	switch {
	case age < reg.thresholds.Unresponsive:
		return LivenessRunning
	case age < reg.thresholds.Stopped:
		return LivenessUnresponsive
	default:
		return LivenessStopped
	}
}

// Subscribe registers a callback connection and returns an id for
// later Unsubscribe.
func (reg *Registry) Subscribe(client *rpc.Client) string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.nextSubID++
	id := fmt.Sprintf("sub-%d", reg.nextSubID)
	reg.subscribers[id] = &subscriber{id: id, client: client}
	return id
}

// Unsubscribe drops a subscriber, closing its callback connection.
func (reg *Registry) Unsubscribe(id string) {
	reg.mu.Lock()
	sub, ok := reg.subscribers[id]
	delete(reg.subscribers, id)
	reg.mu.Unlock()
	if ok {
		_ = sub.client.Close()
	}
}

// notify pushes a session_changed callback to every subscriber,
// dropping any whose connection has failed.
func (reg *Registry) notify(record SessionRecord) {
	reg.mu.Lock()
	subs := make([]*subscriber, 0, len(reg.subscribers))
	for _, sub := range reg.subscribers {
		subs = append(subs, sub)
	}
	reg.mu.Unlock()

	for _, sub := range subs {
		call := sub.client.Go("SubscriberCallbacks.SessionChanged", record, &struct{}{}, nil)
		go func(sub *subscriber, call *rpc.Call) {
			<-call.Done
			if call.Error != nil {
				reg.logger.Warn("subscriber callback failed, dropping", "subscriber", sub.id, "error", call.Error)
				reg.Unsubscribe(sub.id)
			}
		}(sub, call)
	}
}

// BroadcastRestart notifies every subscriber that the daemon is about
// to restart at a new build, identified by its commit sha.
func (reg *Registry) BroadcastRestart(newSha string) {
	reg.mu.Lock()
	subs := make([]*subscriber, 0, len(reg.subscribers))
	for _, sub := range reg.subscribers {
		subs = append(subs, sub)
	}
	reg.mu.Unlock()

	for _, sub := range subs {
		_ = sub.client.Call("SubscriberCallbacks.DaemonRestarting", newSha, &struct{}{})
	}
}

// isProcessAlive reports whether pid names a running process, using a
// signal-0 probe: ESRCH means gone, EPERM means alive but owned by
// another user.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
