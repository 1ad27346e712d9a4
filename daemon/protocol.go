// Package daemon implements the out-of-process session registry: a
// loopback RPC service that tracks one record per live workflow
// process, computes liveness from heartbeats and PID existence, and
// pushes change notifications to subscribers.
package daemon

import (
	"errors"
	"time"
)

// ProtocolVersion is the daemon RPC protocol version this build speaks.
// Hello rejects a mismatched client so an old CLI doesn't talk to a
// newer daemon's registry in a way it doesn't understand.
const ProtocolVersion = 1

// LivenessState is the daemon's own view of whether a registered
// session's owning process is still running, distinct from the
// workflow's phase.
type LivenessState string

const (
	LivenessRunning      LivenessState = "running"
	LivenessUnresponsive LivenessState = "unresponsive"
	LivenessStopped      LivenessState = "stopped"
)

// SessionRecord is one entry in the daemon's registry: workflow
// metadata plus daemon-computed liveness.
type SessionRecord struct {
	WorkflowSessionId string
	FeatureName       string
	WorkingDir        string
	StatePath         string
	Phase             string
	Iteration         uint32
	WorkflowStatus    string
	Liveness          LivenessState
	UpdatedAt         time.Time
	LastHeartbeatAt   time.Time
	Pid               int
}

// NewSessionRecord creates a record with Running liveness and both
// timestamps set to now.
func NewSessionRecord(sessionID, featureName, workingDir, statePath, phase string, iteration uint32, workflowStatus string, pid int, now time.Time) SessionRecord {
	return SessionRecord{
		WorkflowSessionId: sessionID,
		FeatureName:       featureName,
		WorkingDir:        workingDir,
		StatePath:         statePath,
		Phase:             phase,
		Iteration:         iteration,
		WorkflowStatus:    workflowStatus,
		Liveness:          LivenessRunning,
		UpdatedAt:         now,
		LastHeartbeatAt:   now,
		Pid:               pid,
	}
}

// UpdateHeartbeat refreshes the heartbeat timestamp and resets liveness
// to Running; the registry recomputes the true liveness on read.
func (r *SessionRecord) UpdateHeartbeat(now time.Time) {
	r.LastHeartbeatAt = now
	r.Liveness = LivenessRunning
}

// UpdateState applies a workflow-reported phase/iteration/status change.
func (r *SessionRecord) UpdateState(phase string, iteration uint32, workflowStatus string, now time.Time) {
	r.Phase = phase
	r.Iteration = iteration
	r.WorkflowStatus = workflowStatus
	r.UpdatedAt = now
	r.LastHeartbeatAt = now
	r.Liveness = LivenessRunning
}

// PortFileContent is the JSON document written to
// <home>/sessiond-port.json: where to dial the daemon and what token to
// authenticate with.
type PortFileContent struct {
	Port           int    `json:"port"`
	SubscriberPort int    `json:"subscriber_port"`
	Token          string `json:"token"`
}

var (
	// ErrUnauthenticated is returned by any RPC method called before
	// Authenticate succeeds on that connection.
	ErrUnauthenticated = errors.New("daemon: call Authenticate before any other method")
	// ErrBadToken is returned when Authenticate is called with a token
	// that doesn't match the daemon's.
	ErrBadToken = errors.New("daemon: invalid authentication token")
	// ErrProtocolMismatch is returned by Hello when the client's
	// protocol version doesn't match the daemon's.
	ErrProtocolMismatch = errors.New("daemon: protocol version mismatch")
	// ErrUnknownSession is returned by Heartbeat/ForceStop for a session
	// id the registry has no record of.
	ErrUnknownSession = errors.New("daemon: unknown session id")
)

// HelloArgs identifies the calling process to the daemon.
type HelloArgs struct {
	ContainerInfo   string
	ProtocolVersion int
}

// HelloReply carries the daemon's own version back to the caller.
type HelloReply struct {
	ServerVersion string
}

// ListReply is List's RPC reply; net/rpc requires a pointer-to-struct
// reply rather than a bare slice.
type ListReply struct {
	Records []SessionRecord
}
