// Package eventstore implements the append-only JSONL event log and
// periodic JSON snapshots the workflow actor rehydrates aggregates from.
//
// Locking uses syscall.Flock directly: shared locks guard readers against
// a concurrent writer mid-append, an exclusive lock serializes writers,
// and a post-lock re-read of the log's last sequence number detects a
// writer that committed between this caller's load and its commit
// (optimistic concurrency, surfaced as domain.ErrConcurrencyConflict).
package eventstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/metjm/planning-agent/domain"
)

// StoredEvent is one JSONL line in the event log.
type StoredEvent struct {
	AggregateId  string             `json:"aggregate_id"`
	Sequence     uint64             `json:"sequence"`
	RecordedAt   domain.TimestampUtc `json:"recorded_at"`
	EventType    domain.EventType   `json:"event_type"`
	EventVersion string             `json:"event_version"`
	Event        domain.WorkflowEvent `json:"event"`
	Metadata     map[string]string  `json:"metadata,omitempty"`
}

// StoredSnapshot is the JSON document at SnapshotPath: a point-in-time
// capture of one aggregate's folded state.
type StoredSnapshot struct {
	AggregateId string                  `json:"aggregate_id"`
	Sequence    uint64                  `json:"sequence"`
	SnapshotAt  domain.TimestampUtc     `json:"snapshot_at"`
	State       *domain.WorkflowAggregate `json:"state"`
}

// FileEventStore is a single aggregate's event log plus its snapshot.
// Each workflow session gets its own log/snapshot pair; the caller (the
// workflow actor) is responsible for choosing distinct paths per session.
type FileEventStore struct {
	LogPath       string
	SnapshotPath  string
	SnapshotEvery uint64
}

// NewFileEventStore constructs a store over the given log and snapshot
// paths. snapshotEvery of 0 disables snapshotting.
func NewFileEventStore(logPath, snapshotPath string, snapshotEvery uint64) *FileEventStore {
	return &FileEventStore{LogPath: logPath, SnapshotPath: snapshotPath, SnapshotEvery: snapshotEvery}
}

// LoadedAggregate is the result of rehydrating an aggregate from snapshot
// plus trailing events, along with the sequence a subsequent Commit must
// be conditioned on.
type LoadedAggregate struct {
	AggregateId     string
	Aggregate       *domain.WorkflowAggregate
	CurrentSequence uint64
}

// LoadEvents returns every stored event for aggregateID, in log order. A
// missing log file is not an error: it means no events have been
// committed yet.
func (s *FileEventStore) LoadEvents(aggregateID string) ([]StoredEvent, error) {
	file, err := os.Open(s.LogPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStorageError("open event log", err)
	}
	defer file.Close()

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_SH); err != nil {
		return nil, domain.NewStorageError("lock event log for read", err)
	}
	defer syscall.Flock(int(file.Fd()), syscall.LOCK_UN)

	return readMatchingEvents(file, aggregateID)
}

func readMatchingEvents(file *os.File, aggregateID string) ([]StoredEvent, error) {
	var out []StoredEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var stored StoredEvent
		if err := json.Unmarshal(line, &stored); err != nil {
			return nil, domain.NewStorageError("decode stored event", err)
		}
		if stored.AggregateId != aggregateID {
			continue
		}
		if stored.EventType != stored.Event.EventType() || stored.EventVersion != stored.Event.EventVersion() {
			return nil, domain.NewStorageError("event type/version mismatch", fmt.Errorf("sequence %d", stored.Sequence))
		}
		out = append(out, stored)
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.NewStorageError("scan event log", err)
	}
	return out, nil
}

// LoadAggregate rehydrates the aggregate for aggregateID: snapshot (if any
// and if it belongs to this aggregate) followed by every event recorded
// after the snapshot's sequence.
func (s *FileEventStore) LoadAggregate(aggregateID string) (*LoadedAggregate, error) {
	aggregate := domain.NewWorkflowAggregate()
	var currentSequence uint64

	snapshot, err := s.loadSnapshot()
	if err != nil {
		return nil, err
	}
	if snapshot != nil && snapshot.AggregateId == aggregateID {
		aggregate = snapshot.State
		currentSequence = snapshot.Sequence
	}

	events, err := s.LoadEvents(aggregateID)
	if err != nil {
		return nil, err
	}
	for _, stored := range events {
		if stored.Sequence > currentSequence {
			currentSequence = stored.Sequence
			aggregate.Apply(stored.Event)
		}
	}

	return &LoadedAggregate{AggregateId: aggregateID, Aggregate: aggregate, CurrentSequence: currentSequence}, nil
}

// Commit appends events to the log under an exclusive lock, after
// verifying the log's last sequence for aggregateID still matches
// currentSequence (optimistic concurrency). On success it returns the
// stored records (sequence-numbered) and takes a snapshot if the
// configured threshold was crossed.
func (s *FileEventStore) Commit(
	aggregateID string,
	events []domain.WorkflowEvent,
	aggregate *domain.WorkflowAggregate,
	currentSequence uint64,
	metadata map[string]string,
) ([]StoredEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	if dir := filepath.Dir(s.LogPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, domain.NewStorageError("create event log directory", err)
		}
	}

	file, err := os.OpenFile(s.LogPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, domain.NewStorageError("open event log for append", err)
	}
	defer file.Close()

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX); err != nil {
		return nil, domain.NewStorageError("lock event log for write", err)
	}
	defer syscall.Flock(int(file.Fd()), syscall.LOCK_UN)

	lastSequence, err := readLastSequence(file, aggregateID)
	if err != nil {
		return nil, err
	}
	if lastSequence != currentSequence {
		return nil, domain.ErrConcurrencyConflict
	}

	sequence := currentSequence
	stored := make([]StoredEvent, 0, len(events))
	writer := bufio.NewWriter(file)
	for _, event := range events {
		sequence++
		record := StoredEvent{
			AggregateId:  aggregateID,
			Sequence:     sequence,
			RecordedAt:   domain.NowUtc(),
			EventType:    event.EventType(),
			EventVersion: event.EventVersion(),
			Event:        event,
			Metadata:     metadata,
		}
		line, err := json.Marshal(record)
		if err != nil {
			return nil, domain.NewStorageError("encode stored event", err)
		}
		if _, err := writer.Write(line); err != nil {
			return nil, domain.NewStorageError("write event log", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return nil, domain.NewStorageError("write event log", err)
		}
		stored = append(stored, record)
	}
	if err := writer.Flush(); err != nil {
		return nil, domain.NewStorageError("flush event log", err)
	}
	if err := file.Sync(); err != nil {
		return nil, domain.NewStorageError("sync event log", err)
	}

	for _, record := range stored {
		aggregate.Apply(record.Event)
	}

	if s.shouldSnapshot(sequence) {
		if err := s.saveSnapshot(&StoredSnapshot{
			AggregateId: aggregateID,
			Sequence:    sequence,
			SnapshotAt:  domain.NowUtc(),
			State:       aggregate,
		}); err != nil {
			return nil, err
		}
	}

	return stored, nil
}

func (s *FileEventStore) shouldSnapshot(sequence uint64) bool {
	if s.SnapshotEvery == 0 {
		return false
	}
	return sequence%s.SnapshotEvery == 0
}

func (s *FileEventStore) loadSnapshot() (*StoredSnapshot, error) {
	content, err := os.ReadFile(s.SnapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStorageError("read snapshot", err)
	}
	var snapshot StoredSnapshot
	if err := json.Unmarshal(content, &snapshot); err != nil {
		return nil, domain.NewStorageError("decode snapshot", err)
	}
	return &snapshot, nil
}

func (s *FileEventStore) saveSnapshot(snapshot *StoredSnapshot) error {
	if dir := filepath.Dir(s.SnapshotPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return domain.NewStorageError("create snapshot directory", err)
		}
	}
	content, err := json.Marshal(snapshot)
	if err != nil {
		return domain.NewStorageError("encode snapshot", err)
	}
	tmpPath := s.SnapshotPath + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return domain.NewStorageError("write snapshot temp file", err)
	}
	if err := os.Rename(tmpPath, s.SnapshotPath); err != nil {
		return domain.NewStorageError("rename snapshot into place", err)
	}
	return nil
}

func readLastSequence(file *os.File, aggregateID string) (uint64, error) {
	if _, err := file.Seek(0, 0); err != nil {
		return 0, domain.NewStorageError("seek event log", err)
	}
	events, err := readMatchingEvents(file, aggregateID)
	if err != nil {
		return 0, err
	}
	var last uint64
	for _, e := range events {
		last = e.Sequence
	}
	return last, nil
}
