package eventstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metjm/planning-agent/domain"
)

func newTestStore(t *testing.T) *FileEventStore {
	t.Helper()
	dir := t.TempDir()
	return NewFileEventStore(filepath.Join(dir, "events.jsonl"), filepath.Join(dir, "snapshot.json"), 0)
}

func TestLoadEventsOnEmptyLogReturnsNil(t *testing.T) {
	store := newTestStore(t)
	events, err := store.LoadEvents("wf-1")
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestCommitThenLoadRoundTrips(t *testing.T) {
	store := newTestStore(t)
	aggregate := domain.NewWorkflowAggregate()

	created := domain.NewWorkflowCreated(domain.WorkflowCreatedPayload{FeatureName: "widgets", MaxIterations: 3})
	stored, err := store.Commit("wf-1", []domain.WorkflowEvent{created}, aggregate, 0, nil)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, uint64(1), stored[0].Sequence)

	loaded, err := store.LoadAggregate("wf-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), loaded.CurrentSequence)
	assert.True(t, loaded.Aggregate.Initialized)
	assert.Equal(t, domain.FeatureName("widgets"), loaded.Aggregate.FeatureName)
}

func TestCommitDetectsConcurrencyConflict(t *testing.T) {
	store := newTestStore(t)
	aggregate := domain.NewWorkflowAggregate()
	created := domain.NewWorkflowCreated(domain.WorkflowCreatedPayload{FeatureName: "widgets"})

	_, err := store.Commit("wf-1", []domain.WorkflowEvent{created}, aggregate, 0, nil)
	require.NoError(t, err)

	// Simulate a stale caller trying to commit against sequence 0 again.
	_, err = store.Commit("wf-1", []domain.WorkflowEvent{created}, aggregate, 0, nil)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}

func TestCommitSeparatesAggregatesById(t *testing.T) {
	store := newTestStore(t)
	agg1 := domain.NewWorkflowAggregate()
	agg2 := domain.NewWorkflowAggregate()

	_, err := store.Commit("wf-1", []domain.WorkflowEvent{domain.NewWorkflowCreated(domain.WorkflowCreatedPayload{FeatureName: "one"})}, agg1, 0, nil)
	require.NoError(t, err)
	_, err = store.Commit("wf-2", []domain.WorkflowEvent{domain.NewWorkflowCreated(domain.WorkflowCreatedPayload{FeatureName: "two"})}, agg2, 0, nil)
	require.NoError(t, err)

	loaded1, err := store.LoadAggregate("wf-1")
	require.NoError(t, err)
	loaded2, err := store.LoadAggregate("wf-2")
	require.NoError(t, err)

	assert.Equal(t, domain.FeatureName("one"), loaded1.Aggregate.FeatureName)
	assert.Equal(t, domain.FeatureName("two"), loaded2.Aggregate.FeatureName)
}

func TestSnapshotIsTakenAtThreshold(t *testing.T) {
	dir := t.TempDir()
	store := NewFileEventStore(filepath.Join(dir, "events.jsonl"), filepath.Join(dir, "snapshot.json"), 1)
	aggregate := domain.NewWorkflowAggregate()

	_, err := store.Commit("wf-1", []domain.WorkflowEvent{
		domain.NewWorkflowCreated(domain.WorkflowCreatedPayload{FeatureName: "widgets"}),
	}, aggregate, 0, nil)
	require.NoError(t, err)

	snapshot, err := store.loadSnapshot()
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "wf-1", snapshot.AggregateId)
	assert.Equal(t, uint64(1), snapshot.Sequence)
}

func TestLoadAggregateUsesSnapshotThenTrailingEvents(t *testing.T) {
	dir := t.TempDir()
	store := NewFileEventStore(filepath.Join(dir, "events.jsonl"), filepath.Join(dir, "snapshot.json"), 1)
	aggregate := domain.NewWorkflowAggregate()

	_, err := store.Commit("wf-1", []domain.WorkflowEvent{
		domain.NewWorkflowCreated(domain.WorkflowCreatedPayload{FeatureName: "widgets", MaxIterations: 3, PlanPath: "plan.md"}),
	}, aggregate, 0, nil)
	require.NoError(t, err)

	loaded, err := store.LoadAggregate("wf-1")
	require.NoError(t, err)

	_, err = store.Commit("wf-1", []domain.WorkflowEvent{
		domain.NewPlanningStarted(domain.PlanningStartedPayload{}),
	}, loaded.Aggregate, loaded.CurrentSequence, nil)
	require.NoError(t, err)

	reloaded, err := store.LoadAggregate("wf-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), reloaded.CurrentSequence)
	assert.Equal(t, domain.PlanningPhasePlanning, reloaded.Aggregate.PlanningPhase)
}
