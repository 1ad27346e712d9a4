package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartNewCycleOrdersByPastInvocationCount(t *testing.T) {
	s := NewSequentialReviewState()
	counts := map[AgentId]int{"alice": 2, "bob": 0, "carol": 1}

	_, hadRejector := s.StartNewCycle([]AgentId{"alice", "bob", "carol"}, counts)

	assert.False(t, hadRejector)
	assert.Equal(t, []AgentId{"bob", "carol", "alice"}, s.CycleOrder())
	assert.Equal(t, 0, s.CurrentReviewerIndex())
}

func TestStartNewCycleBreaksTiesWithLastRejector(t *testing.T) {
	s := NewSequentialReviewState()
	s.RecordRejection("carol")
	counts := map[AgentId]int{"alice": 0, "bob": 0, "carol": 0}

	rejector, hadRejector := s.StartNewCycle([]AgentId{"alice", "bob", "carol"}, counts)

	require.True(t, hadRejector)
	assert.Equal(t, AgentId("carol"), rejector)
	assert.Equal(t, []AgentId{"carol", "alice", "bob"}, s.CycleOrder())
}

func TestStartNewCyclePreservesConfigOrderOnFullTie(t *testing.T) {
	s := NewSequentialReviewState()
	counts := map[AgentId]int{"alice": 0, "bob": 0, "carol": 0}

	s.StartNewCycle([]AgentId{"carol", "alice", "bob"}, counts)

	assert.Equal(t, []AgentId{"carol", "alice", "bob"}, s.CycleOrder())
}

func TestIncrementVersionClearsApprovals(t *testing.T) {
	s := NewSequentialReviewState()
	s.RecordApprovalSimple("alice")
	require.True(t, s.AllApproved([]AgentId{"alice"}))

	s.IncrementVersion()

	assert.False(t, s.AllApproved([]AgentId{"alice"}))
	assert.Equal(t, uint32(2), s.PlanVersion())
}

func TestAdvanceToNextReviewerWalksCycleOrder(t *testing.T) {
	s := NewSequentialReviewState()
	s.StartNewCycle([]AgentId{"alice", "bob"}, map[AgentId]int{})

	first, ok := s.CurrentReviewer()
	require.True(t, ok)
	assert.Equal(t, AgentId("alice"), first)

	s.AdvanceToNextReviewer()
	second, ok := s.CurrentReviewer()
	require.True(t, ok)
	assert.Equal(t, AgentId("bob"), second)

	s.AdvanceToNextReviewer()
	_, ok = s.CurrentReviewer()
	assert.False(t, ok, "cycle order exhausted")
}

func TestCountReviewingInvocationsStripsNamespace(t *testing.T) {
	invocations := []InvocationRecord{
		{Agent: "reviewing/practices", Phase: PhaseLabelReviewing},
		{Agent: "practices", Phase: PhaseLabelReviewing},
		{Agent: "claude", Phase: PhaseLabelPlanning},
	}

	counts := CountReviewingInvocations(invocations)

	assert.Equal(t, 2, counts["practices"])
	assert.Equal(t, 0, counts["claude"])
}

func TestAggregateVerdict(t *testing.T) {
	assert.True(t, AggregateVerdict(AggregationAnyRejects, 2, 0))
	assert.False(t, AggregateVerdict(AggregationAnyRejects, 1, 1))

	assert.True(t, AggregateVerdict(AggregationAllReject, 1, 1))
	assert.False(t, AggregateVerdict(AggregationAllReject, 0, 2))

	assert.True(t, AggregateVerdict(AggregationMajority, 2, 1))
	assert.False(t, AggregateVerdict(AggregationMajority, 1, 1))
}

func TestCloneIsDeepAndIndependent(t *testing.T) {
	s := NewSequentialReviewState()
	s.StartNewCycle([]AgentId{"alice"}, map[AgentId]int{})
	s.RecordApprovalSimple("alice")

	clone := s.Clone()
	clone.RecordApprovalSimple("bob")

	assert.NotContains(t, s.Approvals(), AgentId("bob"))
	assert.Contains(t, clone.Approvals(), AgentId("bob"))
}
