package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCreatedAggregate(t *testing.T) *WorkflowAggregate {
	t.Helper()
	a := NewWorkflowAggregate()
	events, err := a.Handle(Command{Type: CommandCreateWorkflow, CreateWorkflow: &CreateWorkflowCmd{
		FeatureName:   "widgets",
		Objective:     "add widget export",
		WorkingDir:    "/repo",
		MaxIterations: 3,
		PlanPath:      "plan.md",
		FeedbackPath:  "feedback.md",
	}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	for _, e := range events {
		a.Apply(e)
	}
	return a
}

func TestCreateWorkflowRejectsDoubleInit(t *testing.T) {
	a := newCreatedAggregate(t)
	_, err := a.Handle(Command{Type: CommandCreateWorkflow, CreateWorkflow: &CreateWorkflowCmd{}})
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestPlanningToReviewingHappyPath(t *testing.T) {
	a := newCreatedAggregate(t)
	assert.Equal(t, PlanningPhasePlanning, a.PlanningPhase)

	events, err := a.Handle(Command{Type: CommandCompletePlanning, CompletePlanning: &CompletePlanningCmd{PlanPath: "plan.md"}})
	require.NoError(t, err)
	for _, e := range events {
		a.Apply(e)
	}
	assert.Equal(t, PlanningPhaseReviewing, a.PlanningPhase)

	events, err = a.Handle(Command{Type: CommandStartReviewCycle, StartReviewCycle: &StartReviewCycleCmd{
		Mode:      ReviewModeParallel,
		Reviewers: []AgentId{"practices", "security"},
	}})
	require.NoError(t, err)
	for _, e := range events {
		a.Apply(e)
	}
	assert.Equal(t, PlanningPhaseReviewing, a.PlanningPhase)
	assert.Equal(t, ReviewModeParallel, a.ReviewMode.Kind)
}

func TestReviewCycleApprovedCompletesPlanning(t *testing.T) {
	a := newCreatedAggregate(t)
	apply := func(events []WorkflowEvent, err error) {
		require.NoError(t, err)
		for _, e := range events {
			a.Apply(e)
		}
	}
	apply(a.Handle(Command{Type: CommandCompletePlanning, CompletePlanning: &CompletePlanningCmd{PlanPath: "plan.md"}}))
	apply(a.Handle(Command{Type: CommandStartReviewCycle, StartReviewCycle: &StartReviewCycleCmd{Mode: ReviewModeParallel, Reviewers: []AgentId{"practices"}}}))
	apply(a.Handle(Command{Type: CommandCompleteReviewCycle, CompleteReviewCycle: &CompleteReviewCycleCmd{Approved: true}}))

	assert.Equal(t, PlanningPhaseComplete, a.PlanningPhase)
}

func TestReviewCycleRejectedGoesToRevising(t *testing.T) {
	a := newCreatedAggregate(t)
	apply := func(events []WorkflowEvent, err error) {
		require.NoError(t, err)
		for _, e := range events {
			a.Apply(e)
		}
	}
	apply(a.Handle(Command{Type: CommandCompletePlanning, CompletePlanning: &CompletePlanningCmd{PlanPath: "plan.md"}}))
	apply(a.Handle(Command{Type: CommandStartReviewCycle, StartReviewCycle: &StartReviewCycleCmd{Mode: ReviewModeParallel, Reviewers: []AgentId{"practices"}}}))
	apply(a.Handle(Command{Type: CommandCompleteReviewCycle, CompleteReviewCycle: &CompleteReviewCycleCmd{Approved: false}}))

	assert.Equal(t, PlanningPhaseRevising, a.PlanningPhase)
	assert.Equal(t, Iteration(1), a.Iteration)
}

func TestRevisionBumpsIterationAndPlanVersion(t *testing.T) {
	a := newCreatedAggregate(t)
	apply := func(events []WorkflowEvent, err error) {
		require.NoError(t, err)
		for _, e := range events {
			a.Apply(e)
		}
	}
	apply(a.Handle(Command{Type: CommandCompletePlanning, CompletePlanning: &CompletePlanningCmd{PlanPath: "plan.md"}}))
	apply(a.Handle(Command{Type: CommandStartReviewCycle, StartReviewCycle: &StartReviewCycleCmd{
		Mode: ReviewModeSequential, Reviewers: []AgentId{"practices", "security"},
	}}))
	require.Equal(t, uint32(1), a.ReviewMode.Sequential.PlanVersion())

	apply(a.Handle(Command{Type: CommandStartRevising, StartRevising: &StartRevisingCmd{FeedbackSummary: "needs work"}}))
	apply(a.Handle(Command{Type: CommandCompleteRevision, CompleteRevision: &CompleteRevisionCmd{PlanPath: "plan_v2.md"}}))

	assert.Equal(t, Iteration(2), a.Iteration)
	assert.Equal(t, PlanPath("plan_v2.md"), a.PlanPath)
	assert.Equal(t, PlanningPhaseReviewing, a.PlanningPhase)
	assert.Equal(t, uint32(2), a.ReviewMode.Sequential.PlanVersion())
	assert.True(t, a.ReviewMode.Sequential.NeedsCycleStart())
}

func TestReviewCycleRejectionAtMaxIterationsEmitsMaxIterationsReached(t *testing.T) {
	a := NewWorkflowAggregate()
	apply := func(events []WorkflowEvent, err error) {
		require.NoError(t, err)
		for _, e := range events {
			a.Apply(e)
		}
	}
	apply(a.Handle(Command{Type: CommandCreateWorkflow, CreateWorkflow: &CreateWorkflowCmd{
		FeatureName: "widgets", MaxIterations: 1, PlanPath: "plan.md", FeedbackPath: "feedback.md",
	}}))
	apply(a.Handle(Command{Type: CommandCompletePlanning, CompletePlanning: &CompletePlanningCmd{PlanPath: "plan.md"}}))
	apply(a.Handle(Command{Type: CommandStartReviewCycle, StartReviewCycle: &StartReviewCycleCmd{Mode: ReviewModeParallel, Reviewers: []AgentId{"practices"}}}))

	events, err := a.Handle(Command{Type: CommandCompleteReviewCycle, CompleteReviewCycle: &CompleteReviewCycleCmd{Approved: false}})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventTypeReviewCycleCompleted, events[0].Type)
	assert.Equal(t, EventTypePlanningMaxIterationsReached, events[1].Type)

	for _, e := range events {
		a.Apply(e)
	}
	assert.Equal(t, PlanningPhaseAwaitingDecision, a.PlanningPhase)
}

func TestCommandsRejectedOutsideTheirPhase(t *testing.T) {
	a := newCreatedAggregate(t)

	_, err := a.Handle(Command{Type: CommandApprove})
	assert.ErrorIs(t, err, ErrInvalidPhase)

	_, err = a.Handle(Command{Type: CommandRecordReviewerApproval, RecordReviewerApproval: &RecordReviewerApprovalCmd{ReviewerId: "practices"}})
	assert.ErrorIs(t, err, ErrInvalidPhase)

	_, err = a.Handle(Command{Type: CommandStartImplementation})
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestImplementationLifecycle(t *testing.T) {
	a := newCreatedAggregate(t)
	apply := func(events []WorkflowEvent, err error) {
		require.NoError(t, err)
		for _, e := range events {
			a.Apply(e)
		}
	}
	apply(a.Handle(Command{Type: CommandCompletePlanning, CompletePlanning: &CompletePlanningCmd{PlanPath: "plan.md"}}))
	apply(a.Handle(Command{Type: CommandStartReviewCycle, StartReviewCycle: &StartReviewCycleCmd{Mode: ReviewModeParallel, Reviewers: []AgentId{"practices"}}}))
	apply(a.Handle(Command{Type: CommandCompleteReviewCycle, CompleteReviewCycle: &CompleteReviewCycleCmd{Approved: true}}))
	apply(a.Handle(Command{Type: CommandRequestImplementation}))
	apply(a.Handle(Command{Type: CommandStartImplementation}))

	require.NotNil(t, a.ImplementationState)
	assert.Equal(t, ImplementationSubPhaseImplementing, a.ImplementationState.SubPhase)
	assert.Equal(t, Iteration(1), a.ImplementationState.Iteration)

	apply(a.Handle(Command{Type: CommandStartImplementationRound}))
	apply(a.Handle(Command{Type: CommandCompleteImplementationRound, CompleteImplementationRound: &CompleteImplementationRoundCmd{Fingerprint: 0xABCD}}))
	assert.Equal(t, ImplementationSubPhaseImplementationReview, a.ImplementationState.SubPhase)
	require.NotNil(t, a.ImplementationState.LastFingerprint)
	assert.Equal(t, uint64(0xABCD), *a.ImplementationState.LastFingerprint)

	apply(a.Handle(Command{Type: CommandCompleteImplementationReview, CompleteImplementationReview: &CompleteImplementationReviewCmd{
		Verdict: ImplementationVerdictNeedsRevision,
	}}))
	assert.Equal(t, Iteration(2), a.ImplementationState.Iteration)
	assert.Equal(t, ImplementationSubPhaseImplementing, a.ImplementationState.SubPhase)

	apply(a.Handle(Command{Type: CommandStartImplementationRound}))
	apply(a.Handle(Command{Type: CommandCompleteImplementationRound, CompleteImplementationRound: &CompleteImplementationRoundCmd{Fingerprint: 1}}))
	apply(a.Handle(Command{Type: CommandCompleteImplementationReview, CompleteImplementationReview: &CompleteImplementationReviewCmd{
		Verdict: ImplementationVerdictApproved,
	}}))
	apply(a.Handle(Command{Type: CommandAcceptImplementation}))

	assert.Equal(t, ImplementationSubPhaseComplete, a.ImplementationState.SubPhase)
}

func TestRecordFailureAppendsHistoryAndSetsLastFailure(t *testing.T) {
	a := newCreatedAggregate(t)
	ctx := NewFailureContext(NewTimeoutFailure(), PhaseLabelPlanning, "claude", 2)

	events, err := a.Handle(Command{Type: CommandRecordFailure, RecordFailure: &RecordFailureCmd{Failure: ctx}})
	require.NoError(t, err)
	for _, e := range events {
		a.Apply(e)
	}

	require.NotNil(t, a.LastFailure)
	assert.Equal(t, FailureKindTimeout, a.LastFailure.Kind.Tag)
	assert.Len(t, a.FailureHistory, 1)
}

func TestViewMirrorsAggregateAndIsDecoupled(t *testing.T) {
	a := newCreatedAggregate(t)
	view := NewView(NewWorkflowId(), a)

	a.PlanningPhase = PlanningPhaseComplete
	assert.Equal(t, PlanningPhasePlanning, view.PlanningPhase, "view must not observe later aggregate mutation")
}
