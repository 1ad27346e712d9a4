package domain

// WorkflowView is the read-only projection subscribers (the CLI, the MCP
// server, `sessiond status`) observe. It carries no independent state of
// its own: every field is copied out of a WorkflowAggregate after a
// command has been folded, so a view can never diverge from what the
// event log actually says happened.
type WorkflowView struct {
	WorkflowId WorkflowId

	Initialized bool

	FeatureName  FeatureName
	Objective    Objective
	WorkingDir   WorkingDir
	PlanPath     PlanPath
	FeedbackPath FeedbackPath

	PlanningPhase PlanningPhase
	Iteration     Iteration
	MaxIterations MaxIterations
	ReviewMode    ReviewMode

	ImplementationState *ImplementationPhaseState

	AgentConversations map[AgentId]AgentConversationState
	Invocations        []InvocationRecord

	LastFailure    *FailureContext
	FailureHistory []FailureContext

	WorktreeInfo       *WorktreeState
	ApprovalOverridden bool
	LastEventSequence  uint64
}

// NewView builds a view snapshot from an aggregate's current state. Maps
// and slices are copied so a subscriber holding a view is insulated from
// later mutation of the aggregate it was taken from.
func NewView(id WorkflowId, a *WorkflowAggregate) WorkflowView {
	v := WorkflowView{
		WorkflowId:         id,
		Initialized:        a.Initialized,
		FeatureName:        a.FeatureName,
		Objective:          a.Objective,
		WorkingDir:         a.WorkingDir,
		PlanPath:           a.PlanPath,
		FeedbackPath:       a.FeedbackPath,
		PlanningPhase:      a.PlanningPhase,
		Iteration:          a.Iteration,
		MaxIterations:      a.MaxIterations,
		ReviewMode:         a.ReviewMode,
		WorktreeInfo:       a.WorktreeInfo,
		ApprovalOverridden: a.ApprovalOverridden,
		LastEventSequence:  a.LastEventSequence,
	}
	if a.ReviewMode.Sequential != nil {
		v.ReviewMode.Sequential = a.ReviewMode.Sequential.Clone()
	}
	v.ImplementationState = a.ImplementationState.Clone()

	v.AgentConversations = make(map[AgentId]AgentConversationState, len(a.AgentConversations))
	for k, val := range a.AgentConversations {
		v.AgentConversations[k] = val
	}
	v.Invocations = append([]InvocationRecord(nil), a.Invocations...)

	if a.LastFailure != nil {
		f := *a.LastFailure
		v.LastFailure = &f
	}
	v.FailureHistory = append([]FailureContext(nil), a.FailureHistory...)

	return v
}

// PhaseLabelForUI collapses the planning/implementation sub-state into the
// single phase label UI surfaces show ("planning", "reviewing", ...,
// "implementing", "implementation_review").
func (v WorkflowView) PhaseLabelForUI() PhaseLabel {
	if v.ImplementationState != nil {
		switch v.ImplementationState.SubPhase {
		case ImplementationSubPhaseImplementationReview:
			return PhaseLabelImplementationReview
		default:
			return PhaseLabelImplementing
		}
	}
	switch v.PlanningPhase {
	case PlanningPhaseReviewing:
		return PhaseLabelReviewing
	case PlanningPhaseRevising:
		return PhaseLabelRevising
	default:
		return PhaseLabelPlanning
	}
}

// IsTerminal reports whether the workflow has reached a state with no
// further automatic progress: planning declined/aborted/approved with no
// implementation requested, or implementation accepted/declined/cancelled.
func (v WorkflowView) IsTerminal() bool {
	if v.ImplementationState != nil {
		return v.ImplementationState.SubPhase == ImplementationSubPhaseComplete
	}
	return v.PlanningPhase == PlanningPhaseComplete
}

// HasActiveFailure reports whether the last recorded failure has not yet
// been resolved by a recovery action.
func (v WorkflowView) HasActiveFailure() bool {
	return v.LastFailure != nil && v.LastFailure.RecoveryAction == nil
}

// ShouldContinuePlanningIterations reports whether the planning loop may
// still start another review cycle without hitting the iteration bound.
func (v WorkflowView) ShouldContinuePlanningIterations() bool {
	return v.Iteration <= v.MaxIterations
}

// ShouldContinueImplementationIterations mirrors
// ShouldContinuePlanningIterations for the implementation sub-state.
func (v WorkflowView) ShouldContinueImplementationIterations() bool {
	if v.ImplementationState == nil {
		return false
	}
	return v.ImplementationState.Iteration <= v.ImplementationState.MaxIterations
}

// CurrentReviewer returns the reviewer a sequential review cycle is
// currently waiting on, if the mode is sequential and a cycle has been
// started.
func (v WorkflowView) CurrentReviewer() (AgentId, bool) {
	if v.ReviewMode.Kind != ReviewModeSequential || v.ReviewMode.Sequential == nil {
		return "", false
	}
	return v.ReviewMode.Sequential.CurrentReviewer()
}

// ConversationFor returns the recorded conversation state for agent, if
// any invocation has recorded one.
func (v WorkflowView) ConversationFor(agent AgentId) (AgentConversationState, bool) {
	s, ok := v.AgentConversations[agent]
	return s, ok
}
