package domain

// Constructors for each WorkflowEvent variant. Kept separate from the type
// definitions so the aggregate's command handlers read as a flat list of
// "emit this" calls.

func NewWorkflowCreated(p WorkflowCreatedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeWorkflowCreated, WorkflowCreated: &p}
}

func NewPlanningStarted(p PlanningStartedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypePlanningStarted, PlanningStarted: &p}
}

func NewPlanningCompleted(p PlanningCompletedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypePlanningCompleted, PlanningCompleted: &p}
}

func NewReviewCycleStarted(p ReviewCycleStartedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeReviewCycleStarted, ReviewCycleStarted: &p}
}

func NewReviewerApproved(p ReviewerApprovedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeReviewerApproved, ReviewerApproved: &p}
}

func NewReviewerRejected(p ReviewerRejectedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeReviewerRejected, ReviewerRejected: &p}
}

func NewReviewCycleCompleted(p ReviewCycleCompletedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeReviewCycleCompleted, ReviewCycleCompleted: &p}
}

func NewRevisingStarted(p RevisingStartedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeRevisingStarted, RevisingStarted: &p}
}

func NewRevisionCompleted(p RevisionCompletedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeRevisionCompleted, RevisionCompleted: &p}
}

func NewPlanningMaxIterationsReached(p PlanningMaxIterationsReachedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypePlanningMaxIterationsReached, PlanningMaxIterationsReached: &p}
}

func NewUserApproved(p UserApprovedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeUserApproved, UserApproved: &p}
}

func NewUserRequestedImplementation(p UserRequestedImplementationPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeUserRequestedImplementation, UserRequestedImplementation: &p}
}

func NewUserDeclined(p UserDeclinedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeUserDeclined, UserDeclined: &p}
}

func NewUserAborted(p UserAbortedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeUserAborted, UserAborted: &p}
}

func NewUserOverrideApproval(p UserOverrideApprovalPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeUserOverrideApproval, UserOverrideApproval: &p}
}

func NewImplementationStarted(p ImplementationStartedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeImplementationStarted, ImplementationStarted: &p}
}

func NewImplementationRoundStarted(p ImplementationRoundStartedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeImplementationRoundStarted, ImplementationRoundStarted: &p}
}

func NewImplementationRoundCompleted(p ImplementationRoundCompletedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeImplementationRoundCompleted, ImplementationRoundCompleted: &p}
}

func NewImplementationReviewCompleted(p ImplementationReviewCompletedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeImplementationReviewCompleted, ImplementationReviewCompleted: &p}
}

func NewImplementationMaxIterationsReached(p ImplementationMaxIterationsReachedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeImplementationMaxIterationsReached, ImplementationMaxIterationsReached: &p}
}

func NewImplementationAccepted(p ImplementationAcceptedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeImplementationAccepted, ImplementationAccepted: &p}
}

func NewImplementationDeclined(p ImplementationDeclinedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeImplementationDeclined, ImplementationDeclined: &p}
}

func NewImplementationCancelled(p ImplementationCancelledPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeImplementationCancelled, ImplementationCancelled: &p}
}

func NewAgentConversationRecorded(p AgentConversationRecordedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeAgentConversationRecorded, AgentConversationRecorded: &p}
}

func NewInvocationRecorded(p InvocationRecordedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeInvocationRecorded, InvocationRecorded: &p}
}

func NewFailureRecorded(p FailureRecordedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeFailureRecorded, FailureRecorded: &p}
}

func NewWorktreeAttached(p WorktreeAttachedPayload) WorkflowEvent {
	return WorkflowEvent{Type: EventTypeWorktreeAttached, WorktreeAttached: &p}
}
