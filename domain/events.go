package domain

// WorkflowEvent is the closed tagged union of everything that can happen
// to a workflow aggregate. EventType/EventVersion round-trip through the
// stored envelope so storage corruption (a mismatched tag) is detectable
// on load. events_exhaustive_test.go checks that each constructor sets
// exactly one payload, that its table holds a fixed count of variants,
// and that Apply does not panic on any of them; it does not detect a
// variant that WorkflowAggregate.Apply leaves unhandled.
type WorkflowEvent struct {
	Type EventType `json:"event_type"`

	WorkflowCreated                *WorkflowCreatedPayload                `json:"workflow_created,omitempty"`
	PlanningStarted                *PlanningStartedPayload                `json:"planning_started,omitempty"`
	PlanningCompleted              *PlanningCompletedPayload              `json:"planning_completed,omitempty"`
	ReviewCycleStarted             *ReviewCycleStartedPayload             `json:"review_cycle_started,omitempty"`
	ReviewerApproved               *ReviewerApprovedPayload               `json:"reviewer_approved,omitempty"`
	ReviewerRejected               *ReviewerRejectedPayload               `json:"reviewer_rejected,omitempty"`
	ReviewCycleCompleted           *ReviewCycleCompletedPayload           `json:"review_cycle_completed,omitempty"`
	RevisingStarted                *RevisingStartedPayload                `json:"revising_started,omitempty"`
	RevisionCompleted              *RevisionCompletedPayload              `json:"revision_completed,omitempty"`
	PlanningMaxIterationsReached   *PlanningMaxIterationsReachedPayload   `json:"planning_max_iterations_reached,omitempty"`
	UserApproved                   *UserApprovedPayload                   `json:"user_approved,omitempty"`
	UserRequestedImplementation    *UserRequestedImplementationPayload    `json:"user_requested_implementation,omitempty"`
	UserDeclined                   *UserDeclinedPayload                   `json:"user_declined,omitempty"`
	UserAborted                    *UserAbortedPayload                    `json:"user_aborted,omitempty"`
	UserOverrideApproval           *UserOverrideApprovalPayload           `json:"user_override_approval,omitempty"`
	ImplementationStarted          *ImplementationStartedPayload          `json:"implementation_started,omitempty"`
	ImplementationRoundStarted     *ImplementationRoundStartedPayload     `json:"implementation_round_started,omitempty"`
	ImplementationRoundCompleted   *ImplementationRoundCompletedPayload   `json:"implementation_round_completed,omitempty"`
	ImplementationReviewCompleted  *ImplementationReviewCompletedPayload  `json:"implementation_review_completed,omitempty"`
	ImplementationMaxIterationsReached *ImplementationMaxIterationsReachedPayload `json:"implementation_max_iterations_reached,omitempty"`
	ImplementationAccepted         *ImplementationAcceptedPayload         `json:"implementation_accepted,omitempty"`
	ImplementationDeclined         *ImplementationDeclinedPayload         `json:"implementation_declined,omitempty"`
	ImplementationCancelled        *ImplementationCancelledPayload        `json:"implementation_cancelled,omitempty"`
	AgentConversationRecorded      *AgentConversationRecordedPayload      `json:"agent_conversation_recorded,omitempty"`
	InvocationRecorded             *InvocationRecordedPayload             `json:"invocation_recorded,omitempty"`
	FailureRecorded                *FailureRecordedPayload                `json:"failure_recorded,omitempty"`
	WorktreeAttached               *WorktreeAttachedPayload               `json:"worktree_attached,omitempty"`
}

// EventType is the on-disk discriminant tag for WorkflowEvent.
type EventType string

const (
	EventTypeWorkflowCreated                  EventType = "WorkflowCreated"
	EventTypePlanningStarted                  EventType = "PlanningStarted"
	EventTypePlanningCompleted                EventType = "PlanningCompleted"
	EventTypeReviewCycleStarted               EventType = "ReviewCycleStarted"
	EventTypeReviewerApproved                 EventType = "ReviewerApproved"
	EventTypeReviewerRejected                 EventType = "ReviewerRejected"
	EventTypeReviewCycleCompleted              EventType = "ReviewCycleCompleted"
	EventTypeRevisingStarted                  EventType = "RevisingStarted"
	EventTypeRevisionCompleted                EventType = "RevisionCompleted"
	EventTypePlanningMaxIterationsReached      EventType = "PlanningMaxIterationsReached"
	EventTypeUserApproved                     EventType = "UserApproved"
	EventTypeUserRequestedImplementation       EventType = "UserRequestedImplementation"
	EventTypeUserDeclined                      EventType = "UserDeclined"
	EventTypeUserAborted                       EventType = "UserAborted"
	EventTypeUserOverrideApproval              EventType = "UserOverrideApproval"
	EventTypeImplementationStarted             EventType = "ImplementationStarted"
	EventTypeImplementationRoundStarted        EventType = "ImplementationRoundStarted"
	EventTypeImplementationRoundCompleted      EventType = "ImplementationRoundCompleted"
	EventTypeImplementationReviewCompleted     EventType = "ImplementationReviewCompleted"
	EventTypeImplementationMaxIterationsReached EventType = "ImplementationMaxIterationsReached"
	EventTypeImplementationAccepted            EventType = "ImplementationAccepted"
	EventTypeImplementationDeclined            EventType = "ImplementationDeclined"
	EventTypeImplementationCancelled           EventType = "ImplementationCancelled"
	EventTypeAgentConversationRecorded         EventType = "AgentConversationRecorded"
	EventTypeInvocationRecorded                EventType = "InvocationRecorded"
	EventTypeFailureRecorded                   EventType = "FailureRecorded"
	EventTypeWorktreeAttached                  EventType = "WorktreeAttached"
)

// EventVersion is reserved for future schema evolution; every event
// currently emits version "1".
const EventVersion = "1"

// Payload types, one per event variant.

type WorkflowCreatedPayload struct {
	FeatureName   FeatureName   `json:"feature_name"`
	Objective     Objective     `json:"objective"`
	WorkingDir    WorkingDir    `json:"working_dir"`
	MaxIterations MaxIterations `json:"max_iterations"`
	PlanPath      PlanPath      `json:"plan_path"`
	FeedbackPath  FeedbackPath  `json:"feedback_path"`
	CreatedAt     TimestampUtc  `json:"created_at"`
}

type PlanningStartedPayload struct {
	StartedAt TimestampUtc `json:"started_at"`
}

type PlanningCompletedPayload struct {
	PlanPath    PlanPath     `json:"plan_path"`
	CompletedAt TimestampUtc `json:"completed_at"`
}

type ReviewCycleStartedPayload struct {
	Mode      ReviewModeKind `json:"mode"`
	Reviewers []AgentId      `json:"reviewers"`
	StartedAt TimestampUtc   `json:"started_at"`
}

type ReviewerApprovedPayload struct {
	ReviewerId AgentId      `json:"reviewer_id"`
	ApprovedAt TimestampUtc `json:"approved_at"`
}

type ReviewerRejectedPayload struct {
	ReviewerId   AgentId      `json:"reviewer_id"`
	FeedbackPath FeedbackPath `json:"feedback_path"`
	RejectedAt   TimestampUtc `json:"rejected_at"`
}

type ReviewCycleCompletedPayload struct {
	Approved    bool         `json:"approved"`
	CompletedAt TimestampUtc `json:"completed_at"`
}

type RevisingStartedPayload struct {
	FeedbackSummary string       `json:"feedback_summary"`
	StartedAt       TimestampUtc `json:"started_at"`
}

type RevisionCompletedPayload struct {
	PlanPath    PlanPath     `json:"plan_path"`
	CompletedAt TimestampUtc `json:"completed_at"`
}

type PlanningMaxIterationsReachedPayload struct {
	Iteration   Iteration    `json:"iteration"`
	ReachedAt   TimestampUtc `json:"reached_at"`
}

type UserApprovedPayload struct {
	ApprovedAt TimestampUtc `json:"approved_at"`
}

type UserRequestedImplementationPayload struct {
	RequestedAt TimestampUtc `json:"requested_at"`
}

type UserDeclinedPayload struct {
	Feedback   string       `json:"feedback"`
	DeclinedAt TimestampUtc `json:"declined_at"`
}

type UserAbortedPayload struct {
	Reason    string       `json:"reason"`
	AbortedAt TimestampUtc `json:"aborted_at"`
}

type UserOverrideApprovalPayload struct {
	Reason      string       `json:"reason"`
	OverriddenAt TimestampUtc `json:"overridden_at"`
}

type ImplementationStartedPayload struct {
	StartedAt TimestampUtc `json:"started_at"`
}

type ImplementationRoundStartedPayload struct {
	Iteration Iteration    `json:"iteration"`
	StartedAt TimestampUtc `json:"started_at"`
}

type ImplementationRoundCompletedPayload struct {
	Iteration   Iteration    `json:"iteration"`
	Fingerprint uint64       `json:"fingerprint"`
	CompletedAt TimestampUtc `json:"completed_at"`
}

type ImplementationReviewCompletedPayload struct {
	Iteration   Iteration             `json:"iteration"`
	Verdict     ImplementationVerdict `json:"verdict"`
	Feedback    *string               `json:"feedback,omitempty"`
	CompletedAt TimestampUtc          `json:"completed_at"`
}

type ImplementationMaxIterationsReachedPayload struct {
	Iteration Iteration    `json:"iteration"`
	ReachedAt TimestampUtc `json:"reached_at"`
}

type ImplementationAcceptedPayload struct {
	AcceptedAt TimestampUtc `json:"accepted_at"`
}

type ImplementationDeclinedPayload struct {
	Feedback   string       `json:"feedback"`
	DeclinedAt TimestampUtc `json:"declined_at"`
}

type ImplementationCancelledPayload struct {
	Reason      string       `json:"reason"`
	CancelledAt TimestampUtc `json:"cancelled_at"`
}

type AgentConversationRecordedPayload struct {
	Agent          AgentId         `json:"agent"`
	ConversationId ConversationId  `json:"conversation_id"`
	ResumeStrategy ResumeStrategy  `json:"resume_strategy"`
	RecordedAt     TimestampUtc    `json:"recorded_at"`
}

type InvocationRecordedPayload struct {
	Record InvocationRecord `json:"record"`
}

type FailureRecordedPayload struct {
	Failure FailureContext `json:"failure"`
}

type WorktreeAttachedPayload struct {
	Worktree WorktreeState `json:"worktree"`
}

// EventType returns the event's on-disk discriminant tag.
func (e WorkflowEvent) EventType() EventType { return e.Type }

// EventVersion returns the event schema version, currently always "1".
func (e WorkflowEvent) EventVersion() string { return EventVersion }
