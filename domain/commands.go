package domain

// Command is the closed union of requests the aggregate accepts. Exactly
// one of the payload pointers is non-nil, selected by Type.
type Command struct {
	Type CommandType

	CreateWorkflow            *CreateWorkflowCmd
	StartPlanning              *StartPlanningCmd
	CompletePlanning           *CompletePlanningCmd
	StartReviewCycle           *StartReviewCycleCmd
	RecordReviewerApproval     *RecordReviewerApprovalCmd
	RecordReviewerRejection    *RecordReviewerRejectionCmd
	CompleteReviewCycle        *CompleteReviewCycleCmd
	StartRevising              *StartRevisingCmd
	CompleteRevision           *CompleteRevisionCmd
	Approve                    *ApproveCmd
	RequestImplementation      *RequestImplementationCmd
	Decline                    *DeclineCmd
	Abort                      *AbortCmd
	OverrideApproval           *OverrideApprovalCmd
	StartImplementation        *StartImplementationCmd
	StartImplementationRound   *StartImplementationRoundCmd
	CompleteImplementationRound *CompleteImplementationRoundCmd
	CompleteImplementationReview *CompleteImplementationReviewCmd
	AcceptImplementation       *AcceptImplementationCmd
	DeclineImplementation      *DeclineImplementationCmd
	CancelImplementation       *CancelImplementationCmd
	RecordAgentConversation    *RecordAgentConversationCmd
	RecordInvocation           *RecordInvocationCmd
	RecordFailure              *RecordFailureCmd
	AttachWorktree             *AttachWorktreeCmd
}

// CommandType discriminates the Command union.
type CommandType string

const (
	CommandCreateWorkflow               CommandType = "CreateWorkflow"
	CommandStartPlanning                CommandType = "StartPlanning"
	CommandCompletePlanning             CommandType = "CompletePlanning"
	CommandStartReviewCycle             CommandType = "StartReviewCycle"
	CommandRecordReviewerApproval       CommandType = "RecordReviewerApproval"
	CommandRecordReviewerRejection      CommandType = "RecordReviewerRejection"
	CommandCompleteReviewCycle          CommandType = "CompleteReviewCycle"
	CommandStartRevising                CommandType = "StartRevising"
	CommandCompleteRevision             CommandType = "CompleteRevision"
	CommandApprove                      CommandType = "Approve"
	CommandRequestImplementation        CommandType = "RequestImplementation"
	CommandDecline                      CommandType = "Decline"
	CommandAbort                        CommandType = "Abort"
	CommandOverrideApproval             CommandType = "OverrideApproval"
	CommandStartImplementation          CommandType = "StartImplementation"
	CommandStartImplementationRound     CommandType = "StartImplementationRound"
	CommandCompleteImplementationRound  CommandType = "CompleteImplementationRound"
	CommandCompleteImplementationReview CommandType = "CompleteImplementationReview"
	CommandAcceptImplementation         CommandType = "AcceptImplementation"
	CommandDeclineImplementation        CommandType = "DeclineImplementation"
	CommandCancelImplementation         CommandType = "CancelImplementation"
	CommandRecordAgentConversation      CommandType = "RecordAgentConversation"
	CommandRecordInvocation             CommandType = "RecordInvocation"
	CommandRecordFailure                CommandType = "RecordFailure"
	CommandAttachWorktree               CommandType = "AttachWorktree"
)

type CreateWorkflowCmd struct {
	FeatureName   FeatureName
	Objective     Objective
	WorkingDir    WorkingDir
	MaxIterations MaxIterations
	PlanPath      PlanPath
	FeedbackPath  FeedbackPath
}

type StartPlanningCmd struct{}

type CompletePlanningCmd struct {
	PlanPath PlanPath
}

type StartReviewCycleCmd struct {
	Mode      ReviewModeKind
	Reviewers []AgentId
}

type RecordReviewerApprovalCmd struct {
	ReviewerId AgentId
}

type RecordReviewerRejectionCmd struct {
	ReviewerId   AgentId
	FeedbackPath FeedbackPath
}

type CompleteReviewCycleCmd struct {
	Approved bool
}

type StartRevisingCmd struct {
	FeedbackSummary string
}

type CompleteRevisionCmd struct {
	PlanPath PlanPath
}

type ApproveCmd struct{}

type RequestImplementationCmd struct{}

type DeclineCmd struct {
	Feedback string
}

type AbortCmd struct {
	Reason string
}

type OverrideApprovalCmd struct {
	Reason string
}

type StartImplementationCmd struct{}

type StartImplementationRoundCmd struct{}

type CompleteImplementationRoundCmd struct {
	Fingerprint uint64
}

type CompleteImplementationReviewCmd struct {
	Verdict  ImplementationVerdict
	Feedback *string
}

type AcceptImplementationCmd struct{}

type DeclineImplementationCmd struct {
	Feedback string
}

type CancelImplementationCmd struct {
	Reason string
}

type RecordAgentConversationCmd struct {
	Agent          AgentId
	ConversationId ConversationId
	ResumeStrategy ResumeStrategy
}

type RecordInvocationCmd struct {
	Agent          AgentId
	Phase          PhaseLabel
	ConversationId *ConversationId
	ResumeStrategy ResumeStrategy
}

type RecordFailureCmd struct {
	Failure FailureContext
}

type AttachWorktreeCmd struct {
	Worktree WorktreeState
}
