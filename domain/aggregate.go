package domain

// ImplementationPhaseState is the sub-state machine that exists once the
// user has requested implementation.
type ImplementationPhaseState struct {
	SubPhase     ImplementationSubPhase
	Iteration    Iteration
	MaxIterations MaxIterations
	LastVerdict  *ImplementationVerdict
	LastFeedback *string
	LastFingerprint *uint64
}

// Clone returns a deep copy of the implementation phase state.
func (s *ImplementationPhaseState) Clone() *ImplementationPhaseState {
	if s == nil {
		return nil
	}
	clone := *s
	if s.LastVerdict != nil {
		v := *s.LastVerdict
		clone.LastVerdict = &v
	}
	if s.LastFeedback != nil {
		f := *s.LastFeedback
		clone.LastFeedback = &f
	}
	if s.LastFingerprint != nil {
		fp := *s.LastFingerprint
		clone.LastFingerprint = &fp
	}
	return &clone
}

// WorkflowAggregate is the authoritative, event-sourced state for one
// workflow session. It is a pure function of (state, command) -> events
// and (state, event) -> state; it never performs I/O beyond the
// NowUtc() timestamp embedded in emitted events.
type WorkflowAggregate struct {
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

// NewWorkflowAggregate returns a zero-value (uninitialized) aggregate,
// ready to receive CreateWorkflow.
func NewWorkflowAggregate() *WorkflowAggregate {
	return &WorkflowAggregate{
		AgentConversations: make(map[AgentId]AgentConversationState),
	}
}

// Handle validates cmd against the current state and, if valid, returns
// the events it produces. No state mutation happens here; Apply does
// that once the caller has durably committed the events.
func (a *WorkflowAggregate) Handle(cmd Command) ([]WorkflowEvent, error) {
	switch cmd.Type {
	case CommandCreateWorkflow:
		return a.handleCreateWorkflow(cmd.CreateWorkflow)
	case CommandStartPlanning:
		return a.handleStartPlanning()
	case CommandCompletePlanning:
		return a.handleCompletePlanning(cmd.CompletePlanning)
	case CommandStartReviewCycle:
		return a.handleStartReviewCycle(cmd.StartReviewCycle)
	case CommandRecordReviewerApproval:
		return a.handleRecordReviewerApproval(cmd.RecordReviewerApproval)
	case CommandRecordReviewerRejection:
		return a.handleRecordReviewerRejection(cmd.RecordReviewerRejection)
	case CommandCompleteReviewCycle:
		return a.handleCompleteReviewCycle(cmd.CompleteReviewCycle)
	case CommandStartRevising:
		return a.handleStartRevising(cmd.StartRevising)
	case CommandCompleteRevision:
		return a.handleCompleteRevision(cmd.CompleteRevision)
	case CommandApprove:
		return a.handleApprove()
	case CommandRequestImplementation:
		return a.handleRequestImplementation()
	case CommandDecline:
		return a.handleDecline(cmd.Decline)
	case CommandAbort:
		return a.handleAbort(cmd.Abort)
	case CommandOverrideApproval:
		return a.handleOverrideApproval(cmd.OverrideApproval)
	case CommandStartImplementation:
		return a.handleStartImplementation()
	case CommandStartImplementationRound:
		return a.handleStartImplementationRound()
	case CommandCompleteImplementationRound:
		return a.handleCompleteImplementationRound(cmd.CompleteImplementationRound)
	case CommandCompleteImplementationReview:
		return a.handleCompleteImplementationReview(cmd.CompleteImplementationReview)
	case CommandAcceptImplementation:
		return a.handleAcceptImplementation()
	case CommandDeclineImplementation:
		return a.handleDeclineImplementation(cmd.DeclineImplementation)
	case CommandCancelImplementation:
		return a.handleCancelImplementation(cmd.CancelImplementation)
	case CommandRecordAgentConversation:
		return a.handleRecordAgentConversation(cmd.RecordAgentConversation)
	case CommandRecordInvocation:
		return a.handleRecordInvocation(cmd.RecordInvocation)
	case CommandRecordFailure:
		return a.handleRecordFailure(cmd.RecordFailure)
	case CommandAttachWorktree:
		return a.handleAttachWorktree(cmd.AttachWorktree)
	default:
		return nil, ErrInvalidPhase
	}
}

func (a *WorkflowAggregate) handleCreateWorkflow(c *CreateWorkflowCmd) ([]WorkflowEvent, error) {
	if a.Initialized {
		return nil, ErrAlreadyInitialized
	}
	return []WorkflowEvent{NewWorkflowCreated(WorkflowCreatedPayload{
		FeatureName:   c.FeatureName,
		Objective:     c.Objective,
		WorkingDir:    c.WorkingDir,
		MaxIterations: c.MaxIterations,
		PlanPath:      c.PlanPath,
		FeedbackPath:  c.FeedbackPath,
		CreatedAt:     NowUtc(),
	})}, nil
}

func (a *WorkflowAggregate) handleStartPlanning() ([]WorkflowEvent, error) {
	if a.PlanningPhase != PlanningPhasePlanning {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewPlanningStarted(PlanningStartedPayload{StartedAt: NowUtc()})}, nil
}

func (a *WorkflowAggregate) handleCompletePlanning(c *CompletePlanningCmd) ([]WorkflowEvent, error) {
	if a.PlanningPhase != PlanningPhasePlanning {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewPlanningCompleted(PlanningCompletedPayload{
		PlanPath: c.PlanPath, CompletedAt: NowUtc(),
	})}, nil
}

func (a *WorkflowAggregate) handleStartReviewCycle(c *StartReviewCycleCmd) ([]WorkflowEvent, error) {
	if a.PlanningPhase != PlanningPhaseReviewing && a.PlanningPhase != PlanningPhasePlanning {
		return nil, ErrInvalidPhase
	}
	if a.Iteration > a.MaxIterations {
		return nil, ErrInvalidPhase
	}
	if c.Mode == ReviewModeSequential {
		state := NewSequentialReviewState()
		if existing := a.ReviewMode.Sequential; existing != nil {
			state.lastRejectingReviewer = existing.lastRejectingReviewer
			state.planVersion = existing.planVersion
		}
		counts := CountReviewingInvocations(a.Invocations)
		state.StartNewCycle(c.Reviewers, counts)
	}
	return []WorkflowEvent{NewReviewCycleStarted(ReviewCycleStartedPayload{
		Mode: c.Mode, Reviewers: c.Reviewers, StartedAt: NowUtc(),
	})}, nil
}

func (a *WorkflowAggregate) handleRecordReviewerApproval(c *RecordReviewerApprovalCmd) ([]WorkflowEvent, error) {
	if a.PlanningPhase != PlanningPhaseReviewing {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewReviewerApproved(ReviewerApprovedPayload{
		ReviewerId: c.ReviewerId, ApprovedAt: NowUtc(),
	})}, nil
}

func (a *WorkflowAggregate) handleRecordReviewerRejection(c *RecordReviewerRejectionCmd) ([]WorkflowEvent, error) {
	if a.PlanningPhase != PlanningPhaseReviewing {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewReviewerRejected(ReviewerRejectedPayload{
		ReviewerId: c.ReviewerId, FeedbackPath: c.FeedbackPath, RejectedAt: NowUtc(),
	})}, nil
}

func (a *WorkflowAggregate) handleCompleteReviewCycle(c *CompleteReviewCycleCmd) ([]WorkflowEvent, error) {
	if a.PlanningPhase != PlanningPhaseReviewing {
		return nil, ErrInvalidPhase
	}
	events := []WorkflowEvent{NewReviewCycleCompleted(ReviewCycleCompletedPayload{
		Approved: c.Approved, CompletedAt: NowUtc(),
	})}
	if !c.Approved && a.Iteration >= a.MaxIterations {
		events = append(events, NewPlanningMaxIterationsReached(PlanningMaxIterationsReachedPayload{
			Iteration: a.Iteration, ReachedAt: NowUtc(),
		}))
	}
	return events, nil
}

func (a *WorkflowAggregate) handleStartRevising(c *StartRevisingCmd) ([]WorkflowEvent, error) {
	if a.PlanningPhase != PlanningPhaseReviewing {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewRevisingStarted(RevisingStartedPayload{
		FeedbackSummary: c.FeedbackSummary, StartedAt: NowUtc(),
	})}, nil
}

func (a *WorkflowAggregate) handleCompleteRevision(c *CompleteRevisionCmd) ([]WorkflowEvent, error) {
	if a.PlanningPhase != PlanningPhaseRevising {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewRevisionCompleted(RevisionCompletedPayload{
		PlanPath: c.PlanPath, CompletedAt: NowUtc(),
	})}, nil
}

func (a *WorkflowAggregate) handleApprove() ([]WorkflowEvent, error) {
	if a.PlanningPhase != PlanningPhaseAwaitingDecision {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewUserApproved(UserApprovedPayload{ApprovedAt: NowUtc()})}, nil
}

func (a *WorkflowAggregate) handleRequestImplementation() ([]WorkflowEvent, error) {
	if a.PlanningPhase != PlanningPhaseComplete && a.PlanningPhase != PlanningPhaseAwaitingDecision {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewUserRequestedImplementation(UserRequestedImplementationPayload{RequestedAt: NowUtc()})}, nil
}

func (a *WorkflowAggregate) handleDecline(c *DeclineCmd) ([]WorkflowEvent, error) {
	if a.PlanningPhase != PlanningPhaseAwaitingDecision {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewUserDeclined(UserDeclinedPayload{Feedback: c.Feedback, DeclinedAt: NowUtc()})}, nil
}

func (a *WorkflowAggregate) handleAbort(c *AbortCmd) ([]WorkflowEvent, error) {
	if a.PlanningPhase == PlanningPhaseComplete {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewUserAborted(UserAbortedPayload{Reason: c.Reason, AbortedAt: NowUtc()})}, nil
}

func (a *WorkflowAggregate) handleOverrideApproval(c *OverrideApprovalCmd) ([]WorkflowEvent, error) {
	if a.PlanningPhase != PlanningPhaseAwaitingDecision {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewUserOverrideApproval(UserOverrideApprovalPayload{Reason: c.Reason, OverriddenAt: NowUtc()})}, nil
}

func (a *WorkflowAggregate) handleStartImplementation() ([]WorkflowEvent, error) {
	if a.PlanningPhase != PlanningPhaseComplete {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewImplementationStarted(ImplementationStartedPayload{StartedAt: NowUtc()})}, nil
}

func (a *WorkflowAggregate) handleStartImplementationRound() ([]WorkflowEvent, error) {
	if a.ImplementationState == nil || a.ImplementationState.SubPhase != ImplementationSubPhaseImplementing {
		return nil, ErrInvalidPhase
	}
	if a.ImplementationState.Iteration > a.ImplementationState.MaxIterations {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewImplementationRoundStarted(ImplementationRoundStartedPayload{
		Iteration: a.ImplementationState.Iteration, StartedAt: NowUtc(),
	})}, nil
}

func (a *WorkflowAggregate) handleCompleteImplementationRound(c *CompleteImplementationRoundCmd) ([]WorkflowEvent, error) {
	if a.ImplementationState == nil || a.ImplementationState.SubPhase != ImplementationSubPhaseImplementing {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewImplementationRoundCompleted(ImplementationRoundCompletedPayload{
		Iteration: a.ImplementationState.Iteration, Fingerprint: c.Fingerprint, CompletedAt: NowUtc(),
	})}, nil
}

func (a *WorkflowAggregate) handleCompleteImplementationReview(c *CompleteImplementationReviewCmd) ([]WorkflowEvent, error) {
	if a.ImplementationState == nil {
		return nil, ErrInvalidPhase
	}
	events := []WorkflowEvent{NewImplementationReviewCompleted(ImplementationReviewCompletedPayload{
		Iteration: a.ImplementationState.Iteration, Verdict: c.Verdict, Feedback: c.Feedback, CompletedAt: NowUtc(),
	})}
	if c.Verdict == ImplementationVerdictNeedsRevision && a.ImplementationState.Iteration >= a.ImplementationState.MaxIterations {
		events = append(events, NewImplementationMaxIterationsReached(ImplementationMaxIterationsReachedPayload{
			Iteration: a.ImplementationState.Iteration, ReachedAt: NowUtc(),
		}))
	}
	return events, nil
}

func (a *WorkflowAggregate) handleAcceptImplementation() ([]WorkflowEvent, error) {
	if a.ImplementationState == nil {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewImplementationAccepted(ImplementationAcceptedPayload{AcceptedAt: NowUtc()})}, nil
}

func (a *WorkflowAggregate) handleDeclineImplementation(c *DeclineImplementationCmd) ([]WorkflowEvent, error) {
	if a.ImplementationState == nil {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewImplementationDeclined(ImplementationDeclinedPayload{Feedback: c.Feedback, DeclinedAt: NowUtc()})}, nil
}

func (a *WorkflowAggregate) handleCancelImplementation(c *CancelImplementationCmd) ([]WorkflowEvent, error) {
	if a.ImplementationState == nil {
		return nil, ErrInvalidPhase
	}
	return []WorkflowEvent{NewImplementationCancelled(ImplementationCancelledPayload{Reason: c.Reason, CancelledAt: NowUtc()})}, nil
}

func (a *WorkflowAggregate) handleRecordAgentConversation(c *RecordAgentConversationCmd) ([]WorkflowEvent, error) {
	return []WorkflowEvent{NewAgentConversationRecorded(AgentConversationRecordedPayload{
		Agent: c.Agent, ConversationId: c.ConversationId, ResumeStrategy: c.ResumeStrategy, RecordedAt: NowUtc(),
	})}, nil
}

func (a *WorkflowAggregate) handleRecordInvocation(c *RecordInvocationCmd) ([]WorkflowEvent, error) {
	return []WorkflowEvent{NewInvocationRecorded(InvocationRecordedPayload{Record: InvocationRecord{
		Agent: c.Agent, Phase: c.Phase, Timestamp: NowUtc(), ConversationId: c.ConversationId, ResumeStrategy: c.ResumeStrategy,
	}})}, nil
}

func (a *WorkflowAggregate) handleRecordFailure(c *RecordFailureCmd) ([]WorkflowEvent, error) {
	return []WorkflowEvent{NewFailureRecorded(FailureRecordedPayload{Failure: c.Failure})}, nil
}

func (a *WorkflowAggregate) handleAttachWorktree(c *AttachWorktreeCmd) ([]WorkflowEvent, error) {
	return []WorkflowEvent{NewWorktreeAttached(WorktreeAttachedPayload{Worktree: c.Worktree})}, nil
}

// Apply folds event into the aggregate's state. It is the aggregate's half
// of the closed-union discipline described in events.go: every EventType
// has a case here. events_exhaustive_test.go runs each variant through
// Apply but cannot see a missing case.
func (a *WorkflowAggregate) Apply(e WorkflowEvent) {
	a.LastEventSequence++

	switch e.Type {
	case EventTypeWorkflowCreated:
		p := e.WorkflowCreated
		a.Initialized = true
		a.FeatureName = p.FeatureName
		a.Objective = p.Objective
		a.WorkingDir = p.WorkingDir
		a.MaxIterations = p.MaxIterations
		a.PlanPath = p.PlanPath
		a.FeedbackPath = p.FeedbackPath
		a.PlanningPhase = PlanningPhasePlanning
		a.Iteration = 1
		a.ReviewMode = ParallelReviewMode()
		a.AgentConversations = make(map[AgentId]AgentConversationState)

	case EventTypePlanningStarted:
		a.PlanningPhase = PlanningPhasePlanning

	case EventTypePlanningCompleted:
		a.PlanPath = e.PlanningCompleted.PlanPath
		a.PlanningPhase = PlanningPhaseReviewing

	case EventTypeReviewCycleStarted:
		p := e.ReviewCycleStarted
		if p.Mode == ReviewModeSequential {
			state := a.ReviewMode.Sequential
			if state == nil {
				state = NewSequentialReviewState()
			}
			counts := CountReviewingInvocations(a.Invocations)
			state.StartNewCycle(p.Reviewers, counts)
			a.ReviewMode = SequentialReviewMode(state)
		} else {
			a.ReviewMode = ParallelReviewMode()
		}
		a.PlanningPhase = PlanningPhaseReviewing

	case EventTypeReviewerApproved:
		if a.ReviewMode.Kind == ReviewModeSequential && a.ReviewMode.Sequential != nil {
			a.ReviewMode.Sequential.RecordApprovalSimple(e.ReviewerApproved.ReviewerId)
			a.ReviewMode.Sequential.AdvanceToNextReviewer()
		}

	case EventTypeReviewerRejected:
		if a.ReviewMode.Kind == ReviewModeSequential && a.ReviewMode.Sequential != nil {
			a.ReviewMode.Sequential.RecordRejection(e.ReviewerRejected.ReviewerId)
		}

	case EventTypeReviewCycleCompleted:
		if e.ReviewCycleCompleted.Approved {
			a.PlanningPhase = PlanningPhaseComplete
		} else {
			a.PlanningPhase = PlanningPhaseRevising
		}

	case EventTypeRevisingStarted:
		a.PlanningPhase = PlanningPhaseRevising

	case EventTypeRevisionCompleted:
		a.PlanPath = e.RevisionCompleted.PlanPath
		a.Iteration++
		if a.ReviewMode.Kind == ReviewModeSequential && a.ReviewMode.Sequential != nil {
			a.ReviewMode.Sequential.IncrementVersion()
			a.ReviewMode.Sequential.ClearCycleOrder()
		}
		a.PlanningPhase = PlanningPhaseReviewing

	case EventTypePlanningMaxIterationsReached:
		a.PlanningPhase = PlanningPhaseAwaitingDecision

	case EventTypeUserApproved:
		a.PlanningPhase = PlanningPhaseComplete

	case EventTypeUserRequestedImplementation:
		// Phase transition happens on ImplementationStarted; this event
		// only records the user's intent.

	case EventTypeUserDeclined:
		a.PlanningPhase = PlanningPhaseComplete

	case EventTypeUserAborted:
		a.PlanningPhase = PlanningPhaseComplete

	case EventTypeUserOverrideApproval:
		a.ApprovalOverridden = true
		a.PlanningPhase = PlanningPhaseComplete

	case EventTypeImplementationStarted:
		a.ImplementationState = &ImplementationPhaseState{
			SubPhase:      ImplementationSubPhaseImplementing,
			Iteration:     1,
			MaxIterations: a.MaxIterations,
		}

	case EventTypeImplementationRoundStarted:
		if a.ImplementationState != nil {
			a.ImplementationState.SubPhase = ImplementationSubPhaseImplementing
		}

	case EventTypeImplementationRoundCompleted:
		if a.ImplementationState != nil {
			fp := e.ImplementationRoundCompleted.Fingerprint
			a.ImplementationState.LastFingerprint = &fp
			a.ImplementationState.SubPhase = ImplementationSubPhaseImplementationReview
		}

	case EventTypeImplementationReviewCompleted:
		if a.ImplementationState != nil {
			v := e.ImplementationReviewCompleted.Verdict
			a.ImplementationState.LastVerdict = &v
			a.ImplementationState.LastFeedback = e.ImplementationReviewCompleted.Feedback
			if v == ImplementationVerdictNeedsRevision {
				a.ImplementationState.Iteration++
				a.ImplementationState.SubPhase = ImplementationSubPhaseImplementing
			}
		}

	case EventTypeImplementationMaxIterationsReached:
		if a.ImplementationState != nil {
			a.ImplementationState.SubPhase = ImplementationSubPhaseAwaitingDecision
		}

	case EventTypeImplementationAccepted:
		if a.ImplementationState != nil {
			a.ImplementationState.SubPhase = ImplementationSubPhaseComplete
		}

	case EventTypeImplementationDeclined:
		if a.ImplementationState != nil {
			a.ImplementationState.SubPhase = ImplementationSubPhaseComplete
		}

	case EventTypeImplementationCancelled:
		if a.ImplementationState != nil {
			a.ImplementationState.SubPhase = ImplementationSubPhaseAwaitingDecision
		}

	case EventTypeAgentConversationRecorded:
		p := e.AgentConversationRecorded
		cid := p.ConversationId
		a.AgentConversations[p.Agent] = AgentConversationState{
			ResumeStrategy: p.ResumeStrategy,
			ConversationId: &cid,
			LastUsedAt:     p.RecordedAt,
		}

	case EventTypeInvocationRecorded:
		a.Invocations = append(a.Invocations, e.InvocationRecorded.Record)

	case EventTypeFailureRecorded:
		f := e.FailureRecorded.Failure
		a.LastFailure = &f
		a.FailureHistory = AppendFailure(a.FailureHistory, f)

	case EventTypeWorktreeAttached:
		w := e.WorktreeAttached.Worktree
		a.WorktreeInfo = &w

	default:
		// An event type with no case above is ignored.
	}
}
