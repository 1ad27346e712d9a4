package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/metjm/planning-agent/agent"
	"github.com/metjm/planning-agent/domain"
)

// AgentInvoker is the subset of agent.Runtime the controller depends on.
// Tests supply a fake to drive the loop without spawning real processes.
type AgentInvoker interface {
	Invoke(
		ctx context.Context,
		descriptor agent.Descriptor,
		prompt string,
		workingDir string,
		mcp *agent.MCPConfig,
		timeouts agent.Timeouts,
		parser agent.StreamParser,
		emit agent.EventEmitter,
	) (agent.Result, error)
}

// AgentBinding pairs one configured agent with how the runtime should
// invoke it.
type AgentBinding struct {
	Descriptor agent.Descriptor
	Parser     agent.StreamParser
	Timeouts   agent.Timeouts
}

// Config is everything the controller needs that doesn't come from the
// view: which agent fills each role, the review mode/policy, and the
// failure policy governing retries.
type Config struct {
	Agents                 map[domain.AgentId]AgentBinding
	Planner                domain.AgentId
	Reviewers              []domain.AgentId
	Reviser                domain.AgentId
	Implementer            domain.AgentId
	ImplementationReviewer domain.AgentId
	ReviewMode             domain.ReviewModeKind
	AggregationPolicy      domain.ReviewAggregationPolicy
	FailurePolicy          domain.FailurePolicy
}

// ErrCircuitBreaker is returned by RunImplementationLoop when an
// implementation round produces NeedsRevision with no change in the
// repository fingerprint from the previous round.
var ErrCircuitBreaker = fmt.Errorf("implementation stalled: no changes between revision rounds")

// ErrReviewCycleSaved is returned by runReviewCycle when every reviewer in
// the cycle failed and the configured FailurePolicy.OnAllReviewersFailed is
// OnAllReviewersFailedSaveState. The workflow's phase is left at Reviewing;
// a later call to RunPlanningLoop resumes it.
var ErrReviewCycleSaved = fmt.Errorf("review cycle saved: every reviewer failed, awaiting resume")

// Controller is the stateless phase-driver: its only memory between
// decisions is the actor's view and this Config.
type Controller struct {
	actor   *Actor
	invoker AgentInvoker
	config  Config
	emit    agent.EventEmitter
	metrics *Metrics
}

func NewController(actor *Actor, invoker AgentInvoker, config Config, emit agent.EventEmitter) *Controller {
	return &Controller{actor: actor, invoker: invoker, config: config, emit: emit}
}

// WithMetrics attaches Prometheus collectors the controller reports
// invocation counts and review-cycle duration into. Optional; a
// Controller with no metrics attached is a no-op on this front.
func (c *Controller) WithMetrics(metrics *Metrics) *Controller {
	c.metrics = metrics
	return c
}

// RunPlanningLoop drives Planning -> Reviewing -> Revising cycles until
// the workflow reaches Complete or AwaitingDecision.
func (c *Controller) RunPlanningLoop(ctx context.Context) error {
	for {
		view, err := c.actor.GetView(ctx)
		if err != nil {
			return err
		}

		switch view.PlanningPhase {
		case domain.PlanningPhasePlanning:
			if err := c.runPlanning(ctx, view); err != nil {
				return err
			}
		case domain.PlanningPhaseReviewing:
			if err := c.runReviewCycle(ctx, view); err != nil {
				return err
			}
		case domain.PlanningPhaseRevising:
			if err := c.runRevision(ctx, view); err != nil {
				return err
			}
		case domain.PlanningPhaseAwaitingDecision, domain.PlanningPhaseComplete:
			return nil
		default:
			return fmt.Errorf("unhandled planning phase %q", view.PlanningPhase)
		}
	}
}

func (c *Controller) runPlanning(ctx context.Context, view domain.WorkflowView) error {
	if _, err := c.invokeAgent(ctx, c.config.Planner, PlanningPrompt(view), view.WorkingDir, domain.PhaseLabelPlanning); err != nil {
		return err
	}

	_, err := c.actor.SubmitCommand(ctx, domain.Command{
		Type:            domain.CommandCompletePlanning,
		CompletePlanning: &domain.CompletePlanningCmd{PlanPath: view.PlanPath},
	})
	return err
}

func (c *Controller) runRevision(ctx context.Context, view domain.WorkflowView) error {
	feedbackSummary := ""
	if view.ReviewMode.Kind == domain.ReviewModeSequential && view.ReviewMode.Sequential != nil {
		for _, r := range view.ReviewMode.Sequential.AccumulatedReviewsForSummary() {
			feedbackSummary += fmt.Sprintf("### %s\n%s\n\n", r.AgentName, r.Feedback)
		}
	}

	if _, err := c.invokeAgent(ctx, c.config.Reviser, RevisionPrompt(view, feedbackSummary), view.WorkingDir, domain.PhaseLabelRevising); err != nil {
		return err
	}

	_, err := c.actor.SubmitCommand(ctx, domain.Command{
		Type:            domain.CommandCompleteRevision,
		CompleteRevision: &domain.CompleteRevisionCmd{PlanPath: view.PlanPath},
	})
	return err
}

func (c *Controller) runReviewCycle(ctx context.Context, view domain.WorkflowView) error {
	if c.metrics != nil {
		start := time.Now()
		defer func() { c.metrics.ReviewCycleSeconds.Observe(time.Since(start).Seconds()) }()
	}

	startView, err := c.actor.SubmitCommand(ctx, domain.Command{
		Type: domain.CommandStartReviewCycle,
		StartReviewCycle: &domain.StartReviewCycleCmd{
			Mode:      c.config.ReviewMode,
			Reviewers: c.config.Reviewers,
		},
	})
	if err != nil {
		return err
	}

	if c.config.ReviewMode == domain.ReviewModeSequential {
		return c.runSequentialReview(ctx, startView)
	}
	return c.runParallelReview(ctx, startView)
}

func (c *Controller) runSequentialReview(ctx context.Context, view domain.WorkflowView) error {
	order := c.config.Reviewers
	if view.ReviewMode.Sequential != nil {
		order = view.ReviewMode.Sequential.CycleOrder()
	}

	approved := true
	failures := 0
	for _, reviewer := range order {
		result, err := c.invokeAgent(ctx, reviewer, ReviewPrompt(view), view.WorkingDir, domain.PhaseLabelReviewing)
		if err != nil {
			failures++
			continue
		}

		if result.IsError {
			_, err := c.actor.SubmitCommand(ctx, domain.Command{
				Type: domain.CommandRecordReviewerRejection,
				RecordReviewerRejection: &domain.RecordReviewerRejectionCmd{
					ReviewerId: reviewer, FeedbackPath: "",
				},
			})
			if err != nil {
				return err
			}
			approved = false
			break
		}

		_, err = c.actor.SubmitCommand(ctx, domain.Command{
			Type: domain.CommandRecordReviewerApproval,
			RecordReviewerApproval: &domain.RecordReviewerApprovalCmd{ReviewerId: reviewer},
		})
		if err != nil {
			return err
		}
	}

	if len(order) > 0 && failures == len(order) {
		return c.handleAllReviewersFailed(ctx)
	}

	_, err := c.actor.SubmitCommand(ctx, domain.Command{
		Type:                domain.CommandCompleteReviewCycle,
		CompleteReviewCycle: &domain.CompleteReviewCycleCmd{Approved: approved},
	})
	return err
}

func (c *Controller) runParallelReview(ctx context.Context, view domain.WorkflowView) error {
	type outcome struct {
		reviewer domain.AgentId
		approved bool
		err      error
	}

	results := make(chan outcome, len(c.config.Reviewers))
	for _, reviewer := range c.config.Reviewers {
		reviewer := reviewer
		go func() {
			result, err := c.invokeAgent(ctx, reviewer, ReviewPrompt(view), view.WorkingDir, domain.PhaseLabelReviewing)
			results <- outcome{reviewer: reviewer, approved: err == nil && !result.IsError, err: err}
		}()
	}

	approvals, rejections, failures := 0, 0, 0
	for range c.config.Reviewers {
		o := <-results
		if o.err != nil {
			failures++
			continue
		}
		if o.approved {
			approvals++
			if _, err := c.actor.SubmitCommand(ctx, domain.Command{
				Type:                    domain.CommandRecordReviewerApproval,
				RecordReviewerApproval: &domain.RecordReviewerApprovalCmd{ReviewerId: o.reviewer},
			}); err != nil {
				return err
			}
		} else {
			rejections++
			if _, err := c.actor.SubmitCommand(ctx, domain.Command{
				Type: domain.CommandRecordReviewerRejection,
				RecordReviewerRejection: &domain.RecordReviewerRejectionCmd{
					ReviewerId: o.reviewer, FeedbackPath: "",
				},
			}); err != nil {
				return err
			}
		}
	}

	if len(c.config.Reviewers) > 0 && failures == len(c.config.Reviewers) {
		return c.handleAllReviewersFailed(ctx)
	}

	approved := domain.AggregateVerdict(c.config.AggregationPolicy, approvals, rejections)
	_, err := c.actor.SubmitCommand(ctx, domain.Command{
		Type:                domain.CommandCompleteReviewCycle,
		CompleteReviewCycle: &domain.CompleteReviewCycleCmd{Approved: approved},
	})
	return err
}

// handleAllReviewersFailed records the all-reviewers-failed failure and
// branches on FailurePolicy.OnAllReviewersFailed: abort the workflow,
// leave it at Reviewing for a later resume, or proceed to revision as if
// the cycle had been rejected outright.
func (c *Controller) handleAllReviewersFailed(ctx context.Context) error {
	failure := domain.NewFailureContext(domain.NewAllReviewersFailedFailure(), domain.PhaseLabelReviewing, "", c.config.FailurePolicy.MaxRetries)
	if _, err := c.actor.SubmitCommand(ctx, domain.Command{
		Type:          domain.CommandRecordFailure,
		RecordFailure: &domain.RecordFailureCmd{Failure: failure},
	}); err != nil {
		return err
	}

	switch c.config.FailurePolicy.OnAllReviewersFailed {
	case domain.OnAllReviewersFailedAbort:
		_, err := c.actor.SubmitCommand(ctx, domain.Command{
			Type:  domain.CommandAbort,
			Abort: &domain.AbortCmd{Reason: "all reviewers failed"},
		})
		return err
	case domain.OnAllReviewersFailedContinueWithoutReview:
		_, err := c.actor.SubmitCommand(ctx, domain.Command{
			Type:                domain.CommandCompleteReviewCycle,
			CompleteReviewCycle: &domain.CompleteReviewCycleCmd{Approved: false},
		})
		return err
	default:
		return ErrReviewCycleSaved
	}
}

// RunImplementationLoop drives implementation rounds after the user has
// issued RequestImplementation, enforcing the fingerprint circuit
// breaker described alongside ComputeChangeFingerprint.
func (c *Controller) RunImplementationLoop(ctx context.Context) error {
	if _, err := c.actor.SubmitCommand(ctx, domain.Command{Type: domain.CommandStartImplementation}); err != nil {
		return err
	}

	for {
		view, err := c.actor.GetView(ctx)
		if err != nil {
			return err
		}
		if view.ImplementationState == nil {
			return fmt.Errorf("implementation state missing after start")
		}
		switch view.ImplementationState.SubPhase {
		case domain.ImplementationSubPhaseImplementing:
			if err := c.runImplementationRound(ctx, view); err != nil {
				return err
			}
		case domain.ImplementationSubPhaseImplementationReview:
			return fmt.Errorf("unexpected implementation review subphase without a pending round")
		case domain.ImplementationSubPhaseAwaitingDecision, domain.ImplementationSubPhaseComplete:
			return nil
		default:
			return fmt.Errorf("unhandled implementation sub-phase %q", view.ImplementationState.SubPhase)
		}
	}
}

func (c *Controller) runImplementationRound(ctx context.Context, view domain.WorkflowView) error {
	if _, err := c.actor.SubmitCommand(ctx, domain.Command{Type: domain.CommandStartImplementationRound}); err != nil {
		return err
	}

	if _, err := c.invokeAgent(ctx, c.config.Implementer, ImplementationPrompt(view), view.WorkingDir, domain.PhaseLabelImplementing); err != nil {
		return err
	}

	fingerprint, err := ComputeChangeFingerprint(string(view.WorkingDir))
	if err != nil {
		return err
	}

	previousFingerprint := view.ImplementationState.LastFingerprint

	roundView, err := c.actor.SubmitCommand(ctx, domain.Command{
		Type: domain.CommandCompleteImplementationRound,
		CompleteImplementationRound: &domain.CompleteImplementationRoundCmd{Fingerprint: fingerprint},
	})
	if err != nil {
		return err
	}

	reviewResult, err := c.invokeAgent(ctx, c.config.ImplementationReviewer, ImplementationReviewPrompt(roundView), roundView.WorkingDir, domain.PhaseLabelReviewing)
	if err != nil {
		return err
	}

	verdict := domain.ImplementationVerdictApproved
	var feedback *string
	if reviewResult.IsError {
		verdict = domain.ImplementationVerdictNeedsRevision
		msg := reviewResult.Output
		feedback = &msg
	}

	if verdict == domain.ImplementationVerdictNeedsRevision && previousFingerprint != nil && *previousFingerprint == fingerprint {
		if _, err := c.actor.SubmitCommand(ctx, domain.Command{
			Type:                 domain.CommandCancelImplementation,
			CancelImplementation: &domain.CancelImplementationCmd{Reason: "no changes detected"},
		}); err != nil {
			return err
		}
		return ErrCircuitBreaker
	}

	_, err = c.actor.SubmitCommand(ctx, domain.Command{
		Type: domain.CommandCompleteImplementationReview,
		CompleteImplementationReview: &domain.CompleteImplementationReviewCmd{
			Verdict: verdict, Feedback: feedback,
		},
	})
	if err != nil {
		return err
	}

	if verdict == domain.ImplementationVerdictApproved {
		_, err = c.actor.SubmitCommand(ctx, domain.Command{Type: domain.CommandAcceptImplementation})
		return err
	}
	return nil
}

// invokeAgent runs one agent invocation, retrying after backoff on a
// retryable *agent.RuntimeError up to FailurePolicy.MaxRetries. Every
// attempt is recorded as an InvocationRecorded event, plus an
// AgentConversationRecorded event when it captured a conversation id;
// every attempt that fails with an *agent.RuntimeError also records a
// FailureRecorded event, so the failure history carries one entry per
// such attempt rather than just the terminal one. Any other error is
// returned without a FailureRecorded event.
func (c *Controller) invokeAgent(ctx context.Context, agentID domain.AgentId, prompt string, workingDir domain.WorkingDir, phase domain.PhaseLabel) (agent.Result, error) {
	binding, ok := c.config.Agents[agentID]
	if !ok {
		return agent.Result{}, fmt.Errorf("no agent binding configured for %q", agentID)
	}

	var failure *domain.FailureContext
	for {
		if c.metrics != nil {
			c.metrics.Invocations.WithLabelValues(string(agentID), string(phase)).Inc()
		}

		result, err := c.invoker.Invoke(ctx, binding.Descriptor, prompt, string(workingDir), nil, binding.Timeouts, binding.Parser, c.emit)

		resumeStrategy := domain.ResumeStrategyNone
		var conversationID *domain.ConversationId
		if result.ConversationId != nil {
			cid := domain.ConversationId(*result.ConversationId)
			conversationID = &cid
			resumeStrategy = domain.ResumeStrategyConversationResume
		}
		if _, recordErr := c.actor.SubmitCommand(ctx, domain.Command{
			Type: domain.CommandRecordInvocation,
			RecordInvocation: &domain.RecordInvocationCmd{
				Agent: agentID, Phase: phase, ConversationId: conversationID, ResumeStrategy: resumeStrategy,
			},
		}); recordErr != nil {
			return result, recordErr
		}
		if conversationID != nil {
			if _, recordErr := c.actor.SubmitCommand(ctx, domain.Command{
				Type: domain.CommandRecordAgentConversation,
				RecordAgentConversation: &domain.RecordAgentConversationCmd{
					Agent: agentID, ConversationId: *conversationID, ResumeStrategy: resumeStrategy,
				},
			}); recordErr != nil {
				return result, recordErr
			}
		}

		if err == nil {
			return result, nil
		}

		runtimeErr, ok := err.(*agent.RuntimeError)
		if !ok {
			return result, err
		}

		if failure == nil {
			f := domain.NewFailureContext(runtimeErr.Kind, phase, agentID, c.config.FailurePolicy.MaxRetries)
			failure = &f
		} else {
			f := failure.IncrementRetry()
			failure = &f
		}

		if _, recordErr := c.actor.SubmitCommand(ctx, domain.Command{
			Type:          domain.CommandRecordFailure,
			RecordFailure: &domain.RecordFailureCmd{Failure: *failure},
		}); recordErr != nil {
			return result, recordErr
		}

		if !failure.CanRetry() {
			return result, err
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(time.Duration(c.config.FailurePolicy.BackoffSecs) * time.Second):
		}
	}
}
