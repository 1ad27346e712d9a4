// Package domain implements the event-sourced workflow core: commands,
// events, the aggregate that folds them, and the read-optimized view
// projection observers subscribe to.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowId identifies one workflow session aggregate.
type WorkflowId string

// NewWorkflowId generates a fresh, random workflow identifier.
func NewWorkflowId() WorkflowId {
	return WorkflowId(uuid.NewString())
}

// String returns the identifier's canonical string form.
func (w WorkflowId) String() string { return string(w) }

// SessionId is the on-disk session identifier; it is always a WorkflowId
// serialized to string.
type SessionId = WorkflowId

// AgentId is a free-form display id for a configured agent, e.g. "claude"
// or "claude-practices". During review it may be phase-namespaced, e.g.
// "reviewing/claude-practices" - see StripReviewingNamespace.
type AgentId string

const reviewingNamespacePrefix = "reviewing/"

// StripReviewingNamespace removes the "reviewing/" prefix InvocationRecord
// uses to namespace reviewer invocations, returning the raw display id.
func StripReviewingNamespace(id AgentId) AgentId {
	s := string(id)
	if len(s) > len(reviewingNamespacePrefix) && s[:len(reviewingNamespacePrefix)] == reviewingNamespacePrefix {
		return AgentId(s[len(reviewingNamespacePrefix):])
	}
	return id
}

// ConversationId is an opaque per-agent conversation handle, captured from
// an agent's stream (e.g. Codex's thread id).
type ConversationId string

// FeatureName is the human-chosen short name for a workflow's feature.
type FeatureName string

// Objective is free-text describing what the workflow should accomplish.
type Objective string

// WorkingDir is the filesystem directory the workflow operates against.
type WorkingDir string

// PlanPath is the filesystem path of the current plan artifact.
type PlanPath string

// FeedbackPath is the filesystem path of a reviewer's feedback file.
type FeedbackPath string

// MaxIterations bounds how many planning or implementation rounds may run;
// always >= 1.
type MaxIterations uint32

// Iteration is a 1-based round counter.
type Iteration uint32

// TimestampUtc wraps a UTC instant for consistent JSON round-tripping.
type TimestampUtc struct {
	time.Time
}

// NowUtc returns the current instant, truncated to UTC.
func NowUtc() TimestampUtc {
	return TimestampUtc{time.Now().UTC()}
}

// PlanningPhase is the top-level planning state machine label.
type PlanningPhase string

const (
	PlanningPhasePlanning        PlanningPhase = "planning"
	PlanningPhaseReviewing       PlanningPhase = "reviewing"
	PlanningPhaseRevising        PlanningPhase = "revising"
	PlanningPhaseAwaitingDecision PlanningPhase = "awaiting_decision"
	PlanningPhaseComplete        PlanningPhase = "complete"
)

// ImplementationSubPhase is the implementation loop's state machine label.
type ImplementationSubPhase string

const (
	ImplementationSubPhaseImplementing       ImplementationSubPhase = "implementing"
	ImplementationSubPhaseImplementationReview ImplementationSubPhase = "implementation_review"
	ImplementationSubPhaseAwaitingDecision   ImplementationSubPhase = "awaiting_decision"
	ImplementationSubPhaseComplete           ImplementationSubPhase = "complete"
)

// ReviewAggregationPolicy selects how per-reviewer verdicts roll up into a
// single approved/rejected outcome.
type ReviewAggregationPolicy string

const (
	// AggregationAnyRejects: approved iff every reviewer approved.
	AggregationAnyRejects ReviewAggregationPolicy = "any_rejects"
	// AggregationAllReject: approved iff at least one reviewer approved.
	AggregationAllReject ReviewAggregationPolicy = "all_reject"
	// AggregationMajority: approved iff strictly more approvals than
	// rejections; ties count as rejected.
	AggregationMajority ReviewAggregationPolicy = "majority"
)

// ReviewModeKind distinguishes parallel from sequential reviewer execution.
type ReviewModeKind string

const (
	ReviewModeParallel   ReviewModeKind = "parallel"
	ReviewModeSequential ReviewModeKind = "sequential"
)

// ResumeStrategy controls whether a subsequent agent invocation resumes an
// earlier conversation.
type ResumeStrategy string

const (
	ResumeStrategyNone              ResumeStrategy = "none"
	ResumeStrategyConversationResume ResumeStrategy = "conversation_resume"
)

// ImplementationVerdict is the outcome of an implementation-review round.
type ImplementationVerdict string

const (
	ImplementationVerdictApproved      ImplementationVerdict = "approved"
	ImplementationVerdictNeedsRevision ImplementationVerdict = "needs_revision"
)

// RecoveryAction is the user's chosen response to a non-retryable failure.
type RecoveryAction string

const (
	RecoveryActionRetried                  RecoveryAction = "retried"
	RecoveryActionStopped                  RecoveryAction = "stopped"
	RecoveryActionAborted                  RecoveryAction = "aborted"
	RecoveryActionContinuedWithoutFullReview RecoveryAction = "continued_without_full_review"
)

// PhaseLabel identifies which phase an agent invocation occurred under, used
// to key past-invocation counts for sequential reviewer ordering.
type PhaseLabel string

const (
	PhaseLabelPlanning       PhaseLabel = "planning"
	PhaseLabelReviewing      PhaseLabel = "reviewing"
	PhaseLabelRevising       PhaseLabel = "revising"
	PhaseLabelImplementing   PhaseLabel = "implementing"
	PhaseLabelImplementationReview PhaseLabel = "implementation_review"
)

// AgentConversationState records the resume strategy and last known
// conversation handle for one configured agent.
type AgentConversationState struct {
	ResumeStrategy ResumeStrategy   `json:"resume_strategy"`
	ConversationId *ConversationId  `json:"conversation_id,omitempty"`
	LastUsedAt     TimestampUtc     `json:"last_used_at"`
}

// InvocationRecord is one append-only entry in the aggregate's invocation
// history.
type InvocationRecord struct {
	Agent          AgentId          `json:"agent"`
	Phase          PhaseLabel       `json:"phase"`
	Timestamp      TimestampUtc     `json:"timestamp"`
	ConversationId *ConversationId  `json:"conversation_id,omitempty"`
	ResumeStrategy ResumeStrategy   `json:"resume_strategy"`
}

// WorktreeState records a working tree the workflow has attached to, if
// any. Creation of worktrees is out of scope; this only records the fact.
type WorktreeState struct {
	Path      string       `json:"path"`
	Branch    string       `json:"branch"`
	AttachedAt TimestampUtc `json:"attached_at"`
}
