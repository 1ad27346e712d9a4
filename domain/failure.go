package domain

// MaxFailureHistory bounds how many FailureContext entries the aggregate
// retains; oldest entries are evicted first.
const MaxFailureHistory = 50

// FailureKind is the typed taxonomy of agent-invocation failures.
type FailureKind struct {
	Tag        FailureKindTag
	ProcessExitCode int
	ParseMessage    string
	UnknownMessage  string
}

// FailureKindTag discriminates the FailureKind union.
type FailureKindTag string

const (
	FailureKindTimeout          FailureKindTag = "timeout"
	FailureKindNetwork          FailureKindTag = "network"
	FailureKindProcessExit      FailureKindTag = "process_exit"
	FailureKindParseFailure     FailureKindTag = "parse_failure"
	FailureKindEmptyOutput      FailureKindTag = "empty_output"
	FailureKindAllReviewersFailed FailureKindTag = "all_reviewers_failed"
	FailureKindUnknown          FailureKindTag = "unknown"
)

// NewTimeoutFailure constructs a Timeout FailureKind.
func NewTimeoutFailure() FailureKind { return FailureKind{Tag: FailureKindTimeout} }

// NewNetworkFailure constructs a Network FailureKind.
func NewNetworkFailure() FailureKind { return FailureKind{Tag: FailureKindNetwork} }

// NewProcessExitFailure constructs a ProcessExit FailureKind carrying the
// child's exit code.
func NewProcessExitFailure(code int) FailureKind {
	return FailureKind{Tag: FailureKindProcessExit, ProcessExitCode: code}
}

// NewParseFailure constructs a ParseFailure FailureKind carrying the parser
// error message.
func NewParseFailure(msg string) FailureKind {
	return FailureKind{Tag: FailureKindParseFailure, ParseMessage: msg}
}

// NewEmptyOutputFailure constructs an EmptyOutput FailureKind.
func NewEmptyOutputFailure() FailureKind { return FailureKind{Tag: FailureKindEmptyOutput} }

// NewAllReviewersFailedFailure constructs an AllReviewersFailed FailureKind.
func NewAllReviewersFailedFailure() FailureKind {
	return FailureKind{Tag: FailureKindAllReviewersFailed}
}

// NewUnknownFailure constructs an Unknown FailureKind carrying a free-text
// description.
func NewUnknownFailure(msg string) FailureKind {
	return FailureKind{Tag: FailureKindUnknown, UnknownMessage: msg}
}

// IsRetryable reports whether this kind of failure is eligible for
// automatic retry (subject to the caller's remaining retry budget).
func (k FailureKind) IsRetryable() bool {
	switch k.Tag {
	case FailureKindTimeout, FailureKindNetwork, FailureKindEmptyOutput, FailureKindAllReviewersFailed:
		return true
	default:
		return false
	}
}

// DisplayName returns a short human-readable label for the failure kind.
func (k FailureKind) DisplayName() string {
	switch k.Tag {
	case FailureKindTimeout:
		return "timeout"
	case FailureKindNetwork:
		return "network error"
	case FailureKindProcessExit:
		return "process exit"
	case FailureKindParseFailure:
		return "parse failure"
	case FailureKindEmptyOutput:
		return "empty output"
	case FailureKindAllReviewersFailed:
		return "all reviewers failed"
	default:
		return "unknown"
	}
}

// FailureContext records one failure occurrence and its retry/recovery
// bookkeeping.
type FailureContext struct {
	Kind           FailureKind      `json:"kind"`
	Phase          PhaseLabel       `json:"phase"`
	Agent          AgentId          `json:"agent"`
	RetryCount     int              `json:"retry_count"`
	MaxRetries     int              `json:"max_retries"`
	FailedAt       TimestampUtc     `json:"failed_at"`
	RecoveryAction *RecoveryAction  `json:"recovery_action,omitempty"`
}

// NewFailureContext constructs a FailureContext at retry_count=0.
func NewFailureContext(kind FailureKind, phase PhaseLabel, agent AgentId, maxRetries int) FailureContext {
	return FailureContext{
		Kind:       kind,
		Phase:      phase,
		Agent:      agent,
		RetryCount: 0,
		MaxRetries: maxRetries,
		FailedAt:   NowUtc(),
	}
}

// CanRetry reports whether this failure is both retryable in kind and has
// retry budget remaining.
func (f FailureContext) CanRetry() bool {
	return f.Kind.IsRetryable() && f.RetryCount < f.MaxRetries
}

// IncrementRetry returns a copy with retry_count advanced and failed_at
// refreshed to now.
func (f FailureContext) IncrementRetry() FailureContext {
	f.RetryCount++
	f.FailedAt = NowUtc()
	return f
}

// WithRecoveryAction returns a copy with recovery_action set.
func (f FailureContext) WithRecoveryAction(action RecoveryAction) FailureContext {
	f.RecoveryAction = &action
	return f
}

// OnAllReviewersFailedPolicy selects what happens when every reviewer in a
// cycle fails.
type OnAllReviewersFailedPolicy string

const (
	OnAllReviewersFailedAbort              OnAllReviewersFailedPolicy = "abort"
	OnAllReviewersFailedSaveState          OnAllReviewersFailedPolicy = "save_state"
	OnAllReviewersFailedContinueWithoutReview OnAllReviewersFailedPolicy = "continue_without_review"
)

// FailurePolicy is the configured retry/backoff/recovery policy.
type FailurePolicy struct {
	MaxRetries            int
	BackoffSecs            int
	OnAllReviewersFailed   OnAllReviewersFailedPolicy
}

// DefaultFailurePolicy returns the documented defaults: 2 retries, 5s
// backoff, abort on all-reviewers-failed.
func DefaultFailurePolicy() FailurePolicy {
	return FailurePolicy{
		MaxRetries:          2,
		BackoffSecs:         5,
		OnAllReviewersFailed: OnAllReviewersFailedAbort,
	}
}

// AppendFailure appends ctx to history, evicting the oldest entry once the
// history exceeds MaxFailureHistory.
func AppendFailure(history []FailureContext, ctx FailureContext) []FailureContext {
	history = append(history, ctx)
	if len(history) > MaxFailureHistory {
		history = history[len(history)-MaxFailureHistory:]
	}
	return history
}
