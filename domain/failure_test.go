package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureKindRetryability(t *testing.T) {
	assert.True(t, NewTimeoutFailure().IsRetryable())
	assert.True(t, NewNetworkFailure().IsRetryable())
	assert.True(t, NewEmptyOutputFailure().IsRetryable())
	assert.True(t, NewAllReviewersFailedFailure().IsRetryable())

	assert.False(t, NewProcessExitFailure(1).IsRetryable())
	assert.False(t, NewParseFailure("bad json").IsRetryable())
	assert.False(t, NewUnknownFailure("???").IsRetryable())
}

func TestFailureContextCanRetryRespectsBudget(t *testing.T) {
	ctx := NewFailureContext(NewTimeoutFailure(), PhaseLabelImplementing, "claude", 2)
	assert.True(t, ctx.CanRetry())

	ctx = ctx.IncrementRetry()
	assert.Equal(t, 1, ctx.RetryCount)
	assert.True(t, ctx.CanRetry())

	ctx = ctx.IncrementRetry()
	assert.Equal(t, 2, ctx.RetryCount)
	assert.False(t, ctx.CanRetry(), "retry budget exhausted")
}

func TestFailureContextCanRetryRespectsKind(t *testing.T) {
	ctx := NewFailureContext(NewProcessExitFailure(127), PhaseLabelImplementing, "claude", 2)
	assert.False(t, ctx.CanRetry(), "process exit is not a retryable kind")
}

func TestWithRecoveryActionIsImmutable(t *testing.T) {
	ctx := NewFailureContext(NewNetworkFailure(), PhaseLabelReviewing, "security", 1)
	withAction := ctx.WithRecoveryAction(RecoveryActionRetried)

	assert.Nil(t, ctx.RecoveryAction, "original value must be unaffected")
	require := withAction.RecoveryAction
	assert.NotNil(t, require)
	assert.Equal(t, RecoveryActionRetried, *require)
}

func TestAppendFailureEvictsOldestPastCap(t *testing.T) {
	var history []FailureContext
	for i := 0; i < MaxFailureHistory+10; i++ {
		history = AppendFailure(history, NewFailureContext(NewTimeoutFailure(), PhaseLabelPlanning, "claude", 2))
	}
	assert.Len(t, history, MaxFailureHistory)
}

func TestDefaultFailurePolicy(t *testing.T) {
	p := DefaultFailurePolicy()
	assert.Equal(t, 2, p.MaxRetries)
	assert.Equal(t, 5, p.BackoffSecs)
	assert.Equal(t, OnAllReviewersFailedAbort, p.OnAllReviewersFailed)
}
