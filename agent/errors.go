package agent

import (
	"fmt"

	"github.com/metjm/planning-agent/domain"
)

// RuntimeError wraps the domain.FailureKind an invocation failure maps
// to, so callers can build a FailureContext via errors.As without the
// runtime package depending on the controller's retry bookkeeping.
type RuntimeError struct {
	Kind domain.FailureKind
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("agent invocation failed: %s", e.Kind.DisplayName())
}

func NewTimeoutError(scope string) error {
	return &RuntimeError{Kind: domain.NewTimeoutFailure()}
}

func NewNetworkError(cause error) error {
	return &RuntimeError{Kind: domain.NewNetworkFailure()}
}

func NewProcessExitError(code int) error {
	return &RuntimeError{Kind: domain.NewProcessExitFailure(code)}
}

func NewEmptyOutputError() error {
	return &RuntimeError{Kind: domain.NewEmptyOutputFailure()}
}
