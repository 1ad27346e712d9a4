package verification

import (
	"context"
	"fmt"
	"os"

	"github.com/metjm/planning-agent/agent"
	"github.com/metjm/planning-agent/workflow"
)

// Loop drives one plan's verify/fix cycle to completion, independent
// of the event-sourced planning workflow: it has no aggregate and no
// actor, only the State persisted alongside the plan.
type Loop struct {
	invoker  workflow.AgentInvoker
	verifier workflow.AgentBinding
	fixer    workflow.AgentBinding
	emit     agent.EventEmitter
}

// NewLoop creates a Loop bound to the given verifying and fixing agent
// bindings.
func NewLoop(invoker workflow.AgentInvoker, verifier, fixer workflow.AgentBinding, emit agent.EventEmitter) *Loop {
	return &Loop{invoker: invoker, verifier: verifier, fixer: fixer, emit: emit}
}

// Run advances state until ShouldContinue is false, persisting after
// every transition so a crash mid-loop resumes cleanly.
func (l *Loop) Run(ctx context.Context, state *State) error {
	for state.ShouldContinue() {
		var err error
		switch state.Phase {
		case PhaseVerifying:
			err = l.runVerifying(ctx, state)
		case PhaseFixing:
			err = l.runFixing(ctx, state)
		default:
			return fmt.Errorf("unhandled verification phase %q", state.Phase)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) runVerifying(ctx context.Context, state *State) error {
	result, err := l.invoker.Invoke(
		ctx, l.verifier.Descriptor, verifyingPrompt(state), state.WorkingDir,
		nil, l.verifier.Timeouts, l.verifier.Parser, l.emit,
	)
	if err != nil {
		return fmt.Errorf("invoke verifying agent: %w", err)
	}

	if err := os.WriteFile(state.ReportPath(), []byte(result.Output), 0o644); err != nil {
		return fmt.Errorf("write verification report: %w", err)
	}

	if result.IsError {
		state.LastVerdict = "NEEDS_REVISION"
		if err := state.Transition(PhaseFixing); err != nil {
			return err
		}
	} else {
		state.LastVerdict = "APPROVED"
		if err := state.Transition(PhaseComplete); err != nil {
			return err
		}
	}
	return state.Save()
}

func (l *Loop) runFixing(ctx context.Context, state *State) error {
	report, err := os.ReadFile(state.ReportPath())
	if err != nil {
		return fmt.Errorf("read verification report: %w", err)
	}

	if _, err := l.invoker.Invoke(
		ctx, l.fixer.Descriptor, fixingPrompt(state, string(report)), state.WorkingDir,
		nil, l.fixer.Timeouts, l.fixer.Parser, l.emit,
	); err != nil {
		return fmt.Errorf("invoke fixing agent: %w", err)
	}

	if err := state.Transition(PhaseVerifying); err != nil {
		return err
	}
	return state.Save()
}

func verifyingPrompt(state *State) string {
	return fmt.Sprintf(
		"Verify that the implementation in %s satisfies the plan at %s.\nThis is verification iteration %d of %d.\nApprove, or reject with actionable feedback explaining what still needs work.",
		state.WorkingDir, state.PlanFilePath(), state.Iteration, state.MaxIterations,
	)
}

func fixingPrompt(state *State, report string) string {
	return fmt.Sprintf(
		"The verification report below found problems with the implementation in %s against the plan at %s. Fix them.\n\n%s",
		state.WorkingDir, state.PlanFilePath(), report,
	)
}
