package workflow

import (
	"fmt"
	"strings"

	"github.com/metjm/planning-agent/domain"
)

// PlanningPrompt builds the full-context prompt for the planning agent's
// first invocation.
func PlanningPrompt(view domain.WorkflowView) string {
	return fmt.Sprintf(
		"Draft an implementation plan for %q.\n\nObjective:\n%s\n\nWorking directory: %s\nWrite the plan to %s.",
		view.FeatureName, view.Objective, view.WorkingDir, view.PlanPath,
	)
}

// ReviewPrompt builds the prompt for one reviewer invocation against the
// current plan.
func ReviewPrompt(view domain.WorkflowView) string {
	return fmt.Sprintf(
		"Review the plan at %s for %q against this objective:\n%s\n\nApprove it, or reject with actionable feedback.",
		view.PlanPath, view.FeatureName, view.Objective,
	)
}

// RevisionPrompt summarizes accumulated reviewer feedback for the
// revision agent.
func RevisionPrompt(view domain.WorkflowView, feedbackSummary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Revise the plan at %s for %q based on reviewer feedback:\n\n", view.PlanPath, view.FeatureName)
	b.WriteString(feedbackSummary)
	return b.String()
}

// ImplementationPrompt builds the prompt for one implementation round.
func ImplementationPrompt(view domain.WorkflowView) string {
	return fmt.Sprintf(
		"Implement the plan at %s for %q in %s. This is iteration %d of %d.",
		view.PlanPath, view.FeatureName, view.WorkingDir, view.ImplementationState.Iteration, view.ImplementationState.MaxIterations,
	)
}

// ImplementationReviewPrompt builds the prompt asking an agent to judge
// whether an implementation round satisfies the plan.
func ImplementationReviewPrompt(view domain.WorkflowView) string {
	return fmt.Sprintf(
		"Review the code changes in %s against the plan at %s for %q. Approve, or request revision with actionable feedback.",
		view.WorkingDir, view.PlanPath, view.FeatureName,
	)
}

// SummarizeFeedback joins per-reviewer feedback file contents (already
// read by the caller) into one block for RevisionPrompt.
func SummarizeFeedback(perReviewer map[domain.AgentId]string) string {
	var b strings.Builder
	for reviewer, feedback := range perReviewer {
		fmt.Fprintf(&b, "### %s\n%s\n\n", reviewer, feedback)
	}
	return b.String()
}
