package mcp

import (
	"fmt"
	"strings"

	"github.com/metjm/planning-agent/domain"
)

// ReviewVerdict is the wire-format verdict a reviewer submits through
// the submit_review tool. It uses the SCREAMING_SNAKE_CASE values MCP
// tool schemas conventionally enumerate, distinct from the lowercase
// values domain.ImplementationVerdict stores internally.
type ReviewVerdict string

const (
	ReviewVerdictApproved      ReviewVerdict = "APPROVED"
	ReviewVerdictNeedsRevision ReviewVerdict = "NEEDS_REVISION"
)

// ToDomainVerdict maps the wire verdict onto the internal aggregate
// representation.
func (v ReviewVerdict) ToDomainVerdict() (domain.ImplementationVerdict, error) {
	switch v {
	case ReviewVerdictApproved:
		return domain.ImplementationVerdictApproved, nil
	case ReviewVerdictNeedsRevision:
		return domain.ImplementationVerdictNeedsRevision, nil
	default:
		return "", fmt.Errorf("unknown review verdict %q", string(v))
	}
}

// SubmittedReview is the decoded argument payload of a submit_review
// tool call.
type SubmittedReview struct {
	Verdict         ReviewVerdict `json:"verdict"`
	Summary         string        `json:"summary"`
	CriticalIssues  []string      `json:"critical_issues,omitempty"`
	Recommendations []string      `json:"recommendations,omitempty"`
	FullFeedback    string        `json:"full_feedback,omitempty"`
}

// NeedsRevision reports whether the submitted verdict requests changes.
func (r SubmittedReview) NeedsRevision() bool {
	return r.Verdict == ReviewVerdictNeedsRevision
}

// FeedbackContent returns FullFeedback if the reviewer supplied one, or
// else assembles an equivalent markdown document from Summary,
// CriticalIssues and Recommendations.
func (r SubmittedReview) FeedbackContent() string {
	if strings.TrimSpace(r.FullFeedback) != "" {
		return r.FullFeedback
	}

	var b strings.Builder
	b.WriteString(r.Summary)
	b.WriteString("\n")

	if len(r.CriticalIssues) > 0 {
		b.WriteString("\n## Critical Issues\n\n")
		for _, issue := range r.CriticalIssues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}
	if len(r.Recommendations) > 0 {
		b.WriteString("\n## Recommendations\n\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}
	return b.String()
}

// SubmitReviewSchema builds the JSON Schema advertised for the
// submit_review tool's input.
func SubmitReviewSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"verdict": map[string]any{
				"type": "string",
				"enum": []string{string(ReviewVerdictApproved), string(ReviewVerdictNeedsRevision)},
				"description": "Overall review verdict.",
			},
			"summary": map[string]any{
				"type":        "string",
				"description": "One-paragraph summary of the review.",
			},
			"critical_issues": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Issues that block approval.",
			},
			"recommendations": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Non-blocking suggestions.",
			},
			"full_feedback": map[string]any{
				"type":        "string",
				"description": "Complete markdown feedback; overrides the assembled summary/issues/recommendations when present.",
			},
		},
		"required": []string{"verdict", "summary"},
	}
}

// GetPlanSchema builds the JSON Schema advertised for the get_plan
// tool's input, which takes no arguments.
func GetPlanSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}
