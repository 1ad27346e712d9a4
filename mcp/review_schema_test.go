package mcp

import (
	"testing"

	"github.com/metjm/planning-agent/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewVerdictToDomainVerdict(t *testing.T) {
	approved, err := ReviewVerdictApproved.ToDomainVerdict()
	require.NoError(t, err)
	assert.Equal(t, domain.ImplementationVerdictApproved, approved)

	revision, err := ReviewVerdictNeedsRevision.ToDomainVerdict()
	require.NoError(t, err)
	assert.Equal(t, domain.ImplementationVerdictNeedsRevision, revision)

	_, err = ReviewVerdict("BOGUS").ToDomainVerdict()
	assert.Error(t, err)
}

func TestSubmittedReviewNeedsRevision(t *testing.T) {
	assert.True(t, SubmittedReview{Verdict: ReviewVerdictNeedsRevision}.NeedsRevision())
	assert.False(t, SubmittedReview{Verdict: ReviewVerdictApproved}.NeedsRevision())
}

func TestSubmittedReviewFeedbackContentPrefersFullFeedback(t *testing.T) {
	r := SubmittedReview{Summary: "short", FullFeedback: "# Detailed\n\nfull writeup"}
	assert.Equal(t, "# Detailed\n\nfull writeup", r.FeedbackContent())
}

func TestSubmittedReviewFeedbackContentAssemblesFromParts(t *testing.T) {
	r := SubmittedReview{
		Summary:         "Needs work",
		CriticalIssues:  []string{"missing error handling"},
		Recommendations: []string{"add a retry"},
	}
	content := r.FeedbackContent()
	assert.Contains(t, content, "Needs work")
	assert.Contains(t, content, "## Critical Issues")
	assert.Contains(t, content, "missing error handling")
	assert.Contains(t, content, "## Recommendations")
	assert.Contains(t, content, "add a retry")
}

func TestSubmitReviewSchemaRequiresVerdictAndSummary(t *testing.T) {
	schema := SubmitReviewSchema()
	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"verdict", "summary"}, required)
}
