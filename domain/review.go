package domain

import "sort"

// ReviewResult is one reviewer's verdict, retained for summary generation.
type ReviewResult struct {
	AgentName     string `json:"agent_name"`
	NeedsRevision bool   `json:"needs_revision"`
	Feedback      string `json:"feedback"`
	Summary       string `json:"summary"`
}

// SequentialReviewState tracks progress through a sequential reviewer
// queue and ensures all reviewers approve the same plan version.
//
// All mutation happens through the aggregate's event application; external
// code must treat this as read-only and use the accessor methods.
type SequentialReviewState struct {
	currentReviewerIndex int
	planVersion          uint32
	approvals            map[AgentId]uint32
	accumulatedReviews   []accumulatedReview
	currentCycleOrder    []AgentId
	lastRejectingReviewer *AgentId
}

type accumulatedReview struct {
	Reviewer AgentId
	Result   ReviewResult
}

// NewSequentialReviewState creates a fresh sequential review state with
// plan_version=1 and no cycle order computed yet.
func NewSequentialReviewState() *SequentialReviewState {
	return &SequentialReviewState{
		planVersion: 1,
		approvals:   make(map[AgentId]uint32),
	}
}

// Clone returns a deep copy suitable for storing in an immutable view/
// snapshot without aliasing mutable maps/slices.
func (s *SequentialReviewState) Clone() *SequentialReviewState {
	if s == nil {
		return nil
	}
	clone := &SequentialReviewState{
		currentReviewerIndex: s.currentReviewerIndex,
		planVersion:          s.planVersion,
		approvals:            make(map[AgentId]uint32, len(s.approvals)),
		accumulatedReviews:   append([]accumulatedReview(nil), s.accumulatedReviews...),
		currentCycleOrder:    append([]AgentId(nil), s.currentCycleOrder...),
	}
	for k, v := range s.approvals {
		clone.approvals[k] = v
	}
	if s.lastRejectingReviewer != nil {
		id := *s.lastRejectingReviewer
		clone.lastRejectingReviewer = &id
	}
	return clone
}

// CurrentReviewerIndex returns the 0-based index into CycleOrder of the
// reviewer currently expected to run.
func (s *SequentialReviewState) CurrentReviewerIndex() int { return s.currentReviewerIndex }

// PlanVersion returns the plan version reviewers must approve against.
func (s *SequentialReviewState) PlanVersion() uint32 { return s.planVersion }

// CurrentReviewer returns the reviewer at CurrentReviewerIndex, or false if
// the cycle order is exhausted or unset.
func (s *SequentialReviewState) CurrentReviewer() (AgentId, bool) {
	if s.currentReviewerIndex < 0 || s.currentReviewerIndex >= len(s.currentCycleOrder) {
		return "", false
	}
	return s.currentCycleOrder[s.currentReviewerIndex], true
}

// NeedsCycleStart reports whether the cycle order has not yet been
// computed for this cycle.
func (s *SequentialReviewState) NeedsCycleStart() bool { return len(s.currentCycleOrder) == 0 }

// AllApproved reports whether every reviewer in reviewerIDs has approved
// the current plan version.
func (s *SequentialReviewState) AllApproved(reviewerIDs []AgentId) bool {
	for _, id := range reviewerIDs {
		if v, ok := s.approvals[id]; !ok || v != s.planVersion {
			return false
		}
	}
	return true
}

// CycleOrder returns the computed reviewer order for the current cycle.
func (s *SequentialReviewState) CycleOrder() []AgentId { return s.currentCycleOrder }

// Approvals returns the reviewer -> approved-plan-version map.
func (s *SequentialReviewState) Approvals() map[AgentId]uint32 { return s.approvals }

// LastRejectingReviewer returns the reviewer who rejected the previous
// plan version, if any.
func (s *SequentialReviewState) LastRejectingReviewer() (AgentId, bool) {
	if s.lastRejectingReviewer == nil {
		return "", false
	}
	return *s.lastRejectingReviewer, true
}

// AccumulatedReviewsForSummary returns the reviews collected so far in
// this cycle, for feedback-summary generation.
func (s *SequentialReviewState) AccumulatedReviewsForSummary() []ReviewResult {
	out := make([]ReviewResult, len(s.accumulatedReviews))
	for i, r := range s.accumulatedReviews {
		out[i] = r.Result
	}
	return out
}

// RecordApprovalSimple records an approval without storing review content.
// Only called from the aggregate's event application.
func (s *SequentialReviewState) RecordApprovalSimple(reviewer AgentId) {
	s.approvals[reviewer] = s.planVersion
}

// RecordApprovalWithResult records an approval along with its review
// content for later summary generation.
func (s *SequentialReviewState) RecordApprovalWithResult(reviewer AgentId, result ReviewResult) {
	s.approvals[reviewer] = s.planVersion
	s.accumulatedReviews = append(s.accumulatedReviews, accumulatedReview{Reviewer: reviewer, Result: result})
}

// IncrementVersion bumps plan_version after a revision and clears all
// approvals and accumulated reviews - stale approvals from the old version
// no longer satisfy AllApproved.
func (s *SequentialReviewState) IncrementVersion() {
	s.planVersion++
	s.approvals = make(map[AgentId]uint32)
	s.accumulatedReviews = nil
}

// AdvanceToNextReviewer moves the cursor to the next reviewer in the cycle
// order.
func (s *SequentialReviewState) AdvanceToNextReviewer() {
	s.currentReviewerIndex++
}

// RecordRejection remembers which reviewer rejected the plan, used as the
// tiebreaker when computing the next cycle's order.
func (s *SequentialReviewState) RecordRejection(reviewer AgentId) {
	id := reviewer
	s.lastRejectingReviewer = &id
}

// StartNewCycle computes and stores the reviewer order for a fresh review
// cycle. Ordering priority:
//  1. Reviewers with fewer past reviews run first (round-robin).
//  2. Ties broken by last-rejector priority (the previous rejector runs
//     first among equals).
//  3. Remaining ties preserve the caller's config order.
//
// Returns the tiebreaker reviewer that was consumed, if any.
func (s *SequentialReviewState) StartNewCycle(reviewerIDs []AgentId, reviewCounts map[AgentId]int) (AgentId, bool) {
	sorted := append([]AgentId(nil), reviewerIDs...)
	lastRejector := s.lastRejectingReviewer
	s.lastRejectingReviewer = nil

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		countA, countB := reviewCounts[a], reviewCounts[b]
		if countA != countB {
			return countA < countB
		}
		if lastRejector != nil {
			if a == *lastRejector {
				return true
			}
			if b == *lastRejector {
				return false
			}
		}
		return false // stable: preserve input order on full tie
	})

	s.currentCycleOrder = sorted
	s.currentReviewerIndex = 0

	if lastRejector != nil {
		return *lastRejector, true
	}
	return "", false
}

// ClearCycleOrder clears the cycle order, called after a revision so the
// next review cycle recomputes it.
func (s *SequentialReviewState) ClearCycleOrder() {
	s.currentCycleOrder = nil
}

// ReviewMode models the Parallel/Sequential(state) union as a tagged
// struct keyed by ReviewModeKind, matching the closed-union discipline used for
// WorkflowEvent.
type ReviewMode struct {
	Kind       ReviewModeKind
	Sequential *SequentialReviewState
}

// ParallelReviewMode constructs a parallel-mode ReviewMode.
func ParallelReviewMode() ReviewMode {
	return ReviewMode{Kind: ReviewModeParallel}
}

// SequentialReviewMode constructs a sequential-mode ReviewMode wrapping
// state.
func SequentialReviewMode(state *SequentialReviewState) ReviewMode {
	return ReviewMode{Kind: ReviewModeSequential, Sequential: state}
}

// CountReviewingInvocations counts past reviewing-phase invocations per
// agent, keyed by the raw display id (the "reviewing/" namespace prefix is
// stripped before counting).
func CountReviewingInvocations(invocations []InvocationRecord) map[AgentId]int {
	counts := make(map[AgentId]int)
	for _, rec := range invocations {
		if rec.Phase != PhaseLabelReviewing {
			continue
		}
		counts[StripReviewingNamespace(rec.Agent)]++
	}
	return counts
}

// AggregateVerdict rolls up per-reviewer approve/reject outcomes according
// to policy.
func AggregateVerdict(policy ReviewAggregationPolicy, approvals, rejections int) bool {
	switch policy {
	case AggregationAnyRejects:
		return rejections == 0
	case AggregationAllReject:
		return approvals > 0
	case AggregationMajority:
		return approvals > rejections
	default:
		return rejections == 0
	}
}
