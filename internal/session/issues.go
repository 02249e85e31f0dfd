package session

import "forge/internal/types"

// IssueQueue is the running list of outstanding issues reported by skills.
type IssueQueue struct {
	items []types.Issue
}

// NewIssueQueue creates an empty queue.
func NewIssueQueue() *IssueQueue {
	return &IssueQueue{}
}

// Add appends issues, skipping exact duplicates and empty messages.
func (q *IssueQueue) Add(issues ...types.Issue) {
	for _, is := range issues {
		if is.Message == "" || q.contains(is) {
			continue
		}
		q.items = append(q.items, is)
	}
}

func (q *IssueQueue) contains(is types.Issue) bool {
	for _, existing := range q.items {
		if existing == is {
			return true
		}
	}
	return false
}

// Clear removes issues of kind. When artifact is non-empty only issues bound
// to that artifact, or bound to none, are removed.
func (q *IssueQueue) Clear(kind types.IssueKind, artifact string) int {
	kept := q.items[:0]
	removed := 0
	for _, is := range q.items {
		match := is.Kind == kind && (artifact == "" || is.Artifact == "" || is.Artifact == artifact)
		if match {
			removed++
			continue
		}
		kept = append(kept, is)
	}
	q.items = kept
	return removed
}

// Outstanding returns a copy of all issues.
func (q *IssueQueue) Outstanding() []types.Issue {
	return append([]types.Issue(nil), q.items...)
}

// OfKind returns issues of kind in insertion order.
func (q *IssueQueue) OfKind(kind types.IssueKind) []types.Issue {
	var out []types.Issue
	for _, is := range q.items {
		if is.Kind == kind {
			out = append(out, is)
		}
	}
	return out
}

// Has reports whether any issue of kind is outstanding.
func (q *IssueQueue) Has(kind types.IssueKind) bool {
	return len(q.OfKind(kind)) > 0
}

// Len returns the number of outstanding issues.
func (q *IssueQueue) Len() int { return len(q.items) }
