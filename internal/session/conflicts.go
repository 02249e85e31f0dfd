package session

import (
	"sort"

	"forge/internal/types"

	"github.com/google/uuid"
)

// MergeStats summarizes one ConflictSet.Merge.
type MergeStats struct {
	Opened   []types.Conflict
	Resolved int
	Kept     int
}

// ConflictSet is the session's conflict history. Entries are never removed:
// a conflict that stops showing up is marked resolved, and one that comes back
// is reopened under its original ID.
type ConflictSet struct {
	entries []types.Conflict
	index   map[types.ConflictKey]int
}

// NewConflictSet creates an empty set.
func NewConflictSet() *ConflictSet {
	return &ConflictSet{index: make(map[types.ConflictKey]int)}
}

// Merge folds a fresh analysis into the history.
func (s *ConflictSet) Merge(step int, fresh []types.Conflict) MergeStats {
	var stats MergeStats
	seen := make(map[types.ConflictKey]bool, len(fresh))

	for _, c := range fresh {
		key := c.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		if i, ok := s.index[key]; ok {
			prev := s.entries[i]
			c.ID = prev.ID
			c.DetectedStep = prev.DetectedStep
			c.Status = types.ConflictOpen
			s.entries[i] = c
			if prev.IsOpen() {
				stats.Kept++
			} else {
				stats.Opened = append(stats.Opened, c)
			}
			continue
		}

		c.ID = uuid.NewString()
		c.Status = types.ConflictOpen
		c.DetectedStep = step
		s.index[key] = len(s.entries)
		s.entries = append(s.entries, c)
		stats.Opened = append(stats.Opened, c)
	}

	for i := range s.entries {
		if s.entries[i].IsOpen() && !seen[s.entries[i].Key()] {
			s.entries[i].Status = types.ConflictResolved
			stats.Resolved++
		}
	}
	return stats
}

// All returns every conflict ever recorded, in detection order.
func (s *ConflictSet) All() []types.Conflict {
	return append([]types.Conflict(nil), s.entries...)
}

// Open returns unresolved conflicts, most severe first.
func (s *ConflictSet) Open() []types.Conflict {
	return s.OpenAtLeast(types.SeverityLow)
}

// OpenAtLeast returns unresolved conflicts of at least min severity, most
// severe first, then by path.
func (s *ConflictSet) OpenAtLeast(min types.Severity) []types.Conflict {
	var out []types.Conflict
	for _, c := range s.entries {
		if c.IsOpen() && c.Severity.AtLeast(min) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if a, b := out[i].Severity.Rank(), out[j].Severity.Rank(); a != b {
			return a > b
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// Len returns the number of recorded conflicts.
func (s *ConflictSet) Len() int { return len(s.entries) }
