package session

import "sort"

// ArtifactSet maps artifact names to their text.
type ArtifactSet struct {
	files map[string]string
}

// NewArtifactSet creates an empty set.
func NewArtifactSet() *ArtifactSet {
	return &ArtifactSet{files: make(map[string]string)}
}

// Get returns one artifact.
func (s *ArtifactSet) Get(name string) (string, bool) {
	v, ok := s.files[name]
	return v, ok
}

// Len returns the number of artifacts.
func (s *ArtifactSet) Len() int { return len(s.files) }

// Names returns artifact names, sorted.
func (s *ArtifactSet) Names() []string {
	out := make([]string, 0, len(s.files))
	for n := range s.files {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the set.
func (s *ArtifactSet) Snapshot() map[string]string {
	out := make(map[string]string, len(s.files))
	for k, v := range s.files {
		out[k] = v
	}
	return out
}

// Apply merges updates by key. Artifacts not named in updates are left
// untouched. It returns the sorted names whose content actually changed.
func (s *ArtifactSet) Apply(updates map[string]string) []string {
	var changed []string
	for name, text := range updates {
		if old, ok := s.files[name]; ok && old == text {
			continue
		}
		s.files[name] = text
		changed = append(changed, name)
	}
	sort.Strings(changed)
	return changed
}
