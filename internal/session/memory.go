// Package session holds the state of one generation session. Memory is split
// into owned parts (artifacts, conflicts, issues, counters, ledger) so each
// mutation path is explicit. A Memory belongs to exactly one loop; it is not
// safe for concurrent writers.
package session

import (
	"time"

	"forge/internal/ledger"
	"forge/internal/types"

	"github.com/google/uuid"
)

// Inputs is the read-only knowledge snapshot a session runs against.
type Inputs struct {
	Spec   *types.Specification
	Schema *types.SchemaContext
	Rules  *types.DomainRules
}

// Counters track loop progress.
type Counters struct {
	Steps int
	// NoChangeStreak counts consecutive steps that changed no artifact.
	NoChangeStreak int
	Analyses       int
	Failures       int
}

// Memory is the mutable state of one session.
type Memory struct {
	ID        string
	CreatedAt time.Time
	Inputs    Inputs

	Artifacts *ArtifactSet
	Conflicts *ConflictSet
	Issues    *IssueQueue
	Ledger    *ledger.Ledger
	Counters  Counters
}

// Option configures a Memory.
type Option func(*Memory)

// WithLedger supplies a pre-built ledger (e.g. one with an injected clock).
func WithLedger(l *ledger.Ledger) Option {
	return func(m *Memory) {
		if l != nil {
			m.Ledger = l
		}
	}
}

// WithArtifacts seeds the session with existing files.
func WithArtifacts(files map[string]string) Option {
	return func(m *Memory) {
		m.Artifacts.Apply(files)
	}
}

// WithClock sets CreatedAt from now.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		if now != nil {
			m.CreatedAt = now()
		}
	}
}

// NewMemory creates an empty session for in.
func NewMemory(in Inputs, opts ...Option) *Memory {
	m := &Memory{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Inputs:    in,
		Artifacts: NewArtifactSet(),
		Conflicts: NewConflictSet(),
		Issues:    NewIssueQueue(),
		Ledger:    ledger.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MissingArtifacts returns required artifacts the session does not hold yet.
func (m *Memory) MissingArtifacts() []string {
	var out []string
	for _, name := range m.Inputs.Spec.RequiredArtifacts() {
		if _, ok := m.Artifacts.Get(name); !ok {
			out = append(out, name)
		}
	}
	return out
}
