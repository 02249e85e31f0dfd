// Package ledger records negotiation between the spec-agent and the
// impl-agent: informational messages, proposed conflict patches and change
// requests. Entries are append-only. Nothing here applies a patch or decides
// a change request; those stay pending for a future mediator.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"forge/internal/logging"
	"forge/internal/types"

	"github.com/google/uuid"
)

// ErrInvalidEntry is returned when an entry fails validation.
var ErrInvalidEntry = errors.New("invalid ledger entry")

// Snapshot is a deep copy of the ledger contents.
type Snapshot struct {
	Messages       []types.AgentMessage  `json:"messages"`
	Patches        []types.ConflictPatch `json:"patches"`
	ChangeRequests []types.ChangeRequest `json:"change_requests"`
}

// Ledger is the append-only negotiation record for one session.
type Ledger struct {
	mu       sync.Mutex
	now      func() time.Time
	messages []types.AgentMessage
	patches  []types.ConflictPatch
	requests []types.ChangeRequest
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock injects the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidEntry, fmt.Sprintf(format, args...))
}

func checkParties(from, to string) error {
	if strings.TrimSpace(from) == "" {
		return invalid("from is empty")
	}
	if strings.TrimSpace(to) == "" {
		return invalid("to is empty")
	}
	return nil
}

func checkPatch(p types.ConflictPatch) error {
	if p.Target != types.TargetSpec && p.Target != types.TargetImplementation {
		return invalid("patch target %q must be SPEC or IMPLEMENTATION", p.Target)
	}
	if !p.Operation.Valid() {
		return invalid("patch operation %q must be add, delete or modify", p.Operation)
	}
	if strings.TrimSpace(p.Path) == "" {
		return invalid("patch path is empty")
	}
	if strings.TrimSpace(p.ProposedBy) == "" {
		return invalid("patch proposer is empty")
	}
	return nil
}

// SendMessage appends an informational message. A proposed fix, when given,
// is validated and also recorded as a patch.
func (l *Ledger) SendMessage(from, to, message string, proposedFix *types.ConflictPatch) (types.AgentMessage, error) {
	if err := checkParties(from, to); err != nil {
		return types.AgentMessage{}, err
	}
	if strings.TrimSpace(message) == "" {
		return types.AgentMessage{}, invalid("message is empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	msg := types.AgentMessage{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Message:   message,
		Timestamp: now,
	}
	if proposedFix != nil {
		patch := *proposedFix
		if patch.ProposedBy == "" {
			patch.ProposedBy = from
		}
		if err := checkPatch(patch); err != nil {
			return types.AgentMessage{}, err
		}
		patch.ID = uuid.NewString()
		patch.Timestamp = now
		l.patches = append(l.patches, patch)
		msg.ProposedFix = &patch
	}
	l.messages = append(l.messages, msg)

	logging.Get(logging.CategoryLedger).Debug("message %s -> %s: %s", from, to, message)
	return copyMessage(msg), nil
}

// AddPatch validates and appends a proposed conflict patch.
func (l *Ledger) AddPatch(p types.ConflictPatch) (types.ConflictPatch, error) {
	if err := checkPatch(p); err != nil {
		return types.ConflictPatch{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p.ID = uuid.NewString()
	p.Timestamp = l.now()
	l.patches = append(l.patches, p)

	logging.Get(logging.CategoryLedger).Debug("patch %s %s on %s by %s", p.Operation, p.Target, p.Path, p.ProposedBy)
	return p, nil
}

// AddChangeRequest validates and appends a change request. Decision fields
// are cleared; only a mediator may set them.
func (l *Ledger) AddChangeRequest(cr types.ChangeRequest) (types.ChangeRequest, error) {
	if err := checkParties(cr.From, cr.To); err != nil {
		return types.ChangeRequest{}, err
	}
	if strings.TrimSpace(cr.Description) == "" {
		return types.ChangeRequest{}, invalid("change request description is empty")
	}
	if cr.Priority == "" {
		cr.Priority = types.SeverityMedium
	}
	if cr.Priority.Rank() == 0 {
		return types.ChangeRequest{}, invalid("change request priority %q", cr.Priority)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cr.ID = uuid.NewString()
	cr.Timestamp = l.now()
	cr.Accepted = nil
	cr.Response = nil
	l.requests = append(l.requests, cr)

	logging.Get(logging.CategoryLedger).Debug("change request %s -> %s [%s]: %s", cr.From, cr.To, cr.Priority, cr.Description)
	return cr, nil
}

// MessagesFor returns messages addressed to agent, oldest first.
func (l *Ledger) MessagesFor(agent string) []types.AgentMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.AgentMessage
	for _, m := range l.messages {
		if m.To == agent {
			out = append(out, copyMessage(m))
		}
	}
	return out
}

// ChangeRequestsFor returns change requests addressed to agent, oldest first.
func (l *Ledger) ChangeRequestsFor(agent string) []types.ChangeRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.ChangeRequest
	for _, cr := range l.requests {
		if cr.To == agent {
			out = append(out, cr)
		}
	}
	return out
}

// Patches returns every recorded patch, oldest first.
func (l *Ledger) Patches() []types.ConflictPatch {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.ConflictPatch(nil), l.patches...)
}

// PatchesFor returns patches proposed for a conflict.
func (l *Ledger) PatchesFor(conflictID string) []types.ConflictPatch {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []types.ConflictPatch
	for _, p := range l.patches {
		if p.OriginatingConflictID == conflictID {
			out = append(out, p)
		}
	}
	return out
}

// HasPatchFor reports whether any patch references conflictID.
func (l *Ledger) HasPatchFor(conflictID string) bool {
	return len(l.PatchesFor(conflictID)) > 0
}

// Len returns the total number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages) + len(l.patches) + len(l.requests)
}

// Snapshot returns a deep copy of all entries.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Snapshot{
		Messages:       make([]types.AgentMessage, 0, len(l.messages)),
		Patches:        append([]types.ConflictPatch{}, l.patches...),
		ChangeRequests: append([]types.ChangeRequest{}, l.requests...),
	}
	for _, m := range l.messages {
		s.Messages = append(s.Messages, copyMessage(m))
	}
	return s
}

func copyMessage(m types.AgentMessage) types.AgentMessage {
	if m.ProposedFix != nil {
		fix := *m.ProposedFix
		m.ProposedFix = &fix
	}
	return m
}
