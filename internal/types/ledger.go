package types

import "time"

// =============================================================================
// NEGOTIATION LEDGER ENTRIES
// =============================================================================

// Agent names used by the loop when posting to the ledger.
const (
	AgentSpec           = "spec-agent"
	AgentImplementation = "impl-agent"
	AgentOrchestrator   = "orchestrator"
)

// AgentForTarget maps a conflict target to the producer that owns it.
func AgentForTarget(t Target) string {
	if t == TargetSpec {
		return AgentSpec
	}
	return AgentImplementation
}

// PatchOperation is the edit a ConflictPatch proposes.
type PatchOperation string

const (
	PatchAdd    PatchOperation = "add"
	PatchDelete PatchOperation = "delete"
	PatchModify PatchOperation = "modify"
)

// Valid reports whether op is add, delete or modify.
func (op PatchOperation) Valid() bool {
	return op == PatchAdd || op == PatchDelete || op == PatchModify
}

// AgentMessage is an informational note between agents.
type AgentMessage struct {
	ID          string         `json:"id"`
	From        string         `json:"from"`
	To          string         `json:"to"`
	Message     string         `json:"message"`
	ProposedFix *ConflictPatch `json:"proposed_fix,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ConflictPatch is a proposed edit. Nothing in forge applies it.
type ConflictPatch struct {
	ID                    string         `json:"id"`
	Target                Target         `json:"target"`
	Operation             PatchOperation `json:"operation"`
	Path                  string         `json:"path"`
	Value                 string         `json:"value,omitempty"`
	OriginatingConflictID string         `json:"originating_conflict_id,omitempty"`
	ProposedBy            string         `json:"proposed_by"`
	Timestamp             time.Time      `json:"timestamp"`
}

// ChangeRequest is a pending ask between producer agents. Accepted and
// Response stay unset until a mediator exists to decide them.
type ChangeRequest struct {
	ID              string    `json:"id"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	Description     string    `json:"description"`
	SuggestedAction string    `json:"suggested_action,omitempty"`
	Priority        Severity  `json:"priority"`
	Accepted        *bool     `json:"accepted,omitempty"`
	Response        *string   `json:"response,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}
