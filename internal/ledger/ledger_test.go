package ledger

import (
	"sync"
	"testing"
	"time"

	"forge/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestLedger() *Ledger {
	return New(WithClock(func() time.Time { return fixed }))
}

func TestSendMessage(t *testing.T) {
	l := newTestLedger()

	msg, err := l.SendMessage(types.AgentOrchestrator, types.AgentImplementation, "Chart is missing", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, fixed, msg.Timestamp)

	assert.Len(t, l.MessagesFor(types.AgentImplementation), 1)
	assert.Empty(t, l.MessagesFor(types.AgentSpec))
}

func TestSendMessageWithFixRecordsPatch(t *testing.T) {
	l := newTestLedger()

	fix := &types.ConflictPatch{
		Target:                types.TargetSpec,
		Operation:             types.PatchModify,
		Path:                  "Chart.props.title",
		Value:                 "Revenue",
		OriginatingConflictID: "c-1",
	}
	msg, err := l.SendMessage(types.AgentImplementation, types.AgentSpec, "rename title", fix)
	require.NoError(t, err)
	require.NotNil(t, msg.ProposedFix)
	assert.Equal(t, types.AgentImplementation, msg.ProposedFix.ProposedBy)
	assert.True(t, l.HasPatchFor("c-1"))

	// returned copies do not alias ledger state
	msg.ProposedFix.Value = "tampered"
	assert.Equal(t, "Revenue", l.Snapshot().Messages[0].ProposedFix.Value)
}

func TestValidation(t *testing.T) {
	l := newTestLedger()

	tests := []struct {
		name string
		call func() error
	}{
		{"empty from", func() error { _, err := l.SendMessage("", "x", "m", nil); return err }},
		{"empty to", func() error { _, err := l.SendMessage("x", " ", "m", nil); return err }},
		{"empty message", func() error { _, err := l.SendMessage("x", "y", "", nil); return err }},
		{"BOTH target", func() error {
			_, err := l.AddPatch(types.ConflictPatch{Target: types.TargetBoth, Operation: types.PatchAdd, Path: "p", ProposedBy: "x"})
			return err
		}},
		{"bad operation", func() error {
			_, err := l.AddPatch(types.ConflictPatch{Target: types.TargetSpec, Operation: "replace", Path: "p", ProposedBy: "x"})
			return err
		}},
		{"bad fix on message", func() error {
			_, err := l.SendMessage("x", "y", "m", &types.ConflictPatch{Target: "NEITHER", Operation: types.PatchAdd, Path: "p"})
			return err
		}},
		{"change request without parties", func() error {
			_, err := l.AddChangeRequest(types.ChangeRequest{Description: "d"})
			return err
		}},
		{"change request bad priority", func() error {
			_, err := l.AddChangeRequest(types.ChangeRequest{From: "a", To: "b", Description: "d", Priority: "urgent"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), ErrInvalidEntry)
		})
	}
	assert.Equal(t, 0, l.Len())
}

func TestChangeRequestStaysPending(t *testing.T) {
	l := newTestLedger()
	yes := true
	resp := "done"

	cr, err := l.AddChangeRequest(types.ChangeRequest{
		From:        types.AgentImplementation,
		To:          types.AgentSpec,
		Description: "drop the gauge",
		Accepted:    &yes,
		Response:    &resp,
	})
	require.NoError(t, err)
	assert.Nil(t, cr.Accepted)
	assert.Nil(t, cr.Response)
	assert.Equal(t, types.SeverityMedium, cr.Priority)
	assert.Len(t, l.ChangeRequestsFor(types.AgentSpec), 1)
}

func TestAppendOnlyConcurrent(t *testing.T) {
	l := newTestLedger()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.AddPatch(types.ConflictPatch{Target: types.TargetImplementation, Operation: types.PatchAdd, Path: "p", ProposedBy: "x"})
		}()
	}
	wg.Wait()

	snap := l.Snapshot()
	assert.Len(t, snap.Patches, 20)
	ids := map[string]bool{}
	for _, p := range snap.Patches {
		ids[p.ID] = true
	}
	assert.Len(t, ids, 20)
}
