package metrics

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionMetrics_Creation(t *testing.T) {
	t.Run("global provider", func(t *testing.T) {
		m, err := NewSessionMetrics(nil)
		require.NoError(t, err)
		assert.NotNil(t, m.stepsCounter)
		assert.NotNil(t, m.failuresCounter)
		assert.NotNil(t, m.stepDuration)
		assert.NotNil(t, m.conflictsOpened)
		assert.NotNil(t, m.conflictsResolved)
		assert.NotNil(t, m.conflictsOpenGauge)
		assert.NotNil(t, m.sessionsCounter)
		assert.NotNil(t, m.sessionDuration)
		assert.NotNil(t, m.sessionStepHistogram)
	})

	t.Run("explicit provider", func(t *testing.T) {
		m, err := NewSessionMetrics(noop.NewMeterProvider())
		require.NoError(t, err)
		assert.NotNil(t, m)
	})
}

func TestSessionMetrics_Record(t *testing.T) {
	m, err := NewSessionMetrics(nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordStep(ctx, "generate_initial", true, 2*time.Second)
		m.RecordStep(ctx, "fix_imports", false, 500*time.Millisecond)
	})
	assert.NotPanics(t, func() {
		m.RecordConflicts(ctx, 3, 1, 2)
		m.RecordConflicts(ctx, 0, 0, 0)
	})
	assert.NotPanics(t, func() {
		m.RecordSession(ctx, "satisfactory", 2, 5*time.Second)
	})
}
