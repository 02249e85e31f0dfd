// Package metrics records orchestration loop measurements through the
// OpenTelemetry metric API. Without a configured provider the global no-op
// meter is used, so recording is always safe.
package metrics

import (
	"context"
	"time"

	"forge/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "forge"

// SessionMetrics implements the orchestrator's Recorder.
type SessionMetrics struct {
	stepsCounter         metric.Int64Counter
	failuresCounter      metric.Int64Counter
	stepDuration         metric.Float64Histogram
	conflictsOpened      metric.Int64Counter
	conflictsResolved    metric.Int64Counter
	conflictsOpenGauge   metric.Int64Gauge
	sessionsCounter      metric.Int64Counter
	sessionDuration      metric.Float64Histogram
	sessionStepHistogram metric.Int64Histogram
}

// NewSessionMetrics creates the instruments on provider, or on the global
// provider when nil.
func NewSessionMetrics(provider metric.MeterProvider) (*SessionMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)
	m := &SessionMetrics{}
	var err error

	if m.stepsCounter, err = meter.Int64Counter(
		"forge.loop.steps",
		metric.WithDescription("Total number of dispatched skills"),
		metric.WithUnit("{step}"),
	); err != nil {
		return nil, err
	}
	if m.failuresCounter, err = meter.Int64Counter(
		"forge.loop.failures",
		metric.WithDescription("Total number of skills that reported failure"),
		metric.WithUnit("{step}"),
	); err != nil {
		return nil, err
	}
	if m.stepDuration, err = meter.Float64Histogram(
		"forge.loop.step.duration",
		metric.WithDescription("Duration of one skill dispatch in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.conflictsOpened, err = meter.Int64Counter(
		"forge.conflicts.opened",
		metric.WithDescription("Conflicts newly opened by analysis"),
		metric.WithUnit("{conflict}"),
	); err != nil {
		return nil, err
	}
	if m.conflictsResolved, err = meter.Int64Counter(
		"forge.conflicts.resolved",
		metric.WithDescription("Conflicts that stopped showing up in analysis"),
		metric.WithUnit("{conflict}"),
	); err != nil {
		return nil, err
	}
	if m.conflictsOpenGauge, err = meter.Int64Gauge(
		"forge.conflicts.open",
		metric.WithDescription("Open conflicts after the latest analysis"),
		metric.WithUnit("{conflict}"),
	); err != nil {
		return nil, err
	}
	if m.sessionsCounter, err = meter.Int64Counter(
		"forge.sessions",
		metric.WithDescription("Total number of finished sessions"),
		metric.WithUnit("{session}"),
	); err != nil {
		return nil, err
	}
	if m.sessionDuration, err = meter.Float64Histogram(
		"forge.session.duration",
		metric.WithDescription("Duration of a session in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.sessionStepHistogram, err = meter.Int64Histogram(
		"forge.session.steps",
		metric.WithDescription("Steps taken per session"),
		metric.WithUnit("{step}"),
	); err != nil {
		return nil, err
	}

	logging.Get(logging.CategoryMetrics).Debug("session metrics registered on meter %q", meterName)
	return m, nil
}

// RecordStep records one dispatched skill.
func (m *SessionMetrics) RecordStep(ctx context.Context, skill string, success bool, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("skill", skill),
		attribute.Bool("success", success),
	)
	m.stepsCounter.Add(ctx, 1, attrs)
	m.stepDuration.Record(ctx, d.Seconds(), attrs)
	if !success {
		m.failuresCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("skill", skill)))
	}
}

// RecordConflicts records the outcome of one analysis merge.
func (m *SessionMetrics) RecordConflicts(ctx context.Context, opened, resolved, open int) {
	if opened > 0 {
		m.conflictsOpened.Add(ctx, int64(opened))
	}
	if resolved > 0 {
		m.conflictsResolved.Add(ctx, int64(resolved))
	}
	m.conflictsOpenGauge.Record(ctx, int64(open))
}

// RecordSession records a finished session.
func (m *SessionMetrics) RecordSession(ctx context.Context, outcome string, steps int, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.sessionsCounter.Add(ctx, 1, attrs)
	m.sessionDuration.Record(ctx, d.Seconds(), attrs)
	m.sessionStepHistogram.Record(ctx, int64(steps), attrs)
}
