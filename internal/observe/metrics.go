// Package observe provides application-wide observability primitives for
// Veriscribe: OpenTelemetry metrics, tracing helpers, and the provider setup
// that bridges them to Prometheus.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Veriscribe metrics.
const meterName = "github.com/veriscribe-io/veriscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// OverlayDuration tracks the latency of the asynchronous medical-term
	// classification pass, from dispatch to merge.
	OverlayDuration metric.Float64Histogram

	// ClassifierRequests counts medical-term classifier calls. Use with
	// attributes: attribute.String("provider", ...), attribute.String("status", ...)
	ClassifierRequests metric.Int64Counter

	// ClassifierErrors counts classifier failures that degraded the session
	// to fail-open "no medical terms" mode.
	ClassifierErrors metric.Int64Counter

	// ReviewActions counts reviewer decisions. Use with attribute:
	//   attribute.String("action", "accept"|"correct"|"skip"|"accept_all")
	ReviewActions metric.Int64Counter

	// MedicalTermsFound counts medical terms merged into flagged sets.
	MedicalTermsFound metric.Int64Counter

	// SessionsCompleted counts validation sessions that passed gating and
	// were explicitly confirmed.
	SessionsCompleted metric.Int64Counter

	// ActiveSessions tracks the number of live validation sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// overlayBuckets defines histogram bucket boundaries (in seconds) sized for
// an LLM classification round-trip over a full consultation transcript.
var overlayBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.OverlayDuration, err = m.Float64Histogram("veriscribe.overlay.duration",
		metric.WithDescription("Latency of the medical-term classification pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(overlayBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClassifierRequests, err = m.Int64Counter("veriscribe.classifier.requests",
		metric.WithDescription("Medical-term classifier calls."),
	); err != nil {
		return nil, err
	}
	if met.ClassifierErrors, err = m.Int64Counter("veriscribe.classifier.errors",
		metric.WithDescription("Classifier failures that degraded a session to fail-open mode."),
	); err != nil {
		return nil, err
	}
	if met.ReviewActions, err = m.Int64Counter("veriscribe.review.actions",
		metric.WithDescription("Reviewer decisions applied to flagged words."),
	); err != nil {
		return nil, err
	}
	if met.MedicalTermsFound, err = m.Int64Counter("veriscribe.overlay.terms",
		metric.WithDescription("Medical terms merged into flagged-word sets."),
	); err != nil {
		return nil, err
	}
	if met.SessionsCompleted, err = m.Int64Counter("veriscribe.sessions.completed",
		metric.WithDescription("Validation sessions confirmed after gating passed."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("veriscribe.sessions.active",
		metric.WithDescription("Live validation sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide [Metrics] instance backed by the
// global OTel meter provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			// The global provider falls back to no-op instruments rather than
			// failing; an error here leaves the zero struct, whose nil
			// instruments are guarded at every record site.
			m = &Metrics{}
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// RecordClassifierRequest increments the classifier request counter with the
// provider and status attributes. Safe to call on a nil receiver and with
// uninitialised instruments.
func (m *Metrics) RecordClassifierRequest(ctx context.Context, provider, status string) {
	if m == nil || m.ClassifierRequests == nil {
		return
	}
	m.ClassifierRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// RecordAction increments the review action counter with the action attribute.
// Safe to call on a nil receiver and with uninitialised instruments.
func (m *Metrics) RecordAction(ctx context.Context, action string) {
	if m == nil || m.ReviewActions == nil {
		return
	}
	m.ReviewActions.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}
