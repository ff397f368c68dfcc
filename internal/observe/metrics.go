// Package observe provides application-wide observability primitives for
// Crossing: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed on
// /metrics through the Prometheus exporter configured by [InitProvider]. A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Crossing metrics.
const meterName = "github.com/MrWong99/crossing"

// Outcome labels shared by the relay counters.
const (
	OutcomeForwarded = "forwarded"
	OutcomeSent      = "sent"
	OutcomeDropped   = "dropped"
	OutcomeFailed    = "failed"
	OutcomeNotReady  = "not_ready"
	OutcomeAutomated = "automated"
	OutcomeChannel   = "channel"
	OutcomeUnlinked  = "unlinked"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// InboundMessages counts Discord messages seen by the inbound relay.
	// Attribute: outcome.
	InboundMessages metric.Int64Counter

	// OutboundEvents counts world events handled by the dispatcher.
	// Attributes: kind, outcome.
	OutboundEvents metric.Int64Counter

	// SendDuration tracks webhook execution latency. Attribute: category.
	SendDuration metric.Float64Histogram

	// IdentityLinks counts link requests. Attributes: source, status.
	IdentityLinks metric.Int64Counter

	// ReputationGrants counts grants forwarded to the game. Attribute: status.
	ReputationGrants metric.Int64Counter

	// InFlightEvents tracks outbound notifications currently being handled.
	InFlightEvents metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time.
	// Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds, sized for Discord
// REST round trips.
var latencyBuckets = []float64{
	0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.InboundMessages, err = m.Int64Counter("crossing.inbound.messages",
		metric.WithDescription("Discord messages seen by the inbound relay, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.OutboundEvents, err = m.Int64Counter("crossing.outbound.events",
		metric.WithDescription("World events handled by the dispatcher, by kind and outcome."),
	); err != nil {
		return nil, err
	}
	if met.SendDuration, err = m.Float64Histogram("crossing.outbound.send.duration",
		metric.WithDescription("Latency of webhook executions by category."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.IdentityLinks, err = m.Int64Counter("crossing.identity.links",
		metric.WithDescription("Identity link requests by source and status."),
	); err != nil {
		return nil, err
	}
	if met.ReputationGrants, err = m.Int64Counter("crossing.reputation.grants",
		metric.WithDescription("Reputation grants forwarded to the game, by status."),
	); err != nil {
		return nil, err
	}
	if met.InFlightEvents, err = m.Int64UpDownCounter("crossing.outbound.in_flight",
		metric.WithDescription("Outbound notifications currently being handled."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("crossing.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordInbound increments the inbound message counter.
func (m *Metrics) RecordInbound(ctx context.Context, outcome string) {
	m.InboundMessages.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordOutbound increments the outbound event counter.
func (m *Metrics) RecordOutbound(ctx context.Context, kind, outcome string) {
	m.OutboundEvents.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordSend records the latency of one webhook execution.
func (m *Metrics) RecordSend(ctx context.Context, category string, d time.Duration) {
	m.SendDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("category", category)))
}

// RecordLink increments the identity link counter.
func (m *Metrics) RecordLink(ctx context.Context, source, status string) {
	m.IdentityLinks.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("status", status),
		),
	)
}

// RecordReputation increments the reputation grant counter.
func (m *Metrics) RecordReputation(ctx context.Context, status string) {
	m.ReputationGrants.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
