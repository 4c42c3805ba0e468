// Package observe provides application-wide observability primitives for
// Luminis: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all Luminis metrics.
const meterName = "github.com/KaracaDeer/Luminis-AI-Library-Chatbot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// EmbedDuration tracks query/document embedding latency.
	EmbedDuration metric.Float64Histogram

	// SearchDuration tracks vector index search latency.
	SearchDuration metric.Float64Histogram

	// GenerateDuration tracks LLM completion latency.
	GenerateDuration metric.Float64Histogram

	// ChatDuration tracks end-to-end chat turn latency, cache hits included.
	ChatDuration metric.Float64Histogram

	// --- Counters ---

	// ChatTurns counts completed chat turns. Use with attributes:
	//   attribute.String("outcome", "grounded"|"ungrounded"|"fallback"), attribute.Bool("cached", ...)
	ChatTurns metric.Int64Counter

	// CacheLookups counts answer-cache lookups. Use with attribute:
	//   attribute.String("result", "hit"|"miss")
	CacheLookups metric.Int64Counter

	// CatalogEvents counts applied catalog sync events. Use with attributes:
	//   attribute.String("kind", "upsert"|"remove"), attribute.String("status", ...)
	CatalogEvents metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", "llm"|"embeddings")
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live chat sessions.
	ActiveSessions metric.Int64UpDownCounter

	// IndexedBooks tracks the number of books in the vector index.
	IndexedBooks metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) covering
// everything from in-memory cache hits to slow LLM completions.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.EmbedDuration, err = m.Float64Histogram("luminis.embed.duration",
		metric.WithDescription("Latency of embedding calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SearchDuration, err = m.Float64Histogram("luminis.search.duration",
		metric.WithDescription("Latency of vector index searches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerateDuration, err = m.Float64Histogram("luminis.generate.duration",
		metric.WithDescription("Latency of LLM completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChatDuration, err = m.Float64Histogram("luminis.chat.duration",
		metric.WithDescription("End-to-end chat turn latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ChatTurns, err = m.Int64Counter("luminis.chat.turns",
		metric.WithDescription("Total completed chat turns by outcome and cache status."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("luminis.cache.lookups",
		metric.WithDescription("Total answer-cache lookups by result."),
	); err != nil {
		return nil, err
	}
	if met.CatalogEvents, err = m.Int64Counter("luminis.catalog.events",
		metric.WithDescription("Total catalog sync events by kind and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("luminis.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("luminis.active_sessions",
		metric.WithDescription("Number of live chat sessions."),
	); err != nil {
		return nil, err
	}
	if met.IndexedBooks, err = m.Int64UpDownCounter("luminis.indexed_books",
		metric.WithDescription("Number of books in the vector index."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("luminis.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordChatTurn is a convenience method that records a completed chat turn
// with the standard attribute set.
func (m *Metrics) RecordChatTurn(ctx context.Context, outcome string, cached bool) {
	m.ChatTurns.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.Bool("cached", cached),
		),
	)
}

// RecordCacheLookup is a convenience method that records an answer-cache
// lookup result.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordCatalogEvent is a convenience method that records an applied catalog
// sync event.
func (m *Metrics) RecordCatalogEvent(ctx context.Context, kind, status string) {
	m.CatalogEvents.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
