package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics records nothing, so
// components built without telemetry (tests, the CLI) need no guards.
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	ChatRequests        metric.Int64Counter
	RetrievalResults    metric.Int64Histogram
	EmbeddingFailures   metric.Int64Counter
	CorpusReloads       metric.Int64Counter
	IngestionDuration   metric.Float64Histogram
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("lab-dashboard")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chatRequests, err := meter.Int64Counter(
		"chat.requests.total",
		metric.WithDescription("Chat turns by outcome"),
	)
	if err != nil {
		return nil, err
	}

	retrievalResults, err := meter.Int64Histogram(
		"retrieval.results",
		metric.WithDescription("Documents returned per search, by method"),
	)
	if err != nil {
		return nil, err
	}

	embeddingFailures, err := meter.Int64Counter(
		"embedding.failures.total",
		metric.WithDescription("Embedding oracle failures"),
	)
	if err != nil {
		return nil, err
	}

	corpusReloads, err := meter.Int64Counter(
		"corpus.reloads.total",
		metric.WithDescription("Corpus cache refills"),
	)
	if err != nil {
		return nil, err
	}

	ingestionDuration, err := meter.Float64Histogram(
		"ingestion.duration",
		metric.WithDescription("Document ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		ChatRequests:        chatRequests,
		RetrievalResults:    retrievalResults,
		EmbeddingFailures:   embeddingFailures,
		CorpusReloads:       corpusReloads,
		IngestionDuration:   ingestionDuration,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordChat counts one chat turn; outcome is "answered", "no_results" or an error code
func (m *Metrics) RecordChat(ctx context.Context, method, outcome string) {
	if m == nil {
		return
	}
	m.ChatRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("retrieval.method", method),
		attribute.String("chat.outcome", outcome),
	))
}

// RecordRetrieval records how many documents a search returned
func (m *Metrics) RecordRetrieval(ctx context.Context, method string, results int) {
	if m == nil {
		return
	}
	m.RetrievalResults.Record(ctx, int64(results), metric.WithAttributes(
		attribute.String("retrieval.method", method),
	))
}

// RecordEmbeddingFailure counts a failed embedding call
func (m *Metrics) RecordEmbeddingFailure(ctx context.Context, component string) {
	if m == nil {
		return
	}
	m.EmbeddingFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("component", component)))
}

// RecordCorpusReload counts a cache refill and why it happened
func (m *Metrics) RecordCorpusReload(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.CorpusReloads.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordIngestion records ingestion metrics
func (m *Metrics) RecordIngestion(duration float64, kind, status string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ingestion.kind", kind),
		attribute.String("ingestion.status", status),
	}

	m.IngestionDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
