package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	FilesIngested      metric.Int64Counter
	ChunksStored       metric.Int64Counter
	EmbeddingsWritten  metric.Int64Counter
	QuestionsAnswered  metric.Int64Counter
	IngestionDuration  metric.Float64Histogram
	RetrievalFallbacks metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("docugraph-backend")

	filesIngested, err := meter.Int64Counter(
		"ingest.files.total",
		metric.WithDescription("Total files and URLs ingested"),
	)
	if err != nil {
		return nil, err
	}

	chunksStored, err := meter.Int64Counter(
		"ingest.chunks.total",
		metric.WithDescription("Total chunks written to the graph"),
	)
	if err != nil {
		return nil, err
	}

	embeddingsWritten, err := meter.Int64Counter(
		"embeddings.written.total",
		metric.WithDescription("Total chunk embeddings written"),
	)
	if err != nil {
		return nil, err
	}

	questionsAnswered, err := meter.Int64Counter(
		"qa.questions.total",
		metric.WithDescription("Total questions answered"),
	)
	if err != nil {
		return nil, err
	}

	ingestionDuration, err := meter.Float64Histogram(
		"ingest.duration",
		metric.WithDescription("Ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	retrievalFallbacks, err := meter.Int64Counter(
		"retrieval.fallbacks.total",
		metric.WithDescription("Retrievals that fell back to similarity search"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		FilesIngested:      filesIngested,
		ChunksStored:       chunksStored,
		EmbeddingsWritten:  embeddingsWritten,
		QuestionsAnswered:  questionsAnswered,
		IngestionDuration:  ingestionDuration,
		RetrievalFallbacks: retrievalFallbacks,
	}, nil
}

// RecordIngest records one completed ingestion
func (m *Metrics) RecordIngest(fileType string, chunks int, seconds float64) {
	attrs := []attribute.KeyValue{
		attribute.String("ingest.file_type", fileType),
	}

	m.FilesIngested.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.ChunksStored.Add(context.Background(), int64(chunks), metric.WithAttributes(attrs...))
	m.IngestionDuration.Record(context.Background(), seconds, metric.WithAttributes(attrs...))
}

// RecordQuestion records one QA round trip
func (m *Metrics) RecordQuestion(strategy string, sources int) {
	attrs := []attribute.KeyValue{
		attribute.String("retrieval.strategy", strategy),
		attribute.Int("qa.sources", sources),
	}

	m.QuestionsAnswered.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	if strategy == "similarity_fallback" {
		m.RetrievalFallbacks.Add(context.Background(), 1)
	}
}

// RecordEmbeddings records embeddings written by the indexer
func (m *Metrics) RecordEmbeddings(count int) {
	if count > 0 {
		m.EmbeddingsWritten.Add(context.Background(), int64(count))
	}
}
