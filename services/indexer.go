package services

import (
	"context"

	"docugraph-backend/internal/logger"
	"docugraph-backend/internal/telemetry"
	"docugraph-backend/models"
)

// IndexStore is the slice of the graph store the embedding indexer uses.
type IndexStore interface {
	EnsureVectorIndex(ctx context.Context, name string, dimensions int) error
	ChunksWithoutEmbedding(ctx context.Context, userID, filename string) ([]models.ChunkRecord, error)
	AllChunks(ctx context.Context, userID, filename string) ([]models.ChunkRecord, error)
	SetChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IndexerService maintains chunk embeddings. A nil embedder is the
// documented degraded mode: indexing reports skipped and the system runs
// on graph-structure retrieval alone.
type IndexerService struct {
	store     IndexStore
	embedder  Embedder
	indexName string
	dims      int
	metrics   *telemetry.Metrics
}

func NewIndexerService(store IndexStore, embedder Embedder, indexName string, dims int, metrics *telemetry.Metrics) *IndexerService {
	return &IndexerService{
		store:     store,
		embedder:  embedder,
		indexName: indexName,
		dims:      dims,
		metrics:   metrics,
	}
}

// EnsureIndex creates the vector index if it does not exist yet.
func (s *IndexerService) EnsureIndex(ctx context.Context) error {
	return s.store.EnsureVectorIndex(ctx, s.indexName, s.dims)
}

// IndexMissing embeds every chunk in scope that has no vector yet.
// filename narrows the pass to one file; empty covers the whole user.
func (s *IndexerService) IndexMissing(ctx context.Context, userID, filename string) (models.IndexReport, error) {
	if s.embedder == nil {
		return models.IndexReport{Skipped: true}, nil
	}

	chunks, err := s.store.ChunksWithoutEmbedding(ctx, userID, filename)
	if err != nil {
		return models.IndexReport{}, err
	}
	return s.embedChunks(ctx, chunks), nil
}

// ReindexAll re-embeds the user's chunks. With force every chunk is redone;
// otherwise only the ones still missing a vector.
func (s *IndexerService) ReindexAll(ctx context.Context, userID, filename string, force bool) (models.IndexReport, error) {
	if s.embedder == nil {
		return models.IndexReport{Skipped: true}, nil
	}

	var (
		chunks []models.ChunkRecord
		err    error
	)
	if force {
		chunks, err = s.store.AllChunks(ctx, userID, filename)
	} else {
		chunks, err = s.store.ChunksWithoutEmbedding(ctx, userID, filename)
	}
	if err != nil {
		return models.IndexReport{}, err
	}
	return s.embedChunks(ctx, chunks), nil
}

// embedChunks writes vectors one chunk at a time. A single failure is
// logged and counted, never fatal to the pass.
func (s *IndexerService) embedChunks(ctx context.Context, chunks []models.ChunkRecord) models.IndexReport {
	report := models.IndexReport{}

	for _, chunk := range chunks {
		embedding, err := s.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			logger.Warn("embedding failed", "chunk_id", chunk.ID, "error", err)
			report.Failed++
			continue
		}
		if err := s.store.SetChunkEmbedding(ctx, chunk.ID, embedding); err != nil {
			logger.Warn("storing embedding failed", "chunk_id", chunk.ID, "error", err)
			report.Failed++
			continue
		}
		report.Embedded++
	}

	if s.metrics != nil && report.Embedded > 0 {
		s.metrics.RecordEmbeddings(report.Embedded)
	}
	return report
}
