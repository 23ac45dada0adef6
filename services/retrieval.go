package services

import (
	"context"

	"docugraph-backend/internal/logger"
	"docugraph-backend/models"
)

// Retrieval strategy names, surfaced on answers for observability.
const (
	StrategyDiversity = "diversity"
	StrategyFallback  = "similarity_fallback"
)

// RetrievalStore is the slice of the graph store the retrieval path reads.
type RetrievalStore interface {
	DiversityChunks(ctx context.Context, userID string, filenames []string, perFileCap, globalCap int) ([]models.ChunkRecord, error)
	SimilaritySearch(ctx context.Context, userID string, filenames []string, embedding []float32, topK int, minScore float64) ([]models.ScoredChunk, error)
}

// RetrievalService picks evidence chunks for a question. Diversity sampling
// is the primary strategy; cosine similarity over embeddings is the explicit
// fallback when diversity yields nothing or the structural query fails.
type RetrievalService struct {
	store    RetrievalStore
	embedder Embedder

	perFileCap    int
	globalCap     int
	similarityTop int
	minScore      float64
}

func NewRetrievalService(store RetrievalStore, embedder Embedder, perFileCap, globalCap, similarityTop int, minScore float64) *RetrievalService {
	return &RetrievalService{
		store:         store,
		embedder:      embedder,
		perFileCap:    perFileCap,
		globalCap:     globalCap,
		similarityTop: similarityTop,
		minScore:      minScore,
	}
}

// Retrieve returns scored chunks plus the strategy that produced them.
// Every query is scoped to userID; filenames optionally narrow the corpus.
func (s *RetrievalService) Retrieve(ctx context.Context, userID, question string, filenames []string) ([]models.ScoredChunk, string, error) {
	chunks, err := s.store.DiversityChunks(ctx, userID, filenames, s.perFileCap, s.globalCap)
	if err == nil && len(chunks) > 0 {
		scored := make([]models.ScoredChunk, len(chunks))
		for i, chunk := range chunks {
			scored[i] = models.ScoredChunk{Chunk: chunk}
		}
		return scored, StrategyDiversity, nil
	}
	if err != nil {
		logger.Warn("diversity retrieval failed, trying similarity fallback", "user_id", userID, "error", err)
	}

	scored, fallbackErr := s.similarityFallback(ctx, userID, question, filenames)
	if fallbackErr != nil {
		if err != nil {
			// Both strategies failed; the structural error is the root cause.
			return nil, StrategyFallback, err
		}
		return nil, StrategyFallback, fallbackErr
	}
	return scored, StrategyFallback, nil
}

func (s *RetrievalService) similarityFallback(ctx context.Context, userID, question string, filenames []string) ([]models.ScoredChunk, error) {
	if s.embedder == nil {
		// No embeddings configured: nothing more to try, but that is a
		// degraded empty result, not a failure.
		return nil, nil
	}

	embedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		logger.Warn("question embedding failed", "user_id", userID, "error", err)
		return nil, nil
	}

	return s.store.SimilaritySearch(ctx, userID, filenames, embedding, s.similarityTop, s.minScore)
}
