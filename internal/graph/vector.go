package graph

import (
	"context"
	"fmt"

	"docugraph-backend/models"
)

// EnsureVectorIndex creates the cosine vector index over Chunk.textEmbedding.
// Index names cannot travel as parameters, so the name is formatted in; it
// comes from config, never from request input.
func (s *Store) EnsureVectorIndex(ctx context.Context, name string, dimensions int) error {
	if !s.Available() {
		return ErrUnavailable
	}
	cypher := fmt.Sprintf(`
		CREATE VECTOR INDEX %s IF NOT EXISTS
		FOR (c:Chunk) ON (c.textEmbedding)
		OPTIONS {indexConfig: {
			`+"`vector.dimensions`"+`: $dimensions,
			`+"`vector.similarity_function`"+`: 'cosine'
		}}
	`, name)
	_, err := s.q.Query(ctx, cypher, map[string]any{"dimensions": dimensions})
	return err
}

// ChunksWithoutEmbedding returns the user's chunks that still need a vector,
// optionally narrowed to one file.
func (s *Store) ChunksWithoutEmbedding(ctx context.Context, userID, filename string) ([]models.ChunkRecord, error) {
	return s.chunksForIndexing(ctx, userID, filename, false)
}

// AllChunks returns every chunk in scope regardless of embedding state,
// used by forced reindexing.
func (s *Store) AllChunks(ctx context.Context, userID, filename string) ([]models.ChunkRecord, error) {
	return s.chunksForIndexing(ctx, userID, filename, true)
}

func (s *Store) chunksForIndexing(ctx context.Context, userID, filename string, includeEmbedded bool) ([]models.ChunkRecord, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	cypher := `
		MATCH (c:Chunk {user_id: $user_id})
		WHERE ($filename IS NULL OR c.filename = $filename)
		  AND ($include_embedded OR c.textEmbedding IS NULL)
		RETURN c.id AS id, c.text AS text, c.chunk_index AS chunk_index,
		       c.section AS section, c.length AS length,
		       c.filename AS filename, c.user_id AS user_id
		ORDER BY c.filename, c.chunk_index
	`
	records, err := s.q.Query(ctx, cypher, map[string]any{
		"user_id":          userID,
		"filename":         nullable(filename),
		"include_embedded": includeEmbedded,
	})
	if err != nil {
		return nil, err
	}
	return decodeChunks(records), nil
}

// SetChunkEmbedding writes one chunk's vector.
func (s *Store) SetChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	if !s.Available() {
		return ErrUnavailable
	}
	_, err := s.q.Query(ctx, `
		MATCH (c:Chunk {id: $id})
		SET c.textEmbedding = $embedding
	`, map[string]any{"id": chunkID, "embedding": toFloat64s(embedding)})
	return err
}

// DiversityChunks is the primary retrieval strategy: up to perFileCap chunks
// per file in reading order, capped globally, so every uploaded document is
// represented before any single one dominates.
func (s *Store) DiversityChunks(ctx context.Context, userID string, filenames []string, perFileCap, globalCap int) ([]models.ChunkRecord, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	records, err := s.q.Query(ctx, `
		MATCH (u:User {user_id: $user_id})-[:UPLOADED]->(f:File)-[:HAS_CHUNK]->(c:Chunk)
		WHERE $filenames IS NULL OR f.filename IN $filenames
		WITH f, c ORDER BY f.filename, c.chunk_index
		WITH f, collect(c)[0..$per_file_cap] AS file_chunks
		UNWIND file_chunks AS c
		RETURN c.id AS id, c.text AS text, c.chunk_index AS chunk_index,
		       c.section AS section, c.length AS length,
		       c.filename AS filename, c.user_id AS user_id,
		       f.original_url AS original_url
		LIMIT $global_cap
	`, map[string]any{
		"user_id":      userID,
		"filenames":    nullableList(filenames),
		"per_file_cap": perFileCap,
		"global_cap":   globalCap,
	})
	if err != nil {
		return nil, err
	}
	return decodeChunks(records), nil
}

// SimilaritySearch is the fallback strategy: cosine similarity between the
// question embedding and stored chunk vectors, thresholded and ranked.
func (s *Store) SimilaritySearch(ctx context.Context, userID string, filenames []string, embedding []float32, topK int, minScore float64) ([]models.ScoredChunk, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	records, err := s.q.Query(ctx, `
		MATCH (u:User {user_id: $user_id})-[:UPLOADED]->(f:File)-[:HAS_CHUNK]->(c:Chunk)
		WHERE c.textEmbedding IS NOT NULL
		  AND ($filenames IS NULL OR f.filename IN $filenames)
		WITH c, vector.similarity.cosine(c.textEmbedding, $embedding) AS score
		WHERE score >= $min_score
		RETURN c.id AS id, c.text AS text, c.chunk_index AS chunk_index,
		       c.section AS section, c.length AS length,
		       c.filename AS filename, c.user_id AS user_id,
		       f.original_url AS original_url,
		       score
		ORDER BY score DESC
		LIMIT $top_k
	`, map[string]any{
		"user_id":   userID,
		"filenames": nullableList(filenames),
		"embedding": toFloat64s(embedding),
		"min_score": minScore,
		"top_k":     topK,
	})
	if err != nil {
		return nil, err
	}

	scored := make([]models.ScoredChunk, 0, len(records))
	for _, rec := range records {
		scored = append(scored, models.ScoredChunk{
			Chunk: decodeChunk(rec),
			Score: asFloat(rec, "score"),
		})
	}
	return scored, nil
}

// ChunkByID fetches one chunk, tenant-scoped. ErrNotFound when absent or
// owned by someone else.
func (s *Store) ChunkByID(ctx context.Context, userID, chunkID string) (*models.ChunkRecord, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	records, err := s.q.Query(ctx, `
		MATCH (c:Chunk {id: $id, user_id: $user_id})
		RETURN c.id AS id, c.text AS text, c.chunk_index AS chunk_index,
		       c.section AS section, c.length AS length,
		       c.filename AS filename, c.user_id AS user_id
	`, map[string]any{"id": chunkID, "user_id": userID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	chunk := decodeChunk(records[0])
	return &chunk, nil
}

// NextChunks follows NEXT edges forward from a chunk, up to limit hops.
func (s *Store) NextChunks(ctx context.Context, userID, chunkID string, limit int) ([]models.ChunkRecord, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	records, err := s.q.Query(ctx, `
		MATCH (c:Chunk {id: $id, user_id: $user_id})-[:NEXT]->(next:Chunk)
		RETURN next.id AS id, next.text AS text, next.chunk_index AS chunk_index,
		       next.section AS section, next.length AS length,
		       next.filename AS filename, next.user_id AS user_id
		ORDER BY next.chunk_index
		LIMIT $limit
	`, map[string]any{"id": chunkID, "user_id": userID, "limit": limit})
	if err != nil {
		return nil, err
	}
	return decodeChunks(records), nil
}

func toFloat64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func nullableList(items []string) any {
	if len(items) == 0 {
		return nil
	}
	return items
}
