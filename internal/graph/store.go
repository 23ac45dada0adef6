package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docugraph-backend/models"
)

var (
	// ErrUnavailable marks the documented degraded state: the store was
	// constructed without a live graph connection. Read paths return
	// empty results instead of surfacing it to users.
	ErrUnavailable = errors.New("graph store unavailable")

	// ErrNotFound distinguishes "nothing to delete / unknown file" from
	// genuine failures.
	ErrNotFound = errors.New("not found")
)

// chunkBatchSize bounds the payload of a single chunk-creation statement.
const chunkBatchSize = 50

// Store owns the User/File/Chunk schema and every Cypher statement that
// touches it. All scoping values travel as parameters, never spliced into
// query text.
type Store struct {
	q Querier
}

// NewStore wraps a Querier. A nil querier is the explicit unavailable
// sentinel; every method then returns ErrUnavailable.
func NewStore(q Querier) *Store {
	return &Store{q: q}
}

// Available reports whether a graph connection was injected.
func (s *Store) Available() bool {
	return s != nil && s.q != nil
}

// EnsureConstraints creates the uniqueness constraints once. Errors are
// swallowed: a pre-existing constraint is a no-op, and a store that cannot
// take DDL still has to serve reads.
func (s *Store) EnsureConstraints(ctx context.Context) {
	if !s.Available() {
		return
	}
	constraints := []string{
		"CREATE CONSTRAINT unique_user IF NOT EXISTS FOR (u:User) REQUIRE u.user_id IS UNIQUE",
		"CREATE CONSTRAINT unique_chunk IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE",
	}
	for _, cypher := range constraints {
		_, _ = s.q.Query(ctx, cypher, nil)
	}
}

// UpsertUser creates the user on first contact. On an existing user only
// the supplied fields are updated; last_activity always refreshes.
func (s *Store) UpsertUser(ctx context.Context, userID, name, email string) error {
	if !s.Available() {
		return ErrUnavailable
	}
	_, err := s.q.Query(ctx, `
		MERGE (u:User {user_id: $user_id})
		SET u.name = COALESCE($name, u.name),
		    u.email = COALESCE($email, u.email),
		    u.created_date = COALESCE(u.created_date, datetime()),
		    u.last_activity = datetime()
	`, map[string]any{
		"user_id": userID,
		"name":    nullable(name),
		"email":   nullable(email),
	})
	return err
}

// ReplaceFile upserts the File node, ensures the UPLOADED edge, drops every
// prior chunk of this file, then recreates chunks in fixed-size batches.
// Re-running it is safe; re-ingestion replaces, never appends.
func (s *Store) ReplaceFile(ctx context.Context, userID, filename string, chunks []string, stats models.ExtractionStats, originalURL string) error {
	if !s.Available() {
		return ErrUnavailable
	}

	_, err := s.q.Query(ctx, `
		MERGE (f:File {user_id: $user_id, filename: $filename})
		SET f.source = $filename,
		    f.processed_date = datetime(),
		    f.total_chunks = $total_chunks,
		    f.pages_processed = $pages_processed,
		    f.images_processed = $images_processed,
		    f.successful_ocr = $successful_ocr,
		    f.failed_ocr = $failed_ocr,
		    f.extraction_errors = $extraction_errors,
		    f.original_url = $original_url
	`, map[string]any{
		"user_id":           userID,
		"filename":          filename,
		"total_chunks":      len(chunks),
		"pages_processed":   stats.PagesProcessed,
		"images_processed":  stats.ImagesProcessed,
		"successful_ocr":    stats.SuccessfulOCR,
		"failed_ocr":        stats.FailedOCR,
		"extraction_errors": stats.ExtractionErrors,
		"original_url":      nullable(originalURL),
	})
	if err != nil {
		return fmt.Errorf("upsert file node: %w", err)
	}

	_, err = s.q.Query(ctx, `
		MATCH (u:User {user_id: $user_id})
		MATCH (f:File {user_id: $user_id, filename: $filename})
		MERGE (u)-[:UPLOADED]->(f)
	`, map[string]any{"user_id": userID, "filename": filename})
	if err != nil {
		return fmt.Errorf("link uploaded edge: %w", err)
	}

	_, err = s.q.Query(ctx, `
		MATCH (f:File {user_id: $user_id, filename: $filename})-[:HAS_CHUNK]->(c:Chunk)
		DETACH DELETE c
	`, map[string]any{"user_id": userID, "filename": filename})
	if err != nil {
		return fmt.Errorf("clear prior chunks: %w", err)
	}

	for start := 0; start < len(chunks); start += chunkBatchSize {
		end := start + chunkBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := make([]map[string]any, 0, end-start)
		for j, text := range chunks[start:end] {
			idx := start + j
			batch = append(batch, map[string]any{
				"id":          ChunkID(userID, filename, idx),
				"text":        text,
				"chunk_index": idx,
				"section":     SectionID(userID, filename, idx),
				"length":      len(text),
				"user_id":     userID,
				"filename":    filename,
			})
		}

		_, err = s.q.Query(ctx, `
			MATCH (f:File {user_id: $user_id, filename: $filename})
			UNWIND $batch AS param
			MERGE (c:Chunk {id: param.id})
			SET c.text = param.text,
			    c.chunk_index = param.chunk_index,
			    c.section = param.section,
			    c.length = param.length,
			    c.user_id = param.user_id,
			    c.filename = param.filename
			MERGE (f)-[:HAS_CHUNK]->(c)
		`, map[string]any{"batch": batch, "user_id": userID, "filename": filename})
		if err != nil {
			return fmt.Errorf("store chunk batch at %d: %w", start, err)
		}
	}

	return nil
}

// LinkSequentialChunks creates NEXT edges between chunks with consecutive
// indices. Scoped to one file when filename is set, otherwise corpus-wide.
// MERGE keeps it idempotent across re-runs.
func (s *Store) LinkSequentialChunks(ctx context.Context, userID, filename string) error {
	if !s.Available() {
		return ErrUnavailable
	}

	if filename != "" {
		_, err := s.q.Query(ctx, `
			MATCH (f:File {user_id: $user_id, filename: $filename})-[:HAS_CHUNK]->(c1:Chunk)
			MATCH (f)-[:HAS_CHUNK]->(c2:Chunk)
			WHERE c1.chunk_index = c2.chunk_index - 1
			MERGE (c1)-[:NEXT]->(c2)
		`, map[string]any{"user_id": userID, "filename": filename})
		return err
	}

	_, err := s.q.Query(ctx, `
		MATCH (f:File)-[:HAS_CHUNK]->(c1:Chunk)
		MATCH (f)-[:HAS_CHUNK]->(c2:Chunk)
		WHERE c1.chunk_index = c2.chunk_index - 1
		MERGE (c1)-[:NEXT]->(c2)
	`, nil)
	return err
}

// DeleteFile cascades one file and its chunks. Returns the number of chunks
// removed, or ErrNotFound when the user has no such file.
func (s *Store) DeleteFile(ctx context.Context, userID, filename string) (int, error) {
	if !s.Available() {
		return 0, ErrUnavailable
	}

	records, err := s.q.Query(ctx, `
		MATCH (u:User {user_id: $user_id})-[:UPLOADED]->(f:File {filename: $filename})
		OPTIONAL MATCH (f)-[:HAS_CHUNK]->(c:Chunk)
		RETURN f.filename AS filename, count(c) AS chunks
	`, map[string]any{"user_id": userID, "filename": filename})
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, ErrNotFound
	}
	removed := asInt(records[0], "chunks")

	_, err = s.q.Query(ctx, `
		MATCH (u:User {user_id: $user_id})-[:UPLOADED]->(f:File {filename: $filename})
		OPTIONAL MATCH (f)-[:HAS_CHUNK]->(c:Chunk)
		DETACH DELETE f, c
	`, map[string]any{"user_id": userID, "filename": filename})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// DeleteAllFiles cascades every file the user owns, keeping the User node.
// Returns the number of files removed.
func (s *Store) DeleteAllFiles(ctx context.Context, userID string) (int, error) {
	if !s.Available() {
		return 0, ErrUnavailable
	}

	records, err := s.q.Query(ctx, `
		MATCH (u:User {user_id: $user_id})-[:UPLOADED]->(f:File)
		RETURN count(f) AS files
	`, map[string]any{"user_id": userID})
	if err != nil {
		return 0, err
	}
	removed := 0
	if len(records) > 0 {
		removed = asInt(records[0], "files")
	}

	_, err = s.q.Query(ctx, `
		MATCH (u:User {user_id: $user_id})-[:UPLOADED]->(f:File)
		OPTIONAL MATCH (f)-[:HAS_CHUNK]->(c:Chunk)
		DETACH DELETE f, c
	`, map[string]any{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// DeleteUser removes the account: the User node and everything it uploaded.
// Returns file and chunk counts, or ErrNotFound for an unknown user.
func (s *Store) DeleteUser(ctx context.Context, userID string) (int, int, error) {
	if !s.Available() {
		return 0, 0, ErrUnavailable
	}

	records, err := s.q.Query(ctx, `
		MATCH (u:User {user_id: $user_id})
		OPTIONAL MATCH (u)-[:UPLOADED]->(f:File)
		OPTIONAL MATCH (f)-[:HAS_CHUNK]->(c:Chunk)
		RETURN u.user_id AS user_id, count(DISTINCT f) AS total_files, count(DISTINCT c) AS total_chunks
	`, map[string]any{"user_id": userID})
	if err != nil {
		return 0, 0, err
	}
	if len(records) == 0 || records[0]["user_id"] == nil {
		return 0, 0, ErrNotFound
	}
	files := asInt(records[0], "total_files")
	chunks := asInt(records[0], "total_chunks")

	_, err = s.q.Query(ctx, `
		MATCH (u:User {user_id: $user_id})
		OPTIONAL MATCH (u)-[:UPLOADED]->(f:File)
		OPTIONAL MATCH (f)-[:HAS_CHUNK]->(c:Chunk)
		DETACH DELETE u, f, c
	`, map[string]any{"user_id": userID})
	if err != nil {
		return 0, 0, err
	}
	return files, chunks, nil
}

// ListFiles returns every file the user owns.
func (s *Store) ListFiles(ctx context.Context, userID string) ([]models.FileInfo, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	records, err := s.q.Query(ctx, `
		MATCH (u:User {user_id: $user_id})-[:UPLOADED]->(f:File)
		RETURN f.filename AS filename, f.source AS source, f.user_id AS user_id,
		       f.processed_date AS processed_date, f.total_chunks AS total_chunks,
		       f.pages_processed AS pages_processed, f.images_processed AS images_processed,
		       f.successful_ocr AS successful_ocr, f.failed_ocr AS failed_ocr,
		       f.extraction_errors AS extraction_errors, f.original_url AS original_url
		ORDER BY f.filename
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}

	files := make([]models.FileInfo, 0, len(records))
	for _, rec := range records {
		files = append(files, decodeFile(rec))
	}
	return files, nil
}

// FileInfo fetches one file by name, ErrNotFound when absent.
func (s *Store) FileInfo(ctx context.Context, userID, filename string) (*models.FileInfo, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	records, err := s.q.Query(ctx, `
		MATCH (f:File {user_id: $user_id, filename: $filename})
		RETURN f.filename AS filename, f.source AS source, f.user_id AS user_id,
		       f.processed_date AS processed_date, f.total_chunks AS total_chunks,
		       f.pages_processed AS pages_processed, f.images_processed AS images_processed,
		       f.successful_ocr AS successful_ocr, f.failed_ocr AS failed_ocr,
		       f.extraction_errors AS extraction_errors, f.original_url AS original_url
	`, map[string]any{"user_id": userID, "filename": filename})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	info := decodeFile(records[0])
	return &info, nil
}

// FileByOriginalURL resolves a URL-derived file by the URL it came from.
func (s *Store) FileByOriginalURL(ctx context.Context, userID, originalURL string) (*models.FileInfo, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	records, err := s.q.Query(ctx, `
		MATCH (u:User {user_id: $user_id})-[:UPLOADED]->(f:File)
		WHERE f.original_url = $original_url
		RETURN f.filename AS filename, f.source AS source, f.user_id AS user_id,
		       f.processed_date AS processed_date, f.total_chunks AS total_chunks,
		       f.pages_processed AS pages_processed, f.images_processed AS images_processed,
		       f.successful_ocr AS successful_ocr, f.failed_ocr AS failed_ocr,
		       f.extraction_errors AS extraction_errors, f.original_url AS original_url
	`, map[string]any{"user_id": userID, "original_url": originalURL})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	info := decodeFile(records[0])
	return &info, nil
}

// ListURLFiles returns the user's URL-derived files, newest first.
func (s *Store) ListURLFiles(ctx context.Context, userID string) ([]models.FileInfo, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	records, err := s.q.Query(ctx, `
		MATCH (u:User {user_id: $user_id})-[:UPLOADED]->(f:File)
		WHERE f.filename STARTS WITH 'url_' AND f.original_url IS NOT NULL
		RETURN f.filename AS filename, f.source AS source, f.user_id AS user_id,
		       f.processed_date AS processed_date, f.total_chunks AS total_chunks,
		       f.pages_processed AS pages_processed, f.images_processed AS images_processed,
		       f.successful_ocr AS successful_ocr, f.failed_ocr AS failed_ocr,
		       f.extraction_errors AS extraction_errors, f.original_url AS original_url
		ORDER BY f.processed_date DESC
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}

	files := make([]models.FileInfo, 0, len(records))
	for _, rec := range records {
		files = append(files, decodeFile(rec))
	}
	return files, nil
}

// SampleChunks returns the first chunks of a file in index order.
func (s *Store) SampleChunks(ctx context.Context, userID, filename string, limit int) ([]models.ChunkRecord, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	records, err := s.q.Query(ctx, `
		MATCH (f:File {user_id: $user_id, filename: $filename})-[:HAS_CHUNK]->(c:Chunk)
		RETURN c.id AS id, c.text AS text, c.chunk_index AS chunk_index,
		       c.section AS section, c.length AS length,
		       c.filename AS filename, c.user_id AS user_id
		ORDER BY c.chunk_index
		LIMIT $limit
	`, map[string]any{"user_id": userID, "filename": filename, "limit": limit})
	if err != nil {
		return nil, err
	}
	return decodeChunks(records), nil
}

func decodeFile(rec map[string]any) models.FileInfo {
	return models.FileInfo{
		Filename:      asString(rec, "filename"),
		Source:        asString(rec, "source"),
		UserID:        asString(rec, "user_id"),
		ProcessedDate: asTime(rec, "processed_date"),
		TotalChunks:   asInt(rec, "total_chunks"),
		Stats: models.ExtractionStats{
			PagesProcessed:   asInt(rec, "pages_processed"),
			ImagesProcessed:  asInt(rec, "images_processed"),
			SuccessfulOCR:    asInt(rec, "successful_ocr"),
			FailedOCR:        asInt(rec, "failed_ocr"),
			ExtractionErrors: asInt(rec, "extraction_errors"),
		},
		OriginalURL: asString(rec, "original_url"),
	}
}

func decodeChunks(records []map[string]any) []models.ChunkRecord {
	chunks := make([]models.ChunkRecord, 0, len(records))
	for _, rec := range records {
		chunks = append(chunks, decodeChunk(rec))
	}
	return chunks
}

func decodeChunk(rec map[string]any) models.ChunkRecord {
	return models.ChunkRecord{
		ID:          asString(rec, "id"),
		Text:        asString(rec, "text"),
		ChunkIndex:  asInt(rec, "chunk_index"),
		Section:     asString(rec, "section"),
		Length:      asInt(rec, "length"),
		Filename:    asString(rec, "filename"),
		UserID:      asString(rec, "user_id"),
		OriginalURL: asString(rec, "original_url"),
	}
}

// ChunkID derives the globally unique chunk id.
func ChunkID(userID, filename string, index int) string {
	return fmt.Sprintf("%s_%s_chunk_%d", userID, filename, index)
}

// SectionID derives the coarse section grouping (10 chunks per section).
func SectionID(userID, filename string, index int) string {
	return fmt.Sprintf("%s_%s_section_%d", userID, filename, index/10)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func asString(rec map[string]any, key string) string {
	if v, ok := rec[key].(string); ok {
		return v
	}
	return ""
}

func asInt(rec map[string]any, key string) int {
	switch v := rec[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func asFloat(rec map[string]any, key string) float64 {
	switch v := rec[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func asTime(rec map[string]any, key string) time.Time {
	if v, ok := rec[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}
