package models

import "time"

// ExtractionStats records how much of a document survived extraction.
// Partial OCR failure is data, not an error (ingestion still succeeds).
type ExtractionStats struct {
	PagesProcessed   int `json:"pages_processed"`
	ImagesProcessed  int `json:"images_processed"`
	SuccessfulOCR    int `json:"successful_ocr"`
	FailedOCR        int `json:"failed_ocr"`
	ExtractionErrors int `json:"extraction_errors"`
}

// FileInfo mirrors a File node: one ingested document or URL, keyed by
// (user_id, filename).
type FileInfo struct {
	Filename      string          `json:"filename"`
	Source        string          `json:"source"`
	UserID        string          `json:"user_id"`
	ProcessedDate time.Time       `json:"processed_date"`
	TotalChunks   int             `json:"total_chunks"`
	Stats         ExtractionStats `json:"stats"`
	OriginalURL   string          `json:"original_url,omitempty"`
}

// ChunkRecord mirrors a Chunk node plus its owning File's scope fields.
type ChunkRecord struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	ChunkIndex  int    `json:"chunk_index"`
	Section     string `json:"section"`
	Length      int    `json:"length"`
	Filename    string `json:"filename"`
	UserID      string `json:"user_id"`
	OriginalURL string `json:"original_url,omitempty"`
}

// ScoredChunk is one retrieval hit. Score is cosine similarity on the
// fallback path and 0 on the diversity path (structural selection).
type ScoredChunk struct {
	Chunk ChunkRecord `json:"chunk"`
	Score float64     `json:"score"`
}

// Source identifies the chunk behind one piece of an answer, carrying
// enough metadata to rebuild the traversal path later.
type Source struct {
	Filename   string `json:"filename"`
	UserID     string `json:"user_id"`
	Section    string `json:"section"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkID    string `json:"chunk_id"`
}
