package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"docugraph-backend/internal/logger"
	"docugraph-backend/internal/telemetry"
	"docugraph-backend/models"
)

// IngestStore is the slice of the graph store the ingestion path writes to.
type IngestStore interface {
	UpsertUser(ctx context.Context, userID, name, email string) error
	ReplaceFile(ctx context.Context, userID, filename string, chunks []string, stats models.ExtractionStats, originalURL string) error
	LinkSequentialChunks(ctx context.Context, userID, filename string) error
}

// Embedder backfill after ingestion goes through the indexer.
type IngestIndexer interface {
	IndexMissing(ctx context.Context, userID, filename string) (models.IndexReport, error)
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tiff": true, ".webp": true,
}

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".json": true,
	".html": true, ".htm": true, ".xml": true, ".log": true,
}

// IngestionService runs the full write pipeline for one document: extract,
// chunk, replace in the graph, link the chunk chain, backfill embeddings.
// Concurrent ingestions of the same (user, filename) serialize on a keyed
// mutex so readers never observe a half-replaced file.
type IngestionService struct {
	store   IngestStore
	indexer IngestIndexer
	chunker *ChunkingService
	pdf     *PDFExtractorService
	ocr     *OCRClient
	urls    *URLExtractorService
	metrics *telemetry.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewIngestionService(store IngestStore, indexer IngestIndexer, chunker *ChunkingService, pdf *PDFExtractorService, ocr *OCRClient, urls *URLExtractorService, metrics *telemetry.Metrics) *IngestionService {
	return &IngestionService{
		store:   store,
		indexer: indexer,
		chunker: chunker,
		pdf:     pdf,
		ocr:     ocr,
		urls:    urls,
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *IngestionService) fileLock(userID, filename string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "|" + filename
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// IngestFile processes one uploaded file end to end and reports what
// happened. Unknown file types are still registered so the upload is
// visible, just with no chunks.
func (s *IngestionService) IngestFile(ctx context.Context, userID, filename string, data []byte) (models.IngestResult, error) {
	start := time.Now()

	if err := s.store.UpsertUser(ctx, userID, "", ""); err != nil {
		return errorResult(err), err
	}

	fileType := classifyFile(filename, data)
	text, stats, extractErr := s.extract(ctx, fileType, filename, data)
	if extractErr != nil {
		logger.Error("text extraction failed", "filename", filename, "file_type", fileType, "error", extractErr)
		return errorResult(extractErr), extractErr
	}

	var chunks []string
	if fileType != "other" {
		chunks = s.chunker.Split(text)
	}

	result, err := s.persist(ctx, userID, filename, chunks, stats, "")
	if err != nil {
		return result, err
	}

	result.FileType = fileType
	if fileType == "other" {
		result.Message = "file type not processed for text extraction"
	}

	if s.metrics != nil {
		s.metrics.RecordIngest(fileType, len(chunks), time.Since(start).Seconds())
	}
	logger.Info("file ingested",
		"user_id", userID, "filename", filename,
		"file_type", fileType, "chunks", len(chunks))
	return result, nil
}

// IngestURL fetches a web page and runs it through the same pipeline under
// its derived filename. Re-submitting a URL replaces the earlier content.
func (s *IngestionService) IngestURL(ctx context.Context, userID, rawURL string) (models.IngestResult, error) {
	start := time.Now()

	filename, err := DeriveURLFilename(rawURL)
	if err != nil {
		return errorResult(err), err
	}

	if err := s.store.UpsertUser(ctx, userID, "", ""); err != nil {
		return errorResult(err), err
	}

	text, _, err := s.urls.Extract(rawURL)
	if err != nil {
		logger.Error("URL extraction failed", "url", rawURL, "error", err)
		return errorResult(err), err
	}
	if strings.TrimSpace(text) == "" {
		err := fmt.Errorf("no extractable text at %s", rawURL)
		return errorResult(err), err
	}

	chunks := s.chunker.Split(text)

	result, err := s.persist(ctx, userID, filename, chunks, models.ExtractionStats{PagesProcessed: 1}, rawURL)
	if err != nil {
		return result, err
	}
	result.FileType = "url"

	if s.metrics != nil {
		s.metrics.RecordIngest("url", len(chunks), time.Since(start).Seconds())
	}
	logger.Info("URL ingested", "user_id", userID, "url", rawURL, "filename", filename, "chunks", len(chunks))
	return result, nil
}

// persist runs the ordered storage steps under the per-file lock:
// replace chunks, link the NEXT chain, then backfill embeddings.
func (s *IngestionService) persist(ctx context.Context, userID, filename string, chunks []string, stats models.ExtractionStats, originalURL string) (models.IngestResult, error) {
	lock := s.fileLock(userID, filename)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.ReplaceFile(ctx, userID, filename, chunks, stats, originalURL); err != nil {
		return errorResult(err), err
	}
	if err := s.store.LinkSequentialChunks(ctx, userID, filename); err != nil {
		return errorResult(err), err
	}

	embedded := 0
	if s.indexer != nil && len(chunks) > 0 {
		report, err := s.indexer.IndexMissing(ctx, userID, filename)
		if err != nil {
			// Chunks are stored and retrievable via diversity; embeddings
			// can be backfilled later.
			logger.Warn("embedding backfill failed after ingest", "filename", filename, "error", err)
		} else {
			embedded = report.Embedded
		}
	}

	return models.IngestResult{
		Status:            "success",
		ProcessedFilename: filename,
		Chunks:            len(chunks),
		Embedded:          embedded,
	}, nil
}

func (s *IngestionService) extract(ctx context.Context, fileType, filename string, data []byte) (string, models.ExtractionStats, error) {
	switch fileType {
	case "pdf":
		return s.extractPDF(filename, data)
	case "image":
		return s.extractImage(ctx, filename, data)
	case "text":
		return string(data), models.ExtractionStats{PagesProcessed: 1}, nil
	default:
		return "", models.ExtractionStats{}, nil
	}
}

func (s *IngestionService) extractPDF(filename string, data []byte) (string, models.ExtractionStats, error) {
	tmp, err := os.CreateTemp("", "ingest-*.pdf")
	if err != nil {
		return "", models.ExtractionStats{}, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", models.ExtractionStats{}, err
	}
	tmp.Close()

	return s.pdf.ExtractFromFile(tmp.Name())
}

// extractImage degrades rather than fails: when the OCR sidecar is down or
// errors, the image is recorded as a failed extraction and ingestion
// proceeds with empty text.
func (s *IngestionService) extractImage(ctx context.Context, filename string, data []byte) (string, models.ExtractionStats, error) {
	stats := models.ExtractionStats{ImagesProcessed: 1}

	if s.ocr == nil || !s.ocr.Enabled() {
		stats.FailedOCR = 1
		return "", stats, nil
	}

	text, err := s.ocr.ExtractText(ctx, filename, data)
	if err != nil {
		logger.Warn("OCR extraction failed", "filename", filename, "error", err)
		stats.FailedOCR = 1
		return "", stats, nil
	}

	stats.SuccessfulOCR = 1
	return text, stats, nil
}

func classifyFile(filename string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf":
		return "pdf"
	case imageExtensions[ext]:
		return "image"
	case textExtensions[ext]:
		return "text"
	case utf8.Valid(data) && len(data) > 0:
		return "text"
	default:
		return "other"
	}
}

func errorResult(err error) models.IngestResult {
	return models.IngestResult{Status: "error", Error: err.Error()}
}
