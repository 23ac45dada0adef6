package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"docugraph-backend/internal/logger"
	"docugraph-backend/models"
)

const (
	TypeEmbedBackfill = "embeddings:backfill"
	TypeIngestURL     = "ingest:url"
)

// EmbedBackfillPayload scopes one embedding pass.
type EmbedBackfillPayload struct {
	UserID   string `json:"user_id"`
	Filename string `json:"filename,omitempty"`
	Force    bool   `json:"force"`
}

// IngestURLPayload carries one deferred URL ingestion.
type IngestURLPayload struct {
	UserID string `json:"user_id"`
	URL    string `json:"url"`
}

func NewEmbedBackfillTask(userID, filename string, force bool) (*asynq.Task, error) {
	payload, err := json.Marshal(EmbedBackfillPayload{UserID: userID, Filename: filename, Force: force})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmbedBackfill, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("low"),
	), nil
}

func NewIngestURLTask(userID, url string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestURLPayload{UserID: userID, URL: url})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIngestURL, payload,
		asynq.MaxRetry(2),
		asynq.Timeout(3*time.Minute),
		asynq.Queue("default"),
	), nil
}

// Reindexer runs embedding passes.
type Reindexer interface {
	ReindexAll(ctx context.Context, userID, filename string, force bool) (models.IndexReport, error)
}

// URLIngester runs deferred URL ingestions.
type URLIngester interface {
	IngestURL(ctx context.Context, userID, url string) (models.IngestResult, error)
}

// Processor dispatches queued tasks to the services.
type Processor struct {
	indexer  Reindexer
	ingester URLIngester
}

func NewProcessor(indexer Reindexer, ingester URLIngester) *Processor {
	return &Processor{indexer: indexer, ingester: ingester}
}

func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeEmbedBackfill, p.HandleEmbedBackfill)
	mux.HandleFunc(TypeIngestURL, p.HandleIngestURL)
}

func (p *Processor) HandleEmbedBackfill(ctx context.Context, task *asynq.Task) error {
	var payload EmbedBackfillPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode backfill payload: %v: %w", err, asynq.SkipRetry)
	}

	report, err := p.indexer.ReindexAll(ctx, payload.UserID, payload.Filename, payload.Force)
	if err != nil {
		return fmt.Errorf("embedding backfill for %s: %w", payload.UserID, err)
	}

	logger.Info("embedding backfill completed",
		"user_id", payload.UserID, "filename", payload.Filename,
		"embedded", report.Embedded, "failed", report.Failed, "skipped", report.Skipped)
	return nil
}

func (p *Processor) HandleIngestURL(ctx context.Context, task *asynq.Task) error {
	var payload IngestURLPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode URL payload: %v: %w", err, asynq.SkipRetry)
	}

	result, err := p.ingester.IngestURL(ctx, payload.UserID, payload.URL)
	if err != nil {
		return fmt.Errorf("queued URL ingestion for %s: %w", payload.URL, err)
	}

	logger.Info("queued URL ingestion completed",
		"user_id", payload.UserID, "url", payload.URL,
		"filename", result.ProcessedFilename, "chunks", result.Chunks)
	return nil
}
