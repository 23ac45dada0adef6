package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"docugraph-backend/models"
)

type fakeReindexer struct {
	gotUserID   string
	gotFilename string
	gotForce    bool
	err         error
}

func (f *fakeReindexer) ReindexAll(ctx context.Context, userID, filename string, force bool) (models.IndexReport, error) {
	f.gotUserID = userID
	f.gotFilename = filename
	f.gotForce = force
	return models.IndexReport{Embedded: 4}, f.err
}

type fakeURLIngester struct {
	gotURL string
	err    error
}

func (f *fakeURLIngester) IngestURL(ctx context.Context, userID, url string) (models.IngestResult, error) {
	f.gotURL = url
	return models.IngestResult{Status: "success", ProcessedFilename: "url_example.com.txt"}, f.err
}

func TestEmbedBackfillRoundTrip(t *testing.T) {
	task, err := NewEmbedBackfillTask("u1", "doc.pdf", true)
	if err != nil {
		t.Fatalf("NewEmbedBackfillTask: %v", err)
	}
	if task.Type() != TypeEmbedBackfill {
		t.Errorf("task type = %q", task.Type())
	}

	indexer := &fakeReindexer{}
	proc := NewProcessor(indexer, &fakeURLIngester{})

	if err := proc.HandleEmbedBackfill(context.Background(), task); err != nil {
		t.Fatalf("HandleEmbedBackfill: %v", err)
	}
	if indexer.gotUserID != "u1" || indexer.gotFilename != "doc.pdf" || !indexer.gotForce {
		t.Errorf("handler decoded %q/%q/force=%v", indexer.gotUserID, indexer.gotFilename, indexer.gotForce)
	}
}

func TestIngestURLRoundTrip(t *testing.T) {
	task, err := NewIngestURLTask("u1", "https://example.com/page")
	if err != nil {
		t.Fatalf("NewIngestURLTask: %v", err)
	}

	ingester := &fakeURLIngester{}
	proc := NewProcessor(&fakeReindexer{}, ingester)

	if err := proc.HandleIngestURL(context.Background(), task); err != nil {
		t.Fatalf("HandleIngestURL: %v", err)
	}
	if ingester.gotURL != "https://example.com/page" {
		t.Errorf("handler decoded URL %q", ingester.gotURL)
	}
}

func TestCorruptPayloadSkipsRetry(t *testing.T) {
	proc := NewProcessor(&fakeReindexer{}, &fakeURLIngester{})

	task := asynq.NewTask(TypeEmbedBackfill, []byte("{not json"))
	err := proc.HandleEmbedBackfill(context.Background(), task)
	if err == nil {
		t.Fatal("expected error for corrupt payload")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("corrupt payload should skip retry, got %v", err)
	}
}

func TestServiceErrorIsRetryable(t *testing.T) {
	indexer := &fakeReindexer{err: errors.New("graph busy")}
	proc := NewProcessor(indexer, &fakeURLIngester{})

	payload, _ := json.Marshal(EmbedBackfillPayload{UserID: "u1"})
	task := asynq.NewTask(TypeEmbedBackfill, payload)

	err := proc.HandleEmbedBackfill(context.Background(), task)
	if err == nil {
		t.Fatal("expected error to propagate for retry")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Error("transient service errors should stay retryable")
	}
}
