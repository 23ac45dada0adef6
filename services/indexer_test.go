package services

import (
	"context"
	"errors"
	"testing"

	"docugraph-backend/models"
)

type fakeIndexStore struct {
	missing     []models.ChunkRecord
	all         []models.ChunkRecord
	written     map[string][]float32
	writeErrFor string
	queryErr    error
}

func (f *fakeIndexStore) EnsureVectorIndex(ctx context.Context, name string, dims int) error {
	return nil
}

func (f *fakeIndexStore) ChunksWithoutEmbedding(ctx context.Context, userID, filename string) ([]models.ChunkRecord, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.missing, nil
}

func (f *fakeIndexStore) AllChunks(ctx context.Context, userID, filename string) ([]models.ChunkRecord, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.all, nil
}

func (f *fakeIndexStore) SetChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	if chunkID == f.writeErrFor {
		return errors.New("write refused")
	}
	if f.written == nil {
		f.written = make(map[string][]float32)
	}
	f.written[chunkID] = embedding
	return nil
}

type fakeEmbedder struct {
	failFor string
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if text == f.failFor {
		return nil, errors.New("embedding service error")
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func chunkRecords(ids ...string) []models.ChunkRecord {
	chunks := make([]models.ChunkRecord, len(ids))
	for i, id := range ids {
		chunks[i] = models.ChunkRecord{ID: id, Text: "text for " + id}
	}
	return chunks
}

func TestIndexMissingSkipsWithoutEmbedder(t *testing.T) {
	store := &fakeIndexStore{missing: chunkRecords("c1")}
	svc := NewIndexerService(store, nil, "pdf_chunks", 1536, nil)

	report, err := svc.IndexMissing(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("IndexMissing: %v", err)
	}
	if !report.Skipped {
		t.Error("report should be marked skipped")
	}
	if len(store.written) != 0 {
		t.Error("no embeddings should be written without an embedder")
	}
}

func TestIndexMissingEmbedsAll(t *testing.T) {
	store := &fakeIndexStore{missing: chunkRecords("c1", "c2", "c3")}
	embedder := &fakeEmbedder{}
	svc := NewIndexerService(store, embedder, "pdf_chunks", 1536, nil)

	report, err := svc.IndexMissing(context.Background(), "u1", "doc.pdf")
	if err != nil {
		t.Fatalf("IndexMissing: %v", err)
	}
	if report.Embedded != 3 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(store.written) != 3 {
		t.Errorf("wrote %d embeddings, want 3", len(store.written))
	}
}

func TestIndexMissingContinuesPastFailures(t *testing.T) {
	store := &fakeIndexStore{missing: chunkRecords("c1", "c2", "c3")}
	embedder := &fakeEmbedder{failFor: "text for c2"}
	svc := NewIndexerService(store, embedder, "pdf_chunks", 1536, nil)

	report, err := svc.IndexMissing(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("IndexMissing: %v", err)
	}
	if report.Embedded != 2 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	if _, ok := store.written["c2"]; ok {
		t.Error("failed chunk should not be written")
	}
}

func TestIndexMissingCountsWriteFailures(t *testing.T) {
	store := &fakeIndexStore{missing: chunkRecords("c1", "c2"), writeErrFor: "c1"}
	svc := NewIndexerService(store, &fakeEmbedder{}, "pdf_chunks", 1536, nil)

	report, err := svc.IndexMissing(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("IndexMissing: %v", err)
	}
	if report.Embedded != 1 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestReindexAllForceUsesEveryChunk(t *testing.T) {
	store := &fakeIndexStore{
		missing: chunkRecords("c3"),
		all:     chunkRecords("c1", "c2", "c3"),
	}
	embedder := &fakeEmbedder{}
	svc := NewIndexerService(store, embedder, "pdf_chunks", 1536, nil)

	report, err := svc.ReindexAll(context.Background(), "u1", "", true)
	if err != nil {
		t.Fatalf("ReindexAll: %v", err)
	}
	if report.Embedded != 3 {
		t.Errorf("embedded = %d, want 3", report.Embedded)
	}

	report, err = svc.ReindexAll(context.Background(), "u1", "", false)
	if err != nil {
		t.Fatalf("ReindexAll: %v", err)
	}
	if report.Embedded != 1 {
		t.Errorf("non-forced embedded = %d, want 1", report.Embedded)
	}
}

func TestIndexMissingStoreError(t *testing.T) {
	store := &fakeIndexStore{queryErr: errors.New("graph down")}
	svc := NewIndexerService(store, &fakeEmbedder{}, "pdf_chunks", 1536, nil)

	if _, err := svc.IndexMissing(context.Background(), "u1", ""); err == nil {
		t.Fatal("expected store error to propagate")
	}
}
