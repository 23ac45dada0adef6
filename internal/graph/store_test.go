package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docugraph-backend/models"
)

// fakeQuerier records every statement and replays canned results.
type fakeQuerier struct {
	calls   []recordedCall
	results map[string][]map[string]any
	err     error
}

type recordedCall struct {
	cypher string
	params map[string]any
}

func (f *fakeQuerier) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.calls = append(f.calls, recordedCall{cypher: cypher, params: params})
	if f.err != nil {
		return nil, f.err
	}
	for key, result := range f.results {
		if strings.Contains(cypher, key) {
			return result, nil
		}
	}
	return nil, nil
}

func (f *fakeQuerier) callsContaining(fragment string) []recordedCall {
	var matched []recordedCall
	for _, call := range f.calls {
		if strings.Contains(call.cypher, fragment) {
			matched = append(matched, call)
		}
	}
	return matched
}

func TestStoreUnavailableWithoutQuerier(t *testing.T) {
	store := NewStore(nil)

	if store.Available() {
		t.Fatal("store with nil querier should report unavailable")
	}
	if err := store.UpsertUser(context.Background(), "u1", "", ""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("UpsertUser error = %v, want ErrUnavailable", err)
	}
	if _, err := store.ListFiles(context.Background(), "u1"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("ListFiles error = %v, want ErrUnavailable", err)
	}
	if _, err := store.DiversityChunks(context.Background(), "u1", nil, 5, 10); !errors.Is(err, ErrUnavailable) {
		t.Errorf("DiversityChunks error = %v, want ErrUnavailable", err)
	}
}

func TestChunkIDAndSection(t *testing.T) {
	if got := ChunkID("u1", "doc.pdf", 7); got != "u1_doc.pdf_chunk_7" {
		t.Errorf("ChunkID = %q", got)
	}
	if got := SectionID("u1", "doc.pdf", 7); got != "u1_doc.pdf_section_0" {
		t.Errorf("SectionID(7) = %q", got)
	}
	if got := SectionID("u1", "doc.pdf", 25); got != "u1_doc.pdf_section_2" {
		t.Errorf("SectionID(25) = %q", got)
	}
}

func TestReplaceFileBatchesChunks(t *testing.T) {
	fake := &fakeQuerier{}
	store := NewStore(fake)

	chunks := make([]string, 60)
	for i := range chunks {
		chunks[i] = "chunk text"
	}

	err := store.ReplaceFile(context.Background(), "u1", "doc.pdf", chunks, models.ExtractionStats{PagesProcessed: 3}, "")
	if err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}

	batches := fake.callsContaining("UNWIND $batch")
	if len(batches) != 2 {
		t.Fatalf("got %d batch statements, want 2", len(batches))
	}

	first, ok := batches[0].params["batch"].([]map[string]any)
	if !ok || len(first) != 50 {
		t.Fatalf("first batch size = %d, want 50", len(first))
	}
	second := batches[1].params["batch"].([]map[string]any)
	if len(second) != 10 {
		t.Fatalf("second batch size = %d, want 10", len(second))
	}

	if id := second[0]["id"]; id != "u1_doc.pdf_chunk_50" {
		t.Errorf("second batch first id = %v", id)
	}
	if section := second[0]["section"]; section != "u1_doc.pdf_section_5" {
		t.Errorf("second batch first section = %v", section)
	}

	// Prior chunks must be cleared before new ones are created.
	cleared := fake.callsContaining("DETACH DELETE c")
	if len(cleared) != 1 {
		t.Fatalf("got %d clear statements, want 1", len(cleared))
	}
	if cleared[0].params["filename"] != "doc.pdf" {
		t.Errorf("clear statement filename param = %v", cleared[0].params["filename"])
	}
}

func TestReplaceFileParameterizesScope(t *testing.T) {
	fake := &fakeQuerier{}
	store := NewStore(fake)

	err := store.ReplaceFile(context.Background(), "u1", "a'b.pdf", []string{"text"}, models.ExtractionStats{}, "")
	if err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}

	for _, call := range fake.calls {
		if strings.Contains(call.cypher, "a'b.pdf") {
			t.Fatalf("filename spliced into cypher: %s", call.cypher)
		}
	}
}

func TestDeleteFileNotFound(t *testing.T) {
	fake := &fakeQuerier{}
	store := NewStore(fake)

	_, err := store.DeleteFile(context.Background(), "u1", "missing.pdf")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteFile error = %v, want ErrNotFound", err)
	}
}

func TestDeleteFileReportsChunkCount(t *testing.T) {
	fake := &fakeQuerier{
		results: map[string][]map[string]any{
			"count(c) AS chunks": {{"filename": "doc.pdf", "chunks": int64(12)}},
		},
	}
	store := NewStore(fake)

	removed, err := store.DeleteFile(context.Background(), "u1", "doc.pdf")
	if err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if removed != 12 {
		t.Errorf("removed = %d, want 12", removed)
	}
}

func TestDeleteUserNotFound(t *testing.T) {
	fake := &fakeQuerier{
		results: map[string][]map[string]any{
			"count(DISTINCT f)": {{"user_id": nil, "total_files": int64(0), "total_chunks": int64(0)}},
		},
	}
	store := NewStore(fake)

	_, _, err := store.DeleteUser(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteUser error = %v, want ErrNotFound", err)
	}
}

func TestDiversityChunksNilFilenames(t *testing.T) {
	fake := &fakeQuerier{}
	store := NewStore(fake)

	_, err := store.DiversityChunks(context.Background(), "u1", nil, 5, 10)
	if err != nil {
		t.Fatalf("DiversityChunks: %v", err)
	}

	call := fake.calls[0]
	if call.params["filenames"] != nil {
		t.Errorf("empty filter should travel as nil, got %v", call.params["filenames"])
	}
	if call.params["per_file_cap"] != 5 || call.params["global_cap"] != 10 {
		t.Errorf("caps = %v / %v", call.params["per_file_cap"], call.params["global_cap"])
	}
	if !strings.Contains(call.cypher, "$filenames IS NULL OR") {
		t.Error("query should guard the nil filename filter")
	}
}

func TestSimilaritySearchDecodesScores(t *testing.T) {
	fake := &fakeQuerier{
		results: map[string][]map[string]any{
			"vector.similarity.cosine": {
				{"id": "u1_a_chunk_0", "text": "alpha", "chunk_index": int64(0), "section": "u1_a_section_0", "length": int64(5), "filename": "a", "user_id": "u1", "score": 0.91},
			},
		},
	}
	store := NewStore(fake)

	scored, err := store.SimilaritySearch(context.Background(), "u1", []string{"a"}, []float32{0.1, 0.2}, 5, 0.7)
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(scored) != 1 {
		t.Fatalf("got %d results, want 1", len(scored))
	}
	if scored[0].Score != 0.91 {
		t.Errorf("score = %f", scored[0].Score)
	}
	if scored[0].Chunk.Text != "alpha" {
		t.Errorf("text = %q", scored[0].Chunk.Text)
	}

	params := fake.calls[0].params
	embedding, ok := params["embedding"].([]float64)
	if !ok || len(embedding) != 2 {
		t.Fatalf("embedding param = %v, want []float64 of len 2", params["embedding"])
	}
	if params["min_score"] != 0.7 {
		t.Errorf("min_score = %v", params["min_score"])
	}
}

func TestChunkByIDScopedToUser(t *testing.T) {
	fake := &fakeQuerier{}
	store := NewStore(fake)

	_, err := store.ChunkByID(context.Background(), "u1", "u2_doc_chunk_0")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ChunkByID error = %v, want ErrNotFound", err)
	}
	if fake.calls[0].params["user_id"] != "u1" {
		t.Error("lookup must carry the requesting user's id")
	}
}

func TestQuerierErrorPropagates(t *testing.T) {
	fake := &fakeQuerier{err: errors.New("connection reset")}
	store := NewStore(fake)

	if _, err := store.ListFiles(context.Background(), "u1"); err == nil {
		t.Fatal("expected error from failing querier")
	}
	if err := store.ReplaceFile(context.Background(), "u1", "f", []string{"x"}, models.ExtractionStats{}, ""); err == nil {
		t.Fatal("expected error from failing querier")
	}
}
