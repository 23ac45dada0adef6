package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"docugraph-backend/internal/graph"
	"docugraph-backend/models"
)

type fakeTraversalStore struct {
	chunks      map[string]models.ChunkRecord
	next        map[string][]models.ChunkRecord
	files       map[string]models.FileInfo
	unavailable bool
}

func (f *fakeTraversalStore) ChunkByID(ctx context.Context, userID, chunkID string) (*models.ChunkRecord, error) {
	if f.unavailable {
		return nil, graph.ErrUnavailable
	}
	chunk, ok := f.chunks[chunkID]
	if !ok || chunk.UserID != userID {
		return nil, graph.ErrNotFound
	}
	return &chunk, nil
}

func (f *fakeTraversalStore) NextChunks(ctx context.Context, userID, chunkID string, limit int) ([]models.ChunkRecord, error) {
	next := f.next[chunkID]
	if len(next) > limit {
		next = next[:limit]
	}
	return next, nil
}

func (f *fakeTraversalStore) FileInfo(ctx context.Context, userID, filename string) (*models.FileInfo, error) {
	info, ok := f.files[filename]
	if !ok {
		return nil, graph.ErrNotFound
	}
	return &info, nil
}

func traversalFixture() *fakeTraversalStore {
	return &fakeTraversalStore{
		chunks: map[string]models.ChunkRecord{
			"u1_doc.pdf_chunk_0": {
				ID: "u1_doc.pdf_chunk_0", UserID: "u1", Filename: "doc.pdf",
				Text: "The opening paragraph of the document.", ChunkIndex: 0,
				Section: "u1_doc.pdf_section_0",
			},
		},
		next: map[string][]models.ChunkRecord{
			"u1_doc.pdf_chunk_0": {
				{ID: "u1_doc.pdf_chunk_1", UserID: "u1", Filename: "doc.pdf", Text: "Second part.", ChunkIndex: 1},
				{ID: "u1_doc.pdf_chunk_2", UserID: "u1", Filename: "doc.pdf", Text: "Third part.", ChunkIndex: 2},
				{ID: "u1_doc.pdf_chunk_3", UserID: "u1", Filename: "doc.pdf", Text: "Fourth part.", ChunkIndex: 3},
			},
		},
		files: map[string]models.FileInfo{
			"doc.pdf": {Filename: "doc.pdf", UserID: "u1", TotalChunks: 9},
		},
	}
}

func TestBuildPathAssemblesSubgraph(t *testing.T) {
	svc := NewTraversalService(traversalFixture())

	path := svc.BuildPath(context.Background(), "u1", []models.Source{
		{ChunkID: "u1_doc.pdf_chunk_0", Filename: "doc.pdf"},
	})

	if path.Error != "" {
		t.Fatalf("unexpected error: %s", path.Error)
	}

	// Source chunk, two next hops, one file node.
	if len(path.Nodes) != 4 {
		t.Fatalf("got %d nodes, want 4", len(path.Nodes))
	}

	types := make(map[string]int)
	for _, node := range path.Nodes {
		types[node.Type]++
	}
	if types["chunk"] != 1 || types["related_chunk"] != 2 || types["file"] != 1 {
		t.Errorf("node types = %v", types)
	}

	// Two follows edges, plus one contains edge per chunk node of the file.
	if len(path.Edges) != 5 {
		t.Fatalf("got %d edges, want 5", len(path.Edges))
	}
	follows, contains := 0, 0
	for _, edge := range path.Edges {
		switch edge.Type {
		case "NEXT":
			follows++
			if edge.Label != "follows" {
				t.Errorf("NEXT edge label = %q", edge.Label)
			}
		case "HAS_CHUNK":
			contains++
			if edge.Label != "contains" {
				t.Errorf("HAS_CHUNK edge label = %q", edge.Label)
			}
		}
	}
	if follows != 2 || contains != 3 {
		t.Errorf("follows/contains = %d/%d", follows, contains)
	}

	if path.Metadata.TotalNodes != 4 || path.Metadata.TotalEdges != 5 {
		t.Errorf("metadata = %+v", path.Metadata)
	}
	if len(path.Metadata.FilesInvolved) != 1 || path.Metadata.FilesInvolved[0] != "doc.pdf" {
		t.Errorf("files involved = %v", path.Metadata.FilesInvolved)
	}
}

func TestBuildPathFileNodeCarriesTotalChunks(t *testing.T) {
	svc := NewTraversalService(traversalFixture())

	path := svc.BuildPath(context.Background(), "u1", []models.Source{
		{ChunkID: "u1_doc.pdf_chunk_0"},
	})

	for _, node := range path.Nodes {
		if node.Type == "file" {
			if node.ID != "file_doc.pdf" {
				t.Errorf("file node id = %q", node.ID)
			}
			if node.TotalChunks != 9 {
				t.Errorf("file total chunks = %d", node.TotalChunks)
			}
			return
		}
	}
	t.Fatal("no file node in path")
}

func TestBuildPathSkipsStaleSources(t *testing.T) {
	svc := NewTraversalService(traversalFixture())

	path := svc.BuildPath(context.Background(), "u1", []models.Source{
		{ChunkID: "u1_deleted.pdf_chunk_0"},
		{ChunkID: "u1_doc.pdf_chunk_0"},
	})

	if path.Error != "" {
		t.Fatalf("unexpected error: %s", path.Error)
	}
	if path.Metadata.TotalNodes != 4 {
		t.Errorf("stale source should be skipped, nodes = %d", path.Metadata.TotalNodes)
	}
}

func TestBuildPathScopedToUser(t *testing.T) {
	svc := NewTraversalService(traversalFixture())

	path := svc.BuildPath(context.Background(), "other-user", []models.Source{
		{ChunkID: "u1_doc.pdf_chunk_0"},
	})

	if len(path.Nodes) != 0 || len(path.Edges) != 0 {
		t.Errorf("foreign user should see nothing, got %d nodes", len(path.Nodes))
	}
}

func TestBuildPathUnavailableStore(t *testing.T) {
	svc := NewTraversalService(&fakeTraversalStore{unavailable: true})

	path := svc.BuildPath(context.Background(), "u1", []models.Source{
		{ChunkID: "u1_doc.pdf_chunk_0"},
	})

	if path.Error == "" {
		t.Fatal("expected error payload when store is unavailable")
	}
	if path.Nodes == nil || path.Edges == nil {
		t.Error("nodes and edges should be empty slices, not nil")
	}
}

func TestBuildPathTextPreviewTruncated(t *testing.T) {
	store := traversalFixture()
	long := strings.Repeat("paragraph text ", 20)
	store.chunks["u1_doc.pdf_chunk_0"] = models.ChunkRecord{
		ID: "u1_doc.pdf_chunk_0", UserID: "u1", Filename: "doc.pdf",
		Text: long, ChunkIndex: 0,
	}
	svc := NewTraversalService(store)

	path := svc.BuildPath(context.Background(), "u1", []models.Source{
		{ChunkID: "u1_doc.pdf_chunk_0"},
	})

	for _, node := range path.Nodes {
		if node.Type == "chunk" {
			if len(node.Text) != 103 || !strings.HasSuffix(node.Text, "...") {
				t.Errorf("preview length %d, text %q", len(node.Text), node.Text)
			}
			return
		}
	}
	t.Fatal("no chunk node in path")
}

func TestTextPreviewMultibyte(t *testing.T) {
	preview := textPreview(strings.Repeat("é", 150))

	if !utf8.ValidString(preview) {
		t.Errorf("preview is not valid UTF-8: %q", preview)
	}
	if n := len([]rune(preview)); n != textPreviewChars+3 {
		t.Errorf("preview rune length = %d", n)
	}
	if !strings.HasSuffix(preview, "...") {
		t.Errorf("preview should end with ellipsis: %q", preview)
	}
}

func TestChunkLabel(t *testing.T) {
	tests := []struct {
		name  string
		chunk models.ChunkRecord
		check func(t *testing.T, label string)
	}{
		{
			name:  "short text used whole",
			chunk: models.ChunkRecord{Text: "brief note", ChunkIndex: 2},
			check: func(t *testing.T, label string) {
				if label != "brief note" {
					t.Errorf("label = %q", label)
				}
			},
		},
		{
			name:  "empty text falls back to index",
			chunk: models.ChunkRecord{Text: "   ", ChunkIndex: 7},
			check: func(t *testing.T, label string) {
				if label != "Chunk 7" {
					t.Errorf("label = %q", label)
				}
			},
		},
		{
			name:  "long text bounded with ellipsis",
			chunk: models.ChunkRecord{Text: strings.Repeat("several words in a row ", 10), ChunkIndex: 0},
			check: func(t *testing.T, label string) {
				if n := len([]rune(label)); n > labelMaxLen+3 {
					t.Errorf("label length %d: %q", n, label)
				}
				if !strings.HasSuffix(label, "...") {
					t.Errorf("label should end with ellipsis: %q", label)
				}
			},
		},
		{
			name:  "long text keeps the closing words",
			chunk: models.ChunkRecord{Text: strings.Repeat("filler ", 30) + "the closing words matter", ChunkIndex: 0},
			check: func(t *testing.T, label string) {
				if !strings.Contains(label, "closing words matter") {
					t.Errorf("label should keep the end of the text: %q", label)
				}
				if strings.HasPrefix(label, "filler filler") {
					t.Errorf("label should not start from the head of the text: %q", label)
				}
			},
		},
		{
			name:  "multi-byte text stays valid",
			chunk: models.ChunkRecord{Text: strings.Repeat("日本語のテキスト ", 20), ChunkIndex: 0},
			check: func(t *testing.T, label string) {
				if !utf8.ValidString(label) {
					t.Errorf("label is not valid UTF-8: %q", label)
				}
				if n := len([]rune(label)); n > labelMaxLen+3 {
					t.Errorf("label length %d: %q", n, label)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label := chunkLabel(&tt.chunk)
			tt.check(t, label)
		})
	}
}
