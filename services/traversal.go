package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"docugraph-backend/internal/graph"
	"docugraph-backend/internal/logger"
	"docugraph-backend/models"
)

const (
	nextHopLimit     = 2
	labelSnippetLen  = 50
	labelMaxLen      = 40
	textPreviewChars = 100
)

// TraversalStore is the read slice of the graph store the explainability
// path uses.
type TraversalStore interface {
	ChunkByID(ctx context.Context, userID, chunkID string) (*models.ChunkRecord, error)
	NextChunks(ctx context.Context, userID, chunkID string, limit int) ([]models.ChunkRecord, error)
	FileInfo(ctx context.Context, userID, filename string) (*models.FileInfo, error)
}

// TraversalService reconstructs the evidence subgraph behind an answer:
// the source chunks, the chunks that follow them, and the files that
// contain them. It only reads; answering never mutates the graph.
type TraversalService struct {
	store TraversalStore
}

func NewTraversalService(store TraversalStore) *TraversalService {
	return &TraversalService{store: store}
}

// BuildPath renders the sources of one answer as a node-and-edge subgraph.
// Stale sources are skipped; a dead store yields an error payload instead
// of a fault.
func (s *TraversalService) BuildPath(ctx context.Context, userID string, sources []models.Source) models.TraversalPath {
	path := models.TraversalPath{
		Nodes: []models.TraversalNode{},
		Edges: []models.TraversalEdge{},
	}

	seenNodes := make(map[string]bool)
	fileChunks := make(map[string][]string)

	addChunkNode := func(chunk *models.ChunkRecord, nodeType string) {
		if seenNodes[chunk.ID] {
			return
		}
		seenNodes[chunk.ID] = true
		path.Nodes = append(path.Nodes, chunkNode(chunk, nodeType))
		fileChunks[chunk.Filename] = append(fileChunks[chunk.Filename], chunk.ID)
	}

	for _, source := range sources {
		chunk, err := s.store.ChunkByID(ctx, userID, source.ChunkID)
		if errors.Is(err, graph.ErrNotFound) {
			continue
		}
		if errors.Is(err, graph.ErrUnavailable) {
			path.Error = "unavailable"
			return path
		}
		if err != nil {
			logger.Warn("traversal chunk lookup failed", "chunk_id", source.ChunkID, "error", err)
			continue
		}

		addChunkNode(chunk, "chunk")

		next, err := s.store.NextChunks(ctx, userID, chunk.ID, nextHopLimit)
		if err != nil && !errors.Is(err, graph.ErrNotFound) {
			logger.Warn("traversal next-hop lookup failed", "chunk_id", chunk.ID, "error", err)
		}
		for i := range next {
			related := &next[i]
			addChunkNode(related, "related_chunk")
			path.Edges = append(path.Edges, models.TraversalEdge{
				Source: chunk.ID,
				Target: related.ID,
				Type:   "NEXT",
				Label:  "follows",
			})
		}
	}

	// Files last: one node per involved file, connected to every chunk
	// node collected for it.
	for _, filename := range sortedKeys(involvedFiles(fileChunks)) {
		fileNodeID := "file_" + filename

		totalChunks := 0
		if info, err := s.store.FileInfo(ctx, userID, filename); err == nil {
			totalChunks = info.TotalChunks
		}
		path.Nodes = append(path.Nodes, models.TraversalNode{
			ID:          fileNodeID,
			Label:       filename,
			Type:        "file",
			Filename:    filename,
			TotalChunks: totalChunks,
		})

		for _, chunkID := range fileChunks[filename] {
			path.Edges = append(path.Edges, models.TraversalEdge{
				Source: fileNodeID,
				Target: chunkID,
				Type:   "HAS_CHUNK",
				Label:  "contains",
			})
		}
	}

	path.Metadata = models.TraversalMetadata{
		TotalNodes:    len(path.Nodes),
		TotalEdges:    len(path.Edges),
		FilesInvolved: sortedKeys(involvedFiles(fileChunks)),
	}
	return path
}

func involvedFiles(fileChunks map[string][]string) map[string]bool {
	set := make(map[string]bool, len(fileChunks))
	for filename := range fileChunks {
		set[filename] = true
	}
	return set
}

func chunkNode(chunk *models.ChunkRecord, nodeType string) models.TraversalNode {
	return models.TraversalNode{
		ID:       chunk.ID,
		Label:    chunkLabel(chunk),
		Type:     nodeType,
		Text:     textPreview(chunk.Text),
		Section:  chunk.Section,
		Filename: chunk.Filename,
	}
}

// chunkLabel condenses the chunk's closing words into a short display
// label, falling back to the index when there is no text. Slicing works
// on runes so multi-byte text never yields a broken label.
func chunkLabel(chunk *models.ChunkRecord) string {
	text := strings.TrimSpace(chunk.Text)
	if text == "" {
		return fmt.Sprintf("Chunk %d", chunk.ChunkIndex)
	}

	runes := []rune(text)
	if len(runes) > labelSnippetLen {
		runes = runes[len(runes)-labelSnippetLen:]
	}
	snippet := strings.TrimSpace(string(runes))

	// A full-width snippet likely starts mid-word; drop the partial word.
	if len([]rune(snippet)) == labelSnippetLen {
		if idx := strings.Index(snippet, " "); idx >= 0 {
			snippet = snippet[idx+1:]
		}
	}

	if sr := []rune(snippet); len(sr) > labelMaxLen {
		snippet = string(sr[len(sr)-labelMaxLen:]) + "..."
	}
	return snippet
}

func textPreview(text string) string {
	runes := []rune(text)
	if len(runes) <= textPreviewChars {
		return text
	}
	return string(runes[:textPreviewChars]) + "..."
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
