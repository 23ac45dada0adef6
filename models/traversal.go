package models

// TraversalNode is one rendering-ready node of the evidence subgraph.
// Type is "chunk", "related_chunk" or "file".
type TraversalNode struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Section     string `json:"section,omitempty"`
	Filename    string `json:"filename"`
	TotalChunks int    `json:"total_chunks,omitempty"`
}

// TraversalEdge connects two traversal nodes. Type carries the graph
// relationship (NEXT, HAS_CHUNK); Label the display name (follows, contains).
type TraversalEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
	Label  string `json:"label"`
}

type TraversalMetadata struct {
	TotalNodes    int      `json:"total_nodes"`
	TotalEdges    int      `json:"total_edges"`
	FilesInvolved []string `json:"files_involved"`
}

// TraversalPath is the explainability payload for one answer.
type TraversalPath struct {
	Nodes    []TraversalNode   `json:"nodes"`
	Edges    []TraversalEdge   `json:"edges"`
	Metadata TraversalMetadata `json:"metadata"`
	Error    string            `json:"error,omitempty"`
}
