package services

import (
	"strings"
	"testing"
)

func TestSplitEmptyText(t *testing.T) {
	svc := NewChunkingService(2000, 400)

	for _, text := range []string{"", "   ", "\n\n\t"} {
		if got := svc.Split(text); len(got) != 0 {
			t.Errorf("Split(%q) = %d chunks, want 0", text, len(got))
		}
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	svc := NewChunkingService(2000, 400)

	chunks := svc.Split("A short document that fits in one chunk.")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0] != "A short document that fits in one chunk." {
		t.Errorf("chunk = %q", chunks[0])
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	svc := NewChunkingService(100, 20)

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("Sentence number one goes here. ")
	}

	chunks := svc.Split(sb.String())
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Errorf("chunk %d length %d exceeds 100", i, len(chunk))
		}
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	svc := NewChunkingService(60, 10)

	text := "First paragraph with enough words in it.\n\nSecond paragraph also with enough words."
	chunks := svc.Split(text)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %q", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[0], "First paragraph") {
		t.Errorf("first chunk = %q", chunks[0])
	}
	if !strings.HasPrefix(chunks[1], "Second paragraph") {
		t.Errorf("second chunk = %q", chunks[1])
	}
}

func TestSplitPreservesOrder(t *testing.T) {
	svc := NewChunkingService(50, 10)

	text := "alpha block one. beta block two. gamma block three. delta block four. epsilon block five."
	chunks := svc.Split(text)

	joined := strings.Join(chunks, " ")
	lastPos := -1
	for _, marker := range []string{"alpha", "beta", "gamma", "delta", "epsilon"} {
		pos := strings.Index(joined, marker)
		if pos < 0 {
			t.Fatalf("marker %q missing from output", marker)
		}
		if pos < lastPos {
			t.Errorf("marker %q out of order", marker)
		}
		lastPos = pos
	}
}

func TestSplitHardCutUnbrokenText(t *testing.T) {
	svc := NewChunkingService(100, 20)

	text := strings.Repeat("x", 350)
	chunks := svc.Split(text)

	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want at least 3", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Errorf("chunk %d length %d exceeds 100", i, len(chunk))
		}
	}
	// Hard cuts step by size minus overlap, so adjacent chunks share text.
	if len(chunks[0]) != 100 {
		t.Errorf("first hard-cut chunk length = %d, want 100", len(chunks[0]))
	}
}

func TestSplitDefaultsMatchConfig(t *testing.T) {
	svc := NewChunkingService(2000, 400)
	if svc.chunkSize != 2000 || svc.overlap != 400 {
		t.Errorf("chunkSize/overlap = %d/%d", svc.chunkSize, svc.overlap)
	}
}
