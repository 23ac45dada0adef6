package services

import "strings"

// defaultSeparators orders split points from strongest structure to none:
// paragraph breaks first, then lines, sentence ends, clauses, words, and
// finally a hard character cut.
var defaultSeparators = []string{"\n\n", "\n", ".", "!", "?", ",", " ", ""}

// ChunkingService splits extracted text into overlapping chunks that respect
// natural boundaries where the text offers them.
type ChunkingService struct {
	chunkSize  int
	overlap    int
	separators []string
}

func NewChunkingService(chunkSize, overlap int) *ChunkingService {
	return &ChunkingService{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Split breaks text into chunks of at most chunkSize characters. Consecutive
// chunks overlap by up to the configured overlap so context survives the cut.
// Whitespace-only output is dropped.
func (s *ChunkingService) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	chunks := s.splitRecursive(text, s.separators)

	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

func (s *ChunkingService) splitRecursive(text string, separators []string) []string {
	if len(text) <= s.chunkSize {
		return []string{text}
	}

	separator := ""
	remaining := separators
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	if separator == "" {
		return s.hardCut(text)
	}

	pieces := strings.Split(text, separator)
	splits := make([]string, 0, len(pieces))
	for i, piece := range pieces {
		if i < len(pieces)-1 {
			piece += separator
		}
		if piece != "" {
			splits = append(splits, piece)
		}
	}

	var finals []string
	var pending []string
	for _, piece := range splits {
		if len(piece) <= s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		// Oversized piece: flush what we have, then split it with the
		// weaker separators.
		finals = append(finals, s.mergeSplits(pending)...)
		pending = nil
		finals = append(finals, s.splitRecursive(piece, remaining)...)
	}
	finals = append(finals, s.mergeSplits(pending)...)
	return finals
}

// mergeSplits greedily packs splits into chunks up to chunkSize, carrying
// trailing splits forward as overlap when a chunk closes.
func (s *ChunkingService) mergeSplits(splits []string) []string {
	var chunks []string
	var current []string
	total := 0

	for _, piece := range splits {
		if total+len(piece) > s.chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ""))
			for len(current) > 0 && (total > s.overlap || total+len(piece) > s.chunkSize) {
				total -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += len(piece)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

func (s *ChunkingService) hardCut(text string) []string {
	step := s.chunkSize - s.overlap
	if step < 1 {
		step = s.chunkSize
	}

	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + s.chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}
