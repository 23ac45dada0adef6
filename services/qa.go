package services

import (
	"context"
	"fmt"
	"strings"

	"docugraph-backend/internal/logger"
	"docugraph-backend/internal/telemetry"
	"docugraph-backend/models"
)

const noInformationAnswer = "I don't have enough information to answer that question."

const qaSystemPrompt = `You are a knowledgeable assistant that answers questions using only the document excerpts provided in the context. Answer concisely and base every statement on the context. If the context does not contain the answer, say so plainly instead of guessing. When you use information from a document, mention which document it came from.`

// Retriever supplies evidence chunks for a question.
type Retriever interface {
	Retrieve(ctx context.Context, userID, question string, filenames []string) ([]models.ScoredChunk, string, error)
}

// Completer synthesizes an answer from prompts.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int32) (string, error)
}

// QAService answers questions over a user's ingested documents. The result
// is always a well-formed AnswerResult; failures come back with status
// "error" rather than as transport faults.
type QAService struct {
	retriever Retriever
	completer Completer
	metrics   *telemetry.Metrics

	maxContextChars int
	answerMaxTokens int32
}

func NewQAService(retriever Retriever, completer Completer, maxContextChars int, answerMaxTokens int32, metrics *telemetry.Metrics) *QAService {
	return &QAService{
		retriever:       retriever,
		completer:       completer,
		metrics:         metrics,
		maxContextChars: maxContextChars,
		answerMaxTokens: answerMaxTokens,
	}
}

// Answer retrieves evidence for the question and synthesizes a grounded
// answer with source attributions.
func (s *QAService) Answer(ctx context.Context, userID, question string, filenames []string) models.AnswerResult {
	scored, strategy, err := s.retriever.Retrieve(ctx, userID, question, filenames)
	if err != nil {
		logger.Error("retrieval failed", "user_id", userID, "error", err)
		return models.AnswerResult{
			Status:   "error",
			Question: question,
			Sources:  []models.Source{},
			Strategy: strategy,
			Error:    fmt.Sprintf("retrieval failed: %v", err),
		}
	}

	if len(scored) == 0 {
		return models.AnswerResult{
			Status:   "success",
			Answer:   noInformationAnswer,
			Question: question,
			Sources:  []models.Source{},
			Strategy: strategy,
		}
	}

	contextText, sources := s.buildContext(scored)

	if s.completer == nil {
		return models.AnswerResult{
			Status:       "error",
			Question:     question,
			Sources:      sources,
			TotalSources: len(sources),
			Strategy:     strategy,
			Error:        "answer synthesis is not configured",
		}
	}

	userPrompt := fmt.Sprintf("Context from the user's documents:\n\n%s\n\nQuestion: %s", contextText, question)
	answer, err := s.completer.Complete(ctx, qaSystemPrompt, userPrompt, s.answerMaxTokens)
	if err != nil {
		logger.Error("answer synthesis failed", "user_id", userID, "error", err)
		return models.AnswerResult{
			Status:       "error",
			Question:     question,
			Sources:      sources,
			TotalSources: len(sources),
			Strategy:     strategy,
			Error:        fmt.Sprintf("answer synthesis failed: %v", err),
		}
	}

	if s.metrics != nil {
		s.metrics.RecordQuestion(strategy, len(sources))
	}
	return models.AnswerResult{
		Status:       "success",
		Answer:       answer,
		Question:     question,
		Sources:      sources,
		TotalSources: len(sources),
		Strategy:     strategy,
	}
}

// buildContext renders chunks into the prompt context, stopping once the
// character budget is spent. Sources mirror exactly the chunks that made it
// into the context.
func (s *QAService) buildContext(scored []models.ScoredChunk) (string, []models.Source) {
	var blocks []string
	var sources []models.Source
	total := 0

	for _, sc := range scored {
		block := fmt.Sprintf("Document: %s\nSource: %s\nSection: %s\n---", sc.Chunk.Text, sc.Chunk.Filename, sc.Chunk.Section)
		if total+len(block) > s.maxContextChars && len(blocks) > 0 {
			break
		}
		blocks = append(blocks, block)
		total += len(block)

		sources = append(sources, models.Source{
			Filename:   sc.Chunk.Filename,
			UserID:     sc.Chunk.UserID,
			Section:    sc.Chunk.Section,
			ChunkIndex: sc.Chunk.ChunkIndex,
			ChunkID:    sc.Chunk.ID,
		})
	}

	return strings.Join(blocks, "\n"), sources
}
