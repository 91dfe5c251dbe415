// Package extract turns raw manuscript text into structured metadata using
// an LLM, validates the output, and degrades to deterministic fallbacks
// rather than failing. Callers only see an error when the context is
// canceled; every other failure mode produces a low-confidence result.
package extract

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/folio-labs/folio/internal/providers"
	"github.com/folio-labs/folio/internal/textproc"
	"github.com/folio-labs/folio/internal/types"
)

// ConfidenceThreshold is the score below which an extraction result is
// discarded in favor of the deterministic fallback.
const ConfidenceThreshold = 0.5

// Result carries extracted metadata together with how much to trust it.
type Result[T any] struct {
	Data         T
	Validation   Validation
	Confidence   float64
	ModelVersion string
	UsedFallback bool
}

// Service runs metadata extraction against a chat-completion provider.
type Service struct {
	llm    providers.LLMClient
	model  string
	logger *slog.Logger

	temperature float64
	maxTokens   int
}

// NewService wires an extraction service. model may be empty to use the
// provider's default.
func NewService(llm providers.LLMClient, model string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		llm:         llm,
		model:       model,
		logger:      logger.With("component", "extract"),
		temperature: 0.3,
		maxTokens:   4096,
	}
}

// BookContext extracts book-level metadata from the full manuscript text.
// Input is truncated to keep the prompt within model limits.
func (s *Service) BookContext(ctx context.Context, title, text string) (Result[types.BookContext], error) {
	truncated := textproc.Truncate(text, textproc.DefaultMaxChars)

	raw, modelUsed, err := s.chat(ctx, bookSystemPrompt, bookPrompt(title, truncated), bookContextSchema)
	if err != nil {
		if ctx.Err() != nil {
			return Result[types.BookContext]{}, ctx.Err()
		}
		s.logger.Warn("book extraction failed, using fallback", "title", title, "error", err)
		return s.bookFallback(text), nil
	}

	var bc types.BookContext
	if err := json.Unmarshal(raw, &bc); err != nil {
		s.logger.Warn("book extraction returned undecodable JSON, using fallback", "title", title, "error", err)
		return s.bookFallback(text), nil
	}

	v := ValidateBookContext(raw, bc)
	confidence := v.Confidence()
	if confidence < ConfidenceThreshold {
		s.logger.Warn("book extraction below confidence threshold, using fallback",
			"title", title, "confidence", confidence,
			"errors", len(v.Errors), "warnings", len(v.Warnings))
		res := s.bookFallback(text)
		res.Validation = v
		return res, nil
	}

	bc.ModelVersion = modelUsed
	bc.Confidence = confidence
	bc.ExtractedAt = time.Now().UTC()
	return Result[types.BookContext]{
		Data:         bc,
		Validation:   v,
		Confidence:   confidence,
		ModelVersion: modelUsed,
	}, nil
}

// ChapterMetadata extracts chapter-level metadata.
func (s *Service) ChapterMetadata(ctx context.Context, number int, title, content string) (Result[types.ChapterMetadata], error) {
	raw, modelUsed, err := s.chat(ctx, chapterSystemPrompt, chapterPrompt(number, title, content), chapterMetadataSchema)
	if err != nil {
		if ctx.Err() != nil {
			return Result[types.ChapterMetadata]{}, ctx.Err()
		}
		s.logger.Warn("chapter extraction failed, using fallback", "chapter", number, "error", err)
		return s.chapterFallback(content), nil
	}

	var md types.ChapterMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		s.logger.Warn("chapter extraction returned undecodable JSON, using fallback", "chapter", number, "error", err)
		return s.chapterFallback(content), nil
	}

	v := ValidateChapterMetadata(raw, md)
	confidence := v.Confidence()
	if confidence < ConfidenceThreshold {
		s.logger.Warn("chapter extraction below confidence threshold, using fallback",
			"chapter", number, "confidence", confidence,
			"errors", len(v.Errors), "warnings", len(v.Warnings))
		res := s.chapterFallback(content)
		res.Validation = v
		return res, nil
	}

	return Result[types.ChapterMetadata]{
		Data:         md,
		Validation:   v,
		Confidence:   confidence,
		ModelVersion: modelUsed,
	}, nil
}

func (s *Service) chat(ctx context.Context, system, user string, schema json.RawMessage) (json.RawMessage, string, error) {
	result, err := s.llm.Chat(ctx, &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Model:          s.model,
		Temperature:    s.temperature,
		MaxTokens:      s.maxTokens,
		ResponseFormat: jsonFormat(schema),
	})
	if err != nil {
		return nil, "", err
	}
	if len(result.ParsedJSON) == 0 {
		parsed, perr := providers.ParseStructuredJSON(result.Content)
		if perr != nil {
			return nil, "", perr
		}
		result.ParsedJSON = parsed
	}
	return result.ParsedJSON, result.ModelUsed, nil
}

func (s *Service) bookFallback(text string) Result[types.BookContext] {
	bc := fallbackBookContext(text)
	bc.Confidence = ConfidenceThreshold
	return Result[types.BookContext]{
		Data:         bc,
		Confidence:   ConfidenceThreshold,
		ModelVersion: FallbackModelVersion,
		UsedFallback: true,
	}
}

func (s *Service) chapterFallback(content string) Result[types.ChapterMetadata] {
	return Result[types.ChapterMetadata]{
		Data:         fallbackChapterMetadata(content),
		Confidence:   ConfidenceThreshold,
		ModelVersion: FallbackModelVersion,
		UsedFallback: true,
	}
}
