package extract

import (
	"strings"
	"time"

	"github.com/folio-labs/folio/internal/types"
)

const (
	bookFallbackWords    = 500
	chapterFallbackWords = 200

	// FallbackModelVersion marks metadata produced without an LLM.
	FallbackModelVersion = "fallback"
)

func firstWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

// fallbackBookContext builds a deterministic book context from the raw text.
// It is used when extraction fails or the result is below the confidence
// threshold, so downstream stages always have something to work with.
func fallbackBookContext(text string) types.BookContext {
	return types.BookContext{
		Summary:      firstWords(text, bookFallbackWords),
		Characters:   []types.Character{},
		ModelVersion: FallbackModelVersion,
		ExtractedAt:  time.Now().UTC(),
	}
}

// fallbackChapterMetadata is the chapter-level equivalent.
func fallbackChapterMetadata(content string) types.ChapterMetadata {
	return types.ChapterMetadata{
		Summary: firstWords(content, chapterFallbackWords),
	}
}
