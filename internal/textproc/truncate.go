package textproc

import "strings"

// DefaultMaxChars bounds text sent to language models.
const DefaultMaxChars = 50000

var sentenceEnds = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// Truncate shortens text to at most maxChars plus a truncation marker,
// preferring to cut at a sentence boundary when one falls in the final
// 20% of the window, then at a word boundary in the final 10%. Text at
// or under the limit is returned unchanged.
func Truncate(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	cut := text[:maxChars]

	last := -1
	for _, end := range sentenceEnds {
		if idx := strings.LastIndex(cut, end); idx > last {
			last = idx
		}
	}
	if last > int(float64(maxChars)*0.8) {
		return cut[:last+1] + "... (truncated)"
	}

	if space := strings.LastIndex(cut, " "); space > int(float64(maxChars)*0.9) {
		return cut[:space] + "... (truncated)"
	}

	return cut + "... (truncated)"
}
