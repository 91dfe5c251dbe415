package textproc

import "strings"

// Chunk defaults. 800-word windows with 100 words of overlap keep each
// chunk inside typical embedding-model context limits while preserving
// continuity across boundaries.
const (
	DefaultChunkWords   = 800
	DefaultOverlapWords = 100
)

// ChunkOpts controls how Chunk splits text.
type ChunkOpts struct {
	// MaxWords is the window size per chunk. Zero means DefaultChunkWords.
	MaxWords int
	// OverlapWords is how many words consecutive chunks share.
	// Zero means DefaultOverlapWords.
	OverlapWords int
	// NoSentenceAlign disables trimming chunks back to the last sentence
	// terminator found in the final 20% of the window.
	NoSentenceAlign bool
}

// TextChunk is one window of a chunked text.
type TextChunk struct {
	Text      string
	Index     int
	WordCount int
	CharCount int
}

func endsSentence(word string) bool {
	if word == "" {
		return false
	}
	switch word[len(word)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// Chunk splits text into overlapping word windows. When a chunk is not the
// last one, its tail is trimmed back to the nearest sentence terminator in
// the final 20% of the window, and the next window starts earlier to
// compensate so no words are dropped.
func Chunk(text string, opts ChunkOpts) []TextChunk {
	maxWords := opts.MaxWords
	if maxWords <= 0 {
		maxWords = DefaultChunkWords
	}
	overlap := opts.OverlapWords
	if overlap <= 0 {
		overlap = DefaultOverlapWords
	}
	if overlap >= maxWords {
		overlap = maxWords - 1
	}

	words := strings.Fields(text)
	var chunks []TextChunk

	for i := 0; i < len(words); i += maxWords - overlap {
		end := i + maxWords
		if end > len(words) {
			end = len(words)
		}
		window := words[i:end]
		keep := len(window)

		if !opts.NoSentenceAlign && i+maxWords < len(words) {
			searchStart := int(float64(len(window)) * 0.8)
			for j := len(window) - 1; j >= searchStart; j-- {
				if endsSentence(window[j]) {
					keep = j + 1
					// Start the next window where this one actually ended.
					i -= len(window) - keep
					break
				}
			}
		}

		chunkText := strings.Join(window[:keep], " ")
		chunks = append(chunks, TextChunk{
			Text:      chunkText,
			Index:     len(chunks),
			WordCount: keep,
			CharCount: len(chunkText),
		})
	}

	return chunks
}
