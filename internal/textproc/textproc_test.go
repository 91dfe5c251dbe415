package textproc

import (
	"fmt"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Run("line endings", func(t *testing.T) {
		got := Normalize("a\r\nb\rc")
		if got != "a\nb\nc" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("collapses blank runs", func(t *testing.T) {
		got := Normalize("a\n\n\n\n\nb")
		if got != "a\n\nb" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("nfc composition", func(t *testing.T) {
		// e + combining acute composes to a single code point
		decomposed := "café"
		composed := "café"
		if Normalize(decomposed) != composed {
			t.Fatalf("NFC composition not applied")
		}
	})

	t.Run("trims", func(t *testing.T) {
		if got := Normalize("  hello  "); got != "hello" {
			t.Fatalf("got %q", got)
		}
	})
}

func TestWordCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one two\tthree\nfour", 4},
	}
	for _, c := range cases {
		if got := WordCount(c.in); got != c.want {
			t.Errorf("WordCount(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		if got := Truncate("hello", 100); got != "hello" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("cuts at sentence boundary", func(t *testing.T) {
		text := strings.Repeat("word ", 18) + "End. " + "tail tail tail"
		got := Truncate(text, 100)
		if !strings.HasSuffix(got, "End.... (truncated)") {
			t.Fatalf("expected sentence cut, got %q", got)
		}
	})

	t.Run("cuts at word boundary without sentences", func(t *testing.T) {
		text := strings.Repeat("abcd ", 40)
		got := Truncate(text, 100)
		if !strings.HasSuffix(got, "... (truncated)") {
			t.Fatalf("missing marker: %q", got)
		}
		body := strings.TrimSuffix(got, "... (truncated)")
		if strings.HasSuffix(body, " ") {
			t.Fatalf("trailing space before marker: %q", got)
		}
		if len(body) > 100 {
			t.Fatalf("body longer than limit: %d", len(body))
		}
	})

	t.Run("hard cut when no boundary near limit", func(t *testing.T) {
		text := strings.Repeat("x", 200)
		got := Truncate(text, 100)
		if got != strings.Repeat("x", 100)+"... (truncated)" {
			t.Fatalf("got %q", got)
		}
	})
}

func TestChunk(t *testing.T) {
	wordsOf := func(n int) string {
		parts := make([]string, n)
		for i := range parts {
			parts[i] = "w"
		}
		return strings.Join(parts, " ")
	}

	t.Run("empty text yields no chunks", func(t *testing.T) {
		if got := Chunk("", ChunkOpts{}); len(got) != 0 {
			t.Fatalf("got %d chunks", len(got))
		}
	})

	t.Run("single window", func(t *testing.T) {
		got := Chunk(wordsOf(500), ChunkOpts{})
		if len(got) != 1 {
			t.Fatalf("got %d chunks, want 1", len(got))
		}
		if got[0].WordCount != 500 || got[0].Index != 0 {
			t.Fatalf("chunk = %+v", got[0])
		}
	})

	t.Run("overlapping windows", func(t *testing.T) {
		got := Chunk(wordsOf(100), ChunkOpts{MaxWords: 40, OverlapWords: 10, NoSentenceAlign: true})
		// stride 30: windows at 0, 30, 60, 90
		if len(got) != 4 {
			t.Fatalf("got %d chunks, want 4", len(got))
		}
		if got[0].WordCount != 40 || got[3].WordCount != 10 {
			t.Fatalf("word counts: first=%d last=%d", got[0].WordCount, got[3].WordCount)
		}
		for i, c := range got {
			if c.Index != i {
				t.Fatalf("chunk %d has index %d", i, c.Index)
			}
		}
	})

	t.Run("default window boundary", func(t *testing.T) {
		got := Chunk(wordsOf(DefaultChunkWords), ChunkOpts{})
		if len(got) != 1 {
			t.Fatalf("got %d chunks for a full window, want 1", len(got))
		}
		if got[0].WordCount != DefaultChunkWords {
			t.Fatalf("chunk has %d words, want %d", got[0].WordCount, DefaultChunkWords)
		}
	})

	t.Run("default overlap carries words across windows", func(t *testing.T) {
		parts := make([]string, 1601)
		for i := range parts {
			parts[i] = fmt.Sprintf("w%d", i)
		}
		got := Chunk(strings.Join(parts, " "), ChunkOpts{})
		// stride 700: windows at 0, 700, 1400
		if len(got) != 3 {
			t.Fatalf("got %d chunks, want 3", len(got))
		}
		if got[0].WordCount != DefaultChunkWords {
			t.Fatalf("first chunk has %d words, want %d", got[0].WordCount, DefaultChunkWords)
		}
		for i := 0; i < len(got)-1; i++ {
			prev := strings.Fields(got[i].Text)
			next := strings.Fields(got[i+1].Text)
			tail := prev[len(prev)-DefaultOverlapWords:]
			head := next[:DefaultOverlapWords]
			for j := range tail {
				if tail[j] != head[j] {
					t.Fatalf("chunks %d/%d do not overlap at word %d: %q vs %q", i, i+1, j, tail[j], head[j])
				}
			}
		}
	})

	t.Run("aligns to sentence end in final fifth", func(t *testing.T) {
		// 40-word window; sentence terminator at word 36 (inside final 20%)
		words := make([]string, 100)
		for i := range words {
			words[i] = "w"
		}
		words[35] = "w."
		got := Chunk(strings.Join(words, " "), ChunkOpts{MaxWords: 40, OverlapWords: 10})
		if got[0].WordCount != 36 {
			t.Fatalf("first chunk has %d words, want 36", got[0].WordCount)
		}
		if !strings.HasSuffix(got[0].Text, "w.") {
			t.Fatalf("first chunk does not end at sentence: %q", got[0].Text)
		}
		// Next window starts relative to the shortened chunk, so no words
		// between the two chunks are lost.
		if len(got) < 2 {
			t.Fatalf("expected continuation chunk")
		}
	})
}
