package ingest

import (
	"regexp"
	"strings"

	"github.com/folio-labs/folio/internal/textproc"
)

// SplitChapter is one chapter produced by SplitChapters.
type SplitChapter struct {
	Number  int
	Title   string
	Content string
}

// Chapter headings: "Chapter 1", "CHAPTER XII - The Storm", or markdown
// "# The Storm" on a line of their own.
var chapterHeading = regexp.MustCompile(`(?mi)^(?:chapter\s+(?:\d+|[ivxlc]+)\b.*|#{1,2}\s+.+)$`)

// SplitChapters divides manuscript text into chapters on heading lines.
// Text with no recognizable headings becomes a single chapter.
func SplitChapters(text string) []SplitChapter {
	text = textproc.Normalize(text)
	if text == "" {
		return nil
	}

	locs := chapterHeading.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []SplitChapter{{Number: 1, Content: text}}
	}

	var chapters []SplitChapter
	for i, loc := range locs {
		heading := strings.TrimSpace(text[loc[0]:loc[1]])
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := strings.TrimSpace(text[loc[1]:end])
		if body == "" {
			continue
		}
		chapters = append(chapters, SplitChapter{
			Number:  len(chapters) + 1,
			Title:   cleanHeading(heading),
			Content: body,
		})
	}

	// Headings matched but every section was empty: fall back to one
	// chapter so ingestion never silently drops content.
	if len(chapters) == 0 {
		return []SplitChapter{{Number: 1, Content: text}}
	}

	// Preamble before the first heading belongs to the first chapter.
	if lead := strings.TrimSpace(text[:locs[0][0]]); lead != "" {
		chapters[0].Content = lead + "\n\n" + chapters[0].Content
	}
	return chapters
}

func cleanHeading(h string) string {
	return strings.TrimSpace(strings.TrimLeft(h, "# "))
}
