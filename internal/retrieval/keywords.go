package retrieval

import (
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "what": true, "when": true, "where": true,
	"which": true, "their": true, "there": true, "they": true, "them": true,
	"then": true, "than": true, "have": true, "has": true, "had": true,
	"was": true, "were": true, "are": true, "been": true, "being": true,
	"will": true, "would": true, "could": true, "should": true,
	"about": true, "into": true, "does": true, "doing": true,
	"tell": true, "show": true, "find": true, "please": true,
}

// Keywords extracts search terms from a query: lowercased, punctuation
// stripped, stop words and short words removed, order-preserving dedupe.
func Keywords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]bool, len(fields))
	var out []string
	for _, w := range fields {
		if len(w) <= 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// matchesKeywords reports whether any keyword occurs in the chapter's
// title or raw text, case-insensitive substring semantics.
func matchesKeywords(keywords []string, title, content string) bool {
	if len(keywords) == 0 {
		return false
	}
	title = strings.ToLower(title)
	content = strings.ToLower(content)
	for _, kw := range keywords {
		if strings.Contains(title, kw) || strings.Contains(content, kw) {
			return true
		}
	}
	return false
}
