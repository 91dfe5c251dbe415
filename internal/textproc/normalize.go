// Package textproc provides text normalization, truncation, and chunking
// for manuscript content. All downstream hashing, embedding, and retrieval
// operate on the normalized form produced here.
package textproc

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var multiNewline = regexp.MustCompile(`\n{3,}`)

// Normalize canonicalizes manuscript text: Unicode NFC, CRLF and bare CR
// converted to LF, runs of three or more newlines collapsed to two, and
// leading/trailing whitespace trimmed.
func Normalize(text string) string {
	s := norm.NFC.String(text)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// WordCount reports the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
