package retrieval

import "strings"

// Scope is the level of context a query is asking about.
type Scope string

const (
	ScopeBook    Scope = "book"
	ScopeChapter Scope = "chapter"
	ScopeMixed   Scope = "mixed"
)

var bookScopeMarkers = []string{
	"overall", "theme", "whole book", "entire book", "whole story",
	"story arc", "protagonist", "character arc", "genre", "ending",
	"plot of the book", "premise",
}

var chapterScopeMarkers = []string{
	"this chapter", "current chapter", "last chapter", "just wrote",
	"latest chapter", "this scene", "recent", "previous chapter",
}

// Classify decides which retrieval paths a query should take. Markers
// for both scopes, or neither, yield the mixed scope.
func Classify(query string) Scope {
	q := strings.ToLower(query)

	book := containsAny(q, bookScopeMarkers)
	chapter := containsAny(q, chapterScopeMarkers)

	switch {
	case book && !chapter:
		return ScopeBook
	case chapter && !book:
		return ScopeChapter
	default:
		return ScopeMixed
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
