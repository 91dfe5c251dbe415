package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/folio-labs/folio/internal/providers"
	"github.com/folio-labs/folio/internal/textproc"
	"github.com/folio-labs/folio/internal/types"
)

// Validation accumulates the findings from checking extracted metadata.
// Each category carries a different confidence penalty.
type Validation struct {
	Errors        []string
	Warnings      []string
	MissingFields []string
	InvalidFields []string
}

// Confidence scores a validation result on [0, 1]. Structural errors are
// penalized hardest, advisory warnings least.
func (v Validation) Confidence() float64 {
	c := 1.0
	c -= 0.2 * float64(len(v.Errors))
	c -= 0.05 * float64(len(v.Warnings))
	c -= 0.1 * float64(len(v.MissingFields))
	c -= 0.15 * float64(len(v.InvalidFields))
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func (v *Validation) addSchemaFailures(schema, raw json.RawMessage) {
	for _, msg := range providers.ValidateStructuredJSON(schema, raw) {
		v.Errors = append(v.Errors, msg)
		switch {
		case strings.Contains(msg, "missing propert"):
			v.MissingFields = append(v.MissingFields, msg)
		case strings.Contains(msg, "expected"):
			v.InvalidFields = append(v.InvalidFields, msg)
		}
	}
}

var validRoles = map[types.CharacterRole]bool{
	types.RoleMain:       true,
	types.RoleSupporting: true,
	types.RoleMinor:      true,
}

var validPOVs = map[string]bool{"first": true, "second": true, "third": true}

// ValidateBookContext checks an extracted book context against its schema
// and the content-level expectations a usable context should meet.
func ValidateBookContext(raw json.RawMessage, bc types.BookContext) Validation {
	var v Validation
	v.addSchemaFailures(bookContextSchema, raw)

	if words := textproc.WordCount(bc.Summary); bc.Summary != "" {
		if words < 500 {
			v.Warnings = append(v.Warnings, fmt.Sprintf("summary is short: %d words (expected at least 500)", words))
		} else if words > 1000 {
			v.Warnings = append(v.Warnings, fmt.Sprintf("summary is long: %d words (expected at most 1000)", words))
		}
	}

	for _, ch := range bc.Characters {
		if ch.Role != "" && !validRoles[ch.Role] {
			v.Warnings = append(v.Warnings, fmt.Sprintf("character %q has unrecognized role %q", ch.Name, ch.Role))
		}
	}

	if pov := strings.ToLower(bc.WritingStyle.POV); pov != "" && !validPOVs[pov] {
		v.Warnings = append(v.Warnings, fmt.Sprintf("unrecognized point of view %q", bc.WritingStyle.POV))
	}

	for _, act := range []struct {
		name  string
		value string
	}{
		{"story_arc.act1", bc.StoryArc.Act1},
		{"story_arc.act2", bc.StoryArc.Act2},
		{"story_arc.act3", bc.StoryArc.Act3},
	} {
		if act.value == "" {
			v.MissingFields = append(v.MissingFields, act.name)
			v.Warnings = append(v.Warnings, fmt.Sprintf("%s is empty", act.name))
		}
	}

	return v
}

// ValidateChapterMetadata checks extracted chapter metadata the same way.
func ValidateChapterMetadata(raw json.RawMessage, md types.ChapterMetadata) Validation {
	var v Validation
	v.addSchemaFailures(chapterMetadataSchema, raw)

	if words := textproc.WordCount(md.Summary); md.Summary != "" {
		if words < 100 {
			v.Warnings = append(v.Warnings, fmt.Sprintf("summary is short: %d words (expected at least 100)", words))
		} else if words > 300 {
			v.Warnings = append(v.Warnings, fmt.Sprintf("summary is long: %d words (expected at most 300)", words))
		}
	}

	for _, ca := range md.CharacterAppearances {
		if ca.Name == "" {
			v.Errors = append(v.Errors, "character appearance with empty name")
		}
	}

	return v
}
