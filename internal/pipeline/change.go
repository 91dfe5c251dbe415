package pipeline

import (
	"context"
	"errors"

	"github.com/folio-labs/folio/internal/fingerprint"
	"github.com/folio-labs/folio/internal/storage"
)

// ChangeDetector decides whether chapter content differs from what was
// last processed. It only reads; recording the new fingerprint happens
// when extraction results are saved.
type ChangeDetector struct {
	chapters *storage.ChapterStore
}

// NewChangeDetector wires a detector over the chapter store.
func NewChangeDetector(chapters *storage.ChapterStore) *ChangeDetector {
	return &ChangeDetector{chapters: chapters}
}

// Change is the outcome of a change check.
type Change struct {
	Changed        bool
	NewFingerprint string
	OldFingerprint string
}

// Check compares content against the chapter's stored fingerprint. A
// chapter that has never been processed reports as changed with an empty
// old fingerprint.
func (d *ChangeDetector) Check(ctx context.Context, bookID string, chapterNumber int, content string) (Change, error) {
	newFP := fingerprint.Content(content)

	oldFP, err := d.chapters.GetFingerprint(ctx, bookID, chapterNumber)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Change{Changed: true, NewFingerprint: newFP}, nil
		}
		return Change{}, err
	}

	return Change{
		Changed:        !fingerprint.Equal(oldFP, newFP),
		NewFingerprint: newFP,
		OldFingerprint: oldFP,
	}, nil
}
