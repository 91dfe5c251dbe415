package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/folio-labs/folio/internal/flowlog"
	"github.com/folio-labs/folio/internal/jobs"
	"github.com/folio-labs/folio/internal/storage"
	"github.com/folio-labs/folio/internal/types"
)

// Scanner finds work lost to a restart: books without extracted context
// and chapters missing a summary or embedding. It re-enqueues jobs for
// them; the job handlers skip anything already complete.
type Scanner struct {
	store  *storage.Store
	queue  *jobs.Queue
	flow   *flowlog.Logger
	logger *slog.Logger
}

// NewScanner wires a recovery scanner.
func NewScanner(store *storage.Store, queue *jobs.Queue, flow *flowlog.Logger, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{store: store, queue: queue, flow: flow, logger: logger.With("component", "recovery")}
}

// Report summarizes one recovery scan.
type Report struct {
	BooksQueued    int `json:"books_queued"`
	ChaptersQueued int `json:"chapters_queued"`
	BooksSkipped   int `json:"books_skipped"`
	Failures       int `json:"failures"`
}

// Scan enqueues recovery work. A failure on one entity never blocks the
// rest; it is counted and the scan continues.
func (s *Scanner) Scan(ctx context.Context) (Report, error) {
	var report Report

	books, err := s.store.Books().ListMissingContext(ctx)
	if err != nil {
		return report, fmt.Errorf("list books missing context: %w", err)
	}
	for _, book := range books {
		if book.ChapterCount == 0 {
			report.BooksSkipped++
			s.logger.Warn("book missing context has no chapters, skipping", "book_id", book.ID, "title", book.Title)
			s.flow.Warn(ctx, types.EntityBook, book.ID, "recovery", "no chapters to rebuild context from", nil)
			continue
		}
		if _, err := s.queue.Add(jobs.TypeProcessBook, string(types.EntityBook), book.ID, nil); err != nil {
			report.Failures++
			s.logger.Error("failed to enqueue book recovery", "book_id", book.ID, "error", err)
			continue
		}
		report.BooksQueued++
	}

	chapters, err := s.store.Chapters().ListMissingDerived(ctx)
	if err != nil {
		return report, fmt.Errorf("list chapters missing derived data: %w", err)
	}
	for _, ch := range chapters {
		if _, err := s.queue.Add(jobs.TypeProcessChapter, string(types.EntityChapter), ch.ID, map[string]string{"book_id": ch.BookID}); err != nil {
			report.Failures++
			s.logger.Error("failed to enqueue chapter recovery", "chapter_id", ch.ID, "error", err)
			continue
		}
		report.ChaptersQueued++
	}

	s.logger.Info("recovery scan complete",
		"books_queued", report.BooksQueued,
		"chapters_queued", report.ChaptersQueued,
		"books_skipped", report.BooksSkipped,
		"failures", report.Failures)
	s.flow.Info(ctx, types.EntitySystem, "recovery", "recovery", "startup scan complete", map[string]any{
		"books_queued":    report.BooksQueued,
		"chapters_queued": report.ChaptersQueued,
		"books_skipped":   report.BooksSkipped,
	})
	return report, nil
}
