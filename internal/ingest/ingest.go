// Package ingest turns source manuscripts into stored books and chapters
// and enqueues their processing jobs.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/folio-labs/folio/internal/flowlog"
	"github.com/folio-labs/folio/internal/jobs"
	"github.com/folio-labs/folio/internal/storage"
	"github.com/folio-labs/folio/internal/textproc"
	"github.com/folio-labs/folio/internal/types"
)

// Request identifies what to ingest. Title overrides the fetched title
// when set.
type Request struct {
	Ref   string // file path or URL
	Title string
}

// Result reports what ingestion created and queued.
type Result struct {
	BookID        string   `json:"book_id"`
	Title         string   `json:"title"`
	ChapterCount  int      `json:"chapter_count"`
	BookJobID     string   `json:"book_job_id"`
	ChapterJobIDs []string `json:"chapter_job_ids"`
	Status        string   `json:"status"`
}

// Service fetches, splits, stores, and enqueues manuscripts.
type Service struct {
	store  *storage.Store
	queue  *jobs.Queue
	flow   *flowlog.Logger
	logger *slog.Logger

	// fetcherFor is swappable in tests.
	fetcherFor func(ref string) Fetcher
}

// NewService wires an ingest service.
func NewService(store *storage.Store, queue *jobs.Queue, flow *flowlog.Logger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		queue:      queue,
		flow:       flow,
		logger:     logger.With("component", "ingest"),
		fetcherFor: NewFetcher,
	}
}

// Ingest runs the full ingestion flow. Chapters are upserted by (book,
// number), so re-ingesting a revised manuscript updates rows in place and
// the pipeline's change detection decides what actually gets reprocessed.
func (s *Service) Ingest(ctx context.Context, req Request) (*Result, error) {
	if req.Ref == "" {
		return nil, fmt.Errorf("ingest: empty source reference")
	}

	doc, err := s.fetcherFor(req.Ref).Fetch(ctx, req.Ref)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	title := req.Title
	if title == "" {
		title = doc.Title
	}
	if title == "" {
		title = "Untitled"
	}

	chapters := SplitChapters(doc.Text)
	if len(chapters) == 0 {
		return nil, fmt.Errorf("ingest: %s contains no text", req.Ref)
	}

	book, err := s.store.Books().Create(ctx, types.Book{SourceID: doc.SourceID, Title: title})
	if err != nil {
		return nil, fmt.Errorf("ingest: create book: %w", err)
	}

	result := &Result{BookID: book.ID, Title: title, ChapterCount: len(chapters), Status: "processing"}

	for _, sc := range chapters {
		ch, err := s.store.Chapters().Upsert(ctx, types.Chapter{
			BookID:        book.ID,
			ChapterNumber: sc.Number,
			Title:         sc.Title,
			Content:       sc.Content,
			WordCount:     textproc.WordCount(sc.Content),
		})
		if err != nil {
			return nil, fmt.Errorf("ingest: store chapter %d: %w", sc.Number, err)
		}

		if err := s.store.Status().Upsert(ctx, types.EntityChapter, ch.ID, types.StatusPending, 0, ""); err != nil {
			s.logger.Warn("chapter status init failed", "chapter_id", ch.ID, "error", err)
		}
		jobID, err := s.queue.Add(jobs.TypeProcessChapter, string(types.EntityChapter), ch.ID, map[string]string{"book_id": book.ID})
		if err != nil {
			return nil, fmt.Errorf("ingest: enqueue chapter %d: %w", sc.Number, err)
		}
		result.ChapterJobIDs = append(result.ChapterJobIDs, jobID)
	}

	if err := s.store.Books().UpdateCounts(ctx, book.ID); err != nil {
		s.logger.Warn("book count refresh failed", "book_id", book.ID, "error", err)
	}

	if err := s.store.Status().Upsert(ctx, types.EntityBook, book.ID, types.StatusPending, 0, ""); err != nil {
		s.logger.Warn("book status init failed", "book_id", book.ID, "error", err)
	}
	result.BookJobID, err = s.queue.Add(jobs.TypeProcessBook, string(types.EntityBook), book.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: enqueue book: %w", err)
	}

	s.flow.Info(ctx, types.EntityBook, book.ID, "ingest", "manuscript ingested", map[string]any{
		"source":   doc.SourceID,
		"chapters": len(chapters),
	})
	s.logger.Info("manuscript ingested", "book_id", book.ID, "title", title, "chapters", len(chapters))
	return result, nil
}
