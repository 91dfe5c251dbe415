// Package pipeline runs the asynchronous processing stages for books and
// chapters: change detection, metadata extraction, embedding, and status
// bookkeeping. Job handlers here are idempotent; re-running one against
// unchanged content is a cheap no-op.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/folio-labs/folio/internal/embeddings"
	"github.com/folio-labs/folio/internal/extract"
	"github.com/folio-labs/folio/internal/flowlog"
	"github.com/folio-labs/folio/internal/jobs"
	"github.com/folio-labs/folio/internal/storage"
	"github.com/folio-labs/folio/internal/textproc"
	"github.com/folio-labs/folio/internal/types"
)

// ChunkThresholdWords is the chapter length above which chunk-level
// embeddings are generated in addition to the chapter vector.
const ChunkThresholdWords = 800

// Progress milestones for the chapter pipeline.
const (
	progressChangeCheck = 10
	progressExtraction  = 30
	progressEmbedding   = 70
	progressDone        = 100
)

// Embedder is the embedding surface the pipeline needs: vector generation
// plus cache invalidation for replaced content.
type Embedder interface {
	embeddings.Provider
	Invalidate(ctx context.Context, hashes []string) (int, error)
}

// Processor executes the book and chapter pipelines.
type Processor struct {
	store     *storage.Store
	extractor *extract.Service
	embedder  Embedder
	detector  *ChangeDetector
	flow      *flowlog.Logger
	logger    *slog.Logger
}

// NewProcessor wires a processor. flow may be nil.
func NewProcessor(store *storage.Store, extractor *extract.Service, embedder Embedder, flow *flowlog.Logger, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:     store,
		extractor: extractor,
		embedder:  embedder,
		detector:  NewChangeDetector(store.Chapters()),
		flow:      flow,
		logger:    logger.With("component", "pipeline"),
	}
}

// Register binds the processor's handlers to the queue, routing job
// progress updates back into it.
func (p *Processor) Register(q *jobs.Queue) {
	q.Register(jobs.TypeProcessBook, func(ctx context.Context, job *jobs.Job) error {
		return p.ProcessBook(ctx, job.EntityID, func(pct int) { q.UpdateProgress(job.ID, pct) })
	})
	q.Register(jobs.TypeProcessChapter, func(ctx context.Context, job *jobs.Job) error {
		return p.ProcessChapter(ctx, job.EntityID, func(pct int) { q.UpdateProgress(job.ID, pct) })
	})
}

// ProgressFunc receives pipeline milestones as they are reached.
type ProgressFunc func(pct int)

func (p *Processor) setStatus(ctx context.Context, et types.EntityType, id string, status types.Status, progress int, errMsg string, report ProgressFunc) {
	if err := p.store.Status().Upsert(ctx, et, id, status, progress, errMsg); err != nil {
		p.logger.Warn("status update failed", "entity_type", et, "entity_id", id, "error", err)
	}
	if report != nil && progress >= 0 {
		report(progress)
	}
}

// ProcessChapter runs the full chapter pipeline. Any returned error has
// already been recorded as a failed status; the queue uses it to schedule
// a retry.
func (p *Processor) ProcessChapter(ctx context.Context, chapterID string, report ProgressFunc) error {
	ch, err := p.store.Chapters().Get(ctx, chapterID)
	if err != nil {
		return fmt.Errorf("load chapter %s: %w", chapterID, err)
	}
	log := p.logger.With("chapter_id", chapterID, "book_id", ch.BookID, "chapter", ch.ChapterNumber)

	failStatus := func(stage string, err error) error {
		p.setStatus(ctx, types.EntityChapter, chapterID, types.StatusFailed, types.FailedProgress, err.Error(), nil)
		log.Error("chapter processing failed", "stage", stage, "error", err)
		return err
	}
	fail := func(stage string, err error) error {
		p.flow.Error(ctx, types.EntityChapter, chapterID, stage, err.Error(), nil)
		return failStatus(stage, err)
	}

	p.setStatus(ctx, types.EntityChapter, chapterID, types.StatusProcessing, progressChangeCheck, "", report)

	change, err := p.detector.Check(ctx, ch.BookID, ch.ChapterNumber, ch.Content)
	if err != nil {
		return fail("change_check", err)
	}
	if !change.Changed && ch.HasSummary() && ch.HasEmbedding() {
		p.setStatus(ctx, types.EntityChapter, chapterID, types.StatusCompleted, progressDone, "", report)
		p.flow.Info(ctx, types.EntityChapter, chapterID, "change_check", "content unchanged, skipping", nil)
		log.Debug("chapter unchanged")
		return nil
	}

	// Old content's cached vectors are stale once we reprocess.
	if change.Changed && change.OldFingerprint != "" {
		if n, err := p.embedder.Invalidate(ctx, []string{change.OldFingerprint}); err != nil {
			log.Warn("cache invalidation failed", "error", err)
		} else if n > 0 {
			log.Debug("invalidated cached embeddings", "entries", n)
		}
	}

	p.setStatus(ctx, types.EntityChapter, chapterID, types.StatusProcessing, progressExtraction, "", report)

	var res extract.Result[types.ChapterMetadata]
	err = p.flow.Timed(ctx, types.EntityChapter, chapterID, "extraction", "metadata extracted", func() error {
		var eerr error
		res, eerr = p.extractor.ChapterMetadata(ctx, ch.ChapterNumber, ch.Title, ch.Content)
		if eerr != nil {
			return eerr
		}
		if serr := p.store.Chapters().SaveExtraction(ctx, chapterID, &res.Data, res.Confidence, change.NewFingerprint); serr != nil {
			return fmt.Errorf("save extraction: %w", serr)
		}
		return nil
	})
	if err != nil {
		return failStatus("extraction", err)
	}

	p.setStatus(ctx, types.EntityChapter, chapterID, types.StatusProcessing, progressEmbedding, "", report)

	err = p.flow.Timed(ctx, types.EntityChapter, chapterID, "embedding", "vectors stored", func() error {
		return p.embedChapter(ctx, ch, res.Data.Summary)
	})
	if err != nil {
		return failStatus("embedding", err)
	}

	p.setStatus(ctx, types.EntityChapter, chapterID, types.StatusCompleted, progressDone, "", report)
	p.flow.Info(ctx, types.EntityChapter, chapterID, "completed", "chapter processed", map[string]any{
		"word_count":    ch.WordCount,
		"confidence":    res.Confidence,
		"used_fallback": res.UsedFallback,
		"model_version": res.ModelVersion,
	})
	log.Info("chapter processed", "confidence", res.Confidence, "fallback", res.UsedFallback)
	return nil
}

// embedChapter stores the chapter-level vector (computed from the
// extracted summary) and replaces chunk vectors for long chapters.
func (p *Processor) embedChapter(ctx context.Context, ch *types.Chapter, summary string) error {
	if summary == "" {
		words := strings.Fields(ch.Content)
		if len(words) > 200 {
			words = words[:200]
		}
		summary = strings.Join(words, " ")
	}

	vec, err := p.embedder.Embed(ctx, summary)
	if err != nil {
		return fmt.Errorf("chapter embedding: %w", err)
	}
	if err := p.store.Chapters().SaveEmbedding(ctx, ch.ID, vec, p.embedder.ModelName()); err != nil {
		return fmt.Errorf("save chapter embedding: %w", err)
	}

	if ch.WordCount <= ChunkThresholdWords {
		// Clear any chunks left over from a longer prior version.
		return p.store.Chunks().Replace(ctx, ch.ID, nil)
	}

	pieces := textproc.Chunk(ch.Content, textproc.ChunkOpts{})
	texts := make([]string, len(pieces))
	for i, c := range pieces {
		texts[i] = c.Text
	}
	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("chunk embeddings: %w", err)
	}

	chunks := make([]types.ChapterChunk, len(pieces))
	for i, c := range pieces {
		chunks[i] = types.ChapterChunk{
			ChapterID:  ch.ID,
			ChunkIndex: c.Index,
			Text:       c.Text,
			WordCount:  c.WordCount,
			Embedding:  vecs[i],
		}
	}
	if err := p.store.Chunks().Replace(ctx, ch.ID, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	p.flow.Info(ctx, types.EntityChapter, ch.ID, "embedding", "chunk embeddings stored", map[string]any{
		"chunks": len(chunks),
	})
	return nil
}

// ProcessBook extracts book-level context from the full manuscript.
func (p *Processor) ProcessBook(ctx context.Context, bookID string, report ProgressFunc) error {
	book, err := p.store.Books().Get(ctx, bookID)
	if err != nil {
		return fmt.Errorf("load book %s: %w", bookID, err)
	}
	log := p.logger.With("book_id", bookID, "title", book.Title)

	failStatus := func(stage string, err error) error {
		p.setStatus(ctx, types.EntityBook, bookID, types.StatusFailed, types.FailedProgress, err.Error(), nil)
		log.Error("book processing failed", "stage", stage, "error", err)
		return err
	}
	fail := func(stage string, err error) error {
		p.flow.Error(ctx, types.EntityBook, bookID, stage, err.Error(), nil)
		return failStatus(stage, err)
	}

	p.setStatus(ctx, types.EntityBook, bookID, types.StatusProcessing, progressChangeCheck, "", report)

	chapters, err := p.store.Chapters().List(ctx, bookID)
	if err != nil {
		return fail("gather", fmt.Errorf("list chapters: %w", err))
	}
	if len(chapters) == 0 {
		return fail("gather", fmt.Errorf("book %s has no chapters", bookID))
	}

	var sb strings.Builder
	for _, ch := range chapters {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(ch.Content)
	}

	p.setStatus(ctx, types.EntityBook, bookID, types.StatusProcessing, progressExtraction, "", report)

	var res extract.Result[types.BookContext]
	err = p.flow.Timed(ctx, types.EntityBook, bookID, "extraction", "book context extracted", func() error {
		var eerr error
		res, eerr = p.extractor.BookContext(ctx, book.Title, sb.String())
		return eerr
	})
	if err != nil {
		return failStatus("extraction", err)
	}

	p.setStatus(ctx, types.EntityBook, bookID, types.StatusProcessing, progressEmbedding, "", report)

	bc := res.Data
	bc.BookID = bookID
	if err := p.store.Contexts().Upsert(ctx, bc); err != nil {
		return fail("persist", fmt.Errorf("save book context: %w", err))
	}
	if err := p.store.Books().UpdateCounts(ctx, bookID); err != nil {
		log.Warn("book count refresh failed", "error", err)
	}

	p.setStatus(ctx, types.EntityBook, bookID, types.StatusCompleted, progressDone, "", report)
	p.flow.Info(ctx, types.EntityBook, bookID, "completed", "book context extracted", map[string]any{
		"confidence":    res.Confidence,
		"used_fallback": res.UsedFallback,
		"chapters":      len(chapters),
	})
	log.Info("book processed", "confidence", res.Confidence, "fallback", res.UsedFallback)
	return nil
}
