package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/folio-labs/folio/internal/embeddings"
	"github.com/folio-labs/folio/internal/extract"
	"github.com/folio-labs/folio/internal/flowlog"
	"github.com/folio-labs/folio/internal/jobs"
	"github.com/folio-labs/folio/internal/providers"
	"github.com/folio-labs/folio/internal/storage"
	"github.com/folio-labs/folio/internal/types"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func chapterJSON(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf(`{
		"summary": %q,
		"key_scenes": [{"description": "the storm", "significance": "turning point"}],
		"plot_points": {"events": ["landfall"], "conflicts": ["the crew splits"]}
	}`, words(150))
}

func bookJSON(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf(`{
		"summary": %q,
		"characters": [{"name": "Mara", "role": "main"}],
		"writing_style": {"tone": "spare", "pov": "third"},
		"story_arc": {"act1": "a", "act2": "b", "act3": "c"}
	}`, words(600))
}

type fixture struct {
	store     *storage.Store
	llm       *providers.MockLLM
	vectors   *embeddings.MockProvider
	processor *Processor
}

func newFixture(t *testing.T, responses ...string) *fixture {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	llm := providers.NewMockLLM(responses...)
	vectors := embeddings.NewMockProvider(16)
	embedder := embeddings.NewCachedProvider(vectors, store.EmbeddingCache(), nil)
	extractor := extract.NewService(llm, "", nil)
	flow := flowlog.New(store.FlowLogs(), nil)

	return &fixture{
		store:     store,
		llm:       llm,
		vectors:   vectors,
		processor: NewProcessor(store, extractor, embedder, flow, nil),
	}
}

func (f *fixture) seedBook(t *testing.T, title string, chapterWords ...int) (*types.Book, []*types.Chapter) {
	t.Helper()
	ctx := context.Background()
	book, err := f.store.Books().Create(ctx, types.Book{Title: title, SourceID: "src-" + title})
	if err != nil {
		t.Fatalf("Create book: %v", err)
	}
	var chapters []*types.Chapter
	for i, n := range chapterWords {
		content := words(n)
		ch, err := f.store.Chapters().Upsert(ctx, types.Chapter{
			BookID:        book.ID,
			ChapterNumber: i + 1,
			Title:         fmt.Sprintf("Chapter %d", i+1),
			Content:       content,
			WordCount:     n,
		})
		if err != nil {
			t.Fatalf("Upsert chapter: %v", err)
		}
		chapters = append(chapters, ch)
	}
	if err := f.store.Books().UpdateCounts(ctx, book.ID); err != nil {
		t.Fatalf("UpdateCounts: %v", err)
	}
	return book, chapters
}

func TestProcessChapter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, chapterJSON(t))
	_, chapters := f.seedBook(t, "short", 300)
	ch := chapters[0]

	var milestones []int
	if err := f.processor.ProcessChapter(ctx, ch.ID, func(pct int) { milestones = append(milestones, pct) }); err != nil {
		t.Fatalf("ProcessChapter: %v", err)
	}

	got, err := f.store.Chapters().Get(ctx, ch.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.HasSummary() || !got.HasEmbedding() {
		t.Fatalf("chapter missing derived data: summary=%v embedding=%v", got.HasSummary(), got.HasEmbedding())
	}
	if got.Fingerprint == "" {
		t.Error("fingerprint not recorded")
	}
	if got.EmbeddingModel != "mock-embedding" {
		t.Errorf("EmbeddingModel = %q", got.EmbeddingModel)
	}

	status, err := f.store.Status().Get(ctx, types.EntityChapter, ch.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != types.StatusCompleted || status.Progress != 100 {
		t.Errorf("status = %s/%d, want completed/100", status.Status, status.Progress)
	}

	want := []int{10, 30, 70, 100}
	if len(milestones) != len(want) {
		t.Fatalf("milestones = %v, want %v", milestones, want)
	}
	for i := range want {
		if milestones[i] != want[i] {
			t.Errorf("milestones = %v, want %v", milestones, want)
			break
		}
	}

	// Short chapter: no chunk vectors.
	if n, _ := f.store.Chunks().Count(ctx, ch.ID); n != 0 {
		t.Errorf("chunk count = %d, want 0", n)
	}
}

func TestProcessChapterUnchangedSkips(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, chapterJSON(t))
	_, chapters := f.seedBook(t, "skip", 300)
	ch := chapters[0]

	if err := f.processor.ProcessChapter(ctx, ch.ID, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	calls := f.llm.Calls()

	if err := f.processor.ProcessChapter(ctx, ch.ID, nil); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if f.llm.Calls() != calls {
		t.Errorf("unchanged chapter re-invoked the model: %d -> %d calls", calls, f.llm.Calls())
	}

	status, _ := f.store.Status().Get(ctx, types.EntityChapter, ch.ID)
	if status.Status != types.StatusCompleted {
		t.Errorf("status = %s, want completed", status.Status)
	}
}

func TestProcessChapterReingestUnchangedSkips(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, chapterJSON(t))
	book, chapters := f.seedBook(t, "reingest", 300)
	ch := chapters[0]

	if err := f.processor.ProcessChapter(ctx, ch.ID, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	calls := f.llm.Calls()
	fp, err := f.store.Chapters().GetFingerprint(ctx, book.ID, 1)
	if err != nil || fp == "" {
		t.Fatalf("fingerprint after first run = %q, %v", fp, err)
	}

	// Re-ingest identical content the way the ingest service does: a
	// content upsert with no fingerprint of its own.
	if _, err := f.store.Chapters().Upsert(ctx, types.Chapter{
		BookID:        book.ID,
		ChapterNumber: 1,
		Title:         ch.Title,
		Content:       ch.Content,
		WordCount:     ch.WordCount,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if got, _ := f.store.Chapters().GetFingerprint(ctx, book.ID, 1); got != fp {
		t.Fatalf("fingerprint mutated by re-ingest: %q -> %q", fp, got)
	}

	if err := f.processor.ProcessChapter(ctx, ch.ID, nil); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if f.llm.Calls() != calls {
		t.Errorf("re-ingest of identical content re-invoked the model: %d -> %d calls", calls, f.llm.Calls())
	}
}

func TestProcessChapterReprocessesOnChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, chapterJSON(t))
	book, chapters := f.seedBook(t, "changed", 300)
	ch := chapters[0]

	if err := f.processor.ProcessChapter(ctx, ch.ID, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	calls := f.llm.Calls()

	newContent := "An entirely different draft. " + words(250)
	if _, err := f.store.Chapters().Upsert(ctx, types.Chapter{
		BookID:        book.ID,
		ChapterNumber: 1,
		Title:         ch.Title,
		Content:       newContent,
		WordCount:     255,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := f.processor.ProcessChapter(ctx, ch.ID, nil); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if f.llm.Calls() != calls+1 {
		t.Errorf("changed chapter should re-extract: %d -> %d calls", calls, f.llm.Calls())
	}
}

func TestProcessChapterChunksLongContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, chapterJSON(t))
	_, chapters := f.seedBook(t, "long", 1500)
	ch := chapters[0]

	if err := f.processor.ProcessChapter(ctx, ch.ID, nil); err != nil {
		t.Fatalf("ProcessChapter: %v", err)
	}

	n, err := f.store.Chunks().Count(ctx, ch.ID)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n < 2 {
		t.Errorf("chunk count = %d, want at least 2 for 1500 words", n)
	}
	chunks, err := f.store.Chunks().List(ctx, ch.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			t.Fatalf("chunk %d has no embedding", c.ChunkIndex)
		}
	}
}

func TestProcessChapterChunkThreshold(t *testing.T) {
	ctx := context.Background()

	t.Run("at threshold stays chapter-only", func(t *testing.T) {
		f := newFixture(t, chapterJSON(t))
		_, chapters := f.seedBook(t, "threshold", ChunkThresholdWords)

		if err := f.processor.ProcessChapter(ctx, chapters[0].ID, nil); err != nil {
			t.Fatalf("ProcessChapter: %v", err)
		}
		if n, _ := f.store.Chunks().Count(ctx, chapters[0].ID); n != 0 {
			t.Errorf("chunk count = %d, want 0 at %d words", n, ChunkThresholdWords)
		}
	})

	t.Run("one word past threshold chunks", func(t *testing.T) {
		f := newFixture(t, chapterJSON(t))
		_, chapters := f.seedBook(t, "threshold-plus", ChunkThresholdWords+1)

		if err := f.processor.ProcessChapter(ctx, chapters[0].ID, nil); err != nil {
			t.Fatalf("ProcessChapter: %v", err)
		}
		n, err := f.store.Chunks().Count(ctx, chapters[0].ID)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n < 2 {
			t.Errorf("chunk count = %d, want at least 2 past the threshold", n)
		}
	})
}

func TestProcessChapterFlowLogStages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, chapterJSON(t))
	_, chapters := f.seedBook(t, "flow", 300)
	ch := chapters[0]

	if err := f.processor.ProcessChapter(ctx, ch.ID, nil); err != nil {
		t.Fatalf("ProcessChapter: %v", err)
	}

	entries, err := f.store.FlowLogs().ListForEntity(ctx, types.EntityChapter, ch.ID, storage.FlowLogFilter{})
	if err != nil {
		t.Fatalf("ListForEntity: %v", err)
	}
	byStage := map[string]types.FlowLogEntry{}
	for _, e := range entries {
		byStage[e.Stage] = e
	}

	for _, stage := range []string{"extraction", "embedding", "completed"} {
		e, ok := byStage[stage]
		if !ok {
			t.Fatalf("no flow entry for stage %q (got %v)", stage, byStage)
		}
		if e.Level != types.LevelInfo {
			t.Errorf("stage %q level = %s, want info", stage, e.Level)
		}
	}
	for _, stage := range []string{"extraction", "embedding"} {
		if byStage[stage].DurationMS < 0 {
			t.Errorf("stage %q duration = %d", stage, byStage[stage].DurationMS)
		}
	}
	if md := byStage["completed"].Metadata; md == nil || md["confidence"] == nil {
		t.Errorf("completed entry metadata = %v", byStage["completed"].Metadata)
	}
}

// failingEmbedder wraps an Embedder and fails every vector call.
type failingEmbedder struct {
	Embedder
}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func TestProcessChapterEmbedFailureRecordsFailedStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, chapterJSON(t))
	_, chapters := f.seedBook(t, "broken", 300)
	ch := chapters[0]

	f.processor.embedder = &failingEmbedder{Embedder: f.processor.embedder}

	err := f.processor.ProcessChapter(ctx, ch.ID, nil)
	if err == nil {
		t.Fatal("expected error from failing embedder")
	}

	status, serr := f.store.Status().Get(ctx, types.EntityChapter, ch.ID)
	if serr != nil {
		t.Fatalf("Status: %v", serr)
	}
	if status.Status != types.StatusFailed {
		t.Errorf("status = %s, want failed", status.Status)
	}
	if status.Progress != types.FailedProgress {
		t.Errorf("progress = %d, want %d", status.Progress, types.FailedProgress)
	}
	if status.Error == "" {
		t.Error("expected error message in status")
	}

	entries, err := f.store.FlowLogs().ListForEntity(ctx, types.EntityChapter, ch.ID,
		storage.FlowLogFilter{Stage: "embedding", Level: types.LevelError})
	if err != nil {
		t.Fatalf("ListForEntity: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("embedding error entries = %d, want 1", len(entries))
	}
	if entries[0].Metadata["error"] == nil {
		t.Errorf("error entry metadata = %v", entries[0].Metadata)
	}
}

func TestProcessBook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, bookJSON(t))
	book, _ := f.seedBook(t, "The Harbor", 300, 400)

	if err := f.processor.ProcessBook(ctx, book.ID, nil); err != nil {
		t.Fatalf("ProcessBook: %v", err)
	}

	bc, err := f.store.Contexts().Get(ctx, book.ID)
	if err != nil {
		t.Fatalf("Contexts.Get: %v", err)
	}
	if bc.Summary == "" || len(bc.Characters) != 1 {
		t.Errorf("context not persisted: %+v", bc)
	}
	if bc.Confidence < extract.ConfidenceThreshold {
		t.Errorf("Confidence = %v, want at least %v", bc.Confidence, extract.ConfidenceThreshold)
	}

	status, _ := f.store.Status().Get(ctx, types.EntityBook, book.ID)
	if status.Status != types.StatusCompleted {
		t.Errorf("status = %s, want completed", status.Status)
	}
}

func TestProcessBookWithoutChaptersFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, bookJSON(t))
	book, _ := f.seedBook(t, "empty")

	if err := f.processor.ProcessBook(ctx, book.ID, nil); err == nil {
		t.Fatal("expected error for book with no chapters")
	}
	status, _ := f.store.Status().Get(ctx, types.EntityBook, book.ID)
	if status.Status != types.StatusFailed {
		t.Errorf("status = %s, want failed", status.Status)
	}
}

func TestChangeDetector(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, chapterJSON(t))
	book, chapters := f.seedBook(t, "detect", 300)
	ch := chapters[0]
	detector := NewChangeDetector(f.store.Chapters())

	// Never processed: always changed.
	change, err := detector.Check(ctx, book.ID, 1, ch.Content)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !change.Changed || change.OldFingerprint != "" {
		t.Errorf("unprocessed chapter: %+v", change)
	}

	if err := f.processor.ProcessChapter(ctx, ch.ID, nil); err != nil {
		t.Fatalf("ProcessChapter: %v", err)
	}

	change, err = detector.Check(ctx, book.ID, 1, ch.Content)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if change.Changed {
		t.Errorf("same content reported changed: %+v", change)
	}

	change, err = detector.Check(ctx, book.ID, 1, ch.Content+" revised")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !change.Changed || change.OldFingerprint == "" {
		t.Errorf("revised content: %+v", change)
	}

	// Unknown book: treated as new content.
	change, err = detector.Check(ctx, "missing", 9, "anything")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !change.Changed {
		t.Error("unknown chapter should report changed")
	}
}

func TestScanner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, chapterJSON(t))

	// One healthy book with unprocessed chapters, one with no chapters.
	bookA, _ := f.seedBook(t, "needs-work", 300, 400)
	f.seedBook(t, "hollow")

	queue := jobs.NewQueue(jobs.Config{}, nil)
	f.processor.Register(queue)
	scanner := NewScanner(f.store, queue, flowlog.New(f.store.FlowLogs(), nil), nil)

	report, err := scanner.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.BooksQueued != 1 {
		t.Errorf("BooksQueued = %d, want 1", report.BooksQueued)
	}
	if report.ChaptersQueued != 2 {
		t.Errorf("ChaptersQueued = %d, want 2", report.ChaptersQueued)
	}
	if report.BooksSkipped != 1 {
		t.Errorf("BooksSkipped = %d, want 1", report.BooksSkipped)
	}

	if _, ok := queue.Get(jobs.JobID("book", bookA.ID)); !ok {
		t.Error("book job not enqueued")
	}
	if got := len(queue.List()); got != 3 {
		t.Errorf("queued jobs = %d, want 3", got)
	}

	// Re-scanning must not duplicate live jobs.
	if _, err := scanner.Scan(ctx); err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if got := len(queue.List()); got != 3 {
		t.Errorf("queued jobs after rescan = %d, want 3", got)
	}
}
