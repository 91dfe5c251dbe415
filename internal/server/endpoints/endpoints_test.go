package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/folio-labs/folio/internal/api"
	"github.com/folio-labs/folio/internal/embeddings"
	"github.com/folio-labs/folio/internal/flowlog"
	"github.com/folio-labs/folio/internal/ingest"
	"github.com/folio-labs/folio/internal/jobs"
	"github.com/folio-labs/folio/internal/pipeline"
	"github.com/folio-labs/folio/internal/retrieval"
	"github.com/folio-labs/folio/internal/storage"
	"github.com/folio-labs/folio/internal/svcctx"
	"github.com/folio-labs/folio/internal/types"
)

type fixture struct {
	store *storage.Store
	queue *jobs.Queue
	srv   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	queue := jobs.NewQueue(jobs.Config{}, logger)
	queue.Register(jobs.TypeProcessBook, func(ctx context.Context, job *jobs.Job) error { return nil })
	queue.Register(jobs.TypeProcessChapter, func(ctx context.Context, job *jobs.Job) error { return nil })

	flow := flowlog.New(store.FlowLogs(), logger)
	embedder := embeddings.NewMockProvider(8)

	services := &svcctx.Services{
		Store:     store,
		Queue:     queue,
		Ingest:    ingest.NewService(store, queue, flow, logger),
		Scanner:   pipeline.NewScanner(store, queue, flow, logger),
		Retrieval: retrieval.NewEngine(store, embedder, logger),
		Flow:      flow,
		Logger:    logger,
	}

	mux := http.NewServeMux()
	registry := api.NewRegistry()
	for _, ep := range All() {
		registry.Register(ep)
	}
	registry.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc { return next })

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &fixture{store: store, queue: queue, srv: srv}
}

func (f *fixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 400 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (f *fixture) post(t *testing.T, path string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	resp, err := http.Post(f.srv.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 400 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (f *fixture) delete(t *testing.T, path string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, f.srv.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 400 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func seedBook(t *testing.T, f *fixture, title string) *types.Book {
	t.Helper()
	ctx := t.Context()
	book, err := f.store.Books().Create(ctx, types.Book{Title: title, SourceID: "test:" + title})
	if err != nil {
		t.Fatalf("Create book: %v", err)
	}
	return book
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)

	var health HealthResponse
	if code := f.get(t, "/health", &health); code != http.StatusOK {
		t.Fatalf("health status = %d", code)
	}
	if health.Status != "ok" {
		t.Errorf("health.Status = %q, want ok", health.Status)
	}

	var ready HealthResponse
	if code := f.get(t, "/ready", &ready); code != http.StatusOK {
		t.Fatalf("ready status = %d", code)
	}
	if ready.Storage != "ok" || ready.Queue != "ok" {
		t.Errorf("ready = %+v, want storage and queue ok", ready)
	}
}

func TestIngestEndpoint(t *testing.T) {
	f := newFixture(t)

	path := filepath.Join(t.TempDir(), "book.txt")
	content := "Chapter 1\n\nOnce upon a time.\n\nChapter 2\n\nThe end.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("accepts manuscript", func(t *testing.T) {
		var resp IngestResponse
		code := f.post(t, "/ingest", IngestRequest{Ref: path, Title: "Test Book"}, &resp)
		if code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", code)
		}
		if resp.ChapterCount != 2 {
			t.Errorf("ChapterCount = %d, want 2", resp.ChapterCount)
		}
		if resp.Processing.BookJobID == "" || len(resp.Processing.ChapterJobIDs) != 2 {
			t.Errorf("processing = %+v, want book job and 2 chapter jobs", resp.Processing)
		}
		if resp.Processing.Status != "processing" {
			t.Errorf("Status = %q, want processing", resp.Processing.Status)
		}
	})

	t.Run("rejects missing ref", func(t *testing.T) {
		if code := f.post(t, "/ingest", IngestRequest{}, nil); code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", code)
		}
	})
}

func TestEntityStatusEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	t.Run("defaults to pending", func(t *testing.T) {
		var ps types.ProcessingStatus
		if code := f.get(t, "/processing/status/chapter/nope", &ps); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if ps.Status != types.StatusPending || ps.Progress != 0 {
			t.Errorf("got %s/%d, want pending/0", ps.Status, ps.Progress)
		}
	})

	t.Run("returns stored record", func(t *testing.T) {
		if err := f.store.Status().Upsert(ctx, types.EntityChapter, "ch-1", types.StatusProcessing, 30, ""); err != nil {
			t.Fatal(err)
		}
		var ps types.ProcessingStatus
		if code := f.get(t, "/processing/status/chapter/ch-1", &ps); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if ps.Status != types.StatusProcessing || ps.Progress != 30 {
			t.Errorf("got %s/%d, want processing/30", ps.Status, ps.Progress)
		}
	})

	t.Run("rejects unknown entity type", func(t *testing.T) {
		if code := f.get(t, "/processing/status/widget/x", nil); code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", code)
		}
	})
}

func TestBookStatusEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	t.Run("unknown book is 404", func(t *testing.T) {
		if code := f.get(t, "/processing/books/nope/status", nil); code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", code)
		}
	})

	t.Run("rolls up chapter statuses", func(t *testing.T) {
		book := seedBook(t, f, "rollup")
		ch, err := f.store.Chapters().Upsert(ctx, types.Chapter{BookID: book.ID, ChapterNumber: 1, Content: "words"})
		if err != nil {
			t.Fatal(err)
		}
		if err := f.store.Status().Upsert(ctx, types.EntityBook, book.ID, types.StatusCompleted, 100, ""); err != nil {
			t.Fatal(err)
		}
		if err := f.store.Status().Upsert(ctx, types.EntityChapter, ch.ID, types.StatusProcessing, 30, ""); err != nil {
			t.Fatal(err)
		}

		var resp BookStatusResponse
		if code := f.get(t, "/processing/books/"+book.ID+"/status", &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if resp.Status != types.StatusProcessing {
			t.Errorf("Status = %s, want processing", resp.Status)
		}
		if resp.Progress != 65 {
			t.Errorf("Progress = %d, want 65", resp.Progress)
		}
		if len(resp.Entities) != 2 {
			t.Errorf("Entities = %d, want 2", len(resp.Entities))
		}
	})

	t.Run("failure wins and pins progress", func(t *testing.T) {
		book := seedBook(t, f, "failing")
		ch, err := f.store.Chapters().Upsert(ctx, types.Chapter{BookID: book.ID, ChapterNumber: 1, Content: "words"})
		if err != nil {
			t.Fatal(err)
		}
		if err := f.store.Status().Upsert(ctx, types.EntityChapter, ch.ID, types.StatusFailed, types.FailedProgress, "llm exploded"); err != nil {
			t.Fatal(err)
		}

		var resp BookStatusResponse
		if code := f.get(t, "/processing/books/"+book.ID+"/status", &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if resp.Status != types.StatusFailed {
			t.Errorf("Status = %s, want failed", resp.Status)
		}
		if resp.Progress != types.FailedProgress {
			t.Errorf("Progress = %d, want %d", resp.Progress, types.FailedProgress)
		}
	})
}

func TestJobEndpoints(t *testing.T) {
	f := newFixture(t)

	t.Run("missing job is 404", func(t *testing.T) {
		if code := f.get(t, "/processing/jobs/nope", nil); code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", code)
		}
	})

	t.Run("returns queued job", func(t *testing.T) {
		jobID, err := f.queue.Add(jobs.TypeProcessChapter, "chapter", "ch-9", map[string]string{"book_id": "b-1"})
		if err != nil {
			t.Fatal(err)
		}

		var job jobs.Job
		if code := f.get(t, "/processing/jobs/"+jobID, &job); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if job.EntityID != "ch-9" || job.Status != jobs.StatusPending {
			t.Errorf("job = %+v", job)
		}

		var list JobListResponse
		if code := f.get(t, "/processing/jobs", &list); code != http.StatusOK {
			t.Fatalf("list status = %d", code)
		}
		if len(list.Jobs) != 1 || list.Stats[jobs.StatusPending] != 1 {
			t.Errorf("list = %d jobs, stats %v", len(list.Jobs), list.Stats)
		}
	})
}

func TestResultsEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	book := seedBook(t, f, "results")
	ch, err := f.store.Chapters().Upsert(ctx, types.Chapter{
		BookID:        book.ID,
		ChapterNumber: 1,
		Title:         "Opening",
		Content:       "some chapter text",
		WordCount:     3,
	})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("book before extraction has no context", func(t *testing.T) {
		var resp BookResultsResponse
		if code := f.get(t, "/results/books/"+book.ID, &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if resp.Context != nil {
			t.Errorf("Context = %+v, want nil", resp.Context)
		}
		if len(resp.Chapters) != 1 || resp.Chapters[0].Title != "Opening" {
			t.Errorf("Chapters = %+v", resp.Chapters)
		}
	})

	t.Run("book after extraction includes context", func(t *testing.T) {
		bc := types.BookContext{BookID: book.ID, Summary: "a tale", ModelVersion: "m1", Confidence: 0.9}
		if err := f.store.Contexts().Upsert(ctx, bc); err != nil {
			t.Fatal(err)
		}
		var resp BookResultsResponse
		if code := f.get(t, "/results/books/"+book.ID, &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if resp.Context == nil || resp.Context.Summary != "a tale" {
			t.Errorf("Context = %+v", resp.Context)
		}
	})

	t.Run("chapter includes chunks", func(t *testing.T) {
		chunks := []types.ChapterChunk{
			{ChapterID: ch.ID, ChunkIndex: 0, Text: "part one", WordCount: 2, Embedding: []float32{1, 0}},
			{ChapterID: ch.ID, ChunkIndex: 1, Text: "part two", WordCount: 2, Embedding: []float32{0, 1}},
		}
		if err := f.store.Chunks().Replace(ctx, ch.ID, chunks); err != nil {
			t.Fatal(err)
		}
		var resp ChapterResultsResponse
		if code := f.get(t, "/results/chapters/"+ch.ID, &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if len(resp.Chunks) != 2 {
			t.Errorf("Chunks = %d, want 2", len(resp.Chunks))
		}
	})

	t.Run("unknown ids are 404", func(t *testing.T) {
		if code := f.get(t, "/results/books/nope", nil); code != http.StatusNotFound {
			t.Errorf("book status = %d, want 404", code)
		}
		if code := f.get(t, "/results/chapters/nope", nil); code != http.StatusNotFound {
			t.Errorf("chapter status = %d, want 404", code)
		}
	})
}

func TestContextEndpoint(t *testing.T) {
	f := newFixture(t)

	book := seedBook(t, f, "ctx")
	var qc retrieval.QueryContext
	path := fmt.Sprintf("/context/%s?query=%s", book.ID, "what+is+the+overall+theme")
	if code := f.get(t, path, &qc); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if qc.QueryType != retrieval.ScopeBook {
		t.Errorf("QueryType = %s, want %s", qc.QueryType, retrieval.ScopeBook)
	}
}

func TestSearchEndpoint(t *testing.T) {
	f := newFixture(t)
	book := seedBook(t, f, "search")

	t.Run("requires query", func(t *testing.T) {
		if code := f.get(t, "/search/"+book.ID, nil); code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", code)
		}
	})

	t.Run("rejects bad mode", func(t *testing.T) {
		if code := f.get(t, "/search/"+book.ID+"?query=x&mode=psychic", nil); code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", code)
		}
	})

	t.Run("empty book returns empty results", func(t *testing.T) {
		var resp SearchResponse
		if code := f.get(t, "/search/"+book.ID+"?query=dragon&mode=semantic", &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if len(resp.Results) != 0 {
			t.Errorf("Results = %d, want 0", len(resp.Results))
		}
	})
}

func TestLogsEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	book := seedBook(t, f, "logs")
	entries := []types.FlowLogEntry{
		{EntityType: types.EntityBook, EntityID: book.ID, Stage: "extraction", Level: types.LevelInfo, Message: "started"},
		{EntityType: types.EntitySystem, EntityID: "system", Stage: "recovery", Level: types.LevelInfo, Message: "scan done"},
	}
	for _, entry := range entries {
		if err := f.store.FlowLogs().Append(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("book logs", func(t *testing.T) {
		var resp LogsResponse
		if code := f.get(t, "/logs/books/"+book.ID, &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if len(resp.Entries) != 1 || resp.Entries[0].Stage != "extraction" {
			t.Errorf("Entries = %+v", resp.Entries)
		}
	})

	t.Run("system logs", func(t *testing.T) {
		var resp LogsResponse
		if code := f.get(t, "/logs/system", &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if len(resp.Entries) != 1 || resp.Entries[0].Stage != "recovery" {
			t.Errorf("Entries = %+v", resp.Entries)
		}
	})

	t.Run("cleanup rejects bad days", func(t *testing.T) {
		if code := f.delete(t, "/logs/cleanup?days=zero", nil); code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", code)
		}
	})

	t.Run("cleanup keeps recent entries", func(t *testing.T) {
		var resp LogCleanupResponse
		if code := f.delete(t, "/logs/cleanup?days=30", &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if resp.Deleted != 0 {
			t.Errorf("Deleted = %d, want 0", resp.Deleted)
		}
	})
}

func TestCacheEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	if err := f.store.EmbeddingCache().Put(ctx, "hash-1", "model-a", []float32{1, 2}); err != nil {
		t.Fatal(err)
	}

	var stats storage.CacheStats
	if code := f.get(t, "/cache/stats", &stats); code != http.StatusOK {
		t.Fatalf("stats status = %d", code)
	}
	if stats.TotalEntries != 1 || stats.EntriesByModel["model-a"] != 1 {
		t.Errorf("stats = %+v", stats)
	}

	var pruned CachePruneResponse
	if code := f.delete(t, "/cache/prune?days=90", &pruned); code != http.StatusOK {
		t.Fatalf("prune status = %d", code)
	}
	if pruned.Deleted != 0 {
		t.Errorf("Deleted = %d, want 0", pruned.Deleted)
	}
}

func TestRecoverEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	book := seedBook(t, f, "recover")
	if _, err := f.store.Chapters().Upsert(ctx, types.Chapter{BookID: book.ID, ChapterNumber: 1, Content: "text"}); err != nil {
		t.Fatal(err)
	}
	if err := f.store.Books().UpdateCounts(ctx, book.ID); err != nil {
		t.Fatal(err)
	}

	var report pipeline.Report
	if code := f.post(t, "/recover", nil, &report); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if report.BooksQueued != 1 || report.ChaptersQueued != 1 {
		t.Errorf("report = %+v, want 1 book and 1 chapter queued", report)
	}
}
