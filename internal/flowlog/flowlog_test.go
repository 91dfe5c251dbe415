package flowlog

import (
	"context"
	"errors"
	"testing"

	"github.com/folio-labs/folio/internal/storage"
	"github.com/folio-labs/folio/internal/types"
)

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLoggerRecordsEntries(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	fl := New(store.FlowLogs(), nil)

	fl.Info(ctx, types.EntityChapter, "c1", "extraction", "metadata extracted", map[string]any{"confidence": 0.9})
	fl.Error(ctx, types.EntityChapter, "c1", "embedding", "provider unreachable", nil)

	entries, err := store.FlowLogs().ListForEntity(ctx, types.EntityChapter, "c1", storage.FlowLogFilter{})
	if err != nil {
		t.Fatalf("ListForEntity: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	errs, err := store.FlowLogs().ListForEntity(ctx, types.EntityChapter, "c1", storage.FlowLogFilter{Level: types.LevelError})
	if err != nil {
		t.Fatalf("ListForEntity: %v", err)
	}
	if len(errs) != 1 || errs[0].Stage != "embedding" {
		t.Fatalf("error filter returned %+v", errs)
	}
}

func TestTimedPropagatesError(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	fl := New(store.FlowLogs(), nil)

	want := errors.New("extraction blew up")
	err := fl.Timed(ctx, types.EntityBook, "b1", "extraction", "book context", func() error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("Timed returned %v, want %v", err, want)
	}

	entries, err := store.FlowLogs().ListForEntity(ctx, types.EntityBook, "b1", storage.FlowLogFilter{})
	if err != nil {
		t.Fatalf("ListForEntity: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Level != types.LevelError {
		t.Errorf("Level = %s, want error", entries[0].Level)
	}
	if entries[0].Metadata["error"] != want.Error() {
		t.Errorf("Metadata = %v, want error message recorded", entries[0].Metadata)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var fl *Logger
	ctx := context.Background()

	fl.Info(ctx, types.EntityBook, "b1", "ingest", "ok", nil)
	if err := fl.Timed(ctx, types.EntityBook, "b1", "ingest", "ok", func() error { return nil }); err != nil {
		t.Fatalf("Timed on nil logger: %v", err)
	}
}

func TestAppendFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	fl := New(store.FlowLogs(), nil)

	// Closing the database makes every append fail.
	store.Close()
	fl.Info(ctx, types.EntityBook, "b1", "ingest", "after close", nil)
	if err := fl.Timed(ctx, types.EntityBook, "b1", "ingest", "after close", func() error { return nil }); err != nil {
		t.Fatalf("Timed: %v", err)
	}
}
