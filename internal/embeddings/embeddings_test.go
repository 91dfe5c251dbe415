package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/folio-labs/folio/internal/fingerprint"
	"github.com/folio-labs/folio/internal/storage"
)

func TestNew(t *testing.T) {
	t.Run("default is local", func(t *testing.T) {
		p, err := New(Config{})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, ok := p.(*LocalProvider); !ok {
			t.Fatalf("got %T", p)
		}
	})

	t.Run("openai requires key", func(t *testing.T) {
		if _, err := New(Config{Backend: "openai"}); err == nil {
			t.Fatal("expected error without API key")
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := New(Config{Backend: "quantum"})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider(16)
	ctx := context.Background()

	t.Run("deterministic", func(t *testing.T) {
		a, err := p.Embed(ctx, "hello")
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		b, _ := p.Embed(ctx, "hello")
		for i := range a {
			if a[i] != b[i] {
				t.Fatal("vectors differ across calls")
			}
		}
		if len(a) != 16 {
			t.Fatalf("dims = %d", len(a))
		}
	})

	t.Run("distinct texts differ", func(t *testing.T) {
		a, _ := p.Embed(ctx, "alpha")
		b, _ := p.Embed(ctx, "beta")
		same := true
		for i := range a {
			if a[i] != b[i] {
				same = false
				break
			}
		}
		if same {
			t.Fatal("different texts produced identical vectors")
		}
	})
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("embed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/embed" {
				http.NotFound(w, r)
				return
			}
			var req struct {
				Text string `json:"text"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			vec := make([]float32, localDimensions)
			vec[0] = float32(len(req.Text))
			json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
		}))
		defer srv.Close()

		p := NewLocalProvider(Config{LocalURL: srv.URL})
		vec, err := p.Embed(ctx, "hello")
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		if len(vec) != localDimensions || vec[0] != 5 {
			t.Fatalf("vec[0] = %v len = %d", vec[0], len(vec))
		}
	})

	t.Run("dimension mismatch is fatal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 2, 3}})
		}))
		defer srv.Close()

		p := NewLocalProvider(Config{LocalURL: srv.URL})
		if _, err := p.Embed(ctx, "x"); !errors.Is(err, ErrDimensionMismatch) {
			t.Fatalf("err = %v, want ErrDimensionMismatch", err)
		}
	})

	t.Run("batch falls back to sequential", func(t *testing.T) {
		var singleCalls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/embed/batch":
				http.Error(w, "not implemented", http.StatusInternalServerError)
			case "/embed":
				singleCalls.Add(1)
				json.NewEncoder(w).Encode(map[string]any{"embedding": make([]float32, localDimensions)})
			}
		}))
		defer srv.Close()

		p := NewLocalProvider(Config{LocalURL: srv.URL})
		vectors, err := p.EmbedBatch(ctx, []string{"a", "b", "c"})
		if err != nil {
			t.Fatalf("EmbedBatch: %v", err)
		}
		if len(vectors) != 3 {
			t.Fatalf("got %d vectors", len(vectors))
		}
		if singleCalls.Load() != 3 {
			t.Fatalf("sequential fallback made %d calls, want 3", singleCalls.Load())
		}
	})

	t.Run("retries then fails", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		p := NewLocalProvider(Config{LocalURL: srv.URL, MaxRetries: 2})
		if _, err := p.Embed(ctx, "x"); err == nil {
			t.Fatal("expected error")
		}
		if hits.Load() != 2 {
			t.Fatalf("made %d attempts, want 2", hits.Load())
		}
	})
}

func TestCachedProvider(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	t.Run("second call is a cache hit", func(t *testing.T) {
		mock := NewMockProvider(8)
		cached := NewCachedProvider(mock, store.EmbeddingCache(), nil)

		first, err := cached.Embed(ctx, "the same text")
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		second, err := cached.Embed(ctx, "the same text")
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		if mock.Calls() != 1 {
			t.Fatalf("provider called %d times, want 1", mock.Calls())
		}
		for i := range first {
			if first[i] != second[i] {
				t.Fatal("cached vector differs")
			}
		}
	})

	t.Run("invalidation forces a provider call", func(t *testing.T) {
		mock := NewMockProvider(8)
		cached := NewCachedProvider(mock, store.EmbeddingCache(), nil)

		if _, err := cached.Embed(ctx, "volatile text"); err != nil {
			t.Fatal(err)
		}
		n, err := cached.Invalidate(ctx, []string{fingerprint.Content("volatile text")})
		if err != nil {
			t.Fatalf("Invalidate: %v", err)
		}
		if n != 1 {
			t.Fatalf("invalidated %d, want 1", n)
		}
		if _, err := cached.Embed(ctx, "volatile text"); err != nil {
			t.Fatal(err)
		}
		if mock.Calls() != 2 {
			t.Fatalf("provider called %d times, want 2", mock.Calls())
		}
	})

	t.Run("batch mixes hits and misses", func(t *testing.T) {
		mock := NewMockProvider(8)
		cached := NewCachedProvider(mock, store.EmbeddingCache(), nil)

		if _, err := cached.Embed(ctx, "warm"); err != nil {
			t.Fatal(err)
		}
		vectors, err := cached.EmbedBatch(ctx, []string{"warm", "cold"})
		if err != nil {
			t.Fatalf("EmbedBatch: %v", err)
		}
		if len(vectors) != 2 || vectors[0] == nil || vectors[1] == nil {
			t.Fatalf("vectors = %v", vectors)
		}
		// One single-embed call plus one batch call for the miss.
		if mock.Calls() != 2 {
			t.Fatalf("provider calls = %d, want 2", mock.Calls())
		}
	})
}
