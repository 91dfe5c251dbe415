// Package retrieval ranks stored chapters and chunks against free-text
// queries using the hierarchical embeddings the pipeline produced.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/folio-labs/folio/internal/embeddings"
	"github.com/folio-labs/folio/internal/storage"
	"github.com/folio-labs/folio/internal/types"
)

const (
	// hybridBoost halves the distance of keyword-matching chapters,
	// ranking them as if twice as relevant.
	hybridBoost = 0.5

	// Weights for combining chunk and chapter distance in hierarchical
	// search.
	chunkWeight   = 0.7
	chapterWeight = 0.3

	defaultLimit        = 5
	defaultChapterStage = 3
	recentChapterCount  = 5
)

// ChapterResult is one ranked chapter.
type ChapterResult struct {
	ChapterID     string  `json:"chapter_id"`
	ChapterNumber int     `json:"chapter_number"`
	Title         string  `json:"title,omitempty"`
	Summary       string  `json:"summary,omitempty"`
	Distance      float64 `json:"distance"`
	KeywordMatch  bool    `json:"keyword_match,omitempty"`
}

// ChunkResult is one ranked chunk inside a hierarchical result.
type ChunkResult struct {
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Distance   float64 `json:"distance"`
	// Neighbor marks chunks pulled in for context rather than matched.
	Neighbor bool `json:"neighbor,omitempty"`
}

// HierarchicalResult groups matched chunks under their chapter.
type HierarchicalResult struct {
	ChapterID     string        `json:"chapter_id"`
	ChapterNumber int           `json:"chapter_number"`
	Title         string        `json:"title,omitempty"`
	Distance      float64       `json:"distance"`
	Chunks        []ChunkResult `json:"chunks"`
}

// QueryContext is the assembled answer for a context request.
type QueryContext struct {
	QueryType       Scope              `json:"query_type"`
	BookContext     *types.BookContext `json:"book_context,omitempty"`
	RecentChapters  []types.Chapter    `json:"recent_chapters,omitempty"`
	SemanticResults []ChapterResult    `json:"semantic_results,omitempty"`
}

// Engine runs retrieval over stored embeddings.
type Engine struct {
	store    *storage.Store
	embedder embeddings.Provider
	logger   *slog.Logger
}

// NewEngine wires a retrieval engine.
func NewEngine(store *storage.Store, embedder embeddings.Provider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, embedder: embedder, logger: logger.With("component", "retrieval")}
}

// rankChapters embeds the query and orders all embedded chapters of the
// book by distance, optionally discounting keyword matches.
func (e *Engine) rankChapters(ctx context.Context, bookID, query string, boost bool) ([]ChapterResult, []types.Chapter, error) {
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}

	chapters, err := e.store.Chapters().ListEmbedded(ctx, bookID)
	if err != nil {
		return nil, nil, fmt.Errorf("list embedded chapters: %w", err)
	}

	keywords := Keywords(query)
	results := make([]ChapterResult, 0, len(chapters))
	for _, ch := range chapters {
		r := ChapterResult{
			ChapterID:     ch.ID,
			ChapterNumber: ch.ChapterNumber,
			Title:         ch.Title,
			Summary:       ch.Summary,
			Distance:      CosineDistance(queryVec, ch.Embedding),
		}
		if boost && matchesKeywords(keywords, ch.Title, ch.Content) {
			r.Distance *= hybridBoost
			r.KeywordMatch = true
		}
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	return results, chapters, nil
}

// Semantic ranks chapters purely by vector distance to the query.
func (e *Engine) Semantic(ctx context.Context, bookID, query string, limit int) ([]ChapterResult, error) {
	results, _, err := e.rankChapters(ctx, bookID, query, false)
	if err != nil {
		return nil, err
	}
	return truncateResults(results, limit), nil
}

// Hybrid ranks chapters by vector distance with a keyword-match discount.
func (e *Engine) Hybrid(ctx context.Context, bookID, query string, limit int) ([]ChapterResult, error) {
	results, _, err := e.rankChapters(ctx, bookID, query, true)
	if err != nil {
		return nil, err
	}
	return truncateResults(results, limit), nil
}

// Hierarchical narrows to the closest chapters, ranks their chunks by a
// weighted combination of chunk and chapter distance, and expands each
// match with its neighboring chunks for readable context.
func (e *Engine) Hierarchical(ctx context.Context, bookID, query string, limit int) ([]HierarchicalResult, error) {
	ranked, chapters, err := e.rankChapters(ctx, bookID, query, false)
	if err != nil {
		return nil, err
	}
	if len(ranked) > defaultChapterStage {
		ranked = ranked[:defaultChapterStage]
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chapterByID := make(map[string]types.Chapter, len(chapters))
	for _, ch := range chapters {
		chapterByID[ch.ID] = ch
	}

	ids := make([]string, len(ranked))
	chapterDist := make(map[string]float64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ChapterID
		chapterDist[r.ChapterID] = r.Distance
	}

	chunks, err := e.store.Chunks().ListByChapters(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	byChapter := make(map[string][]types.ChapterChunk)
	for _, c := range chunks {
		byChapter[c.ChapterID] = append(byChapter[c.ChapterID], c)
	}

	var out []HierarchicalResult
	for _, r := range ranked {
		chapterChunks := byChapter[r.ChapterID]
		if len(chapterChunks) == 0 {
			continue
		}
		sort.Slice(chapterChunks, func(i, j int) bool {
			return chapterChunks[i].ChunkIndex < chapterChunks[j].ChunkIndex
		})

		type scored struct {
			pos      int
			combined float64
		}
		ranks := make([]scored, len(chapterChunks))
		for i, c := range chapterChunks {
			ranks[i] = scored{
				pos:      i,
				combined: chunkWeight*CosineDistance(queryVec, c.Embedding) + chapterWeight*chapterDist[r.ChapterID],
			}
		}
		sort.Slice(ranks, func(i, j int) bool { return ranks[i].combined < ranks[j].combined })

		keep := limit
		if keep <= 0 {
			keep = defaultLimit
		}
		if keep > len(ranks) {
			keep = len(ranks)
		}

		matched := make(map[int]float64, keep)
		include := make(map[int]bool)
		best := ranks[0].combined
		for _, s := range ranks[:keep] {
			matched[s.pos] = s.combined
			include[s.pos] = true
			if s.pos > 0 {
				include[s.pos-1] = true
			}
			if s.pos < len(chapterChunks)-1 {
				include[s.pos+1] = true
			}
		}

		hr := HierarchicalResult{
			ChapterID:     r.ChapterID,
			ChapterNumber: r.ChapterNumber,
			Title:         r.Title,
			Distance:      best,
		}
		positions := make([]int, 0, len(include))
		for pos := range include {
			positions = append(positions, pos)
		}
		sort.Ints(positions)
		for _, pos := range positions {
			c := chapterChunks[pos]
			cr := ChunkResult{ChunkIndex: c.ChunkIndex, Text: c.Text}
			if d, ok := matched[pos]; ok {
				cr.Distance = d
			} else {
				cr.Neighbor = true
			}
			hr.Chunks = append(hr.Chunks, cr)
		}
		out = append(out, hr)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// ContextForQuery classifies the query and assembles the matching
// context: book-level context, recent chapters, semantic results, or all
// of them for mixed queries.
func (e *Engine) ContextForQuery(ctx context.Context, bookID, query string) (*QueryContext, error) {
	scope := Classify(query)
	qc := &QueryContext{QueryType: scope}

	if scope == ScopeBook || scope == ScopeMixed {
		bc, err := e.store.Contexts().Get(ctx, bookID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load book context: %w", err)
		}
		qc.BookContext = bc
	}

	if scope == ScopeChapter || scope == ScopeMixed {
		recent, err := e.store.Chapters().ListRecent(ctx, bookID, recentChapterCount)
		if err != nil {
			return nil, fmt.Errorf("list recent chapters: %w", err)
		}
		qc.RecentChapters = recent
	}

	// Semantic results enrich the context but are not required for it;
	// an embedding outage degrades to scope-level context only.
	if query != "" {
		results, err := e.Hybrid(ctx, bookID, query, defaultLimit)
		if err != nil {
			e.logger.Warn("semantic retrieval unavailable", "book_id", bookID, "error", err)
		} else {
			qc.SemanticResults = results
		}
	}
	return qc, nil
}

func truncateResults(results []ChapterResult, limit int) []ChapterResult {
	if limit <= 0 {
		limit = defaultLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
