package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/folio-labs/folio/internal/api"
	"github.com/folio-labs/folio/internal/storage"
	"github.com/folio-labs/folio/internal/svcctx"
	"github.com/folio-labs/folio/internal/types"
)

// ChapterSummary is a chapter row without its full content.
type ChapterSummary struct {
	ID            string  `json:"id"`
	ChapterNumber int     `json:"chapter_number"`
	Title         string  `json:"title,omitempty"`
	WordCount     int     `json:"word_count"`
	Summary       string  `json:"summary,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	HasEmbedding  bool    `json:"has_embedding"`
}

// BookResultsResponse is the response for GET /results/books/{book_id}.
type BookResultsResponse struct {
	Book     types.Book         `json:"book"`
	Context  *types.BookContext `json:"context,omitempty"`
	Chapters []ChapterSummary   `json:"chapters"`
}

// BookResultsEndpoint handles GET /results/books/{book_id}.
type BookResultsEndpoint struct{}

func (e *BookResultsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/results/books/{book_id}", e.handler
}

func (e *BookResultsEndpoint) RequiresInit() bool { return true }

func (e *BookResultsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("book_id")
	store := svcctx.StoreFrom(r.Context())

	book, err := store.Books().Get(r.Context(), bookID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found: "+bookID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := BookResultsResponse{Book: *book}

	// A book without extracted context is still a valid result.
	bc, err := store.Contexts().Get(r.Context(), bookID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Context = bc

	chapters, err := store.Chapters().List(r.Context(), bookID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Chapters = make([]ChapterSummary, 0, len(chapters))
	for _, ch := range chapters {
		resp.Chapters = append(resp.Chapters, ChapterSummary{
			ID:            ch.ID,
			ChapterNumber: ch.ChapterNumber,
			Title:         ch.Title,
			WordCount:     ch.WordCount,
			Summary:       ch.Summary,
			Confidence:    ch.Confidence,
			HasEmbedding:  ch.HasEmbedding(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *BookResultsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "book <book-id>",
		Short: "Get extracted results for a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp BookResultsResponse
			if err := client.Get(cmd.Context(), "/results/books/"+args[0], &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Printf("Book:     %s (%d chapters, %d words)\n", resp.Book.Title, resp.Book.ChapterCount, resp.Book.TotalWords)
			if resp.Context != nil {
				fmt.Printf("Context:  confidence %.2f, model %s\n", resp.Context.Confidence, resp.Context.ModelVersion)
				fmt.Printf("Summary:  %s\n", resp.Context.Summary)
			} else {
				fmt.Println("Context:  not yet extracted")
			}
			for _, ch := range resp.Chapters {
				fmt.Printf("  %3d. %-30s %6d words  embedded=%t\n", ch.ChapterNumber, ch.Title, ch.WordCount, ch.HasEmbedding)
			}
			return nil
		},
	}
}

// ChapterResultsResponse is the response for GET /results/chapters/{chapter_id}.
type ChapterResultsResponse struct {
	Chapter types.Chapter        `json:"chapter"`
	Chunks  []types.ChapterChunk `json:"chunks"`
}

// ChapterResultsEndpoint handles GET /results/chapters/{chapter_id}.
type ChapterResultsEndpoint struct{}

func (e *ChapterResultsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/results/chapters/{chapter_id}", e.handler
}

func (e *ChapterResultsEndpoint) RequiresInit() bool { return true }

func (e *ChapterResultsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	chapterID := r.PathValue("chapter_id")
	store := svcctx.StoreFrom(r.Context())

	chapter, err := store.Chapters().Get(r.Context(), chapterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chapter not found: "+chapterID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	chunks, err := store.Chunks().List(r.Context(), chapterID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ChapterResultsResponse{Chapter: *chapter, Chunks: chunks})
}

func (e *ChapterResultsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "chapter <chapter-id>",
		Short: "Get extracted results for a chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ChapterResultsResponse
			if err := client.Get(cmd.Context(), "/results/chapters/"+args[0], &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			ch := resp.Chapter
			fmt.Printf("Chapter %d: %s (%d words)\n", ch.ChapterNumber, ch.Title, ch.WordCount)
			if ch.Summary != "" {
				fmt.Printf("Summary:   %s\n", ch.Summary)
				fmt.Printf("Confidence: %.2f\n", ch.Confidence)
			}
			fmt.Printf("Embedded:  %t (%d chunks)\n", ch.EmbeddingModel != "", len(resp.Chunks))
			return nil
		},
	}
}
