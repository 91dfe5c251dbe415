package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/folio-labs/folio/internal/api"
	"github.com/folio-labs/folio/internal/retrieval"
	"github.com/folio-labs/folio/internal/svcctx"
)

// SearchResponse is the response for GET /search/{book_id}. Exactly one
// of Results or Hierarchical is populated depending on mode.
type SearchResponse struct {
	Mode         string                         `json:"mode"`
	Query        string                         `json:"query"`
	Results      []retrieval.ChapterResult      `json:"results,omitempty"`
	Hierarchical []retrieval.HierarchicalResult `json:"hierarchical,omitempty"`
}

// SearchEndpoint handles GET /search/{book_id}.
type SearchEndpoint struct{}

func (e *SearchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/search/{book_id}", e.handler
}

func (e *SearchEndpoint) RequiresInit() bool { return true }

func (e *SearchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("book_id")
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "hybrid"
	}

	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	engine := svcctx.RetrievalFrom(r.Context())
	if engine == nil {
		writeError(w, http.StatusServiceUnavailable, "retrieval engine not initialized")
		return
	}

	resp := SearchResponse{Mode: mode, Query: query}
	var err error
	switch mode {
	case "semantic":
		resp.Results, err = engine.Semantic(r.Context(), bookID, query, limit)
	case "hybrid":
		resp.Results, err = engine.Hybrid(r.Context(), bookID, query, limit)
	case "hierarchical":
		resp.Hierarchical, err = engine.Hierarchical(r.Context(), bookID, query, limit)
	default:
		writeError(w, http.StatusBadRequest, "mode must be semantic, hybrid, or hierarchical")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *SearchEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		mode  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search <book-id> <query>",
		Short: "Search a book's chapters by semantic similarity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := fmt.Sprintf("/search/%s?query=%s&mode=%s&limit=%d",
				args[0], url.QueryEscape(args[1]), mode, limit)
			var resp SearchResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			for _, res := range resp.Results {
				marker := " "
				if res.KeywordMatch {
					marker = "*"
				}
				fmt.Printf("%s %.3f  chapter %d: %s\n", marker, res.Distance, res.ChapterNumber, res.Title)
			}
			for _, hr := range resp.Hierarchical {
				fmt.Printf("%.3f  chapter %d: %s\n", hr.Distance, hr.ChapterNumber, hr.Title)
				for _, chunk := range hr.Chunks {
					marker := "match"
					if chunk.Neighbor {
						marker = "near "
					}
					fmt.Printf("    [%s] chunk %d (%.3f)\n", marker, chunk.ChunkIndex, chunk.Distance)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "hybrid", "Search mode: semantic, hybrid, or hierarchical")
	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum results to return")
	return cmd
}
