package endpoints

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/folio-labs/folio/internal/api"
	"github.com/folio-labs/folio/internal/retrieval"
	"github.com/folio-labs/folio/internal/svcctx"
)

// ContextEndpoint handles GET /context/{book_id}.
//
// The query parameter steers scope classification; without it the
// response still carries book context and recent chapters.
type ContextEndpoint struct{}

func (e *ContextEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/context/{book_id}", e.handler
}

func (e *ContextEndpoint) RequiresInit() bool { return true }

func (e *ContextEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("book_id")
	query := r.URL.Query().Get("query")

	engine := svcctx.RetrievalFrom(r.Context())
	if engine == nil {
		writeError(w, http.StatusServiceUnavailable, "retrieval engine not initialized")
		return
	}

	qc, err := engine.ContextForQuery(r.Context(), bookID, query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, qc)
}

func (e *ContextEndpoint) Command(getServerURL func() string) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "context <book-id>",
		Short: "Assemble writing context for a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/context/" + args[0]
			if query != "" {
				path += "?query=" + url.QueryEscape(query)
			}
			var qc retrieval.QueryContext
			if err := client.Get(cmd.Context(), path, &qc); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(qc)
			}
			fmt.Printf("Query type: %s\n", qc.QueryType)
			if qc.BookContext != nil {
				fmt.Printf("Book summary: %s\n", qc.BookContext.Summary)
			}
			if len(qc.RecentChapters) > 0 {
				fmt.Printf("Recent chapters:\n")
				for _, ch := range qc.RecentChapters {
					fmt.Printf("  %3d. %s\n", ch.ChapterNumber, ch.Title)
				}
			}
			for _, res := range qc.SemanticResults {
				fmt.Printf("  match: chapter %d (distance %.3f)\n", res.ChapterNumber, res.Distance)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Query to classify and search with")
	return cmd
}
