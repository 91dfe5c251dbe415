package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/folio-labs/folio/internal/api"
	"github.com/folio-labs/folio/internal/ingest"
	"github.com/folio-labs/folio/internal/svcctx"
)

// IngestRequest is the body for POST /ingest.
type IngestRequest struct {
	Ref   string `json:"ref"`
	Title string `json:"title,omitempty"`
}

// IngestProcessing carries the queued-job identifiers for an ingestion.
type IngestProcessing struct {
	BookJobID     string   `json:"book_job_id"`
	ChapterJobIDs []string `json:"chapter_job_ids"`
	Status        string   `json:"status"`
}

// IngestResponse is the response for POST /ingest.
type IngestResponse struct {
	BookID       string           `json:"book_id"`
	Title        string           `json:"title"`
	ChapterCount int              `json:"chapter_count"`
	Processing   IngestProcessing `json:"processing"`
}

// IngestEndpoint handles POST /ingest.
type IngestEndpoint struct{}

func (e *IngestEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/ingest", e.handler
}

func (e *IngestEndpoint) RequiresInit() bool { return true }

func (e *IngestEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Ref == "" {
		writeError(w, http.StatusBadRequest, "ref is required")
		return
	}

	svc := svcctx.IngestFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "ingest service not initialized")
		return
	}

	result, err := svc.Ingest(r.Context(), ingest.Request{Ref: req.Ref, Title: req.Title})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, IngestResponse{
		BookID:       result.BookID,
		Title:        result.Title,
		ChapterCount: result.ChapterCount,
		Processing: IngestProcessing{
			BookJobID:     result.BookJobID,
			ChapterJobIDs: result.ChapterJobIDs,
			Status:        result.Status,
		},
	})
}

func (e *IngestEndpoint) Command(getServerURL func() string) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "ingest <path-or-url>",
		Short: "Ingest a manuscript and queue it for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp IngestResponse
			req := IngestRequest{Ref: args[0], Title: title}
			if err := client.Post(cmd.Context(), "/ingest", req, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Printf("Book:     %s (%s)\n", resp.Title, resp.BookID)
			fmt.Printf("Chapters: %d\n", resp.ChapterCount)
			fmt.Printf("Queued:   %d chapter jobs + 1 book job\n", len(resp.Processing.ChapterJobIDs))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Override the book title")
	return cmd
}
