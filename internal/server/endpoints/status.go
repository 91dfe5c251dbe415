package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/folio-labs/folio/internal/api"
	"github.com/folio-labs/folio/internal/storage"
	"github.com/folio-labs/folio/internal/svcctx"
	"github.com/folio-labs/folio/internal/types"
)

// BookStatusResponse is the aggregated processing status for a book and
// all of its chapters.
type BookStatusResponse struct {
	BookID   string                   `json:"book_id"`
	Status   types.Status             `json:"status"`
	Progress int                      `json:"progress"`
	Entities []types.ProcessingStatus `json:"entities"`
}

// BookStatusEndpoint handles GET /processing/books/{book_id}/status.
type BookStatusEndpoint struct{}

func (e *BookStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/processing/books/{book_id}/status", e.handler
}

func (e *BookStatusEndpoint) RequiresInit() bool { return true }

func (e *BookStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("book_id")
	store := svcctx.StoreFrom(r.Context())

	if _, err := store.Books().Get(r.Context(), bookID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found: "+bookID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entities, err := store.Status().ListForBook(r.Context(), bookID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	statuses := make([]types.Status, 0, len(entities))
	progressSum, progressCount := 0, 0
	for _, ps := range entities {
		statuses = append(statuses, ps.Status)
		if ps.Progress >= 0 {
			progressSum += ps.Progress
			progressCount++
		}
	}

	resp := BookStatusResponse{
		BookID:   bookID,
		Status:   types.CombineStatuses(statuses),
		Entities: entities,
	}
	if progressCount > 0 {
		resp.Progress = progressSum / progressCount
	}
	if resp.Status == types.StatusFailed {
		resp.Progress = types.FailedProgress
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *BookStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "book-status <book-id>",
		Short: "Get aggregated processing status for a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp BookStatusResponse
			path := fmt.Sprintf("/processing/books/%s/status", args[0])
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Printf("Book:     %s\n", resp.BookID)
			fmt.Printf("Status:   %s\n", resp.Status)
			fmt.Printf("Progress: %d\n", resp.Progress)
			for _, ps := range resp.Entities {
				line := fmt.Sprintf("  %s/%s: %s (%d%%)", ps.EntityType, ps.EntityID, ps.Status, ps.Progress)
				if ps.Error != "" {
					line += " error=" + ps.Error
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

// EntityStatusEndpoint handles GET /processing/status/{entity_type}/{entity_id}.
type EntityStatusEndpoint struct{}

func (e *EntityStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/processing/status/{entity_type}/{entity_id}", e.handler
}

func (e *EntityStatusEndpoint) RequiresInit() bool { return true }

func (e *EntityStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	entityType := types.EntityType(r.PathValue("entity_type"))
	entityID := r.PathValue("entity_id")

	switch entityType {
	case types.EntityBook, types.EntityChapter:
	default:
		writeError(w, http.StatusBadRequest, "entity type must be book or chapter")
		return
	}

	store := svcctx.StoreFrom(r.Context())
	ps, err := store.Status().Get(r.Context(), entityType, entityID)
	if errors.Is(err, storage.ErrNotFound) {
		// No record yet means work has not started.
		ps = &types.ProcessingStatus{
			EntityType: entityType,
			EntityID:   entityID,
			Status:     types.StatusPending,
			Progress:   0,
			UpdatedAt:  time.Now().UTC(),
		}
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ps)
}

func (e *EntityStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <entity-type> <entity-id>",
		Short: "Get processing status for a book or chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var ps types.ProcessingStatus
			path := fmt.Sprintf("/processing/status/%s/%s", args[0], args[1])
			if err := client.Get(cmd.Context(), path, &ps); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(ps)
			}
			fmt.Printf("Status:   %s\n", ps.Status)
			fmt.Printf("Progress: %d\n", ps.Progress)
			if ps.Error != "" {
				fmt.Printf("Error:    %s\n", ps.Error)
			}
			return nil
		},
	}
}
