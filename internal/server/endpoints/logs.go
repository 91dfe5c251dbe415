package endpoints

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/folio-labs/folio/internal/api"
	"github.com/folio-labs/folio/internal/storage"
	"github.com/folio-labs/folio/internal/svcctx"
	"github.com/folio-labs/folio/internal/types"
)

const defaultLogLimit = 100

// LogsResponse is the response for flow log list endpoints.
type LogsResponse struct {
	Entries []types.FlowLogEntry `json:"entries"`
}

func parseLogLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLogLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return n, nil
}

func printLogEntries(entries []types.FlowLogEntry) {
	for _, entry := range entries {
		line := fmt.Sprintf("%s  %-5s %-20s %s",
			entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.Level, entry.Stage, entry.Message)
		if entry.DurationMS > 0 {
			line += fmt.Sprintf(" (%dms)", entry.DurationMS)
		}
		fmt.Println(line)
	}
}

// BookLogsEndpoint handles GET /logs/books/{book_id}. It returns flow
// logs for the book and all of its chapters.
type BookLogsEndpoint struct{}

func (e *BookLogsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/logs/books/{book_id}", e.handler
}

func (e *BookLogsEndpoint) RequiresInit() bool { return true }

func (e *BookLogsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLogLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	store := svcctx.StoreFrom(r.Context())
	entries, err := store.FlowLogs().ListForBook(r.Context(), r.PathValue("book_id"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, LogsResponse{Entries: entries})
}

func (e *BookLogsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "book-logs <book-id>",
		Short: "Show flow logs for a book and its chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp LogsResponse
			path := fmt.Sprintf("/logs/books/%s?limit=%d", args[0], limit)
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			printLogEntries(resp.Entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultLogLimit, "Maximum entries to return")
	return cmd
}

// ChapterLogsEndpoint handles GET /logs/chapters/{chapter_id}.
type ChapterLogsEndpoint struct{}

func (e *ChapterLogsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/logs/chapters/{chapter_id}", e.handler
}

func (e *ChapterLogsEndpoint) RequiresInit() bool { return true }

func (e *ChapterLogsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLogLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := storage.FlowLogFilter{
		Stage: r.URL.Query().Get("stage"),
		Level: types.LogLevel(r.URL.Query().Get("level")),
		Limit: limit,
	}

	store := svcctx.StoreFrom(r.Context())
	entries, err := store.FlowLogs().ListForEntity(r.Context(), types.EntityChapter, r.PathValue("chapter_id"), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, LogsResponse{Entries: entries})
}

func (e *ChapterLogsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "chapter-logs <chapter-id>",
		Short: "Show flow logs for a chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp LogsResponse
			path := fmt.Sprintf("/logs/chapters/%s?limit=%d", args[0], limit)
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			printLogEntries(resp.Entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultLogLimit, "Maximum entries to return")
	return cmd
}

// SystemLogsEndpoint handles GET /logs/system.
type SystemLogsEndpoint struct{}

func (e *SystemLogsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/logs/system", e.handler
}

func (e *SystemLogsEndpoint) RequiresInit() bool { return true }

func (e *SystemLogsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLogLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	store := svcctx.StoreFrom(r.Context())
	entries, err := store.FlowLogs().ListSystem(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, LogsResponse{Entries: entries})
}

func (e *SystemLogsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "system-logs",
		Short: "Show system-level flow logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp LogsResponse
			path := fmt.Sprintf("/logs/system?limit=%d", limit)
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			printLogEntries(resp.Entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultLogLimit, "Maximum entries to return")
	return cmd
}

// LogCleanupResponse is the response for DELETE /logs/cleanup.
type LogCleanupResponse struct {
	Deleted int `json:"deleted"`
	Days    int `json:"days"`
}

// LogCleanupEndpoint handles DELETE /logs/cleanup.
type LogCleanupEndpoint struct{}

func (e *LogCleanupEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/logs/cleanup", e.handler
}

func (e *LogCleanupEndpoint) RequiresInit() bool { return true }

func (e *LogCleanupEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	store := svcctx.StoreFrom(r.Context())
	deleted, err := store.FlowLogs().Prune(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, LogCleanupResponse{Deleted: deleted, Days: days})
}

func (e *LogCleanupEndpoint) Command(getServerURL func() string) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "log-cleanup",
		Short: "Delete flow logs older than a number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp LogCleanupResponse
			path := fmt.Sprintf("/logs/cleanup?days=%d", days)
			if err := client.Delete(cmd.Context(), path, &resp); err != nil {
				return err
			}
			fmt.Printf("Deleted %d entries older than %d days\n", resp.Deleted, resp.Days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Delete entries older than this many days")
	return cmd
}
