package endpoints

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/folio-labs/folio/internal/api"
	"github.com/folio-labs/folio/internal/storage"
	"github.com/folio-labs/folio/internal/svcctx"
)

// CacheStatsEndpoint handles GET /cache/stats.
type CacheStatsEndpoint struct{}

func (e *CacheStatsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/cache/stats", e.handler
}

func (e *CacheStatsEndpoint) RequiresInit() bool { return true }

func (e *CacheStatsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.StoreFrom(r.Context())
	stats, err := store.EmbeddingCache().Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (e *CacheStatsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cache-stats",
		Short: "Show embedding cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var stats storage.CacheStats
			if err := client.Get(cmd.Context(), "/cache/stats", &stats); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(stats)
			}
			fmt.Printf("Entries: %d\n", stats.TotalEntries)
			for model, count := range stats.EntriesByModel {
				fmt.Printf("  %s: %d\n", model, count)
			}
			return nil
		},
	}
}

// CachePruneResponse is the response for DELETE /cache/prune.
type CachePruneResponse struct {
	Deleted int `json:"deleted"`
	Days    int `json:"days"`
}

// CachePruneEndpoint handles DELETE /cache/prune. Entries are pruned by
// last access, not insertion time.
type CachePruneEndpoint struct{}

func (e *CachePruneEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/cache/prune", e.handler
}

func (e *CachePruneEndpoint) RequiresInit() bool { return true }

func (e *CachePruneEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	days := 90
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	store := svcctx.StoreFrom(r.Context())
	deleted, err := store.EmbeddingCache().Prune(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CachePruneResponse{Deleted: deleted, Days: days})
}

func (e *CachePruneEndpoint) Command(getServerURL func() string) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cache-prune",
		Short: "Delete cached embeddings not accessed recently",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CachePruneResponse
			path := fmt.Sprintf("/cache/prune?days=%d", days)
			if err := client.Delete(cmd.Context(), path, &resp); err != nil {
				return err
			}
			fmt.Printf("Deleted %d entries not accessed in %d days\n", resp.Deleted, resp.Days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 90, "Delete entries not accessed in this many days")
	return cmd
}
