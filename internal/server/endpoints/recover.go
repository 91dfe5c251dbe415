package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/folio-labs/folio/internal/api"
	"github.com/folio-labs/folio/internal/pipeline"
	"github.com/folio-labs/folio/internal/svcctx"
)

// RecoverEndpoint handles POST /recover. It scans storage for entities
// missing derived data and re-queues them.
type RecoverEndpoint struct{}

func (e *RecoverEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/recover", e.handler
}

func (e *RecoverEndpoint) RequiresInit() bool { return true }

func (e *RecoverEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	scanner := svcctx.ScannerFrom(r.Context())
	if scanner == nil {
		writeError(w, http.StatusServiceUnavailable, "recovery scanner not initialized")
		return
	}

	report, err := scanner.Scan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (e *RecoverEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Re-queue entities missing extracted data",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var report pipeline.Report
			if err := client.Post(cmd.Context(), "/recover", nil, &report); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(report)
			}
			fmt.Printf("Books queued:    %d\n", report.BooksQueued)
			fmt.Printf("Chapters queued: %d\n", report.ChaptersQueued)
			fmt.Printf("Books skipped:   %d\n", report.BooksSkipped)
			fmt.Printf("Failures:        %d\n", report.Failures)
			return nil
		},
	}
}
