package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/folio-labs/folio/internal/api"
	"github.com/folio-labs/folio/internal/jobs"
	"github.com/folio-labs/folio/internal/svcctx"
)

// JobGetEndpoint handles GET /processing/jobs/{job_id}.
//
// Jobs live only in memory; after a restart this returns 404 and the
// persistent status endpoints are the source of truth.
type JobGetEndpoint struct{}

func (e *JobGetEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/processing/jobs/{job_id}", e.handler
}

func (e *JobGetEndpoint) RequiresInit() bool { return true }

func (e *JobGetEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	queue := svcctx.QueueFrom(r.Context())

	job, ok := queue.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found: "+jobID)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (e *JobGetEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "job <job-id>",
		Short: "Get an in-memory job by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var job jobs.Job
			if err := client.Get(cmd.Context(), "/processing/jobs/"+args[0], &job); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(job)
			}
			fmt.Printf("Job:      %s (%s)\n", job.ID, job.Type)
			fmt.Printf("Status:   %s\n", job.Status)
			fmt.Printf("Progress: %d\n", job.Progress)
			fmt.Printf("Attempts: %d/%d\n", job.Attempts, job.MaxAttempts)
			if job.Error != "" {
				fmt.Printf("Error:    %s\n", job.Error)
			}
			return nil
		},
	}
}

// JobListResponse is the response for GET /processing/jobs.
type JobListResponse struct {
	Jobs  []*jobs.Job         `json:"jobs"`
	Stats map[jobs.Status]int `json:"stats"`
}

// JobListEndpoint handles GET /processing/jobs.
type JobListEndpoint struct{}

func (e *JobListEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/processing/jobs", e.handler
}

func (e *JobListEndpoint) RequiresInit() bool { return true }

func (e *JobListEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	queue := svcctx.QueueFrom(r.Context())
	writeJSON(w, http.StatusOK, JobListResponse{
		Jobs:  queue.List(),
		Stats: queue.Stats(),
	})
}

func (e *JobListEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List in-memory jobs and queue stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp JobListResponse
			if err := client.Get(cmd.Context(), "/processing/jobs", &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			for status, count := range resp.Stats {
				fmt.Printf("%s: %d\n", status, count)
			}
			for _, job := range resp.Jobs {
				fmt.Printf("  %s  %-18s %s (%d%%)\n", job.ID, job.Type, job.Status, job.Progress)
			}
			return nil
		},
	}
}
