package main

import (
	"github.com/spf13/cobra"

	"github.com/folio-labs/folio/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running folio server via HTTP.

These commands require a running server (folio serve).
Use --server to specify a custom server URL.

Examples:
  folio api health                    # Check server health
  folio api ingest manuscript.txt     # Ingest a manuscript
  folio api processing book-status <id>`,
}

var processingCmd = &cobra.Command{
	Use:   "processing",
	Short: "Processing status and job commands",
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Extracted results commands",
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Flow log commands",
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Embedding cache commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))

	// Ingestion, retrieval, and recovery at top level
	apiCmd.AddCommand((&endpoints.IngestEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ContextEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.SearchEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.RecoverEndpoint{}).Command(getServerURL))

	// Processing as subcommand group
	processingCmd.AddCommand((&endpoints.BookStatusEndpoint{}).Command(getServerURL))
	processingCmd.AddCommand((&endpoints.EntityStatusEndpoint{}).Command(getServerURL))
	processingCmd.AddCommand((&endpoints.JobGetEndpoint{}).Command(getServerURL))
	processingCmd.AddCommand((&endpoints.JobListEndpoint{}).Command(getServerURL))

	// Results as subcommand group
	resultsCmd.AddCommand((&endpoints.BookResultsEndpoint{}).Command(getServerURL))
	resultsCmd.AddCommand((&endpoints.ChapterResultsEndpoint{}).Command(getServerURL))

	// Logs as subcommand group
	logsCmd.AddCommand((&endpoints.BookLogsEndpoint{}).Command(getServerURL))
	logsCmd.AddCommand((&endpoints.ChapterLogsEndpoint{}).Command(getServerURL))
	logsCmd.AddCommand((&endpoints.SystemLogsEndpoint{}).Command(getServerURL))
	logsCmd.AddCommand((&endpoints.LogCleanupEndpoint{}).Command(getServerURL))

	// Cache as subcommand group
	cacheCmd.AddCommand((&endpoints.CacheStatsEndpoint{}).Command(getServerURL))
	cacheCmd.AddCommand((&endpoints.CachePruneEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(processingCmd)
	apiCmd.AddCommand(resultsCmd)
	apiCmd.AddCommand(logsCmd)
	apiCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(apiCmd)
}
