// Package endpoints contains all HTTP endpoints and their paired CLI
// commands for the folio API.
package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/folio-labs/folio/internal/api"
)

// All returns every endpoint to register with the server.
func All() []api.Endpoint {
	return []api.Endpoint{
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&IngestEndpoint{},
		&BookStatusEndpoint{},
		&EntityStatusEndpoint{},
		&JobGetEndpoint{},
		&JobListEndpoint{},
		&BookResultsEndpoint{},
		&ChapterResultsEndpoint{},
		&ContextEndpoint{},
		&SearchEndpoint{},
		&BookLogsEndpoint{},
		&ChapterLogsEndpoint{},
		&SystemLogsEndpoint{},
		&LogCleanupEndpoint{},
		&CacheStatsEndpoint{},
		&CachePruneEndpoint{},
		&RecoverEndpoint{},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
