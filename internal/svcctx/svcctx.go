// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/folio-labs/folio/internal/config"
	"github.com/folio-labs/folio/internal/flowlog"
	"github.com/folio-labs/folio/internal/ingest"
	"github.com/folio-labs/folio/internal/jobs"
	"github.com/folio-labs/folio/internal/pipeline"
	"github.com/folio-labs/folio/internal/retrieval"
	"github.com/folio-labs/folio/internal/storage"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Store     *storage.Store
	Queue     *jobs.Queue
	Ingest    *ingest.Service
	Processor *pipeline.Processor
	Scanner   *pipeline.Scanner
	Retrieval *retrieval.Engine
	Flow      *flowlog.Logger
	ConfigMgr *config.Manager
	Logger    *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the storage layer from context.
func StoreFrom(ctx context.Context) *storage.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// QueueFrom extracts the job queue from context.
func QueueFrom(ctx context.Context) *jobs.Queue {
	if s := ServicesFrom(ctx); s != nil {
		return s.Queue
	}
	return nil
}

// IngestFrom extracts the ingest service from context.
func IngestFrom(ctx context.Context) *ingest.Service {
	if s := ServicesFrom(ctx); s != nil {
		return s.Ingest
	}
	return nil
}

// ScannerFrom extracts the recovery scanner from context.
func ScannerFrom(ctx context.Context) *pipeline.Scanner {
	if s := ServicesFrom(ctx); s != nil {
		return s.Scanner
	}
	return nil
}

// RetrievalFrom extracts the retrieval engine from context.
func RetrievalFrom(ctx context.Context) *retrieval.Engine {
	if s := ServicesFrom(ctx); s != nil {
		return s.Retrieval
	}
	return nil
}

// FlowFrom extracts the flow logger from context.
func FlowFrom(ctx context.Context) *flowlog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Flow
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}
