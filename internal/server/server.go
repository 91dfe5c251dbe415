// Package server wires the folio services together and runs the HTTP
// surface: storage, LLM and embedding providers, the job queue, the
// recovery scanner, and every API endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/folio-labs/folio/internal/api"
	"github.com/folio-labs/folio/internal/config"
	"github.com/folio-labs/folio/internal/embeddings"
	"github.com/folio-labs/folio/internal/extract"
	"github.com/folio-labs/folio/internal/flowlog"
	"github.com/folio-labs/folio/internal/ingest"
	"github.com/folio-labs/folio/internal/jobs"
	"github.com/folio-labs/folio/internal/pipeline"
	"github.com/folio-labs/folio/internal/providers"
	"github.com/folio-labs/folio/internal/retrieval"
	"github.com/folio-labs/folio/internal/server/endpoints"
	"github.com/folio-labs/folio/internal/storage"
	"github.com/folio-labs/folio/internal/svcctx"
)

// Server is the main folio HTTP server. It owns the storage layer and
// the job queue: both are started on Start and shut down with it.
type Server struct {
	httpServer *http.Server
	store      *storage.Store
	queue      *jobs.Queue
	scanner    *pipeline.Scanner
	configMgr  *config.Manager
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// ConfigManager provides configuration with hot-reload support.
	ConfigManager *config.Manager
	// Logger is the structured logger to use.
	Logger *slog.Logger
	// SkipRecovery disables the startup recovery scan.
	SkipRecovery bool
}

// New creates a Server and wires every service from configuration.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	appCfg := cfg.ConfigManager.Get()

	store, err := storage.NewStore(appCfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	provider, err := embeddings.New(appCfg.ToEmbeddingsConfig())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	embedder := embeddings.NewCachedProvider(provider, store.EmbeddingCache(), cfg.Logger)

	llm := providers.NewOpenRouterClient(appCfg.ToOpenRouterConfig())
	extractor := extract.NewService(llm, appCfg.LLM.Model, cfg.Logger)

	flow := flowlog.New(store.FlowLogs(), cfg.Logger)
	queue := jobs.NewQueue(appCfg.ToQueueConfig(), cfg.Logger)
	processor := pipeline.NewProcessor(store, extractor, embedder, flow, cfg.Logger)
	processor.Register(queue)
	scanner := pipeline.NewScanner(store, queue, flow, cfg.Logger)

	s := &Server{
		store:     store,
		queue:     queue,
		scanner:   scanner,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}
	if cfg.SkipRecovery {
		s.scanner = nil
	}

	s.services = &svcctx.Services{
		Store:     store,
		Queue:     queue,
		Ingest:    ingest.NewService(store, queue, flow, cfg.Logger),
		Processor: processor,
		Scanner:   scanner,
		Retrieval: retrieval.NewEngine(store, embedder, cfg.Logger),
		Flow:      flow,
		ConfigMgr: cfg.ConfigManager,
		Logger:    cfg.Logger,
	}

	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(appCfg.Server.Host, strconv.Itoa(appCfg.Server.Port)),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start runs the job queue, the recovery scan, and the HTTP server. It
// blocks until the context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	queueCtx, stopQueue := context.WithCancel(context.Background())
	queueDone := make(chan struct{})
	go func() {
		s.queue.Run(queueCtx)
		close(queueDone)
	}()

	if s.scanner != nil {
		report, err := s.scanner.Scan(ctx)
		if err != nil {
			s.logger.Error("startup recovery scan failed", "error", err)
		} else if report.BooksQueued+report.ChaptersQueued > 0 {
			s.logger.Info("startup recovery queued work",
				"books", report.BooksQueued, "chapters", report.ChaptersQueued)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			stopQueue()
			<-queueDone
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	stopQueue()
	<-queueDone
	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and storage.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("storage close error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Store returns the storage layer.
func (s *Server) Store() *storage.Store {
	return s.store
}

// Queue returns the job queue.
func (s *Server) Queue() *jobs.Queue {
	return s.queue
}

// Services returns the composed service set.
func (s *Server) Services() *svcctx.Services {
	return s.services
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if storage or the queue aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil || s.queue == nil {
			http.Error(w, `{"error":"server is still initializing"}`, http.StatusServiceUnavailable)
			return
		}
		next(w, r)
	}
}
