package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/folio-labs/folio/internal/config"
	"github.com/folio-labs/folio/internal/embeddings"
	"github.com/folio-labs/folio/internal/extract"
	"github.com/folio-labs/folio/internal/flowlog"
	"github.com/folio-labs/folio/internal/home"
	"github.com/folio-labs/folio/internal/jobs"
	"github.com/folio-labs/folio/internal/pipeline"
	"github.com/folio-labs/folio/internal/providers"
	"github.com/folio-labs/folio/internal/storage"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Scan storage for missing derived data and reprocess it",
	Long: `Run a one-shot recovery pass without the HTTP server.

This opens the local store, queues every book missing extracted context
and every chapter missing a summary or embedding, runs the jobs to
completion, and exits. The store must not be in use by a running server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		configFile := cfgFile
		if configFile == "" && h.ConfigExists() {
			configFile = h.ConfigPath()
		}
		mgr, err := config.NewManager(configFile)
		if err != nil {
			return err
		}
		appCfg := mgr.Get()
		if appCfg.Storage.DataDir == "" {
			appCfg.Storage.DataDir = h.DataPath()
		}
		logger := newLogger(appCfg.Logs.Level)
		slog.SetDefault(logger)

		store, err := storage.NewStore(appCfg.Storage.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		provider, err := embeddings.New(appCfg.ToEmbeddingsConfig())
		if err != nil {
			return err
		}
		embedder := embeddings.NewCachedProvider(provider, store.EmbeddingCache(), logger)
		llm := providers.NewOpenRouterClient(appCfg.ToOpenRouterConfig())
		extractor := extract.NewService(llm, appCfg.LLM.Model, logger)
		flow := flowlog.New(store.FlowLogs(), logger)

		queue := jobs.NewQueue(appCfg.ToQueueConfig(), logger)
		processor := pipeline.NewProcessor(store, extractor, embedder, flow, logger)
		processor.Register(queue)

		scanner := pipeline.NewScanner(store, queue, flow, logger)
		report, err := scanner.Scan(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Queued %d books and %d chapters (%d skipped, %d failures)\n",
			report.BooksQueued, report.ChaptersQueued, report.BooksSkipped, report.Failures)
		if report.BooksQueued+report.ChaptersQueued == 0 {
			return nil
		}

		queueCtx, stopQueue := context.WithCancel(ctx)
		defer stopQueue()
		done := make(chan struct{})
		go func() {
			queue.Run(queueCtx)
			close(done)
		}()

		// Wait until every queued job reaches a terminal state.
		for {
			stats := queue.Stats()
			if stats[jobs.StatusPending]+stats[jobs.StatusProcessing] == 0 {
				break
			}
			select {
			case <-ctx.Done():
				stopQueue()
				<-done
				return ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
		}
		stopQueue()
		<-done

		stats := queue.Stats()
		fmt.Printf("Done: %d completed, %d failed\n",
			stats[jobs.StatusCompleted], stats[jobs.StatusFailed])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recoverCmd)
}
