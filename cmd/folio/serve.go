package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/folio-labs/folio/internal/config"
	"github.com/folio-labs/folio/internal/home"
	"github.com/folio-labs/folio/internal/server"
)

var serveSkipRecovery bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the folio server",
	Long: `Start the folio HTTP server.

This runs the job queue, the startup recovery scan, and the HTTP API.
Jobs already queued in storage are picked up again on start.

Examples:
  folio serve                       # Start on the configured port (default 8080)
  folio serve --skip-recovery       # Skip the startup recovery scan
  FOLIO_SERVER_PORT=3000 folio serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// Prefer the home config when no explicit --config was given
		// and nothing is found in the search path.
		configFile := cfgFile
		if configFile == "" && h.ConfigExists() {
			configFile = h.ConfigPath()
		}

		mgr, err := config.NewManager(configFile)
		if err != nil {
			return err
		}
		mgr.WatchConfig()

		appCfg := mgr.Get()
		if appCfg.Storage.DataDir == "" {
			appCfg.Storage.DataDir = h.DataPath()
		}
		logger := newLogger(appCfg.Logs.Level)
		slog.SetDefault(logger)

		srv, err := server.New(server.Config{
			ConfigManager: mgr,
			Logger:        logger,
			SkipRecovery:  serveSkipRecovery,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func init() {
	serveCmd.Flags().BoolVar(&serveSkipRecovery, "skip-recovery", false, "Skip the startup recovery scan")

	rootCmd.AddCommand(serveCmd)
}
