package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/folio-labs/folio/internal/api"
	"github.com/folio-labs/folio/internal/config"
	"github.com/folio-labs/folio/internal/home"
	"github.com/folio-labs/folio/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Asynchronous manuscript analysis pipeline",
	Long: `Folio ingests book manuscripts and processes them asynchronously
into structured, searchable writing context.

The pipeline includes:
  - Chapter splitting with content fingerprinting
  - LLM metadata extraction with schema validation
  - Two-tier embeddings (chapter vectors plus chunk vectors)
  - Semantic, hybrid, and hierarchical retrieval`,
	Version: version.GitRelease,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the folio home directory and a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if h.ConfigExists() {
			fmt.Printf("Config already exists at %s\n", h.ConfigPath())
			return nil
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", h.ConfigPath())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.folio/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "folio home directory (default: ~/.folio)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
