package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/bindery/internal/api"
	"github.com/jackzampolin/bindery/version"
)

var (
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "bindery",
	Short: "Convert parsed book documents into cross-linked JSON package sources",
	Long: `Bindery turns a parsed book document (pages, text blocks, images,
tables and outline) into a deterministic package of JSON sources for an
external pack compiler.

The pipeline includes:
  - Outline-first structure resolution with a heading-size heuristic fallback
  - Deterministic content-addressed chapter and section ids
  - Table extraction with rasterized fallback and optional OCR/captioning
  - Cross-reference and link-annotation resolution
  - Cached parsed documents for fast repeat runs`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.bindery/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
