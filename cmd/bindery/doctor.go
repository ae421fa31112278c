package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bindery/internal/api"
	"github.com/jackzampolin/bindery/internal/cache"
	"github.com/jackzampolin/bindery/internal/config"
	"github.com/jackzampolin/bindery/internal/parser"
)

var doctorFlags struct {
	source     string
	parsedJSON string
}

// doctorCheck is one feature-availability probe result.
type doctorCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // ok, unavailable, error
	Detail string `json:"detail,omitempty"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report feature and input availability",
	Long: `Doctor checks what this environment can do: whether the configured
vision endpoint is usable for OCR and picture descriptions, whether the
source PDF is readable, and whether a parsed-document cache is valid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := mgr.Get()

		var checks []doctorCheck

		key := config.ResolveEnvVars(cfg.Vision.APIKey)
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key != "" {
			checks = append(checks, doctorCheck{
				Name: "vision engine", Status: "ok",
				Detail: "model " + cfg.Vision.Model,
			})
		} else {
			checks = append(checks, doctorCheck{
				Name: "vision engine", Status: "unavailable",
				Detail: "no API key configured; OCR and picture descriptions disabled",
			})
		}

		if doctorFlags.source != "" {
			if probe, err := parser.Probe(doctorFlags.source); err != nil {
				checks = append(checks, doctorCheck{Name: "source PDF", Status: "error", Detail: err.Error()})
			} else {
				checks = append(checks, doctorCheck{
					Name: "source PDF", Status: "ok",
					Detail: probe.Path + " has " + strconv.Itoa(probe.PageCount) + " pages",
				})
			}
		}

		cachePath := doctorFlags.parsedJSON
		if cachePath == "" {
			cachePath = cfg.Cache.Path
		}
		if cachePath != "" {
			if doc, err := cache.Load(cachePath); err != nil {
				checks = append(checks, doctorCheck{Name: "parsed cache", Status: "error", Detail: err.Error()})
			} else {
				detail := strconv.Itoa(doc.PageCount()) + " pages"
				if doc.HasOutline() {
					detail += ", outline present"
				} else {
					detail += ", no outline (heading heuristic will be used)"
				}
				checks = append(checks, doctorCheck{Name: "parsed cache", Status: "ok", Detail: detail})
			}
		}

		return api.Output(checks)
	},
}


func init() {
	doctorCmd.Flags().StringVar(&doctorFlags.source, "source", "", "source PDF to probe")
	doctorCmd.Flags().StringVar(&doctorFlags.parsedJSON, "parsed-json", "", "parsed-document cache to validate")
}
