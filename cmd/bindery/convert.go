package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bindery/internal/api"
	"github.com/jackzampolin/bindery/internal/config"
	"github.com/jackzampolin/bindery/internal/content"
	"github.com/jackzampolin/bindery/internal/convert"
)

var convertFlags struct {
	modID               string
	outDir              string
	workers             int
	pages               string
	tables              string
	ocr                 string
	pictureDescriptions bool
	tableConfidence     float64
	coverageThreshold   float64
	noDeterministicIDs  bool
	toc                 bool
	parsedJSON          string
	writeParsedJSON     bool
	noCacheFallback     bool
	verbose             bool
}

var convertCmd = &cobra.Command{
	Use:   "convert <source.pdf>",
	Short: "Convert a book document into a package of JSON sources",
	Long: `Convert runs the full pipeline against one source document and writes
the package sources, assets and run report under the output directory.

Parsing is performed by an external engine; provide its output with
--parsed-json. With --write-parsed-json the parsed document is cached for
fast repeat runs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		level := slog.LevelInfo
		if convertFlags.verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		opts := convert.Options{
			SourcePath:            args[0],
			ModID:                 cfg.ModID,
			OutDir:                cfg.OutDir,
			Workers:               cfg.Workers,
			Pages:                 cfg.Pages,
			Tables:                content.TableMode(cfg.Tables),
			OCR:                   content.OCRMode(cfg.OCR),
			Captions:              cfg.PictureDescriptions,
			TableConfidence:       cfg.TableConfidence,
			TextCoverageThreshold: cfg.TextCoverageThreshold,
			DeterministicIDs:      cfg.DeterministicIDs,
			TOC:                   cfg.TOC,
			CachePath:             cfg.Cache.Path,
			WriteCache:            cfg.Cache.Write,
			CacheFallback:         cfg.Cache.Fallback,
			Logger:                logger,
		}

		if needsVision(cfg) {
			key := config.ResolveEnvVars(cfg.Vision.APIKey)
			if key == "" {
				key = os.Getenv("OPENAI_API_KEY")
			}
			if key == "" {
				return fmt.Errorf("ocr/picture descriptions requested but no vision API key configured")
			}
			engine := content.NewVisionEngine(content.VisionEngineConfig{
				APIKey:     key,
				BaseURL:    cfg.Vision.BaseURL,
				Model:      cfg.Vision.Model,
				MaxRetries: cfg.Vision.MaxRetries,
			})
			opts.OCREngine = engine
			opts.CaptionEngine = engine
		}

		res, err := convert.Run(cmd.Context(), opts)
		if err != nil {
			return err
		}
		return api.Output(map[string]any{
			"out_dir": res.OutDir,
			"plan":    res.Plan,
			"summary": res.Report.Summary(),
		})
	},
}

func needsVision(cfg *config.Config) bool {
	return cfg.OCR != string(content.OCROff) || cfg.PictureDescriptions
}

// resolveConfig loads the config file/environment and overlays any flags the
// user set explicitly.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg := mgr.Get()

	flags := cmd.Flags()
	if flags.Changed("mod-id") {
		cfg.ModID = convertFlags.modID
	}
	if flags.Changed("out-dir") {
		cfg.OutDir = convertFlags.outDir
	}
	if flags.Changed("workers") {
		cfg.Workers = convertFlags.workers
	}
	if flags.Changed("pages") {
		cfg.Pages = convertFlags.pages
	}
	if flags.Changed("tables") {
		cfg.Tables = convertFlags.tables
	}
	if flags.Changed("ocr") {
		cfg.OCR = convertFlags.ocr
	}
	if flags.Changed("picture-descriptions") {
		cfg.PictureDescriptions = convertFlags.pictureDescriptions
	}
	if flags.Changed("table-confidence") {
		cfg.TableConfidence = convertFlags.tableConfidence
	}
	if flags.Changed("text-coverage-threshold") {
		cfg.TextCoverageThreshold = convertFlags.coverageThreshold
	}
	if flags.Changed("no-deterministic-ids") {
		cfg.DeterministicIDs = !convertFlags.noDeterministicIDs
	}
	if flags.Changed("toc") {
		cfg.TOC = convertFlags.toc
	}
	if flags.Changed("parsed-json") {
		cfg.Cache.Path = convertFlags.parsedJSON
	}
	if flags.Changed("write-parsed-json") {
		cfg.Cache.Write = convertFlags.writeParsedJSON
	}
	if flags.Changed("no-cache-fallback") {
		cfg.Cache.Fallback = !convertFlags.noCacheFallback
	}
	return cfg, nil
}

func init() {
	f := convertCmd.Flags()
	f.StringVar(&convertFlags.modID, "mod-id", "", "package id; becomes the first segment of every generated id")
	f.StringVar(&convertFlags.outDir, "out-dir", "dist", "output directory for the generated package")
	f.IntVar(&convertFlags.workers, "workers", 1, "requested extraction workers")
	f.StringVar(&convertFlags.pages, "pages", "", "1-based page selection, e.g. 1-5,9")
	f.StringVar(&convertFlags.tables, "tables", "auto", "table mode: structured, auto or image-only")
	f.StringVar(&convertFlags.ocr, "ocr", "off", "OCR mode: auto, on or off")
	f.BoolVar(&convertFlags.pictureDescriptions, "picture-descriptions", false, "caption images with the vision model")
	f.Float64Var(&convertFlags.tableConfidence, "table-confidence", content.DefaultTableConfidence, "minimum confidence before auto table mode falls back to an image")
	f.Float64Var(&convertFlags.coverageThreshold, "text-coverage-threshold", content.DefaultTextCoverageThreshold, "text coverage below which auto OCR runs on a page")
	f.BoolVar(&convertFlags.noDeterministicIDs, "no-deterministic-ids", false, "use slug-based ids instead of content hashes")
	f.BoolVar(&convertFlags.toc, "toc", false, "generate a table of contents entry")
	f.StringVar(&convertFlags.parsedJSON, "parsed-json", "", "path to a cached parsed document")
	f.BoolVar(&convertFlags.writeParsedJSON, "write-parsed-json", false, "write the parsed document cache after parsing")
	f.BoolVar(&convertFlags.noCacheFallback, "no-cache-fallback", false, "abort instead of re-parsing when the cache is invalid")
	f.BoolVarP(&convertFlags.verbose, "verbose", "v", false, "debug logging")
}
