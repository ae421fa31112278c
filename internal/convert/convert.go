// Package convert orchestrates one conversion run end to end: document
// acquisition (cache or fresh parse), structure resolution, id assignment,
// planned parallel extraction, link resolution and package mapping. Output
// is staged in a temporary directory and moved into place only on success,
// so a fatal error never leaves partial artifacts behind.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackzampolin/bindery/internal/cache"
	"github.com/jackzampolin/bindery/internal/content"
	"github.com/jackzampolin/bindery/internal/document"
	"github.com/jackzampolin/bindery/internal/ids"
	"github.com/jackzampolin/bindery/internal/links"
	"github.com/jackzampolin/bindery/internal/mapper"
	"github.com/jackzampolin/bindery/internal/parser"
	"github.com/jackzampolin/bindery/internal/report"
	"github.com/jackzampolin/bindery/internal/sched"
	"github.com/jackzampolin/bindery/internal/structure"
)

// Options configures one conversion run.
type Options struct {
	SourcePath string
	ModID      string
	OutDir     string

	Workers int
	Pages   string // 1-based selection, e.g. "1-5,9"; empty = all

	Tables                content.TableMode
	OCR                   content.OCRMode
	Captions              bool
	TableConfidence       float64
	TextCoverageThreshold float64

	DeterministicIDs bool
	TOC              bool

	CachePath     string
	WriteCache    bool
	CacheFallback bool

	Backend       parser.Backend
	OCREngine     content.OCREngine
	CaptionEngine content.CaptionEngine

	Logger *slog.Logger
}

// Result is the successful outcome of a run.
type Result struct {
	Book    *document.Book
	Entries []mapper.ContainerEntry
	Plan    sched.Plan
	Report  *report.Run
	OutDir  string
}

// Run executes the full pipeline. On any fatal error the staged output
// directory is discarded and the configured OutDir is left untouched.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ModID == "" {
		return nil, fmt.Errorf("mod id is required")
	}
	if opts.OutDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	rep := report.NewRun(logger)
	logger.Info("starting conversion",
		"run_id", rep.ID, "source", opts.SourcePath, "mod_id", opts.ModID)

	doc, err := loadDocument(ctx, opts, rep, logger)
	if err != nil {
		return nil, err
	}

	pages, err := ParsePageRange(opts.Pages, doc.PageCount())
	if err != nil {
		return nil, err
	}

	book, err := structure.Resolve(doc, rep)
	if err != nil {
		return nil, fmt.Errorf("structure resolution failed: %w", err)
	}
	alloc := &ids.Allocator{Deterministic: opts.DeterministicIDs}
	alloc.AssignBook(book, opts.ModID)
	index := structure.BuildPageIndex(book, doc.PageCount())

	var caps parser.Capabilities
	if opts.Backend != nil {
		caps = opts.Backend.Capabilities()
	} else {
		// Cached documents carry no live backend; extraction from the typed
		// tree is safe to parallelize.
		caps = parser.Capabilities{SupportsParallelExtraction: true}
	}
	plan := sched.PlanExecution(opts.Workers, caps, sched.Features{
		OCR:      opts.OCR != "" && opts.OCR != content.OCROff,
		Captions: opts.Captions,
	}, len(pages), rep)

	staging, err := os.MkdirTemp(filepath.Dir(opts.OutDir), ".bindery-stage-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	assets, err := content.NewAssetWriter(filepath.Join(staging, "assets"))
	if err != nil {
		return nil, err
	}

	ocrMode := opts.OCR
	if !plan.OCR {
		ocrMode = content.OCROff
	}
	pipeline := content.New(content.Config{
		Doc:    doc,
		Index:  index,
		Assets: assets,
		Options: content.Options{
			Tables:                opts.Tables,
			OCR:                   ocrMode,
			Captions:              plan.Captions,
			TableConfidence:       opts.TableConfidence,
			TextCoverageThreshold: opts.TextCoverageThreshold,
		},
		OCREngine:     opts.OCREngine,
		CaptionEngine: opts.CaptionEngine,
		Report:        rep,
		Logger:        logger,
	})

	results, err := sched.RunPages(ctx, plan.EffectiveWorkers, pages,
		func(ctx context.Context, page int) ([]document.ContentBlock, error) {
			return pipeline.ExtractPage(ctx, page)
		}, logger)
	if err != nil {
		return nil, fmt.Errorf("content extraction failed: %w", err)
	}

	pageBlocks := make([]content.PageBlocks, len(results))
	for i, res := range results {
		pageBlocks[i] = content.PageBlocks{Page: res.Page, Blocks: res.Value}
	}
	content.Assemble(book, index, pageBlocks)

	resolver := links.NewResolver(book, index, rep, logger)
	resolver.ResolveAnnotations(collectAnnotations(doc, pages))
	resolver.ResolveTextRefs()

	entries, err := mapper.Map(book, mapper.Options{
		ModID:     opts.ModID,
		TOC:       opts.TOC,
		Allocator: alloc,
	})
	if err != nil {
		return nil, fmt.Errorf("package mapping failed: %w", err)
	}
	if err := mapper.WriteSources(staging, entries); err != nil {
		return nil, err
	}

	if err := finalize(staging, opts.OutDir); err != nil {
		return nil, err
	}

	logger.Info("conversion complete", "out_dir", opts.OutDir, "summary", rep.Summary())
	return &Result{
		Book:    book,
		Entries: entries,
		Plan:    plan,
		Report:  rep,
		OutDir:  opts.OutDir,
	}, nil
}

// loadDocument returns the parsed document, from cache when configured. An
// invalid cache aborts the run unless fallback is enabled, in which case the
// source is re-parsed; a merely missing cache file always falls through to a
// fresh parse.
func loadDocument(ctx context.Context, opts Options, rep *report.Run, logger *slog.Logger) (*parser.Document, error) {
	if opts.CachePath != "" {
		doc, err := cache.Load(opts.CachePath)
		if err == nil {
			logger.Info("loaded parsed document from cache", "path", opts.CachePath)
			return doc, nil
		}

		var invalid *cache.InvalidError
		switch {
		case errors.As(err, &invalid):
			if !opts.CacheFallback {
				return nil, err
			}
			rep.Warn("cache", fmt.Sprintf("discarding invalid cache: %v", err), -1)
		case errors.Is(err, os.ErrNotExist):
			logger.Info("cache file not found, parsing source", "path", opts.CachePath)
		default:
			return nil, err
		}
	}

	if opts.Backend == nil {
		return nil, fmt.Errorf("no parser backend configured and no usable cache")
	}
	doc, err := opts.Backend.Parse(ctx, opts.SourcePath, parser.ParseOptions{})
	if err != nil {
		return nil, fmt.Errorf("parsing failed: %w", err)
	}

	if opts.WriteCache && opts.CachePath != "" {
		if err := cache.Save(doc, opts.CachePath); err != nil {
			// A failed cache write must not fail the conversion.
			rep.Warn("cache", fmt.Sprintf("failed to write cache: %v", err), -1)
		} else {
			logger.Info("wrote parsed document cache", "path", opts.CachePath)
		}
	}
	return doc, nil
}

// collectAnnotations gathers link annotations from the selected pages only.
func collectAnnotations(doc *parser.Document, pages []int) []parser.LinkAnnotation {
	selected := make(map[int]bool, len(pages))
	for _, p := range pages {
		selected[p] = true
	}
	var anns []parser.LinkAnnotation
	for i := range doc.Pages {
		page := &doc.Pages[i]
		if !selected[page.Index] {
			continue
		}
		anns = append(anns, page.Links...)
	}
	return anns
}

// finalize moves the staged output into place, replacing any previous run's
// output atomically enough that a crash never interleaves two runs.
func finalize(staging, outDir string) error {
	if err := os.MkdirAll(filepath.Dir(outDir), 0o755); err != nil {
		return fmt.Errorf("failed to create output parent: %w", err)
	}
	if _, err := os.Stat(outDir); err == nil {
		old := outDir + ".old"
		if err := os.RemoveAll(old); err != nil {
			return fmt.Errorf("failed to clear previous output: %w", err)
		}
		if err := os.Rename(outDir, old); err != nil {
			return fmt.Errorf("failed to move previous output aside: %w", err)
		}
		defer os.RemoveAll(old)
	}
	if err := os.Rename(staging, outDir); err != nil {
		return fmt.Errorf("failed to finalize output: %w", err)
	}
	return nil
}
