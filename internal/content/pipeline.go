package content

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackzampolin/bindery/internal/document"
	"github.com/jackzampolin/bindery/internal/parser"
	"github.com/jackzampolin/bindery/internal/report"
	"github.com/jackzampolin/bindery/internal/structure"
)

// ExtractionError is fatal for the run when raised inside a worker task.
// Sub-failures (a table falling back to an image, a skipped OCR page) are
// recorded as warnings instead and never surface here.
type ExtractionError struct {
	Page int
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("content extraction failed on page %d: %v", e.Page, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Pipeline extracts content blocks for sections of one document. A pipeline
// is built per run; its OCR/caption caches are explicit, run-scoped objects
// rather than process-wide singletons.
type Pipeline struct {
	doc    *parser.Document
	pages  map[int]*parser.Page
	index  *structure.PageIndex
	assets *AssetWriter
	opts   Options

	ocr     OCREngine
	caption CaptionEngine

	ocrCache     *ResultCache
	captionCache *ResultCache

	rep    *report.Run
	logger *slog.Logger
}

// Config assembles a Pipeline. Doc, Index, Assets and Report are required;
// engines are optional and their absence simply disables the feature.
type Config struct {
	Doc     *parser.Document
	Index   *structure.PageIndex
	Assets  *AssetWriter
	Options Options

	OCREngine     OCREngine
	CaptionEngine CaptionEngine
	OCRCache      *ResultCache
	CaptionCache  *ResultCache

	Report *report.Run
	Logger *slog.Logger
}

// New creates a pipeline for one run.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pages := make(map[int]*parser.Page, len(cfg.Doc.Pages))
	for i := range cfg.Doc.Pages {
		pages[cfg.Doc.Pages[i].Index] = &cfg.Doc.Pages[i]
	}
	ocrCache := cfg.OCRCache
	if ocrCache == nil {
		ocrCache = NewResultCache(DefaultCacheCapacity)
	}
	captionCache := cfg.CaptionCache
	if captionCache == nil {
		captionCache = NewResultCache(DefaultCacheCapacity)
	}
	return &Pipeline{
		doc:          cfg.Doc,
		pages:        pages,
		index:        cfg.Index,
		assets:       cfg.Assets,
		opts:         cfg.Options.withDefaults(),
		ocr:          cfg.OCREngine,
		caption:      cfg.CaptionEngine,
		ocrCache:     ocrCache,
		captionCache: captionCache,
		rep:          cfg.Report,
		logger:       logger.With("stage", "content"),
	}
}

// ExtractPage produces the content blocks for one page in deterministic
// order: text runs in reading order, OCR text, images, then tables. Block
// order is renumbered per section during assembly.
func (p *Pipeline) ExtractPage(ctx context.Context, pageIndex int) ([]document.ContentBlock, error) {
	page, ok := p.pages[pageIndex]
	if !ok {
		return nil, &ExtractionError{Page: pageIndex, Err: fmt.Errorf("page not present in parsed document")}
	}

	sectionKey := ""
	if sec := p.index.SectionFor(pageIndex); sec != nil {
		sectionKey = sec.PathKey
	}

	var blocks []document.ContentBlock
	add := func(b document.ContentBlock) {
		b.Page = pageIndex
		b.Order = len(blocks)
		blocks = append(blocks, b)
	}

	for _, run := range structure.ReadingOrder(*page) {
		text := strings.Join(strings.Fields(run.Text), " ")
		if text == "" {
			continue
		}
		add(document.ContentBlock{Kind: document.BlockText, Markdown: text})
	}

	if text := p.runOCR(ctx, page); text != "" {
		add(document.ContentBlock{Kind: document.BlockText, Markdown: text, OCRText: text})
	}

	for i, img := range page.Images {
		ext := img.Format
		if ext == "" {
			ext = "png"
		}
		name := AssetName(sectionKey, pageIndex, "img", i+1, ext)
		path, err := p.assets.Write(name, img.Data)
		if err != nil {
			// One broken image must not cancel sibling pages.
			p.rep.Warn("content", fmt.Sprintf("failed to write image asset: %v", err), pageIndex)
			continue
		}
		add(document.ContentBlock{
			Kind:      document.BlockImage,
			AssetPath: path,
			Caption:   p.runCaption(ctx, img.Data, pageIndex),
		})
	}

	for i, tbl := range page.Tables {
		block, fellBack := p.extractTable(tbl, sectionKey, pageIndex, i+1)
		if fellBack {
			p.rep.CountTableFallback()
			p.rep.Warn("content", "structured table extraction fell back to rasterized image", pageIndex)
		}
		add(block)
	}

	return blocks, nil
}

// extractTable applies the table mode policy. The bool result reports a
// fallback from structured to rasterized output.
func (p *Pipeline) extractTable(tbl parser.TableRegion, sectionKey string, pageIndex, seq int) (document.ContentBlock, bool) {
	structured := len(tbl.Cells) > 0
	confident := structured && tbl.Confidence >= p.opts.TableConfidence

	switch p.opts.Tables {
	case TableImageOnly:
		return p.rasterTable(tbl, sectionKey, pageIndex, seq), false
	case TableStructured:
		if structured {
			return structuredTable(tbl), false
		}
		return p.rasterTable(tbl, sectionKey, pageIndex, seq), true
	default: // TableAuto
		if confident {
			return structuredTable(tbl), false
		}
		return p.rasterTable(tbl, sectionKey, pageIndex, seq), true
	}
}

func structuredTable(tbl parser.TableRegion) document.ContentBlock {
	return document.ContentBlock{
		Kind:  document.BlockTable,
		Table: &document.Table{Rows: tbl.Cells, Confidence: tbl.Confidence},
	}
}

func (p *Pipeline) rasterTable(tbl parser.TableRegion, sectionKey string, pageIndex, seq int) document.ContentBlock {
	data := tbl.Raster
	if len(data) == 0 {
		data = placeholderPNG
	}
	name := AssetName(sectionKey, pageIndex, "table", seq, "png")
	path, err := p.assets.Write(name, data)
	if err != nil {
		p.rep.Warn("content", fmt.Sprintf("failed to write table raster: %v", err), pageIndex)
		return document.ContentBlock{Kind: document.BlockTableRaster}
	}
	return document.ContentBlock{Kind: document.BlockTableRaster, AssetPath: path}
}

// runOCR returns recognized page text, or "" when OCR is off, not needed,
// unavailable or failed. Failures degrade to "no text" for the page.
func (p *Pipeline) runOCR(ctx context.Context, page *parser.Page) string {
	switch p.opts.OCR {
	case OCROff:
		return ""
	case OCRAuto:
		if TextCoverage(*page) >= p.opts.TextCoverageThreshold {
			return ""
		}
	}

	if p.ocr == nil {
		p.rep.CountOCRSkipped()
		p.rep.Warn("content", "OCR requested but no engine configured", page.Index)
		return ""
	}
	if len(page.Raster) == 0 {
		p.rep.CountOCRSkipped()
		p.rep.Warn("content", "OCR requested but page has no raster snapshot", page.Index)
		return ""
	}

	key := Fingerprint(page.Raster)
	if text, ok := p.ocrCache.Get(key); ok {
		return text
	}
	text, err := callWithTimeout(ctx, func(ctx context.Context) (string, error) {
		return p.ocr.Recognize(ctx, page.Raster)
	})
	if err != nil {
		p.rep.CountOCRSkipped()
		p.rep.Warn("content", fmt.Sprintf("OCR failed: %v", err), page.Index)
		return ""
	}
	p.ocrCache.Put(key, text)
	return text
}

// runCaption returns a caption for the image, or "" when captioning is
// disabled or the engine failed.
func (p *Pipeline) runCaption(ctx context.Context, image []byte, pageIndex int) string {
	if !p.opts.Captions || p.caption == nil || len(image) == 0 {
		return ""
	}
	key := Fingerprint(image)
	if caption, ok := p.captionCache.Get(key); ok {
		return caption
	}
	caption, err := callWithTimeout(ctx, func(ctx context.Context) (string, error) {
		return p.caption.Caption(ctx, image)
	})
	if err != nil {
		p.rep.Warn("content", fmt.Sprintf("captioning failed: %v", err), pageIndex)
		return ""
	}
	p.captionCache.Put(key, caption)
	return caption
}

// ExtractSection extracts all blocks for one section serially. Pages shared
// with a neighboring section are processed by their owning section only, so
// serial and parallel extraction produce identical books.
func (p *Pipeline) ExtractSection(ctx context.Context, sec *document.Section) ([]document.ContentBlock, error) {
	var out []document.ContentBlock
	for pageIndex := sec.PageStart; pageIndex <= sec.PageEnd; pageIndex++ {
		if p.index.SectionFor(pageIndex) != sec {
			continue
		}
		blocks, err := p.ExtractPage(ctx, pageIndex)
		if err != nil {
			return nil, err
		}
		out = append(out, blocks...)
	}
	for i := range out {
		out[i].Order = i
	}
	return out, nil
}

// PageBlocks pairs one page's extracted blocks with its index for assembly.
type PageBlocks struct {
	Page   int
	Blocks []document.ContentBlock
}

// Assemble distributes per-page blocks to their owning sections in strict
// page order and renumbers block order within each section. Completion
// order of the parallel page tasks never affects the result.
func Assemble(book *document.Book, index *structure.PageIndex, pages []PageBlocks) {
	sort.Slice(pages, func(i, j int) bool { return pages[i].Page < pages[j].Page })

	bySection := make(map[*document.Section][]document.ContentBlock)
	for _, pb := range pages {
		sec := index.SectionFor(pb.Page)
		if sec == nil {
			continue
		}
		bySection[sec] = append(bySection[sec], pb.Blocks...)
	}

	book.EachSection(func(_ *document.Chapter, sec *document.Section) {
		blocks := bySection[sec]
		for i := range blocks {
			blocks[i].Order = i
		}
		sec.Blocks = blocks
	})
}

// TextCoverage returns the fraction of the page area covered by extractable
// text. Pages without geometry report full coverage when any text exists so
// auto-OCR leaves them alone.
func TextCoverage(page parser.Page) float64 {
	pageArea := page.Width * page.Height
	if pageArea <= 0 {
		for _, run := range page.Runs {
			if strings.TrimSpace(run.Text) != "" {
				return 1
			}
		}
		return 0
	}
	covered := 0.0
	for _, run := range page.Runs {
		if strings.TrimSpace(run.Text) == "" {
			continue
		}
		covered += run.BBox.Area()
	}
	if covered > pageArea {
		return 1
	}
	return covered / pageArea
}
