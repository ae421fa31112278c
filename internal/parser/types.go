// Package parser defines the boundary to the external document-parsing
// engine: the typed in-memory tree it produces, the capabilities it reports,
// and a lightweight pdfcpu-backed probe used for validation before the
// expensive parse runs.
package parser

// Rect is a bounding box in page coordinates, origin top-left.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns the rectangle's area.
func (r Rect) Area() float64 {
	return r.W * r.H
}

// Contains reports whether the point (x, y) falls inside the rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// TextRun is a contiguous run of text with uniform styling. Heading
// classification operates on slices of these.
type TextRun struct {
	Text       string  `json:"text"`
	FontSize   float64 `json:"font_size"`
	FontWeight int     `json:"font_weight"` // 400 regular, 700 bold
	BBox       Rect    `json:"bbox"`
}

// ImageRef is an embedded image extracted at source resolution. Data holds
// the original encoded bytes; the pipeline writes them verbatim and never
// recompresses.
type ImageRef struct {
	Name      string `json:"name"`
	Format    string `json:"format"` // "png", "jpg", ...
	PageIndex int    `json:"page_index"`
	BBox      Rect   `json:"bbox"`
	Data      []byte `json:"data"`
}

// TableRegion is a detected table. Cells are present when the backend
// managed a structured extraction; Confidence reports how trustworthy that
// structure is. A rasterized snapshot of the region is always available.
type TableRegion struct {
	PageIndex  int        `json:"page_index"`
	BBox       Rect       `json:"bbox"`
	Cells      [][]string `json:"cells,omitempty"`
	Confidence float64    `json:"confidence"`
	Raster     []byte     `json:"raster,omitempty"` // PNG snapshot of the region
}

// LinkAnnotation is a link annotation attached to a page region.
// TargetPage < 0 means the link points outside the document and TargetURL
// carries the destination.
type LinkAnnotation struct {
	PageIndex  int     `json:"page_index"`
	BBox       Rect    `json:"bbox"`
	Text       string  `json:"text"`
	TargetPage int     `json:"target_page"`
	TargetX    float64 `json:"target_x"`
	TargetY    float64 `json:"target_y"`
	TargetURL  string  `json:"target_url,omitempty"`
}

// OutlineEntry is one bookmark from the document outline. PageIndex is
// 0-based; Level 1 entries become chapters.
type OutlineEntry struct {
	Level     int    `json:"level"`
	Title     string `json:"title"`
	PageIndex int    `json:"page_index"`
}

// Column groups the block indexes that belong to one visual column,
// left-to-right. Pages without column data are treated as single-column.
type Column struct {
	BBox   Rect  `json:"bbox"`
	Blocks []int `json:"blocks"` // indexes into Page.Runs
}

// Page is one parsed page: geometry, text runs in visual order, embedded
// images, detected tables and link annotations.
type Page struct {
	Index   int              `json:"index"` // 0-based
	Width   float64          `json:"width"`
	Height  float64          `json:"height"`
	Runs    []TextRun        `json:"runs"`
	Columns []Column         `json:"columns,omitempty"`
	Images  []ImageRef       `json:"images,omitempty"`
	Tables  []TableRegion    `json:"tables,omitempty"`
	Links   []LinkAnnotation `json:"links,omitempty"`
	Raster  []byte           `json:"raster,omitempty"` // page snapshot for OCR
}

// Document is the parser's full output for one source file. It is the unit
// the cache store serializes.
type Document struct {
	Title         string         `json:"title"`
	SourcePath    string         `json:"source_path"`
	ParserVersion string         `json:"parser_version"`
	Pages         []Page         `json:"pages"`
	Outline       []OutlineEntry `json:"outline,omitempty"`
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// HasOutline reports whether the document carries a usable bookmark tree.
func (d *Document) HasOutline() bool {
	return len(d.Outline) > 0
}

// Capabilities describes what the parser backend supports. It is populated
// once at startup and passed into scheduling decisions; nothing probes the
// backend dynamically after that.
type Capabilities struct {
	SupportsParallelExtraction bool `json:"supports_parallel_extraction"`
	SupportsStructuredTables   bool `json:"supports_structured_tables"`
	SupportsOCR                bool `json:"supports_ocr"`
	SupportsCaptions           bool `json:"supports_captions"`
}
