// Package document defines the logical book tree shared across the pipeline.
// This package has no dependencies on other bindery packages to avoid import cycles.
package document

// Book is the root of the resolved structure. It is created once per run and
// is immutable after structure resolution completes; later stages only fill
// in section blocks and link references.
type Book struct {
	Title      string     `json:"title"`
	SourcePath string     `json:"source_path"`
	Chapters   []*Chapter `json:"chapters"`
}

// Chapter maps to exactly one container entry in the output package.
type Chapter struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	PathKey  string     `json:"path_key"` // e.g. "ch/01-introduction"
	Sections []*Section `json:"sections"`
}

// Section maps to exactly one content unit in the output package.
// PageStart/PageEnd are 0-based page indexes; PageEnd == -1 means
// "through the end of the document".
type Section struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Level     int            `json:"level"`
	PathKey   string         `json:"path_key"` // extends the chapter key, e.g. "ch/01-introduction/sec/02-overview"
	PageStart int            `json:"page_start"`
	PageEnd   int            `json:"page_end"`
	Blocks    []ContentBlock `json:"blocks,omitempty"`
}

// BlockKind tags the variants of ContentBlock.
type BlockKind string

const (
	BlockText        BlockKind = "text"
	BlockImage       BlockKind = "image"
	BlockTable       BlockKind = "table"
	BlockTableRaster BlockKind = "table_raster"
	BlockLinkSpan    BlockKind = "link_span"
)

// ContentBlock is a tagged variant over text, image, table (structured or
// rasterized) and link-span content. Order is the block's position within
// its section and drives stable re-assembly after parallel extraction.
type ContentBlock struct {
	Kind  BlockKind `json:"kind"`
	Order int       `json:"order"`
	Page  int       `json:"page"` // 0-based source page index

	// Text and link-span blocks: Markdown source, rendered to HTML at
	// packaging time.
	Markdown string `json:"markdown,omitempty"`

	// Image and rasterized-table blocks.
	AssetPath string `json:"asset_path,omitempty"`
	Caption   string `json:"caption,omitempty"`
	OCRText   string `json:"ocr_text,omitempty"`

	// Structured table blocks.
	Table *Table `json:"table,omitempty"`

	// Link-span blocks.
	Link *LinkReference `json:"link,omitempty"`
}

// Table is a structured table: semantic rows and cells rather than pixels.
type Table struct {
	Rows       [][]string `json:"rows"`
	Confidence float64    `json:"confidence"`
}

// LinkReference is either a resolved reference to a chapter/section id or an
// unresolved span left verbatim. It holds id lookups only, never pointers
// into the book tree.
type LinkReference struct {
	Resolved bool   `json:"resolved"`
	TargetID string `json:"target_id,omitempty"`
	External bool   `json:"external,omitempty"`
	URL      string `json:"url,omitempty"`
	Text     string `json:"text"`
}

// EachSection calls fn for every section in document order.
func (b *Book) EachSection(fn func(ch *Chapter, sec *Section)) {
	for _, ch := range b.Chapters {
		for _, sec := range ch.Sections {
			fn(ch, sec)
		}
	}
}

// SectionCount returns the total number of sections across all chapters.
func (b *Book) SectionCount() int {
	n := 0
	for _, ch := range b.Chapters {
		n += len(ch.Sections)
	}
	return n
}
