package structure

import (
	"sort"
	"strings"

	"github.com/jackzampolin/bindery/internal/parser"
)

// Heading heuristic knobs. Candidates longer than maxHeadingRuneLen or
// ending in sentence punctuation are body text, not headings.
const (
	maxHeadingRuneLen = 120
	boldWeight        = 700
)

// DetectHeadings scans text runs across the whole document and promotes
// qualifying runs to chapter/section boundaries. The document-wide modal
// font size is taken as body text; the top maxLevels distinct sizes above
// it become heading levels 1..maxLevels. Bold runs at body size qualify as
// the deepest level. Runs are visited in reading order, so multi-column
// pages are flattened before classification.
func DetectHeadings(pages []parser.Page, maxLevels int) []parser.OutlineEntry {
	type runRef struct {
		page int
		run  parser.TextRun
	}

	var refs []runRef
	for _, page := range pages {
		for _, run := range ReadingOrder(page) {
			if strings.TrimSpace(run.Text) == "" {
				continue
			}
			refs = append(refs, runRef{page: page.Index, run: run})
		}
	}
	if len(refs) == 0 {
		return nil
	}

	// Body size is the font size carrying the most text.
	weightBySize := map[float64]int{}
	for _, ref := range refs {
		weightBySize[ref.run.FontSize] += len(ref.run.Text)
	}
	bodySize := 0.0
	bodyWeight := -1
	for size, w := range weightBySize {
		if w > bodyWeight || (w == bodyWeight && size < bodySize) {
			bodySize, bodyWeight = size, w
		}
	}

	var headingSizes []float64
	for size := range weightBySize {
		if size > bodySize {
			headingSizes = append(headingSizes, size)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(headingSizes)))
	if len(headingSizes) > maxLevels {
		headingSizes = headingSizes[:maxLevels]
	}
	levelBySize := map[float64]int{}
	for i, size := range headingSizes {
		levelBySize[size] = i + 1
	}

	var results []parser.OutlineEntry
	for _, ref := range refs {
		level, ok := levelBySize[ref.run.FontSize]
		if !ok {
			// Bold short runs at body size read as the deepest heading level.
			if ref.run.FontSize == bodySize && ref.run.FontWeight >= boldWeight && len(headingSizes) > 0 {
				level = min(len(headingSizes)+1, maxLevels)
			} else {
				continue
			}
		}
		title := normalizeHeading(ref.run.Text)
		if title == "" || !looksLikeHeading(title) {
			continue
		}
		results = append(results, parser.OutlineEntry{
			Level:     level,
			Title:     title,
			PageIndex: ref.page,
		})
	}
	return results
}

// ReadingOrder flattens a page's runs into single reading order:
// top-to-bottom within a column, columns left-to-right. Pages without
// column data pass through in the parser's visual order.
func ReadingOrder(page parser.Page) []parser.TextRun {
	if len(page.Columns) == 0 {
		return page.Runs
	}

	cols := make([]parser.Column, len(page.Columns))
	copy(cols, page.Columns)
	sort.SliceStable(cols, func(i, j int) bool {
		return cols[i].BBox.X < cols[j].BBox.X
	})

	out := make([]parser.TextRun, 0, len(page.Runs))
	for _, col := range cols {
		idx := make([]int, 0, len(col.Blocks))
		for _, i := range col.Blocks {
			if i >= 0 && i < len(page.Runs) {
				idx = append(idx, i)
			}
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return page.Runs[idx[a]].BBox.Y < page.Runs[idx[b]].BBox.Y
		})
		for _, i := range idx {
			out = append(out, page.Runs[i])
		}
	}
	return out
}

func normalizeHeading(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// looksLikeHeading filters out long prose and full sentences that happen to
// share a heading font size.
func looksLikeHeading(title string) bool {
	if len([]rune(title)) > maxHeadingRuneLen {
		return false
	}
	return !strings.HasSuffix(title, ".")
}
