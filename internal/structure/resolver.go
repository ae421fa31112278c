// Package structure builds the Book/Chapter/Section tree from parsed
// document output. The outline (bookmark tree) is authoritative when
// present; otherwise a font-size heading heuristic takes over, which is
// reported upward as a degraded-mode warning rather than an error.
package structure

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackzampolin/bindery/internal/document"
	"github.com/jackzampolin/bindery/internal/parser"
	"github.com/jackzampolin/bindery/internal/report"
)

// ErrNoPages is the only fatal structure error: a document that yields zero
// pages cannot be converted.
var ErrNoPages = errors.New("document has no pages")

// Outline levels at or below chapterLevel open a chapter; deeper levels open
// a section within the current chapter.
const (
	chapterLevel     = 1
	maxHeadingLevels = 3
)

// Resolve builds the book tree from a parsed document. It is read-only over
// the document and runs single-threaded before any parallel work starts.
func Resolve(doc *parser.Document, rep *report.Run) (*document.Book, error) {
	if doc.PageCount() == 0 {
		return nil, fmt.Errorf("resolving %s: %w", doc.SourcePath, ErrNoPages)
	}

	boundaries := doc.Outline
	if len(boundaries) == 0 {
		boundaries = DetectHeadings(doc.Pages, maxHeadingLevels)
		rep.Warn("structure", "no bookmarks found; falling back to heading heuristic", -1)
	}

	return &document.Book{
		Title:      doc.Title,
		SourcePath: doc.SourcePath,
		Chapters:   buildChapters(boundaries, doc.PageCount()),
	}, nil
}

// builder accumulates chapters from an ordered boundary stream and closes
// page ranges as each new boundary arrives.
type builder struct {
	chapters     []*document.Chapter
	chapterSlugs *slugSet

	cur          *document.Chapter
	curStart     int
	sectionSlugs *slugSet
	sectionIndex int
}

// buildChapters converts an ordered boundary list into chapters and
// sections with page ranges. Content before the first boundary lands in an
// implicit leading chapter/section pair titled "Front Matter".
func buildChapters(boundaries []parser.OutlineEntry, pageCount int) []*document.Chapter {
	b := &builder{chapterSlugs: newSlugSet()}

	if len(boundaries) == 0 || boundaries[0].PageIndex > 0 || boundaries[0].Level > chapterLevel {
		b.openChapter("Front Matter", 0)
	}

	for _, entry := range boundaries {
		title := strings.TrimSpace(entry.Title)
		if title == "" || entry.PageIndex < 0 || entry.PageIndex >= pageCount {
			continue
		}
		if entry.Level <= chapterLevel {
			b.openChapter(title, entry.PageIndex)
		} else {
			b.openSection(title, entry.Level, entry.PageIndex)
		}
	}

	b.closeChapter(pageCount)
	return b.chapters
}

func (b *builder) openChapter(title string, page int) {
	b.closeChapter(page)

	b.cur = &document.Chapter{
		Title: title,
		PathKey: fmt.Sprintf("ch/%02d-%s",
			len(b.chapters)+1, b.chapterSlugs.unique(slugify(title))),
	}
	b.curStart = page
	b.sectionSlugs = newSlugSet()
	b.sectionIndex = 0
	b.chapters = append(b.chapters, b.cur)
}

func (b *builder) openSection(title string, level, page int) {
	if b.cur == nil {
		b.openChapter("Front Matter", 0)
	}
	b.closeSection(page)

	b.sectionIndex++
	sec := &document.Section{
		Title: title,
		Level: level,
		PathKey: fmt.Sprintf("%s/sec/%02d-%s",
			b.cur.PathKey, b.sectionIndex, b.sectionSlugs.unique(slugify(title))),
		PageStart: page,
		PageEnd:   -1,
	}
	b.cur.Sections = append(b.cur.Sections, sec)
}

// closeSection finalizes the open section's page range against the next
// boundary's start page. Siblings starting on the same page share it.
func (b *builder) closeSection(nextStart int) {
	if b.cur == nil || len(b.cur.Sections) == 0 {
		return
	}
	last := b.cur.Sections[len(b.cur.Sections)-1]
	if last.PageEnd == -1 {
		last.PageEnd = max(last.PageStart, nextStart-1)
	}
}

// closeChapter finalizes the current chapter: its last section's range, a
// synthesized section when no sub-heading was found, and the first
// section's start so chapter-level prose ahead of the first sub-heading is
// not dropped.
func (b *builder) closeChapter(nextStart int) {
	if b.cur == nil {
		return
	}
	end := max(b.curStart, nextStart-1)

	if len(b.cur.Sections) == 0 {
		b.cur.Sections = append(b.cur.Sections, &document.Section{
			Title:     b.cur.Title,
			Level:     chapterLevel + 1,
			PathKey:   fmt.Sprintf("%s/sec/01-%s", b.cur.PathKey, slugify(b.cur.Title)),
			PageStart: b.curStart,
			PageEnd:   end,
		})
	} else {
		b.closeSection(end + 1)
		if first := b.cur.Sections[0]; first.PageStart > b.curStart {
			first.PageStart = b.curStart
		}
	}
	b.cur = nil
}

// slugify lowercases, strips non-alphanumerics and collapses runs of
// dashes, matching the path-key scheme fed into deterministic ids.
func slugify(text string) string {
	lowered := strings.ToLower(text)
	replaced := nonAlnum.ReplaceAllString(lowered, "-")
	collapsed := strings.Trim(dashRuns.ReplaceAllString(replaced, "-"), "-")
	if collapsed == "" {
		return "item"
	}
	return collapsed
}

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	dashRuns = regexp.MustCompile(`-+`)
)

// slugSet hands out unique slugs within one parent by suffixing ordinals.
type slugSet struct {
	seen map[string]int
}

func newSlugSet() *slugSet {
	return &slugSet{seen: make(map[string]int)}
}

func (s *slugSet) unique(base string) string {
	count := s.seen[base]
	s.seen[base] = count + 1
	if count == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, count+1)
}
