// Package links maps intra-document references onto the deterministic ids
// assigned to chapters and sections. Geometric link annotations resolve
// through the page index; textual cross-references resolve only when the
// match is unambiguous. Nothing here is fatal: whatever cannot be resolved
// stays as plain text and is tallied on the run report.
package links

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackzampolin/bindery/internal/document"
	"github.com/jackzampolin/bindery/internal/parser"
	"github.com/jackzampolin/bindery/internal/report"
	"github.com/jackzampolin/bindery/internal/structure"
)

// Resolver resolves link annotations and textual cross-references against
// one resolved book. Runs single-threaded after all extraction joins;
// it needs the complete section index.
type Resolver struct {
	book   *document.Book
	index  *structure.PageIndex
	rep    *report.Run
	logger *slog.Logger

	chapterByNumber map[int]*document.Chapter
	titleOwners     map[string][]string // lowercased title -> ids
}

// NewResolver builds lookup tables over the book.
func NewResolver(book *document.Book, index *structure.PageIndex, rep *report.Run, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		book:            book,
		index:           index,
		rep:             rep,
		logger:          logger.With("stage", "links"),
		chapterByNumber: make(map[int]*document.Chapter),
		titleOwners:     make(map[string][]string),
	}
	for i, ch := range book.Chapters {
		r.chapterByNumber[i+1] = ch
		r.titleOwners[strings.ToLower(ch.Title)] = append(r.titleOwners[strings.ToLower(ch.Title)], ch.ID)
		for _, sec := range ch.Sections {
			r.titleOwners[strings.ToLower(sec.Title)] = append(r.titleOwners[strings.ToLower(sec.Title)], sec.ID)
		}
	}
	return r
}

// ResolveAnnotations maps each annotation's target page to its owning
// section and appends a link-span block to the annotation's source section.
// External links pass through unchanged; unresolved targets stay verbatim.
func (r *Resolver) ResolveAnnotations(annotations []parser.LinkAnnotation) {
	for _, ann := range annotations {
		source := r.index.SectionFor(ann.PageIndex)
		if source == nil {
			r.rep.CountLink(false)
			r.logger.Warn("link annotation outside any section", "page", ann.PageIndex)
			continue
		}

		text := strings.TrimSpace(ann.Text)
		ref := document.LinkReference{Text: text}
		switch {
		case ann.TargetURL != "":
			ref.Resolved = true
			ref.External = true
			ref.URL = ann.TargetURL
			if text == "" {
				ref.Text = ann.TargetURL
			}
		default:
			if target := r.index.SectionFor(ann.TargetPage); target != nil {
				ref.Resolved = true
				ref.TargetID = target.ID
				if text == "" {
					ref.Text = target.Title
				}
			} else {
				if text == "" {
					ref.Text = fmt.Sprintf("page %d", ann.TargetPage+1)
				}
				r.logger.Warn("link annotation target outside document",
					"page", ann.PageIndex, "target_page", ann.TargetPage)
			}
		}
		r.rep.CountLink(ref.Resolved)

		link := ref
		source.Blocks = append(source.Blocks, document.ContentBlock{
			Kind:     document.BlockLinkSpan,
			Order:    len(source.Blocks),
			Page:     ann.PageIndex,
			Markdown: ref.Text,
			Link:     &link,
		})
	}
}

var crossRefPattern = regexp.MustCompile(`(?i)\b(chapter|section)\s+(\d+)(?:\.(\d+))?\b`)

// ResolveTextRefs rewrites unambiguous textual cross-references inside text
// blocks into markdown links targeting the referenced chapter/section id.
// Ambiguous and out-of-range references are left untouched, never guessed.
func (r *Resolver) ResolveTextRefs() {
	r.book.EachSection(func(_ *document.Chapter, sec *document.Section) {
		for i := range sec.Blocks {
			block := &sec.Blocks[i]
			if block.Kind != document.BlockText || block.OCRText != "" {
				continue
			}
			block.Markdown = crossRefPattern.ReplaceAllStringFunc(block.Markdown, func(match string) string {
				if id, ok := r.lookupRef(match); ok {
					r.rep.CountLink(true)
					return fmt.Sprintf("[%s](#%s)", match, id)
				}
				r.rep.CountLink(false)
				return match
			})
		}
	})
}

// lookupRef resolves one matched phrase to a chapter/section id.
func (r *Resolver) lookupRef(match string) (string, bool) {
	parts := crossRefPattern.FindStringSubmatch(match)
	if parts == nil {
		return "", false
	}
	kind := strings.ToLower(parts[1])
	major, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", false
	}

	switch {
	case kind == "chapter" && parts[3] == "":
		if ch, ok := r.chapterByNumber[major]; ok {
			return ch.ID, true
		}
	case kind == "section" && parts[3] != "":
		// "Section 3.2" is section 2 of chapter 3.
		minor, err := strconv.Atoi(parts[3])
		if err != nil {
			return "", false
		}
		ch, ok := r.chapterByNumber[major]
		if !ok {
			return "", false
		}
		if minor >= 1 && minor <= len(ch.Sections) {
			return ch.Sections[minor-1].ID, true
		}
	case kind == "section" && parts[3] == "":
		// A bare section number is only unambiguous in a one-chapter book.
		if len(r.book.Chapters) != 1 {
			return "", false
		}
		ch := r.book.Chapters[0]
		if major >= 1 && major <= len(ch.Sections) {
			return ch.Sections[major-1].ID, true
		}
	}
	return "", false
}

// ResolveTitleRef resolves a quoted title to its id when exactly one
// chapter or section carries that title.
func (r *Resolver) ResolveTitleRef(title string) (string, bool) {
	owners := r.titleOwners[strings.ToLower(strings.TrimSpace(title))]
	if len(owners) == 1 {
		return owners[0], true
	}
	return "", false
}
