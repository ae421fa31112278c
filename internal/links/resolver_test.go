package links

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/jackzampolin/bindery/internal/document"
	"github.com/jackzampolin/bindery/internal/ids"
	"github.com/jackzampolin/bindery/internal/parser"
	"github.com/jackzampolin/bindery/internal/report"
	"github.com/jackzampolin/bindery/internal/structure"
)

func testReport() *report.Run {
	return report.NewRun(slog.New(slog.DiscardHandler))
}

// threeChapterBook builds a resolved book with ids assigned:
// ch1 (pages 0-1, sections A/B), ch2 (pages 2-3), ch3 (pages 4-5).
func threeChapterBook(t *testing.T) (*document.Book, *structure.PageIndex) {
	t.Helper()
	doc := &parser.Document{
		Title: "Linked",
		Pages: make([]parser.Page, 6),
		Outline: []parser.OutlineEntry{
			{Level: 1, Title: "One", PageIndex: 0},
			{Level: 2, Title: "Alpha", PageIndex: 0},
			{Level: 2, Title: "Beta", PageIndex: 1},
			{Level: 1, Title: "Two", PageIndex: 2},
			{Level: 1, Title: "Three", PageIndex: 4},
		},
	}
	book, err := structure.Resolve(doc, testReport())
	if err != nil {
		t.Fatal(err)
	}
	ids.NewAllocator().AssignBook(book, "test-mod")
	return book, structure.BuildPageIndex(book, doc.PageCount())
}

func TestAnnotationResolvesToOwningSection(t *testing.T) {
	book, index := threeChapterBook(t)
	rep := testReport()
	r := NewResolver(book, index, rep, slog.New(slog.DiscardHandler))

	r.ResolveAnnotations([]parser.LinkAnnotation{
		{PageIndex: 0, Text: "see beta", TargetPage: 1},
	})

	source := book.Chapters[0].Sections[0]
	if len(source.Blocks) != 1 {
		t.Fatalf("source blocks = %d, want 1", len(source.Blocks))
	}
	link := source.Blocks[0].Link
	if link == nil || !link.Resolved {
		t.Fatalf("link not resolved: %+v", source.Blocks[0])
	}
	wantTarget := book.Chapters[0].Sections[1]
	if link.TargetID != wantTarget.ID {
		t.Errorf("TargetID = %q, want %q (section %q)", link.TargetID, wantTarget.ID, wantTarget.Title)
	}
	if rep.ResolvedLinks != 1 {
		t.Errorf("ResolvedLinks = %d, want 1", rep.ResolvedLinks)
	}
}

func TestAnnotationTargetOutsideDocumentStaysUnresolved(t *testing.T) {
	book, index := threeChapterBook(t)
	rep := testReport()
	r := NewResolver(book, index, rep, slog.New(slog.DiscardHandler))

	r.ResolveAnnotations([]parser.LinkAnnotation{
		{PageIndex: 2, Text: "dangling", TargetPage: 99},
	})

	source := book.Chapters[1].Sections[0]
	if len(source.Blocks) != 1 {
		t.Fatalf("source blocks = %d, want 1", len(source.Blocks))
	}
	link := source.Blocks[0].Link
	if link.Resolved || link.TargetID != "" {
		t.Errorf("dangling link resolved: %+v", link)
	}
	if link.Text != "dangling" {
		t.Errorf("unresolved text = %q, want verbatim", link.Text)
	}
	if rep.UnresolvedLinks != 1 {
		t.Errorf("UnresolvedLinks = %d, want 1", rep.UnresolvedLinks)
	}
}

func TestExternalLinkPassesThrough(t *testing.T) {
	book, index := threeChapterBook(t)
	r := NewResolver(book, index, testReport(), slog.New(slog.DiscardHandler))

	r.ResolveAnnotations([]parser.LinkAnnotation{
		{PageIndex: 4, Text: "project site", TargetPage: -1, TargetURL: "https://example.com"},
	})

	link := book.Chapters[2].Sections[0].Blocks[0].Link
	if !link.Resolved || !link.External || link.URL != "https://example.com" {
		t.Errorf("external link = %+v", link)
	}
}

func textBlock(md string) document.ContentBlock {
	return document.ContentBlock{Kind: document.BlockText, Markdown: md}
}

func TestTextRefResolvesKnownChapter(t *testing.T) {
	book, index := threeChapterBook(t)
	sec := book.Chapters[0].Sections[0]
	sec.Blocks = []document.ContentBlock{textBlock("Rules for this are in Chapter 2 of this book.")}

	r := NewResolver(book, index, testReport(), slog.New(slog.DiscardHandler))
	r.ResolveTextRefs()

	got := sec.Blocks[0].Markdown
	want := "[Chapter 2](#" + book.Chapters[1].ID + ")"
	if !strings.Contains(got, want) {
		t.Errorf("markdown = %q, want substring %q", got, want)
	}
}

// A textual reference to chapter 9 in a three-chapter book must remain
// plain text, never guessed.
func TestTextRefOutOfRangeStaysPlain(t *testing.T) {
	book, index := threeChapterBook(t)
	sec := book.Chapters[0].Sections[0]
	original := "Advanced topics are covered in Chapter 9."
	sec.Blocks = []document.ContentBlock{textBlock(original)}

	rep := testReport()
	r := NewResolver(book, index, rep, slog.New(slog.DiscardHandler))
	r.ResolveTextRefs()

	if sec.Blocks[0].Markdown != original {
		t.Errorf("markdown changed: %q", sec.Blocks[0].Markdown)
	}
	if rep.UnresolvedLinks != 1 {
		t.Errorf("UnresolvedLinks = %d, want 1", rep.UnresolvedLinks)
	}
}

func TestTextRefSectionDotted(t *testing.T) {
	book, index := threeChapterBook(t)
	sec := book.Chapters[2].Sections[0]
	sec.Blocks = []document.ContentBlock{textBlock("See Section 1.2 for details.")}

	r := NewResolver(book, index, testReport(), slog.New(slog.DiscardHandler))
	r.ResolveTextRefs()

	want := "#" + book.Chapters[0].Sections[1].ID
	if !strings.Contains(sec.Blocks[0].Markdown, want) {
		t.Errorf("markdown = %q, want reference to %q", sec.Blocks[0].Markdown, want)
	}
}

// A bare section number is ambiguous in a multi-chapter book.
func TestTextRefBareSectionAmbiguous(t *testing.T) {
	book, index := threeChapterBook(t)
	sec := book.Chapters[0].Sections[0]
	original := "See Section 1 for details."
	sec.Blocks = []document.ContentBlock{textBlock(original)}

	r := NewResolver(book, index, testReport(), slog.New(slog.DiscardHandler))
	r.ResolveTextRefs()

	if sec.Blocks[0].Markdown != original {
		t.Errorf("ambiguous reference was rewritten: %q", sec.Blocks[0].Markdown)
	}
}

func TestTitleRefUniqueOnly(t *testing.T) {
	book, index := threeChapterBook(t)
	r := NewResolver(book, index, testReport(), slog.New(slog.DiscardHandler))

	if id, ok := r.ResolveTitleRef("Alpha"); !ok || id != book.Chapters[0].Sections[0].ID {
		t.Errorf("ResolveTitleRef(Alpha) = %q, %v", id, ok)
	}
	if _, ok := r.ResolveTitleRef("Nonexistent"); ok {
		t.Error("unknown title resolved")
	}
}

func TestOCRTextNotRewritten(t *testing.T) {
	book, index := threeChapterBook(t)
	sec := book.Chapters[0].Sections[0]
	sec.Blocks = []document.ContentBlock{{
		Kind:     document.BlockText,
		Markdown: "Chapter 2 appears here",
		OCRText:  "Chapter 2 appears here",
	}}

	r := NewResolver(book, index, testReport(), slog.New(slog.DiscardHandler))
	r.ResolveTextRefs()

	if strings.Contains(sec.Blocks[0].Markdown, "](#") {
		t.Errorf("OCR-derived text was rewritten: %q", sec.Blocks[0].Markdown)
	}
}
