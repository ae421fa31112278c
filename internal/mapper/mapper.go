// Package mapper assembles the final package: one container entry per
// chapter, one content unit per section, plus an optional generated
// table-of-contents entry. Section markdown is rendered to HTML here, and
// every id referenced by a link must correspond to an id assigned to some
// chapter or section in the output.
package mapper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"

	"github.com/jackzampolin/bindery/internal/document"
	"github.com/jackzampolin/bindery/internal/ids"
)

// ContentUnit is one section in the output package.
type ContentUnit struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Level   int    `json:"level"`
	Sort    int    `json:"sort"`
	Content string `json:"content"` // HTML
}

// ContainerEntry is one chapter in the output package.
type ContainerEntry struct {
	ID    string        `json:"_id"`
	Name  string        `json:"name"`
	Units []ContentUnit `json:"units"`
}

// Options configures the mapping.
type Options struct {
	ModID     string
	TOC       bool
	Allocator *ids.Allocator
}

// Sort numbers step in large gaps so later inserts stay possible.
const sortStep = 1000

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Map converts a resolved, extracted book into container entries and
// verifies referential integrity of every internal link.
func Map(book *document.Book, opts Options) ([]ContainerEntry, error) {
	if opts.Allocator == nil {
		opts.Allocator = ids.NewAllocator()
	}

	var entries []ContainerEntry
	if opts.TOC {
		entries = append(entries, tocEntry(book, opts))
	}

	for i, ch := range book.Chapters {
		name := strings.TrimSpace(ch.Title)
		if name == "" {
			name = fmt.Sprintf("Untitled Chapter %d", i+1)
		}
		entry := ContainerEntry{ID: ch.ID, Name: name}

		seenNames := map[string]int{}
		for j, sec := range ch.Sections {
			rawName := strings.TrimSpace(sec.Title)
			if rawName == "" {
				rawName = fmt.Sprintf("Untitled Section %d", j+1)
			}
			count := seenNames[rawName]
			seenNames[rawName] = count + 1
			if count > 0 {
				rawName = fmt.Sprintf("%s (%d)", rawName, count+1)
			}

			html, err := renderSection(sec)
			if err != nil {
				return nil, fmt.Errorf("failed to render section %s: %w", sec.PathKey, err)
			}
			entry.Units = append(entry.Units, ContentUnit{
				ID:      sec.ID,
				Name:    rawName,
				Level:   clampLevel(sec.Level - 1),
				Sort:    sortStep * (j + 1),
				Content: html,
			})
		}
		entries = append(entries, entry)
	}

	if err := verifyIntegrity(book, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// tocEntry builds the generated table of contents: a flat list of resolved
// links to every chapter and section in document order.
func tocEntry(book *document.Book, opts Options) ContainerEntry {
	var md strings.Builder
	for _, ch := range book.Chapters {
		fmt.Fprintf(&md, "- [%s](#%s)\n", ch.Title, ch.ID)
		for _, sec := range ch.Sections {
			fmt.Fprintf(&md, "  - [%s](#%s)\n", sec.Title, sec.ID)
		}
	}
	html, _ := renderMarkdown(md.String())

	tocID := opts.Allocator.Allocate(opts.ModID, "toc")
	return ContainerEntry{
		ID:   tocID,
		Name: "Table of Contents",
		Units: []ContentUnit{{
			ID:      opts.Allocator.Allocate(opts.ModID, "toc", "index"),
			Name:    "Contents",
			Level:   1,
			Sort:    sortStep,
			Content: html,
		}},
	}
}

// renderSection turns a section's ordered blocks into one HTML document.
func renderSection(sec *document.Section) (string, error) {
	var md strings.Builder
	for _, block := range sec.Blocks {
		switch block.Kind {
		case document.BlockText:
			md.WriteString(block.Markdown)
			md.WriteString("\n\n")
		case document.BlockImage, document.BlockTableRaster:
			if block.AssetPath == "" {
				continue
			}
			fmt.Fprintf(&md, "![%s](%s)\n\n", block.Caption, block.AssetPath)
		case document.BlockTable:
			md.WriteString(tableMarkdown(block.Table))
			md.WriteString("\n")
		case document.BlockLinkSpan:
			if block.Link == nil {
				continue
			}
			md.WriteString(linkMarkdown(block.Link))
			md.WriteString("\n\n")
		}
	}
	return renderMarkdown(md.String())
}

func linkMarkdown(link *document.LinkReference) string {
	switch {
	case link.Resolved && link.External:
		return fmt.Sprintf("[%s](%s)", link.Text, link.URL)
	case link.Resolved:
		return fmt.Sprintf("[%s](#%s)", link.Text, link.TargetID)
	default:
		// Unresolved references stay verbatim.
		return link.Text
	}
}

// tableMarkdown renders a structured table as a GFM table.
func tableMarkdown(table *document.Table) string {
	if table == nil || len(table.Rows) == 0 {
		return ""
	}
	var md strings.Builder
	for i, row := range table.Rows {
		md.WriteString("| ")
		md.WriteString(strings.Join(row, " | "))
		md.WriteString(" |\n")
		if i == 0 {
			md.WriteString("|")
			md.WriteString(strings.Repeat(" --- |", len(row)))
			md.WriteString("\n")
		}
	}
	return md.String()
}

func renderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 3 {
		return 3
	}
	return level
}

// verifyIntegrity checks that every internal link target used by the TOC or
// in-body cross-references is an id actually assigned in the output.
func verifyIntegrity(book *document.Book, entries []ContainerEntry) error {
	known := make(map[string]bool)
	for _, ch := range book.Chapters {
		known[ch.ID] = true
		for _, sec := range ch.Sections {
			known[sec.ID] = true
		}
	}

	for _, entry := range entries {
		for _, unit := range entry.Units {
			targets, err := internalTargets(unit.Content)
			if err != nil {
				return fmt.Errorf("failed to parse content of unit %s: %w", unit.ID, err)
			}
			for _, target := range targets {
				if !known[target] {
					return fmt.Errorf("content unit %s references unknown id %s", unit.ID, target)
				}
			}
		}
	}
	return nil
}

// internalTargets walks the rendered HTML and collects the fragment targets
// of every internal anchor.
func internalTargets(content string) ([]string, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}
	var targets []string
	for node := range root.Descendants() {
		if node.Type != html.ElementNode || node.Data != "a" {
			continue
		}
		for _, attr := range node.Attr {
			if attr.Key == "href" && strings.HasPrefix(attr.Val, "#") {
				targets = append(targets, strings.TrimPrefix(attr.Val, "#"))
			}
		}
	}
	return targets, nil
}
