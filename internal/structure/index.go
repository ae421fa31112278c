package structure

import "github.com/jackzampolin/bindery/internal/document"

// PageIndex maps each page to its owning section. It is built once after
// structure resolution and read concurrently by link resolution; pages
// shared by two sections belong to the one that starts earlier in document
// order.
type PageIndex struct {
	owners []*document.Section
}

// BuildPageIndex walks the book in document order and records the owning
// section for every page.
func BuildPageIndex(book *document.Book, pageCount int) *PageIndex {
	owners := make([]*document.Section, pageCount)
	book.EachSection(func(_ *document.Chapter, sec *document.Section) {
		end := sec.PageEnd
		if end < 0 || end >= pageCount {
			end = pageCount - 1
		}
		for p := sec.PageStart; p <= end; p++ {
			if p >= 0 && p < pageCount && owners[p] == nil {
				owners[p] = sec
			}
		}
	})
	return &PageIndex{owners: owners}
}

// SectionFor returns the section owning the given page, or nil when the
// page is outside the document or unowned.
func (ix *PageIndex) SectionFor(page int) *document.Section {
	if page < 0 || page >= len(ix.owners) {
		return nil
	}
	return ix.owners[page]
}

// PageCount returns the number of indexed pages.
func (ix *PageIndex) PageCount() int {
	return len(ix.owners)
}
