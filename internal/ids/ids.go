// Package ids generates deterministic, content-addressed identifiers for
// chapters, sections and blocks so that cross-references remain stable
// across runs.
package ids

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/jackzampolin/bindery/internal/document"
)

// IDLength is the length in hex characters of every allocated id.
const IDLength = 16

// Allocator produces identifiers from stable path segments. The zero value
// allocates deterministic hash-derived ids; set Deterministic to false to
// fall back to slug-joined paths (useful when a downstream system assigns
// its own ids).
type Allocator struct {
	Deterministic bool
}

// NewAllocator returns an allocator in deterministic mode.
func NewAllocator() *Allocator {
	return &Allocator{Deterministic: true}
}

// Allocate derives an id from the given path segments (package id first,
// then chapter/section/block keys). Identical segments always yield the
// identical id; it is a pure function with no error conditions.
func (a *Allocator) Allocate(pathKey ...string) string {
	if !a.Deterministic {
		return slugJoin(pathKey)
	}
	h := blake3.New()
	for i, seg := range pathKey {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		h.Write([]byte(seg))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:IDLength]
}

// AssignBook allocates ids for every chapter and section in the book.
// modID is the package id and becomes the first path segment of every id.
func (a *Allocator) AssignBook(b *document.Book, modID string) {
	for _, ch := range b.Chapters {
		ch.ID = a.Allocate(modID, ch.PathKey)
		for _, sec := range ch.Sections {
			sec.ID = a.Allocate(modID, ch.PathKey, sec.PathKey)
		}
	}
}

func slugJoin(segments []string) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = strings.ReplaceAll(seg, "/", "-")
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "-")
}
