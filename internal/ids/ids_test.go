package ids

import (
	"testing"

	"github.com/jackzampolin/bindery/internal/document"
)

func TestAllocateDeterministic(t *testing.T) {
	a := NewAllocator()

	first := a.Allocate("my-mod", "ch/01-intro")
	second := a.Allocate("my-mod", "ch/01-intro")

	if first != second {
		t.Errorf("same path produced different ids: %q vs %q", first, second)
	}
	if len(first) != IDLength {
		t.Errorf("id length = %d, want %d", len(first), IDLength)
	}
	for _, c := range first {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			t.Errorf("id %q contains non-hex character %q", first, c)
		}
	}
}

func TestAllocateDistinctPaths(t *testing.T) {
	a := NewAllocator()

	seen := map[string]string{}
	paths := [][]string{
		{"my-mod", "ch/01-intro"},
		{"my-mod", "ch/02-intro"},
		{"my-mod", "ch/01-intro", "sec/01-overview"},
		{"my-mod", "ch/01-intro", "sec/02-overview"},
		{"other-mod", "ch/01-intro"},
	}
	for _, p := range paths {
		id := a.Allocate(p...)
		if prev, ok := seen[id]; ok {
			t.Errorf("collision: %v and %s both yield %s", p, prev, id)
		}
		seen[id] = p[len(p)-1]
	}
}

func TestAllocateSegmentBoundaries(t *testing.T) {
	a := NewAllocator()

	// "ab"+"c" must not collide with "a"+"bc".
	if a.Allocate("ab", "c") == a.Allocate("a", "bc") {
		t.Error("segment boundaries are not part of the hash input")
	}
}

func TestAllocateNonDeterministicFallback(t *testing.T) {
	a := &Allocator{Deterministic: false}

	got := a.Allocate("my-mod", "ch/01-intro")
	want := "my-mod-ch-01-intro"
	if got != want {
		t.Errorf("slug id = %q, want %q", got, want)
	}
}

func TestAssignBook(t *testing.T) {
	book := &document.Book{
		Chapters: []*document.Chapter{
			{
				PathKey: "ch/01-basics",
				Sections: []*document.Section{
					{PathKey: "ch/01-basics/sec/01-setup"},
					{PathKey: "ch/01-basics/sec/02-usage"},
				},
			},
			{PathKey: "ch/02-advanced"},
		},
	}

	a := NewAllocator()
	a.AssignBook(book, "my-mod")

	ids := map[string]bool{}
	for _, ch := range book.Chapters {
		if ch.ID == "" {
			t.Fatalf("chapter %s has no id", ch.PathKey)
		}
		ids[ch.ID] = true
		for _, sec := range ch.Sections {
			if sec.ID == "" {
				t.Fatalf("section %s has no id", sec.PathKey)
			}
			ids[sec.ID] = true
		}
	}
	if len(ids) != 4 {
		t.Errorf("expected 4 unique ids, got %d", len(ids))
	}

	// Re-assigning must reproduce the same ids.
	before := book.Chapters[0].Sections[1].ID
	a.AssignBook(book, "my-mod")
	if book.Chapters[0].Sections[1].ID != before {
		t.Error("re-assignment changed a section id")
	}
}
