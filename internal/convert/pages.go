package convert

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParsePageRange parses a 1-based page selection like "1-5,9,12-14" into a
// sorted, de-duplicated slice of 0-based page indexes. An empty spec selects
// every page. Ranges outside the document are errors, not silently clamped.
func ParsePageRange(spec string, pageCount int) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		pages := make([]int, pageCount)
		for i := range pages {
			pages[i] = i
		}
		return pages, nil
	}

	selected := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, err := parseSpan(part)
		if err != nil {
			return nil, err
		}
		if lo < 1 || hi > pageCount {
			return nil, fmt.Errorf("page range %q outside document (1-%d)", part, pageCount)
		}
		for p := lo; p <= hi; p++ {
			selected[p-1] = true
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("page range %q selects no pages", spec)
	}

	pages := make([]int, 0, len(selected))
	for p := range selected {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages, nil
}

func parseSpan(part string) (int, int, error) {
	if lo, hi, found := strings.Cut(part, "-"); found {
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid page range %q", part)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid page range %q", part)
		}
		if end < start {
			return 0, 0, fmt.Errorf("descending page range %q", part)
		}
		return start, end, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid page number %q", part)
	}
	return page, page, nil
}
