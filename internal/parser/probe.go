package parser

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ProbeResult is a cheap pre-flight summary of a source PDF, gathered
// without running the full parsing engine.
type ProbeResult struct {
	Path      string `json:"path"`
	PageCount int    `json:"page_count"`
}

// Probe validates that the source file is a readable PDF and returns its
// page count. Used by doctor and to fail fast before an expensive parse.
func Probe(path string) (*ProbeResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pageCount, err := api.PageCount(f, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF %s: %w", path, err)
	}

	return &ProbeResult{Path: path, PageCount: pageCount}, nil
}
