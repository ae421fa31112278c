package parser

import "context"

// ParseOptions narrows what the backend extracts.
type ParseOptions struct {
	// Pages selects 0-based page indexes to parse; nil means all pages.
	Pages []int
}

// Backend is the external parsing engine. Implementations wrap whatever
// ML-backed converter is available; the pipeline only ever sees the typed
// Document tree.
type Backend interface {
	// Parse converts the source file into a Document. Implementations must
	// respect context cancellation; parsing large documents can take minutes.
	Parse(ctx context.Context, path string, opts ParseOptions) (*Document, error)

	// Capabilities reports what this backend supports. Called once at
	// startup; the result feeds the execution plan.
	Capabilities() Capabilities
}
