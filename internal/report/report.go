// Package report accumulates non-fatal conditions over one conversion run:
// degraded-mode warnings, scheduling downgrades, table fallbacks, OCR skips
// and unresolved links. A single bad table or broken cross-reference must
// never fail an otherwise-successful conversion, so everything here is
// informational.
package report

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Warning is one non-fatal condition with enough context to locate it.
type Warning struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Page    int    `json:"page,omitempty"` // 0-based, -1 when not page-scoped
}

// Downgrade records an automatic reduction of parallelism or disabling of a
// feature, with the reason and both values for observability.
type Downgrade struct {
	Reason   string `json:"reason"`
	Field    string `json:"field"`
	Original string `json:"original"`
	New      string `json:"new"`
}

// Run is the report for one conversion. Safe for concurrent use; parallel
// page tasks record warnings through it.
type Run struct {
	mu     sync.Mutex
	logger *slog.Logger

	ID        string      `json:"run_id"`
	StartedAt time.Time   `json:"started_at"`
	Warnings  []Warning   `json:"warnings,omitempty"`
	Downgrade []Downgrade `json:"downgrades,omitempty"`

	TableFallbacks  int `json:"table_fallbacks"`
	OCRPagesSkipped int `json:"ocr_pages_skipped"`
	UnresolvedLinks int `json:"unresolved_links"`
	ResolvedLinks   int `json:"resolved_links"`
}

// NewRun creates an empty run report.
func NewRun(logger *slog.Logger) *Run {
	if logger == nil {
		logger = slog.Default()
	}
	return &Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		logger:    logger,
	}
}

// Warn records a non-fatal condition. Pass page = -1 for conditions that are
// not tied to a page.
func (r *Run) Warn(stage, message string, page int) {
	r.mu.Lock()
	r.Warnings = append(r.Warnings, Warning{Stage: stage, Message: message, Page: page})
	r.mu.Unlock()
	r.logger.Warn(message, "stage", stage, "page", page)
}

// RecordDowngrade records a scheduling downgrade decision.
func (r *Run) RecordDowngrade(d Downgrade) {
	r.mu.Lock()
	r.Downgrade = append(r.Downgrade, d)
	r.mu.Unlock()
	r.logger.Info("feature downgraded",
		"reason", d.Reason, "field", d.Field, "original", d.Original, "new", d.New)
}

// CountTableFallback increments the structured-table fallback counter.
func (r *Run) CountTableFallback() {
	r.mu.Lock()
	r.TableFallbacks++
	r.mu.Unlock()
}

// CountOCRSkipped increments the skipped-OCR page counter.
func (r *Run) CountOCRSkipped() {
	r.mu.Lock()
	r.OCRPagesSkipped++
	r.mu.Unlock()
}

// CountLink tallies one link resolution attempt.
func (r *Run) CountLink(resolved bool) {
	r.mu.Lock()
	if resolved {
		r.ResolvedLinks++
	} else {
		r.UnresolvedLinks++
	}
	r.mu.Unlock()
}

// Summary returns a compact map suitable for logging at end of run.
func (r *Run) Summary() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]any{
		"run_id":            r.ID,
		"warnings":          len(r.Warnings),
		"downgrades":        len(r.Downgrade),
		"table_fallbacks":   r.TableFallbacks,
		"ocr_pages_skipped": r.OCRPagesSkipped,
		"links_resolved":    r.ResolvedLinks,
		"links_unresolved":  r.UnresolvedLinks,
	}
}
