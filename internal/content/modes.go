// Package content extracts ordered text, image and table blocks for each
// section, applying the configured table and OCR modes with rasterized
// fallbacks. Per-page extraction is the only stage the scheduler
// parallelizes; everything here must produce identical output for
// identical inputs and mode settings.
package content

import "fmt"

// TableMode selects how tables are extracted.
type TableMode string

const (
	// TableStructured always attempts structured extraction, rasterizing
	// only when no structure is available at all.
	TableStructured TableMode = "structured"
	// TableAuto tries structured extraction and falls back to a rasterized
	// image on low confidence.
	TableAuto TableMode = "auto"
	// TableImageOnly rasterizes every table.
	TableImageOnly TableMode = "image-only"
)

// ParseTableMode validates a CLI/config table mode value.
func ParseTableMode(s string) (TableMode, error) {
	switch TableMode(s) {
	case TableStructured, TableAuto, TableImageOnly:
		return TableMode(s), nil
	}
	return "", fmt.Errorf("invalid table mode %q (valid: structured, auto, image-only)", s)
}

// OCRMode selects when pages are OCR'd.
type OCRMode string

const (
	// OCRAuto runs OCR only on pages below the text-coverage threshold.
	OCRAuto OCRMode = "auto"
	// OCROn forces OCR on every page.
	OCROn OCRMode = "on"
	// OCROff disables OCR entirely.
	OCROff OCRMode = "off"
)

// ParseOCRMode validates a CLI/config OCR mode value.
func ParseOCRMode(s string) (OCRMode, error) {
	switch OCRMode(s) {
	case OCRAuto, OCROn, OCROff:
		return OCRMode(s), nil
	}
	return "", fmt.Errorf("invalid ocr mode %q (valid: auto, on, off)", s)
}

// Defaults for the tunable thresholds. The table confidence cutoff is
// deliberately configurable; there is no single right value across
// backends.
const (
	DefaultTableConfidence       = 0.60
	DefaultTextCoverageThreshold = 0.05
)

// Options carries the per-run extraction settings.
type Options struct {
	Tables   TableMode
	OCR      OCRMode
	Captions bool

	// TableConfidence is the minimum structured-extraction confidence
	// before TableAuto falls back to a rasterized image.
	TableConfidence float64

	// TextCoverageThreshold is the fraction of page area that must be
	// covered by extractable text before OCRAuto skips a page.
	TextCoverageThreshold float64
}

// withDefaults fills unset thresholds and modes.
func (o Options) withDefaults() Options {
	if o.Tables == "" {
		o.Tables = TableAuto
	}
	if o.OCR == "" {
		o.OCR = OCROff
	}
	if o.TableConfidence <= 0 {
		o.TableConfidence = DefaultTableConfidence
	}
	if o.TextCoverageThreshold <= 0 {
		o.TextCoverageThreshold = DefaultTextCoverageThreshold
	}
	return o
}
