// Package cache persists the parsed-document representation so repeat runs
// can skip the expensive parsing engine. Cache files are versioned JSON
// envelopes written atomically; readers reject unknown schema versions and
// structurally corrupt files so a stale cache can never poison a run.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/bindery/internal/parser"
)

// SchemaVersion is bumped whenever the serialized document shape changes
// incompatibly. Readers reject anything else.
const SchemaVersion = 1

// InvalidError reports an unusable cache file: version mismatch, failed
// validation or corrupt JSON. Callers decide whether to fall back to a
// fresh parse or abort.
type InvalidError struct {
	Path   string
	Reason string
	Err    error
}

func (e *InvalidError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid cache %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid cache %s: %s", e.Path, e.Reason)
}

func (e *InvalidError) Unwrap() error { return e.Err }

// envelope is the on-disk cache format.
type envelope struct {
	SchemaVersion int              `json:"schemaVersion"`
	ParserVersion string           `json:"parserVersion"`
	Document      *parser.Document `json:"document"`
}

const envelopeSchema = `{
	"type": "object",
	"required": ["schemaVersion", "document"],
	"properties": {
		"schemaVersion": {"type": "integer"},
		"parserVersion": {"type": "string"},
		"document": {
			"type": "object",
			"required": ["pages"],
			"properties": {
				"pages": {"type": "array"}
			}
		}
	}
}`

var compiledSchema = jsonschema.MustCompileString("cache-envelope.json", envelopeSchema)

// Save serializes the document with its schema version tag and writes it
// atomically: temp file in the destination directory, then rename. A crash
// mid-write leaves no partial cache behind.
func Save(doc *parser.Document, path string) error {
	env := envelope{
		SchemaVersion: SchemaVersion,
		ParserVersion: doc.ParserVersion,
		Document:      doc,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize document cache: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize cache: %w", err)
	}
	return nil
}

// Load reads and validates a cache file. Any structural problem or version
// mismatch returns *InvalidError; callers with fallback enabled re-parse
// from source instead.
func Load(path string) (*parser.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &InvalidError{Path: path, Reason: "corrupt JSON", Err: err}
	}
	if err := compiledSchema.Validate(raw); err != nil {
		return nil, &InvalidError{Path: path, Reason: "schema validation failed", Err: err}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &InvalidError{Path: path, Reason: "corrupt envelope", Err: err}
	}
	if env.SchemaVersion != SchemaVersion {
		return nil, &InvalidError{
			Path:   path,
			Reason: fmt.Sprintf("schema version %d, want %d", env.SchemaVersion, SchemaVersion),
		}
	}
	if env.Document == nil || strings.TrimSpace(env.Document.SourcePath) == "" && env.Document.PageCount() == 0 {
		return nil, &InvalidError{Path: path, Reason: "empty document"}
	}
	return env.Document, nil
}
