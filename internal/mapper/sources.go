package mapper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SourcesDir is the directory under the package root holding one JSON
// document per container entry.
const SourcesDir = "sources/journals"

// WriteSources writes each entry to <dir>/sources/journals/<id>.json.
// Files are written pretty-printed so diffs between runs stay readable.
func WriteSources(dir string, entries []ContainerEntry) error {
	target := filepath.Join(dir, filepath.FromSlash(SourcesDir))
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("failed to create sources directory: %w", err)
	}

	for _, entry := range entries {
		data, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal entry %s: %w", entry.ID, err)
		}
		data = append(data, '\n')

		path := filepath.Join(target, entry.ID+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write entry %s: %w", entry.ID, err)
		}
	}
	return nil
}
