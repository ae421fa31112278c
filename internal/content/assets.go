package content

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// AssetWriter writes extracted images into the run's asset directory.
// Names derive from the owning section's path-key plus page and local
// sequence numbers, so the same input always yields the same asset paths
// regardless of worker count. Image bytes are written verbatim; nothing is
// ever recompressed.
type AssetWriter struct {
	dir string

	// Guards concurrent writes from parallel page tasks.
	mu sync.Mutex
}

// NewAssetWriter creates the asset directory if needed.
func NewAssetWriter(dir string) (*AssetWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	return &AssetWriter{dir: dir}, nil
}

// Dir returns the asset directory.
func (w *AssetWriter) Dir() string {
	return w.dir
}

// Write stores data under name and returns the package-relative asset path.
func (w *AssetWriter) Write(name string, data []byte) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.WriteFile(filepath.Join(w.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write asset %s: %w", name, err)
	}
	return "assets/" + name, nil
}

// AssetName builds a deterministic asset file name from a section path-key,
// the source page, a kind tag ("img" or "table"), a per-page sequence
// number and an extension.
func AssetName(sectionPathKey string, page int, kind string, seq int, ext string) string {
	key := strings.ReplaceAll(sectionPathKey, "/", "-")
	if key == "" {
		key = "unsectioned"
	}
	return fmt.Sprintf("%s_p%04d_%s_%02d.%s", key, page+1, kind, seq, ext)
}

// placeholderPNG is a 1x1 transparent PNG used when a table region carries
// no raster snapshot. Keeps the fallback block renderable instead of empty.
var placeholderPNG, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR4nGNgYAAAAAMAASsJTYQAAAAASUVORK5CYII=")
