package content

import (
	"context"
	"os"
	"time"
)

// OCREngine recognizes text in a page image. Implementations wrap the
// external recognition service; a failure degrades that one page rather
// than aborting the run.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// CaptionEngine describes an image. Failures leave the block captionless.
type CaptionEngine interface {
	Caption(ctx context.Context, image []byte) (string, error)
}

// engineTimeout bounds a single OCR or caption call. CI runs get a shorter
// budget so a hung engine fails the item quickly instead of stalling the
// whole suite.
func engineTimeout() time.Duration {
	if os.Getenv("CI") != "" {
		return 30 * time.Second
	}
	return 2 * time.Minute
}

// callWithTimeout runs fn under the environment-aware timeout.
func callWithTimeout(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, engineTimeout())
	defer cancel()
	return fn(ctx)
}
