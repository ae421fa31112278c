package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// PageTask processes one page. A returned error is fatal for the run and
// cancels remaining in-flight tasks; non-fatal per-page issues belong on
// the run report instead.
type PageTask[T any] func(ctx context.Context, page int) (T, error)

// PageResult pairs a task result with its source page for the merge step.
type PageResult[T any] struct {
	Page  int
	Value T
}

// RunPages executes task for every page over a fixed-size pool of workers,
// blocks until all tasks join, and returns results sorted by page index.
// Completion order never leaks into the result order. On the first task
// error the remaining work is cancelled and that error is returned.
func RunPages[T any](ctx context.Context, workers int, pages []int, task PageTask[T], logger *slog.Logger) ([]PageResult[T], error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(pages) == 0 {
		return nil, nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(pages) {
		workers = len(pages)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan int, len(pages))
	for _, p := range pages {
		queue <- p
	}
	close(queue)

	var (
		mu       sync.Mutex
		results  []PageResult[T]
		firstErr error
		wg       sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for page := range queue {
				if ctx.Err() != nil {
					return
				}
				value, err := task(ctx, page)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("page %d: %w", page, err)
					}
					mu.Unlock()
					logger.Error("page task failed", "worker", workerID, "page", page, "error", err)
					cancel()
					return
				}
				mu.Lock()
				results = append(results, PageResult[T]{Page: page, Value: value})
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Deterministic merge: completion order must not be observable.
	sort.Slice(results, func(i, j int) bool { return results[i].Page < results[j].Page })
	return results, nil
}
