package async

import (
	"context"
	"errors"
	"sync"
)

// Map calls fn for every item concurrently, with at most limit calls in
// flight (limit <= 0 means unbounded). Results keep the order of items.
// All calls run to completion; the returned error joins every failure.
//
// Example:
//
//	versions, err := async.Map(ctx, tools, 0, probe)
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	errs := make([]error, len(items))
	var sem chan struct{}
	if limit > 0 {
		sem = make(chan struct{}, limit)
	}

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i], errs[i] = fn(ctx, item)
		}()
	}
	wg.Wait()

	return results, errors.Join(errs...)
}
