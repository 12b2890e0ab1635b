package usecase

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// EntityFailure records why one entity could not be processed.
type EntityFailure struct {
	Err error
	Key string
}

// BatchResult aggregates a per-entity run.
type BatchResult struct {
	Failures  []EntityFailure
	Succeeded int
	Total     int
}

// AllFailed reports whether there was work and none of it succeeded.
func (r BatchResult) AllFailed() bool {
	return r.Total > 0 && r.Succeeded == 0
}

// runBatch applies fn to every key with bounded parallelism. A failing entity
// never stops the others. The only error returned is context cancellation.
func runBatch(ctx context.Context, workers int, keys []string, fn func(ctx context.Context, key string) error) (BatchResult, error) {
	result := BatchResult{Total: len(keys)}
	if len(keys) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(workers)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			_ = g.Wait()
			return result, err
		}

		key := key
		g.Go(func() error {
			err := fn(ctx, key)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, EntityFailure{Key: key, Err: err})
				return nil
			}
			result.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].Key < result.Failures[j].Key
	})

	return result, ctx.Err()
}
