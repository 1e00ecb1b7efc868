package fetch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// InBatches partitions items into chunks of at most size elements and issues
// one call per chunk, concatenating the results in input order. Chunks run
// concurrently; the first error cancels the remaining calls and is returned.
func InBatches[T, V any](ctx context.Context, items []T, size int, fn func(context.Context, []T) ([]V, error)) ([]V, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}
	if len(items) == 0 {
		return nil, nil
	}

	chunks := (len(items) + size - 1) / size
	results := make([][]V, chunks)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < chunks; i++ {
		i := i
		lo := i * size
		hi := min(lo+size, len(items))
		g.Go(func() error {
			out, err := fn(gctx, items[lo:hi])
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []V
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}
