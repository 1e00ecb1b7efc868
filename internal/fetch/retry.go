// Package fetch provides small combinators for asynchronous calls against
// the backend API: retry with backoff, burst debouncing, chunked batching
// and guarded calls with a fallback.
package fetch

import (
	"context"
	"fmt"
	"math"
	"time"
)

// WithRetry calls fn until it succeeds, waiting between attempts with
// exponential backoff (base, 2·base, 4·base, ...). attempts is the total
// number of tries. After exhaustion the last error is returned, wrapped.
func WithRetry[V any](ctx context.Context, attempts int, base time.Duration, fn func(context.Context) (V, error)) (V, error) {
	var zero V
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt < attempts-1 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * base
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}
