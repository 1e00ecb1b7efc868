package fetch

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Conditional returns fallback without touching the network when ok is
// false, and degrades to fallback when fn fails. Failures are logged, never
// surfaced; callers that need the error should call fn directly.
func Conditional[V any](ctx context.Context, ok bool, fallback V, fn func(context.Context) (V, error)) V {
	if !ok {
		return fallback
	}

	v, err := fn(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Conditional call failed, using fallback")
		return fallback
	}
	return v
}
