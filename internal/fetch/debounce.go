package fetch

import (
	"context"
	"sync"
	"time"
)

type result[V any] struct {
	value V
	err   error
}

// Debouncer collapses a burst of calls into one underlying call. Callers
// block until the burst they joined resolves and all of them receive the
// same result. The function of the latest caller is the one that runs,
// once the configured quiet period has passed without further calls.
type Debouncer[V any] struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	waiters []chan result[V]
	run     func() (V, error)
}

// NewDebouncer creates a debouncer with the given quiet period
func NewDebouncer[V any](delay time.Duration) *Debouncer[V] {
	return &Debouncer[V]{delay: delay}
}

// Do schedules fn and blocks until the burst resolves. A cancelled ctx only
// abandons this caller's wait; the collapsed call still runs for the rest
// of the burst.
func (d *Debouncer[V]) Do(ctx context.Context, fn func(context.Context) (V, error)) (V, error) {
	ch := make(chan result[V], 1)

	d.mu.Lock()
	d.run = func() (V, error) { return fn(ctx) }
	d.waiters = append(d.waiters, ch)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
	d.mu.Unlock()

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

func (d *Debouncer[V]) fire() {
	d.mu.Lock()
	run := d.run
	waiters := d.waiters
	d.run = nil
	d.waiters = nil
	d.timer = nil
	d.mu.Unlock()

	if run == nil {
		return
	}

	value, err := run()
	for _, ch := range waiters {
		ch <- result[V]{value: value, err: err}
	}
}
