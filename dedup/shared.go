package dedup

import "context"

// Shared is a one-shot future settled exactly once by a producer and
// awaited by any number of consumers. merge and batch use it the same
// way this package uses singleflight internally: many callers attach to
// one unit of work, and a caller's context cancellation only detaches
// that caller instead of cancelling the work for everyone else.
type Shared[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// NewShared creates an unsettled Shared.
func NewShared[T any]() *Shared[T] {
	return &Shared[T]{done: make(chan struct{})}
}

// Resolve settles the future. Calling Resolve more than once panics,
// since a Shared represents exactly one unit of work.
func (s *Shared[T]) Resolve(val T, err error) {
	s.val = val
	s.err = err
	close(s.done)
}

// Wait blocks until the future settles or ctx is cancelled. A cancelled
// Wait does not affect the producer or any other waiter.
func (s *Shared[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-s.done:
		return s.val, s.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
