// Package task provides the async primitives the resolver and
// acquisition pipeline are built on. The original system implemented
// its own coroutine-based Task/Generator/ThreadPool machinery
// (async/Task.hpp, async/ThreadPool.hpp) because C++ has no native
// lightweight concurrency; in Go that machinery is unneeded; goroutines,
// channels and golang.org/x/sync/errgroup already give the same
// fork/join shape with far less code, so this package is a thin,
// domain-named layer over them rather than a port of the coroutine types.
package task

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Future represents the result of work running on its own goroutine.
// It is the Go-native analogue of the original's Task<T>.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go starts fn on a new goroutine and returns a Future for its result.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Wait blocks until the future resolves and returns its value and error.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// Pool bounds the number of concurrently running tasks submitted
// through it, the same role the original's ThreadPool/ThreadWorker
// pair served, implemented here as a buffered-channel semaphore.
type Pool struct {
	sem chan struct{}
}

// NewPool creates a Pool that runs at most n tasks concurrently.
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{sem: make(chan struct{}, n)}
}

// Submit returns at once with a Future; fn runs on a new goroutine
// once a pool slot is free, or the Future fails with ctx.Err() if ctx
// ends first.
func (p *Pool) Submit(ctx context.Context, fn func(ctx context.Context) error) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) {
		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		}
		defer func() { <-p.sem }()
		return struct{}{}, fn(ctx)
	})
}

// WhenAll runs every fn concurrently under an errgroup, bounded by
// limit (0 means unbounded), and returns the first error encountered
// (if any), cancelling the group's derived context for the rest. This
// plays the role of the original's TaskUtils::whenAll.
func WhenAll(ctx context.Context, limit int, fns ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, fn := range fns {
		fn := fn
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}

// WhenAllValues is the value-returning counterpart of WhenAll: every
// fn's result is collected in order, and the first error cancels the
// rest and is returned alongside a partially-filled slice.
func WhenAllValues[T any](ctx context.Context, limit int, fns ...func(ctx context.Context) (T, error)) ([]T, error) {
	results := make([]T, len(fns))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, fn := range fns {
		i, fn := i, fn
		g.Go(func() error {
			v, err := fn(gctx)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	err := g.Wait()
	return results, err
}
