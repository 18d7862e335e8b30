// Package workerpool provides generic bounded worker pools for running a
// function over a slice of items concurrently.
package workerpool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Run executes fn for each item in items using up to workers goroutines.
// It returns the first non-nil error from fn, or nil if all succeed.
// In-flight calls are allowed to finish even if one returns an error; items
// not yet started are skipped once ctx is done.
func Run[T any](ctx context.Context, items []T, workers int, fn func(context.Context, T) error) error {
	if len(items) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(max(workers, 1))

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(ctx, item)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Result pairs an item with what fn returned for it.
type Result[T, R any] struct {
	Item  T
	Value R
	Err   error
}

// Collect runs fn over items like Run but keeps going past failures and
// returns one Result per started item, in input order.
func Collect[T, R any](ctx context.Context, items []T, workers int, fn func(context.Context, T) (R, error)) []Result[T, R] {
	results := make([]Result[T, R], len(items))
	started := make([]bool, len(items))

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(max(workers, 1))

	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			v, err := fn(ctx, item)
			mu.Lock()
			results[i] = Result[T, R]{Item: item, Value: v, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := results[:0]
	for i, ok := range started {
		if ok {
			out = append(out, results[i])
		}
	}
	return out
}
