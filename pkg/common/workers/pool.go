// Package workers provides a semaphore-based worker pool for the
// parallel parts of retrieval: evaluating sibling clauses of a
// decomposed query concurrently and fanning a batch of topics out
// over a fixed number of workers.
//
// The pool has no lifecycle. It is ready immediately after creation,
// spawns one goroutine per item bounded by the worker count, and
// cleans up when the call returns. Context cancellation stops items
// that have not yet acquired a worker slot.
package workers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Pool bounds the number of concurrently executing items.
type Pool struct {
	workerCount int
}

// NewPool creates a pool. A non-positive workerCount defaults to the
// CPU count.
func NewPool(workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &Pool{workerCount: workerCount}
}

// WorkerCount returns the concurrency bound.
func (p *Pool) WorkerCount() int { return p.workerCount }

// Run executes fn for every index in [0, n) with bounded
// concurrency and waits for all of them. The first error, by index
// order, is returned; later items still run to completion so partial
// results stay consistent.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, index int) error) error {
	if n == 0 {
		return nil
	}
	errs := make([]error, n)
	semaphore := make(chan struct{}, p.workerCount)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				errs[index] = ctx.Err()
				return
			}

			if err := fn(ctx, index); err != nil {
				errs[index] = fmt.Errorf("task %d: %w", index, err)
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Map executes fn for every input and returns the outputs in input
// order. Like Run, it waits for all items and reports the first
// error by index order.
func Map[In, Out any](ctx context.Context, p *Pool, inputs []In, fn func(ctx context.Context, in In) (Out, error)) ([]Out, error) {
	outputs := make([]Out, len(inputs))
	err := p.Run(ctx, len(inputs), func(ctx context.Context, index int) error {
		out, err := fn(ctx, inputs[index])
		if err != nil {
			return err
		}
		outputs[index] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outputs, nil
}
