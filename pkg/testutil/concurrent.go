package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	dErrors "credex/pkg/domain-errors"
	"credex/pkg/platform/sentinel"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	Conflicts int32
	NotFounds int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.NotFounds
}

var (
	conflictTarget = &dErrors.Error{Code: dErrors.CodeConflict}
	terminalTarget = &dErrors.Error{Code: dErrors.CodeSessionTerminal}
	notFoundTarget = &dErrors.Error{Code: dErrors.CodeNotFound}
)

// RunConcurrent executes fn in parallel goroutines and collects results.
// Conflict and session_terminal domain errors are both counted as conflicts,
// as are store-level sentinel conflicts.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, conflicts, notFounds atomic.Int32

	for i := range goroutines {
		wg.Go(func() {
			err := fn(i)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, conflictTarget), errors.Is(err, terminalTarget), errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			case errors.Is(err, notFoundTarget), errors.Is(err, sentinel.ErrNotFound):
				notFounds.Add(1)
			default:
				errs.Add(1)
			}
		})
	}

	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Errors:    errs.Load(),
		Conflicts: conflicts.Load(),
		NotFounds: notFounds.Load(),
	}
}

// RunConcurrentCtx executes fn in parallel goroutines with context support.
func RunConcurrentCtx(ctx context.Context, goroutines int, fn func(ctx context.Context, idx int) error) *ConcurrentResult {
	return RunConcurrent(goroutines, func(idx int) error {
		return fn(ctx, idx)
	})
}
