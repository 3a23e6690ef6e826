package async

import (
	"context"
)

// Future holds the eventual result of a job started with Async or Submit.
type Future[U any] struct {
	result U
	err    error
	done   chan struct{}
}

func newFuture[U any]() *Future[U] {
	return &Future[U]{done: make(chan struct{})}
}

func (f *Future[U]) complete(res U, err error) {
	f.result = res
	f.err = err
	close(f.done)
}

// Await blocks until the job finishes.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// AwaitContext blocks until the job finishes or ctx is done, whichever comes
// first. Abandoning the wait does not stop the job.
func (f *Future[U]) AwaitContext(ctx context.Context) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero U
		return zero, ctx.Err()
	}
}

// IsComplete reports whether the job has finished without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Async runs fn(ctx, param) in a new goroutine.
// A context cancelled before the goroutine starts completes the future with ctx.Err().
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := newFuture[U]()

	go func() {
		if err := ctx.Err(); err != nil {
			var zero U
			f.complete(zero, err)
			return
		}
		f.complete(fn(ctx, param))
	}()

	return f
}

// WaitAll waits for every future and returns the first error encountered in
// argument order. Results of futures that succeeded are always populated.
func WaitAll[U any](futures ...*Future[U]) ([]U, error) {
	results := make([]U, len(futures))
	var firstErr error
	for i, f := range futures {
		res, err := f.Await()
		results[i] = res
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}
