package async

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool caps how many jobs run at once. It is meant for CPU-bound work such
// as password hashing that must not run unbounded under request load.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool returns a pool with size slots. A non-positive size uses GOMAXPROCS.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return p.size
}

// Submit queues fn on the pool and returns immediately.
// If ctx is done before a slot frees up, fn never runs and the future
// completes with ctx.Err().
func Submit[U any](ctx context.Context, p *Pool, fn func(context.Context) (U, error)) *Future[U] {
	f := newFuture[U]()

	go func() {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			var zero U
			f.complete(zero, err)
			return
		}
		defer p.sem.Release(1)
		f.complete(fn(ctx))
	}()

	return f
}

// Run submits fn and waits for it, returning early if ctx is done.
func Run[U any](ctx context.Context, p *Pool, fn func(context.Context) (U, error)) (U, error) {
	return Submit(ctx, p, fn).AwaitContext(ctx)
}
