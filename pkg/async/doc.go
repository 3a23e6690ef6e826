// Package async runs work off the calling goroutine.
//
// Async starts a function in its own goroutine and returns a Future. Pool
// bounds concurrency with a weighted semaphore from golang.org/x/sync; Submit
// and Run dispatch work onto it. Both are context-aware: a job whose context
// is cancelled while it waits for a slot is never started.
//
//	pool := async.NewPool(4)
//	hash, err := async.Run(ctx, pool, func(context.Context) ([]byte, error) {
//	    return bcrypt.GenerateFromPassword(pw, cost)
//	})
package async
