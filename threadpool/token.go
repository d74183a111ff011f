// Package threadpool implements a work-stealing thread pool of fixed-size
// worker goroutines with round-robin dispatch, selective cancellation by
// task type, and pause/resume control — the concurrent task execution core
// of the engine.
package threadpool

import "sync/atomic"

// CancellationToken is a cooperative cancellation flag shared between a
// task's creator and its running body. It carries no callbacks: a task
// body is expected to poll IsCancelled() at safe points and return early.
type CancellationToken struct {
	cancelled atomic.Bool
}

func (t *CancellationToken) Cancel() { t.cancelled.Store(true) }

func (t *CancellationToken) IsCancelled() bool { return t.cancelled.Load() }

// Reset clears the token so it can be reused by a task picked back up
// from a fresh enqueue. Tokens are never reset while a task referencing
// them may still be running.
func (t *CancellationToken) Reset() { t.cancelled.Store(false) }
