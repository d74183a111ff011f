package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cpcf/forgekit/threadpool"
)

func TestRunInvokesFrameFuncAndAdvancesFrameID(t *testing.T) {
	var frames atomic.Int64
	w := New(func(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle) {
		frames.Add(1)
	})
	w.Run()
	defer w.Stop()

	deadline := time.After(time.Second)
	for frames.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for frames to run")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if w.FrameID() == 0 {
		t.Fatal("expected frame id to advance")
	}
}

func TestPauseResume(t *testing.T) {
	var frames atomic.Int64
	w := New(func(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle) {
		frames.Add(1)
	})
	w.Run()
	defer w.Stop()

	w.Pause()
	if !w.IsPaused() {
		t.Fatal("expected worker to report paused")
	}
	n := frames.Load()
	time.Sleep(20 * time.Millisecond)
	if frames.Load() != n {
		t.Fatal("frame count advanced while paused")
	}

	w.Resume()
	deadline := time.After(time.Second)
	for frames.Load() <= n {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for resumed frame")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRequestPauseCallbackFalseResumes(t *testing.T) {
	w := New(func(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle) {})
	w.Run()
	defer w.Stop()

	called := make(chan struct{})
	w.RequestPause(func() bool {
		close(called)
		return false
	})
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("onPause callback never invoked")
	}
	// callback returned false, so the worker should not stay paused
	time.Sleep(10 * time.Millisecond)
	if w.IsPaused() {
		t.Fatal("expected worker to resume after callback returned false")
	}
}

func TestIsCurrentWorkerDistinguishesThreads(t *testing.T) {
	var sawSelf atomic.Bool
	var w *Thread
	w = New(func(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle) {
		if IsCurrentWorker(ctx, w) {
			sawSelf.Store(true)
		}
	})
	w.Run()
	defer w.Stop()
	time.Sleep(20 * time.Millisecond)
	if !sawSelf.Load() {
		t.Fatal("expected FrameFunc's context to identify its own worker")
	}

	other := New(func(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle) {})
	other.Run()
	defer other.Stop()
	if IsCurrentWorker(context.Background(), other) {
		t.Fatal("background context must not match any worker")
	}
}

func TestCommutatorEnqueueOnRunsOnTargetWorker(t *testing.T) {
	done := make(chan struct{})
	w := New(func(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle) {})
	w.Run()
	defer w.Stop()

	c := NewCommutator()
	id, err := c.EmplaceWorker("render", w)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.EnqueueOn(id, func() { close(done) }); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("commutated closure never ran")
	}
}

func TestCommutatorRejectsDuplicateName(t *testing.T) {
	c := NewCommutator()
	w1 := New(func(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle) {})
	w2 := New(func(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle) {})
	if _, err := c.EmplaceWorker("update", w1); err != nil {
		t.Fatal(err)
	}
	if _, err := c.EmplaceWorker("update", w2); err == nil {
		t.Fatal("expected error registering a duplicate worker name")
	}
}

func TestLinkTaskDeliversDrainedHandles(t *testing.T) {
	pool := threadpool.New(1)
	defer pool.Stop()

	gotDrained := make(chan int, 1)
	w := New(func(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle) {
		if len(drained) > 0 {
			select {
			case gotDrained <- len(drained):
			default:
			}
		}
	})
	w.Run()
	defer w.Stop()

	h := threadpool.EnqueueVoid(pool, threadpool.Common, func(tok *threadpool.CancellationToken) {})
	w.LinkTask(h)

	select {
	case n := <-gotDrained:
		if n != 1 {
			t.Fatalf("expected 1 drained handle, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for linked task to be drained")
	}
}

func TestThreadIDUnsetBeforeRun(t *testing.T) {
	w := New(func(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle) {})
	if _, ok := w.ThreadID(); ok {
		t.Fatal("expected ThreadID to be unset before Run")
	}
	w.Run()
	defer w.Stop()
	if _, ok := w.ThreadID(); !ok {
		t.Fatal("expected ThreadID to be set once Run has started the loop")
	}
}

func TestCommutatorIsCurrentThread(t *testing.T) {
	var c *Commutator
	var renderID uint8
	seenOnRender := make(chan bool, 1)
	render := New(func(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle) {
		select {
		case seenOnRender <- c.IsCurrentThread(renderID):
		default:
		}
	})
	update := New(func(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle) {})

	c = NewCommutator()
	var err error
	renderID, err = c.EmplaceWorker("render", render)
	if err != nil {
		t.Fatal(err)
	}
	updateID, err := c.EmplaceWorker("update", update)
	if err != nil {
		t.Fatal(err)
	}

	render.Run()
	defer render.Stop()
	update.Run()
	defer update.Stop()

	select {
	case got := <-seenOnRender:
		if !got {
			t.Fatal("expected IsCurrentThread(renderID) to be true from within render's own frame loop")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for render frame")
	}

	if c.IsCurrentThread(renderID) {
		t.Fatal("calling goroutine is not the render worker's loop goroutine")
	}
	if c.IsCurrentThread(updateID) {
		t.Fatal("calling goroutine is not the update worker's loop goroutine")
	}
	if c.IsCurrentThread(255) {
		t.Fatal("expected IsCurrentThread to be false for an unregistered id")
	}
}
