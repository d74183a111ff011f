package worker

import (
	"bytes"
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cpcf/forgekit/threadpool"
)

// FrameFunc is the per-frame body a Thread drives. drained holds every
// task handle linked onto this worker (via LinkTask) since the previous
// frame, swapped out atomically at the start of each frame.
type FrameFunc func(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle)

type workerTokenKey struct{}

// IsCurrentWorker reports whether ctx was produced by w's own frame loop,
// the Go replacement for comparing std::thread::id: goroutines have no
// stable OS-thread identity, so identity is instead a token threaded
// through context.Context by the loop that calls FrameFunc.
func IsCurrentWorker(ctx context.Context, w *Thread) bool {
	v, ok := ctx.Value(workerTokenKey{}).(uint64)
	return ok && v == w.token.Load()
}

var tokenSeq atomic.Uint64

// goroutineID parses the calling goroutine's runtime id out of its own
// stack trace header ("goroutine NNN [running]:"). It exists only to
// back Commutator.IsCurrentThread, which — unlike IsCurrentWorker — takes
// no context.Context to carry a lighter-weight identity token; this is
// the heavier goroutine-stack-parsing approach the rest of the package
// avoids, used here because there is no ctx to thread a token through.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(field, ' '); i >= 0 {
		field = field[:i]
	}
	id, _ := strconv.ParseInt(string(field), 10, 64)
	return id
}

// Option configures a Thread at construction time.
type Option func(*Thread)

func WithLogger(l *slog.Logger) Option { return func(w *Thread) { w.logger = l } }

func WithTargetFrameTime(d time.Duration) Option {
	return func(w *Thread) { w.targetFrameTime.Store(int64(d)) }
}

func WithPacingPolicy(p PacingPolicy) Option {
	return func(w *Thread) { w.policy.Store(int32(p)) }
}

// Thread is a paced periodic driver: a loop goroutine distinct from a
// thread pool's task workers, invoking FrameFunc once per frame and
// pacing itself against a target frame time.
type Thread struct {
	fn              FrameFunc
	targetFrameTime atomic.Int64
	policy          atomic.Int32
	stolenTime      time.Duration // loop-goroutine-owned only

	frameID atomic.Uint64
	token   atomic.Uint64
	goid    atomic.Int64

	alive       atomic.Bool
	active      atomic.Bool
	waitReached atomic.Bool
	onPause     atomic.Pointer[func() bool]

	mu   sync.Mutex
	cond *sync.Cond

	linkedMu sync.Mutex
	linked   []threadpool.AnyHandle

	commutatedMu sync.Mutex
	commutated   []func()

	logger  *slog.Logger
	started chan struct{}
	stopped chan struct{}
}

func New(fn FrameFunc, opts ...Option) *Thread {
	w := &Thread{
		fn:      fn,
		logger:  slog.Default(),
		started: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	w.targetFrameTime.Store(int64(NoFrameLimit))
	w.policy.Store(int32(DontCare))
	w.cond = sync.NewCond(&w.mu)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the frame loop in its own goroutine. Run must be called at
// most once.
func (w *Thread) Run() {
	w.alive.Store(true)
	w.active.Store(true)
	w.token.Store(tokenSeq.Add(1))
	close(w.started)
	go w.loop()
}

func (w *Thread) loop() {
	defer close(w.stopped)
	w.goid.Store(goroutineID())
	ctx := context.WithValue(context.Background(), workerTokenKey{}, w.token.Load())
	last := time.Now()
	for w.alive.Load() {
		if !w.active.Load() {
			w.idle()
			last = time.Now()
			continue
		}
		frameStart := time.Now()
		dt := frameStart.Sub(last)
		last = frameStart
		w.runCommutated()
		drained := w.takeLinked()

		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("worker frame panicked", "recovered", r)
				}
			}()
			w.fn(ctx, dt, frameStart, drained)
		}()

		w.frameID.Add(1)
		w.pace(frameStart)
	}
}

func (w *Thread) idle() {
	w.waitReached.Store(true)
	if cbp := w.onPause.Swap(nil); cbp != nil {
		if !(*cbp)() {
			w.Resume()
		}
	}
	w.mu.Lock()
	for !w.active.Load() && w.alive.Load() {
		w.cond.Wait()
	}
	w.mu.Unlock()
	w.waitReached.Store(false)
}

func (w *Thread) pace(frameStart time.Time) {
	target := time.Duration(w.targetFrameTime.Load())
	if target == NoFrameLimit {
		return
	}
	switch PacingPolicy(w.policy.Load()) {
	case DontCare:
	case Strict:
		for time.Since(frameStart) < target && w.active.Load() {
			runtime.Gosched()
		}
	case CPUSleep:
		remaining := target - time.Since(frameStart)
		if remaining <= 0 {
			return
		}
		if w.stolenTime <= remaining {
			before := time.Now()
			time.Sleep(remaining)
			actual := time.Since(before)
			w.stolenTime = actual - remaining
		} else {
			w.stolenTime -= remaining
		}
	}
}

// LinkTask queues a task handle to be delivered to FrameFunc as part of
// the next frame's drained slice.
func (w *Thread) LinkTask(h threadpool.AnyHandle) {
	w.linkedMu.Lock()
	w.linked = append(w.linked, h)
	w.linkedMu.Unlock()
}

func (w *Thread) takeLinked() []threadpool.AnyHandle {
	w.linkedMu.Lock()
	defer w.linkedMu.Unlock()
	if len(w.linked) == 0 {
		return nil
	}
	out := w.linked
	w.linked = nil
	return out
}

// EnqueueClosure schedules fn to run on this worker's loop goroutine at
// the top of its next frame, before FrameFunc is invoked.
func (w *Thread) EnqueueClosure(fn func()) {
	w.commutatedMu.Lock()
	w.commutated = append(w.commutated, fn)
	w.commutatedMu.Unlock()
}

func (w *Thread) runCommutated() {
	w.commutatedMu.Lock()
	pending := w.commutated
	w.commutated = nil
	w.commutatedMu.Unlock()
	for _, fn := range pending {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("commutated closure panicked", "recovered", r)
				}
			}()
			fn()
		}()
	}
}

// RequestPause asks the loop to stop after its current frame. cb, if
// non-nil, is invoked exactly once after the loop reaches idle; returning
// false aborts the pause and resumes immediately.
func (w *Thread) RequestPause(cb func() bool) {
	if cb != nil {
		w.onPause.Store(&cb)
	}
	w.active.Store(false)
}

// WaitPaused blocks until the loop has reached its idle (paused) state.
func (w *Thread) WaitPaused() {
	for !w.waitReached.Load() && w.alive.Load() {
		runtime.Gosched()
	}
}

// Pause is RequestPause(nil) followed by WaitPaused.
func (w *Thread) Pause() {
	w.RequestPause(nil)
	w.WaitPaused()
}

func (w *Thread) Resume() {
	w.mu.Lock()
	w.active.Store(true)
	w.cond.Broadcast()
	w.mu.Unlock()
}

// Stop halts the loop after its current frame (or immediately if paused)
// and waits for the loop goroutine to exit. On a Thread that was never
// Run there is no loop to wait for, and Stop returns at once.
func (w *Thread) Stop() {
	select {
	case <-w.started:
	default:
		return
	}
	w.alive.Store(false)
	w.mu.Lock()
	w.active.Store(true)
	w.cond.Broadcast()
	w.mu.Unlock()
	<-w.stopped
}

func (w *Thread) FrameID() uint64 { return w.frameID.Load() }

func (w *Thread) SetTargetFrameTime(d time.Duration) { w.targetFrameTime.Store(int64(d)) }

func (w *Thread) SetPacingPolicy(p PacingPolicy) { w.policy.Store(int32(p)) }

func (w *Thread) IsPaused() bool { return w.waitReached.Load() }

// ThreadID returns the identity token assigned to w's frame loop when Run
// started it. ok is false if Run has not yet been called, since no
// goroutine is driving the loop and the token is still unassigned.
func (w *Thread) ThreadID() (id int64, ok bool) {
	t := w.token.Load()
	if t == 0 {
		return 0, false
	}
	return int64(t), true
}

// isCurrentGoroutine reports whether the calling goroutine is the one
// running w's frame loop. Used by Commutator.IsCurrentThread.
func (w *Thread) isCurrentGoroutine() bool {
	g := w.goid.Load()
	return g != 0 && g == goroutineID()
}
