package threadpool

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// TaskType is the mask unit Pool.CancelTasks and Pool.Pause operate on.
// It does not affect dispatch: Enqueue picks a worker queue round-robin
// whatever the type.
type TaskType uint8

const (
	Common TaskType = iota
	UserControl
	maxTaskType
)

// TaskState is the task's lifecycle state machine: IDLE -> RUNNING ->
// COMPLETE, with CANCELED reachable from either IDLE or RUNNING.
type TaskState int32

const (
	Idle TaskState = iota
	Running
	Complete
	Canceled
)

func (s TaskState) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Running:
		return "RUNNING"
	case Complete:
		return "COMPLETE"
	case Canceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// task is the type-erased base every TaskHandle[R] wraps, mirroring the
// split between a non-generic task_control_block and the templated
// Task2<T> in the C++ original: the queue and pool only ever see *task,
// the typed result lives behind the closure captured in fn.
type task struct {
	id    uuid.UUID
	typ   TaskType
	token *CancellationToken
	state atomic.Int32
	done  chan struct{}
	once  sync.Once
	fn    func(*CancellationToken)
}

func newTask(typ TaskType, fn func(*CancellationToken)) *task {
	return &task{
		id:    uuid.New(),
		typ:   typ,
		token: &CancellationToken{},
		done:  make(chan struct{}),
		fn:    fn,
	}
}

func (t *task) finish(s TaskState) {
	t.once.Do(func() {
		t.state.Store(int32(s))
		close(t.done)
	})
}

// run executes the task body exactly once. A panicking body is trapped
// and the task is left CANCELED rather than hung forever on Wait(); the
// recovered value is returned so the worker loop can log it.
func (t *task) run() (recovered any) {
	if !t.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			recovered = r
			t.finish(Canceled)
			return
		}
		if t.token.IsCancelled() {
			t.finish(Canceled)
		} else {
			t.finish(Complete)
		}
	}()
	t.fn(t.token)
	return nil
}

// cancel requests cancellation. A task still queued (IDLE) is moved
// straight to CANCELED so the pool never runs it; a RUNNING task only has
// its token flipped and is expected to observe it and return early.
func (t *task) cancel() {
	t.token.Cancel()
	if t.state.CompareAndSwap(int32(Idle), int32(Canceled)) {
		t.finish(Canceled)
	}
}

func (t *task) State() TaskState { return TaskState(t.state.Load()) }

// TaskHandle is the caller-facing, generically-typed view of a queued
// task. The zero value is not valid; obtain one from Enqueue.
type TaskHandle[R any] struct {
	t      *task
	result *R
}

func (h TaskHandle[R]) Valid() bool { return h.t != nil }

func (h TaskHandle[R]) ID() uuid.UUID { return h.t.id }

func (h TaskHandle[R]) State() TaskState { return h.t.State() }

func (h TaskHandle[R]) Cancel() { h.t.cancel() }

// Wait blocks until the task reaches COMPLETE or CANCELED and returns the
// result (zero value if canceled) together with the final state.
func (h TaskHandle[R]) Wait() (R, TaskState) {
	<-h.t.done
	var zero R
	if h.State() != Complete {
		return zero, h.State()
	}
	if h.result != nil {
		return *h.result, Complete
	}
	return zero, Complete
}

// Done returns a channel closed when the task reaches a terminal state,
// for use in a select alongside other readiness signals.
func (h TaskHandle[R]) Done() <-chan struct{} { return h.t.done }

// AnyHandle is the type-erased view of a TaskHandle[R], used wherever code
// needs to hold handles of different result types in one collection (the
// worker package's per-frame linked-task drain, for instance).
type AnyHandle interface {
	ID() uuid.UUID
	State() TaskState
	Cancel()
	Done() <-chan struct{}
}
