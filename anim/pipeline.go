// Package anim implements the latency-N skeletal animation pipeline: a
// blend tree of Animators evaluated against a Skeleton whose node
// hierarchy is replicated across `latency` slots so an in-progress
// update never races a render reading a previous frame.
package anim

import (
	"log/slog"

	"github.com/cpcf/forgekit/threadpool"
	"golang.org/x/sync/errgroup"
)

// Pipeline arbitrates one frame's worth of animation work: UpdateAnimation
// advances accumulators inline and hands the heavy calculate+apply step to
// the shared pool; PreRender waits on the render slot's task before the
// renderer reads its matrices.
type Pipeline struct {
	pool   *threadpool.Pool
	tree   *AnimationTree
	sk     *Skeleton
	logger *slog.Logger
}

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

func NewPipeline(pool *threadpool.Pool, tree *AnimationTree, sk *Skeleton, opts ...Option) *Pipeline {
	p := &Pipeline{pool: pool, tree: tree, sk: sk, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// UpdateAnimation rotates the
// updater slot, advance time accumulators on the calling thread, then
// schedule the calculate+apply+world-matrix+joint-matrix work as a single
// pool task whose handle is stored at that slot.
func (p *Pipeline) UpdateAnimation(dt float32) {
	slot := p.sk.rotateUpdaterSlot()
	if dt == 0 {
		return
	}
	p.tree.Update(dt, slot)

	handle := threadpool.EnqueueVoid(p.pool, threadpool.Common, func(token *threadpool.CancellationToken) {
		if token != nil && token.IsCancelled() {
			return
		}
		p.tree.Calculate(slot)
		if token != nil && token.IsCancelled() {
			return
		}
		p.tree.Apply(p.sk, slot)
	})
	p.sk.slots[slot].task = handle
}

// PreRender selects the render slot
// ((updater slot + 1) mod latency, the slot written longest ago) and,
// unless its task already reached a
// terminal state, wait for it before the caller reads its matrices.
func (p *Pipeline) PreRender() int {
	slot := p.sk.renderSlot()
	task := p.sk.slots[slot].task
	if task.Valid() {
		switch task.State() {
		case threadpool.Complete, threadpool.Canceled:
		default:
			task.Wait()
		}
	}
	return slot
}

// Shutdown cancels any still-in-flight per-slot task and waits for each to
// reach a terminal state, one errgroup goroutine per slot. The per-slot
// goroutines report no errors, so Shutdown always returns nil.
func (p *Pipeline) Shutdown() error {
	var g errgroup.Group
	for i := range p.sk.slots {
		slot := i
		g.Go(func() error {
			task := p.sk.slots[slot].task
			if task.Valid() {
				task.Cancel()
				task.Wait()
			}
			return nil
		})
	}
	return g.Wait()
}
