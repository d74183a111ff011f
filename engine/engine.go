// Package engine is forgekit's facade: it wires the thread pool, asset
// manager, deferred GPU-resource queue, worker commutator, and paced
// render/update workers into one Engine, and exposes a reflect.Type-keyed
// module registry so application-specific state (an animation pipeline,
// a scene graph, anything) can be attached without the facade needing to
// know its type ahead of time.
package engine

import (
	"context"
	"log/slog"
	"reflect"
	"runtime"
	"sync"
	"time"

	"github.com/cpcf/forgekit/asset"
	"github.com/cpcf/forgekit/debug"
	"github.com/cpcf/forgekit/gpufree"
	"github.com/cpcf/forgekit/threadpool"
	"github.com/cpcf/forgekit/worker"
)

// Renderer is the collaborator the core hands deferred GPU-resource
// deletions and buffer/command submission to. Its implementation
// (an actual graphics backend) is out of scope.
type Renderer interface {
	MarkToDelete(gpufree.Resource)
	CreateBuffer(size int) (handle uint64, err error)
	Submit(cmds []byte) error
}

// FileManager reads asset bytes off of whatever storage backs them
// (disk, archive, network). Out of scope beyond this interface.
type FileManager interface {
	ReadFile(path string) ([]byte, error)
}

// Device owns the platform message loop (window events, input). Out of
// scope beyond this interface.
type Device interface {
	StartLoop() error
	StopLoop() error
}

// Engine is the wired-together core: a general-purpose thread pool, an
// asset manager with its own loader pool, a deferred GPU-resource queue,
// a commutator naming the render and update workers, those two workers
// themselves, and an open module registry for everything application-
// specific.
type Engine struct {
	logger *slog.Logger
	cfg    EngineConfig

	pool       *threadpool.Pool
	assets     *asset.Manager
	gpuQueue   *gpufree.Queue
	commutator *worker.Commutator

	renderWorker *worker.Thread
	updateWorker *worker.Thread

	debugMode *debug.Mode

	renderer Renderer
	files    FileManager
	device   Device

	modMu   sync.RWMutex
	modules map[reflect.Type]any
}

// New wires an Engine in dependency order: thread pool, asset manager
// (which owns its own loader pool), gpufree queue, commutator,
// then the render and update worker threads registered on it, logging
// each stage at Info as it comes online.
func New(opts ...Option) *Engine {
	b := &buildOptions{loaderThreads: 2, poolWorkers: 0}
	for _, opt := range opts {
		opt(b)
	}
	if b.poolWorkers <= 0 {
		b.poolWorkers = runtime.NumCPU()
	}

	e := &Engine{
		logger:    b.logger,
		debugMode: b.debugMode,
		cfg:       b.cfg,
		renderer:  b.renderer,
		files:     b.files,
		device:    b.device,
		modules:   make(map[reflect.Type]any),
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.debugMode == nil {
		e.debugMode = debug.New()
	}

	e.pool = threadpool.New(b.poolWorkers, threadpool.WithLogger(e.logger))
	e.logger.Info("engine: thread pool started", "workers", e.pool.Workers())

	e.assets = asset.NewManager(b.loaderThreads,
		asset.WithLogger(e.logger),
		asset.WithAssert(e.debugMode.Assert),
	)
	e.logger.Info("engine: asset manager started", "loader_threads", b.loaderThreads)

	e.gpuQueue = gpufree.NewQueue()
	e.logger.Info("engine: gpu free queue ready")

	e.commutator = worker.NewCommutator()

	e.renderWorker = worker.New(e.drawFrame,
		worker.WithLogger(e.logger),
		worker.WithTargetFrameTime(e.cfg.FPSLimitDraw.frameDuration()),
		worker.WithPacingPolicy(e.cfg.FPSLimitDraw.LimitType),
	)
	if _, err := e.commutator.EmplaceWorker("render", e.renderWorker); err != nil {
		e.logger.Error("engine: failed to register render worker", "err", err)
	}

	e.updateWorker = worker.New(e.updateFrame,
		worker.WithLogger(e.logger),
		worker.WithTargetFrameTime(e.cfg.FPSLimitUpdate.frameDuration()),
		worker.WithPacingPolicy(e.cfg.FPSLimitUpdate.LimitType),
	)
	if _, err := e.commutator.EmplaceWorker("update", e.updateWorker); err != nil {
		e.logger.Error("engine: failed to register update worker", "err", err)
	}
	e.logger.Info("engine: render/update workers registered")

	return e
}

// drawFrame and updateFrame are the default FrameFuncs for the render and
// update workers: by default they only drain linked task handles and
// commutated closures (the per-frame bookkeeping every worker.Thread does
// regardless of payload); an embedder wanting real per-frame work should
// register its own module (e.g. an *anim.Pipeline) and drive it from
// outside, via GetModule, or replace these workers entirely before Start.
func (e *Engine) drawFrame(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle) {
}

func (e *Engine) updateFrame(ctx context.Context, dt time.Duration, now time.Time, drained []threadpool.AnyHandle) {
}

// Pool returns the engine's general-purpose thread pool.
func (e *Engine) Pool() *threadpool.Pool { return e.pool }

// Assets returns the asset manager.
func (e *Engine) Assets() *asset.Manager { return e.assets }

// GPUFreeQueue returns the deferred GPU-resource deletion queue; an
// embedder's Renderer is expected to Drain it at a safe point each frame.
func (e *Engine) GPUFreeQueue() *gpufree.Queue { return e.gpuQueue }

// Commutator returns the render/update worker registry.
func (e *Engine) Commutator() *worker.Commutator { return e.commutator }

func (e *Engine) RenderWorker() *worker.Thread { return e.renderWorker }
func (e *Engine) UpdateWorker() *worker.Thread { return e.updateWorker }

func (e *Engine) DebugMode() *debug.Mode { return e.debugMode }

// Start launches the render and update worker loops, and the device's
// platform message loop if one was supplied.
func (e *Engine) Start() error {
	e.renderWorker.Run()
	e.updateWorker.Run()
	if e.device != nil {
		if err := e.device.StartLoop(); err != nil {
			return &ConfigError{Field: "device", Message: "failed to start loop", Err: err}
		}
	}
	e.logger.Info("engine: started")
	return nil
}

// Stop tears the engine down: stops the device loop, stops both workers,
// closes the asset manager (which cancels in-flight loads and stops its
// pool), and stops the general-purpose pool. Errors are collected, not
// short-circuited, so a failure in one stage doesn't skip cleanup of the
// rest.
func (e *Engine) Stop() error {
	merr := &MultiError{}
	if e.device != nil {
		if err := e.device.StopLoop(); err != nil {
			merr.Add("device", "failed to stop loop", err)
		}
	}
	e.renderWorker.Stop()
	e.updateWorker.Stop()
	if err := e.assets.Close(); err != nil {
		merr.Add("assets", "failed to close asset manager", err)
	}
	e.pool.Stop()
	e.logger.Info("engine: stopped")
	if merr.HasErrors() {
		return merr
	}
	return nil
}

func moduleKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// RegisterModule attaches v under type T to the engine's module registry,
// replacing any previously registered value of the same type.
func RegisterModule[T any](e *Engine, v T) {
	key := moduleKey[T]()
	e.modMu.Lock()
	defer e.modMu.Unlock()
	e.modules[key] = v
}

// GetModule retrieves the module registered under type T, the Go-idiomatic
// replacement for a static per-type id counter:
// reflect.Type is already a stable, comparable per-type identity, so no
// counter needs maintaining.
func GetModule[T any](e *Engine) (T, bool) {
	key := moduleKey[T]()
	e.modMu.RLock()
	defer e.modMu.RUnlock()
	v, ok := e.modules[key]
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return typed, true
}
