// Package asset implements the asset-loading pipeline: typed loaders
// registered against an asset type, synchronous or pool-dispatched
// loading, cache-backed dedup, and in-flight callback coalescing so that
// N concurrent requests for the same not-yet-loaded asset share one
// load and each still receives its own callback.
package asset

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/cpcf/forgekit/threadpool"
	"golang.org/x/sync/errgroup"
)

// LoadResult is delivered to every Callback: a load can succeed, fail,
// or be rejected outright because no loader is registered for the type.
type LoadResult uint8

const (
	LoadSuccess LoadResult = iota
	LoadError
	LoaderNoExist
)

func (r LoadResult) String() string {
	switch r {
	case LoadSuccess:
		return "success"
	case LoadError:
		return "error"
	case LoaderNoExist:
		return "loader_no_exist"
	default:
		return "unknown"
	}
}

// Params is the per-load request: Async selects pool-dispatched vs.
// inline loading, UseCache selects whether the loader is allowed to
// reuse/share an existing cached value, and Payload carries the
// loader-specific request data (a file path, a decode buffer, ...); each
// loader type-asserts it to its own request type (MeshRequest,
// TextureRequest).
type Params[T any] struct {
	Async    bool
	UseCache bool
	Payload  any
}

// Callback receives the final (or coalesced) result of a load request.
type Callback[T any] func(asset T, result LoadResult)

// Loader is implemented once per asset type. Load must itself decide
// whether to honor params.Async (by dispatching onto a pool) and must
// invoke cb exactly once, including for its own internally-coalesced
// in-flight callers.
type Loader[T any] interface {
	Load(out *T, params Params[T], cb Callback[T])
	Cleanup() error
}

type erasedLoader interface {
	cleanup() error
}

type loaderBox[T any] struct {
	loader Loader[T]
}

func (b loaderBox[T]) cleanup() error { return b.loader.Cleanup() }

// Manager owns the loader registry and the thread pool loaders may
// dispatch async work onto.
type Manager struct {
	mu      sync.RWMutex
	loaders map[reflect.Type]erasedLoader
	pool    *threadpool.Pool
	logger  *slog.Logger
	mode    *debugAssertMode
}

// debugAssertMode is a tiny seam so Manager doesn't have to import the
// debug package directly for its one assertion (missing loader); kept as
// a function value so callers can wire engine/debug.Mode.Assert in.
type debugAssertMode struct {
	assert func(cond bool, msg string, args ...any)
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithAssert wires a programmer-error assertion hook (typically
// debug.Mode.Assert) invoked when LoadAsset is called for a type with no
// registered loader.
func WithAssert(assert func(cond bool, msg string, args ...any)) Option {
	return func(m *Manager) { m.mode = &debugAssertMode{assert: assert} }
}

func NewManager(loaderThreads int, opts ...Option) *Manager {
	m := &Manager{
		loaders: make(map[reflect.Type]erasedLoader),
		pool:    threadpool.New(loaderThreads),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Pool() *threadpool.Pool { return m.pool }

func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// RegisterLoader installs l as the loader for asset type T, replacing any
// previously registered loader (whose Cleanup is called first).
func RegisterLoader[T any](m *Manager, l Loader[T]) {
	key := typeKey[T]()
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.loaders[key]; ok {
		if err := existing.cleanup(); err != nil {
			m.logger.Warn("asset: replaced loader's cleanup failed", "type", key, "error", err)
		}
	}
	m.loaders[key] = loaderBox[T]{loader: l}
}

func getLoader[T any](m *Manager) (Loader[T], bool) {
	key := typeKey[T]()
	m.mu.RLock()
	defer m.mu.RUnlock()
	boxed, ok := m.loaders[key]
	if !ok {
		return nil, false
	}
	box, ok := boxed.(loaderBox[T])
	if !ok {
		return nil, false
	}
	return box.loader, true
}

// LoadAsset looks up the loader for T and delegates to it. If no loader
// is registered, cb is called with LoaderNoExist and a zero-valued T is
// returned — this is the one place a missing-module condition reaches
// the engine's debug-assertion boundary rather than panicking outright.
func LoadAsset[T any](m *Manager, params Params[T], cb Callback[T]) T {
	var out T
	loader, ok := getLoader[T](m)
	if !ok {
		msg := fmt.Sprintf("asset: no loader registered for %s", typeKey[T]())
		if m.mode != nil {
			m.mode.assert(false, msg)
		} else {
			m.logger.Warn(msg)
		}
		cb(out, LoaderNoExist)
		return out
	}
	loader.Load(&out, params, cb)
	return out
}

// Close tears down every registered loader concurrently via errgroup,
// then stops the loader pool. It returns the first Cleanup error, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	loaders := make([]erasedLoader, 0, len(m.loaders))
	for _, l := range m.loaders {
		loaders = append(loaders, l)
	}
	m.loaders = make(map[reflect.Type]erasedLoader)
	m.mu.Unlock()

	var g errgroup.Group
	for _, l := range loaders {
		l := l
		g.Go(l.cleanup)
	}
	err := g.Wait()
	m.pool.Stop()
	return err
}
