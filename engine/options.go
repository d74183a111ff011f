package engine

import (
	"log/slog"

	"github.com/cpcf/forgekit/debug"
)

// buildOptions accumulates everything an Option can set before New
// constructs the actual Engine and its collaborators; it exists so
// options can be applied before the thread pool, asset manager, and
// workers are built (their constructors need several of these values up
// front).
type buildOptions struct {
	logger    *slog.Logger
	debugMode *debug.Mode
	cfg       EngineConfig

	loaderThreads int
	poolWorkers   int

	renderer Renderer
	files    FileManager
	device   Device
}

type Option func(*buildOptions)

func WithLogger(logger *slog.Logger) Option {
	return func(b *buildOptions) { b.logger = logger }
}

func WithDebugMode(mode *debug.Mode) Option {
	return func(b *buildOptions) { b.debugMode = mode }
}

func WithConfig(cfg EngineConfig) Option {
	return func(b *buildOptions) { b.cfg = cfg }
}

// WithLoaderThreads sets the asset manager's own loader-pool size
// (a small dedicated pool, separate from the general-purpose one).
func WithLoaderThreads(n int) Option {
	return func(b *buildOptions) { b.loaderThreads = n }
}

// WithPoolWorkers sets the general-purpose thread pool's worker count.
// 0 or negative defers to New's hardware-concurrency default.
func WithPoolWorkers(n int) Option {
	return func(b *buildOptions) { b.poolWorkers = n }
}

func WithRenderer(r Renderer) Option {
	return func(b *buildOptions) { b.renderer = r }
}

func WithFileManager(f FileManager) Option {
	return func(b *buildOptions) { b.files = f }
}

func WithDevice(d Device) Option {
	return func(b *buildOptions) { b.device = d }
}
