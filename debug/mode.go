// Package debug implements the leveled assertion/logging mode used to
// distinguish programmer errors (missing loader, missing module, invalid
// configuration) from ordinary runtime failures. In debug mode these
// conditions panic; in release mode they are logged and the caller falls
// back to a safe default.
package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

type DebugLevel int

const (
	LevelOff DebugLevel = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (dl DebugLevel) String() string {
	switch dl {
	case LevelOff:
		return "OFF"
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

func isValidDebugLevel(level DebugLevel) bool {
	return level >= LevelOff && level <= LevelTrace
}

// Mode controls both structured logging verbosity and whether programmer
// errors (asserted via Assert) panic or degrade gracefully.
type Mode struct {
	level           DebugLevel
	output          io.Writer
	logger          *slog.Logger
	enableProfiling bool
	enableMetrics   bool
	startTime       time.Time
	mu              sync.RWMutex
}

type Option func(*Mode)

func WithLevel(level DebugLevel) Option {
	return func(dm *Mode) {
		if isValidDebugLevel(level) {
			dm.level = level
		} else {
			dm.level = LevelInfo
		}
	}
}

func WithOutput(output io.Writer) Option {
	return func(dm *Mode) { dm.output = output }
}

func WithProfiling(enable bool) Option {
	return func(dm *Mode) { dm.enableProfiling = enable }
}

func WithMetrics(enable bool) Option {
	return func(dm *Mode) { dm.enableMetrics = enable }
}

func New(opts ...Option) *Mode {
	dm := &Mode{
		level:     LevelInfo,
		output:    os.Stderr,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(dm)
	}
	dm.setupLogger()
	return dm
}

func (dm *Mode) setupLogger() {
	handler := slog.NewTextHandler(dm.output, &slog.HandlerOptions{
		Level:     dm.mapToSlogLevel(),
		AddSource: dm.level >= LevelDebug,
	})
	dm.logger = slog.New(handler)
}

func (dm *Mode) mapToSlogLevel() slog.Level {
	switch dm.level {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	case LevelDebug, LevelTrace:
		return slog.LevelDebug
	default:
		return slog.LevelError
	}
}

func (dm *Mode) IsEnabled(level DebugLevel) bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.level >= level
}

func (dm *Mode) Level() DebugLevel {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.level
}

func (dm *Mode) Logger() *slog.Logger { return dm.logger }

func (dm *Mode) SetLevel(level DebugLevel) error {
	if !isValidDebugLevel(level) {
		return fmt.Errorf("invalid debug level: %d (must be between %d and %d)", level, LevelOff, LevelTrace)
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.level = level
	dm.setupLogger()
	return nil
}

func (dm *Mode) Error(msg string, args ...any) {
	if dm.IsEnabled(LevelError) {
		dm.logger.Error(msg, args...)
	}
}

func (dm *Mode) Warn(msg string, args ...any) {
	if dm.IsEnabled(LevelWarn) {
		dm.logger.Warn(msg, args...)
	}
}

func (dm *Mode) Info(msg string, args ...any) {
	if dm.IsEnabled(LevelInfo) {
		dm.logger.Info(msg, args...)
	}
}

func (dm *Mode) Debug(msg string, args ...any) {
	if dm.IsEnabled(LevelDebug) {
		dm.logger.Debug(msg, args...)
	}
}

func (dm *Mode) Trace(msg string, args ...any) {
	if dm.IsEnabled(LevelTrace) {
		dm.logger.Debug("[TRACE] "+msg, args...)
	}
}

// Assert is the programmer-error boundary named in the engine's error
// handling policy: missing loaders, missing modules, and malformed config
// are asserted here. In debug mode (LevelDebug or above) a failed
// assertion panics immediately; otherwise it is logged at Error and the
// caller is expected to fall back to a safe default.
func (dm *Mode) Assert(cond bool, msg string, args ...any) {
	if cond {
		return
	}
	if dm.IsEnabled(LevelDebug) {
		panic(fmt.Sprintf("assertion failed: %s %v", msg, args))
	}
	dm.Error(msg, args...)
}

func (dm *Mode) GetStats() Stats {
	return Stats{
		Level:            dm.level,
		StartTime:        dm.startTime,
		Uptime:           time.Since(dm.startTime),
		ProfilingEnabled: dm.enableProfiling,
		MetricsEnabled:   dm.enableMetrics,
	}
}

type Stats struct {
	Level            DebugLevel
	StartTime        time.Time
	Uptime           time.Duration
	ProfilingEnabled bool
	MetricsEnabled   bool
}

func (s Stats) String() string {
	return fmt.Sprintf("Debug Stats: Level=%s, Uptime=%v, Profiling=%v, Metrics=%v",
		s.Level, s.Uptime, s.ProfilingEnabled, s.MetricsEnabled)
}

// Context tracks a single named operation (a task run, an asset load, a
// frame) for Debug/Trace logging with elapsed-time bookkeeping.
type Context struct {
	mode       *Mode
	operation  string
	startTime  time.Time
	attributes map[string]any
	mu         sync.RWMutex
}

func (dm *Mode) NewContext(operation string) *Context {
	return &Context{
		mode:       dm,
		operation:  operation,
		startTime:  time.Now(),
		attributes: make(map[string]any),
	}
}

func (dc *Context) SetAttribute(key string, value any) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.attributes[key] = value
}

func (dc *Context) attrArgs(extra ...any) []any {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	args := []any{"operation", dc.operation, "elapsed", time.Since(dc.startTime)}
	args = append(args, extra...)
	for k, v := range dc.attributes {
		args = append(args, k, v)
	}
	return args
}

func (dc *Context) Info(msg string, args ...any) {
	if dc.mode.IsEnabled(LevelInfo) {
		dc.mode.Info(msg, dc.attrArgs(args...)...)
	}
}

func (dc *Context) Debug(msg string, args ...any) {
	if dc.mode.IsEnabled(LevelDebug) {
		dc.mode.Debug(msg, dc.attrArgs(args...)...)
	}
}

func (dc *Context) Complete() {
	dc.mode.Debug("operation completed", dc.attrArgs()...)
}

func (dc *Context) CompleteWithError(err error) {
	dc.mode.Error("operation failed", dc.attrArgs("error", err)...)
}
