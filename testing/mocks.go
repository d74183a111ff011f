package testing

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/cpcf/forgekit/gpufree"
)

type MockFS struct {
	files map[string]MockFile
	dirs  map[string]MockDir
	mu    sync.RWMutex
}

type MockFile struct {
	Name    string
	Content []byte
	ModTime time.Time
	Mode    fs.FileMode
}

type MockDir struct {
	Name    string
	Entries []fs.DirEntry
	ModTime time.Time
	Mode    fs.FileMode
}

type MockDirEntry struct {
	name    string
	isDir   bool
	modTime time.Time
	mode    fs.FileMode
	size    int64
}

type MockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func NewMockFS() *MockFS {
	return &MockFS{
		files: make(map[string]MockFile),
		dirs:  make(map[string]MockDir),
	}
}

func (mfs *MockFS) AddFile(path string, content string) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	mfs.files[path] = MockFile{
		Name:    path,
		Content: []byte(content),
		ModTime: time.Now(),
		Mode:    0o644,
	}
}

func (mfs *MockFS) AddFileWithMode(path string, content string, mode fs.FileMode) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	mfs.files[path] = MockFile{
		Name:    path,
		Content: []byte(content),
		ModTime: time.Now(),
		Mode:    mode,
	}
}

func (mfs *MockFS) AddDir(path string) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	mfs.dirs[path] = MockDir{
		Name:    path,
		Entries: make([]fs.DirEntry, 0),
		ModTime: time.Now(),
		Mode:    0o755,
	}
}

func (mfs *MockFS) RemoveFile(path string) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	delete(mfs.files, path)
}

func (mfs *MockFS) RemoveDir(path string) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	delete(mfs.dirs, path)
}

func (mfs *MockFS) Open(name string) (fs.File, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	if file, exists := mfs.files[name]; exists {
		return &MockFileHandle{
			file:   file,
			offset: 0,
		}, nil
	}

	if dir, exists := mfs.dirs[name]; exists {
		return &MockDirHandle{
			dir: dir,
		}, nil
	}

	return nil, fmt.Errorf("file not found: %s", name)
}

func (mfs *MockFS) Stat(name string) (fs.FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	if file, exists := mfs.files[name]; exists {
		return MockFileInfo{
			name:    file.Name,
			size:    int64(len(file.Content)),
			mode:    file.Mode,
			modTime: file.ModTime,
			isDir:   false,
		}, nil
	}

	if dir, exists := mfs.dirs[name]; exists {
		return MockFileInfo{
			name:    dir.Name,
			size:    0,
			mode:    dir.Mode,
			modTime: dir.ModTime,
			isDir:   true,
		}, nil
	}

	return nil, fmt.Errorf("file not found: %s", name)
}

func (mfs *MockFS) ReadFile(name string) ([]byte, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	if file, exists := mfs.files[name]; exists {
		content := make([]byte, len(file.Content))
		copy(content, file.Content)
		return content, nil
	}

	return nil, fmt.Errorf("file not found: %s", name)
}

func (mfs *MockFS) ReadDir(name string) ([]fs.DirEntry, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	if dir, exists := mfs.dirs[name]; exists {
		entries := make([]fs.DirEntry, len(dir.Entries))
		copy(entries, dir.Entries)
		return entries, nil
	}

	return nil, fmt.Errorf("directory not found: %s", name)
}

func (mfs *MockFS) WalkDir(root string, fn fs.WalkDirFunc) error {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	visited := make(map[string]bool)

	var walk func(path string) error
	walk = func(path string) error {
		if visited[path] {
			return nil
		}
		visited[path] = true

		if file, exists := mfs.files[path]; exists {
			entry := MockDirEntry{
				name:    file.Name,
				isDir:   false,
				modTime: file.ModTime,
				mode:    file.Mode,
				size:    int64(len(file.Content)),
			}
			return fn(path, entry, nil)
		}

		if dir, exists := mfs.dirs[path]; exists {
			entry := MockDirEntry{
				name:    dir.Name,
				isDir:   true,
				modTime: dir.ModTime,
				mode:    dir.Mode,
				size:    0,
			}
			if err := fn(path, entry, nil); err != nil {
				return err
			}

			for _, childEntry := range dir.Entries {
				childPath := path + "/" + childEntry.Name()
				if err := walk(childPath); err != nil {
					return err
				}
			}
		}

		return nil
	}

	return walk(root)
}

type MockFileHandle struct {
	file   MockFile
	offset int
}

func (mfh *MockFileHandle) Stat() (fs.FileInfo, error) {
	return MockFileInfo{
		name:    mfh.file.Name,
		size:    int64(len(mfh.file.Content)),
		mode:    mfh.file.Mode,
		modTime: mfh.file.ModTime,
		isDir:   false,
	}, nil
}

func (mfh *MockFileHandle) Read(b []byte) (int, error) {
	if mfh.offset >= len(mfh.file.Content) {
		return 0, fmt.Errorf("EOF")
	}

	n := copy(b, mfh.file.Content[mfh.offset:])
	mfh.offset += n
	return n, nil
}

func (mfh *MockFileHandle) Close() error {
	return nil
}

type MockDirHandle struct {
	dir MockDir
}

func (mdh *MockDirHandle) Stat() (fs.FileInfo, error) {
	return MockFileInfo{
		name:    mdh.dir.Name,
		size:    0,
		mode:    mdh.dir.Mode,
		modTime: mdh.dir.ModTime,
		isDir:   true,
	}, nil
}

func (mdh *MockDirHandle) Read([]byte) (int, error) {
	return 0, fmt.Errorf("is a directory")
}

func (mdh *MockDirHandle) Close() error {
	return nil
}

func (mde MockDirEntry) Name() string {
	return mde.name
}

func (mde MockDirEntry) IsDir() bool {
	return mde.isDir
}

func (mde MockDirEntry) Type() fs.FileMode {
	return mde.mode
}

func (mde MockDirEntry) Info() (fs.FileInfo, error) {
	return MockFileInfo{
		name:    mde.name,
		size:    mde.size,
		mode:    mde.mode,
		modTime: mde.modTime,
		isDir:   mde.isDir,
	}, nil
}

func (mfi MockFileInfo) Name() string {
	return mfi.name
}

func (mfi MockFileInfo) Size() int64 {
	return mfi.size
}

func (mfi MockFileInfo) Mode() fs.FileMode {
	return mfi.mode
}

func (mfi MockFileInfo) ModTime() time.Time {
	return mfi.modTime
}

func (mfi MockFileInfo) IsDir() bool {
	return mfi.isDir
}

func (mfi MockFileInfo) Sys() any {
	return nil
}

// LogRecorder is a slog.Handler that captures every record instead of
// writing it anywhere, so a test can assert on what an Engine (or any
// forgekit component) logged without parsing text output.
type LogRecorder struct {
	mu      sync.RWMutex
	entries []LogEntry
	attrs   []slog.Attr
	groups  []string
}

type LogEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
	Time    time.Time
}

func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

// Logger wraps the recorder in a *slog.Logger, ready to hand to any
// forgekit constructor's WithLogger option.
func (lr *LogRecorder) Logger() *slog.Logger {
	return slog.New(lr)
}

func (lr *LogRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (lr *LogRecorder) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+len(lr.attrs))
	for _, a := range lr.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.entries = append(lr.entries, LogEntry{
		Level:   r.Level,
		Message: r.Message,
		Attrs:   attrs,
		Time:    r.Time,
	})
	return nil
}

func (lr *LogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogRecorder{entries: lr.entries, attrs: append(append([]slog.Attr{}, lr.attrs...), attrs...), groups: lr.groups}
}

func (lr *LogRecorder) WithGroup(name string) slog.Handler {
	return &LogRecorder{entries: lr.entries, attrs: lr.attrs, groups: append(append([]string{}, lr.groups...), name)}
}

func (lr *LogRecorder) Entries() []LogEntry {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	out := make([]LogEntry, len(lr.entries))
	copy(out, lr.entries)
	return out
}

func (lr *LogRecorder) HasMessage(message string) bool {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	for _, e := range lr.entries {
		if e.Message == message {
			return true
		}
	}
	return false
}

func (lr *LogRecorder) CountByLevel(level slog.Level) int {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	n := 0
	for _, e := range lr.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// MockRenderer records every call made against it instead of touching a
// real graphics backend, matching engine.Renderer's three-method surface.
type MockRenderer struct {
	mu           sync.RWMutex
	marked       []gpufree.Resource
	buffers      []int
	submits      [][]byte
	nextHandle   uint64
	createBufErr error
	submitErr    error
}

func NewMockRenderer() *MockRenderer {
	return &MockRenderer{}
}

func (mr *MockRenderer) SetCreateBufferError(err error) { mr.createBufErr = err }
func (mr *MockRenderer) SetSubmitError(err error)       { mr.submitErr = err }

func (mr *MockRenderer) MarkToDelete(res gpufree.Resource) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.marked = append(mr.marked, res)
}

func (mr *MockRenderer) CreateBuffer(size int) (uint64, error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.createBufErr != nil {
		return 0, mr.createBufErr
	}
	mr.nextHandle++
	mr.buffers = append(mr.buffers, size)
	return mr.nextHandle, nil
}

func (mr *MockRenderer) Submit(cmds []byte) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.submitErr != nil {
		return mr.submitErr
	}
	cp := make([]byte, len(cmds))
	copy(cp, cmds)
	mr.submits = append(mr.submits, cp)
	return nil
}

func (mr *MockRenderer) MarkedForDelete() []gpufree.Resource {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make([]gpufree.Resource, len(mr.marked))
	copy(out, mr.marked)
	return out
}

func (mr *MockRenderer) SubmitCount() int {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return len(mr.submits)
}

// MockDevice satisfies engine.Device, recording loop start/stop instead of
// owning a real platform message loop.
type MockDevice struct {
	mu               sync.RWMutex
	started, stopped int
	startErr         error
}

func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

func (md *MockDevice) SetStartError(err error) { md.startErr = err }

func (md *MockDevice) StartLoop() error {
	md.mu.Lock()
	defer md.mu.Unlock()
	md.started++
	return md.startErr
}

func (md *MockDevice) StopLoop() error {
	md.mu.Lock()
	defer md.mu.Unlock()
	md.stopped++
	return nil
}

func (md *MockDevice) StartCount() int {
	md.mu.RLock()
	defer md.mu.RUnlock()
	return md.started
}

func (md *MockDevice) StopCount() int {
	md.mu.RLock()
	defer md.mu.RUnlock()
	return md.stopped
}
