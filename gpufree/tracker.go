package gpufree

import (
	"fmt"
	"sync"
)

// TextureState tracks a texture entry's lifecycle in the in-memory cache.
type TextureState int

const (
	Unknown TextureState = iota
	Loaded
	Evicted
)

func (s TextureState) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Evicted:
		return "evicted"
	default:
		return "unknown"
	}
}

type trackedTexture struct {
	resource     Resource
	refs         int32
	storeForever bool
	state        TextureState
}

// TextureTracker is a ref-counted registry of loaded GPU resources keyed
// by cache key (typically the source file path). Track registers a new
// entry at refcount 1; every other caller that reuses the cached asset
// calls Retain; Release drops the refcount and, at zero, either evicts
// the resource into a Queue (DrainAuto) or leaves it tracked for a report
// (DrainReport) depending on mode — unless the entry is marked
// storeForever, in which case only EvictForever can remove it.
type TextureTracker struct {
	mu    sync.Mutex
	items map[string]*trackedTexture
	queue *Queue
	mode  DrainMode
}

func NewTextureTracker(queue *Queue, mode DrainMode) *TextureTracker {
	return &TextureTracker{
		items: make(map[string]*trackedTexture),
		queue: queue,
		mode:  mode,
	}
}

// Track registers a newly-loaded resource at refcount 1. Calling Track
// again for a key that is already tracked is a no-op that returns false.
func (t *TextureTracker) Track(key string, res Resource, storeForever bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.items[key]; exists {
		return false
	}
	t.items[key] = &trackedTexture{resource: res, refs: 1, storeForever: storeForever, state: Loaded}
	return true
}

func (t *TextureTracker) Retain(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.items[key]
	if !ok || e.state != Loaded {
		return false
	}
	e.refs++
	return true
}

// Release drops the refcount for key. At zero — unless the entry is
// store_forever — the resource is submitted to the deferred-delete queue
// (DrainAuto) or merely marked Evicted for reporting (DrainReport);
// DrainDisabled releases nothing regardless of refcount.
func (t *TextureTracker) Release(key string) (evicted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.items[key]
	if !ok || e.state != Loaded {
		return false
	}
	e.refs--
	if e.refs > 0 || e.storeForever || t.mode == DrainDisabled {
		return false
	}
	e.state = Evicted
	if t.mode == DrainAuto {
		t.queue.MarkToDelete(e.resource)
		delete(t.items, key)
	}
	return true
}

// EvictForever explicitly evicts a store_forever entry regardless of its
// refcount — the only way such an entry is ever removed.
func (t *TextureTracker) EvictForever(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.items[key]
	if !ok {
		return fmt.Errorf("gpufree: no tracked texture for key %q", key)
	}
	t.queue.MarkToDelete(e.resource)
	delete(t.items, key)
	return nil
}

func (t *TextureTracker) State(key string) (TextureState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.items[key]
	if !ok {
		return Unknown, false
	}
	return e.state, true
}

func (t *TextureTracker) RefCount(key string) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.items[key]
	if !ok {
		return 0
	}
	return e.refs
}

func (t *TextureTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}
