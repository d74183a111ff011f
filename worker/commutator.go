package worker

import (
	"fmt"
	"sync"
)

// Commutator is a name/id registry of worker threads that lets any code
// route a closure onto a specific worker by id — the mechanism the asset
// pipeline uses to deliver a load callback on the caller's requested
// thread (e.g. "render").
type Commutator struct {
	mu      sync.RWMutex
	workers map[uint8]*Thread
	names   map[string]uint8
	nextID  uint8
}

func NewCommutator() *Commutator {
	return &Commutator{
		workers: make(map[uint8]*Thread),
		names:   make(map[string]uint8),
	}
}

// EmplaceWorker registers w under the given name and returns its
// commutation id.
func (c *Commutator) EmplaceWorker(name string, w *Thread) (uint8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.names[name]; exists {
		return 0, fmt.Errorf("worker commutator: name %q already registered", name)
	}
	id := c.nextID
	c.nextID++
	c.workers[id] = w
	c.names[name] = id
	return id, nil
}

func (c *Commutator) GetWorker(id uint8) (*Thread, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.workers[id]
	return w, ok
}

func (c *Commutator) IDByName(name string) (uint8, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.names[name]
	return id, ok
}

// IsCurrentThread reports whether the calling goroutine is the one
// driving the worker registered under id, so a component can check "am I
// on the render thread?" without ever holding a *Thread itself. Returns
// false if no worker is registered under id.
func (c *Commutator) IsCurrentThread(id uint8) bool {
	w, ok := c.GetWorker(id)
	if !ok {
		return false
	}
	return w.isCurrentGoroutine()
}

// EnqueueOn schedules fn to run on the named worker's own loop goroutine
// at the start of its next frame — the mechanism the asset pipeline uses
// to deliver a load callback (or a GPU-upload flush) on a specific
// thread rather than wherever the loader pool happened to run.
func (c *Commutator) EnqueueOn(id uint8, fn func()) error {
	w, ok := c.GetWorker(id)
	if !ok {
		return fmt.Errorf("worker commutator: no worker registered with id %d", id)
	}
	w.EnqueueClosure(fn)
	return nil
}
