package asset

import (
	"log/slog"
	"sync"

	"github.com/cpcf/forgekit/cache"
	"github.com/cpcf/forgekit/threadpool"
	"github.com/cpcf/forgekit/worker"
)

// Mesh is the loaded asset produced by MeshLoader. Uploaded becomes true
// once the GPU-upload step (delivered via the commutator onto the render
// worker) has run; a *Mesh handed to a caller before that point is the
// in-flight-coalescing case: the decode is still running on another
// goroutine.
type Mesh struct {
	File       string
	VertexData []float32
	IndexData  []uint32
	Uploaded   bool
}

// MeshRequest is the mesh-specific payload carried in Params[*Mesh].
type MeshRequest struct {
	File           string
	SemanticMask   uint32
	TargetWorkerID uint8 // commutator id the callback should be delivered on
}

// GLTFDecoder is the external collaborator boundary for parsing a mesh
// file into flat vertex/index buffers. Binary .glb containers, accessor
// indexing, and endian-swap handling are a real decoder's concern, not
// this package's; a minimal JSON-only reference decoder is provided in
// gltf.go.
type GLTFDecoder interface {
	Decode(file string, semanticMask uint32) ([]float32, []uint32, error)
}

type pendingMeshCallback struct {
	cb     Callback[*Mesh]
	target uint8
}

// MeshLoader implements Loader[*Mesh]. A cache keyed by file path dedups
// concurrent loads of the same file via cache.AsyncMap's
// singleflight-backed GetOrCreate, and an in-flight callback table covers
// the window between "decode has started" and "upload has finished" for
// callers that arrive mid-flight.
type MeshLoader struct {
	decoder    GLTFDecoder
	pool       *threadpool.Pool
	commutator *worker.Commutator
	logger     *slog.Logger

	meshCache *cache.AsyncMap[string, *Mesh]

	inflightMu sync.Mutex
	inflight   map[*Mesh][]pendingMeshCallback
}

func NewMeshLoader(decoder GLTFDecoder, pool *threadpool.Pool, commutator *worker.Commutator, logger *slog.Logger) *MeshLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &MeshLoader{
		decoder:    decoder,
		pool:       pool,
		commutator: commutator,
		logger:     logger,
		meshCache:  cache.New[string, *Mesh](),
		inflight:   make(map[*Mesh][]pendingMeshCallback),
	}
}

// addInFlightCallback queues cb until m finishes loading. If m was already
// published as uploaded (the winner drained the table first), cb is
// delivered directly instead.
func (l *MeshLoader) addInFlightCallback(m *Mesh, cb pendingMeshCallback) {
	l.inflightMu.Lock()
	if !m.Uploaded {
		l.inflight[m] = append(l.inflight[m], cb)
		l.inflightMu.Unlock()
		return
	}
	l.inflightMu.Unlock()
	l.deliver(cb.target, func() { cb.cb(m, LoadSuccess) })
}

func (l *MeshLoader) deliver(target uint8, fn func()) {
	if l.commutator == nil {
		fn()
		return
	}
	if err := l.commutator.EnqueueOn(target, fn); err != nil {
		// no worker registered under that id: run inline rather than
		// silently dropping the callback.
		fn()
	}
}

func (l *MeshLoader) executeInFlightCallbacks(m *Mesh) {
	l.inflightMu.Lock()
	pending := l.inflight[m]
	delete(l.inflight, m)
	l.inflightMu.Unlock()
	for _, p := range pending {
		cb := p.cb
		l.deliver(p.target, func() { cb(m, LoadSuccess) })
	}
}

// Load implements Loader[*Mesh]: a complete cached entry is delivered
// synchronously; an in-flight entry is coalesced; otherwise a fresh load
// is kicked off (inline or on the loader pool per params.Async) and every
// caller racing on the same key, winner included, is delivered through
// the same in-flight table; a caller that registers after the winner has
// published the mesh is delivered directly. params.Payload is expected to
// hold a MeshRequest.
func (l *MeshLoader) Load(out **Mesh, params Params[*Mesh], cb Callback[*Mesh]) {
	req, _ := params.Payload.(MeshRequest)
	file := req.File

	if existing, ok := l.meshCache.Get(file); ok && existing.Uploaded {
		*out = existing
		cb(existing, LoadSuccess)
		return
	}
	if existing, ok := l.meshCache.Get(file); ok {
		// present but not yet uploaded: coalesce onto the in-flight table
		l.addInFlightCallback(existing, pendingMeshCallback{cb: cb, target: req.TargetWorkerID})
		*out = existing
		return
	}

	doLoad := func(token *threadpool.CancellationToken) {
		mesh := &Mesh{File: file}
		created, err := l.meshCache.GetOrCreate(file, func() (*Mesh, error) {
			return mesh, nil
		})
		if err != nil {
			l.deliver(req.TargetWorkerID, func() { cb(nil, LoadError) })
			return
		}
		l.addInFlightCallback(created, pendingMeshCallback{cb: cb, target: req.TargetWorkerID})

		// Only the caller whose placeholder actually won the race
		// decodes; every other racer registered its callback above and
		// is served by the winner's executeInFlightCallbacks (or was
		// delivered directly if the winner had already finished).
		if created != mesh {
			return
		}
		if token != nil && token.IsCancelled() {
			return
		}
		verts, idx, err := l.decoder.Decode(file, req.SemanticMask)
		if err != nil {
			l.inflightMu.Lock()
			pending := l.inflight[created]
			delete(l.inflight, created)
			l.inflightMu.Unlock()
			for _, p := range pending {
				cb := p.cb
				l.deliver(p.target, func() { cb(nil, LoadError) })
			}
			l.meshCache.Erase(file)
			return
		}
		l.inflightMu.Lock()
		created.VertexData = verts
		created.IndexData = idx
		created.Uploaded = true
		l.inflightMu.Unlock()
		l.executeInFlightCallbacks(created)
	}

	if params.Async {
		threadpool.EnqueueVoid(l.pool, threadpool.Common, doLoad)
	} else {
		doLoad(nil)
	}
	if cached, ok := l.meshCache.Get(file); ok {
		*out = cached
	}
}

func (l *MeshLoader) Cleanup() error {
	l.inflightMu.Lock()
	l.inflight = make(map[*Mesh][]pendingMeshCallback)
	l.inflightMu.Unlock()
	return nil
}
