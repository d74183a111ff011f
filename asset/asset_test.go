package asset

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cpcf/forgekit/gpufree"
)

func TestLoadAssetNoLoaderRegistered(t *testing.T) {
	m := NewManager(2)
	defer m.Close()

	var gotResult LoadResult
	LoadAsset(m, Params[*Mesh]{Payload: MeshRequest{File: "x.gltf"}}, func(a *Mesh, r LoadResult) {
		gotResult = r
	})
	if gotResult != LoaderNoExist {
		t.Fatalf("expected LoaderNoExist, got %s", gotResult)
	}
}

func newMeshDecoderFixture(t *testing.T) GLTFDecoder {
	t.Helper()
	dec, err := NewJSONGLTFDecoder(map[string][]byte{
		"cube.gltf": []byte(`{"positions":[0,0,0,1,1,1],"indices":[0,1,2]}`),
	})
	if err != nil {
		t.Fatalf("failed to build fixture decoder: %v", err)
	}
	return dec
}

func TestMeshLoaderSyncLoad(t *testing.T) {
	m := NewManager(2)
	defer m.Close()
	RegisterLoader[*Mesh](m, NewMeshLoader(newMeshDecoderFixture(t), m.Pool(), nil, nil))

	var result LoadResult
	var mesh *Mesh
	LoadAsset(m, Params[*Mesh]{Payload: MeshRequest{File: "cube.gltf"}}, func(a *Mesh, r LoadResult) {
		mesh, result = a, r
	})
	if result != LoadSuccess {
		t.Fatalf("expected LoadSuccess, got %s", result)
	}
	if len(mesh.VertexData) != 6 || len(mesh.IndexData) != 3 {
		t.Fatalf("unexpected mesh data: %+v", mesh)
	}
}

func TestMeshLoaderAsyncDedupRunsDecodeOnce(t *testing.T) {
	m := NewManager(4)
	defer m.Close()

	var decodeCalls atomic.Int64
	counting := countingDecoder{inner: newMeshDecoderFixture(t), calls: &decodeCalls}
	RegisterLoader[*Mesh](m, NewMeshLoader(counting, m.Pool(), nil, nil))

	var wg sync.WaitGroup
	var successes atomic.Int64
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			LoadAsset(m, Params[*Mesh]{Async: true, Payload: MeshRequest{File: "cube.gltf"}}, func(a *Mesh, r LoadResult) {
				if r == LoadSuccess {
					successes.Add(1)
				}
			})
		}()
	}
	wg.Wait()

	deadline := time.After(2 * time.Second)
	for successes.Load() < 10 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for all 10 callbacks, got %d", successes.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if decodeCalls.Load() != 1 {
		t.Fatalf("expected exactly 1 decode call across 10 racing loads, got %d", decodeCalls.Load())
	}
}

type countingDecoder struct {
	inner GLTFDecoder
	calls *atomic.Int64
}

func (d countingDecoder) Decode(file string, semanticMask uint32) ([]float32, []uint32, error) {
	d.calls.Add(1)
	return d.inner.Decode(file, semanticMask)
}

type fakeTextureDecoder struct{}

func (fakeTextureDecoder) Decode(key string) ([]byte, int, int, error) {
	return []byte{1, 2, 3, 4}, 2, 2, nil
}

type countingTextureDecoder struct {
	inner TextureDecoder
	calls *atomic.Int64
}

func (d countingTextureDecoder) Decode(key string) ([]byte, int, int, error) {
	d.calls.Add(1)
	return d.inner.Decode(key)
}

func TestTextureLoaderRetainAndEvict(t *testing.T) {
	m := NewManager(2)
	defer m.Close()

	q := gpufree.NewQueue()
	tracker := gpufree.NewTextureTracker(q, gpufree.DrainAuto)
	loader := NewTextureLoader(fakeTextureDecoder{}, m.Pool(), tracker, nil)
	RegisterLoader[*Texture](m, loader)

	var tex1, tex2 *Texture
	LoadAsset(m, Params[*Texture]{UseCache: true, Payload: TextureRequest{Key: "rock.png"}}, func(a *Texture, r LoadResult) {
		tex1 = a
	})
	LoadAsset(m, Params[*Texture]{UseCache: true, Payload: TextureRequest{Key: "rock.png"}}, func(a *Texture, r LoadResult) {
		tex2 = a
	})
	if tex1 != tex2 {
		t.Fatal("expected cache hit to return the same texture instance")
	}
	if tracker.RefCount("rock.png") != 2 {
		t.Fatalf("expected refcount 2 after two cached loads, got %d", tracker.RefCount("rock.png"))
	}

	tex1.Release()
	tex2.Release()
	if q.Pending() != 1 {
		t.Fatalf("expected resource queued for deferred delete after both releases, pending=%d", q.Pending())
	}
}

// TestTextureLoaderReloadsAfterStaleCacheEviction covers the race where a
// texture is evicted out from under the loader's own cache entry between
// the cache lookup and Retain: Load must not report LoadSuccess for the
// evicted resource, and must discard the stale entry so the next load
// actually decodes a fresh texture instead of repeating a phantom
// success forever.
func TestTextureLoaderReloadsAfterStaleCacheEviction(t *testing.T) {
	m := NewManager(2)
	defer m.Close()

	q := gpufree.NewQueue()
	tracker := gpufree.NewTextureTracker(q, gpufree.DrainAuto)
	var decodeCalls atomic.Int64
	decoder := countingTextureDecoder{inner: fakeTextureDecoder{}, calls: &decodeCalls}
	loader := NewTextureLoader(decoder, m.Pool(), tracker, nil)
	RegisterLoader[*Texture](m, loader)

	var first *Texture
	LoadAsset(m, Params[*Texture]{UseCache: true, Payload: TextureRequest{Key: "rock.png"}}, func(a *Texture, r LoadResult) {
		first = a
	})
	if decodeCalls.Load() != 1 {
		t.Fatalf("expected 1 decode call for the initial load, got %d", decodeCalls.Load())
	}

	// Simulate a concurrent Release dropping the entry to zero refcount
	// (and, under DrainAuto, evicting it out of the tracker entirely)
	// between some other caller's cache lookup and its Retain call.
	first.Release()
	if _, ok := tracker.State("rock.png"); ok {
		t.Fatal("expected tracker entry to be fully evicted after the only reference released")
	}

	var second *Texture
	var result LoadResult
	LoadAsset(m, Params[*Texture]{UseCache: true, Payload: TextureRequest{Key: "rock.png"}}, func(a *Texture, r LoadResult) {
		second, result = a, r
	})
	if result != LoadSuccess {
		t.Fatalf("expected LoadSuccess from the reload, got %s", result)
	}
	if second == first {
		t.Fatal("expected a freshly decoded texture, not the stale evicted instance")
	}
	if second.Pixels == nil {
		t.Fatal("expected the reloaded texture to carry decoded pixels")
	}
	if decodeCalls.Load() != 2 {
		t.Fatalf("expected a second decode call after the stale cache entry was discarded, got %d", decodeCalls.Load())
	}
	if got := tracker.RefCount("rock.png"); got != 1 {
		t.Fatalf("expected refcount 1 for the freshly tracked texture, got %d", got)
	}
}

func TestManagerReplacingLoaderCallsCleanup(t *testing.T) {
	m := NewManager(1)
	defer m.Close()

	var cleaned atomic.Bool
	RegisterLoader[*Mesh](m, cleanupTrackingLoader{cleaned: &cleaned})
	RegisterLoader[*Mesh](m, NewMeshLoader(newMeshDecoderFixture(t), m.Pool(), nil, nil))

	if !cleaned.Load() {
		t.Fatal("expected replaced loader's Cleanup to run")
	}
}

type cleanupTrackingLoader struct{ cleaned *atomic.Bool }

func (cleanupTrackingLoader) Load(out **Mesh, params Params[*Mesh], cb Callback[*Mesh]) {}
func (l cleanupTrackingLoader) Cleanup() error                                          { l.cleaned.Store(true); return nil }
