package anim

import "errors"

const (
	maskTranslation uint8 = 1 << iota
	maskRotation
	maskScale
)

// boneTransform is the per-channel evaluated (or blended) result for one
// target node in one slot, grounded on MeshAnimator::Transform.
type boneTransform struct {
	mask        uint8
	targetNode  int32
	translation [3]float32
	rotation    [4]float32
	scale       [3]float32
}

// errCubicSplineUnsupported is returned by sample when a sampler uses
// CUBICSPLINE interpolation; the animation tree logs and ignores it
// rather than propagating it, since the rest of a clip's channels should
// still apply.
var errCubicSplineUnsupported = errors.New("anim: cubicspline interpolation not implemented")

// Animator is one node in the blend tree: either a leaf driving a Clip,
// or an internal blend node (Clip == nil) whose children are combined by
// AnimationTree.Calculate. Arena indices (not pointers) link it to its
// parent/children within the owning AnimationTree, the arena-index
// rendering of an intrusively-linked hierarchy.
type Animator struct {
	Weight, Speed float32
	Clip          *Clip

	parent, firstChild, nextSibling int32

	time      float32
	frameTime []float32
	transforms []map[int32]boneTransform
}

// NewAnimator returns a leaf or blend-node Animator sized for `latency`
// slots. Pass a nil Clip for an internal blend node.
func NewAnimator(clip *Clip, weight, speed float32, latency int) *Animator {
	if latency < 1 {
		latency = 1
	}
	return &Animator{
		Weight:      weight,
		Speed:       speed,
		Clip:        clip,
		parent:      -1,
		firstChild:  -1,
		nextSibling: -1,
		frameTime:   make([]float32, latency),
		transforms:  make([]map[int32]boneTransform, latency),
	}
}

// LinkAnimatorHierarchy wires parent/firstChild/nextSibling across a
// blend tree's animators from a flat parent-index array (parents[i] is
// the index of animators[i]'s parent, -1 for the root), the same shape
// LinkHierarchy uses for Node — so callers assemble a blend tree without
// touching the unexported intrusive-link fields directly. Returns the
// lowest-indexed root, or -1 if animators is empty.
func LinkAnimatorHierarchy(animators []*Animator, parents []int32) int32 {
	root := int32(-1)
	for i := len(animators) - 1; i >= 0; i-- {
		animators[i].parent = parents[i]
		animators[i].firstChild = -1
		animators[i].nextSibling = -1
	}
	for i := len(animators) - 1; i >= 0; i-- {
		p := parents[i]
		if p < 0 {
			root = int32(i)
			continue
		}
		animators[i].nextSibling = animators[p].firstChild
		animators[p].firstChild = int32(i)
	}
	return root
}

// advance accumulates dt*Speed into the animator's clip-time and records
// the resulting sample time for slot. Internal (Clip == nil) animators
// have no time of their own; only their weight matters to blending.
func (a *Animator) advance(dt float32, slot int) {
	if a.Clip == nil {
		return
	}
	a.time += a.Speed * dt
	if a.Clip.Duration > 0 {
		for a.time >= a.Clip.Duration {
			a.time -= a.Clip.Duration
		}
	}
	if slot < len(a.frameTime) {
		a.frameTime[slot] = a.time
	}
}

// sample evaluates every channel of the animator's clip at time t,
// writing the result into the slot's transform map. A sampler using
// CUBICSPLINE interpolation is skipped and errCubicSplineUnsupported is
// returned to the caller for logging; every other channel still gets
// evaluated.
func (a *Animator) sample(t float32, slot int) error {
	if a.Clip == nil {
		return nil
	}
	m := make(map[int32]boneTransform, len(a.Clip.Channels))
	var sawCubicSpline bool

	for _, ch := range a.Clip.Channels {
		if ch.Sampler < 0 || ch.Sampler >= len(a.Clip.Samplers) {
			continue
		}
		s := a.Clip.Samplers[ch.Sampler]
		i, ok := findKeyframeInterval(s.Inputs, t)
		if !ok {
			continue
		}
		if s.Interpolation == CubicSpline {
			sawCubicSpline = true
			continue
		}

		tr := m[ch.TargetNode]
		tr.targetNode = ch.TargetNode
		v0 := s.Outputs[i]

		switch s.Interpolation {
		case Step:
			applyChannelValue(&tr, ch.Path, v0)
		case Linear:
			v1 := s.Outputs[i+1]
			t0, t1 := s.Inputs[i], s.Inputs[i+1]
			mixT := float32(0)
			if t1 > t0 {
				mixT = (t - t0) / (t1 - t0)
			}
			applyChannelLinear(&tr, ch.Path, v0, v1, mixT)
		}
		m[ch.TargetNode] = tr
	}

	a.transforms[slot] = m
	if sawCubicSpline {
		return errCubicSplineUnsupported
	}
	return nil
}

func applyChannelValue(tr *boneTransform, path TransformPath, v [4]float32) {
	switch path {
	case PathTranslation:
		tr.mask |= maskTranslation
		tr.translation = vec3From4(v)
	case PathRotation:
		tr.mask |= maskRotation
		tr.rotation = v
	case PathScale:
		tr.mask |= maskScale
		tr.scale = vec3From4(v)
	}
}

func applyChannelLinear(tr *boneTransform, path TransformPath, v0, v1 [4]float32, t float32) {
	switch path {
	case PathTranslation:
		tr.mask |= maskTranslation
		if vec3Equal(v0, v1, quatEpsilon) {
			tr.translation = vec3From4(v0)
		} else {
			tr.translation = mixVec3(vec3From4(v0), vec3From4(v1), t)
		}
	case PathRotation:
		tr.mask |= maskRotation
		if quatEqual(v0, v1, quatEpsilon) {
			tr.rotation = v0
		} else {
			tr.rotation = normalizeQuat(slerpQuat(v0, v1, t))
		}
	case PathScale:
		tr.mask |= maskScale
		if vec3Equal(v0, v1, quatEpsilon) {
			tr.scale = vec3From4(v0)
		} else {
			tr.scale = mixVec3(vec3From4(v0), vec3From4(v1), t)
		}
	}
}

// blendTransform merges child transform tr1 into the parent's
// already-accumulated tr0 at mixing factor m, implementing the weighted
// internal-node blend: a channel present on the child but not yet present
// on the parent is copied as-is; one present on both is mixed/slerped.
func blendTransform(tr0, tr1 boneTransform, m float32) boneTransform {
	out := tr0
	out.targetNode = tr1.targetNode

	if tr1.mask&maskTranslation != 0 {
		if tr0.mask&maskTranslation != 0 {
			out.translation = mixVec3(tr1.translation, tr0.translation, m)
		} else {
			out.translation = tr1.translation
		}
	}
	if tr1.mask&maskRotation != 0 {
		if tr0.mask&maskRotation != 0 {
			out.rotation = normalizeQuat(slerpQuat(tr1.rotation, tr0.rotation, m))
		} else {
			out.rotation = tr1.rotation
		}
	}
	if tr1.mask&maskScale != 0 {
		if tr0.mask&maskScale != 0 {
			out.scale = mixVec3(tr1.scale, tr0.scale, m)
		} else {
			out.scale = tr1.scale
		}
	}
	out.mask = tr0.mask | tr1.mask
	return out
}
