package anim

import (
	"testing"

	"github.com/cpcf/forgekit/threadpool"
)

func makeLinearClip(duration float32, target int32) *Clip {
	return &Clip{
		Duration: duration,
		Channels: []Channel{{TargetNode: target, Sampler: 0, Path: PathTranslation}},
		Samplers: []Sampler{{
			Inputs:        []float32{0, 1},
			Outputs:       [][4]float32{{0, 0, 0, 0}, {2, 0, 0, 0}},
			Interpolation: Linear,
		}},
	}
}

func TestAnimatorSampleLinearMix(t *testing.T) {
	a := NewAnimator(makeLinearClip(1, 0), 1, 1, 1)
	if err := a.sample(0.5, 0); err != nil {
		t.Fatalf("sample: %v", err)
	}
	tr := a.transforms[0][0]
	if tr.mask&maskTranslation == 0 {
		t.Fatal("expected translation bit set")
	}
	if tr.translation[0] != 1 {
		t.Fatalf("expected mixed translation.x == 1, got %v", tr.translation[0])
	}
}

func TestAnimatorSampleStepHoldsLeft(t *testing.T) {
	clip := &Clip{
		Duration: 1,
		Channels: []Channel{{TargetNode: 0, Sampler: 0, Path: PathScale}},
		Samplers: []Sampler{{
			Inputs:        []float32{0, 1},
			Outputs:       [][4]float32{{3, 3, 3, 0}, {9, 9, 9, 0}},
			Interpolation: Step,
		}},
	}
	a := NewAnimator(clip, 1, 1, 1)
	if err := a.sample(0.8, 0); err != nil {
		t.Fatalf("sample: %v", err)
	}
	tr := a.transforms[0][0]
	if tr.scale[0] != 3 {
		t.Fatalf("expected step to hold left value 3, got %v", tr.scale[0])
	}
}

func TestAnimatorSampleCubicSplineReportsAndIgnores(t *testing.T) {
	clip := &Clip{
		Duration: 1,
		Channels: []Channel{{TargetNode: 0, Sampler: 0, Path: PathRotation}},
		Samplers: []Sampler{{
			Inputs:        []float32{0, 1},
			Outputs:       [][4]float32{{0, 0, 0, 1}, {0, 0, 0, 1}},
			Interpolation: CubicSpline,
		}},
	}
	a := NewAnimator(clip, 1, 1, 1)
	if err := a.sample(0.5, 0); err == nil {
		t.Fatal("expected cubicspline to report an error")
	}
	if _, ok := a.transforms[0][0]; ok {
		t.Fatal("expected cubicspline channel to be skipped, not written")
	}
}

func TestAnimationTreeUpdateFastPathWhenRootWeightFull(t *testing.T) {
	root := NewAnimator(makeLinearClip(2, 0), 1, 1, 2)
	tree := NewAnimationTree([]*Animator{root}, 0, nil)

	tree.Update(0.5, 0)
	if root.frameTime[0] != 0.5 {
		t.Fatalf("expected frameTime 0.5, got %v", root.frameTime[0])
	}
}

func TestAnimationTreeBlendTwoChildren(t *testing.T) {
	childA := NewAnimator(makeLinearClip(1, 0), 0.5, 1, 1)
	childB := NewAnimator(makeLinearClip(1, 0), 0.5, 1, 1)
	root := NewAnimator(nil, 0.999, 1, 1)
	root.firstChild = 1
	childA.nextSibling = 2
	animators := []*Animator{root, childA, childB}
	tree := NewAnimationTree(animators, 0, nil)

	tree.Update(1, 0) // dt=1, both children at t=1 -> clamped into [0,duration)
	tree.Calculate(0)

	if _, ok := root.transforms[0][0]; !ok {
		t.Fatal("expected root to have a blended transform for target node 0")
	}
}

func TestSkeletonWorldMatrixPropagation(t *testing.T) {
	parent := NewNode()
	child := NewNode()
	parent.firstChild = 1
	child.parent = 0
	parent.Translation = [3]float32{1, 0, 0}
	parent.localDirty = true
	child.Translation = [3]float32{0, 2, 0}
	child.localDirty = true

	sk := NewSkeleton([]Node{parent, child}, 0, nil, nil, 1)
	sk.slots[0].nodes[0] = parent
	sk.slots[0].nodes[1] = child
	sk.recomputeWorldMatrices(0)

	world := sk.Node(0, 1).World()
	if world[12] != 1 || world[13] != 2 {
		t.Fatalf("expected child world translation (1,2,0), got (%v,%v,%v)", world[12], world[13], world[14])
	}
}

func TestPipelineUpdateAndPreRender(t *testing.T) {
	pool := threadpool.New(2)
	defer pool.Stop()

	n0 := NewNode()
	sk := NewSkeleton([]Node{n0}, 0, nil, nil, 2)
	root := NewAnimator(makeLinearClip(1, 0), 1, 1, 2)
	tree := NewAnimationTree([]*Animator{root}, 0, nil)
	p := NewPipeline(pool, tree, sk)

	p.UpdateAnimation(0.5)
	slot := p.PreRender()
	if slot < 0 || slot >= sk.Latency() {
		t.Fatalf("unexpected render slot %d", slot)
	}
}

func TestPipelineShutdownCancelsOutstandingTasks(t *testing.T) {
	pool := threadpool.New(2)
	defer pool.Stop()

	n0 := NewNode()
	sk := NewSkeleton([]Node{n0}, 0, nil, nil, 2)
	root := NewAnimator(makeLinearClip(1, 0), 1, 1, 2)
	tree := NewAnimationTree([]*Animator{root}, 0, nil)
	p := NewPipeline(pool, tree, sk)

	p.UpdateAnimation(0.5)
	if err := p.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestLinkHierarchyBuildsParentChildLinks(t *testing.T) {
	nodes := []Node{NewNode(), NewNode(), NewNode()}
	root := LinkHierarchy(nodes, []int32{-1, 0, 0})
	if root != 0 {
		t.Fatalf("expected root 0, got %d", root)
	}
	if nodes[0].firstChild != 1 {
		t.Fatalf("expected node 0's first child (lowest index) to be 1, got %d", nodes[0].firstChild)
	}
	if nodes[1].nextSibling != 2 {
		t.Fatalf("expected node 1 to chain to sibling 2, got %d", nodes[1].nextSibling)
	}
	if nodes[1].parent != 0 || nodes[2].parent != 0 {
		t.Fatal("expected both children to have parent 0")
	}

	var seen []int32
	walkPreOrderNodes(nodes, root, func(idx int32) bool {
		seen = append(seen, idx)
		return true
	})
	if len(seen) != 3 {
		t.Fatalf("expected to visit all 3 nodes, visited %v", seen)
	}
}

func TestLinkAnimatorHierarchyBuildsParentChildLinks(t *testing.T) {
	animators := []*Animator{
		NewAnimator(nil, 1, 0, 1),
		NewAnimator(makeLinearClip(1, 0), 0.5, 1, 1),
		NewAnimator(makeLinearClip(1, 1), 0.5, 1, 1),
	}
	root := LinkAnimatorHierarchy(animators, []int32{-1, 0, 0})
	if root != 0 {
		t.Fatalf("expected root 0, got %d", root)
	}
	if animators[1].parent != 0 || animators[2].parent != 0 {
		t.Fatal("expected both leaves to have parent 0")
	}

	order := postOrderAnimators(animators, root)
	if len(order) != 3 || order[len(order)-1] != 0 {
		t.Fatalf("expected root to be evaluated last in post-order, got %v", order)
	}
}
