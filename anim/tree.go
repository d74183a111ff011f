package anim

import "log/slog"

// AnimationTree is an arena of Animators forming a blend tree: leaves
// drive a Clip, internal nodes combine their children's weighted results.
// Grounded on MeshAnimationTree/AnimatorCalculator, with the pointer-
// linked hierarchy replaced by arena indices.
type AnimationTree struct {
	animators []*Animator
	root      int32
	logger    *slog.Logger
}

func NewAnimationTree(animators []*Animator, root int32, logger *slog.Logger) *AnimationTree {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnimationTree{animators: animators, root: root, logger: logger}
}

// Update advances time accumulators. When the root's own weight is >= 1
// it is the sole contributor and only it needs advancing (the fast path
// the fast path calls for); otherwise every non-zero-weight animator in the
// tree is advanced, in pre-order, pruning subtrees whose root has
// weight <= 0.
func (t *AnimationTree) Update(dt float32, slot int) {
	root := t.animators[t.root]
	if root.Weight >= 1 {
		root.advance(dt, slot)
		return
	}
	walkPreOrderAnimators(t.animators, t.root, func(idx int32) bool {
		a := t.animators[idx]
		if a.Weight <= 0 {
			return false
		}
		a.advance(dt, slot)
		return true
	})
}

// Calculate evaluates leaf clips and blends internal nodes, in an order
// that guarantees every child is fully evaluated before its parent is
// blended (a non-recursive post-order walk with weight<=0 subtrees
// pruned entirely).
func (t *AnimationTree) Calculate(slot int) {
	root := t.animators[t.root]
	if root.Weight >= 1 {
		if err := root.sample(root.frameTime[slot], slot); err != nil {
			t.logger.Warn("anim: sample error", "err", err)
		}
		return
	}

	order := postOrderAnimators(t.animators, t.root)
	for _, idx := range order {
		a := t.animators[idx]
		if a.firstChild < 0 {
			if err := a.sample(a.frameTime[slot], slot); err != nil {
				t.logger.Warn("anim: sample error", "err", err)
			}
			continue
		}
		t.blend(idx, slot)
	}
}

// blend combines node idx's children's transforms into its own transform
// map for slot, implementing the internal-node blending algorithm:
// skip leading zero-weight children, seed from the first non-zero child,
// then fold in each subsequent non-zero child at mixing factor
// w/(w+w2), stopping once accumulated weight reaches 1.
func (t *AnimationTree) blend(idx int32, slot int) {
	parent := t.animators[idx]
	parent.transforms[slot] = make(map[int32]boneTransform)

	var children []int32
	for c := parent.firstChild; c >= 0; c = t.animators[c].nextSibling {
		children = append(children, c)
	}

	first := -1
	var w float32
	for n, c := range children {
		cw := t.animators[c].Weight
		if cw > 0 {
			first = n
			w = cw
			for node, tr := range t.animators[c].transforms[slot] {
				parent.transforms[slot][node] = tr
			}
			break
		}
	}
	if first < 0 {
		return
	}
	if w >= 1 {
		return
	}
	for n := first + 1; n < len(children); n++ {
		c := children[n]
		w2 := t.animators[c].Weight
		if w2 <= 0 {
			continue
		}
		m := w / (w + w2)
		for node, ch := range t.animators[c].transforms[slot] {
			parent.transforms[slot][node] = blendTransform(parent.transforms[slot][node], ch, m)
		}
		w += w2
		if w >= 1 {
			break
		}
	}
}

// Apply writes the root's accumulated transforms onto the skeleton's
// nodes for slot, then lets the skeleton recompute world matrices in
// hierarchy order and, if it has skins, joint matrices.
func (t *AnimationTree) Apply(sk *Skeleton, slot int) {
	root := t.animators[t.root]
	for node, tr := range root.transforms[slot] {
		sk.applyTransform(slot, node, tr)
	}
	sk.recomputeWorldMatrices(slot)
	if len(sk.skins) > 0 {
		sk.recomputeJointMatrices(slot)
	}
}

func walkPreOrderAnimators(animators []*Animator, root int32, visit func(idx int32) bool) {
	if root < 0 {
		return
	}
	stack := []int32{root}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(idx) {
			continue
		}
		var children []int32
		for c := animators[idx].firstChild; c >= 0; c = animators[c].nextSibling {
			children = append(children, c)
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// postOrderAnimators returns indices reachable from root such that every
// descendant appears before its ancestor, pruning entire subtrees whose
// root has weight <= 0 — the non-recursive reverse traversal Calculate
// needs.
func postOrderAnimators(animators []*Animator, root int32) []int32 {
	if root < 0 {
		return nil
	}
	var order []int32
	stack := []int32{root}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if animators[idx].Weight <= 0 {
			continue
		}
		order = append(order, idx)
		for c := animators[idx].firstChild; c >= 0; c = animators[c].nextSibling {
			stack = append(stack, c)
		}
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}
