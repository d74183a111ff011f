package anim

// Node is one joint/transform in a skeleton's hierarchy, addressed by
// arena index rather than pointer (parent/firstChild/nextSibling are
// indices into the owning slot's node slice, -1 meaning none) instead of
// an intrusively pointer-linked tree.
type Node struct {
	Translation [3]float32
	Scale       [3]float32
	Rotation    [4]float32 // quaternion, x,y,z,w

	local, world           [16]float32
	localDirty, worldDirty bool

	parent, firstChild, nextSibling int32
}

// NewNode returns a Node at the identity transform with no hierarchy
// links set (caller wires parent/firstChild/nextSibling).
func NewNode() Node {
	return Node{
		Scale:       [3]float32{1, 1, 1},
		Rotation:    [4]float32{0, 0, 0, 1},
		local:       identityMat4,
		world:       identityMat4,
		localDirty:  true,
		worldDirty:  true,
		parent:      -1,
		firstChild:  -1,
		nextSibling: -1,
	}
}

// World returns the node's last-computed world matrix (column-major 4x4).
func (n *Node) World() [16]float32 { return n.world }

// LinkHierarchy wires parent/firstChild/nextSibling on nodes from a flat
// parent-index array (parents[i] is the index of node i's parent, -1 for
// a root) — the shape a glTF-style node list already comes in, so a
// loader never has to touch the unexported intrusive-link fields
// directly. It returns the lowest-indexed root (parents[i] == -1), or -1
// if parents is empty. Children are linked in ascending index order, so
// traversal order matches the order nodes were supplied in.
func LinkHierarchy(nodes []Node, parents []int32) int32 {
	root := int32(-1)
	for i := len(nodes) - 1; i >= 0; i-- {
		nodes[i].parent = parents[i]
		nodes[i].firstChild = -1
		nodes[i].nextSibling = -1
	}
	for i := len(nodes) - 1; i >= 0; i-- {
		p := parents[i]
		if p < 0 {
			root = int32(i)
			continue
		}
		nodes[i].nextSibling = nodes[p].firstChild
		nodes[p].firstChild = int32(i)
	}
	return root
}

// walkPreOrderNodes visits node indices reachable from root in
// parent-before-children order using an explicit stack — never
// recursion — matching the forward traversal policy the animation
// pipeline defines. visit returning false prunes the subtree rooted at
// the current node.
func walkPreOrderNodes(nodes []Node, root int32, visit func(idx int32) bool) {
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
		for c := nodes[idx].firstChild; c >= 0; c = nodes[c].nextSibling {
			children = append(children, c)
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}
