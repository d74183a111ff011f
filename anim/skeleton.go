package anim

import (
	"github.com/cpcf/forgekit/threadpool"
)

// Skeleton holds `latency` independent copies ("slots") of the same node
// hierarchy so an in-flight update for one frame never races a render
// reading a previous frame's result — the double/triple-buffering scheme
// the latency-N animation pipeline requires. Skins (bone -> node index lists)
// and their inverse-bind matrices are immutable per skeleton and shared
// across slots.
type Skeleton struct {
	root        int32
	latency     int
	slots       []skeletonSlot
	updaterSlot int

	skins       [][]int32
	inverseBind [][][16]float32
}

type skeletonSlot struct {
	nodes      []Node
	jointMats  [][][16]float32
	dirtySkins []bool
	task       threadpool.TaskHandle[struct{}]
}

// NewSkeleton builds a Skeleton whose node hierarchy is described by
// template (parent/firstChild/nextSibling and the bind pose), replicated
// into `latency` independent slots. skins[i] lists the node indices that
// back skin i's bones, in bone order; inverseBind[i] is the matching
// per-bone inverse bind matrix.
func NewSkeleton(template []Node, root int32, skins [][]int32, inverseBind [][][16]float32, latency int) *Skeleton {
	if latency < 1 {
		latency = 1
	}
	sk := &Skeleton{
		root:        root,
		latency:     latency,
		skins:       skins,
		inverseBind: inverseBind,
		slots:       make([]skeletonSlot, latency),
		updaterSlot: -1,
	}
	for i := range sk.slots {
		nodes := make([]Node, len(template))
		copy(nodes, template)
		jointMats := make([][][16]float32, len(skins))
		for s, joints := range skins {
			jointMats[s] = make([][16]float32, len(joints))
		}
		sk.slots[i] = skeletonSlot{
			nodes:      nodes,
			jointMats:  jointMats,
			dirtySkins: make([]bool, len(skins)),
		}
	}
	return sk
}

func (sk *Skeleton) Latency() int { return sk.latency }

// rotateUpdaterSlot advances and returns the slot UpdateAnimation should
// write into this frame.
func (sk *Skeleton) rotateUpdaterSlot() int {
	sk.updaterSlot = (sk.updaterSlot + 1) % sk.latency
	return sk.updaterSlot
}

// renderSlot returns the slot PreRender should read from: one ahead of
// the current updater slot: render_slot = (updater_slot + 1) mod latency.
func (sk *Skeleton) renderSlot() int {
	return (sk.updaterSlot + 1) % sk.latency
}

// Node returns the node at idx in the given slot.
func (sk *Skeleton) Node(slot int, idx int32) *Node { return &sk.slots[slot].nodes[idx] }

// JointMatrices returns skin i's computed joint matrices for the given
// slot, valid after the owning Pipeline's PreRender has waited on that
// slot's task.
func (sk *Skeleton) JointMatrices(slot int, skin int) [][16]float32 { return sk.slots[slot].jointMats[skin] }

func (sk *Skeleton) applyTransform(slot int, idx int32, tr boneTransform) {
	n := &sk.slots[slot].nodes[idx]
	if tr.mask&maskTranslation != 0 {
		n.Translation = tr.translation
		n.localDirty = true
	}
	if tr.mask&maskRotation != 0 {
		n.Rotation = tr.rotation
		n.localDirty = true
	}
	if tr.mask&maskScale != 0 {
		n.Scale = tr.scale
		n.localDirty = true
	}
}

// recomputeWorldMatrices walks the slot's hierarchy in parent-before-
// children order, recomputing a node's local matrix when its TRS changed
// and its world matrix when either the local matrix or the parent's world
// matrix changed this pass.
func (sk *Skeleton) recomputeWorldMatrices(slot int) {
	nodes := sk.slots[slot].nodes
	changed := make([]bool, len(nodes))
	walkPreOrderNodes(nodes, sk.root, func(idx int32) bool {
		n := &nodes[idx]
		localChanged := n.localDirty
		if localChanged {
			n.local = mat4FromTRS(n.Translation, n.Scale, n.Rotation)
			n.localDirty = false
		}
		parentChanged := n.parent >= 0 && changed[n.parent]
		if localChanged || parentChanged || n.worldDirty {
			if n.parent < 0 {
				n.world = n.local
			} else {
				n.world = mat4Mul(nodes[n.parent].world, n.local)
			}
			n.worldDirty = false
			changed[idx] = true
		}
		return true
	})
}

// recomputeJointMatrices recomputes every skin's joint matrices for slot
// from the just-refreshed world matrices: joint[i] = node_world[joint_i] *
// inverse_bind[i].
func (sk *Skeleton) recomputeJointMatrices(slot int) {
	s := &sk.slots[slot]
	nodes := s.nodes
	for skin, joints := range sk.skins {
		for j, nodeIdx := range joints {
			s.jointMats[skin][j] = mat4Mul(nodes[nodeIdx].world, sk.inverseBind[skin][j])
		}
		s.dirtySkins[skin] = false
	}
}
