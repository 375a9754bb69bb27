package guide

import (
	"sync/atomic"

	"github.com/MinusKelvin/pbr-gpu/scene"
	"github.com/MinusKelvin/pbr-gpu/types"
)

// A spatial BSP node. Interior nodes use Left and Right as child indices;
// leaves reuse them as the roots of the cell's guide and training
// quadtrees, with Count tracking how many samples visited the cell since
// the last refinement. The split plane is not stored: a walk halves the
// current bounds along their largest axis at every interior node, so the
// geometry of the tree is implied by its shape.
type BSPNode struct {
	IsLeaf uint32
	Left   uint32
	Right  uint32
	Count  uint32
}

// Walk the BSP to the leaf containing a world position and return its
// index.
func LookupLeaf(bsp []BSPNode, bounds scene.Bounds, p types.Vec3) uint32 {
	node := uint32(0)
	for bsp[node].IsLeaf == 0 {
		axis := bounds.Size().MaxDim()
		mid := (bounds.Min[axis] + bounds.Max[axis]) * 0.5
		if p[axis] < mid {
			bounds.Max[axis] = mid
			node = bsp[node].Left
		} else {
			bounds.Min[axis] = mid
			node = bsp[node].Right
		}
	}
	return node
}

// Count a sample visit against a leaf. Safe for concurrent visitors.
func Visit(bsp []BSPNode, leaf uint32) {
	atomic.AddUint32(&bsp[leaf].Count, 1)
}

// Refine the tree in place after a readback. Leaves whose visit count
// exceeds the threshold split in two, halving the count and sharing both
// tree indices, until every descendant is under the threshold; then each
// remaining leaf promotes its training tree to be its guide tree and gets
// a fresh training tree refined from the old one via refineQuadtree.
// After refinement every leaf has Count 0 and references newTrain.
func refineBSP(bsp *[]BSPNode, train []Quad, newTrain *[]Quad, threshold uint32, node uint32) {
	bspLen := uint32(len(*bsp))
	n := (*bsp)[node]

	if n.IsLeaf == 0 {
		refineBSP(bsp, train, newTrain, threshold, n.Left)
		refineBSP(bsp, train, newTrain, threshold, n.Right)
		return
	}

	if n.Count > threshold {
		child := BSPNode{
			IsLeaf: 1,
			Left:   n.Left,
			Right:  n.Right,
			Count:  n.Count / 2,
		}
		(*bsp)[node] = BSPNode{Left: bspLen, Right: bspLen + 1, Count: n.Count}
		*bsp = append(*bsp, child, child)

		refineBSP(bsp, train, newTrain, threshold, bspLen)
		refineBSP(bsp, train, newTrain, threshold, bspLen+1)
		return
	}

	(*bsp)[node] = BSPNode{
		IsLeaf: 1,
		Left:   n.Right,
		Right:  refineQuadtree(newTrain, train, n.Right, 1.0, 0),
	}
}

// Integer square root.
func isqrt(v uint32) uint32 {
	if v < 2 {
		return v
	}
	r := v / 2
	for {
		next := (r + v/r) / 2
		if next >= r {
			break
		}
		r = next
	}
	return r
}
