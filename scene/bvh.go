package scene

import (
	"fmt"
	"sort"
	"time"

	"github.com/MinusKelvin/pbr-gpu/types"
)

// A BVH node in the layout the traversal kernel expects. A node with zero
// Flags is a wrapper leaf and Far is the wrapped scene graph node. An
// interior node has Flags == 1 << splitAxis, its near child immediately
// after it in the array and its far child at Far. Interior nodes always
// precede their subtrees, which is what lets the kernel walk the tree with
// a fixed-size stack of far handles.
type BVHNode struct {
	Min   types.Vec3
	Flags uint32
	Max   types.Vec3
	Far   NodeID
}

// Split axis of an interior node.
func (n BVHNode) Axis() int {
	switch n.Flags {
	case 2:
		return 1
	case 4:
		return 2
	default:
		return 0
	}
}

// Whether the node wraps a single scene graph node.
func (n BVHNode) IsLeaf() bool {
	return n.Flags == 0
}

type bvhItem struct {
	node   NodeID
	bounds Bounds
}

// Build a BVH over the given scene graph nodes and return the root handle.
// The tree is emitted into the arena's BVH node array, always exactly
// 2n - 1 nodes for n inputs. Panics when nodes is empty.
func (sc *Scene) AddBVH(nodes []NodeID) NodeID {
	if len(nodes) == 0 {
		panic("scene: cannot build a BVH over an empty node list")
	}
	start := time.Now()

	items := make([]bvhItem, len(nodes))
	for i, id := range nodes {
		items[i] = bvhItem{node: id, bounds: sc.NodeBounds(id)}
	}
	root := sc.buildBVH(items)

	sc.logger.Debugf(
		"BVH build time: %d ms; %d nodes over %d scene graph nodes",
		time.Since(start).Milliseconds(), 2*len(nodes)-1, len(nodes),
	)
	return root
}

// Recursive surface-area-heuristic split. The node slot is reserved before
// recursing so the near child is guaranteed to land at idx + 1.
func (sc *Scene) buildBVH(items []bvhItem) NodeID {
	idx := len(sc.BVHNodes)
	sc.BVHNodes = append(sc.BVHNodes, BVHNode{})

	if len(items) == 1 {
		sc.BVHNodes[idx] = BVHNode{
			Min: items[0].bounds.Min,
			Max: items[0].bounds.Max,
			Far: items[0].node,
		}
		return newNodeID(NodeBVH, idx)
	}

	totalBounds := items[0].bounds
	for _, item := range items[1:] {
		totalBounds = totalBounds.Union(item.bounds)
	}

	axis := totalBounds.Size().MaxDim()
	sort.Slice(items, func(i, j int) bool {
		return items[i].bounds.Centroid()[axis] < items[j].bounds.Centroid()[axis]
	})

	// Split cost at k is k*area(prefix of k) + (n-k)*area(suffix of n-k),
	// accumulated with one forward and one backward sweep.
	costs := make([]float32, len(items)-1)

	bb := items[0].bounds
	for i := 1; i < len(items); i++ {
		costs[i-1] += float32(i) * bb.SurfaceArea()
		bb = bb.Union(items[i].bounds)
	}

	bb = items[len(items)-1].bounds
	for i := 1; i < len(items); i++ {
		costs[len(items)-1-i] += float32(i) * bb.SurfaceArea()
		bb = bb.Union(items[len(items)-1-i].bounds)
	}

	best := 0
	for i, cost := range costs {
		if cost < costs[best] {
			best = i
		}
	}
	split := 1 + best

	left := sc.buildBVH(items[:split])
	if left.Index() != idx+1 {
		panic(fmt.Sprintf("scene: near child of BVH node %d landed at %d", idx, left.Index()))
	}
	right := sc.buildBVH(items[split:])

	sc.BVHNodes[idx] = BVHNode{
		Min:   totalBounds.Min,
		Max:   totalBounds.Max,
		Far:   right,
		Flags: 1 << uint32(axis),
	}
	return newNodeID(NodeBVH, idx)
}
