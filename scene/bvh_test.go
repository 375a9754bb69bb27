package scene

import (
	"sort"
	"testing"

	"github.com/MinusKelvin/pbr-gpu/types"
)

func makeGeomScene() (*Scene, MaterialID, TextureID) {
	sc := NewScene()
	one := sc.AddConstantSpectrum(1)
	alpha := sc.AddConstantTexture(one)
	mat := sc.AddDiffuseMaterial(alpha, nil)
	return sc, mat, alpha
}

func addSphereAt(sc *Scene, mat MaterialID, alpha TextureID, x, y, z float32) NodeID {
	shape := sc.AddSphere(FullSphere())
	prim := sc.AddPrimitive(PrimitiveNode{
		Shape:    shape,
		Material: mat,
		Light:    NoLight,
		Alpha:    alpha,
	})
	return sc.AddTransform(NewTransform(types.Translate3D(x, y, z)), prim)
}

func TestBVHFourLeaves(t *testing.T) {
	sc, mat, alpha := makeGeomScene()
	members := []NodeID{
		addSphereAt(sc, mat, alpha, 0, 0, 0),
		addSphereAt(sc, mat, alpha, 4, 0, 0),
		addSphereAt(sc, mat, alpha, 0, 4, 0),
		addSphereAt(sc, mat, alpha, 4, 4, 0),
	}

	root := sc.AddBVH(members)
	if root.Kind() != NodeBVH || root.Index() != 0 {
		t.Fatalf("expected root at BVH index 0; got kind %d index %d", root.Kind(), root.Index())
	}
	if len(sc.BVHNodes) != 7 {
		t.Fatalf("expected 7 BVH nodes for 4 members; got %d", len(sc.BVHNodes))
	}

	rootNode := sc.BVHNodes[0]
	wantMin := types.XYZ(-1, -1, -1)
	wantMax := types.XYZ(5, 5, 1)
	if rootNode.Min != wantMin || rootNode.Max != wantMax {
		t.Fatalf("expected root bounds %v..%v; got %v..%v", wantMin, wantMax, rootNode.Min, rootNode.Max)
	}

	// Every member must appear in exactly one wrapper leaf.
	seen := make(map[NodeID]int)
	var leaves int
	for _, node := range sc.BVHNodes {
		if node.IsLeaf() {
			leaves++
			seen[node.Far]++
		}
	}
	if leaves != 4 {
		t.Fatalf("expected 4 wrapper leaves; got %d", leaves)
	}
	for _, member := range members {
		if seen[member] != 1 {
			t.Fatalf("expected member %#08x in exactly one leaf; got %d", uint32(member), seen[member])
		}
	}

	// Interior nodes keep the near child right after them and both children
	// inside the parent bounds.
	for i, node := range sc.BVHNodes {
		if node.IsLeaf() {
			continue
		}
		if i+1 >= len(sc.BVHNodes) {
			t.Fatalf("interior node %d has no near child slot", i)
		}
		if node.Far.Kind() != NodeBVH || node.Far.Index() <= i+1 {
			t.Fatalf("interior node %d has far child %d; expected an index past %d", i, node.Far.Index(), i+1)
		}
		parent := Bounds{Min: node.Min, Max: node.Max}
		for _, childIdx := range []int{i + 1, node.Far.Index()} {
			child := sc.BVHNodes[childIdx]
			if !parent.Contains(child.Min) || !parent.Contains(child.Max) {
				t.Fatalf("child %d bounds escape interior node %d", childIdx, i)
			}
		}
	}
}

func TestBVHSingleton(t *testing.T) {
	sc, mat, alpha := makeGeomScene()
	member := addSphereAt(sc, mat, alpha, 2, 0, 0)

	root := sc.AddBVH([]NodeID{member})
	if len(sc.BVHNodes) != 1 {
		t.Fatalf("expected 1 BVH node for a singleton; got %d", len(sc.BVHNodes))
	}

	node := sc.BVHNodes[root.Index()]
	if !node.IsLeaf() {
		t.Fatalf("expected singleton wrapper to be a leaf; got flags %d", node.Flags)
	}
	if node.Far != member {
		t.Fatalf("expected wrapper to point at %#08x; got %#08x", uint32(member), uint32(node.Far))
	}
	if node.Min != types.XYZ(1, -1, -1) || node.Max != types.XYZ(3, 1, 1) {
		t.Fatalf("unexpected wrapper bounds %v..%v", node.Min, node.Max)
	}
}

func TestBVHSplitAxis(t *testing.T) {
	sc, mat, alpha := makeGeomScene()
	root := sc.AddBVH([]NodeID{
		addSphereAt(sc, mat, alpha, 0, 0, 0),
		addSphereAt(sc, mat, alpha, 0, 6, 0),
	})

	rootNode := sc.BVHNodes[root.Index()]
	if rootNode.Flags != 1<<1 {
		t.Fatalf("expected a Y axis split (flags 2); got flags %d", rootNode.Flags)
	}
	if rootNode.Axis() != 1 {
		t.Fatalf("expected split axis 1; got %d", rootNode.Axis())
	}
}

// An isolated member must be split off from a tight cluster, which is what
// the surface area heuristic is for.
func TestBVHSplitsOffOutlier(t *testing.T) {
	sc, mat, alpha := makeGeomScene()
	cluster := []NodeID{
		addSphereAt(sc, mat, alpha, 0, 0, 0),
		addSphereAt(sc, mat, alpha, 1, 0, 0),
		addSphereAt(sc, mat, alpha, 2, 0, 0),
	}
	outlier := addSphereAt(sc, mat, alpha, 10, 0, 0)
	members := append(append([]NodeID{}, cluster...), outlier)

	root := sc.AddBVH(members)
	rootNode := sc.BVHNodes[root.Index()]

	farNode := sc.BVHNodes[rootNode.Far.Index()]
	if !farNode.IsLeaf() || farNode.Far != outlier {
		t.Fatalf("expected the far child to wrap the outlier; got flags %d member %#08x", farNode.Flags, uint32(farNode.Far))
	}
}

// The two-sweep split selection must agree with evaluating the SAH cost of
// every candidate split directly.
func TestBVHSplitMatchesExhaustiveCost(t *testing.T) {
	specs := [][]float32{
		{7, 0},
		{1, 9, 0},
		{3, 10, 0, 2},
		{12, 4, 0, 5, 3},
		{5, 14, 0, 8, 1, 6},
	}

	for si, xs := range specs {
		sc, mat, alpha := makeGeomScene()
		members := make([]NodeID, len(xs))
		for i, x := range xs {
			members[i] = addSphereAt(sc, mat, alpha, x, 0, 0)
		}

		root := sc.AddBVH(members)
		rootNode := sc.BVHNodes[root.Index()]

		// X is the widest axis in every spec, so the builder sorted the
		// members by their x centroid.
		sorted := append([]NodeID{}, members...)
		sort.Slice(sorted, func(i, j int) bool {
			return sc.NodeBounds(sorted[i]).Centroid()[0] < sc.NodeBounds(sorted[j]).Centroid()[0]
		})

		union := func(ids []NodeID) Bounds {
			b := EmptyBounds()
			for _, id := range ids {
				b = b.Union(sc.NodeBounds(id))
			}
			return b
		}
		n := len(sorted)
		cost := func(k int) float32 {
			return float32(k)*union(sorted[:k]).SurfaceArea() +
				float32(n-k)*union(sorted[k:]).SurfaceArea()
		}

		bestSplit := 1
		for k := 2; k < n; k++ {
			if cost(k) < cost(bestSplit) {
				bestSplit = k
			}
		}

		var nearLeaves []NodeID
		for _, node := range sc.BVHNodes[1:rootNode.Far.Index()] {
			if node.IsLeaf() {
				nearLeaves = append(nearLeaves, node.Far)
			}
		}
		if len(nearLeaves) != bestSplit {
			t.Fatalf("[spec %d] expected %d members on the near side; got %d", si, bestSplit, len(nearLeaves))
		}
		want := make(map[NodeID]bool, bestSplit)
		for _, id := range sorted[:bestSplit] {
			want[id] = true
		}
		for _, id := range nearLeaves {
			if !want[id] {
				t.Fatalf("[spec %d] near side wraps %#08x, which is not in the cheapest prefix", si, uint32(id))
			}
		}
	}
}

func TestBVHIdenticalCentroids(t *testing.T) {
	sc, mat, alpha := makeGeomScene()
	members := []NodeID{
		addSphereAt(sc, mat, alpha, 0, 0, 0),
		addSphereAt(sc, mat, alpha, 0, 0, 0),
		addSphereAt(sc, mat, alpha, 0, 0, 0),
	}

	sc.AddBVH(members)
	if len(sc.BVHNodes) != 5 {
		t.Fatalf("expected 5 BVH nodes for 3 members; got %d", len(sc.BVHNodes))
	}

	// Equal costs split at the first candidate: a singleton on the near
	// side, the remaining pair on the far side.
	if !sc.BVHNodes[1].IsLeaf() {
		t.Fatalf("expected the near child to be a wrapper leaf; got flags %d", sc.BVHNodes[1].Flags)
	}
	if sc.BVHNodes[2].IsLeaf() {
		t.Fatalf("expected the far child to be an interior pair node")
	}
}

func TestBVHEmptyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic when building a BVH over no nodes")
		}
	}()
	sc, _, _ := makeGeomScene()
	sc.AddBVH(nil)
}

func TestNodeBoundsThroughTransform(t *testing.T) {
	sc, mat, alpha := makeGeomScene()

	shape := sc.AddSphere(FullSphere())
	prim := sc.AddPrimitive(PrimitiveNode{Shape: shape, Material: mat, Alpha: alpha})
	placement := types.Translate3D(5, 0, 0).Mul4(types.Scale3D(2, 2, 2))
	node := sc.AddTransform(NewTransform(placement), prim)

	bounds := sc.NodeBounds(node)
	wantMin := types.XYZ(3, -2, -2)
	wantMax := types.XYZ(7, 2, 2)
	for axis := 0; axis < 3; axis++ {
		if diff := bounds.Min[axis] - wantMin[axis]; diff < -1e-4 || diff > 1e-4 {
			t.Fatalf("expected min %v; got %v", wantMin, bounds.Min)
		}
		if diff := bounds.Max[axis] - wantMax[axis]; diff < -1e-4 || diff > 1e-4 {
			t.Fatalf("expected max %v; got %v", wantMax, bounds.Max)
		}
	}
}
