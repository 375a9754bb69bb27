package guide

import (
	"math/rand"
	"testing"
	"time"

	"github.com/MinusKelvin/pbr-gpu/scene"
	"github.com/MinusKelvin/pbr-gpu/types"
)

type mockDevice struct {
	bsp   []BSPNode
	train []Quad

	reads  int
	binds  int
	clears int
}

func bindMockDevice(g *Guide) *mockDevice {
	views := g.Views()
	return &mockDevice{bsp: views.BSP, train: views.Train}
}

func (d *mockDevice) ReadbackGuide() ([]BSPNode, []Quad, error) {
	d.reads++
	bsp := append([]BSPNode{}, d.bsp...)
	train := append([]Quad{}, d.train...)
	return bsp, train, nil
}

func (d *mockDevice) BindGuide(views Views) error {
	d.binds++
	d.bsp = views.BSP
	d.train = views.Train
	return nil
}

func (d *mockDevice) ClearFilm() error {
	d.clears++
	return nil
}

func worldBounds() scene.Bounds {
	return scene.Bounds{Min: types.XYZ(0, 0, 0), Max: types.XYZ(1, 1, 1)}
}

func TestSeedQuadtree(t *testing.T) {
	nodes, root := seedQuadtree()

	// A uniform split puts a quarter of the flux a level down, which stays
	// above the 1% cutoff for four levels.
	if len(nodes) != 85 {
		t.Fatalf("expected 85 seed quads; got %d", len(nodes))
	}
	if int(root) != len(nodes)-1 {
		t.Fatalf("expected the root to be emitted last; got %d", root)
	}
	for i, quad := range nodes {
		for q, dn := range quad {
			if dn.Flux != 0 {
				t.Fatalf("expected zero flux in quad %d quadrant %d; got %f", i, q, dn.Flux)
			}
		}
	}
}

func TestRefinementSchedule(t *testing.T) {
	g := New(worldBounds(), 10000, 0)
	dev := bindMockDevice(g)

	want := map[uint32]bool{4: true, 12: true, 28: true, 60: true, 124: true, 252: true, 508: true, 1020: true}
	for sample := uint32(0); sample < 2050; sample++ {
		before := g.Generation()
		if err := g.BeforeSample(sample, dev); err != nil {
			t.Fatalf("refinement sync failed at sample %d: %v", sample, err)
		}
		refined := g.Generation() != before
		if refined != want[sample] {
			t.Fatalf("expected refinement at sample %d to be %v", sample, want[sample])
		}
	}

	// The ninth sync at 2044 falls past the 1500 sample training budget.
	if g.State() != Frozen {
		t.Fatalf("expected the guide to freeze; got %v", g.State())
	}
	if dev.reads != 8 || dev.binds != 8 || dev.clears != 8 {
		t.Fatalf("expected 8 readback/bind/clear rounds; got %d/%d/%d", dev.reads, dev.binds, dev.clears)
	}
}

func TestWarmingToActive(t *testing.T) {
	g := New(worldBounds(), 10000, 0)
	dev := bindMockDevice(g)

	if g.State() != Warming {
		t.Fatalf("expected a fresh guide to be warming; got %v", g.State())
	}
	if g.Views().BSP[0].Left != NoChild {
		t.Fatalf("expected the warming cell to have no guide tree")
	}

	for sample := uint32(0); sample <= 4; sample++ {
		if err := g.BeforeSample(sample, dev); err != nil {
			t.Fatalf("refinement sync failed: %v", err)
		}
	}
	if g.State() != Active {
		t.Fatalf("expected the guide active after the first refinement; got %v", g.State())
	}
}

// A cell nobody visited must not split, and an unvisited training tree
// must refine back to the uniform seed shape.
func TestZeroVisitsNeverSplit(t *testing.T) {
	g := New(worldBounds(), 10000, 0)
	dev := bindMockDevice(g)

	for sample := uint32(0); sample <= 4; sample++ {
		if err := g.BeforeSample(sample, dev); err != nil {
			t.Fatalf("refinement sync failed: %v", err)
		}
	}

	views := g.Views()
	if len(views.BSP) != 1 {
		t.Fatalf("expected the unvisited cell to stay whole; got %d nodes", len(views.BSP))
	}
	if views.BSP[0].IsLeaf != 1 || views.BSP[0].Count != 0 {
		t.Fatalf("expected a reset leaf; got %+v", views.BSP[0])
	}
	if views.BSP[0].Left != 84 {
		t.Fatalf("expected the old training tree promoted to guide; got root %d", views.BSP[0].Left)
	}
	if len(views.Train) != 85 {
		t.Fatalf("expected a fresh uniform training tree; got %d quads", len(views.Train))
	}
	if len(views.Guide) != 85 {
		t.Fatalf("expected the guide view to hold the old training tree; got %d quads", len(views.Guide))
	}
}

func TestBSPSplitCascade(t *testing.T) {
	bsp := []BSPNode{{IsLeaf: 1, Left: 7, Right: 9, Count: 50000}}
	train := []Quad{{}, {}, {}, {}, {}, {}, {}, {}, {}, {}}
	var newTrain []Quad

	refineBSP(&bsp, train, &newTrain, 12000, 0)

	// 50000 halves to 25000, 12500 and finally 6250, giving an interior
	// spine of 7 nodes over 8 leaves.
	if len(bsp) != 15 {
		t.Fatalf("expected 15 BSP nodes; got %d", len(bsp))
	}
	var leaves int
	for i, n := range bsp {
		if n.IsLeaf == 0 {
			continue
		}
		leaves++
		if n.Count != 0 {
			t.Fatalf("expected refined leaf %d to reset its count; got %d", i, n.Count)
		}
		if n.Left != 9 {
			t.Fatalf("expected leaf %d to promote the old training root 9; got %d", i, n.Left)
		}
	}
	if leaves != 8 {
		t.Fatalf("expected 8 leaves; got %d", leaves)
	}
}

func TestPromotePrunesColdQuadrants(t *testing.T) {
	train := []Quad{{
		DirNode{Flux: 8, Child: NoChild},
		DirNode{Flux: 1, Child: NoChild},
		DirNode{Flux: 1, Child: NoChild},
		DirNode{Flux: 0, Child: NoChild},
	}}
	bsp := []BSPNode{{IsLeaf: 1, Left: NoChild, Right: 0, Count: 10}}
	var newTrain []Quad

	refineBSP(&bsp, train, &newTrain, 12000, 0)

	leaf := bsp[0]
	if leaf.Left != 0 {
		t.Fatalf("expected the old training root promoted to guide; got %d", leaf.Left)
	}
	root := newTrain[leaf.Right]

	if root[3].Child != NoChild {
		t.Fatalf("expected the zero-flux quadrant pruned")
	}
	if root[0].Child == NoChild {
		t.Fatalf("expected the hot quadrant expanded")
	}
	if depth(newTrain, root[0].Child) <= depth(newTrain, root[1].Child) {
		t.Fatalf(
			"expected the hot quadrant deeper than a warm one; got %d vs %d",
			depth(newTrain, root[0].Child), depth(newTrain, root[1].Child),
		)
	}
}

func depth(quads []Quad, node uint32) int {
	if node == NoChild {
		return 0
	}
	deepest := 0
	for _, dn := range quads[node] {
		if d := depth(quads, dn.Child); d > deepest {
			deepest = d
		}
	}
	return 1 + deepest
}

func TestFreezeOnWallClock(t *testing.T) {
	g := New(worldBounds(), 10000, time.Nanosecond)
	dev := bindMockDevice(g)

	time.Sleep(time.Millisecond)
	for sample := uint32(0); sample <= 4; sample++ {
		if err := g.BeforeSample(sample, dev); err != nil {
			t.Fatalf("refinement sync failed: %v", err)
		}
	}

	if g.State() != Frozen {
		t.Fatalf("expected the deadline to freeze the guide; got %v", g.State())
	}
	if g.Generation() != 0 || dev.reads != 0 {
		t.Fatalf("expected no refinement before the freeze")
	}
}

func TestLookupLeaf(t *testing.T) {
	bounds := scene.Bounds{Min: types.XYZ(0, 0, 0), Max: types.XYZ(4, 2, 2)}
	bsp := []BSPNode{
		{IsLeaf: 0, Left: 1, Right: 4},
		{IsLeaf: 0, Left: 2, Right: 3},
		{IsLeaf: 1},
		{IsLeaf: 1},
		{IsLeaf: 1},
	}

	type spec struct {
		p    types.Vec3
		leaf uint32
	}
	specs := []spec{
		spec{types.XYZ(0.5, 1, 1), 2},
		spec{types.XYZ(1.5, 1, 1), 3},
		spec{types.XYZ(3, 1, 1), 4},
	}
	for index, s := range specs {
		if got := LookupLeaf(bsp, bounds, s.p); got != s.leaf {
			t.Fatalf("[spec %d] expected leaf %d; got %d", index, s.leaf, got)
		}
	}
}

func TestQuadtreeSamplePDFConsistency(t *testing.T) {
	train, root := seedQuadtree()

	// Train two directions with a 3:1 flux ratio.
	DepositQuadtree(train, root, [2]float32{0.1, 0.1}, 3)
	DepositQuadtree(train, root, [2]float32{0.9, 0.6}, 1)

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		p, pdf := SampleQuadtree(train, root, rng.Float32(), rng.Float32())
		if p[0] < 0 || p[0] >= 1 || p[1] < 0 || p[1] >= 1 {
			t.Fatalf("sample %d escaped the unit square: %v", i, p)
		}
		want := QuadtreePDF(train, root, p)
		if diff := pdf - want; diff < -1e-3*want || diff > 1e-3*want {
			t.Fatalf("sample %d returned pdf %f; density says %f", i, pdf, want)
		}
	}

	// The graded corner takes three quarters of the samples.
	var hot int
	const draws = 10000
	for i := 0; i < draws; i++ {
		p, _ := SampleQuadtree(train, root, rng.Float32(), rng.Float32())
		if p[0] < 0.5 && p[1] < 0.5 {
			hot++
		}
	}
	got := float32(hot) / draws
	if got < 0.72 || got > 0.78 {
		t.Fatalf("expected about 75%% of samples in the trained corner; got %f", got)
	}
}

func TestDirSquareRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		d := types.XYZ(
			float32(rng.NormFloat64()),
			float32(rng.NormFloat64()),
			float32(rng.NormFloat64()),
		).Normalize()
		if d.Len() == 0 {
			continue
		}

		back := SquareToDir(DirToSquare(d))
		if diff := back.Sub(d).Len(); diff > 1e-3 {
			t.Fatalf("direction %v round-tripped to %v", d, back)
		}
	}
}

func TestIsqrt(t *testing.T) {
	type spec struct {
		v    uint32
		want uint32
	}
	specs := []spec{
		spec{0, 0}, spec{1, 1}, spec{2, 1}, spec{3, 1}, spec{4, 2},
		spec{8, 2}, spec{9, 3}, spec{15, 3}, spec{16, 4}, spec{24, 4},
		spec{25, 5}, spec{1 << 20, 1 << 10}, spec{(1 << 16) - 1, 255},
	}
	for index, s := range specs {
		if got := isqrt(s.v); got != s.want {
			t.Fatalf("[spec %d] expected isqrt(%d) == %d; got %d", index, s.v, s.want, got)
		}
	}
}
