package guide

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/chewxy/math32"

	"github.com/MinusKelvin/pbr-gpu/types"
)

// NoChild marks a quadtree leaf slot and the "no tree" root.
const NoChild = ^uint32(0)

// One quadrant of a directional quadtree node. Flux accumulates the energy
// deposited into the quadrant; Child points at the quadrant's own Quad or
// NoChild for a leaf.
type DirNode struct {
	Flux  float32
	Child uint32
}

// A directional quadtree node, one DirNode per quadrant. Quadrant i covers
// the half-open subsquare with low x for i&1 == 0 and low y for i&2 == 0.
type Quad [4]DirNode

// Build a refined copy of the tree rooted at node into newNodes and return
// the new root index. A quadrant is expanded while its cumulative share of
// the total flux stays at or above LeafEnergyPortion and its depth stays
// under MaxQuadtreeDepth; quadrants below the cutoff collapse to leaves.
// Quadrants with no existing subtree or no recorded flux split evenly, so
// an absent tree (node == NoChild) expands into a uniform tree. Flux in the
// new tree is zeroed; each refinement trains from scratch.
func refineQuadtree(newNodes *[]Quad, existing []Quad, node uint32, fluxRatio float32, depth uint32) uint32 {
	if fluxRatio < LeafEnergyPortion || depth >= MaxQuadtreeDepth {
		return NoChild
	}

	var children [4]uint32
	portions := [4]float32{0.25, 0.25, 0.25, 0.25}
	if node == NoChild {
		children = [4]uint32{NoChild, NoChild, NoChild, NoChild}
	} else {
		quad := existing[node]
		var total float32
		for _, dn := range quad {
			total += dn.Flux
		}
		for i, dn := range quad {
			children[i] = dn.Child
			if total > 0 {
				portions[i] = dn.Flux / total
			}
		}
	}

	var q Quad
	for i := range q {
		q[i] = DirNode{
			Child: refineQuadtree(newNodes, existing, children[i], fluxRatio*portions[i], depth+1),
		}
	}

	id := uint32(len(*newNodes))
	*newNodes = append(*newNodes, q)
	return id
}

// The initial training tree: a uniform quadtree expanded to the depth
// where an even flux split hits the energy cutoff.
func seedQuadtree() (nodes []Quad, root uint32) {
	root = refineQuadtree(&nodes, nil, NoChild, 1.0, 0)
	return nodes, root
}

// Draw a point in the unit square distributed by the tree's flux and
// return it with its density. Quadrants are selected proportionally to
// flux, uniformly where nothing has been recorded; the walk bottoms out at
// a leaf quadrant and the point is uniform within it.
func SampleQuadtree(quads []Quad, root uint32, u1, u2 float32) (p [2]float32, pdf float32) {
	var lo, size [2]float32
	size = [2]float32{1, 1}
	pdf = 1

	node := root
	for node != NoChild {
		quad := quads[node]
		var total float32
		for _, dn := range quad {
			total += dn.Flux
		}

		var idx int
		var portion float32
		if total <= 0 {
			// Untrained node: pick a quadrant uniformly, reusing u1.
			idx = int(u1 * 4)
			if idx > 3 {
				idx = 3
			}
			u1 = u1*4 - float32(idx)
			portion = 0.25
		} else {
			target := u1 * total
			var acc float32
			idx = 3
			for i, dn := range quad {
				if target < acc+dn.Flux {
					idx = i
					break
				}
				acc += dn.Flux
			}
			portion = quad[idx].Flux / total
			if portion <= 0 {
				portion = 1e-8
			}
			// Reuse the selection variate within the chosen quadrant.
			u1 = (target - acc) / (total * portion)
			if u1 >= 1 {
				u1 = math32.Nextafter(1, 0)
			}
		}

		size[0] *= 0.5
		size[1] *= 0.5
		if idx&1 != 0 {
			lo[0] += size[0]
		}
		if idx&2 != 0 {
			lo[1] += size[1]
		}
		pdf *= 4 * portion
		node = quad[idx].Child
	}

	p[0] = lo[0] + u1*size[0]
	p[1] = lo[1] + u2*size[1]
	return p, pdf
}

// Density of the tree's distribution at a point in the unit square.
func QuadtreePDF(quads []Quad, root uint32, p [2]float32) float32 {
	pdf := float32(1)
	node := root
	pos := p
	for node != NoChild {
		quad := quads[node]
		var total float32
		for _, dn := range quad {
			total += dn.Flux
		}

		idx := 0
		if pos[0] >= 0.5 {
			idx |= 1
			pos[0] = pos[0]*2 - 1
		} else {
			pos[0] *= 2
		}
		if pos[1] >= 0.5 {
			idx |= 2
			pos[1] = pos[1]*2 - 1
		} else {
			pos[1] *= 2
		}

		if total <= 0 {
			pdf *= 1
		} else {
			pdf *= 4 * quad[idx].Flux / total
		}
		node = quad[idx].Child
	}
	return pdf
}

// Deposit flux at a point, accumulating into every quadrant on the path to
// the leaf so interior flux always equals the subtree total. Safe for
// concurrent deposits.
func DepositQuadtree(quads []Quad, root uint32, p [2]float32, flux float32) {
	node := root
	pos := p
	for node != NoChild {
		quad := &quads[node]

		idx := 0
		if pos[0] >= 0.5 {
			idx |= 1
			pos[0] = pos[0]*2 - 1
		} else {
			pos[0] *= 2
		}
		if pos[1] >= 0.5 {
			idx |= 2
			pos[1] = pos[1]*2 - 1
		} else {
			pos[1] *= 2
		}

		atomicAddFloat32(&quad[idx].Flux, flux)
		node = quad[idx].Child
	}
}

func atomicAddFloat32(addr *float32, delta float32) {
	bits := (*uint32)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint32(bits)
		next := math.Float32bits(math.Float32frombits(old) + delta)
		if atomic.CompareAndSwapUint32(bits, old, next) {
			return
		}
	}
}

// Directions map to the unit square with x carrying azimuth and y the
// cosine of the polar angle, an equal-area mapping, so square density
// converts to solid angle density by dividing by 4 pi.
func DirToSquare(d types.Vec3) [2]float32 {
	u := math32.Atan2(d[1], d[0]) / (2 * math32.Pi)
	if u < 0 {
		u += 1
	}
	z := d[2]
	if z < -1 {
		z = -1
	} else if z > 1 {
		z = 1
	}
	return [2]float32{u, (z + 1) * 0.5}
}

func SquareToDir(p [2]float32) types.Vec3 {
	phi := p[0] * 2 * math32.Pi
	z := p[1]*2 - 1
	r := math32.Sqrt(1 - z*z)
	return types.XYZ(r*math32.Cos(phi), r*math32.Sin(phi), z)
}
