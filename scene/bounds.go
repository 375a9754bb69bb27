package scene

import (
	"github.com/chewxy/math32"

	"github.com/MinusKelvin/pbr-gpu/types"
)

// An axis-aligned bounding box. The zero value is NOT a valid empty box;
// use EmptyBounds so that unions and extends behave.
type Bounds struct {
	Min types.Vec3
	Max types.Vec3
}

// Create an inverted box that unions correctly with anything.
func EmptyBounds() Bounds {
	inf := math32.Inf(1)
	return Bounds{
		Min: types.XYZ(inf, inf, inf),
		Max: types.XYZ(-inf, -inf, -inf),
	}
}

// Create the tightest box around a set of points.
func BoundsFromPoints(points []types.Vec3) Bounds {
	b := EmptyBounds()
	for _, p := range points {
		b = b.ExtendPoint(p)
	}
	return b
}

// The union of two boxes.
func (b Bounds) Union(other Bounds) Bounds {
	return Bounds{
		Min: types.MinVec3(b.Min, other.Min),
		Max: types.MaxVec3(b.Max, other.Max),
	}
}

// Grow the box to contain a point.
func (b Bounds) ExtendPoint(p types.Vec3) Bounds {
	return Bounds{
		Min: types.MinVec3(b.Min, p),
		Max: types.MaxVec3(b.Max, p),
	}
}

// The extent of the box along each axis.
func (b Bounds) Size() types.Vec3 {
	return b.Max.Sub(b.Min)
}

// The center point of the box.
func (b Bounds) Centroid() types.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Total area of the six faces. Degenerate boxes report zero.
func (b Bounds) SurfaceArea() float32 {
	size := b.Size()
	if size[0] < 0 || size[1] < 0 || size[2] < 0 {
		return 0
	}
	return 2 * (size[0]*size[1] + size[1]*size[2] + size[2]*size[0])
}

// The eight corner points of the box.
func (b Bounds) Corners() [8]types.Vec3 {
	var corners [8]types.Vec3
	for i := 0; i < 8; i++ {
		p := b.Min
		if i&1 != 0 {
			p[0] = b.Max[0]
		}
		if i&2 != 0 {
			p[1] = b.Max[1]
		}
		if i&4 != 0 {
			p[2] = b.Max[2]
		}
		corners[i] = p
	}
	return corners
}

// Whether the box contains a point, boundary included.
func (b Bounds) Contains(p types.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}
