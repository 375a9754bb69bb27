package scene

import (
	"github.com/chewxy/math32"

	"github.com/MinusKelvin/pbr-gpu/types"
)

// A unit sphere at the origin, optionally clipped to a z range. Placement
// and radius come from a transform node wrapped around the primitive.
type Sphere struct {
	ZMin       float32
	ZMax       float32
	FlipNormal uint32
}

// The whole unit sphere.
func FullSphere() Sphere {
	return Sphere{ZMin: -1, ZMax: 1}
}

func (s Sphere) bounds() Bounds {
	return Bounds{
		Min: types.XYZ(-1, -1, s.ZMin),
		Max: types.XYZ(1, 1, s.ZMax),
	}
}

// Lateral surface area of the clipped unit sphere.
func (s Sphere) area() float32 {
	return 2 * math32.Pi * (s.ZMax - s.ZMin)
}

// A packed triangle vertex. Interleaving the UV coordinates keeps the
// struct at two 16-byte rows for device access.
type TriVertex struct {
	P types.Vec3
	U float32
	N types.Vec3
	V float32
}

// A triangle referencing three entries of the shared vertex array.
type Triangle struct {
	Vertices [3]uint32
}

func (t Triangle) bounds(verts []TriVertex) Bounds {
	return BoundsFromPoints([]types.Vec3{
		verts[t.Vertices[0]].P,
		verts[t.Vertices[1]].P,
		verts[t.Vertices[2]].P,
	})
}

func (t Triangle) area(verts []TriVertex) float32 {
	e1 := verts[t.Vertices[1]].P.Sub(verts[t.Vertices[0]].P)
	e2 := verts[t.Vertices[2]].P.Sub(verts[t.Vertices[0]].P)
	return e1.Cross(e2).Len() * 0.5
}

// Add a sphere shape.
func (sc *Scene) AddSphere(sphere Sphere) ShapeID {
	id := newShapeID(ShapeSphere, len(sc.Spheres))
	sc.Spheres = append(sc.Spheres, sphere)
	return id
}

// Add a block of triangles sharing a vertex array. The vertex block is
// appended once and the triangle indices are rebased onto it; one handle
// per triangle is returned, in input order.
func (sc *Scene) AddTriangles(verts []TriVertex, tris [][3]uint32) []ShapeID {
	baseVertex := uint32(len(sc.TriVerts))
	sc.TriVerts = append(sc.TriVerts, verts...)

	ids := make([]ShapeID, len(tris))
	for i, tri := range tris {
		ids[i] = newShapeID(ShapeTriangle, len(sc.Triangles))
		sc.Triangles = append(sc.Triangles, Triangle{
			Vertices: [3]uint32{
				tri[0] + baseVertex,
				tri[1] + baseVertex,
				tri[2] + baseVertex,
			},
		})
	}
	return ids
}

// Object-space bounds of a shape.
func (sc *Scene) ShapeBounds(shape ShapeID) Bounds {
	switch shape.Kind() {
	case ShapeSphere:
		return sc.Spheres[shape.Index()].bounds()
	default:
		return sc.Triangles[shape.Index()].bounds(sc.TriVerts)
	}
}

// Object-space surface area of a shape.
func (sc *Scene) ShapeArea(shape ShapeID) float32 {
	switch shape.Kind() {
	case ShapeSphere:
		return sc.Spheres[shape.Index()].area()
	default:
		return sc.Triangles[shape.Index()].area(sc.TriVerts)
	}
}
