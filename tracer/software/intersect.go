package software

import (
	"github.com/chewxy/math32"

	"github.com/MinusKelvin/pbr-gpu/scene"
	"github.com/MinusKelvin/pbr-gpu/types"
)

const (
	// Self-intersection epsilon for spawned rays.
	rayEps = 1e-4

	// Far handles outstanding during a BVH walk. The builder emits strict
	// binary trees, so depth is bounded by the scene graph fan-out and 64
	// covers any arena the handle space can address.
	bvhStackSize = 64
)

type ray struct {
	origin types.Vec3
	dir    types.Vec3
}

func (r ray) at(t float32) types.Vec3 {
	return r.origin.Add(r.dir.Mul(t))
}

// A surface hit. Positions and normals are in the space of the node the
// query was issued in; transform nodes convert them while unwinding.
type hit struct {
	t      float32
	prim   int
	point  types.Vec3
	normal types.Vec3
	uv     types.Vec2
}

// Find the closest surface along the ray with t in (rayEps, tMax).
func intersect(ps *scene.PackedScene, r ray, tMax float32) (hit, bool) {
	h := hit{t: tMax, prim: -1}
	found := intersectNode(ps, ps.Root, r, &h)
	return h, found
}

func intersectNode(ps *scene.PackedScene, id scene.NodeID, r ray, h *hit) bool {
	switch id.Kind() {
	case scene.NodeBVH:
		return intersectBVH(ps, id, r, h)

	case scene.NodeTransform:
		tn := &ps.TransformNodes[id.Index()]
		local := ray{
			origin: types.TransformCoordinate(r.origin, tn.Transform.M),
			dir:    types.TransformNormal(r.dir, tn.Transform.M),
		}
		// The direction is left unnormalized so the t parameter means the
		// same thing in every space along the chain.
		if !intersectNode(ps, tn.Object, local, h) {
			return false
		}
		h.point = types.TransformCoordinate(h.point, tn.Transform.MInv)
		h.normal = types.TransformNormal(h.normal, tn.Transform.M.Transpose()).Normalize()
		return true

	default:
		prim := &ps.Primitives[id.Index()]
		if prim.Shape.Kind() == scene.ShapeSphere {
			return intersectSphere(&ps.Spheres[prim.Shape.Index()], r, h, id.Index())
		}
		return intersectTriangle(ps, &ps.Triangles[prim.Shape.Index()], r, h, id.Index())
	}
}

// Walk a BVH with a fixed stack of far handles. Interior nodes store their
// near child at idx+1 and the split axis in Flags, which lets the walk
// descend the child facing the ray first.
func intersectBVH(ps *scene.PackedScene, id scene.NodeID, r ray, h *hit) bool {
	invDir := types.XYZ(1/r.dir[0], 1/r.dir[1], 1/r.dir[2])

	var stack [bvhStackSize]int
	sp := 0
	found := false
	idx := id.Index()

	for {
		n := &ps.BVHNodes[idx]
		if hitBounds(n, r.origin, invDir, h.t) {
			if n.IsLeaf() {
				if intersectNode(ps, n.Far, r, h) {
					found = true
				}
			} else {
				near, far := idx+1, n.Far.Index()
				if r.dir[n.Axis()] < 0 {
					near, far = far, near
				}
				if sp < bvhStackSize {
					stack[sp] = far
					sp++
					idx = near
					continue
				}
				// Stack exhausted on a degenerate tree; trade the far
				// subtree for not crashing.
				idx = near
				continue
			}
		}
		if sp == 0 {
			return found
		}
		sp--
		idx = stack[sp]
	}
}

// Slab test against a BVH node's bounds.
func hitBounds(n *scene.BVHNode, origin, invDir types.Vec3, tMax float32) bool {
	t0 := float32(0)
	t1 := tMax
	for a := 0; a < 3; a++ {
		ta := (n.Min[a] - origin[a]) * invDir[a]
		tb := (n.Max[a] - origin[a]) * invDir[a]
		if ta > tb {
			ta, tb = tb, ta
		}
		if ta > t0 {
			t0 = ta
		}
		if tb < t1 {
			t1 = tb
		}
		if t0 > t1 {
			return false
		}
	}
	return true
}

// Intersect a clipped unit sphere at the origin.
func intersectSphere(s *scene.Sphere, r ray, h *hit, prim int) bool {
	a := r.dir.Dot(r.dir)
	b := 2 * r.origin.Dot(r.dir)
	c := r.origin.Dot(r.origin) - 1
	disc := b*b - 4*a*c
	if disc < 0 {
		return false
	}
	sq := math32.Sqrt(disc)

	for _, t := range [2]float32{(-b - sq) / (2 * a), (-b + sq) / (2 * a)} {
		if t <= rayEps || t >= h.t {
			continue
		}
		p := r.at(t)
		if p[2] < s.ZMin || p[2] > s.ZMax {
			continue
		}

		normal := p
		if s.FlipNormal != 0 {
			normal = normal.Mul(-1)
		}

		phi := math32.Atan2(p[1], p[0])
		if phi < 0 {
			phi += 2 * math32.Pi
		}

		h.t = t
		h.prim = prim
		h.point = p
		h.normal = normal
		h.uv = types.XY(phi/(2*math32.Pi), (p[2]-s.ZMin)/(s.ZMax-s.ZMin))
		return true
	}
	return false
}

// Moeller-Trumbore triangle intersection with interpolated shading normals
// and UVs.
func intersectTriangle(ps *scene.PackedScene, tri *scene.Triangle, r ray, h *hit, prim int) bool {
	v0 := &ps.TriVerts[tri.Vertices[0]]
	v1 := &ps.TriVerts[tri.Vertices[1]]
	v2 := &ps.TriVerts[tri.Vertices[2]]

	e1 := v1.P.Sub(v0.P)
	e2 := v2.P.Sub(v0.P)

	pv := r.dir.Cross(e2)
	det := e1.Dot(pv)
	if math32.Abs(det) < 1e-12 {
		return false
	}
	invDet := 1 / det

	tv := r.origin.Sub(v0.P)
	u := tv.Dot(pv) * invDet
	if u < 0 || u > 1 {
		return false
	}

	qv := tv.Cross(e1)
	v := r.dir.Dot(qv) * invDet
	if v < 0 || u+v > 1 {
		return false
	}

	t := e2.Dot(qv) * invDet
	if t <= rayEps || t >= h.t {
		return false
	}

	normal := v0.N.Mul(1 - u - v).Add(v1.N.Mul(u)).Add(v2.N.Mul(v))
	if normal.Dot(normal) < 1e-12 {
		normal = e1.Cross(e2)
	}

	h.t = t
	h.prim = prim
	h.point = r.at(t)
	h.normal = normal.Normalize()
	h.uv = types.XY(
		v0.U*(1-u-v)+v1.U*u+v2.U*v,
		v0.V*(1-u-v)+v1.V*u+v2.V*v,
	)
	return true
}
