package scene

import (
	"github.com/MinusKelvin/pbr-gpu/types"
)

// A pair of matrices describing a placement. M maps world space to object
// space and MInv maps object space back to world space.
type Transform struct {
	M    types.Mat4
	MInv types.Mat4
}

// Create a transform from an object-to-world placement matrix.
func NewTransform(placement types.Mat4) Transform {
	return Transform{
		M:    placement.Inv(),
		MInv: placement,
	}
}

// The identity transform.
func IdentityTransform() Transform {
	return Transform{
		M:    types.Ident4(),
		MInv: types.Ident4(),
	}
}

// A scene graph node applying a transform to a child node.
type TransformNode struct {
	Transform Transform
	Object    NodeID

	Pad [3]uint32
}

// A scene graph leaf tying a shape to its material, an optional area light
// and an optional alpha mask texture.
type PrimitiveNode struct {
	Shape    ShapeID
	Material MaterialID
	Light    LightID
	Alpha    TextureID
}

// Add a primitive node.
func (sc *Scene) AddPrimitive(prim PrimitiveNode) NodeID {
	id := newNodeID(NodePrimitive, len(sc.Primitives))
	sc.Primitives = append(sc.Primitives, prim)
	return id
}

// Add a transform node wrapping a child node.
func (sc *Scene) AddTransform(transform Transform, node NodeID) NodeID {
	id := newNodeID(NodeTransform, len(sc.TransformNodes))
	sc.TransformNodes = append(sc.TransformNodes, TransformNode{
		Transform: transform,
		Object:    node,
	})
	return id
}

// World-space bounds of a scene graph node. Transform nodes map the eight
// corners of the child bounds and re-box them, which is conservative but
// cheap.
func (sc *Scene) NodeBounds(node NodeID) Bounds {
	switch node.Kind() {
	case NodePrimitive:
		return sc.ShapeBounds(sc.Primitives[node.Index()].Shape)
	case NodeBVH:
		bvh := sc.BVHNodes[node.Index()]
		return Bounds{Min: bvh.Min, Max: bvh.Max}
	default:
		tn := sc.TransformNodes[node.Index()]
		childBounds := sc.NodeBounds(tn.Object)

		corners := childBounds.Corners()
		mapped := make([]types.Vec3, len(corners))
		for i, p := range corners {
			mapped[i] = types.TransformCoordinate(p, tn.Transform.MInv)
		}
		return BoundsFromPoints(mapped)
	}
}
