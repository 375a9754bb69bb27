package scene

import (
	"fmt"

	"github.com/MinusKelvin/pbr-gpu/types"
)

// Frustum holds the ray directions at the four corners of the camera
// frustum. Per-pixel rays are generated by bilinear interpolation of the
// corner rays. The W coordinate is unused but kept so the packed layout
// matches the float4 alignment device kernels expect.
type Frustum [4]types.Vec4

func (fr Frustum) String() string {
	return fmt.Sprintf(
		"Frustum Rays:\nTL : (%3.3f, %3.3f, %3.3f)\nTR : (%3.3f, %3.3f, %3.3f)\nBL : (%3.3f, %3.3f, %3.3f)\nBR : (%3.3f, %3.3f, %3.3f)",
		fr[0][0], fr[0][1], fr[0][2],
		fr[1][0], fr[1][1], fr[1][2],
		fr[2][0], fr[2][1], fr[2][2],
		fr[3][0], fr[3][1], fr[3][2],
	)
}

// Camera generates primary ray directions for the sampled frame.
type Camera struct {
	Position types.Vec3
	LookAt   types.Vec3
	Up       types.Vec3
	Pitch    float32
	Yaw      float32

	ViewMat types.Mat4
	ProjMat types.Mat4
	Frustum Frustum

	// Vertical FOV in degrees.
	FOV float32

	// Flip the frustum so Y grows downward, matching image row order.
	InvertY bool
}

func NewCamera(fov float32) *Camera {
	return &Camera{
		ViewMat:  types.Ident4(),
		ProjMat:  types.Ident4(),
		Position: types.Vec3{0, 0, 0},
		LookAt:   types.Vec3{0, 0, -1},
		Up:       types.Vec3{0, 1, 0},
		FOV:      fov,
	}
}

// Setup the camera projection matrix for the given aspect ratio.
func (c *Camera) SetupProjection(aspect float32) {
	c.ProjMat = types.Perspective4(c.FOV, aspect, 1, 1000)
	c.Update()
}

// Recalculate the view matrix and frustum rays after the camera moved.
func (c *Camera) Update() {
	dir := c.LookAt.Sub(c.Position).Normalize()
	pitchAxis := dir.Cross(c.Up)
	pitchQuat := types.QuatFromAxisAngle(pitchAxis, c.Pitch)
	yawQuat := types.QuatFromAxisAngle(c.Up, c.Yaw)

	orientQuat := pitchQuat.Mul(yawQuat).Normalize()

	dir = orientQuat.Rotate(dir)
	c.LookAt = c.Position.Add(dir)

	c.ViewMat = types.LookAtV(c.Position, c.LookAt, c.Up)
	c.updateFrustum()
}

// Translate the camera along its local forward and right axes.
func (c *Camera) Move(forward, right float32) {
	dir := c.LookAt.Sub(c.Position).Normalize()
	rightAxis := dir.Cross(c.Up).Normalize()

	offset := dir.Mul(forward).Add(rightAxis.Mul(right))
	c.Position = c.Position.Add(offset)
	c.LookAt = c.LookAt.Add(offset)
	c.Update()
}

func (c *Camera) InvViewProjMat() types.Mat4 {
	return c.ProjMat.Mul4(c.ViewMat).Inv()
}

// Recover each frustum corner ray by unprojecting the clip space corners
// through the inverse proj*view matrix, dividing out the perspective and
// subtracting the eye position.
func (c *Camera) updateFrustum() {
	var v types.Vec4
	invProjViewMat := c.InvViewProjMat()

	var yUp float32 = 1.0
	if c.InvertY {
		yUp = -1.0
	}

	v = invProjViewMat.Mul4x1(types.XYZW(-1, yUp, -1, 1))
	c.Frustum[0] = v.Mul(1.0 / v[3]).Vec3().Sub(c.Position).Vec4(0)

	v = invProjViewMat.Mul4x1(types.XYZW(1, yUp, -1, 1))
	c.Frustum[1] = v.Mul(1.0 / v[3]).Vec3().Sub(c.Position).Vec4(0)

	v = invProjViewMat.Mul4x1(types.XYZW(-1, -yUp, -1, 1))
	c.Frustum[2] = v.Mul(1.0 / v[3]).Vec3().Sub(c.Position).Vec4(0)

	v = invProjViewMat.Mul4x1(types.XYZW(1, -yUp, -1, 1))
	c.Frustum[3] = v.Mul(1.0 / v[3]).Vec3().Sub(c.Position).Vec4(0)
}
