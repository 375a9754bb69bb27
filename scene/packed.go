package scene

import "github.com/MinusKelvin/pbr-gpu/types"

// Scene group binding slots. Slots are spaced by resource class so kernels
// can gain buffers without renumbering their neighbours.
const (
	BindSpheres   = 0
	BindTriangles = 1
	BindTriVerts  = 2

	BindBVHNodes       = 8
	BindTransformNodes = 9
	BindPrimitives     = 10

	BindUniformLights = 16
	BindImageLights   = 17
	BindAreaLights    = 18

	BindUniformSamplers    = 24
	BindPowerSamplers      = 25
	BindUniformSamplerData = 26
	BindPowerSamplerData   = 27

	BindDiffuseMats         = 32
	BindDiffuseTransmitMats = 33
	BindConductorMats       = 34
	BindDielectricMats      = 35
	BindThinDielectricMats  = 36
	BindMetallicMats        = 37
	BindMixMats             = 38

	BindConstantTex     = 40
	BindFloatImageTex   = 41
	BindRGBImageTex     = 42
	BindScaleTex        = 43
	BindMixTex          = 44
	BindCheckerboardTex = 45
	BindImages          = 46

	BindTableSpectra     = 48
	BindConstantSpectra  = 49
	BindRGBAlbedoSpectra = 50
	BindRGBIllumSpectra  = 51
	BindBlackbodySpectra = 52
	BindPiecewiseSpectra = 53
	BindRGBIorImSpectra  = 54

	BindFloatData = 56
)

// Frame group binding slots.
const (
	FrameBindMean         = 0
	FrameBindVariance     = 1
	FrameBindCamera       = 16
	FrameBindClampSampler = 24
	FrameBindWrapSampler  = 25
	FrameBindRGBCoeffs    = 32
)

// CameraUniform is the packed camera state uploaded per frame. Per-pixel
// primary rays are interpolated from the four frustum corner rays.
type CameraUniform struct {
	Origin    types.Vec4
	FrustumTL types.Vec4
	FrustumTR types.Vec4
	FrustumBL types.Vec4
	FrustumBR types.Vec4
}

func PackCamera(c *Camera) CameraUniform {
	return CameraUniform{
		Origin:    c.Position.Vec4(1),
		FrustumTL: c.Frustum[0],
		FrustumTR: c.Frustum[1],
		FrustumBL: c.Frustum[2],
		FrustumBR: c.Frustum[3],
	}
}

// PackedScene is an upload-ready snapshot of the arena arrays. The slices
// alias the arena so the caller must not grow the arena while a device
// holds the snapshot; rebinding after edits means calling Pack again.
type PackedScene struct {
	Spheres   []Sphere
	Triangles []Triangle
	TriVerts  []TriVertex

	BVHNodes       []BVHNode
	TransformNodes []TransformNode
	Primitives     []PrimitiveNode

	UniformLights []UniformLight
	ImageLights   []ImageLight
	AreaLights    []AreaLight

	UniformSamplers    []UniformLightSampler
	PowerSamplers      []PowerLightSampler
	UniformSamplerData []LightID
	PowerSamplerData   []AliasBucket

	DiffuseMats         []DiffuseMaterial
	DiffuseTransmitMats []DiffuseTransmitMaterial
	ConductorMats       []ConductorMaterial
	DielectricMats      []DielectricMaterial
	ThinDielectricMats  []ThinDielectricMaterial
	MetallicMats        []MetallicWorkflowMaterial
	MixMats             []MixMaterial

	ConstantTex     []ConstantTexture
	FloatImageTex   []FloatImageTexture
	RGBImageTex     []RGBImageTexture
	ScaleTex        []ScaleTexture
	MixTex          []MixTexture
	CheckerboardTex []CheckerboardTexture
	Images          []Image

	TableSpectra     []TableSpectrum
	ConstantSpectra  []ConstantSpectrum
	RGBAlbedoSpectra []RGBAlbedoSpectrum
	RGBIllumSpectra  []RGBIlluminantSpectrum
	BlackbodySpectra []BlackbodySpectrum
	PiecewiseSpectra []PiecewiseLinearSpectrum
	RGBIorImSpectra  []RGBIorImSpectrum

	FloatData []float32

	// Scene graph root the tracer starts traversal from and the light
	// sampler it draws from.
	Root    NodeID
	Sampler LightSamplerID
}

// Pack builds the device view of the arena rooted at the given node.
func (sc *Scene) Pack(root NodeID, sampler LightSamplerID) *PackedScene {
	return &PackedScene{
		Spheres:   sc.Spheres,
		Triangles: sc.Triangles,
		TriVerts:  sc.TriVerts,

		BVHNodes:       sc.BVHNodes,
		TransformNodes: sc.TransformNodes,
		Primitives:     sc.Primitives,

		UniformLights: sc.UniformLights,
		ImageLights:   sc.ImageLights,
		AreaLights:    sc.AreaLights,

		UniformSamplers:    sc.UniformSamplers,
		PowerSamplers:      sc.PowerSamplers,
		UniformSamplerData: sc.UniformSamplerData,
		PowerSamplerData:   sc.PowerSamplerData,

		DiffuseMats:         sc.DiffuseMats,
		DiffuseTransmitMats: sc.DiffuseTransmitMats,
		ConductorMats:       sc.ConductorMats,
		DielectricMats:      sc.DielectricMats,
		ThinDielectricMats:  sc.ThinDielectricMats,
		MetallicMats:        sc.MetallicMats,
		MixMats:             sc.MixMats,

		ConstantTex:     sc.ConstantTex,
		FloatImageTex:   sc.FloatImageTex,
		RGBImageTex:     sc.RGBImageTex,
		ScaleTex:        sc.ScaleTex,
		MixTex:          sc.MixTex,
		CheckerboardTex: sc.CheckerboardTex,
		Images:          sc.Images,

		TableSpectra:     sc.TableSpectra,
		ConstantSpectra:  sc.ConstantSpectra,
		RGBAlbedoSpectra: sc.RGBAlbedoSpectra,
		BlackbodySpectra: sc.BlackbodySpectra,
		RGBIllumSpectra:  sc.RGBIllumSpectra,
		PiecewiseSpectra: sc.PiecewiseSpectra,
		RGBIorImSpectra:  sc.RGBIorImSpectra,

		FloatData: sc.FloatData,

		Root:    root,
		Sampler: sampler,
	}
}

// World-space bounds of the packed scene graph. Mirrors Scene.NodeBounds
// over the snapshot arrays so a holder can size acceleration structures
// without the arena.
func (ps *PackedScene) RootBounds() Bounds {
	return ps.nodeBounds(ps.Root)
}

func (ps *PackedScene) nodeBounds(node NodeID) Bounds {
	switch node.Kind() {
	case NodePrimitive:
		return ps.shapeBounds(ps.Primitives[node.Index()].Shape)
	case NodeBVH:
		bvh := ps.BVHNodes[node.Index()]
		return Bounds{Min: bvh.Min, Max: bvh.Max}
	default:
		tn := ps.TransformNodes[node.Index()]
		childBounds := ps.nodeBounds(tn.Object)

		corners := childBounds.Corners()
		mapped := make([]types.Vec3, len(corners))
		for i, p := range corners {
			mapped[i] = types.TransformCoordinate(p, tn.Transform.MInv)
		}
		return BoundsFromPoints(mapped)
	}
}

func (ps *PackedScene) shapeBounds(shape ShapeID) Bounds {
	switch shape.Kind() {
	case ShapeSphere:
		return ps.Spheres[shape.Index()].bounds()
	default:
		return ps.Triangles[shape.Index()].bounds(ps.TriVerts)
	}
}

// Binding pairs a packed array with its scene group slot.
type Binding struct {
	Slot uint32
	Name string
	Data interface{}
}

// Bindings enumerates the scene group contents in slot order.
func (ps *PackedScene) Bindings() []Binding {
	return []Binding{
		{BindSpheres, "spheres", ps.Spheres},
		{BindTriangles, "triangles", ps.Triangles},
		{BindTriVerts, "triangle_vertices", ps.TriVerts},
		{BindBVHNodes, "bvh_nodes", ps.BVHNodes},
		{BindTransformNodes, "transform_nodes", ps.TransformNodes},
		{BindPrimitives, "primitives", ps.Primitives},
		{BindUniformLights, "uniform_lights", ps.UniformLights},
		{BindImageLights, "image_lights", ps.ImageLights},
		{BindAreaLights, "area_lights", ps.AreaLights},
		{BindUniformSamplers, "uniform_samplers", ps.UniformSamplers},
		{BindPowerSamplers, "power_samplers", ps.PowerSamplers},
		{BindUniformSamplerData, "uniform_sampler_data", ps.UniformSamplerData},
		{BindPowerSamplerData, "power_sampler_data", ps.PowerSamplerData},
		{BindDiffuseMats, "diffuse_materials", ps.DiffuseMats},
		{BindDiffuseTransmitMats, "diffuse_transmit_materials", ps.DiffuseTransmitMats},
		{BindConductorMats, "conductor_materials", ps.ConductorMats},
		{BindDielectricMats, "dielectric_materials", ps.DielectricMats},
		{BindThinDielectricMats, "thin_dielectric_materials", ps.ThinDielectricMats},
		{BindMetallicMats, "metallic_materials", ps.MetallicMats},
		{BindMixMats, "mix_materials", ps.MixMats},
		{BindConstantTex, "constant_textures", ps.ConstantTex},
		{BindFloatImageTex, "float_image_textures", ps.FloatImageTex},
		{BindRGBImageTex, "rgb_image_textures", ps.RGBImageTex},
		{BindScaleTex, "scale_textures", ps.ScaleTex},
		{BindMixTex, "mix_textures", ps.MixTex},
		{BindCheckerboardTex, "checkerboard_textures", ps.CheckerboardTex},
		{BindImages, "images", ps.Images},
		{BindTableSpectra, "table_spectra", ps.TableSpectra},
		{BindConstantSpectra, "constant_spectra", ps.ConstantSpectra},
		{BindRGBAlbedoSpectra, "rgb_albedo_spectra", ps.RGBAlbedoSpectra},
		{BindRGBIllumSpectra, "rgb_illuminant_spectra", ps.RGBIllumSpectra},
		{BindBlackbodySpectra, "blackbody_spectra", ps.BlackbodySpectra},
		{BindPiecewiseSpectra, "piecewise_spectra", ps.PiecewiseSpectra},
		{BindRGBIorImSpectra, "rgb_ior_im_spectra", ps.RGBIorImSpectra},
		{BindFloatData, "float_data", ps.FloatData},
	}
}
