package scene

import (
	"github.com/MinusKelvin/pbr-gpu/log"
)

// Scene is the flat arena every entity of a renderable scene lives in. Each
// entity variant gets its own growable array and entities refer to each
// other by tagged handles, so the whole thing uploads to a device as a set
// of plain buffers. Indices are stable for the lifetime of the arena.
//
// The arena has a single writer. Construction is not thread safe; once a
// scene is handed to a tracer it must be treated as read-only until the
// tracer drains.
type Scene struct {
	logger log.Logger

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

	TableSpectra     []TableSpectrum
	ConstantSpectra  []ConstantSpectrum
	RGBAlbedoSpectra []RGBAlbedoSpectrum
	RGBIllumSpectra  []RGBIlluminantSpectrum
	BlackbodySpectra []BlackbodySpectrum
	PiecewiseSpectra []PiecewiseLinearSpectrum
	RGBIorImSpectra  []RGBIorImSpectrum

	Images    []Image
	FloatData []float32

	infiniteLights []LightID
	namedSpectra   map[string]SpectrumID
}

// Create an empty arena. The CIE matching curves, the D65 illuminant and
// the named spectrum library are seeded so spectrum handles 0-3 always mean
// the same thing.
func NewScene() *Scene {
	sc := &Scene{
		logger:       log.New("scene"),
		namedSpectra: make(map[string]SpectrumID),
	}
	sc.seedStandardSpectra()
	return sc
}

// Append raw float data to the shared blob and return its offset. CDF
// tables, spectrum payloads and image pixels all live here so the kernel
// needs just one float buffer binding.
func (sc *Scene) AddFloatData(data []float32) uint32 {
	ptr := uint32(len(sc.FloatData))
	sc.FloatData = append(sc.FloatData, data...)
	return ptr
}

// An image stored in the float blob, row-major, Channels floats per pixel.
type Image struct {
	Width    uint32
	Height   uint32
	Channels uint32
	DataPtr  uint32
}

// Store image pixels in the float blob and return the image index.
func (sc *Scene) AddImage(width, height, channels uint32, pixels []float32) uint32 {
	if uint32(len(pixels)) != width*height*channels {
		sc.logger.Warningf("image %dx%dx%d pixel count mismatch: got %d floats", width, height, channels, len(pixels))
	}
	idx := uint32(len(sc.Images))
	sc.Images = append(sc.Images, Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		DataPtr:  sc.AddFloatData(pixels),
	})
	return idx
}

// The infinite lights added so far, in creation order.
func (sc *Scene) InfiniteLights() []LightID {
	return sc.infiniteLights
}

// Look up a spectrum from the named library seeded by NewScene.
func (sc *Scene) NamedSpectrum(name string) (SpectrumID, bool) {
	id, ok := sc.namedSpectra[name]
	return id, ok
}
