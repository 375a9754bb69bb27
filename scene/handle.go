package scene

import "fmt"

// Scene entities are addressed by 32-bit handles that pack a variant tag
// into the top bits and an array index into the rest. The kernel receives
// handles as plain uints and splits them with the same shift constants; the
// typed wrappers below keep host code from mixing up entity kinds.

const (
	shapeTagShift    = 32 - 1
	nodeTagShift     = 32 - 2
	lightTagShift    = 32 - 2
	samplerTagShift  = 32 - 1
	materialTagShift = 32 - 3
	textureTagShift  = 32 - 3
	spectrumTagShift = 32 - 3
)

// Tag value of a handle with the given tag shift.
func handleTag(raw uint32, tagShift uint32) uint32 {
	return raw >> tagShift
}

// Index value of a handle with the given tag shift.
func handleIndex(raw uint32, tagShift uint32) int {
	return int(raw & (1<<tagShift - 1))
}

// Pack a tag and index, panicking when the index does not fit. Running out
// of index bits means the scene is corrupt or absurdly large; there is no
// way to continue building it.
func packHandle(kind string, tagShift uint32, tag uint32, index int) uint32 {
	mask := uint32(1)<<tagShift - 1
	if index < 0 || uint32(index) > mask {
		panic(fmt.Sprintf("scene: cannot exceed %d %s entries", mask, kind))
	}
	return tag<<tagShift | uint32(index)
}

type ShapeID uint32

type ShapeKind uint32

const (
	ShapeSphere ShapeKind = iota
	ShapeTriangle
)

func newShapeID(kind ShapeKind, index int) ShapeID {
	return ShapeID(packHandle("shape", shapeTagShift, uint32(kind), index))
}

func (id ShapeID) Kind() ShapeKind { return ShapeKind(handleTag(uint32(id), shapeTagShift)) }
func (id ShapeID) Index() int      { return handleIndex(uint32(id), shapeTagShift) }

type NodeID uint32

type NodeKind uint32

const (
	NodeBVH NodeKind = iota
	NodeTransform
	NodePrimitive
)

// NoNode is the zero BVH handle, used where a node reference is optional.
const NoNode NodeID = 0

func newNodeID(kind NodeKind, index int) NodeID {
	return NodeID(packHandle("node", nodeTagShift, uint32(kind), index))
}

func (id NodeID) Kind() NodeKind { return NodeKind(handleTag(uint32(id), nodeTagShift)) }
func (id NodeID) Index() int     { return handleIndex(uint32(id), nodeTagShift) }

type LightID uint32

type LightKind uint32

const (
	LightUniform LightKind = iota
	LightImage
	LightArea
)

// NoLight marks a primitive as non-emissive. Primitives only ever carry
// Area lights, whose packed values are never zero.
const NoLight LightID = 0

func newLightID(kind LightKind, index int) LightID {
	return LightID(packHandle("light", lightTagShift, uint32(kind), index))
}

func (id LightID) Kind() LightKind { return LightKind(handleTag(uint32(id), lightTagShift)) }
func (id LightID) Index() int      { return handleIndex(uint32(id), lightTagShift) }

// Uniform and image lights sit at infinity and surround the scene.
func (id LightID) IsInfinite() bool {
	kind := id.Kind()
	return kind == LightUniform || kind == LightImage
}

type LightSamplerID uint32

type LightSamplerKind uint32

const (
	SamplerUniform LightSamplerKind = iota
	SamplerPower
)

func newLightSamplerID(kind LightSamplerKind, index int) LightSamplerID {
	return LightSamplerID(packHandle("light sampler", samplerTagShift, uint32(kind), index))
}

func (id LightSamplerID) Kind() LightSamplerKind {
	return LightSamplerKind(handleTag(uint32(id), samplerTagShift))
}
func (id LightSamplerID) Index() int { return handleIndex(uint32(id), samplerTagShift) }

type MaterialID uint32

type MaterialKind uint32

const (
	MaterialDiffuse MaterialKind = iota
	MaterialDiffuseTransmit
	MaterialConductor
	MaterialDielectric
	MaterialThinDielectric
	MaterialMetallicWorkflow
	MaterialMix
)

func newMaterialID(kind MaterialKind, index int) MaterialID {
	return MaterialID(packHandle("material", materialTagShift, uint32(kind), index))
}

func (id MaterialID) Kind() MaterialKind {
	return MaterialKind(handleTag(uint32(id), materialTagShift))
}
func (id MaterialID) Index() int { return handleIndex(uint32(id), materialTagShift) }

type TextureID uint32

type TextureKind uint32

const (
	TextureConstant     TextureKind = 0
	TextureFloatImage   TextureKind = 2
	TextureRGBImage     TextureKind = 3
	TextureScale        TextureKind = 4
	TextureMix          TextureKind = 5
	TextureCheckerboard TextureKind = 6
)

// NoNormalMap marks the absence of an optional normal map reference.
const NoNormalMap = ^uint32(0)

func newTextureID(kind TextureKind, index int) TextureID {
	return TextureID(packHandle("texture", textureTagShift, uint32(kind), index))
}

func (id TextureID) Kind() TextureKind {
	return TextureKind(handleTag(uint32(id), textureTagShift))
}
func (id TextureID) Index() int { return handleIndex(uint32(id), textureTagShift) }

type SpectrumID uint32

type SpectrumKind uint32

const (
	SpectrumTable SpectrumKind = iota
	SpectrumConstant
	SpectrumRGBAlbedo
	SpectrumRGBIlluminant
	SpectrumBlackbody
	SpectrumPiecewiseLinear
	SpectrumRGBIorIm
)

// Standard spectra seeded into every scene by NewScene.
const (
	SpectrumCIEX SpectrumID = 0
	SpectrumCIEY SpectrumID = 1
	SpectrumCIEZ SpectrumID = 2
	SpectrumD65  SpectrumID = 3
)

func newSpectrumID(kind SpectrumKind, index int) SpectrumID {
	return SpectrumID(packHandle("spectrum", spectrumTagShift, uint32(kind), index))
}

func (id SpectrumID) Kind() SpectrumKind {
	return SpectrumKind(handleTag(uint32(id), spectrumTagShift))
}
func (id SpectrumID) Index() int { return handleIndex(uint32(id), spectrumTagShift) }
