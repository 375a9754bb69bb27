package scene

import "github.com/MinusKelvin/pbr-gpu/types"

// UV coordinates are remapped as uv*Scale + Delta before lookup.
type UVMapping struct {
	Scale types.Vec2
	Delta types.Vec2
}

// The identity UV mapping.
func DefaultUVMapping() UVMapping {
	return UVMapping{Scale: types.XY(1, 1)}
}

type ConstantTexture struct {
	Spectrum SpectrumID
}

type FloatImageTexture struct {
	Image   uint32
	Mapping UVMapping
}

type RGBImageTexture struct {
	Image   uint32
	Mapping UVMapping
}

type ScaleTexture struct {
	Left  TextureID
	Right TextureID
}

type MixTexture struct {
	Tex1   TextureID
	Tex2   TextureID
	Amount TextureID
}

type CheckerboardTexture struct {
	Even    TextureID
	Odd     TextureID
	Mapping UVMapping
}

// Add a texture evaluating to a fixed spectrum everywhere.
func (sc *Scene) AddConstantTexture(spectrum SpectrumID) TextureID {
	id := newTextureID(TextureConstant, len(sc.ConstantTex))
	sc.ConstantTex = append(sc.ConstantTex, ConstantTexture{Spectrum: spectrum})
	return id
}

// Add a single-channel image texture.
func (sc *Scene) AddFloatImageTexture(image uint32, mapping UVMapping) TextureID {
	id := newTextureID(TextureFloatImage, len(sc.FloatImageTex))
	sc.FloatImageTex = append(sc.FloatImageTex, FloatImageTexture{Image: image, Mapping: mapping})
	return id
}

// Add an RGB image texture.
func (sc *Scene) AddRGBImageTexture(image uint32, mapping UVMapping) TextureID {
	id := newTextureID(TextureRGBImage, len(sc.RGBImageTex))
	sc.RGBImageTex = append(sc.RGBImageTex, RGBImageTexture{Image: image, Mapping: mapping})
	return id
}

// Add a texture multiplying two textures.
func (sc *Scene) AddScaleTexture(left, right TextureID) TextureID {
	id := newTextureID(TextureScale, len(sc.ScaleTex))
	sc.ScaleTex = append(sc.ScaleTex, ScaleTexture{Left: left, Right: right})
	return id
}

// Add a texture blending two textures by a third.
func (sc *Scene) AddMixTexture(tex1, tex2, amount TextureID) TextureID {
	id := newTextureID(TextureMix, len(sc.MixTex))
	sc.MixTex = append(sc.MixTex, MixTexture{Tex1: tex1, Tex2: tex2, Amount: amount})
	return id
}

// Add a checkerboard of two textures.
func (sc *Scene) AddCheckerboardTexture(even, odd TextureID, mapping UVMapping) TextureID {
	id := newTextureID(TextureCheckerboard, len(sc.CheckerboardTex))
	sc.CheckerboardTex = append(sc.CheckerboardTex, CheckerboardTexture{Even: even, Odd: odd, Mapping: mapping})
	return id
}
