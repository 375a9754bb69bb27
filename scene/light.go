package scene

import (
	"github.com/chewxy/math32"
)

// An infinite light emitting the same spectrum in every direction.
type UniformLight struct {
	Spectrum SpectrumID
	Scale    float32

	// Sampling slot assigned when a light sampler is built over this
	// light, used by the kernel for selection pmf lookups.
	Slot uint32
}

// An infinite light emitting an environment image. Dist importance-samples
// the image by luminance.
type ImageLight struct {
	Transform Transform
	Image     uint32
	Scale     float32
	Slot      uint32
	Dist      TableSampler2D
}

// A light attached to a shape's surface.
type AreaLight struct {
	Spectrum      SpectrumID
	Scale         float32
	TransformNode NodeID
	Shape         ShapeID
	TwoSided      uint32
	Alpha         TextureID
	Slot          uint32
}

// Add a uniform infinite light.
func (sc *Scene) AddUniformLight(spectrum SpectrumID, scale float32) LightID {
	id := newLightID(LightUniform, len(sc.UniformLights))
	sc.infiniteLights = append(sc.infiniteLights, id)
	sc.UniformLights = append(sc.UniformLights, UniformLight{
		Spectrum: spectrum,
		Scale:    scale,
	})
	return id
}

// Add an image infinite light. The image is importance-sampled by the mean
// of its channels.
func (sc *Scene) AddImageLight(transform Transform, image uint32, scale float32) LightID {
	img := sc.Images[image]
	lum := make([]float32, img.Width*img.Height)
	for i := range lum {
		var sum float32
		base := img.DataPtr + uint32(i)*img.Channels
		for c := uint32(0); c < img.Channels; c++ {
			sum += sc.FloatData[base+c]
		}
		lum[i] = sum / float32(img.Channels)
	}
	dist := sc.Add2DTableSampler(0, 1, 0, 1, img.Width, img.Height, lum)

	id := newLightID(LightImage, len(sc.ImageLights))
	sc.infiniteLights = append(sc.infiniteLights, id)
	sc.ImageLights = append(sc.ImageLights, ImageLight{
		Transform: transform,
		Image:     image,
		Scale:     scale,
		Dist:      dist,
	})
	return id
}

// Add an area light over a shape. The transform node is attached later via
// SetAreaLightTransform once the emissive primitive has been placed.
func (sc *Scene) AddAreaLight(shape ShapeID, spectrum SpectrumID, scale float32, twoSided bool, alpha TextureID) LightID {
	id := newLightID(LightArea, len(sc.AreaLights))
	two := uint32(0)
	if twoSided {
		two = 1
	}
	sc.AreaLights = append(sc.AreaLights, AreaLight{
		Spectrum: spectrum,
		Scale:    scale,
		Shape:    shape,
		TwoSided: two,
		Alpha:    alpha,
	})
	return id
}

// Point an area light at the transform node placing its shape.
func (sc *Scene) SetAreaLightTransform(light LightID, transform NodeID) {
	sc.AreaLights[light.Index()].TransformNode = transform
}

// Estimated radiant power of a finite light. Infinite lights report zero;
// their weight is a light sampler policy (each gets the combined power of
// every finite light), not a property of the light itself.
func (sc *Scene) LightPower(light LightID) float32 {
	if light.Kind() != LightArea {
		return 0
	}

	al := sc.AreaLights[light.Index()]
	area := sc.ShapeArea(al.Shape)
	if al.TransformNode != NoNode && al.TransformNode.Kind() == NodeTransform {
		// Scale object-space area by the transform's volume change to the
		// two-thirds power, exact for uniform scaling.
		det := sc.TransformNodes[al.TransformNode.Index()].Transform.MInv.Det()
		area *= math32.Pow(math32.Abs(det), 2.0/3.0)
	}

	power := sc.SpectrumPower(al.Spectrum) * al.Scale * area * math32.Pi
	if al.TwoSided != 0 {
		power *= 2
	}
	return power
}
