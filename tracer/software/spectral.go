package software

import (
	"github.com/MinusKelvin/pbr-gpu/scene"
	"github.com/MinusKelvin/pbr-gpu/types"
)

// The integrator works in linear sRGB. Spectra are collapsed to RGB once
// during Setup by integrating against the CIE tables seeded at spectrum
// handles 0-2; per-wavelength transport stays a kernel concern.
//
// The tables carry the 683 lm/W luminous efficacy, so integrating an
// emission spectrum yields nits directly while reflectance spectra divide
// it back out so a flat unit spectrum collapses to white.

// CIE XYZ to linear sRGB (D65 white).
var xyzToRGB = types.Mat3{
	3.2406, -0.9689, 0.0557,
	-1.5372, 1.8758, -0.2040,
	-0.4986, 0.0415, 1.0570,
}

// Evaluate a packed spectrum at a wavelength in nm.
func evalSpectrum(ps *scene.PackedScene, id scene.SpectrumID, lambda float32) float32 {
	switch id.Kind() {
	case scene.SpectrumTable:
		data := &ps.TableSpectra[id.Index()].Data
		pos := lambda - scene.LambdaMin
		if pos <= 0 {
			return data[0]
		}
		if pos >= scene.SpectralSamples-1 {
			return data[scene.SpectralSamples-1]
		}
		idx := int(pos)
		frac := pos - float32(idx)
		return data[idx]*(1-frac) + data[idx+1]*frac

	case scene.SpectrumConstant:
		return ps.ConstantSpectra[id.Index()].Value

	case scene.SpectrumBlackbody:
		s := ps.BlackbodySpectra[id.Index()]
		return scene.Blackbody(lambda, s.Temperature) * s.Scale

	case scene.SpectrumPiecewiseLinear:
		s := ps.PiecewiseSpectra[id.Index()]
		n := int(s.Entries)
		if n == 0 {
			return 0
		}
		at := func(i int) (float32, float32) {
			return ps.FloatData[int(s.Ptr)+2*i], ps.FloatData[int(s.Ptr)+2*i+1]
		}
		firstL, firstV := at(0)
		if lambda <= firstL {
			return firstV
		}
		lastL, lastV := at(n - 1)
		if lambda >= lastL {
			return lastV
		}
		for i := 1; i < n; i++ {
			l1, v1 := at(i)
			if lambda <= l1 {
				l0, v0 := at(i - 1)
				frac := (lambda - l0) / (l1 - l0)
				return v0*(1-frac) + v1*frac
			}
		}
		return lastV

	default:
		// RGB kinds are converted through the RGB collapses, never sampled.
		return 0
	}
}

// Integrate a sampled spectrum against the CIE matching curves.
func spectrumXYZ(ps *scene.PackedScene, id scene.SpectrumID) types.Vec3 {
	x := &ps.TableSpectra[scene.SpectrumCIEX.Index()].Data
	y := &ps.TableSpectra[scene.SpectrumCIEY.Index()].Data
	z := &ps.TableSpectra[scene.SpectrumCIEZ.Index()].Data

	var xyz types.Vec3
	for i := 0; i < scene.SpectralSamples; i++ {
		v := evalSpectrum(ps, id, float32(scene.LambdaMin+i))
		xyz[0] += v * x[i]
		xyz[1] += v * y[i]
		xyz[2] += v * z[i]
	}
	return xyz
}

// Total luminous response of the seeded CIE Y table.
func cieYTotal(ps *scene.PackedScene) float32 {
	var total float32
	for _, y := range ps.TableSpectra[scene.SpectrumCIEY.Index()].Data {
		total += y
	}
	return total
}

func clampNegative(rgb types.Vec3) types.Vec3 {
	for i := range rgb {
		if rgb[i] < 0 {
			rgb[i] = 0
		}
	}
	return rgb
}

// Collapse a reflectance spectrum to linear sRGB. A flat unit spectrum
// collapses to luminance 1 exactly, which keeps constant alpha masks
// opaque.
func reflectanceRGB(ps *scene.PackedScene, id scene.SpectrumID) types.Vec3 {
	switch id.Kind() {
	case scene.SpectrumConstant:
		v := ps.ConstantSpectra[id.Index()].Value
		return types.XYZ(v, v, v)

	case scene.SpectrumRGBAlbedo:
		return ps.RGBAlbedoSpectra[id.Index()].RGB

	case scene.SpectrumRGBIorIm:
		return ps.RGBIorImSpectra[id.Index()].RGB

	case scene.SpectrumRGBIlluminant:
		return ps.RGBIllumSpectra[id.Index()].RGB

	default:
		xyz := spectrumXYZ(ps, id).Mul(1 / cieYTotal(ps))
		return clampNegative(xyzToRGB.Mul3x1(xyz))
	}
}

// Collapse an emission spectrum to linear sRGB in nits, so a unit-scale
// D65 emitter and a normalized blackbody both land at luminance equal to
// their scale.
func emissionRGB(ps *scene.PackedScene, id scene.SpectrumID) types.Vec3 {
	switch id.Kind() {
	case scene.SpectrumRGBAlbedo:
		return ps.RGBAlbedoSpectra[id.Index()].RGB

	case scene.SpectrumRGBIorIm:
		return ps.RGBIorImSpectra[id.Index()].RGB

	case scene.SpectrumRGBIlluminant:
		s := ps.RGBIllumSpectra[id.Index()]
		// Scale the triple by the reference illuminant's luminance; a
		// normalized illuminant leaves it unchanged.
		y := &ps.TableSpectra[scene.SpectrumCIEY.Index()].Data
		var refLum float32
		for i := 0; i < scene.SpectralSamples; i++ {
			refLum += evalSpectrum(ps, s.Illuminant, float32(scene.LambdaMin+i)) * y[i]
		}
		return s.RGB.Mul(refLum)

	default:
		return clampNegative(xyzToRGB.Mul3x1(spectrumXYZ(ps, id)))
	}
}

// Scalar refractive index of a dielectric IOR spectrum, evaluated at the
// sodium D line.
func spectrumIor(ps *scene.PackedScene, id scene.SpectrumID) float32 {
	switch id.Kind() {
	case scene.SpectrumRGBAlbedo:
		return lum(ps.RGBAlbedoSpectra[id.Index()].RGB)
	case scene.SpectrumRGBIorIm:
		return lum(ps.RGBIorImSpectra[id.Index()].RGB)
	default:
		return evalSpectrum(ps, id, 589.3)
	}
}

// Walk every spectrum handle reachable from the packed arrays and convert
// it up front so pass workers only do map reads. Texture spectra collapse
// as reflectance, light spectra as emission.
func buildSpectrumCaches(ps *scene.PackedScene) (albedo, emission map[scene.SpectrumID]types.Vec3, iors map[scene.SpectrumID]float32) {
	albedo = make(map[scene.SpectrumID]types.Vec3)
	emission = make(map[scene.SpectrumID]types.Vec3)
	iors = make(map[scene.SpectrumID]float32)

	for _, tex := range ps.ConstantTex {
		if _, ok := albedo[tex.Spectrum]; !ok {
			albedo[tex.Spectrum] = reflectanceRGB(ps, tex.Spectrum)
		}
	}

	cacheEmission := func(id scene.SpectrumID) {
		if _, ok := emission[id]; !ok {
			emission[id] = emissionRGB(ps, id)
		}
	}
	for _, light := range ps.UniformLights {
		cacheEmission(light.Spectrum)
	}
	for _, light := range ps.AreaLights {
		cacheEmission(light.Spectrum)
	}

	cacheIor := func(id scene.SpectrumID) {
		if _, ok := iors[id]; !ok {
			iors[id] = spectrumIor(ps, id)
		}
	}
	for _, mat := range ps.DielectricMats {
		cacheIor(mat.Ior)
	}
	for _, mat := range ps.ThinDielectricMats {
		cacheIor(mat.Ior)
	}
	return albedo, emission, iors
}

func lum(rgb types.Vec3) float32 {
	return 0.2126*rgb[0] + 0.7152*rgb[1] + 0.0722*rgb[2]
}
