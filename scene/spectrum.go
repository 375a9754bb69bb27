package scene

import (
	"github.com/chewxy/math32"

	"github.com/MinusKelvin/pbr-gpu/types"
)

// Spectra are sampled over the visible range at 1nm steps.
const (
	LambdaMin       = 360
	LambdaMax       = 830
	SpectralSamples = LambdaMax - LambdaMin + 1
)

type TableSpectrum struct {
	Data [SpectralSamples]float32
}

type ConstantSpectrum struct {
	Value float32
}

type RGBAlbedoSpectrum struct {
	RGB types.Vec3
	Pad uint32
}

type RGBIlluminantSpectrum struct {
	RGB        types.Vec3
	Illuminant SpectrumID
}

type BlackbodySpectrum struct {
	Temperature float32
	Scale       float32
}

type PiecewiseLinearSpectrum struct {
	Ptr     uint32
	Entries uint32
}

type RGBIorImSpectrum struct {
	RGB types.Vec3
	Pad uint32
}

// Add a densely sampled spectrum.
func (sc *Scene) AddTableSpectrum(spectrum TableSpectrum) SpectrumID {
	id := newSpectrumID(SpectrumTable, len(sc.TableSpectra))
	sc.TableSpectra = append(sc.TableSpectra, spectrum)
	return id
}

// Add a spectrum with the same value at every wavelength.
func (sc *Scene) AddConstantSpectrum(value float32) SpectrumID {
	id := newSpectrumID(SpectrumConstant, len(sc.ConstantSpectra))
	sc.ConstantSpectra = append(sc.ConstantSpectra, ConstantSpectrum{Value: value})
	return id
}

// Add a reflectance spectrum reconstructed from an RGB triple.
func (sc *Scene) AddRGBAlbedoSpectrum(rgb types.Vec3) SpectrumID {
	id := newSpectrumID(SpectrumRGBAlbedo, len(sc.RGBAlbedoSpectra))
	sc.RGBAlbedoSpectra = append(sc.RGBAlbedoSpectra, RGBAlbedoSpectrum{RGB: rgb})
	return id
}

// Add an emission spectrum reconstructed from an RGB triple against a table
// illuminant.
func (sc *Scene) AddRGBIlluminantSpectrum(rgb types.Vec3, illuminant SpectrumID) SpectrumID {
	if illuminant.Kind() != SpectrumTable {
		panic("scene: RGB illuminant spectra require a table illuminant")
	}
	id := newSpectrumID(SpectrumRGBIlluminant, len(sc.RGBIllumSpectra))
	sc.RGBIllumSpectra = append(sc.RGBIllumSpectra, RGBIlluminantSpectrum{
		RGB:        rgb,
		Illuminant: illuminant,
	})
	return id
}

// Add an index-of-refraction spectrum reconstructed from an RGB triple.
func (sc *Scene) AddRGBIorImSpectrum(rgb types.Vec3) SpectrumID {
	id := newSpectrumID(SpectrumRGBIorIm, len(sc.RGBIorImSpectra))
	sc.RGBIorImSpectra = append(sc.RGBIorImSpectra, RGBIorImSpectrum{RGB: rgb})
	return id
}

// Add a Planck blackbody emission spectrum. When normalize is set, scale is
// divided by the luminous response of the raw curve so different
// temperatures emit comparable brightness.
func (sc *Scene) AddBlackbodySpectrum(temperature, scale float32, normalize bool) SpectrumID {
	if normalize {
		var response float32
		for i, y := range sc.TableSpectra[SpectrumCIEY.Index()].Data {
			response += y * Blackbody(float32(LambdaMin+i), temperature)
		}
		scale /= response
	}
	id := newSpectrumID(SpectrumBlackbody, len(sc.BlackbodySpectra))
	sc.BlackbodySpectra = append(sc.BlackbodySpectra, BlackbodySpectrum{
		Temperature: temperature,
		Scale:       scale,
	})
	return id
}

// Add a spectrum linearly interpolated between (wavelength, value) control
// points, which must be sorted by wavelength.
func (sc *Scene) AddPiecewiseLinearSpectrum(data [][2]float32) SpectrumID {
	flat := make([]float32, 0, len(data)*2)
	for _, entry := range data {
		flat = append(flat, entry[0], entry[1])
	}
	id := newSpectrumID(SpectrumPiecewiseLinear, len(sc.PiecewiseSpectra))
	sc.PiecewiseSpectra = append(sc.PiecewiseSpectra, PiecewiseLinearSpectrum{
		Ptr:     sc.AddFloatData(flat),
		Entries: uint32(len(data)),
	})
	return id
}

// Spectral radiance of a blackbody at the given wavelength in nm and
// temperature in Kelvin, per nm.
func Blackbody(lambda, temperature float32) float32 {
	const c = 299_792_458.0
	const h = 6.62606957e-34
	const kB = 1.3806488e-23

	l := float64(lambda) * 1e-9
	l2 := l * l
	l5 := l2 * l2 * l
	e := h * c / (l * kB * float64(temperature))
	radiance := 2.0 * h * c * c / (l5 * (math32.Exp(float32(e)) - 1.0))
	// Planck's law gives radiance per meter of wavelength; rescale to nm.
	return float32(radiance * 1e-9)
}

// Evaluate a spectrum at a wavelength in nm. RGB spectra evaluate to their
// luminance; proper spectral reconstruction of RGB triples is a kernel
// concern.
func (sc *Scene) EvalSpectrum(id SpectrumID, lambda float32) float32 {
	switch id.Kind() {
	case SpectrumTable:
		data := &sc.TableSpectra[id.Index()].Data
		pos := lambda - LambdaMin
		if pos <= 0 {
			return data[0]
		}
		if pos >= SpectralSamples-1 {
			return data[SpectralSamples-1]
		}
		idx := int(pos)
		frac := pos - float32(idx)
		return data[idx]*(1-frac) + data[idx+1]*frac

	case SpectrumConstant:
		return sc.ConstantSpectra[id.Index()].Value

	case SpectrumRGBAlbedo:
		return luminance(sc.RGBAlbedoSpectra[id.Index()].RGB)

	case SpectrumRGBIlluminant:
		s := sc.RGBIllumSpectra[id.Index()]
		return luminance(s.RGB) * sc.EvalSpectrum(s.Illuminant, lambda)

	case SpectrumBlackbody:
		s := sc.BlackbodySpectra[id.Index()]
		return Blackbody(lambda, s.Temperature) * s.Scale

	case SpectrumPiecewiseLinear:
		s := sc.PiecewiseSpectra[id.Index()]
		return sc.evalPiecewise(s, lambda)

	default:
		return luminance(sc.RGBIorImSpectra[id.Index()].RGB)
	}
}

func (sc *Scene) evalPiecewise(s PiecewiseLinearSpectrum, lambda float32) float32 {
	n := int(s.Entries)
	if n == 0 {
		return 0
	}
	at := func(i int) (float32, float32) {
		return sc.FloatData[int(s.Ptr)+2*i], sc.FloatData[int(s.Ptr)+2*i+1]
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
}

// Total response of a spectrum summed over the sampled range, used as a
// relative radiant power estimate.
func (sc *Scene) SpectrumPower(id SpectrumID) float32 {
	var sum float32
	for i := 0; i < SpectralSamples; i++ {
		sum += sc.EvalSpectrum(id, float32(LambdaMin+i))
	}
	return sum
}

// Integrate a spectrum against the CIE matching curves.
func (sc *Scene) SpectrumXYZ(id SpectrumID) types.Vec3 {
	x := &sc.TableSpectra[SpectrumCIEX.Index()].Data
	y := &sc.TableSpectra[SpectrumCIEY.Index()].Data
	z := &sc.TableSpectra[SpectrumCIEZ.Index()].Data

	var out types.Vec3
	for i := 0; i < SpectralSamples; i++ {
		v := sc.EvalSpectrum(id, float32(LambdaMin+i))
		out[0] += v * x[i]
		out[1] += v * y[i]
		out[2] += v * z[i]
	}
	return out
}

func luminance(rgb types.Vec3) float32 {
	return 0.2126*rgb[0] + 0.7152*rgb[1] + 0.0722*rgb[2]
}

// Analytic fit of the CIE 1931 2-degree matching curves from Wyman, Sloan
// and Shirley, "Simple Analytic Approximations to the CIE XYZ Color
// Matching Functions". Accurate to a percent or two, which spares the repo
// a bundled data set.
func cieXYZFit(lambda float32) (x, y, z float32) {
	g := func(x, alpha, mu, sigma1, sigma2 float32) float32 {
		sigma := sigma1
		if x >= mu {
			sigma = sigma2
		}
		t := (x - mu) / sigma
		return alpha * math32.Exp(-0.5*t*t)
	}
	x = g(lambda, 1.056, 599.8, 37.9, 31.0) +
		g(lambda, 0.362, 442.0, 16.0, 26.7) +
		g(lambda, -0.065, 501.1, 20.4, 26.2)
	y = g(lambda, 0.821, 568.8, 46.9, 40.5) +
		g(lambda, 0.286, 530.9, 16.3, 31.1)
	z = g(lambda, 1.217, 437.0, 11.8, 36.0) +
		g(lambda, 0.681, 459.0, 26.0, 13.8)
	return x, y, z
}

// Seed the CIE matching curves (scaled by the 683.002 lm/W luminous
// efficacy), a D65 illuminant scaled to 1 nit, and the named spectrum
// library. Runs on an empty arena so the CIE handles are 0-2 and D65 is 3.
func (sc *Scene) seedStandardSpectra() {
	var cieX, cieY, cieZ TableSpectrum
	for i := 0; i < SpectralSamples; i++ {
		x, y, z := cieXYZFit(float32(LambdaMin + i))
		cieX.Data[i] = x * 683.002
		cieY.Data[i] = y * 683.002
		cieZ.Data[i] = z * 683.002
	}
	sc.AddTableSpectrum(cieX)
	sc.AddTableSpectrum(cieY)
	sc.AddTableSpectrum(cieZ)

	var yInt float32
	for _, y := range cieY.Data {
		yInt += y
	}

	// D65 approximated by a 6504K blackbody normalized to 100 at 560nm,
	// then scaled so a unit-scale D65 emitter has 1 nit luminance.
	var d65 TableSpectrum
	ref := Blackbody(560, 6504)
	for i := 0; i < SpectralSamples; i++ {
		rel := Blackbody(float32(LambdaMin+i), 6504) / ref * 100
		d65.Data[i] = rel / (yInt * 100)
	}
	sc.AddTableSpectrum(d65)

	names := map[string][][2]float32{
		"metal-Cu-eta": {
			{360, 1.27}, {400, 1.18}, {450, 1.17}, {500, 1.12}, {550, 0.76},
			{600, 0.37}, {650, 0.23}, {700, 0.22}, {750, 0.24}, {830, 0.28},
		},
		"metal-Cu-k": {
			{360, 1.95}, {400, 2.21}, {450, 2.38}, {500, 2.60}, {550, 2.67},
			{600, 3.07}, {650, 3.55}, {700, 3.92}, {750, 4.30}, {830, 4.80},
		},
		"metal-Au-eta": {
			{360, 1.70}, {400, 1.66}, {450, 1.50}, {500, 0.86}, {550, 0.35},
			{600, 0.21}, {650, 0.17}, {700, 0.16}, {750, 0.17}, {830, 0.19},
		},
		"metal-Au-k": {
			{360, 1.90}, {400, 1.96}, {450, 1.88}, {500, 1.90}, {550, 2.70},
			{600, 3.20}, {650, 3.65}, {700, 4.10}, {750, 4.50}, {830, 5.10},
		},
		"glass-BK7": {
			{360, 1.5390}, {400, 1.5308}, {450, 1.5253}, {500, 1.5214},
			{550, 1.5185}, {600, 1.5163}, {650, 1.5145}, {700, 1.5131},
			{750, 1.5119}, {830, 1.5105},
		},
	}
	for name, data := range names {
		sc.namedSpectra[name] = sc.AddPiecewiseLinearSpectrum(data)
	}
}
