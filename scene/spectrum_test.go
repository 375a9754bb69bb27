package scene

import (
	"testing"

	"github.com/MinusKelvin/pbr-gpu/types"
)

func TestStandardSpectraSeeded(t *testing.T) {
	sc := NewScene()

	if len(sc.TableSpectra) != 4 {
		t.Fatalf("expected 4 seeded table spectra; got %d", len(sc.TableSpectra))
	}
	for _, id := range []SpectrumID{SpectrumCIEX, SpectrumCIEY, SpectrumCIEZ, SpectrumD65} {
		if id.Kind() != SpectrumTable {
			t.Fatalf("expected standard spectrum %d to be a table; got kind %d", id, id.Kind())
		}
	}

	// The luminosity curve peaks near 555nm at the luminous efficacy.
	peak := sc.EvalSpectrum(SpectrumCIEY, 555)
	if peak < 650 || peak > 700 {
		t.Fatalf("expected CIE Y near 683 at 555nm; got %f", peak)
	}
	if edge := sc.EvalSpectrum(SpectrumCIEY, 830); edge > 1 {
		t.Fatalf("expected CIE Y to vanish at the red edge; got %f", edge)
	}

	// A unit-scale D65 emitter is normalized to about one nit.
	if y := sc.SpectrumXYZ(SpectrumD65)[1]; y < 0.8 || y > 1.2 {
		t.Fatalf("expected D65 luminance near 1; got %f", y)
	}
}

func TestBlackbodyCurve(t *testing.T) {
	// Hotter bodies radiate more at every wavelength.
	if Blackbody(560, 5778) <= Blackbody(560, 3000) {
		t.Fatalf("expected the 5778K curve above the 3000K curve at 560nm")
	}

	// Wien's law puts the 5778K peak near 501nm.
	peak := Blackbody(501, 5778)
	if peak <= Blackbody(401, 5778) || peak <= Blackbody(601, 5778) {
		t.Fatalf("expected the 5778K curve to peak near 501nm")
	}
}

// Normalized blackbody spectra have unit luminous response regardless of
// temperature.
func TestBlackbodyNormalize(t *testing.T) {
	sc := NewScene()

	warm := sc.AddBlackbodySpectrum(2700, 1, true)
	cool := sc.AddBlackbodySpectrum(6500, 1, true)

	for _, id := range []SpectrumID{warm, cool} {
		if y := sc.SpectrumXYZ(id)[1]; y < 1-1e-2 || y > 1+1e-2 {
			t.Fatalf("expected unit luminance from normalized blackbody %d; got %f", id.Index(), y)
		}
	}
}

func TestNamedSpectra(t *testing.T) {
	sc := NewScene()

	if _, ok := sc.NamedSpectrum("unobtainium"); ok {
		t.Fatalf("expected unknown names to miss")
	}

	bk7, ok := sc.NamedSpectrum("glass-BK7")
	if !ok {
		t.Fatalf("expected glass-BK7 in the named library")
	}
	// BK7 refracts at 1.5168 at the sodium d line.
	if n := sc.EvalSpectrum(bk7, 587.6); n < 1.512 || n > 1.522 {
		t.Fatalf("expected BK7 ior near 1.517 at 587.6nm; got %f", n)
	}

	for _, name := range []string{"metal-Cu-eta", "metal-Cu-k", "metal-Au-eta", "metal-Au-k"} {
		id, ok := sc.NamedSpectrum(name)
		if !ok {
			t.Fatalf("expected %s in the named library", name)
		}
		if id.Kind() != SpectrumPiecewiseLinear {
			t.Fatalf("expected %s to be piecewise linear; got kind %d", name, id.Kind())
		}
	}

	// Gold absorbs blue and reflects red, so its extinction rises with
	// wavelength.
	auK, _ := sc.NamedSpectrum("metal-Au-k")
	if sc.EvalSpectrum(auK, 450) >= sc.EvalSpectrum(auK, 700) {
		t.Fatalf("expected gold extinction to grow toward red")
	}
}

func TestPiecewiseLinearEval(t *testing.T) {
	sc := NewScene()
	id := sc.AddPiecewiseLinearSpectrum([][2]float32{{400, 1}, {600, 3}})

	type spec struct {
		lambda float32
		want   float32
	}
	specs := []spec{
		spec{360, 1},
		spec{400, 1},
		spec{500, 2},
		spec{600, 3},
		spec{700, 3},
	}
	for index, s := range specs {
		got := sc.EvalSpectrum(id, s.lambda)
		if diff := got - s.want; diff < -1e-4 || diff > 1e-4 {
			t.Fatalf("[spec %d] expected %f at %fnm; got %f", index, s.want, s.lambda, got)
		}
	}
}

func TestRGBIlluminantRequiresTable(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for a non-table illuminant")
		}
	}()
	sc := NewScene()
	sc.AddRGBIlluminantSpectrum(types.XYZ(1, 0, 0), sc.AddConstantSpectrum(1))
}

func TestConstantSpectrumPower(t *testing.T) {
	sc := NewScene()
	id := sc.AddConstantSpectrum(2)

	want := float32(2 * SpectralSamples)
	if got := sc.SpectrumPower(id); got != want {
		t.Fatalf("expected power %f; got %f", want, got)
	}
}
