package tracer

import (
	"github.com/MinusKelvin/pbr-gpu/types"
)

// Film accumulates radiance samples into running per-pixel mean and
// variance estimates.
//
// The mean layer stores linear RGB in xyz and the per-pixel sample count
// in w. The m2 layer stores the running sum of squared distances from
// the mean, from which the unbiased sample variance is derived.
//
// Pixel updates are not synchronized; callers partition the frame into
// disjoint row blocks so that no pixel is touched by two passes at once.
type Film struct {
	Width  uint32
	Height uint32

	mean []types.Vec4
	m2   []types.Vec4
}

// Create a zeroed film for the given frame dimensions.
func NewFilm(width, height uint32) *Film {
	return &Film{
		Width:  width,
		Height: height,
		mean:   make([]types.Vec4, width*height),
		m2:     make([]types.Vec4, width*height),
	}
}

// Zero all accumulators.
func (f *Film) Clear() {
	for i := range f.mean {
		f.mean[i] = types.Vec4{}
		f.m2[i] = types.Vec4{}
	}
}

// Fold one radiance sample into the pixel estimate using Welford's
// incremental update.
func (f *Film) Splat(x, y uint32, sample types.Vec3) {
	i := y*f.Width + x
	n := f.mean[i][3] + 1

	delta := sample.Sub(f.mean[i].Vec3())
	mean := f.mean[i].Vec3().Add(delta.Mul(1 / n))
	d2 := sample.Sub(mean)

	f.mean[i] = mean.Vec4(n)
	f.m2[i] = f.m2[i].Add(delta.MulVec(d2).Vec4(0))
}

// At returns the mean radiance, the per-channel sample variance and the
// sample count for a pixel. The variance is zero until a pixel has seen
// at least two samples.
func (f *Film) At(x, y uint32) (mean, variance types.Vec3, samples float32) {
	i := y*f.Width + x
	mean = f.mean[i].Vec3()
	samples = f.mean[i][3]
	if samples > 1 {
		variance = f.m2[i].Vec3().Mul(1 / (samples - 1))
	}
	return mean, variance, samples
}

// Moments returns the frame's mean luminance and the mean relative
// variance of the pixel estimators. Pixels with near-black means are
// skipped when averaging the relative variance so that noise in empty
// regions does not dominate the metric.
func (f *Film) Moments() (meanLum, relVariance float64) {
	var lumSum, relSum float64
	var relCount int

	for i := range f.mean {
		lum := float64(luminance(f.mean[i].Vec3()))
		lumSum += lum

		n := float64(f.mean[i][3])
		if n > 1 && lum > 1e-4 {
			variance := float64(luminance(f.m2[i].Vec3())) / (n - 1)
			relSum += variance / (lum * lum)
			relCount++
		}
	}

	if len(f.mean) > 0 {
		meanLum = lumSum / float64(len(f.mean))
	}
	if relCount > 0 {
		relVariance = relSum / float64(relCount)
	}
	return meanLum, relVariance
}

func luminance(rgb types.Vec3) float32 {
	return 0.2126*rgb[0] + 0.7152*rgb[1] + 0.0722*rgb[2]
}
