package scene

import "github.com/chewxy/math32"

// A piecewise-constant 1D distribution over [MinX, MaxX]. CDFPtr points at
// Len+1 unnormalized prefix sums in the float blob; the kernel divides by
// the last entry.
type TableSampler1D struct {
	MinX   float32
	MaxX   float32
	CDFPtr uint32
	Len    uint32
}

// A piecewise-constant 2D distribution over [MinX, MaxX] x [MinY, MaxY].
// The blob holds Height row CDFs of Width+1 entries each, followed by the
// Height+1 entry marginal CDF over rows.
type TableSampler2D struct {
	MinX   float32
	MaxX   float32
	MinY   float32
	MaxY   float32
	CDFPtr uint32
	Width  uint32
	Height uint32
}

// Build a 1D table sampler over the absolute values of f.
func (sc *Scene) Add1DTableSampler(minX, maxX float32, f []float32) TableSampler1D {
	cdf := make([]float32, len(f)+1)
	for i, v := range f {
		cdf[i+1] = cdf[i] + math32.Abs(v)
	}
	return TableSampler1D{
		MinX:   minX,
		MaxX:   maxX,
		CDFPtr: sc.AddFloatData(cdf),
		Len:    uint32(len(f)),
	}
}

// Build a 2D table sampler over the absolute values of f, which holds
// width*height samples in row-major order.
func (sc *Scene) Add2DTableSampler(minX, maxX, minY, maxY float32, width, height uint32, f []float32) TableSampler2D {
	w := int(width)
	h := int(height)
	if w*h != len(f) {
		panic("scene: 2D table sampler data does not match its dimensions")
	}
	onedSize := (w + 1) * h

	cdfs := make([]float32, onedSize+h+1)
	for y := 0; y < h; y++ {
		row := cdfs[y*(w+1) : (y+1)*(w+1)]
		vals := f[y*w : (y+1)*w]
		for i, v := range vals {
			row[i+1] = row[i] + math32.Abs(v)
		}
	}
	for y := 0; y < h; y++ {
		cdfs[onedSize+y+1] = cdfs[onedSize+y] + cdfs[y*(w+1)+w]
	}

	return TableSampler2D{
		MinX:   minX,
		MaxX:   maxX,
		MinY:   minY,
		MaxY:   maxY,
		CDFPtr: sc.AddFloatData(cdfs),
		Width:  width,
		Height: height,
	}
}
