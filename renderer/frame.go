package renderer

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/chewxy/math32"

	"github.com/MinusKelvin/pbr-gpu/tracer"
)

// Convert the accumulated film into an 8-bit sRGB image with the given
// exposure applied.
func FilmImage(film *tracer.Film, exposure float32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(film.Width), int(film.Height)))
	for y := uint32(0); y < film.Height; y++ {
		for x := uint32(0); x < film.Width; x++ {
			mean, _, _ := film.At(x, y)
			img.SetRGBA(int(x), int(y), color.RGBA{
				R: encodeSRGB(mean[0] * exposure),
				G: encodeSRGB(mean[1] * exposure),
				B: encodeSRGB(mean[2] * exposure),
				A: 255,
			})
		}
	}
	return img
}

func encodeSRGB(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	var enc float32
	if v <= 0.0031308 {
		enc = v * 12.92
	} else {
		enc = 1.055*math32.Pow(v, 1/2.4) - 0.055
	}
	if enc >= 1 {
		return 255
	}
	return uint8(enc*255 + 0.5)
}

// Snapshot the accumulated frame as an 8-bit sRGB image.
func (r *defaultRenderer) Frame() *image.RGBA {
	return FilmImage(r.film, r.options.Exposure)
}

// Encode the accumulated frame into a PNG file.
func (r *defaultRenderer) SavePNG(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := png.Encode(out, r.Frame()); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	r.logger.Noticef("saved frame to %s", path)
	return nil
}
