package renderer

import "image"

type Renderer interface {
	// Render frame.
	Render() error

	// Snapshot the accumulated frame as an 8-bit sRGB image.
	Frame() *image.RGBA

	// Encode the accumulated frame into a PNG file.
	SavePNG(path string) error

	// Stop an in-progress Render at the next pass boundary.
	Interrupt()

	// Shutdown renderer and any attached tracer.
	Close()

	// Get render statistics.
	Stats() FrameStats
}
