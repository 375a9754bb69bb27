package renderer

import "errors"

var (
	ErrNoTracers      = errors.New("renderer: no tracers attached")
	ErrSceneNotReady  = errors.New("renderer: no packed scene or camera supplied")
	ErrInvalidOptions = errors.New("renderer: invalid options")
	ErrInterrupted    = errors.New("renderer: interrupted while rendering")
)
