package software

import "errors"

var (
	ErrNotSetup     = errors.New("software tracer: tracer is not attached to a scene")
	ErrTracerBusy   = errors.New("software tracer: a pass is already queued")
	ErrTracerClosed = errors.New("software tracer: tracer is closed")
)
