package renderer

import "time"

type TracerStat struct {
	// The tracer id.
	Id string

	// The block height of the final pass and the percentage of the
	// frame it represents.
	BlockH       uint32
	FramePercent float32

	// Completed passes and the total time spent tracing them.
	Passes    uint32
	TraceTime time.Duration

	// Total rays traced, including secondary and shadow rays.
	Rays uint64
}

type FrameStats struct {
	// Individual tracer stats.
	Tracers []TracerStat

	// Total render time for entire frame.
	RenderTime time.Duration

	// Sample passes dispatched over the frame.
	Samples uint32

	// Guide refinements performed while training.
	Refinements uint32

	// Frame moments and the derived sampling efficiency
	// 1 / (relative variance * seconds per sample).
	MeanLuminance float64
	RelVariance   float64
	Efficiency    float64
}
