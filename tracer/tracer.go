package tracer

import (
	"time"

	"github.com/MinusKelvin/pbr-gpu/guide"
	"github.com/MinusKelvin/pbr-gpu/scene"
)

// GuideMode selects how a pass interacts with the guiding model.
type GuideMode uint32

const (
	// Material sampling only; the model is neither read nor trained.
	GuideOff GuideMode = iota

	// Material sampling while depositing flux into the training trees.
	GuideWarm

	// Mixed guided and material sampling, still training.
	GuideSample

	// Guided sampling with training stopped.
	GuideFrozen
)

// A unit of work that is processed by a tracer: one sample pass over a
// horizontal block of the frame.
type PassRequest struct {
	// Zero-based sample index for this pass.
	Sample uint32

	// Block start row and height.
	BlockY uint32
	BlockH uint32

	// How this pass uses the guiding model.
	Mode GuideMode
}

// Completion delivers the outcome of an asynchronous pass exactly once.
type Completion <-chan error

// Tracer statistics.
type Stats struct {
	// The block traced by the most recent pass.
	BlockY uint32
	BlockH uint32

	// The time for tracing the most recent pass.
	PassTime time.Duration

	// Completed passes and the total time spent tracing them.
	Passes    uint32
	TraceTime time.Duration

	// Total rays traced, including secondary and shadow rays.
	Rays uint64
}

type Tracer interface {
	// Get tracer id.
	Id() string

	// Shutdown and cleanup tracer.
	Close() error

	// Get the tracer's computation speed estimate compared to a
	// baseline (cpu) implementation.
	SpeedEstimate() float32

	// Bind the packed scene, the camera and the shared film. Must be
	// called before the first Dispatch and again after a scene edit.
	Setup(packed *scene.PackedScene, camera *scene.Camera, film *Film) error

	// Adopt a published guiding generation. Callers never rebind while
	// a pass is in flight.
	BindGuide(views guide.Views) error

	// Begin tracing a pass. The pass runs asynchronously; callers keep
	// at most one earlier pass in flight behind the newest dispatch.
	Dispatch(req PassRequest) Completion

	// Drain in-flight work and return stable copies of the visit
	// counts and training flux.
	ReadbackGuide() (bsp []guide.BSPNode, train []guide.Quad, err error)

	// Zero the film accumulators.
	ClearFilm() error

	// Get the film this tracer accumulates into.
	Film() *Film

	// Retrieve pass statistics.
	Stats() *Stats
}
