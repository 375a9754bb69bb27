package guide

import (
	"time"

	"github.com/MinusKelvin/pbr-gpu/log"
	"github.com/MinusKelvin/pbr-gpu/scene"
)

// Tuning constants for the adaptive model.
const (
	// A quadtree quadrant is expanded while it carries at least this
	// share of its tree's total flux.
	LeafEnergyPortion = 0.01

	// Base visit-count threshold for splitting a BSP cell; the effective
	// threshold grows with the square root of the sample count.
	SplitThresholdC = 12000

	// Sample index of the first refinement. Later refinements follow at
	// exponentially growing intervals.
	InitialSamples = 4

	// Directional quadtrees never grow past this depth.
	MaxQuadtreeDepth = 20
)

// Guide group binding slots.
const (
	BindBSP    = 0
	BindGuide  = 1
	BindTrain  = 2
	BindBounds = 3
)

// State of the guide lifecycle.
type State int

const (
	// Before the first refinement: nothing is known about the light
	// field, so the kernel samples materials only while still training.
	Warming State = iota

	// The guide is sampled and keeps training.
	Active

	// The training budget ran out: the guide is still sampled but
	// refinement has stopped and the film is no longer cleared.
	Frozen
)

func (s State) String() string {
	switch s {
	case Warming:
		return "warming"
	case Active:
		return "active"
	default:
		return "frozen"
	}
}

// Views is one published generation of the model. A device binds the four
// views as a group and must rebind when the generation changes; published
// arrays are never mutated afterwards except for the device's own flux
// deposits into Train and visit counts into BSP.
type Views struct {
	Generation uint32
	BSP        []BSPNode
	Guide      []Quad
	Train      []Quad
	Bounds     scene.Bounds
}

// Device is the guide's view of a tracer during a refinement sync.
// ReadbackGuide must drain in-flight passes before returning its copies of
// the visit counts and training flux.
type Device interface {
	ReadbackGuide() (bsp []BSPNode, train []Quad, err error)
	BindGuide(views Views) error
	ClearFilm() error
}

// Guide drives the adaptive sampling model over the course of a frame.
type Guide struct {
	logger log.Logger

	views Views
	state State

	iter     uint32
	nextIter uint32

	// Training stops at this sample index, and at the deadline when one
	// is set, whichever comes first.
	lastSample uint32
	deadline   time.Time
}

// Create a guide for a frame of the given sample count over a scene with
// the given world bounds. The training budget is 15% of the samples; a
// positive wallClock adds a hard deadline on top.
func New(bounds scene.Bounds, samples uint32, wallClock time.Duration) *Guide {
	return NewWithBudget(bounds, samples*15/100, wallClock)
}

// Create a guide that trains for the first trainSamples samples of the
// frame, with an optional wall clock deadline on top. The initial model
// is a single spatial cell with no directional information, which keeps
// the kernel in material sampling until the first refinement.
func NewWithBudget(bounds scene.Bounds, trainSamples uint32, wallClock time.Duration) *Guide {
	train, root := seedQuadtree()

	g := &Guide{
		logger: log.New("guide"),
		views: Views{
			BSP:    []BSPNode{{IsLeaf: 1, Left: NoChild, Right: root}},
			Guide:  make([]Quad, 1),
			Train:  train,
			Bounds: bounds,
		},
		state:      Warming,
		nextIter:   InitialSamples,
		lastSample: trainSamples,
	}
	if wallClock > 0 {
		g.deadline = time.Now().Add(wallClock)
	}
	return g
}

// The currently published views.
func (g *Guide) Views() Views {
	return g.views
}

func (g *Guide) State() State {
	return g.state
}

func (g *Guide) Generation() uint32 {
	return g.views.Generation
}

// Run the scheduled refinement sync before dispatching a sample pass. On
// a scheduled sample this blocks on the device readback, refines the
// model, publishes the next generation, rebinds it and clears the film;
// on every other sample it is a no-op. Once the training budget is spent
// the refinement that would fall outside it freezes the guide instead.
func (g *Guide) BeforeSample(sample uint32, dev Device) error {
	if g.state == Frozen || sample != g.nextIter {
		return nil
	}
	if sample >= g.lastSample || (!g.deadline.IsZero() && time.Now().After(g.deadline)) {
		g.state = Frozen
		g.logger.Noticef("path guide frozen at sample %d after %d refinements", sample, g.iter)
		return nil
	}

	g.iter++
	g.nextIter += InitialSamples << g.iter

	start := time.Now()
	bsp, train, err := dev.ReadbackGuide()
	if err != nil {
		return err
	}

	threshold := SplitThresholdC * isqrt(1<<g.iter)
	var newTrain []Quad
	refineBSP(&bsp, train, &newTrain, threshold, 0)

	g.views = Views{
		Generation: g.views.Generation + 1,
		BSP:        bsp,
		Guide:      train,
		Train:      newTrain,
		Bounds:     g.views.Bounds,
	}
	if err := dev.BindGuide(g.views); err != nil {
		return err
	}
	if err := dev.ClearFilm(); err != nil {
		return err
	}

	if g.state == Warming {
		g.state = Active
		g.logger.Noticef("path guide active after first refinement")
	}
	g.logger.Noticef(
		"updated guidance model at sample %d: %d cells, %d training quads, %d ms",
		sample, countLeaves(bsp), len(newTrain), time.Since(start).Milliseconds(),
	)
	return nil
}

func countLeaves(bsp []BSPNode) int {
	var leaves int
	for _, n := range bsp {
		if n.IsLeaf != 0 {
			leaves++
		}
	}
	return leaves
}
