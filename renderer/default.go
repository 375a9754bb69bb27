package renderer

import (
	"math"
	"sync"
	"time"

	"github.com/MinusKelvin/pbr-gpu/guide"
	"github.com/MinusKelvin/pbr-gpu/log"
	"github.com/MinusKelvin/pbr-gpu/scene"
	"github.com/MinusKelvin/pbr-gpu/tracer"
)

// Portion of the sample and wall clock budgets spent training the guide
// when the options leave it unset.
const defaultTrainPortion = 0.15

type defaultRenderer struct {
	logger log.Logger
	sync.Mutex

	options   Options
	tracers   []tracer.Tracer
	scheduler tracer.BlockScheduler

	packed *scene.PackedScene
	camera *scene.Camera
	film   *tracer.Film
	model  *guide.Guide

	// Frame loop state published for Stats and the interactive overlay;
	// guarded by the mutex.
	blockAssignments []uint32
	samples          uint32
	refinements      uint32
	renderTime       time.Duration

	// Camera edits queued by the UI; applied between passes so in-flight
	// passes never observe a half-written camera.
	cameraEdits []func(*scene.Camera)

	// Closed by Interrupt; checked before every dispatch.
	interruptChan chan struct{}
	interruptOnce sync.Once
}

// Create a renderer that drives the attached tracers over the frame. All
// tracers accumulate into one shared film and are assigned disjoint row
// blocks by the scheduler on every pass.
func NewDefault(packed *scene.PackedScene, camera *scene.Camera, tracers []tracer.Tracer, scheduler tracer.BlockScheduler, opts Options) (Renderer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(tracers) == 0 {
		return nil, ErrNoTracers
	}
	if packed == nil || camera == nil {
		return nil, ErrSceneNotReady
	}
	if opts.Exposure == 0 {
		opts.Exposure = 1
	}

	r := &defaultRenderer{
		logger:        log.New("renderer"),
		options:       opts,
		tracers:       tracers,
		scheduler:     scheduler,
		packed:        packed,
		camera:        camera,
		film:          tracer.NewFilm(opts.FrameW, opts.FrameH),
		interruptChan: make(chan struct{}),
	}

	camera.SetupProjection(float32(opts.FrameW) / float32(opts.FrameH))

	for _, tr := range r.tracers {
		if err := tr.Setup(packed, camera, r.film); err != nil {
			r.Close()
			return nil, err
		}
		r.logger.Infof("attached tracer %s (speed estimate %3.1f)", tr.Id(), tr.SpeedEstimate())
	}

	if opts.Guide != "" && opts.Guide != GuidePolicyOff {
		portion := float64(opts.TrainPortion)
		if portion == 0 {
			portion = defaultTrainPortion
		}
		trainSamples := uint32(math.MaxUint32)
		if opts.SamplesPerPixel > 0 {
			trainSamples = uint32(float64(opts.SamplesPerPixel) * portion)
		}
		trainClock := time.Duration(float64(opts.WallClockBudget) * portion)

		r.model = guide.NewWithBudget(packed.RootBounds(), trainSamples, trainClock)
		for _, tr := range r.tracers {
			if err := tr.BindGuide(r.model.Views()); err != nil {
				r.Close()
				return nil, err
			}
		}
	}

	r.logger.Noticef(
		"frame %dx%d, %d spp, %d bounces, guide %q",
		opts.FrameW, opts.FrameH, opts.SamplesPerPixel, opts.NumBounces, opts.Guide,
	)
	return r, nil
}

// Render runs the frame loop. Each sample pass is split into row blocks
// by the scheduler and dispatched to the tracer pool with one pass kept
// in flight behind the newest dispatch; the guide refinement schedule
// runs between passes. Rendering stops when the sample budget is
// reached, the wall clock budget expires or Interrupt is called.
func (r *defaultRenderer) Render() error {
	start := time.Now()

	var deadline time.Time
	if r.options.WallClockBudget > 0 {
		deadline = start.Add(time.Duration(r.options.WallClockBudget))
	}

	var inflight []tracer.Completion
	var sample uint32
	var err error

loop:
	for {
		if r.options.SamplesPerPixel > 0 && sample == r.options.SamplesPerPixel {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			r.logger.Noticef("wall clock budget spent after %d samples", sample)
			break
		}
		select {
		case <-r.interruptChan:
			err = ErrInterrupted
			break loop
		default:
		}

		if edits := r.pendingCameraEdits(); len(edits) > 0 {
			if err = waitPasses(inflight); err != nil {
				inflight = nil
				break
			}
			inflight = nil
			r.Lock()
			for _, edit := range edits {
				edit(r.camera)
			}
			r.Unlock()
			r.film.Clear()
		}

		if r.model != nil {
			if err = r.model.BeforeSample(sample, r); err != nil {
				break
			}
		}

		assignment := r.scheduler.Schedule(r.tracers, r.options.FrameH)
		mode := r.passMode()

		next := make([]tracer.Completion, 0, len(r.tracers))
		var blockY uint32
		for idx, tr := range r.tracers {
			blockH := assignment[idx]
			if blockH == 0 {
				continue
			}
			next = append(next, tr.Dispatch(tracer.PassRequest{
				Sample: sample,
				BlockY: blockY,
				BlockH: blockH,
				Mode:   mode,
			}))
			blockY += blockH
		}

		// Wait out the previous pass only after dispatching this one so
		// the pool always has work queued behind the pass it is tracing.
		if err = waitPasses(inflight); err != nil {
			inflight = next
			break
		}
		inflight = next
		sample++

		r.Lock()
		r.blockAssignments = append(r.blockAssignments[:0], assignment...)
		r.samples = sample
		if r.model != nil {
			r.refinements = r.model.Generation()
		}
		r.renderTime = time.Since(start)
		r.Unlock()
	}

	if wErr := waitPasses(inflight); wErr != nil && err == nil {
		err = wErr
	}

	r.Lock()
	r.renderTime = time.Since(start)
	total := r.renderTime
	r.Unlock()

	if err == nil {
		r.logger.Noticef("rendered %d samples in %d ms", sample, total.Milliseconds())
	}
	return err
}

// Stop an in-progress Render at the next pass boundary.
func (r *defaultRenderer) Interrupt() {
	r.interruptOnce.Do(func() {
		close(r.interruptChan)
	})
}

// Shutdown renderer and any attached tracer.
func (r *defaultRenderer) Close() {
	r.Interrupt()
	for _, tr := range r.tracers {
		if err := tr.Close(); err != nil {
			r.logger.Warningf("closing tracer %s: %v", tr.Id(), err)
		}
	}
}

// Get render statistics.
func (r *defaultRenderer) Stats() FrameStats {
	r.Lock()
	stats := FrameStats{
		RenderTime:  r.renderTime,
		Samples:     r.samples,
		Refinements: r.refinements,
	}
	assignment := append([]uint32(nil), r.blockAssignments...)
	r.Unlock()

	for idx, tr := range r.tracers {
		ts := tr.Stats()
		stat := TracerStat{
			Id:        tr.Id(),
			BlockH:    ts.BlockH,
			Passes:    ts.Passes,
			TraceTime: ts.TraceTime,
			Rays:      ts.Rays,
		}
		if idx < len(assignment) {
			stat.BlockH = assignment[idx]
		}
		stat.FramePercent = 100 * float32(stat.BlockH) / float32(r.options.FrameH)
		stats.Tracers = append(stats.Tracers, stat)
	}

	stats.MeanLuminance, stats.RelVariance = r.film.Moments()
	if stats.Samples > 0 && stats.RelVariance > 0 && stats.RenderTime > 0 {
		perSample := stats.RenderTime.Seconds() / float64(stats.Samples)
		stats.Efficiency = 1 / (stats.RelVariance * perSample)
	}
	return stats
}

// Queue a camera edit. The edit is applied between passes, after which
// the film restarts from zero samples.
func (r *defaultRenderer) EditCamera(edit func(*scene.Camera)) {
	r.Lock()
	r.cameraEdits = append(r.cameraEdits, edit)
	r.Unlock()
}

func (r *defaultRenderer) pendingCameraEdits() []func(*scene.Camera) {
	r.Lock()
	defer r.Unlock()
	edits := r.cameraEdits
	r.cameraEdits = nil
	return edits
}

// The guide mode for the next pass given the policy and the guide state.
// The frozen policy keeps passes on material sampling until training is
// over, so the measured portion of the frame runs on one fixed model.
func (r *defaultRenderer) passMode() tracer.GuideMode {
	if r.model == nil {
		return tracer.GuideOff
	}
	switch r.model.State() {
	case guide.Warming:
		return tracer.GuideWarm
	case guide.Active:
		if r.options.Guide == GuidePolicyFrozen {
			return tracer.GuideWarm
		}
		return tracer.GuideSample
	default:
		return tracer.GuideFrozen
	}
}

func waitPasses(inflight []tracer.Completion) error {
	var err error
	for _, comp := range inflight {
		if cErr := <-comp; cErr != nil && err == nil {
			err = cErr
		}
	}
	return err
}

// ReadbackGuide implements guide.Device over the whole pool. Deposits
// land in the shared views arrays, so once every tracer has drained its
// queue the final snapshot covers all of them.
func (r *defaultRenderer) ReadbackGuide() ([]guide.BSPNode, []guide.Quad, error) {
	var bsp []guide.BSPNode
	var train []guide.Quad
	for _, tr := range r.tracers {
		var err error
		bsp, train, err = tr.ReadbackGuide()
		if err != nil {
			return nil, nil, err
		}
	}
	return bsp, train, nil
}

func (r *defaultRenderer) BindGuide(views guide.Views) error {
	for _, tr := range r.tracers {
		if err := tr.BindGuide(views); err != nil {
			return err
		}
	}
	return nil
}

func (r *defaultRenderer) ClearFilm() error {
	for _, tr := range r.tracers {
		if err := tr.ClearFilm(); err != nil {
			return err
		}
	}
	return nil
}
