// Package software implements the tracer contract in pure Go. It exists to
// exercise the packed scene arrays and the guiding views end to end; it
// trades speed for being runnable anywhere, which makes it the backend for
// tests, the demo CLI and the interactive viewer.
package software

import (
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MinusKelvin/pbr-gpu/guide"
	"github.com/MinusKelvin/pbr-gpu/log"
	"github.com/MinusKelvin/pbr-gpu/scene"
	"github.com/MinusKelvin/pbr-gpu/tracer"
	"github.com/MinusKelvin/pbr-gpu/types"
)

type softTracer struct {
	sync.Mutex
	wg sync.WaitGroup

	logger log.Logger

	// The tracer's id.
	id string

	// Goroutines tracing rows within a pass and the path depth limit.
	workers int
	bounces int

	// Scene, camera and render target bound by Setup.
	packed *scene.PackedScene
	camera *scene.Camera
	film   *tracer.Film

	// The currently adopted guiding generation.
	views guide.Views

	// Spectrum conversion caches built during Setup.
	albedo   map[scene.SpectrumID]types.Vec3
	emission map[scene.SpectrumID]types.Vec3
	iors     map[scene.SpectrumID]float32

	// A channel for receiving pass requests from the renderer and a
	// channel for signaling the worker to exit.
	reqChan   chan passJob
	closeChan chan struct{}
	running   bool
	closed    bool

	rays  uint64
	stats tracer.Stats
}

// A pass or a queue flush handed to the worker goroutine. Flush jobs carry
// a nil done channel and signal flushed instead.
type passJob struct {
	req     tracer.PassRequest
	done    chan error
	flushed chan struct{}
}

// Create a software tracer. Zero workers means one per logical CPU; zero
// bounces means a practical default for small frames.
func New(id string, workers, bounces int) tracer.Tracer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if bounces <= 0 {
		bounces = 5
	}
	return &softTracer{
		logger:    log.New("tracer." + id),
		id:        id,
		workers:   workers,
		bounces:   bounces,
		reqChan:   make(chan passJob, 2),
		closeChan: make(chan struct{}),
	}
}

// Get tracer id.
func (tr *softTracer) Id() string {
	return tr.id
}

// Get speed estimate. The software tracer is the baseline.
func (tr *softTracer) SpeedEstimate() float32 {
	return 1.0
}

// Bind the packed scene, the camera and the shared film. The worker
// goroutine is started on first use; later calls just swap the bindings.
func (tr *softTracer) Setup(packed *scene.PackedScene, camera *scene.Camera, film *tracer.Film) error {
	tr.Lock()
	defer tr.Unlock()

	if tr.closed {
		return ErrTracerClosed
	}

	tr.packed = packed
	tr.camera = camera
	tr.film = film
	tr.albedo, tr.emission, tr.iors = buildSpectrumCaches(packed)
	tr.logger.Debugf("bound %dx%d film, %d workers, %d bounces", film.Width, film.Height, tr.workers, tr.bounces)

	if !tr.running {
		tr.running = true
		readyChan := make(chan struct{})
		tr.wg.Add(1)
		go func() {
			defer tr.wg.Done()
			close(readyChan)
			for {
				select {
				case job := <-tr.reqChan:
					if job.flushed != nil {
						close(job.flushed)
						continue
					}
					job.done <- tr.process(job.req)
				case <-tr.closeChan:
					return
				}
			}
		}()
		<-readyChan
	}
	return nil
}

// Adopt a published guiding generation.
func (tr *softTracer) BindGuide(views guide.Views) error {
	tr.Lock()
	defer tr.Unlock()
	tr.views = views
	return nil
}

// Begin tracing a pass.
func (tr *softTracer) Dispatch(req tracer.PassRequest) tracer.Completion {
	done := make(chan error, 1)

	tr.Lock()
	running, closed := tr.running, tr.closed
	tr.Unlock()
	if closed {
		done <- ErrTracerClosed
		return done
	}
	if !running {
		done <- ErrNotSetup
		return done
	}

	select {
	case tr.reqChan <- passJob{req: req, done: done}:
	default:
		// The queue has no room for another unstarted pass; the caller
		// broke the one-pass-behind protocol.
		done <- ErrTracerBusy
	}
	return done
}

// Drain queued and in-flight passes, then snapshot the guiding buffers.
func (tr *softTracer) ReadbackGuide() ([]guide.BSPNode, []guide.Quad, error) {
	tr.Lock()
	running, closed := tr.running, tr.closed
	tr.Unlock()
	if closed {
		return nil, nil, ErrTracerClosed
	}
	if !running {
		return nil, nil, ErrNotSetup
	}

	// The flush rides the pass queue, so when it signals every pass
	// dispatched before this call has fully completed.
	flushed := make(chan struct{})
	select {
	case tr.reqChan <- passJob{flushed: flushed}:
	case <-tr.closeChan:
		return nil, nil, ErrTracerClosed
	}
	select {
	case <-flushed:
	case <-tr.closeChan:
		return nil, nil, ErrTracerClosed
	}

	tr.Lock()
	defer tr.Unlock()
	bsp := append([]guide.BSPNode(nil), tr.views.BSP...)
	train := append([]guide.Quad(nil), tr.views.Train...)
	return bsp, train, nil
}

// Zero the film accumulators.
func (tr *softTracer) ClearFilm() error {
	tr.Lock()
	defer tr.Unlock()
	if tr.film == nil {
		return ErrNotSetup
	}
	tr.film.Clear()
	return nil
}

// Get the film this tracer accumulates into.
func (tr *softTracer) Film() *tracer.Film {
	tr.Lock()
	defer tr.Unlock()
	return tr.film
}

// Retrieve pass statistics.
func (tr *softTracer) Stats() *tracer.Stats {
	tr.Lock()
	defer tr.Unlock()
	stats := tr.stats
	stats.Rays = atomic.LoadUint64(&tr.rays)
	return &stats
}

// Shutdown and cleanup tracer.
func (tr *softTracer) Close() error {
	tr.Lock()
	if tr.closed {
		tr.Unlock()
		return nil
	}
	tr.closed = true
	tr.Unlock()

	close(tr.closeChan)
	tr.wg.Wait()
	return nil
}

// Process a pass request: trace every pixel of the block once and fold the
// results into the film.
func (tr *softTracer) process(req tracer.PassRequest) error {
	tr.Lock()
	pc := &passCtx{
		ps:       tr.packed,
		cam:      scene.PackCamera(tr.camera),
		film:     tr.film,
		views:    tr.views,
		mode:     req.Mode,
		albedo:   tr.albedo,
		emission: tr.emission,
		iors:     tr.iors,
		bounces:  tr.bounces,
		rays:     &tr.rays,
	}
	tr.Unlock()

	if pc.ps == nil || pc.film == nil {
		return ErrNotSetup
	}
	pc.width = pc.film.Width
	pc.height = pc.film.Height

	start := time.Now()

	// Rows are handed out through an atomic cursor so finished workers
	// steal the remainder of slow ones.
	var cursor uint32
	var rowWG sync.WaitGroup
	for w := 0; w < tr.workers; w++ {
		rowWG.Add(1)
		go func() {
			defer rowWG.Done()
			for {
				y := req.BlockY + atomic.AddUint32(&cursor, 1) - 1
				if y >= req.BlockY+req.BlockH {
					return
				}

				// Seed per row and sample so results do not depend on
				// worker scheduling.
				rng := rand.New(rand.NewSource(int64(req.Sample)<<20 ^ int64(y)))
				for x := uint32(0); x < pc.width; x++ {
					pc.film.Splat(x, y, pc.tracePixel(x, y, rng))
				}
			}
		}()
	}
	rowWG.Wait()

	tr.Lock()
	tr.stats.BlockY = req.BlockY
	tr.stats.BlockH = req.BlockH
	tr.stats.PassTime = time.Since(start)
	tr.stats.Passes++
	tr.stats.TraceTime += tr.stats.PassTime
	tr.Unlock()
	return nil
}
