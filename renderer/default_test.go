package renderer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MinusKelvin/pbr-gpu/guide"
	"github.com/MinusKelvin/pbr-gpu/scene"
	"github.com/MinusKelvin/pbr-gpu/tracer"
	"github.com/MinusKelvin/pbr-gpu/types"
)

// A scriptable tracer. Passes complete when the test releases them; in
// auto mode they complete on their own shortly after dispatch.
type fakeTracer struct {
	id   string
	auto bool

	mu          sync.Mutex
	requests    []tracer.PassRequest
	completions []chan error
	consumed    int
	binds       int
	clears      int
	views       guide.Views
	film        *tracer.Film
}

func newFakeTracer(id string, auto bool) *fakeTracer {
	return &fakeTracer{id: id, auto: auto}
}

func (f *fakeTracer) Id() string             { return f.id }
func (f *fakeTracer) Close() error           { return nil }
func (f *fakeTracer) SpeedEstimate() float32 { return 1 }
func (f *fakeTracer) Film() *tracer.Film     { return f.film }

func (f *fakeTracer) Setup(_ *scene.PackedScene, _ *scene.Camera, film *tracer.Film) error {
	f.film = film
	return nil
}

func (f *fakeTracer) BindGuide(views guide.Views) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.binds++
	f.views = views
	return nil
}

func (f *fakeTracer) Dispatch(req tracer.PassRequest) tracer.Completion {
	done := make(chan error, 1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.completions = append(f.completions, done)
	f.mu.Unlock()
	if f.auto {
		go func() {
			time.Sleep(200 * time.Microsecond)
			done <- nil
		}()
	}
	return done
}

func (f *fakeTracer) ReadbackGuide() ([]guide.BSPNode, []guide.Quad, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bsp := append([]guide.BSPNode(nil), f.views.BSP...)
	train := append([]guide.Quad(nil), f.views.Train...)
	return bsp, train, nil
}

func (f *fakeTracer) ClearFilm() error {
	f.mu.Lock()
	f.clears++
	film := f.film
	f.mu.Unlock()
	if film != nil {
		film.Clear()
	}
	return nil
}

func (f *fakeTracer) Stats() *tracer.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := tracer.Stats{Passes: uint32(len(f.requests))}
	if n := len(f.requests); n > 0 {
		stats.BlockH = f.requests[n-1].BlockH
		stats.PassTime = 10 * time.Millisecond
	}
	return &stats
}

// Release the pass at the given dispatch index.
func (f *fakeTracer) complete(index int, err error) {
	f.mu.Lock()
	done := f.completions[index]
	f.mu.Unlock()
	done <- err
}

// Block until one more pass than previously consumed has been dispatched.
func (f *fakeTracer) waitDispatch(t *testing.T) tracer.PassRequest {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		f.mu.Lock()
		if f.consumed < len(f.requests) {
			req := f.requests[f.consumed]
			f.consumed++
			f.mu.Unlock()
			return req
		}
		f.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for a dispatch")
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *fakeTracer) dispatchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func testScene() (*scene.PackedScene, *scene.Camera) {
	sc := scene.NewScene()
	grey := sc.AddConstantSpectrum(0.5)
	mat := sc.AddDiffuseMaterial(sc.AddConstantTexture(grey), nil)
	node := sc.AddPrimitive(scene.PrimitiveNode{
		Shape:    sc.AddSphere(scene.FullSphere()),
		Material: mat,
		Light:    scene.NoLight,
		Alpha:    sc.AddConstantTexture(sc.AddConstantSpectrum(1)),
	})

	camera := scene.NewCamera(45)
	camera.Position = types.XYZ(0, 0, 3)
	camera.LookAt = types.XYZ(0, 0, 0)
	return sc.Pack(node, 0), camera
}

func TestNewDefaultValidation(t *testing.T) {
	packed, camera := testScene()
	valid := Options{FrameW: 8, FrameH: 8, SamplesPerPixel: 1}

	if _, err := NewDefault(packed, camera, nil, tracer.NewPerfectScheduler(), valid); err != ErrNoTracers {
		t.Fatalf("expected ErrNoTracers; got %v", err)
	}

	pool := []tracer.Tracer{newFakeTracer("soft-0", true)}
	if _, err := NewDefault(nil, camera, pool, tracer.NewPerfectScheduler(), valid); err != ErrSceneNotReady {
		t.Fatalf("expected ErrSceneNotReady; got %v", err)
	}
	if _, err := NewDefault(packed, nil, pool, tracer.NewPerfectScheduler(), valid); err != ErrSceneNotReady {
		t.Fatalf("expected ErrSceneNotReady; got %v", err)
	}
	if _, err := NewDefault(packed, camera, pool, tracer.NewPerfectScheduler(), Options{}); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions; got %v", err)
	}
}

// One pass stays in flight behind the newest dispatch; the pass after
// that must wait for the oldest one to complete.
func TestRenderPipelineDepth(t *testing.T) {
	packed, camera := testScene()
	fake := newFakeTracer("soft-0", false)
	r, err := NewDefault(packed, camera, []tracer.Tracer{fake}, tracer.NewPerfectScheduler(), Options{
		FrameW:          8,
		FrameH:          8,
		SamplesPerPixel: 3,
	})
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	defer r.Close()

	renderDone := make(chan error, 1)
	go func() { renderDone <- r.Render() }()

	req0 := fake.waitDispatch(t)
	req1 := fake.waitDispatch(t)
	if req0.Sample != 0 || req1.Sample != 1 {
		t.Fatalf("expected samples 0 and 1 in flight; got %d and %d", req0.Sample, req1.Sample)
	}
	if req0.BlockY != 0 || req0.BlockH != 8 {
		t.Fatalf("expected the whole frame in one block; got row %d height %d", req0.BlockY, req0.BlockH)
	}
	if req0.Mode != tracer.GuideOff {
		t.Fatalf("expected an unguided pass; got mode %d", req0.Mode)
	}

	time.Sleep(100 * time.Millisecond)
	if got := fake.dispatchCount(); got != 2 {
		t.Fatalf("expected the third pass to wait for the first; got %d dispatches", got)
	}

	fake.complete(0, nil)
	if req2 := fake.waitDispatch(t); req2.Sample != 2 {
		t.Fatalf("expected sample 2; got %d", req2.Sample)
	}
	fake.complete(1, nil)
	fake.complete(2, nil)

	if err := <-renderDone; err != nil {
		t.Fatalf("expected a clean frame; got %v", err)
	}

	stats := r.Stats()
	if stats.Samples != 3 {
		t.Fatalf("expected 3 samples; got %d", stats.Samples)
	}
	if len(stats.Tracers) != 1 || stats.Tracers[0].Id != "soft-0" {
		t.Fatalf("expected stats for the one attached tracer; got %+v", stats.Tracers)
	}
	if stats.Tracers[0].BlockH != 8 || stats.Tracers[0].FramePercent != 100 {
		t.Fatalf("expected the full frame on one tracer; got %+v", stats.Tracers[0])
	}
}

func TestRenderInterrupt(t *testing.T) {
	packed, camera := testScene()
	fake := newFakeTracer("soft-0", false)
	r, err := NewDefault(packed, camera, []tracer.Tracer{fake}, tracer.NewPerfectScheduler(), Options{
		FrameW:          8,
		FrameH:          8,
		SamplesPerPixel: 1000,
	})
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	defer r.Close()

	renderDone := make(chan error, 1)
	go func() { renderDone <- r.Render() }()

	fake.waitDispatch(t)
	fake.waitDispatch(t)

	// The loop is blocked on pass 0; interrupting now must stop it at
	// the next dispatch boundary with both passes drained.
	r.Interrupt()
	r.Interrupt()
	fake.complete(0, nil)
	fake.complete(1, nil)

	if err := <-renderDone; err != ErrInterrupted {
		t.Fatalf("expected ErrInterrupted; got %v", err)
	}
	if got := fake.dispatchCount(); got != 2 {
		t.Fatalf("expected no dispatches after the interrupt; got %d", got)
	}
}

func TestRenderWallClockBudget(t *testing.T) {
	packed, camera := testScene()
	fake := newFakeTracer("soft-0", true)
	r, err := NewDefault(packed, camera, []tracer.Tracer{fake}, tracer.NewPerfectScheduler(), Options{
		FrameW:          4,
		FrameH:          4,
		WallClockBudget: Duration(150 * time.Millisecond),
	})
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	defer r.Close()

	start := time.Now()
	if err := r.Render(); err != nil {
		t.Fatalf("expected a clean frame; got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("expected the frame to run out its budget; stopped after %v", elapsed)
	}

	stats := r.Stats()
	if stats.Samples == 0 {
		t.Fatalf("expected at least one sample inside the budget")
	}
	if stats.RenderTime < 150*time.Millisecond {
		t.Fatalf("expected the render time to cover the budget; got %v", stats.RenderTime)
	}
}

// Two tracers split every pass into contiguous disjoint row blocks.
func TestRenderBlockPartition(t *testing.T) {
	packed, camera := testScene()
	f0 := newFakeTracer("soft-0", true)
	f1 := newFakeTracer("soft-1", true)
	r, err := NewDefault(packed, camera, []tracer.Tracer{f0, f1}, tracer.NewPerfectScheduler(), Options{
		FrameW:          8,
		FrameH:          10,
		SamplesPerPixel: 2,
	})
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	defer r.Close()

	if err := r.Render(); err != nil {
		t.Fatalf("expected a clean frame; got %v", err)
	}

	for index, fake := range []*fakeTracer{f0, f1} {
		if got := fake.dispatchCount(); got != 2 {
			t.Fatalf("[tracer %d] expected 2 passes; got %d", index, got)
		}
	}
	for pass := 0; pass < 2; pass++ {
		a, b := f0.requests[pass], f1.requests[pass]
		if a.Sample != uint32(pass) || b.Sample != uint32(pass) {
			t.Fatalf("[pass %d] expected matching sample indices; got %d and %d", pass, a.Sample, b.Sample)
		}
		if a.BlockH == 0 || b.BlockH == 0 {
			t.Fatalf("[pass %d] expected both tracers to receive rows", pass)
		}
		if a.BlockY != 0 || b.BlockY != a.BlockH || a.BlockH+b.BlockH != 10 {
			t.Fatalf(
				"[pass %d] expected two contiguous blocks covering the frame; got row %d height %d and row %d height %d",
				pass, a.BlockY, a.BlockH, b.BlockY, b.BlockH,
			)
		}
	}
}

// The refinement schedule lands at samples 4 and 12 for a 100 sample
// frame with a 15% training budget, freezing at the attempt on 28.
func TestRenderGuideLifecycle(t *testing.T) {
	packed, camera := testScene()
	fake := newFakeTracer("soft-0", true)
	r, err := NewDefault(packed, camera, []tracer.Tracer{fake}, tracer.NewPerfectScheduler(), Options{
		FrameW:          4,
		FrameH:          4,
		SamplesPerPixel: 100,
		Guide:           GuidePolicyOn,
	})
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	defer r.Close()

	if err := r.Render(); err != nil {
		t.Fatalf("expected a clean frame; got %v", err)
	}
	if got := fake.dispatchCount(); got != 100 {
		t.Fatalf("expected 100 passes; got %d", got)
	}

	if fake.binds != 3 {
		t.Fatalf("expected the initial bind plus two refinement rebinds; got %d", fake.binds)
	}
	if fake.clears != 2 {
		t.Fatalf("expected a film clear per refinement; got %d", fake.clears)
	}
	if got := r.Stats().Refinements; got != 2 {
		t.Fatalf("expected 2 refinements; got %d", got)
	}

	type spec struct {
		sample uint32
		want   tracer.GuideMode
	}
	specs := []spec{
		{0, tracer.GuideWarm},
		{3, tracer.GuideWarm},
		{4, tracer.GuideSample},
		{27, tracer.GuideSample},
		{28, tracer.GuideFrozen},
		{99, tracer.GuideFrozen},
	}
	for index, s := range specs {
		if got := fake.requests[s.sample].Mode; got != s.want {
			t.Fatalf("[spec %d] expected mode %d at sample %d; got %d", index, s.want, s.sample, got)
		}
	}
}

// The frozen policy keeps passes on material sampling until training is
// over instead of mixing in the refining guide.
func TestRenderGuidePolicyFrozen(t *testing.T) {
	packed, camera := testScene()
	fake := newFakeTracer("soft-0", true)
	r, err := NewDefault(packed, camera, []tracer.Tracer{fake}, tracer.NewPerfectScheduler(), Options{
		FrameW:          4,
		FrameH:          4,
		SamplesPerPixel: 100,
		Guide:           GuidePolicyFrozen,
	})
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	defer r.Close()

	if err := r.Render(); err != nil {
		t.Fatalf("expected a clean frame; got %v", err)
	}

	if got := fake.requests[10].Mode; got != tracer.GuideWarm {
		t.Fatalf("expected material sampling while training; got mode %d", got)
	}
	if got := fake.requests[99].Mode; got != tracer.GuideFrozen {
		t.Fatalf("expected guided sampling after the freeze; got mode %d", got)
	}
}

func TestRenderAppliesQueuedCameraEdits(t *testing.T) {
	packed, camera := testScene()
	fake := newFakeTracer("soft-0", false)
	r, err := NewDefault(packed, camera, []tracer.Tracer{fake}, tracer.NewPerfectScheduler(), Options{
		FrameW:          8,
		FrameH:          8,
		SamplesPerPixel: 3,
	})
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	defer r.Close()

	renderDone := make(chan error, 1)
	go func() { renderDone <- r.Render() }()

	fake.waitDispatch(t)
	fake.waitDispatch(t)

	moved := types.XYZ(5, 0, 5)
	r.(*defaultRenderer).EditCamera(func(c *scene.Camera) {
		c.Position = moved
		c.Update()
	})

	fake.complete(0, nil)
	fake.complete(1, nil)

	// The edit lands before the next dispatch, with the earlier passes
	// drained first.
	if req2 := fake.waitDispatch(t); req2.Sample != 2 {
		t.Fatalf("expected sample 2 after the edit; got %d", req2.Sample)
	}
	if camera.Position != moved {
		t.Fatalf("expected the edit to reach the camera; got %v", camera.Position)
	}

	fake.complete(2, nil)
	if err := <-renderDone; err != nil {
		t.Fatalf("expected a clean frame; got %v", err)
	}
}
