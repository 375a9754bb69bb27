package renderer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOptionsValidate(t *testing.T) {
	type spec struct {
		opts    Options
		wantErr bool
	}

	specs := []spec{
		{Options{FrameW: 8, FrameH: 8, SamplesPerPixel: 16}, false},
		{Options{FrameW: 8, FrameH: 8, WallClockBudget: Duration(time.Second)}, false},
		{Options{FrameW: 8, FrameH: 8, SamplesPerPixel: 16, Guide: GuidePolicyOn, TrainPortion: 0.3}, false},
		// Missing dimensions.
		{Options{FrameH: 8, SamplesPerPixel: 16}, true},
		{Options{FrameW: 8, SamplesPerPixel: 16}, true},
		// No budget of either kind.
		{Options{FrameW: 8, FrameH: 8}, true},
		// Training has to leave room for measuring.
		{Options{FrameW: 8, FrameH: 8, SamplesPerPixel: 16, TrainPortion: 1}, true},
		{Options{FrameW: 8, FrameH: 8, SamplesPerPixel: 16, TrainPortion: -0.1}, true},
		{Options{FrameW: 8, FrameH: 8, SamplesPerPixel: 16, Guide: "sometimes"}, true},
	}

	for index, s := range specs {
		err := s.opts.Validate()
		if s.wantErr && !errors.Is(err, ErrInvalidOptions) {
			t.Fatalf("[spec %d] expected ErrInvalidOptions; got %v", index, err)
		}
		if !s.wantErr && err != nil {
			t.Fatalf("[spec %d] expected valid options; got %v", index, err)
		}
	}
}

func TestOptionsLoadPreset(t *testing.T) {
	preset := `width: 320
height: 180
bounces: 4
spp: 64
exposure: 1.5
guide: on
train_portion: 0.2
time_budget: 90s
`
	path := filepath.Join(t.TempDir(), "preset.yml")
	if err := os.WriteFile(path, []byte(preset), 0o644); err != nil {
		t.Fatalf("failed to write preset: %v", err)
	}

	opts := Options{FrameW: 64, FrameH: 64, Exposure: 1}
	if err := opts.LoadPreset(path); err != nil {
		t.Fatalf("failed to load preset: %v", err)
	}

	want := Options{
		FrameW:          320,
		FrameH:          180,
		NumBounces:      4,
		SamplesPerPixel: 64,
		Exposure:        1.5,
		Guide:           GuidePolicyOn,
		TrainPortion:    0.2,
		WallClockBudget: Duration(90 * time.Second),
	}
	if opts != want {
		t.Fatalf("expected %+v; got %+v", want, opts)
	}
	if err := opts.Validate(); err != nil {
		t.Fatalf("expected the preset to validate: %v", err)
	}
}

// Keys absent from a preset keep their previous values.
func TestOptionsLoadPresetOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yml")
	if err := os.WriteFile(path, []byte("exposure: 2.0\n"), 0o644); err != nil {
		t.Fatalf("failed to write preset: %v", err)
	}

	opts := Options{FrameW: 64, FrameH: 64, SamplesPerPixel: 8}
	if err := opts.LoadPreset(path); err != nil {
		t.Fatalf("failed to load preset: %v", err)
	}
	if opts.FrameW != 64 || opts.SamplesPerPixel != 8 || opts.Exposure != 2 {
		t.Fatalf("expected only the exposure to change; got %+v", opts)
	}

	if err := opts.LoadPreset(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("expected an error for a missing preset file")
	}
}
