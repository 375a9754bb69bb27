package cmd

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/urfave/cli"

	"github.com/MinusKelvin/pbr-gpu/renderer"
)

// Parse args against the render flag set and wrap them in a cli context.
func renderContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()

	flags := []cli.Flag{
		cli.IntFlag{Name: "width", Value: 512},
		cli.IntFlag{Name: "height", Value: 512},
		cli.IntFlag{Name: "spp", Value: 32},
		cli.IntFlag{Name: "bounces", Value: 5},
		cli.Float64Flag{Name: "exposure", Value: 1.0},
		cli.StringFlag{Name: "guide"},
		cli.Float64Flag{Name: "train-portion"},
		cli.StringFlag{Name: "time-budget"},
		cli.StringFlag{Name: "preset"},
		cli.StringFlag{Name: "scene", Value: "cornell"},
		cli.IntFlag{Name: "tracers", Value: 1},
		cli.IntFlag{Name: "workers"},
	}

	set := flag.NewFlagSet("render", flag.ContinueOnError)
	for _, f := range flags {
		f.Apply(set)
	}
	if err := set.Parse(args); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}
	return cli.NewContext(nil, set, nil)
}

func writePreset(t *testing.T, payload string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "preset.yml")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("writing preset: %v", err)
	}
	return path
}

func TestRenderOptionsDefaults(t *testing.T) {
	opts, err := renderOptions(renderContext(t))
	if err != nil {
		t.Fatal(err)
	}

	want := renderer.Options{
		FrameW:          512,
		FrameH:          512,
		NumBounces:      5,
		SamplesPerPixel: 32,
		Exposure:        1,
	}
	if opts != want {
		t.Fatalf("expected default options %+v; got %+v", want, opts)
	}
}

func TestRenderOptionsPresetPrecedence(t *testing.T) {
	preset := writePreset(t, "width: 1280\nheight: 720\nspp: 64\nguide: on\ntime_budget: 90s\n")

	// An explicit flag wins over the preset; the preset wins over flag
	// defaults.
	opts, err := renderOptions(renderContext(t, "--preset", preset, "--spp", "128"))
	if err != nil {
		t.Fatal(err)
	}

	want := renderer.Options{
		FrameW:          1280,
		FrameH:          720,
		NumBounces:      5,
		SamplesPerPixel: 128,
		Exposure:        1,
		Guide:           renderer.GuidePolicyOn,
		WallClockBudget: renderer.Duration(90 * time.Second),
	}
	if opts != want {
		t.Fatalf("expected options %+v; got %+v", want, opts)
	}
}

func TestRenderOptionsBudgetOnlyPreset(t *testing.T) {
	preset := writePreset(t, "time_budget: 2s\n")

	// A preset rendering against the wall clock must not have the spp
	// flag default close its open sample budget.
	opts, err := renderOptions(renderContext(t, "--preset", preset))
	if err != nil {
		t.Fatal(err)
	}

	if opts.SamplesPerPixel != 0 {
		t.Fatalf("expected an open sample budget; got %d spp", opts.SamplesPerPixel)
	}
	if opts.WallClockBudget != renderer.Duration(2*time.Second) {
		t.Fatalf("expected a 2s wall clock budget; got %s", time.Duration(opts.WallClockBudget))
	}
}

func TestRenderOptionsBadTimeBudget(t *testing.T) {
	_, err := renderOptions(renderContext(t, "--time-budget", "whenever"))
	if err == nil {
		t.Fatal("expected an error for an unparsable time budget")
	}
}
