package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/MinusKelvin/pbr-gpu/renderer"
	"github.com/MinusKelvin/pbr-gpu/tracer"
	"github.com/MinusKelvin/pbr-gpu/tracer/software"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Build renderer options from the preset file and the command line. The
// preset pre-fills anything the flags do not explicitly set.
func renderOptions(ctx *cli.Context) (renderer.Options, error) {
	var opts renderer.Options
	if preset := ctx.String("preset"); preset != "" {
		if err := opts.LoadPreset(preset); err != nil {
			return opts, err
		}
		logger.Infof("loaded preset %s", preset)
	}

	if ctx.IsSet("width") || opts.FrameW == 0 {
		opts.FrameW = uint32(ctx.Int("width"))
	}
	if ctx.IsSet("height") || opts.FrameH == 0 {
		opts.FrameH = uint32(ctx.Int("height"))
	}
	if ctx.IsSet("bounces") || opts.NumBounces == 0 {
		opts.NumBounces = uint32(ctx.Int("bounces"))
	}
	if ctx.IsSet("spp") || (opts.SamplesPerPixel == 0 && opts.WallClockBudget == 0) {
		opts.SamplesPerPixel = uint32(ctx.Int("spp"))
	}
	if ctx.IsSet("exposure") || opts.Exposure == 0 {
		opts.Exposure = float32(ctx.Float64("exposure"))
	}
	if ctx.IsSet("guide") {
		opts.Guide = renderer.GuidePolicy(ctx.String("guide"))
	}
	if ctx.IsSet("train-portion") {
		opts.TrainPortion = float32(ctx.Float64("train-portion"))
	}
	if ctx.IsSet("time-budget") {
		budget, err := time.ParseDuration(ctx.String("time-budget"))
		if err != nil {
			return opts, fmt.Errorf("invalid time budget: %v", err)
		}
		opts.WallClockBudget = renderer.Duration(budget)
	}

	return opts, nil
}

// Create the software tracer pool. The worker count is per tracer; zero
// selects one worker per logical CPU.
func tracerPool(ctx *cli.Context, opts renderer.Options) []tracer.Tracer {
	count := ctx.Int("tracers")
	if count < 1 {
		count = 1
	}

	pool := make([]tracer.Tracer, count)
	for i := range pool {
		pool[i] = software.New(fmt.Sprintf("cpu-%d", i), ctx.Int("workers"), int(opts.NumBounces))
	}
	return pool
}

// Render a still frame of a built-in scene and save it as a PNG.
func RenderFrame(ctx *cli.Context) error {
	setupLogging(ctx)

	opts, err := renderOptions(ctx)
	if err != nil {
		return err
	}

	demo, err := buildDemoScene(ctx.String("scene"))
	if err != nil {
		return err
	}
	packed := demo.scene.Pack(demo.root, demo.sampler)

	r, err := renderer.NewDefault(packed, demo.camera, tracerPool(ctx, opts), tracer.NewPerfectScheduler(), opts)
	if err != nil {
		return err
	}
	defer r.Close()

	// A ctrl-c stops the frame at the next pass boundary; whatever has
	// accumulated by then is still written out.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		r.Interrupt()
	}()

	err = r.Render()
	if errors.Is(err, renderer.ErrInterrupted) {
		logger.Warning("render interrupted; writing partial frame")
	} else if err != nil {
		return err
	}

	out := ctx.String("out")
	if ctx.NArg() > 0 {
		out = ctx.Args().First()
	}
	if err = r.SavePNG(out); err != nil {
		return err
	}

	displayFrameStats(r.Stats())
	return nil
}

// Render a built-in scene into a window with a progressively refining
// preview. Without a sample or time budget the frame keeps accumulating
// until the window closes.
func RenderInteractive(ctx *cli.Context) error {
	setupLogging(ctx)

	opts, err := renderOptions(ctx)
	if err != nil {
		return err
	}

	demo, err := buildDemoScene(ctx.String("scene"))
	if err != nil {
		return err
	}
	packed := demo.scene.Pack(demo.root, demo.sampler)

	r, err := renderer.NewInteractive(packed, demo.camera, tracerPool(ctx, opts), tracer.NewPerfectScheduler(), opts)
	if err != nil {
		return err
	}
	defer r.Close()

	if err = r.Render(); err != nil {
		return err
	}

	displayFrameStats(r.Stats())
	return nil
}

func displayFrameStats(stats renderer.FrameStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Tracer", "Block height", "% of frame", "Passes", "Trace time", "Rays"})
	for _, stat := range stats.Tracers {
		table.Append([]string{
			stat.Id,
			fmt.Sprintf("%d", stat.BlockH),
			fmt.Sprintf("%02.1f %%", stat.FramePercent),
			fmt.Sprintf("%d", stat.Passes),
			fmt.Sprintf("%s", stat.TraceTime),
			fmt.Sprintf("%d", stat.Rays),
		})
	}
	table.SetFooter([]string{"", "", "", "", "TOTAL", fmt.Sprintf("%s", stats.RenderTime)})

	table.Render()
	logger.Noticef("frame statistics\n%s", buf.String())
	logger.Noticef(
		"%d samples, %d guide refinements, mean luminance %.3f, relative variance %.5f, efficiency %.1f",
		stats.Samples, stats.Refinements, stats.MeanLuminance, stats.RelVariance, stats.Efficiency,
	)
}
