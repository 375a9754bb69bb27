package main

import (
	"fmt"
	"os"

	"github.com/MinusKelvin/pbr-gpu/cmd"
	"github.com/urfave/cli"
)

// The flag set shared by the render subcommands. Interactive rendering
// defaults to an open-ended sample budget.
func renderFlags(defaultSpp int) []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{
			Name:  "width",
			Value: 512,
			Usage: "frame width",
		},
		cli.IntFlag{
			Name:  "height",
			Value: 512,
			Usage: "frame height",
		},
		cli.IntFlag{
			Name:  "spp",
			Value: defaultSpp,
			Usage: "samples per pixel; 0 keeps sampling until the time budget expires",
		},
		cli.IntFlag{
			Name:  "bounces",
			Value: 5,
			Usage: "number of indirect bounces",
		},
		cli.Float64Flag{
			Name:  "exposure",
			Value: 1.0,
			Usage: "camera exposure for tone-mapping",
		},
		cli.StringFlag{
			Name:  "guide",
			Usage: "path guide policy: off, on or frozen",
		},
		cli.Float64Flag{
			Name:  "train-portion",
			Usage: "portion of the sample and time budgets spent training the guide",
		},
		cli.StringFlag{
			Name:  "time-budget",
			Usage: "wall clock budget for the frame, e.g. 90s",
		},
		cli.StringFlag{
			Name:  "preset",
			Usage: "YAML preset file pre-filling the render options",
		},
		cli.StringFlag{
			Name:  "scene",
			Value: "cornell",
			Usage: "built-in scene to render (cornell, furnace)",
		},
		cli.IntFlag{
			Name:  "tracers",
			Value: 1,
			Usage: "number of software tracers sharing the frame",
		},
		cli.IntFlag{
			Name:  "workers",
			Usage: "worker goroutines per tracer; 0 means one per logical CPU",
		},
	}
}

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "pbr"
	app.Usage = "render built-in scenes using spectral path tracing"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render a built-in scene",
			Subcommands: []cli.Command{
				{
					Name:  "frame",
					Usage: "render a single frame into a PNG file",
					Description: `
Render a single frame of a built-in scene and write it to a PNG file. The
output filename can be passed either as a positional argument or via the
--out flag. Interrupting the render with ctrl-c writes out whatever has
accumulated so far.`,
					ArgsUsage: "[out.png]",
					Flags: append(renderFlags(32),
						cli.StringFlag{
							Name:  "out, o",
							Value: "frame.png",
							Usage: "image filename for the rendered frame",
						},
					),
					Action: cmd.RenderFrame,
				},
				{
					Name:  "interactive",
					Usage: "render a continuously refining view of the scene",
					Description: `
Open a window displaying the frame as it accumulates. Drag with the left
mouse button to look around, move with WASD or the arrow keys, toggle a
turntable orbit with space and step the exposure with - and =.`,
					Flags:  renderFlags(0),
					Action: cmd.RenderInteractive,
				},
			},
		},
		{
			Name:  "scene",
			Usage: "inspect built-in scenes",
			Subcommands: []cli.Command{
				{
					Name:      "info",
					Usage:     "print resource, BVH and light sampler summaries for a scene",
					ArgsUsage: "[scene]",
					Action:    cmd.ShowSceneInfo,
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
