package cmd

import (
	"bytes"
	"fmt"

	"github.com/MinusKelvin/pbr-gpu/scene"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Display resource and acceleration structure information for one of the
// built-in scenes.
func ShowSceneInfo(ctx *cli.Context) error {
	setupLogging(ctx)

	demo, err := buildDemoScene(ctx.Args().First())
	if err != nil {
		return err
	}
	sc := demo.scene

	logger.Noticef("scene resources\n%s", sc.Stats())

	nodes := len(sc.BVHNodes)
	logger.Noticef(
		"BVH: %d nodes over %d scene graph leaves, depth %d",
		nodes, (nodes+1)/2, bvhDepth(sc.BVHNodes, demo.root.Index()),
	)

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Light", "Kind", "Power", "Selection"})
	for i, light := range demo.lights {
		table.Append([]string{
			fmt.Sprintf("%d", i),
			lightKindName(light.Kind()),
			fmt.Sprintf("%.2f", sc.LightPower(light)),
			fmt.Sprintf("%.3f", sc.LightSelectionPMF(demo.sampler, light)),
		})
	}
	table.Render()
	logger.Noticef("%s light sampler over %d lights\n%s", samplerKindName(demo.sampler.Kind()), len(demo.lights), buf.String())

	return nil
}

// Depth of the BVH subtree rooted at the given node array index.
func bvhDepth(nodes []scene.BVHNode, idx int) int {
	node := nodes[idx]
	if node.IsLeaf() {
		return 1
	}

	depth := bvhDepth(nodes, idx+1)
	if far := bvhDepth(nodes, node.Far.Index()); far > depth {
		depth = far
	}
	return depth + 1
}

func lightKindName(kind scene.LightKind) string {
	switch kind {
	case scene.LightUniform:
		return "uniform"
	case scene.LightImage:
		return "image"
	default:
		return "area"
	}
}

func samplerKindName(kind scene.LightSamplerKind) string {
	if kind == scene.SamplerPower {
		return "power"
	}
	return "uniform"
}
