package cmd

import (
	"strings"
	"testing"

	"github.com/chewxy/math32"

	"github.com/MinusKelvin/pbr-gpu/scene"
)

func TestBuildDemoScenes(t *testing.T) {
	specs := []struct {
		name        string
		samplerKind scene.LightSamplerKind
		lights      int
	}{
		{"", scene.SamplerPower, 3},
		{"cornell", scene.SamplerPower, 3},
		{"furnace", scene.SamplerUniform, 1},
	}

	for idx, spec := range specs {
		demo, err := buildDemoScene(spec.name)
		if err != nil {
			t.Fatalf("[spec %d] %v", idx, err)
		}

		if demo.camera == nil {
			t.Fatalf("[spec %d] demo scene has no camera", idx)
		}
		if len(demo.lights) != spec.lights {
			t.Fatalf("[spec %d] expected %d lights; got %d", idx, spec.lights, len(demo.lights))
		}
		if kind := demo.sampler.Kind(); kind != spec.samplerKind {
			t.Fatalf("[spec %d] expected sampler kind %d; got %d", idx, spec.samplerKind, kind)
		}
		if demo.root.Kind() != scene.NodeBVH {
			t.Fatalf("[spec %d] expected a BVH root node", idx)
		}

		var pmfSum float32
		for _, light := range demo.lights {
			pmf := demo.scene.LightSelectionPMF(demo.sampler, light)
			if pmf <= 0 {
				t.Fatalf("[spec %d] light %d can never be selected", idx, light)
			}
			pmfSum += pmf
		}
		if math32.Abs(pmfSum-1) > 1e-4 {
			t.Fatalf("[spec %d] expected selection pmfs to sum to 1; got %f", idx, pmfSum)
		}

		packed := demo.scene.Pack(demo.root, demo.sampler)
		if packed.Root != demo.root || packed.Sampler != demo.sampler {
			t.Fatalf("[spec %d] packed scene does not reference the demo root and sampler", idx)
		}
	}
}

func TestBuildCornellResources(t *testing.T) {
	demo, err := buildDemoScene("cornell")
	if err != nil {
		t.Fatal(err)
	}
	sc := demo.scene

	// Five walls and the ceiling panel, two triangles each.
	if len(sc.Triangles) != 12 {
		t.Fatalf("expected 12 triangles; got %d", len(sc.Triangles))
	}

	// Both balls instance a single unit sphere through transform nodes.
	if len(sc.Spheres) != 1 {
		t.Fatalf("expected one instanced sphere; got %d", len(sc.Spheres))
	}
	if len(sc.TransformNodes) != 2 {
		t.Fatalf("expected 2 transform nodes; got %d", len(sc.TransformNodes))
	}

	// 12 wall and panel primitives plus 2 transformed balls make 14 BVH
	// inputs, so the tree has 2*14 - 1 nodes.
	if len(sc.BVHNodes) != 27 {
		t.Fatalf("expected 27 BVH nodes; got %d", len(sc.BVHNodes))
	}

	if len(sc.AreaLights) != 2 || len(sc.UniformLights) != 1 {
		t.Fatalf(
			"expected 2 area lights and 1 uniform light; got %d and %d",
			len(sc.AreaLights), len(sc.UniformLights),
		)
	}

	// Emissive primitives must point back at their area lights.
	emissive := 0
	for _, prim := range sc.Primitives {
		if prim.Light != scene.NoLight {
			emissive++
		}
	}
	if emissive != 2 {
		t.Fatalf("expected 2 emissive primitives; got %d", emissive)
	}
}

func TestBuildDemoSceneUnknownName(t *testing.T) {
	_, err := buildDemoScene("atrium")
	if err == nil {
		t.Fatal("expected an error for an unknown scene name")
	}
	if !strings.Contains(err.Error(), "cornell") {
		t.Fatalf("expected the error to list the built-in scenes; got %q", err)
	}
}
