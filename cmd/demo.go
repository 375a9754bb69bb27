package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MinusKelvin/pbr-gpu/scene"
	"github.com/MinusKelvin/pbr-gpu/types"
)

// A programmatically built scene together with everything a renderer
// needs to display it.
type demoScene struct {
	scene   *scene.Scene
	root    scene.NodeID
	sampler scene.LightSamplerID
	lights  []scene.LightID
	camera  *scene.Camera
}

var demoBuilders = map[string]func() *demoScene{
	"cornell": buildCornell,
	"furnace": buildFurnace,
}

// Build one of the built-in demo scenes. An empty name selects the
// cornell box.
func buildDemoScene(name string) (*demoScene, error) {
	if name == "" {
		name = "cornell"
	}
	build, exists := demoBuilders[name]
	if !exists {
		known := make([]string, 0, len(demoBuilders))
		for sceneName := range demoBuilders {
			known = append(known, sceneName)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("unknown scene %q; built-in scenes: %s", name, strings.Join(known, ", "))
	}
	return build(), nil
}

// Append a quad as two triangles sharing a vertex block. Vertices must
// wind counter-clockwise when viewed from the side the normal points at.
func addQuad(sc *scene.Scene, p0, p1, p2, p3, n types.Vec3) []scene.ShapeID {
	verts := []scene.TriVertex{
		{P: p0, N: n, U: 0, V: 0},
		{P: p1, N: n, U: 1, V: 0},
		{P: p2, N: n, U: 1, V: 1},
		{P: p3, N: n, U: 0, V: 1},
	}
	return sc.AddTriangles(verts, [][3]uint32{{0, 1, 2}, {0, 2, 3}})
}

// A cornell-style box: white floor, ceiling and back wall, a red left
// wall and a green right wall, a copper ball and a glass ball, lit by a
// warm ceiling panel plus a faint blue sky visible through the open
// front face.
func buildCornell() *demoScene {
	sc := scene.NewScene()

	opaque := sc.AddConstantTexture(sc.AddConstantSpectrum(1))
	smooth := sc.AddConstantTexture(sc.AddConstantSpectrum(0))
	brushed := sc.AddConstantTexture(sc.AddConstantSpectrum(0.2))

	white := sc.AddDiffuseMaterial(sc.AddConstantTexture(sc.AddRGBAlbedoSpectrum(types.XYZ(0.73, 0.73, 0.73))), nil)
	red := sc.AddDiffuseMaterial(sc.AddConstantTexture(sc.AddRGBAlbedoSpectrum(types.XYZ(0.65, 0.05, 0.05))), nil)
	green := sc.AddDiffuseMaterial(sc.AddConstantTexture(sc.AddRGBAlbedoSpectrum(types.XYZ(0.12, 0.45, 0.15))), nil)

	copperEta, _ := sc.NamedSpectrum("metal-Cu-eta")
	copperK, _ := sc.NamedSpectrum("metal-Cu-k")
	copper := sc.AddConductorMaterial(
		sc.AddConstantTexture(copperEta),
		sc.AddConstantTexture(copperK),
		brushed, brushed, nil,
	)

	glassIor, _ := sc.NamedSpectrum("glass-BK7")
	glass := sc.AddDielectricMaterial(glassIor, smooth, smooth, nil)

	var nodes []scene.NodeID

	// The box interior spans [-1,1] x [0,2] x [-1,1] with the front
	// face left open for the camera. Wall normals point inward.
	walls := []struct {
		p0, p1, p2, p3, n types.Vec3
		material          scene.MaterialID
	}{
		{types.XYZ(-1, 0, 1), types.XYZ(1, 0, 1), types.XYZ(1, 0, -1), types.XYZ(-1, 0, -1), types.XYZ(0, 1, 0), white},
		{types.XYZ(-1, 2, -1), types.XYZ(1, 2, -1), types.XYZ(1, 2, 1), types.XYZ(-1, 2, 1), types.XYZ(0, -1, 0), white},
		{types.XYZ(-1, 0, -1), types.XYZ(1, 0, -1), types.XYZ(1, 2, -1), types.XYZ(-1, 2, -1), types.XYZ(0, 0, 1), white},
		{types.XYZ(-1, 0, 1), types.XYZ(-1, 0, -1), types.XYZ(-1, 2, -1), types.XYZ(-1, 2, 1), types.XYZ(1, 0, 0), red},
		{types.XYZ(1, 0, -1), types.XYZ(1, 0, 1), types.XYZ(1, 2, 1), types.XYZ(1, 2, -1), types.XYZ(-1, 0, 0), green},
	}
	for _, wall := range walls {
		for _, shape := range addQuad(sc, wall.p0, wall.p1, wall.p2, wall.p3, wall.n) {
			nodes = append(nodes, sc.AddPrimitive(scene.PrimitiveNode{
				Shape:    shape,
				Material: wall.material,
				Light:    scene.NoLight,
				Alpha:    opaque,
			}))
		}
	}

	// Ceiling panel, just below the ceiling so it never coplanar-fights
	// with it. Each triangle becomes its own area light.
	emit := sc.AddRGBIlluminantSpectrum(types.XYZ(1, 0.84, 0.64), scene.SpectrumD65)
	var lights []scene.LightID
	panel := addQuad(sc,
		types.XYZ(-0.35, 1.98, -0.35), types.XYZ(0.35, 1.98, -0.35),
		types.XYZ(0.35, 1.98, 0.35), types.XYZ(-0.35, 1.98, 0.35),
		types.XYZ(0, -1, 0),
	)
	for _, shape := range panel {
		light := sc.AddAreaLight(shape, emit, 40, false, opaque)
		lights = append(lights, light)
		nodes = append(nodes, sc.AddPrimitive(scene.PrimitiveNode{
			Shape:    shape,
			Material: white,
			Light:    light,
			Alpha:    opaque,
		}))
	}

	// Both balls instance the same unit sphere and get their size and
	// placement from transform nodes.
	ball := sc.AddSphere(scene.FullSphere())

	copperBall := sc.AddPrimitive(scene.PrimitiveNode{
		Shape:    ball,
		Material: copper,
		Light:    scene.NoLight,
		Alpha:    opaque,
	})
	nodes = append(nodes, sc.AddTransform(scene.NewTransform(
		types.Translate3D(-0.45, 0.45, -0.3).Mul4(types.Scale3D(0.45, 0.45, 0.45)),
	), copperBall))

	glassBall := sc.AddPrimitive(scene.PrimitiveNode{
		Shape:    ball,
		Material: glass,
		Light:    scene.NoLight,
		Alpha:    opaque,
	})
	nodes = append(nodes, sc.AddTransform(scene.NewTransform(
		types.Translate3D(0.5, 0.35, 0.35).Mul4(types.Scale3D(0.35, 0.35, 0.35)),
	), glassBall))

	sky := sc.AddUniformLight(sc.AddRGBIlluminantSpectrum(types.XYZ(0.42, 0.55, 0.85), scene.SpectrumD65), 0.1)
	lights = append(lights, sky)

	camera := scene.NewCamera(45)
	camera.Position = types.XYZ(0, 1, 3.4)
	camera.LookAt = types.XYZ(0, 1, 0)

	return &demoScene{
		scene:   sc,
		root:    sc.AddBVH(nodes),
		sampler: sc.AddPowerLightSampler(lights),
		lights:  lights,
		camera:  camera,
	}
}

// An 18% grey ball inside a uniform 0.5 emitter. Every ball pixel must
// converge to albedo times emitter radiance, so energy bugs show up at
// a glance.
func buildFurnace() *demoScene {
	sc := scene.NewScene()

	opaque := sc.AddConstantTexture(sc.AddConstantSpectrum(1))
	grey := sc.AddDiffuseMaterial(sc.AddConstantTexture(sc.AddConstantSpectrum(0.18)), nil)

	ball := sc.AddPrimitive(scene.PrimitiveNode{
		Shape:    sc.AddSphere(scene.FullSphere()),
		Material: grey,
		Light:    scene.NoLight,
		Alpha:    opaque,
	})

	sky := sc.AddUniformLight(sc.AddConstantSpectrum(0.5), 1)

	camera := scene.NewCamera(40)
	camera.Position = types.XYZ(0, 0, 3.2)
	camera.LookAt = types.XYZ(0, 0, 0)

	return &demoScene{
		scene:   sc,
		root:    sc.AddBVH([]scene.NodeID{ball}),
		sampler: sc.AddUniformLightSampler([]scene.LightID{sky}),
		lights:  []scene.LightID{sky},
		camera:  camera,
	}
}
