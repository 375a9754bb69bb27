package scene

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Build a tabular representation of arena statistics.
func (sc *Scene) Stats() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Resource", "Pool", "Size"})
	table.Append([]string{"Geometry", "---", fmtSize(sc.Spheres, sc.Triangles, sc.TriVerts)})
	table.Append([]string{"", "Spheres", fmtSize(sc.Spheres)})
	table.Append([]string{"", "Triangles", fmtSize(sc.Triangles)})
	table.Append([]string{"", "Vertices", fmtSize(sc.TriVerts)})
	table.Append([]string{" ", " ", " "})
	table.Append([]string{"Scene graph", "---", fmtSize(sc.BVHNodes, sc.TransformNodes, sc.Primitives)})
	table.Append([]string{"", "BVH nodes", fmtSize(sc.BVHNodes)})
	table.Append([]string{"", "Transforms", fmtSize(sc.TransformNodes)})
	table.Append([]string{"", "Primitives", fmtSize(sc.Primitives)})
	table.Append([]string{" ", " ", " "})
	table.Append([]string{"Lights", "---", fmtSize(sc.UniformLights, sc.ImageLights, sc.AreaLights, sc.UniformSamplerData, sc.PowerSamplerData)})
	table.Append([]string{"", "Uniform", fmtSize(sc.UniformLights)})
	table.Append([]string{"", "Image", fmtSize(sc.ImageLights)})
	table.Append([]string{"", "Area", fmtSize(sc.AreaLights)})
	table.Append([]string{"", "Sampler tables", fmtSize(sc.UniformSamplers, sc.PowerSamplers, sc.UniformSamplerData, sc.PowerSamplerData)})
	table.Append([]string{" ", " ", " "})
	table.Append([]string{"Materials", "---", fmtSize(sc.DiffuseMats, sc.DiffuseTransmitMats, sc.ConductorMats, sc.DielectricMats, sc.ThinDielectricMats, sc.MetallicMats, sc.MixMats)})
	table.Append([]string{" ", " ", " "})
	table.Append([]string{"Textures", "---", fmtSize(sc.ConstantTex, sc.FloatImageTex, sc.RGBImageTex, sc.ScaleTex, sc.MixTex, sc.CheckerboardTex, sc.Images)})
	table.Append([]string{" ", " ", " "})
	table.Append([]string{"Spectra", "---", fmtSize(sc.TableSpectra, sc.ConstantSpectra, sc.RGBAlbedoSpectra, sc.RGBIllumSpectra, sc.BlackbodySpectra, sc.PiecewiseSpectra, sc.RGBIorImSpectra)})
	table.Append([]string{" ", " ", " "})
	table.Append([]string{"Shared data", "---", fmtSize(sc.FloatData)})
	table.SetFooter([]string{"Total", " ", strings.TrimLeft(fmtSize(
		sc.Spheres, sc.Triangles, sc.TriVerts,
		sc.BVHNodes, sc.TransformNodes, sc.Primitives,
		sc.UniformLights, sc.ImageLights, sc.AreaLights,
		sc.UniformSamplers, sc.PowerSamplers, sc.UniformSamplerData, sc.PowerSamplerData,
		sc.DiffuseMats, sc.DiffuseTransmitMats, sc.ConductorMats, sc.DielectricMats,
		sc.ThinDielectricMats, sc.MetallicMats, sc.MixMats,
		sc.ConstantTex, sc.FloatImageTex, sc.RGBImageTex, sc.ScaleTex, sc.MixTex, sc.CheckerboardTex,
		sc.Images,
		sc.TableSpectra, sc.ConstantSpectra, sc.RGBAlbedoSpectra, sc.RGBIllumSpectra,
		sc.BlackbodySpectra, sc.PiecewiseSpectra, sc.RGBIorImSpectra,
		sc.FloatData,
	), " ")})

	table.Render()
	return buf.String()
}

// Sum the total space used by a set of slices and return back a formatted
// value with the appropriate byte/kb/mb unit.
func fmtSize(items ...interface{}) string {
	var totalBytes float32 = 0.0
	for _, item := range items {
		t := reflect.TypeOf(item)
		v := reflect.ValueOf(item)
		if v.Len() == 0 {
			continue
		}

		totalBytes += float32(int(t.Elem().Size()) * v.Len())
	}

	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", int(totalBytes))
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", totalBytes/1e3)
	}
	return fmt.Sprintf("%5.1f mb", totalBytes/1e6)
}
