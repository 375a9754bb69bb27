package software

import (
	"math/rand"
	"sync/atomic"

	"github.com/chewxy/math32"

	"github.com/MinusKelvin/pbr-gpu/guide"
	"github.com/MinusKelvin/pbr-gpu/scene"
	"github.com/MinusKelvin/pbr-gpu/tracer"
	"github.com/MinusKelvin/pbr-gpu/types"
)

const (
	// Portion of bounces drawn from the guiding model when a trained
	// cell is available.
	guideMixProb = 0.5

	// Bounces before Russian roulette starts.
	rouletteDepth = 3

	// Path vertices recorded for training per sample.
	maxPathVerts = 16

	// Consecutive alpha-mask passthroughs before a ray gives up.
	maxAlphaSkips = 64

	infinity = math32.MaxFloat32
)

// Per-pass state shared by row workers. Everything here is read-only
// during the pass except the film, the guiding buffers (atomics) and the
// ray counter.
type passCtx struct {
	ps       *scene.PackedScene
	cam      scene.CameraUniform
	film     *tracer.Film
	views    guide.Views
	mode     tracer.GuideMode
	albedo   map[scene.SpectrumID]types.Vec3
	emission map[scene.SpectrumID]types.Vec3
	iors     map[scene.SpectrumID]float32
	bounces  int
	width    uint32
	height   uint32
	rays     *uint64
}

// A recorded training vertex. lumL and lumBeta snapshot the radiance and
// throughput at the moment the vertex scattered, so the flux arriving
// through it can be recovered once the whole path is known.
type pathVertex struct {
	leaf    uint32
	square  [2]float32
	lumL    float32
	lumBeta float32
}

func lerpVec4(a, b types.Vec4, t float32) types.Vec4 {
	return a.Add(b.Sub(a).Mul(t))
}

// Trace one sample through a pixel. Primary rays interpolate the four
// frustum corner rays the camera packs.
func (pc *passCtx) tracePixel(x, y uint32, rng *rand.Rand) types.Vec3 {
	u := (float32(x) + rng.Float32()) / float32(pc.width)
	v := (float32(y) + rng.Float32()) / float32(pc.height)

	top := lerpVec4(pc.cam.FrustumTL, pc.cam.FrustumTR, u)
	bottom := lerpVec4(pc.cam.FrustumBL, pc.cam.FrustumBR, u)
	dir := lerpVec4(top, bottom, v).Vec3().Normalize()

	out := pc.trace(ray{origin: pc.cam.Origin.Vec3(), dir: dir}, rng)
	for c := 0; c < 3; c++ {
		if math32.IsNaN(out[c]) || math32.IsInf(out[c], 0) {
			return types.Vec3{}
		}
	}
	return out
}

func (pc *passCtx) intersect(r ray, tMax float32) (hit, bool) {
	atomic.AddUint64(pc.rays, 1)
	return intersect(pc.ps, r, tMax)
}

func (pc *passCtx) trace(r ray, rng *rand.Rand) types.Vec3 {
	var L types.Vec3
	beta := types.XYZ(1, 1, 1)

	// Emission found by following the path is only counted when the
	// previous vertex could not have sampled it by next-event estimation,
	// which is what keeps the two strategies from double counting.
	nee := pc.canNEE()
	fromDelta := true

	training := (pc.mode == tracer.GuideWarm || pc.mode == tracer.GuideSample) && len(pc.views.BSP) > 0
	guiding := (pc.mode == tracer.GuideSample || pc.mode == tracer.GuideFrozen) && len(pc.views.BSP) > 0

	var verts [maxPathVerts]pathVertex
	nVerts := 0
	alphaSkips := 0

	for depth := 0; ; {
		h, found := pc.intersect(r, infinity)
		if !found {
			if fromDelta || !nee {
				L = L.Add(beta.MulVec(pc.environment(r.dir)))
			}
			break
		}

		prim := &pc.ps.Primitives[h.prim]

		// Stochastic alpha mask: pass through with the mask's complement.
		if alpha := pc.textureLum(prim.Alpha, h.uv); alpha < 1 && rng.Float32() >= alpha {
			alphaSkips++
			if alphaSkips > maxAlphaSkips {
				break
			}
			r.origin = h.point.Add(r.dir.Mul(10 * rayEps))
			continue
		}

		wo := r.dir.Mul(-1)

		if prim.Light != scene.NoLight && (fromDelta || !nee) {
			L = L.Add(beta.MulVec(pc.areaEmission(prim.Light, &h, wo)))
		}

		if depth == pc.bounces {
			break
		}

		mat := pc.resolveMaterial(prim.Material, h.uv, rng)
		kind := mat.Kind()

		var leaf uint32
		guideRoot := guide.NoChild
		inCell := false
		if (training || guiding) && guidable(kind) {
			leaf = guide.LookupLeaf(pc.views.BSP, pc.views.Bounds, h.point)
			inCell = true
			if training {
				guide.Visit(pc.views.BSP, leaf)
			}
			if guiding {
				guideRoot = pc.views.BSP[leaf].Left
			}
		}

		if nee && smoothLobe(kind) {
			L = L.Add(beta.MulVec(pc.directLight(mat, &h, wo, rng)))
		}

		wi, weight, delta, ok := pc.bounce(mat, &h, wo, guideRoot, rng)
		if !ok {
			break
		}

		if training && inCell && !delta && nVerts < maxPathVerts {
			verts[nVerts] = pathVertex{
				leaf:    leaf,
				square:  guide.DirToSquare(wi),
				lumL:    lum(L),
				lumBeta: lum(beta.MulVec(weight)),
			}
			nVerts++
		}

		beta = beta.MulVec(weight)
		if beta.MaxComponent() <= 0 {
			break
		}
		fromDelta = delta
		r = ray{origin: offsetOrigin(&h, wi), dir: wi}
		depth++

		if depth > rouletteDepth {
			q := math32.Min(beta.MaxComponent(), 0.95)
			if rng.Float32() >= q {
				break
			}
			beta = beta.Mul(1 / q)
		}
	}

	// Deposit the radiance that arrived through each recorded vertex
	// into its cell's training tree, normalized by the throughput at the
	// vertex so cells learn incident radiance rather than path weight.
	if nVerts > 0 {
		total := lum(L)
		for i := 0; i < nVerts; i++ {
			v := &verts[i]
			arrived := total - v.lumL
			if arrived <= 0 || v.lumBeta <= 1e-7 {
				continue
			}
			trainRoot := pc.views.BSP[v.leaf].Right
			guide.DepositQuadtree(pc.views.Train, trainRoot, v.square, arrived/v.lumBeta)
		}
	}
	return L
}

// Scatter at a vertex, mixing guided and material sampling with the
// balance heuristic when a trained cell covers the point.
func (pc *passCtx) bounce(mat scene.MaterialID, h *hit, wo types.Vec3, guideRoot uint32, rng *rand.Rand) (types.Vec3, types.Vec3, bool, bool) {
	canGuide := guideRoot != guide.NoChild

	if canGuide && rng.Float32() < guideMixProb {
		sq, pdfSq := guide.SampleQuadtree(pc.views.Guide, guideRoot, rng.Float32(), rng.Float32())
		wi := guide.SquareToDir(sq)

		f, pdfB := pc.evalBSDF(mat, h, wo, wi)
		pdf := guideMixProb*pdfSq/(4*math32.Pi) + (1-guideMixProb)*pdfB
		if pdf <= 0 || isBlack(f) {
			return wi, types.Vec3{}, false, false
		}
		weight := f.Mul(math32.Abs(wi.Dot(h.normal)) / pdf)
		return wi, weight, false, true
	}

	s, ok := pc.sampleBSDF(mat, h, wo, rng)
	if !ok {
		return s.wi, types.Vec3{}, false, false
	}
	if s.delta {
		return s.wi, s.f, true, true
	}

	pdf := s.pdf
	if canGuide {
		pdfG := guide.QuadtreePDF(pc.views.Guide, guideRoot, guide.DirToSquare(s.wi)) / (4 * math32.Pi)
		pdf = (1-guideMixProb)*s.pdf + guideMixProb*pdfG
	}
	if pdf <= 0 {
		return s.wi, types.Vec3{}, false, false
	}
	weight := s.f.Mul(math32.Abs(s.wi.Dot(h.normal)) / pdf)
	return s.wi, weight, false, true
}

// Whether the packed scene carries a usable light sampler.
func (pc *passCtx) canNEE() bool {
	if pc.ps.Sampler.Kind() == scene.SamplerUniform {
		return pc.ps.Sampler.Index() < len(pc.ps.UniformSamplers)
	}
	return pc.ps.Sampler.Index() < len(pc.ps.PowerSamplers)
}

// Draw a light from the packed sampler tables.
func (pc *passCtx) pickLight(u1, u2 float32) (scene.LightID, float32) {
	ps := pc.ps
	if ps.Sampler.Kind() == scene.SamplerUniform {
		us := &ps.UniformSamplers[ps.Sampler.Index()]
		slot := uint32(u1 * float32(us.Count))
		if slot >= us.Count {
			slot = us.Count - 1
		}
		return ps.UniformSamplerData[us.Ptr+slot], 1 / float32(us.Count)
	}

	pws := &ps.PowerSamplers[ps.Sampler.Index()]
	slot := uint32(u1 * float32(pws.Count))
	if slot >= pws.Count {
		slot = pws.Count - 1
	}
	bucket := ps.PowerSamplerData[pws.Ptr+slot]
	if u2 < bucket.Q {
		return bucket.Light, bucket.PMF
	}
	aliased := ps.PowerSamplerData[pws.Ptr+bucket.Alias]
	return aliased.Light, aliased.PMF
}

// Next-event estimation: sample one light and connect it to the vertex.
func (pc *passCtx) directLight(mat scene.MaterialID, h *hit, wo types.Vec3, rng *rand.Rand) types.Vec3 {
	light, pmf := pc.pickLight(rng.Float32(), rng.Float32())
	if pmf <= 0 {
		return types.Vec3{}
	}

	var wi, radiance types.Vec3
	var pdfDir, shadowDist float32

	switch light.Kind() {
	case scene.LightUniform:
		ul := &pc.ps.UniformLights[light.Index()]
		wi = uniformSphere(rng.Float32(), rng.Float32())
		radiance = pc.emissionOf(ul.Spectrum).Mul(ul.Scale)
		pdfDir = 1 / (4 * math32.Pi)
		shadowDist = infinity

	case scene.LightImage:
		il := &pc.ps.ImageLights[light.Index()]
		sq, pdfSq := pc.sample2DTable(il.Dist, rng.Float32(), rng.Float32())
		if pdfSq <= 0 {
			return types.Vec3{}
		}
		wi = types.TransformNormal(guide.SquareToDir(sq), il.Transform.MInv).Normalize()
		radiance = pc.imageRGB(il.Image, sq[0], sq[1]).Mul(il.Scale)
		pdfDir = pdfSq / (4 * math32.Pi)
		shadowDist = infinity

	default:
		var ok bool
		wi, radiance, pdfDir, shadowDist, ok = pc.sampleAreaLight(light, h.point, rng)
		if !ok {
			return types.Vec3{}
		}
	}

	f, _ := pc.evalBSDF(mat, h, wo, wi)
	if isBlack(f) || pdfDir <= 0 {
		return types.Vec3{}
	}

	shadow := ray{origin: offsetOrigin(h, wi), dir: wi}
	if pc.occluded(shadow, shadowDist, rng) {
		return types.Vec3{}
	}

	cos := math32.Abs(wi.Dot(h.normal))
	return f.MulVec(radiance).Mul(cos / (pmf * pdfDir))
}

// Sample a point on an area light's shape and return the connection
// direction, emitted radiance, solid-angle density and shadow distance.
func (pc *passCtx) sampleAreaLight(light scene.LightID, from types.Vec3, rng *rand.Rand) (types.Vec3, types.Vec3, float32, float32, bool) {
	ps := pc.ps
	al := &ps.AreaLights[light.Index()]

	var pObj, nObj types.Vec3
	var uv types.Vec2
	var area float32

	if al.Shape.Kind() == scene.ShapeSphere {
		sph := &ps.Spheres[al.Shape.Index()]
		z := sph.ZMin + (sph.ZMax-sph.ZMin)*rng.Float32()
		phi := 2 * math32.Pi * rng.Float32()
		r := math32.Sqrt(math32.Max(0, 1-z*z))
		pObj = types.XYZ(r*math32.Cos(phi), r*math32.Sin(phi), z)
		nObj = pObj
		if sph.FlipNormal != 0 {
			nObj = nObj.Mul(-1)
		}
		uv = types.XY(phi/(2*math32.Pi), (z-sph.ZMin)/(sph.ZMax-sph.ZMin))
		area = 2 * math32.Pi * (sph.ZMax - sph.ZMin)
	} else {
		tri := &ps.Triangles[al.Shape.Index()]
		v0 := &ps.TriVerts[tri.Vertices[0]]
		v1 := &ps.TriVerts[tri.Vertices[1]]
		v2 := &ps.TriVerts[tri.Vertices[2]]

		su := math32.Sqrt(rng.Float32())
		b1 := 1 - su
		b2 := rng.Float32() * su
		b0 := 1 - b1 - b2

		pObj = v0.P.Mul(b0).Add(v1.P.Mul(b1)).Add(v2.P.Mul(b2))
		e1 := v1.P.Sub(v0.P)
		e2 := v2.P.Sub(v0.P)
		cross := e1.Cross(e2)
		area = cross.Len() * 0.5
		if area <= 0 {
			return types.Vec3{}, types.Vec3{}, 0, 0, false
		}
		nObj = cross.Normalize()
		uv = types.XY(
			v0.U*b0+v1.U*b1+v2.U*b2,
			v0.V*b0+v1.V*b1+v2.V*b2,
		)
	}

	pW, nW := pObj, nObj
	if al.TransformNode != scene.NoNode && al.TransformNode.Kind() == scene.NodeTransform {
		t := &ps.TransformNodes[al.TransformNode.Index()].Transform
		pW = types.TransformCoordinate(pObj, t.MInv)
		nW = types.TransformNormal(nObj, t.M.Transpose()).Normalize()
		// Uniform-scale estimate of the world-space area, matching how
		// light power is weighed when the sampler tables are built.
		area *= math32.Pow(math32.Abs(t.MInv.Det()), 2.0/3.0)
	}

	toLight := pW.Sub(from)
	dist2 := toLight.Dot(toLight)
	if dist2 < 1e-8 || area <= 0 {
		return types.Vec3{}, types.Vec3{}, 0, 0, false
	}
	dist := math32.Sqrt(dist2)
	wi := toLight.Mul(1 / dist)

	cosL := -nW.Dot(wi)
	if al.TwoSided != 0 {
		cosL = math32.Abs(cosL)
	}
	if cosL <= 1e-6 {
		return types.Vec3{}, types.Vec3{}, 0, 0, false
	}

	radiance := pc.emissionOf(al.Spectrum).Mul(al.Scale * pc.textureLum(al.Alpha, uv))
	pdfDir := dist2 / (cosL * area)
	return wi, radiance, pdfDir, dist * (1 - 1e-3), true
}

// Radiance a primitive's area light emits toward wo.
func (pc *passCtx) areaEmission(light scene.LightID, h *hit, wo types.Vec3) types.Vec3 {
	al := &pc.ps.AreaLights[light.Index()]
	if al.TwoSided == 0 && h.normal.Dot(wo) <= 0 {
		return types.Vec3{}
	}
	return pc.emissionOf(al.Spectrum).Mul(al.Scale)
}

// Combined radiance of the infinite lights along a direction.
func (pc *passCtx) environment(dir types.Vec3) types.Vec3 {
	var out types.Vec3
	for i := range pc.ps.UniformLights {
		ul := &pc.ps.UniformLights[i]
		out = out.Add(pc.emissionOf(ul.Spectrum).Mul(ul.Scale))
	}
	for i := range pc.ps.ImageLights {
		il := &pc.ps.ImageLights[i]
		local := types.TransformNormal(dir, il.Transform.M).Normalize()
		sq := guide.DirToSquare(local)
		out = out.Add(pc.imageRGB(il.Image, sq[0], sq[1]).Mul(il.Scale))
	}
	return out
}

// Visibility test with stochastic alpha masks.
func (pc *passCtx) occluded(r ray, tMax float32, rng *rand.Rand) bool {
	for i := 0; i < maxAlphaSkips; i++ {
		h, found := pc.intersect(r, tMax)
		if !found {
			return false
		}
		alpha := pc.textureLum(pc.ps.Primitives[h.prim].Alpha, h.uv)
		if rng.Float32() < alpha {
			return true
		}
		step := h.t + 10*rayEps
		if step >= tMax {
			return false
		}
		r.origin = h.point.Add(r.dir.Mul(10 * rayEps))
		tMax -= step
	}
	return true
}

// Spawn origin nudged off the surface toward the travel direction.
func offsetOrigin(h *hit, dir types.Vec3) types.Vec3 {
	eps := float32(10 * rayEps)
	if dir.Dot(h.normal) < 0 {
		eps = -eps
	}
	return h.point.Add(h.normal.Mul(eps))
}

func isBlack(v types.Vec3) bool {
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}

func (pc *passCtx) albedoOf(id scene.SpectrumID) types.Vec3 {
	if rgb, ok := pc.albedo[id]; ok {
		return rgb
	}
	return reflectanceRGB(pc.ps, id)
}

func (pc *passCtx) emissionOf(id scene.SpectrumID) types.Vec3 {
	if rgb, ok := pc.emission[id]; ok {
		return rgb
	}
	return emissionRGB(pc.ps, id)
}

// Sample the packed 2D table distribution. Returns a point in the table's
// domain and the density with respect to the unit square.
func (pc *passCtx) sample2DTable(ts scene.TableSampler2D, u1, u2 float32) ([2]float32, float32) {
	w := int(ts.Width)
	h := int(ts.Height)
	base := int(ts.CDFPtr)
	oned := (w + 1) * h

	marginal := pc.ps.FloatData[base+oned : base+oned+h+1]
	total := marginal[h]
	if total <= 0 {
		return [2]float32{u1, u2}, 1
	}

	y, fy := searchCDF(marginal, u2*total)
	row := pc.ps.FloatData[base+y*(w+1) : base+y*(w+1)+w+1]
	rowTotal := row[w]
	if rowTotal <= 0 {
		return [2]float32{u1, u2}, 1
	}
	x, fx := searchCDF(row, u1*rowTotal)

	px := ts.MinX + (ts.MaxX-ts.MinX)*(float32(x)+fx)/float32(w)
	py := ts.MinY + (ts.MaxY-ts.MinY)*(float32(y)+fy)/float32(h)
	pdf := (row[x+1] - row[x]) / total * float32(w*h)
	return [2]float32{px, py}, pdf
}

// Locate target in an unnormalized prefix-sum table. Returns the cell and
// the fractional position inside it.
func searchCDF(cdf []float32, target float32) (int, float32) {
	lo, hi := 0, len(cdf)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if cdf[mid] <= target {
			lo = mid
		} else {
			hi = mid
		}
	}
	width := cdf[lo+1] - cdf[lo]
	if width <= 0 {
		return lo, 0
	}
	frac := (target - cdf[lo]) / width
	if frac >= 1 {
		frac = 1 - 1e-6
	}
	return lo, frac
}

// Evaluate a texture to linear RGB.
func (pc *passCtx) textureRGB(id scene.TextureID, uv types.Vec2) types.Vec3 {
	switch id.Kind() {
	case scene.TextureConstant:
		return pc.albedoOf(pc.ps.ConstantTex[id.Index()].Spectrum)

	case scene.TextureFloatImage:
		t := &pc.ps.FloatImageTex[id.Index()]
		g := pc.imageChannel(t.Image, mapUV(uv, t.Mapping), 0)
		return types.XYZ(g, g, g)

	case scene.TextureRGBImage:
		t := &pc.ps.RGBImageTex[id.Index()]
		m := mapUV(uv, t.Mapping)
		return pc.imageRGB(t.Image, m[0], m[1])

	case scene.TextureScale:
		t := &pc.ps.ScaleTex[id.Index()]
		return pc.textureRGB(t.Left, uv).MulVec(pc.textureRGB(t.Right, uv))

	case scene.TextureMix:
		t := &pc.ps.MixTex[id.Index()]
		amount := pc.textureLum(t.Amount, uv)
		a := pc.textureRGB(t.Tex1, uv)
		b := pc.textureRGB(t.Tex2, uv)
		return a.Mul(amount).Add(b.Mul(1 - amount))

	default:
		t := &pc.ps.CheckerboardTex[id.Index()]
		m := mapUV(uv, t.Mapping)
		if (int(math32.Floor(m[0]))+int(math32.Floor(m[1])))%2 == 0 {
			return pc.textureRGB(t.Even, uv)
		}
		return pc.textureRGB(t.Odd, uv)
	}
}

func (pc *passCtx) textureLum(id scene.TextureID, uv types.Vec2) float32 {
	return lum(pc.textureRGB(id, uv))
}

func mapUV(uv types.Vec2, m scene.UVMapping) types.Vec2 {
	return types.XY(uv[0]*m.Scale[0]+m.Delta[0], uv[1]*m.Scale[1]+m.Delta[1])
}

// Fetch an image texel with repeat wrapping.
func (pc *passCtx) imageTexel(image uint32, u, v float32) (int, *scene.Image) {
	img := &pc.ps.Images[image]
	u -= math32.Floor(u)
	v -= math32.Floor(v)
	x := int(u * float32(img.Width))
	if x >= int(img.Width) {
		x = int(img.Width) - 1
	}
	y := int(v * float32(img.Height))
	if y >= int(img.Height) {
		y = int(img.Height) - 1
	}
	return int(img.DataPtr) + (y*int(img.Width)+x)*int(img.Channels), img
}

func (pc *passCtx) imageRGB(image uint32, u, v float32) types.Vec3 {
	base, img := pc.imageTexel(image, u, v)
	data := pc.ps.FloatData
	if img.Channels == 1 {
		return types.XYZ(data[base], data[base], data[base])
	}
	return types.XYZ(data[base], data[base+1], data[base+2])
}

func (pc *passCtx) imageChannel(image uint32, uv types.Vec2, channel int) float32 {
	base, img := pc.imageTexel(image, uv[0], uv[1])
	if channel >= int(img.Channels) {
		channel = int(img.Channels) - 1
	}
	return pc.ps.FloatData[base+channel]
}
