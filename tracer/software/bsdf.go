package software

import (
	"math/rand"

	"github.com/chewxy/math32"

	"github.com/MinusKelvin/pbr-gpu/scene"
	"github.com/MinusKelvin/pbr-gpu/types"
)

// Roughness below this samples as a perfect mirror.
const deltaRoughness = 1e-3

// A sampled scattering direction. For delta lobes f carries the full path
// weight and pdf is meaningless; for smooth lobes f and pdf are the actual
// BSDF value and solid-angle density so callers can mix densities.
type bsdfSample struct {
	wi    types.Vec3
	f     types.Vec3
	pdf   float32
	delta bool
}

// Material kinds the guiding model is worth mixing into. Delta lobes and
// narrow conductor lobes are sampled from the BSDF alone.
func guidable(kind scene.MaterialKind) bool {
	switch kind {
	case scene.MaterialDiffuse, scene.MaterialDiffuseTransmit, scene.MaterialMetallicWorkflow:
		return true
	default:
		return false
	}
}

// Material kinds with a non-delta lobe worth running next-event estimation
// for.
func smoothLobe(kind scene.MaterialKind) bool {
	switch kind {
	case scene.MaterialDielectric, scene.MaterialThinDielectric:
		return false
	default:
		return true
	}
}

func faceforward(n, wo types.Vec3) types.Vec3 {
	if n.Dot(wo) < 0 {
		return n.Mul(-1)
	}
	return n
}

func reflect(wo, n types.Vec3) types.Vec3 {
	return n.Mul(2 * wo.Dot(n)).Sub(wo)
}

// Refract wo about n with relative IOR eta (incident over transmitted).
// Returns false on total internal reflection.
func refract(wo, n types.Vec3, eta float32) (types.Vec3, bool) {
	cosI := wo.Dot(n)
	sin2T := eta * eta * (1 - cosI*cosI)
	if sin2T >= 1 {
		return types.Vec3{}, false
	}
	cosT := math32.Sqrt(1 - sin2T)
	return wo.Mul(-eta).Add(n.Mul(eta*cosI - cosT)), true
}

// An orthonormal basis around n, branchless construction after Duff et al.
func basis(n types.Vec3) (types.Vec3, types.Vec3) {
	sign := float32(1)
	if n[2] < 0 {
		sign = -1
	}
	a := -1 / (sign + n[2])
	b := n[0] * n[1] * a
	t := types.XYZ(1+sign*n[0]*n[0]*a, sign*b, -sign*n[0])
	bt := types.XYZ(b, sign+n[1]*n[1]*a, -n[1])
	return t, bt
}

// Cosine-weighted hemisphere direction around n.
func cosineSample(n types.Vec3, u1, u2 float32) (types.Vec3, float32) {
	r := math32.Sqrt(u1)
	phi := 2 * math32.Pi * u2
	x := r * math32.Cos(phi)
	y := r * math32.Sin(phi)
	z := math32.Sqrt(1 - u1)

	t, b := basis(n)
	wi := t.Mul(x).Add(b.Mul(y)).Add(n.Mul(z)).Normalize()
	return wi, z / math32.Pi
}

func uniformSphere(u1, u2 float32) types.Vec3 {
	z := 1 - 2*u1
	r := math32.Sqrt(math32.Max(0, 1-z*z))
	phi := 2 * math32.Pi * u2
	return types.XYZ(r*math32.Cos(phi), r*math32.Sin(phi), z)
}

// Exact Fresnel reflectance of a dielectric; eta is incident over
// transmitted. Returns 1 on total internal reflection.
func fresnelDielectric(cosI, eta float32) float32 {
	sin2T := eta * eta * (1 - cosI*cosI)
	if sin2T >= 1 {
		return 1
	}
	cosT := math32.Sqrt(1 - sin2T)
	rs := (eta*cosI - cosT) / (eta*cosI + cosT)
	rp := (cosI - eta*cosT) / (cosI + eta*cosT)
	return (rs*rs + rp*rp) * 0.5
}

// Per-channel Fresnel reflectance of a conductor with complex IOR eta + ik.
func fresnelConductor(cosI float32, eta, k types.Vec3) types.Vec3 {
	cos2 := cosI * cosI
	var f types.Vec3
	for c := 0; c < 3; c++ {
		t0 := eta[c]*eta[c] + k[c]*k[c]
		rs := (t0 - 2*eta[c]*cosI + cos2) / (t0 + 2*eta[c]*cosI + cos2)
		rp := (t0*cos2 - 2*eta[c]*cosI + 1) / (t0*cos2 + 2*eta[c]*cosI + 1)
		f[c] = (rs + rp) * 0.5
	}
	return f
}

func schlick(f0 types.Vec3, cosI float32) types.Vec3 {
	m := 1 - cosI
	if m < 0 {
		m = 0
	}
	m5 := m * m * m * m * m
	return f0.Add(types.XYZ(1-f0[0], 1-f0[1], 1-f0[2]).Mul(m5))
}

// GGX normal distribution.
func ggxD(cosH, alpha float32) float32 {
	if cosH <= 0 {
		return 0
	}
	a2 := alpha * alpha
	d := cosH*cosH*(a2-1) + 1
	return a2 / (math32.Pi * d * d)
}

// Smith masking-shadowing for GGX, separable form.
func ggxG(cosI, cosO, alpha float32) float32 {
	g1 := func(cos float32) float32 {
		if cos <= 0 {
			return 0
		}
		a2 := alpha * alpha
		return 2 * cos / (cos + math32.Sqrt(a2+(1-a2)*cos*cos))
	}
	return g1(cosI) * g1(cosO)
}

// Sample a GGX half vector around n.
func ggxSampleHalf(n types.Vec3, alpha, u1, u2 float32) types.Vec3 {
	cosT := math32.Sqrt((1 - u1) / (1 + (alpha*alpha-1)*u1))
	sinT := math32.Sqrt(math32.Max(0, 1-cosT*cosT))
	phi := 2 * math32.Pi * u2

	t, b := basis(n)
	return t.Mul(sinT * math32.Cos(phi)).
		Add(b.Mul(sinT * math32.Sin(phi))).
		Add(n.Mul(cosT)).Normalize()
}

// Microfacet reflection value and pdf for the half-vector sampling above.
func ggxEval(n, wo, wi types.Vec3, alpha float32, fresnel types.Vec3) (types.Vec3, float32) {
	cosO := wo.Dot(n)
	cosI := wi.Dot(n)
	if cosO <= 0 || cosI <= 0 {
		return types.Vec3{}, 0
	}
	h := wo.Add(wi).Normalize()
	cosH := h.Dot(n)
	d := ggxD(cosH, alpha)
	g := ggxG(cosI, cosO, alpha)

	f := fresnel.Mul(d * g / (4 * cosI * cosO))
	pdf := d * cosH / (4 * wo.Dot(h))
	return f, pdf
}

// Follow mix materials down to a concrete lobe, choosing branches by the
// blend texture.
func (pc *passCtx) resolveMaterial(mat scene.MaterialID, uv types.Vec2, rng *rand.Rand) scene.MaterialID {
	for i := 0; i < 8 && mat.Kind() == scene.MaterialMix; i++ {
		mix := &pc.ps.MixMats[mat.Index()]
		if rng.Float32() < pc.textureLum(mix.Amount, uv) {
			mat = mix.M1
		} else {
			mat = mix.M2
		}
	}
	return mat
}

// Combined roughness of a U/V roughness texture pair. The reference
// integrator is isotropic.
func (pc *passCtx) roughness(uTex, vTex scene.TextureID, uv types.Vec2) float32 {
	return 0.5 * (pc.textureLum(uTex, uv) + pc.textureLum(vTex, uv))
}

// Evaluate the BSDF and its sampling density for an arbitrary direction.
// Delta lobes evaluate to zero.
func (pc *passCtx) evalBSDF(mat scene.MaterialID, h *hit, wo, wi types.Vec3) (types.Vec3, float32) {
	switch mat.Kind() {
	case scene.MaterialDiffuse:
		m := &pc.ps.DiffuseMats[mat.Index()]
		nf := faceforward(h.normal, wo)
		cosI := wi.Dot(nf)
		if cosI <= 0 {
			return types.Vec3{}, 0
		}
		return pc.textureRGB(m.Texture, h.uv).Mul(1 / math32.Pi), cosI / math32.Pi

	case scene.MaterialDiffuseTransmit:
		m := &pc.ps.DiffuseTransmitMats[mat.Index()]
		sc := pc.textureRGB(m.Scale, h.uv)
		refl := pc.textureRGB(m.Reflectance, h.uv).MulVec(sc)
		trans := pc.textureRGB(m.Transmittance, h.uv).MulVec(sc)
		pr := transmitSplit(refl, trans)

		nf := faceforward(h.normal, wo)
		cosI := wi.Dot(nf)
		if cosI > 0 {
			return refl.Mul(1 / math32.Pi), pr * cosI / math32.Pi
		}
		return trans.Mul(1 / math32.Pi), (1 - pr) * -cosI / math32.Pi

	case scene.MaterialConductor:
		m := &pc.ps.ConductorMats[mat.Index()]
		alpha := pc.roughness(m.URoughness, m.VRoughness, h.uv)
		if alpha < deltaRoughness {
			return types.Vec3{}, 0
		}
		nf := faceforward(h.normal, wo)
		hv := wo.Add(wi)
		if hv.Dot(hv) < 1e-12 {
			return types.Vec3{}, 0
		}
		cosD := wo.Dot(hv.Normalize())
		fr := fresnelConductor(math32.Abs(cosD), pc.textureRGB(m.IorRe, h.uv), pc.textureRGB(m.IorIm, h.uv))
		return ggxEval(nf, wo, wi, alpha, fr)

	case scene.MaterialMetallicWorkflow:
		m := &pc.ps.MetallicMats[mat.Index()]
		base := pc.textureRGB(m.BaseColor, h.uv)
		metal := pc.textureLum(m.Metallic, h.uv)
		alpha := math32.Max(pc.roughness(m.URoughness, m.VRoughness, h.uv), 0.01)

		nf := faceforward(h.normal, wo)
		cosI := wi.Dot(nf)
		if cosI <= 0 {
			return types.Vec3{}, 0
		}

		f0 := types.XYZ(0.04, 0.04, 0.04).Mul(1 - metal).Add(base.Mul(metal))
		diffuse := base.Mul((1 - metal) / math32.Pi)

		hv := wo.Add(wi).Normalize()
		spec, specPDF := ggxEval(nf, wo, wi, alpha, schlick(f0, wo.Dot(hv)))

		ps := specSplit(f0, base, metal)
		return diffuse.Add(spec), ps*specPDF + (1-ps)*cosI/math32.Pi

	default:
		return types.Vec3{}, 0
	}
}

// Sample a scattering direction from the material alone.
func (pc *passCtx) sampleBSDF(mat scene.MaterialID, h *hit, wo types.Vec3, rng *rand.Rand) (bsdfSample, bool) {
	switch mat.Kind() {
	case scene.MaterialDiffuse:
		m := &pc.ps.DiffuseMats[mat.Index()]
		nf := faceforward(h.normal, wo)
		wi, pdf := cosineSample(nf, rng.Float32(), rng.Float32())
		return bsdfSample{
			wi:  wi,
			f:   pc.textureRGB(m.Texture, h.uv).Mul(1 / math32.Pi),
			pdf: pdf,
		}, pdf > 0

	case scene.MaterialDiffuseTransmit:
		m := &pc.ps.DiffuseTransmitMats[mat.Index()]
		sc := pc.textureRGB(m.Scale, h.uv)
		refl := pc.textureRGB(m.Reflectance, h.uv).MulVec(sc)
		trans := pc.textureRGB(m.Transmittance, h.uv).MulVec(sc)
		pr := transmitSplit(refl, trans)

		nf := faceforward(h.normal, wo)
		if rng.Float32() < pr {
			wi, pdf := cosineSample(nf, rng.Float32(), rng.Float32())
			return bsdfSample{wi: wi, f: refl.Mul(1 / math32.Pi), pdf: pr * pdf}, pdf > 0
		}
		wi, pdf := cosineSample(nf.Mul(-1), rng.Float32(), rng.Float32())
		return bsdfSample{wi: wi, f: trans.Mul(1 / math32.Pi), pdf: (1 - pr) * pdf}, pdf > 0

	case scene.MaterialConductor:
		m := &pc.ps.ConductorMats[mat.Index()]
		eta := pc.textureRGB(m.IorRe, h.uv)
		k := pc.textureRGB(m.IorIm, h.uv)
		alpha := pc.roughness(m.URoughness, m.VRoughness, h.uv)
		nf := faceforward(h.normal, wo)

		if alpha < deltaRoughness {
			wi := reflect(wo, nf)
			return bsdfSample{
				wi:    wi,
				f:     fresnelConductor(math32.Abs(wo.Dot(nf)), eta, k),
				delta: true,
			}, true
		}

		hv := ggxSampleHalf(nf, alpha, rng.Float32(), rng.Float32())
		wi := reflect(wo, hv)
		if wi.Dot(nf) <= 0 {
			return bsdfSample{}, false
		}
		fr := fresnelConductor(math32.Abs(wo.Dot(hv)), eta, k)
		f, pdf := ggxEval(nf, wo, wi, alpha, fr)
		return bsdfSample{wi: wi, f: f, pdf: pdf}, pdf > 0

	case scene.MaterialDielectric:
		m := &pc.ps.DielectricMats[mat.Index()]
		ior := pc.iorOf(m.Ior)
		return sampleDielectric(h.normal, wo, ior, rng)

	case scene.MaterialThinDielectric:
		m := &pc.ps.ThinDielectricMats[mat.Index()]
		ior := pc.iorOf(m.Ior)
		nf := faceforward(h.normal, wo)

		fr := fresnelDielectric(wo.Dot(nf), 1/ior)
		// Reflectance of the slab accounting for internal bounces.
		fr = 2 * fr / (1 + fr)
		if rng.Float32() < fr {
			return bsdfSample{wi: reflect(wo, nf), f: types.XYZ(1, 1, 1), delta: true}, true
		}
		return bsdfSample{wi: wo.Mul(-1), f: types.XYZ(1, 1, 1), delta: true}, true

	case scene.MaterialMetallicWorkflow:
		m := &pc.ps.MetallicMats[mat.Index()]
		base := pc.textureRGB(m.BaseColor, h.uv)
		metal := pc.textureLum(m.Metallic, h.uv)
		alpha := math32.Max(pc.roughness(m.URoughness, m.VRoughness, h.uv), 0.01)
		nf := faceforward(h.normal, wo)

		var wi types.Vec3
		if rng.Float32() < specSplit(types.XYZ(0.04, 0.04, 0.04).Mul(1-metal).Add(base.Mul(metal)), base, metal) {
			hv := ggxSampleHalf(nf, alpha, rng.Float32(), rng.Float32())
			wi = reflect(wo, hv)
		} else {
			wi, _ = cosineSample(nf, rng.Float32(), rng.Float32())
		}
		if wi.Dot(nf) <= 0 {
			return bsdfSample{}, false
		}
		f, pdf := pc.evalBSDF(mat, h, wo, wi)
		return bsdfSample{wi: wi, f: f, pdf: pdf}, pdf > 0

	default:
		return bsdfSample{}, false
	}
}

// Smooth dielectric interface. The true normal tells apart entering and
// exiting rays; refracted camera rays scale the gathered radiance by the
// squared relative IOR of the crossing.
func sampleDielectric(n, wo types.Vec3, ior float32, rng *rand.Rand) (bsdfSample, bool) {
	cosI := wo.Dot(n)
	eta := 1 / ior
	nf := n
	if cosI < 0 {
		// Exiting the medium.
		eta = ior
		nf = n.Mul(-1)
		cosI = -cosI
	}

	fr := fresnelDielectric(cosI, eta)
	if rng.Float32() < fr {
		return bsdfSample{wi: reflect(wo, nf), f: types.XYZ(1, 1, 1), delta: true}, true
	}

	wi, ok := refract(wo, nf, eta)
	if !ok {
		return bsdfSample{wi: reflect(wo, nf), f: types.XYZ(1, 1, 1), delta: true}, true
	}
	c := eta * eta
	return bsdfSample{wi: wi.Normalize(), f: types.XYZ(c, c, c), delta: true}, true
}

// Probability of taking the specular lobe of the metallic workflow.
func specSplit(f0, base types.Vec3, metal float32) float32 {
	s := lum(f0)
	d := (1 - metal) * lum(base)
	if s+d <= 0 {
		return 1
	}
	return s / (s + d)
}

// Probability of reflecting rather than transmitting at a diffuse
// transmitter.
func transmitSplit(refl, trans types.Vec3) float32 {
	r := lum(refl)
	t := lum(trans)
	if r+t <= 0 {
		return 1
	}
	return r / (r + t)
}

func (pc *passCtx) iorOf(id scene.SpectrumID) float32 {
	if ior, ok := pc.iors[id]; ok && ior > 0 {
		return ior
	}
	return 1.5
}
