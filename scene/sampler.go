package scene

import (
	"github.com/chewxy/math32"
)

// A light sampler drawing each of its lights with equal probability.
type UniformLightSampler struct {
	Ptr   uint32
	Count uint32
}

// A light sampler drawing lights proportionally to their estimated power
// in constant time via an alias table.
type PowerLightSampler struct {
	Ptr   uint32
	Count uint32
}

// One alias table slot. Sampling picks a slot uniformly and keeps its light
// with probability Q, otherwise redirects to the slot at Alias. PMF is the
// overall selection probability of Light, kept for pmf lookups.
type AliasBucket struct {
	Light LightID
	PMF   float32
	Q     float32
	Alias uint32
}

// Build a uniform sampler over the given lights. Panics when lights is
// empty.
func (sc *Scene) AddUniformLightSampler(lights []LightID) LightSamplerID {
	if len(lights) == 0 {
		panic("scene: cannot build a light sampler over no lights")
	}
	id := newLightSamplerID(SamplerUniform, len(sc.UniformSamplers))

	ptr := uint32(len(sc.UniformSamplerData))
	sc.UniformSamplerData = append(sc.UniformSamplerData, lights...)

	for i, light := range lights {
		sc.setLightSamplingSlot(light, uint32(i))
	}

	sc.UniformSamplers = append(sc.UniformSamplers, UniformLightSampler{
		Ptr:   ptr,
		Count: uint32(len(lights)),
	})
	return id
}

// Build a power-proportional sampler over the given lights using the Vose
// alias method. Infinite lights are each weighted with the combined power
// of every finite light in the list, and those weights inflate the
// normalization total, so one infinite light takes half the samples.
// Panics when lights is empty.
func (sc *Scene) AddPowerLightSampler(lights []LightID) LightSamplerID {
	if len(lights) == 0 {
		panic("scene: cannot build a light sampler over no lights")
	}

	powers := make([]float32, len(lights))
	var totalFinite float32
	for i, light := range lights {
		if light.IsInfinite() {
			continue
		}
		p := sc.LightPower(light)
		if math32.IsNaN(p) || math32.IsInf(p, 0) || p < 0 {
			sc.logger.Warningf("light %#08x reports power %f; treating as zero", uint32(light), p)
			p = 0
		}
		powers[i] = p
		totalFinite += p
	}

	total := totalFinite
	for i, light := range lights {
		if light.IsInfinite() {
			powers[i] = totalFinite
			total += totalFinite
		}
	}

	pmf := powers
	if total > 0 {
		for i := range pmf {
			pmf[i] /= total
		}
	} else {
		// Nothing emits. Selection still has to terminate, so fall back
		// to uniform probabilities.
		for i := range pmf {
			pmf[i] = 1 / float32(len(lights))
		}
	}

	type bucketRef struct {
		idx    int
		remain float32
	}
	under := make([]bucketRef, 0, len(lights))
	over := make([]bucketRef, 0, len(lights))
	table := make([]AliasBucket, 0, len(lights))

	for i, light := range lights {
		remain := pmf[i] * float32(len(lights))
		if remain < 1.0 {
			under = append(under, bucketRef{i, remain})
		} else {
			over = append(over, bucketRef{i, remain})
		}
		table = append(table, AliasBucket{
			Light: light,
			PMF:   pmf[i],
			Alias: ^uint32(0),
		})
		sc.setLightSamplingSlot(light, uint32(i))
	}

	for len(under) > 0 && len(over) > 0 {
		low := under[len(under)-1]
		under = under[:len(under)-1]
		high := over[len(over)-1]
		over = over[:len(over)-1]

		table[low.idx].Q = low.remain
		table[low.idx].Alias = uint32(high.idx)

		newRemain := high.remain + low.remain - 1.0
		if newRemain < 1.0 {
			under = append(under, bucketRef{high.idx, newRemain})
		} else {
			over = append(over, bucketRef{high.idx, newRemain})
		}
	}
	for _, ref := range under {
		table[ref.idx].Q = 1.0
	}
	for _, ref := range over {
		table[ref.idx].Q = 1.0
	}

	id := newLightSamplerID(SamplerPower, len(sc.PowerSamplers))
	sc.PowerSamplers = append(sc.PowerSamplers, PowerLightSampler{
		Ptr:   uint32(len(sc.PowerSamplerData)),
		Count: uint32(len(lights)),
	})
	sc.PowerSamplerData = append(sc.PowerSamplerData, table...)
	return id
}

// Record the slot a light occupies in the sampler built over it.
func (sc *Scene) setLightSamplingSlot(light LightID, slot uint32) {
	switch light.Kind() {
	case LightUniform:
		sc.UniformLights[light.Index()].Slot = slot
	case LightImage:
		sc.ImageLights[light.Index()].Slot = slot
	default:
		sc.AreaLights[light.Index()].Slot = slot
	}
}

func (sc *Scene) lightSamplingSlot(light LightID) uint32 {
	switch light.Kind() {
	case LightUniform:
		return sc.UniformLights[light.Index()].Slot
	case LightImage:
		return sc.ImageLights[light.Index()].Slot
	default:
		return sc.AreaLights[light.Index()].Slot
	}
}

// Draw a light from a sampler. u1 selects a slot, u2 resolves the alias.
// Returns the light and its selection probability.
func (sc *Scene) SampleLight(sampler LightSamplerID, u1, u2 float32) (LightID, float32) {
	switch sampler.Kind() {
	case SamplerUniform:
		us := sc.UniformSamplers[sampler.Index()]
		slot := uint32(u1 * float32(us.Count))
		if slot >= us.Count {
			slot = us.Count - 1
		}
		return sc.UniformSamplerData[us.Ptr+slot], 1 / float32(us.Count)

	default:
		ps := sc.PowerSamplers[sampler.Index()]
		slot := uint32(u1 * float32(ps.Count))
		if slot >= ps.Count {
			slot = ps.Count - 1
		}
		bucket := sc.PowerSamplerData[ps.Ptr+slot]
		if u2 < bucket.Q {
			return bucket.Light, bucket.PMF
		}
		aliased := sc.PowerSamplerData[ps.Ptr+bucket.Alias]
		return aliased.Light, aliased.PMF
	}
}

// Probability of a sampler selecting the given light, via the slot the
// sampler recorded on it.
func (sc *Scene) LightSelectionPMF(sampler LightSamplerID, light LightID) float32 {
	switch sampler.Kind() {
	case SamplerUniform:
		us := sc.UniformSamplers[sampler.Index()]
		return 1 / float32(us.Count)
	default:
		ps := sc.PowerSamplers[sampler.Index()]
		return sc.PowerSamplerData[ps.Ptr+sc.lightSamplingSlot(light)].PMF
	}
}
