package scene

// Material payloads, one array per variant. Every material carries an
// optional normal map image index, NoNormalMap when absent.

type DiffuseMaterial struct {
	NormalMap uint32
	Texture   TextureID
}

type DiffuseTransmitMaterial struct {
	NormalMap     uint32
	Reflectance   TextureID
	Transmittance TextureID
	Scale         TextureID
}

type ConductorMaterial struct {
	NormalMap  uint32
	IorRe      TextureID
	IorIm      TextureID
	URoughness TextureID
	VRoughness TextureID
}

type DielectricMaterial struct {
	NormalMap  uint32
	Ior        SpectrumID
	URoughness TextureID
	VRoughness TextureID
}

type ThinDielectricMaterial struct {
	NormalMap uint32
	Ior       SpectrumID
}

type MetallicWorkflowMaterial struct {
	NormalMap  uint32
	BaseColor  TextureID
	Metallic   TextureID
	URoughness TextureID
	VRoughness TextureID
}

type MixMaterial struct {
	M1     MaterialID
	M2     MaterialID
	Amount TextureID
}

func normalMapOr(normalMap *uint32) uint32 {
	if normalMap == nil {
		return NoNormalMap
	}
	return *normalMap
}

// Add a Lambertian material.
func (sc *Scene) AddDiffuseMaterial(texture TextureID, normalMap *uint32) MaterialID {
	id := newMaterialID(MaterialDiffuse, len(sc.DiffuseMats))
	sc.DiffuseMats = append(sc.DiffuseMats, DiffuseMaterial{
		NormalMap: normalMapOr(normalMap),
		Texture:   texture,
	})
	return id
}

// Add a material that both reflects and transmits diffusely.
func (sc *Scene) AddDiffuseTransmitMaterial(reflectance, transmittance, scale TextureID, normalMap *uint32) MaterialID {
	id := newMaterialID(MaterialDiffuseTransmit, len(sc.DiffuseTransmitMats))
	sc.DiffuseTransmitMats = append(sc.DiffuseTransmitMats, DiffuseTransmitMaterial{
		NormalMap:     normalMapOr(normalMap),
		Reflectance:   reflectance,
		Transmittance: transmittance,
		Scale:         scale,
	})
	return id
}

// Add a conductor with complex index of refraction textures.
func (sc *Scene) AddConductorMaterial(iorRe, iorIm, uRoughness, vRoughness TextureID, normalMap *uint32) MaterialID {
	id := newMaterialID(MaterialConductor, len(sc.ConductorMats))
	sc.ConductorMats = append(sc.ConductorMats, ConductorMaterial{
		NormalMap:  normalMapOr(normalMap),
		IorRe:      iorRe,
		IorIm:      iorIm,
		URoughness: uRoughness,
		VRoughness: vRoughness,
	})
	return id
}

// Add a smooth or rough dielectric.
func (sc *Scene) AddDielectricMaterial(ior SpectrumID, uRoughness, vRoughness TextureID, normalMap *uint32) MaterialID {
	id := newMaterialID(MaterialDielectric, len(sc.DielectricMats))
	sc.DielectricMats = append(sc.DielectricMats, DielectricMaterial{
		NormalMap:  normalMapOr(normalMap),
		Ior:        ior,
		URoughness: uRoughness,
		VRoughness: vRoughness,
	})
	return id
}

// Add a thin dielectric sheet.
func (sc *Scene) AddThinDielectricMaterial(ior SpectrumID, normalMap *uint32) MaterialID {
	id := newMaterialID(MaterialThinDielectric, len(sc.ThinDielectricMats))
	sc.ThinDielectricMats = append(sc.ThinDielectricMats, ThinDielectricMaterial{
		NormalMap: normalMapOr(normalMap),
		Ior:       ior,
	})
	return id
}

// Add a metallic-workflow PBR material.
func (sc *Scene) AddMetallicWorkflowMaterial(baseColor, metallic, uRoughness, vRoughness TextureID, normalMap *uint32) MaterialID {
	id := newMaterialID(MaterialMetallicWorkflow, len(sc.MetallicMats))
	sc.MetallicMats = append(sc.MetallicMats, MetallicWorkflowMaterial{
		NormalMap:  normalMapOr(normalMap),
		BaseColor:  baseColor,
		Metallic:   metallic,
		URoughness: uRoughness,
		VRoughness: vRoughness,
	})
	return id
}

// Add a blend of two materials weighted by a texture.
func (sc *Scene) AddMixMaterial(m1, m2 MaterialID, amount TextureID) MaterialID {
	id := newMaterialID(MaterialMix, len(sc.MixMats))
	sc.MixMats = append(sc.MixMats, MixMaterial{
		M1:     m1,
		M2:     m2,
		Amount: amount,
	})
	return id
}
