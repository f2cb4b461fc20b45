package terrain

// Tile is the component a generator writes into tile maps.
type Tile struct {
	Height float64
	Biome  Biome
}

// Biome buckets a height into a terrain class.
type Biome uint8

const (
	BiomeOcean Biome = iota
	BiomeShore
	BiomePlains
	BiomeForest
	BiomeHills
	BiomeMountains
)

var biomeNames = map[Biome]string{
	BiomeOcean:     "ocean",
	BiomeShore:     "shore",
	BiomePlains:    "plains",
	BiomeForest:    "forest",
	BiomeHills:     "hills",
	BiomeMountains: "mountains",
}

func (b Biome) String() string {
	if name, ok := biomeNames[b]; ok {
		return name
	}
	return "unknown"
}

// Classify maps a height in [0, 1] to its biome.
func Classify(height float64) Biome {
	switch {
	case height < 0.30:
		return BiomeOcean
	case height < 0.38:
		return BiomeShore
	case height < 0.55:
		return BiomePlains
	case height < 0.68:
		return BiomeForest
	case height < 0.80:
		return BiomeHills
	default:
		return BiomeMountains
	}
}
