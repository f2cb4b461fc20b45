// Package terrain procedurally fills tile maps with fractal noise fields:
// a seeded Perlin generator produces a height per coordinate, heights
// classify into biomes, and Fill writes the resulting tiles chunk by chunk.
package terrain

import (
	"context"
	"sync/atomic"

	"github.com/aquilax/go-perlin"

	"github.com/zeusync/tilegrid/pkg/concurrent"
	"github.com/zeusync/tilegrid/pkg/grid"
	"github.com/zeusync/tilegrid/pkg/sequence"
	"github.com/zeusync/tilegrid/pkg/tiles"
)

// Config controls the shape of the generated field. The zero value of every
// field except Seed means "use the default".
type Config struct {
	Seed        int64   `json:"seed" yaml:"seed"`
	Scale       float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	Octaves     int     `json:"octaves,omitempty" yaml:"octaves,omitempty"`
	Persistence float64 `json:"persistence,omitempty" yaml:"persistence,omitempty"`
	Lacunarity  float64 `json:"lacunarity,omitempty" yaml:"lacunarity,omitempty"`
}

func (c Config) withDefaults() Config {
	if c.Scale == 0 {
		c.Scale = 0.05
	}
	if c.Octaves == 0 {
		c.Octaves = 4
	}
	if c.Persistence == 0 {
		c.Persistence = 0.5
	}
	if c.Lacunarity == 0 {
		c.Lacunarity = 2.0
	}
	return c
}

// Generator produces deterministic heights for tile coordinates. The same
// seed and config always yield the same field. A Generator is safe for
// concurrent use.
type Generator struct {
	cfg   Config
	noise *perlin.Perlin
}

// New creates a generator from cfg with defaults applied.
func New(cfg Config) *Generator {
	cfg = cfg.withDefaults()
	return &Generator{
		cfg:   cfg,
		noise: perlin.NewPerlin(2, 2, 3, cfg.Seed),
	}
}

// HeightAt returns the height at p in [0, 1], summing octaves of noise over
// the first dims coordinate lanes. Lanes beyond the third are ignored, noise
// fields are at most three dimensional.
func (g *Generator) HeightAt(p grid.Point, dims int) float64 {
	x := float64(p.X()) * g.cfg.Scale
	y := float64(p.Y()) * g.cfg.Scale
	z := float64(p.Z()) * g.cfg.Scale

	amplitude := 1.0
	frequency := 1.0
	total := 0.0
	span := 0.0
	for i := 0; i < g.cfg.Octaves; i++ {
		total += g.noiseAt(x*frequency, y*frequency, z*frequency, dims) * amplitude
		span += amplitude
		amplitude *= g.cfg.Persistence
		frequency *= g.cfg.Lacunarity
	}
	return (total/span + 1) / 2
}

func (g *Generator) noiseAt(x, y, z float64, dims int) float64 {
	switch dims {
	case 1:
		return g.noise.Noise1D(x)
	case 2:
		return g.noise.Noise2D(x, y)
	default:
		return g.noise.Noise3D(x, y, z)
	}
}

// TileAt returns the full tile for p: its height and the biome the height
// classifies into.
func (g *Generator) TileAt(p grid.Point, dims int) Tile {
	h := g.HeightAt(p, dims)
	return Tile{Height: h, Biome: Classify(h)}
}

// Fill writes a generated tile to every coordinate of the region in m.
// Chunks are filled in parallel with at most workers goroutines, one batch
// per chunk so no two goroutines mutate the same chunk. It returns the
// number of tiles written.
func (g *Generator) Fill(ctx context.Context, m *tiles.TileMap, region grid.Region, workers int) (int, error) {
	dims := m.Dims()
	chunks := sequence.FromSeq(region.ChunkRegion(m.Edge()).Points(dims))

	var written atomic.Int64
	err := concurrent.ConcurrentLimit(ctx, workers, chunks, func(ctx context.Context, cc grid.Point) error {
		span := grid.ChunkSpan(cc, m.Edge(), dims).Clamp(region)
		b := m.Batch()
		n := 0
		for p := range span.Points(dims) {
			if err := ctx.Err(); err != nil {
				_ = b.Close()
				return err
			}
			if _, err := b.Write(p, tiles.With(g.TileAt(p, dims))); err != nil {
				_ = b.Close()
				return err
			}
			n++
		}
		written.Add(int64(n))
		return b.Close()
	})
	return int(written.Load()), err
}
