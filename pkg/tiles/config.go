package tiles

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/tilegrid/pkg/grid"
)

const (
	// DefaultChunkEdge is used when a map config leaves the edge unset.
	DefaultChunkEdge int32 = 16
	// DefaultDims is used when a map config leaves dimensionality unset.
	DefaultDims = 2

	// maxChunkCapacity bounds edge^dims so one chunk allocation stays sane.
	maxChunkCapacity = 1 << 22
)

// MapConfig describes one labeled map: its chunk edge length and how many
// coordinate lanes are meaningful.
type MapConfig struct {
	Label     string `json:"label" yaml:"label"`
	ChunkEdge int32  `json:"chunk_edge,omitempty" yaml:"chunk_edge,omitempty"`
	Dims      int    `json:"dims,omitempty" yaml:"dims,omitempty"`
}

// withDefaults fills unset fields. Zero values mean "use default"; invalid
// values are left for Validate to reject.
func (c MapConfig) withDefaults() MapConfig {
	if c.ChunkEdge == 0 {
		c.ChunkEdge = DefaultChunkEdge
	}
	if c.Dims == 0 {
		c.Dims = DefaultDims
	}
	return c
}

// Validate checks the configuration after defaults are applied. All failures
// match ErrInvalidConfiguration.
func (c MapConfig) Validate() error {
	if !grid.ValidEdge(c.ChunkEdge) {
		return wrapSentinel(ErrInvalidConfiguration,
			fmt.Sprintf("chunk edge %d must be a positive power of two", c.ChunkEdge))
	}
	if c.Dims < 1 || c.Dims > grid.MaxDims {
		return wrapSentinel(ErrInvalidConfiguration,
			fmt.Sprintf("dims %d must be between 1 and %d", c.Dims, grid.MaxDims))
	}
	if grid.Capacity(c.ChunkEdge, c.Dims) > maxChunkCapacity {
		return wrapSentinel(ErrInvalidConfiguration,
			fmt.Sprintf("chunk capacity %d^%d exceeds limit", c.ChunkEdge, c.Dims))
	}
	return nil
}

// WorldConfig describes a whole world: its maps and lifecycle policy.
type WorldConfig struct {
	LogLevel        string      `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	RemoveEmptyMaps bool        `json:"remove_empty_maps,omitempty" yaml:"remove_empty_maps,omitempty"`
	Maps            []MapConfig `json:"maps" yaml:"maps"`
}

// Validate checks every map config and rejects duplicate labels.
func (c *WorldConfig) Validate() error {
	seen := make(map[string]struct{}, len(c.Maps))
	for _, m := range c.Maps {
		if m.Label == "" {
			return wrapSentinel(ErrInvalidConfiguration, "map label is required")
		}
		if _, dup := seen[m.Label]; dup {
			return wrapSentinel(ErrInvalidConfiguration,
				fmt.Sprintf("duplicate map label %q", m.Label))
		}
		seen[m.Label] = struct{}{}
		if err := m.withDefaults().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// LoadWorldJSON loads a world config from a JSON reader.
func LoadWorldJSON(r io.Reader) (*WorldConfig, error) {
	var c WorldConfig
	dec := json.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadWorldYAML loads a world config from a YAML reader.
func LoadWorldYAML(r io.Reader) (*WorldConfig, error) {
	var c WorldConfig
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
