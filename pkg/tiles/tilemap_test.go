package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/tilegrid/pkg/grid"
)

type terrain struct {
	Height int
}

type occupant struct {
	Name string
}

func newTestMap(t *testing.T, cfg MapConfig) *TileMap {
	t.Helper()
	if cfg.Label == "" {
		cfg.Label = "test"
	}
	m, err := NewMap(cfg)
	require.NoError(t, err)
	return m
}

func TestNewMap(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		m, err := NewMap(MapConfig{Label: "m"})
		require.NoError(t, err)
		assert.Equal(t, DefaultChunkEdge, m.Edge())
		assert.Equal(t, DefaultDims, m.Dims())
		assert.Equal(t, 256, m.ChunkCapacity())
	})

	t.Run("rejects non power of two edge", func(t *testing.T) {
		_, err := NewMap(MapConfig{Label: "m", ChunkEdge: 12})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.Equal(t, ErrorCodeInvalidConfiguration, CodeOf(err))
	})

	t.Run("rejects negative edge", func(t *testing.T) {
		_, err := NewMap(MapConfig{Label: "m", ChunkEdge: -16})
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("rejects bad dims", func(t *testing.T) {
		_, err := NewMap(MapConfig{Label: "m", Dims: 5})
		assert.ErrorIs(t, err, ErrInvalidConfiguration)

		_, err = NewMap(MapConfig{Label: "m", Dims: -1})
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("rejects oversized chunks", func(t *testing.T) {
		_, err := NewMap(MapConfig{Label: "m", ChunkEdge: 1024, Dims: 4})
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("configuration errors are fatal", func(t *testing.T) {
		_, err := NewMap(MapConfig{Label: "m", ChunkEdge: 3})
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.True(t, e.IsFatal())
		assert.False(t, e.IsRetryable())
	})
}

func TestWriteTile(t *testing.T) {
	t.Run("write then read", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})

		replaced, err := m.WriteTile(grid.P(5, 5), With(terrain{Height: 7}))
		require.NoError(t, err)
		assert.False(t, replaced)

		v, ok := At[terrain](m, grid.P(5, 5))
		require.True(t, ok)
		assert.Equal(t, 7, v.Height)
		assert.True(t, m.Contains(grid.P(5, 5)))
		assert.Equal(t, 1, m.Len())
	})

	t.Run("rewrite updates in place", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		_, err := m.WriteTile(grid.P(1, 1), With(terrain{Height: 1}))
		require.NoError(t, err)

		replaced, err := m.WriteTile(grid.P(1, 1), With(terrain{Height: 2}))
		require.NoError(t, err)
		assert.True(t, replaced)

		v, _ := At[terrain](m, grid.P(1, 1))
		assert.Equal(t, 2, v.Height)
		assert.Equal(t, 1, m.Len(), "rewriting must not grow the live count")
	})

	t.Run("rewrite keeps other kinds", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		_, err := m.WriteTile(grid.P(0, 0), With(terrain{Height: 3}), With(occupant{Name: "elf"}))
		require.NoError(t, err)

		_, err = m.WriteTile(grid.P(0, 0), With(terrain{Height: 9}))
		require.NoError(t, err)

		v, ok := At[occupant](m, grid.P(0, 0))
		require.True(t, ok)
		assert.Equal(t, "elf", v.Name)
	})

	t.Run("presence without values", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		_, err := m.WriteTile(grid.P(2, 2))
		require.NoError(t, err)
		assert.True(t, m.Contains(grid.P(2, 2)))

		_, ok := At[terrain](m, grid.P(2, 2))
		assert.False(t, ok, "a bare tile carries no components")
	})

	t.Run("absent tile reads as zero", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		v, ok := At[terrain](m, grid.P(40, 40))
		assert.False(t, ok)
		assert.Zero(t, v.Height)
		assert.False(t, m.Contains(grid.P(40, 40)))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		m := newTestMap(t, MapConfig{Dims: 2})
		_, err := m.WriteTile(grid.P(1, 2, 3))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
		assert.Equal(t, ErrorCodeDimensionMismatch, CodeOf(err))
	})

	t.Run("one dimensional map", func(t *testing.T) {
		m := newTestMap(t, MapConfig{Dims: 1})
		_, err := m.WriteTile(grid.P(-42), With(terrain{Height: 5}))
		require.NoError(t, err)

		v, ok := At[terrain](m, grid.P(-42))
		require.True(t, ok)
		assert.Equal(t, 5, v.Height)
	})
}

func TestClearTile(t *testing.T) {
	t.Run("clear removes tile and values", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		_, err := m.WriteTile(grid.P(5, 5), With(terrain{Height: 7}))
		require.NoError(t, err)

		assert.True(t, m.ClearTile(grid.P(5, 5)))
		assert.False(t, m.Contains(grid.P(5, 5)))
		_, ok := At[terrain](m, grid.P(5, 5))
		assert.False(t, ok)
		assert.Equal(t, 0, m.Len())
	})

	t.Run("clearing an absent tile is a no-op", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		assert.False(t, m.ClearTile(grid.P(5, 5)))
		assert.False(t, m.ClearTile(grid.P(1, 2, 3, 4)))
	})

	t.Run("values do not leak into recreated tiles", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		p := grid.P(6, 6)
		_, err := m.WriteTile(p, With(terrain{Height: 7}))
		require.NoError(t, err)
		// keep the chunk alive so the column itself survives the clear
		_, err = m.WriteTile(grid.P(7, 7))
		require.NoError(t, err)

		require.True(t, m.ClearTile(p))
		_, err = m.WriteTile(p)
		require.NoError(t, err)

		_, ok := At[terrain](m, p)
		assert.False(t, ok, "cleared slots must not retain old components")
	})
}

func TestChunkLifecycle(t *testing.T) {
	t.Run("chunk appears on first write", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		assert.Equal(t, 0, m.ChunkCount())

		_, err := m.WriteTile(grid.P(5, 5))
		require.NoError(t, err)
		assert.Equal(t, 1, m.ChunkCount())

		infos := m.Chunks().Collect()
		require.Len(t, infos, 1)
		assert.Equal(t, grid.P(0, 0), infos[0].Coord)
		assert.Equal(t, 1, infos[0].Live)
	})

	t.Run("chunk survives until its last tile clears", func(t *testing.T) {
		m := newTestMap(t, MapConfig{ChunkEdge: 16, Dims: 2})
		var pts []grid.Point
		for y := int32(0); y < 16; y++ {
			for x := int32(0); x < 16; x++ {
				pts = append(pts, grid.P(x, y))
			}
		}
		for _, p := range pts {
			_, err := m.WriteTile(p)
			require.NoError(t, err)
		}
		require.Equal(t, 256, m.Len())
		require.Equal(t, 1, m.ChunkCount())

		for i, p := range pts {
			require.True(t, m.ClearTile(p))
			if i < len(pts)-1 {
				require.Equal(t, 1, m.ChunkCount(), "chunk must survive while tiles remain")
			}
		}
		assert.Equal(t, 0, m.Len())
		assert.Equal(t, 0, m.ChunkCount())
	})

	t.Run("recreated chunk gets a new id", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		_, err := m.WriteTile(grid.P(0, 0))
		require.NoError(t, err)
		first := m.Chunks().Collect()[0].ID

		require.True(t, m.ClearTile(grid.P(0, 0)))
		_, err = m.WriteTile(grid.P(0, 0))
		require.NoError(t, err)
		second := m.Chunks().Collect()[0].ID

		assert.NotEqual(t, first, second)
	})

	t.Run("negative coordinates get their own chunks", func(t *testing.T) {
		m := newTestMap(t, MapConfig{ChunkEdge: 16, Dims: 2})
		_, err := m.WriteTile(grid.P(-1, -1))
		require.NoError(t, err)
		_, err = m.WriteTile(grid.P(-16, -16))
		require.NoError(t, err)
		_, err = m.WriteTile(grid.P(-17, -17))
		require.NoError(t, err)

		infos := m.Chunks().Collect()
		require.Len(t, infos, 2)
		assert.Equal(t, grid.P(-2, -2), infos[0].Coord)
		assert.Equal(t, grid.P(-1, -1), infos[1].Coord)
		assert.Equal(t, 2, infos[1].Live)
	})

	t.Run("version advances on mutation", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		_, err := m.WriteTile(grid.P(1, 1))
		require.NoError(t, err)
		before := m.Chunks().Collect()[0].Version

		_, err = m.WriteTile(grid.P(2, 2), With(terrain{Height: 1}))
		require.NoError(t, err)
		after := m.Chunks().Collect()[0].Version

		assert.Greater(t, after, before)
	})
}

func TestMoveTile(t *testing.T) {
	t.Run("carries all values", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		_, err := m.WriteTile(grid.P(1, 1), With(terrain{Height: 4}), With(occupant{Name: "orc"}))
		require.NoError(t, err)

		moved, err := m.MoveTile(grid.P(1, 1), grid.P(2, 2))
		require.NoError(t, err)
		assert.True(t, moved)

		assert.False(t, m.Contains(grid.P(1, 1)))
		v, ok := At[terrain](m, grid.P(2, 2))
		require.True(t, ok)
		assert.Equal(t, 4, v.Height)
		o, ok := At[occupant](m, grid.P(2, 2))
		require.True(t, ok)
		assert.Equal(t, "orc", o.Name)
		assert.Equal(t, 1, m.Len())
	})

	t.Run("absent source is a no-op", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		moved, err := m.MoveTile(grid.P(1, 1), grid.P(2, 2))
		require.NoError(t, err)
		assert.False(t, moved)
		assert.Equal(t, 0, m.ChunkCount())
	})

	t.Run("occupied destination fails and changes nothing", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		_, err := m.WriteTile(grid.P(1, 1), With(terrain{Height: 1}))
		require.NoError(t, err)
		_, err = m.WriteTile(grid.P(2, 2), With(terrain{Height: 2}))
		require.NoError(t, err)

		moved, err := m.MoveTile(grid.P(1, 1), grid.P(2, 2))
		assert.False(t, moved)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOccupiedDestination)

		var e *Error
		require.ErrorAs(t, err, &e)
		assert.True(t, e.IsRetryable())
		assert.False(t, e.IsFatal())

		v, _ := At[terrain](m, grid.P(1, 1))
		assert.Equal(t, 1, v.Height)
		v, _ = At[terrain](m, grid.P(2, 2))
		assert.Equal(t, 2, v.Height)
		assert.Equal(t, 2, m.Len())
	})

	t.Run("overwrite destroys the destination", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		_, err := m.WriteTile(grid.P(1, 1), With(terrain{Height: 1}))
		require.NoError(t, err)
		_, err = m.WriteTile(grid.P(2, 2), With(terrain{Height: 2}), With(occupant{Name: "troll"}))
		require.NoError(t, err)

		moved, err := m.MoveTile(grid.P(1, 1), grid.P(2, 2), WithOverwrite())
		require.NoError(t, err)
		assert.True(t, moved)

		v, ok := At[terrain](m, grid.P(2, 2))
		require.True(t, ok)
		assert.Equal(t, 1, v.Height)
		_, ok = At[occupant](m, grid.P(2, 2))
		assert.False(t, ok, "the overwritten tile's components must not survive")
		assert.Equal(t, 1, m.Len())
	})

	t.Run("move onto itself", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		_, err := m.WriteTile(grid.P(3, 3))
		require.NoError(t, err)

		moved, err := m.MoveTile(grid.P(3, 3), grid.P(3, 3))
		require.NoError(t, err)
		assert.True(t, moved)

		moved, err = m.MoveTile(grid.P(4, 4), grid.P(4, 4))
		require.NoError(t, err)
		assert.False(t, moved)
	})

	t.Run("cross chunk move migrates storage", func(t *testing.T) {
		m := newTestMap(t, MapConfig{ChunkEdge: 16, Dims: 2})
		_, err := m.WriteTile(grid.P(0, 0), With(terrain{Height: 5}))
		require.NoError(t, err)

		moved, err := m.MoveTile(grid.P(0, 0), grid.P(100, 100))
		require.NoError(t, err)
		assert.True(t, moved)

		infos := m.Chunks().Collect()
		require.Len(t, infos, 1, "the emptied source chunk must be reclaimed")
		assert.Equal(t, grid.P(6, 6), infos[0].Coord)
		v, ok := At[terrain](m, grid.P(100, 100))
		require.True(t, ok)
		assert.Equal(t, 5, v.Height)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		m := newTestMap(t, MapConfig{Dims: 2})
		_, err := m.MoveTile(grid.P(0, 0, 1), grid.P(1, 1))
		assert.ErrorIs(t, err, ErrDimensionMismatch)
		_, err = m.MoveTile(grid.P(0, 0), grid.P(1, 1, 1))
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestSwapTiles(t *testing.T) {
	t.Run("swaps values including uneven kinds", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		_, err := m.WriteTile(grid.P(1, 1), With(terrain{Height: 1}))
		require.NoError(t, err)
		_, err = m.WriteTile(grid.P(2, 2), With(terrain{Height: 2}), With(occupant{Name: "gnome"}))
		require.NoError(t, err)

		require.NoError(t, m.SwapTiles(grid.P(1, 1), grid.P(2, 2)))

		v, _ := At[terrain](m, grid.P(1, 1))
		assert.Equal(t, 2, v.Height)
		o, ok := At[occupant](m, grid.P(1, 1))
		require.True(t, ok)
		assert.Equal(t, "gnome", o.Name)

		v, _ = At[terrain](m, grid.P(2, 2))
		assert.Equal(t, 1, v.Height)
		_, ok = At[occupant](m, grid.P(2, 2))
		assert.False(t, ok)
	})

	t.Run("one live side degrades to a move", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		_, err := m.WriteTile(grid.P(1, 1), With(terrain{Height: 9}))
		require.NoError(t, err)

		require.NoError(t, m.SwapTiles(grid.P(1, 1), grid.P(8, 8)))
		assert.False(t, m.Contains(grid.P(1, 1)))
		v, ok := At[terrain](m, grid.P(8, 8))
		require.True(t, ok)
		assert.Equal(t, 9, v.Height)

		// and symmetrically with the live side second
		require.NoError(t, m.SwapTiles(grid.P(1, 1), grid.P(8, 8)))
		assert.True(t, m.Contains(grid.P(1, 1)))
		assert.False(t, m.Contains(grid.P(8, 8)))
	})

	t.Run("both absent is a no-op", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		require.NoError(t, m.SwapTiles(grid.P(1, 1), grid.P(2, 2)))
		assert.Equal(t, 0, m.ChunkCount())
	})

	t.Run("cross chunk swap leaves both chunks live", func(t *testing.T) {
		m := newTestMap(t, MapConfig{ChunkEdge: 16, Dims: 2})
		_, err := m.WriteTile(grid.P(0, 0), With(terrain{Height: 1}))
		require.NoError(t, err)
		_, err = m.WriteTile(grid.P(64, 64), With(terrain{Height: 2}))
		require.NoError(t, err)

		require.NoError(t, m.SwapTiles(grid.P(0, 0), grid.P(64, 64)))
		assert.Equal(t, 2, m.ChunkCount())
		v, _ := At[terrain](m, grid.P(0, 0))
		assert.Equal(t, 2, v.Height)
		v, _ = At[terrain](m, grid.P(64, 64))
		assert.Equal(t, 1, v.Height)
	})

	t.Run("swap with itself", func(t *testing.T) {
		m := newTestMap(t, MapConfig{})
		_, err := m.WriteTile(grid.P(1, 1), With(terrain{Height: 1}))
		require.NoError(t, err)
		require.NoError(t, m.SwapTiles(grid.P(1, 1), grid.P(1, 1)))
		v, _ := At[terrain](m, grid.P(1, 1))
		assert.Equal(t, 1, v.Height)
	})
}

func TestClearChunk(t *testing.T) {
	m := newTestMap(t, MapConfig{ChunkEdge: 16, Dims: 2})
	for x := int32(0); x < 4; x++ {
		_, err := m.WriteTile(grid.P(x, 0))
		require.NoError(t, err)
	}
	_, err := m.WriteTile(grid.P(20, 0))
	require.NoError(t, err)

	assert.Equal(t, 4, m.ClearChunk(grid.P(0, 0)))
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1, m.ChunkCount())
	assert.Equal(t, 0, m.ClearChunk(grid.P(0, 0)), "clearing an absent chunk is a no-op")
	assert.True(t, m.Contains(grid.P(20, 0)))
}

func TestClearRegion(t *testing.T) {
	t.Run("fully covered chunks are dropped wholesale", func(t *testing.T) {
		m := newTestMap(t, MapConfig{ChunkEdge: 4, Dims: 2})
		for y := int32(0); y < 8; y++ {
			for x := int32(0); x < 8; x++ {
				_, err := m.WriteTile(grid.P(x, y))
				require.NoError(t, err)
			}
		}
		require.Equal(t, 64, m.Len())
		require.Equal(t, 4, m.ChunkCount())

		n := m.ClearRegion(grid.NewRegion(grid.P(0, 0), grid.P(7, 7)))
		assert.Equal(t, 64, n)
		assert.Equal(t, 0, m.Len())
		assert.Equal(t, 0, m.ChunkCount())
	})

	t.Run("partially covered chunks are trimmed", func(t *testing.T) {
		m := newTestMap(t, MapConfig{ChunkEdge: 4, Dims: 2})
		for y := int32(0); y < 4; y++ {
			for x := int32(0); x < 4; x++ {
				_, err := m.WriteTile(grid.P(x, y))
				require.NoError(t, err)
			}
		}

		n := m.ClearRegion(grid.NewRegion(grid.P(0, 0), grid.P(1, 3)))
		assert.Equal(t, 8, n)
		assert.Equal(t, 8, m.Len())
		assert.Equal(t, 1, m.ChunkCount())
		assert.False(t, m.Contains(grid.P(1, 2)))
		assert.True(t, m.Contains(grid.P(2, 2)))
	})

	t.Run("region touching nothing", func(t *testing.T) {
		m := newTestMap(t, MapConfig{ChunkEdge: 4, Dims: 2})
		assert.Equal(t, 0, m.ClearRegion(grid.NewRegion(grid.P(-8, -8), grid.P(8, 8))))
	})
}
