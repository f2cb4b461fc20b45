// Package grid maps signed tile coordinates onto chunk coordinates and dense
// local indices. Chunk edges are powers of two, so the floored division and
// Euclidean remainder every mapping needs reduce to arithmetic shifts and
// masks, which stay exact for negative coordinates.
package grid

import (
	"math"
	"math/bits"
)

// ValidEdge reports whether edge is a usable chunk edge length: positive and
// a power of two.
func ValidEdge(edge int32) bool {
	return edge > 0 && edge&(edge-1) == 0
}

// Shift returns log2(edge). Callers must pass a valid edge.
func Shift(edge int32) uint {
	return uint(bits.TrailingZeros32(uint32(edge)))
}

// Capacity returns the number of tile slots in a chunk of the given edge and
// dimensionality, edge^dims.
func Capacity(edge int32, dims int) int {
	return 1 << (Shift(edge) * uint(dims))
}

// ChunkCoord returns the coordinate of the chunk containing p. The arithmetic
// shift implements floored division, so negative coordinates land in the
// correct chunk: with edge 16, both (-1) and (-16) map to chunk -1 while
// (-17) maps to chunk -2.
func ChunkCoord(p Point, edge int32) Point {
	shift := Shift(edge)
	var c Point
	for i := range p {
		c[i] = p[i] >> shift
	}
	return c
}

// LocalOffset returns p's offset within its chunk, the Euclidean remainder of
// every lane by edge. Offsets are always in [0, edge).
func LocalOffset(p Point, edge int32) Point {
	mask := edge - 1
	var o Point
	for i := range p {
		o[i] = p[i] & mask
	}
	return o
}

// FlatIndex folds a local offset into a dense slot index using mixed-radix
// composition: sum of offset[i] * edge^i over the first dims lanes. The first
// lane varies fastest.
func FlatIndex(local Point, edge int32, dims int) int {
	shift := Shift(edge)
	idx := 0
	for i := dims - 1; i >= 0; i-- {
		idx = idx<<shift | int(local[i])
	}
	return idx
}

// FromFlatIndex reconstructs the local offset a FlatIndex was folded from.
func FromFlatIndex(idx int, edge int32, dims int) Point {
	shift := Shift(edge)
	mask := int(edge) - 1
	var local Point
	for i := 0; i < dims; i++ {
		local[i] = int32(idx & mask)
		idx >>= shift
	}
	return local
}

// Split decomposes a tile coordinate into its chunk coordinate and the flat
// slot index inside that chunk.
func Split(p Point, edge int32, dims int) (Point, int) {
	return ChunkCoord(p, edge), FlatIndex(LocalOffset(p, edge), edge, dims)
}

// Compose is the inverse of Split: it rebuilds the tile coordinate addressed
// by a flat slot index within the chunk at c.
func Compose(c Point, idx int, edge int32, dims int) Point {
	shift := Shift(edge)
	local := FromFlatIndex(idx, edge, dims)
	var p Point
	for i := range p {
		p[i] = c[i]<<shift | local[i]
	}
	return p
}

// WorldToTile converts continuous world-space coordinates to the tile
// containing them, flooring each coordinate divided by scale.
func WorldToTile(scale float64, world ...float64) Point {
	var p Point
	for i, w := range world {
		if i == MaxDims {
			break
		}
		p[i] = int32(math.Floor(w / scale))
	}
	return p
}
