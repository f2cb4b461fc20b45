package tiles

import (
	"context"
	"slices"

	"github.com/zeusync/tilegrid/pkg/concurrent"
	"github.com/zeusync/tilegrid/pkg/generic"
	"github.com/zeusync/tilegrid/pkg/grid"
	"github.com/zeusync/tilegrid/pkg/sequence"
)

// indexPool recycles the scratch slices chunk snapshots are collected into.
var indexPool = generic.NewSlicePool[int](256)

// Contains reports whether a live tile exists at the given coordinate.
// Absent tiles, including coordinates outside the map's dimensions, simply
// report false.
func (m *TileMap) Contains(at grid.Point) bool {
	if !at.InDims(m.dims) {
		return false
	}
	coord, idx := grid.Split(at, m.edge, m.dims)
	sh := m.shardFor(coord)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	ck, ok := sh.chunks[coord]
	return ok && ck.has(idx)
}

// At reads the component of type T stored on the tile at the given
// coordinate. The second result is false when the tile is absent or does not
// carry a T component.
func At[T any](m *TileMap, at grid.Point) (T, bool) {
	var zero T
	if !at.InDims(m.dims) {
		return zero, false
	}
	coord, idx := grid.Split(at, m.edge, m.dims)
	kind := KindOf[T]()
	sh := m.shardFor(coord)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	ck, ok := sh.chunks[coord]
	if !ok || !ck.has(idx) {
		return zero, false
	}
	col, ok := ck.columns[kind]
	if !ok {
		return zero, false
	}
	c := col.(*column[T])
	if !c.present(idx) {
		return zero, false
	}
	return c.vals[idx], true
}

// Set writes a single component value, making the tile live if needed.
func Set[T any](m *TileMap, at grid.Point, v T) (bool, error) {
	return m.WriteTile(at, With(v))
}

// Unset removes the component of type T from the tile at the given
// coordinate without clearing the tile itself. It reports whether the tile
// carried that component.
func Unset[T any](m *TileMap, at grid.Point) bool {
	if !at.InDims(m.dims) {
		return false
	}
	coord, idx := grid.Split(at, m.edge, m.dims)
	kind := KindOf[T]()
	sh := m.shardFor(coord)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	ck, ok := sh.chunks[coord]
	if !ok || !ck.has(idx) {
		return false
	}
	col, ok := ck.columns[kind]
	if !ok {
		return false
	}
	c := col.(*column[T])
	if !c.present(idx) {
		return false
	}
	c.clearSlot(idx)
	ck.version++
	return true
}

// Len returns the number of live tiles in the map.
func (m *TileMap) Len() int { return int(m.liveCount.Load()) }

// ChunkCount returns the number of materialized chunks.
func (m *TileMap) ChunkCount() int { return int(m.chunkCount.Load()) }

// Points iterates every live tile coordinate in deterministic order: chunks
// ascend by coordinate with the highest lane most significant, and tiles
// ascend by slot index within each chunk. Chunks are snapshotted one at a
// time under a read lock, so iteration is safe alongside concurrent writers
// and the sequence is restartable.
func (m *TileMap) Points() *sequence.Iterator[grid.Point] {
	return sequence.FromSeq(func(yield func(grid.Point) bool) {
		for _, cc := range m.chunkCoords() {
			if !m.yieldChunkPoints(cc, nil, yield) {
				return
			}
		}
	})
}

// PointsIn iterates the live tile coordinates inside the region, in the same
// deterministic order as Points.
func (m *TileMap) PointsIn(region grid.Region) *sequence.Iterator[grid.Point] {
	return sequence.FromSeq(func(yield func(grid.Point) bool) {
		for cc := range region.ChunkRegion(m.edge).Points(m.dims) {
			if !m.yieldChunkPoints(cc, &region, yield) {
				return
			}
		}
	})
}

// yieldChunkPoints snapshots one chunk and yields its live coordinates,
// filtered by region when one is given. It reports whether iteration should
// continue.
func (m *TileMap) yieldChunkPoints(cc grid.Point, region *grid.Region, yield func(grid.Point) bool) bool {
	idxs := m.snapshotChunk(cc)
	if idxs == nil {
		return true
	}
	defer indexPool.Put(idxs)
	filter := region != nil && !m.chunkWithin(*region, cc)
	for _, idx := range idxs {
		p := grid.Compose(cc, idx, m.edge, m.dims)
		if filter && !region.Contains(p) {
			continue
		}
		if !yield(p) {
			return false
		}
	}
	return true
}

// snapshotChunk copies the live slot indices of one chunk under its shard
// read lock, or returns nil when the chunk is not materialized. The returned
// slice comes from indexPool.
func (m *TileMap) snapshotChunk(cc grid.Point) []int {
	sh := m.shardFor(cc)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	ck, ok := sh.chunks[cc]
	if !ok {
		return nil
	}
	return ck.liveIndices(indexPool.Get())
}

// Entry pairs a live tile's coordinate with one of its component values.
type Entry[T any] struct {
	Pos   grid.Point
	Value T
}

// ValuesIn iterates the tiles inside the region that carry a component of
// type T, in the same deterministic order as PointsIn. Values are copied out
// under the chunk's read lock as iteration reaches it.
func ValuesIn[T any](m *TileMap, region grid.Region) *sequence.Iterator[Entry[T]] {
	kind := KindOf[T]()
	return sequence.FromSeq(func(yield func(Entry[T]) bool) {
		for cc := range region.ChunkRegion(m.edge).Points(m.dims) {
			filter := !m.chunkWithin(region, cc)
			for _, e := range collectEntries[T](m, kind, cc) {
				if filter && !region.Contains(e.Pos) {
					continue
				}
				if !yield(e) {
					return
				}
			}
		}
	})
}

func collectEntries[T any](m *TileMap, kind Kind, cc grid.Point) []Entry[T] {
	sh := m.shardFor(cc)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	ck, ok := sh.chunks[cc]
	if !ok {
		return nil
	}
	col, ok := ck.columns[kind]
	if !ok {
		return nil
	}
	c := col.(*column[T])
	idxs := ck.liveIndices(indexPool.Get())
	defer indexPool.Put(idxs)
	entries := make([]Entry[T], 0, len(idxs))
	for _, idx := range idxs {
		if !c.present(idx) {
			continue
		}
		entries = append(entries, Entry[T]{
			Pos:   grid.Compose(cc, idx, m.edge, m.dims),
			Value: c.vals[idx],
		})
	}
	return entries
}

// ChunkInfo is a point-in-time snapshot of one materialized chunk.
type ChunkInfo struct {
	Coord   grid.Point
	ID      ChunkID
	Live    int
	Version uint64
}

// Chunks iterates a snapshot of every materialized chunk in ascending
// coordinate order. Live counts and versions are read when the iteration
// reaches each chunk.
func (m *TileMap) Chunks() *sequence.Iterator[ChunkInfo] {
	return sequence.FromSeq(func(yield func(ChunkInfo) bool) {
		for _, cc := range m.chunkCoords() {
			info, ok := m.chunkInfo(cc)
			if !ok {
				continue
			}
			if !yield(info) {
				return
			}
		}
	})
}

// ChunksIn iterates materialized chunks whose span intersects the region, in
// ascending coordinate order.
func (m *TileMap) ChunksIn(region grid.Region) *sequence.Iterator[ChunkInfo] {
	return sequence.FromSeq(func(yield func(ChunkInfo) bool) {
		for cc := range region.ChunkRegion(m.edge).Points(m.dims) {
			info, ok := m.chunkInfo(cc)
			if !ok {
				continue
			}
			if !yield(info) {
				return
			}
		}
	})
}

// chunkCoords snapshots every materialized chunk coordinate in ascending
// order.
func (m *TileMap) chunkCoords() []grid.Point {
	coords := make([]grid.Point, 0, m.chunkCount.Load())
	for _, sh := range m.shards {
		sh.mu.RLock()
		for c := range sh.chunks {
			coords = append(coords, c)
		}
		sh.mu.RUnlock()
	}
	slices.SortFunc(coords, grid.Compare)
	return coords
}

func (m *TileMap) chunkInfo(cc grid.Point) (ChunkInfo, bool) {
	sh := m.shardFor(cc)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	ck, ok := sh.chunks[cc]
	if !ok {
		return ChunkInfo{}, false
	}
	return ChunkInfo{Coord: cc, ID: ck.id, Live: ck.live, Version: ck.version}, true
}

// ForEachChunk calls fn for every materialized chunk snapshot in order,
// stopping at the first error or when ctx is done.
func (m *TileMap) ForEachChunk(ctx context.Context, fn func(ChunkInfo) error) error {
	for info := range m.Chunks().Seq() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(info); err != nil {
			return err
		}
	}
	return nil
}

// ForEachChunkParallel fans chunk snapshots out to at most workers
// goroutines. The first error cancels the remaining work.
func (m *TileMap) ForEachChunkParallel(ctx context.Context, workers int, fn func(context.Context, ChunkInfo) error) error {
	return concurrent.ConcurrentLimit(ctx, workers, m.Chunks(), fn)
}
