package tiles

import (
	"slices"

	"github.com/zeusync/tilegrid/internal/core/observability/log"
	"github.com/zeusync/tilegrid/pkg/grid"
)

// dirtySet collects chunk coordinates whose emptiness check is deferred to
// the end of a batch.
type dirtySet map[grid.Point]struct{}

// Batch groups mutations so chunks transiently emptied mid-batch are not
// reclaimed and re-created along the way. Every mutation is applied eagerly
// and is visible to reads immediately; only empty-chunk reclamation waits
// until Close.
//
// A Batch is not safe for concurrent use.
type Batch struct {
	m      *TileMap
	dirty  dirtySet
	ops    int
	closed bool
}

// Batch opens a mutation batch on the map.
func (m *TileMap) Batch() *Batch {
	return &Batch{m: m, dirty: make(dirtySet)}
}

// Write behaves like TileMap.WriteTile inside the batch.
func (b *Batch) Write(at grid.Point, values ...Value) (bool, error) {
	em := b.m.newEmitter()
	replaced, err := b.m.writeAt(at, values, em)
	em.flush()
	b.ops++
	return replaced, err
}

// Clear behaves like TileMap.ClearTile inside the batch. A chunk emptied
// here stays materialized until Close, so a later write to it does not count
// as a new chunk.
func (b *Batch) Clear(at grid.Point) bool {
	was := b.m.clearAt(at, nil, b.dirty)
	b.ops++
	return was
}

// Move behaves like TileMap.MoveTile inside the batch.
func (b *Batch) Move(from, to grid.Point, opts ...MoveOption) (bool, error) {
	var mc moveConfig
	for _, opt := range opts {
		opt(&mc)
	}
	em := b.m.newEmitter()
	moved, err := b.m.moveAt(from, to, mc.overwrite, em, b.dirty)
	em.flush()
	b.ops++
	return moved, err
}

// Swap behaves like TileMap.SwapTiles inside the batch.
func (b *Batch) Swap(p, q grid.Point) error {
	em := b.m.newEmitter()
	err := b.m.swapAt(p, q, em, b.dirty)
	em.flush()
	b.ops++
	return err
}

// Close reconciles the batch: every chunk left empty by its mutations is
// reclaimed, in ascending chunk coordinate order. Chunks that were emptied
// and written again survive untouched. Close is idempotent.
func (b *Batch) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if len(b.dirty) == 0 {
		return nil
	}

	coords := make([]grid.Point, 0, len(b.dirty))
	for c := range b.dirty {
		coords = append(coords, c)
	}
	slices.SortFunc(coords, grid.Compare)

	em := b.m.newEmitter()
	removed := 0
	for _, coord := range coords {
		sh := b.m.shardFor(coord)
		sh.mu.Lock()
		ck, ok := sh.chunks[coord]
		if ok && ck.live == 0 {
			delete(sh.chunks, coord)
			em.chunkRemoved(b.m.label, ck)
			removed++
		}
		sh.mu.Unlock()
	}
	if removed > 0 {
		b.m.chunkCount.Add(int64(-removed))
		b.m.logger.Debug("batch reclaimed chunks",
			log.String("map", b.m.label),
			log.Int("chunks", removed),
			log.Int("ops", b.ops))
		b.m.maybeCascade(em)
	}
	em.flush()
	return nil
}
