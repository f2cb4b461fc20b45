// Package tiles implements sparse, chunked tile storage over signed
// n-dimensional coordinates. A World owns labeled maps; each map stores its
// tiles in dense power-of-two chunks that materialize on first write and are
// reclaimed as soon as their last tile is cleared. Component values attach to
// tiles through typed columns, so several data kinds can live side by side in
// one map.
package tiles

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/tilegrid/internal/core/events/bus"
	"github.com/zeusync/tilegrid/internal/core/observability/log"
	"github.com/zeusync/tilegrid/pkg/grid"
)

const shardCount = 16

// mapShard guards one slice of the chunk index. Chunk coordinates are hashed
// across shards so writers touching distant chunks rarely contend.
type mapShard struct {
	mu     sync.RWMutex
	chunks map[grid.Point]*chunk
}

// TileMap is one labeled tile namespace. Tiles are addressed by signed
// coordinates with the map's dimensionality; storage exists only for chunks
// that hold at least one live tile.
//
// A TileMap is safe for concurrent use: mutations and reads may run in
// parallel. Mutations of the same tile must still be externally ordered if
// the caller cares which one wins.
type TileMap struct {
	cfg      MapConfig
	label    string
	edge     int32
	dims     int
	capacity int

	shards []*mapShard

	liveCount  atomic.Int64
	chunkCount atomic.Int64

	world  *World
	bus    bus.EventBus
	source string
	logger log.Log
}

// NewMap builds a standalone map from cfg, applying defaults before
// validation. Maps that should share a world's event bus and lifecycle policy
// are created through World.CreateMap instead.
func NewMap(cfg MapConfig) (*TileMap, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newTileMap(cfg, nil, nil, log.Nop(), cfg.Label), nil
}

func newTileMap(cfg MapConfig, w *World, b bus.EventBus, l log.Log, source string) *TileMap {
	m := &TileMap{
		cfg:      cfg,
		label:    cfg.Label,
		edge:     cfg.ChunkEdge,
		dims:     cfg.Dims,
		capacity: grid.Capacity(cfg.ChunkEdge, cfg.Dims),
		shards:   make([]*mapShard, shardCount),
		world:    w,
		bus:      b,
		source:   source,
		logger:   l,
	}
	for i := range m.shards {
		m.shards[i] = &mapShard{chunks: make(map[grid.Point]*chunk)}
	}
	return m
}

// Label returns the map's label.
func (m *TileMap) Label() string { return m.label }

// Edge returns the chunk edge length.
func (m *TileMap) Edge() int32 { return m.edge }

// Dims returns how many coordinate lanes the map uses.
func (m *TileMap) Dims() int { return m.dims }

// ChunkCapacity returns the number of tile slots per chunk, edge^dims.
func (m *TileMap) ChunkCapacity() int { return m.capacity }

// Config returns the configuration the map was built from, with defaults
// applied.
func (m *TileMap) Config() MapConfig { return m.cfg }

func (m *TileMap) shardIndex(coord grid.Point) int {
	var b [16]byte
	for i, v := range coord {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(v))
	}
	return int(xxhash.Sum64(b[:]) % shardCount)
}

func (m *TileMap) shardFor(coord grid.Point) *mapShard {
	return m.shards[m.shardIndex(coord)]
}

// lockSpan locks one or two shards by index in ascending order so concurrent
// cross-chunk operations cannot deadlock.
func (m *TileMap) lockSpan(a, b int) {
	if a == b {
		m.shards[a].mu.Lock()
		return
	}
	if a > b {
		a, b = b, a
	}
	m.shards[a].mu.Lock()
	m.shards[b].mu.Lock()
}

func (m *TileMap) unlockSpan(a, b int) {
	if a == b {
		m.shards[a].mu.Unlock()
		return
	}
	if a > b {
		a, b = b, a
	}
	m.shards[b].mu.Unlock()
	m.shards[a].mu.Unlock()
}

func (m *TileMap) newEmitter() *emitter {
	if m.bus == nil {
		return nil
	}
	return &emitter{bus: m.bus, source: m.source}
}

// maybeCascade tells the owning world that this map may have lost its last
// chunk. Must be called with no shard lock held.
func (m *TileMap) maybeCascade(em *emitter) {
	if m.world == nil || m.chunkCount.Load() != 0 {
		return
	}
	m.world.mapEmptied(m.label, em)
}

func (m *TileMap) dimsErr(p grid.Point) error {
	return wrapSentinel(ErrDimensionMismatch,
		fmt.Sprintf("point %v does not fit a %dd map", p, m.dims))
}

// WriteTile makes the tile at the given coordinate live and stores the given
// component values on it. It reports whether a live tile was replaced. The
// chunk containing the tile is materialized if needed.
func (m *TileMap) WriteTile(at grid.Point, values ...Value) (bool, error) {
	em := m.newEmitter()
	replaced, err := m.writeAt(at, values, em)
	em.flush()
	return replaced, err
}

func (m *TileMap) writeAt(at grid.Point, values []Value, em *emitter) (bool, error) {
	if !at.InDims(m.dims) {
		return false, m.dimsErr(at)
	}
	coord, idx := grid.Split(at, m.edge, m.dims)
	sh := m.shardFor(coord)

	sh.mu.Lock()
	ck, existed := sh.chunks[coord]
	if !existed {
		ck = newChunk(coord, m.capacity)
		sh.chunks[coord] = ck
	}
	replaced := ck.spawn(idx)
	ck.write(idx, m.capacity, values)
	if !existed {
		em.chunkCreated(m.label, ck)
	}
	sh.mu.Unlock()

	if !replaced {
		m.liveCount.Add(1)
	}
	if !existed {
		m.chunkCount.Add(1)
		m.logger.Debug("chunk created",
			log.String("map", m.label),
			log.Stringer("chunk", coord),
			log.Uint64("chunk_id", uint64(ck.id)))
	}
	return replaced, nil
}

// ClearTile removes the tile at the given coordinate and reports whether it
// was live. Clearing an absent tile is a no-op. When the tile was the last
// one in its chunk, the chunk is reclaimed immediately.
func (m *TileMap) ClearTile(at grid.Point) bool {
	em := m.newEmitter()
	was := m.clearAt(at, em, nil)
	em.flush()
	return was
}

func (m *TileMap) clearAt(at grid.Point, em *emitter, deferred dirtySet) bool {
	if !at.InDims(m.dims) {
		return false
	}
	coord, idx := grid.Split(at, m.edge, m.dims)
	sh := m.shardFor(coord)

	sh.mu.Lock()
	ck, ok := sh.chunks[coord]
	if !ok {
		sh.mu.Unlock()
		return false
	}
	was := ck.despawn(idx)
	removed := false
	if was && ck.live == 0 {
		if deferred != nil {
			deferred[coord] = struct{}{}
		} else {
			delete(sh.chunks, coord)
			em.chunkRemoved(m.label, ck)
			removed = true
		}
	}
	sh.mu.Unlock()

	if was {
		m.liveCount.Add(-1)
	}
	if removed {
		m.chunkCount.Add(-1)
		m.logger.Debug("chunk removed",
			log.String("map", m.label),
			log.Stringer("chunk", coord))
		m.maybeCascade(em)
	}
	return was
}

// MoveTile relocates the tile at from to to, carrying all component values
// with it. It reports whether a tile actually moved; moving an absent tile is
// a no-op. When the destination is live the move fails with
// ErrOccupiedDestination unless WithOverwrite is given, in which case the
// destination tile is destroyed first.
func (m *TileMap) MoveTile(from, to grid.Point, opts ...MoveOption) (bool, error) {
	var mc moveConfig
	for _, opt := range opts {
		opt(&mc)
	}
	em := m.newEmitter()
	moved, err := m.moveAt(from, to, mc.overwrite, em, nil)
	em.flush()
	return moved, err
}

// MoveOption adjusts how MoveTile treats the destination.
type MoveOption func(*moveConfig)

type moveConfig struct {
	overwrite bool
}

// WithOverwrite makes a move destroy a live destination tile instead of
// failing with ErrOccupiedDestination.
func WithOverwrite() MoveOption {
	return func(c *moveConfig) { c.overwrite = true }
}

func (m *TileMap) moveAt(from, to grid.Point, overwrite bool, em *emitter, deferred dirtySet) (bool, error) {
	if !from.InDims(m.dims) {
		return false, m.dimsErr(from)
	}
	if !to.InDims(m.dims) {
		return false, m.dimsErr(to)
	}
	if from == to {
		return m.Contains(from), nil
	}

	fc, fi := grid.Split(from, m.edge, m.dims)
	tc, ti := grid.Split(to, m.edge, m.dims)
	si, di := m.shardIndex(fc), m.shardIndex(tc)

	m.lockSpan(si, di)
	srcCk, ok := m.shards[si].chunks[fc]
	if !ok || !srcCk.has(fi) {
		m.unlockSpan(si, di)
		return false, nil
	}
	dstCk, dok := m.shards[di].chunks[tc]
	created := false
	if !dok {
		dstCk = newChunk(tc, m.capacity)
		m.shards[di].chunks[tc] = dstCk
		created = true
	}
	overwritten := false
	if dstCk.has(ti) {
		if !overwrite {
			m.unlockSpan(si, di)
			return false, wrapSentinel(ErrOccupiedDestination,
				fmt.Sprintf("cannot move %v to %v", from, to))
		}
		dstCk.despawn(ti)
		overwritten = true
	}
	srcCk.transferSlot(fi, dstCk, ti, m.capacity)
	removedSrc := false
	if srcCk.live == 0 {
		if deferred != nil {
			deferred[fc] = struct{}{}
		} else {
			delete(m.shards[si].chunks, fc)
			em.chunkRemoved(m.label, srcCk)
			removedSrc = true
		}
	}
	if created {
		em.chunkCreated(m.label, dstCk)
	}
	m.unlockSpan(si, di)

	if overwritten {
		m.liveCount.Add(-1)
	}
	if created {
		m.chunkCount.Add(1)
	}
	if removedSrc {
		m.chunkCount.Add(-1)
		m.maybeCascade(em)
	}
	return true, nil
}

// SwapTiles exchanges the tiles at a and b, component values included. When
// only one side is live the swap degrades to a move into the empty slot;
// when neither is live it is a no-op.
func (m *TileMap) SwapTiles(a, b grid.Point) error {
	em := m.newEmitter()
	err := m.swapAt(a, b, em, nil)
	em.flush()
	return err
}

func (m *TileMap) swapAt(a, b grid.Point, em *emitter, deferred dirtySet) error {
	if !a.InDims(m.dims) {
		return m.dimsErr(a)
	}
	if !b.InDims(m.dims) {
		return m.dimsErr(b)
	}
	if a == b {
		return nil
	}

	ac, ai := grid.Split(a, m.edge, m.dims)
	bc, bi := grid.Split(b, m.edge, m.dims)
	sa, sb := m.shardIndex(ac), m.shardIndex(bc)

	m.lockSpan(sa, sb)
	aCk, aok := m.shards[sa].chunks[ac]
	bCk, bok := m.shards[sb].chunks[bc]
	aLive := aok && aCk.has(ai)
	bLive := bok && bCk.has(bi)

	if aLive && bLive {
		aCk.swapSlots(ai, bCk, bi, m.capacity)
		m.unlockSpan(sa, sb)
		return nil
	}
	if !aLive && !bLive {
		m.unlockSpan(sa, sb)
		return nil
	}

	srcCk, srcIdx, srcShard := aCk, ai, sa
	dstCk, dstIdx, dstShard, dstCoord, dstOK := bCk, bi, sb, bc, bok
	srcCoord := ac
	if bLive {
		srcCk, srcIdx, srcShard, srcCoord = bCk, bi, sb, bc
		dstCk, dstIdx, dstShard, dstCoord, dstOK = aCk, ai, sa, ac, aok
	}
	created := false
	if !dstOK {
		dstCk = newChunk(dstCoord, m.capacity)
		m.shards[dstShard].chunks[dstCoord] = dstCk
		created = true
	}
	srcCk.transferSlot(srcIdx, dstCk, dstIdx, m.capacity)
	removedSrc := false
	if srcCk.live == 0 {
		if deferred != nil {
			deferred[srcCoord] = struct{}{}
		} else {
			delete(m.shards[srcShard].chunks, srcCoord)
			em.chunkRemoved(m.label, srcCk)
			removedSrc = true
		}
	}
	if created {
		em.chunkCreated(m.label, dstCk)
	}
	m.unlockSpan(sa, sb)

	if created {
		m.chunkCount.Add(1)
	}
	if removedSrc {
		m.chunkCount.Add(-1)
		m.maybeCascade(em)
	}
	return nil
}

// ClearChunk drops the chunk at the given chunk coordinate with all its
// tiles and returns how many live tiles it held. Clearing an absent chunk
// returns zero.
func (m *TileMap) ClearChunk(coord grid.Point) int {
	if !coord.InDims(m.dims) {
		return 0
	}
	em := m.newEmitter()
	sh := m.shardFor(coord)

	sh.mu.Lock()
	ck, ok := sh.chunks[coord]
	if !ok {
		sh.mu.Unlock()
		return 0
	}
	n := ck.live
	delete(sh.chunks, coord)
	em.chunkRemoved(m.label, ck)
	sh.mu.Unlock()

	m.liveCount.Add(int64(-n))
	m.chunkCount.Add(-1)
	m.logger.Debug("chunk removed",
		log.String("map", m.label),
		log.Stringer("chunk", coord))
	m.maybeCascade(em)
	em.flush()
	return n
}

// ClearRegion removes every live tile inside the region and returns how many
// were cleared. Chunks fully covered by the region are dropped wholesale;
// partially covered chunks are cleared tile by tile and reclaimed if they
// end up empty.
func (m *TileMap) ClearRegion(region grid.Region) int {
	em := m.newEmitter()
	total := 0
	var scratch []int
	for cc := range region.ChunkRegion(m.edge).Points(m.dims) {
		sh := m.shardFor(cc)

		sh.mu.Lock()
		ck, ok := sh.chunks[cc]
		if !ok {
			sh.mu.Unlock()
			continue
		}
		if m.chunkWithin(region, cc) {
			n := ck.live
			delete(sh.chunks, cc)
			em.chunkRemoved(m.label, ck)
			sh.mu.Unlock()
			total += n
			m.liveCount.Add(int64(-n))
			m.chunkCount.Add(-1)
			continue
		}
		scratch = ck.liveIndices(scratch[:0])
		cleared := 0
		for _, idx := range scratch {
			if !region.Contains(grid.Compose(cc, idx, m.edge, m.dims)) {
				continue
			}
			ck.despawn(idx)
			cleared++
		}
		removed := false
		if cleared > 0 && ck.live == 0 {
			delete(sh.chunks, cc)
			em.chunkRemoved(m.label, ck)
			removed = true
		}
		sh.mu.Unlock()

		total += cleared
		m.liveCount.Add(int64(-cleared))
		if removed {
			m.chunkCount.Add(-1)
		}
	}
	if total > 0 {
		m.logger.Debug("region cleared",
			log.String("map", m.label),
			log.Int("tiles", total))
	}
	m.maybeCascade(em)
	em.flush()
	return total
}

// chunkWithin reports whether the chunk at cc lies entirely inside region
// over the map's dimensions.
func (m *TileMap) chunkWithin(region grid.Region, cc grid.Point) bool {
	span := grid.ChunkSpan(cc, m.edge, m.dims)
	for i := 0; i < m.dims; i++ {
		if span.Min[i] < region.Min[i] || span.Max[i] > region.Max[i] {
			return false
		}
	}
	return true
}

// WriteTileBatch writes the same component values to every given coordinate
// inside one batch, so chunks emptied and refilled along the way are not
// reclaimed in between. Points are visited grouped by chunk.
func (m *TileMap) WriteTileBatch(points []grid.Point, values ...Value) error {
	for _, p := range points {
		if !p.InDims(m.dims) {
			return m.dimsErr(p)
		}
	}
	sorted := make([]grid.Point, len(points))
	copy(sorted, points)
	slices.SortFunc(sorted, func(a, b grid.Point) int {
		ca, ia := grid.Split(a, m.edge, m.dims)
		cb, ib := grid.Split(b, m.edge, m.dims)
		if c := grid.Compare(ca, cb); c != 0 {
			return c
		}
		return cmp.Compare(ia, ib)
	})

	b := m.Batch()
	for _, p := range sorted {
		if _, err := b.Write(p, values...); err != nil {
			_ = b.Close()
			return err
		}
	}
	return b.Close()
}

// ClearTileBatch clears every given coordinate inside one batch and returns
// how many tiles were live. Chunk reclamation happens once at the end.
func (m *TileMap) ClearTileBatch(points []grid.Point) int {
	b := m.Batch()
	n := 0
	for _, p := range points {
		if b.Clear(p) {
			n++
		}
	}
	_ = b.Close()
	return n
}
