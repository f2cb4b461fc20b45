package tiles

import (
	"math/bits"
	"sync/atomic"

	"github.com/zeusync/tilegrid/pkg/grid"
)

// ChunkID is a stable handle for one chunk allocation. IDs are never reused,
// so holders can detect that a chunk was dropped and re-created at the same
// coordinate.
type ChunkID uint64

var chunkIDCounter atomic.Uint64

const bitsPerWord = 64

// chunk is the dense storage block for one span of the map: a presence bit
// per tile slot plus one lazily created column per component kind written
// into it. All access is guarded by the owning shard's lock.
type chunk struct {
	id      ChunkID
	coord   grid.Point
	words   []uint64
	live    int
	version uint64
	columns map[Kind]anyColumn
}

func newChunk(coord grid.Point, capacity int) *chunk {
	return &chunk{
		id:    ChunkID(chunkIDCounter.Add(1)),
		coord: coord,
		words: make([]uint64, (capacity+bitsPerWord-1)/bitsPerWord),
	}
}

func (c *chunk) has(idx int) bool {
	return c.words[idx/bitsPerWord]&(1<<(idx%bitsPerWord)) != 0
}

// spawn marks a slot live and reports whether it was live before.
func (c *chunk) spawn(idx int) (replaced bool) {
	word := &c.words[idx/bitsPerWord]
	mask := uint64(1) << (idx % bitsPerWord)
	replaced = *word&mask != 0
	if !replaced {
		*word |= mask
		c.live++
	}
	c.version++
	return replaced
}

// despawn clears a slot's presence bit and every column value it held.
// It reports whether the slot was live.
func (c *chunk) despawn(idx int) bool {
	word := &c.words[idx/bitsPerWord]
	mask := uint64(1) << (idx % bitsPerWord)
	if *word&mask == 0 {
		return false
	}
	*word &^= mask
	c.live--
	c.version++
	for _, col := range c.columns {
		col.clearSlot(idx)
	}
	return true
}

// write stores erased component values into a slot, creating columns for
// kinds this chunk has not seen yet.
func (c *chunk) write(idx int, capacity int, values []Value) {
	if len(values) == 0 {
		return
	}
	if c.columns == nil {
		c.columns = make(map[Kind]anyColumn, len(values))
	}
	for _, v := range values {
		col, ok := c.columns[v.kind]
		if !ok {
			col = newColumnFor(v.kind, capacity)
			c.columns[v.kind] = col
		}
		col.setAny(idx, v.val)
	}
	c.version++
}

// ensureColumn returns the chunk's column for kind, cloning the layout from
// src when the chunk has never stored that kind.
func (c *chunk) ensureColumn(kind Kind, src anyColumn, capacity int) anyColumn {
	col, ok := c.columns[kind]
	if !ok {
		col = src.cloneEmpty(capacity)
		if c.columns == nil {
			c.columns = make(map[Kind]anyColumn, 1)
		}
		c.columns[kind] = col
	}
	return col
}

// transferSlot moves a live slot's presence and values from c to dst. The
// destination slot must already be cleared.
func (c *chunk) transferSlot(idx int, dst *chunk, dstIdx int, capacity int) {
	for kind, col := range c.columns {
		col.transferTo(dst.ensureColumn(kind, col, capacity), idx, dstIdx)
	}
	c.despawnBitOnly(idx)
	dst.spawn(dstIdx)
}

// swapSlots exchanges presence and values between two live slots, possibly
// across chunks. Columns present on only one side are created on the other.
func (c *chunk) swapSlots(idx int, other *chunk, otherIdx int, capacity int) {
	for kind, col := range c.columns {
		col.swapWith(other.ensureColumn(kind, col, capacity), idx, otherIdx)
	}
	for kind, col := range other.columns {
		if _, seen := c.columns[kind]; seen {
			continue
		}
		col.swapWith(c.ensureColumn(kind, col, capacity), otherIdx, idx)
	}
	c.version++
	other.version++
}

// despawnBitOnly clears presence without touching columns, for use by moves
// that already relocated the values.
func (c *chunk) despawnBitOnly(idx int) {
	word := &c.words[idx/bitsPerWord]
	mask := uint64(1) << (idx % bitsPerWord)
	if *word&mask != 0 {
		*word &^= mask
		c.live--
	}
	c.version++
}

// liveIndices appends every live flat index in ascending order to buf.
func (c *chunk) liveIndices(buf []int) []int {
	for w, word := range c.words {
		base := w * bitsPerWord
		for word != 0 {
			buf = append(buf, base+bits.TrailingZeros64(word))
			word &= word - 1
		}
	}
	return buf
}
