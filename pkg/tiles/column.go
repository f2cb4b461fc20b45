package tiles

// anyColumn is the erased face of a typed component column. A column holds
// one value slot per chunk tile plus its own presence bit per slot: a live
// tile may carry any subset of the kinds written into its chunk.
type anyColumn interface {
	columnKind() Kind
	// setAny stores an erased value produced by With into a slot.
	setAny(idx int, val any)
	// clearSlot resets a slot to the zero value so cleared tiles do not pin
	// old payloads.
	clearSlot(idx int)
	// transferTo moves a slot into the same-kind column of another chunk.
	transferTo(other anyColumn, src, dst int)
	// swapWith exchanges a slot with the same-kind column of another chunk.
	// other may be the receiver itself for swaps inside one chunk.
	swapWith(other anyColumn, idx, otherIdx int)
	// cloneEmpty allocates a fresh column of the same kind and type.
	cloneEmpty(capacity int) anyColumn
}

type column[T any] struct {
	kind  Kind
	vals  []T
	words []uint64
}

var _ anyColumn = (*column[int])(nil)

func newColumn[T any](kind Kind, capacity int) *column[T] {
	return &column[T]{
		kind:  kind,
		vals:  make([]T, capacity),
		words: make([]uint64, (capacity+bitsPerWord-1)/bitsPerWord),
	}
}

func (c *column[T]) columnKind() Kind { return c.kind }

func (c *column[T]) present(idx int) bool {
	return c.words[idx/bitsPerWord]&(1<<(idx%bitsPerWord)) != 0
}

func (c *column[T]) setBit(idx int) {
	c.words[idx/bitsPerWord] |= 1 << (idx % bitsPerWord)
}

func (c *column[T]) clearBit(idx int) {
	c.words[idx/bitsPerWord] &^= 1 << (idx % bitsPerWord)
}

func (c *column[T]) setAny(idx int, val any) {
	c.vals[idx] = val.(T)
	c.setBit(idx)
}

func (c *column[T]) clearSlot(idx int) {
	var zero T
	c.vals[idx] = zero
	c.clearBit(idx)
}

func (c *column[T]) transferTo(other anyColumn, src, dst int) {
	o := other.(*column[T])
	if c.present(src) {
		o.vals[dst] = c.vals[src]
		o.setBit(dst)
	} else {
		o.clearSlot(dst)
	}
	c.clearSlot(src)
}

func (c *column[T]) swapWith(other anyColumn, idx, otherIdx int) {
	o := other.(*column[T])
	c.vals[idx], o.vals[otherIdx] = o.vals[otherIdx], c.vals[idx]
	cp, op := c.present(idx), o.present(otherIdx)
	if op {
		c.setBit(idx)
	} else {
		c.clearBit(idx)
	}
	if cp {
		o.setBit(otherIdx)
	} else {
		o.clearBit(otherIdx)
	}
}

func (c *column[T]) cloneEmpty(capacity int) anyColumn {
	return newColumn[T](c.kind, capacity)
}
