package generic

import "sync"

// Pool is a typed wrapper around sync.Pool.
type Pool[T any] struct {
	pool sync.Pool
}

// NewPool creates a pool that produces fresh values with generate when empty.
func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	p.pool.Put(value)
}

// SlicePool pools slices of T, clipping them to zero length on reuse so
// callers always receive an empty slice with retained capacity.
type SlicePool[T any] struct {
	pool Pool[[]T]
}

// NewSlicePool creates a slice pool whose fresh slices start with the given
// capacity.
func NewSlicePool[T any](capacity int) *SlicePool[T] {
	return &SlicePool[T]{
		pool: Pool[[]T]{
			pool: sync.Pool{
				New: func() any {
					return make([]T, 0, capacity)
				},
			},
		},
	}
}

func (p *SlicePool[T]) Get() []T {
	return p.pool.Get()[:0]
}

func (p *SlicePool[T]) Put(s []T) {
	p.pool.Put(s)
}
