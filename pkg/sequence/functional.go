package sequence

import (
	"iter"
	"sort"
)

// Iterator is a generic, immutable, chainable iterator for any type T.
// Iterators built from restartable sequences are themselves restartable:
// every terminal operation walks the source again.
type Iterator[T any] struct {
	seq iter.Seq[T]
}

// From creates a new Iterator from a slice of T.
func From[T any](data []T) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for _, v := range data {
				if !yield(v) {
					return
				}
			}
		},
	}
}

// FromSeq wraps an existing sequence function in an Iterator.
func FromSeq[T any](seq iter.Seq[T]) *Iterator[T] {
	return &Iterator[T]{seq: seq}
}

// Seq returns the underlying sequence function for the iterator.
// This allows direct access to the iterator's sequence for range-over-func.
func (i *Iterator[T]) Seq() iter.Seq[T] {
	return i.seq
}

// Pull converts the iterator into a pull-style pair: next returns elements
// one at a time, stop releases the source early.
func (i *Iterator[T]) Pull() (next func() (T, bool), stop func()) {
	return iter.Pull(i.seq)
}

// Collect exhausts the iterator and returns a slice of all elements.
func (i *Iterator[T]) Collect() []T {
	var out []T
	i.seq(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Sort returns a new Iterator with elements sorted according to the provided
// less function. Sorting is eager: the source is collected first.
func (i *Iterator[T]) Sort(less func(a, b T) bool) *Iterator[T] {
	data := i.Collect()
	sort.SliceStable(data, func(a, b int) bool {
		return less(data[a], data[b])
	})
	return From(data)
}

// ForEach applies the action to every element. It is a terminal operation.
func (i *Iterator[T]) ForEach(action func(T)) {
	i.seq(func(v T) bool {
		action(v)
		return true
	})
}

// Filter returns a new Iterator containing only elements that satisfy the
// predicate.
func (i *Iterator[T]) Filter(pred func(T) bool) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			i.seq(func(v T) bool {
				if pred(v) {
					return yield(v)
				}
				return true
			})
		},
	}
}

// Find returns the first element matching the predicate, or false if none
// does.
func (i *Iterator[T]) Find(pred func(T) bool) (T, bool) {
	var zero T
	found := false
	i.seq(func(v T) bool {
		if pred(v) {
			zero = v
			found = true
			return false
		}
		return true
	})
	return zero, found
}

// Any returns true if any element matches the predicate.
func (i *Iterator[T]) Any(pred func(T) bool) bool {
	_, found := i.Find(pred)
	return found
}

// Take returns a new Iterator with the first n elements.
func (i *Iterator[T]) Take(n int) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			count := 0
			i.seq(func(v T) bool {
				if count < n {
					count++
					return yield(v)
				}
				return false
			})
		},
	}
}

// First returns the first element, or false if the iterator is empty.
func (i *Iterator[T]) First() (T, bool) {
	var zero T
	found := false
	i.seq(func(v T) bool {
		zero = v
		found = true
		return false
	})
	return zero, found
}

// Count returns the number of elements in the iterator.
func (i *Iterator[T]) Count() int {
	count := 0
	i.seq(func(_ T) bool {
		count++
		return true
	})
	return count
}

// Chain concatenates multiple iterators into one.
func Chain[T any](iters ...*Iterator[T]) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for _, it := range iters {
				stopped := false
				it.seq(func(v T) bool {
					if !yield(v) {
						stopped = true
						return false
					}
					return true
				})
				if stopped {
					return
				}
			}
		},
	}
}

// ToArray applies the callback function to each element of the iterator and
// returns a slice of the results, transforming elements from T to S.
func ToArray[T any, S any](it *Iterator[T], callback func(T) S) []S {
	var arr []S
	it.seq(func(v T) bool {
		arr = append(arr, callback(v))
		return true
	})
	return arr
}
