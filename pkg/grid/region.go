package grid

import "iter"

// Region is an axis-aligned box of tile coordinates. Both corners are
// inclusive.
type Region struct {
	Min Point
	Max Point
}

// NewRegion builds the region spanned by two arbitrary corners, normalizing
// them lane by lane so Min <= Max always holds.
func NewRegion(a, b Point) Region {
	var r Region
	for i := 0; i < MaxDims; i++ {
		if a[i] <= b[i] {
			r.Min[i], r.Max[i] = a[i], b[i]
		} else {
			r.Min[i], r.Max[i] = b[i], a[i]
		}
	}
	return r
}

// ChunkSpan returns the region of tile coordinates covered by the chunk at c
// over the first dims lanes.
func ChunkSpan(c Point, edge int32, dims int) Region {
	min := c.Scale(edge)
	max := min
	for i := 0; i < dims; i++ {
		max[i] += edge - 1
	}
	return Region{Min: min, Max: max}
}

// Contains reports whether p lies within the region.
func (r Region) Contains(p Point) bool {
	for i := 0; i < MaxDims; i++ {
		if p[i] < r.Min[i] || p[i] > r.Max[i] {
			return false
		}
	}
	return true
}

// Intersects reports whether r and o share at least one point.
func (r Region) Intersects(o Region) bool {
	for i := 0; i < MaxDims; i++ {
		if r.Max[i] < o.Min[i] || r.Min[i] > o.Max[i] {
			return false
		}
	}
	return true
}

// Clamp returns the intersection of r and o. The result is only meaningful
// when the regions intersect.
func (r Region) Clamp(o Region) Region {
	out := r
	for i := 0; i < MaxDims; i++ {
		if o.Min[i] > out.Min[i] {
			out.Min[i] = o.Min[i]
		}
		if o.Max[i] < out.Max[i] {
			out.Max[i] = o.Max[i]
		}
	}
	return out
}

// Size returns the number of points in the region over the first dims lanes.
func (r Region) Size(dims int) int {
	n := 1
	for i := 0; i < dims; i++ {
		n *= int(r.Max[i]-r.Min[i]) + 1
	}
	return n
}

// ChunkRegion projects r onto chunk coordinates: the box of every chunk whose
// span intersects r.
func (r Region) ChunkRegion(edge int32) Region {
	return Region{
		Min: ChunkCoord(r.Min, edge),
		Max: ChunkCoord(r.Max, edge),
	}
}

func (r Region) String() string {
	return r.Min.String() + ".." + r.Max.String()
}

// Points iterates every coordinate in the region over the first dims lanes,
// first lane varying fastest. The sequence is restartable.
func (r Region) Points(dims int) iter.Seq[Point] {
	return func(yield func(Point) bool) {
		p := r.Min
		for {
			if !yield(p) {
				return
			}
			i := 0
			for i < dims {
				p[i]++
				if p[i] <= r.Max[i] {
					break
				}
				p[i] = r.Min[i]
				i++
			}
			if i == dims {
				return
			}
		}
	}
}
