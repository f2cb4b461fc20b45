package grid

import "fmt"

// MaxDims is the highest dimensionality a map may use. Points always carry
// MaxDims lanes; maps declare how many of them are meaningful.
const MaxDims = 4

// Point is a signed tile coordinate. Unused lanes stay zero, which keeps
// points of any dimensionality comparable and usable as map keys.
type Point [MaxDims]int32

// P builds a point from the given coordinates. Lanes beyond the provided
// coordinates are zero.
func P(coords ...int32) Point {
	var p Point
	copy(p[:], coords)
	return p
}

// X returns the first coordinate.
func (p Point) X() int32 { return p[0] }

// Y returns the second coordinate.
func (p Point) Y() int32 { return p[1] }

// Z returns the third coordinate.
func (p Point) Z() int32 { return p[2] }

// W returns the fourth coordinate.
func (p Point) W() int32 { return p[3] }

// Add returns the lane-wise sum of p and q.
func (p Point) Add(q Point) Point {
	var r Point
	for i := range p {
		r[i] = p[i] + q[i]
	}
	return r
}

// Sub returns the lane-wise difference of p and q.
func (p Point) Sub(q Point) Point {
	var r Point
	for i := range p {
		r[i] = p[i] - q[i]
	}
	return r
}

// Scale returns p with every lane multiplied by f.
func (p Point) Scale(f int32) Point {
	var r Point
	for i := range p {
		r[i] = p[i] * f
	}
	return r
}

// InDims reports whether every lane at or beyond dims is zero, i.e. whether
// the point fits a map of the given dimensionality.
func (p Point) InDims(dims int) bool {
	for i := dims; i < MaxDims; i++ {
		if p[i] != 0 {
			return false
		}
	}
	return true
}

// Compare orders points ascending with the highest lane most significant.
// It returns -1, 0 or 1 in the manner of cmp.Compare.
func Compare(a, b Point) int {
	for i := MaxDims - 1; i >= 0; i-- {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

func (p Point) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", p[0], p[1], p[2], p[3])
}
