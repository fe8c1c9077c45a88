package connectome

import "fmt"

// Point3d is a 3d point in dataset-native voxel coordinates.
type Point3d [3]int32

// Value returns the value at the specified dimension.
func (p Point3d) Value(dim uint8) int32 {
	return p[dim]
}

// Add returns the addition of two points.
func (p Point3d) Add(x Point3d) Point3d {
	return Point3d{p[0] + x[0], p[1] + x[1], p[2] + x[2]}
}

// Sub returns the subtraction of x from the receiver.
func (p Point3d) Sub(x Point3d) Point3d {
	return Point3d{p[0] - x[0], p[1] - x[1], p[2] - x[2]}
}

// Max returns the point where each dimension is the maximum of the two points.
func (p Point3d) Max(x Point3d) Point3d {
	result := p
	for dim := 0; dim < 3; dim++ {
		if x[dim] > result[dim] {
			result[dim] = x[dim]
		}
	}
	return result
}

// Min returns the point where each dimension is the minimum of the two points.
func (p Point3d) Min(x Point3d) Point3d {
	result := p
	for dim := 0; dim < 3; dim++ {
		if x[dim] < result[dim] {
			result[dim] = x[dim]
		}
	}
	return result
}

// Prod returns the product of the point's coordinates.
func (p Point3d) Prod() int64 {
	return int64(p[0]) * int64(p[1]) * int64(p[2])
}

func (p Point3d) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p[0], p[1], p[2])
}

// Range is a half-open interval [Beg, End) along one voxel axis.
type Range struct {
	Beg, End int32
}

// NewRange returns the half-open range [beg, end).
func NewRange(beg, end int32) Range {
	return Range{beg, end}
}

// Size returns the extent of the range, 0 or negative for degenerate ranges.
func (r Range) Size() int32 {
	return r.End - r.Beg
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Beg, r.End)
}

// Bounds is an axis-aligned box of voxels given by three half-open ranges.
type Bounds struct {
	X, Y, Z Range
}

// NewBounds composes three ranges into a bounding box.
func NewBounds(x, y, z Range) Bounds {
	return Bounds{x, y, z}
}

// StartPoint returns the offset to the first voxel of the bounds.
func (b Bounds) StartPoint() Point3d {
	return Point3d{b.X.Beg, b.Y.Beg, b.Z.Beg}
}

// EndPoint returns the first voxel past the bounds in each dimension.
func (b Bounds) EndPoint() Point3d {
	return Point3d{b.X.End, b.Y.End, b.Z.End}
}

// Size returns the extent of the bounds in each dimension.
func (b Bounds) Size() Point3d {
	return Point3d{b.X.Size(), b.Y.Size(), b.Z.Size()}
}

// NumVoxels returns the number of voxels within the bounds.
func (b Bounds) NumVoxels() int64 {
	return b.Size().Prod()
}

// Validate checks that each range is non-empty, returning ErrInvalidRange
// otherwise.
func (b Bounds) Validate() error {
	for _, r := range []Range{b.X, b.Y, b.Z} {
		if r.Size() <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidRange, r)
		}
	}
	return nil
}

// CheckWithin returns ErrOutOfBounds unless the bounds lie fully within the
// volume extents [minPt, maxPt], where maxPt is the last addressable voxel.
func (b Bounds) CheckWithin(minPt, maxPt Point3d) error {
	beg := b.StartPoint()
	end := b.EndPoint()
	for dim := uint8(0); dim < 3; dim++ {
		if beg.Value(dim) < minPt.Value(dim) || end.Value(dim) > maxPt.Value(dim)+1 {
			return fmt.Errorf("%w: %s..%s outside %s..%s", ErrOutOfBounds,
				beg, end, minPt, maxPt)
		}
	}
	return nil
}

func (b Bounds) String() string {
	return fmt.Sprintf("x%s y%s z%s", b.X, b.Y, b.Z)
}
