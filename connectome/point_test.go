package connectome

import (
	"errors"
	"testing"
)

func TestPoint3d(t *testing.T) {
	a := Point3d{10, 21, 837821}
	b := Point3d{78312, -200, 40123}

	if got := a.Add(b); got != (Point3d{78322, -179, 877944}) {
		t.Errorf("bad Add: %s", got)
	}
	if got := a.Sub(b); got != (Point3d{-78302, 221, 797698}) {
		t.Errorf("bad Sub: %s", got)
	}
	if got := a.Max(b); got != (Point3d{78312, 21, 837821}) {
		t.Errorf("bad Max: %s", got)
	}
	if got := a.Min(b); got != (Point3d{10, -200, 40123}) {
		t.Errorf("bad Min: %s", got)
	}
	if got := (Point3d{2, 3, 4}).Prod(); got != 24 {
		t.Errorf("bad Prod: %d", got)
	}
	if got := a.String(); got != "(10,21,837821)" {
		t.Errorf("bad String: %s", got)
	}
}

func TestBoundsValidate(t *testing.T) {
	good := NewBounds(NewRange(0, 10), NewRange(5, 6), NewRange(100, 228))
	if err := good.Validate(); err != nil {
		t.Errorf("valid bounds rejected: %v", err)
	}
	if got := good.Size(); got != (Point3d{10, 1, 128}) {
		t.Errorf("bad Size: %s", got)
	}
	if got := good.NumVoxels(); got != 1280 {
		t.Errorf("bad NumVoxels: %d", got)
	}

	for _, bad := range []Bounds{
		NewBounds(NewRange(10, 10), NewRange(5, 6), NewRange(100, 228)),
		NewBounds(NewRange(0, 10), NewRange(6, 5), NewRange(100, 228)),
		NewBounds(NewRange(0, 10), NewRange(5, 6), NewRange(228, 100)),
	} {
		if err := bad.Validate(); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("bounds %s: expected ErrInvalidRange, got %v", bad, err)
		}
	}
}

func TestBoundsCheckWithin(t *testing.T) {
	minPt := Point3d{0, 0, 0}
	maxPt := Point3d{999, 999, 499}

	inside := NewBounds(NewRange(0, 1000), NewRange(500, 999), NewRange(0, 500))
	if err := inside.CheckWithin(minPt, maxPt); err != nil {
		t.Errorf("bounds inside extents rejected: %v", err)
	}

	for _, outside := range []Bounds{
		NewBounds(NewRange(-1, 10), NewRange(0, 10), NewRange(0, 10)),
		NewBounds(NewRange(0, 1001), NewRange(0, 10), NewRange(0, 10)),
		NewBounds(NewRange(0, 10), NewRange(0, 10), NewRange(400, 501)),
	} {
		if err := outside.CheckWithin(minPt, maxPt); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("bounds %s: expected ErrOutOfBounds, got %v", outside, err)
		}
	}
}
