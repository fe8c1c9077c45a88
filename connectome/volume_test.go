package connectome

import (
	"encoding/binary"
	"testing"
)

func TestVolumeShape(t *testing.T) {
	vol := NewVolume(Point3d{10, 20, 30}, Point3d{4, 3, 2}, 1)
	if got := vol.Shape(); got != [4]int32{4, 3, 2, 1} {
		t.Errorf("bad Shape: %v", got)
	}
	if len(vol.Data) != 24 {
		t.Errorf("bad data length: %d", len(vol.Data))
	}

	vol.SetValue(3, 2, 1, 0, 99)
	if got := vol.Value(3, 2, 1, 0); got != 99 {
		t.Errorf("bad Value after SetValue: %d", got)
	}
	// The last voxel maps to the last data element.
	if got := vol.Data[23]; got != 99 {
		t.Errorf("expected label at final flat position, got %d", got)
	}
}

func TestVolumeSetFromUint64LE(t *testing.T) {
	size := Point3d{2, 3, 2}
	raw := make([]byte, size.Prod()*8)
	for i := int64(0); i < size.Prod(); i++ {
		binary.LittleEndian.PutUint64(raw[i*8:], uint64(i)+1000)
	}
	vol := NewVolume(Point3d{0, 0, 0}, size, 1)
	if err := vol.SetFromUint64LE(raw); err != nil {
		t.Fatalf("SetFromUint64LE: %v", err)
	}
	// Raw order is x fastest: voxel (1, 2, 0) is element 5.
	if got := vol.Value(1, 2, 0, 0); got != 1005 {
		t.Errorf("bad voxel value: %d", got)
	}
	if got := vol.Value(0, 0, 1, 0); got != 1006 {
		t.Errorf("bad voxel value at z=1: %d", got)
	}

	if err := vol.SetFromUint64LE(raw[:8]); err == nil {
		t.Error("expected error for short data")
	}
}
