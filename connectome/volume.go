package connectome

import (
	"encoding/binary"
	"fmt"
)

// Volume is the standardized output type for segmentation cutouts: a dense
// 4d array (x, y, z, channel) of uint64 segment IDs.  Channel is the
// innermost dimension, then x varies fastest, then y, then z, matching the
// order remote volume APIs stream raw data.
type Volume struct {
	// Offset is the voxel coordinate of the first array element.
	Offset Point3d

	// Size is the extent in voxels along x, y, z.
	Size Point3d

	// Channels is 1 for single-label segmentation.
	Channels int32

	// Data holds Size.Prod() * Channels values.
	Data []uint64
}

// NewVolume allocates a zeroed volume of the given geometry.
func NewVolume(offset, size Point3d, channels int32) *Volume {
	return &Volume{
		Offset:   offset,
		Size:     size,
		Channels: channels,
		Data:     make([]uint64, size.Prod()*int64(channels)),
	}
}

// index computes the flat position for volume-local coordinates.
func (v *Volume) index(x, y, z, c int32) int64 {
	voxel := int64(z)*int64(v.Size[1])*int64(v.Size[0]) + int64(y)*int64(v.Size[0]) + int64(x)
	return voxel*int64(v.Channels) + int64(c)
}

// Value returns the segment ID at volume-local coordinates.
func (v *Volume) Value(x, y, z, c int32) uint64 {
	return v.Data[v.index(x, y, z, c)]
}

// SetValue sets the segment ID at volume-local coordinates.
func (v *Volume) SetValue(x, y, z, c int32, label uint64) {
	v.Data[v.index(x, y, z, c)] = label
}

// Shape returns the 4d shape (x, y, z, channel).
func (v *Volume) Shape() [4]int32 {
	return [4]int32{v.Size[0], v.Size[1], v.Size[2], v.Channels}
}

// NumVoxels returns the number of voxels (not counting channels).
func (v *Volume) NumVoxels() int64 {
	return v.Size.Prod()
}

// SetFromUint64LE fills a single-channel volume from little-endian uint64
// data in ZYX order (x fastest), the raw wire order of DVID and
// neuroglancer-precomputed label volumes.
func (v *Volume) SetFromUint64LE(data []byte) error {
	if v.Channels != 1 {
		return fmt.Errorf("can only load raw uint64 data into single-channel volume, have %d channels", v.Channels)
	}
	want := v.NumVoxels() * 8
	if int64(len(data)) != want {
		return fmt.Errorf("expected %d bytes for %s volume, got %d", want, v.Size, len(data))
	}
	for i := range v.Data {
		v.Data[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return nil
}

func (v *Volume) String() string {
	return fmt.Sprintf("volume %s @ %s (%d channels)", v.Size, v.Offset, v.Channels)
}
