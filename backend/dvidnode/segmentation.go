package dvidnode

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/golang/snappy"

	"github.com/navis-org/connectomes/connectome"
	"github.com/navis-org/connectomes/dataset"
)

// SegmentationSource serves cutouts of one labelmap instance.
type SegmentationSource struct {
	client   *Client
	instance string

	mu      sync.Mutex
	extents *instanceExtents // fetched once from /info
}

// NewSegmentationSource binds a segmentation accessor to a labelmap
// instance, e.g. "segmentation".
func NewSegmentationSource(client *Client, instance string) *SegmentationSource {
	return &SegmentationSource{client: client, instance: instance}
}

type instanceExtents struct {
	MinPoint connectome.Point3d
	MaxPoint connectome.Point3d
}

type instanceInfo struct {
	Extended struct {
		MinPoint [3]int32 `json:"MinPoint"`
		MaxPoint [3]int32 `json:"MaxPoint"`
	} `json:"Extended"`
}

// Extents implements dataset.SegmentationSource, caching the instance info.
func (s *SegmentationSource) Extents(ctx context.Context) (connectome.Point3d, connectome.Point3d, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extents == nil {
		data, err := s.client.get(ctx, s.instance+"/info", nil)
		if err != nil {
			return connectome.Point3d{}, connectome.Point3d{}, err
		}
		var info instanceInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return connectome.Point3d{}, connectome.Point3d{}, fmt.Errorf("error decoding instance info: %v", err)
		}
		s.extents = &instanceExtents{
			MinPoint: info.Extended.MinPoint,
			MaxPoint: info.Extended.MaxPoint,
		}
		connectome.Infof("DVID instance %q extents %s..%s\n", s.instance, s.extents.MinPoint, s.extents.MaxPoint)
	}
	return s.extents.MinPoint, s.extents.MaxPoint, nil
}

// Slice implements dataset.SegmentationSource using the raw voxel endpoint
// with snappy compression.
func (s *SegmentationSource) Slice(ctx context.Context, x, y, z connectome.Range) (*connectome.Volume, error) {
	bounds := connectome.NewBounds(x, y, z)
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	minPt, maxPt, err := s.Extents(ctx)
	if err != nil {
		return nil, err
	}
	if err := bounds.CheckWithin(minPt, maxPt); err != nil {
		return nil, err
	}

	size := bounds.Size()
	offset := bounds.StartPoint()
	path := fmt.Sprintf("%s/raw/0_1_2/%d_%d_%d/%d_%d_%d?compression=snappy",
		s.instance, size[0], size[1], size[2], offset[0], offset[1], offset[2])
	data, err := s.client.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("error decoding snappy cutout %s: %v", bounds, err)
	}

	vol := connectome.NewVolume(offset, size, 1)
	if err := vol.SetFromUint64LE(raw); err != nil {
		return nil, err
	}
	return vol, nil
}

var _ dataset.SegmentationSource = (*SegmentationSource)(nil)
