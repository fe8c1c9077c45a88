package dvidnode

import (
	"context"
	"fmt"

	"github.com/navis-org/connectomes/connectome"
	"github.com/navis-org/connectomes/dataset"
)

// SkeletonSource fetches SWC skeletons from a keyvalue instance where
// entries are stored under "<bodyid>_swc", the FlyEM convention.
type SkeletonSource struct {
	client   *Client
	instance string
}

// NewSkeletonSource binds a skeleton accessor to a keyvalue instance,
// e.g. "segmentation_skeletons".
func NewSkeletonSource(client *Client, instance string) *SkeletonSource {
	return &SkeletonSource{client, instance}
}

// Get implements dataset.SkeletonSource.
func (s *SkeletonSource) Get(ctx context.Context, ids ...uint64) (connectome.NeuronList, error) {
	neurons := make(connectome.NeuronList, 0, len(ids))
	for _, id := range ids {
		notFound := fmt.Errorf("skeleton %d: %w", id, connectome.ErrNeuronNotFound)
		data, err := s.client.getKey(ctx, s.instance, fmt.Sprintf("%d_swc", id), notFound)
		if err != nil {
			return nil, err
		}
		n, err := connectome.ParseSWC(data, id)
		if err != nil {
			return nil, fmt.Errorf("skeleton %d: %v", id, err)
		}
		if err := n.CheckTree(); err != nil {
			return nil, err
		}
		neurons = append(neurons, n)
	}
	return neurons, nil
}

// MeshSource fetches neuroglancer legacy-format meshes from a keyvalue
// instance where entries are stored under "<bodyid>.ngmesh".
type MeshSource struct {
	client   *Client
	instance string
}

// NewMeshSource binds a mesh accessor to a keyvalue instance,
// e.g. "segmentation_meshes".
func NewMeshSource(client *Client, instance string) *MeshSource {
	return &MeshSource{client, instance}
}

// Get implements dataset.MeshSource.
func (s *MeshSource) Get(ctx context.Context, ids ...uint64) (connectome.NeuronList, error) {
	neurons := make(connectome.NeuronList, 0, len(ids))
	for _, id := range ids {
		notFound := fmt.Errorf("mesh %d: %w", id, connectome.ErrNeuronNotFound)
		data, err := s.client.getKey(ctx, s.instance, fmt.Sprintf("%d.ngmesh", id), notFound)
		if err != nil {
			return nil, err
		}
		n := &connectome.Neuron{ID: id}
		if err := connectome.DecodeNGMeshFragment(data, n); err != nil {
			return nil, fmt.Errorf("mesh %d: %v", id, err)
		}
		neurons = append(neurons, n)
	}
	return neurons, nil
}

var (
	_ dataset.SkeletonSource = (*SkeletonSource)(nil)
	_ dataset.MeshSource     = (*MeshSource)(nil)
)
