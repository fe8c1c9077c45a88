package neuprint

import (
	"context"
	"fmt"
	"net/url"

	"github.com/navis-org/connectomes/connectome"
	"github.com/navis-org/connectomes/dataset"
)

// SkeletonSource fetches skeletons from the neuPrint skeleton endpoint.
type SkeletonSource struct {
	client *Client
}

// NewSkeletonSource binds a skeleton accessor to a client.
func NewSkeletonSource(client *Client) *SkeletonSource {
	return &SkeletonSource{client}
}

// Get implements dataset.SkeletonSource, requesting SWC so all skeleton
// backends share one codec.
func (s *SkeletonSource) Get(ctx context.Context, ids ...uint64) (connectome.NeuronList, error) {
	neurons := make(connectome.NeuronList, 0, len(ids))
	for _, id := range ids {
		path := fmt.Sprintf("/api/skeletons/skeleton/%s/%d?format=swc",
			url.PathEscape(s.client.dataset), id)
		notFound := fmt.Errorf("skeleton %d: %w", id, connectome.ErrNeuronNotFound)
		data, err := s.client.get(ctx, path, notFound)
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

var _ dataset.SkeletonSource = (*SkeletonSource)(nil)
