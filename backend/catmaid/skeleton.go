package catmaid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/navis-org/connectomes/connectome"
	"github.com/navis-org/connectomes/dataset"
)

// SkeletonSource fetches skeletons from a CATMAID project via the
// compact-detail endpoint.
type SkeletonSource struct {
	client    *Client
	projectID int
}

// NewSkeletonSource binds a skeleton accessor to a client and project.
func NewSkeletonSource(client *Client, projectID int) *SkeletonSource {
	return &SkeletonSource{client, projectID}
}

// compact-detail returns, per skeleton, [treenodes, connectors, tags] where
// each treenode row is [id, parent_id, user_id, x, y, z, radius, confidence].
type compactDetail struct {
	Skeletons map[string][]json.RawMessage `json:"skeletons"`
}

// Get implements dataset.SkeletonSource.
func (s *SkeletonSource) Get(ctx context.Context, ids ...uint64) (connectome.NeuronList, error) {
	form := url.Values{}
	for i, id := range ids {
		form.Add(fmt.Sprintf("skeleton_ids[%d]", i), strconv.FormatUint(id, 10))
	}
	data, err := s.client.post(ctx, fmt.Sprintf("%d/skeletons/compact-detail", s.projectID), form)
	if err != nil {
		return nil, err
	}
	var detail compactDetail
	if err := decodeJSON(data, &detail); err != nil {
		return nil, fmt.Errorf("error decoding compact-detail response: %v", err)
	}

	neurons := make(connectome.NeuronList, 0, len(ids))
	for _, id := range ids {
		parts, found := detail.Skeletons[strconv.FormatUint(id, 10)]
		if !found || len(parts) < 1 {
			return nil, fmt.Errorf("skeleton %d: %w", id, connectome.ErrNeuronNotFound)
		}
		n, err := parseTreenodes(parts[0], id)
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

// parseTreenodes converts a compact-detail treenode table into a neuron,
// rewriting treenode-id parent links to node indices.
func parseTreenodes(raw json.RawMessage, id uint64) (*connectome.Neuron, error) {
	// Rows mix numbers and nulls (parent of the root), so decode loosely.
	var rows [][]interface{}
	if err := decodeJSON(raw, &rows); err != nil {
		return nil, fmt.Errorf("error decoding treenode rows: %v", err)
	}
	if len(rows) == 0 {
		return nil, connectome.ErrNeuronNotFound
	}

	n := &connectome.Neuron{ID: id}
	nodeIdx := make(map[uint64]int64, len(rows))
	parents := make([]int64, 0, len(rows)) // treenode id of parent, -1 for root
	for _, row := range rows {
		if len(row) < 7 {
			return nil, fmt.Errorf("treenode row has %d fields, expected at least 7", len(row))
		}
		tnid, err := rowUint(row[0])
		if err != nil {
			return nil, fmt.Errorf("bad treenode id %v: %v", row[0], err)
		}
		parent := int64(-1)
		if row[1] != nil {
			p, err := rowUint(row[1])
			if err != nil {
				return nil, fmt.Errorf("bad parent id %v: %v", row[1], err)
			}
			parent = int64(p)
		}
		var pos [3]float32
		for dim := 0; dim < 3; dim++ {
			f, err := rowFloat(row[3+dim])
			if err != nil {
				return nil, fmt.Errorf("bad coordinate %v: %v", row[3+dim], err)
			}
			pos[dim] = float32(f)
		}
		radius, err := rowFloat(row[6])
		if err != nil {
			return nil, fmt.Errorf("bad radius %v: %v", row[6], err)
		}
		nodeIdx[tnid] = int64(len(n.Nodes))
		n.Nodes = append(n.Nodes, connectome.SkeletonNode{
			ID:     tnid,
			Pos:    pos,
			Radius: float32(radius),
		})
		parents = append(parents, parent)
	}
	for i, parent := range parents {
		if parent < 1 {
			n.Nodes[i].Parent = -1
			continue
		}
		idx, found := nodeIdx[uint64(parent)]
		if !found {
			return nil, fmt.Errorf("treenode %d references unknown parent %d", n.Nodes[i].ID, parent)
		}
		n.Nodes[i].Parent = idx
	}
	return n, nil
}

// rowUint coerces a json.Number cell to uint64.
func rowUint(v interface{}) (uint64, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	return strconv.ParseUint(num.String(), 10, 64)
}

// rowFloat coerces a json.Number cell to float64.  Null radii become -1.
func rowFloat(v interface{}) (float64, error) {
	if v == nil {
		return -1, nil
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	return num.Float64()
}

var _ dataset.SkeletonSource = (*SkeletonSource)(nil)
