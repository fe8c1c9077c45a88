package catmaid

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/navis-org/connectomes/dataset"
)

// ConnectivitySource fetches synaptic connectivity between skeletons.  Fully
// constrained queries use the connectivity-matrix endpoint; queries leaving
// one side open use the partner listing instead.
type ConnectivitySource struct {
	client    *Client
	projectID int
}

// NewConnectivitySource binds a connectivity accessor to a client and project.
func NewConnectivitySource(client *Client, projectID int) *ConnectivitySource {
	return &ConnectivitySource{client, projectID}
}

// Edges implements dataset.ConnectivitySource.  One side may be left
// unconstrained, but not both.
func (s *ConnectivitySource) Edges(ctx context.Context, sources, targets []uint64) ([]dataset.Edge, error) {
	switch {
	case len(sources) > 0 && len(targets) > 0:
		return s.matrixEdges(ctx, sources, targets)
	case len(sources) > 0:
		return s.partnerEdges(ctx, sources, true)
	case len(targets) > 0:
		return s.partnerEdges(ctx, targets, false)
	default:
		return nil, fmt.Errorf("connectivity query needs at least one of sources or targets")
	}
}

// matrixEdges queries the connectivity matrix between two explicit sets.
func (s *ConnectivitySource) matrixEdges(ctx context.Context, sources, targets []uint64) ([]dataset.Edge, error) {
	form := url.Values{}
	for i, id := range sources {
		form.Add(fmt.Sprintf("rows[%d]", i), strconv.FormatUint(id, 10))
	}
	for i, id := range targets {
		form.Add(fmt.Sprintf("columns[%d]", i), strconv.FormatUint(id, 10))
	}
	data, err := s.client.post(ctx, fmt.Sprintf("%d/skeleton/connectivity_matrix", s.projectID), form)
	if err != nil {
		return nil, err
	}

	// Response maps source skeleton to {target skeleton: count}.
	var matrix map[string]map[string]int64
	if err := decodeJSON(data, &matrix); err != nil {
		return nil, fmt.Errorf("error decoding connectivity matrix: %v", err)
	}
	var edges []dataset.Edge
	for src, row := range matrix {
		source, err := strconv.ParseUint(src, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad source skeleton id %q: %v", src, err)
		}
		for tgt, count := range row {
			target, err := strconv.ParseUint(tgt, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad target skeleton id %q: %v", tgt, err)
			}
			edges = append(edges, dataset.Edge{Source: source, Target: target, Weight: count})
		}
	}
	sortEdges(edges)
	return edges, nil
}

// partnerEdges lists all partners on the open side of the query.  For
// outgoing queries the given skeletons are sources; for incoming ones they
// are targets.
func (s *ConnectivitySource) partnerEdges(ctx context.Context, ids []uint64, outgoing bool) ([]dataset.Edge, error) {
	form := url.Values{}
	for i, id := range ids {
		form.Add(fmt.Sprintf("source_skeleton_ids[%d]", i), strconv.FormatUint(id, 10))
	}
	form.Set("boolean_op", "OR")
	data, err := s.client.post(ctx, fmt.Sprintf("%d/skeletons/connectivity", s.projectID), form)
	if err != nil {
		return nil, err
	}

	// The listing is keyed by partner skeleton; skids maps each queried
	// skeleton to a per-confidence histogram to be summed.
	var resp struct {
		Incoming map[string]partnerEntry `json:"incoming"`
		Outgoing map[string]partnerEntry `json:"outgoing"`
	}
	if err := decodeJSON(data, &resp); err != nil {
		return nil, fmt.Errorf("error decoding partner listing: %v", err)
	}

	listing := resp.Outgoing
	if !outgoing {
		listing = resp.Incoming
	}
	var edges []dataset.Edge
	for partnerStr, entry := range listing {
		partner, err := strconv.ParseUint(partnerStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad partner skeleton id %q: %v", partnerStr, err)
		}
		for queried, hist := range entry.Skids {
			skid, err := strconv.ParseUint(queried, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad skeleton id %q: %v", queried, err)
			}
			if outgoing {
				edges = append(edges, dataset.Edge{Source: skid, Target: partner, Weight: sumHist(hist)})
			} else {
				edges = append(edges, dataset.Edge{Source: partner, Target: skid, Weight: sumHist(hist)})
			}
		}
	}
	sortEdges(edges)
	return edges, nil
}

type partnerEntry struct {
	Skids map[string][]int64 `json:"skids"`
}

func sumHist(hist []int64) int64 {
	var total int64
	for _, count := range hist {
		total += count
	}
	return total
}

// sortEdges gives map-derived edge lists a stable order.
func sortEdges(edges []dataset.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
}

var _ dataset.ConnectivitySource = (*ConnectivitySource)(nil)
