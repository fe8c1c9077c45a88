package neuprint

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/navis-org/connectomes/connectome"
	"github.com/navis-org/connectomes/dataset"
)

// ConnectivitySource fetches aggregated synaptic edges from the ConnectsTo
// relationships of the neuPrint graph.
type ConnectivitySource struct {
	client *Client
}

// NewConnectivitySource binds a connectivity accessor to a client.
func NewConnectivitySource(client *Client) *ConnectivitySource {
	return &ConnectivitySource{client}
}

// Edges implements dataset.ConnectivitySource.  One side may be left
// unconstrained, but not both.
func (s *ConnectivitySource) Edges(ctx context.Context, sources, targets []uint64) ([]dataset.Edge, error) {
	if len(sources) == 0 && len(targets) == 0 {
		return nil, fmt.Errorf("connectivity query needs at least one of sources or targets")
	}
	var where []string
	if len(sources) > 0 {
		where = append(where, fmt.Sprintf("a.bodyId IN [%s]", cypherIDs(sources)))
	}
	if len(targets) > 0 {
		where = append(where, fmt.Sprintf("b.bodyId IN [%s]", cypherIDs(targets)))
	}
	cypher := "MATCH (a :Neuron)-[c :ConnectsTo]->(b :Neuron) WHERE " +
		strings.Join(where, " AND ") +
		" RETURN a.bodyId, b.bodyId, c.weight"

	columns, rows, err := s.client.customQuery(ctx, cypher)
	if err != nil {
		return nil, err
	}
	if len(columns) < 3 {
		return nil, fmt.Errorf("neuPrint returned %d columns, expected 3", len(columns))
	}

	edges := make([]dataset.Edge, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		source, err := rowBodyID(row[0])
		if err != nil {
			return nil, err
		}
		target, err := rowBodyID(row[1])
		if err != nil {
			return nil, err
		}
		var weight int64
		if num, ok := row[2].(json.Number); ok {
			weight, err = num.Int64()
			if err != nil {
				return nil, fmt.Errorf("bad edge weight %q: %v", num, err)
			}
		}
		edges = append(edges, dataset.Edge{Source: source, Target: target, Weight: weight})
	}
	connectome.Debugf("neuPrint connectivity query matched %d edges\n", len(edges))
	return edges, nil
}

// cypherIDs renders ids as a Cypher list body.
func cypherIDs(ids []uint64) string {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(strs, ", ")
}

// rowBodyID coerces a bodyId cell to uint64.
func rowBodyID(v interface{}) (uint64, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("neuPrint bodyId column held %T, expected number", v)
	}
	return strconv.ParseUint(num.String(), 10, 64)
}

var _ dataset.ConnectivitySource = (*ConnectivitySource)(nil)
