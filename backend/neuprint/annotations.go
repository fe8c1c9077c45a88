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

// AnnotationSource searches Neuron nodes via Cypher, mirroring the criteria
// neuPrint's own NeuronCriteria exposes for type/instance/bodyId.
type AnnotationSource struct {
	client *Client
}

// NewAnnotationSource binds an annotation accessor to a client.
func NewAnnotationSource(client *Client) *AnnotationSource {
	return &AnnotationSource{client}
}

// Find implements dataset.AnnotationSource.  neuPrint's Neuron nodes have
// no annotation terms, so AnnotatedWith cannot be translated and is
// rejected rather than silently ignored.
func (s *AnnotationSource) Find(ctx context.Context, q dataset.AnnotationQuery) ([]dataset.AnnotationRecord, error) {
	if len(q.AnnotatedWith) > 0 {
		return nil, fmt.Errorf("annotation-term search on neuPrint: %w", connectome.ErrNotImplemented)
	}
	var where []string
	if q.Type != "" {
		where = append(where, fmt.Sprintf("n.type = %s", cypherString(q.Type)))
	}
	if q.Name != "" {
		if q.Exact {
			where = append(where, fmt.Sprintf("n.instance = %s", cypherString(q.Name)))
		} else {
			where = append(where, fmt.Sprintf("n.instance CONTAINS %s", cypherString(q.Name)))
		}
	}
	if len(q.IDs) > 0 {
		ids := make([]string, len(q.IDs))
		for i, id := range q.IDs {
			ids[i] = strconv.FormatUint(id, 10)
		}
		where = append(where, fmt.Sprintf("n.bodyId IN [%s]", strings.Join(ids, ", ")))
	}
	cypher := "MATCH (n :Neuron)"
	if len(where) > 0 {
		cypher += " WHERE " + strings.Join(where, " AND ")
	}
	cypher += " RETURN n.bodyId, n.instance, n.type"

	columns, rows, err := s.client.customQuery(ctx, cypher)
	if err != nil {
		return nil, err
	}
	if len(columns) < 3 {
		return nil, fmt.Errorf("neuPrint returned %d columns, expected 3", len(columns))
	}

	records := make([]dataset.AnnotationRecord, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		num, ok := row[0].(json.Number)
		if !ok {
			return nil, fmt.Errorf("neuPrint bodyId column held %T, expected number", row[0])
		}
		id, err := strconv.ParseUint(num.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad bodyId %q: %v", num, err)
		}
		rec := dataset.AnnotationRecord{ID: id}
		if name, ok := row[1].(string); ok {
			rec.Name = name
		}
		if typ, ok := row[2].(string); ok {
			rec.Type = typ
		}
		records = append(records, rec)
	}
	connectome.Debugf("neuPrint annotation query matched %d records\n", len(records))
	return records, nil
}

// cypherString quotes a literal for inclusion in a Cypher statement.
func cypherString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

var _ dataset.AnnotationSource = (*AnnotationSource)(nil)
