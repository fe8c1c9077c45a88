package catmaid

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/navis-org/connectomes/connectome"
	"github.com/navis-org/connectomes/dataset"
)

// AnnotationSource searches neurons via the query-targets endpoint.
type AnnotationSource struct {
	client    *Client
	projectID int
}

// NewAnnotationSource binds an annotation accessor to a client and project.
func NewAnnotationSource(client *Client, projectID int) *AnnotationSource {
	return &AnnotationSource{client, projectID}
}

type queryTargetsResponse struct {
	Entities []struct {
		ID          uint64   `json:"id"`
		Name        string   `json:"name"`
		Type        string   `json:"type"`
		SkeletonIDs []uint64 `json:"skeleton_ids"`
	} `json:"entities"`
}

// Find implements dataset.AnnotationSource.  Hits are reported per skeleton
// so ids line up with the skeleton accessor; entities without skeletons are
// not neurons and are skipped.  CATMAID has no cell-type field, so Type
// cannot be translated and is rejected rather than silently ignored.
func (s *AnnotationSource) Find(ctx context.Context, q dataset.AnnotationQuery) ([]dataset.AnnotationRecord, error) {
	if q.Type != "" {
		return nil, fmt.Errorf("cell-type search on CATMAID: %w", connectome.ErrNotImplemented)
	}
	form := url.Values{}
	form.Set("types[0]", "neuron")
	form.Set("annotation_reference", "name")
	if q.Name != "" {
		form.Set("name", q.Name)
		form.Set("name_exact", strconv.FormatBool(q.Exact))
	}
	for i, term := range q.AnnotatedWith {
		form.Set(fmt.Sprintf("annotated_with[%d]", i), term)
	}

	data, err := s.client.post(ctx, fmt.Sprintf("%d/annotations/query-targets", s.projectID), form)
	if err != nil {
		return nil, err
	}
	var resp queryTargetsResponse
	if err := decodeJSON(data, &resp); err != nil {
		return nil, fmt.Errorf("error decoding query-targets response: %v", err)
	}

	var records []dataset.AnnotationRecord
	for _, e := range resp.Entities {
		for _, skid := range e.SkeletonIDs {
			if !matchIDs(q.IDs, skid) {
				continue
			}
			records = append(records, dataset.AnnotationRecord{ID: skid, Name: e.Name, Type: e.Type})
		}
	}
	connectome.Debugf("CATMAID query-targets matched %d records\n", len(records))
	return records, nil
}

// matchIDs reports whether id passes an optional id filter.
func matchIDs(filter []uint64, id uint64) bool {
	if len(filter) == 0 {
		return true
	}
	for _, want := range filter {
		if want == id {
			return true
		}
	}
	return false
}

var _ dataset.AnnotationSource = (*AnnotationSource)(nil)
