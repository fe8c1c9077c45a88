package dataset

import (
	"context"
	"errors"
	"testing"

	"github.com/navis-org/connectomes/connectome"
)

// fakeSkeletons implements SkeletonSource for composition tests.
type fakeSkeletons struct{}

func (fakeSkeletons) Get(ctx context.Context, ids ...uint64) (connectome.NeuronList, error) {
	neurons := make(connectome.NeuronList, len(ids))
	for i, id := range ids {
		neurons[i] = &connectome.Neuron{
			ID:    id,
			Nodes: []connectome.SkeletonNode{{ID: 1, Parent: -1}},
		}
	}
	return neurons, nil
}

func TestAccessorsAlwaysPresent(t *testing.T) {
	d := New(Config{Name: "empty"})
	if d.Segmentation() == nil || d.Skeleton() == nil || d.Mesh() == nil ||
		d.Annotations() == nil || d.Connectivity() == nil {
		t.Fatal("adapter with no backends must still expose all five accessors")
	}

	ctx := context.Background()
	if _, err := d.Segmentation().Slice(ctx, connectome.NewRange(0, 1),
		connectome.NewRange(0, 1), connectome.NewRange(0, 1)); !errors.Is(err, connectome.ErrNotImplemented) {
		t.Errorf("segmentation stub: expected ErrNotImplemented, got %v", err)
	}
	if _, _, err := d.Segmentation().Extents(ctx); !errors.Is(err, connectome.ErrNotImplemented) {
		t.Errorf("extents stub: expected ErrNotImplemented, got %v", err)
	}
	if _, err := d.Skeleton().Get(ctx, 1); !errors.Is(err, connectome.ErrNotImplemented) {
		t.Errorf("skeleton stub: expected ErrNotImplemented, got %v", err)
	}
	if _, err := d.Mesh().Get(ctx, 1); !errors.Is(err, connectome.ErrNotImplemented) {
		t.Errorf("mesh stub: expected ErrNotImplemented, got %v", err)
	}
	if _, err := d.Annotations().Find(ctx, AnnotationQuery{}); !errors.Is(err, connectome.ErrNotImplemented) {
		t.Errorf("annotations stub: expected ErrNotImplemented, got %v", err)
	}
	if _, err := d.Connectivity().Edges(ctx, []uint64{1}, nil); !errors.Is(err, connectome.ErrNotImplemented) {
		t.Errorf("connectivity stub: expected ErrNotImplemented, got %v", err)
	}
}

func TestExplicitComposition(t *testing.T) {
	d := New(Config{Name: "partial", Skeleton: fakeSkeletons{}})

	neurons, err := d.Skeleton().Get(context.Background(), 123)
	if err != nil {
		t.Fatalf("assigned skeleton source failed: %v", err)
	}
	if len(neurons) != 1 || neurons[0].ID != 123 || len(neurons[0].Nodes) == 0 {
		t.Errorf("bad neuron list: %v", neurons)
	}

	// Unassigned modalities still stub out.
	if _, err := d.Mesh().Get(context.Background(), 123); !errors.Is(err, connectome.ErrNotImplemented) {
		t.Errorf("mesh: expected ErrNotImplemented, got %v", err)
	}
}
