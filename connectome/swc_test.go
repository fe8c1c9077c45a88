package connectome

import (
	"bytes"
	"strings"
	"testing"
)

const testSWC = `# test neuron
1 0 100.0 200.0 300.0 5.5 -1
2 0 110.0 200.0 300.0 4.0 1
3 0 120.0 205.0 300.0 3.0 2
10 0 110.0 190.0 300.0 2.0 2
`

func TestReadSWC(t *testing.T) {
	n, err := ReadSWC(strings.NewReader(testSWC), 42)
	if err != nil {
		t.Fatalf("ReadSWC: %v", err)
	}
	if n.ID != 42 {
		t.Errorf("bad neuron id: %d", n.ID)
	}
	if len(n.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(n.Nodes))
	}
	if n.Root() != 0 {
		t.Errorf("expected root at index 0, got %d", n.Root())
	}
	if err := n.CheckTree(); err != nil {
		t.Errorf("CheckTree: %v", err)
	}
	// Sample 10's parent is sample 2, which is node index 1.
	if got := n.Nodes[3]; got.ID != 10 || got.Parent != 1 {
		t.Errorf("bad parent rewrite: %+v", got)
	}
	if got := n.Nodes[0]; got.Pos != [3]float32{100, 200, 300} || got.Radius != 5.5 {
		t.Errorf("bad root node: %+v", got)
	}
}

func TestReadSWCErrors(t *testing.T) {
	if _, err := ReadSWC(strings.NewReader("1 0 1 2 3 4\n"), 1); err == nil {
		t.Error("expected error for short row")
	}
	if _, err := ReadSWC(strings.NewReader("1 0 1 2 3 4 7\n"), 1); err == nil {
		t.Error("expected error for unknown parent sample")
	}
}

// Backends like CATMAID deliver nodes without sample numbers; WriteSWC
// must substitute indices and keep parent references pointing at the
// substituted numbers.
func TestWriteSWCZeroIDs(t *testing.T) {
	n := &Neuron{
		ID: 7,
		Nodes: []SkeletonNode{
			{ID: 0, Pos: [3]float32{1, 2, 3}, Radius: 1, Parent: -1},
			{ID: 0, Pos: [3]float32{4, 5, 6}, Radius: 1, Parent: 0},
			{ID: 0, Pos: [3]float32{7, 8, 9}, Radius: 1, Parent: 1},
		},
	}
	var buf bytes.Buffer
	if err := WriteSWC(&buf, n); err != nil {
		t.Fatalf("WriteSWC: %v", err)
	}
	again, err := ReadSWC(&buf, 7)
	if err != nil {
		t.Fatalf("re-reading SWC: %v", err)
	}
	if len(again.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(again.Nodes))
	}
	want := []struct {
		id     uint64
		parent int64
	}{{1, -1}, {2, 0}, {3, 1}}
	for i, w := range want {
		if got := again.Nodes[i]; got.ID != w.id || got.Parent != w.parent {
			t.Errorf("node %d: got id %d parent %d, want id %d parent %d",
				i, got.ID, got.Parent, w.id, w.parent)
		}
	}
}

func TestSWCRoundtrip(t *testing.T) {
	orig, err := ReadSWC(strings.NewReader(testSWC), 42)
	if err != nil {
		t.Fatalf("ReadSWC: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteSWC(&buf, orig); err != nil {
		t.Fatalf("WriteSWC: %v", err)
	}
	again, err := ReadSWC(&buf, 42)
	if err != nil {
		t.Fatalf("re-reading SWC: %v", err)
	}
	if len(again.Nodes) != len(orig.Nodes) {
		t.Fatalf("node count changed: %d != %d", len(again.Nodes), len(orig.Nodes))
	}
	for i := range orig.Nodes {
		if orig.Nodes[i] != again.Nodes[i] {
			t.Errorf("node %d changed: %+v != %+v", i, orig.Nodes[i], again.Nodes[i])
		}
	}
}
