package chunkedgraph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/navis-org/connectomes/connectome"
)

func testClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "fly_v31", append(opts, WithHTTPClient(srv.Client()))...)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLeaves(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != userAgent {
			t.Errorf("bad User-Agent header: %q", got)
		}
		switch r.URL.Path {
		case "/segmentation/api/v1/table/fly_v31/node/720575940621039145/leaves":
			fmt.Fprint(w, `{"leaf_ids": [81493862, 81493863, 82107031]}`)
		default:
			http.NotFound(w, r)
		}
	})

	leaves, err := client.Leaves(context.Background(), 720575940621039145)
	if err != nil {
		t.Fatalf("Leaves: %v", err)
	}
	if len(leaves) != 3 || leaves[0] != 81493862 || leaves[2] != 82107031 {
		t.Errorf("bad leaves: %v", leaves)
	}

	_, err = client.Leaves(context.Background(), 42)
	if !errors.Is(err, connectome.ErrNeuronNotFound) {
		t.Errorf("missing root: expected ErrNeuronNotFound, got %v", err)
	}
}

func TestLeavesCache(t *testing.T) {
	var hits int64
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		fmt.Fprint(w, `{"leaf_ids": [101, 102]}`)
	}, WithLeavesCache(t.TempDir()))

	for i := 0; i < 3; i++ {
		leaves, err := client.Leaves(context.Background(), 720575940621039145)
		if err != nil {
			t.Fatalf("Leaves #%d: %v", i+1, err)
		}
		if len(leaves) != 2 || leaves[0] != 101 || leaves[1] != 102 {
			t.Errorf("bad leaves on call %d: %v", i+1, leaves)
		}
	}
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Errorf("expected 1 backend hit with persistent cache, got %d", got)
	}
}

func TestMeshGet(t *testing.T) {
	// Fragment files live in a local file:// bucket.
	dir := t.TempDir()
	frag1 := connectome.EncodeNGMesh(&connectome.Neuron{
		Vertices: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:    [][3]uint32{{0, 1, 2}},
	})
	frag2 := connectome.EncodeNGMesh(&connectome.Neuron{
		Vertices: [][3]float32{{5, 5, 5}, {6, 5, 5}, {5, 6, 5}},
		Faces:    [][3]uint32{{0, 1, 2}},
	})
	if err := os.WriteFile(filepath.Join(dir, "frag_a"), frag1, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "frag_b"), frag2, 0644); err != nil {
		t.Fatal(err)
	}

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/meshing/api/v1/table/fly_v31/manifest/720575940621039145:0":
			if got := r.URL.Query().Get("verify"); got != "1" {
				t.Errorf("bad verify param: %q", got)
			}
			fmt.Fprint(w, `{"fragments": ["frag_a", "frag_b"]}`)
		case "/meshing/api/v1/table/fly_v31/manifest/43:0":
			fmt.Fprint(w, `{"fragments": []}`)
		default:
			http.NotFound(w, r)
		}
	})
	src := NewMeshSource(client, "file://"+dir)
	defer src.Close()

	neurons, err := src.Get(context.Background(), 720575940621039145)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	n := neurons[0]
	if len(n.Vertices) != 6 || len(n.Faces) != 2 {
		t.Fatalf("bad assembled mesh: %d vertices, %d faces", len(n.Vertices), len(n.Faces))
	}
	// The second fragment's face indices shift past the first's vertices.
	if n.Faces[1] != [3]uint32{3, 4, 5} {
		t.Errorf("fragment faces not offset: %v", n.Faces[1])
	}

	// An empty manifest means the root has no mesh.
	_, err = src.Get(context.Background(), 43)
	if !errors.Is(err, connectome.ErrNeuronNotFound) {
		t.Errorf("empty manifest: expected ErrNeuronNotFound, got %v", err)
	}
}
