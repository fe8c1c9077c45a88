package neuprint

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/navis-org/connectomes/connectome"
	"github.com/navis-org/connectomes/dataset"
)

const testSWC = `# neuPrint skeleton export
1 0 100.0 200.0 300.0 5.5 -1
2 0 110.0 200.0 300.0 4.0 1
3 0 120.0 205.0 300.0 3.0 2
`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, "hemibrain:v1.2.1", "")
	if err != nil {
		t.Fatal(err)
	}
	c.SetHTTPClient(srv.Client())
	return c
}

// unsignedJWT builds a JWT-shaped token with the given expiry, unsigned since
// checkToken never verifies signatures.
func unsignedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	enc := func(v interface{}) string {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		return base64.RawURLEncoding.EncodeToString(data)
	}
	header := enc(map[string]string{"alg": "none", "typ": "JWT"})
	claims := enc(map[string]interface{}{"email": "someone@janelia.hhmi.org", "exp": exp.Unix()})
	return header + "." + claims + "."
}

func TestCheckToken(t *testing.T) {
	if err := checkToken(unsignedJWT(t, time.Now().Add(24*time.Hour))); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
	if err := checkToken(unsignedJWT(t, time.Now().Add(-time.Hour))); err == nil {
		t.Error("expected error for expired token")
	} else if !strings.Contains(err.Error(), "expired") {
		t.Errorf("expired token error should say so: %v", err)
	}
	if err := checkToken("not-a-jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestNewClientRejectsExpiredToken(t *testing.T) {
	if _, err := NewClient("https://neuprint.janelia.org", "hemibrain:v1.2.1",
		unsignedJWT(t, time.Now().Add(-time.Hour))); err == nil {
		t.Error("expected constructor to fail on expired token")
	}
}

func TestSkeletonGet(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != userAgent {
			t.Errorf("bad User-Agent header: %q", got)
		}
		switch r.URL.Path {
		case "/api/skeletons/skeleton/hemibrain:v1.2.1/1003442":
			if got := r.URL.Query().Get("format"); got != "swc" {
				t.Errorf("bad format param: %q", got)
			}
			w.Write([]byte(testSWC))
		default:
			http.NotFound(w, r)
		}
	})
	src := NewSkeletonSource(client)

	neurons, err := src.Get(context.Background(), 1003442)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	n := neurons[0]
	if n.ID != 1003442 || len(n.Nodes) != 3 || n.Root() != 0 {
		t.Errorf("bad neuron: %+v", n)
	}

	_, err = src.Get(context.Background(), 42)
	if !errors.Is(err, connectome.ErrNeuronNotFound) {
		t.Errorf("missing body: expected ErrNeuronNotFound, got %v", err)
	}
}

func TestAnnotationFind(t *testing.T) {
	var gotCypher string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/custom/custom" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Cypher  string `json:"cypher"`
			Dataset string `json:"dataset"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatal(err)
		}
		if req.Dataset != "hemibrain:v1.2.1" {
			t.Errorf("bad dataset: %q", req.Dataset)
		}
		gotCypher = req.Cypher
		fmt.Fprint(w, `{
  "columns": ["n.bodyId", "n.instance", "n.type"],
  "data": [
    [1003442, "DA1 lPN_R", "DA1_lPN"],
    [1029843, null, "DA1_lPN"]
  ]
}`)
	})
	src := NewAnnotationSource(client)

	records, err := src.Find(context.Background(), dataset.AnnotationQuery{Type: "DA1_lPN"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !strings.Contains(gotCypher, `n.type = "DA1_lPN"`) {
		t.Errorf("type criterion missing from cypher: %s", gotCypher)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0] != (dataset.AnnotationRecord{ID: 1003442, Name: "DA1 lPN_R", Type: "DA1_lPN"}) {
		t.Errorf("bad record: %+v", records[0])
	}
	// Null instance stays empty rather than failing the row.
	if records[1].ID != 1029843 || records[1].Name != "" {
		t.Errorf("bad null handling: %+v", records[1])
	}

	if _, err := src.Find(context.Background(), dataset.AnnotationQuery{
		Name: "lPN", IDs: []uint64{1003442},
	}); err != nil {
		t.Fatalf("Find with ids: %v", err)
	}
	if !strings.Contains(gotCypher, `n.instance CONTAINS "lPN"`) ||
		!strings.Contains(gotCypher, "n.bodyId IN [1003442]") {
		t.Errorf("criteria missing from cypher: %s", gotCypher)
	}
}

// neuPrint has no CATMAID-style annotation terms, so AnnotatedWith must
// error instead of being dropped from the Cypher query.
func TestAnnotationFindAnnotatedWithUnsupported(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	})

	_, err := NewAnnotationSource(client).Find(context.Background(),
		dataset.AnnotationQuery{AnnotatedWith: []string{"glomerulus DA1"}})
	if !errors.Is(err, connectome.ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented, got %v", err)
	}
}

func TestConnectivityEdges(t *testing.T) {
	var gotCypher string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/custom/custom" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Cypher string `json:"cypher"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatal(err)
		}
		gotCypher = req.Cypher
		fmt.Fprint(w, `{
  "columns": ["a.bodyId", "b.bodyId", "c.weight"],
  "data": [
    [1003442, 1029843, 42],
    [1003442, 5813032595, 7]
  ]
}`)
	})
	src := NewConnectivitySource(client)

	edges, err := src.Edges(context.Background(), []uint64{1003442}, []uint64{1029843, 5813032595})
	if err != nil {
		t.Fatalf("Edges: %v", err)
	}
	if !strings.Contains(gotCypher, "a.bodyId IN [1003442]") ||
		!strings.Contains(gotCypher, "b.bodyId IN [1029843, 5813032595]") ||
		!strings.Contains(gotCypher, "ConnectsTo") {
		t.Errorf("criteria missing from cypher: %s", gotCypher)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
	if edges[0] != (dataset.Edge{Source: 1003442, Target: 1029843, Weight: 42}) {
		t.Errorf("bad edge: %+v", edges[0])
	}

	// Leaving targets open drops the b-side constraint.
	if _, err := src.Edges(context.Background(), []uint64{1003442}, nil); err != nil {
		t.Fatalf("open-sided Edges: %v", err)
	}
	if strings.Contains(gotCypher, "b.bodyId IN") {
		t.Errorf("unconstrained side leaked into cypher: %s", gotCypher)
	}

	if _, err := src.Edges(context.Background(), nil, nil); err == nil {
		t.Error("expected error for empty connectivity query")
	}
}

func TestCypherString(t *testing.T) {
	if got := cypherString(`say "hi"\now`); got != `"say \"hi\"\\now"` {
		t.Errorf("bad quoting: %s", got)
	}
}

func TestServerError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": "neo4j is down"}`)
	})
	_, err := NewAnnotationSource(client).Find(context.Background(), dataset.AnnotationQuery{})
	if !errors.Is(err, connectome.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "neo4j is down") {
		t.Errorf("server message lost: %v", err)
	}
}
