package chunkedgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/navis-org/connectomes/connectome"
	"github.com/navis-org/connectomes/dataset"
)

// MeshSource fetches dynamic meshes: a manifest from the meshing service
// lists legacy-format fragment files which live in a cloud bucket.
type MeshSource struct {
	client  *Client
	meshRef string // bucket URL holding fragment files

	mu     sync.Mutex
	bucket *blob.Bucket
	prefix string
}

// NewMeshSource binds a mesh accessor to a client and the bucket holding
// its mesh fragments, e.g. "gs://flywire_v141_m655".
func NewMeshSource(client *Client, meshRef string) *MeshSource {
	return &MeshSource{client: client, meshRef: strings.TrimRight(meshRef, "/")}
}

func (s *MeshSource) openBucket(ctx context.Context) (*blob.Bucket, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucket == nil {
		// file:// URLs name the bucket root directly; other schemes may
		// carry an in-bucket path.
		schemeEnd := strings.Index(s.meshRef, "://")
		bucketURL, prefix := s.meshRef, ""
		if schemeEnd >= 0 && s.meshRef[:schemeEnd] != "file" {
			rest := s.meshRef[schemeEnd+3:]
			if slash := strings.Index(rest, "/"); slash >= 0 {
				bucketURL = s.meshRef[:schemeEnd+3] + rest[:slash]
				prefix = rest[slash+1:]
			}
		}
		bucket, err := blob.OpenBucket(ctx, bucketURL)
		if err != nil {
			return nil, "", connectome.WrapBackendErr(err, "opening mesh bucket %q", bucketURL)
		}
		s.bucket = bucket
		s.prefix = prefix
	}
	return s.bucket, s.prefix, nil
}

// Get implements dataset.MeshSource.
func (s *MeshSource) Get(ctx context.Context, ids ...uint64) (connectome.NeuronList, error) {
	neurons := make(connectome.NeuronList, 0, len(ids))
	for _, id := range ids {
		n, err := s.getOne(ctx, id)
		if err != nil {
			return nil, err
		}
		neurons = append(neurons, n)
	}
	return neurons, nil
}

func (s *MeshSource) getOne(ctx context.Context, id uint64) (*connectome.Neuron, error) {
	path := fmt.Sprintf("/meshing/api/v1/table/%s/manifest/%d:0?verify=1",
		s.client.table, id)
	notFound := fmt.Errorf("mesh %d: %w", id, connectome.ErrNeuronNotFound)
	data, err := s.client.get(ctx, path, notFound)
	if err != nil {
		return nil, err
	}
	var manifest struct {
		Fragments []string `json:"fragments"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("error decoding mesh manifest for %d: %v", id, err)
	}
	if len(manifest.Fragments) == 0 {
		return nil, notFound
	}

	bucket, prefix, err := s.openBucket(ctx)
	if err != nil {
		return nil, err
	}
	t := connectome.NewTimeLog()
	n := &connectome.Neuron{ID: id}
	for _, frag := range manifest.Fragments {
		// Fragment names may be escaped paths relative to the bucket.
		name, err := url.PathUnescape(strings.TrimLeft(frag, "~/"))
		if err != nil {
			name = frag
		}
		if prefix != "" {
			name = prefix + "/" + name
		}
		data, err := bucket.ReadAll(ctx, name)
		if err != nil {
			if gcerrors.Code(err) == gcerrors.NotFound {
				return nil, fmt.Errorf("mesh %d fragment %q missing: %w", id, frag,
					connectome.ErrBackendUnavailable)
			}
			return nil, connectome.WrapBackendErr(err, "reading mesh fragment %q", frag)
		}
		if err := connectome.DecodeNGMeshFragment(data, n); err != nil {
			return nil, fmt.Errorf("mesh %d fragment %q: %v", id, frag, err)
		}
	}
	t.Infof("assembled mesh %d from %d fragments (%d vertices)", id,
		len(manifest.Fragments), len(n.Vertices))
	return n, nil
}

// Close releases the fragment bucket.
func (s *MeshSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucket != nil {
		err := s.bucket.Close()
		s.bucket = nil
		return err
	}
	return nil
}

var _ dataset.MeshSource = (*MeshSource)(nil)
