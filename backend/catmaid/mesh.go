package catmaid

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/navis-org/connectomes/connectome"
	"github.com/navis-org/connectomes/dataset"
)

// MeshSource fetches CATMAID volume meshes exported as ASCII STL.
type MeshSource struct {
	client    *Client
	projectID int
}

// NewMeshSource binds a mesh accessor to a client and project.
func NewMeshSource(client *Client, projectID int) *MeshSource {
	return &MeshSource{client, projectID}
}

// Get implements dataset.MeshSource.
func (s *MeshSource) Get(ctx context.Context, ids ...uint64) (connectome.NeuronList, error) {
	neurons := make(connectome.NeuronList, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.get(ctx, fmt.Sprintf("%d/volumes/%d/export.stl", s.projectID, id), nil)
		if err != nil {
			return nil, fmt.Errorf("mesh %d: %w", id, err)
		}
		n, err := parseASCIISTL(data, id)
		if err != nil {
			return nil, fmt.Errorf("mesh %d: %v", id, err)
		}
		neurons = append(neurons, n)
	}
	return neurons, nil
}

// parseASCIISTL converts an ASCII STL export into a neuron mesh, merging
// duplicate vertices so faces share indices.
func parseASCIISTL(data []byte, id uint64) (*connectome.Neuron, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("solid")) {
		return nil, fmt.Errorf("not an ASCII STL export (%d bytes)", len(data))
	}
	n := &connectome.Neuron{ID: id}
	vertIdx := make(map[[3]float32]uint32)
	var face [3]uint32
	verts := 0

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] != "vertex" {
			continue
		}
		var v [3]float32
		for dim := 0; dim < 3; dim++ {
			f, err := strconv.ParseFloat(fields[1+dim], 32)
			if err != nil {
				return nil, fmt.Errorf("bad STL vertex: %v", err)
			}
			v[dim] = float32(f)
		}
		idx, found := vertIdx[v]
		if !found {
			idx = uint32(len(n.Vertices))
			vertIdx[v] = idx
			n.Vertices = append(n.Vertices, v)
		}
		face[verts%3] = idx
		verts++
		if verts%3 == 0 {
			n.Faces = append(n.Faces, face)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning STL: %v", err)
	}
	if verts == 0 || verts%3 != 0 {
		return nil, fmt.Errorf("STL export has %d vertices, not a multiple of 3", verts)
	}
	return n, nil
}

var _ dataset.MeshSource = (*MeshSource)(nil)
