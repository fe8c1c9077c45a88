package connectome

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Neuroglancer legacy mesh fragment format: a uint32 vertex count, then
// that many little-endian float32 xyz triples, then uint32 index triples
// until the end of the buffer.  DVID keyvalue mesh instances and graphene
// meshing services both serve this format.

// DecodeNGMeshFragment appends the vertices and faces of one fragment to
// the neuron's mesh arrays.
func DecodeNGMeshFragment(data []byte, n *Neuron) error {
	if len(data) < 4 {
		return fmt.Errorf("mesh fragment too short: %d bytes", len(data))
	}
	numVerts := binary.LittleEndian.Uint32(data)
	vertBytes := int(numVerts) * 12
	if len(data) < 4+vertBytes {
		return fmt.Errorf("mesh fragment truncated: %d vertices need %d bytes, have %d",
			numVerts, 4+vertBytes, len(data))
	}
	faceBytes := len(data) - 4 - vertBytes
	if faceBytes%12 != 0 {
		return fmt.Errorf("mesh fragment has %d trailing face bytes, not a multiple of 12", faceBytes)
	}

	base := uint32(len(n.Vertices))
	pos := 4
	for i := uint32(0); i < numVerts; i++ {
		var v [3]float32
		for dim := 0; dim < 3; dim++ {
			bits := binary.LittleEndian.Uint32(data[pos:])
			v[dim] = math.Float32frombits(bits)
			pos += 4
		}
		n.Vertices = append(n.Vertices, v)
	}
	numFaces := faceBytes / 12
	for i := 0; i < numFaces; i++ {
		var f [3]uint32
		for c := 0; c < 3; c++ {
			idx := binary.LittleEndian.Uint32(data[pos:])
			if idx >= numVerts {
				return fmt.Errorf("mesh face references vertex %d of %d", idx, numVerts)
			}
			f[c] = base + idx
			pos += 4
		}
		n.Faces = append(n.Faces, f)
	}
	return nil
}

// EncodeNGMesh serializes a neuron's mesh as a single legacy-format fragment.
func EncodeNGMesh(n *Neuron) []byte {
	buf := make([]byte, 4+len(n.Vertices)*12+len(n.Faces)*12)
	binary.LittleEndian.PutUint32(buf, uint32(len(n.Vertices)))
	pos := 4
	for _, v := range n.Vertices {
		for dim := 0; dim < 3; dim++ {
			binary.LittleEndian.PutUint32(buf[pos:], math.Float32bits(v[dim]))
			pos += 4
		}
	}
	for _, f := range n.Faces {
		for c := 0; c < 3; c++ {
			binary.LittleEndian.PutUint32(buf[pos:], f[c])
			pos += 4
		}
	}
	return buf
}
