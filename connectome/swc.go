package connectome

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SWC sample rows are "id type x y z radius parent" with '#' comments.
// This is the interchange format neuPrint and DVID keyvalue instances use
// for skeletons.

// ReadSWC parses an SWC stream into a neuron with the given id.  Parent
// references are rewritten from sample numbers to node indices.
func ReadSWC(r io.Reader, id uint64) (*Neuron, error) {
	n := &Neuron{ID: id}
	sampleIdx := make(map[uint64]int64)
	parents := []int64{} // parent sample per node, -1 for root

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 7 {
			return nil, fmt.Errorf("SWC line %d has %d fields, expected 7: %q", lineNum, len(fields), line)
		}
		sample, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad SWC sample id on line %d: %v", lineNum, err)
		}
		var pos [3]float32
		for dim := 0; dim < 3; dim++ {
			f, err := strconv.ParseFloat(fields[2+dim], 32)
			if err != nil {
				return nil, fmt.Errorf("bad SWC coordinate on line %d: %v", lineNum, err)
			}
			pos[dim] = float32(f)
		}
		radius, err := strconv.ParseFloat(fields[5], 32)
		if err != nil {
			return nil, fmt.Errorf("bad SWC radius on line %d: %v", lineNum, err)
		}
		parent, err := strconv.ParseInt(fields[6], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad SWC parent on line %d: %v", lineNum, err)
		}
		sampleIdx[sample] = int64(len(n.Nodes))
		n.Nodes = append(n.Nodes, SkeletonNode{
			ID:     sample,
			Pos:    pos,
			Radius: float32(radius),
		})
		parents = append(parents, parent)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SWC: %v", err)
	}

	for i, parent := range parents {
		if parent < 0 {
			n.Nodes[i].Parent = -1
			continue
		}
		idx, found := sampleIdx[uint64(parent)]
		if !found {
			return nil, fmt.Errorf("SWC node %d references unknown parent sample %d", n.Nodes[i].ID, parent)
		}
		n.Nodes[i].Parent = idx
	}
	return n, nil
}

// WriteSWC serializes a neuron's skeletal nodes as SWC.  Nodes with a zero
// ID get their 1-based index as sample number; parent references use the
// emitted numbers so the output stays self-consistent.
func WriteSWC(w io.Writer, n *Neuron) error {
	samples := make([]uint64, len(n.Nodes))
	for i, node := range n.Nodes {
		samples[i] = node.ID
		if samples[i] == 0 {
			samples[i] = uint64(i + 1)
		}
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# neuron %d\n", n.ID)
	for i, node := range n.Nodes {
		parent := int64(-1)
		if node.Parent >= 0 {
			parent = int64(samples[node.Parent])
		}
		fmt.Fprintf(bw, "%d 0 %g %g %g %g %d\n", samples[i],
			node.Pos[0], node.Pos[1], node.Pos[2], node.Radius, parent)
	}
	return bw.Flush()
}

// ParseSWC is a []byte convenience wrapper around ReadSWC.
func ParseSWC(data []byte, id uint64) (*Neuron, error) {
	return ReadSWC(bytes.NewReader(data), id)
}
