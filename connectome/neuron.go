package connectome

import "fmt"

// SkeletonNode is one sample of a neuron's skeletal tree.
type SkeletonNode struct {
	// ID is the backend-native sample identifier (SWC sample number,
	// CATMAID treenode id, ...).
	ID uint64

	// Pos is the node position in dataset-native units.
	Pos [3]float32

	// Radius at this node, in the same units as Pos.  Negative when the
	// backend reports no radius.
	Radius float32

	// Parent is the index of the parent node within Neuron.Nodes, or -1
	// for the root.
	Parent int64
}

// Neuron is the standardized per-neuron record.  Skeleton accessors populate
// Nodes; mesh accessors populate Vertices and Faces.
type Neuron struct {
	ID   uint64
	Name string

	// Skeletal representation: a rooted tree.
	Nodes []SkeletonNode

	// Mesh representation.
	Vertices [][3]float32
	Faces    [][3]uint32
}

// Root returns the index of the root node, or -1 if the neuron has no
// skeletal nodes.
func (n *Neuron) Root() int64 {
	for i, node := range n.Nodes {
		if node.Parent < 0 {
			return int64(i)
		}
	}
	return -1
}

// CheckTree verifies parent links form a rooted tree over Nodes: every
// parent index is in range and every node is reachable from a root, so
// cycles are rejected.
func (n *Neuron) CheckTree() error {
	children := make([][]int64, len(n.Nodes))
	var stack []int64
	for i, node := range n.Nodes {
		if node.Parent < 0 {
			stack = append(stack, int64(i))
			continue
		}
		if node.Parent >= int64(len(n.Nodes)) {
			return fmt.Errorf("node %d of neuron %d has parent index %d beyond %d nodes",
				i, n.ID, node.Parent, len(n.Nodes))
		}
		children[node.Parent] = append(children[node.Parent], int64(i))
	}
	if len(n.Nodes) > 0 && len(stack) == 0 {
		return fmt.Errorf("neuron %d has %d nodes but no root", n.ID, len(n.Nodes))
	}
	visited := 0
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited++
		stack = append(stack, children[i]...)
	}
	if visited != len(n.Nodes) {
		return fmt.Errorf("neuron %d has %d nodes unreachable from any root",
			n.ID, len(n.Nodes)-visited)
	}
	return nil
}

func (n *Neuron) String() string {
	if len(n.Nodes) > 0 {
		return fmt.Sprintf("neuron %d: %d skeleton nodes", n.ID, len(n.Nodes))
	}
	return fmt.Sprintf("neuron %d: %d vertices, %d faces", n.ID, len(n.Vertices), len(n.Faces))
}

// NeuronList is the standardized neuron-collection returned by skeleton and
// mesh accessors.
type NeuronList []*Neuron

// IDs returns the neuron ids in list order.
func (nl NeuronList) IDs() []uint64 {
	ids := make([]uint64, len(nl))
	for i, n := range nl {
		ids[i] = n.ID
	}
	return ids
}
