package kdag

// DAG is a validated, immutable program graph.
type DAG struct {
	graph      *Graph
	order      []NodeID
	downstream map[NodeID]map[string][]Edge
}

// Order returns the nodes in deterministic topological order.
func (d *DAG) Order() []NodeID {
	out := make([]NodeID, len(d.order))
	copy(out, d.order)
	return out
}

// Downstream returns the edges leaving the given output port, in the order
// they were added.
func (d *DAG) Downstream(id NodeID, port string) []Edge {
	return d.downstream[id][port]
}

// GetGraph returns the underlying graph.
func (d *DAG) GetGraph() *Graph {
	return d.graph
}

// Node returns a node by ID if it exists.
func (d *DAG) Node(id NodeID) (*Node, bool) {
	node, ok := d.graph.Nodes[id]
	return node, ok
}
