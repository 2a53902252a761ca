package kdag

import (
	"fmt"
	"strings"

	"github.com/birdayz/kflow/koperator"
)

// NodeID is a strongly-typed identifier for graph nodes.
// NodeIDs must be non-empty and cannot contain whitespace.
type NodeID string

// Validate checks if the NodeID is valid.
// Returns ErrInvalidNodeID if the ID is empty or contains whitespace.
func (id NodeID) Validate() error {
	if id == "" {
		return fmt.Errorf("%w: NodeID cannot be empty", ErrInvalidNodeID)
	}
	if strings.ContainsAny(string(id), " \t\n\r") {
		return fmt.Errorf("%w: NodeID %q cannot contain whitespace", ErrInvalidNodeID, id)
	}
	return nil
}

// Edge connects an output port of one node to an input port of another.
type Edge struct {
	From     NodeID
	FromPort string
	To       NodeID
	ToPort   string
}

func (e Edge) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", e.From, e.FromPort, e.To, e.ToPort)
}

// Node is the build-time representation of an operator: its identity and
// port declarations. The operator itself is owned by the program.
type Node struct {
	ID    NodeID
	Type  string
	Ports []koperator.PortSpec

	// Parents holds incoming edges, Children outgoing ones, both in
	// insertion order.
	Parents  []Edge
	Children []Edge
}

// Port returns the port declaration with the given name.
func (n *Node) Port(name string) (koperator.PortSpec, bool) {
	for _, p := range n.Ports {
		if p.Name == name {
			return p, true
		}
	}
	return koperator.PortSpec{}, false
}

// HasControlInputs reports whether any port of n is a control input.
func (n *Node) HasControlInputs() bool {
	for _, p := range n.Ports {
		if p.Class == koperator.ControlInput {
			return true
		}
	}
	return false
}

// ValidateDownstream checks that fromPort of n can feed toPort of child:
// the first must be an output, the second an input, both carrying the same
// payload kind.
func (n *Node) ValidateDownstream(fromPort string, child *Node, toPort string) error {
	out, ok := n.Port(fromPort)
	if !ok || out.Class != koperator.Output {
		return fmt.Errorf("%w: %s has no output %q", koperator.ErrUnknownPort, n.ID, fromPort)
	}
	in, ok := child.Port(toPort)
	if !ok || !in.IsInput() {
		return fmt.Errorf("%w: %s has no input %q", koperator.ErrUnknownPort, child.ID, toPort)
	}
	if out.Type != in.Type {
		return fmt.Errorf("%w: %s.%s emits %s but %s.%s expects %s",
			ErrTypeMismatch, n.ID, fromPort, out.Type, child.ID, toPort, in.Type)
	}
	return nil
}

// Graph is the build-time program graph.
// It contains only structural information - no runtime behavior.
type Graph struct {
	Nodes map[NodeID]*Node

	// Deterministic node ordering (insertion order)
	NodeOrder []NodeID

	// Edges in insertion order.
	Edges []Edge
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:     make(map[NodeID]*Node),
		NodeOrder: make([]NodeID, 0),
	}
}

// AddNode adds a node to the graph.
func (g *Graph) AddNode(node *Node) error {
	if err := node.ID.Validate(); err != nil {
		return err
	}
	if _, exists := g.Nodes[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrNodeAlreadyExists, node.ID)
	}
	if len(g.Nodes) >= MaxNodesPerDAG {
		return fmt.Errorf("%w: node count exceeds maximum %d", ErrInvalidTopology, MaxNodesPerDAG)
	}
	g.Nodes[node.ID] = node
	g.NodeOrder = append(g.NodeOrder, node.ID)
	return nil
}

// AddEdge adds a directed edge between two ports.
// Validates port compatibility before adding.
func (g *Graph) AddEdge(e Edge) error {
	parent, ok := g.Nodes[e.From]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, e.From)
	}
	child, ok := g.Nodes[e.To]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, e.To)
	}

	if err := parent.ValidateDownstream(e.FromPort, child, e.ToPort); err != nil {
		return fmt.Errorf("cannot connect %s: %w", e, err)
	}
	for _, existing := range parent.Children {
		if existing == e {
			return fmt.Errorf("%w: %s", ErrEdgeAlreadyExists, e)
		}
	}
	if len(parent.Children) >= MaxChildrenPerNode {
		return fmt.Errorf("%w: node %s has more than %d children",
			ErrInvalidTopology, e.From, MaxChildrenPerNode)
	}

	parent.Children = append(parent.Children, e)
	child.Parents = append(child.Parents, e)
	g.Edges = append(g.Edges, e)
	return nil
}
