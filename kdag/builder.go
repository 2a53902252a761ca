package kdag

import (
	"errors"
	"slices"

	"github.com/birdayz/kflow/koperator"
)

// Builder constructs a program graph.
//
// IMPORTANT: Builder is NOT safe for concurrent use. The resulting DAG is
// immutable and safe to use concurrently.
type Builder struct {
	graph *Graph
}

// NewBuilder creates a new DAG builder.
func NewBuilder() *Builder {
	return &Builder{
		graph: NewGraph(),
	}
}

// AddOperator adds a node for an operator with the given id, type name and
// port declarations.
func (b *Builder) AddOperator(id, typeName string, ports []koperator.PortSpec) error {
	return b.graph.AddNode(&Node{
		ID:    NodeID(id),
		Type:  typeName,
		Ports: slices.Clone(ports),
	})
}

// Connect adds an edge from an output port to an input port.
func (b *Builder) Connect(from, fromPort, to, toPort string) error {
	return b.graph.AddEdge(Edge{
		From:     NodeID(from),
		FromPort: fromPort,
		To:       NodeID(to),
		ToPort:   toPort,
	})
}

// Build validates and finalizes the DAG.
func (b *Builder) Build() (*DAG, error) {
	if err := b.graph.Validate(); err != nil {
		return nil, err
	}

	order, err := b.graph.TopologicalSort()
	if err != nil {
		return nil, err
	}

	downstream := make(map[NodeID]map[string][]Edge, len(b.graph.Nodes))
	for _, e := range b.graph.Edges {
		ports, ok := downstream[e.From]
		if !ok {
			ports = make(map[string][]Edge)
			downstream[e.From] = ports
		}
		ports[e.FromPort] = append(ports[e.FromPort], e)
	}

	return &DAG{
		graph:      b.graph,
		order:      order,
		downstream: downstream,
	}, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *DAG {
	dag, err := b.Build()
	if err != nil {
		panic(err)
	}
	return dag
}

// GetGraph returns the underlying graph for read-only access.
func (b *Builder) GetGraph() *Graph {
	return b.graph
}

// GetNode returns a node by ID if it exists.
func (b *Builder) GetNode(id NodeID) (*Node, bool) {
	node, ok := b.graph.Nodes[id]
	return node, ok
}

// Sentinel errors for common failure cases.
var (
	ErrNodeAlreadyExists = errors.New("operator already exists")
	ErrNodeNotFound      = errors.New("unknown operator")
	ErrEdgeAlreadyExists = errors.New("connection already exists")
	ErrCycleDetected     = errors.New("cycle detected in DAG")
	ErrInvalidNodeID     = errors.New("invalid operator id")
	ErrTypeMismatch      = errors.New("connection type mismatch")
	ErrInvalidTopology   = errors.New("invalid topology")
)
