// Package kdag provides the build-time graph of a dataflow program.
//
// # Overview
//
// Nodes are operators, identified by id and described by their port
// declarations. Edges connect an output port of one operator to an input
// port of another. The package knows nothing about what operators compute;
// it only checks that the wiring is sound and derives the routing tables a
// program executes with.
//
// # Basic Usage
//
//	b := kdag.NewBuilder()
//	_ = b.AddOperator("in", "Input", in.Ports())
//	_ = b.AddOperator("ma", "MovingAverage", ma.Ports())
//	_ = b.Connect("in", "o1", "ma", "i1")
//
//	dag, err := b.Build()
//	if err != nil {
//	    return err
//	}
//	for _, e := range dag.Downstream("in", "o1") {
//	    // deliver to e.To / e.ToPort
//	}
//
// # Validation
//
// Connect verifies, per edge:
//
//   - **Endpoints**: both operators exist (ErrNodeNotFound)
//   - **Ports**: the source is an output and the target an input
//     (koperator.ErrUnknownPort)
//   - **Payload kinds**: both ports carry the same kind (ErrTypeMismatch)
//   - **Duplicates**: the same edge is not added twice (ErrEdgeAlreadyExists)
//
// Build then rejects cycles with ErrCycleDetected, reporting the offending
// path as "a -> b -> a", and enforces the size limits (MaxNodesPerDAG,
// MaxDepth, MaxChildrenPerNode).
//
// All validation errors use sentinel errors that can be checked with
// errors.Is().
//
// # Thread Safety
//
// IMPORTANT: Builder is NOT safe for concurrent use. The resulting DAG is
// immutable and safe to use concurrently.
package kdag
