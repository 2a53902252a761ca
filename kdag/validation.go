package kdag

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Validation limits to prevent pathological cases
const (
	MaxNodesPerDAG     = 10000
	MaxDepth           = 500
	MaxChildrenPerNode = 1000
)

// Validate performs all topology validations. Programs deliver messages
// depth-first within one tick, so a cycle would never quiesce and is
// rejected.
func (g *Graph) Validate() error {
	// Check size limits
	if len(g.Nodes) > MaxNodesPerDAG {
		return fmt.Errorf("%w: node count %d exceeds maximum %d",
			ErrInvalidTopology, len(g.Nodes), MaxNodesPerDAG)
	}

	if err := g.detectCycles(); err != nil {
		return fmt.Errorf("DAG validation failed: %w", err)
	}

	return nil
}

// detectCycles uses Depth-First Search (DFS) to find cycles in the DAG.
// Returns ErrCycleDetected if any cycle is found.
// Time complexity: O(V + E) where V is vertices and E is edges.
func (g *Graph) detectCycles() error {
	visited := make(map[NodeID]bool, len(g.Nodes))
	recStack := make(map[NodeID]bool, len(g.Nodes))

	var dfs func(NodeID, []NodeID, int) error
	dfs = func(nodeID NodeID, path []NodeID, depth int) error {
		if depth > MaxDepth {
			return fmt.Errorf("%w: maximum depth %d exceeded", ErrInvalidTopology, MaxDepth)
		}

		visited[nodeID] = true
		recStack[nodeID] = true
		path = append(path, nodeID)

		for _, e := range g.Nodes[nodeID].Children {
			if !visited[e.To] {
				if err := dfs(e.To, path, depth+1); err != nil {
					return err
				}
			} else if recStack[e.To] {
				// Cycle detected!
				cyclePath := append(path, e.To)
				pathStr := make([]string, len(cyclePath))
				for i, id := range cyclePath {
					pathStr[i] = string(id)
				}
				return fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(pathStr, " -> "))
			}
		}

		recStack[nodeID] = false
		return nil
	}

	// Insertion order keeps the reported cycle deterministic.
	for _, nodeID := range g.NodeOrder {
		if !visited[nodeID] {
			if err := dfs(nodeID, nil, 0); err != nil {
				return err
			}
		}
	}

	return nil
}

// Reachable returns the set of nodes reachable from the given node,
// including the node itself.
func (g *Graph) Reachable(from NodeID) map[NodeID]bool {
	reachable := make(map[NodeID]bool, len(g.Nodes))
	g.markReachable(from, reachable)
	return reachable
}

// Unreachable returns, sorted, the nodes that no message entering at from
// can ever reach.
func (g *Graph) Unreachable(from NodeID) []NodeID {
	reachable := g.Reachable(from)
	var orphans []NodeID
	for nodeID := range g.Nodes {
		if !reachable[nodeID] {
			orphans = append(orphans, nodeID)
		}
	}
	slices.Sort(orphans) // Deterministic result
	return orphans
}

// markReachable recursively marks all nodes reachable from the given node.
func (g *Graph) markReachable(nodeID NodeID, reachable map[NodeID]bool) {
	node, ok := g.Nodes[nodeID]
	if !ok || reachable[nodeID] {
		return
	}

	reachable[nodeID] = true
	for _, e := range node.Children {
		g.markReachable(e.To, reachable)
	}
}

// insertSorted inserts an item into a sorted slice maintaining sort order.
// This is more efficient than repeatedly sorting the entire slice.
// Time complexity: O(log n + n) for binary search + insert.
func insertSorted(slice []NodeID, item NodeID) []NodeID {
	idx := sort.Search(len(slice), func(i int) bool {
		return slice[i] >= item
	})
	return slices.Insert(slice, idx, item)
}

// TopologicalSort creates a deterministic topological ordering using Kahn's
// algorithm; ties are broken by node id.
// Time complexity: O(V log V + E) where V is vertices and E is edges.
func (g *Graph) TopologicalSort() ([]NodeID, error) {
	inDegree := make(map[NodeID]int, len(g.Nodes))
	for nodeID := range g.Nodes {
		inDegree[nodeID] = 0
	}
	for _, node := range g.Nodes {
		for _, e := range node.Children {
			inDegree[e.To]++
		}
	}

	// Queue of nodes with no incoming edges
	// Use sorted slice for deterministic ordering
	queue := make([]NodeID, 0, len(g.Nodes)/4)
	for nodeID, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, nodeID)
		}
	}
	slices.Sort(queue)

	result := make([]NodeID, 0, len(g.Nodes))
	for len(queue) > 0 {
		nodeID := queue[0]
		queue = queue[1:]
		result = append(result, nodeID)

		for _, e := range g.Nodes[nodeID].Children {
			inDegree[e.To]--
			if inDegree[e.To] == 0 {
				// Insert in sorted position instead of appending and sorting entire queue
				queue = insertSorted(queue, e.To)
			}
		}
	}

	// If we didn't process all nodes, there must be a cycle
	if len(result) != len(g.Nodes) {
		return nil, fmt.Errorf("%w: topological sort failed", ErrCycleDetected)
	}

	return result, nil
}
