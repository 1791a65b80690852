package graph

import (
	"fmt"

	"gonum.org/v1/gonum/graph/topo"
)

// TopologicalOrder returns a topological ordering of every node
// (including latent points, which always sort before their children).
// Acyclicity is already enforced at AddEdge time, so this only fails if
// the caller somehow routed around AddEdge.
func (d *DAG) TopologicalOrder() ([]string, error) {
	nodes, err := topo.Sort(d.g)
	if err != nil {
		return nil, fmt.Errorf("topologicalorder: %v", err)
	}
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = d.name[n.ID()]
	}
	return out, nil
}
