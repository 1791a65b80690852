package graph

import "fmt"

// Do returns a new DAG representing the post-intervention graph
// do(node): every incoming observed edge into node is removed, every
// latent edge incident to node is removed, and node's kind becomes
// SetKind. Grounded on cgm.py's `do`.
func (d *DAG) Do(node string) (*DAG, error) {
	if !d.Has(node) {
		return nil, errUnknown("do", node)
	}
	out := d.clone()
	nid := out.id[node]

	var toRemove [][2]int64
	it := out.g.To(nid)
	for it.Next() {
		pid := it.Node().ID()
		pname := out.name[pid]
		if out.kind[pname] == LatentKind {
			toRemove = append(toRemove, [2]int64{pid, nid})
			// a latent point has exactly two children; drop the whole
			// point by also removing its edge to the other child.
			ot := out.g.From(pid)
			for ot.Next() {
				other := ot.Node().ID()
				if other != nid {
					toRemove = append(toRemove, [2]int64{pid, other})
				}
			}
		} else {
			toRemove = append(toRemove, [2]int64{pid, nid})
		}
	}
	for _, e := range toRemove {
		out.g.RemoveEdge(e[0], e[1])
	}
	out.kind[node] = SetKind
	return out, nil
}

// SelectionDiagram returns a new DAG with a fresh S-node attached as a
// parent of each node in children, marking them as potentially
// transport-divergent between source and target domains (cgm.py's
// `selection_diagram`).
func (d *DAG) SelectionDiagram(children []string) (*DAG, error) {
	for _, c := range children {
		if !d.Has(c) {
			return nil, errUnknown("selectiondiagram", c)
		}
	}
	out := d.clone()
	for _, c := range children {
		if _, err := out.AddSNode(c); err != nil {
			return nil, fmt.Errorf("selectiondiagram: %v", err)
		}
	}
	return out, nil
}

// FactorizedForm returns a human-readable P(node|parents) line per
// observed node in topological order, e.g. for documentation/tests.
// Grounded on cgm.py's `get_distribution`/`get_node_distributions`.
func (d *DAG) FactorizedForm() ([]string, error) {
	order, err := d.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("factorizedform: %v", err)
	}
	var out []string
	for _, n := range order {
		if d.kind[n] == SNodeKind || d.kind[n] == LatentKind {
			continue
		}
		pa, err := d.Parents(n)
		if err != nil {
			return nil, fmt.Errorf("factorizedform: %v", err)
		}
		if len(pa) == 0 {
			out = append(out, fmt.Sprintf("P(%s)", n))
			continue
		}
		line := fmt.Sprintf("P(%s|", n)
		for i, p := range pa {
			if i > 0 {
				line += ","
			}
			line += p
		}
		line += ")"
		out = append(out, line)
	}
	return out, nil
}
