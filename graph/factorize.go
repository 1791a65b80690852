package graph

import (
	"fmt"

	"github.com/causalbandits/otpsim/query"
)

// FromCPTs re-expresses q's query variable as a product of CPT
// factors: one atomic, unassigned P(node|parents(node)) term per node
// in the ancestral support of q's query variable -- the variable
// itself plus every one of its ancestors -- ordered topologically.
// Grounded on cgm.py's get_node_distributions, restricted to the
// ancestral closure of the target per spec.md's from_cpts.
func (d *DAG) FromCPTs(q *query.Query) (*query.Product, error) {
	target := q.Var()
	if !d.Has(target) {
		return nil, errUnknown("fromcpts", target)
	}
	anc, err := d.Ancestors(target)
	if err != nil {
		return nil, fmt.Errorf("fromcpts: %v", err)
	}
	support := make(map[string]bool, len(anc)+1)
	support[target] = true
	for _, n := range anc {
		support[n] = true
	}

	order, err := d.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("fromcpts: %v", err)
	}
	var factors []query.Expr
	for _, n := range order {
		if !support[n] {
			continue
		}
		pa, err := d.Parents(n)
		if err != nil {
			return nil, fmt.Errorf("fromcpts: %v", err)
		}
		e := make(map[string]int, len(pa))
		for _, p := range pa {
			e[p] = query.Unassigned
		}
		factors = append(factors, query.New(map[string]int{n: query.Unassigned}, e))
	}
	return query.NewProduct(factors...), nil
}
