package graph

import "sort"

// powerset returns every subset of items, as a slice of slices,
// including the empty subset. Grounded on cgm.py's `_powerset`.
func powerset(items []string) [][]string {
	n := len(items)
	out := make([][]string, 0, 1<<uint(n))
	for mask := 0; mask < (1 << uint(n)); mask++ {
		var subset []string
		for i := 0; i < n; i++ {
			if mask&(1<<uint(i)) != 0 {
				subset = append(subset, items[i])
			}
		}
		out = append(out, subset)
	}
	return out
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func subtract(all []string, remove ...[]string) []string {
	rm := make(map[string]bool)
	for _, r := range remove {
		for _, v := range r {
			rm[v] = true
		}
	}
	var out []string
	for _, v := range all {
		if !rm[v] {
			out = append(out, v)
		}
	}
	return out
}

// backdoorPaths returns every simple path between x and y (over the
// full undirected skeleton, latent points included) whose first step
// out of x enters x via an incoming edge -- i.e. every path starting
// with an arrow into x.
func (d *DAG) backdoorPaths(x, y string) [][]string {
	var out [][]string
	for _, p := range d.allSimplePaths(x, y) {
		if len(p) > 2 && d.edge(p[1], x) {
			out = append(out, p)
		}
	}
	return out
}

// ValidBackdoorAdjustmentSet reports whether z satisfies the backdoor
// criterion for estimating the effect of x on y. Grounded on cgm.py's
// `is_valid_backdoor_adjustment_set`.
func (d *DAG) ValidBackdoorAdjustmentSet(x, y string, z []string) (bool, error) {
	if !d.Has(x) || !d.Has(y) {
		return false, errUnknown("validbackdooradjustmentset", x+"/"+y)
	}
	if contains(z, x) || contains(z, y) {
		return false, nil
	}
	desc, err := d.Descendants(x)
	if err != nil {
		return false, err
	}
	descSet := make(map[string]bool, len(desc))
	for _, n := range desc {
		descSet[n] = true
	}
	for _, zz := range z {
		if descSet[zz] {
			return false, nil
		}
	}
	zset := make(map[string]bool, len(z))
	for _, n := range z {
		zset[n] = true
	}
	for _, p := range d.backdoorPaths(x, y) {
		if !d.blocked(p, zset) {
			return false, nil
		}
	}
	return true, nil
}

// BackdoorAdjustmentSets returns every valid backdoor adjustment set
// for estimating the effect of x on y, as a sorted list of sorted
// variable lists. The empty adjustment set is represented by an empty
// (non-nil) []string entry when valid.
func (d *DAG) BackdoorAdjustmentSets(x, y string) ([][]string, error) {
	desc, err := d.Descendants(x)
	if err != nil {
		return nil, err
	}
	candidates := subtract(d.Observed(), []string{x}, []string{y}, desc)
	sort.Strings(candidates)
	var valid [][]string
	for _, s := range powerset(candidates) {
		ok, err := d.ValidBackdoorAdjustmentSet(x, y, s)
		if err != nil {
			return nil, err
		}
		if ok {
			sorted := append([]string{}, s...)
			sort.Strings(sorted)
			valid = append(valid, sorted)
		}
	}
	return valid, nil
}

// ValidFrontdoorAdjustmentSet reports whether z satisfies the frontdoor
// criterion for estimating the effect of x on y. Grounded on cgm.py's
// `is_valid_frontdoor_adjustment_set`.
func (d *DAG) ValidFrontdoorAdjustmentSet(x, y string, z []string) (bool, error) {
	for _, p := range d.directedPaths(x, y) {
		hit := false
		for _, zz := range z {
			if contains(p, zz) {
				hit = true
				break
			}
		}
		if !hit {
			return false, nil
		}
	}
	for _, zz := range z {
		rest := subtract(z, []string{zz})
		zset := make(map[string]bool, len(rest))
		for _, n := range rest {
			zset[n] = true
		}
		for _, p := range d.backdoorPaths(x, zz) {
			if !d.blocked(p, zset) {
				return false, nil
			}
		}
	}
	for _, zz := range z {
		ok, err := d.ValidBackdoorAdjustmentSet(zz, y, []string{x})
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// directedPaths returns every simple directed path from x to y,
// following only forward observed/set/s-node edges.
func (d *DAG) directedPaths(x, y string) [][]string {
	var out [][]string
	visited := map[string]bool{x: true}
	var walk func(cur string, path []string)
	walk = func(cur string, path []string) {
		if cur == y {
			cp := append([]string{}, path...)
			out = append(out, cp)
			return
		}
		children, _ := d.Children(cur)
		for _, c := range children {
			if visited[c] {
				continue
			}
			visited[c] = true
			walk(c, append(path, c))
			visited[c] = false
		}
	}
	walk(x, []string{x})
	return out
}

// FrontdoorAdjustmentSets returns every valid frontdoor adjustment set
// for estimating the effect of x on y.
func (d *DAG) FrontdoorAdjustmentSets(x, y string) ([][]string, error) {
	candidates := subtract(d.Observed(), []string{x}, []string{y})
	sort.Strings(candidates)
	var valid [][]string
	for _, s := range powerset(candidates) {
		ok, err := d.ValidFrontdoorAdjustmentSet(x, y, s)
		if err != nil {
			return nil, err
		}
		if ok {
			sorted := append([]string{}, s...)
			sort.Strings(sorted)
			valid = append(valid, sorted)
		}
	}
	return valid, nil
}

// IsDirectlyTransportable reports whether none of the graph's S-nodes
// affect y once all set-nodes have been intervened on, i.e. whether the
// post-intervention distribution of y is source/target-invariant.
// Grounded on cgm.py's `is_directly_transportable`.
func (d *DAG) IsDirectlyTransportable(y string, z []string) (bool, error) {
	s := d.SNodes()
	if len(s) == 0 {
		return true, nil
	}
	doSet, err := d.doSetNodes()
	if err != nil {
		return false, err
	}
	cond := append(append([]string{}, z...), d.SetNodes()...)
	for _, sn := range s {
		ok, err := doSet.IsDSeparated(sn, y, cond)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (d *DAG) doSetNodes() (*DAG, error) {
	out := d
	var err error
	for _, n := range d.SetNodes() {
		out, err = out.Do(n)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AdjustmentSets returns candidate transport adjustment sets: backdoor
// sets when z is non-empty, backdoor ∪ frontdoor sets otherwise.
// Grounded on cgm.py's `get_adjustment_sets`.
func (d *DAG) AdjustmentSets(x, y string, z []string) ([][]string, error) {
	bd, err := d.BackdoorAdjustmentSets(x, y)
	if err != nil {
		return nil, err
	}
	if len(z) > 0 {
		return bd, nil
	}
	fd, err := d.FrontdoorAdjustmentSets(x, y)
	if err != nil {
		return nil, err
	}
	return append(bd, fd...), nil
}

func isSubset(sub, super []string) bool {
	set := make(map[string]bool, len(super))
	for _, v := range super {
		set[v] = true
	}
	for _, v := range sub {
		if !set[v] {
			return false
		}
	}
	return true
}

// IsTriviallyTransportable reports whether some adjustment set for x,y
// contains z as a subset. Grounded on cgm.py's `is_trivially_transportable`.
func (d *DAG) IsTriviallyTransportable(x, y string, z []string) (bool, error) {
	sets, err := d.AdjustmentSets(x, y, z)
	if err != nil {
		return false, err
	}
	for _, s := range sets {
		if isSubset(z, s) {
			return true, nil
		}
	}
	return false, nil
}

// ShortestTrivTranspAdjSet returns the smallest adjustment set for x,y
// that contains z as a subset, or nil if none exists.
func (d *DAG) ShortestTrivTranspAdjSet(x, y string, z []string) ([]string, error) {
	sets, err := d.AdjustmentSets(x, y, z)
	if err != nil {
		return nil, err
	}
	var shortest []string
	best := -1
	for _, s := range sets {
		if !isSubset(z, s) {
			continue
		}
		if best == -1 || len(s) < best {
			shortest = s
			best = len(s)
		}
	}
	return shortest, nil
}

// TransportTerm is one atomic query (Q given E) in a TransportFormula
// product. Q and E name the free variables of that term; the consumer
// (package agent) resolves these against a domains map via
// query.Query/query.Product/query.Over.
type TransportTerm struct {
	Q []string
	E []string
}

// TransportFormula is an ordered product of TransportTerms representing
// a trivial-transportability adjustment formula. Grounded on cgm.py's
// `triv_transp_adj_formula`.
type TransportFormula struct {
	Terms []TransportTerm
}

// BuildTransportFormula derives the trivial-transportability adjustment
// formula for estimating the effect of x on y given z, using the
// shortest adjustment set found by ShortestTrivTranspAdjSet. Returns
// ok=false if no such adjustment set exists.
func (d *DAG) BuildTransportFormula(x, y string, z []string) (TransportFormula, bool, error) {
	adj, err := d.ShortestTrivTranspAdjSet(x, y, z)
	if err != nil {
		return TransportFormula{}, false, err
	}
	if adj == nil {
		return TransportFormula{}, false, nil
	}
	ss := subtract(adj, z)
	sort.Strings(ss)
	zsorted := append([]string{}, z...)
	sort.Strings(zsorted)

	first := TransportTerm{Q: []string{y}, E: append(append([]string{x}, ss...), zsorted...)}
	formula := TransportFormula{Terms: []TransportTerm{first}}
	if len(ss) > 0 {
		formula.Terms = append(formula.Terms, TransportTerm{Q: ss, E: zsorted})
	}
	return formula, true, nil
}
