package query

import "sort"

// evalExpr dispatches to the concrete type's evalAssigned without
// expanding anything: it is the internal fully-assigned path, and the
// expansion of unassigned variables via Over happens in Evaluate.
func evalExpr(e Expr, cpts CPTMap) (float64, bool) {
	switch v := e.(type) {
	case *Query:
		return v.evalAssigned(cpts)
	case *Product:
		return v.evalAssigned(cpts)
	case *Summation:
		return v.evalAssigned(cpts)
	case *Quotient:
		return v.evalAssigned(cpts)
	default:
		return 0, false
	}
}

// Evaluate computes the numeric value of e against cpts. If e still has
// unassigned variables, it is first expanded via Over(domains) into a
// Summation of fully-assigned copies (marginalization), per spec.md
// §4.2's evaluation algorithm. Returns ok=false (Undefined) if any
// denominator along the way is zero or a referenced variable has no
// Table.
func Evaluate(e Expr, cpts CPTMap, domains map[string][]int) (float64, bool) {
	if !e.AllAssigned() {
		e = expand(e, domains)
	}
	if !e.AllAssigned() {
		// domains didn't cover every unassigned var: genuinely
		// unresolvable.
		return 0, false
	}
	return evalExpr(e, cpts)
}

// expand wraps e in a Summation of copies, one per combination of
// values in the cartesian product of domains[v] for every v in
// e.UnassignedVars() that domains actually covers. Vars with no domain
// entry are left unassigned (Evaluate then reports Undefined).
// Grounded on query.py's Queries.over/over_helper.
func expand(e Expr, domains map[string][]int) Expr {
	unassigned := e.UnassignedVars()
	var resolvable []string
	for _, v := range unassigned {
		if _, ok := domains[v]; ok {
			resolvable = append(resolvable, v)
		}
	}
	if len(resolvable) == 0 {
		return e
	}
	sort.Strings(resolvable)
	combos := cartesian(resolvable, domains)
	terms := make([]Expr, len(combos))
	for i, combo := range combos {
		cp := e.Copy()
		for v, val := range combo {
			cp.Assign(v, val)
		}
		terms[i] = cp
	}
	return &Summation{Terms: terms}
}

// cartesian returns the cartesian product of domains[v] for each v in
// vars, as a slice of assignments.
func cartesian(vars []string, domains map[string][]int) []map[string]int {
	combos := []map[string]int{{}}
	for _, v := range vars {
		var next []map[string]int
		for _, c := range combos {
			for _, val := range domains[v] {
				nc := make(map[string]int, len(c)+1)
				for k, vv := range c {
					nc[k] = vv
				}
				nc[v] = val
				next = append(next, nc)
			}
		}
		combos = next
	}
	return combos
}
