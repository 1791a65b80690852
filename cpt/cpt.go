// Package cpt implements the CPT (conditional probability table) and
// the per-agent Knowledge Store built from them: a count table per
// observed non-action node plus a dedicated reward table with an
// enlarged parent set. Grounded on original_source/src/cpt.py.
package cpt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/causalbandits/otpsim/graph"
	"github.com/causalbandits/otpsim/query"
)

// Table is a count table for one variable, keyed by the full
// assignment of its parents plus itself. It implements
// query.Table (Count(map[string]int) float64) so it can be used
// directly as a CPT in query.Evaluate.
type Table struct {
	Var     string
	Parents []string
	rows    map[string]row
}

type row struct {
	assignment map[string]int
	count      float64
}

// keyVars returns Parents ∪ {Var}, sorted.
func (t *Table) keyVars() []string {
	vars := append([]string{t.Var}, t.Parents...)
	sort.Strings(vars)
	return vars
}

// NewTable builds an empty count table for var given its parent set.
func NewTable(variable string, parents []string) *Table {
	return &Table{
		Var:     variable,
		Parents: append([]string{}, parents...),
		rows:    make(map[string]row),
	}
}

func encodeKey(vars []string, assignment map[string]int) (string, bool) {
	parts := make([]string, len(vars))
	for i, v := range vars {
		val, ok := assignment[v]
		if !ok {
			return "", false
		}
		parts[i] = fmt.Sprintf("%s=%d", v, val)
	}
	return strings.Join(parts, ","), true
}

// Add increments the row matching sample's projection onto Parents ∪
// {Var} by one. sample must contain every key in Parents ∪ {Var}.
func (t *Table) Add(sample map[string]int) error {
	vars := t.keyVars()
	key, ok := encodeKey(vars, sample)
	if !ok {
		return fmt.Errorf("cpt.Add: sample missing one of %v", vars)
	}
	r, exists := t.rows[key]
	if !exists {
		proj := make(map[string]int, len(vars))
		for _, v := range vars {
			proj[v] = sample[v]
		}
		r = row{assignment: proj, count: 0}
	}
	r.count++
	t.rows[key] = r
	return nil
}

// Count returns the number of observations matching a (possibly
// partial) assignment over Parents ∪ {Var}: a point lookup when
// assignment names every key, a marginal sum over every row consistent
// with the given subset otherwise. Always succeeds (returns 0 for no
// matching rows) -- division-by-zero/Undefined handling lives in
// package query, not here.
func (t *Table) Count(assignment map[string]int) float64 {
	var total float64
	for _, r := range t.rows {
		match := true
		for k, v := range assignment {
			if rv, ok := r.assignment[k]; !ok || rv != v {
				match = false
				break
			}
		}
		if match {
			total += r.count
		}
	}
	return total
}

// Size returns the number of distinct rows observed.
func (t *Table) Size() int { return len(t.rows) }

// ParentAssignments returns every distinct assignment of Parents seen
// in an observation so far.
func (t *Table) ParentAssignments() []map[string]int {
	seen := make(map[string]map[string]int)
	for _, r := range t.rows {
		proj := make(map[string]int, len(t.Parents))
		for _, p := range t.Parents {
			proj[p] = r.assignment[p]
		}
		key, _ := encodeKey(t.Parents, proj)
		seen[key] = proj
	}
	out := make([]map[string]int, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	return out
}

// ProbVector returns the empirical distribution of Var over domain
// given a parent assignment, normalized to sum to 1. Returns nil if no
// observation matches the given parent assignment.
func (t *Table) ProbVector(domain []int, parentAssignment map[string]int) []float64 {
	counts := make([]float64, len(domain))
	var total float64
	for i, v := range domain {
		full := make(map[string]int, len(parentAssignment)+1)
		for k, vv := range parentAssignment {
			full[k] = vv
		}
		full[t.Var] = v
		c := t.Count(full)
		counts[i] = c
		total += c
	}
	if total == 0 {
		return nil
	}
	for i := range counts {
		counts[i] /= total
	}
	return counts
}

// IsEmpty reports whether no observation has ever been added.
func (t *Table) IsEmpty() bool { return len(t.rows) == 0 }

// Merge returns a new Table combining the counts of t and other, which
// must share the same Var and Parents.
func (t *Table) Merge(other *Table) (*Table, error) {
	if t.Var != other.Var {
		return nil, fmt.Errorf("cpt.Merge: var mismatch %q vs %q", t.Var, other.Var)
	}
	if !sameSet(t.Parents, other.Parents) {
		return nil, fmt.Errorf("cpt.Merge: parent mismatch %v vs %v", t.Parents, other.Parents)
	}
	out := NewTable(t.Var, t.Parents)
	for k, r := range t.rows {
		out.rows[k] = r
	}
	for k, r := range other.rows {
		existing, ok := out.rows[k]
		if ok {
			existing.count += r.count
			out.rows[k] = existing
		} else {
			out.rows[k] = r
		}
	}
	return out, nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if !seen[v] {
			return false
		}
	}
	return true
}

// Store is the per-agent knowledge store: one Table per observed
// non-action node, plus a dedicated reward Table whose parent set is
// {actVar} ∪ {ancestors of actVar not d-separated from rewVar given
// actVar} -- capturing every upstream variable the reward could
// plausibly depend on through a path that conditioning on the action
// alone doesn't block.
type Store struct {
	Tables map[string]*Table
	ActVar string
	RewVar string
}

// NewStore builds an empty Store from a graph and its designated
// action/reward variables.
func NewStore(g *graph.DAG, actVar, rewVar string) (*Store, error) {
	s := &Store{Tables: make(map[string]*Table), ActVar: actVar, RewVar: rewVar}
	for _, n := range g.Observed() {
		if n == actVar {
			continue
		}
		if n == rewVar {
			continue
		}
		pa, err := g.Parents(n)
		if err != nil {
			return nil, fmt.Errorf("cpt.NewStore: %v", err)
		}
		s.Tables[n] = NewTable(n, pa)
	}
	ancestors, err := g.Ancestors(actVar)
	if err != nil {
		return nil, fmt.Errorf("cpt.NewStore: %v", err)
	}
	var extra []string
	for _, a := range ancestors {
		sep, err := g.IsDSeparated(a, rewVar, []string{actVar})
		if err != nil {
			return nil, fmt.Errorf("cpt.NewStore: %v", err)
		}
		if !sep {
			extra = append(extra, a)
		}
	}
	sort.Strings(extra)
	rewParents := append([]string{actVar}, extra...)
	s.Tables[rewVar] = NewTable(rewVar, rewParents)
	return s, nil
}

// Observe adds a full sample to every owned table (each table reads
// only the keys relevant to it).
func (s *Store) Observe(sample map[string]int) error {
	for _, t := range s.Tables {
		if err := t.Add(sample); err != nil {
			return fmt.Errorf("store.Observe: %v", err)
		}
	}
	return nil
}

// Merge returns a new Store combining the receiver's tables with
// other's, table by table.
func (s *Store) Merge(other *Store) (*Store, error) {
	out := &Store{Tables: make(map[string]*Table, len(s.Tables)), ActVar: s.ActVar, RewVar: s.RewVar}
	for n, t := range s.Tables {
		ot, ok := other.Tables[n]
		if !ok {
			out.Tables[n] = t
			continue
		}
		merged, err := t.Merge(ot)
		if err != nil {
			return nil, fmt.Errorf("store.Merge: %v", err)
		}
		out.Tables[n] = merged
	}
	return out, nil
}

// AsCPTMap returns the Store's tables as a query.CPTMap suitable for
// query.Evaluate.
func (s *Store) AsCPTMap() query.CPTMap {
	out := make(query.CPTMap, len(s.Tables))
	for n, t := range s.Tables {
		out[n] = t
	}
	return out
}
