// Package model implements AssignmentModel: the three node-level
// structural mechanisms a structural causal model is built from --
// Random (exogenous), Discrete (endogenous CPT lookup) and Action
// (intervention stub) -- as a small tagged interface rather than a
// class hierarchy, per the strategy-over-subclassing design note
// (spec.md §9). Grounded on original_source/src/assignment_models.py.
package model

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Model is a node's structural assignment function: how its value is
// drawn given its parents' values.
type Model interface {
	// Parents returns the node's parent variable names, in the order
	// Sample/Prob expect them.
	Parents() []string
	// Domain returns the node's possible values.
	Domain() []int
	// Sample draws a value given the current values of Parents().
	// parentValues must contain every name in Parents().
	Sample(rng *rand.Rand, parentValues map[string]int) (int, error)
	// Prob returns P(value | parentValues) and whether that row is
	// defined (false for a value outside the domain or, for Discrete, a
	// parent assignment with no table row; always false for Action,
	// which has no probability law of its own).
	Prob(value int, parentValues map[string]int) (float64, bool)
}

// Random is an exogenous, parentless categorical model.
type Random struct {
	probs []float64
}

// NewRandom validates probs sums to 1 (within tolerance) and builds a
// Random model over domain {0, ..., len(probs)-1}.
func NewRandom(probs []float64) (*Random, error) {
	if len(probs) == 0 {
		return nil, fmt.Errorf("newrandom: probs must be non-empty")
	}
	sum := 0.0
	for _, p := range probs {
		if p < 0 {
			return nil, fmt.Errorf("newrandom: negative probability %v", p)
		}
		sum += p
	}
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		return nil, fmt.Errorf("newrandom: probabilities sum to %v, want 1", sum)
	}
	cp := append([]float64{}, probs...)
	return &Random{probs: cp}, nil
}

func (r *Random) Parents() []string { return nil }

func (r *Random) Domain() []int {
	d := make([]int, len(r.probs))
	for i := range d {
		d[i] = i
	}
	return d
}

func (r *Random) Sample(rng *rand.Rand, _ map[string]int) (int, error) {
	return sampleCategorical(rng, r.probs), nil
}

func (r *Random) Prob(value int, _ map[string]int) (float64, bool) {
	if value < 0 || value >= len(r.probs) {
		return 0, false
	}
	return r.probs[value], true
}

// Randomize returns a new Random model with a fresh simplex point drawn
// from a uniform-concentration Dirichlet distribution over the same
// domain size.
func (r *Random) Randomize(rng *rand.Rand) *Random {
	probs := dirichletSimplex(rng, len(r.probs))
	cp, _ := NewRandom(probs)
	return cp
}

// Discrete is an endogenous model with a full conditional probability
// table keyed by parent assignment.
type Discrete struct {
	parents []string
	domain  []int
	table   map[string][]float64
}

// NewDiscrete validates that every row of table sums to 1 and has one
// entry per domain value (row keys join parent values in parents
// order). It does not check that table has a row for every parent
// combination: a parent assignment with no row makes Sample return an
// error and Prob report the row as undefined.
func NewDiscrete(parents []string, domain []int, table map[string][]float64) (*Discrete, error) {
	if len(parents) == 0 {
		return nil, fmt.Errorf("newdiscrete: parents must be non-empty")
	}
	for key, row := range table {
		sum := 0.0
		for _, p := range row {
			sum += p
		}
		if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
			return nil, fmt.Errorf("newdiscrete: row %q sums to %v, want 1", key, sum)
		}
		if len(row) != len(domain) {
			return nil, fmt.Errorf("newdiscrete: row %q has %d entries, want %d (domain size)", key, len(row), len(domain))
		}
	}
	cpTable := make(map[string][]float64, len(table))
	for k, v := range table {
		cpTable[k] = append([]float64{}, v...)
	}
	return &Discrete{
		parents: append([]string{}, parents...),
		domain:  append([]int{}, domain...),
		table:   cpTable,
	}, nil
}

func (d *Discrete) Parents() []string { return d.parents }

func (d *Discrete) Domain() []int { return d.domain }

// RowKey builds the table key for a given parent assignment, in
// Discrete's own parent order.
func (d *Discrete) RowKey(parentValues map[string]int) (string, error) {
	parts := make([]string, len(d.parents))
	for i, p := range d.parents {
		v, ok := parentValues[p]
		if !ok {
			return "", fmt.Errorf("rowkey: missing parent %q", p)
		}
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ","), nil
}

func (d *Discrete) row(parentValues map[string]int) ([]float64, error) {
	key, err := d.RowKey(parentValues)
	if err != nil {
		return nil, fmt.Errorf("discrete: %v", err)
	}
	row, ok := d.table[key]
	if !ok {
		return nil, fmt.Errorf("discrete: no row for parent assignment %s", key)
	}
	return row, nil
}

func (d *Discrete) Sample(rng *rand.Rand, parentValues map[string]int) (int, error) {
	row, err := d.row(parentValues)
	if err != nil {
		return 0, err
	}
	return d.domain[sampleCategorical(rng, row)], nil
}

func (d *Discrete) Prob(value int, parentValues map[string]int) (float64, bool) {
	row, err := d.row(parentValues)
	if err != nil {
		return 0, false
	}
	for i, v := range d.domain {
		if v == value {
			return row[i], true
		}
	}
	return 0, false
}

// Randomize returns a new Discrete with every row replaced by an
// independent uniform-concentration Dirichlet draw, keeping the same
// parent structure and domain.
func (d *Discrete) Randomize(rng *rand.Rand) *Discrete {
	newTable := make(map[string][]float64, len(d.table))
	keys := make([]string, 0, len(d.table))
	for k := range d.table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		newTable[k] = dirichletSimplex(rng, len(d.domain))
	}
	cp, _ := NewDiscrete(d.parents, d.domain, newTable)
	return cp
}

// Action is a stub model for an action node: it has no probability law
// of its own and cannot be sampled directly. An Environment/SCM instead
// reads its value from an externally supplied intervention map (see
// package scm).
type Action struct {
	parents []string
	domain  []int
}

// NewAction builds an Action model.
func NewAction(parents []string, domain []int) *Action {
	return &Action{parents: append([]string{}, parents...), domain: append([]int{}, domain...)}
}

func (a *Action) Parents() []string { return a.parents }

func (a *Action) Domain() []int { return a.domain }

func (a *Action) Sample(*rand.Rand, map[string]int) (int, error) {
	return 0, fmt.Errorf("action: has no generative model; its value must be supplied by an intervention")
}

func (a *Action) Prob(int, map[string]int) (float64, bool) {
	return 0, false
}

func sampleCategorical(rng *rand.Rand, probs []float64) int {
	u := rng.Float64()
	cum := 0.0
	for i, p := range probs {
		cum += p
		if u < cum {
			return i
		}
	}
	return len(probs) - 1
}

// dirichletSimplex draws one point from a symmetric Dirichlet(1,...,1)
// distribution of the given dimension, using gonum's distuv.Dirichlet.
func dirichletSimplex(rng *rand.Rand, n int) []float64 {
	alpha := make([]float64, n)
	for i := range alpha {
		alpha[i] = 1
	}
	dir := distuv.Dirichlet{Alpha: alpha, Src: rng}
	return dir.Rand(nil)
}
