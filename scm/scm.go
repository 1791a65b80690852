// Package scm composes model.Models over a graph.DAG into a structural
// causal model: ancestral topological sampling, with set (intervened)
// nodes pulling their value from an externally supplied assignment
// instead of their own model. Grounded on original_source/src/scm.py,
// with sampling order computed via gonum's graph/topo.Sort (as in
// graph.DAG.TopologicalOrder).
package scm

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/causalbandits/otpsim/graph"
	"github.com/causalbandits/otpsim/model"
)

// SCM is an immutable pairing of a DAG and one Model per non-S-node.
type SCM struct {
	g      *graph.DAG
	models map[string]model.Model
	order  []string
}

// New validates that models has an entry for every observed/set node
// of the DAG (S-nodes and latent points need none; extra entries are
// not rejected) and that each
// model's declared parents match the DAG's parent set for that node.
func New(g *graph.DAG, models map[string]model.Model) (*SCM, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("scm.New: %v", err)
	}
	var filtered []string
	for _, n := range order {
		kind, err := g.Kind(n)
		if err != nil {
			return nil, fmt.Errorf("scm.New: %v", err)
		}
		if kind == graph.SNodeKind || kind == graph.LatentKind {
			continue
		}
		filtered = append(filtered, n)
		m, ok := models[n]
		if !ok {
			return nil, fmt.Errorf("scm.New: no model for node %q", n)
		}
		pa, err := g.Parents(n)
		if err != nil {
			return nil, fmt.Errorf("scm.New: %v", err)
		}
		if !sameSet(pa, m.Parents()) {
			return nil, fmt.Errorf("scm.New: model for %q declares parents %v, DAG has %v", n, m.Parents(), pa)
		}
	}
	return &SCM{g: g, models: models, order: filtered}, nil
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

// Graph returns the underlying DAG.
func (s *SCM) Graph() *graph.DAG { return s.g }

// Sample draws a full assignment in topological order. interventions
// supplies the value for every set (intervened) node; a set node
// missing from interventions is a programmer error and panics,
// mirroring the teacher's contract-violation convention
// (experiment/savers/Return.go's Track panic on non-sequential
// timesteps).
func (s *SCM) Sample(rng *rand.Rand, interventions map[string]int) (map[string]int, error) {
	assignment := make(map[string]int, len(s.order))
	for _, n := range s.order {
		kind, err := s.g.Kind(n)
		if err != nil {
			return nil, fmt.Errorf("scm.Sample: %v", err)
		}
		if kind == graph.SetKind {
			v, ok := interventions[n]
			if !ok {
				panic(fmt.Sprintf("scm.Sample: set-node %q has no supplied intervention value", n))
			}
			assignment[n] = v
			continue
		}
		m := s.models[n]
		v, err := m.Sample(rng, assignment)
		if err != nil {
			return nil, fmt.Errorf("scm.Sample: %v", err)
		}
		assignment[n] = v
	}
	return assignment, nil
}

// Prob returns the joint probability of a full assignment, factorized
// over the topological order: ∏ P(node | Pa(node)).
func (s *SCM) Prob(assignment map[string]int) (float64, bool) {
	result := 1.0
	for _, n := range s.order {
		kind, err := s.g.Kind(n)
		if err != nil || kind == graph.SetKind {
			continue
		}
		m := s.models[n]
		v, ok := assignment[n]
		if !ok {
			return 0, false
		}
		p, ok := m.Prob(v, assignment)
		if !ok {
			return 0, false
		}
		result *= p
	}
	return result, true
}

// Randomize returns a new SCM with every node mutated with probability
// mutationChance (0 leaves the model untouched, 1 always mutates),
// drawing fresh per-row Dirichlet simplex points. Grounded on
// original_source/src/process.py's environment_generator node-mutation
// gating.
func (s *SCM) Randomize(rng *rand.Rand, mutationChance float64) (*SCM, error) {
	newModels := make(map[string]model.Model, len(s.models))
	for n, m := range s.models {
		if rng.Float64() >= mutationChance {
			newModels[n] = m
			continue
		}
		switch mm := m.(type) {
		case *model.Random:
			newModels[n] = mm.Randomize(rng)
		case *model.Discrete:
			newModels[n] = mm.Randomize(rng)
		default:
			newModels[n] = m
		}
	}
	return New(s.g, newModels)
}

// Models returns the node -> Model mapping (read-only use; callers must
// not mutate the returned map).
func (s *SCM) Models() map[string]model.Model { return s.models }

// TopologicalOrder returns the non-S-node sampling order.
func (s *SCM) TopologicalOrder() []string { return s.order }
