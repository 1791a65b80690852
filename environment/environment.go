// Package environment implements Environment: an SCM over a designated
// action and reward variable, with a precomputed ground-truth
// feature/action -> expected-reward table used by the Monte-Carlo
// driver to score pseudo-regret. Grounded on
// original_source/src/environment.py.
package environment

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/exp/rand"

	"github.com/causalbandits/otpsim/graph"
	"github.com/causalbandits/otpsim/model"
	"github.com/causalbandits/otpsim/scm"
)

// Environment pairs an SCM with a designated action and reward
// variable, splitting into a full (observational) SCM and a
// post-intervention SCM used to compute ground-truth rewards.
type Environment struct {
	g       *graph.DAG
	full    *scm.SCM
	post    *scm.SCM
	actVar  string
	rewVar  string
	feat    []string // ancestors of actVar: the action's context variables
	domains map[string][]int

	// actionRewards maps a hash of a (feat ∪ {actVar}) assignment to
	// its average post-intervention reward, precomputed at
	// construction. Grounded on environment.py's get_action_rewards.
	actionRewards map[string]float64
	actionKeys    map[string]map[string]int
}

// New builds an Environment. actVar's model must be a *model.Action;
// every other node must have a generative model. iterations controls
// the Monte-Carlo sample count used to estimate each ground-truth
// feature/action reward (environment.py defaults to 1000).
func New(g *graph.DAG, models map[string]model.Model, actVar, rewVar string, rng *rand.Rand, iterations int) (*Environment, error) {
	if _, ok := models[actVar].(*model.Action); !ok {
		return nil, fmt.Errorf("environment.New: node %q's model must be a model.Action", actVar)
	}
	full, err := scm.New(g, models)
	if err != nil {
		return nil, fmt.Errorf("environment.New: %v", err)
	}
	feat, err := g.Ancestors(actVar)
	if err != nil {
		return nil, fmt.Errorf("environment.New: %v", err)
	}
	sort.Strings(feat)

	domains := make(map[string][]int, len(models))
	for n, m := range models {
		domains[n] = m.Domain()
	}

	postGraph := g
	for _, n := range append(append([]string{}, feat...), actVar) {
		postGraph, err = postGraph.Do(n)
		if err != nil {
			return nil, fmt.Errorf("environment.New: %v", err)
		}
	}
	postModels := make(map[string]model.Model, len(models))
	for n, m := range models {
		postModels[n] = m
	}
	for _, n := range feat {
		postModels[n] = model.NewAction(nil, domains[n])
	}
	postModels[actVar] = model.NewAction(nil, domains[actVar])
	post, err := scm.New(postGraph, postModels)
	if err != nil {
		return nil, fmt.Errorf("environment.New: %v", err)
	}

	env := &Environment{
		g: g, full: full, post: post,
		actVar: actVar, rewVar: rewVar, feat: feat, domains: domains,
	}
	if err := env.computeActionRewards(rng, iterations); err != nil {
		return nil, fmt.Errorf("environment.New: %v", err)
	}
	return env, nil
}

func (e *Environment) interventionVars() []string {
	return append(append([]string{}, e.feat...), e.actVar)
}

func hashAssignment(vars []string, a map[string]int) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = fmt.Sprintf("%s=%d", v, a[v])
	}
	return strings.Join(parts, ",")
}

func permutations(vars []string, domains map[string][]int) []map[string]int {
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

func (e *Environment) computeActionRewards(rng *rand.Rand, iterations int) error {
	vars := e.interventionVars()
	combos := permutations(vars, e.domains)
	e.actionRewards = make(map[string]float64, len(combos))
	e.actionKeys = make(map[string]map[string]int, len(combos))
	for _, p := range combos {
		total := 0.0
		for i := 0; i < iterations; i++ {
			sample, err := e.post.Sample(rng, p)
			if err != nil {
				return err
			}
			total += float64(sample[e.rewVar])
		}
		key := hashAssignment(vars, p)
		e.actionRewards[key] = total / float64(iterations)
		e.actionKeys[key] = p
	}
	return nil
}

// FeatureVars returns the action's context variables (its ancestors),
// sorted.
func (e *Environment) FeatureVars() []string { return e.feat }

// ActVar returns the designated action variable.
func (e *Environment) ActVar() string { return e.actVar }

// RewVar returns the designated reward variable.
func (e *Environment) RewVar() string { return e.rewVar }

// Domains returns every node's domain.
func (e *Environment) Domains() map[string][]int { return e.domains }

// Graph returns the original (non-intervened) DAG.
func (e *Environment) Graph() *graph.DAG { return e.g }

// SampleContext draws a fresh feature (context) assignment from the
// observational SCM, restricted to the action's ancestor variables.
func (e *Environment) SampleContext(rng *rand.Rand) (map[string]int, error) {
	full, err := e.full.Sample(rng, nil)
	if err != nil {
		return nil, fmt.Errorf("samplecontext: %v", err)
	}
	ctx := make(map[string]int, len(e.feat))
	for _, f := range e.feat {
		ctx[f] = full[f]
	}
	return ctx, nil
}

// Act samples a full assignment given a context and a chosen action,
// by intervening on every feature and the action variable.
func (e *Environment) Act(rng *rand.Rand, context map[string]int, action int) (map[string]int, error) {
	interventions := make(map[string]int, len(context)+1)
	for k, v := range context {
		interventions[k] = v
	}
	interventions[e.actVar] = action
	return e.post.Sample(rng, interventions)
}

// ActionReward returns the precomputed expected reward for a full
// feature+action assignment.
func (e *Environment) ActionReward(assignment map[string]int) (float64, bool) {
	key := hashAssignment(e.interventionVars(), assignment)
	v, ok := e.actionRewards[key]
	return v, ok
}

// OptimalActions returns every action value (given a feature context
// restricted by givens) that achieves the maximum precomputed reward.
// Grounded on environment.py's optimal_action_rewards/optimal_actions.
func (e *Environment) OptimalActions(givens map[string]int) ([]int, float64) {
	best := math.Inf(-1)
	var bestActions []int
	for key, a := range e.actionKeys {
		match := true
		for k, v := range givens {
			if a[k] != v {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		r := e.actionRewards[key]
		if r > best {
			best = r
			bestActions = []int{a[e.actVar]}
		} else if r == best {
			bestActions = append(bestActions, a[e.actVar])
		}
	}
	sort.Ints(bestActions)
	return bestActions, best
}

// OptimalReward returns the maximum precomputed expected reward given a
// (possibly empty) feature context.
func (e *Environment) OptimalReward(givens map[string]int) float64 {
	_, best := e.OptimalActions(givens)
	return best
}

// SelectionDiagram attaches an S-node to every node in children,
// delegating to the underlying graph.
func (e *Environment) SelectionDiagram(children []string) (*graph.DAG, error) {
	return e.g.SelectionDiagram(children)
}

// Randomize builds a new Environment over the same graph, with every
// node's model independently mutated with probability mutationChance
// (via scm.SCM.Randomize), then re-derives optimal-action rewards under
// the mutated models. Grounded on original_source/src/process.py's
// environment_generator, which perturbs a template environment's
// assignment models per agent to simulate divergent peer environments.
func (e *Environment) Randomize(rng *rand.Rand, mutationChance float64, iterations int) (*Environment, error) {
	mutated, err := e.full.Randomize(rng, mutationChance)
	if err != nil {
		return nil, fmt.Errorf("environment.Randomize: %v", err)
	}
	return New(e.g, mutated.Models(), e.actVar, e.rewVar, rng, iterations)
}
