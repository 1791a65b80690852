// Package agent implements the base Agent and its four action-selection
// rules (ASRs). Each agent owns its own cpt.Store, a back-reference to
// the shared DataBank and the Environment it acts in, and an
// observational transport policy (OTP) expressed as a Strategy value
// rather than a subclass (spec.md §9 design note). Grounded on
// original_source/src/agent.py, with the teacher's Agent interface
// split into Learner/Policy roles (agent/Agent.go, since replaced by
// this package's own Agent/Strategy split) as the model for composing
// small role interfaces instead of a class hierarchy.
package agent

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/causalbandits/otpsim/cpt"
	"github.com/causalbandits/otpsim/databank"
	"github.com/causalbandits/otpsim/environment"
	"github.com/causalbandits/otpsim/query"
	"github.com/causalbandits/otpsim/utils/floatutils"
)

// ASR is an action-selection rule.
type ASR int

const (
	EG ASR = iota // epsilon-greedy
	EF            // epsilon-first
	ED            // epsilon-decreasing
	TS            // Thompson sampling
)

func (a ASR) String() string {
	switch a {
	case EG:
		return "EG"
	case EF:
		return "EF"
	case ED:
		return "ED"
	case TS:
		return "TS"
	default:
		return "unknown"
	}
}

// Strategy is an observational transport policy: how an agent builds
// the CPT view it reasons over. Optional behaviour (a different
// expected-reward or Thompson-sampling rule) is picked up via the
// rewardEvaluator/thompsonSampler type assertions below rather than a
// larger interface every strategy must implement, matching the base
// Agent's "common fields, strategy is a field" split (spec.md §9).
type Strategy interface {
	// Name is the OTP tag (Solo/Naive/Sensitive/Adjust), matching
	// agent.py's get_otp.
	Name() string
	// GetCPTs returns the knowledge store this strategy reasons over,
	// built from the agent's own store plus whatever peer data the
	// policy is willing to pool.
	GetCPTs(a *Agent) (*cpt.Store, error)
}

// rewardEvaluator is implemented by strategies overriding the default
// expected-reward computation (Adjust).
type rewardEvaluator interface {
	ExpectedReward(a *Agent, own *cpt.Store, action int, context map[string]int) (float64, bool)
}

// thompsonSampler is implemented by strategies overriding the default
// Thompson-sampling rule (Adjust).
type thompsonSampler interface {
	ThompsonSample(a *Agent, context map[string]int) (int, bool)
}

// Agent is a single learner embedded in its own SCM-backed Environment,
// pooling peer evidence according to its Strategy and selecting actions
// according to its ASR.
type Agent struct {
	rng      *rand.Rand
	Name     string
	Env      *environment.Environment
	Bank     *databank.DataBank
	Store    *cpt.Store
	Strategy Strategy

	ActVar string
	RewVar string

	Tau         float64
	Asr         ASR
	Epsilon     float64 // scalar epsilon used by EG
	RandTrials  int
	CoolingRate float64

	actDom []int
	rewDom []int

	rewQuery query.Expr

	efRemaining map[string]int
	edEpsilon   map[string]float64

	last map[string]int
}

// New builds an Agent, registers its Store with bank, and precomputes
// the reward query used by the base expected-reward rule: the product,
// over every node on the causal path from actVar to rewVar, of that
// node's own conditional distribution. Grounded on cpt.py's
// Knowledge.get_rew_query.
func New(rng *rand.Rand, name string, env *environment.Environment, bank *databank.DataBank, strategy Strategy, tau float64, asr ASR, epsilon float64, randTrials int, coolingRate float64) (*Agent, error) {
	store, err := cpt.NewStore(env.Graph(), env.ActVar(), env.RewVar())
	if err != nil {
		return nil, fmt.Errorf("agent.New: %v", err)
	}
	rewQuery, err := buildRewQuery(env.Graph(), env.ActVar(), env.RewVar())
	if err != nil {
		return nil, fmt.Errorf("agent.New: %v", err)
	}
	a := &Agent{
		rng:         rng,
		Name:        name,
		Env:         env,
		Bank:        bank,
		Store:       store,
		Strategy:    strategy,
		ActVar:      env.ActVar(),
		RewVar:      env.RewVar(),
		Tau:         tau,
		Asr:         asr,
		Epsilon:     epsilon,
		RandTrials:  randTrials,
		CoolingRate: coolingRate,
		actDom:      env.Domains()[env.ActVar()],
		rewDom:      env.Domains()[env.RewVar()],
		rewQuery:    rewQuery,
		efRemaining: make(map[string]int),
		edEpsilon:   make(map[string]float64),
	}
	bank.AddAgent(name, store)
	return a, nil
}

type causalGraph interface {
	CausalPath(a, b string) ([]string, error)
	Parents(n string) ([]string, error)
}

func buildRewQuery(g causalGraph, actVar, rewVar string) (query.Expr, error) {
	path, err := g.CausalPath(actVar, rewVar)
	if err != nil {
		return nil, err
	}
	factors := make([]query.Expr, 0, len(path))
	for _, n := range path {
		pa, err := g.Parents(n)
		if err != nil {
			return nil, err
		}
		e := make(map[string]int, len(pa))
		for _, p := range pa {
			e[p] = query.Unassigned
		}
		factors = append(factors, query.New(map[string]int{n: query.Unassigned}, e))
	}
	return query.NewProduct(factors...), nil
}

// Recent returns the most recently observed full sample.
func (a *Agent) Recent() map[string]int { return a.last }

// GetOTP returns the agent's OTP tag.
func (a *Agent) GetOTP() string { return a.Strategy.Name() }

// IndVarValue returns the current value of one of the Process
// independent-variable knobs, mirroring agent.py's get_ind_var_value.
func (a *Agent) IndVarValue(name string) interface{} {
	switch name {
	case "tau":
		return a.Tau
	case "otp":
		return a.GetOTP()
	case "asr":
		return a.Asr
	case "epsilon":
		return a.Epsilon
	case "rand_trials":
		return a.RandTrials
	case "cooling_rate":
		return a.CoolingRate
	default:
		return ""
	}
}

func ctxKey(context map[string]int) string {
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, context[k])
	}
	return strings.Join(parts, ",")
}

// Act draws a context, chooses an action under the agent's ASR,
// observes the resulting sample and folds it into the agent's own
// Store. Grounded on agent.py's Agent.act.
func (a *Agent) Act() (map[string]int, error) {
	context, err := a.Env.SampleContext(a.rng)
	if err != nil {
		return nil, fmt.Errorf("agent.Act: %v", err)
	}
	action := a.choose(context)
	sample, err := a.Env.Act(a.rng, context, action)
	if err != nil {
		return nil, fmt.Errorf("agent.Act: %v", err)
	}
	if err := a.Store.Observe(sample); err != nil {
		return nil, fmt.Errorf("agent.Act: %v", err)
	}
	a.last = sample
	return sample, nil
}

// choose dispatches on the agent's ASR. Grounded on agent.py's Agent.choose.
func (a *Agent) choose(context map[string]int) int {
	switch a.Asr {
	case EG:
		if a.rng.Float64() < a.Epsilon {
			return a.chooseRandom()
		}
		return a.chooseOptimalOrRandom(context)
	case EF:
		key := ctxKey(context)
		if _, seen := a.efRemaining[key]; !seen {
			a.efRemaining[key] = a.RandTrials
		}
		if a.efRemaining[key] > 0 {
			a.efRemaining[key]--
			return a.chooseRandom()
		}
		return a.chooseOptimalOrRandom(context)
	case ED:
		key := ctxKey(context)
		eps, ok := a.edEpsilon[key]
		if !ok {
			eps = 1
		}
		roll := a.rng.Float64() < eps
		a.edEpsilon[key] = floatutils.Clip(eps*a.CoolingRate, 0, 1)
		if roll {
			return a.chooseRandom()
		}
		return a.chooseOptimalOrRandom(context)
	case TS:
		if action, ok := a.thompsonSample(context); ok {
			return action
		}
		return a.chooseRandom()
	default:
		return a.chooseRandom()
	}
}

func (a *Agent) chooseRandom() int {
	return a.actDom[a.rng.Intn(len(a.actDom))]
}

func (a *Agent) chooseOptimalOrRandom(context map[string]int) int {
	if action, ok := a.chooseOptimal(context); ok {
		return action
	}
	return a.chooseRandom()
}

// chooseOptimal evaluates the strategy's expected-reward rule for every
// candidate action and returns an argmax, broken uniformly. ok is false
// if no action has a defined expected reward yet.
func (a *Agent) chooseOptimal(context map[string]int) (int, bool) {
	store, err := a.Strategy.GetCPTs(a)
	if err != nil {
		return 0, false
	}
	var best float64
	var choices []int
	haveBest := false
	for _, action := range a.actDom {
		var reward float64
		var ok bool
		if re, isRE := a.Strategy.(rewardEvaluator); isRE {
			reward, ok = re.ExpectedReward(a, store, action, context)
		} else {
			reward, ok = a.expectedReward(store.AsCPTMap(), action, context)
		}
		if !ok {
			continue
		}
		switch {
		case !haveBest || reward > best:
			best = reward
			choices = []int{action}
			haveBest = true
		case reward == best:
			choices = append(choices, action)
		}
	}
	if len(choices) == 0 {
		return 0, false
	}
	return choices[a.rng.Intn(len(choices))], true
}

// expectedReward evaluates Σ_y y·P(Y=y|context,action) via the
// precomputed causal-path reward query. Grounded on cpt.py's
// Knowledge.expected_rew/exp_rew_addition: an undefined y-term
// contributes 0, but the whole result is Undefined only if every term
// was undefined (no data anywhere in the relevant cells yet).
func (a *Agent) expectedReward(cpts query.CPTMap, action int, context map[string]int) (float64, bool) {
	total := 0.0
	any := false
	for _, y := range a.rewDom {
		expr := a.rewQuery.Copy()
		for k, v := range context {
			expr.Assign(k, v)
		}
		expr.Assign(a.ActVar, action)
		expr.Assign(a.RewVar, y)
		val, ok := query.Evaluate(expr, cpts, a.Env.Domains())
		if !ok {
			continue
		}
		any = true
		total += float64(y) * val
	}
	return total, any
}

// thompsonSample dispatches to the strategy's override if it has one,
// else draws Beta(α+1, β+1) per action from the reward table of the
// store the strategy's GetCPTs returns (the agent's own for Solo, a
// pooled one for Naive/Sensitive). Grounded on agent.py's
// ts_from_dataset.
func (a *Agent) thompsonSample(context map[string]int) (int, bool) {
	if ts, ok := a.Strategy.(thompsonSampler); ok {
		return ts.ThompsonSample(a, context)
	}
	store, err := a.Strategy.GetCPTs(a)
	if err != nil {
		return 0, false
	}
	return a.thompsonSampleFromStore(store, context)
}

func (a *Agent) thompsonSampleFromStore(store *cpt.Store, context map[string]int) (int, bool) {
	rewTable, ok := store.Tables[a.RewVar]
	if !ok {
		return 0, false
	}
	filtered := filterKeys(context, rewTable.Parents)
	var choices []int
	maxSample := 0.0
	for _, action := range a.actDom {
		full := make(map[string]int, len(filtered)+2)
		for k, v := range filtered {
			full[k] = v
		}
		full[a.ActVar] = action
		full[a.RewVar] = 1
		alpha := rewTable.Count(full)
		full[a.RewVar] = 0
		beta := rewTable.Count(full)
		dist := distuv.Beta{Alpha: alpha + 1, Beta: beta + 1, Src: a.rng}
		sample := dist.Rand()
		if len(choices) == 0 || sample > maxSample {
			maxSample = sample
			choices = []int{action}
		} else if sample == maxSample {
			choices = append(choices, action)
		}
	}
	if len(choices) == 0 {
		return 0, false
	}
	return choices[a.rng.Intn(len(choices))], true
}

func filterKeys(src map[string]int, allowed []string) map[string]int {
	allow := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		allow[k] = true
	}
	out := make(map[string]int, len(allowed))
	for k, v := range src {
		if allow[k] {
			out[k] = v
		}
	}
	return out
}
