package process

import (
	"context"
	"fmt"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/causalbandits/otpsim/agent"
	"github.com/causalbandits/otpsim/databank"
	"github.com/causalbandits/otpsim/environment"
	"github.com/causalbandits/otpsim/graph"
	"github.com/causalbandits/otpsim/metrics"
	"github.com/causalbandits/otpsim/model"
	"github.com/causalbandits/otpsim/world"
)

// Config describes one Monte-Carlo experiment: a template environment,
// a population shape, and the independent-variable sweep to bucket
// results by. Grounded on original_source/src/process.py's Process
// constructor fields.
type Config struct {
	Graph      *graph.DAG
	BaseModels map[string]model.Model
	ActVar     string
	RewVar     string

	NumAgents          int
	IsCommunity        bool
	RandEnvs           bool
	NodeMutationChance float64

	Horizon int
	MCSims  int
	Space   AssignmentSpace

	DivNodeConf   float64
	EnvIterations int

	BaseSeed uint64
	Workers  int

	// Metrics is optional; when set, Run reports trial completions and
	// active-worker occupancy to it. A nil Metrics disables reporting.
	Metrics *metrics.Registry
}

// Result buckets every agent's CPR/POA trajectory, across every trial
// and world, by the value of the sweep's independent variable that
// agent was assigned. Grounded on process.py's update_process_result.
type Result struct {
	IndependentVariable string
	CPR                  map[interface{}][][]float64
	POA                  map[interface{}][][]int
}

func newResult(indVar string) *Result {
	return &Result{
		IndependentVariable: indVar,
		CPR:                 make(map[interface{}][][]float64),
		POA:                 make(map[interface{}][][]int),
	}
}

func (r *Result) add(level interface{}, cpr []float64, poa []int) {
	r.CPR[level] = append(r.CPR[level], cpr)
	r.POA[level] = append(r.POA[level], poa)
}

func (r *Result) merge(other *Result) {
	for level, series := range other.CPR {
		r.CPR[level] = append(r.CPR[level], series...)
	}
	for level, series := range other.POA {
		r.POA[level] = append(r.POA[level], series...)
	}
}

func makeStrategy(otp string) (agent.Strategy, error) {
	switch otp {
	case "Solo":
		return agent.Solo(), nil
	case "Naive":
		return agent.Naive(), nil
	case "Sensitive":
		return agent.Sensitive(), nil
	case "Adjust":
		return agent.Adjust(), nil
	default:
		return nil, fmt.Errorf("makeStrategy: unknown OTP %q", otp)
	}
}

// Run executes cfg.MCSims Monte-Carlo trials across cfg.Workers
// parallel OS-level goroutines, seeded deterministically by
// BaseSeed^workerIndex, and folds every trial's per-level trajectory
// buckets into one Result in trial-index order. Grounded on
// process.py's simulate, with workers parallelized via
// golang.org/x/sync/errgroup per spec.md §4.7's "P OS-level workers
// ... base_seed XOR worker_index". Trials are tagged by index and
// assembled in order after g.Wait() rather than merged as each
// goroutine happens to finish, so the row order of the returned
// Result -- and hence any CSV a caller writes from it -- depends only
// on cfg.BaseSeed/cfg.MCSims, never on OS goroutine scheduling.
func Run(cfg Config) (*Result, error) {
	if err := cfg.Space.Validate(); err != nil {
		return nil, fmt.Errorf("process.Run: %v", err)
	}
	levels := Levels(cfg.Space)
	indVar := cfg.Space.IndependentVariable()

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	trialResults := make([]*Result, cfg.MCSims)
	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			if cfg.Metrics != nil {
				cfg.Metrics.ActiveWorkers.Inc()
				defer cfg.Metrics.ActiveWorkers.Dec()
			}
			rng := rand.New(rand.NewSource(cfg.BaseSeed ^ uint64(w)))
			for trial := w; trial < cfg.MCSims; trial += workers {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				trialResult, err := cfg.runTrial(rng, levels, indVar)
				if err != nil {
					return fmt.Errorf("process.Run: trial %d: %v", trial, err)
				}
				trialResults[trial] = trialResult
				if cfg.Metrics != nil {
					cfg.Metrics.TrialsCompleted.Inc()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := newResult(indVar)
	for _, trialResult := range trialResults {
		result.merge(trialResult)
	}
	return result, nil
}

// runTrial builds one world per independent-variable level and runs
// each for cfg.Horizon episodes, returning every agent's trajectory
// bucketed by its own resolved level. Grounded on process.py's
// world_generator/simulate loop.
func (cfg Config) runTrial(rng *rand.Rand, levels []Assignment, indVar string) (*Result, error) {
	out := newResult(indVar)
	for _, level := range levels {
		w, agentLevels, err := cfg.buildWorld(rng, levels, level)
		if err != nil {
			return nil, err
		}
		if err := w.Run(cfg.Horizon); err != nil {
			return nil, err
		}
		for _, a := range w.Agents {
			out.add(agentLevels[a.Name], w.CPR[a.Name], w.POA[a.Name])
		}
	}
	return out, nil
}

// buildWorld materializes one population of cfg.NumAgents agents
// sharing a DataBank. In community mode every agent in the world takes
// on primaryLevel; otherwise each agent's level is drawn independently
// from the full level set, producing a mixed-OTP/mixed-knob population
// within a single trial -- simplified from process.py's
// shuffle-then-pop-assignments mechanism to an equivalent per-agent
// random draw.
func (cfg Config) buildWorld(rng *rand.Rand, levels []Assignment, primaryLevel Assignment) (*world.World, map[string]interface{}, error) {
	baseModels := cfg.BaseModels
	baseEnv, err := environment.New(cfg.Graph, baseModels, cfg.ActVar, cfg.RewVar, rng, cfg.EnvIterations)
	if err != nil {
		return nil, nil, fmt.Errorf("buildworld: %v", err)
	}
	bank := databank.New(baseEnv.Domains(), cfg.ActVar, cfg.RewVar, cfg.DivNodeConf)

	indVar := cfg.Space.IndependentVariable()
	agentLevels := make(map[string]interface{}, cfg.NumAgents)
	agents := make([]*agent.Agent, 0, cfg.NumAgents)
	for i := 0; i < cfg.NumAgents; i++ {
		assignment := primaryLevel
		if !cfg.IsCommunity && len(levels) > 0 {
			assignment = levels[rng.Intn(len(levels))]
		}
		env := baseEnv
		if cfg.RandEnvs {
			env, err = baseEnv.Randomize(rng, cfg.NodeMutationChance, cfg.EnvIterations)
			if err != nil {
				return nil, nil, fmt.Errorf("buildworld: %v", err)
			}
		}
		strategy, err := makeStrategy(assignment.OTP)
		if err != nil {
			return nil, nil, fmt.Errorf("buildworld: %v", err)
		}
		name := fmt.Sprintf("%d", i)
		a, err := agent.New(rng, name, env, bank, strategy, assignment.Tau, assignment.ASR,
			assignment.Epsilon, assignment.RandTrials, assignment.CoolingRate)
		if err != nil {
			return nil, nil, fmt.Errorf("buildworld: %v", err)
		}
		agents = append(agents, a)
		agentLevels[name] = LevelValue(indVar, assignment)
	}
	w := world.New(agents, bank)
	w.Metrics = cfg.Metrics
	return w, agentLevels, nil
}
