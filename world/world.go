// Package world orchestrates one Monte-Carlo trial's population of
// agents through a fixed number of episodes, recording each agent's
// cumulative pseudo-regret and probability-of-optimal-action
// trajectories. Grounded on original_source/src/world.py's World,
// restructured after the teacher's experiment.Online episode loop
// (experiment/Online.go's RunEpisode/Run split).
package world

import (
	"fmt"
	"sort"

	"github.com/causalbandits/otpsim/agent"
	"github.com/causalbandits/otpsim/databank"
	"github.com/causalbandits/otpsim/metrics"
)

// World runs a fixed population of agents, sharing one DataBank, over a
// sequence of episodes.
type World struct {
	Agents       []*agent.Agent
	Bank         *databank.DataBank
	Metrics      *metrics.Registry
	hasDivergent bool

	// CPR and POA hold each agent's trajectory, keyed by agent name.
	// CPR[name][t] is cumulative pseudo-regret through episode t (the sum
	// of the optimal minus the chosen action's precomputed expected
	// reward for each episode's feature context);
	// POA[name][t] is 1 if the action chosen at episode t belonged to
	// the optimal set for that episode's feature context, else 0.
	CPR map[string][]float64
	POA map[string][]int
}

// New builds a World over agents, all of which must already be
// registered with bank.
func New(agents []*agent.Agent, bank *databank.DataBank) *World {
	w := &World{
		Agents: agents,
		Bank:   bank,
		CPR:    make(map[string][]float64, len(agents)),
		POA:    make(map[string][]int, len(agents)),
	}
	for _, a := range agents {
		switch a.GetOTP() {
		case "Sensitive", "Adjust":
			w.hasDivergent = true
		}
	}
	return w
}

// RunEpisode steps every agent once, recomputes pairwise divergence if
// the population contains a Sensitive or Adjust agent, then updates the
// regret/optimal-action trajectories. Grounded on world.py's run_once.
func (w *World) RunEpisode() error {
	for _, a := range w.Agents {
		if _, err := a.Act(); err != nil {
			return fmt.Errorf("world.RunEpisode: %v", err)
		}
	}
	if w.hasDivergent {
		if err := w.Bank.UpdateDivergence(); err != nil {
			return fmt.Errorf("world.RunEpisode: %v", err)
		}
		if w.Metrics != nil {
			w.Metrics.DivergenceRecomputed.Inc()
		}
	}
	w.updateTrajectories()
	return nil
}

func (w *World) updateTrajectories() {
	for _, a := range w.Agents {
		recent := a.Recent()
		context := onlyGivenKeys(recent, a.Env.FeatureVars())
		optActions, optReward := a.Env.OptimalActions(context)
		chosen := onlyGivenKeys(recent, a.Env.FeatureVars())
		chosen[a.ActVar] = recent[a.ActVar]
		chosenReward, _ := a.Env.ActionReward(chosen)

		prevCPR := 0.0
		if series := w.CPR[a.Name]; len(series) > 0 {
			prevCPR = series[len(series)-1]
		}
		w.CPR[a.Name] = append(w.CPR[a.Name], prevCPR+(optReward-chosenReward))

		poa := 0
		for _, act := range optActions {
			if act == recent[a.ActVar] {
				poa = 1
				break
			}
		}
		w.POA[a.Name] = append(w.POA[a.Name], poa)
	}
}

func onlyGivenKeys(sample map[string]int, keys []string) map[string]int {
	out := make(map[string]int, len(keys))
	for _, k := range keys {
		out[k] = sample[k]
	}
	return out
}

// Run steps the world for episodes episodes. Grounded on world.py's run.
func (w *World) Run(episodes int) error {
	for i := 0; i < episodes; i++ {
		if err := w.RunEpisode(); err != nil {
			return err
		}
	}
	return nil
}

// AgentNames returns every agent's name, sorted, for stable output
// column/series ordering.
func (w *World) AgentNames() []string {
	names := make([]string, 0, len(w.Agents))
	for _, a := range w.Agents {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}
