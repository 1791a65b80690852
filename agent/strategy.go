package agent

import (
	"fmt"

	"github.com/causalbandits/otpsim/cpt"
)

// soloStrategy reasons only over the agent's own observations. Grounded
// on agent.py's SoloAgent.get_CPTs (`databank[self]`).
type soloStrategy struct{}

func Solo() Strategy { return soloStrategy{} }

func (soloStrategy) Name() string { return "Solo" }

func (soloStrategy) GetCPTs(a *Agent) (*cpt.Store, error) {
	return a.Store, nil
}

// naiveStrategy pools every agent's observations unconditionally,
// ignoring divergence. Grounded on agent.py's NaiveAgent.get_CPTs
// (`databank.all_data()`).
type naiveStrategy struct{}

func Naive() Strategy { return naiveStrategy{} }

func (naiveStrategy) Name() string { return "Naive" }

func (naiveStrategy) GetCPTs(a *Agent) (*cpt.Store, error) {
	pool, err := a.Bank.NaivePool(a.Name)
	if err != nil {
		return nil, fmt.Errorf("naive.GetCPTs: %v", err)
	}
	return pool, nil
}

// sensitiveStrategy pools only peers whose divergent nodes are a subset
// of the environment's feature (context) variables -- disagreement on
// context is tolerated, disagreement on the causal mechanism itself is
// not. Grounded on agent.py's SensitiveAgent.get_CPTs
// (`databank.sensitive_data(self)`).
type sensitiveStrategy struct{}

func Sensitive() Strategy { return sensitiveStrategy{} }

func (sensitiveStrategy) Name() string { return "Sensitive" }

func (sensitiveStrategy) GetCPTs(a *Agent) (*cpt.Store, error) {
	pool, err := a.Bank.SensitiveData(a.Name, a.Env.FeatureVars())
	if err != nil {
		return nil, fmt.Errorf("sensitive.GetCPTs: %v", err)
	}
	return pool, nil
}
