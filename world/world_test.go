package world

import (
	"testing"

	"golang.org/x/exp/rand"

	"github.com/causalbandits/otpsim/agent"
	"github.com/causalbandits/otpsim/databank"
	"github.com/causalbandits/otpsim/environment"
	"github.com/causalbandits/otpsim/graph"
	"github.com/causalbandits/otpsim/model"
)

func buildBandit(t *testing.T) (*graph.DAG, map[string]model.Model) {
	t.Helper()
	g := graph.New()
	for _, n := range []string{"W", "X", "Y"} {
		if err := g.AddNode(n, graph.ObservedKind); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.AddEdge("W", "X"); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge("W", "Y"); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge("X", "Y"); err != nil {
		t.Fatal(err)
	}
	w, _ := model.NewRandom([]float64{0.5, 0.5})
	x := model.NewAction([]string{"W"}, []int{0, 1})
	y, err := model.NewDiscrete([]string{"W", "X"}, []int{0, 1}, map[string][]float64{
		"0,0": {0, 1},
		"0,1": {1, 0},
		"1,0": {1, 0},
		"1,1": {0, 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	return g, map[string]model.Model{"W": w, "X": x, "Y": y}
}

func TestRunEpisodeTrajectoryInvariants(t *testing.T) {
	g, models := buildBandit(t)
	rng := rand.New(rand.NewSource(7))
	env, err := environment.New(g, models, "X", "Y", rng, 100)
	if err != nil {
		t.Fatal(err)
	}
	bank := databank.New(env.Domains(), "X", "Y", 0.2)
	a, err := agent.New(rng, "A", env, bank, agent.Solo(), 0, agent.EG, 0.1, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := agent.New(rng, "B", env, bank, agent.Solo(), 0, agent.EG, 0.1, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	w := New([]*agent.Agent{a, b}, bank)
	const episodes = 25
	if err := w.Run(episodes); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"A", "B"} {
		cpr := w.CPR[name]
		poa := w.POA[name]
		if len(cpr) != episodes || len(poa) != episodes {
			t.Fatalf("agent %s: trajectory length = %d/%d, want %d", name, len(cpr), len(poa), episodes)
		}
		prev := 0.0
		if cpr[0] < -1e-9 {
			t.Errorf("agent %s: cpr[0] = %v, want >= 0", name, cpr[0])
		}
		for i, v := range cpr {
			if v < prev-1e-9 {
				t.Errorf("agent %s: cpr[%d]=%v < cpr[%d]=%v, regret must be non-decreasing", name, i, v, i-1, prev)
			}
			prev = v
		}
		for i, p := range poa {
			if p != 0 && p != 1 {
				t.Errorf("agent %s: poa[%d] = %v, want 0 or 1", name, i, p)
			}
		}
	}
}

func TestDivergentOTPTriggersDivergenceUpdate(t *testing.T) {
	g, models := buildBandit(t)
	rng := rand.New(rand.NewSource(9))
	env, err := environment.New(g, models, "X", "Y", rng, 50)
	if err != nil {
		t.Fatal(err)
	}
	bank := databank.New(env.Domains(), "X", "Y", 0.2)
	a, err := agent.New(rng, "A", env, bank, agent.Sensitive(), 0, agent.EG, 0.1, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	w := New([]*agent.Agent{a}, bank)
	if !w.hasDivergent {
		t.Fatal("expected hasDivergent=true for a Sensitive-OTP population")
	}
	if err := w.RunEpisode(); err != nil {
		t.Fatal(err)
	}
}
