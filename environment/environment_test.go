package environment

import (
	"testing"

	"golang.org/x/exp/rand"

	"github.com/causalbandits/otpsim/graph"
	"github.com/causalbandits/otpsim/model"
)

// buildBandit constructs W -> X(action) -> Y, where choosing X equal to
// W always yields reward 1 and any other choice yields reward 0 -- a
// trivial bandit with a single deterministically-optimal action per
// context.
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

func TestOptimalActionMatchesContext(t *testing.T) {
	g, models := buildBandit(t)
	rng := rand.New(rand.NewSource(1))
	env, err := New(g, models, "X", "Y", rng, 200)
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range []int{0, 1} {
		actions, reward := env.OptimalActions(map[string]int{"W": w})
		if len(actions) != 1 || actions[0] != w {
			t.Errorf("OptimalActions(W=%d) = %v, want [%d]", w, actions, w)
		}
		if reward < 0.9 {
			t.Errorf("OptimalReward(W=%d) = %v, want ~1", w, reward)
		}
	}
}

func TestActRespectsIntervention(t *testing.T) {
	g, models := buildBandit(t)
	rng := rand.New(rand.NewSource(2))
	env, err := New(g, models, "X", "Y", rng, 50)
	if err != nil {
		t.Fatal(err)
	}
	ctx, err := env.SampleContext(rng)
	if err != nil {
		t.Fatal(err)
	}
	sample, err := env.Act(rng, ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if sample["X"] != 1 {
		t.Fatalf("Act forced X=1, got %d", sample["X"])
	}
}
