package scm

import (
	"testing"

	"golang.org/x/exp/rand"

	"github.com/causalbandits/otpsim/graph"
	"github.com/causalbandits/otpsim/model"
)

func buildChain(t *testing.T) (*graph.DAG, map[string]int) {
	t.Helper()
	g := graph.New()
	for _, n := range []string{"W", "X"} {
		if err := g.AddNode(n, graph.ObservedKind); err != nil {
			t.Fatal(err)
		}
	}
	if err := g.AddEdge("W", "X"); err != nil {
		t.Fatal(err)
	}
	return g, nil
}

func TestSampleIsTopologicallyConsistent(t *testing.T) {
	g, _ := buildChain(t)
	w, _ := model.NewRandom([]float64{1, 0})
	x, err := model.NewDiscrete([]string{"W"}, []int{0, 1}, map[string][]float64{
		"0": {0, 1},
		"1": {1, 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(g, map[string]model.Model{"W": w, "X": x})
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 5; i++ {
		a, err := s.Sample(rng, nil)
		if err != nil {
			t.Fatal(err)
		}
		if a["W"] != 0 {
			t.Fatalf("W should always sample 0, got %d", a["W"])
		}
		if a["X"] != 1 {
			t.Fatalf("given W=0, X should always sample 1, got %d", a["X"])
		}
	}
}

func TestSetNodePullsFromIntervention(t *testing.T) {
	g, _ := buildChain(t)
	gDo, err := g.Do("X")
	if err != nil {
		t.Fatal(err)
	}
	w, _ := model.NewRandom([]float64{1, 0})
	action := model.NewAction(nil, []int{0, 1})
	s, err := New(gDo, map[string]model.Model{"W": w, "X": action})
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	a, err := s.Sample(rng, map[string]int{"X": 1})
	if err != nil {
		t.Fatal(err)
	}
	if a["X"] != 1 {
		t.Fatalf("X = %d, want 1 (from intervention)", a["X"])
	}
}

func TestSetNodeMissingInterventionPanics(t *testing.T) {
	g, _ := buildChain(t)
	gDo, err := g.Do("X")
	if err != nil {
		t.Fatal(err)
	}
	w, _ := model.NewRandom([]float64{1, 0})
	action := model.NewAction(nil, []int{0, 1})
	s, err := New(gDo, map[string]model.Model{"W": w, "X": action})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for missing intervention value")
		}
	}()
	rng := rand.New(rand.NewSource(1))
	s.Sample(rng, nil)
}
