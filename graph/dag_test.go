package graph

import (
	"reflect"
	"sort"
	"testing"
)

func fourNodeChain(t *testing.T) *DAG {
	t.Helper()
	g := New()
	for _, n := range []string{"W", "X", "Y", "Z"} {
		if err := g.AddNode(n, ObservedKind); err != nil {
			t.Fatalf("AddNode(%s): %v", n, err)
		}
	}
	edges := [][2]string{{"W", "X"}, {"W", "Y"}, {"X", "Z"}, {"Z", "Y"}}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("AddEdge(%s,%s): %v", e[0], e[1], err)
		}
	}
	return g
}

func TestAdjacencySanity(t *testing.T) {
	g := fourNodeChain(t)
	pa, err := g.Parents("Z")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(pa, []string{"X"}) {
		t.Errorf("Parents(Z) = %v, want [X]", pa)
	}
	ch, err := g.Children("W")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(ch)
	if !reflect.DeepEqual(ch, []string{"X", "Y"}) {
		t.Errorf("Children(W) = %v, want [X Y]", ch)
	}
	anc, err := g.Ancestors("Y")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"W", "X", "Z"}
	sort.Strings(anc)
	if !reflect.DeepEqual(anc, want) {
		t.Errorf("Ancestors(Y) = %v, want %v", anc, want)
	}
}

func TestCycleRejected(t *testing.T) {
	g := New()
	g.AddNode("A", ObservedKind)
	g.AddNode("B", ObservedKind)
	if err := g.AddEdge("A", "B"); err != nil {
		t.Fatalf("AddEdge(A,B): %v", err)
	}
	if err := g.AddEdge("B", "A"); err == nil {
		t.Fatal("expected cycle rejection, got nil error")
	}
}

func TestUnknownNodeRejected(t *testing.T) {
	g := New()
	g.AddNode("A", ObservedKind)
	if err := g.AddEdge("A", "ghost"); err == nil {
		t.Fatal("expected unknown-node error, got nil")
	}
}

func TestCausalPath(t *testing.T) {
	g := fourNodeChain(t)
	cp, err := g.CausalPath("W", "Y")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"X", "Y", "Z"}
	if !reflect.DeepEqual(cp, want) {
		t.Errorf("CausalPath(W,Y) = %v, want %v", cp, want)
	}
}

// TestDSeparationDuality checks that conditioning on the chain node X
// blocks the only open path between W and Z, and that the verdict given
// {X} is the same in both directions (W,Z and Z,W).
func TestDSeparationDuality(t *testing.T) {
	g := fourNodeChain(t)

	// W and Z are connected via W->X->Z (chain) and via W->Y<-Z
	// (collider at Y). Without conditioning, the collider path is
	// blocked, but the chain path through X is open.
	sep, err := g.IsDSeparated("W", "Z", nil)
	if err != nil {
		t.Fatal(err)
	}
	if sep {
		t.Error("W and Z should not be d-separated given {} (open chain via X)")
	}

	sep, err = g.IsDSeparated("W", "Z", []string{"X"})
	if err != nil {
		t.Fatal(err)
	}
	if !sep {
		t.Error("W and Z should be d-separated given {X}")
	}

	rev, err := g.IsDSeparated("Z", "W", []string{"X"})
	if err != nil {
		t.Fatal(err)
	}
	if rev != sep {
		t.Errorf("IsDSeparated(Z,W,{X}) = %v, IsDSeparated(W,Z,{X}) = %v; want equal", rev, sep)
	}
}

func TestBackdoorAdjustmentSets(t *testing.T) {
	g := fourNodeChain(t)
	sets, err := g.BackdoorAdjustmentSets("X", "Y")
	if err != nil {
		t.Fatal(err)
	}
	foundW := false
	for _, s := range sets {
		if reflect.DeepEqual(s, []string{"W"}) {
			foundW = true
		}
	}
	if !foundW {
		t.Errorf("expected {W} among valid backdoor adjustment sets, got %v", sets)
	}
}

// TestTransportFormula exercises the S-node-on-Z scenario: selection
// diagram marks Z divergent, and the shortest trivial-transport
// adjustment formula for X -> Y given {} should route through W.
func TestTransportFormula(t *testing.T) {
	g := fourNodeChain(t)
	sd, err := g.SelectionDiagram([]string{"Z"})
	if err != nil {
		t.Fatal(err)
	}
	transportable, err := sd.IsDirectlyTransportable("Y", nil)
	if err != nil {
		t.Fatal(err)
	}
	if transportable {
		t.Error("Y should not be directly transportable when Z is marked divergent and Z is an ancestor of Y")
	}
	formula, ok, err := sd.BuildTransportFormula("X", "Y", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a trivial transport formula to exist")
	}
	if len(formula.Terms) == 0 {
		t.Fatal("expected at least one term in the transport formula")
	}
	if formula.Terms[0].Q[0] != "Y" {
		t.Errorf("first term should query Y, got %v", formula.Terms[0].Q)
	}
}
