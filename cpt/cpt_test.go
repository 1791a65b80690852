package cpt

import (
	"testing"

	"github.com/causalbandits/otpsim/graph"
)

func TestAddAndCount(t *testing.T) {
	tbl := NewTable("Y", []string{"X"})
	samples := []map[string]int{
		{"X": 0, "Y": 1},
		{"X": 0, "Y": 1},
		{"X": 0, "Y": 0},
		{"X": 1, "Y": 1},
	}
	for _, s := range samples {
		if err := tbl.Add(s); err != nil {
			t.Fatal(err)
		}
	}
	if got := tbl.Count(map[string]int{"X": 0, "Y": 1}); got != 2 {
		t.Errorf("point count = %v, want 2", got)
	}
	if got := tbl.Count(map[string]int{"X": 0}); got != 3 {
		t.Errorf("marginal count over X=0 = %v, want 3", got)
	}
	if got := tbl.Count(map[string]int{}); got != 4 {
		t.Errorf("unconditional count = %v, want 4", got)
	}
}

func TestMergeSumsCounts(t *testing.T) {
	a := NewTable("Y", []string{"X"})
	a.Add(map[string]int{"X": 0, "Y": 1})
	b := NewTable("Y", []string{"X"})
	b.Add(map[string]int{"X": 0, "Y": 1})
	b.Add(map[string]int{"X": 1, "Y": 0})

	merged, err := a.Merge(b)
	if err != nil {
		t.Fatal(err)
	}
	if got := merged.Count(map[string]int{"X": 0, "Y": 1}); got != 2 {
		t.Errorf("merged count = %v, want 2", got)
	}
	if got := merged.Count(map[string]int{"X": 1, "Y": 0}); got != 1 {
		t.Errorf("merged count = %v, want 1", got)
	}
}

func TestMergeRejectsMismatchedParents(t *testing.T) {
	a := NewTable("Y", []string{"X"})
	b := NewTable("Y", []string{"Z"})
	if _, err := a.Merge(b); err == nil {
		t.Fatal("expected error merging tables with different parents")
	}
}

func TestStoreRewardTableHasEnlargedParents(t *testing.T) {
	g := graph.New()
	for _, n := range []string{"W", "X", "Z", "Y"} {
		g.AddNode(n, graph.ObservedKind)
	}
	g.AddEdge("W", "X")
	g.AddEdge("W", "Y")
	g.AddEdge("X", "Z")
	g.AddEdge("Z", "Y")

	s, err := NewStore(g, "X", "Y")
	if err != nil {
		t.Fatal(err)
	}
	rewParents := s.Tables["Y"].Parents
	want := map[string]bool{"X": true, "W": true}
	if len(rewParents) != len(want) {
		t.Fatalf("reward table parents = %v, want members of %v", rewParents, want)
	}
	for _, p := range rewParents {
		if !want[p] {
			t.Errorf("unexpected reward parent %q", p)
		}
	}
	if _, ok := s.Tables["X"]; ok {
		t.Error("store should not own a table for the action variable")
	}
}

func TestStoreObservePopulatesAllTables(t *testing.T) {
	g := graph.New()
	for _, n := range []string{"W", "X", "Y"} {
		g.AddNode(n, graph.ObservedKind)
	}
	g.AddEdge("W", "X")
	g.AddEdge("W", "Y")
	g.AddEdge("X", "Y")

	s, err := NewStore(g, "X", "Y")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Observe(map[string]int{"W": 1, "X": 0, "Y": 1}); err != nil {
		t.Fatal(err)
	}
	if s.Tables["W"].Size() != 1 {
		t.Errorf("W table size = %d, want 1", s.Tables["W"].Size())
	}
	if s.Tables["Y"].Size() != 1 {
		t.Errorf("Y table size = %d, want 1", s.Tables["Y"].Size())
	}
}
