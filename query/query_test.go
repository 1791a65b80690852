package query

import (
	"math"
	"testing"
)

// fakeTable is a minimal in-memory Table for tests: Count sums rows
// whose keys present in assignment all match.
type fakeTable struct {
	rows []map[string]int
}

func (f *fakeTable) Count(assignment map[string]int) float64 {
	var n float64
	for _, row := range f.rows {
		match := true
		for k, v := range assignment {
			if row[k] != v {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}

func TestAssignIdempotent(t *testing.T) {
	q := New(map[string]int{"Y": Unassigned}, map[string]int{"X": Unassigned})
	q.Assign("X", 1)
	q.Assign("X", 1) // second assign to the same value is a no-op
	if q.E["X"] != 1 {
		t.Fatalf("E[X] = %d, want 1", q.E["X"])
	}
	if q.AllAssigned() {
		t.Fatalf("Assign(Y,0) missing, expected partially assigned: %v", q.UnassignedVars())
	}
}

func TestProductEmptyIsOne(t *testing.T) {
	p := NewProduct()
	v, ok := Evaluate(p, CPTMap{}, nil)
	if !ok || v != 1 {
		t.Fatalf("Product() = %v,%v want 1,true", v, ok)
	}
}

func TestSummationEmptyIsZero(t *testing.T) {
	s := NewSummation()
	v, ok := Evaluate(s, CPTMap{}, nil)
	if !ok || v != 0 {
		t.Fatalf("Summation() = %v,%v want 0,true", v, ok)
	}
}

func TestAtomicQuerySolve(t *testing.T) {
	cpts := CPTMap{
		"Y": &fakeTable{rows: []map[string]int{
			{"X": 0, "Y": 1},
			{"X": 0, "Y": 1},
			{"X": 0, "Y": 0},
			{"X": 1, "Y": 1},
		}},
	}
	q := New(map[string]int{"Y": 1}, map[string]int{"X": 0})
	v, ok := Evaluate(q, cpts, nil)
	if !ok {
		t.Fatal("expected defined result")
	}
	if math.Abs(v-2.0/3.0) > 1e-9 {
		t.Fatalf("P(Y=1|X=0) = %v, want 2/3", v)
	}
}

func TestUndefinedOnZeroDenominator(t *testing.T) {
	cpts := CPTMap{"Y": &fakeTable{}}
	q := New(map[string]int{"Y": 1}, map[string]int{"X": 5})
	_, ok := Evaluate(q, cpts, nil)
	if ok {
		t.Fatal("expected Undefined (ok=false) for an evidence combo with no matching rows")
	}
}

func TestOverMarginalizesUnassigned(t *testing.T) {
	q := NewCount(map[string]int{"Y": 1}, map[string]int{"X": Unassigned})
	domains := map[string][]int{"X": {0, 1}}
	expanded := q.Over(domains)
	if !expanded.AllAssigned() {
		t.Fatalf("Over should fully resolve X, still unassigned: %v", expanded.UnassignedVars())
	}
	sum, ok := expanded.(*Summation)
	if !ok {
		t.Fatalf("Over should wrap expansion in a Summation, got %T", expanded)
	}
	if len(sum.Terms) != 2 {
		t.Fatalf("expected 2 terms (one per X value), got %d", len(sum.Terms))
	}
}

func TestCountNodeSkipsDivision(t *testing.T) {
	cpts := CPTMap{
		"Y": &fakeTable{rows: []map[string]int{
			{"X": 0, "Y": 1},
			{"X": 0, "Y": 1},
			{"X": 0, "Y": 0},
		}},
	}
	c := NewCount(map[string]int{"Y": 1}, map[string]int{"X": 0})
	v, ok := Evaluate(c, cpts, nil)
	if !ok {
		t.Fatal("expected defined result")
	}
	if v != 2 {
		t.Fatalf("Count(Y=1|X=0) = %v, want 2 (raw matches, no division)", v)
	}
}
