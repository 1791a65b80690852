package model

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
)

func TestRandomTotalProbability(t *testing.T) {
	r, err := NewRandom([]float64{0.25, 0.75})
	if err != nil {
		t.Fatal(err)
	}
	sum := 0.0
	for _, v := range r.Domain() {
		p, ok := r.Prob(v, nil)
		if !ok {
			t.Fatalf("Prob(%d) not defined", v)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("total probability = %v, want 1", sum)
	}
}

func TestNewRandomRejectsBadProbs(t *testing.T) {
	if _, err := NewRandom([]float64{0.5, 0.4}); err == nil {
		t.Fatal("expected error for probabilities not summing to 1")
	}
}

func TestDiscreteTotalProbability(t *testing.T) {
	d, err := NewDiscrete([]string{"X"}, []int{0, 1}, map[string][]float64{
		"0": {0.2, 0.8},
		"1": {0.6, 0.4},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range []int{0, 1} {
		sum := 0.0
		for _, y := range d.Domain() {
			p, ok := d.Prob(y, map[string]int{"X": x})
			if !ok {
				t.Fatalf("Prob(%d|X=%d) not defined", y, x)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("total probability given X=%d is %v, want 1", x, sum)
		}
	}
}

func TestDiscreteSampleStaysInDomain(t *testing.T) {
	d, err := NewDiscrete([]string{"X"}, []int{0, 1}, map[string][]float64{
		"0": {1, 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		v, err := d.Sample(rng, map[string]int{"X": 0})
		if err != nil {
			t.Fatal(err)
		}
		if v != 0 {
			t.Fatalf("Sample = %d, want 0 (deterministic row)", v)
		}
	}
}

func TestActionHasNoModel(t *testing.T) {
	a := NewAction([]string{"W"}, []int{0, 1})
	rng := rand.New(rand.NewSource(1))
	if _, err := a.Sample(rng, map[string]int{"W": 0}); err == nil {
		t.Fatal("expected Action.Sample to error")
	}
	if _, ok := a.Prob(0, map[string]int{"W": 0}); ok {
		t.Fatal("expected Action.Prob to be undefined")
	}
}

func TestRandomizeKeepsDomain(t *testing.T) {
	r, _ := NewRandom([]float64{0.5, 0.5})
	rng := rand.New(rand.NewSource(7))
	r2 := r.Randomize(rng)
	if len(r2.Domain()) != len(r.Domain()) {
		t.Fatalf("Randomize changed domain size: %d vs %d", len(r2.Domain()), len(r.Domain()))
	}
	sum := 0.0
	for _, v := range r2.Domain() {
		p, _ := r2.Prob(v, nil)
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("randomized probabilities sum to %v, want 1", sum)
	}
}
