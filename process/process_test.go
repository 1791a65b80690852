package process

import (
	"testing"

	"golang.org/x/exp/rand"

	"github.com/causalbandits/otpsim/agent"
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
	for _, e := range [][2]string{{"W", "X"}, {"W", "Y"}, {"X", "Y"}} {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
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

func baseConfig(t *testing.T, space AssignmentSpace) Config {
	t.Helper()
	g, models := buildBandit(t)
	return Config{
		Graph:         g,
		BaseModels:    models,
		ActVar:        "X",
		RewVar:        "Y",
		NumAgents:     3,
		IsCommunity:   true,
		RandEnvs:      false,
		Horizon:       10,
		MCSims:        4,
		Space:         space,
		DivNodeConf:   0.1,
		EnvIterations: 50,
		BaseSeed:      42,
		Workers:       2,
	}
}

func soloSpace() AssignmentSpace {
	return AssignmentSpace{
		OTP:         []string{"Solo"},
		Tau:         []float64{0},
		ASR:         []agent.ASR{agent.EG},
		Epsilon:     []float64{0.1},
		RandTrials:  []int{3},
		CoolingRate: []float64{0.9},
	}
}

func TestRunProducesOneBucketWithNoSweep(t *testing.T) {
	cfg := baseConfig(t, soloSpace())
	res, err := Run(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.IndependentVariable != "" {
		t.Fatalf("expected no independent variable, got %q", res.IndependentVariable)
	}
	if len(res.CPR) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(res.CPR))
	}
	for level, trials := range res.CPR {
		if len(trials) != cfg.MCSims*cfg.NumAgents {
			t.Fatalf("level %v: expected %d trajectories, got %d", level, cfg.MCSims*cfg.NumAgents, len(trials))
		}
		for _, series := range trials {
			if len(series) != cfg.Horizon {
				t.Fatalf("level %v: expected trajectory length %d, got %d", level, cfg.Horizon, len(series))
			}
		}
	}
}

func TestRunSweepsOTPIntoSeparateBuckets(t *testing.T) {
	space := AssignmentSpace{
		OTP:         []string{"Solo", "Naive"},
		Tau:         []float64{0},
		ASR:         []agent.ASR{agent.EG},
		Epsilon:     []float64{0.1},
		RandTrials:  []int{3},
		CoolingRate: []float64{0.9},
	}
	cfg := baseConfig(t, space)
	cfg.IsCommunity = true
	res, err := Run(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.IndependentVariable != "OTP" {
		t.Fatalf("expected independent variable OTP, got %q", res.IndependentVariable)
	}
	if _, ok := res.CPR["Solo"]; !ok {
		t.Fatalf("expected a Solo bucket, got %v", res.CPR)
	}
	if _, ok := res.CPR["Naive"]; !ok {
		t.Fatalf("expected a Naive bucket, got %v", res.CPR)
	}
}

func TestAssignmentSpaceValidateRejectsTwoSweeps(t *testing.T) {
	space := AssignmentSpace{
		OTP:         []string{"Solo", "Naive"},
		Tau:         []float64{0},
		ASR:         []agent.ASR{agent.EG, agent.TS},
		Epsilon:     []float64{0.1},
		RandTrials:  []int{3},
		CoolingRate: []float64{0.9},
	}
	if err := space.Validate(); err == nil {
		t.Fatal("expected an error with two swept fields")
	}
}

func TestRunRejectsInvalidSpace(t *testing.T) {
	space := AssignmentSpace{
		OTP:         nil,
		Tau:         []float64{0},
		ASR:         []agent.ASR{agent.EG},
		Epsilon:     []float64{0.1},
		RandTrials:  []int{3},
		CoolingRate: []float64{0.9},
	}
	cfg := baseConfig(t, space)
	if _, err := Run(cfg); err == nil {
		t.Fatal("expected an error with an empty field")
	}
}

func TestNonCommunityBuildsOneLevelPerAgent(t *testing.T) {
	space := AssignmentSpace{
		OTP:         []string{"Solo", "Naive"},
		Tau:         []float64{0},
		ASR:         []agent.ASR{agent.EG},
		Epsilon:     []float64{0.1},
		RandTrials:  []int{3},
		CoolingRate: []float64{0.9},
	}
	cfg := baseConfig(t, space)
	cfg.IsCommunity = false
	cfg.MCSims = 1
	cfg.Workers = 1
	rng := rand.New(rand.NewSource(cfg.BaseSeed))
	levels := Levels(cfg.Space)
	w, agentLevels, err := cfg.buildWorld(rng, levels, levels[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Agents) != cfg.NumAgents {
		t.Fatalf("expected %d agents, got %d", cfg.NumAgents, len(w.Agents))
	}
	if len(agentLevels) != cfg.NumAgents {
		t.Fatalf("expected %d agent levels, got %d", cfg.NumAgents, len(agentLevels))
	}
}

func TestMakeStrategyRejectsUnknownOTP(t *testing.T) {
	if _, err := makeStrategy("Bogus"); err == nil {
		t.Fatal("expected an error for an unrecognized OTP")
	}
}
