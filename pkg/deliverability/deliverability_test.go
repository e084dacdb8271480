package deliverability

import (
	"math"
	"testing"

	"github.com/dd0wney/gac/pkg/topology"
)

func rate(v float64) *float64 { return &v }

func twoBusNetwork(t *testing.T) *topology.Network {
	t.Helper()
	b := topology.NewBuilder(100)
	bus1 := b.AddBus("1", topology.Bus{VMin: 0.9, VMax: 1.1})
	bus2 := b.AddBus("2", topology.Bus{VMin: 0.9, VMax: 1.1})
	b.AddBranch("l1", topology.Branch{From: bus1, To: bus2, X: 0.1, Tap: 1, Status: true, RateAMVA: rate(100)})
	b.AddGen("g1", topology.Gen{Bus: bus1, Status: true, PMax: 150})
	b.AddLoad("d1", topology.Load{Bus: bus2, PMW: 50})
	net, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return net
}

func TestScore_ZeroCapacityBusIsZero(t *testing.T) {
	net := twoBusNetwork(t)
	e, err := NewEngine(net, 0)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Release()

	score, err := e.Score(1, []StressCase{{ID: "c1", BranchFlowMW: map[topology.BranchID]float64{0: 50}}})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score != 0 {
		t.Errorf("expected zero score for a bus with no generation capacity, got %v", score)
	}
}

func TestScore_LightlyLoadedBranchGivesHighScore(t *testing.T) {
	net := twoBusNetwork(t)
	e, err := NewEngine(net, 1) // slack at bus2
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Release()

	// Branch already carrying only 10 of its 100 MVA rating; injecting
	// at bus1 (fully coupled to this single branch, PTDF magnitude 1)
	// should allow close to the branch's remaining headroom.
	score, err := e.Score(0, []StressCase{{ID: "c1", BranchFlowMW: map[topology.BranchID]float64{0: 10}}})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score <= 0 || score > 1 {
		t.Fatalf("score out of range: %v", score)
	}
	// deltaMax should be min(90, 110)/coef-normalized = 90, capacity 150 -> 0.6
	want := 0.6
	if math.Abs(score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", score, want)
	}
}

func TestScore_MeanAcrossMultipleCases(t *testing.T) {
	net := twoBusNetwork(t)
	e, err := NewEngine(net, 1)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Release()

	cases := []StressCase{
		{ID: "light", BranchFlowMW: map[topology.BranchID]float64{0: 10}},  // deltaMax 90 -> ds 0.6
		{ID: "heavy", BranchFlowMW: map[topology.BranchID]float64{0: 95}},  // deltaMax 5  -> ds 1/30
	}
	score, err := e.Score(0, cases)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	want := (0.6 + 5.0/150.0) / 2
	if math.Abs(score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", score, want)
	}
}

func TestScore_NoStressCasesIsZero(t *testing.T) {
	net := twoBusNetwork(t)
	e, err := NewEngine(net, 0)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Release()

	score, err := e.Score(0, nil)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score != 0 {
		t.Errorf("expected zero score with no stress cases, got %v", score)
	}
}

func TestStatus_Banding(t *testing.T) {
	cases := []struct {
		ds   float64
		want string
	}{
		{0.95, "Excellent"},
		{0.85, "Good"},
		{0.75, "Fair"},
		{0.65, "Poor"},
		{0.3, "Critical"},
	}
	for _, c := range cases {
		if got := Status(c.ds); got != c.want {
			t.Errorf("Status(%v) = %q, want %q", c.ds, got, c.want)
		}
	}
}

func TestScoreCase_BindingBranchHalvesScore(t *testing.T) {
	// PTDF 0.5 on the only rated branch, 40 MW of its 50 MW rating in
	// use, 40 MW of capacity at the source: 20 MW of headroom -> 0.5.
	b := topology.NewBuilder(100)
	bus1 := b.AddBus("1", topology.Bus{VMin: 0.9, VMax: 1.1})
	bus2 := b.AddBus("2", topology.Bus{VMin: 0.9, VMax: 1.1})
	bus3 := b.AddBus("3", topology.Bus{VMin: 0.9, VMax: 1.1})
	// Two parallel equal-reactance paths from bus1 to bus3 split an
	// injection 50/50, putting PTDF 0.5 on each.
	b.AddBranch("a", topology.Branch{From: bus1, To: bus3, X: 0.2, Tap: 1, Status: true, RateAMVA: rate(50)})
	b.AddBranch("b1", topology.Branch{From: bus1, To: bus2, X: 0.1, Tap: 1, Status: true})
	b.AddBranch("b2", topology.Branch{From: bus2, To: bus3, X: 0.1, Tap: 1, Status: true})
	b.AddGen("g1", topology.Gen{Bus: bus1, Status: true, PMax: 40})
	b.AddLoad("d3", topology.Load{Bus: bus3, PMW: 30})
	net, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	e, err := NewEngine(net, 2) // slack at bus3
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Release()

	cs, err := e.ScoreCase(0, StressCase{ID: "peak", BranchFlowMW: map[topology.BranchID]float64{0: 40}})
	if err != nil {
		t.Fatalf("ScoreCase failed: %v", err)
	}
	if cs.PMaxMW != 40 {
		t.Errorf("PMaxMW = %v, want 40", cs.PMaxMW)
	}
	if math.Abs(cs.DS-0.5) > 1e-9 {
		t.Errorf("DS = %v, want 0.5 (20 MW headroom over 40 MW capacity)", cs.DS)
	}
}

func TestScoreCase_FullyLoadedBranchIsZero(t *testing.T) {
	net := twoBusNetwork(t)
	e, err := NewEngine(net, 1)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Release()

	cs, err := e.ScoreCase(0, StressCase{ID: "maxed", BranchFlowMW: map[topology.BranchID]float64{0: 100}})
	if err != nil {
		t.Fatalf("ScoreCase failed: %v", err)
	}
	if cs.DS != 0 {
		t.Errorf("DS = %v, want 0 when the coupled branch is at its rating", cs.DS)
	}
}

func TestScoreCase_NoRatedCouplingIsFullScore(t *testing.T) {
	// No branch carries a thermal rating, so nothing bounds injection.
	b := topology.NewBuilder(100)
	bus1 := b.AddBus("1", topology.Bus{VMin: 0.9, VMax: 1.1})
	bus2 := b.AddBus("2", topology.Bus{VMin: 0.9, VMax: 1.1})
	b.AddBranch("l1", topology.Branch{From: bus1, To: bus2, X: 0.1, Tap: 1, Status: true})
	b.AddGen("g1", topology.Gen{Bus: bus1, Status: true, PMax: 150})
	b.AddLoad("d1", topology.Load{Bus: bus2, PMW: 50})
	net, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	e, err := NewEngine(net, 1)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Release()

	cs, err := e.ScoreCase(0, StressCase{ID: "free", BranchFlowMW: map[topology.BranchID]float64{0: 10}})
	if err != nil {
		t.Fatalf("ScoreCase failed: %v", err)
	}
	if cs.DS != 1 {
		t.Errorf("DS = %v, want 1 for an unconstrained injection", cs.DS)
	}
}

func TestScoreAll_TableShape(t *testing.T) {
	net := twoBusNetwork(t)
	e, err := NewEngine(net, 1)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer e.Release()

	cases := []StressCase{
		{ID: "c1", BranchFlowMW: map[topology.BranchID]float64{0: 10}},
		{ID: "c2", BranchFlowMW: map[topology.BranchID]float64{0: 70}},
	}
	set, err := e.ScoreAll([]topology.BusID{0, 1}, cases)
	if err != nil {
		t.Fatalf("ScoreAll failed: %v", err)
	}
	if len(set.PerBusPerCase) != 4 {
		t.Fatalf("PerBusPerCase has %d rows, want 4", len(set.PerBusPerCase))
	}
	wantMean := (set.PerBusPerCase[0].DS + set.PerBusPerCase[1].DS) / 2
	if set.PerBusMean[0] != wantMean {
		t.Errorf("PerBusMean[0] = %v, want %v", set.PerBusMean[0], wantMean)
	}
	if set.PerBusMean[1] != 0 {
		t.Errorf("PerBusMean[1] = %v, want 0 (no capacity at the load bus)", set.PerBusMean[1])
	}
}
