package outage

import (
	"testing"

	"github.com/dd0wney/gac/pkg/topology"
)

func threeGenNetwork(t *testing.T) *topology.Network {
	t.Helper()
	b := topology.NewBuilder(100)
	bus1 := b.AddBus("1", topology.Bus{VMin: 0.9, VMax: 1.1})
	bus2 := b.AddBus("2", topology.Bus{VMin: 0.9, VMax: 1.1})
	b.AddBranch("l1", topology.Branch{From: bus1, To: bus2, X: 0.1, Tap: 1, Status: true})
	b.AddBranch("l2", topology.Branch{From: bus1, To: bus2, X: 0.2, Tap: 1, Status: true})
	b.AddGen("g1", topology.Gen{Bus: bus1, Status: true, PMax: 100})
	b.AddGen("g2", topology.Gen{Bus: bus1, Status: true, PMax: 100})
	b.AddGen("g3", topology.Gen{Bus: bus2, Status: true, PMax: 100})
	b.AddLoad("d1", topology.Load{Bus: bus2, PMW: 150})
	net, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return net
}

func TestGenerate_DeterministicAcrossCalls(t *testing.T) {
	net := threeGenNetwork(t)
	rates := Rates{GenFailureRate: 0.1, BranchFailureRate: 0.05}

	a := Generate(net, 42, 20, rates)
	b := Generate(net, 42, 20, rates)

	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].DemandScale != b[i].DemandScale {
			t.Errorf("scenario %d: demand scale %v != %v", i, a[i].DemandScale, b[i].DemandScale)
		}
		if len(a[i].OfflineGenerators) != len(b[i].OfflineGenerators) {
			t.Errorf("scenario %d: offline gen count differs", i)
		}
		for g := range a[i].OfflineGenerators {
			if !b[i].OfflineGenerators[g] {
				t.Errorf("scenario %d: gen %v offline in run a but not b", i, g)
			}
		}
		if len(a[i].OfflineBranches) != len(b[i].OfflineBranches) {
			t.Errorf("scenario %d: offline branch count differs", i)
		}
	}
}

func TestGenerate_DifferentSeedsDiverge(t *testing.T) {
	net := threeGenNetwork(t)
	rates := Rates{GenFailureRate: 0.3, BranchFailureRate: 0.3}

	a := Generate(net, 1, 50, rates)
	b := Generate(net, 2, 50, rates)

	identical := true
	for i := range a {
		if a[i].DemandScale != b[i].DemandScale {
			identical = false
			break
		}
	}
	if identical {
		t.Fatal("expected different seeds to produce different demand scale sequences")
	}
}

func TestGenerate_ZeroFailureRateKeepsEverythingOnline(t *testing.T) {
	net := threeGenNetwork(t)
	rates := Rates{GenFailureRate: 0, BranchFailureRate: 0}

	scenarios := Generate(net, 7, 10, rates)
	for _, s := range scenarios {
		if len(s.OfflineGenerators) != 0 {
			t.Errorf("scenario %d: expected no offline generators, got %v", s.Index, s.OfflineGenerators)
		}
		if len(s.OfflineBranches) != 0 {
			t.Errorf("scenario %d: expected no offline branches, got %v", s.Index, s.OfflineBranches)
		}
	}
}

func TestGenerate_CertainFailureRateTakesEverythingOffline(t *testing.T) {
	net := threeGenNetwork(t)
	rates := Rates{GenFailureRate: 1.0, BranchFailureRate: 1.0}

	scenarios := Generate(net, 3, 5, rates)
	for _, s := range scenarios {
		if len(s.OfflineGenerators) != len(net.Gens()) {
			t.Errorf("scenario %d: expected all %d generators offline, got %d", s.Index, len(net.Gens()), len(s.OfflineGenerators))
		}
		if len(s.OfflineBranches) != len(net.Branches()) {
			t.Errorf("scenario %d: expected all %d branches offline, got %d", s.Index, len(net.Branches()), len(s.OfflineBranches))
		}
	}
}

func TestGenerate_DemandScaleWithinDefaultRange(t *testing.T) {
	net := threeGenNetwork(t)
	scenarios := Generate(net, 99, 200, Rates{GenFailureRate: 0.2, BranchFailureRate: 0.2})
	for _, s := range scenarios {
		if s.DemandScale < 0.8 || s.DemandScale > 1.2 {
			t.Errorf("scenario %d: demand scale %v out of default [0.8, 1.2] range", s.Index, s.DemandScale)
		}
	}
}

func TestGenerate_ProbabilityIsUniform(t *testing.T) {
	net := threeGenNetwork(t)
	scenarios := Generate(net, 5, 4, Rates{GenFailureRate: 0.1, BranchFailureRate: 0.1})
	for _, s := range scenarios {
		if s.Probability != 0.25 {
			t.Errorf("scenario %d: probability %v, want 0.25", s.Index, s.Probability)
		}
	}
}

func TestHasCapacity_InsufficientOnlineGeneration(t *testing.T) {
	net := threeGenNetwork(t)
	s := Scenario{
		OfflineGenerators: map[topology.GenID]bool{0: true, 1: true},
		DemandScale:       1.0,
	}
	if s.HasCapacity(net, 150) {
		t.Error("expected insufficient capacity with only g3 (100 MW) online against 150 MW load")
	}
}

func TestHasCapacity_SufficientOnlineGeneration(t *testing.T) {
	net := threeGenNetwork(t)
	s := Scenario{
		OfflineGenerators: map[topology.GenID]bool{1: true},
		DemandScale:       1.0,
	}
	if !s.HasCapacity(net, 150) {
		t.Error("expected sufficient capacity with g1+g3 (200 MW) online against 150 MW load")
	}
}
