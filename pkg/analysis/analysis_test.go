package analysis

import (
	"context"
	"testing"

	"github.com/dd0wney/gac/pkg/acpf"
	"github.com/dd0wney/gac/pkg/cache"
	"github.com/dd0wney/gac/pkg/dcpf"
	"github.com/dd0wney/gac/pkg/topology"
)

func rate(v float64) *float64 { return &v }

func vset(v float64) *float64 { return &v }

func testNetwork(t *testing.T) *topology.Network {
	t.Helper()
	b := topology.NewBuilder(100)
	bus1 := b.AddBus("1", topology.Bus{VMin: 0.9, VMax: 1.1, VoltagePU: 1.0})
	bus2 := b.AddBus("2", topology.Bus{VMin: 0.9, VMax: 1.1, VoltagePU: 1.0})
	b.AddBranch("l1", topology.Branch{From: bus1, To: bus2, X: 0.1, Tap: 1, Status: true, RateAMVA: rate(150)})
	b.AddGen("g1", topology.Gen{Bus: bus1, Status: true, PMW: 50, PMax: 200, VSetpoint: vset(1.0)})
	b.AddLoad("d1", topology.Load{Bus: bus2, PMW: 40})
	net, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return net
}

func TestDispatcher_DCPF_CachesSecondCall(t *testing.T) {
	net := testNetwork(t)
	c := cache.New(1 << 20)
	d := NewDispatcher(net, c, nil)

	r1, err := d.DCPF(dcpf.Options{})
	if err != nil {
		t.Fatalf("DCPF failed: %v", err)
	}
	_, misses, _, _ := c.Stats()
	if misses != 1 {
		t.Fatalf("expected 1 miss after first call, got %d", misses)
	}

	r2, err := d.DCPF(dcpf.Options{})
	if err != nil {
		t.Fatalf("DCPF failed: %v", err)
	}
	hits, _, _, _ := c.Stats()
	if hits != 1 {
		t.Fatalf("expected 1 hit after second call, got %d", hits)
	}

	if len(r1.AngleRad) != len(r2.AngleRad) {
		t.Fatalf("angle vector length mismatch between cached and fresh result")
	}
	for i := range r1.AngleRad {
		if r1.AngleRad[i] != r2.AngleRad[i] {
			t.Errorf("angle[%d] = %v, cached = %v", i, r1.AngleRad[i], r2.AngleRad[i])
		}
	}
}

func TestDispatcher_ACPF_RoundTripsConvergedAndIterations(t *testing.T) {
	net := testNetwork(t)
	c := cache.New(1 << 20)
	d := NewDispatcher(net, c, nil)

	r1, err := d.ACPF(context.Background(), acpf.Options{})
	if err != nil {
		t.Fatalf("ACPF failed: %v", err)
	}
	if !r1.Converged {
		t.Fatal("expected convergence on a well-conditioned two-bus network")
	}

	r2, err := d.ACPF(context.Background(), acpf.Options{})
	if err != nil {
		t.Fatalf("ACPF failed: %v", err)
	}
	if r2.Converged != r1.Converged || r2.Iterations != r1.Iterations {
		t.Errorf("cached ACPF result diverged: %+v vs %+v", r1, r2)
	}
}

func TestDispatcher_PTDFRow_Caches(t *testing.T) {
	net := testNetwork(t)
	c := cache.New(1 << 20)
	d := NewDispatcher(net, c, nil)

	row1, err := d.PTDFRow(1, 0)
	if err != nil {
		t.Fatalf("PTDFRow failed: %v", err)
	}
	row2, err := d.PTDFRow(1, 0)
	if err != nil {
		t.Fatalf("PTDFRow failed: %v", err)
	}
	if len(row1) != len(row2) {
		t.Fatalf("row length mismatch")
	}
	for k, v := range row1 {
		if row2[k] != v {
			t.Errorf("row[%v] = %v, cached = %v", k, v, row2[k])
		}
	}

	_, misses, _, _ := c.Stats()
	hits, _, _, _ := c.Stats()
	if misses != 1 || hits != 1 {
		t.Errorf("expected exactly 1 miss then 1 hit, got misses=%d hits=%d", misses, hits)
	}
}

func TestDispatcher_N1Screen_RestoresBranchStatus(t *testing.T) {
	net := testNetwork(t)
	c := cache.New(1 << 20)
	d := NewDispatcher(net, c, nil)

	_, err := d.N1Screen([][]topology.BranchID{{0}})
	if err != nil {
		t.Fatalf("N1Screen failed: %v", err)
	}
	if !net.Branch(0).Status {
		t.Error("expected branch status restored to in-service after N1Screen")
	}
}

func TestDispatcher_Reliability_Deterministic(t *testing.T) {
	net := testNetwork(t)
	c := cache.New(1 << 20)
	d := NewDispatcher(net, c, nil)

	rates := ReliabilityRates{GenFailureRate: 0.1, BranchFailureRate: 0.1}
	s1, err := d.Reliability(context.Background(), 5, 20, rates)
	if err != nil {
		t.Fatalf("Reliability failed: %v", err)
	}
	s2, err := d.Reliability(context.Background(), 5, 20, rates)
	if err != nil {
		t.Fatalf("Reliability failed: %v", err)
	}
	if s1.LOLEHoursPerYr != s2.LOLEHoursPerYr || s1.EUEMWhPerYr != s2.EUEMWhPerYr {
		t.Errorf("expected identical summaries for identical requests: %+v vs %+v", s1, s2)
	}
}

func TestDispatcher_YBus(t *testing.T) {
	net := testNetwork(t)
	d := NewDispatcher(net, cache.New(1<<20), nil)

	yb, err := d.YBus()
	if err != nil {
		t.Fatalf("YBus failed: %v", err)
	}
	if yb.Complex.N != net.NumBuses() {
		t.Errorf("Y-bus dimension = %d, want %d", yb.Complex.N, net.NumBuses())
	}
}
