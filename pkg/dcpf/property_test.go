package dcpf

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/gac/pkg/topology"
)

func propNetwork(n int, x, shift float64, tap float64) *topology.Network {
	b := topology.NewBuilder(100)
	ids := make([]topology.BusID, n)
	for i := 0; i < n; i++ {
		ids[i] = b.AddBus(string(rune('a'+i)), topology.Bus{VMin: 0.9, VMax: 1.1})
	}
	for i := 0; i < n-1; i++ {
		br := topology.Branch{
			From: ids[i], To: ids[i+1],
			X:   x * (1.0 + float64(i)*0.25),
			Tap: 1, Status: true,
		}
		// Give one branch transformer character so the invariant is
		// exercised with tap and phase shift in play, not just lines.
		if i == 0 {
			br.Tap = tap
			br.ShiftRad = shift
			br.ElementType = topology.ElementTransformer
		}
		b.AddBranch(string(rune('A'+i)), br)
	}
	b.AddGen("g", topology.Gen{Bus: ids[0], Status: true, PMW: 40, PMax: 100})
	b.AddLoad("d", topology.Load{Bus: ids[n-1], PMW: 40})
	net, err := b.Build()
	if err != nil {
		panic(err)
	}
	return net
}

// TestFlowInvariant checks that every reported branch flow is consistent
// with the solved angles: f = ((theta_from - theta_to) - shift)/(x*tap) * baseMVA.
func TestFlowInvariant(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("branch flows match angle differences", prop.ForAll(
		func(n int, x, shift, tap float64) bool {
			net := propNetwork(n, x, shift, tap)
			res, err := Solve(net, Options{})
			if err != nil {
				return false
			}
			for i := range net.Branches() {
				br := net.Branch(topology.BranchID(i))
				if !br.Status {
					continue
				}
				want := ((res.AngleRad[br.From]-res.AngleRad[br.To])-br.ShiftRad)/(br.X*br.Tap)*net.BaseMVA
				if math.Abs(want-res.BranchFlows[br.ID]) > 1e-9 {
					return false
				}
			}
			return true
		},
		gen.IntRange(2, 8),
		gen.Float64Range(0.05, 0.5),
		gen.Float64Range(-0.1, 0.1),
		gen.Float64Range(0.9, 1.1),
	))

	properties.Property("angles are zero when nothing is injected", prop.ForAll(
		func(n int, x float64) bool {
			b := topology.NewBuilder(100)
			ids := make([]topology.BusID, n)
			for i := 0; i < n; i++ {
				ids[i] = b.AddBus(string(rune('a'+i)), topology.Bus{VMin: 0.9, VMax: 1.1})
			}
			for i := 0; i < n-1; i++ {
				b.AddBranch(string(rune('A'+i)), topology.Branch{
					From: ids[i], To: ids[i+1], X: x, Tap: 1, Status: true,
				})
			}
			b.AddGen("g", topology.Gen{Bus: ids[0], Status: true, PMax: 100})
			net, err := b.Build()
			if err != nil {
				return false
			}
			res, err := Solve(net, Options{})
			if err != nil {
				return false
			}
			for _, a := range res.AngleRad {
				if a != 0 {
					return false
				}
			}
			return true
		},
		gen.IntRange(2, 6),
		gen.Float64Range(0.05, 0.5),
	))

	properties.TestingRun(t)
}
