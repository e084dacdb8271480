package topology

import (
	"fmt"
	"math"

	"github.com/dd0wney/gac/pkg/gacerrors"
)

// MinReactance is the smallest |x_pu| accepted on a branch. Branches
// below this are zero-impedance and rejected at ingestion time, not
// analysis time — the in-memory Network is assumed already validated.
const MinReactance = 1e-12

// Validate applies the ingestion-time rules: no zero-impedance
// branches, tap_ratio > 0, pmax >= pmin, qmax >= qmin, all bus references
// resolve, and at least one bus if the network has any equipment at all.
// It never mutates net.
func Validate(net *Network) error {
	if err := validateBranches(net); err != nil {
		return err
	}
	if err := validateGens(net); err != nil {
		return err
	}
	if err := validateLoadsAndShunts(net); err != nil {
		return err
	}
	if len(net.buses) == 0 && (len(net.branches) > 0 || len(net.gens) > 0 || len(net.loads) > 0) {
		return gacerrors.InvalidInput("validate", fmt.Errorf("network has equipment but no buses"))
	}
	return nil
}

func validateBranches(net *Network) error {
	for i := range net.branches {
		br := &net.branches[i]
		if int(br.From) >= len(net.buses) || int(br.To) >= len(net.buses) {
			return gacerrors.Topology("validate_branch",
				fmt.Errorf("%w: branch %s references bus out of range", gacerrors.ErrUnknownBus, br.ID))
		}
		if br.R == 0 && br.X == 0 {
			return gacerrors.Topology("validate_branch",
				fmt.Errorf("%w: branch %s has r=0 and x=0", gacerrors.ErrZeroImpedance, br.ID))
		}
		if math.Abs(br.X) < MinReactance {
			return gacerrors.Topology("validate_branch",
				fmt.Errorf("%w: branch %s |x|=%g below minimum %g", gacerrors.ErrZeroImpedance, br.ID, br.X, MinReactance))
		}
		if br.Tap <= 0 {
			return gacerrors.InvalidInput("validate_branch",
				fmt.Errorf("branch %s tap_ratio %g must be > 0", br.ID, br.Tap))
		}
	}
	return nil
}

func validateGens(net *Network) error {
	for i := range net.gens {
		g := &net.gens[i]
		if int(g.Bus) >= len(net.buses) {
			return gacerrors.Topology("validate_gen",
				fmt.Errorf("%w: gen %s references bus out of range", gacerrors.ErrUnknownBus, g.ID))
		}
		if g.PMax < g.PMin {
			return gacerrors.InvalidInput("validate_gen",
				fmt.Errorf("gen %s pmax %g < pmin %g", g.ID, g.PMax, g.PMin))
		}
		if g.QMax < g.QMin {
			return gacerrors.InvalidInput("validate_gen",
				fmt.Errorf("gen %s qmax %g < qmin %g", g.ID, g.QMax, g.QMin))
		}
		if g.Cost.Kind == CostPiecewiseLinear {
			for j := 1; j < len(g.Cost.PWL); j++ {
				if g.Cost.PWL[j].PMW < g.Cost.PWL[j-1].PMW {
					return gacerrors.InvalidInput("validate_gen",
						fmt.Errorf("gen %s piecewise cost points not ordered by p", g.ID))
				}
			}
		}
	}
	return nil
}

func validateLoadsAndShunts(net *Network) error {
	for i := range net.loads {
		l := &net.loads[i]
		if int(l.Bus) >= len(net.buses) {
			return gacerrors.Topology("validate_load",
				fmt.Errorf("%w: load %s references bus out of range", gacerrors.ErrUnknownBus, l.ID))
		}
	}
	for i := range net.shunts {
		s := &net.shunts[i]
		if int(s.Bus) >= len(net.buses) {
			return gacerrors.Topology("validate_shunt",
				fmt.Errorf("%w: shunt %s references bus out of range", gacerrors.ErrUnknownBus, s.ID))
		}
	}
	return nil
}
