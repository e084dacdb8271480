package topology

import (
	"fmt"

	"github.com/dd0wney/gac/pkg/gacerrors"
)

// Network is the immutable graph value passed to every analysis. It is
// owned by the caller and shared by read-only reference; internal code
// must index only through the dense handles in this package, never
// through SourceID strings.
type Network struct {
	BaseMVA float64

	buses    []Bus
	branches []Branch
	gens     []Gen
	loads    []Load
	shunts   []Shunt

	busSourceIndex map[string]BusID

	// adjacency[bus] lists every in-service-or-not branch incident to
	// bus, in branch-insertion order. Status filtering is the caller's
	// job (assembly paths skip out-of-service branches explicitly).
	adjacency [][]Edge

	gensByBus  map[BusID][]GenID
	loadsByBus map[BusID][]LoadID
}

// NumBuses returns the number of buses; buses are addressed 0..NumBuses()-1.
func (n *Network) NumBuses() int { return len(n.buses) }

// NumBranches returns the number of branches.
func (n *Network) NumBranches() int { return len(n.branches) }

// Buses returns the ordered bus list. This order fixes row/column
// ordering of every matrix built over the Network.
func (n *Network) Buses() []Bus { return n.buses }

// Branches returns the branch list in insertion order.
func (n *Network) Branches() []Branch { return n.branches }

// Gens returns the generator list in insertion order.
func (n *Network) Gens() []Gen { return n.gens }

// Loads returns the load list in insertion order.
func (n *Network) Loads() []Load { return n.loads }

// Shunts returns the shunt list in insertion order.
func (n *Network) Shunts() []Shunt { return n.shunts }

// Bus returns the bus at the given dense id. Panics on an out-of-range
// id; callers that accept untrusted ids should use BusByID instead.
func (n *Network) Bus(id BusID) *Bus { return &n.buses[id] }

// Branch returns the branch at the given dense id.
func (n *Network) Branch(id BranchID) *Branch { return &n.branches[id] }

// Gen returns the generator at the given dense id.
func (n *Network) Gen(id GenID) *Gen { return &n.gens[id] }

// Load returns the load at the given dense id.
func (n *Network) Load(id LoadID) *Load { return &n.loads[id] }

// Shunt returns the shunt at the given dense id.
func (n *Network) Shunt(id ShuntID) *Shunt { return &n.shunts[id] }

// BusByID resolves a source-file bus identifier to its dense BusID.
// Returns an UnknownBus error rather than panicking.
func (n *Network) BusByID(sourceID string) (BusID, error) {
	id, ok := n.busSourceIndex[sourceID]
	if !ok {
		return 0, gacerrors.Topology("bus_by_id", fmt.Errorf("%w: %q", gacerrors.ErrUnknownBus, sourceID))
	}
	return id, nil
}

// Neighbors returns every (branchID, otherBus) edge incident to bus,
// including out-of-service branches — callers filter by Branch(e.Branch).Status.
func (n *Network) Neighbors(bus BusID) []Edge {
	if int(bus) >= len(n.adjacency) {
		return nil
	}
	return n.adjacency[bus]
}

// GensAt returns the generators attached to bus.
func (n *Network) GensAt(bus BusID) []GenID { return n.gensByBus[bus] }

// LoadsAt returns the loads attached to bus.
func (n *Network) LoadsAt(bus BusID) []LoadID { return n.loadsByBus[bus] }

// NetInjectionMW returns (generation - load) in MW at bus, summed over
// in-service generators and all loads at that bus.
func (n *Network) NetInjectionMW(bus BusID) float64 {
	net := 0.0
	for _, gid := range n.gensByBus[bus] {
		g := &n.gens[gid]
		if g.Status {
			net += g.PMW
		}
	}
	for _, lid := range n.loadsByBus[bus] {
		net -= n.loads[lid].PMW
	}
	return net
}

// TotalLoadMW sums PMW across every load in the network.
func (n *Network) TotalLoadMW() float64 {
	total := 0.0
	for i := range n.loads {
		total += n.loads[i].PMW
	}
	return total
}

// DefaultSlack picks the fallback slack bus: the lowest-index bus
// with an in-service generator, or failing that the lowest-index bus.
func (n *Network) DefaultSlack() BusID {
	for bid := range n.buses {
		for _, gid := range n.gensByBus[BusID(bid)] {
			if n.gens[gid].Status {
				return BusID(bid)
			}
		}
	}
	return 0
}

// ResolveSlack validates a caller-requested slack bus. A usable slack
// must be a real BusID and sit on an active component: reachable over at
// least one in-service branch, or carrying an in-service generator of
// its own. A request failing either check is not an error — the
// contract is to fall back to DefaultSlack, the same choice made when
// no slack was requested at all.
func (n *Network) ResolveSlack(requested BusID, has bool) BusID {
	if !has || int(requested) < 0 || int(requested) >= len(n.buses) {
		return n.DefaultSlack()
	}
	for _, e := range n.adjacency[requested] {
		if n.branches[e.Branch].Status {
			return requested
		}
	}
	for _, gid := range n.gensByBus[requested] {
		if n.gens[gid].Status {
			return requested
		}
	}
	return n.DefaultSlack()
}

// Clone returns a deep copy of the network's per-element slices. The
// copy shares no mutable state with the receiver, so callers that need
// to perturb element status (contingency screens) can do so without
// violating the read-only contract every concurrent analysis relies on.
// Index maps and adjacency are shared: they derive from structure, not
// status, and neither side mutates them after construction.
func (n *Network) Clone() *Network {
	c := &Network{
		BaseMVA:        n.BaseMVA,
		buses:          append([]Bus(nil), n.buses...),
		branches:       append([]Branch(nil), n.branches...),
		gens:           append([]Gen(nil), n.gens...),
		loads:          append([]Load(nil), n.loads...),
		shunts:         append([]Shunt(nil), n.shunts...),
		busSourceIndex: n.busSourceIndex,
		adjacency:      n.adjacency,
		gensByBus:      n.gensByBus,
		loadsByBus:     n.loadsByBus,
	}
	return c
}
