package topology

// Builder assembles a Network incrementally, assigning dense ids in
// insertion order and maintaining the source-id ↔ dense-index mapping
// (matrices demand dense contiguous indices; source ids are sparse). File-format
// parsing (MATPOWER, PSS/E, CIM, Arrow) is an external collaborator; it is
// expected to drive this Builder, not to construct a Network directly.
type Builder struct {
	net Network
}

// NewBuilder starts a new Network under construction with the given
// system MVA base.
func NewBuilder(baseMVA float64) *Builder {
	return &Builder{net: Network{
		BaseMVA:        baseMVA,
		busSourceIndex: make(map[string]BusID),
		gensByBus:      make(map[BusID][]GenID),
		loadsByBus:     make(map[BusID][]LoadID),
	}}
}

// AddBus appends a bus and returns its dense BusID. sourceID is the
// possibly-sparse external identifier; it must be unique within the
// Builder's lifetime.
func (b *Builder) AddBus(sourceID string, bus Bus) BusID {
	id := BusID(len(b.net.buses))
	bus.ID = id
	bus.SourceID = sourceID
	b.net.buses = append(b.net.buses, bus)
	b.net.adjacency = append(b.net.adjacency, nil)
	b.net.busSourceIndex[sourceID] = id
	return id
}

// AddBranch appends a branch between two already-added buses and
// registers it in both endpoints' adjacency lists.
func (b *Builder) AddBranch(sourceID string, branch Branch) BranchID {
	id := BranchID(len(b.net.branches))
	branch.ID = id
	branch.SourceID = sourceID
	b.net.branches = append(b.net.branches, branch)
	b.net.adjacency[branch.From] = append(b.net.adjacency[branch.From], Edge{Branch: id, OtherBus: branch.To})
	b.net.adjacency[branch.To] = append(b.net.adjacency[branch.To], Edge{Branch: id, OtherBus: branch.From})
	return id
}

// AddGen appends a generator attached to bus gen.Bus.
func (b *Builder) AddGen(sourceID string, gen Gen) GenID {
	id := GenID(len(b.net.gens))
	gen.ID = id
	gen.SourceID = sourceID
	b.net.gens = append(b.net.gens, gen)
	b.net.gensByBus[gen.Bus] = append(b.net.gensByBus[gen.Bus], id)
	return id
}

// AddLoad appends a load attached to bus load.Bus.
func (b *Builder) AddLoad(sourceID string, load Load) LoadID {
	id := LoadID(len(b.net.loads))
	load.ID = id
	load.SourceID = sourceID
	b.net.loads = append(b.net.loads, load)
	b.net.loadsByBus[load.Bus] = append(b.net.loadsByBus[load.Bus], id)
	return id
}

// AddShunt appends a shunt attached to bus shunt.Bus.
func (b *Builder) AddShunt(sourceID string, shunt Shunt) ShuntID {
	id := ShuntID(len(b.net.shunts))
	shunt.ID = id
	shunt.SourceID = sourceID
	b.net.shunts = append(b.net.shunts, shunt)
	return id
}

// Build validates the assembled Network and returns it. On
// validation failure the partially built Network is discarded.
func (b *Builder) Build() (*Network, error) {
	net := b.net
	if err := Validate(&net); err != nil {
		return nil, err
	}
	return &net, nil
}
