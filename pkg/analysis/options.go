package analysis

import (
	"encoding/binary"
	"math"

	"github.com/dd0wney/gac/pkg/acpf"
	"github.com/dd0wney/gac/pkg/dcpf"
	"github.com/dd0wney/gac/pkg/outage"
	"github.com/dd0wney/gac/pkg/topology"
)

// ReliabilityRates bundles the Outage Scenario Generator's configurable
// rates with the aggregator's worker count, so one value captures every
// input that must be part of a reliability request's cache fingerprint.
type ReliabilityRates struct {
	GenFailureRate    float64
	BranchFailureRate float64
	DemandMin         float64
	DemandMax         float64
	Workers           int
}

func (r ReliabilityRates) generate(net *topology.Network, seed uint64, numScenarios int) []outage.Scenario {
	return outage.Generate(net, seed, numScenarios, outage.Rates{
		GenFailureRate:    r.GenFailureRate,
		BranchFailureRate: r.BranchFailureRate,
		DemandMin:         r.DemandMin,
		DemandMax:         r.DemandMax,
	})
}

// The encode* helpers below serialize each request's option struct into
// the flat byte payload cache.ComputeFingerprint folds into the
// fingerprint hash, so that two requests differing only in, say,
// tolerance never collide on the same cache entry.

func encodeDCPFOptions(opts dcpf.Options) []byte {
	buf := make([]byte, 0, 9)
	buf = appendBool(buf, opts.HasSlack)
	buf = appendU32(buf, uint32(opts.SlackBus))
	buf = appendU32(buf, uint32(opts.BackendKind))
	return buf
}

func encodeACPFOptions(opts acpf.Options) []byte {
	buf := make([]byte, 0, 32)
	buf = appendFloat(buf, opts.Tol)
	buf = appendU32(buf, uint32(opts.MaxIter))
	buf = appendBool(buf, opts.HasSlack)
	buf = appendU32(buf, uint32(opts.SlackBus))
	buf = appendBool(buf, opts.FlatStart)
	buf = appendBool(buf, opts.EnforceQLimits)
	return buf
}

func encodePTDFRowOptions(slack, source topology.BusID) []byte {
	buf := make([]byte, 0, 8)
	buf = appendU32(buf, uint32(slack))
	buf = appendU32(buf, uint32(source))
	return buf
}

func encodeReliabilityOptions(seed uint64, numScenarios int, rates ReliabilityRates) []byte {
	buf := make([]byte, 0, 48)
	var seedBuf [8]byte
	binary.LittleEndian.PutUint64(seedBuf[:], seed)
	buf = append(buf, seedBuf[:]...)
	buf = appendU32(buf, uint32(numScenarios))
	buf = appendFloat(buf, rates.GenFailureRate)
	buf = appendFloat(buf, rates.BranchFailureRate)
	buf = appendFloat(buf, rates.DemandMin)
	buf = appendFloat(buf, rates.DemandMax)
	return buf
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendFloat(buf []byte, f float64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(f))
	return append(buf, tmp[:]...)
}

func appendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 1)
	}
	return append(buf, 0)
}
