package cache

import (
	"encoding/binary"
	"math"

	"github.com/golang/snappy"
	"golang.org/x/crypto/blake2b"

	"github.com/dd0wney/gac/pkg/topology"
)

// ComputeFingerprint hashes a network's canonical serialization together with a
// request discriminant (e.g. "dcpf", "acpf", "ptdf_row") and its options
// payload into one content-addressed key.
func ComputeFingerprint(net *topology.Network, discriminant string, optionsPayload []byte) Fingerprint {
	h, _ := blake2b.New256(nil) // nil key, no error path for an unkeyed 256-bit hash
	writeNetworkCanonical(h, net)
	h.Write([]byte{0}) // separator, keeps discriminant from blending into a bus ID's trailing bytes
	h.Write([]byte(discriminant))
	h.Write([]byte{0})
	h.Write(optionsPayload)

	var out Fingerprint
	copy(out[:], h.Sum(nil))
	return out
}

// writeNetworkCanonical feeds a deterministic byte representation of net
// into h: every field that participates in assembly or solve results,
// in dense-ID order, so two Networks with identical electrical content
// (regardless of build-time map iteration order) hash identically.
func writeNetworkCanonical(h interface{ Write([]byte) (int, error) }, net *topology.Network) {
	var buf [8]byte

	writeFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}
	writeU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[:4], v)
		h.Write(buf[:4])
	}

	writeU32(uint32(net.NumBuses()))
	writeFloat(net.BaseMVA)
	for _, bus := range net.Buses() {
		writeFloat(bus.VMin)
		writeFloat(bus.VMax)
		writeFloat(bus.BaseKV)
	}

	writeU32(uint32(net.NumBranches()))
	for _, br := range net.Branches() {
		writeU32(uint32(br.From))
		writeU32(uint32(br.To))
		writeFloat(br.R)
		writeFloat(br.X)
		writeFloat(br.B)
		writeFloat(br.Tap)
		writeFloat(br.ShiftRad)
		if br.Status {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}

	gens := net.Gens()
	writeU32(uint32(len(gens)))
	for _, g := range gens {
		writeU32(uint32(g.Bus))
		writeFloat(g.PMW)
		writeFloat(g.QMVAR)
		writeFloat(g.PMin)
		writeFloat(g.PMax)
		writeFloat(g.QMin)
		writeFloat(g.QMax)
		// Presence byte ahead of the value: a nil setpoint and a 0.0
		// setpoint are different schedules and must hash differently.
		if g.VSetpoint != nil {
			h.Write([]byte{1})
			writeFloat(*g.VSetpoint)
		} else {
			h.Write([]byte{0})
		}
		if g.Status {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}

	loads := net.Loads()
	writeU32(uint32(len(loads)))
	for _, l := range loads {
		writeU32(uint32(l.Bus))
		writeFloat(l.PMW)
		writeFloat(l.QMVAR)
	}
}

// Compress snappy-compresses payload into an Entry, recording the
// original length for the cache's byte-budget accounting.
func Compress(payload []byte) Entry {
	return Entry{
		Payload:       snappy.Encode(nil, payload),
		UncompressedN: len(payload),
	}
}

// Decompress reverses Compress.
func Decompress(e Entry) ([]byte, error) {
	return snappy.Decode(nil, e.Payload)
}
