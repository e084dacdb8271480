package solverbridge

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dd0wney/gac/pkg/gacerrors"
	"github.com/dd0wney/gac/pkg/pools"
)

// WriteProblem writes one length-prefixed columnar problem batch to w: an
// 8-byte little-endian byte count followed by the batch payload
func WriteProblem(w io.Writer, p *Problem) error {
	var buf bytes.Buffer
	enc := binary.LittleEndian

	write := func(v any) error { return binary.Write(&buf, enc, v) }

	if err := write(uint32(ProtocolVersion)); err != nil {
		return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
	}
	if err := write(p.Meta.BaseMVA); err != nil {
		return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
	}
	if err := write(p.Meta.Tolerance); err != nil {
		return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
	}
	if err := write(p.Meta.MaxIter); err != nil {
		return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
	}

	if err := write(uint32(len(p.Buses))); err != nil {
		return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
	}
	for _, b := range p.Buses {
		if err := write(b.BusID); err != nil {
			return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
		}
		for _, f := range []float64{b.VMin, b.VMax, b.PLoad, b.QLoad} {
			if err := write(f); err != nil {
				return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
			}
		}
		if err := write(uint8(b.BusType)); err != nil {
			return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
		}
		for _, f := range []float64{b.VMagInit, b.VAngInit} {
			if err := write(f); err != nil {
				return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
			}
		}
	}

	if err := write(uint32(len(p.Gens))); err != nil {
		return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
	}
	for _, g := range p.Gens {
		if err := write(g.GenID); err != nil {
			return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
		}
		if err := write(g.BusID); err != nil {
			return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
		}
		for _, f := range []float64{g.PMin, g.PMax, g.QMin, g.QMax, g.CostC0, g.CostC1, g.CostC2} {
			if err := write(f); err != nil {
				return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
			}
		}
	}

	if err := write(uint32(len(p.Branches))); err != nil {
		return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
	}
	for _, br := range p.Branches {
		if err := write(br.BranchID); err != nil {
			return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
		}
		if err := write(br.From); err != nil {
			return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
		}
		if err := write(br.To); err != nil {
			return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
		}
		for _, f := range []float64{br.R, br.X, br.B, br.Rate, br.Tap, br.Shift} {
			if err := write(f); err != nil {
				return gacerrors.SolverProtocol("solverbridge.WriteProblem", err)
			}
		}
	}

	return writeFrame(w, buf.Bytes())
}

// ReadSolution reads one length-prefixed columnar solution batch from r,
// A version mismatch against ProtocolVersion is a SolverProtocol
// error wrapping ErrSchemaMismatch, not a panic.
func ReadSolution(r io.Reader) (*Solution, error) {
	payload, err := readFrame(r)
	if err != nil {
		return nil, gacerrors.SolverProtocol("solverbridge.ReadSolution", err)
	}
	// binary.Read copies out of payload, so the frame buffer can go
	// back to the pool as soon as parsing finishes.
	defer pools.PutBytes(payload)
	buf := bytes.NewReader(payload)
	enc := binary.LittleEndian

	var version uint32
	if err := binary.Read(buf, enc, &version); err != nil {
		return nil, gacerrors.SolverProtocol("solverbridge.ReadSolution", gacerrors.ErrDeserialize)
	}
	if version != ProtocolVersion {
		return nil, gacerrors.New(gacerrors.KindSolverProtocol, "solverbridge.ReadSolution",
			fmt.Errorf("%w: got %d, want %d", gacerrors.ErrSchemaMismatch, version, ProtocolVersion))
	}

	sol := &Solution{}
	var status uint8
	if err := binary.Read(buf, enc, &status); err != nil {
		return nil, gacerrors.SolverProtocol("solverbridge.ReadSolution", gacerrors.ErrDeserialize)
	}
	sol.Status = Status(status)

	for _, dst := range []*float64{&sol.Objective, &sol.SolveTimeMS} {
		if err := binary.Read(buf, enc, dst); err != nil {
			return nil, gacerrors.SolverProtocol("solverbridge.ReadSolution", gacerrors.ErrDeserialize)
		}
	}
	if err := binary.Read(buf, enc, &sol.Iterations); err != nil {
		return nil, gacerrors.SolverProtocol("solverbridge.ReadSolution", gacerrors.ErrDeserialize)
	}

	var msgLen uint32
	if err := binary.Read(buf, enc, &msgLen); err != nil {
		return nil, gacerrors.SolverProtocol("solverbridge.ReadSolution", gacerrors.ErrDeserialize)
	}
	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(buf, msg); err != nil {
		return nil, gacerrors.SolverProtocol("solverbridge.ReadSolution", gacerrors.ErrDeserialize)
	}
	sol.ErrorMessage = string(msg)

	var numBuses uint32
	if err := binary.Read(buf, enc, &numBuses); err != nil {
		return nil, gacerrors.SolverProtocol("solverbridge.ReadSolution", gacerrors.ErrDeserialize)
	}
	sol.Buses = make([]BusResult, numBuses)
	for i := range sol.Buses {
		for _, dst := range []*float64{&sol.Buses[i].VMag, &sol.Buses[i].VAng, &sol.Buses[i].LMP} {
			if err := binary.Read(buf, enc, dst); err != nil {
				return nil, gacerrors.SolverProtocol("solverbridge.ReadSolution", gacerrors.ErrDeserialize)
			}
		}
	}

	var numGens uint32
	if err := binary.Read(buf, enc, &numGens); err != nil {
		return nil, gacerrors.SolverProtocol("solverbridge.ReadSolution", gacerrors.ErrDeserialize)
	}
	sol.Gens = make([]GenResult, numGens)
	for i := range sol.Gens {
		for _, dst := range []*float64{&sol.Gens[i].P, &sol.Gens[i].Q} {
			if err := binary.Read(buf, enc, dst); err != nil {
				return nil, gacerrors.SolverProtocol("solverbridge.ReadSolution", gacerrors.ErrDeserialize)
			}
		}
	}

	var numBranches uint32
	if err := binary.Read(buf, enc, &numBranches); err != nil {
		return nil, gacerrors.SolverProtocol("solverbridge.ReadSolution", gacerrors.ErrDeserialize)
	}
	sol.Branches = make([]BranchResult, numBranches)
	for i := range sol.Branches {
		for _, dst := range []*float64{&sol.Branches[i].PFrom, &sol.Branches[i].QFrom, &sol.Branches[i].PTo, &sol.Branches[i].QTo} {
			if err := binary.Read(buf, enc, dst); err != nil {
				return nil, gacerrors.SolverProtocol("solverbridge.ReadSolution", gacerrors.ErrDeserialize)
			}
		}
	}

	return sol, nil
}

// WriteSolution writes one length-prefixed columnar solution batch to w,
// the mirror of ReadSolution. Production callers never call this (the
// solver subprocess writes solutions, GAC only reads them); it exists so
// tests can construct wire-valid fixtures without a real subprocess.
func WriteSolution(w io.Writer, s *Solution) error {
	var buf bytes.Buffer
	enc := binary.LittleEndian
	write := func(v any) error { return binary.Write(&buf, enc, v) }

	if err := write(uint32(ProtocolVersion)); err != nil {
		return err
	}
	if err := write(uint8(s.Status)); err != nil {
		return err
	}
	if err := write(s.Objective); err != nil {
		return err
	}
	if err := write(s.SolveTimeMS); err != nil {
		return err
	}
	if err := write(s.Iterations); err != nil {
		return err
	}
	if err := write(uint32(len(s.ErrorMessage))); err != nil {
		return err
	}
	if _, err := buf.WriteString(s.ErrorMessage); err != nil {
		return err
	}

	if err := write(uint32(len(s.Buses))); err != nil {
		return err
	}
	for _, b := range s.Buses {
		for _, f := range []float64{b.VMag, b.VAng, b.LMP} {
			if err := write(f); err != nil {
				return err
			}
		}
	}

	if err := write(uint32(len(s.Gens))); err != nil {
		return err
	}
	for _, g := range s.Gens {
		for _, f := range []float64{g.P, g.Q} {
			if err := write(f); err != nil {
				return err
			}
		}
	}

	if err := write(uint32(len(s.Branches))); err != nil {
		return err
	}
	for _, br := range s.Branches {
		for _, f := range []float64{br.PFrom, br.QFrom, br.PTo, br.QTo} {
			if err := write(f); err != nil {
				return err
			}
		}
	}

	return writeFrame(w, buf.Bytes())
}

func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return gacerrors.SolverProtocol("solverbridge.writeFrame", err)
	}
	if _, err := w.Write(payload); err != nil {
		return gacerrors.SolverProtocol("solverbridge.writeFrame", err)
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	payload := pools.GetBytesSized(int(n))
	if _, err := io.ReadFull(r, payload); err != nil {
		pools.PutBytes(payload)
		return nil, err
	}
	return payload, nil
}
