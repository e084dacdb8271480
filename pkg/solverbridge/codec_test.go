package solverbridge

import (
	"bytes"
	"testing"
)

func TestWriteProblem_ProducesNonEmptyFrame(t *testing.T) {
	problem := &Problem{
		Meta: Meta{BaseMVA: 100, Tolerance: 1e-6, MaxIter: 50},
		Buses: []BusRow{
			{BusID: 0, VMin: 0.9, VMax: 1.1, BusType: BusTypeSlack, VMagInit: 1.0},
			{BusID: 1, VMin: 0.9, VMax: 1.1, PLoad: 100, BusType: BusTypePQ, VMagInit: 1.0},
		},
		Gens: []GenRow{
			{GenID: 0, BusID: 0, PMax: 200, QMax: 100, QMin: -100},
		},
		Branches: []BranchRow{
			{BranchID: 0, From: 0, To: 1, X: 0.1, Rate: 150, Tap: 1},
		},
	}

	var buf bytes.Buffer
	if err := WriteProblem(&buf, problem); err != nil {
		t.Fatalf("WriteProblem failed: %v", err)
	}
	if buf.Len() <= 8 {
		t.Fatalf("expected frame with nonzero payload, got %d bytes", buf.Len())
	}
}

func TestReadSolution_SchemaMismatch(t *testing.T) {
	var buf bytes.Buffer
	badPayload := []byte{2, 0, 0, 0} // version=2, little-endian uint32
	if err := writeFrame(&buf, badPayload); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}

	_, err := ReadSolution(&buf)
	if err == nil {
		t.Fatalf("expected schema mismatch error")
	}
}

func TestWriteSolution_ReadSolution_RoundTrip(t *testing.T) {
	want := &Solution{
		Status:      StatusOptimal,
		Objective:   1234.5,
		Iterations:  10,
		SolveTimeMS: 42.0,
		Buses:       []BusResult{{VMag: 1.0, VAng: 0, LMP: 25.5}},
		Gens:        []GenResult{{P: 100, Q: 10}},
		Branches:    []BranchResult{{PFrom: 100, QFrom: 10, PTo: -99, QTo: -9}},
	}

	var buf bytes.Buffer
	if err := WriteSolution(&buf, want); err != nil {
		t.Fatalf("WriteSolution failed: %v", err)
	}

	got, err := ReadSolution(&buf)
	if err != nil {
		t.Fatalf("ReadSolution failed: %v", err)
	}
	if got.Status != want.Status {
		t.Errorf("Status = %v, want %v", got.Status, want.Status)
	}
	if got.Objective != want.Objective {
		t.Errorf("Objective = %v, want %v", got.Objective, want.Objective)
	}
	if len(got.Buses) != 1 || got.Buses[0].LMP != 25.5 {
		t.Errorf("Buses = %+v", got.Buses)
	}
	if len(got.Branches) != 1 || got.Branches[0].PFrom != 100 {
		t.Errorf("Branches = %+v", got.Branches)
	}
}

func TestReadSolution_InfeasibleStatus(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSolution(&buf, &Solution{Status: StatusInfeasible, ErrorMessage: "branch_12_thermal"}); err != nil {
		t.Fatalf("WriteSolution failed: %v", err)
	}
	sol, err := ReadSolution(&buf)
	if err != nil {
		t.Fatalf("ReadSolution failed: %v", err)
	}
	if sol.Status != StatusInfeasible {
		t.Errorf("Status = %v, want infeasible", sol.Status)
	}
	if sol.ErrorMessage != "branch_12_thermal" {
		t.Errorf("ErrorMessage = %q", sol.ErrorMessage)
	}
}
