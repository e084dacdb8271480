package linalg

import "sort"

type cooKey struct{ i, j int }

// COOBuilder accumulates real-valued entries by (row, col) coordinate,
// summing repeated Add calls at the same coordinate — the natural shape
// of Y-bus/B' assembly, which adds contributions from each branch to up
// to four matrix entries. Call Build once assembly is complete.
type COOBuilder struct {
	n       int
	entries map[cooKey]float64
}

// NewCOOBuilder starts a builder for an n×n matrix.
func NewCOOBuilder(n int) *COOBuilder {
	return &COOBuilder{n: n, entries: make(map[cooKey]float64, n*4)}
}

// Add accumulates v into entry (i, j).
func (b *COOBuilder) Add(i, j int, v float64) {
	b.entries[cooKey{i, j}] += v
}

// Build finalizes the builder into a CSR matrix with row-sorted column
// indices and entries below dropThreshold in absolute value omitted
// (structural zeros are not stored).
func (b *COOBuilder) Build(dropThreshold float64) *CSR {
	byRow := make([][]cooKey, b.n)
	for k := range b.entries {
		byRow[k.i] = append(byRow[k.i], k)
	}

	m := &CSR{N: b.n, RowPtr: make([]int, b.n+1)}
	for i := 0; i < b.n; i++ {
		sort.Slice(byRow[i], func(a, c int) bool { return byRow[i][a].j < byRow[i][c].j })
		for _, k := range byRow[i] {
			v := b.entries[k]
			if abs(v) <= dropThreshold {
				continue
			}
			m.ColIdx = append(m.ColIdx, k.j)
			m.Val = append(m.Val, v)
		}
		m.RowPtr[i+1] = len(m.ColIdx)
	}
	return m
}

// COOBuilderComplex is the complex-valued counterpart, used by Y-bus
// assembly.
type COOBuilderComplex struct {
	n       int
	entries map[cooKey]complex128
}

// NewCOOBuilderComplex starts a builder for an n×n complex matrix.
func NewCOOBuilderComplex(n int) *COOBuilderComplex {
	return &COOBuilderComplex{n: n, entries: make(map[cooKey]complex128, n*4)}
}

// Add accumulates v into entry (i, j).
func (b *COOBuilderComplex) Add(i, j int, v complex128) {
	b.entries[cooKey{i, j}] += v
}

// Build finalizes the builder into a CSRComplex matrix.
func (b *COOBuilderComplex) Build() *CSRComplex {
	byRow := make([][]cooKey, b.n)
	for k := range b.entries {
		byRow[k.i] = append(byRow[k.i], k)
	}

	m := &CSRComplex{N: b.n, RowPtr: make([]int, b.n+1)}
	for i := 0; i < b.n; i++ {
		sort.Slice(byRow[i], func(a, c int) bool { return byRow[i][a].j < byRow[i][c].j })
		for _, k := range byRow[i] {
			m.ColIdx = append(m.ColIdx, k.j)
			m.Val = append(m.Val, b.entries[k])
		}
		m.RowPtr[i+1] = len(m.ColIdx)
	}
	return m
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
