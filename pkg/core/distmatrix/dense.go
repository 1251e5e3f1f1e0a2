// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix

import (
	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"gonum.org/v1/gonum/mat"
)

// ToDense returns the whole matrix as a gonum matrix on every grid process, replicating it
// first if needed. It is collective over the grid. Processes outside the grid get nil, and
// matrices with no entries give an empty *mat.Dense.
func ToDense(m *Matrix[float64]) *mat.Dense {
	full := m
	if m.pair != dist.StarStar {
		full = Redistribute(m, dist.STAR, dist.STAR)
	}
	if !m.grid.InGrid() {
		return nil
	}
	if m.height == 0 || m.width == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(m.height, m.width, nil)
	for j := range m.width {
		for i := range m.height {
			d.Set(i, j, full.local.data[full.local.index(i, j)])
		}
	}
	return d
}

// FromDense distributes a gonum matrix, known in full by every grid process, as (colDist, rowDist).
// No communication is needed since every process already has the data.
func FromDense(g *grid.Grid, a mat.Matrix, colDist, rowDist dist.Dist) *Matrix[float64] {
	height, width := a.Dims()
	full := NewWithSize[float64](g, dist.STAR, dist.STAR, height, width)
	full.Fill(a.At)
	if full.pair == (dist.Pair{Col: colDist, Row: rowDist}) {
		return full
	}
	return Redistribute(full, colDist, rowDist)
}
