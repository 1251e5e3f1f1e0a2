// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package handles

import (
	"github.com/gomlx/meshmatrix/pkg/core/grid"
)

// GridCreate creates a grid of the given height over all processes of the table's communicator.
// A height <= 0 selects the most square grid. Collective.
func (t *Table) GridCreate(height int) (h Handle, code ErrorCode) {
	code = t.call(func() {
		h = t.register(grid.New(t.comm, height), nil)
	})
	return
}

// GridCreateWithOwners creates a grid over a subset of the processes of the table's
// communicator, given in column-major order. Collective over the whole communicator.
func (t *Table) GridCreateWithOwners(height int, owners []int) (h Handle, code ErrorCode) {
	code = t.call(func() {
		h = t.register(grid.NewWithOwners(t.comm, height, owners), nil)
	})
	return
}

// gridQuery runs a query on the grid of handle h.
func (t *Table) gridQuery(h Handle, query func(g *grid.Grid) int) (value int, code ErrorCode) {
	code = t.call(func() {
		value = query(t.gridOf(h))
	})
	return
}

// GridHeight returns the number of process rows.
func (t *Table) GridHeight(h Handle) (int, ErrorCode) {
	return t.gridQuery(h, (*grid.Grid).Height)
}

// GridWidth returns the number of process columns.
func (t *Table) GridWidth(h Handle) (int, ErrorCode) {
	return t.gridQuery(h, (*grid.Grid).Width)
}

// GridSize returns the number of processes in the grid.
func (t *Table) GridSize(h Handle) (int, ErrorCode) {
	return t.gridQuery(h, (*grid.Grid).Size)
}

// GridRow returns this process's row in the grid, or mpi.Undefined.
func (t *Table) GridRow(h Handle) (int, ErrorCode) {
	return t.gridQuery(h, (*grid.Grid).Row)
}

// GridCol returns this process's column in the grid, or mpi.Undefined.
func (t *Table) GridCol(h Handle) (int, ErrorCode) {
	return t.gridQuery(h, (*grid.Grid).Col)
}

// GridRank returns this process's column-major (VC) rank in the grid, or mpi.Undefined.
func (t *Table) GridRank(h Handle) (int, ErrorCode) {
	return t.gridQuery(h, (*grid.Grid).VCRank)
}
