// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix

import (
	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
	"github.com/pkg/errors"
)

func (m *Matrix[T]) checkGlobal(i, j int) {
	if i < 0 || i >= m.height || j < 0 || j >= m.width {
		panic(errors.Wrapf(ErrOutOfBounds, "entry (%d, %d) of a %dx%d matrix", i, j, m.height, m.width))
	}
}

func (m *Matrix[T]) checkLocal(iLoc, jLoc int) {
	if iLoc < 0 || iLoc >= m.local.height || jLoc < 0 || jLoc >= m.local.width {
		panic(errors.Wrapf(ErrOutOfBounds, "local entry (%d, %d) of a %dx%d local block",
			iLoc, jLoc, m.local.height, m.local.width))
	}
}

// GetLocal returns local entry (iLoc, jLoc).
func (m *Matrix[T]) GetLocal(iLoc, jLoc int) T {
	m.checkLocal(iLoc, jLoc)
	return m.local.data[m.local.index(iLoc, jLoc)]
}

// SetLocal sets local entry (iLoc, jLoc).
func (m *Matrix[T]) SetLocal(iLoc, jLoc int, value T) {
	m.assertWritable()
	m.checkLocal(iLoc, jLoc)
	m.local.data[m.local.index(iLoc, jLoc)] = value
}

// GlobalRow converts a local row index to the global one.
func (m *Matrix[T]) GlobalRow(iLoc int) int { return m.colShift + iLoc*m.ColStride() }

// GlobalCol converts a local column index to the global one.
func (m *Matrix[T]) GlobalCol(jLoc int) int { return m.rowShift + jLoc*m.RowStride() }

// LocalIndices converts global entry (i, j) to local indices, if this process stores it.
func (m *Matrix[T]) LocalIndices(i, j int) (iLoc, jLoc int, ok bool) {
	mine := m.myOwnership()
	if !mine.rows.owns(i) || !mine.cols.owns(j) {
		return 0, 0, false
	}
	return (i - mine.rows.shift) / mine.rows.stride, (j - mine.cols.shift) / mine.cols.stride, true
}

// IsLocal reports whether this process stores global entry (i, j).
func (m *Matrix[T]) IsLocal(i, j int) bool {
	_, _, ok := m.LocalIndices(i, j)
	return ok
}

// Owner returns the lowest VC rank storing global entry (i, j).
func (m *Matrix[T]) Owner(i, j int) int {
	m.checkGlobal(i, j)
	for q := range m.grid.Size() {
		o := m.ownership(q)
		if o.rows.owns(i) && o.cols.owns(j) {
			return q
		}
	}
	return mpi.Undefined
}

// Get returns global entry (i, j) on every grid process, broadcast from its owner.
// It is collective over the grid. Processes outside the grid get the zero value.
func (m *Matrix[T]) Get(i, j int) T {
	m.checkGlobal(i, j)
	g := m.grid
	buf := make([]T, 1)
	if !g.InGrid() {
		return buf[0]
	}
	owner := m.Owner(i, j)
	if g.VCRank() == owner {
		iLoc, jLoc, _ := m.LocalIndices(i, j)
		buf[0] = m.local.data[m.local.index(iLoc, jLoc)]
	}
	mpi.Broadcast(g.Comm(grid.VCComm), buf, owner)
	return buf[0]
}

// Set sets global entry (i, j) on every process storing it. It is not collective: the value
// should be the same on all processes calling it, or redundant copies diverge.
func (m *Matrix[T]) Set(i, j int, value T) {
	m.assertWritable()
	m.checkGlobal(i, j)
	if iLoc, jLoc, ok := m.LocalIndices(i, j); ok {
		m.local.data[m.local.index(iLoc, jLoc)] = value
	}
}

// Fill sets every global entry (i, j) stored by this process to fn(i, j).
func (m *Matrix[T]) Fill(fn func(i, j int) T) {
	m.assertWritable()
	for jLoc := range m.local.width {
		j := m.GlobalCol(jLoc)
		for iLoc := range m.local.height {
			m.local.data[m.local.index(iLoc, jLoc)] = fn(m.GlobalRow(iLoc), j)
		}
	}
}
