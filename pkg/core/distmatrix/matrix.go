// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package distmatrix implements dense matrices distributed over a process grid, and the
// redistribution engine that copies a matrix from one distribution to another.
//
// A Matrix is described by a distribution pair (see package dist), an alignment per axis, a
// root (for diagonal and single-process distributions) and its global size. Each process
// stores the column-major local block of entries it owns.
//
// All operations that move data (Copy, Redistribute, Get, ...) are collective over the grid:
// every grid process must call them in the same order with matching metadata. Failures are
// fatal: they panic, which aborts the whole mpi.World.
package distmatrix

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/meshmatrix/internal/scratch"
	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
	"github.com/pkg/errors"
)

// Matrix is one process's handle on a distributed matrix with elements of type T.
type Matrix[T any] struct {
	grid *grid.Grid
	pair dist.Pair

	height, width int

	colAlign, rowAlign, root int
	colShift, rowShift       int

	colConstrained, rowConstrained, rootConstrained bool
	locked                                          bool

	local   localBlock[T]
	scratch *scratch.Arena[T]
}

// New creates an empty (0x0) matrix with the given distribution on grid g.
// It panics with ErrInvalidPair if the pair is not admissible.
func New[T any](g *grid.Grid, colDist, rowDist dist.Dist) *Matrix[T] {
	return NewWithSize[T](g, colDist, rowDist, 0, 0)
}

// NewWithSize creates a height x width matrix with the given distribution. Contents are undefined.
func NewWithSize[T any](g *grid.Grid, colDist, rowDist dist.Dist, height, width int) *Matrix[T] {
	p := dist.Pair{Col: colDist, Row: rowDist}
	if !p.Valid() {
		panic(errors.Wrapf(ErrInvalidPair, "%s", p))
	}
	m := &Matrix[T]{
		grid:    g,
		pair:    p,
		scratch: scratch.New[T](p.String()),
	}
	m.setShifts()
	m.Resize(height, width)
	return m
}

// Attach creates a view of a matrix whose local block is buf, with leading dimension ldim,
// described by data. The view is fully constrained: its alignment and root can't change, and
// it can't be resized.
func Attach[T any](data dist.DistData, height, width int, buf []T, ldim int) *Matrix[T] {
	p := data.Pair()
	if !p.Valid() {
		panic(errors.Wrapf(ErrInvalidPair, "%s", p))
	}
	m := &Matrix[T]{
		grid:            data.Grid,
		pair:            p,
		height:          height,
		width:           width,
		scratch:         scratch.New[T](p.String() + " view"),
		colConstrained:  true,
		rowConstrained:  true,
		rootConstrained: true,
	}
	m.checkAlignment(data.ColAlign, data.RowAlign, data.Root)
	m.colAlign, m.rowAlign, m.root = data.ColAlign, data.RowAlign, data.Root
	m.setShifts()
	lh, lw := m.localDims(height, width)
	if lh > 0 && lw > 0 {
		if ldim < max(lh, 1) {
			exceptions.Panicf("distmatrix.Attach: leading dimension %d smaller than the local height %d", ldim, lh)
		}
		if need := ldim*(lw-1) + lh; len(buf) < need {
			exceptions.Panicf("distmatrix.Attach: buffer of %d elements for a %dx%d local block with ldim %d (needs %d)",
				len(buf), lh, lw, ldim, need)
		}
	}
	m.local = localBlock[T]{height: lh, width: lw, ldim: max(ldim, 1), data: buf, view: true}
	return m
}

// LockedAttach is like Attach, but the view is read-only.
func LockedAttach[T any](data dist.DistData, height, width int, buf []T, ldim int) *Matrix[T] {
	m := Attach(data, height, width, buf, ldim)
	m.locked = true
	return m
}

// Redistribute returns a new matrix with the given distribution holding a copy of src.
// Collective over the grid.
func Redistribute[T any](src *Matrix[T], colDist, rowDist dist.Dist) *Matrix[T] {
	dst := New[T](src.grid, colDist, rowDist)
	Copy(src, dst)
	return dst
}

// Assign copies src into m, redistributing as needed, and returns m. See Copy.
func (m *Matrix[T]) Assign(src *Matrix[T]) *Matrix[T] {
	Copy(src, m)
	return m
}

// Grid the matrix is distributed over.
func (m *Matrix[T]) Grid() *grid.Grid { return m.grid }

// Pair of distributions.
func (m *Matrix[T]) Pair() dist.Pair { return m.pair }

// ColDist is the distribution of the entries of each column (the row indices).
func (m *Matrix[T]) ColDist() dist.Dist { return m.pair.Col }

// RowDist is the distribution of the entries of each row (the column indices).
func (m *Matrix[T]) RowDist() dist.Dist { return m.pair.Row }

// Height is the global number of rows.
func (m *Matrix[T]) Height() int { return m.height }

// Width is the global number of columns.
func (m *Matrix[T]) Width() int { return m.width }

// LocalHeight is the number of rows stored by this process.
func (m *Matrix[T]) LocalHeight() int { return m.local.height }

// LocalWidth is the number of columns stored by this process.
func (m *Matrix[T]) LocalWidth() int { return m.local.width }

// LDim is the leading dimension of the local block.
func (m *Matrix[T]) LDim() int { return m.local.ldim }

// ColAlign is the owner rank, along ColDist, of row 0.
func (m *Matrix[T]) ColAlign() int { return m.colAlign }

// RowAlign is the owner rank, along RowDist, of column 0.
func (m *Matrix[T]) RowAlign() int { return m.rowAlign }

// Root is the diagonal path for MD distributions, or the VC rank of the owner for [o,o].
func (m *Matrix[T]) Root() int { return m.root }

// ColShift is the first global row stored by this process.
func (m *Matrix[T]) ColShift() int { return m.colShift }

// RowShift is the first global column stored by this process.
func (m *Matrix[T]) RowShift() int { return m.rowShift }

// ColStride is the distance between consecutive global rows stored by a process.
func (m *Matrix[T]) ColStride() int { return dist.Stride(m.pair.Col, m.grid) }

// RowStride is the distance between consecutive global columns stored by a process.
func (m *Matrix[T]) RowStride() int { return dist.Stride(m.pair.Row, m.grid) }

// DistSize is the number of distinct blocks the matrix is split into.
func (m *Matrix[T]) DistSize() int { return m.ColStride() * m.RowStride() }

// RedundantSize is the number of grid processes storing each block.
func (m *Matrix[T]) RedundantSize() int {
	switch {
	case m.pair == dist.CircCirc:
		return 1
	case m.pair.Col == dist.MD || m.pair.Row == dist.MD:
		return m.grid.LCM() / m.DistSize()
	}
	return m.grid.Size() / m.DistSize()
}

// ColRank is this process's rank along ColDist, or mpi.Undefined outside the grid.
func (m *Matrix[T]) ColRank() int {
	if !m.grid.InGrid() {
		return mpi.Undefined
	}
	return dist.RankOf(m.pair.Col, m.grid, m.grid.VCRank())
}

// RowRank is this process's rank along RowDist, or mpi.Undefined outside the grid.
func (m *Matrix[T]) RowRank() int {
	if !m.grid.InGrid() {
		return mpi.Undefined
	}
	return dist.RankOf(m.pair.Row, m.grid, m.grid.VCRank())
}

// CrossRank is the diagonal path of this process for MD distributions, its VC rank for [o,o],
// and 0 otherwise: processes with the same cross rank hold the same kind of data.
func (m *Matrix[T]) CrossRank() int {
	switch {
	case !m.grid.InGrid():
		return mpi.Undefined
	case m.pair == dist.CircCirc:
		return m.grid.VCRank()
	case m.pair.Col == dist.MD || m.pair.Row == dist.MD:
		return m.grid.DiagPath()
	}
	return 0
}

// Participating reports whether this process stores a block of the matrix.
func (m *Matrix[T]) Participating() bool {
	return dist.Participates(m.pair, m.grid, m.grid.VCRank(), m.root)
}

// Viewing reports whether the local block is borrowed from the caller.
func (m *Matrix[T]) Viewing() bool { return m.local.view }

// Locked reports whether the matrix is a read-only view.
func (m *Matrix[T]) Locked() bool { return m.locked }

// ColConstrained reports whether the column alignment was fixed by the user.
func (m *Matrix[T]) ColConstrained() bool { return m.colConstrained }

// RowConstrained reports whether the row alignment was fixed by the user.
func (m *Matrix[T]) RowConstrained() bool { return m.rowConstrained }

// RootConstrained reports whether the root was fixed by the user.
func (m *Matrix[T]) RootConstrained() bool { return m.rootConstrained }

// DistData returns the distribution metadata.
func (m *Matrix[T]) DistData() dist.DistData {
	return dist.DistData{
		ColDist:  m.pair.Col,
		RowDist:  m.pair.Row,
		ColAlign: m.colAlign,
		RowAlign: m.rowAlign,
		Root:     m.root,
		Grid:     m.grid,
	}
}

// Buffer returns the local block, column-major with leading dimension LDim.
func (m *Matrix[T]) Buffer() []T {
	m.assertWritable()
	return m.local.data
}

// LockedBuffer returns the local block for reading.
func (m *Matrix[T]) LockedBuffer() []T {
	return m.local.data
}

// String implements fmt.Stringer.
func (m *Matrix[T]) String() string {
	return fmt.Sprintf("%s %dx%d (align %d,%d root %d) on %s", m.pair, m.height, m.width,
		m.colAlign, m.rowAlign, m.root, m.grid)
}

// Resize sets the global size, reallocating the local block as needed. Contents are undefined
// afterwards. Views can't change size.
func (m *Matrix[T]) Resize(height, width int) {
	if height < 0 || width < 0 {
		panic(errors.Wrapf(ErrOutOfBounds, "invalid matrix size %dx%d", height, width))
	}
	if m.local.view && (height != m.height || width != m.width) {
		panic(errors.Wrapf(ErrView, "cannot resize a %dx%d view to %dx%d", m.height, m.width, height, width))
	}
	m.assertWritable()
	m.height, m.width = height, width
	m.local.resize(m.localDims(height, width))
}

// Empty releases the local data and resets the matrix to 0x0 with unconstrained alignments.
// A view becomes an ordinary empty matrix.
func (m *Matrix[T]) Empty() {
	m.height, m.width = 0, 0
	m.colAlign, m.rowAlign, m.root = 0, 0, 0
	m.colConstrained, m.rowConstrained, m.rootConstrained = false, false, false
	m.locked = false
	m.local = localBlock[T]{ldim: 1}
	m.scratch.Free()
	m.setShifts()
}

func (m *Matrix[T]) localDims(height, width int) (int, int) {
	if !m.Participating() {
		return 0, 0
	}
	return dist.Length(height, m.colShift, m.ColStride()), dist.Length(width, m.rowShift, m.RowStride())
}

func (m *Matrix[T]) setShifts() {
	if !m.Participating() {
		m.colShift, m.rowShift = 0, 0
		return
	}
	vc := m.grid.VCRank()
	m.colShift = dist.Shift(dist.RankOf(m.pair.Col, m.grid, vc), m.colAlign, m.ColStride())
	m.rowShift = dist.Shift(dist.RankOf(m.pair.Row, m.grid, vc), m.rowAlign, m.RowStride())
}

// ownership of grid process vc.
func (m *Matrix[T]) ownership(vc int) ownership {
	return ownershipOf(m.DistData(), m.height, m.width, vc)
}

func (m *Matrix[T]) myOwnership() ownership {
	return m.ownership(m.grid.VCRank())
}

func (m *Matrix[T]) assertWritable() {
	if debugChecks && m.locked {
		panic(errors.Wrapf(ErrLocked, "%s", m))
	}
}
