// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix

import (
	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/pkg/errors"
)

// Align fixes both alignments. Re-aligning never moves data: local contents become undefined.
func (m *Matrix[T]) Align(colAlign, rowAlign int) {
	m.checkAlignment(colAlign, rowAlign, m.root)
	m.realign(m.grid, colAlign, rowAlign, m.root)
	m.colConstrained, m.rowConstrained = true, true
}

// AlignCols fixes the column alignment.
func (m *Matrix[T]) AlignCols(colAlign int) {
	m.checkAlignment(colAlign, m.rowAlign, m.root)
	m.realign(m.grid, colAlign, m.rowAlign, m.root)
	m.colConstrained = true
}

// AlignRows fixes the row alignment.
func (m *Matrix[T]) AlignRows(rowAlign int) {
	m.checkAlignment(m.colAlign, rowAlign, m.root)
	m.realign(m.grid, m.colAlign, rowAlign, m.root)
	m.rowConstrained = true
}

// SetRoot fixes the root: the diagonal path of MD distributions, or the owner VC rank of [o,o].
func (m *Matrix[T]) SetRoot(root int) {
	m.checkAlignment(m.colAlign, m.rowAlign, root)
	m.realign(m.grid, m.colAlign, m.rowAlign, root)
	m.rootConstrained = true
}

// AlignWith aligns m so it lines up with a matrix described by data, and moves m to data's grid.
// Axes of m that can't be matched against data are left alone, but at least one must match
// (unless m is [*,*] or [o,o]), otherwise it panics with ErrNonsensicalAlignment and m is left
// untouched.
func (m *Matrix[T]) AlignWith(data dist.DistData) {
	if err := m.alignWith(data, true, true); err != nil {
		panic(err)
	}
}

// AlignColsWith is like AlignWith restricted to the column alignment.
func (m *Matrix[T]) AlignColsWith(data dist.DistData) {
	if err := m.alignWith(data, true, false); err != nil {
		panic(err)
	}
}

// AlignRowsWith is like AlignWith restricted to the row alignment.
func (m *Matrix[T]) AlignRowsWith(data dist.DistData) {
	if err := m.alignWith(data, false, true); err != nil {
		panic(err)
	}
}

// alignWith computes the new alignment first and only then applies it, so a failure leaves m unchanged.
func (m *Matrix[T]) alignWith(data dist.DistData, cols, rows bool) error {
	colAlign, rowAlign, root := m.colAlign, m.rowAlign, m.root
	setCol, setRow, setRoot := false, false, false
	switch {
	case m.pair == dist.StarStar:
	case m.pair == dist.CircCirc:
		if data.Pair() == dist.CircCirc {
			root, setRoot = data.Root, true
		}
	default:
		matched := false
		if cols && m.pair.Col != dist.STAR {
			if a, ok := alignTarget(m.pair.Col, data); ok {
				colAlign, setCol, matched = a, true, true
			}
		}
		if rows && m.pair.Row != dist.STAR {
			if a, ok := alignTarget(m.pair.Row, data); ok {
				rowAlign, setRow, matched = a, true, true
			}
		}
		ownAxes := (cols && m.pair.Col != dist.STAR) || (rows && m.pair.Row != dist.STAR)
		if ownAxes && !matched {
			return errors.Wrapf(ErrNonsensicalAlignment, "cannot align %s with %s", m.pair, data.Pair())
		}
		if setCol && m.pair.Col == dist.MD || setRow && m.pair.Row == dist.MD {
			root, setRoot = data.Root, true
		}
	}
	if m.local.view {
		if !m.grid.Congruent(data.Grid) {
			return errors.Wrapf(ErrView, "cannot move a view of %s to %s", m.grid, data.Grid)
		}
		if colAlign != m.colAlign || rowAlign != m.rowAlign || root != m.root {
			return errors.Wrapf(ErrView, "cannot realign a view of %s to match %s", m, data)
		}
	} else {
		m.realign(data.Grid, colAlign, rowAlign, root)
	}
	m.colConstrained = m.colConstrained || setCol
	m.rowConstrained = m.rowConstrained || setRow
	m.rootConstrained = m.rootConstrained || setRoot
	return nil
}

// alignTarget returns the alignment an axis distributed as own must take to line up with
// a matrix described by data, or false if none of data's axes relate to own.
func alignTarget(own dist.Dist, data dist.DistData) (int, bool) {
	find := func(tags ...dist.Dist) (int, bool) {
		for _, tag := range tags {
			if data.ColDist == tag {
				return data.ColAlign, true
			}
			if data.RowDist == tag {
				return data.RowAlign, true
			}
		}
		return 0, false
	}
	switch own {
	case dist.MC:
		if a, ok := find(dist.MC); ok {
			return a, true
		}
		if a, ok := find(dist.VC); ok {
			return a % data.Grid.Height(), true
		}
	case dist.MR:
		if a, ok := find(dist.MR); ok {
			return a, true
		}
		if a, ok := find(dist.VR); ok {
			return a % data.Grid.Width(), true
		}
	case dist.VC:
		return find(dist.MC, dist.VC)
	case dist.VR:
		return find(dist.MR, dist.VR)
	case dist.MD:
		return find(dist.MD)
	}
	return 0, false
}

func (m *Matrix[T]) rootLimit() int {
	switch {
	case m.pair == dist.CircCirc:
		return m.grid.Size()
	case m.pair.Col == dist.MD || m.pair.Row == dist.MD:
		return m.grid.GCD()
	}
	return 1
}

func (m *Matrix[T]) checkAlignment(colAlign, rowAlign, root int) {
	if colAlign < 0 || colAlign >= m.ColStride() {
		panic(errors.Wrapf(ErrNonsensicalAlignment, "column alignment %d for %s with stride %d", colAlign, m.pair, m.ColStride()))
	}
	if rowAlign < 0 || rowAlign >= m.RowStride() {
		panic(errors.Wrapf(ErrNonsensicalAlignment, "row alignment %d for %s with stride %d", rowAlign, m.pair, m.RowStride()))
	}
	if root < 0 || root >= m.rootLimit() {
		panic(errors.Wrapf(ErrNonsensicalAlignment, "root %d for %s on %s", root, m.pair, m.grid))
	}
}

// realign moves m to grid g with the given alignment, keeping its global size.
func (m *Matrix[T]) realign(g *grid.Grid, colAlign, rowAlign, root int) {
	if g == m.grid && colAlign == m.colAlign && rowAlign == m.rowAlign && root == m.root {
		return
	}
	if m.local.view {
		panic(errors.Wrapf(ErrView, "cannot realign a view %s", m))
	}
	m.grid = g
	m.colAlign, m.rowAlign, m.root = colAlign, rowAlign, root
	m.setShifts()
	m.local.resize(m.localDims(m.height, m.width))
}

// adoptAlignment makes the unconstrained axes of m line up with src, when the distributions relate.
func (m *Matrix[T]) adoptAlignment(src dist.DistData) {
	colAlign, rowAlign, root := m.colAlign, m.rowAlign, m.root
	if !m.colConstrained {
		if a, ok := compatibleAlign(src.ColDist, src.ColAlign, m.pair.Col, m.grid); ok {
			colAlign = a
		}
	}
	if !m.rowConstrained {
		if a, ok := compatibleAlign(src.RowDist, src.RowAlign, m.pair.Row, m.grid); ok {
			rowAlign = a
		}
	}
	if !m.rootConstrained && m.pair.HasRoot() && src.Pair().HasRoot() &&
		(m.pair == dist.CircCirc) == (src.Pair() == dist.CircCirc) {
		root = src.Root
	}
	if colAlign != m.colAlign || rowAlign != m.rowAlign || root != m.root {
		m.realign(m.grid, colAlign, rowAlign, root)
	}
}

// compatibleAlign returns the alignment an axis distributed as d should take to receive data
// distributed as s with alignment a without moving it.
func compatibleAlign(s dist.Dist, a int, d dist.Dist, g *grid.Grid) (int, bool) {
	switch {
	case d == dist.STAR || d == dist.CIRC || s == dist.STAR || s == dist.CIRC:
		return 0, false
	case s == d:
		return a, true
	case s == dist.VC && d == dist.MC:
		return a % g.Height(), true
	case s == dist.VR && d == dist.MR:
		return a % g.Width(), true
	case s == dist.MC && d == dist.VC, s == dist.MR && d == dist.VR,
		s == dist.VC && d == dist.VR, s == dist.VR && d == dist.VC:
		return a, true
	}
	return 0, false
}

// axisAligned reports whether an axis distributed as s (alignment sa) can move into one
// distributed as d (alignment da) by a filter, gather or all-to-all without realignment.
func axisAligned(s dist.Dist, sa int, d dist.Dist, da int, g *grid.Grid) bool {
	switch {
	case s == dist.STAR || d == dist.STAR || s == dist.CIRC || d == dist.CIRC:
		return true
	case s == d:
		return sa == da
	case s == dist.VC && d == dist.MC:
		return sa%g.Height() == da
	case s == dist.MC && d == dist.VC:
		return da%g.Height() == sa
	case s == dist.VR && d == dist.MR:
		return sa%g.Width() == da
	case s == dist.MR && d == dist.VR:
		return da%g.Width() == sa
	}
	return false
}

func aligned(src, dst dist.DistData) bool {
	if src.Pair().HasRoot() && src.Pair() == dst.Pair() && src.Root != dst.Root {
		return false
	}
	return axisAligned(src.ColDist, src.ColAlign, dst.ColDist, dst.ColAlign, dst.Grid) &&
		axisAligned(src.RowDist, src.RowAlign, dst.RowDist, dst.RowAlign, dst.Grid)
}
