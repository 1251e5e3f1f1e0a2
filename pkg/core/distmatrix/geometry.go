// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix

import (
	"github.com/gomlx/meshmatrix/pkg/core/dist"
)

// axisPart is the set of global indices of one axis a process stores: shift, shift+stride, ...,
// count of them.
type axisPart struct {
	shift, stride, count int
}

// owns reports whether global index i is in the part.
func (a axisPart) owns(i int) bool {
	return a.count > 0 && i >= a.shift && (i-a.shift)%a.stride == 0 && (i-a.shift)/a.stride < a.count
}

// ownership tells which rows and columns of a matrix one grid process stores.
type ownership struct {
	rows, cols    axisPart
	participating bool
}

// sameBlock reports whether o and o2 store the same rows and columns.
func (o ownership) sameBlock(o2 ownership) bool {
	return o.participating == o2.participating &&
		o.rows.shift == o2.rows.shift && o.cols.shift == o2.cols.shift
}

// ownershipOf computes the block stored by grid process vc for a height x width matrix with
// the given distribution. It only depends on global metadata, so any process can compute it
// for any other.
func ownershipOf(data dist.DistData, height, width, vc int) ownership {
	g := data.Grid
	if !dist.Participates(data.Pair(), g, vc, data.Root) {
		return ownership{}
	}
	axis := func(d dist.Dist, align, n int) axisPart {
		stride := dist.Stride(d, g)
		shift := dist.Shift(dist.RankOf(d, g, vc), align, stride)
		return axisPart{shift: shift, stride: stride, count: dist.Length(n, shift, stride)}
	}
	return ownership{
		rows:          axis(data.ColDist, data.ColAlign, height),
		cols:          axis(data.RowDist, data.RowAlign, width),
		participating: true,
	}
}

// span selects count local indices offset, offset+step, ... along one axis of a block.
type span struct {
	offset, step, count int
}

func contiguous(n int) span {
	return span{offset: 0, step: 1, count: n}
}

// intersect returns the global indices below n common to a and b, as positions in the
// local index space of each. Common indices form a progression of step lcm(a.stride, b.stride),
// starting at the smallest index congruent to both shifts.
func intersect(n int, a, b axisPart) (aSpan, bSpan span) {
	if a.count == 0 || b.count == 0 {
		return span{}, span{}
	}
	l := dist.LCM(a.stride, b.stride)
	for t := range l / a.stride {
		i := a.shift + t*a.stride
		if i >= n {
			break
		}
		if i >= b.shift && (i-b.shift)%b.stride == 0 {
			count := dist.Length(n, i, l)
			return span{offset: t, step: l / a.stride, count: count},
				span{offset: (i - b.shift) / b.stride, step: l / b.stride, count: count}
		}
	}
	return span{}, span{}
}

// copyStrided copies the rows x cols elements selected by (srcRows, srcCols) from the
// column-major src (leading dimension srcLDim) into the positions selected by (dstRows, dstCols)
// of dst. Both span pairs must have the same counts.
func copyStrided[T any](dst []T, dstLDim int, dstRows, dstCols span, src []T, srcLDim int, srcRows, srcCols span) {
	rows, cols := dstRows.count, dstCols.count
	if rows == 0 || cols == 0 {
		return
	}
	body := func(start, end int) {
		for jj := start; jj < end; jj++ {
			d := dst[(dstCols.offset+jj*dstCols.step)*dstLDim:]
			s := src[(srcCols.offset+jj*srcCols.step)*srcLDim:]
			if dstRows.step == 1 && srcRows.step == 1 {
				copy(d[dstRows.offset:dstRows.offset+rows], s[srcRows.offset:srcRows.offset+rows])
				continue
			}
			for ii := range rows {
				d[dstRows.offset+ii*dstRows.step] = s[srcRows.offset+ii*srcRows.step]
			}
		}
	}
	if rows*cols < parallelPackThreshold {
		body(0, cols)
		return
	}
	pool.ParallelFor(cols, max(1, parallelPackThreshold/(4*rows)), body)
}

// packInto copies the whole local block of m contiguously into buf.
func packInto[T any](buf []T, m *Matrix[T]) {
	lh, lw := m.local.height, m.local.width
	copyStrided(buf, lh, contiguous(lh), contiguous(lw), m.local.data, m.local.ldim, contiguous(lh), contiguous(lw))
}

// unpackFrom fills the whole local block of m from the contiguous buf.
func unpackFrom[T any](m *Matrix[T], buf []T) {
	lh, lw := m.local.height, m.local.width
	copyStrided(m.local.data, m.local.ldim, contiguous(lh), contiguous(lw), buf, lh, contiguous(lh), contiguous(lw))
}
