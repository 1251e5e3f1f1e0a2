// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix

import (
	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
)

// vectorExchange moves a single column (or row) between [MC,MR] and [MR,MC] without going
// through full-size intermediates: the grid row (or column) holding the vector scatters it
// into a VC/VR-distributed vector, which is permuted and gathered by the grid column (or row)
// that owns the vector in dst.
func vectorExchange[T any](src, dst *Matrix[T]) {
	g := dst.grid
	height, width := src.height, src.width
	linear := func(d dist.Dist) dist.Dist {
		if d == dist.MC {
			return dist.VC
		}
		return dist.VR
	}
	axisComm := func(d dist.Dist) grid.CommKind {
		if d == dist.MC {
			return grid.MCComm
		}
		return grid.MRComm
	}

	var first, second *Matrix[T]
	var scatterComm, gatherComm grid.CommKind
	var scatterRoot, gatherRoot int
	if width == 1 {
		first = NewWithSize[T](g, linear(src.pair.Col), dist.STAR, height, width)
		first.AlignCols(src.colAlign)
		second = NewWithSize[T](g, linear(dst.pair.Col), dist.STAR, height, width)
		second.AlignCols(dst.colAlign)
		scatterComm, scatterRoot = axisComm(src.pair.Row), src.rowAlign
		gatherComm, gatherRoot = axisComm(dst.pair.Row), dst.rowAlign
	} else {
		first = NewWithSize[T](g, dist.STAR, linear(src.pair.Row), height, width)
		first.AlignRows(src.rowAlign)
		second = NewWithSize[T](g, dist.STAR, linear(dst.pair.Row), height, width)
		second.AlignRows(dst.rowAlign)
		scatterComm, scatterRoot = axisComm(src.pair.Col), src.colAlign
		gatherComm, gatherRoot = axisComm(dst.pair.Col), dst.colAlign
	}
	scatterFromMember(src, first, scatterComm, scatterRoot)
	exchange(first, second)
	gatherToMember(second, dst, gatherComm, gatherRoot)
}

// scatterFromMember spreads into dst the block src stores on member root of the given
// communicator. Every member's dst block must be contained in it.
func scatterFromMember[T any](src, dst *Matrix[T], kind grid.CommKind, root int) {
	g := dst.grid
	comm := g.Comm(kind)
	n := comm.Size()
	portion := mpi.Pad(dist.MaxLength(dst.height, dst.ColStride()) * dist.MaxLength(dst.width, dst.RowStride()))
	isRoot := comm.Rank() == root
	size := portion
	if isRoot {
		size += n * portion
	}
	ws := dst.scratch.Acquire(size)
	defer ws.Release()
	recv, send := ws.Data[:portion], ws.Data[portion:]
	rootBlock := src.ownership(g.MemberVC(kind, root))
	if isRoot {
		for q := range n {
			to := dst.ownership(g.MemberVC(kind, q))
			srcRows, _ := intersect(dst.height, rootBlock.rows, to.rows)
			srcCols, _ := intersect(dst.width, rootBlock.cols, to.cols)
			copyStrided(send[q*portion:], srcRows.count, contiguous(srcRows.count), contiguous(srcCols.count),
				src.local.data, src.local.ldim, srcRows, srcCols)
		}
	}
	mpi.Scatter(comm, send, recv, root)
	to := dst.myOwnership()
	_, dstRows := intersect(dst.height, rootBlock.rows, to.rows)
	_, dstCols := intersect(dst.width, rootBlock.cols, to.cols)
	copyStrided(dst.local.data, dst.local.ldim, dstRows, dstCols,
		recv, dstRows.count, contiguous(dstRows.count), contiguous(dstCols.count))
}

// gatherToMember collects the src blocks of all members of the given communicator into the dst
// block of member root.
func gatherToMember[T any](src, dst *Matrix[T], kind grid.CommKind, root int) {
	g := dst.grid
	comm := g.Comm(kind)
	n := comm.Size()
	portion := mpi.Pad(dist.MaxLength(src.height, src.ColStride()) * dist.MaxLength(src.width, src.RowStride()))
	isRoot := comm.Rank() == root
	size := portion
	if isRoot {
		size += n * portion
	}
	ws := dst.scratch.Acquire(size)
	defer ws.Release()
	send, recv := ws.Data[:portion], ws.Data[portion:]
	packInto(send, src)
	mpi.Gather(comm, send, recv, root)
	if !isRoot {
		return
	}
	to := dst.myOwnership()
	for q := range n {
		unpackOverlap(dst, to, recv[q*portion:], src.ownership(g.MemberVC(kind, q)))
	}
}
