// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
)

// Point-to-point tags used on the grid communicators.
const (
	exchangeTag = 1
	moveRootTag = 2
)

// filter keeps, from the local block of src, the entries dst owns. No communication.
func filter[T any](src, dst *Matrix[T]) {
	if !dst.Participating() {
		return
	}
	me := dst.grid.VCRank()
	from, to := src.ownership(me), dst.ownership(me)
	if !from.participating {
		exceptions.Panicf("distmatrix: filter %s -> %s on a process without source data", src.pair, dst.pair)
	}
	srcRows, dstRows := intersect(dst.height, from.rows, to.rows)
	srcCols, dstCols := intersect(dst.width, from.cols, to.cols)
	if debugChecks && (dstRows.count != to.rows.count || dstCols.count != to.cols.count) {
		exceptions.Panicf("distmatrix: filter %s -> %s covers %dx%d of a %dx%d local block",
			src.pair, dst.pair, dstRows.count, dstCols.count, to.rows.count, to.cols.count)
	}
	copyStrided(dst.local.data, dst.local.ldim, dstRows, dstCols, src.local.data, src.local.ldim, srcRows, srcCols)
}

// unpackOverlap copies, from the packed local block of a process owning from, the entries this
// process's dst owns.
func unpackOverlap[T any](dst *Matrix[T], to ownership, packed []T, from ownership) {
	srcRows, dstRows := intersect(dst.height, from.rows, to.rows)
	srcCols, dstCols := intersect(dst.width, from.cols, to.cols)
	copyStrided(dst.local.data, dst.local.ldim, dstRows, dstCols, packed, from.rows.count, srcRows, srcCols)
}

// allGather collects the local blocks of src over the given communicator and keeps what dst owns.
func allGather[T any](src, dst *Matrix[T], kind grid.CommKind) {
	g := dst.grid
	comm := g.Comm(kind)
	portion := mpi.Pad(dist.MaxLength(src.height, src.ColStride()) * dist.MaxLength(src.width, src.RowStride()))
	ws := dst.scratch.Acquire((comm.Size() + 1) * portion)
	defer ws.Release()
	send, recv := ws.Data[:portion], ws.Data[portion:]
	if src.Participating() {
		packInto(send, src)
	}
	mpi.AllGather(comm, send, recv)
	if !dst.Participating() {
		return
	}
	to := dst.myOwnership()
	for q := range comm.Size() {
		from := src.ownership(g.MemberVC(kind, q))
		if from.participating {
			unpackOverlap(dst, to, recv[q*portion:], from)
		}
	}
}

// allGatherDiagonal replicates an MD-distributed src into the [*,*] dst: the processes of the
// root path gather it among themselves, then broadcast it across paths.
func allGatherDiagonal[T any](src, dst *Matrix[T]) {
	g := dst.grid
	onRootPath := src.Participating()
	if onRootPath {
		allGather(src, dst, grid.MDComm)
	}
	if g.GCD() == 1 {
		return
	}
	ws := dst.scratch.Acquire(mpi.Pad(dst.local.height * dst.local.width))
	defer ws.Release()
	if onRootPath {
		packInto(ws.Data, dst)
	}
	mpi.Broadcast(g.Comm(grid.MDPerpComm), ws.Data, src.root)
	if !onRootPath {
		unpackFrom(dst, ws.Data)
	}
}

// broadcastRoot replicates the [o,o] src into the [*,*] dst.
func broadcastRoot[T any](src, dst *Matrix[T]) {
	g := dst.grid
	ws := dst.scratch.Acquire(mpi.Pad(dst.local.height * dst.local.width))
	defer ws.Release()
	if g.VCRank() == src.root {
		packInto(ws.Data, src)
	}
	mpi.Broadcast(g.Comm(grid.VCComm), ws.Data, src.root)
	unpackFrom(dst, ws.Data)
}

// scatterRoot spreads the [o,o] src from its root: the root packs every process's block.
func scatterRoot[T any](src, dst *Matrix[T]) {
	g := dst.grid
	comm := g.Comm(grid.VCComm)
	p := comm.Size()
	root := src.root
	portion := mpi.Pad(dist.MaxLength(dst.height, dst.ColStride()) * dist.MaxLength(dst.width, dst.RowStride()))
	isRoot := g.VCRank() == root
	size := portion
	if isRoot {
		size += p * portion
	}
	ws := dst.scratch.Acquire(size)
	defer ws.Release()
	recv, send := ws.Data[:portion], ws.Data[portion:]
	if isRoot {
		whole := src.ownership(root)
		for q := range p {
			to := dst.ownership(q)
			if !to.participating {
				continue
			}
			srcRows, _ := intersect(dst.height, whole.rows, to.rows)
			srcCols, _ := intersect(dst.width, whole.cols, to.cols)
			copyStrided(send[q*portion:], to.rows.count, contiguous(srcRows.count), contiguous(srcCols.count),
				src.local.data, src.local.ldim, srcRows, srcCols)
		}
	}
	mpi.Scatter(comm, send, recv, root)
	if dst.Participating() {
		unpackFrom(dst, recv)
	}
}

// isRepresentative reports whether vc is the lowest VC rank storing its block of m.
func isRepresentative[T any](m *Matrix[T], vc int) bool {
	mine := m.ownership(vc)
	if !mine.participating {
		return false
	}
	for q := range vc {
		if m.ownership(q).sameBlock(mine) {
			return false
		}
	}
	return true
}

// gatherRoot collects src into the root of the [o,o] dst. Only one process per distinct block sends data.
func gatherRoot[T any](src, dst *Matrix[T]) {
	g := dst.grid
	comm := g.Comm(grid.VCComm)
	p := comm.Size()
	root := dst.root
	portion := mpi.Pad(dist.MaxLength(src.height, src.ColStride()) * dist.MaxLength(src.width, src.RowStride()))
	isRoot := g.VCRank() == root
	size := portion
	if isRoot {
		size += p * portion
	}
	ws := dst.scratch.Acquire(size)
	defer ws.Release()
	send, recv := ws.Data[:portion], ws.Data[portion:]
	if isRepresentative(src, g.VCRank()) {
		packInto(send, src)
	}
	mpi.Gather(comm, send, recv, root)
	if !isRoot {
		return
	}
	to := dst.myOwnership()
	for q := range p {
		if isRepresentative(src, q) {
			unpackOverlap(dst, to, recv[q*portion:], src.ownership(q))
		}
	}
}

// allToAll swaps, over the given communicator, the pieces of src each member's dst owns.
func allToAll[T any](src, dst *Matrix[T], kind grid.CommKind) {
	g := dst.grid
	comm := g.Comm(kind)
	n := comm.Size()
	colLCM := dist.LCM(src.ColStride(), dst.ColStride())
	rowLCM := dist.LCM(src.RowStride(), dst.RowStride())
	portion := mpi.Pad(dist.MaxLength(src.height, colLCM) * dist.MaxLength(src.width, rowLCM))
	ws := dst.scratch.Acquire(2 * n * portion)
	defer ws.Release()
	send, recv := ws.Data[:n*portion], ws.Data[n*portion:]

	mine := src.myOwnership()
	for q := range n {
		to := dst.ownership(g.MemberVC(kind, q))
		srcRows, _ := intersect(src.height, mine.rows, to.rows)
		srcCols, _ := intersect(src.width, mine.cols, to.cols)
		copyStrided(send[q*portion:], srcRows.count, contiguous(srcRows.count), contiguous(srcCols.count),
			src.local.data, src.local.ldim, srcRows, srcCols)
	}
	mpi.AllToAll(comm, send, recv)
	to := dst.myOwnership()
	for q := range n {
		from := src.ownership(g.MemberVC(kind, q))
		_, dstRows := intersect(dst.height, from.rows, to.rows)
		_, dstCols := intersect(dst.width, from.cols, to.cols)
		copyStrided(dst.local.data, dst.local.ldim, dstRows, dstCols,
			recv[q*portion:], dstRows.count, contiguous(dstRows.count), contiguous(dstCols.count))
	}
}

// exchange permutes blocks between two distributions with the same strides: each process
// sends its whole src block to the process whose dst block covers the same entries, picking
// the partner that shares this process's coordinates along the grid axes neither
// distribution depends on.
func exchange[T any](src, dst *Matrix[T]) {
	g := dst.grid
	me := g.VCRank()
	mySrc, myDst := src.ownership(me), dst.ownership(me)
	srcRowAxis, srcColAxis := src.pair.Axes()
	dstRowAxis, dstColAxis := dst.pair.Axes()
	rowAxis, colAxis := srcRowAxis || dstRowAxis, srcColAxis || dstColAxis
	sameRedundantCoords := func(q int) bool {
		return (rowAxis || g.RowOf(q) == g.Row()) && (colAxis || g.ColOf(q) == g.Col())
	}
	sendTo, recvFrom := mpi.Undefined, mpi.Undefined
	for q := range g.Size() {
		if !sameRedundantCoords(q) {
			continue
		}
		if sendTo == mpi.Undefined && dst.ownership(q).sameBlock(mySrc) {
			sendTo = q
		}
		if recvFrom == mpi.Undefined && src.ownership(q).sameBlock(myDst) {
			recvFrom = q
		}
	}
	if sendTo == mpi.Undefined || recvFrom == mpi.Undefined {
		exceptions.Panicf("distmatrix: no exchange partner for %s -> %s on process %d", src, dst, me)
	}
	sendCount := src.local.height * src.local.width
	recvCount := dst.local.height * dst.local.width
	ws := dst.scratch.Acquire(mpi.Pad(sendCount) + mpi.Pad(recvCount))
	defer ws.Release()
	send, recv := ws.Data[:sendCount], ws.Data[mpi.Pad(sendCount):mpi.Pad(sendCount)+recvCount]
	packInto(send, src)
	mpi.SendRecv(g.Comm(grid.VCComm), send, sendTo, recv, recvFrom, exchangeTag)
	unpackFrom(dst, recv)
}

// moveRoot moves a [o,o] matrix to a different root process.
func moveRoot[T any](src, dst *Matrix[T]) {
	g := dst.grid
	comm := g.Comm(grid.VCComm)
	me := g.VCRank()
	if me == src.root {
		ws := src.scratch.Acquire(src.local.height * src.local.width)
		defer ws.Release()
		packInto(ws.Data, src)
		mpi.Send(comm, ws.Data, dst.root, moveRootTag)
	}
	if me == dst.root {
		ws := dst.scratch.Acquire(dst.local.height * dst.local.width)
		defer ws.Release()
		mpi.Recv(comm, ws.Data, src.root, moveRootTag)
		unpackFrom(dst, ws.Data)
	}
}
