// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix

import (
	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
	"github.com/gomlx/meshmatrix/pkg/support/xslices"
	"github.com/pkg/errors"
)

// crossGridTag is the first tag used on the viewing communicator, one per round.
const crossGridTag = 1 << 20

// copyCrossGrid copies an [MC,MR] matrix into an [MC,MR] matrix on another grid of the same
// viewing communicator.
//
// With source strides (rA, cA) and destination strides (rB, cB), the local rows of a source
// process split into rB/gcd(rA,rB) classes by local index; the rows of one class all land on
// the same destination grid row. Same for columns. Each round sends one (row class, column
// class) sub-block from every source process to its single destination.
func copyCrossGrid[T any](src, dst *Matrix[T]) {
	if src.pair != dist.MCMR || dst.pair != dist.MCMR {
		panic(errors.Wrapf(ErrNotImplemented, "copy of %s into %s across different grids", src.pair, dst.pair))
	}
	gA, gB := src.grid, dst.grid
	viewing := gB.ViewingComm()
	if gA.ViewingComm().ID() != viewing.ID() {
		panic(errors.Wrapf(ErrGridMismatch, "%s and %s", gA, gB))
	}
	height, width := src.height, src.width
	dst.Resize(height, width)
	inA, inB := gA.InGrid(), gB.InGrid()
	if !inA && !inB {
		return
	}

	colStrideA, rowStrideA := src.ColStride(), src.RowStride()
	colStride, rowStride := dst.ColStride(), dst.RowStride()
	colGCD, rowGCD := dist.GCD(colStride, colStrideA), dist.GCD(rowStride, rowStrideA)
	numColSends, numRowSends := colStride/colGCD, rowStride/rowGCD
	// Distance, in destination local indices, between consecutive entries of one sub-block.
	localColStride, localRowStride := colStrideA/colGCD, rowStrideA/rowGCD

	aToViewing := mpi.TranslateRanks(gA.OwningGroup(), xslices.Iota(0, gA.Size()), viewing.Group())

	maxSend := mpi.Pad(dist.MaxLength(height, colStrideA*numColSends) * dist.MaxLength(width, rowStrideA*numRowSends))
	ws := dst.scratch.Acquire(2 * maxSend)
	defer ws.Release()
	send, recv := ws.Data[:maxSend], ws.Data[maxSend:]

	var mineA, mineB ownership
	if inA {
		mineA = src.myOwnership()
	}
	if inB {
		mineB = dst.myOwnership()
	}
	for colSend := range numColSends {
		for rowSend := range numRowSends {
			tag := crossGridTag + colSend*numRowSends + rowSend
			var request *mpi.Request
			if inA {
				rows := span{offset: colSend, step: numColSends, count: dist.Length(mineA.rows.count, colSend, numColSends)}
				cols := span{offset: rowSend, step: numRowSends, count: dist.Length(mineA.cols.count, rowSend, numRowSends)}
				copyStrided(send, rows.count, contiguous(rows.count), contiguous(cols.count),
					src.local.data, src.local.ldim, rows, cols)
				recvRow := (mineA.rows.shift + colSend*colStrideA + dst.colAlign) % colStride
				recvCol := (mineA.cols.shift + rowSend*rowStrideA + dst.rowAlign) % rowStride
				dest := gB.VCToViewing(recvRow + recvCol*gB.Height())
				request = mpi.ISend(viewing, send[:rows.count*cols.count], dest, tag)
			}
			if inB {
				for q := range gA.Size() {
					from := src.ownership(q)
					firstRow := from.rows.shift + colSend*colStrideA
					firstCol := from.cols.shift + rowSend*rowStrideA
					if (firstRow+dst.colAlign)%colStride != gB.Row() || (firstCol+dst.rowAlign)%rowStride != gB.Col() {
						continue
					}
					numRows := dist.Length(from.rows.count, colSend, numColSends)
					numCols := dist.Length(from.cols.count, rowSend, numRowSends)
					mpi.Recv(viewing, recv[:numRows*numCols], aToViewing[q], tag)
					dstRows := span{offset: (firstRow - mineB.rows.shift) / colStride, step: localColStride, count: numRows}
					dstCols := span{offset: (firstCol - mineB.cols.shift) / rowStride, step: localRowStride, count: numCols}
					copyStrided(dst.local.data, dst.local.ldim, dstRows, dstCols,
						recv, numRows, contiguous(numRows), contiguous(numCols))
				}
			}
			if request != nil {
				request.Wait()
			}
		}
	}
}
