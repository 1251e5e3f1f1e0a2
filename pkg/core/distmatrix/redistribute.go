// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Copy redistributes src into dst: afterwards dst holds the same global matrix in its own
// distribution. dst is resized to the size of src; its unconstrained alignments (and root)
// follow src when that avoids communication.
//
// It is collective over the grid (over the viewing communicator when the grids differ).
// Copying across different grids is only supported for [MC,MR] into [MC,MR]; other pairs
// panic with ErrNotImplemented.
func Copy[T any](src, dst *Matrix[T]) {
	if src == dst {
		return
	}
	dst.assertWritable()
	if !src.grid.Congruent(dst.grid) {
		if klog.V(1).Enabled() && dst.grid.ViewingComm().Rank() == 0 {
			klog.Infof("%s -> %s (%dx%d): %s", src.pair, dst.pair, src.height, src.width, CrossGrid)
		}
		copyCrossGrid(src, dst)
		return
	}
	plan := PlanFor(src.pair, dst.pair, src.height, src.width)
	if klog.V(1).Enabled() && dst.grid.VCRank() == 0 {
		klog.Infof("%s -> %s (%dx%d): %s", src.pair, dst.pair, src.height, src.width, plan)
	}
	switch plan.Protocol {
	case Unsupported:
		panic(errors.Wrapf(ErrNotImplemented, "redistribution %s -> %s", src.pair, dst.pair))
	case Staged:
		copyStaged(src, dst, plan.Via)
	default:
		copyDirect(src, dst, plan)
	}
}

// copyStaged goes through the intermediate distributions. The last intermediate is aligned
// with dst when dst has a fixed alignment, so the final step needs no realignment.
func copyStaged[T any](src, dst *Matrix[T], via []dist.Pair) {
	current := src
	for i, pair := range via {
		next := New[T](dst.grid, pair.Col, pair.Row)
		if i == len(via)-1 && (dst.colConstrained || dst.rowConstrained) {
			// Intermediates that can't line up with dst keep following the data instead.
			if err := next.alignWith(dst.DistData(), true, true); err != nil {
				klog.V(2).Infof("%s -> %s: staging through %s unaligned with the destination: %v",
					src.pair, dst.pair, pair, err)
			}
		}
		copyPlanned(current, next)
		current = next
	}
	copyPlanned(current, dst)
}

// copyPlanned runs a step that must be direct.
func copyPlanned[T any](src, dst *Matrix[T]) {
	plan := PlanFor(src.pair, dst.pair, src.height, src.width)
	if plan.Protocol == Staged || plan.Protocol == Unsupported {
		exceptions.Panicf("distmatrix: step %s -> %s is not direct (%s)", src.pair, dst.pair, plan)
	}
	copyDirect(src, dst, plan)
}

// needsAlignment lists the protocols that can only move entries between compatible alignments.
func (p Protocol) needsAlignment() bool {
	return p == Filter || p == AllGather || p == AllToAll
}

func copyDirect[T any](src, dst *Matrix[T], plan Plan) {
	dst.adoptAlignment(src.DistData())
	dst.Resize(src.height, src.width)
	if !dst.grid.InGrid() {
		return
	}
	if plan.Protocol.needsAlignment() && !aligned(src.DistData(), dst.DistData()) {
		// Land on an aligned temporary, then permute into place.
		warnUnaligned(src.DistData(), dst.DistData(), plan.Protocol)
		tmp := New[T](dst.grid, dst.pair.Col, dst.pair.Row)
		tmp.realign(dst.grid, tmp.colAlign, tmp.rowAlign, dst.root)
		tmp.adoptAlignment(src.DistData())
		tmp.Resize(src.height, src.width)
		runProtocol(src, tmp, plan)
		translate(tmp, dst)
		return
	}
	runProtocol(src, dst, plan)
}

func runProtocol[T any](src, dst *Matrix[T], plan Plan) {
	switch plan.Protocol {
	case LocalCopy:
		translate(src, dst)
	case Exchange:
		exchange(src, dst)
	case Filter:
		filter(src, dst)
	case AllGather:
		if plan.Comm == grid.MDComm {
			allGatherDiagonal(src, dst)
		} else {
			allGather(src, dst, plan.Comm)
		}
	case Broadcast:
		broadcastRoot(src, dst)
	case Scatter:
		scatterRoot(src, dst)
	case Gather:
		gatherRoot(src, dst)
	case AllToAll:
		allToAll(src, dst, plan.Comm)
	case VectorExchange:
		vectorExchange(src, dst)
	default:
		exceptions.Panicf("distmatrix: protocol %s can't run as a single step", plan.Protocol)
	}
}

// translate copies between matrices with the same distribution pair, permuting data if their
// alignments (or roots) differ.
func translate[T any](src, dst *Matrix[T]) {
	dst.adoptAlignment(src.DistData())
	dst.Resize(src.height, src.width)
	if !dst.grid.InGrid() {
		return
	}
	pair := src.pair
	sameRoot := !pair.HasRoot() || src.root == dst.root
	if src.colAlign == dst.colAlign && src.rowAlign == dst.rowAlign && sameRoot {
		if dst.Participating() {
			lh, lw := dst.local.height, dst.local.width
			copyStrided(dst.local.data, dst.local.ldim, contiguous(lh), contiguous(lw),
				src.local.data, src.local.ldim, contiguous(lh), contiguous(lw))
		}
		return
	}
	switch {
	case pair == dist.CircCirc:
		moveRoot(src, dst)
	case pair.Col == dist.MD || pair.Row == dist.MD:
		full := NewWithSize[T](dst.grid, dist.STAR, dist.STAR, src.height, src.width)
		allGatherDiagonal(src, full)
		filter(full, dst)
	default:
		exchange(src, dst)
	}
}
