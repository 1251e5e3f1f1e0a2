// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix_test

import (
	"testing"

	"github.com/gomlx/meshmatrix/pkg/core/dist"
	. "github.com/gomlx/meshmatrix/pkg/core/distmatrix"
	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSet(t *testing.T) {
	runOnGrid(t, 6, 2, func(g *grid.Grid) {
		for _, p := range []dist.Pair{dist.MCMR, dist.VRStar, dist.StarMD, dist.CircCirc} {
			m := newSource(g, p, 5, 4)
			for i := range 5 {
				for j := range 4 {
					require.Equalf(t, value(i, j), m.Get(i, j), "%s entry (%d, %d)", p, i, j)
				}
			}
			owner := m.Owner(3, 2)
			iLoc, jLoc, ok := m.LocalIndices(3, 2)
			assert.Equal(t, g.VCRank() == owner, ok)
			if ok {
				assert.Equal(t, 3, m.GlobalRow(iLoc))
				assert.Equal(t, 2, m.GlobalCol(jLoc))
			}

			m.Set(3, 2, -1)
			assert.Equal(t, -1.0, m.Get(3, 2))
			assert.ErrorIs(t, exceptionOf(func() { m.Get(5, 0) }), ErrOutOfBounds)
			assert.ErrorIs(t, exceptionOf(func() { m.GetLocal(m.LocalHeight(), 0) }), ErrOutOfBounds)
		}
	})
}

func TestOwner(t *testing.T) {
	runOnGrid(t, 4, 2, func(g *grid.Grid) {
		m := NewWithSize[float64](g, dist.MC, dist.MR, 4, 4)
		m.Align(1, 0)
		// Row 0 lives on grid row 1, column 3 on grid column 1: VC rank 1 + 1*2.
		assert.Equal(t, 3, m.Owner(0, 3))
		assert.Equal(t, g.VCRank() == 3, m.IsLocal(0, 3))

		circ := NewWithSize[float64](g, dist.CIRC, dist.CIRC, 2, 2)
		circ.SetRoot(2)
		assert.Equal(t, 2, circ.Owner(1, 1))
		assert.Equal(t, g.VCRank() == 2, circ.Participating())
		assert.Equal(t, 1, circ.RedundantSize())

		s := NewWithSize[float64](g, dist.STAR, dist.STAR, 2, 2)
		assert.Equal(t, 0, s.Owner(1, 1))
		assert.Equal(t, 4, s.RedundantSize())
		assert.Equal(t, 1, s.DistSize())

		md := NewWithSize[float64](g, dist.MD, dist.STAR, 2, 2)
		assert.Equal(t, 1, md.RedundantSize())
		assert.Equal(t, 2, md.DistSize())

		assert.Equal(t, g.VCRank(), circ.CrossRank())
		assert.Equal(t, g.DiagPath(), md.CrossRank())
		assert.Equal(t, 0, s.CrossRank())
	})
}

func TestOutsideGrid(t *testing.T) {
	world := mpi.NewWorld(5)
	require.NoError(t, world.Run(func(comm *mpi.Comm) {
		g := grid.NewWithOwners(comm, 2, []int{1, 2, 3, 4})
		m := NewWithSize[float64](g, dist.MC, dist.MR, 3, 3)
		m.Fill(value)
		if comm.Rank() == 0 {
			assert.False(t, g.InGrid())
			assert.False(t, m.Participating())
			assert.Equal(t, mpi.Undefined, m.ColRank())
			assert.Equal(t, 0, m.LocalHeight())
			assert.Equal(t, 0.0, m.Get(1, 1))
			return
		}
		assert.Equal(t, g.Row(), m.ColRank())
		assert.Equal(t, value(1, 1), m.Get(1, 1))
		full := Redistribute(m, dist.STAR, dist.STAR)
		checkMatrix(t, full, 3, 3, "[MC,MR] -> [*,*] on a subset grid")
	}))
}

func TestAttach(t *testing.T) {
	runOnGrid(t, 4, 2, func(g *grid.Grid) {
		data := dist.DistData{ColDist: dist.MC, RowDist: dist.MR, ColAlign: 1, RowAlign: 0, Grid: g}
		// 5x3 global: local height 3 or 2, local width 2 or 1. Use a padded leading dimension.
		const ldim = 4
		buf := make([]float64, ldim*2)
		view := Attach(data, 5, 3, buf, ldim)
		assert.True(t, view.Viewing())
		assert.True(t, view.ColConstrained())
		assert.Equal(t, ldim, view.LDim())
		view.Fill(value)
		if view.LocalHeight() > 0 && view.LocalWidth() > 0 {
			assert.Equal(t, value(view.GlobalRow(0), view.GlobalCol(0)), buf[0])
		}

		// Copy into a view keeps its alignment and storage.
		other := Attach(data, 5, 3, make([]float64, ldim*2), ldim)
		Copy(Redistribute(view, dist.VR, dist.STAR), other)
		checkMatrix(t, other, 5, 3, "into a view")
		assert.Equal(t, 1, other.ColAlign())

		assert.ErrorIs(t, exceptionOf(func() { view.Resize(6, 3) }), ErrView)
		assert.ErrorIs(t, exceptionOf(func() { view.Align(0, 0) }), ErrView)

		// Aligning a view with a matrix it already lines up with is fine.
		aligned := New[float64](g, dist.MC, dist.STAR)
		aligned.AlignCols(1)
		view.AlignColsWith(aligned.DistData())

		locked := LockedAttach(data, 5, 3, buf, ldim)
		assert.True(t, locked.Locked())
		assert.Equal(t, view.LockedBuffer(), locked.LockedBuffer())
		checkMatrix(t, Redistribute(locked, dist.STAR, dist.STAR), 5, 3, "from a locked view")

		// A wrong leading dimension is caught.
		assert.Error(t, exceptionOf(func() { Attach(data, 5, 3, buf, 1) }))

		// Empty turns a view into an ordinary matrix.
		view.Empty()
		assert.False(t, view.Viewing())
		view.Resize(2, 2)
	})
}
