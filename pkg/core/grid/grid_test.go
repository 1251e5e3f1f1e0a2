// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package grid_test

import (
	"testing"

	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHeight(t *testing.T) {
	for p, want := range map[int]int{1: 1, 2: 1, 4: 2, 6: 2, 7: 1, 9: 3, 12: 3, 16: 4, 18: 3} {
		assert.Equalf(t, want, grid.DefaultHeight(p), "p=%d", p)
	}
}

func TestGridCoordinates(t *testing.T) {
	world := mpi.NewWorld(6)
	require.NoError(t, world.Run(func(comm *mpi.Comm) {
		g := grid.New(comm, 2)
		require.Equal(t, 2, g.Height())
		require.Equal(t, 3, g.Width())
		require.Equal(t, 1, g.GCD())
		require.Equal(t, 6, g.LCM())
		require.True(t, g.InGrid())
		vc := comm.Rank()
		require.Equal(t, vc, g.VCRank())
		require.Equal(t, vc%2, g.Row())
		require.Equal(t, vc/2, g.Col())
		require.Equal(t, g.Col()+3*g.Row(), g.VRRank())
		require.Equal(t, vc, g.VRToVC(g.VCToVR(vc)))

		wantPathRank := []int{0, 3, 4, 1, 2, 5}
		require.Equal(t, 0, g.DiagPath())
		require.Equal(t, wantPathRank[vc], g.DiagPathRank())

		// Communicator memberships agree with MemberVC and ReplicaGroups.
		for kind := grid.VCComm; kind <= grid.MDPerpComm; kind++ {
			c := g.Comm(kind)
			require.NotNilf(t, c, "communicator %s", kind)
			for q := range c.Size() {
				require.Equalf(t, c.Group().WorldRank(q), g.VCToViewing(g.MemberVC(kind, q)),
					"communicator %s member %d", kind, q)
			}
		}
		require.Equal(t, 2, g.Comm(grid.MCComm).Size())
		require.Equal(t, g.Row(), g.Comm(grid.MCComm).Rank())
		require.Equal(t, 3, g.Comm(grid.MRComm).Size())
		require.Equal(t, g.Col(), g.Comm(grid.MRComm).Rank())
		require.Equal(t, 6, g.Comm(grid.MDComm).Size())
		require.Equal(t, 1, g.Comm(grid.MDPerpComm).Size())
		require.Equal(t, g.VRRank(), g.Comm(grid.VRComm).Rank())

		mcGroups, err := g.ReplicaGroups(grid.RowAxis)
		require.NoError(t, err)
		require.Equal(t, mcGroups[g.Col()], g.Comm(grid.MCComm).Group().Members())
	}))
}

func TestGridSquareDiagonals(t *testing.T) {
	world := mpi.NewWorld(4)
	require.NoError(t, world.Run(func(comm *mpi.Comm) {
		g := grid.New(comm, 0)
		require.Equal(t, 2, g.Height())
		wantPath := []int{0, 1, 1, 0}
		wantPathRank := []int{0, 1, 0, 1}
		require.Equal(t, wantPath[g.VCRank()], g.DiagPath())
		require.Equal(t, wantPathRank[g.VCRank()], g.DiagPathRank())
		md := g.Comm(grid.MDComm)
		require.Equal(t, 2, md.Size())
		require.Equal(t, g.DiagPathRank(), md.Rank())
		perp := g.Comm(grid.MDPerpComm)
		require.Equal(t, 2, perp.Size())
		require.Equal(t, g.DiagPath(), perp.Rank())
	}))
}

func TestGridSubsetOfProcesses(t *testing.T) {
	world := mpi.NewWorld(5)
	require.NoError(t, world.Run(func(comm *mpi.Comm) {
		// Processes 4, 2, 1 and 0 (in VC order) form a 2x2 grid; process 3 only views it.
		g := grid.NewWithOwners(comm, 2, []int{4, 2, 1, 0})
		if comm.Rank() == 3 {
			require.False(t, g.InGrid())
			require.Equal(t, mpi.Undefined, g.VCRank())
			require.Equal(t, mpi.Undefined, g.DiagPath())
			require.Nil(t, g.Comm(grid.VCComm))
			return
		}
		wantVC := map[int]int{4: 0, 2: 1, 1: 2, 0: 3}[comm.Rank()]
		require.Equal(t, wantVC, g.VCRank())
		require.Equal(t, comm.Rank(), g.VCToViewing(wantVC))
		require.Equal(t, []int{4, 2, 1, 0}, g.OwningGroup().Members())
	}))
}

func TestGridSizeMismatch(t *testing.T) {
	world := mpi.NewWorld(6)
	err := world.Run(func(comm *mpi.Comm) {
		grid.New(comm, 4)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, grid.ErrGridSize)
}

func TestInvalidOwners(t *testing.T) {
	for _, tc := range []struct {
		name    string
		owners  []int
		message string
	}{
		{"duplicated", []int{0, 0}, "grid owner rank 0 is duplicated"},
		{"out of range", []int{3}, "grid owner rank 3 is out of range"},
		{"negative", []int{-1, 1}, "grid owner rank -1 is out of range"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			world := mpi.NewWorld(2)
			err := world.Run(func(comm *mpi.Comm) {
				grid.NewWithOwners(comm, 1, tc.owners)
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, grid.ErrGridSize)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestReplicaGroups(t *testing.T) {
	world := mpi.NewWorld(6)
	var groups [][][]int
	require.NoError(t, world.Run(func(comm *mpi.Comm) {
		g := grid.New(comm, 2)
		if comm.Rank() != 0 {
			return
		}
		for _, axes := range [][]grid.Axis{{grid.RowAxis}, {grid.ColAxis}, {grid.ColAxis, grid.RowAxis}, {grid.RowAxis, grid.ColAxis}} {
			group, err := g.ReplicaGroups(axes...)
			require.NoError(t, err)
			groups = append(groups, group)
		}
		_, err := g.ReplicaGroups(grid.RowAxis, grid.RowAxis)
		require.Error(t, err)
	}))
	assert.Equal(t, [][]int{{0, 1}, {2, 3}, {4, 5}}, groups[0])
	assert.Equal(t, [][]int{{0, 2, 4}, {1, 3, 5}}, groups[1])
	assert.Equal(t, [][]int{{0, 1, 2, 3, 4, 5}}, groups[2])
	assert.Equal(t, [][]int{{0, 2, 4, 1, 3, 5}}, groups[3])
}
