// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveRootReleasesScratchOnPanic(t *testing.T) {
	world := mpi.NewWorld(1)
	require.NoError(t, world.Run(func(comm *mpi.Comm) {
		g := grid.New(comm, 1)
		src := NewWithSize[float64](g, dist.CIRC, dist.CIRC, 3, 2)
		src.Fill(func(i, j int) float64 { return float64(10*i + j) })
		dst := NewWithSize[float64](g, dist.CIRC, dist.CIRC, 3, 2)
		dst.root = 1 // Not a rank of the grid: the send fails.
		require.NotNil(t, exceptions.Try(func() { moveRoot(src, dst) }))
		assert.False(t, src.scratch.InUse())
		assert.False(t, dst.scratch.InUse())
	}))
}
