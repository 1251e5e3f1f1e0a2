// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dist_test

import (
	"testing"

	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLengthLaw(t *testing.T) {
	for stride := 1; stride <= 9; stride++ {
		for align := range stride {
			for n := 0; n <= 50; n++ {
				total := 0
				for rank := range stride {
					shift := dist.Shift(rank, align, stride)
					require.Less(t, shift, stride)
					length := dist.Length(n, shift, stride)
					require.LessOrEqual(t, length, dist.MaxLength(n, stride))
					total += length
				}
				require.Equalf(t, n, total, "n=%d stride=%d align=%d", n, stride, align)
			}
		}
	}
	assert.Equal(t, 0, dist.Length(3, 5, 6))
	assert.Equal(t, 1, dist.Length(6, 5, 6))
	assert.Equal(t, int64(3), dist.Length[int64](7, 0, 3))
	assert.Equal(t, 2, dist.Shift(0, 1, 3))
	assert.Equal(t, 0, dist.Shift(1, 1, 3))
	assert.Equal(t, 6, dist.LCM(2, 3))
	assert.Equal(t, 2, dist.GCD(4, 6))
}

func TestParse(t *testing.T) {
	for _, p := range dist.Pairs {
		parsed, err := dist.ParsePair(p.String())
		require.NoError(t, err)
		require.Equal(t, p, parsed)
	}
	p, err := dist.ParsePair("VC,STAR")
	require.NoError(t, err)
	assert.Equal(t, dist.VCStar, p)
	p, err = dist.ParsePair("circ,circ")
	require.NoError(t, err)
	assert.Equal(t, dist.CircCirc, p)

	_, err = dist.ParsePair("MC,VC")
	assert.Error(t, err)
	_, err = dist.ParsePair("MC")
	assert.Error(t, err)
	_, err = dist.ParsePair("XX,MR")
	assert.Error(t, err)
	assert.Len(t, dist.Pairs, 14)
	assert.False(t, dist.Pair{Col: dist.MC, Row: dist.MC}.Valid())
}

func TestStridesAndRanks(t *testing.T) {
	world := mpi.NewWorld(6)
	require.NoError(t, world.Run(func(comm *mpi.Comm) {
		g := grid.New(comm, 2)
		vc := g.VCRank()
		wantStrides := map[dist.Dist]int{dist.MC: 2, dist.MR: 3, dist.VC: 6, dist.VR: 6, dist.MD: 6, dist.STAR: 1, dist.CIRC: 1}
		for d, want := range wantStrides {
			require.Equalf(t, want, dist.Stride(d, g), "stride of %s", d)
		}
		require.Equal(t, g.Row(), dist.RankOf(dist.MC, g, vc))
		require.Equal(t, g.Col(), dist.RankOf(dist.MR, g, vc))
		require.Equal(t, g.VRRank(), dist.RankOf(dist.VR, g, vc))
		require.Equal(t, g.DiagPathRank(), dist.RankOf(dist.MD, g, vc))
		require.Equal(t, 0, dist.RankOf(dist.STAR, g, vc))

		require.True(t, dist.Participates(dist.MCMR, g, vc, 0))
		require.Equal(t, vc == 4, dist.Participates(dist.CircCirc, g, vc, 4))
		require.True(t, dist.Participates(dist.MDStar, g, vc, 0)) // A 2x3 grid has a single path.
		require.False(t, dist.Participates(dist.MCMR, g, mpi.Undefined, 0))
	}))
}

func TestAxes(t *testing.T) {
	row, col := dist.MCStar.Axes()
	assert.True(t, row)
	assert.False(t, col)
	row, col = dist.StarVR.Axes()
	assert.True(t, row && col)
	row, col = dist.StarStar.Axes()
	assert.False(t, row || col)
	assert.True(t, dist.StarMD.HasRoot())
	assert.True(t, dist.CircCirc.HasRoot())
	assert.False(t, dist.MCMR.HasRoot())
}
