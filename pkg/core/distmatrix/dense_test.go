// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix_test

import (
	"testing"

	"github.com/gomlx/meshmatrix/pkg/core/dist"
	. "github.com/gomlx/meshmatrix/pkg/core/distmatrix"
	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestDense(t *testing.T) {
	a := mat.NewDense(3, 4, nil)
	for i := range 3 {
		for j := range 4 {
			a.Set(i, j, value(i, j))
		}
	}
	runOnGrid(t, 6, 3, func(g *grid.Grid) {
		m := FromDense(g, a, dist.MR, dist.MC)
		assert.True(t, m.DistData().Is(dist.MRMC))
		checkMatrix(t, m, 3, 4, "FromDense")

		d := ToDense(m)
		assert.True(t, mat.Equal(a, d))

		// The transpose, computed by gonum from the replicated copy.
		at := FromDense(g, a.T(), dist.VC, dist.STAR)
		assert.Equal(t, 4, at.Height())
		assert.Equal(t, value(2, 1), at.Get(1, 2))

		empty := ToDense(NewWithSize[float64](g, dist.MC, dist.MR, 0, 3))
		assert.True(t, empty.IsEmpty())
	})
}
