// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package handles

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func runTables(t *testing.T, numProcs int, fn func(table *Table)) {
	t.Helper()
	world := mpi.NewWorld(numProcs)
	require.NoError(t, world.Run(func(comm *mpi.Comm) {
		fn(NewTable(comm))
	}))
}

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "Success", Success.String())
	assert.Equal(t, "NotImplemented", NotImplemented.String())
	assert.Equal(t, "ErrorCode(17)", ErrorCode(17).String())
}

func TestGridHandles(t *testing.T) {
	runTables(t, 6, func(table *Table) {
		g, code := table.GridCreate(0)
		require.Equal(t, Success, code)
		height, _ := table.GridHeight(g)
		width, _ := table.GridWidth(g)
		size, _ := table.GridSize(g)
		assert.Equal(t, 2, height)
		assert.Equal(t, 3, width)
		assert.Equal(t, 6, size)
		rank, _ := table.GridRank(g)
		row, _ := table.GridRow(g)
		col, _ := table.GridCol(g)
		assert.Equal(t, rank, row+col*height)

		_, code = table.GridCreate(4)
		assert.Equal(t, LogicError, code)
		assert.Contains(t, table.LastError(), "grid")
		_, code = table.GridCreateWithOwners(1, []int{0, 0})
		assert.Equal(t, LogicError, code)
		_, code = table.GridCreateWithOwners(1, []int{6})
		assert.Equal(t, LogicError, code)
		assert.Contains(t, table.LastError(), "out of range")

		assert.Equal(t, Success, table.Destroy(g))
		_, code = table.GridHeight(g)
		assert.Equal(t, InvalidHandle, code)
		assert.Equal(t, InvalidHandle, table.Destroy(g))
	})
}

func TestMatrixHandles(t *testing.T) {
	runTables(t, 4, func(table *Table) {
		g, _ := table.GridCreate(2)
		a, code := table.MatrixCreate(dtypes.Float32, g, dist.MC, dist.MR)
		require.Equal(t, Success, code)
		require.Equal(t, Success, table.Resize(a, 5, 4))
		require.Equal(t, Success, Fill(table, a, func(i, j int) float32 { return float32(10*i + j) }))
		dtype, _ := table.DType(a)
		assert.Equal(t, dtypes.Float32, dtype)

		b, _ := table.MatrixCreate(dtypes.Float32, g, dist.STAR, dist.STAR)
		require.Equal(t, Success, table.Copy(a, b))
		buf, code := Buffer[float32](table, b)
		require.Equal(t, Success, code)
		ldim, _ := table.LDim(b)
		assert.Equal(t, float32(32), buf[3+2*ldim])

		assert.Equal(t, Success, Set[float32](table, a, 4, 3, -1))
		v, code := Get[float32](table, a, 4, 3)
		assert.Equal(t, Success, code)
		assert.Equal(t, float32(-1), v)

		// Errors.
		_, code = Get[float32](table, a, 5, 0)
		assert.Equal(t, OutOfBounds, code)
		_, code = Get[float64](table, a, 0, 0)
		assert.Equal(t, LogicError, code)
		assert.Equal(t, LogicError, table.Align(a, 3, 0))
		assert.Equal(t, InvalidHandle, table.Resize(Handle(1000), 1, 1))
		_, code = table.MatrixCreate(dtypes.Float32, g, dist.CIRC, dist.MR)
		assert.Equal(t, LogicError, code)
		_, code = table.MatrixCreate(dtypes.Bool, g, dist.MC, dist.MR)
		assert.Equal(t, NotImplemented, code)
		c, _ := table.MatrixCreate(dtypes.Float64, g, dist.MC, dist.MR)
		assert.Equal(t, LogicError, table.Copy(a, c))
		assert.ErrorIs(t, table.Err(), ErrDTypeMismatch)

		// Success clears the last error.
		_, code = table.Height(a)
		assert.Equal(t, Success, code)
		assert.Empty(t, table.LastError())

		// Alignment through handles.
		d, _ := table.MatrixCreate(dtypes.Float32, g, dist.MC, dist.STAR)
		assert.Equal(t, Success, table.AlignWith(d, DistData{ColDist: dist.VC, RowDist: dist.STAR, ColAlign: 3, Grid: g}))
		data, _ := table.MatrixDistData(d)
		assert.Equal(t, DistData{ColDist: dist.MC, RowDist: dist.STAR, ColAlign: 1, Grid: g}, data)
		assert.Equal(t, LogicError, table.AlignWith(d, DistData{ColDist: dist.STAR, RowDist: dist.MR, Grid: g}))
	})
}

func TestCrossGridNotImplemented(t *testing.T) {
	runTables(t, 4, func(table *Table) {
		g1, _ := table.GridCreate(2)
		g2, _ := table.GridCreate(4)
		a, _ := table.MatrixCreate(dtypes.Float64, g1, dist.VC, dist.STAR)
		b, _ := table.MatrixCreate(dtypes.Float64, g2, dist.VC, dist.STAR)
		assert.Equal(t, NotImplemented, table.Copy(a, b))

		// [MC,MR] is supported.
		c, _ := table.MatrixCreate(dtypes.Float64, g1, dist.MC, dist.MR)
		d, _ := table.MatrixCreate(dtypes.Float64, g2, dist.MC, dist.MR)
		require.Equal(t, Success, table.Resize(c, 3, 3))
		require.Equal(t, Success, Fill(table, c, func(i, j int) float64 { return float64(i - j) }))
		require.Equal(t, Success, table.Copy(c, d))
		v, _ := Get[float64](table, d, 0, 2)
		assert.Equal(t, -2.0, v)
	})
}

func TestScalarKinds(t *testing.T) {
	runTables(t, 2, func(table *Table) {
		g, _ := table.GridCreate(1)
		checkKind(t, table, g, func(i int) float16.Float16 { return float16.Fromfloat32(float32(i)) })
		checkKind(t, table, g, func(i int) bfloat16.BFloat16 { return bfloat16.FromFloat32(float32(i)) })
		checkKind(t, table, g, func(i int) complex64 { return complex(float32(i), 1) })
		checkKind(t, table, g, func(i int) complex128 { return complex(float64(i), -1) })
		checkKind(t, table, g, func(i int) int64 { return int64(i) })
	})
}

func checkKind[T Scalar](t *testing.T, table *Table, g Handle, fromInt func(i int) T) {
	m, code := table.MatrixCreate(dtypeOf[T](), g, dist.STAR, dist.VR)
	require.Equal(t, Success, code)
	require.Equal(t, Success, table.Resize(m, 2, 5))
	require.Equal(t, Success, Fill(table, m, func(i, j int) T { return fromInt(i*5 + j) }))
	v, code := Get[T](table, m, 1, 4)
	require.Equal(t, Success, code)
	assert.Equal(t, fromInt(9), v)

	// A view over a buffer owned by the caller.
	data, _ := table.MatrixDistData(m)
	localWidth, _ := table.LocalWidth(m)
	buf := make([]T, 2*localWidth)
	view, code := Attach(table, data, 2, 5, buf, 2)
	require.Equal(t, Success, code)
	require.Equal(t, Success, table.Copy(m, view))
	src, _ := Buffer[T](table, m)
	assert.Equal(t, src, buf)

	locked, code := LockedAttach(table, data, 2, 5, buf, 2)
	require.Equal(t, Success, code)
	v, _ = Get[T](table, locked, 0, 3)
	assert.Equal(t, fromInt(3), v)
}
