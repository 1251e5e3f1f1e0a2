// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package handles

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/distmatrix"
	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Scalar lists the element types matrices can be instantiated with.
type Scalar interface {
	float16.Float16 | bfloat16.BFloat16 | float32 | float64 | complex64 | complex128 | int64
}

// dtypeOf returns the DType of the Scalar T.
func dtypeOf[T Scalar]() dtypes.DType {
	var zero T
	switch any(zero).(type) {
	case float16.Float16:
		return dtypes.Float16
	case bfloat16.BFloat16:
		return dtypes.BFloat16
	case float32:
		return dtypes.Float32
	case float64:
		return dtypes.Float64
	case complex64:
		return dtypes.Complex64
	case complex128:
		return dtypes.Complex128
	case int64:
		return dtypes.Int64
	}
	return dtypes.InvalidDType
}

// DistData is dist.DistData with the grid given by its handle.
type DistData struct {
	ColDist, RowDist   dist.Dist
	ColAlign, RowAlign int
	Root               int
	Grid               Handle
}

// matrix is the part of *distmatrix.Matrix[T] that doesn't depend on T.
type matrix interface {
	Resize(height, width int)
	Align(colAlign, rowAlign int)
	SetRoot(root int)
	AlignWith(data dist.DistData)
	Empty()
	DistData() dist.DistData
	Height() int
	Width() int
	LocalHeight() int
	LocalWidth() int
	LDim() int
	Participating() bool
}

type entry struct {
	dtype    dtypes.DType
	gridH    Handle
	m        matrix
	copyFrom func(src matrix)
}

func newEntry[T Scalar](m *distmatrix.Matrix[T], gridH Handle) *entry {
	return &entry{
		dtype: dtypeOf[T](),
		gridH: gridH,
		m:     m,
		copyFrom: func(src matrix) {
			distmatrix.Copy(src.(*distmatrix.Matrix[T]), m)
		},
	}
}

// newMatrixEntry instantiates an empty matrix of the given dtype.
func newMatrixEntry(dtype dtypes.DType, g *grid.Grid, gridH Handle, colDist, rowDist dist.Dist) *entry {
	switch dtype {
	case dtypes.Float16:
		return newEntry(distmatrix.New[float16.Float16](g, colDist, rowDist), gridH)
	case dtypes.BFloat16:
		return newEntry(distmatrix.New[bfloat16.BFloat16](g, colDist, rowDist), gridH)
	case dtypes.Float32:
		return newEntry(distmatrix.New[float32](g, colDist, rowDist), gridH)
	case dtypes.Float64:
		return newEntry(distmatrix.New[float64](g, colDist, rowDist), gridH)
	case dtypes.Complex64:
		return newEntry(distmatrix.New[complex64](g, colDist, rowDist), gridH)
	case dtypes.Complex128:
		return newEntry(distmatrix.New[complex128](g, colDist, rowDist), gridH)
	case dtypes.Int64:
		return newEntry(distmatrix.New[int64](g, colDist, rowDist), gridH)
	}
	panic(errors.Wrapf(ErrUnsupportedDType, "%s", dtype))
}

// MatrixCreate creates an empty (0x0) matrix of the given dtype and distribution on the grid gridH.
func (t *Table) MatrixCreate(dtype dtypes.DType, gridH Handle, colDist, rowDist dist.Dist) (h Handle, code ErrorCode) {
	code = t.call(func() {
		h = t.register(nil, newMatrixEntry(dtype, t.gridOf(gridH), gridH, colDist, rowDist))
	})
	return
}

// DType returns the element type of matrix h.
func (t *Table) DType(h Handle) (dtype dtypes.DType, code ErrorCode) {
	code = t.call(func() {
		dtype = t.matrixOf(h).dtype
	})
	return
}

// Resize sets the global size of matrix h.
func (t *Table) Resize(h Handle, height, width int) ErrorCode {
	return t.call(func() { t.matrixOf(h).m.Resize(height, width) })
}

// Align fixes both alignments of matrix h.
func (t *Table) Align(h Handle, colAlign, rowAlign int) ErrorCode {
	return t.call(func() { t.matrixOf(h).m.Align(colAlign, rowAlign) })
}

// SetRoot fixes the root of matrix h.
func (t *Table) SetRoot(h Handle, root int) ErrorCode {
	return t.call(func() { t.matrixOf(h).m.SetRoot(root) })
}

// AlignWith aligns matrix h with a matrix described by data, moving it to data's grid.
func (t *Table) AlignWith(h Handle, data DistData) ErrorCode {
	return t.call(func() {
		e := t.matrixOf(h)
		e.m.AlignWith(t.toDistData(data))
		e.gridH = data.Grid
	})
}

// Empty releases the data of matrix h and resets it to 0x0.
func (t *Table) Empty(h Handle) ErrorCode {
	return t.call(func() { t.matrixOf(h).m.Empty() })
}

// MatrixDistData returns the distribution metadata of matrix h.
func (t *Table) MatrixDistData(h Handle) (data DistData, code ErrorCode) {
	code = t.call(func() {
		e := t.matrixOf(h)
		d := e.m.DistData()
		data = DistData{
			ColDist:  d.ColDist,
			RowDist:  d.RowDist,
			ColAlign: d.ColAlign,
			RowAlign: d.RowAlign,
			Root:     d.Root,
			Grid:     e.gridH,
		}
	})
	return
}

func (t *Table) toDistData(data DistData) dist.DistData {
	return dist.DistData{
		ColDist:  data.ColDist,
		RowDist:  data.RowDist,
		ColAlign: data.ColAlign,
		RowAlign: data.RowAlign,
		Root:     data.Root,
		Grid:     t.gridOf(data.Grid),
	}
}

func (t *Table) matrixQuery(h Handle, query func(m matrix) int) (value int, code ErrorCode) {
	code = t.call(func() {
		value = query(t.matrixOf(h).m)
	})
	return
}

// Height returns the global number of rows of matrix h.
func (t *Table) Height(h Handle) (int, ErrorCode) {
	return t.matrixQuery(h, matrix.Height)
}

// Width returns the global number of columns of matrix h.
func (t *Table) Width(h Handle) (int, ErrorCode) {
	return t.matrixQuery(h, matrix.Width)
}

// LocalHeight returns the number of rows of matrix h stored by this process.
func (t *Table) LocalHeight(h Handle) (int, ErrorCode) {
	return t.matrixQuery(h, matrix.LocalHeight)
}

// LocalWidth returns the number of columns of matrix h stored by this process.
func (t *Table) LocalWidth(h Handle) (int, ErrorCode) {
	return t.matrixQuery(h, matrix.LocalWidth)
}

// LDim returns the leading dimension of the local block of matrix h.
func (t *Table) LDim(h Handle) (int, ErrorCode) {
	return t.matrixQuery(h, matrix.LDim)
}

// Participating reports whether this process stores a block of matrix h.
func (t *Table) Participating(h Handle) (participating bool, code ErrorCode) {
	code = t.call(func() {
		participating = t.matrixOf(h).m.Participating()
	})
	return
}

// Copy redistributes src into dst. Both must have the same DType. Collective.
func (t *Table) Copy(src, dst Handle) ErrorCode {
	return t.call(func() {
		s, d := t.matrixOf(src), t.matrixOf(dst)
		if s.dtype != d.dtype {
			panic(errors.Wrapf(ErrDTypeMismatch, "copy of a %s matrix into a %s matrix", s.dtype, d.dtype))
		}
		d.copyFrom(s.m)
	})
}
