// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package handles

import (
	"github.com/gomlx/meshmatrix/pkg/core/distmatrix"
	"github.com/pkg/errors"
)

// typedMatrix returns matrix h as a *distmatrix.Matrix[T], checking its DType.
func typedMatrix[T Scalar](t *Table, h Handle) *distmatrix.Matrix[T] {
	e := t.matrixOf(h)
	if want := dtypeOf[T](); e.dtype != want {
		panic(errors.Wrapf(ErrDTypeMismatch, "matrix %d is %s, accessed as %s", h, e.dtype, want))
	}
	return e.m.(*distmatrix.Matrix[T])
}

// Buffer returns the local block of matrix h, column-major with leading dimension LDim.
func Buffer[T Scalar](t *Table, h Handle) (buf []T, code ErrorCode) {
	code = t.call(func() {
		buf = typedMatrix[T](t, h).Buffer()
	})
	return
}

// Get returns the global entry (i, j) of matrix h on every grid process. Collective.
func Get[T Scalar](t *Table, h Handle, i, j int) (value T, code ErrorCode) {
	code = t.call(func() {
		value = typedMatrix[T](t, h).Get(i, j)
	})
	return
}

// Set sets the global entry (i, j) of matrix h on the processes storing it.
func Set[T Scalar](t *Table, h Handle, i, j int, value T) ErrorCode {
	return t.call(func() {
		typedMatrix[T](t, h).Set(i, j, value)
	})
}

// Fill sets every locally stored entry (i, j) of matrix h to fn(i, j).
func Fill[T Scalar](t *Table, h Handle, fn func(i, j int) T) ErrorCode {
	return t.call(func() {
		typedMatrix[T](t, h).Fill(fn)
	})
}

// Attach creates a matrix handle viewing buf as the local block of a height x width matrix
// described by data.
func Attach[T Scalar](t *Table, data DistData, height, width int, buf []T, ldim int) (h Handle, code ErrorCode) {
	code = t.call(func() {
		m := distmatrix.Attach(t.toDistData(data), height, width, buf, ldim)
		h = t.register(nil, newEntry(m, data.Grid))
	})
	return
}

// LockedAttach is like Attach with a read-only view.
func LockedAttach[T Scalar](t *Table, data DistData, height, width int, buf []T, ldim int) (h Handle, code ErrorCode) {
	code = t.call(func() {
		m := distmatrix.LockedAttach(t.toDistData(data), height, width, buf, ldim)
		h = t.register(nil, newEntry(m, data.Grid))
	})
	return
}
