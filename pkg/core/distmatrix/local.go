// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix

import (
	"github.com/pkg/errors"
)

// localBlock is the column-major block a process stores: element (i, j) is data[i+j*ldim].
type localBlock[T any] struct {
	height, width, ldim int
	data                []T
	view                bool
}

// resize reinterprets or reallocates the block for the new dimensions. Contents are undefined after it.
// Views cannot change dimensions.
func (b *localBlock[T]) resize(height, width int) {
	if b.view {
		if height != b.height || width != b.width {
			panic(errors.Wrapf(ErrView, "cannot resize the local data of a view from %dx%d to %dx%d",
				b.height, b.width, height, width))
		}
		return
	}
	ldim := max(height, 1)
	size := ldim * width
	if cap(b.data) < size {
		b.data = make([]T, size)
	} else {
		b.data = b.data[:size]
	}
	b.height, b.width, b.ldim = height, width, ldim
}

func (b *localBlock[T]) index(iLoc, jLoc int) int {
	return iLoc + jLoc*b.ldim
}
