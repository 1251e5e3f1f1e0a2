// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix

import "github.com/pkg/errors"

// Errors raised (as panics) by distributed matrices. Use errors.Is to match them
// on the error returned by mpi.World.Run.
var (
	ErrInvalidPair          = errors.New("inadmissible distribution pair")
	ErrNonsensicalAlignment = errors.New("nonsensical alignment")
	ErrNotImplemented       = errors.New("redistribution not implemented")
	ErrOutOfBounds          = errors.New("index out of bounds")
	ErrLocked               = errors.New("write to a locked matrix")
	ErrView                 = errors.New("operation not allowed on a view")
	ErrGridMismatch         = errors.New("grids do not share a viewing communicator")
)
