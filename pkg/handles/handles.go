// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package handles exposes grids and distributed matrices through opaque handles and error codes,
// the shape of API a foreign-language binding can wrap.
//
// Each process owns one Table, created over its world communicator. Calls never panic: failures
// are reported as an ErrorCode and the error text is available from Table.LastError.
// Collective operations must still be called by every grid process, in the same order.
package handles

import (
	"fmt"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/meshmatrix/pkg/core/distmatrix"
	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
	"github.com/pkg/errors"
)

// Handle identifies a grid or a matrix in a Table. The zero Handle is never valid.
type Handle uint64

// ErrorCode is the result of every Table operation.
type ErrorCode int

const (
	Success ErrorCode = iota
	// LogicError is a misuse of the API: wrong alignment, inadmissible pair, mismatched types...
	LogicError
	// RuntimeError covers failures of the environment, for instance an aborted world.
	RuntimeError
	OutOfBounds
	InvalidHandle
	NotImplemented
)

var errorCodeNames = [...]string{"Success", "LogicError", "RuntimeError", "OutOfBounds", "InvalidHandle", "NotImplemented"}

// String implements fmt.Stringer.
func (c ErrorCode) String() string {
	if c < 0 || int(c) >= len(errorCodeNames) {
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
	return errorCodeNames[c]
}

var (
	// ErrInvalidHandle is reported for handles unknown to the table, or of the wrong kind.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrDTypeMismatch is reported when a matrix is accessed with a type different from its DType.
	ErrDTypeMismatch = errors.New("dtype mismatch")

	// ErrUnsupportedDType is reported when creating matrices of a DType with no instantiation.
	ErrUnsupportedDType = errors.New("unsupported dtype")
)

// codeOf maps an error to its ErrorCode.
func codeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrInvalidHandle):
		return InvalidHandle
	case errors.Is(err, distmatrix.ErrOutOfBounds):
		return OutOfBounds
	case errors.Is(err, distmatrix.ErrNotImplemented), errors.Is(err, ErrUnsupportedDType):
		return NotImplemented
	case errors.Is(err, mpi.ErrAborted):
		return RuntimeError
	case errors.Is(err, distmatrix.ErrInvalidPair), errors.Is(err, distmatrix.ErrNonsensicalAlignment),
		errors.Is(err, distmatrix.ErrView), errors.Is(err, distmatrix.ErrLocked),
		errors.Is(err, distmatrix.ErrGridMismatch), errors.Is(err, grid.ErrGridSize),
		errors.Is(err, ErrDTypeMismatch):
		return LogicError
	}
	return RuntimeError
}

// Table holds the grids and matrices of one process.
type Table struct {
	comm *mpi.Comm

	mu        sync.Mutex
	next      Handle
	grids     map[Handle]*grid.Grid
	matrices  map[Handle]*entry
	lastError error
}

// NewTable creates an empty table for the process with the given communicator. Grids created
// by the table use comm as their viewing communicator.
func NewTable(comm *mpi.Comm) *Table {
	return &Table{
		comm:     comm,
		grids:    make(map[Handle]*grid.Grid),
		matrices: make(map[Handle]*entry),
	}
}

// LastError returns the text of the error of the last failed call, or "" if the last call succeeded.
func (t *Table) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastError == nil {
		return ""
	}
	return t.lastError.Error()
}

// Err returns the error of the last failed call, or nil.
func (t *Table) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastError
}

// call runs fn converting any panic into an ErrorCode.
func (t *Table) call(fn func()) ErrorCode {
	err := exceptions.TryCatch[error](fn)
	t.mu.Lock()
	t.lastError = err
	t.mu.Unlock()
	return codeOf(err)
}

func (t *Table) register(g *grid.Grid, m *entry) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	if g != nil {
		t.grids[t.next] = g
	} else {
		t.matrices[t.next] = m
	}
	return t.next
}

func (t *Table) gridOf(h Handle) *grid.Grid {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, found := t.grids[h]
	if !found {
		panic(errors.Wrapf(ErrInvalidHandle, "grid handle %d", h))
	}
	return g
}

func (t *Table) matrixOf(h Handle) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, found := t.matrices[h]
	if !found {
		panic(errors.Wrapf(ErrInvalidHandle, "matrix handle %d", h))
	}
	return m
}

// Destroy releases a grid or matrix handle. Destroying a grid doesn't affect the matrices on it.
func (t *Table) Destroy(h Handle) ErrorCode {
	return t.call(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, found := t.grids[h]; found {
			delete(t.grids, h)
			return
		}
		if _, found := t.matrices[h]; found {
			delete(t.matrices, h)
			return
		}
		panic(errors.Wrapf(ErrInvalidHandle, "handle %d", h))
	})
}
