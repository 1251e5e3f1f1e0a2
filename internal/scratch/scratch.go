// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package scratch implements the reusable communication buffer owned by each distributed matrix.
package scratch

import (
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// Arena is a growable buffer that can be required by one user at a time.
// It never shrinks, except by Free.
type Arena[T any] struct {
	name  string
	buf   []T
	inUse bool
}

// New returns an empty arena. The name is used in logs only.
func New[T any](name string) *Arena[T] {
	return &Arena[T]{name: name}
}

// Require returns a buffer of n elements, growing the arena if needed. Contents are undefined.
// It panics if the arena is already required: every Require must be matched by a Release first.
func (a *Arena[T]) Require(n int) []T {
	if a.inUse {
		exceptions.Panicf("scratch arena %q required while already in use", a.name)
	}
	if n > cap(a.buf) {
		if klog.V(2).Enabled() {
			var zero T
			klog.Infof("scratch arena %q: growing to %s", a.name,
				humanize.Bytes(uint64(n)*uint64(unsafe.Sizeof(zero))))
		}
		a.buf = make([]T, n)
	}
	a.inUse = true
	return a.buf[:n]
}

// Release returns the buffer to the arena.
func (a *Arena[T]) Release() {
	a.inUse = false
}

// InUse reports whether the arena is currently required.
func (a *Arena[T]) InUse() bool { return a.inUse }

// Capacity is the number of elements the arena holds without growing.
func (a *Arena[T]) Capacity() int { return cap(a.buf) }

// Free drops the arena memory. It must not be in use.
func (a *Arena[T]) Free() {
	if a.inUse {
		exceptions.Panicf("scratch arena %q freed while in use", a.name)
	}
	a.buf = nil
}

// Workspace is a required arena buffer whose Release is idempotent, meant for defer.
type Workspace[T any] struct {
	Data  []T
	arena *Arena[T]
}

// Acquire requires n elements and wraps them in a Workspace:
//
//	ws := arena.Acquire(n)
//	defer ws.Release()
func (a *Arena[T]) Acquire(n int) *Workspace[T] {
	return &Workspace[T]{Data: a.Require(n), arena: a}
}

// Release the workspace. Calling it more than once is fine.
func (ws *Workspace[T]) Release() {
	if ws.arena != nil {
		ws.arena.Release()
		ws.arena = nil
		ws.Data = nil
	}
}
