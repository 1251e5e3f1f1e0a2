// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package scratch

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena(t *testing.T) {
	a := New[float64]("test")
	buf := a.Require(10)
	require.Len(t, buf, 10)
	require.True(t, a.InUse())
	buf[3] = 7

	// Reentrant use is a fatal error.
	require.NotNil(t, exceptions.Try(func() { a.Require(1) }))
	a.Release()
	require.False(t, a.InUse())

	// Smaller requests reuse the same memory, never shrinking.
	small := a.Require(4)
	assert.Equal(t, 7.0, small[3])
	assert.Equal(t, 10, a.Capacity())
	a.Release()

	big := a.Require(20)
	assert.Len(t, big, 20)
	assert.Equal(t, 20, a.Capacity())
	require.NotNil(t, exceptions.Try(a.Free))
	a.Release()
	a.Free()
	assert.Equal(t, 0, a.Capacity())
}

func TestWorkspace(t *testing.T) {
	a := New[int]("ws")
	func() {
		ws := a.Acquire(5)
		defer ws.Release()
		require.Len(t, ws.Data, 5)
		require.True(t, a.InUse())
		ws.Release()
		require.False(t, a.InUse())
		// A second user can take it; the deferred Release of the first must not free it.
		other := a.Require(2)
		require.Len(t, other, 2)
	}()
	assert.True(t, a.InUse())
	a.Release()
}
