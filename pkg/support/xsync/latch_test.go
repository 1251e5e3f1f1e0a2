// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xsync_test

import (
	"testing"

	"github.com/gomlx/meshmatrix/pkg/support/xsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatchWithValue(t *testing.T) {
	l := xsync.NewLatchWithValue[int]()
	require.False(t, l.Test())
	results := make(chan int, 3)
	for range 3 {
		go func() { results <- l.Wait() }()
	}
	assert.True(t, l.Trigger(7))
	assert.False(t, l.Trigger(11))
	for range 3 {
		assert.Equal(t, 7, <-results)
	}
	assert.True(t, l.Test())
	assert.Equal(t, 7, l.Wait())
}
