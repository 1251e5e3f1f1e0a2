// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xsync holds the synchronization primitives shared by the message-passing substrate.
package xsync

import "sync"

// LatchWithValue is a one-shot signal that carries the value given by its first Trigger.
// Once triggered it stays triggered forever.
type LatchWithValue[T any] struct {
	once  sync.Once
	value T
	done  chan struct{}
}

// NewLatchWithValue returns a latch that has not been triggered.
func NewLatchWithValue[T any]() *LatchWithValue[T] {
	return &LatchWithValue[T]{done: make(chan struct{})}
}

// Trigger fires the latch with value. Only the value of the first call is kept,
// and it returns whether this call was the one that fired the latch.
func (l *LatchWithValue[T]) Trigger(value T) (fired bool) {
	l.once.Do(func() {
		l.value = value
		close(l.done)
		fired = true
	})
	return
}

// Wait blocks until the latch is triggered and returns its value.
func (l *LatchWithValue[T]) Wait() T {
	<-l.done
	return l.value
}

// Test reports whether the latch was triggered, without blocking.
func (l *LatchWithValue[T]) Test() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// WaitChan is closed when the latch triggers.
func (l *LatchWithValue[T]) WaitChan() <-chan struct{} {
	return l.done
}
