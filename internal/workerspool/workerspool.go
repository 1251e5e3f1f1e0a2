// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool limits how many helper goroutines the local packing and
// unpacking loops may use at once, across all simulated processes.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool hands out helper goroutines up to a soft limit.
//
// A maxParallelism of 0 disables helpers (everything runs inline) and a
// negative value removes the limit.
type Pool struct {
	mu             sync.Mutex
	maxParallelism int
	numRunning     int
}

// New returns a Pool limited to runtime.NumCPU() helpers.
func New() *Pool {
	return &Pool{maxParallelism: runtime.NumCPU()}
}

// MaxParallelism returns the current limit.
func (p *Pool) MaxParallelism() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxParallelism
}

// SetMaxParallelism changes the limit. Helpers already running are not interrupted.
func (p *Pool) SetMaxParallelism(maxParallelism int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxParallelism = maxParallelism
}

// lockedIsFull must be called with p.mu held.
func (p *Pool) lockedIsFull() bool {
	switch {
	case p.maxParallelism == 0:
		return true
	case p.maxParallelism < 0:
		return false
	}
	return p.numRunning >= p.maxParallelism
}

// lockedGo must be called with p.mu held.
func (p *Pool) lockedGo(task func()) {
	p.numRunning++
	go func() {
		defer func() {
			p.mu.Lock()
			p.numRunning--
			p.mu.Unlock()
		}()
		task()
	}()
}

// StartIfAvailable runs task in a helper goroutine if the limit allows and reports whether it did.
// Synchronizing with the end of task is up to the caller.
func (p *Pool) StartIfAvailable(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lockedIsFull() {
		return false
	}
	p.lockedGo(task)
	return true
}

// ParallelFor calls fn over [0, n) split into contiguous chunks of at least minChunk indices.
// Chunks that find no free helper run on the calling goroutine, so it never deadlocks
// when many callers share the pool. It returns after every chunk finished.
func (p *Pool) ParallelFor(n, minChunk int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	minChunk = max(minChunk, 1)
	numChunks := n / minChunk
	if limit := p.MaxParallelism(); limit >= 0 {
		numChunks = min(numChunks, limit+1)
	}
	if numChunks <= 1 {
		fn(0, n)
		return
	}
	chunkSize := (n + numChunks - 1) / numChunks
	var wg sync.WaitGroup
	for start := chunkSize; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		task := func() {
			defer wg.Done()
			fn(start, end)
		}
		if !p.StartIfAvailable(task) {
			task()
		}
	}
	fn(0, min(chunkSize, n))
	wg.Wait()
}
