// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package mpi is an in-process message-passing substrate: a World runs one goroutine per
// simulated process, and each process talks to the others through Comm communicators
// with point-to-point and collective operations.
//
// Messages are matched per (communicator, source, destination, tag) in FIFO order. Sends are
// eager: the payload is copied when sent, so the sender may reuse its buffer right away.
//
// Failures are fatal: any panic on a process aborts the whole World, every process blocked in
// a receive panics with ErrAborted, and World.Run returns the first error.
package mpi

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/meshmatrix/pkg/support/xsync"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Undefined is returned for ranks that are not part of a communicator or group, and is
// the color that excludes a process from the result of Comm.Split.
const Undefined = -1

// ErrAborted is raised (as a panic) on every process blocked on communication once any
// process of the World failed.
var ErrAborted = errors.New("mpi: world aborted")

// World is a fixed set of simulated processes.
type World struct {
	id    uuid.UUID
	size  int
	abort *xsync.LatchWithValue[error]

	mu       sync.Mutex
	numRuns  int
	contexts map[string]*commContext

	numMessages, numElements, numBytes atomic.Int64
}

// NewWorld creates a World with size processes.
func NewWorld(size int) *World {
	if size <= 0 {
		exceptions.Panicf("mpi.NewWorld: invalid size %d", size)
	}
	return &World{
		id:       uuid.New(),
		size:     size,
		abort:    xsync.NewLatchWithValue[error](),
		contexts: make(map[string]*commContext),
	}
}

// ID uniquely identifies the World, mostly for logging.
func (w *World) ID() string { return w.id.String() }

// Size is the number of processes.
func (w *World) Size() int { return w.size }

// String implements fmt.Stringer.
func (w *World) String() string {
	return fmt.Sprintf("World(%s, size=%d)", w.id.String()[:8], w.size)
}

// Aborted reports whether some process failed. An aborted World can no longer Run.
func (w *World) Aborted() bool { return w.abort.Test() }

// Run executes fn once per process, each on its own goroutine with its own world
// communicator, and waits for all of them.
//
// If any process panics the World is aborted and Run returns the first error (with the
// failing rank attached). A panic carrying a non-error value is wrapped into an error.
func (w *World) Run(fn func(comm *Comm)) error {
	if w.abort.Test() {
		return w.abort.Wait()
	}
	w.mu.Lock()
	w.numRuns++
	runID := fmt.Sprintf("world#%d", w.numRuns)
	w.mu.Unlock()
	members := make([]int, w.size)
	for rank := range members {
		members[rank] = rank
	}
	ctx := w.context(runID, members)

	var g errgroup.Group
	for rank := range w.size {
		comm := &Comm{ctx: ctx, rank: rank}
		g.Go(func() error {
			return w.runProcess(comm, fn)
		})
	}
	return g.Wait()
}

func (w *World) runProcess(comm *Comm, fn func(comm *Comm)) error {
	exception := exceptions.Try(func() { fn(comm) })
	if exception == nil {
		return nil
	}
	var err error
	switch e := exception.(type) {
	case error:
		err = e
	default:
		err = errors.Errorf("%v", e)
	}
	if errors.Is(err, ErrAborted) && w.abort.Test() {
		// Secondary failure: some other process aborted first.
		return w.abort.Wait()
	}
	err = errors.WithMessagef(err, "process %d of %s", comm.WorldRank(), w)
	if w.abort.Trigger(err) {
		klog.Errorf("Aborting %s: %+v", w, err)
	}
	return w.abort.Wait()
}

// Abort aborts the World with err: every blocked process panics with ErrAborted.
func (w *World) Abort(err error) {
	if w.abort.Trigger(err) {
		klog.Errorf("Aborting %s: %+v", w, err)
	}
}

// context returns the shared communicator state for id, creating it on first use.
// All processes of a new communicator derive the same id and members, and the first one
// to arrive creates the mailboxes for everyone.
func (w *World) context(id string, members []int) *commContext {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ctx, found := w.contexts[id]; found {
		if !slices.Equal(ctx.members, members) {
			exceptions.Panicf("mpi: communicator %q created with inconsistent members %v and %v", id, ctx.members, members)
		}
		return ctx
	}
	ctx := newCommContext(w, id, members)
	w.contexts[id] = ctx
	return ctx
}

// Stats is a snapshot of the traffic between distinct processes since the last ResetStats.
type Stats struct {
	Messages, Elements, Bytes int64
}

// Stats returns the accumulated traffic counters.
func (w *World) Stats() Stats {
	return Stats{
		Messages: w.numMessages.Load(),
		Elements: w.numElements.Load(),
		Bytes:    w.numBytes.Load(),
	}
}

// ResetStats zeroes the traffic counters.
func (w *World) ResetStats() {
	w.numMessages.Store(0)
	w.numElements.Store(0)
	w.numBytes.Store(0)
}

// Sub returns s - s2, handy to measure the traffic of one operation.
func (s Stats) Sub(s2 Stats) Stats {
	return Stats{Messages: s.Messages - s2.Messages, Elements: s.Elements - s2.Elements, Bytes: s.Bytes - s2.Bytes}
}
