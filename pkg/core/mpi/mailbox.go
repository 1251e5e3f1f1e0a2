// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mpi

import (
	"slices"
	"sync"

	"github.com/pkg/errors"
)

type message struct {
	tag     int
	payload any
}

// mailbox queues the messages from one source to one destination of a communicator.
// Only the destination process takes from it.
type mailbox struct {
	mu     sync.Mutex
	queue  []message
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (mb *mailbox) post(msg message) {
	mb.mu.Lock()
	mb.queue = append(mb.queue, msg)
	mb.mu.Unlock()
	select {
	case mb.signal <- struct{}{}:
	default:
	}
}

// take removes and returns the oldest message with the given tag, blocking until one arrives
// or the world aborts.
func (mb *mailbox) take(tag int, abort <-chan struct{}) any {
	for {
		mb.mu.Lock()
		for i, msg := range mb.queue {
			if msg.tag == tag {
				mb.queue = slices.Delete(mb.queue, i, i+1)
				mb.mu.Unlock()
				return msg.payload
			}
		}
		mb.mu.Unlock()
		select {
		case <-mb.signal:
		case <-abort:
			panic(errors.WithStack(ErrAborted))
		}
	}
}

// commContext is the state shared by all processes of one communicator.
type commContext struct {
	id      string
	world   *World
	members []int // World rank of each communicator rank.

	// mailboxes[src*size+dst]
	mailboxes []*mailbox
}

func newCommContext(w *World, id string, members []int) *commContext {
	n := len(members)
	ctx := &commContext{
		id:        id,
		world:     w,
		members:   slices.Clone(members),
		mailboxes: make([]*mailbox, n*n),
	}
	for i := range ctx.mailboxes {
		ctx.mailboxes[i] = newMailbox()
	}
	return ctx
}

func (ctx *commContext) mailbox(src, dst int) *mailbox {
	return ctx.mailboxes[src*len(ctx.members)+dst]
}
