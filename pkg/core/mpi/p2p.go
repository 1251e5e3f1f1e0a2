// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mpi

import (
	"slices"
	"unsafe"

	"github.com/gomlx/exceptions"
)

// collectiveTag is reserved for the collectives: they never match user messages.
const collectiveTag = -2

// Send delivers a copy of buf to process dest of c, with the given tag (>= 0).
func Send[T any](c *Comm, buf []T, dest, tag int) {
	checkUserTag(tag)
	send(c, buf, dest, tag)
}

// Recv receives the oldest message from source with the given tag into buf and returns the
// number of elements received. It panics if the message does not fit in buf.
func Recv[T any](c *Comm, buf []T, source, tag int) int {
	checkUserTag(tag)
	return recv(c, buf, source, tag)
}

// Request tracks a non-blocking send. Sends are eager: the message is queued at the
// destination before ISend returns, so a Request is complete from the start.
type Request struct{}

// ISend starts sending buf to dest and returns its Request. The buffer may be reused
// right away.
func ISend[T any](c *Comm, buf []T, dest, tag int) *Request {
	Send(c, buf, dest, tag)
	return &Request{}
}

// Wait returns once the send completed, which for eager sends is immediately. It never
// depends on the receiver having posted its Recv.
func (r *Request) Wait() {}

// SendRecv sends sendBuf to dest and receives from source into recvBuf, returning the number
// of elements received. dest and source may be the calling process.
func SendRecv[T any](c *Comm, sendBuf []T, dest int, recvBuf []T, source, tag int) int {
	checkUserTag(tag)
	send(c, sendBuf, dest, tag)
	return recv(c, recvBuf, source, tag)
}

func checkUserTag(tag int) {
	if tag < 0 {
		exceptions.Panicf("mpi: invalid tag %d, tags must be >= 0", tag)
	}
}

func checkRank(c *Comm, rank int, what string) {
	if rank < 0 || rank >= c.Size() {
		exceptions.Panicf("mpi: %s rank %d out of range for %s", what, rank, c)
	}
}

func send[T any](c *Comm, buf []T, dest, tag int) {
	checkRank(c, dest, "destination")
	payload := slices.Clone(buf)
	if payload == nil {
		payload = []T{}
	}
	if c.ctx.members[dest] != c.WorldRank() {
		w := c.ctx.world
		var zero T
		w.numMessages.Add(1)
		w.numElements.Add(int64(len(buf)))
		w.numBytes.Add(int64(len(buf)) * int64(unsafe.Sizeof(zero)))
	}
	c.ctx.mailbox(c.rank, dest).post(message{tag: tag, payload: payload})
}

func recv[T any](c *Comm, buf []T, source, tag int) int {
	checkRank(c, source, "source")
	raw := c.ctx.mailbox(source, c.rank).take(tag, c.ctx.world.abort.WaitChan())
	payload, ok := raw.([]T)
	if !ok {
		exceptions.Panicf("mpi: %s received %T from rank %d (tag %d), expected %T", c, raw, source, tag, buf)
	}
	if len(payload) > len(buf) {
		exceptions.Panicf("mpi: %s received %d elements from rank %d (tag %d) into a buffer of %d",
			c, len(payload), source, tag, len(buf))
	}
	return copy(buf, payload)
}
