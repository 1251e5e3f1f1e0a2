// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mpi

import (
	"github.com/gomlx/exceptions"
	"golang.org/x/exp/constraints"
)

// All collectives must be called by every process of the communicator, in the same order.
// They are built on point-to-point messages with a reserved tag, relying on FIFO matching.

// Barrier blocks until every process of c reached it.
func Barrier(c *Comm) {
	token := []struct{}{{}}
	if c.rank == 0 {
		for src := 1; src < c.Size(); src++ {
			recv(c, token, src, collectiveTag)
		}
		for dst := 1; dst < c.Size(); dst++ {
			send(c, token, dst, collectiveTag)
		}
		return
	}
	send(c, token, 0, collectiveTag)
	recv(c, token, 0, collectiveTag)
}

// Broadcast copies buf on root into buf on every process.
func Broadcast[T any](c *Comm, buf []T, root int) {
	checkRank(c, root, "root")
	if c.rank == root {
		for dst := range c.Size() {
			if dst != root {
				send(c, buf, dst, collectiveTag)
			}
		}
		return
	}
	recv(c, buf, root, collectiveTag)
}

// Scatter splits sendBuf on root into Size() portions of len(recvBuf) elements and delivers
// portion q to process q. sendBuf is only read on root.
func Scatter[T any](c *Comm, sendBuf, recvBuf []T, root int) {
	checkRank(c, root, "root")
	portion := len(recvBuf)
	if c.rank == root {
		if len(sendBuf) < portion*c.Size() {
			exceptions.Panicf("mpi.Scatter: send buffer of %d elements, need %d", len(sendBuf), portion*c.Size())
		}
		for dst := range c.Size() {
			if dst != root {
				send(c, sendBuf[dst*portion:(dst+1)*portion], dst, collectiveTag)
			}
		}
		copy(recvBuf, sendBuf[root*portion:(root+1)*portion])
		return
	}
	recv(c, recvBuf, root, collectiveTag)
}

// Gather collects len(sendBuf) elements from every process into recvBuf on root, in rank order.
// recvBuf is only written on root.
func Gather[T any](c *Comm, sendBuf, recvBuf []T, root int) {
	checkRank(c, root, "root")
	portion := len(sendBuf)
	if c.rank != root {
		send(c, sendBuf, root, collectiveTag)
		return
	}
	if len(recvBuf) < portion*c.Size() {
		exceptions.Panicf("mpi.Gather: receive buffer of %d elements, need %d", len(recvBuf), portion*c.Size())
	}
	for src := range c.Size() {
		if src == root {
			copy(recvBuf[src*portion:], sendBuf)
			continue
		}
		recv(c, recvBuf[src*portion:(src+1)*portion], src, collectiveTag)
	}
}

// AllGather collects len(sendBuf) elements from every process into recvBuf on every process,
// in rank order.
func AllGather[T any](c *Comm, sendBuf, recvBuf []T) {
	portion := len(sendBuf)
	if len(recvBuf) < portion*c.Size() {
		exceptions.Panicf("mpi.AllGather: receive buffer of %d elements, need %d", len(recvBuf), portion*c.Size())
	}
	for dst := range c.Size() {
		if dst != c.rank {
			send(c, sendBuf, dst, collectiveTag)
		}
	}
	for src := range c.Size() {
		if src == c.rank {
			copy(recvBuf[src*portion:], sendBuf)
			continue
		}
		recv(c, recvBuf[src*portion:(src+1)*portion], src, collectiveTag)
	}
}

// AllToAll sends portion q of sendBuf to process q, and receives portion q of recvBuf from
// process q. Both buffers hold Size() portions of the same length.
func AllToAll[T any](c *Comm, sendBuf, recvBuf []T) {
	n := c.Size()
	if len(sendBuf)%n != 0 || len(recvBuf) < len(sendBuf) {
		exceptions.Panicf("mpi.AllToAll: buffers of %d and %d elements for %d processes", len(sendBuf), len(recvBuf), n)
	}
	portion := len(sendBuf) / n
	for dst := range n {
		if dst != c.rank {
			send(c, sendBuf[dst*portion:(dst+1)*portion], dst, collectiveTag)
		}
	}
	for src := range n {
		if src == c.rank {
			copy(recvBuf[src*portion:(src+1)*portion], sendBuf[src*portion:(src+1)*portion])
			continue
		}
		recv(c, recvBuf[src*portion:(src+1)*portion], src, collectiveTag)
	}
}

// Number is the set of element types AllReduceSum can add.
type Number interface {
	constraints.Integer | constraints.Float | constraints.Complex
}

// AllReduceSum replaces buf on every process with the element-wise sum over all processes.
func AllReduceSum[T Number](c *Comm, buf []T) {
	all := make([]T, len(buf)*c.Size())
	AllGather(c, buf, all)
	for i := range buf {
		var sum T
		for src := range c.Size() {
			sum += all[src*len(buf)+i]
		}
		buf[i] = sum
	}
}

// Pad returns max(n, 1): buffers handed to collectives are never empty.
func Pad(n int) int {
	return max(n, 1)
}
