// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mpi_test

import (
	"sync"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointToPoint(t *testing.T) {
	world := mpi.NewWorld(4)
	got := make([][]int, world.Size())
	err := world.Run(func(comm *mpi.Comm) {
		n := comm.Size()
		next, prev := (comm.Rank()+1)%n, (comm.Rank()+n-1)%n
		buf := []int{comm.Rank(), 10 * comm.Rank()}
		// Two messages with different tags, received out of order.
		mpi.Send(comm, buf, next, 1)
		mpi.Send(comm, []int{-comm.Rank()}, next, 2)
		buf[0] = 999 // Eager send: the copy was already taken.
		second := make([]int, 1)
		require.Equal(t, 1, mpi.Recv(comm, second, prev, 2))
		first := make([]int, 3)
		count := mpi.Recv(comm, first, prev, 1)
		got[comm.Rank()] = append(first[:count], second...)
	})
	require.NoError(t, err)
	for rank, values := range got {
		prev := (rank + 3) % 4
		assert.Equal(t, []int{prev, 10 * prev, -prev}, values)
	}
	assert.Equal(t, int64(8), world.Stats().Messages)
	assert.Equal(t, int64(12*8), world.Stats().Bytes)
}

func TestSendRecvSelf(t *testing.T) {
	world := mpi.NewWorld(2)
	require.NoError(t, world.Run(func(comm *mpi.Comm) {
		out := make([]float32, 2)
		n := mpi.SendRecv(comm, []float32{1, 2}, comm.Rank(), out, comm.Rank(), 0)
		require.Equal(t, 2, n)
		require.Equal(t, []float32{1, 2}, out)
		req := mpi.ISend(comm, []float32{3}, 1-comm.Rank(), 5)
		mpi.Recv(comm, out[:1], 1-comm.Rank(), 5)
		req.Wait()
		require.Equal(t, float32(3), out[0])
	}))
	assert.Equal(t, int64(2), world.Stats().Messages)
}

func TestISendIsEager(t *testing.T) {
	world := mpi.NewWorld(1)
	require.NoError(t, world.Run(func(comm *mpi.Comm) {
		buf := []int64{7, 8}
		req := mpi.ISend(comm, buf, 0, 3)
		req.Wait() // Must not wait for the matching Recv.
		buf[0] = -1
		out := make([]int64, 2)
		require.Equal(t, 2, mpi.Recv(comm, out, 0, 3))
		assert.Equal(t, []int64{7, 8}, out)
	}))
}

func TestCollectives(t *testing.T) {
	const size = 5
	world := mpi.NewWorld(size)
	var mu sync.Mutex
	results := make(map[string][]int)
	record := func(comm *mpi.Comm, name string, values []int) {
		mu.Lock()
		defer mu.Unlock()
		if comm.Rank() == 0 {
			results[name] = append([]int(nil), values...)
		}
	}
	err := world.Run(func(comm *mpi.Comm) {
		rank := comm.Rank()
		mpi.Barrier(comm)

		buf := []int{0, 0}
		if rank == 3 {
			buf = []int{7, 8}
		}
		mpi.Broadcast(comm, buf, 3)
		require.Equal(t, []int{7, 8}, buf)

		var all []int
		if rank == 2 {
			all = []int{0, 1, 10, 11, 20, 21, 30, 31, 40, 41}
		}
		part := make([]int, 2)
		mpi.Scatter(comm, all, part, 2)
		require.Equal(t, []int{10 * rank, 10*rank + 1}, part)

		gathered := make([]int, 2*size)
		mpi.Gather(comm, part, gathered, 0)
		record(comm, "gather", gathered)

		everyone := make([]int, size)
		mpi.AllGather(comm, []int{rank * rank}, everyone)
		require.Equal(t, []int{0, 1, 4, 9, 16}, everyone)

		send := make([]int, size)
		for dst := range send {
			send[dst] = 100*rank + dst
		}
		recv := make([]int, size)
		mpi.AllToAll(comm, send, recv)
		for src := range recv {
			require.Equal(t, 100*src+rank, recv[src])
		}

		sum := []int{rank, 1}
		mpi.AllReduceSum(comm, sum)
		require.Equal(t, []int{10, size}, sum)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 10, 11, 20, 21, 30, 31, 40, 41}, results["gather"])
}

func TestSplit(t *testing.T) {
	world := mpi.NewWorld(6)
	require.NoError(t, world.Run(func(comm *mpi.Comm) {
		rank := comm.Rank()
		// Reverse order within each parity.
		sub := comm.Split(rank%2, -rank)
		require.NotNil(t, sub)
		require.Equal(t, 3, sub.Size())
		require.Equal(t, 2-rank/2, sub.Rank())
		members := sub.Group().Members()
		if rank%2 == 0 {
			require.Equal(t, []int{4, 2, 0}, members)
		} else {
			require.Equal(t, []int{5, 3, 1}, members)
		}

		// Collectives on the split communicator only involve its members.
		sum := []int{rank}
		mpi.AllReduceSum(sub, sum)
		require.Equal(t, map[int]int{0: 6, 1: 9}[rank%2], sum[0])

		color := mpi.Undefined
		if rank < 2 {
			color = 0
		}
		small := comm.Split(color, rank)
		if rank < 2 {
			require.NotNil(t, small)
			require.Equal(t, 2, small.Size())
		} else {
			require.Nil(t, small)
		}

		created := comm.Create([]int{5, 0})
		switch rank {
		case 5:
			require.Equal(t, 0, created.Rank())
		case 0:
			require.Equal(t, 1, created.Rank())
		default:
			require.Nil(t, created)
		}
	}))
}

func TestTranslateRanks(t *testing.T) {
	from := mpi.NewGroup(4, 2, 0)
	to := mpi.NewGroup(0, 1, 2, 3)
	assert.Equal(t, []int{2, 0, mpi.Undefined}, mpi.TranslateRanks(from, []int{1, 2, mpi.Undefined}, mpi.NewGroup(2, 7, 0)))
	assert.Equal(t, []int{mpi.Undefined, 2, 0}, mpi.TranslateRanks(from, []int{0, 1, 2}, to))
	assert.Equal(t, 1, from.Rank(2))
	assert.Equal(t, mpi.Undefined, from.Rank(3))
	assert.Equal(t, []int{0, 4}, from.Incl(2, 0).Members())
}

func TestAbort(t *testing.T) {
	world := mpi.NewWorld(3)
	errBoom := errors.New("boom")
	err := world.Run(func(comm *mpi.Comm) {
		if comm.Rank() == 1 {
			panic(errors.Wrap(errBoom, "rank 1 failed"))
		}
		// Others block forever waiting for a message that never comes.
		mpi.Recv(comm, make([]int, 1), 1, 0)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, world.Aborted())

	// The World stays aborted.
	err = world.Run(func(comm *mpi.Comm) {})
	assert.ErrorIs(t, err, errBoom)
}

func TestAbortOnBufferOverflow(t *testing.T) {
	world := mpi.NewWorld(2)
	err := world.Run(func(comm *mpi.Comm) {
		if comm.Rank() == 0 {
			mpi.Send(comm, []int{1, 2, 3}, 1, 0)
			mpi.Barrier(comm)
			return
		}
		mpi.Recv(comm, make([]int, 2), 0, 0)
		mpi.Barrier(comm)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "into a buffer of 2")

	// Invalid tags are rejected.
	world = mpi.NewWorld(1)
	err = world.Run(func(comm *mpi.Comm) { mpi.Send(comm, []int{1}, 0, -1) })
	require.Error(t, err)
	require.NotNil(t, exceptions.Try(func() { mpi.NewWorld(0) }))
}

func TestPad(t *testing.T) {
	assert.Equal(t, 1, mpi.Pad(0))
	assert.Equal(t, 1, mpi.Pad(1))
	assert.Equal(t, 7, mpi.Pad(7))
}
