// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mpi

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
)

// Comm is one process's handle on a communicator: an ordered set of processes of a World
// that exchange messages among themselves.
//
// A Comm is owned by a single process (goroutine) and is not safe for concurrent use.
type Comm struct {
	ctx       *commContext
	rank      int
	numSplits int
}

// Rank of this process in the communicator.
func (c *Comm) Rank() int { return c.rank }

// Size of the communicator.
func (c *Comm) Size() int { return len(c.ctx.members) }

// ID identifies the communicator. All processes of the communicator see the same ID.
func (c *Comm) ID() string { return c.ctx.id }

// World the communicator belongs to.
func (c *Comm) World() *World { return c.ctx.world }

// WorldRank of this process.
func (c *Comm) WorldRank() int { return c.ctx.members[c.rank] }

// Group returns the processes of the communicator, in rank order.
func (c *Comm) Group() Group { return Group{members: c.ctx.members} }

// Congruent reports whether c and other hold the same processes in the same order.
func (c *Comm) Congruent(other *Comm) bool {
	return slices.Equal(c.ctx.members, other.ctx.members)
}

// String implements fmt.Stringer.
func (c *Comm) String() string {
	return fmt.Sprintf("Comm(%s, rank %d of %d)", c.ctx.id, c.rank, c.Size())
}

// Split partitions the communicator: processes passing the same color end up in the same
// new communicator, ranked by key (ties broken by the current rank).
//
// It is collective: every process of c must call it, in the same order relative to other
// collective calls. Processes passing color Undefined get nil.
func (c *Comm) Split(color, key int) *Comm {
	if color < 0 && color != Undefined {
		exceptions.Panicf("mpi.Comm.Split: invalid color %d", color)
	}
	seq := c.numSplits
	c.numSplits++
	all := make([]int, 2*c.Size())
	AllGather(c, []int{color, key}, all)
	if color == Undefined {
		return nil
	}
	type entry struct{ key, rank int }
	var entries []entry
	for rank := range c.Size() {
		if all[2*rank] == color {
			entries = append(entries, entry{key: all[2*rank+1], rank: rank})
		}
	}
	slices.SortFunc(entries, func(a, b entry) int {
		if a.key != b.key {
			return cmp.Compare(a.key, b.key)
		}
		return cmp.Compare(a.rank, b.rank)
	})
	members := make([]int, len(entries))
	newRank := Undefined
	for i, e := range entries {
		members[i] = c.ctx.members[e.rank]
		if e.rank == c.rank {
			newRank = i
		}
	}
	id := fmt.Sprintf("%s/split%d.color%d", c.ctx.id, seq, color)
	return &Comm{ctx: c.ctx.world.context(id, members), rank: newRank}
}

// Create returns the communicator formed by the listed ranks of c, in the given order.
// It is collective over c; processes not listed get nil.
func (c *Comm) Create(ranks []int) *Comm {
	color, key := Undefined, 0
	for i, r := range ranks {
		if r < 0 || r >= c.Size() {
			exceptions.Panicf("mpi.Comm.Create: rank %d out of range for %s", r, c)
		}
		if r == c.rank {
			color, key = 0, i
		}
	}
	return c.Split(color, key)
}

// Dup returns a new communicator with the same processes, with a message space
// independent of c. Collective over c.
func (c *Comm) Dup() *Comm {
	return c.Split(0, c.rank)
}

// Abort aborts the World from this process and panics with err.
func (c *Comm) Abort(err error) {
	c.ctx.world.Abort(err)
	panic(err)
}

// Group is an ordered set of World processes.
type Group struct {
	members []int
}

// NewGroup returns the group of the given World ranks, in order.
func NewGroup(worldRanks ...int) Group {
	return Group{members: slices.Clone(worldRanks)}
}

// Size of the group.
func (g Group) Size() int { return len(g.members) }

// WorldRank of the process with the given group rank.
func (g Group) WorldRank(rank int) int { return g.members[rank] }

// Rank of the World process worldRank in the group, or Undefined.
func (g Group) Rank(worldRank int) int {
	if i := slices.Index(g.members, worldRank); i >= 0 {
		return i
	}
	return Undefined
}

// Members returns the World ranks of the group, in order.
func (g Group) Members() []int { return slices.Clone(g.members) }

// Incl returns the subgroup formed by the given ranks of g.
func (g Group) Incl(ranks ...int) Group {
	members := make([]int, len(ranks))
	for i, r := range ranks {
		members[i] = g.members[r]
	}
	return Group{members: members}
}

// TranslateRanks maps ranks of group from to the ranks of the same processes in group to.
// Processes not in to map to Undefined.
func TranslateRanks(from Group, ranks []int, to Group) []int {
	out := make([]int, len(ranks))
	for i, r := range ranks {
		if r == Undefined {
			out[i] = Undefined
			continue
		}
		out[i] = to.Rank(from.members[r])
	}
	return out
}
