// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package grid defines the 2D process grid that distributed matrices live on.
//
// A Grid arranges r*c processes of a viewing communicator as r rows by c columns, in
// column-major order: the process with VC rank q sits at row q%r and column q/r. Its VR rank
// (row-major order) is col + row*c.
//
// The grid also partitions its processes into gcd(r,c) generalized diagonal paths of lcm(r,c)
// processes each: path k visits (i mod r, (k+i) mod c) for i in [0, lcm).
package grid

import (
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
	"github.com/gomlx/meshmatrix/pkg/support/sets"
	"github.com/gomlx/meshmatrix/pkg/support/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrGridSize is raised when the grid shape does not match the number of processes.
var ErrGridSize = errors.New("grid shape does not match the number of processes")

// Grid of processes. Each process holds its own *Grid, and all the processes of the viewing
// communicator build it together, since construction is collective.
type Grid struct {
	height, width, size int
	gcd, lcm            int

	viewing *mpi.Comm
	owning  mpi.Group // World ranks in VC order.

	// vcToViewing maps VC ranks to viewing ranks.
	vcToViewing []int

	// diagPath and diagPathRank are indexed by VC rank.
	diagPath, diagPathRank []int

	// Coordinates of this process, Undefined if it is not in the grid.
	vcRank, vrRank, row, col int

	comms [numCommKinds]*mpi.Comm
}

// CommKind enumerates the communicators a Grid builds over its processes.
type CommKind int

const (
	// VCComm holds all grid processes ranked in column-major order.
	VCComm CommKind = iota
	// VRComm holds all grid processes ranked in row-major order.
	VRComm
	// MCComm holds the processes of this process's grid column, ranked by row.
	MCComm
	// MRComm holds the processes of this process's grid row, ranked by column.
	MRComm
	// MDComm holds the processes of this process's diagonal path, ranked along the path.
	MDComm
	// MDPerpComm holds the processes at the same position of every diagonal path, ranked by path.
	MDPerpComm

	numCommKinds
)

var commKindNames = [...]string{"VC", "VR", "MC", "MR", "MD", "MDPerp"}

// String implements fmt.Stringer.
func (k CommKind) String() string {
	if k < 0 || k >= numCommKinds {
		return fmt.Sprintf("CommKind(%d)", int(k))
	}
	return commKindNames[k]
}

// DefaultHeight returns the largest divisor of numProcs not above its square root,
// giving the most square grid.
func DefaultHeight(numProcs int) int {
	h := int(math.Sqrt(float64(numProcs)))
	for h > 1 && numProcs%h != 0 {
		h--
	}
	return max(h, 1)
}

// New builds a grid of height rows over all processes of viewing.
// A height <= 0 selects DefaultHeight.
//
// It is collective over viewing.
func New(viewing *mpi.Comm, height int) *Grid {
	return NewWithOwners(viewing, height, xslices.Iota(0, viewing.Size()))
}

// NewWithOwners builds a grid over the subset owners of the viewing ranks, which are listed in
// VC order. Viewing processes not in owners still call it (it is collective over viewing) and
// get a grid they are not part of.
func NewWithOwners(viewing *mpi.Comm, height int, owners []int) *Grid {
	p := len(owners)
	if p == 0 {
		panic(errors.Wrap(ErrGridSize, "grid with no processes"))
	}
	if height <= 0 {
		height = DefaultHeight(p)
	}
	if p%height != 0 {
		panic(errors.Wrapf(ErrGridSize, "%d processes cannot form a grid of height %d", p, height))
	}
	seen := sets.Make[int](p)
	for _, rank := range owners {
		if rank < 0 || rank >= viewing.Size() {
			panic(errors.Wrapf(ErrGridSize, "grid owner rank %d is out of range for a viewing communicator of size %d", rank, viewing.Size()))
		}
		if seen.Has(rank) {
			panic(errors.Wrapf(ErrGridSize, "grid owner rank %d is duplicated", rank))
		}
		seen.Insert(rank)
	}

	g := &Grid{
		height:      height,
		width:       p / height,
		size:        p,
		viewing:     viewing,
		owning:      viewing.Group().Incl(owners...),
		vcToViewing: slices.Clone(owners),
	}
	g.gcd = gcd(g.height, g.width)
	g.lcm = g.height * g.width / g.gcd
	g.diagPath = make([]int, p)
	g.diagPathRank = make([]int, p)
	for k := range g.gcd {
		for i := range g.lcm {
			vc := i%g.height + ((k+i)%g.width)*g.height
			g.diagPath[vc] = k
			g.diagPathRank[vc] = i
		}
	}

	g.vcRank = slices.Index(owners, viewing.Rank())
	g.row, g.col, g.vrRank = mpi.Undefined, mpi.Undefined, mpi.Undefined
	inGrid := g.vcRank >= 0
	if inGrid {
		g.row, g.col = g.RowOf(g.vcRank), g.ColOf(g.vcRank)
		g.vrRank = g.VCToVR(g.vcRank)
	} else {
		g.vcRank = mpi.Undefined
	}

	// Every viewing process takes part in every split.
	split := func(color, key int) *mpi.Comm {
		if !inGrid {
			color = mpi.Undefined
		}
		return viewing.Split(color, key)
	}
	var myPath, myPathRank int
	if inGrid {
		myPath, myPathRank = g.diagPath[g.vcRank], g.diagPathRank[g.vcRank]
	}
	g.comms[VCComm] = split(0, g.vcRank)
	g.comms[VRComm] = split(0, g.vrRank)
	g.comms[MCComm] = split(g.col, g.row)
	g.comms[MRComm] = split(g.row, g.col)
	g.comms[MDComm] = split(myPath, myPathRank)
	g.comms[MDPerpComm] = split(myPathRank, myPath)
	if klog.V(2).Enabled() && viewing.Rank() == 0 {
		klog.Infof("Created %s over %s", g, viewing)
	}
	return g
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Height is the number of process rows r.
func (g *Grid) Height() int { return g.height }

// Width is the number of process columns c.
func (g *Grid) Width() int { return g.width }

// Size is the number of processes r*c.
func (g *Grid) Size() int { return g.size }

// GCD is gcd(r, c), the number of diagonal paths.
func (g *Grid) GCD() int { return g.gcd }

// LCM is lcm(r, c), the length of each diagonal path.
func (g *Grid) LCM() int { return g.lcm }

// InGrid reports whether this process is one of the grid's processes.
func (g *Grid) InGrid() bool { return g.vcRank != mpi.Undefined }

// VCRank of this process, or mpi.Undefined.
func (g *Grid) VCRank() int { return g.vcRank }

// VRRank of this process, or mpi.Undefined.
func (g *Grid) VRRank() int { return g.vrRank }

// Row of this process, or mpi.Undefined.
func (g *Grid) Row() int { return g.row }

// Col of this process, or mpi.Undefined.
func (g *Grid) Col() int { return g.col }

// DiagPath of this process, or mpi.Undefined.
func (g *Grid) DiagPath() int {
	if !g.InGrid() {
		return mpi.Undefined
	}
	return g.diagPath[g.vcRank]
}

// DiagPathRank is the position of this process along its diagonal path, or mpi.Undefined.
func (g *Grid) DiagPathRank() int {
	if !g.InGrid() {
		return mpi.Undefined
	}
	return g.diagPathRank[g.vcRank]
}

// RowOf returns the grid row of the process with VC rank vc.
func (g *Grid) RowOf(vc int) int { return vc % g.height }

// ColOf returns the grid column of the process with VC rank vc.
func (g *Grid) ColOf(vc int) int { return vc / g.height }

// VCToVR converts a VC rank to a VR rank.
func (g *Grid) VCToVR(vc int) int { return g.ColOf(vc) + g.RowOf(vc)*g.width }

// VRToVC converts a VR rank to a VC rank.
func (g *Grid) VRToVC(vr int) int { return vr/g.width + (vr%g.width)*g.height }

// DiagPathOf returns the diagonal path of the process with VC rank vc.
func (g *Grid) DiagPathOf(vc int) int { return g.diagPath[vc] }

// DiagPathRankOf returns the position along its diagonal path of the process with VC rank vc.
func (g *Grid) DiagPathRankOf(vc int) int { return g.diagPathRank[vc] }

// VCToViewing converts a VC rank to the rank of the same process in the viewing communicator.
func (g *Grid) VCToViewing(vc int) int { return g.vcToViewing[vc] }

// ViewingComm is the communicator the grid was built on.
func (g *Grid) ViewingComm() *mpi.Comm { return g.viewing }

// OwningGroup returns the grid processes in VC order.
func (g *Grid) OwningGroup() mpi.Group { return g.owning }

// Comm returns the communicator of the given kind for this process, nil if it is not in the grid.
func (g *Grid) Comm(kind CommKind) *mpi.Comm { return g.comms[kind] }

// MemberVC returns the VC rank of the process with rank q in this process's communicator of
// the given kind. It must only be called on grid processes.
func (g *Grid) MemberVC(kind CommKind, q int) int {
	r, c := g.height, g.width
	switch kind {
	case VCComm:
		return q
	case VRComm:
		return g.VRToVC(q)
	case MCComm:
		return q + g.col*r
	case MRComm:
		return g.row + q*r
	case MDComm:
		path := g.diagPath[g.vcRank]
		return q%r + ((path+q)%c)*r
	case MDPerpComm:
		pos := g.diagPathRank[g.vcRank]
		return pos%r + ((q+pos)%c)*r
	}
	exceptions.Panicf("grid: unknown communicator kind %d", kind)
	return 0
}

// Congruent reports whether g and other arrange the same processes in the same shape,
// so matrices on one can be treated as living on the other.
func (g *Grid) Congruent(other *Grid) bool {
	if g == other {
		return true
	}
	return g.height == other.height && g.width == other.width &&
		slices.Equal(g.owning.Members(), other.owning.Members())
}

// String implements fmt.Stringer.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d)", g.height, g.width)
}
