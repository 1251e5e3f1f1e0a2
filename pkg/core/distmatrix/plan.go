// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix

import (
	"fmt"
	"strings"

	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/gomlx/meshmatrix/pkg/support/xslices"
)

// Protocol is the communication pattern used by one redistribution step.
type Protocol int

const (
	// Unsupported redistributions panic with ErrNotImplemented.
	Unsupported Protocol = iota
	// LocalCopy copies between identical distributions; misaligned ones escalate to Exchange.
	LocalCopy
	// Exchange is a point-to-point permutation over the VC communicator.
	Exchange
	// Filter drops entries locally: the destination refines the source.
	Filter
	// AllGather collects entries over the grid communicator spanning the axes the source depends
	// on and the destination doesn't.
	AllGather
	// Broadcast replicates a [o,o] matrix from its root into [*,*].
	Broadcast
	// Scatter spreads a [o,o] matrix from its root.
	Scatter
	// Gather collects a matrix into the root of a [o,o] matrix.
	Gather
	// AllToAll swaps pieces over a row or column communicator between distributions of the same total size.
	AllToAll
	// VectorExchange moves a single row or column between [MC,MR] and [MR,MC].
	VectorExchange
	// Staged chains direct steps through intermediate distributions.
	Staged
	// CrossGrid copies [MC,MR] between different grids sharing a viewing communicator.
	CrossGrid
)

var protocolNames = [...]string{"Unsupported", "LocalCopy", "Exchange", "Filter", "AllGather", "Broadcast",
	"Scatter", "Gather", "AllToAll", "VectorExchange", "Staged", "CrossGrid"}

// String implements fmt.Stringer.
func (p Protocol) String() string {
	if p < 0 || int(p) >= len(protocolNames) {
		return fmt.Sprintf("Protocol(%d)", int(p))
	}
	return protocolNames[p]
}

// Plan tells how a redistribution between two pairs is carried out.
type Plan struct {
	Protocol Protocol

	// Comm is the grid communicator used by AllGather and AllToAll.
	Comm grid.CommKind

	// Via lists the intermediate distributions of a Staged plan, in order.
	Via []dist.Pair
}

// String implements fmt.Stringer.
func (p Plan) String() string {
	switch p.Protocol {
	case AllGather, AllToAll:
		return fmt.Sprintf("%s(%s)", p.Protocol, p.Comm)
	case Staged:
		return fmt.Sprintf("Staged(via %s)", strings.Join(xslices.Map(p.Via, dist.Pair.String), " -> "))
	}
	return p.Protocol.String()
}

// PlanFor decides how to redistribute a height x width matrix from src to dst on the same grid.
// It only depends on the pairs and the shape, so every process computes the same plan.
func PlanFor(src, dst dist.Pair, height, width int) Plan {
	if plan, ok := directPlan(src, dst, height, width); ok {
		return plan
	}
	if via := stagedVia(src, dst, height, width); via != nil {
		return Plan{Protocol: Staged, Via: via}
	}
	return Plan{Protocol: Unsupported}
}

// refines reports whether every process holding an entry along an axis distributed as d also
// holds it when distributed as s, so that moving from s to d only drops entries.
func refines(s, d dist.Dist) bool {
	return s == d || (s == dist.STAR && d != dist.CIRC) ||
		(s == dist.MC && d == dist.VC) || (s == dist.MR && d == dist.VR)
}

// gatherComm is the communicator spanning the grid axes src depends on and dst doesn't.
func gatherComm(src, dst dist.Pair) grid.CommKind {
	if src.Col == dist.MD || src.Row == dist.MD {
		return grid.MDComm
	}
	srcRow, srcCol := src.Axes()
	dstRow, dstCol := dst.Axes()
	row, col := srcRow && !dstRow, srcCol && !dstCol
	switch {
	case row && !col:
		return grid.MCComm
	case col && !row:
		return grid.MRComm
	}
	return grid.VCComm
}

// allToAllComm lists the direct all-to-all redistributions and the communicator they use.
var allToAllComm = map[[2]dist.Pair]grid.CommKind{
	{dist.VCStar, dist.MCMR}: grid.MRComm,
	{dist.MCMR, dist.VCStar}: grid.MRComm,
	{dist.StarVR, dist.MCMR}: grid.MCComm,
	{dist.MCMR, dist.StarVR}: grid.MCComm,
	{dist.VRStar, dist.MRMC}: grid.MCComm,
	{dist.MRMC, dist.VRStar}: grid.MCComm,
	{dist.StarVC, dist.MRMC}: grid.MRComm,
	{dist.MRMC, dist.StarVC}: grid.MRComm,
}

func directPlan(src, dst dist.Pair, height, width int) (Plan, bool) {
	switch {
	case src == dst:
		return Plan{Protocol: LocalCopy}, true
	case src == dist.StarStar:
		return Plan{Protocol: Filter}, true
	case src == dist.CircCirc && dst == dist.StarStar:
		return Plan{Protocol: Broadcast}, true
	case src == dist.CircCirc:
		return Plan{Protocol: Scatter}, true
	case dst == dist.CircCirc:
		return Plan{Protocol: Gather}, true
	case dst == dist.StarStar:
		return Plan{Protocol: AllGather, Comm: gatherComm(src, dst)}, true
	case src.Col == dist.MD || src.Row == dist.MD || dst.Col == dist.MD || dst.Row == dist.MD:
		return Plan{}, false
	case refines(src.Col, dst.Col) && refines(src.Row, dst.Row):
		return Plan{Protocol: Filter}, true
	case refines(dst.Col, src.Col) && refines(dst.Row, src.Row):
		return Plan{Protocol: AllGather, Comm: gatherComm(src, dst)}, true
	}
	if comm, found := allToAllComm[[2]dist.Pair{src, dst}]; found {
		return Plan{Protocol: AllToAll, Comm: comm}, true
	}
	switch [2]dist.Pair{src, dst} {
	case [2]dist.Pair{dist.VCStar, dist.VRStar}, [2]dist.Pair{dist.VRStar, dist.VCStar},
		[2]dist.Pair{dist.StarVC, dist.StarVR}, [2]dist.Pair{dist.StarVR, dist.StarVC}:
		return Plan{Protocol: Exchange}, true
	case [2]dist.Pair{dist.MCMR, dist.MRMC}, [2]dist.Pair{dist.MRMC, dist.MCMR}:
		if width == 1 || height == 1 {
			return Plan{Protocol: VectorExchange}, true
		}
	}
	return Plan{}, false
}

// stagedRoutes maps (src, dst) to the intermediate distributions to go through.
var stagedRoutes = map[[2]dist.Pair][]dist.Pair{
	// Into [MC,MR].
	{dist.MRStar, dist.MCMR}: {dist.VRStar, dist.VCStar},
	{dist.StarMC, dist.MCMR}: {dist.StarVC, dist.StarVR},
	{dist.StarVC, dist.MCMR}: {dist.StarVR},
	{dist.VRStar, dist.MCMR}: {dist.VCStar},

	// Into [MC,*].
	{dist.StarMR, dist.MCStar}: {dist.MCMR},
	{dist.MRMC, dist.MCStar}:   {dist.VRStar, dist.VCStar},
	{dist.MRStar, dist.MCStar}: {dist.VRStar, dist.VCStar},
	{dist.StarMC, dist.MCStar}: {dist.MRMC, dist.VRStar, dist.VCStar},
	{dist.StarVC, dist.MCStar}: {dist.StarVR, dist.MCMR},
	{dist.VRStar, dist.MCStar}: {dist.VCStar},
	{dist.StarVR, dist.MCStar}: {dist.MCMR},

	// Into [*,MR].
	{dist.MCStar, dist.StarMR}: {dist.MCMR},
	{dist.MRMC, dist.StarMR}:   {dist.StarVC, dist.StarVR},
	{dist.StarMC, dist.StarMR}: {dist.StarVC, dist.StarVR},
	{dist.MRStar, dist.StarMR}: {dist.MRMC, dist.StarVC, dist.StarVR},
	{dist.VCStar, dist.StarMR}: {dist.MCMR},
	{dist.StarVC, dist.StarMR}: {dist.StarVR},
	{dist.VRStar, dist.StarMR}: {dist.VCStar, dist.MCMR},

	// Into [MR,MC].
	{dist.MCStar, dist.MRMC}: {dist.VCStar, dist.VRStar},
	{dist.StarMR, dist.MRMC}: {dist.StarVR, dist.StarVC},
	{dist.VCStar, dist.MRMC}: {dist.VRStar},
	{dist.StarVR, dist.MRMC}: {dist.StarVC},

	// Into [MR,*].
	{dist.MCMR, dist.MRStar}:   {dist.VCStar, dist.VRStar},
	{dist.MCStar, dist.MRStar}: {dist.VCStar, dist.VRStar},
	{dist.StarMR, dist.MRStar}: {dist.MCMR, dist.VCStar, dist.VRStar},
	{dist.StarMC, dist.MRStar}: {dist.MRMC},
	{dist.VCStar, dist.MRStar}: {dist.VRStar},
	{dist.StarVC, dist.MRStar}: {dist.MRMC},
	{dist.StarVR, dist.MRStar}: {dist.StarVC, dist.MRMC},

	// Into [*,MC].
	{dist.MCMR, dist.StarMC}:   {dist.StarVR, dist.StarVC},
	{dist.StarMR, dist.StarMC}: {dist.StarVR, dist.StarVC},
	{dist.MCStar, dist.StarMC}: {dist.MCMR, dist.StarVR, dist.StarVC},
	{dist.MRStar, dist.StarMC}: {dist.MRMC},
	{dist.VCStar, dist.StarMC}: {dist.VRStar, dist.MRMC},
	{dist.VRStar, dist.StarMC}: {dist.MRMC},
	{dist.StarVR, dist.StarMC}: {dist.StarVC},

	// Into [VC,*].
	{dist.StarMR, dist.VCStar}: {dist.MCMR},
	{dist.MRMC, dist.VCStar}:   {dist.VRStar},
	{dist.MRStar, dist.VCStar}: {dist.VRStar},
	{dist.StarMC, dist.VCStar}: {dist.MRMC, dist.VRStar},
	{dist.StarVC, dist.VCStar}: {dist.MRMC, dist.VRStar},
	{dist.StarVR, dist.VCStar}: {dist.MCMR},

	// Into [VR,*].
	{dist.MCMR, dist.VRStar}:   {dist.VCStar},
	{dist.MCStar, dist.VRStar}: {dist.VCStar},
	{dist.StarMR, dist.VRStar}: {dist.MCMR, dist.VCStar},
	{dist.StarMC, dist.VRStar}: {dist.MRMC},
	{dist.StarVC, dist.VRStar}: {dist.MRMC},
	{dist.StarVR, dist.VRStar}: {dist.MCMR, dist.VCStar},

	// Into [*,VC].
	{dist.MCMR, dist.StarVC}:   {dist.StarVR},
	{dist.StarMR, dist.StarVC}: {dist.StarVR},
	{dist.MCStar, dist.StarVC}: {dist.MCMR, dist.StarVR},
	{dist.MRStar, dist.StarVC}: {dist.MRMC},
	{dist.VRStar, dist.StarVC}: {dist.MRMC},
	{dist.VCStar, dist.StarVC}: {dist.MCMR, dist.StarVR},

	// Into [*,VR].
	{dist.StarMC, dist.StarVR}: {dist.StarVC},
	{dist.MCStar, dist.StarVR}: {dist.MCMR},
	{dist.MRMC, dist.StarVR}:   {dist.StarVC},
	{dist.MRStar, dist.StarVR}: {dist.MRMC, dist.StarVC},
	{dist.VRStar, dist.StarVR}: {dist.MRMC, dist.StarVC},
	{dist.VCStar, dist.StarVR}: {dist.MCMR},
}

func stagedVia(src, dst dist.Pair, height, width int) []dist.Pair {
	isMD := func(p dist.Pair) bool { return p.Col == dist.MD || p.Row == dist.MD }
	switch {
	case isMD(src) || isMD(dst):
		return []dist.Pair{dist.StarStar}
	case src == dist.MRMC && dst == dist.MCMR:
		if height >= width {
			return []dist.Pair{dist.VRStar, dist.VCStar}
		}
		return []dist.Pair{dist.StarVC, dist.StarVR}
	case src == dist.MCMR && dst == dist.MRMC:
		if height >= width {
			return []dist.Pair{dist.VCStar, dist.VRStar}
		}
		return []dist.Pair{dist.StarVR, dist.StarVC}
	}
	return stagedRoutes[[2]dist.Pair{src, dst}]
}
