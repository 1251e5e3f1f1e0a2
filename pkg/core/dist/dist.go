// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dist defines the distribution tags of a distributed matrix axis, their admissible
// pairings, and the integer laws that map global indices to processes.
package dist

import (
	"fmt"
	"strings"

	"github.com/gomlx/meshmatrix/pkg/core/grid"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Dist tells how one axis of a matrix is spread over the process grid.
type Dist int

const (
	// MC cycles over grid rows: stride r, rank is the process row.
	MC Dist = iota
	// MD cycles along one diagonal path: stride lcm(r,c), rank is the position on the path.
	MD
	// MR cycles over grid columns: stride c, rank is the process column.
	MR
	// VC cycles over all processes in column-major order: stride r*c.
	VC
	// VR cycles over all processes in row-major order: stride r*c.
	VR
	// STAR replicates the axis on every process.
	STAR
	// CIRC keeps the whole axis on a single root process.
	CIRC
)

var distNames = [...]string{"MC", "MD", "MR", "VC", "VR", "*", "o"}

// String implements fmt.Stringer.
func (d Dist) String() string {
	if d < MC || d > CIRC {
		return fmt.Sprintf("Dist(%d)", int(d))
	}
	return distNames[d]
}

// ParseDist parses a tag name as printed by String, also accepting "STAR" and "CIRC".
func ParseDist(s string) (Dist, error) {
	switch u := strings.ToUpper(strings.TrimSpace(s)); u {
	case "STAR":
		return STAR, nil
	case "CIRC", "O":
		return CIRC, nil
	default:
		for d, name := range distNames {
			if u == name {
				return Dist(d), nil
			}
		}
	}
	return 0, errors.Errorf("unknown distribution %q", s)
}

// Stride is the number of distinct owners along an axis distributed as d.
func Stride(d Dist, g *grid.Grid) int {
	switch d {
	case MC:
		return g.Height()
	case MR:
		return g.Width()
	case VC, VR:
		return g.Size()
	case MD:
		return g.LCM()
	}
	return 1
}

// RankOf returns the rank along d of the grid process with VC rank vc.
// STAR and CIRC have a single rank 0.
func RankOf(d Dist, g *grid.Grid, vc int) int {
	switch d {
	case MC:
		return g.RowOf(vc)
	case MR:
		return g.ColOf(vc)
	case VC:
		return vc
	case VR:
		return g.VCToVR(vc)
	case MD:
		return g.DiagPathRankOf(vc)
	}
	return 0
}

// Axes reports which grid coordinates the rank along d depends on.
func (d Dist) Axes() (row, col bool) {
	switch d {
	case MC:
		return true, false
	case MR:
		return false, true
	case VC, VR, MD:
		return true, true
	}
	return false, false
}

// Pair of distributions: Col tells how the rows of a matrix (the entries of a column) are
// spread, and Row how its columns are spread.
type Pair struct {
	Col, Row Dist
}

// The admissible pairs.
var (
	MCMR     = Pair{MC, MR}
	MCStar   = Pair{MC, STAR}
	StarMR   = Pair{STAR, MR}
	MRMC     = Pair{MR, MC}
	MRStar   = Pair{MR, STAR}
	StarMC   = Pair{STAR, MC}
	VCStar   = Pair{VC, STAR}
	StarVC   = Pair{STAR, VC}
	VRStar   = Pair{VR, STAR}
	StarVR   = Pair{STAR, VR}
	MDStar   = Pair{MD, STAR}
	StarMD   = Pair{STAR, MD}
	StarStar = Pair{STAR, STAR}
	CircCirc = Pair{CIRC, CIRC}
)

// Pairs lists every admissible pair.
var Pairs = []Pair{
	MCMR, MCStar, StarMR, MRMC, MRStar, StarMC, VCStar,
	StarVC, VRStar, StarVR, MDStar, StarMD, StarStar, CircCirc,
}

// Valid reports whether p is one of the admissible pairs.
func (p Pair) Valid() bool {
	for _, q := range Pairs {
		if p == q {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer, e.g. "[MC,MR]" or "[VC,*]".
func (p Pair) String() string {
	return fmt.Sprintf("[%s,%s]", p.Col, p.Row)
}

// ParsePair parses pairs like "MC,MR", "[VC,*]" or "STAR,STAR". It only returns admissible pairs.
func ParsePair(s string) (Pair, error) {
	s = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "["), "]")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Pair{}, errors.Errorf("distribution pair %q must have two comma-separated tags", s)
	}
	var p Pair
	var err error
	if p.Col, err = ParseDist(parts[0]); err != nil {
		return Pair{}, errors.WithMessagef(err, "parsing pair %q", s)
	}
	if p.Row, err = ParseDist(parts[1]); err != nil {
		return Pair{}, errors.WithMessagef(err, "parsing pair %q", s)
	}
	if !p.Valid() {
		return Pair{}, errors.Errorf("%s is not an admissible distribution pair", p)
	}
	return p, nil
}

// Axes reports which grid coordinates the owner of an entry depends on.
func (p Pair) Axes() (row, col bool) {
	r0, c0 := p.Col.Axes()
	r1, c1 := p.Row.Axes()
	return r0 || r1, c0 || c1
}

// HasRoot reports whether the pair is anchored to a root: a diagonal path for MD, a process for CIRC.
func (p Pair) HasRoot() bool {
	return p.Col == MD || p.Row == MD || p == CircCirc
}

// Participates reports whether the grid process vc holds data for pair p with the given root.
func Participates(p Pair, g *grid.Grid, vc, root int) bool {
	switch {
	case vc == mpi.Undefined:
		return false
	case p.Col == MD || p.Row == MD:
		return g.DiagPathOf(vc) == root
	case p == CircCirc:
		return vc == root
	}
	return true
}

// DistData is the complete distribution metadata of a matrix.
type DistData struct {
	ColDist, RowDist   Dist
	ColAlign, RowAlign int
	Root               int
	Grid               *grid.Grid
}

// Pair returns the distribution pair.
func (d DistData) Pair() Pair { return Pair{d.ColDist, d.RowDist} }

// Is reports whether the metadata describes a matrix distributed as p.
func (d DistData) Is(p Pair) bool { return d.Pair() == p }

// String implements fmt.Stringer.
func (d DistData) String() string {
	return fmt.Sprintf("%s(align=%d,%d root=%d on %s)", d.Pair(), d.ColAlign, d.RowAlign, d.Root, d.Grid)
}

// Length is the number of indices in [0, n) congruent to shift modulo stride:
// max(0, ceil((n-shift)/stride)).
func Length[I constraints.Integer](n, shift, stride I) I {
	if n <= shift {
		return 0
	}
	return (n - shift + stride - 1) / stride
}

// MaxLength is the largest Length over all shifts, that of shift 0.
func MaxLength[I constraints.Integer](n, stride I) I {
	return Length(n, 0, stride)
}

// Shift is the first global index owned by the process of the given rank along an axis with
// the given alignment and stride: (rank + stride - align) mod stride.
func Shift[I constraints.Integer](rank, align, stride I) I {
	return (rank + stride - align) % stride
}

// GCD of two positive integers.
func GCD[I constraints.Integer](a, b I) I {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// LCM of two positive integers.
func LCM[I constraints.Integer](a, b I) I {
	return a / GCD(a, b) * b
}
