// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package grid

import (
	"slices"

	"github.com/gomlx/meshmatrix/pkg/support/sets"
	"github.com/pkg/errors"
)

// Axis of the process grid.
type Axis int

const (
	// ColAxis indexes grid columns (size c).
	ColAxis Axis = iota
	// RowAxis indexes grid rows (size r).
	RowAxis
)

// String implements fmt.Stringer.
func (a Axis) String() string {
	if a == RowAxis {
		return "row"
	}
	return "col"
}

// ReplicaGroups returns the VC ranks of the processes grouped so that within a group only the
// coordinates along the given axes vary. Within a group, ranks are ordered with the last
// listed axis varying fastest.
//
// Example, on a 2x3 grid:
//
//	g.ReplicaGroups(RowAxis)          // -> {{0, 1}, {2, 3}, {4, 5}}: one per grid column, as MCComm.
//	g.ReplicaGroups(ColAxis)          // -> {{0, 2, 4}, {1, 3, 5}}: one per grid row, as MRComm.
//	g.ReplicaGroups(ColAxis, RowAxis) // -> {{0, 1, 2, 3, 4, 5}}: VC order.
//	g.ReplicaGroups(RowAxis, ColAxis) // -> {{0, 2, 4, 1, 3, 5}}: VR order.
func (g *Grid) ReplicaGroups(axes ...Axis) ([][]int, error) {
	// VC rank is the row-major flat index over (col, row).
	axesSizes := [2]int{g.width, g.height}
	seen := sets.Make[Axis](len(axes))
	for _, axis := range axes {
		if axis != ColAxis && axis != RowAxis {
			return nil, errors.Errorf("invalid grid axis %d", axis)
		}
		if seen.Has(axis) {
			return nil, errors.Errorf("axis %s is duplicated: each axis can only appear once", axis)
		}
		seen.Insert(axis)
	}
	var otherAxes []Axis
	for _, axis := range []Axis{ColAxis, RowAxis} {
		if !slices.Contains(axes, axis) {
			otherAxes = append(otherAxes, axis)
		}
	}

	groupSize := 1
	for _, axis := range axes {
		groupSize *= axesSizes[axis]
	}
	groups := make([][]int, g.size/groupSize)
	for i := range groups {
		groups[i] = make([]int, groupSize)
	}
	for vc := range g.size {
		coords := [2]int{g.ColOf(vc), g.RowOf(vc)}
		groupIdx, multiplier := 0, 1
		for i := len(otherAxes) - 1; i >= 0; i-- {
			groupIdx += coords[otherAxes[i]] * multiplier
			multiplier *= axesSizes[otherAxes[i]]
		}
		pos := 0
		multiplier = 1
		for i := len(axes) - 1; i >= 0; i-- {
			pos += coords[axes[i]] * multiplier
			multiplier *= axesSizes[axes[i]]
		}
		groups[groupIdx][pos] = vc
	}
	return groups, nil
}
