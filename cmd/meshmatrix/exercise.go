// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"slices"

	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
	"github.com/gomlx/meshmatrix/pkg/handles"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

// run checks every (src, dst) combination of r.pairs on every process of world, recording the
// results (from process 0) in r.
func run[T handles.Scalar](world *mpi.World, r *report, fromInt func(i int) T) error {
	return world.Run(func(comm *mpi.Comm) {
		table := handles.NewTable(comm)
		ok := func(code handles.ErrorCode) {
			if code != handles.Success {
				panic(errors.WithMessagef(table.Err(), "%s", code))
			}
		}
		create := func(g handles.Handle, p dist.Pair) handles.Handle {
			h, code := table.MatrixCreate(r.dtype, g, p.Col, p.Row)
			ok(code)
			return h
		}

		g, code := table.GridCreate(*flagHeight)
		ok(code)
		m, n := *flagM, *flagN
		full := create(g, dist.StarStar)
		ok(table.Resize(full, m, n))
		ok(handles.Fill(table, full, func(i, j int) T { return fromInt(i*n + j) }))
		want, code := handles.Buffer[T](table, full)
		ok(code)

		var bar *progressbar.ProgressBar
		if comm.Rank() == 0 {
			r.gridHeight, code = table.GridHeight(g)
			ok(code)
			r.gridWidth, code = table.GridWidth(g)
			ok(code)
			bar = progressbar.Default(int64(len(r.pairs)*len(r.pairs)), "redistributions")
		}
		failed := make([]int, 1)
		for _, src := range r.pairs {
			a := create(g, src)
			ok(table.Copy(full, a))
			for _, dst := range r.pairs {
				b := create(g, dst)
				back := create(g, dist.StarStar)
				ok(table.Copy(a, b))
				ok(table.Copy(b, back))
				got, code := handles.Buffer[T](table, back)
				ok(code)
				failed[0] = 0
				if !slices.Equal(got, want) {
					failed[0] = 1
				}
				mpi.AllReduceSum(comm, failed)
				if comm.Rank() == 0 {
					r.add(src, dst, m, n, failed[0])
					_ = bar.Add(1)
				}
				ok(table.Destroy(b))
				ok(table.Destroy(back))
			}
			ok(table.Destroy(a))
		}
		if bar != nil {
			_ = bar.Finish()
		}
	})
}
