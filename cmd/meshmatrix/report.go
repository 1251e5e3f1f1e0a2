// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/distmatrix"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
)

// result of one (src, dst) combination.
type result struct {
	src, dst    dist.Pair
	plan        distmatrix.Plan
	numFailures int
}

type report struct {
	pairs                 []dist.Pair
	dtype                 dtypes.DType
	gridHeight, gridWidth int
	results               []result
	elapsed               time.Duration
	traffic               mpi.Stats
}

func (r *report) add(src, dst dist.Pair, m, n, numFailures int) {
	r.results = append(r.results, result{
		src:         src,
		dst:         dst,
		plan:        distmatrix.PlanFor(src, dst, m, n),
		numFailures: numFailures,
	})
}

func (r *report) numFailures() (count int) {
	for _, res := range r.results {
		if res.numFailures > 0 {
			count++
		}
	}
	return
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F33")).Bold(true)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row < 0 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

func (r *report) print() {
	fmt.Println(titleStyle.Render("Summary"))
	table := newPlainTable(false)
	table.Row("processes", humanize.Comma(int64(*flagProcs)))
	table.Row("grid", fmt.Sprintf("%d x %d", r.gridHeight, r.gridWidth))
	table.Row("matrix", fmt.Sprintf("%d x %d %s", *flagM, *flagN, r.dtype))
	table.Row("redistributions", humanize.Comma(int64(len(r.results))))
	table.Row("failures", humanize.Comma(int64(r.numFailures())))
	table.Row("messages", humanize.Comma(r.traffic.Messages))
	table.Row("elements sent", humanize.Comma(r.traffic.Elements))
	table.Row("bytes sent", humanize.Bytes(uint64(r.traffic.Bytes)))
	table.Row("elapsed", r.elapsed.Round(time.Millisecond).String())
	fmt.Println(table.Render())

	// Protocols used, per destination pair.
	fmt.Println(titleStyle.Render("Protocols"))
	table = newPlainTable(true)
	headers := []string{"src \\ dst"}
	for _, dst := range r.pairs {
		headers = append(headers, dst.String())
	}
	table.Headers(headers...)
	row := []string{}
	for i, res := range r.results {
		if i%len(r.pairs) == 0 {
			row = []string{res.src.String()}
		}
		cell := res.plan.Protocol.String()
		if res.plan.Protocol == distmatrix.Staged {
			cell = fmt.Sprintf("Staged(%d)", len(res.plan.Via))
		}
		if res.numFailures > 0 {
			cell = failedStyle.Render(cell + " FAILED")
		}
		row = append(row, cell)
		if len(row) == len(r.pairs)+1 {
			table.Row(row...)
		}
	}
	fmt.Println(table.Render())

	if r.numFailures() == 0 {
		return
	}
	fmt.Println(titleStyle.Render("Failures"))
	table = newPlainTable(true)
	table.Headers("src", "dst", "plan", "processes with mismatches")
	for _, res := range r.results {
		if res.numFailures > 0 {
			table.Row(res.src.String(), res.dst.String(), res.plan.String(), humanize.Comma(int64(res.numFailures)))
		}
	}
	fmt.Println(table.Render())
}
