// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// meshmatrix simulates a mesh of processes and checks the redistribution of a matrix between
// every pair of distributions: each matrix goes [*,*] -> src -> dst -> [*,*] and must come back
// unchanged. It prints the protocol used for each redistribution and the traffic generated.
package main

import (
	"flag"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"github.com/gomlx/meshmatrix/pkg/core/distmatrix"
	"github.com/gomlx/meshmatrix/pkg/core/mpi"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

var (
	flagProcs  = flag.Int("procs", 6, "Number of simulated processes.")
	flagHeight = flag.Int("height", 0, "Height of the process grid. 0 selects the most square grid.")
	flagM      = flag.Int("m", 37, "Number of rows of the test matrix.")
	flagN      = flag.Int("n", 29, "Number of columns of the test matrix.")
	flagDType  = flag.String("dtype", "float64", "Element type of the test matrix: "+
		"float16, bfloat16, float32, float64, complex64, complex128 or int64.")
	flagUnalignedWarnings = flag.Bool("unaligned_warnings", false,
		"Log a warning whenever a redistribution needs an extra realignment step.")
	flagParallelism = flag.Int("parallelism", runtime.NumCPU(),
		"Maximum number of helper goroutines used to pack local blocks. 0 disables them.")
	flagPairs = flag.String("pairs", "", "Space-separated list of distribution pairs to check, "+
		"e.g. \"[MC,MR] [VC,*]\". Defaults to all admissible pairs.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	distmatrix.SetUnalignedWarnings(*flagUnalignedWarnings)
	distmatrix.SetParallelism(*flagParallelism)

	pairs := must.M1(parsePairs(*flagPairs))
	dtype := must.M1(parseDType(*flagDType))

	world := mpi.NewWorld(*flagProcs)
	r := &report{pairs: pairs, dtype: dtype}
	start := time.Now()
	var err error
	switch dtype {
	case dtypes.Float16:
		err = run(world, r, func(i int) float16.Float16 { return float16.Fromfloat32(float32(i)) })
	case dtypes.BFloat16:
		err = run(world, r, func(i int) bfloat16.BFloat16 { return bfloat16.FromFloat32(float32(i)) })
	case dtypes.Float32:
		err = run(world, r, func(i int) float32 { return float32(i) })
	case dtypes.Float64:
		err = run(world, r, func(i int) float64 { return float64(i) })
	case dtypes.Complex64:
		err = run(world, r, func(i int) complex64 { return complex(float32(i), -float32(i)) })
	case dtypes.Complex128:
		err = run(world, r, func(i int) complex128 { return complex(float64(i), -float64(i)) })
	case dtypes.Int64:
		err = run(world, r, func(i int) int64 { return int64(i) })
	default:
		klog.Fatalf("-dtype=%s is not supported", dtype)
	}
	if err != nil {
		klog.Fatalf("Failed: %+v", err)
	}
	r.elapsed = time.Since(start)
	r.traffic = world.Stats()
	r.print()
	if r.numFailures() > 0 {
		os.Exit(1)
	}
}

// parsePairs parses the -pairs flag.
func parsePairs(list string) ([]dist.Pair, error) {
	if strings.TrimSpace(list) == "" {
		return dist.Pairs, nil
	}
	var pairs []dist.Pair
	for _, s := range strings.Fields(list) {
		p, err := dist.ParsePair(s)
		if err != nil {
			return nil, errors.WithMessage(err, "invalid -pairs")
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// parseDType parses the -dtype flag, ignoring case.
func parseDType(name string) (dtypes.DType, error) {
	if dtype, found := dtypes.MapOfNames[name]; found {
		return dtype, nil
	}
	for key, dtype := range dtypes.MapOfNames {
		if strings.EqualFold(key, name) {
			return dtype, nil
		}
	}
	return dtypes.InvalidDType, errors.Errorf("unknown -dtype=%q", name)
}
