// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package distmatrix

import (
	"sync/atomic"

	"github.com/gomlx/meshmatrix/internal/workerspool"
	"github.com/gomlx/meshmatrix/pkg/core/dist"
	"k8s.io/klog/v2"
)

var (
	unalignedWarnings atomic.Bool

	// pool is shared by all processes of all worlds for the local packing loops.
	pool = workerspool.New()
)

// parallelPackThreshold is the number of elements above which local packing uses helper goroutines.
const parallelPackThreshold = 1 << 15

// SetUnalignedWarnings enables a warning, logged by grid process 0, every time a redistribution
// needs an extra realignment step because the destination alignment was fixed.
func SetUnalignedWarnings(enabled bool) {
	unalignedWarnings.Store(enabled)
}

// UnalignedWarnings reports whether SetUnalignedWarnings was enabled.
func UnalignedWarnings() bool {
	return unalignedWarnings.Load()
}

// SetParallelism limits the helper goroutines used to pack and unpack local blocks.
// 0 disables them and a negative value removes the limit. The default is runtime.NumCPU().
func SetParallelism(n int) {
	pool.SetMaxParallelism(n)
}

func warnUnaligned(src, dst dist.DistData, what Protocol) {
	if unalignedWarnings.Load() && dst.Grid.VCRank() == 0 {
		klog.Warningf("Unaligned %s: %s -> %s", what, src, dst)
	}
}
