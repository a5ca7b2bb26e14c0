// Package health samples process/host resource usage for the /healthz
// endpoint and for sizing the pipeline worker pool when
// EPOCH_MAX_TBB_THREADS is unset (spec.md §5, §9).
package health

import (
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is a point-in-time resource reading.
type Snapshot struct {
	CPUPercent    float64
	MemUsedPct    float64
	MemUsedHuman  string
	MemTotalHuman string
	NumGoroutine  int
	NumCPU        int
}

// Sample reads current CPU/RAM usage with a short 100ms sampling window,
// matching the teacher's getSystemStats: short enough not to stall a health
// check response, long enough to be a meaningful average.
func Sample() Snapshot {
	snap := Snapshot{
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
	}

	if pct, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(pct) > 0 {
		snap.CPUPercent = pct[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemUsedPct = vm.UsedPercent
		snap.MemUsedHuman = humanize.Bytes(vm.Used)
		snap.MemTotalHuman = humanize.Bytes(vm.Total)
	}

	return snap
}

// WorkerCount sizes a worker pool from the host's CPU count when the caller
// has no explicit EPOCH_MAX_TBB_THREADS override. Always returns at least 1.
func WorkerCount(configured int) int {
	if configured > 0 {
		return configured
	}
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}
