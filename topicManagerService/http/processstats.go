package http

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

// processStats enriches GET /health/ with process resource figures beyond
// the three fields spec.md §6.2 mandates (status, uptime_seconds, version).
// Failures reading /proc (e.g. on a platform gopsutil can't introspect) are
// swallowed — health reporting must never fail the request over optional data.
func processStats() map[string]any {
	stats := map[string]any{
		"goroutines": runtime.NumGoroutine(),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return stats
	}
	if rss, err := proc.MemoryInfo(); err == nil && rss != nil {
		stats["rss_bytes"] = rss.RSS
	}
	if cpuPct, err := proc.CPUPercent(); err == nil {
		stats["cpu_percent"] = cpuPct
	}
	return stats
}
