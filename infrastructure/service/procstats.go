package service

import (
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats reports the orchestrator process's own resource usage for
// inclusion in the /info response. Errors from individual probes are
// swallowed (the field is simply omitted) since this is best-effort
// diagnostic data, not a health signal.
func ProcessStats() map[string]any {
	stats := map[string]any{}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if cpuPercent, cpuErr := proc.CPUPercent(); cpuErr == nil {
			stats["cpu_percent"] = cpuPercent
		}
		if memInfo, memErr := proc.MemoryInfo(); memErr == nil && memInfo != nil {
			stats["rss_bytes"] = memInfo.RSS
			stats["vms_bytes"] = memInfo.VMS
		}
		if numThreads, threadErr := proc.NumThreads(); threadErr == nil {
			stats["num_threads"] = numThreads
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		stats["host_mem_used_percent"] = vm.UsedPercent
	}

	if counts, err := cpu.Counts(true); err == nil {
		stats["host_cpu_count"] = counts
	}

	return stats
}

// WithProcessStats merges ProcessStats into the collector under the
// "process" key.
func (sc *StatsCollector) WithProcessStats() *StatsCollector {
	return sc.Add("process", ProcessStats())
}
