package collaborators

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/enginectl/internal/metrics"
	"github.com/catalystcommunity/enginectl/internal/supervisor"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// GpuProbe detects NVIDIA GPUs by shelling out to nvidia-smi and parsing
// its CSV output, grounded verbatim on
// original_source/core/gpu_manager.py. It reports an empty list rather
// than an error when nvidia-smi is unavailable, matching the source's
// graceful-empty-fallback contract.
type GpuProbe struct{}

// NewGpuProbe constructs a GpuProbe.
func NewGpuProbe() *GpuProbe { return &GpuProbe{} }

// Detect shells out to nvidia-smi and parses its CSV output into GpuInfo
// records. Any failure (missing binary, timeout, malformed output) yields
// an empty slice rather than an error.
func (g *GpuProbe) Detect() []supervisor.GpuInfo {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=index,name,memory.total,memory.free,uuid",
		"--format=csv,noheader,nounits")
	out, err := cmd.Output()
	if err != nil {
		logging.Log.WithError(err).Debug("nvidia-smi unavailable, reporting no GPUs")
		return nil
	}

	var gpus []supervisor.GpuInfo
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 5 {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		index, errIdx := strconv.Atoi(parts[0])
		total, errTotal := strconv.Atoi(parts[2])
		free, errFree := strconv.Atoi(parts[3])
		if errIdx != nil || errTotal != nil || errFree != nil {
			continue
		}
		gpus = append(gpus, supervisor.GpuInfo{
			Index:   index,
			Name:    parts[1],
			TotalMB: total,
			FreeMB:  free,
			UUID:    parts[4],
		})
	}
	return gpus
}

// HostStats reports CPU and memory fallback fields the original's
// nvidia-smi-only probe lacked, supplementing SPEC_FULL.md's GpuProbe with
// host-level figures the /status and /gpus endpoints can surface even on
// GPU-less hosts.
type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	MemoryTotalMB uint64  `json:"memory_total_mb"`
}

// CollectHostStats samples current CPU and memory usage via gopsutil.
func CollectHostStats() HostStats {
	var stats HostStats
	if percents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryUsedMB = vm.Used / (1024 * 1024)
		stats.MemoryTotalMB = vm.Total / (1024 * 1024)
	}
	metrics.UpdateHostResourceUsage(stats.CPUPercent, stats.MemoryUsedMB*1024*1024)
	return stats
}
