package diagnostics

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceSnapshot holds host resource usage at one instant. All fields are
// best-effort; a probe that fails leaves its fields zero.
type ResourceSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	CPUCores   int     `json:"cpu_cores"`
	CPUPercent float64 `json:"cpu_percent,omitempty"`

	MemTotalMB float64 `json:"mem_total_mb,omitempty"`
	MemUsedMB  float64 `json:"mem_used_mb,omitempty"`
	MemPercent float64 `json:"mem_percent,omitempty"`

	DiskTotalGB float64 `json:"disk_total_gb,omitempty"`
	DiskUsedGB  float64 `json:"disk_used_gb,omitempty"`
	DiskPercent float64 `json:"disk_percent,omitempty"`

	LoadAvg1  float64 `json:"load_avg_1,omitempty"`
	LoadAvg5  float64 `json:"load_avg_5,omitempty"`
	LoadAvg15 float64 `json:"load_avg_15,omitempty"`

	Goroutines int `json:"goroutines"`
}

// CollectResources probes the host. Errors from individual probes are
// swallowed: a diagnostics snapshot must never fail the caller.
func CollectResources() ResourceSnapshot {
	snap := ResourceSnapshot{
		Timestamp:  time.Now().UTC(),
		Goroutines: runtime.NumGoroutine(),
	}

	if cores, err := cpu.Counts(true); err == nil {
		snap.CPUCores = cores
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemTotalMB = float64(vm.Total) / 1024 / 1024
		snap.MemUsedMB = float64(vm.Used) / 1024 / 1024
		snap.MemPercent = vm.UsedPercent
	}
	if du, err := disk.Usage("/"); err == nil {
		snap.DiskTotalGB = float64(du.Total) / 1024 / 1024 / 1024
		snap.DiskUsedGB = float64(du.Used) / 1024 / 1024 / 1024
		snap.DiskPercent = du.UsedPercent
	}
	if avg, err := load.Avg(); err == nil {
		snap.LoadAvg1 = avg.Load1
		snap.LoadAvg5 = avg.Load5
		snap.LoadAvg15 = avg.Load15
	}

	return snap
}
