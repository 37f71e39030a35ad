// Package models defines the value types exchanged between the metrics
// monitor and the presentation layer.
package models

import "time"

// Snapshot is one point-in-time capture of all monitored metrics. It is
// built once per tick by the monitor worker and never mutated afterwards;
// consumers treat it as read-only.
type Snapshot struct {
	TakenAt        time.Time     `json:"taken_at"`
	CPUPercent     float64       `json:"cpu_percent"`
	PerCorePercent []float64     `json:"per_core_percent"`
	PhysicalCores  int           `json:"physical_cores"`
	LogicalCores   int           `json:"logical_cores"`
	Memory         MemoryUsage   `json:"memory"`
	GPUs           []GPUDevice   `json:"gpus"`
	Processes      []ProcessInfo `json:"processes"`
}

// MemoryUsage captures host RAM utilization.
type MemoryUsage struct {
	Used        uint64  `json:"used_bytes"`
	Total       uint64  `json:"total_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// GPUDevice describes one NVIDIA device's utilization at snapshot time.
type GPUDevice struct {
	Index         int     `json:"index"`
	Name          string  `json:"name"`
	UUID          string  `json:"uuid"`
	Utilization   float64 `json:"utilization_percent"`
	MemoryUsed    uint64  `json:"memory_used_bytes"`
	MemoryTotal   uint64  `json:"memory_total_bytes"`
	MemoryPercent float64 `json:"memory_percent"`
}

// ProcessInfo describes one process at snapshot time. A record may be
// partial when the OS denies access to some of the fields; PID and Name
// are the only fields guaranteed to be meaningful. PIDs are unique within
// a snapshot; identity across snapshots is subject to OS-level PID reuse.
type ProcessInfo struct {
	PID           int32   `json:"pid"`
	Name          string  `json:"name"`
	Username      string  `json:"username,omitempty"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryRSS     uint64  `json:"memory_rss_bytes"`
	GPUMemory     uint64  `json:"gpu_memory_bytes"`
	Command       string  `json:"command"`
}

// FindProcess returns the process record for pid, or nil when the PID is
// not present in this snapshot.
func (s *Snapshot) FindProcess(pid int32) *ProcessInfo {
	if s == nil {
		return nil
	}
	for i := range s.Processes {
		if s.Processes[i].PID == pid {
			return &s.Processes[i]
		}
	}
	return nil
}
