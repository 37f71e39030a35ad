// Package gpu wraps NVML for NVIDIA device metrics. Availability is an
// explicit state: when the library, driver, or a supported device is
// missing, the monitor reports no devices and no per-process memory
// instead of surfacing errors.
package gpu

import (
	"fmt"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"procman/internal/models"
)

// Monitor queries NVIDIA GPU utilization and per-process GPU memory.
type Monitor struct {
	mu        sync.Mutex
	available bool
	procMem   map[int32]uint64
	logf      func(string)
}

// Probe initializes NVML and returns a Monitor. When initialization fails
// (no driver, no library, no device) the returned Monitor is valid but
// reports Available() == false; every query on it degrades to empty data.
func Probe(logf func(string)) *Monitor {
	m := &Monitor{procMem: make(map[int32]uint64), logf: logf}
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		m.log(fmt.Sprintf("NVML unavailable, GPU monitoring disabled: %s", nvml.ErrorString(ret)))
		return m
	}
	m.available = true
	m.log("NVML initialized, GPU monitoring enabled")
	return m
}

// Available reports whether GPU monitoring is active.
func (m *Monitor) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Refresh rebuilds the PID to GPU memory map from the compute processes
// running on every device. Called once per tick before process collection;
// a process using multiple devices has its memory aggregated.
func (m *Monitor) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return
	}
	fresh := make(map[int32]uint64)
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		m.disableLocked(fmt.Sprintf("device count query failed: %s", nvml.ErrorString(ret)))
		return
	}
	for i := 0; i < count; i++ {
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			continue
		}
		procs, ret := device.GetComputeRunningProcesses()
		if ret != nvml.SUCCESS {
			continue
		}
		for _, p := range procs {
			fresh[int32(p.Pid)] += p.UsedGpuMemory
		}
	}
	m.procMem = fresh
}

// Devices returns per-device utilization records. The slice is empty when
// monitoring is unavailable; a runtime NVML failure disables monitoring
// for the rest of the run, mirroring driver-update and suspend scenarios.
func (m *Monitor) Devices() []models.GPUDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return []models.GPUDevice{}
	}
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		m.disableLocked(fmt.Sprintf("device count query failed: %s", nvml.ErrorString(ret)))
		return []models.GPUDevice{}
	}
	devices := make([]models.GPUDevice, 0, count)
	for i := 0; i < count; i++ {
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			m.disableLocked(fmt.Sprintf("device handle query failed: %s", nvml.ErrorString(ret)))
			return []models.GPUDevice{}
		}
		name, _ := device.GetName()
		uuid, _ := device.GetUUID()
		memInfo, ret := device.GetMemoryInfo()
		if ret != nvml.SUCCESS {
			m.disableLocked(fmt.Sprintf("memory info query failed: %s", nvml.ErrorString(ret)))
			return []models.GPUDevice{}
		}
		util, ret := device.GetUtilizationRates()
		if ret != nvml.SUCCESS {
			m.disableLocked(fmt.Sprintf("utilization query failed: %s", nvml.ErrorString(ret)))
			return []models.GPUDevice{}
		}
		var memPercent float64
		if memInfo.Total > 0 {
			memPercent = float64(memInfo.Used) / float64(memInfo.Total) * 100
		}
		devices = append(devices, models.GPUDevice{
			Index:         i,
			Name:          name,
			UUID:          uuid,
			Utilization:   float64(util.Gpu),
			MemoryUsed:    memInfo.Used,
			MemoryTotal:   memInfo.Total,
			MemoryPercent: memPercent,
		})
	}
	return devices
}

// ProcessMemory returns the GPU memory attributed to pid by the last
// Refresh, or 0 when the process is not using any device.
func (m *Monitor) ProcessMemory(pid int32) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.procMem[pid]
}

// Shutdown releases NVML. Safe to call when monitoring never initialized.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return
	}
	m.available = false
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		m.log(fmt.Sprintf("NVML shutdown failed: %s", nvml.ErrorString(ret)))
		return
	}
	m.log("NVML shut down")
}

func (m *Monitor) disableLocked(reason string) {
	m.available = false
	m.procMem = make(map[int32]uint64)
	m.log("GPU monitoring disabled: " + reason)
	_ = nvml.Shutdown()
}

func (m *Monitor) log(msg string) {
	if m.logf != nil {
		m.logf(msg)
	}
}
