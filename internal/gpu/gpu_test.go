package gpu

import "testing"

// unavailable returns a Monitor in the disabled state without touching NVML,
// the same shape Probe produces when the driver or library is missing.
func unavailable() *Monitor {
	return &Monitor{procMem: make(map[int32]uint64)}
}

func TestUnavailableMonitorDegradesSilently(t *testing.T) {
	m := unavailable()
	if m.Available() {
		t.Fatalf("expected monitor without NVML to be unavailable")
	}
	if devices := m.Devices(); len(devices) != 0 {
		t.Fatalf("expected empty device list, got %d entries", len(devices))
	}
	if mem := m.ProcessMemory(1234); mem != 0 {
		t.Fatalf("expected zero GPU memory for any PID, got %d", mem)
	}
	// Neither of these may panic or error when NVML never initialized.
	m.Refresh()
	m.Shutdown()
}

func TestProcessMemoryUnknownPID(t *testing.T) {
	m := unavailable()
	m.procMem[42] = 1 << 20
	if mem := m.ProcessMemory(42); mem != 1<<20 {
		t.Fatalf("expected mapped PID to report its memory, got %d", mem)
	}
	if mem := m.ProcessMemory(43); mem != 0 {
		t.Fatalf("expected unmapped PID to report 0, got %d", mem)
	}
}
