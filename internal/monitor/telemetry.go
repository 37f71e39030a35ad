package monitor

import (
	"math"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"procman/internal/models"
)

// systemProbe abstracts the OS query surface the sampler depends on, so
// the collection pipeline can be exercised against canned readings.
type systemProbe interface {
	CPUTimes() ([]cpu.TimesStat, error)
	CPUCounts() (physical, logical int)
	VirtualMemory() (*mem.VirtualMemoryStat, error)
	Processes() ([]processHandle, error)
}

// processHandle is the per-process slice of gopsutil the sampler uses.
// Each accessor may fail independently; a failure degrades that field to
// its zero value rather than dropping the record.
type processHandle interface {
	PID() int32
	Name() (string, error)
	Username() (string, error)
	CPUTotal() (float64, error)
	RSS() (uint64, error)
	Cmdline() (string, error)
}

// gopsutilProbe is the production probe.
type gopsutilProbe struct{}

func (gopsutilProbe) CPUTimes() ([]cpu.TimesStat, error) {
	return cpu.Times(true)
}

func (gopsutilProbe) CPUCounts() (int, int) {
	physical, _ := cpu.Counts(false)
	logical, _ := cpu.Counts(true)
	return physical, logical
}

func (gopsutilProbe) VirtualMemory() (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemory()
}

func (gopsutilProbe) Processes() ([]processHandle, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	handles := make([]processHandle, 0, len(procs))
	for _, p := range procs {
		handles = append(handles, gopsutilProcess{p})
	}
	return handles, nil
}

type gopsutilProcess struct{ p *process.Process }

func (g gopsutilProcess) PID() int32 { return g.p.Pid }

func (g gopsutilProcess) Name() (string, error) { return g.p.Name() }

func (g gopsutilProcess) Username() (string, error) { return g.p.Username() }

func (g gopsutilProcess) CPUTotal() (float64, error) {
	times, err := g.p.Times()
	if err != nil {
		return 0, err
	}
	return times.Total(), nil
}

func (g gopsutilProcess) RSS() (uint64, error) {
	info, err := g.p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	if info == nil {
		return 0, nil
	}
	return info.RSS, nil
}

func (g gopsutilProcess) Cmdline() (string, error) { return g.p.Cmdline() }

// cpuSample holds one core's cumulative busy/total CPU times.
type cpuSample struct {
	busy  float64
	total float64
}

func cpuTotal(stat cpu.TimesStat) float64 {
	return stat.User + stat.System + stat.Nice + stat.Idle + stat.Iowait + stat.Irq + stat.Softirq + stat.Steal + stat.Guest + stat.GuestNice
}

func cpuBusy(stat cpu.TimesStat) float64 {
	busy := cpuTotal(stat) - stat.Idle - stat.Iowait
	if busy < 0 {
		return 0
	}
	return busy
}

// collect produces one snapshot from current OS state. A failed CPU read
// skips the tick; every other failure degrades its field.
func (m *Monitor) collect() *models.Snapshot {
	times, err := m.probe.CPUTimes()
	if err != nil || len(times) == 0 {
		m.logf("CPU times query failed: %v", err)
		return nil
	}
	totalPercent, perCore, hostDelta := m.updateCPUSamples(times)

	var memory models.MemoryUsage
	if memStats, err := m.probe.VirtualMemory(); err == nil && memStats != nil {
		memory = models.MemoryUsage{
			Used:        memStats.Used,
			Total:       memStats.Total,
			UsedPercent: clampFloat(memStats.UsedPercent, 0, 100),
		}
	} else if err != nil {
		m.logf("Memory query failed: %v", err)
	}

	physical, logical := m.probe.CPUCounts()
	if logical <= 0 {
		logical = len(times)
	}

	devices := []models.GPUDevice{}
	if m.gpu != nil {
		// Refresh the PID map before walking processes so per-process GPU
		// memory comes from the same tick.
		m.gpu.Refresh()
		devices = m.gpu.Devices()
	}

	processes := m.collectProcesses(hostDelta, memory.Total, logical)
	m.backfillCommandLines(processes)

	now := time.Now()
	if now.Before(m.lastTakenAt) {
		now = m.lastTakenAt
	}
	m.lastTakenAt = now

	return &models.Snapshot{
		TakenAt:        now,
		CPUPercent:     totalPercent,
		PerCorePercent: perCore,
		PhysicalCores:  physical,
		LogicalCores:   logical,
		Memory:         memory,
		GPUs:           devices,
		Processes:      processes,
	}
}

// updateCPUSamples derives per-core and total CPU percentages from the
// deltas against the previous tick. The first tick has no baseline and
// reports zeros. Returns the aggregate total-time delta for normalizing
// per-process usage.
func (m *Monitor) updateCPUSamples(times []cpu.TimesStat) (float64, []float64, float64) {
	current := make([]cpuSample, len(times))
	for i, t := range times {
		current[i] = cpuSample{busy: cpuBusy(t), total: cpuTotal(t)}
	}

	prev := m.prevCPU
	m.prevCPU = current

	perCore := make([]float64, len(current))
	var aggBusy, aggTotal float64
	if len(prev) != len(current) {
		// First tick, or core count changed (CPU hotplug); no usable baseline.
		return 0, perCore, 0
	}
	for i := range current {
		deltaTotal := current[i].total - prev[i].total
		deltaBusy := current[i].busy - prev[i].busy
		if deltaTotal > 0 {
			perCore[i] = clampFloat(deltaBusy/deltaTotal*100, 0, 100)
		}
		aggBusy += deltaBusy
		aggTotal += deltaTotal
	}
	var totalPercent float64
	if aggTotal > 0 {
		totalPercent = clampFloat(aggBusy/aggTotal*100, 0, 100)
	}
	return totalPercent, perCore, aggTotal
}

// collectProcesses walks the process table. Records degrade field by field
// on permission errors; a process is dropped only when every accessor
// fails, which means it vanished between enumeration and query.
func (m *Monitor) collectProcesses(hostDelta float64, memTotal uint64, logicalCores int) []models.ProcessInfo {
	handles, err := m.probe.Processes()
	if err != nil {
		m.logf("Process enumeration failed: %v", err)
		return []models.ProcessInfo{}
	}

	maxPercent := float64(logicalCores) * 100
	fresh := make(map[int32]float64, len(handles))
	records := make([]models.ProcessInfo, 0, len(handles))
	for _, h := range handles {
		pid := h.PID()
		info := models.ProcessInfo{PID: pid}

		name, nameErr := h.Name()
		info.Name = name

		total, cpuErr := h.CPUTotal()
		if cpuErr == nil {
			fresh[pid] = total
			if prev, ok := m.prevProcCPU[pid]; ok && hostDelta > 0 {
				if delta := total - prev; delta > 0 {
					// psutil convention: percent of a single core, so a
					// process saturating all cores reads logicalCores*100.
					info.CPUPercent = clampFloat(delta/hostDelta*float64(logicalCores)*100, 0, maxPercent)
				}
			}
		}

		rss, memErr := h.RSS()
		if memErr == nil {
			info.MemoryRSS = rss
			if memTotal > 0 {
				info.MemoryPercent = clampFloat(float64(rss)/float64(memTotal)*100, 0, 100)
			}
		}

		if nameErr != nil && cpuErr != nil && memErr != nil {
			continue
		}

		if user, err := h.Username(); err == nil {
			info.Username = user
		}
		if cmd, err := h.Cmdline(); err == nil {
			info.Command = cmd
		}
		if m.gpu != nil {
			info.GPUMemory = m.gpu.ProcessMemory(pid)
		}
		records = append(records, info)
	}
	m.prevProcCPU = fresh
	return records
}

func clampFloat(val, min, max float64) float64 {
	if math.IsNaN(val) {
		return min
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
