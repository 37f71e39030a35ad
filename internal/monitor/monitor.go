// Package monitor owns the background worker that samples CPU, RAM, GPU
// and per-process metrics on a fixed cadence and publishes immutable
// snapshots to the presentation layer.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"procman/internal/gpu"
	"procman/internal/history"
	"procman/internal/models"
	"procman/internal/utils"
)

// gpuBackend is the slice of gpu.Monitor the sampler depends on. Absence
// of a supported device is a backend state, not an error.
type gpuBackend interface {
	Available() bool
	Refresh()
	Devices() []models.GPUDevice
	ProcessMemory(pid int32) uint64
	Shutdown()
}

// Monitor samples system metrics on its own goroutine and hands snapshots
// off through a guarded latest-slot plus an optional publish hook. It is
// constructed in main and passed to the handlers explicitly; there is no
// package-level instance.
type Monitor struct {
	Port              int
	RefreshInterval   time.Duration
	HistoryCapacity   int
	TrayEnabled       bool
	TLSEnabled        bool
	TLSCertPath       string
	TLSKeyPath        string
	JWTSecret         string
	PasswordHash      string
	WMICmdlineEnabled bool
	ConfigFile        string

	AlertWebhookURL     string
	AlertThreshold      float64
	AlertSustainedTicks int

	Paths *utils.Paths
	Log   *utils.Logger

	probe   systemProbe
	gpu     gpuBackend
	hist    *history.Set
	alerter *alerter

	mu          sync.RWMutex
	latest      *models.Snapshot
	prevCPU     []cpuSample
	prevProcCPU map[int32]float64
	lastTakenAt time.Time

	ctlMu   sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	publish func([]byte)
}

// New creates a Monitor with configuration loaded from configPath. When
// configPath is empty it defaults to ./procman.config, bootstrapping the
// file with defaults when missing.
func New(configPath string) *Monitor {
	m := &Monitor{
		Port:                defaultPort,
		RefreshInterval:     DefaultRefreshInterval,
		HistoryCapacity:     history.DefaultCapacity,
		TrayEnabled:         runtime.GOOS == "windows",
		WMICmdlineEnabled:   true,
		AlertThreshold:      defaultAlertThreshold,
		AlertSustainedTicks: defaultAlertSustainedTicks,
		probe:               gopsutilProbe{},
		prevProcCPU:         make(map[int32]float64),
	}

	// Root paths at the executable directory until the config is loaded so
	// logs never land in an arbitrary working directory.
	if exe, err := os.Executable(); err == nil {
		if resolved, rerr := filepath.EvalSymlinks(exe); rerr == nil && resolved != "" {
			exe = resolved
		}
		m.Paths = utils.NewPaths(filepath.Dir(exe))
	} else {
		m.Paths = utils.NewPaths(filepath.Join(os.TempDir(), "procman"))
	}

	config := resolveConfigPath(configPath)
	if !fileExists(config) {
		cwd, err := os.Getwd()
		if err != nil {
			m.startLog()
			m.Log.Writef("Unable to determine working directory for default config: %v", err)
			return m
		}
		if err := bootstrapDefaultConfig(config, cwd); err != nil {
			m.startLog()
			m.Log.Writef("Unable to create default configuration at %s: %v", config, err)
			return m
		}
	}

	m.ConfigFile = config
	if err := m.load(); err != nil {
		m.startLog()
		m.Log.Write(err.Error())
		return m
	}

	m.startLog()
	m.hist = history.NewSet(m.HistoryCapacity)
	m.gpu = gpu.Probe(m.Log.Write)
	m.alerter = newAlerter(m.AlertWebhookURL, m.AlertThreshold, m.AlertSustainedTicks, m.logf)
	m.Log.Write("Configuration loaded")
	return m
}

func (m *Monitor) startLog() {
	if m.Log != nil {
		return
	}
	_ = m.Paths.EnsureDirs()
	m.Log = utils.NewLogger(m.Paths.LogFile())
}

// IsActive reports whether the monitor initialized far enough to sample.
func (m *Monitor) IsActive() bool {
	return m != nil && m.hist != nil && m.probe != nil
}

// SetPublisher installs the hook invoked with each tick's JSON-encoded
// snapshot. Must be set before Start.
func (m *Monitor) SetPublisher(fn func([]byte)) {
	m.publish = fn
}

// Start launches the background sampler. Subsequent calls are no-ops
// until Stop.
func (m *Monitor) Start() {
	if !m.IsActive() {
		return
	}
	m.ctlMu.Lock()
	if m.stopCh != nil {
		m.ctlMu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.stopCh = stop
	m.ctlMu.Unlock()

	m.logf("Monitor started, interval %v", m.RefreshInterval)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.RefreshInterval)
		defer ticker.Stop()
		m.tick()
		for {
			select {
			case <-ticker.C:
				m.tick()
			case <-stop:
				return
			}
		}
	}()
}

// Pause halts the sampler and waits for the worker to exit. The GPU
// backend stays initialized so Start can resume collection.
func (m *Monitor) Pause() {
	m.ctlMu.Lock()
	stop := m.stopCh
	m.stopCh = nil
	m.ctlMu.Unlock()
	if stop != nil {
		close(stop)
	}
	m.wg.Wait()
}

// Stop halts the sampler, waits for the worker to exit, and releases the
// GPU backend.
func (m *Monitor) Stop() {
	m.Pause()
	if m.gpu != nil {
		m.gpu.Shutdown()
	}
	if m.Log != nil {
		m.Log.Write("Monitor stopped")
	}
}

// tick collects one snapshot, stores it, records history and publishes it.
func (m *Monitor) tick() {
	snapshot := m.collect()
	if snapshot == nil {
		return
	}

	m.mu.Lock()
	m.latest = snapshot
	m.mu.Unlock()

	m.hist.Append("cpu", snapshot.CPUPercent)
	m.hist.Append("ram", snapshot.Memory.UsedPercent)
	for _, device := range snapshot.GPUs {
		m.hist.Append("gpu:"+device.UUID, device.Utilization)
	}

	m.alerter.observe(snapshot)

	if m.publish != nil {
		payload, err := json.Marshal(snapshot)
		if err != nil {
			m.logf("Snapshot encode failed: %v", err)
			return
		}
		m.publish(payload)
	}
}

// Latest returns the most recent snapshot, or nil before the first tick.
// The returned snapshot must be treated as read-only.
func (m *Monitor) Latest() *models.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// History exposes the bounded metric series for chart endpoints.
func (m *Monitor) History() *history.Set {
	return m.hist
}

// GPUAvailable reports whether the GPU backend is collecting.
func (m *Monitor) GPUAvailable() bool {
	return m.gpu != nil && m.gpu.Available()
}

func (m *Monitor) logf(format string, args ...interface{}) {
	if m.Log != nil {
		m.Log.Write(fmt.Sprintf(format, args...))
	}
}
