//go:build windows

package monitor

import (
	"context"
	"time"

	wmi "github.com/StackExchange/wmi"

	"procman/internal/models"
)

type win32Process struct {
	ProcessID   uint32
	CommandLine *string // may be nil when access is denied
}

// backfillCommandLines fills empty Command fields from a single WMI
// Win32_Process query. gopsutil cannot read the command line of elevated
// processes on Windows; WMI can when procman itself runs elevated. Can be
// disabled via configuration for environments where WMI is blocked.
func (m *Monitor) backfillCommandLines(records []models.ProcessInfo) {
	if !m.WMICmdlineEnabled {
		return
	}
	missing := 0
	for i := range records {
		if records[i].Command == "" {
			missing++
		}
	}
	if missing == 0 {
		return
	}

	var procs []win32Process
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := wmi.QueryWithContext(ctx, "SELECT ProcessId, CommandLine FROM Win32_Process", &procs); err != nil {
		m.logf("WMI command line query failed: %v", err)
		return
	}

	cmdlines := make(map[int32]string, len(procs))
	for _, p := range procs {
		if p.CommandLine == nil || *p.CommandLine == "" {
			continue
		}
		cmdlines[int32(p.ProcessID)] = *p.CommandLine
	}
	for i := range records {
		if records[i].Command == "" {
			records[i].Command = cmdlines[records[i].PID]
		}
	}
}
