//go:build !windows

package monitor

import "procman/internal/models"

// backfillCommandLines is a no-op outside Windows; gopsutil reads command
// lines directly from the process table there.
func (m *Monitor) backfillCommandLines(records []models.ProcessInfo) {}
