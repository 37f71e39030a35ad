package monitor

import (
	"errors"
	"os"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v4/process"
)

var (
	// ErrProcessNotFound means the PID is absent from the latest snapshot
	// or already gone from the OS process table.
	ErrProcessNotFound = errors.New("process not found")
	// ErrAccessDenied means the OS refused the termination signal.
	ErrAccessDenied = errors.New("access denied")
)

// Kill sends a termination signal (SIGTERM semantics) to pid. The PID must
// be present in the latest snapshot; killing an unknown PID is a no-op
// reported as not found. There is no synchronous confirmation of exit: the
// process disappears from a later snapshot once it terminates.
func (m *Monitor) Kill(pid int32) error {
	snapshot := m.Latest()
	target := snapshot.FindProcess(pid)
	if target == nil {
		return ErrProcessNotFound
	}

	proc, err := process.NewProcess(pid)
	if err != nil {
		return ErrProcessNotFound
	}
	if err := proc.Terminate(); err != nil {
		if isPermissionError(err) {
			m.logf("Kill denied for %s (PID %d): %v", target.Name, pid, err)
			return ErrAccessDenied
		}
		m.logf("Kill failed for %s (PID %d): %v", target.Name, pid, err)
		return ErrProcessNotFound
	}
	m.logf("Termination signal sent to %s (PID %d)", target.Name, pid)
	return nil
}

func isPermissionError(err error) bool {
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) {
		return true
	}
	// Windows reports permission failures as "Access is denied."
	return strings.Contains(strings.ToLower(err.Error()), "access is denied")
}
