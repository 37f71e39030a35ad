// Package utils contains utility types for logging and filesystem path
// management used throughout procman.
package utils

import (
	"os"
	"path/filepath"
)

// Paths resolves and manages filesystem locations used by procman.
type Paths struct {
	RootPath string `json:"root_path"`
}

// NewPaths constructs Paths rooted at the specified directory.
func NewPaths(rootPath string) *Paths {
	return &Paths{RootPath: rootPath}
}

// LogsDir returns the global logs directory.
func (p *Paths) LogsDir() string {
	return filepath.Join(p.RootPath, "logs")
}

// ConfigDir returns the application configuration directory.
func (p *Paths) ConfigDir() string {
	return filepath.Join(p.RootPath, "config")
}

// LogFile returns the main procman log file path.
func (p *Paths) LogFile() string {
	return filepath.Join(p.LogsDir(), "procman.log")
}

// EnsureDirs creates the directories procman writes into.
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{p.LogsDir(), p.ConfigDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
