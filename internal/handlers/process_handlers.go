package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"procman/internal/middleware"
	"procman/internal/models"
	"procman/internal/monitor"
)

// processSource is the slice of the monitor the process endpoints need.
type processSource interface {
	Latest() *models.Snapshot
	Kill(pid int32) error
}

// ProcessHandlers serves process listing, export and termination.
type ProcessHandlers struct {
	monitor processSource
}

func NewProcessHandlers(m processSource) *ProcessHandlers {
	return &ProcessHandlers{monitor: m}
}

// APIProcesses returns the latest snapshot's process list after applying
// filter, sort and limit query parameters. The snapshot itself is never
// mutated; sorting works on a copy.
func (h *ProcessHandlers) APIProcesses(c *gin.Context) {
	snapshot := h.monitor.Latest()
	if snapshot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No snapshot collected yet"})
		return
	}

	records := filterProcesses(snapshot.Processes, middleware.SanitizeString(c.Query("filter")))
	sortKey, order := c.DefaultQuery("sort", "cpu"), c.DefaultQuery("order", "desc")
	if err := sortProcesses(records, sortKey, order); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	total := len(records)
	if limitRaw := c.Query("limit"); limitRaw != "" {
		limit, err := strconv.Atoi(limitRaw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		if limit < len(records) {
			records = records[:limit]
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"taken_at":  snapshot.TakenAt,
		"total":     total,
		"processes": records,
	})
}

// APIProcessKill sends a termination signal to the PID in the path. The
// PID must appear in the latest snapshot; termination is asynchronous and
// confirmed only by the process dropping out of a later snapshot.
func (h *ProcessHandlers) APIProcessKill(c *gin.Context) {
	pid, err := strconv.ParseInt(c.Param("pid"), 10, 32)
	if err != nil || pid <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid PID"})
		return
	}

	switch err := h.monitor.Kill(int32(pid)); {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{
			"pid":    pid,
			"status": "termination signal sent",
		})
	case errors.Is(err, monitor.ErrProcessNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Process not found", "pid": pid})
	case errors.Is(err, monitor.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied. Try running procman with elevated privileges.", "pid": pid})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "pid": pid})
	}
}

// ExportProcessesCSV streams the current (filtered, sorted) process table
// as a CSV download.
func (h *ProcessHandlers) ExportProcessesCSV(c *gin.Context) {
	snapshot := h.monitor.Latest()
	if snapshot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No snapshot collected yet"})
		return
	}

	records := filterProcesses(snapshot.Processes, middleware.SanitizeString(c.Query("filter")))
	if err := sortProcesses(records, c.DefaultQuery("sort", "cpu"), c.DefaultQuery("order", "desc")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("process_snapshot_%s.csv", time.Now().Format("20060102-150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"PID", "Name", "CPU %", "RAM %", "GPU Mem (MB)", "Memory (MB)", "Command"})
	for _, p := range records {
		_ = w.Write([]string{
			strconv.FormatInt(int64(p.PID), 10),
			p.Name,
			strconv.FormatFloat(p.CPUPercent, 'f', 1, 64),
			strconv.FormatFloat(p.MemoryPercent, 'f', 2, 64),
			strconv.FormatFloat(float64(p.GPUMemory)/(1<<20), 'f', 2, 64),
			strconv.FormatFloat(float64(p.MemoryRSS)/(1<<20), 'f', 2, 64),
			p.Command,
		})
	}
	w.Flush()
}

// filterProcesses keeps records whose name or PID contains the query,
// case-insensitively. An empty query copies everything. The input slice is
// left untouched.
func filterProcesses(records []models.ProcessInfo, query string) []models.ProcessInfo {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]models.ProcessInfo, 0, len(records))
	for _, p := range records {
		if query == "" ||
			strings.Contains(strings.ToLower(p.Name), query) ||
			strings.Contains(strconv.FormatInt(int64(p.PID), 10), query) {
			out = append(out, p)
		}
	}
	return out
}

// sortProcesses orders records in place by the given key. Ties and the
// "name" key fall back to PID so the ordering is stable across ticks.
func sortProcesses(records []models.ProcessInfo, key, order string) error {
	descending := true
	switch strings.ToLower(order) {
	case "", "desc":
	case "asc":
		descending = false
	default:
		return fmt.Errorf("unknown sort order %q", order)
	}

	var less func(a, b models.ProcessInfo) bool
	switch strings.ToLower(key) {
	case "", "cpu":
		less = func(a, b models.ProcessInfo) bool { return a.CPUPercent < b.CPUPercent }
	case "ram":
		less = func(a, b models.ProcessInfo) bool { return a.MemoryPercent < b.MemoryPercent }
	case "rss":
		less = func(a, b models.ProcessInfo) bool { return a.MemoryRSS < b.MemoryRSS }
	case "gpu":
		less = func(a, b models.ProcessInfo) bool { return a.GPUMemory < b.GPUMemory }
	case "pid":
		less = func(a, b models.ProcessInfo) bool { return a.PID < b.PID }
	case "name":
		less = func(a, b models.ProcessInfo) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	default:
		return fmt.Errorf("unknown sort key %q", key)
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if less(a, b) {
			return !descending
		}
		if less(b, a) {
			return descending
		}
		return a.PID < b.PID
	})
	return nil
}
