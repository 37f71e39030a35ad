// Package handlers wires the monitor into the gin router: JSON API for
// snapshots, history and process control, plus the HTML shell.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"procman/internal/middleware"
	"procman/internal/monitor"
	"procman/internal/version"
)

// MonitorHandlers serves snapshot, history and dashboard requests from the
// monitor passed in at startup.
type MonitorHandlers struct {
	monitor *monitor.Monitor
	hub     *middleware.Hub
}

func NewMonitorHandlers(m *monitor.Monitor, hub *middleware.Hub) *MonitorHandlers {
	return &MonitorHandlers{monitor: m, hub: hub}
}

// Dashboard renders the single-page UI shell.
func (h *MonitorHandlers) Dashboard(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"version":       version.String(),
		"gpu_available": h.monitor.GPUAvailable(),
		"interval_ms":   int(h.monitor.RefreshInterval.Milliseconds()),
	})
}

// APISnapshot returns the latest snapshot. Before the first tick completes
// there is nothing to report and the endpoint answers 503.
func (h *MonitorHandlers) APISnapshot(c *gin.Context) {
	snapshot := h.monitor.Latest()
	if snapshot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No snapshot collected yet"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// APIHistory returns the bounded series for one metric (?metric=cpu) or,
// without a metric, the list of recorded series names.
func (h *MonitorHandlers) APIHistory(c *gin.Context) {
	metric := strings.TrimSpace(c.Query("metric"))
	if metric == "" {
		c.JSON(http.StatusOK, gin.H{"metrics": h.monitor.History().Metrics()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"metric": metric,
		"values": h.monitor.History().Values(metric),
	})
}

// APIStats reports monitor health for the frontend status bar.
func (h *MonitorHandlers) APIStats(c *gin.Context) {
	snapshot := h.monitor.Latest()
	processCount := 0
	if snapshot != nil {
		processCount = len(snapshot.Processes)
	}
	c.JSON(http.StatusOK, gin.H{
		"version":       version.String(),
		"gpu_available": h.monitor.GPUAvailable(),
		"interval_ms":   int(h.monitor.RefreshInterval.Milliseconds()),
		"process_count": processCount,
		"ws_clients":    h.hub.GetClientCount(),
	})
}
