package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"procman/internal/models"
	"procman/internal/monitor"
)

type stubSource struct {
	snapshot *models.Snapshot
	killErr  error
	killed   []int32
}

func (s *stubSource) Latest() *models.Snapshot { return s.snapshot }

func (s *stubSource) Kill(pid int32) error {
	s.killed = append(s.killed, pid)
	return s.killErr
}

func sampleSnapshot() *models.Snapshot {
	return &models.Snapshot{
		TakenAt:    time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		CPUPercent: 42.0,
		Processes: []models.ProcessInfo{
			{PID: 100, Name: "chrome", CPUPercent: 25.0, MemoryPercent: 8.0, MemoryRSS: 512 << 20},
			{PID: 42, Name: "postgres", CPUPercent: 5.0, MemoryPercent: 12.0, MemoryRSS: 1 << 30, GPUMemory: 0},
			{PID: 7, Name: "python3", CPUPercent: 90.0, MemoryPercent: 3.0, MemoryRSS: 128 << 20, GPUMemory: 256 << 20},
			{PID: 310, Name: "Chrome Helper", CPUPercent: 1.0, MemoryPercent: 0.5, MemoryRSS: 64 << 20},
		},
	}
}

func buildProcessRouter(src *stubSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewProcessHandlers(src)
	r := gin.New()
	r.GET("/api/processes", h.APIProcesses)
	r.GET("/api/processes/export", h.ExportProcessesCSV)
	r.POST("/api/processes/:pid/kill", h.APIProcessKill)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeProcesses(t *testing.T, w *httptest.ResponseRecorder) []models.ProcessInfo {
	t.Helper()
	var body struct {
		Total     int                  `json:"total"`
		Processes []models.ProcessInfo `json:"processes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body.Processes
}

func TestAPIProcesses_NoSnapshotYet(t *testing.T) {
	r := buildProcessRouter(&stubSource{})
	w := doRequest(t, r, http.MethodGet, "/api/processes")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before first tick, got %d", w.Code)
	}
}

func TestAPIProcesses_DefaultSortIsCPUDescending(t *testing.T) {
	src := &stubSource{snapshot: sampleSnapshot()}
	r := buildProcessRouter(src)
	w := doRequest(t, r, http.MethodGet, "/api/processes")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	procs := decodeProcesses(t, w)
	if len(procs) != 4 {
		t.Fatalf("expected 4 processes, got %d", len(procs))
	}
	for i := 1; i < len(procs); i++ {
		if procs[i].CPUPercent > procs[i-1].CPUPercent {
			t.Fatalf("not sorted by cpu desc: %v before %v", procs[i-1].CPUPercent, procs[i].CPUPercent)
		}
	}
	// The snapshot the handler read from must keep its original order.
	if src.snapshot.Processes[0].PID != 100 {
		t.Fatalf("handler mutated the snapshot's process order")
	}
}

func TestAPIProcesses_SortByNameAscending(t *testing.T) {
	r := buildProcessRouter(&stubSource{snapshot: sampleSnapshot()})
	w := doRequest(t, r, http.MethodGet, "/api/processes?sort=name&order=asc")
	procs := decodeProcesses(t, w)
	want := []string{"chrome", "Chrome Helper", "postgres", "python3"}
	for i, name := range want {
		if procs[i].Name != name {
			t.Fatalf("position %d: expected %q, got %q", i, name, procs[i].Name)
		}
	}
}

func TestAPIProcesses_FilterMatchesNameAndPID(t *testing.T) {
	r := buildProcessRouter(&stubSource{snapshot: sampleSnapshot()})

	w := doRequest(t, r, http.MethodGet, "/api/processes?filter=chrome")
	if got := decodeProcesses(t, w); len(got) != 2 {
		t.Fatalf("name filter: expected 2 matches, got %d", len(got))
	}

	w = doRequest(t, r, http.MethodGet, "/api/processes?filter=42")
	got := decodeProcesses(t, w)
	if len(got) != 1 || got[0].PID != 42 {
		t.Fatalf("pid filter: expected only PID 42, got %+v", got)
	}

	w = doRequest(t, r, http.MethodGet, "/api/processes?filter=nosuchthing")
	if got := decodeProcesses(t, w); len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestAPIProcesses_LimitAndBadParams(t *testing.T) {
	r := buildProcessRouter(&stubSource{snapshot: sampleSnapshot()})

	w := doRequest(t, r, http.MethodGet, "/api/processes?limit=2")
	if got := decodeProcesses(t, w); len(got) != 2 {
		t.Fatalf("expected 2 records with limit=2, got %d", len(got))
	}

	for _, target := range []string{
		"/api/processes?limit=-1",
		"/api/processes?sort=bogus",
		"/api/processes?order=sideways",
	} {
		if w := doRequest(t, r, http.MethodGet, target); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestAPIProcessKill_StatusMapping(t *testing.T) {
	cases := []struct {
		name    string
		killErr error
		want    int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"not found", monitor.ErrProcessNotFound, http.StatusNotFound},
		{"access denied", monitor.ErrAccessDenied, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := &stubSource{snapshot: sampleSnapshot(), killErr: tc.killErr}
			r := buildProcessRouter(src)
			w := doRequest(t, r, http.MethodPost, "/api/processes/100/kill")
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d (body %s)", tc.want, w.Code, w.Body.String())
			}
			if len(src.killed) != 1 || src.killed[0] != 100 {
				t.Fatalf("expected Kill(100) once, got %v", src.killed)
			}
		})
	}
}

func TestAPIProcessKill_RejectsBadPID(t *testing.T) {
	src := &stubSource{snapshot: sampleSnapshot()}
	r := buildProcessRouter(src)
	for _, target := range []string{"/api/processes/abc/kill", "/api/processes/0/kill", "/api/processes/-5/kill"} {
		if w := doRequest(t, r, http.MethodPost, target); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, w.Code)
		}
	}
	if len(src.killed) != 0 {
		t.Fatalf("Kill must not be called for invalid PIDs, got %v", src.killed)
	}
}

func TestExportProcessesCSV(t *testing.T) {
	r := buildProcessRouter(&stubSource{snapshot: sampleSnapshot()})
	w := doRequest(t, r, http.MethodGet, "/api/processes/export?sort=pid&order=asc")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "process_snapshot_") {
		t.Fatalf("unexpected Content-Disposition %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "PID,Name,CPU %") {
		t.Fatalf("unexpected CSV header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "7,python3") {
		t.Fatalf("expected PID 7 first with sort=pid asc, got %q", lines[1])
	}
}

func TestSortProcesses_TiesFallBackToPID(t *testing.T) {
	records := []models.ProcessInfo{
		{PID: 30, Name: "b", CPUPercent: 10},
		{PID: 10, Name: "a", CPUPercent: 10},
		{PID: 20, Name: "c", CPUPercent: 10},
	}
	if err := sortProcesses(records, "cpu", "desc"); err != nil {
		t.Fatalf("sort: %v", err)
	}
	for i, want := range []int32{10, 20, 30} {
		if records[i].PID != want {
			t.Fatalf("position %d: expected PID %d, got %d", i, want, records[i].PID)
		}
	}
}
