package server

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/exposure/internal/database"
	"github.com/aristath/exposure/internal/scheduler"
)

// JobRunner runs a job outside its schedule.
type JobRunner interface {
	RunNow(job scheduler.Job) error
}

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log       zerolog.Logger
	runner    JobRunner
	jobs      map[string]scheduler.Job
	databases []*database.DB
	startedAt time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, runner JobRunner, jobs map[string]scheduler.Job, databases ...*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		runner:    runner,
		jobs:      jobs,
		databases: databases,
		startedAt: time.Now(),
	}
}

// DBInfo represents one database in the status response
type DBInfo struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	PageCount int64   `json:"page_count"`
	Error     string  `json:"error,omitempty"`
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status        string   `json:"status"`
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent float64  `json:"memory_percent"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Databases     []DBInfo `json:"databases"`
	LastChecked   string   `json:"last_checked"`
}

// HandleSystemStatus returns host load and database statistics
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()
	response := SystemStatusResponse{
		Status:        "healthy",
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Databases:     make([]DBInfo, 0, len(h.databases)),
		LastChecked:   time.Now().Format(time.RFC3339),
	}

	for _, db := range h.databases {
		if db == nil {
			continue
		}
		info := DBInfo{Name: db.Name(), Path: db.Path()}
		stats, err := db.GetStats()
		if err != nil {
			info.Error = err.Error()
			response.Status = "degraded"
		} else {
			info.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
			info.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
			info.PageCount = stats.PageCount
		}
		response.Databases = append(response.Databases, info)
	}

	writeJSON(w, http.StatusOK, response)
}

// HandleListJobs returns the names of the jobs that can be triggered
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": names})
}

// HandleTriggerJob runs a job immediately
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job: "+name)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job trigger")
	if err := h.runner.RunNow(job); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "job": name})
}

// getSystemStats calculates CPU and RAM usage percentages.
// CPU is sampled over 100ms to keep the request short.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
