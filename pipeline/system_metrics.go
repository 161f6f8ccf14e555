package pipeline

import (
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
)

// SystemMetrics is a point-in-time snapshot of pipeline load and host
// memory, served on the status endpoint.
type SystemMetrics struct {
	JobsQueued     int     `json:"jobs_queued"`
	JobsProcessing int     `json:"jobs_processing"`
	MemoryUsedGB   float64 `json:"memory_used_gb"`
	MemoryTotalGB  float64 `json:"memory_total_gb"`
	MemoryPercent  float64 `json:"memory_percent"`
}

// GetJobCounts returns how many jobs are queued and processing.
func (s *Store) GetJobCounts() (queued, processing int, err error) {
	query := `
		SELECT
			COUNT(CASE WHEN status = 'queued' THEN 1 END),
			COUNT(CASE WHEN status = 'processing' THEN 1 END)
		FROM extraction_jobs
	`
	if err := s.db.QueryRow(query).Scan(&queued, &processing); err != nil {
		return 0, 0, errors.Wrap(err, "failed to count jobs")
	}
	return queued, processing, nil
}

// GetSystemMetrics returns current pipeline and host resource usage.
// Database and memory read failures degrade to zeros rather than erroring;
// a status endpoint should never 500 over a metrics hiccup.
func (m *Manager) GetSystemMetrics() SystemMetrics {
	var metrics SystemMetrics

	queued, processing, err := m.store.GetJobCounts()
	if err != nil {
		m.logger.Warnw("Failed to read job counts", "error", err)
	} else {
		metrics.JobsQueued = queued
		metrics.JobsProcessing = processing
	}

	vm, err := mem.VirtualMemory()
	if err == nil && vm.Total > 0 {
		metrics.MemoryTotalGB = float64(vm.Total) / 1024 / 1024 / 1024
		metrics.MemoryUsedGB = float64(vm.Total-vm.Available) / 1024 / 1024 / 1024
		metrics.MemoryPercent = (metrics.MemoryUsedGB / metrics.MemoryTotalGB) * 100
	}

	return metrics
}
