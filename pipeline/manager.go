package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
)

// Manager is the admission-control and mutation facade for jobs. The
// orchestrator and HTTP handlers create jobs and push progress updates
// through it; nothing else writes to the job store directly.
type Manager struct {
	store  *Store
	plans  PlanResolver
	logger *zap.SugaredLogger
}

// NewManager creates a job manager.
func NewManager(store *Store, plans PlanResolver, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		store:  store,
		plans:  plans,
		logger: logger,
	}
}

// CreateJob admits and persists a new queued job for the owner.
//
// The limit check is check-then-act: two simultaneous creations can both pass
// it and exceed the limit by one. That is accepted as a soft limit rather
// than paying for a transactional reservation.
func (m *Manager) CreateJob(ownerID string, fileCount int) (*Job, error) {
	job, err := NewJob(ownerID, fileCount)
	if err != nil {
		return nil, err
	}

	tier, err := m.plans.PlanFor(ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve plan tier")
	}

	limit := ConcurrencyLimit(tier)
	if limit != Unlimited {
		active, err := m.store.CountActiveByOwner(ownerID)
		if err != nil {
			return nil, err
		}
		if active >= limit {
			return nil, errors.Wrapf(errors.ErrConcurrencyLimit,
				"owner %s has %d active jobs (limit %d for %s plan)",
				ownerID, active, limit, tier)
		}
	}

	if err := m.store.CreateJob(job); err != nil {
		return nil, err
	}

	m.logger.Infow("Job created",
		"job_id", job.ID,
		"owner_id", ownerID,
		"total_files", fileCount,
		"plan", tier)
	return job, nil
}

// GetJob returns a snapshot of the job for progress polling.
func (m *Manager) GetJob(jobID string) (*Job, error) {
	return m.store.GetJob(jobID)
}

// ListJobs returns the owner's jobs, newest first.
func (m *Manager) ListJobs(ownerID string, limit int) ([]*Job, error) {
	return m.store.ListJobsByOwner(ownerID, limit)
}

// UpdateProgress applies a partial update to a job. Status transitions stamp
// started_at and completed_at idempotently: the timestamps are only written
// when not already set, so repeating a status is harmless. Updates against a
// terminal job are ignored, never applied.
func (m *Manager) UpdateProgress(jobID string, upd *ProgressUpdate) error {
	if upd == nil {
		return nil
	}

	job, err := m.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		m.logger.Debugw("Ignoring progress update for terminal job",
			"job_id", jobID,
			"status", job.Status)
		return nil
	}

	if upd.Status != nil && !IsValidStatus(string(*upd.Status)) {
		return errors.Wrapf(errors.ErrInvalidRequest, "invalid job status %q", *upd.Status)
	}

	var startedAt, completedAt *time.Time
	if upd.Status != nil {
		now := time.Now()
		if *upd.Status == JobStatusProcessing && job.StartedAt == nil {
			startedAt = &now
		}
		if upd.Status.IsTerminal() && job.CompletedAt == nil {
			completedAt = &now
		}
	}

	rows, err := m.store.UpdateJobFields(jobID, upd, startedAt, completedAt)
	if err != nil {
		return err
	}
	if rows == 0 {
		// Lost a race with an external cancellation; the row went terminal
		// between the read above and this write. Treat as ignored.
		m.logger.Debugw("Progress update skipped, job went terminal", "job_id", jobID)
	}
	return nil
}

// SweepStaleJobs fails jobs stuck in processing longer than the window.
// Run opportunistically at orchestrator entry as self-healing against
// crashed workers.
func (m *Manager) SweepStaleJobs(olderThan time.Duration) (int, error) {
	return m.store.FailStaleProcessing(olderThan)
}

// CancelJob forces an active job to failed. The running orchestrator observes
// the flip at its next cancellation poll; latency is bounded by one unit of
// work, at most one AI call's timeout.
func (m *Manager) CancelJob(jobID string) error {
	job, err := m.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return errors.Wrapf(errors.ErrInvalidRequest, "job %s is already %s", jobID, job.Status)
	}

	upd := &ProgressUpdate{
		Status: statusPtr(JobStatusFailed),
		Error:  strPtr("cancelled by user"),
	}
	now := time.Now()
	if _, err := m.store.UpdateJobFields(jobID, upd, nil, &now); err != nil {
		return err
	}

	m.logger.Infow("Job cancelled", "job_id", jobID)
	return nil
}
