package pipeline

import (
	"database/sql"
	"time"

	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
)

// Store handles persistence of extraction jobs.
type Store struct {
	db *sql.DB
}

// NewStore creates a new job store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new job into the database.
func (s *Store) CreateJob(job *Job) error {
	failedFiles, err := MarshalFailedFiles(job.FailedFiles)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO extraction_jobs (
			id, owner_id, status,
			total_files, files_processed, files_successful, files_failed,
			interactions_found,
			current_file, phase, failed_files,
			extraction_id, error,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	currentFile := sql.NullString{String: job.CurrentFile, Valid: job.CurrentFile != ""}
	phase := sql.NullString{String: job.Phase, Valid: job.Phase != ""}
	failed := sql.NullString{String: failedFiles, Valid: failedFiles != ""}
	extractionID := sql.NullString{String: job.ExtractionID, Valid: job.ExtractionID != ""}

	_, err = s.db.Exec(query,
		job.ID,
		job.OwnerID,
		job.Status,
		job.TotalFiles,
		job.FilesProcessed,
		job.FilesSuccessful,
		job.FilesFailed,
		job.InteractionsFound,
		currentFile,
		phase,
		failed,
		extractionID,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create job")
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(id string) (*Job, error) {
	query := `SELECT ` + StandardJobSelectColumns() + ` FROM extraction_jobs WHERE id = ?`

	var job Job
	row := s.db.QueryRow(query, id)
	err := ScanJobFromRow(row, &job)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}
	return &job, nil
}

// JobStatusByID reads just the status column. Used by the cooperative
// cancellation poll, which runs before every file, batch, and fallback unit.
func (s *Store) JobStatusByID(id string) (JobStatus, error) {
	var status JobStatus
	err := s.db.QueryRow(`SELECT status FROM extraction_jobs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read job status")
	}
	return status, nil
}

// UpdateJobFields applies a partial update. Rows already in a terminal status
// are never touched; the WHERE guard makes terminal immutability a database
// property rather than a caller convention. Returns the number of rows
// changed (0 means not found or terminal).
func (s *Store) UpdateJobFields(id string, upd *ProgressUpdate, startedAt, completedAt *time.Time) (int64, error) {
	set := "updated_at = ?"
	args := []interface{}{time.Now()}

	appendField := func(col string, val interface{}) {
		set += ", " + col + " = ?"
		args = append(args, val)
	}

	if upd.Status != nil {
		appendField("status", *upd.Status)
	}
	if upd.FilesProcessed != nil {
		appendField("files_processed", *upd.FilesProcessed)
	}
	if upd.FilesSuccessful != nil {
		appendField("files_successful", *upd.FilesSuccessful)
	}
	if upd.FilesFailed != nil {
		appendField("files_failed", *upd.FilesFailed)
	}
	if upd.InteractionsFound != nil {
		appendField("interactions_found", *upd.InteractionsFound)
	}
	if upd.CurrentFile != nil {
		appendField("current_file", sql.NullString{String: *upd.CurrentFile, Valid: *upd.CurrentFile != ""})
	}
	if upd.Phase != nil {
		appendField("phase", sql.NullString{String: *upd.Phase, Valid: *upd.Phase != ""})
	}
	if upd.FailedFiles != nil {
		failedFiles, err := MarshalFailedFiles(upd.FailedFiles)
		if err != nil {
			return 0, err
		}
		appendField("failed_files", failedFiles)
	}
	if upd.ExtractionID != nil {
		appendField("extraction_id", *upd.ExtractionID)
	}
	if upd.Error != nil {
		appendField("error", *upd.Error)
	}
	if startedAt != nil {
		appendField("started_at", *startedAt)
	}
	if completedAt != nil {
		appendField("completed_at", *completedAt)
	}

	query := `UPDATE extraction_jobs SET ` + set +
		` WHERE id = ? AND status NOT IN ('completed', 'partial', 'failed')`
	args = append(args, id)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "failed to update job")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return rows, nil
}

// CountActiveByOwner returns how many of the owner's jobs are queued or
// processing. Read at admission time only.
func (s *Store) CountActiveByOwner(ownerID string) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM extraction_jobs
		WHERE owner_id = ? AND status IN ('queued', 'processing')
	`
	if err := s.db.QueryRow(query, ownerID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count active jobs")
	}
	return count, nil
}

// ListJobsByOwner returns the owner's jobs, newest first.
func (s *Store) ListJobsByOwner(ownerID string, limit int) ([]*Job, error) {
	query := `SELECT ` + StandardJobSelectColumns() + `
		FROM extraction_jobs
		WHERE owner_id = ?
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := s.db.Query(query, ownerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "jobs")
}

// ListActiveJobs returns all queued or processing jobs, oldest first.
func (s *Store) ListActiveJobs(limit int) ([]*Job, error) {
	query := `SELECT ` + StandardJobSelectColumns() + `
		FROM extraction_jobs
		WHERE status IN ('queued', 'processing')
		ORDER BY created_at ASC
		LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "active jobs")
}

func scanJobs(rows *sql.Rows, context string) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var job Job
		if err := ScanJobFromRows(rows, &job); err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", context)
	}
	return jobs, nil
}

// FailStaleProcessing marks jobs stuck in processing for longer than the
// staleness window as failed. Self-healing against worker crashes that leave
// orphaned rows. Returns the number of jobs swept.
func (s *Store) FailStaleProcessing(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	now := time.Now()

	query := `
		UPDATE extraction_jobs
		SET status = 'failed',
		    error = 'job timed out: stuck in processing',
		    completed_at = ?,
		    updated_at = ?
		WHERE status = 'processing'
		  AND updated_at < ?
	`

	result, err := s.db.Exec(query, now, now, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to sweep stale jobs")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return int(rows), nil
}

// CleanupOldJobs removes terminal jobs older than the given duration.
func (s *Store) CleanupOldJobs(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	query := `
		DELETE FROM extraction_jobs
		WHERE status IN ('completed', 'partial', 'failed')
		  AND updated_at < ?
	`

	result, err := s.db.Exec(query, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old jobs")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return int(rows), nil
}
