// Package pipeline implements the durable extraction job pipeline: admission
// control, the job lifecycle state machine, batched AI extraction with
// per-chunk fallback, and cooperative cancellation.
package pipeline

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
)

// JobStatus represents the current state of an extraction job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusPartial    JobStatus = "partial"
	JobStatusFailed     JobStatus = "failed"
)

// IsValidStatus returns true if the status string is a valid JobStatus
func IsValidStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusQueued, JobStatusProcessing,
		JobStatusCompleted, JobStatusPartial, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is one of the terminal states.
// A terminal job never changes status again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusPartial, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsActive reports whether the job can still make progress.
func (s JobStatus) IsActive() bool {
	return s == JobStatusQueued || s == JobStatusProcessing
}

// Job represents one submitted multi-file extraction request and its
// lifecycle state. Counters are mutated exclusively through the Manager so
// the timestamp and terminal-state logic lives in one place.
type Job struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Status          JobStatus `json:"status"`
	TotalFiles      int       `json:"total_files"`
	FilesProcessed  int       `json:"files_processed"`
	FilesSuccessful int       `json:"files_successful"`
	FilesFailed     int       `json:"files_failed"`

	InteractionsFound int `json:"interactions_found"`

	// CurrentFile names the file in flight; Phase carries a human-readable
	// description during the extraction phase ("Processing batch 2 of 5").
	CurrentFile string   `json:"current_file,omitempty"`
	Phase       string   `json:"phase,omitempty"`
	FailedFiles []string `json:"failed_files,omitempty"`

	// ExtractionID links to the aggregate result row once it exists.
	ExtractionID string `json:"extraction_id,omitempty"`
	Error        string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewJob creates a queued job for the given owner and file count.
func NewJob(ownerID string, fileCount int) (*Job, error) {
	if ownerID == "" {
		return nil, errors.New("ownerID cannot be empty")
	}
	if fileCount <= 0 {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "fileCount must be positive")
	}

	now := time.Now()
	return &Job{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Status:     JobStatusQueued,
		TotalFiles: fileCount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ProgressUpdate carries a partial mutation of job state. Nil fields are left
// untouched; FailedFiles replaces the stored list when non-nil.
type ProgressUpdate struct {
	Status            *JobStatus
	FilesProcessed    *int
	FilesSuccessful   *int
	FilesFailed       *int
	InteractionsFound *int
	CurrentFile       *string
	Phase             *string
	FailedFiles       []string
	ExtractionID      *string
	Error             *string
}

// MarshalFailedFiles converts a failed-file list to its stored JSON form.
func MarshalFailedFiles(names []string) (string, error) {
	if len(names) == 0 {
		return "", nil
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal failed files")
	}
	return string(data), nil
}

// UnmarshalFailedFiles converts the stored JSON form back to a list.
func UnmarshalFailedFiles(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal failed files")
	}
	return names, nil
}

// statusPtr and related helpers keep ProgressUpdate call sites readable.
func statusPtr(s JobStatus) *JobStatus { return &s }
func intPtr(i int) *int                { return &i }
func strPtr(s string) *string          { return &s }
