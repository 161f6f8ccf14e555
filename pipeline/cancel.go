package pipeline

import (
	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
)

// ErrJobCancelled is the distinguished cancellation signal. It is the only
// error that interrupts control flow upward through the batch extractor; the
// orchestrator's recovery path checks for it to report "cancelled" rather
// than "crashed".
var ErrJobCancelled = errors.New("job cancelled")

// CancelChecker polls whether a job has been cancelled out from under its
// worker. Cancellation is cooperative: an external caller flips the job row
// to failed, and the worker notices here before its next unit of work.
type CancelChecker interface {
	CheckCancelled(jobID string) error
}

// CheckCancelled re-reads the job's status and returns ErrJobCancelled if it
// is no longer active. A missing row also counts as cancelled: the job was
// deleted out from under the worker.
func (m *Manager) CheckCancelled(jobID string) error {
	status, err := m.store.JobStatusByID(jobID)
	if errors.IsNotFoundError(err) {
		return errors.Wrapf(ErrJobCancelled, "job %s no longer exists", jobID)
	}
	if err != nil {
		return err
	}
	if !status.IsActive() {
		return errors.Wrapf(ErrJobCancelled, "job %s is %s", jobID, status)
	}
	return nil
}
