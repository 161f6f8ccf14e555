package pipeline

import (
	"database/sql"

	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
)

// JobScanArgs holds the nullable columns scanned from an extraction_jobs row.
type JobScanArgs struct {
	CurrentFile  sql.NullString
	Phase        sql.NullString
	FailedFiles  sql.NullString
	ExtractionID sql.NullString
	ErrorMsg     sql.NullString
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
}

// GetJobScanArgs returns a JobScanArgs ready for scanning.
func GetJobScanArgs() *JobScanArgs {
	return &JobScanArgs{}
}

// GetJobScanTargets returns scan targets for the job and scan args, in the
// order of StandardJobSelectColumns.
func GetJobScanTargets(job *Job, args *JobScanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&job.OwnerID,
		&job.Status,
		&job.TotalFiles,
		&job.FilesProcessed,
		&job.FilesSuccessful,
		&job.FilesFailed,
		&job.InteractionsFound,
		&args.CurrentFile,
		&args.Phase,
		&args.FailedFiles,
		&args.ExtractionID,
		&args.ErrorMsg,
		&job.CreatedAt,
		&args.StartedAt,
		&args.CompletedAt,
		&job.UpdatedAt,
	}
}

// ProcessJobScanArgs copies the scanned nullable columns onto the job struct.
func ProcessJobScanArgs(job *Job, args *JobScanArgs) error {
	if args.CurrentFile.Valid {
		job.CurrentFile = args.CurrentFile.String
	}
	if args.Phase.Valid {
		job.Phase = args.Phase.String
	}
	if args.FailedFiles.Valid {
		names, err := UnmarshalFailedFiles(args.FailedFiles.String)
		if err != nil {
			return errors.Wrapf(err, "failed to unmarshal failed files for job %s", job.ID)
		}
		job.FailedFiles = names
	}
	if args.ExtractionID.Valid {
		job.ExtractionID = args.ExtractionID.String
	}
	if args.ErrorMsg.Valid {
		job.Error = args.ErrorMsg.String
	}
	if args.StartedAt.Valid {
		job.StartedAt = &args.StartedAt.Time
	}
	if args.CompletedAt.Valid {
		job.CompletedAt = &args.CompletedAt.Time
	}
	return nil
}

// ScanJobFromRow scans a single job from a sql.Row.
func ScanJobFromRow(row *sql.Row, job *Job) error {
	args := GetJobScanArgs()
	targets := GetJobScanTargets(job, args)

	if err := row.Scan(targets...); err != nil {
		return err
	}
	return ProcessJobScanArgs(job, args)
}

// ScanJobFromRows scans a single job from sql.Rows (for use in loops).
func ScanJobFromRows(rows *sql.Rows, job *Job) error {
	args := GetJobScanArgs()
	targets := GetJobScanTargets(job, args)

	if err := rows.Scan(targets...); err != nil {
		return err
	}
	return ProcessJobScanArgs(job, args)
}

// StandardJobSelectColumns returns the standard column list for job SELECTs.
func StandardJobSelectColumns() string {
	return `id, owner_id, status,
		total_files, files_processed, files_successful, files_failed,
		interactions_found,
		current_file, phase, failed_files,
		extraction_id, error,
		created_at, started_at, completed_at, updated_at`
}
