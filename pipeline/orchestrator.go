package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anuraag-saini/fireqsp-share-sub000/ai/tracker"
	"github.com/anuraag-saini/fireqsp-share-sub000/chunker"
	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
	"github.com/anuraag-saini/fireqsp-share-sub000/extraction"
	"github.com/anuraag-saini/fireqsp-share-sub000/storage"
)

const (
	// StaleJobWindow is how long a job may sit in processing before the
	// entry sweep declares its worker dead and fails it.
	StaleJobWindow = 2 * time.Hour

	// classifyMinChunks is how many chunks must accumulate before the
	// one-shot domain classification runs.
	classifyMinChunks = 3
)

// RunResult is the outcome of one orchestrator run.
type RunResult struct {
	Success   bool   `json:"success"`
	Cancelled bool   `json:"cancelled,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Orchestrator owns one job from claim to terminal resolution: the staleness
// sweep, the processing transition, the per-file loop, the extraction phase,
// and the final status. Each run is one logical thread of sequential steps;
// there is no intra-job parallelism, so progress counters and cancellation
// polls never race within a job.
type Orchestrator struct {
	manager     *Manager
	extractions *extraction.Store
	objects     storage.ObjectStore
	chunks      chunker.Chunker
	extractor   *BatchExtractor
	classifier  *Classifier
	usage       *tracker.UsageTracker
	logger      *zap.SugaredLogger
	staleAfter  time.Duration
}

// NewOrchestrator wires an orchestrator. The usage tracker may be nil;
// usage accounting is fire-and-forget either way.
func NewOrchestrator(
	manager *Manager,
	extractions *extraction.Store,
	objects storage.ObjectStore,
	chunks chunker.Chunker,
	extractor *BatchExtractor,
	classifier *Classifier,
	usage *tracker.UsageTracker,
	logger *zap.SugaredLogger,
) *Orchestrator {
	return &Orchestrator{
		manager:     manager,
		extractions: extractions,
		objects:     objects,
		chunks:      chunks,
		extractor:   extractor,
		classifier:  classifier,
		usage:       usage,
		logger:      logger,
		staleAfter:  StaleJobWindow,
	}
}

// SetStaleWindow overrides how long a job may sit in processing before the
// sweep fails it. Non-positive values are ignored.
func (o *Orchestrator) SetStaleWindow(d time.Duration) {
	if d > 0 {
		o.staleAfter = d
	}
}

// JobPrefix is where a job's uploaded files live in object storage.
func JobPrefix(ownerID, jobID string) string {
	return ownerID + "/" + jobID + "/"
}

// RunJob processes one job end to end. Re-invoking an already-terminal job
// is a safe no-op: it returns a cancelled result without mutating anything.
// Every cancellation signal and unexpected failure funnels into the same
// recovery path, so the job and extraction rows always reach a terminal
// state.
func (o *Orchestrator) RunJob(ctx context.Context, jobID, ownerID string, fileCount int) (res *RunResult) {
	var extID string
	defer func() {
		if r := recover(); r != nil {
			o.logger.Errorw("Panic while processing job", "job_id", jobID, "panic", r)
			res = o.failJob(ctx, jobID, ownerID, extID, errors.Newf("unexpected failure: %v", r))
		}
	}()

	if swept, err := o.manager.SweepStaleJobs(o.staleAfter); err != nil {
		o.logger.Warnw("Stale job sweep failed", "error", err)
	} else if swept > 0 {
		o.logger.Infow("Swept stale jobs", "count", swept)
	}

	job, err := o.manager.GetJob(jobID)
	if err != nil {
		return &RunResult{Error: err.Error()}
	}
	if !job.Status.IsActive() {
		o.logger.Infow("Job is no longer active, skipping",
			"job_id", jobID,
			"status", job.Status)
		return &RunResult{Cancelled: true, Error: fmt.Sprintf("job is already %s", job.Status)}
	}

	if err := o.manager.UpdateProgress(jobID, &ProgressUpdate{
		Status: statusPtr(JobStatusProcessing),
	}); err != nil {
		return o.failJob(ctx, jobID, ownerID, extID, err)
	}

	prefix := JobPrefix(ownerID, jobID)
	files, err := o.objects.List(ctx, prefix)
	if err != nil {
		return o.failJob(ctx, jobID, ownerID, extID, errors.Wrap(err, "failed to list uploaded files"))
	}
	if len(files) == 0 {
		return o.failJob(ctx, jobID, ownerID, extID, errors.New("no files found"))
	}
	if fileCount > 0 && len(files) != fileCount {
		o.logger.Warnw("Uploaded file count differs from job",
			"job_id", jobID,
			"expected", fileCount,
			"found", len(files))
	}

	ext := extraction.New(ownerID)
	ext.FileCount = len(files)
	if err := o.extractions.Create(ext); err != nil {
		return o.failJob(ctx, jobID, ownerID, extID, errors.Wrap(err, "failed to create extraction"))
	}
	extID = ext.ID
	if err := o.manager.UpdateProgress(jobID, &ProgressUpdate{
		ExtractionID: strPtr(ext.ID),
	}); err != nil {
		return o.failJob(ctx, jobID, ownerID, extID, err)
	}

	o.logger.Infow("Processing job",
		"job_id", jobID,
		"owner_id", ownerID,
		"extraction_id", ext.ID,
		"files", len(files))

	var (
		accumulated []chunker.Chunk
		failedFiles []string
		successful  int
	)

	for i, f := range files {
		if err := o.manager.CheckCancelled(jobID); err != nil {
			return o.failJob(ctx, jobID, ownerID, extID, err)
		}

		if err := o.manager.UpdateProgress(jobID, &ProgressUpdate{
			CurrentFile:    strPtr(f.Name),
			FilesProcessed: intPtr(i),
		}); err != nil {
			o.logger.Warnw("Failed to update file progress", "job_id", jobID, "error", err)
		}

		fileChunks, err := o.loadFile(ctx, f)
		if err != nil {
			failedFiles = append(failedFiles, f.Name)
			ext.Errors = append(ext.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			o.logger.Warnw("File failed",
				"job_id", jobID,
				"file", f.Name,
				"error", err)
			if err := o.manager.UpdateProgress(jobID, &ProgressUpdate{
				FilesFailed: intPtr(len(failedFiles)),
				FailedFiles: failedFiles,
			}); err != nil {
				o.logger.Warnw("Failed to record file failure", "job_id", jobID, "error", err)
			}
			o.deleteFile(ctx, f.Path)
			continue
		}

		accumulated = append(accumulated, fileChunks...)
		successful++
		if err := o.manager.UpdateProgress(jobID, &ProgressUpdate{
			FilesSuccessful: intPtr(successful),
		}); err != nil {
			o.logger.Warnw("Failed to record file success", "job_id", jobID, "error", err)
		}

		if ext.DiseaseType == "" && len(accumulated) >= classifyMinChunks {
			o.classifyEarly(ctx, ext, accumulated)
		}

		o.deleteFile(ctx, f.Path)
	}

	interactionCount := 0
	if len(accumulated) > 0 {
		progress := func(msg string) {
			if err := o.manager.UpdateProgress(jobID, &ProgressUpdate{Phase: strPtr(msg)}); err != nil {
				o.logger.Debugw("Failed to update phase", "job_id", jobID, "error", err)
			}
		}

		result, extractErr := o.extractor.Extract(ctx, jobID, accumulated, ext.DiseaseType, progress)
		interactionCount = o.persistResults(ext, result)
		if err := o.manager.UpdateProgress(jobID, &ProgressUpdate{
			InteractionsFound: intPtr(interactionCount),
		}); err != nil {
			o.logger.Warnw("Failed to record interaction count", "job_id", jobID, "error", err)
		}

		if extractErr != nil {
			return o.failJob(ctx, jobID, ownerID, extID, extractErr)
		}
	}

	return o.resolve(ctx, jobID, ownerID, ext, len(files), successful, failedFiles, accumulated, interactionCount)
}

// loadFile downloads one file and converts it to tagged chunks.
func (o *Orchestrator) loadFile(ctx context.Context, f storage.FileInfo) ([]chunker.Chunk, error) {
	data, err := o.objects.Download(ctx, f.Path)
	if err != nil {
		return nil, errors.Wrap(err, "download failed")
	}
	fileChunks, err := o.chunks.ToChunks(data, f.Name)
	if err != nil {
		return nil, errors.Wrap(err, "failed to chunk document")
	}
	return fileChunks, nil
}

// deleteFile removes an attempted file from object storage, success or
// failure, so resubmission retries start clean.
func (o *Orchestrator) deleteFile(ctx context.Context, path string) {
	if err := o.objects.Delete(ctx, path); err != nil {
		o.logger.Warnw("Failed to delete uploaded file", "path", path, "error", err)
	}
}

// classifyEarly runs the one-shot domain classification and persists the
// label so extraction prompts specialize and the UI gets a meaningful title
// before the job finishes. Best-effort; a failed classification just leaves
// the generic prompt in play.
func (o *Orchestrator) classifyEarly(ctx context.Context, ext *extraction.Extraction, chunks []chunker.Chunk) {
	label, err := o.classifier.Classify(ctx, chunks)
	if err != nil {
		o.logger.Warnw("Domain classification failed", "extraction_id", ext.ID, "error", err)
		return
	}
	ext.DiseaseType = label
	ext.Title = titleForDomain(label)
	if err := o.extractions.Update(ext); err != nil {
		o.logger.Warnw("Failed to persist classification", "extraction_id", ext.ID, "error", err)
	}
}

// persistResults stores the extraction pass output: bulk-inserts the
// interactions, folds the pass's diagnostics into the extraction's error
// list, rebuilds the reference map, and refreshes the derived interaction
// count. Failures here are recorded as errors, never job-fatal; partial
// results still count.
func (o *Orchestrator) persistResults(ext *extraction.Extraction, result *BatchResult) int {
	if result == nil {
		return 0
	}
	ext.Errors = append(ext.Errors, result.Errors...)

	if len(result.Interactions) > 0 {
		if _, err := o.extractions.BulkInsertInteractions(ext.ID, result.Interactions); err != nil {
			ext.Errors = append(ext.Errors, fmt.Sprintf("failed to store interactions: %v", err))
			o.logger.Errorw("Failed to store interactions", "extraction_id", ext.ID, "error", err)
		}
		for _, item := range result.Interactions {
			if item.SourceFile == "" || item.ReferenceText == "" {
				continue
			}
			if _, seen := ext.References[item.SourceFile]; !seen {
				ext.References[item.SourceFile] = item.ReferenceText
			}
		}
	}

	count, err := o.extractions.RefreshInteractionCount(ext.ID)
	if err != nil {
		ext.Errors = append(ext.Errors, fmt.Sprintf("failed to refresh interaction count: %v", err))
		count = len(result.Interactions)
	}
	ext.InteractionCount = count

	if err := o.extractions.Update(ext); err != nil {
		o.logger.Errorw("Failed to update extraction", "extraction_id", ext.ID, "error", err)
	}
	return count
}

// resolve computes the terminal status and finalizes both rows.
func (o *Orchestrator) resolve(ctx context.Context, jobID, ownerID string, ext *extraction.Extraction, totalFiles, successful int, failedFiles []string, accumulated []chunker.Chunk, interactionCount int) *RunResult {
	var finalStatus JobStatus
	switch {
	case successful == totalFiles:
		finalStatus = JobStatusCompleted
	case successful > 0:
		finalStatus = JobStatusPartial
	default:
		finalStatus = JobStatusFailed
	}

	if ext.DiseaseType == "" && len(accumulated) > 0 {
		o.classifyEarly(ctx, ext, accumulated)
	}
	if ext.DiseaseType == "" {
		ext.DiseaseType = "general biomedicine"
		ext.Title = titleForDomain(ext.DiseaseType)
	}

	ext.Status = extractionStatusFor(finalStatus)
	if err := o.extractions.Update(ext); err != nil {
		o.logger.Errorw("Failed to finalize extraction", "extraction_id", ext.ID, "error", err)
	}

	upd := &ProgressUpdate{
		Status:            statusPtr(finalStatus),
		FilesProcessed:    intPtr(totalFiles),
		FilesSuccessful:   intPtr(successful),
		FilesFailed:       intPtr(len(failedFiles)),
		InteractionsFound: intPtr(interactionCount),
		CurrentFile:       strPtr(""),
		Phase:             strPtr(""),
	}
	if finalStatus == JobStatusFailed {
		upd.Error = strPtr("no files could be processed")
	}
	if err := o.manager.UpdateProgress(jobID, upd); err != nil {
		o.logger.Errorw("Failed to finalize job", "job_id", jobID, "error", err)
	}

	if finalStatus != JobStatusFailed && o.usage != nil {
		if err := o.usage.RecordExtraction(ownerID); err != nil {
			o.logger.Warnw("Failed to record usage event", "owner_id", ownerID, "error", err)
		}
	}

	o.logger.Infow("Job finished",
		"job_id", jobID,
		"status", finalStatus,
		"files_successful", successful,
		"files_failed", len(failedFiles),
		"interactions", interactionCount)

	if finalStatus == JobStatusFailed {
		return &RunResult{Error: "no files could be processed"}
	}
	return &RunResult{Success: true}
}

// failJob is the single recovery path for cancellation and unrecoverable
// errors. It is idempotent against partial state: the job may already be
// terminal (external cancellation) and the extraction row may not exist yet.
func (o *Orchestrator) failJob(ctx context.Context, jobID, ownerID, extID string, cause error) *RunResult {
	cancelled := errors.Is(cause, ErrJobCancelled)
	if cancelled {
		o.logger.Infow("Job cancelled", "job_id", jobID)
	} else {
		o.logger.Errorw("Job failed", "job_id", jobID, "error", cause)
	}

	if err := o.manager.UpdateProgress(jobID, &ProgressUpdate{
		Status:      statusPtr(JobStatusFailed),
		Error:       strPtr(cause.Error()),
		CurrentFile: strPtr(""),
		Phase:       strPtr(""),
	}); err != nil {
		o.logger.Warnw("Failed to mark job failed", "job_id", jobID, "error", err)
	}

	if extID != "" {
		if ext, err := o.extractions.Get(extID); err == nil {
			ext.Status = extraction.StatusFailed
			ext.Errors = append(ext.Errors, fmt.Sprintf("job aborted: %v", cause))
			if err := o.extractions.Update(ext); err != nil {
				o.logger.Warnw("Failed to mark extraction failed", "extraction_id", extID, "error", err)
			}
		}
	}

	if err := o.objects.DeleteAll(ctx, JobPrefix(ownerID, jobID)); err != nil {
		o.logger.Warnw("Failed to clean up uploaded files", "job_id", jobID, "error", err)
	}

	return &RunResult{Cancelled: cancelled, Error: cause.Error()}
}

func extractionStatusFor(s JobStatus) extraction.Status {
	switch s {
	case JobStatusCompleted:
		return extraction.StatusCompleted
	case JobStatusPartial:
		return extraction.StatusPartial
	default:
		return extraction.StatusFailed
	}
}

func titleForDomain(domain string) string {
	if domain == "" {
		return "Untitled extraction"
	}
	return fmt.Sprintf("Interactions: %s", domain)
}
