package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anuraag-saini/fireqsp-share-sub000/ai"
	"github.com/anuraag-saini/fireqsp-share-sub000/ai/tracker"
	"github.com/anuraag-saini/fireqsp-share-sub000/extraction"
)

const testOwner = "owner-1"

// answerStandard serves classification and extraction requests with fixed
// well-formed responses: one interaction per extraction call.
func answerStandard(req ai.ChatRequest, _ int) (string, error) {
	if isClassifyRequest(req) {
		return "pulmonary fibrosis", nil
	}
	return interactionsJSON(1, "std"), nil
}

func TestRunJobCompletesTwoFiles(t *testing.T) {
	env := newPipelineEnv(t, TierPro, answerStandard)

	job, err := env.manager.CreateJob(testOwner, 2)
	require.NoError(t, err)

	env.uploadPages(testOwner, job.ID, "a.txt",
		"TGF-beta drives fibroblast activation in the lung.",
		"SMAD3 mediates downstream transcription.",
		"Collagen deposition stiffens the alveolar wall.")
	env.uploadPages(testOwner, job.ID, "b.txt",
		"IL-6 sustains chronic inflammation.",
		"STAT3 signaling amplifies the response.",
		"Macrophage polarization shifts toward repair.")

	res := env.orch.RunJob(context.Background(), job.ID, testOwner, 2)
	require.True(t, res.Success, "unexpected error: %s", res.Error)

	got, err := env.manager.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.FilesProcessed)
	assert.Equal(t, 2, got.FilesSuccessful)
	assert.Zero(t, got.FilesFailed)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	require.NotEmpty(t, got.ExtractionID)

	// 6 chunks at batch size 2 make 3 batches, one interaction each.
	assert.Equal(t, 3, got.InteractionsFound)
	assert.Equal(t, 3, env.client.extractionCalls())

	ext, err := env.extractions.Get(got.ExtractionID)
	require.NoError(t, err)
	assert.Equal(t, extraction.StatusCompleted, ext.Status)
	assert.Equal(t, 3, ext.InteractionCount)
	assert.Equal(t, "pulmonary fibrosis", ext.DiseaseType)
	assert.Contains(t, ext.References, "a.txt")

	assert.Zero(t, env.objects.Len(), "attempted files are always deleted")

	usage := tracker.NewUsageTracker(env.db)
	count, err := usage.CountExtractions(testOwner, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count, "successful jobs record one usage event")
}

func TestRunJobPartialWhenOneFileFails(t *testing.T) {
	env := newPipelineEnv(t, TierPro, answerStandard)

	job, err := env.manager.CreateJob(testOwner, 2)
	require.NoError(t, err)

	env.uploadPages(testOwner, job.ID, "a.txt",
		"TGF-beta drives fibroblast activation.",
		"SMAD3 mediates transcription.",
		"Collagen deposition follows.")
	// Empty file: chunking fails, the job must keep going.
	env.objects.Put(JobPrefix(testOwner, job.ID)+"bad.txt", nil)

	res := env.orch.RunJob(context.Background(), job.ID, testOwner, 2)
	require.True(t, res.Success)

	got, err := env.manager.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPartial, got.Status)
	assert.Equal(t, 1, got.FilesSuccessful)
	assert.Equal(t, 1, got.FilesFailed)
	assert.Equal(t, []string{"bad.txt"}, got.FailedFiles)
	assert.Positive(t, got.InteractionsFound, "the healthy file's interactions survive")

	ext, err := env.extractions.Get(got.ExtractionID)
	require.NoError(t, err)
	assert.Equal(t, extraction.StatusPartial, ext.Status)
	require.NotEmpty(t, ext.Errors)
	assert.Contains(t, ext.Errors[0], "bad.txt")
}

func TestRunJobFailsWhenNoFileSucceeds(t *testing.T) {
	env := newPipelineEnv(t, TierPro, answerStandard)

	job, err := env.manager.CreateJob(testOwner, 1)
	require.NoError(t, err)
	env.objects.Put(JobPrefix(testOwner, job.ID)+"bad.txt", nil)

	res := env.orch.RunJob(context.Background(), job.ID, testOwner, 1)
	assert.False(t, res.Success)

	got, err := env.manager.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, got.Status)

	usage := tracker.NewUsageTracker(env.db)
	count, err := usage.CountExtractions(testOwner, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Zero(t, count, "failed jobs record no usage event")
}

func TestRunJobFailsFastWithoutFiles(t *testing.T) {
	env := newPipelineEnv(t, TierPro, answerStandard)

	job, err := env.manager.CreateJob(testOwner, 2)
	require.NoError(t, err)

	res := env.orch.RunJob(context.Background(), job.ID, testOwner, 2)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no files found")

	got, err := env.manager.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "no files found")
}

func TestRunJobTerminalIsNoOp(t *testing.T) {
	env := newPipelineEnv(t, TierPro, answerStandard)

	job, err := env.manager.CreateJob(testOwner, 1)
	require.NoError(t, err)
	env.uploadPages(testOwner, job.ID, "a.txt", "Some page text.")
	require.NoError(t, env.manager.CancelJob(job.ID))

	res := env.orch.RunJob(context.Background(), job.ID, testOwner, 1)
	assert.True(t, res.Cancelled)
	assert.False(t, res.Success)

	got, err := env.manager.GetJob(job.ID)
	require.NoError(t, err)
	assert.Nil(t, got.StartedAt, "a terminal job is not restarted")
	assert.Empty(t, got.ExtractionID)
	assert.Zero(t, env.client.callCount())
}

func TestRunJobObservesMidRunCancellation(t *testing.T) {
	var (
		manager *Manager
		jobID   string
	)

	// The classification call runs after the first file's chunks land;
	// cancelling there exercises the per-file poll before file two.
	env := newPipelineEnv(t, TierPro, func(req ai.ChatRequest, call int) (string, error) {
		if isClassifyRequest(req) {
			if err := manager.CancelJob(jobID); err != nil {
				return "", err
			}
			return "pulmonary fibrosis", nil
		}
		return interactionsJSON(1, "std"), nil
	})
	manager = env.manager

	job, err := env.manager.CreateJob(testOwner, 3)
	require.NoError(t, err)
	jobID = job.ID

	env.uploadPages(testOwner, job.ID, "a.txt", "Page one.", "Page two.", "Page three.")
	env.uploadPages(testOwner, job.ID, "b.txt", "Page one.")
	env.uploadPages(testOwner, job.ID, "c.txt", "Page one.")

	res := env.orch.RunJob(context.Background(), job.ID, testOwner, 3)
	assert.True(t, res.Cancelled)
	assert.False(t, res.Success)

	got, err := env.manager.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, got.Status)
	assert.LessOrEqual(t, got.FilesProcessed, 2)
	assert.Contains(t, got.Error, "cancelled")

	// The extraction row exists by then and carries a cancellation entry.
	require.NotEmpty(t, got.ExtractionID)
	ext, err := env.extractions.Get(got.ExtractionID)
	require.NoError(t, err)
	assert.Equal(t, extraction.StatusFailed, ext.Status)
	require.NotEmpty(t, ext.Errors)
	assert.Contains(t, ext.Errors[len(ext.Errors)-1], "cancelled")

	assert.Zero(t, env.objects.Len(), "remaining uploads are cleaned up")
	assert.Zero(t, env.client.extractionCalls(), "no extraction call ran after cancellation")
}

func TestRunJobProgressIsMonotonic(t *testing.T) {
	env := newPipelineEnv(t, TierPro, answerStandard)

	job, err := env.manager.CreateJob(testOwner, 3)
	require.NoError(t, err)
	env.uploadPages(testOwner, job.ID, "a.txt", "One.", "Two.", "Three.")
	env.uploadPages(testOwner, job.ID, "b.txt", "One.")
	env.uploadPages(testOwner, job.ID, "c.txt", "One.")

	res := env.orch.RunJob(context.Background(), job.ID, testOwner, 3)
	require.True(t, res.Success)

	got, err := env.manager.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, got.TotalFiles, got.FilesProcessed)
	assert.LessOrEqual(t, got.FilesSuccessful+got.FilesFailed, got.FilesProcessed)
	assert.Empty(t, got.CurrentFile, "transient fields are cleared at resolution")
	assert.Empty(t, got.Phase)
}
