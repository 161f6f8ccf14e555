package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anuraag-saini/fireqsp-share-sub000/chunker"
	"github.com/anuraag-saini/fireqsp-share-sub000/extraction"
)

const (
	// DefaultBatchSize is how many chunks share one extraction call.
	DefaultBatchSize = 2

	// DefaultFallbackThreshold triggers per-chunk fallback when a batch
	// yields fewer than batchSize × threshold valid interactions.
	DefaultFallbackThreshold = 0.5

	// ExtractTimeout bounds each extraction call, batch or fallback unit.
	ExtractTimeout = 2 * time.Minute
)

// BatchResult is the accumulated output of one extraction pass. Errors are
// diagnostics, not failures; the pass succeeds with whatever it salvaged.
type BatchResult struct {
	Interactions []extraction.Interaction
	Errors       []string
}

// BatchExtractor splits accumulated chunks into fixed-size batches, runs one
// extraction call per batch, and falls back to per-chunk calls when a batch
// under-reports. One dense chunk can make the model under-report for its
// whole batch; the fallback supplements the batch result, it never replaces
// it, so a relationship found both ways lands twice. Duplication is accepted
// here and left to downstream consumers.
type BatchExtractor struct {
	runner            *UnitRunner
	cancels           CancelChecker
	logger            *zap.SugaredLogger
	batchSize         int
	fallbackThreshold float64
}

// NewBatchExtractor creates an extractor with the default batch size and
// fallback threshold.
func NewBatchExtractor(runner *UnitRunner, cancels CancelChecker, logger *zap.SugaredLogger) *BatchExtractor {
	return &BatchExtractor{
		runner:            runner,
		cancels:           cancels,
		logger:            logger,
		batchSize:         DefaultBatchSize,
		fallbackThreshold: DefaultFallbackThreshold,
	}
}

// SetBatchSize overrides the batch size. Values below 1 are ignored.
func (b *BatchExtractor) SetBatchSize(n int) {
	if n >= 1 {
		b.batchSize = n
	}
}

// SetFallbackThreshold overrides the per-batch yield fraction below which
// the chunks are retried individually. Values outside (0, 1] are ignored.
func (b *BatchExtractor) SetFallbackThreshold(f float64) {
	if f > 0 && f <= 1 {
		b.fallbackThreshold = f
	}
}

// Extract runs the batched extraction over all accumulated chunks. The chunk
// list arrives grouped by source file in first-seen order and is batched as
// one flat sequence, so a batch may span a file boundary; such a batch's
// interactions are attributed to its first chunk's file.
//
// Cancellation is polled before every batch and every fallback unit. On
// cancellation the accumulated result is returned together with
// ErrJobCancelled; every other failure is recorded as a string and the pass
// keeps going.
func (b *BatchExtractor) Extract(ctx context.Context, jobID string, chunks []chunker.Chunk, domain string, progress func(string)) (*BatchResult, error) {
	result := &BatchResult{}
	if len(chunks) == 0 {
		return result, nil
	}

	totalBatches := (len(chunks) + b.batchSize - 1) / b.batchSize

	for i := 0; i < len(chunks); i += b.batchSize {
		end := i + b.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]
		batchNum := i/b.batchSize + 1

		if jobID != "" {
			if err := b.cancels.CheckCancelled(jobID); err != nil {
				return result, err
			}
		}
		if progress != nil {
			progress(fmt.Sprintf("Processing batch %d of %d", batchNum, totalBatches))
		}

		found := b.runBatch(ctx, batch, batchNum, domain, result)

		if float64(found) < float64(len(batch))*b.fallbackThreshold {
			b.logger.Infow("Batch under-reported, falling back to per-chunk extraction",
				"job_id", jobID,
				"batch", batchNum,
				"found", found,
				"batch_size", len(batch))
			if err := b.runFallback(ctx, jobID, batch, batchNum, domain, result); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

// runBatch runs one combined extraction call for a batch and returns the
// number of valid interactions it produced.
func (b *BatchExtractor) runBatch(ctx context.Context, batch []chunker.Chunk, batchNum int, domain string, result *BatchResult) int {
	text, pageLabel := combineChunks(batch)

	tctx, cancel := context.WithTimeout(ctx, ExtractTimeout)
	defer cancel()

	items, err := b.runner.RunExtraction(tctx, text, pageLabel, domain)
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("batch %d (%s): %v", batchNum, batch[0].SourceFile, err))
		return 0
	}

	for idx := range items {
		items[idx].SourceFile = batch[0].SourceFile
	}
	result.Interactions = append(result.Interactions, items...)
	return len(items)
}

// runFallback reruns each chunk of an under-reporting batch on its own and
// merges anything found on top of the batch result.
func (b *BatchExtractor) runFallback(ctx context.Context, jobID string, batch []chunker.Chunk, batchNum int, domain string, result *BatchResult) error {
	for _, ch := range batch {
		if jobID != "" {
			if err := b.cancels.CheckCancelled(jobID); err != nil {
				return err
			}
		}

		tctx, cancel := context.WithTimeout(ctx, ExtractTimeout)
		items, err := b.runner.RunExtraction(tctx, ch.Text, ch.PageLabel, domain)
		cancel()
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("batch %d fallback (%s, %s): %v", batchNum, ch.SourceFile, ch.PageLabel, err))
			continue
		}

		for idx := range items {
			items[idx].SourceFile = ch.SourceFile
		}
		result.Interactions = append(result.Interactions, items...)
	}
	return nil
}

// combineChunks concatenates a batch's texts and page labels for one call.
func combineChunks(batch []chunker.Chunk) (string, string) {
	var texts, labels []string
	for _, ch := range batch {
		if ch.PageLabel != "" {
			texts = append(texts, fmt.Sprintf("[%s]\n%s", ch.PageLabel, ch.Text))
			labels = append(labels, ch.PageLabel)
		} else {
			texts = append(texts, ch.Text)
		}
	}
	return strings.Join(texts, "\n\n"), strings.Join(labels, ", ")
}
