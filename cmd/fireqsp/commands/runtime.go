package commands

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/anuraag-saini/fireqsp-share-sub000/ai/anthropic"
	"github.com/anuraag-saini/fireqsp-share-sub000/ai/tracker"
	"github.com/anuraag-saini/fireqsp-share-sub000/chunker"
	"github.com/anuraag-saini/fireqsp-share-sub000/config"
	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
	"github.com/anuraag-saini/fireqsp-share-sub000/extraction"
	"github.com/anuraag-saini/fireqsp-share-sub000/pipeline"
	"github.com/anuraag-saini/fireqsp-share-sub000/storage"
)

// runtime bundles the assembled pipeline components shared by serve and run.
type runtime struct {
	store       *pipeline.Store
	manager     *pipeline.Manager
	extractions *extraction.Store
	objects     *storage.OSSStore
	extractor   *pipeline.BatchExtractor
	orch        *pipeline.Orchestrator
}

// buildRuntime wires the full extraction pipeline from config.
func buildRuntime(cfg *config.Config, database *sql.DB, log *zap.SugaredLogger) (*runtime, error) {
	objects, err := storage.New(&cfg.Storage)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize object storage")
	}

	clientCfg := anthropic.Config{
		APIKeys:           cfg.Anthropic.APIKeys,
		Model:             cfg.Anthropic.Model,
		RequestsPerMinute: cfg.Anthropic.RequestsPerMinute,
		DB:                database,
		OperationType:     "extraction",
	}
	if cfg.Anthropic.Temperature != nil {
		clientCfg.Temperature = *cfg.Anthropic.Temperature
	}
	if cfg.Anthropic.MaxTokens != nil {
		clientCfg.MaxTokens = *cfg.Anthropic.MaxTokens
	}
	client := anthropic.NewClient(clientCfg)
	if !client.IsConfigured() {
		log.Warnw("No Anthropic API keys configured, extraction calls will fail")
	}

	store := pipeline.NewStore(database)
	manager := pipeline.NewManager(store, plansFromConfig(cfg), log)
	extractions := extraction.NewStore(database)

	extractor := pipeline.NewBatchExtractor(pipeline.NewUnitRunner(client, log), manager, log)
	extractor.SetBatchSize(cfg.Pipeline.BatchSize)
	extractor.SetFallbackThreshold(cfg.Pipeline.FallbackThreshold)

	orch := pipeline.NewOrchestrator(
		manager,
		extractions,
		objects,
		chunker.NewTextChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap),
		extractor,
		pipeline.NewClassifier(client, log),
		tracker.NewUsageTracker(database),
		log,
	)
	orch.SetStaleWindow(time.Duration(cfg.Pipeline.StaleJobHours) * time.Hour)

	return &runtime{
		store:       store,
		manager:     manager,
		extractions: extractions,
		objects:     objects,
		extractor:   extractor,
		orch:        orch,
	}, nil
}
