package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/anuraag-saini/fireqsp-share-sub000/ai"
	"github.com/anuraag-saini/fireqsp-share-sub000/ai/tracker"
	"github.com/anuraag-saini/fireqsp-share-sub000/chunker"
	"github.com/anuraag-saini/fireqsp-share-sub000/extraction"
	"github.com/anuraag-saini/fireqsp-share-sub000/logger"
	"github.com/anuraag-saini/fireqsp-share-sub000/storage"
	qtest "github.com/anuraag-saini/fireqsp-share-sub000/internal/testing"
)

// scriptedAI is an ai.Client whose responses come from a test-supplied
// function. It records every request for call-count assertions.
type scriptedAI struct {
	mu       sync.Mutex
	requests []ai.ChatRequest
	respond  func(req ai.ChatRequest, call int) (string, error)
}

func (s *scriptedAI) Chat(_ context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	call := len(s.requests)
	respond := s.respond
	s.mu.Unlock()

	content, err := respond(req, call)
	if err != nil {
		return nil, err
	}
	return &ai.ChatResponse{Content: content}, nil
}

func (s *scriptedAI) IsConfigured() bool { return true }

func (s *scriptedAI) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// extractionCalls counts the non-classification requests seen so far.
func (s *scriptedAI) extractionCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, req := range s.requests {
		if !isClassifyRequest(req) {
			n++
		}
	}
	return n
}

func isClassifyRequest(req ai.ChatRequest) bool {
	return strings.Contains(req.SystemPrompt, "librarian")
}

// interactionsJSON builds a valid model response carrying n interactions.
func interactionsJSON(n int, tag string) string {
	var items []string
	for i := 0; i < n; i++ {
		items = append(items, fmt.Sprintf(
			`{"mechanism": "%s mechanism %d", "source": {"name": "TGF-beta", "level": "Molecular"}, "target": {"name": "SMAD3", "level": "Molecular"}, "type": "activation", "confidence": "high", "reference_text": "ref for %s"}`,
			tag, i, tag))
	}
	return `{"interactions": [` + strings.Join(items, ", ") + `]}`
}

// pipelineEnv bundles everything an orchestrator test needs.
type pipelineEnv struct {
	db          *sql.DB
	jobs        *Store
	manager     *Manager
	extractions *extraction.Store
	objects     *storage.MemoryStore
	client      *scriptedAI
	orch        *Orchestrator
}

func newPipelineEnv(t *testing.T, tier PlanTier, respond func(req ai.ChatRequest, call int) (string, error)) *pipelineEnv {
	t.Helper()

	db := qtest.CreateTestDB(t)
	log := logger.NewTestLogger()

	jobs := NewStore(db)
	plans := &StaticPlans{Default: tier}
	manager := NewManager(jobs, plans, log)

	client := &scriptedAI{respond: respond}
	runner := NewUnitRunner(client, log)
	extractor := NewBatchExtractor(runner, manager, log)
	classifier := NewClassifier(client, log)

	objects := storage.NewMemoryStore()
	extractions := extraction.NewStore(db)
	usage := tracker.NewUsageTracker(db)

	orch := NewOrchestrator(manager, extractions, objects, chunker.NewTextChunker(chunker.DefaultChunkSize, chunker.DefaultChunkOverlap), extractor, classifier, usage, log)

	return &pipelineEnv{
		db:          db,
		jobs:        jobs,
		manager:     manager,
		extractions: extractions,
		objects:     objects,
		client:      client,
		orch:        orch,
	}
}

// uploadPages stores a document whose form-feed-separated pages each become
// one chunk.
func (e *pipelineEnv) uploadPages(ownerID, jobID, name string, pages ...string) {
	e.objects.Put(JobPrefix(ownerID, jobID)+name, []byte(strings.Join(pages, "\f")))
}
