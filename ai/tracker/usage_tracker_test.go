package tracker

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	createTableSQL := `
	CREATE TABLE ai_model_usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_type TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		model_name TEXT NOT NULL,
		model_provider TEXT NOT NULL,
		model_config TEXT,
		request_timestamp DATETIME NOT NULL,
		response_timestamp DATETIME,
		tokens_used INTEGER,
		cost REAL,
		success BOOLEAN NOT NULL,
		error_message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE extraction_usage_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id TEXT NOT NULL,
		recorded_at DATETIME NOT NULL
	)`

	if _, err := db.Exec(createTableSQL); err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return db
}

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

func TestTrackUsage(t *testing.T) {
	db := setupTestDB(t)
	tracker := NewUsageTracker(db)

	now := time.Now()
	responseTime := now.Add(2 * time.Second)
	tokens := 150
	cost := 0.05

	usage := &ModelUsage{
		OperationType:     "extraction",
		EntityType:        "job",
		EntityID:          "job-123",
		ModelName:         "claude-sonnet-4-20250514",
		ModelProvider:     "anthropic",
		ModelConfig:       NewModelConfig(float64Ptr(0.2), intPtr(4096)),
		RequestTimestamp:  now,
		ResponseTimestamp: &responseTime,
		TokensUsed:        &tokens,
		Cost:              &cost,
		Success:           true,
	}

	if err := tracker.TrackUsage(usage); err != nil {
		t.Fatalf("TrackUsage failed: %v", err)
	}

	var stored ModelUsage
	row := db.QueryRow(`
		SELECT operation_type, entity_type, entity_id, model_name, model_provider,
		       tokens_used, cost, success
		FROM ai_model_usage WHERE id = 1`)
	err := row.Scan(&stored.OperationType, &stored.EntityType, &stored.EntityID,
		&stored.ModelName, &stored.ModelProvider, &stored.TokensUsed,
		&stored.Cost, &stored.Success)
	if err != nil {
		t.Fatalf("Failed to retrieve stored usage: %v", err)
	}

	if stored.OperationType != "extraction" {
		t.Errorf("Expected operation_type 'extraction', got %q", stored.OperationType)
	}
	if stored.ModelProvider != "anthropic" {
		t.Errorf("Expected provider 'anthropic', got %q", stored.ModelProvider)
	}
	if stored.TokensUsed == nil || *stored.TokensUsed != 150 {
		t.Errorf("Expected 150 tokens, got %v", stored.TokensUsed)
	}
	if !stored.Success {
		t.Error("Expected success = true")
	}
}

func TestTrackUsageFailedRequest(t *testing.T) {
	db := setupTestDB(t)
	tracker := NewUsageTracker(db)

	errMsg := "API request failed with status 500"
	usage := &ModelUsage{
		OperationType:    "extraction",
		EntityType:       "job",
		EntityID:         "job-456",
		ModelName:        "claude-sonnet-4-20250514",
		ModelProvider:    "anthropic",
		RequestTimestamp: time.Now(),
		Success:          false,
		ErrorMessage:     &errMsg,
	}

	if err := tracker.TrackUsage(usage); err != nil {
		t.Fatalf("TrackUsage failed: %v", err)
	}

	var success bool
	var stored sql.NullString
	err := db.QueryRow(`SELECT success, error_message FROM ai_model_usage WHERE id = 1`).
		Scan(&success, &stored)
	if err != nil {
		t.Fatalf("Failed to retrieve record: %v", err)
	}
	if success {
		t.Error("Expected success = false")
	}
	if !stored.Valid || stored.String != errMsg {
		t.Errorf("Expected error message %q, got %v", errMsg, stored)
	}
}

func TestRecordAndCountExtractions(t *testing.T) {
	db := setupTestDB(t)
	tracker := NewUsageTracker(db)

	for i := 0; i < 3; i++ {
		if err := tracker.RecordExtraction("owner-1"); err != nil {
			t.Fatalf("RecordExtraction failed: %v", err)
		}
	}
	if err := tracker.RecordExtraction("owner-2"); err != nil {
		t.Fatalf("RecordExtraction failed: %v", err)
	}

	count, err := tracker.CountExtractions("owner-1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountExtractions failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 extractions for owner-1, got %d", count)
	}

	count, err = tracker.CountExtractions("owner-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CountExtractions failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 extractions in the future window, got %d", count)
	}
}

func TestGetUsageStats(t *testing.T) {
	db := setupTestDB(t)
	tracker := NewUsageTracker(db)

	oneHourAgo := time.Now().Add(-1 * time.Hour)
	testUsages := []*ModelUsage{
		{
			OperationType:    "extraction",
			EntityType:       "job",
			EntityID:         "1",
			ModelName:        "claude-sonnet-4-20250514",
			ModelProvider:    "anthropic",
			RequestTimestamp: oneHourAgo,
			TokensUsed:       intPtr(100),
			Cost:             float64Ptr(0.02),
			Success:          true,
		},
		{
			OperationType:    "classification",
			EntityType:       "job",
			EntityID:         "2",
			ModelName:        "claude-3-5-haiku-20241022",
			ModelProvider:    "anthropic",
			RequestTimestamp: oneHourAgo,
			TokensUsed:       intPtr(50),
			Cost:             float64Ptr(0.01),
			Success:          true,
		},
		{
			OperationType:    "extraction",
			EntityType:       "job",
			EntityID:         "3",
			ModelName:        "claude-sonnet-4-20250514",
			ModelProvider:    "anthropic",
			RequestTimestamp: oneHourAgo,
			Success:          false,
		},
	}
	for _, u := range testUsages {
		if err := tracker.TrackUsage(u); err != nil {
			t.Fatalf("TrackUsage failed: %v", err)
		}
	}

	stats, err := tracker.GetUsageStats(time.Now().Add(-2 * time.Hour))
	if err != nil {
		t.Fatalf("GetUsageStats failed: %v", err)
	}

	if stats.TotalRequests != 3 {
		t.Errorf("Expected 3 total requests, got %d", stats.TotalRequests)
	}
	if stats.SuccessfulRequests != 2 {
		t.Errorf("Expected 2 successful requests, got %d", stats.SuccessfulRequests)
	}
	if stats.TotalTokens != 150 {
		t.Errorf("Expected 150 total tokens, got %d", stats.TotalTokens)
	}
	if stats.UniqueModels != 2 {
		t.Errorf("Expected 2 unique models, got %d", stats.UniqueModels)
	}
	if stats.SuccessRate < 0.66 || stats.SuccessRate > 0.67 {
		t.Errorf("Expected success rate ~0.67, got %f", stats.SuccessRate)
	}
}

func TestNewModelConfig(t *testing.T) {
	if cfg := NewModelConfig(nil, nil); cfg != nil {
		t.Errorf("Expected nil config for nil inputs, got %v", *cfg)
	}

	cfg := NewModelConfig(float64Ptr(0.2), intPtr(4096))
	if cfg == nil {
		t.Fatal("Expected non-nil config")
	}
	expected := `{"temperature":0.2,"max_tokens":4096}`
	if *cfg != expected {
		t.Errorf("Expected %s, got %s", expected, *cfg)
	}
}

func TestTrackUsageSqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	tracker := NewUsageTracker(db)

	now := time.Now()
	tokens := 200
	cost := 0.03
	usage := &ModelUsage{
		OperationType:    "extraction",
		EntityType:       "job",
		EntityID:         "job-789",
		ModelName:        "claude-sonnet-4-20250514",
		ModelProvider:    "anthropic",
		RequestTimestamp: now,
		TokensUsed:       &tokens,
		Cost:             &cost,
		Success:          true,
	}

	mock.ExpectExec(`INSERT INTO ai_model_usage`).
		WithArgs(
			usage.OperationType,
			usage.EntityType,
			usage.EntityID,
			usage.ModelName,
			usage.ModelProvider,
			sqlmock.AnyArg(), // model_config
			usage.RequestTimestamp,
			sqlmock.AnyArg(), // response_timestamp
			usage.TokensUsed,
			usage.Cost,
			usage.Success,
			sqlmock.AnyArg(), // error_message
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := tracker.TrackUsage(usage); err != nil {
		t.Errorf("TrackUsage failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestRecordExtractionSqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	tracker := NewUsageTracker(db)

	mock.ExpectExec(`INSERT INTO extraction_usage_events`).
		WithArgs("owner-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := tracker.RecordExtraction("owner-1"); err != nil {
		t.Errorf("RecordExtraction failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}
