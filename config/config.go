// Package config loads FireQSP configuration from TOML files and
// environment variables, with live reload via fsnotify.
package config

import (
	"github.com/spf13/viper"

	"github.com/anuraag-saini/fireqsp-share-sub000/storage"
)

// Config is the full FireQSP configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Storage   storage.Config  `mapstructure:"storage"`
	Chunker   ChunkerConfig   `mapstructure:"chunker"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DefaultServerPort is the development port for the API server.
const DefaultServerPort = 8810

// PipelineConfig configures job processing.
type PipelineConfig struct {
	BatchSize         int     `mapstructure:"batch_size"`         // chunks per extraction call (default: 2)
	FallbackThreshold float64 `mapstructure:"fallback_threshold"` // per-chunk fallback trigger (default: 0.5)
	StaleJobHours     int     `mapstructure:"stale_job_hours"`    // processing staleness window (default: 2)
	CleanupAfterDays  int     `mapstructure:"cleanup_after_days"` // terminal job retention (default: 30)

	// DefaultPlan applies to owners not listed in Plans.
	DefaultPlan string            `mapstructure:"default_plan"`
	Plans       map[string]string `mapstructure:"plans"` // owner id = "tier"
}

// AnthropicConfig configures the AI collaborator.
type AnthropicConfig struct {
	APIKeys           []string `mapstructure:"api_keys"` // rotated round-robin
	Model             string   `mapstructure:"model"`
	Temperature       *float64 `mapstructure:"temperature"` // nil = default 0.2
	MaxTokens         *int     `mapstructure:"max_tokens"`  // nil = default 4096
	RequestsPerMinute int      `mapstructure:"requests_per_minute"`
}

// ChunkerConfig configures document chunking.
type ChunkerConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	JSON bool `mapstructure:"json"` // structured JSON output instead of console
}

// SetDefaults configures default values for all options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "fireqsp.db")

	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("pipeline.batch_size", 2)
	v.SetDefault("pipeline.fallback_threshold", 0.5)
	v.SetDefault("pipeline.stale_job_hours", 2)
	v.SetDefault("pipeline.cleanup_after_days", 30)
	v.SetDefault("pipeline.default_plan", "basic")

	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.requests_per_minute", 50)

	v.SetDefault("storage.provider", "filesystem")
	v.SetDefault("storage.bucket", "uploads")

	v.SetDefault("chunker.chunk_size", 4000)
	v.SetDefault("chunker.chunk_overlap", 200)

	v.SetDefault("logging.json", false)
}

// BindSensitiveEnvVars binds credentials that should never land in a config
// file on disk.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("anthropic.api_keys", "FIREQSP_ANTHROPIC_API_KEYS")
	v.BindEnv("storage.id", "FIREQSP_STORAGE_ID")
	v.BindEnv("storage.secret", "FIREQSP_STORAGE_SECRET")
}
