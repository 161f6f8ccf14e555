package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
)

// ConfigFileName is the default config file searched in the working
// directory and ~/.fireqsp/.
const ConfigFileName = "fireqsp.toml"

// Load reads configuration in precedence order: defaults, then the config
// file (if one exists), then FIREQSP_* environment variables. Returns the
// path of the loaded file, if any, so callers can watch it for changes.
func Load() (*Config, string, error) {
	v := newViper()

	path := findConfigFile()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, "", errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("FIREQSP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)
	SetDefaults(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	// Comma-separated keys from the environment arrive as one string.
	if len(cfg.Anthropic.APIKeys) == 1 && strings.Contains(cfg.Anthropic.APIKeys[0], ",") {
		parts := strings.Split(cfg.Anthropic.APIKeys[0], ",")
		cfg.Anthropic.APIKeys = cfg.Anthropic.APIKeys[:0]
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cfg.Anthropic.APIKeys = append(cfg.Anthropic.APIKeys, trimmed)
			}
		}
	}

	return &cfg, nil
}

// findConfigFile looks for fireqsp.toml in the working directory, then in
// ~/.fireqsp/. Returns empty when none exists.
func findConfigFile() string {
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".fireqsp", ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
