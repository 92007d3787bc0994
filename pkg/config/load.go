package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. DOMTPL_LOG_LEVEL.
const EnvPrefix = "DOMTPL_"

// Load reads path, layering it over Default, then applies environment
// overrides and validates. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		applyEnvOverrides(cfg)
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, applies environment overrides and
// validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := env("LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := env("LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
	if val := env("LOADER_CACHE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Loader.Cache = b
		}
	}
	if val := env("LOADER_HTTP"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Loader.HTTP = b
		}
	}
	if val := env("LOADER_HTTP_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Loader.HTTPTimeout = d
		}
	}
	if val := env("PONGO_DIR"); val != "" {
		cfg.Pongo.Dir = val
	}
	if val := env("METRICS_ADDRESS"); val != "" {
		cfg.Metrics.Address = val
	}
	if val := env("THEME_NAME"); val != "" {
		cfg.Theme.Name = val
	}
	if val := env("THEME_VARIANT"); val != "" {
		cfg.Theme.Variant = val
	}
}

func env(key string) string {
	return os.Getenv(EnvPrefix + key)
}
