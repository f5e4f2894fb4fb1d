/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks spin configuration errors. The process must not serve
// requests with an invalid configuration.
var ErrInvalid = errors.New("invalid spin configuration")

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment    string
	HTTPBind       string
	HTTPPort       int
	MediaRoot      string
	SpinConfigPath string
	RandomSeed     int64 // 0 means seed from the clock

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Optional NATS event forwarding
	NATSURL string

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:    getEnvAny([]string{"SPINNER_ENV"}, "development"),
		HTTPBind:       getEnvAny([]string{"SPINNER_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:       getEnvIntAny([]string{"SPINNER_HTTP_PORT"}, 8080),
		MediaRoot:      getEnvAny([]string{"SPINNER_MEDIA_ROOT"}, "./media"),
		SpinConfigPath: getEnvAny([]string{"SPINNER_CONFIG"}, ""),
		RandomSeed:     int64(getEnvIntAny([]string{"SPINNER_RANDOM_SEED"}, 0)),

		TracingEnabled:    getEnvBoolAny([]string{"SPINNER_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"SPINNER_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"SPINNER_TRACING_SAMPLE_RATE"}, 1.0),

		NATSURL: getEnvAny([]string{"SPINNER_NATS_URL"}, ""),
	}

	if cfg.SpinConfigPath == "" {
		return nil, fmt.Errorf("SPINNER_CONFIG must be provided")
	}

	return cfg, nil
}

// CollectionConfig holds the per-collection tuning knobs from the spin file.
// Pointers distinguish "absent" from an explicit zero: weight 0 is rejected,
// never silently treated as "never selected".
type CollectionConfig struct {
	Weight  *float64 `json:"weight" yaml:"weight"`
	Backoff *int     `json:"backoff" yaml:"backoff"`
}

// SpinConfig is the parsed spin configuration file.
type SpinConfig struct {
	SameMediaBackoff int                         `json:"same_media_backoff" yaml:"same_media_backoff"`
	Collections      map[string]CollectionConfig `json:"collections" yaml:"collections"`

	// Legacy key from early deployments; folded into SameMediaBackoff.
	LegacySameFileBackoff *int `json:"same_file_backoff" yaml:"same_file_backoff"`
}

// LoadSpinConfig parses and validates the spin configuration file. YAML and
// JSON are accepted, chosen by file extension.
func LoadSpinConfig(path string) (*SpinConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spin config: %w", err)
	}

	var spin SpinConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &spin); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
	default:
		if err := json.Unmarshal(data, &spin); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
	}

	if spin.LegacySameFileBackoff != nil && spin.SameMediaBackoff == 0 {
		spin.SameMediaBackoff = *spin.LegacySameFileBackoff
	}
	spin.LegacySameFileBackoff = nil

	if err := spin.Validate(); err != nil {
		return nil, err
	}
	return &spin, nil
}

// Validate checks value ranges. Collection names are checked against the
// library scan at catalog build time, not here.
func (s *SpinConfig) Validate() error {
	if s.SameMediaBackoff < 0 {
		return fmt.Errorf("%w: same_media_backoff must not be negative, got %d", ErrInvalid, s.SameMediaBackoff)
	}
	for name, cc := range s.Collections {
		if cc.Weight != nil && *cc.Weight <= 0 {
			return fmt.Errorf("%w: weight for collection %q must be positive, got %v", ErrInvalid, name, *cc.Weight)
		}
		if cc.Backoff != nil && *cc.Backoff < 0 {
			return fmt.Errorf("%w: backoff for collection %q must not be negative, got %d", ErrInvalid, name, *cc.Backoff)
		}
	}
	return nil
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
