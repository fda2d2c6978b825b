// Package config loads shield's configuration: env vars first, with an
// optional YAML file overlay for deployments that prefer files. Every knob
// has a safe default, so an empty environment yields a working in-memory
// setup.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds process configuration.
type Config struct {
	// DynamicQuota and SessionQuota cap the mutable rule tiers. Zero means
	// the built-in default (5000).
	DynamicQuota int `yaml:"dynamic_quota"`
	SessionQuota int `yaml:"session_quota"`

	// ArtifactStore selects the blob backend: fs, s3, redis, gcs. Backend
	// details come from their own env vars (see pkg/artifact).
	ArtifactStore string `yaml:"artifact_store"`
	DataDir       string `yaml:"data_dir"`

	// PersistDSN enables the persistence collaborator when non-empty:
	// "sqlite:<path>" or a Postgres DSN.
	PersistDSN string `yaml:"persist_dsn"`
	// PersistWritesPerSecond throttles persistence writes. Zero disables
	// throttling.
	PersistWritesPerSecond float64 `yaml:"persist_writes_per_second"`

	// Observability toggles OTLP export; endpoint is host:port for gRPC.
	ObservabilityEnabled bool   `yaml:"observability_enabled"`
	OTLPEndpoint         string `yaml:"otlp_endpoint"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ArtifactStore: "fs",
		DataDir:       "data",
		OTLPEndpoint:  "localhost:4317",
		LogLevel:      "INFO",
	}
}

// LoadFromEnv builds a Config from SHIELD_* environment variables on top of
// the defaults. Absent variables keep their defaults; it never errors.
func LoadFromEnv() *Config {
	cfg := Default()

	if v := os.Getenv("SHIELD_DYNAMIC_QUOTA"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DynamicQuota = n
		}
	}
	if v := os.Getenv("SHIELD_SESSION_QUOTA"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SessionQuota = n
		}
	}
	if v := os.Getenv("SHIELD_ARTIFACT_STORE"); v != "" {
		cfg.ArtifactStore = v
	}
	if v := os.Getenv("SHIELD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SHIELD_PERSIST_DSN"); v != "" {
		cfg.PersistDSN = v
	}
	if v := os.Getenv("SHIELD_PERSIST_WRITES_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PersistWritesPerSecond = f
		}
	}
	if os.Getenv("SHIELD_OBSERVABILITY") == "true" {
		cfg.ObservabilityEnabled = true
	}
	if v := os.Getenv("SHIELD_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := os.Getenv("SHIELD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}

// ApplyFile overlays YAML settings from path onto cfg. Unknown keys are
// rejected so typos fail loudly instead of silently keeping defaults.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
