// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/waypoint/config.yaml",
	"/etc/waypoint/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8083,
			Host:         "0.0.0.0",
			Timeout:      30 * time.Second,
			MaxBodyBytes: 1 << 20, // 1MB
			Environment:  "development",
		},
		Storage: StorageConfig{
			Backend: StorageBackendPebble,
			Path:    "/data/waypoint/records",
			Sync:    true,
			S3: S3Config{
				Region: "us-east-1",
				UseSSL: true,
			},
		},
		Index: IndexConfig{
			Backend:        IndexBackendBadger,
			Path:           "/data/waypoint/index",
			SyncWrites:     true,
			MaxRetries:     10,
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Query: QueryConfig{
			InventoryCacheTTL: 30 * time.Second,
		},
		Security: SecurityConfig{
			AuthMode:        AuthModeBasic,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		MQTT: MQTTConfig{
			Enabled:  false,
			ClientID: "waypoint",
			Topic:    "owntracks/+/+",
			QoS:      1,
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			Host:           "127.0.0.1",
			Port:           4222,
			StoreDir:       "/data/waypoint/nats",
			JetStream:      false,
			StreamName:     "LOCATIONS",
			SubjectPrefix:  "owntracks",
			MaxAge:         7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// BASIC_AUTH_USER and BASIC_AUTH_PASS keep the names OwnTracks recorder
// deployments already use.
var envMappings = map[string]string{
	// Server mappings
	"http_port":           "server.port",
	"http_host":           "server.host",
	"http_timeout":        "server.timeout",
	"http_max_body_bytes": "server.max_body_bytes",
	"environment":         "server.environment",

	// Storage mappings
	"storage_backend":  "storage.backend",
	"storage_path":     "storage.path",
	"storage_sync":     "storage.sync",
	"s3_endpoint":      "storage.s3.endpoint",
	"s3_bucket":        "storage.s3.bucket",
	"s3_access_key":    "storage.s3.access_key",
	"s3_secret_key":    "storage.s3.secret_key",
	"s3_region":        "storage.s3.region",
	"s3_use_ssl":       "storage.s3.use_ssl",
	"s3_create_bucket": "storage.s3.create_bucket",

	// Index mappings
	"index_backend":          "index.backend",
	"index_path":             "index.path",
	"index_sync_writes":      "index.sync_writes",
	"index_max_retries":      "index.max_retries",
	"index_gc_interval":      "index.gc_interval",
	"index_gc_discard_ratio": "index.gc_discard_ratio",

	// Query mappings
	"inventory_cache_ttl": "query.inventory_cache_ttl",

	// Security mappings
	"auth_mode":           "security.auth_mode",
	"basic_auth_user":     "security.basic_auth_user",
	"basic_auth_pass":     "security.basic_auth_pass",
	"bcrypt_cost":         "security.bcrypt_cost",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	// MQTT mappings
	"mqtt_enabled":   "mqtt.enabled",
	"mqtt_broker":    "mqtt.broker",
	"mqtt_client_id": "mqtt.client_id",
	"mqtt_username":  "mqtt.username",
	"mqtt_password":  "mqtt.password",
	"mqtt_topic":     "mqtt.topic",
	"mqtt_qos":       "mqtt.qos",

	// NATS mappings
	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_embedded":       "nats.embedded_server",
	"nats_host":           "nats.host",
	"nats_port":           "nats.port",
	"nats_store_dir":      "nats.store_dir",
	"nats_jetstream":      "nats.jetstream",
	"nats_stream_name":    "nats.stream_name",
	"nats_subject_prefix": "nats.subject_prefix",
	"nats_max_age":        "nats.max_age",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - BASIC_AUTH_USER -> security.basic_auth_user
//   - S3_BUCKET -> storage.s3.bucket
//
// Unmapped keys return "" and are skipped so unrelated variables do not
// leak into the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
