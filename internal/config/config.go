// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package config

import (
	"time"
)

// Storage backends.
const (
	StorageBackendPebble = "pebble"
	StorageBackendS3     = "s3"
	StorageBackendMemory = "memory"
)

// Index backends.
const (
	IndexBackendBadger = "badger"
	IndexBackendMemory = "memory"
)

// Auth modes.
const (
	AuthModeBasic = "basic"
	AuthModeNone  = "none"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Index    IndexConfig    `koanf:"index"`
	Query    QueryConfig    `koanf:"query"`
	Security SecurityConfig `koanf:"security"`
	MQTT     MQTTConfig     `koanf:"mqtt"`
	NATS     NATSConfig     `koanf:"nats"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `koanf:"port"`
	Host         string        `koanf:"host"`
	Timeout      time.Duration `koanf:"timeout"`
	MaxBodyBytes int64         `koanf:"max_body_bytes"`
	Environment  string        `koanf:"environment"` // "development" or "production"
}

// StorageConfig selects and configures the object store holding the
// monthly record partitions.
type StorageConfig struct {
	Backend string   `koanf:"backend"`
	Path    string   `koanf:"path"` // pebble directory
	Sync    bool     `koanf:"sync"` // fsync every pebble write
	S3      S3Config `koanf:"s3"`
}

// S3Config configures the S3-compatible backend (AWS S3, R2, MinIO).
type S3Config struct {
	Endpoint     string `koanf:"endpoint"`
	Bucket       string `koanf:"bucket"`
	AccessKey    string `koanf:"access_key"`
	SecretKey    string `koanf:"secret_key"`
	Region       string `koanf:"region"`
	UseSSL       bool   `koanf:"use_ssl"`
	CreateBucket bool   `koanf:"create_bucket"`
}

// IndexConfig selects and configures the key-value store holding the
// last-location views.
type IndexConfig struct {
	Backend        string        `koanf:"backend"`
	Path           string        `koanf:"path"`
	SyncWrites     bool          `koanf:"sync_writes"`
	MaxRetries     int           `koanf:"max_retries"`
	GCInterval     time.Duration `koanf:"gc_interval"`
	GCDiscardRatio float64       `koanf:"gc_discard_ratio"`
}

// QueryConfig holds read-path settings.
type QueryConfig struct {
	InventoryCacheTTL time.Duration `koanf:"inventory_cache_ttl"`
}

// SecurityConfig holds authentication and request limiting settings.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`
	BasicAuthUser     string        `koanf:"basic_auth_user"`
	BasicAuthPass     string        `koanf:"basic_auth_pass"`
	BcryptCost        int           `koanf:"bcrypt_cost"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// MQTTConfig configures the optional MQTT ingestion subscriber.
type MQTTConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Broker   string `koanf:"broker"`
	ClientID string `koanf:"client_id"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Topic    string `koanf:"topic"`
	QoS      int    `koanf:"qos"`
}

// NATSConfig configures location event publishing.
type NATSConfig struct {
	Enabled        bool          `koanf:"enabled"`
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	StoreDir       string        `koanf:"store_dir"`
	JetStream      bool          `koanf:"jetstream"`
	StreamName     string        `koanf:"stream_name"`
	SubjectPrefix  string        `koanf:"subject_prefix"`
	MaxAge         time.Duration `koanf:"max_age"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
