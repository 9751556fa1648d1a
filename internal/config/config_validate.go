// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/waypoint/internal/validation"
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"json": true, "console": true,
}

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validateIndex(); err != nil {
		return err
	}

	if err := c.validateQuery(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateMQTT(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	return c.validateLogging()
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("HTTP_MAX_BODY_BYTES must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageBackendPebble:
		if c.Storage.Path == "" {
			return fmt.Errorf("STORAGE_PATH is required when STORAGE_BACKEND=pebble")
		}
	case StorageBackendS3:
		return c.validateS3()
	case StorageBackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORAGE_BACKEND=memory is not allowed in production; records would be lost on restart")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of: pebble, s3, memory")
	}
	return nil
}

func (c *Config) validateS3() error {
	s3 := c.Storage.S3
	if s3.Endpoint == "" {
		return fmt.Errorf("S3_ENDPOINT is required when STORAGE_BACKEND=s3")
	}
	if strings.Contains(s3.Endpoint, "://") {
		return fmt.Errorf("S3_ENDPOINT must be host[:port] without scheme; use S3_USE_SSL to select https")
	}
	if s3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
	}
	if s3.AccessKey == "" || s3.SecretKey == "" {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when STORAGE_BACKEND=s3")
	}
	return nil
}

func (c *Config) validateIndex() error {
	switch c.Index.Backend {
	case IndexBackendBadger:
		if c.Index.Path == "" {
			return fmt.Errorf("INDEX_PATH is required when INDEX_BACKEND=badger")
		}
	case IndexBackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("INDEX_BACKEND=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("INDEX_BACKEND must be one of: badger, memory")
	}

	if c.Index.MaxRetries < 0 || c.Index.MaxRetries > 1000 {
		return fmt.Errorf("INDEX_MAX_RETRIES must be between 0 and 1000")
	}
	if c.Index.GCInterval < 0 {
		return fmt.Errorf("INDEX_GC_INTERVAL must not be negative")
	}
	if c.Index.GCDiscardRatio <= 0 || c.Index.GCDiscardRatio >= 1 {
		return fmt.Errorf("INDEX_GC_DISCARD_RATIO must be between 0 and 1 (exclusive)")
	}
	return nil
}

func (c *Config) validateQuery() error {
	if c.Query.InventoryCacheTTL < 0 {
		return fmt.Errorf("INVENTORY_CACHE_TTL must not be negative")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if err := c.validateAuthMode(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	return c.validateRateLimits()
}

func (c *Config) validateAuthMode() error {
	switch c.Security.AuthMode {
	case AuthModeBasic:
		if c.Security.BasicAuthUser == "" || c.Security.BasicAuthPass == "" {
			return fmt.Errorf("BASIC_AUTH_USER and BASIC_AUTH_PASS are required when AUTH_MODE=basic")
		}
		if len(c.Security.BasicAuthPass) < 8 {
			return fmt.Errorf("BASIC_AUTH_PASS must be at least 8 characters")
		}
		if len(c.Security.BasicAuthPass) > 72 {
			return fmt.Errorf("BASIC_AUTH_PASS must be at most 72 bytes (bcrypt limit)")
		}
		if c.Security.BcryptCost != 0 && (c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31) {
			return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
		}
	case AuthModeNone:
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=none is not allowed in production")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of: basic, none")
	}
	return nil
}

// validateCORS rejects wildcard origins together with authentication in
// production, where a browser would send stored credentials to any site.
func (c *Config) validateCORS() error {
	if c.Security.AuthMode != AuthModeNone && c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production with authentication enabled. " +
			"Set specific origins: CORS_ORIGINS=https://map.example.com " +
			"or use ENVIRONMENT=development for testing purposes")
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 || c.Security.RateLimitReqs > 100000 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between 1 and 100000")
	}
	if c.Security.RateLimitWindow < time.Second || c.Security.RateLimitWindow > time.Hour {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between 1s and 1h")
	}
	return nil
}

func (c *Config) validateMQTT() error {
	if !c.MQTT.Enabled {
		return nil
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("MQTT_BROKER is required when MQTT_ENABLED=true")
	}
	if err := validateMQTTURL(c.MQTT.Broker); err != nil {
		return fmt.Errorf("MQTT_BROKER is invalid: %w", err)
	}
	if c.MQTT.ClientID == "" {
		return fmt.Errorf("MQTT_CLIENT_ID is required when MQTT_ENABLED=true")
	}
	if !strings.HasPrefix(c.MQTT.Topic, "owntracks/") {
		return fmt.Errorf("MQTT_TOPIC must start with owntracks/, got %q", c.MQTT.Topic)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if !c.NATS.EmbeddedServer {
		if err := validateNATSURL(c.NATS.URL); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
	} else if c.NATS.Port < -1 || c.NATS.Port > 65535 {
		return fmt.Errorf("NATS_PORT must be between -1 and 65535")
	}

	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("NATS_SUBJECT_PREFIX is required when NATS_ENABLED=true")
	}
	for _, token := range strings.Split(c.NATS.SubjectPrefix, ".") {
		if token == "" || strings.ContainsAny(token, "*> \t") {
			return fmt.Errorf("NATS_SUBJECT_PREFIX %q is not a valid subject", c.NATS.SubjectPrefix)
		}
	}

	if c.NATS.JetStream {
		if c.NATS.StreamName == "" || !validation.IsIDSegment(c.NATS.StreamName) || strings.ContainsAny(c.NATS.StreamName, ".*> ") {
			return fmt.Errorf("NATS_STREAM_NAME %q is not a valid stream name", c.NATS.StreamName)
		}
		if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required for an embedded JetStream server")
		}
		if c.NATS.MaxAge < 0 {
			return fmt.Errorf("NATS_MAX_AGE must not be negative")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
