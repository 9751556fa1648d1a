// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

/*
Package config loads and validates Waypoint configuration.

# Configuration Sources

Sources are layered with Koanf v2, later layers winning:
  - Built-in defaults (defaultConfig)
  - Optional YAML file: CONFIG_PATH, config.yaml, config.yml, /etc/waypoint/config.yaml
  - Environment variables listed in envTransformFunc

Unmapped environment variables are ignored.

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT, HTTP_MAX_BODY_BYTES
  - ENVIRONMENT: development (default) or production

Storage (record log partitions):
  - STORAGE_BACKEND: pebble (default), s3 or memory
  - STORAGE_PATH, STORAGE_SYNC
  - S3_ENDPOINT, S3_BUCKET, S3_ACCESS_KEY, S3_SECRET_KEY, S3_REGION, S3_USE_SSL, S3_CREATE_BUCKET

Index (last-location views):
  - INDEX_BACKEND: badger (default) or memory
  - INDEX_PATH, INDEX_SYNC_WRITES, INDEX_MAX_RETRIES, INDEX_GC_INTERVAL, INDEX_GC_DISCARD_RATIO

Query:
  - INVENTORY_CACHE_TTL: cache lifetime of user and device listings (0 disables)

Security:
  - AUTH_MODE: basic (default) or none
  - BASIC_AUTH_USER, BASIC_AUTH_PASS
  - CORS_ORIGINS: comma-separated list
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT

MQTT:
  - MQTT_ENABLED, MQTT_BROKER, MQTT_CLIENT_ID, MQTT_USERNAME, MQTT_PASSWORD, MQTT_TOPIC, MQTT_QOS

NATS:
  - NATS_ENABLED, NATS_URL, NATS_EMBEDDED, NATS_HOST, NATS_PORT, NATS_STORE_DIR
  - NATS_JETSTREAM, NATS_STREAM_NAME, NATS_SUBJECT_PREFIX, NATS_MAX_AGE

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Usage

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatal(err)
	}
*/
package config
