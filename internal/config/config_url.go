// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package config

import (
	"fmt"
	"net/url"
)

// validateNATSURL validates that the NATS URL is properly formatted
// Supports: nats://, tls://, and ws:// schemes with IP addresses/hostnames and optional ports
func validateNATSURL(rawURL string) error {
	return validateBrokerURL(rawURL, map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true})
}

// validateMQTTURL validates an MQTT broker URL as paho accepts it.
func validateMQTTURL(rawURL string) error {
	return validateBrokerURL(rawURL, map[string]bool{
		"tcp": true, "mqtt": true, "ssl": true, "tls": true, "mqtts": true, "ws": true, "wss": true,
	})
}

func validateBrokerURL(rawURL string, schemes map[string]bool) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	if !schemes[parsedURL.Scheme] {
		return fmt.Errorf("unsupported scheme %q", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:1883, broker.example.com:8883)")
	}

	return nil
}
