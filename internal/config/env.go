// Package config provides configuration helpers for the soundscape
// commands: environment lookups and the YAML settings file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by the commands.
const (
	EnvEndpoint  = "SOUNDSCAPE_ENDPOINT"
	EnvThreshold = "SOUNDSCAPE_THRESHOLD"
	EnvInterval  = "SOUNDSCAPE_INTERVAL"
	EnvSettle    = "SOUNDSCAPE_SETTLE"
	EnvPort      = "SOUNDSCAPE_PORT"
	EnvLogLevel  = "SOUNDSCAPE_LOG_LEVEL"
	EnvConfig    = "SOUNDSCAPE_CONFIG"
)

// Env returns the value of key, or def when unset or blank.
func Env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// EnvFloat returns key parsed as a float, or def when unset or invalid.
func EnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// EnvInt returns key parsed as an int, or def when unset or invalid.
func EnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvDuration returns key parsed as a duration ("20s", "300ms"). A bare
// number is taken as milliseconds. Returns def when unset or invalid.
func EnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
