// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds process-wide settings. Loaded once at startup and treated
// as immutable. Every field has a default, so an empty environment works.
type Config struct {
	// Store
	DBPath string

	// Sensor
	SensorPort    string
	SensorBaud    int
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration

	// Server
	ListenAddr string
	VoteRate   float64

	// Logging
	LogFormat string
	LogLevel  string
}

// Load reads Config from the environment. Malformed numbers and durations
// fall back to their defaults; unknown log formats are an error.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:        getEnvString("BALLOT_DB", "election.db"),
		SensorPort:    getEnvString("BALLOT_SENSOR_ADDR", "/dev/ttyUSB0"),
		SensorBaud:    getEnvInt("BALLOT_SENSOR_BAUD", 57600),
		ProbeInterval: getEnvDuration("BALLOT_PROBE_INTERVAL", 200*time.Millisecond),
		ProbeTimeout:  getEnvDuration("BALLOT_PROBE_TIMEOUT", 0),
		ListenAddr:    getEnvString("BALLOT_LISTEN", ":8080"),
		VoteRate:      getEnvFloat("BALLOT_VOTE_RATE", 5),
		LogFormat:     getEnvString("BALLOT_LOG_FORMAT", "text"),
		LogLevel:      getEnvString("BALLOT_LOG_LEVEL", "info"),
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("BALLOT_LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 200 * time.Millisecond
	}
	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
