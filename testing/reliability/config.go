// Package reliability stresses forestz under load, shutdown races and
// misbehaving processors.
package reliability

import (
	"os"
	"strconv"
	"time"
)

// ReliabilityConfig holds configuration for reliability testing
type ReliabilityConfig struct {
	Level         string        // "basic" or "stress"
	Duration      time.Duration // Test duration for stress tests
	MaxGoroutines int           // Maximum goroutines for concurrent tests
}

// stressFactor multiplies duration and goroutines at the "stress" level.
const stressFactor = 4

// getReliabilityConfig reads configuration from environment variables.
// Tests skip when no level is set; "stress" scales the basic load.
func getReliabilityConfig() ReliabilityConfig {
	config := ReliabilityConfig{
		Level:         getEnv("FOREST_RELIABILITY_LEVEL", ""),
		Duration:      parseDuration(getEnv("FOREST_RELIABILITY_DURATION", "2s")),
		MaxGoroutines: parseInt(getEnv("FOREST_RELIABILITY_MAX_GOROUTINES", "64")),
	}
	if config.Level == "stress" {
		config.Duration *= stressFactor
		config.MaxGoroutines *= stressFactor
	}
	return config
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseInt parses integer from string with default fallback
func parseInt(s string) int {
	if value, err := strconv.Atoi(s); err == nil {
		return value
	}
	return 0
}

// parseDuration parses duration from string with default fallback
func parseDuration(s string) time.Duration {
	if duration, err := time.ParseDuration(s); err == nil {
		return duration
	}
	return 2 * time.Second
}
