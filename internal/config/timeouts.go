package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	ServiceReady  time.Duration // Timeout for a PE service to report running
	Reachable     time.Duration // Timeout for all nodes to answer a transport ping
	PollInterval  time.Duration // Interval between readiness polls
	Download      time.Duration // Timeout for artifact download and upload
	PCPJob        time.Duration // Timeout for a single orchestrator task job
	SSHMaxRetries int           // Maximum SSH connection attempts
	SSHRetryDelay time.Duration // Initial delay between SSH connection attempts
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - PEUPGRADE_TIMEOUT_SERVICE_READY (default: 10m)
//   - PEUPGRADE_TIMEOUT_REACHABLE (default: 120s)
//   - PEUPGRADE_POLL_INTERVAL (default: 5s)
//   - PEUPGRADE_TIMEOUT_DOWNLOAD (default: 30m)
//   - PEUPGRADE_TIMEOUT_PCP_JOB (default: 30m)
//   - PEUPGRADE_SSH_MAX_RETRIES (default: 5)
//   - PEUPGRADE_SSH_RETRY_DELAY (default: 2s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		ServiceReady:  parseDuration("PEUPGRADE_TIMEOUT_SERVICE_READY", 10*time.Minute),
		Reachable:     parseDuration("PEUPGRADE_TIMEOUT_REACHABLE", 120*time.Second),
		PollInterval:  parseDuration("PEUPGRADE_POLL_INTERVAL", 5*time.Second),
		Download:      parseDuration("PEUPGRADE_TIMEOUT_DOWNLOAD", 30*time.Minute),
		PCPJob:        parseDuration("PEUPGRADE_TIMEOUT_PCP_JOB", 30*time.Minute),
		SSHMaxRetries: parseInt("PEUPGRADE_SSH_MAX_RETRIES", 5),
		SSHRetryDelay: parseDuration("PEUPGRADE_SSH_RETRY_DELAY", 2*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set, not positive or fails to parse, the default
// value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
