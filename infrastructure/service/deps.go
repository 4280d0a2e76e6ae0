package service

import (
	"time"
)

// ServerConfig controls the HTTP listener Run spins up around a Runner.
type ServerConfig struct {
	// Port is the TCP port to listen on. The PORT environment variable, when
	// set, takes precedence; 8080 is used when both are empty.
	Port string

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	// MetricsEnabled mounts /metrics via promhttp and wraps the router with
	// the metrics middleware when true and metrics.Enabled() also reports
	// true.
	MetricsEnabled bool
}

// DefaultServerConfig returns sane defaults for the orchestrator's HTTP server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}
