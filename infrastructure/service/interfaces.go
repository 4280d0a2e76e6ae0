// Package service provides common process lifecycle infrastructure for the
// orchestrator daemon.
package service

import (
	"context"

	"github.com/gorilla/mux"
)

// =============================================================================
// Core Service Interfaces
// =============================================================================

// Runner is the interface the orchestrator daemon implements. It ensures
// consistent lifecycle management and HTTP wiring.
type Runner interface {
	// Identity
	ID() string
	Name() string
	Version() string

	// Lifecycle
	Start(ctx context.Context) error
	Stop() error

	// HTTP
	Router() *mux.Router
}

// =============================================================================
// Optional Capability Interfaces
// =============================================================================

// StatisticsProvider describes a service that exposes runtime statistics.
// Nothing in this package checks for it; the /info response takes its
// "statistics" from the function passed with WithStats.
type StatisticsProvider interface {
	// Statistics returns service-specific runtime statistics.
	Statistics() map[string]any
}

// Hydratable describes a service that can reload state from persistence.
// Nothing in this package checks for it; Start runs the function passed
// with WithHydrate, after the base service is initialized and before
// background workers start.
type Hydratable interface {
	Hydrate(ctx context.Context) error
}

// =============================================================================
// Health Check Interface
// =============================================================================

// HealthChecker provides custom health check logic.
type HealthChecker interface {
	// HealthStatus returns "healthy", "degraded", or "unhealthy".
	HealthStatus() string

	// HealthDetails returns detailed health information.
	HealthDetails() map[string]any
}
