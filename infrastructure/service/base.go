// Package service provides common process lifecycle infrastructure for the
// orchestrator daemon: health tracking, background workers, and standard
// HTTP routes layered on top of a gorilla/mux router.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/busmesh/testorch/infrastructure/logging"
)

const healthCheckTimeout = 5 * time.Second

// DependencyPing checks a single external dependency (the object store, the
// secret service, the message bus) and returns nil when it is reachable.
type DependencyPing func(ctx context.Context) error

// BaseConfig contains shared configuration for BaseService.
type BaseConfig struct {
	ID      string
	Name    string
	Version string
	Logger  *logging.Logger

	// Dependencies are named health probes checked on every CheckHealth call.
	Dependencies map[string]DependencyPing
}

// BaseService provides a consistent foundation for the orchestrator process:
// a router, a stop channel closed exactly once, optional hydrate/worker
// hooks, and cached dependency health.
type BaseService struct {
	id      string
	name    string
	version string
	router  *mux.Router

	stopCh   chan struct{}
	stopOnce sync.Once

	hydrate func(context.Context) error
	statsFn func() map[string]any
	workers []func(context.Context)

	dependencies  map[string]DependencyPing
	healthMu      sync.RWMutex
	depStatus     map[string]bool
	lastCheck     time.Time
	startTime     time.Time

	logger *logging.Logger
}

// NewBase constructs a BaseService from shared config.
func NewBase(cfg *BaseConfig) *BaseService {
	cfgValue := BaseConfig{}
	if cfg != nil {
		cfgValue = *cfg
	}

	logger := cfgValue.Logger
	if logger == nil {
		serviceName := cfgValue.ID
		if serviceName == "" {
			serviceName = "orchestratord"
		}
		logger = logging.NewFromEnv(serviceName)
	}

	deps := cfgValue.Dependencies
	if deps == nil {
		deps = map[string]DependencyPing{}
	}

	return &BaseService{
		id:           cfgValue.ID,
		name:         cfgValue.Name,
		version:      cfgValue.Version,
		router:       mux.NewRouter(),
		stopCh:       make(chan struct{}),
		dependencies: deps,
		depStatus:    make(map[string]bool, len(deps)),
		logger:       logger,
	}
}

// ID returns the service identifier.
func (b *BaseService) ID() string { return b.id }

// Name returns the service display name.
func (b *BaseService) Name() string { return b.name }

// Version returns the service build version.
func (b *BaseService) Version() string { return b.version }

// Router returns the gorilla/mux router used to serve HTTP traffic.
func (b *BaseService) Router() *mux.Router { return b.router }

// Logger returns the service's structured logger.
func (b *BaseService) Logger() *logging.Logger {
	if b == nil {
		return logging.NewFromEnv("orchestratord")
	}
	if b.logger != nil {
		return b.logger
	}
	b.logger = logging.NewFromEnv(b.id)
	return b.logger
}

// WithHydrate sets an optional hydrate hook executed during Start, after
// dependency wiring but before background workers are launched.
func (b *BaseService) WithHydrate(fn func(context.Context) error) *BaseService {
	b.hydrate = fn
	return b
}

// WithStats sets a statistics provider function for the /info endpoint.
func (b *BaseService) WithStats(fn func() map[string]any) *BaseService {
	b.statsFn = fn
	return b
}

// AddWorker registers a background worker started after hydrate completes.
// Workers receive the context and should respect context cancellation and
// StopChan().
func (b *BaseService) AddWorker(fn func(context.Context)) *BaseService {
	b.workers = append(b.workers, fn)
	return b
}

type tickerWorkerConfig struct {
	name           string
	runImmediately bool
}

// TickerWorkerOption configures AddTickerWorker behavior.
type TickerWorkerOption func(*tickerWorkerConfig)

// WithTickerWorkerName sets a friendly name used in error logs.
func WithTickerWorkerName(name string) TickerWorkerOption {
	return func(cfg *tickerWorkerConfig) {
		cfg.name = name
	}
}

// WithTickerWorkerImmediate causes the worker to run once immediately on
// start (before waiting for the first ticker interval).
func WithTickerWorkerImmediate() TickerWorkerOption {
	return func(cfg *tickerWorkerConfig) {
		cfg.runImmediately = true
	}
}

// AddTickerWorker registers a periodic background worker.
func (b *BaseService) AddTickerWorker(interval time.Duration, fn func(context.Context) error, opts ...TickerWorkerOption) *BaseService {
	cfg := tickerWorkerConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	worker := func(ctx context.Context) {
		logWorkerError := func(err error) {
			if err == nil {
				return
			}
			entry := b.Logger().WithContext(ctx).WithError(err)
			if cfg.name != "" {
				entry = entry.WithField("worker", cfg.name)
			}
			entry.Warn("worker error")
		}

		if cfg.runImmediately {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			default:
			}
			if err := fn(ctx); err != nil {
				logWorkerError(err)
			}
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					logWorkerError(err)
				}
			}
		}
	}
	b.workers = append(b.workers, worker)
	return b
}

// StopChan exposes the stop channel for worker goroutines.
func (b *BaseService) StopChan() <-chan struct{} {
	return b.stopCh
}

// Start runs hydrate once then spins up background workers.
func (b *BaseService) Start(ctx context.Context) error {
	b.healthMu.Lock()
	if b.startTime.IsZero() {
		b.startTime = time.Now()
	}
	b.healthMu.Unlock()

	if b.hydrate != nil {
		if err := b.hydrate(ctx); err != nil {
			return fmt.Errorf("hydrate: %w", err)
		}
	}

	for _, w := range b.workers {
		worker := w
		go worker(ctx)
	}
	return nil
}

// Stop signals workers. Idempotent via sync.Once.
func (b *BaseService) Stop() error {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	return nil
}

// WorkerCount returns the number of registered workers.
func (b *BaseService) WorkerCount() int {
	return len(b.workers)
}

// Workers returns the number of registered background workers. Alias of
// WorkerCount.
func (b *BaseService) Workers() int {
	return b.WorkerCount()
}

// CheckHealth refreshes the cached health state by probing every registered
// dependency concurrently.
func (b *BaseService) CheckHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	var wg sync.WaitGroup
	results := make(map[string]bool, len(b.dependencies))
	var mu sync.Mutex

	for name, ping := range b.dependencies {
		wg.Add(1)
		go func(n string, p DependencyPing) {
			defer wg.Done()
			healthy := p(ctx) == nil
			mu.Lock()
			results[n] = healthy
			mu.Unlock()
		}(name, ping)
	}
	wg.Wait()

	b.healthMu.Lock()
	b.depStatus = results
	b.lastCheck = time.Now()
	b.healthMu.Unlock()
}

// HealthStatus returns the aggregated health status string: "healthy",
// "degraded", or "unhealthy".
func (b *BaseService) HealthStatus() string {
	b.CheckHealth()
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.healthStatusLocked()
}

// HealthDetails returns a map describing the most recent health state.
func (b *BaseService) HealthDetails() map[string]any {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()

	deps := make(map[string]bool, len(b.depStatus))
	for k, v := range b.depStatus {
		deps[k] = v
	}

	details := map[string]any{
		"dependencies": deps,
	}

	if !b.lastCheck.IsZero() {
		details["last_check"] = b.lastCheck.Format(time.RFC3339)
	} else {
		details["last_check"] = ""
	}

	uptime := time.Duration(0)
	if !b.startTime.IsZero() {
		uptime = time.Since(b.startTime)
	}
	details["uptime"] = uptime.String()

	return details
}

func (b *BaseService) healthStatusLocked() string {
	if len(b.depStatus) == 0 {
		return "healthy"
	}
	allHealthy := true
	anyHealthy := false
	for _, healthy := range b.depStatus {
		if healthy {
			anyHealthy = true
		} else {
			allHealthy = false
		}
	}
	if allHealthy {
		return "healthy"
	}
	if anyHealthy {
		return "degraded"
	}
	return "unhealthy"
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ Runner = (*BaseService)(nil)
var _ HealthChecker = (*BaseService)(nil)
