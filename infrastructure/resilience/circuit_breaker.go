// Package resilience provides the retry and circuit-breaking primitives C10
// wraps around every external call the engine makes (the secret service,
// the object store, the message bus). Circuit breaking is backed by
// github.com/sony/gobreaker; retry/backoff is hand-rolled to keep the
// transient/non-transient classification step (see retry.go) front and
// center, matching the teacher's original "preserve the call signature,
// swap the internals" adapter shape.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/busmesh/testorch/infrastructure/logging"
)

// State represents circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func fromGobreakerState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Sentinel errors surfaced by Execute when the breaker itself refuses the call.
var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config configures a CircuitBreaker.
type Config struct {
	MaxFailures   int           // consecutive failures before opening
	Timeout       time.Duration // time in open state before half-open
	HalfOpenMax   int           // max requests allowed in half-open
	OnStateChange func(from, to State)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		HalfOpenMax: 3,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker behind the Execute(ctx, fn)
// signature every C1/C2/C4/C5 client calls through.
type CircuitBreaker struct {
	gb *gobreaker.CircuitBreaker
}

// New creates a CircuitBreaker backed by sony/gobreaker.
func New(cfg Config) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}

	maxFailures := uint32(cfg.MaxFailures)

	settings := gobreaker.Settings{
		MaxRequests: uint32(cfg.HalfOpenMax),
		Interval:    0,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	}

	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(fromGobreakerState(from), fromGobreakerState(to))
		}
	}

	return &CircuitBreaker{gb: gobreaker.NewCircuitBreaker(settings)}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	return fromGobreakerState(cb.gb.State())
}

// Execute runs fn with circuit breaker protection. ctx is accepted for call-
// site symmetry with Retry; gobreaker itself does not honor cancellation, so
// callers needing a hard deadline must enforce it inside fn.
func (cb *CircuitBreaker) Execute(_ context.Context, fn func() error) error {
	_, err := cb.gb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return mapGobreakerError(err)
}

func mapGobreakerError(err error) error {
	switch err {
	case gobreaker.ErrOpenState:
		return ErrCircuitOpen
	case gobreaker.ErrTooManyRequests:
		return ErrTooManyRequests
	default:
		return err
	}
}

// ---------------------------------------------------------------------------
// Service-level convenience configs
// ---------------------------------------------------------------------------

// GatewayCircuitBreakerConfig provides preconfigured circuit breaker settings
// for a DSL gateway (C9) entry point guarding one external resource (vault,
// bus broker, object store).
type GatewayCircuitBreakerConfig struct {
	MaxFailures    int
	TimeoutSeconds int
	HalfOpenMax    int
	Logger         *logging.Logger
}

// DefaultGatewayCBConfig returns a circuit breaker configuration suitable for
// most outbound clients.
func DefaultGatewayCBConfig(logger *logging.Logger) Config {
	return GatewayCBConfig(GatewayCircuitBreakerConfig{
		MaxFailures:    5,
		TimeoutSeconds: 30,
		HalfOpenMax:    3,
		Logger:         logger,
	})
}

// StrictGatewayCBConfig returns a conservative configuration for the secret
// service, which should fail fast rather than let a test hang waiting on
// credentials.
func StrictGatewayCBConfig(logger *logging.Logger) Config {
	return GatewayCBConfig(GatewayCircuitBreakerConfig{
		MaxFailures:    3,
		TimeoutSeconds: 60,
		HalfOpenMax:    1,
		Logger:         logger,
	})
}

// LenientGatewayCBConfig returns a lenient configuration for the message bus,
// which can tolerate more transient broker blips before isolating a topic.
func LenientGatewayCBConfig(logger *logging.Logger) Config {
	return GatewayCBConfig(GatewayCircuitBreakerConfig{
		MaxFailures:    10,
		TimeoutSeconds: 15,
		HalfOpenMax:    5,
		Logger:         logger,
	})
}

// GatewayCBConfig builds a Config from GatewayCircuitBreakerConfig, wiring
// state-change logging when a Logger is supplied.
func GatewayCBConfig(cfg GatewayCircuitBreakerConfig) Config {
	cbConfig := Config{
		MaxFailures: cfg.MaxFailures,
		Timeout:     SecondsToDuration(cfg.TimeoutSeconds),
		HalfOpenMax: cfg.HalfOpenMax,
	}

	if cbConfig.MaxFailures <= 0 {
		cbConfig.MaxFailures = 5
	}
	if cbConfig.Timeout <= 0 {
		cbConfig.Timeout = 30 * time.Second
	}
	if cbConfig.HalfOpenMax <= 0 {
		cbConfig.HalfOpenMax = 3
	}

	if cfg.Logger != nil {
		cbConfig.OnStateChange = func(from, to State) {
			cfg.Logger.WithFields(map[string]interface{}{
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("circuit breaker state changed")
		}
	}

	return cbConfig
}

// SecondsToDuration converts seconds to a time.Duration.
func SecondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
