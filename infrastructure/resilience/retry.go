package resilience

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"time"

	orcherrors "github.com/busmesh/testorch/infrastructure/errors"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64 // 0-1, adds randomness
}

// DefaultRetryConfig returns sensible defaults for C10's retry budget.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Retry executes fn with exponential backoff, stopping early once fn returns
// a non-transient error (see Classify) since retrying those can never
// succeed. When every attempt fails transiently, the last error is returned
// wrapped as TransientExhausted.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !Classify(err) {
			return lastErr
		}

		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(addJitter(delay, cfg.Jitter)):
			}
			delay = nextDelay(delay, cfg)
		}
	}

	if svcErr := orcherrors.GetServiceError(lastErr); svcErr != nil && svcErr.Code == orcherrors.ErrCodeTransientExternal {
		return orcherrors.TransientExhausted(svcErr.Message, cfg.MaxAttempts, svcErr)
	}
	return orcherrors.TransientExhausted(lastErr.Error(), cfg.MaxAttempts, lastErr)
}

// Classify reports whether err represents a transient failure worth
// retrying: network I/O errors, HTTP 429/5xx, context deadline exceeded
// inside a sub-call, or an *errors.ServiceError whose code is
// ErrCodeTransientExternal or ErrCodeStreamingFailure. Everything else (validation, auth, not-found,
// mapping, executor failures) is classified non-transient and returned to
// the caller immediately instead of burning the retry budget.
func Classify(err error) bool {
	if err == nil {
		return false
	}

	if svcErr := orcherrors.GetServiceError(err); svcErr != nil {
		return svcErr.Code == orcherrors.ErrCodeTransientExternal || svcErr.Code == orcherrors.ErrCodeStreamingFailure
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}

// HTTPStatusError lets outbound clients (secretsadapter, storageadapter) wrap
// a non-2xx HTTP response so Classify can inspect its status code without
// the caller needing to know about this package's retry rules.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return "unexpected status code " + http.StatusText(e.StatusCode)
}

func nextDelay(current time.Duration, cfg RetryConfig) time.Duration {
	next := time.Duration(float64(current) * cfg.Multiplier)
	if next > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return next
}

func addJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	delta := float64(d) * jitter
	return d + time.Duration(rand.Float64()*delta*2-delta)
}
