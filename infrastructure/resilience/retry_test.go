package resilience

import (
	"context"
	"net/http"
	"testing"
	"time"

	orcherrors "github.com/busmesh/testorch/infrastructure/errors"
)

func TestRetry_Success(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}

	err := Retry(context.Background(), cfg, func() error {
		return nil
	})

	if err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestRetry_EventualSuccess(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}
	attempts := 0

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return &HTTPStatusError{StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_TransientExhaustsBudget(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}

	err := Retry(context.Background(), cfg, func() error {
		return &HTTPStatusError{StatusCode: http.StatusBadGateway}
	})

	svcErr := orcherrors.GetServiceError(err)
	if svcErr == nil || svcErr.Code != orcherrors.ErrCodeTransientExhausted {
		t.Fatalf("expected ErrCodeTransientExhausted, got %v", err)
	}
}

func TestRetry_NonTransientReturnsImmediately(t *testing.T) {
	testErr := orcherrors.InvalidInput("topic", "empty")
	attempts := 0

	err := Retry(context.Background(), RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		attempts++
		return testErr
	})

	if err != testErr {
		t.Errorf("expected testErr, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected non-transient error to stop after 1 attempt, got %d", attempts)
	}
}

func TestClassify(t *testing.T) {
	if Classify(nil) {
		t.Error("nil should not be classified as transient")
	}
	if !Classify(&HTTPStatusError{StatusCode: http.StatusTooManyRequests}) {
		t.Error("429 should be transient")
	}
	if !Classify(&HTTPStatusError{StatusCode: http.StatusInternalServerError}) {
		t.Error("5xx should be transient")
	}
	if Classify(&HTTPStatusError{StatusCode: http.StatusNotFound}) {
		t.Error("404 should not be transient")
	}
	if Classify(orcherrors.NotFound("topic", "orders")) {
		t.Error("NotFound should not be transient")
	}
	if !Classify(orcherrors.TransientExternal("vault-call", nil)) {
		t.Error("TransientExternal should be transient")
	}
}
