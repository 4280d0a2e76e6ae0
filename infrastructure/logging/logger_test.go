package logging

import (
	"context"
	"testing"
	"time"
)

func TestNewDefaultsToInfoOnBadLevel(t *testing.T) {
	l := New("orchestrator", "not-a-level", "json")
	if l.Logger.GetLevel().String() != "info" {
		t.Fatalf("expected info level fallback, got %s", l.Logger.GetLevel())
	}
}

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "abc-123")
	if got := GetTraceID(ctx); got != "abc-123" {
		t.Fatalf("expected abc-123, got %q", got)
	}
	if got := GetTraceID(context.Background()); got != "" {
		t.Fatalf("expected empty trace id on bare context, got %q", got)
	}
}

func TestTestIDRoundTrip(t *testing.T) {
	ctx := WithTestID(context.Background(), "t-1")
	if got := GetTestID(ctx); got != "t-1" {
		t.Fatalf("expected t-1, got %q", got)
	}
}

func TestNewTraceIDIsUnique(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()
	if a == b {
		t.Fatalf("expected unique trace ids, got two copies of %q", a)
	}
}

func TestLogVaultCallDoesNotPanicOnNilError(t *testing.T) {
	l := New("orchestrator", "debug", "json")
	l.LogVaultCall(context.Background(), "orders", "producer", 1, time.Millisecond, nil)
}

func TestDefaultLoggerLazyInit(t *testing.T) {
	defaultLogger = nil
	if Default() == nil {
		t.Fatal("expected a non-nil default logger")
	}
}
