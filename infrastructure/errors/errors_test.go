package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestServiceError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ServiceError
		want string
	}{
		{
			name: "error without underlying error",
			err:  New(ErrCodeNotFound, "test message", http.StatusNotFound),
			want: "[RES_3001] test message",
		},
		{
			name: "error with underlying error",
			err:  Wrap(ErrCodeInternal, "test message", http.StatusInternalServerError, errors.New("underlying")),
			want: "[SVC_9001] test message: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServiceError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(ErrCodeInternal, "test", http.StatusInternalServerError, underlying)

	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
}

func TestServiceError_WithDetails(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test", http.StatusBadRequest)
	err.WithDetails("field", "topics").WithDetails("reason", "empty")

	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
	if err.Details["field"] != "topics" {
		t.Errorf("Details[field] = %v, want topics", err.Details["field"])
	}
	if err.Details["reason"] != "empty" {
		t.Errorf("Details[reason] = %v, want empty", err.Details["reason"])
	}
}

func TestDuplicateTopic(t *testing.T) {
	err := DuplicateTopic("orders")

	if err.Code != ErrCodeDuplicateTopic {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeDuplicateTopic)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusBadRequest)
	}
	if err.Details["topic"] != "orders" {
		t.Errorf("Details[topic] = %v, want orders", err.Details["topic"])
	}
}

func TestInvalidBootstrapServers(t *testing.T) {
	err := InvalidBootstrapServers("")

	if err.Code != ErrCodeInvalidBootstrap {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidBootstrap)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusBadRequest)
	}
}

func TestTransientExternal(t *testing.T) {
	underlying := errors.New("connection reset")
	err := TransientExternal("vault-call", underlying)

	if err.Code != ErrCodeTransientExternal {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeTransientExternal)
	}
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusServiceUnavailable)
	}
	if err.Err != underlying {
		t.Errorf("Err = %v, want %v", err.Err, underlying)
	}
}

func TestTransientExhausted(t *testing.T) {
	underlying := errors.New("timeout")
	err := TransientExhausted("vault-call", 5, underlying)

	if err.Code != ErrCodeTransientExhausted {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeTransientExhausted)
	}
	if err.HTTPStatus != http.StatusGatewayTimeout {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusGatewayTimeout)
	}
	if err.Details["attempts"] != 5 {
		t.Errorf("Details[attempts] = %v, want 5", err.Details["attempts"])
	}
}

func TestUnauthorized(t *testing.T) {
	underlying := errors.New("401 from vault")
	err := Unauthorized("orders", underlying)

	if err.Code != ErrCodeUnauthorized {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeUnauthorized)
	}
	if err.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusUnauthorized)
	}
	if err.Details["topic"] != "orders" {
		t.Errorf("Details[topic] = %v, want orders", err.Details["topic"])
	}
}

func TestPathNotResolved(t *testing.T) {
	err := PathNotResolved("$.credentials.password")

	if err.Code != ErrCodePathNotResolved {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodePathNotResolved)
	}
	if err.Details["path"] != "$.credentials.password" {
		t.Errorf("Details[path] = %v, want $.credentials.password", err.Details["path"])
	}
}

func TestScenarioCompileError(t *testing.T) {
	underlying := errors.New("unexpected token")
	err := ScenarioCompileError("checkout.feature", underlying)

	if err.Code != ErrCodeScenarioCompile {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeScenarioCompile)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusBadRequest)
	}
}

func TestDslNotInitialized(t *testing.T) {
	err := DslNotInitialized()

	if err.Code != ErrCodeDslNotInitialized {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeDslNotInitialized)
	}
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusServiceUnavailable)
	}
}

func TestProducerNotAvailable(t *testing.T) {
	err := ProducerNotAvailable("orders")

	if err.Code != ErrCodeProducerNotAvailable {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeProducerNotAvailable)
	}
	if err.Details["topic"] != "orders" {
		t.Errorf("Details[topic] = %v, want orders", err.Details["topic"])
	}
}

func TestActorSystemNotReady(t *testing.T) {
	err := ActorSystemNotReady()

	if err.Code != ErrCodeActorSystemNotReady {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeActorSystemNotReady)
	}
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusServiceUnavailable)
	}
}

func TestTeardownTimeout(t *testing.T) {
	err := TeardownTimeout("t-1")

	if err.Code != ErrCodeTeardownTimeout {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeTeardownTimeout)
	}
	if err.HTTPStatus != http.StatusGatewayTimeout {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusGatewayTimeout)
	}
	if err.Details["test_id"] != "t-1" {
		t.Errorf("Details[test_id] = %v, want t-1", err.Details["test_id"])
	}
}

func TestInternal(t *testing.T) {
	underlying := errors.New("nil pointer")
	err := Internal("internal error", underlying)

	if err.Code != ErrCodeInternal {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInternal)
	}
	if err.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusInternalServerError)
	}
	if err.Err != underlying {
		t.Errorf("Err = %v, want %v", err.Err, underlying)
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound("test", "t-123")

	if err.Code != ErrCodeNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeNotFound)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusNotFound)
	}
	if err.Details["id"] != "t-123" {
		t.Errorf("Details[id] = %v, want t-123", err.Details["id"])
	}
}

func TestConflict(t *testing.T) {
	err := Conflict("test already running")

	if err.Code != ErrCodeConflict {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeConflict)
	}
	if err.HTTPStatus != http.StatusConflict {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusConflict)
	}
}

func TestIsServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "service error",
			err:  New(ErrCodeInternal, "test", http.StatusInternalServerError),
			want: true,
		},
		{
			name: "standard error",
			err:  errors.New("standard error"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsServiceError(tt.err); got != tt.want {
				t.Errorf("IsServiceError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetServiceError(t *testing.T) {
	serviceErr := New(ErrCodeInternal, "test", http.StatusInternalServerError)
	standardErr := errors.New("standard error")

	tests := []struct {
		name string
		err  error
		want *ServiceError
	}{
		{name: "service error", err: serviceErr, want: serviceErr},
		{name: "standard error", err: standardErr, want: nil},
		{name: "nil error", err: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetServiceError(tt.err)
			if got != tt.want {
				t.Errorf("GetServiceError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "service error",
			err:  New(ErrCodeUnauthorized, "test", http.StatusUnauthorized),
			want: http.StatusUnauthorized,
		},
		{
			name: "standard error",
			err:  errors.New("standard error"),
			want: http.StatusInternalServerError,
		},
		{
			name: "nil error",
			err:  nil,
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetHTTPStatus(tt.err); got != tt.want {
				t.Errorf("GetHTTPStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRateLimitExceeded(t *testing.T) {
	err := RateLimitExceeded(100, "1m")
	if err.Code != ErrCodeRateLimitExceeded {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeRateLimitExceeded)
	}
	if err.HTTPStatus != http.StatusTooManyRequests {
		t.Errorf("HTTPStatus = %v, want %v", err.HTTPStatus, http.StatusTooManyRequests)
	}
	if err.Details["limit"] != 100 {
		t.Errorf("Details[limit] = %v, want 100", err.Details["limit"])
	}
}
