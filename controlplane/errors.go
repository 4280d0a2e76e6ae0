package controlplane

import (
	"net/http"
	"time"

	"github.com/busmesh/testorch/infrastructure/errors"
	"github.com/busmesh/testorch/infrastructure/httputil"
)

// envelope is the §6 error shape: {error: <kind>, message, details?, timestamp}.
// It intentionally does not reuse infrastructure/httputil's generic
// {code, message, details, trace_id} ErrorResponse — the external interface
// names a fixed, closed set of ten kind strings, not a free-form code.
type envelope struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// kind is one of the ten closed error-kind strings §6 names.
type kind string

const (
	kindBadRequest          kind = "bad_request"
	kindValidationError     kind = "validation_error"
	kindUnsupportedMedia    kind = "unsupported_media_type"
	kindNotFound            kind = "not_found"
	kindMethodNotAllowed    kind = "method_not_allowed"
	kindTimeout             kind = "timeout"
	kindActorTimeout        kind = "actor_timeout"
	kindServiceUnavailable  kind = "service_unavailable"
	kindNotReady            kind = "not_ready"
	kindInternalServerError kind = "internal_server_error"
)

// httpStatusForKind is the §6 kind -> HTTP status table.
var httpStatusForKind = map[kind]int{
	kindBadRequest:          http.StatusBadRequest,
	kindValidationError:     http.StatusBadRequest,
	kindUnsupportedMedia:    http.StatusUnsupportedMediaType,
	kindNotFound:            http.StatusNotFound,
	kindMethodNotAllowed:    http.StatusMethodNotAllowed,
	kindTimeout:             http.StatusGatewayTimeout,
	kindActorTimeout:        http.StatusGatewayTimeout,
	kindServiceUnavailable:  http.StatusServiceUnavailable,
	kindNotReady:            http.StatusServiceUnavailable,
	kindInternalServerError: http.StatusInternalServerError,
}

// kindForServiceError maps infrastructure/errors' ErrorCode taxonomy onto
// the control plane's closed kind vocabulary. Codes outside the DSL/resource
// namespace are business errors the dispatcher surfaces from submit/start,
// and fold by their configured HTTP status: 400 into validation_error, 404
// into not_found, 503 into service_unavailable, 504 into timeout, anything
// else into internal_server_error.
func kindForServiceError(svcErr *errors.ServiceError) kind {
	switch svcErr.Code {
	case errors.ErrCodeNotFound:
		return kindNotFound
	case errors.ErrCodeServiceTimeout:
		return kindTimeout
	case errors.ErrCodeTeardownTimeout:
		return kindActorTimeout
	case errors.ErrCodeServiceUnavailableGW:
		return kindServiceUnavailable
	case errors.ErrCodeActorSystemNotReady:
		return kindNotReady
	}
	switch svcErr.HTTPStatus {
	case http.StatusBadRequest:
		return kindValidationError
	case http.StatusNotFound:
		return kindNotFound
	case http.StatusServiceUnavailable:
		return kindServiceUnavailable
	case http.StatusGatewayTimeout:
		return kindTimeout
	default:
		return kindInternalServerError
	}
}

// writeJSON writes a successful response body at status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// writeError renders err as the §6 envelope. A *errors.ServiceError carries
// its own classification; anything else is an unexpected internal error.
func writeError(w http.ResponseWriter, err error) {
	var k kind
	var message string
	var details map[string]any

	if svcErr := errors.GetServiceError(err); svcErr != nil {
		k = kindForServiceError(svcErr)
		message = svcErr.Message
		details = svcErr.Details
	} else {
		k = kindInternalServerError
		message = "internal server error"
	}

	writeEnvelope(w, k, message, details)
}

func writeEnvelope(w http.ResponseWriter, k kind, message string, details map[string]any) {
	status, ok := httpStatusForKind[k]
	if !ok {
		status = http.StatusInternalServerError
	}
	httputil.WriteJSON(w, status, envelope{
		Error:     string(k),
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeEnvelope(w, kindBadRequest, message, nil)
}

func writeUnsupportedMediaType(w http.ResponseWriter, message string) {
	writeEnvelope(w, kindUnsupportedMedia, message, nil)
}

func writeValidationError(w http.ResponseWriter, message string, details map[string]any) {
	writeEnvelope(w, kindValidationError, message, details)
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, kindMethodNotAllowed, "method not allowed", map[string]any{"method": r.Method, "path": r.URL.Path})
}

func writeNotFoundRoute(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, kindNotFound, "no such route", map[string]any{"path": r.URL.Path})
}
