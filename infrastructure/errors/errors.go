// Package errors provides unified error handling for the orchestration engine
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Configuration errors (1xxx) — fail submit/start synchronously
	ErrCodeInvalidConfiguration ErrorCode = "CFG_1001"
	ErrCodeInvalidBucketURI     ErrorCode = "CFG_1002"
	ErrCodeInvalidBootstrap     ErrorCode = "CFG_1003"

	// Validation errors (2xxx) — malformed directives, topic lists, glue args
	ErrCodeInvalidInput           ErrorCode = "VAL_2001"
	ErrCodeMissingParameter       ErrorCode = "VAL_2002"
	ErrCodeDuplicateTopic         ErrorCode = "VAL_2003"
	ErrCodeInvalidTopicDirective  ErrorCode = "VAL_2004"
	ErrCodeMissingFeaturesDir     ErrorCode = "VAL_2005"
	ErrCodeEmptyFeaturesDir       ErrorCode = "VAL_2006"
	ErrCodeMissingTopicDirectives ErrorCode = "VAL_2007"

	// Resource errors (3xxx)
	ErrCodeNotFound      ErrorCode = "RES_3001"
	ErrCodeAlreadyExists ErrorCode = "RES_3002"
	ErrCodeConflict      ErrorCode = "RES_3003"

	// Secret-service / auth errors (4xxx)
	ErrCodeUnauthorized ErrorCode = "AUTH_4001"
	ErrCodeForbidden    ErrorCode = "AUTH_4002"

	// Transport / external-call errors (5xxx) — classified by resilience (C10)
	ErrCodeTransientExternal  ErrorCode = "EXT_5001"
	ErrCodeTransientExhausted ErrorCode = "EXT_5002"
	ErrCodeStreamingFailure   ErrorCode = "EXT_5003"

	// Mapping errors (6xxx) — credential path resolution / template engine (C3)
	ErrCodeMappingFailed     ErrorCode = "MAP_6001"
	ErrCodePathNotResolved   ErrorCode = "MAP_6002"
	ErrCodeTransformFailed   ErrorCode = "MAP_6003"
	ErrCodeTemplateUnresolve ErrorCode = "MAP_6004"

	// Executor errors (7xxx) — scenario compile/run (C6)
	ErrCodeScenarioCompile ErrorCode = "EXEC_7001"
	ErrCodeScenarioRuntime ErrorCode = "EXEC_7002"

	// DSL gateway errors (8xxx) — C9's curried entry points
	ErrCodeDslNotInitialized       ErrorCode = "DSL_8001"
	ErrCodeProducerNotAvailable    ErrorCode = "DSL_8002"
	ErrCodeConsumerNotAvailable    ErrorCode = "DSL_8003"
	ErrCodeSchemaRegistryNotInit   ErrorCode = "DSL_8004"
	ErrCodeSchemaNotFound          ErrorCode = "DSL_8005"
	ErrCodeKafkaProduceError       ErrorCode = "DSL_8006"
	ErrCodeServiceTimeout          ErrorCode = "DSL_8007"
	ErrCodeServiceUnavailableGW    ErrorCode = "DSL_8008"
	ErrCodeActorSystemNotReady     ErrorCode = "DSL_8009"

	// Internal/supervisor errors (9xxx)
	ErrCodeInternal          ErrorCode = "SVC_9001"
	ErrCodeTeardownTimeout   ErrorCode = "SVC_9002"
	ErrCodeRateLimitExceeded ErrorCode = "SVC_9003"
)

// ServiceError represents a structured error with code, message, and HTTP status
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional details to the error
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new ServiceError
func New(code ErrorCode, message string, httpStatus int) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error with a ServiceError
func Wrap(code ErrorCode, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Configuration errors

func InvalidConfiguration(reason string) *ServiceError {
	return New(ErrCodeInvalidConfiguration, "invalid configuration", http.StatusBadRequest).
		WithDetails("reason", reason)
}

func InvalidBucketURI(uri string, err error) *ServiceError {
	return Wrap(ErrCodeInvalidBucketURI, "could not parse bucket URI", http.StatusBadRequest, err).
		WithDetails("uri", uri)
}

func InvalidBootstrapServers(value string) *ServiceError {
	return New(ErrCodeInvalidBootstrap, "invalid bootstrap servers list", http.StatusBadRequest).
		WithDetails("value", value)
}

// Validation errors

func InvalidInput(field, reason string) *ServiceError {
	return New(ErrCodeInvalidInput, "invalid input", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

func MissingParameter(param string) *ServiceError {
	return New(ErrCodeMissingParameter, "missing required parameter", http.StatusBadRequest).
		WithDetails("parameter", param)
}

func DuplicateTopic(topic string) *ServiceError {
	return New(ErrCodeDuplicateTopic, "topic appears more than once in directive set", http.StatusBadRequest).
		WithDetails("topic", topic)
}

func InvalidTopicDirective(path, reason string) *ServiceError {
	return New(ErrCodeInvalidTopicDirective, "invalid topic directive document", http.StatusBadRequest).
		WithDetails("path", path).
		WithDetails("reason", reason)
}

func MissingFeaturesDirectory(path string) *ServiceError {
	return New(ErrCodeMissingFeaturesDir, "features directory not found in bucket tree", http.StatusBadRequest).
		WithDetails("path", path)
}

func EmptyFeaturesDirectory(path string) *ServiceError {
	return New(ErrCodeEmptyFeaturesDir, "features directory has no .feature files", http.StatusBadRequest).
		WithDetails("path", path)
}

func MissingTopicDirectiveFile(path string) *ServiceError {
	return New(ErrCodeMissingTopicDirectives, "topic directive file not found in bucket tree", http.StatusBadRequest).
		WithDetails("path", path)
}

// Resource errors

func NotFound(resource, id string) *ServiceError {
	return New(ErrCodeNotFound, "resource not found", http.StatusNotFound).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func AlreadyExists(resource, id string) *ServiceError {
	return New(ErrCodeAlreadyExists, "resource already exists", http.StatusConflict).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func Conflict(message string) *ServiceError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

// Secret-service / auth errors

func Unauthorized(topic string, err error) *ServiceError {
	return Wrap(ErrCodeUnauthorized, "secret service rejected credentials", http.StatusUnauthorized, err).
		WithDetails("topic", topic)
}

func Forbidden(topic string) *ServiceError {
	return New(ErrCodeForbidden, "secret service denied access to topic", http.StatusForbidden).
		WithDetails("topic", topic)
}

// Transport / external-call errors

func TransientExternal(operation string, err error) *ServiceError {
	return Wrap(ErrCodeTransientExternal, "transient failure calling external service", http.StatusServiceUnavailable, err).
		WithDetails("operation", operation)
}

func TransientExhausted(operation string, attempts int, err error) *ServiceError {
	return Wrap(ErrCodeTransientExhausted, "retry budget exhausted", http.StatusGatewayTimeout, err).
		WithDetails("operation", operation).
		WithDetails("attempts", attempts)
}

func StreamingFailure(bucket, key string, err error) *ServiceError {
	return Wrap(ErrCodeStreamingFailure, "object-store streaming failure", http.StatusGatewayTimeout, err).
		WithDetails("bucket", bucket).
		WithDetails("key", key)
}

// Mapping errors (C3)

func MappingFailed(reason string) *ServiceError {
	return New(ErrCodeMappingFailed, "credential mapping failed", http.StatusBadRequest).
		WithDetails("reason", reason)
}

func PathNotResolved(path string) *ServiceError {
	return New(ErrCodePathNotResolved, "path expression did not resolve", http.StatusBadRequest).
		WithDetails("path", path)
}

func TransformFailed(transform, reason string) *ServiceError {
	return New(ErrCodeTransformFailed, "transformation step failed", http.StatusBadRequest).
		WithDetails("transform", transform).
		WithDetails("reason", reason)
}

func TemplateUnresolved(field string) *ServiceError {
	return New(ErrCodeTemplateUnresolve, "template field could not be resolved", http.StatusBadRequest).
		WithDetails("field", field)
}

// Executor errors (C6)

func ScenarioCompileError(feature string, err error) *ServiceError {
	return Wrap(ErrCodeScenarioCompile, "scenario failed to compile", http.StatusBadRequest, err).
		WithDetails("feature", feature)
}

func ScenarioRuntimeError(step string, err error) *ServiceError {
	return Wrap(ErrCodeScenarioRuntime, "scenario step failed", http.StatusInternalServerError, err).
		WithDetails("step", step)
}

// DSL gateway errors (C9)

func DslNotInitialized() *ServiceError {
	return New(ErrCodeDslNotInitialized, "dsl gateway has not been armed for this test", http.StatusServiceUnavailable)
}

func ProducerNotAvailable(topic string) *ServiceError {
	return New(ErrCodeProducerNotAvailable, "no producer registered for topic", http.StatusServiceUnavailable).
		WithDetails("topic", topic)
}

func ConsumerNotAvailable(topic string) *ServiceError {
	return New(ErrCodeConsumerNotAvailable, "no consumer registered for topic", http.StatusServiceUnavailable).
		WithDetails("topic", topic)
}

func SchemaRegistryNotInitialized() *ServiceError {
	return New(ErrCodeSchemaRegistryNotInit, "schema registry client not initialized", http.StatusServiceUnavailable)
}

func SchemaNotFound(subject string) *ServiceError {
	return New(ErrCodeSchemaNotFound, "schema not found for subject", http.StatusNotFound).
		WithDetails("subject", subject)
}

func KafkaProduceError(topic string, err error) *ServiceError {
	return Wrap(ErrCodeKafkaProduceError, "message bus produce failed", http.StatusServiceUnavailable, err).
		WithDetails("topic", topic)
}

func ServiceTimeout(operation string) *ServiceError {
	return New(ErrCodeServiceTimeout, "gateway call timed out", http.StatusGatewayTimeout).
		WithDetails("operation", operation)
}

func ServiceUnavailable(reason string) *ServiceError {
	return New(ErrCodeServiceUnavailableGW, "gateway circuit is open", http.StatusServiceUnavailable).
		WithDetails("reason", reason)
}

func ActorSystemNotReady() *ServiceError {
	return New(ErrCodeActorSystemNotReady, "supervisor for this test is not ready", http.StatusServiceUnavailable)
}

// Internal / supervisor errors

func Internal(message string, err error) *ServiceError {
	return Wrap(ErrCodeInternal, message, http.StatusInternalServerError, err)
}

func TeardownTimeout(testID string) *ServiceError {
	return New(ErrCodeTeardownTimeout, "child workers did not stop within the teardown deadline", http.StatusGatewayTimeout).
		WithDetails("test_id", testID)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(ErrCodeRateLimitExceeded, "rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// Helper functions

// IsServiceError checks if an error is a ServiceError
func IsServiceError(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}

// GetServiceError extracts a ServiceError from an error chain
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// GetHTTPStatus returns the HTTP status code for an error
func GetHTTPStatus(err error) int {
	if serviceErr := GetServiceError(err); serviceErr != nil {
		return serviceErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
