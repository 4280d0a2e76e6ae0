// Package controlplane is the thin HTTP port (C11) exposing the six
// operations of the control-plane surface: submit, start, status,
// queue-status, cancel, health. It holds no business logic — every
// handler decodes and validates its request, calls straight into a
// dslgateway.ControlPlane-shaped dependency, and writes the JSON
// envelope the external interface requires.
package controlplane

import "github.com/busmesh/testorch/domain"

// SubmitRequest is the body of POST /v1/tests. Both fields are optional:
// an empty bucketRef defers binding to the subsequent start call.
type SubmitRequest struct {
	BucketRef string   `json:"bucketRef" validate:"omitempty"`
	Tags      []string `json:"tags" validate:"omitempty,dive,required"`
}

// SubmitResponse answers submit/initialize.
type SubmitResponse struct {
	TestID  domain.TestId `json:"testId"`
	Message string        `json:"message"`
}

// StartRequest is the body of POST /v1/tests/{testId}/start.
type StartRequest struct {
	BucketRef string   `json:"bucketRef" validate:"required"`
	TestType  string   `json:"testType" validate:"omitempty"`
	Tags      []string `json:"tags" validate:"omitempty,dive,required"`
}

// StartResponse answers start.
type StartResponse struct {
	TestID   domain.TestId `json:"testId"`
	Accepted bool          `json:"accepted"`
	TestType string        `json:"testType,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// StatusResponse answers status.
type StatusResponse struct {
	TestID    domain.TestId `json:"testId"`
	State     domain.State  `json:"state"`
	BucketRef string        `json:"bucketRef,omitempty"`
	StartedAt *string       `json:"startedAt,omitempty"`
	EndedAt   *string       `json:"endedAt,omitempty"`
	Outcome   string        `json:"outcome,omitempty"`
	Error     *StatusError  `json:"error,omitempty"`
}

// StatusError is the nested error describing why a test ended the way it
// did, distinct from the transport-level error envelope.
type StatusError struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// QueueStatusResponse answers queue-status.
type QueueStatusResponse struct {
	CountsByState map[domain.State]int `json:"countsByState"`
	Executing     *domain.TestId       `json:"executing,omitempty"`
}

// CancelResponse answers cancel.
type CancelResponse struct {
	TestID    domain.TestId `json:"testId"`
	Cancelled bool          `json:"cancelled"`
	Message   string        `json:"message,omitempty"`
}

// HealthResponse answers health.
type HealthResponse struct {
	Status      string `json:"status"`
	ActorSystem string `json:"actorSystem"`
	Error       string `json:"error,omitempty"`
	Timestamp   string `json:"timestamp"`
}
