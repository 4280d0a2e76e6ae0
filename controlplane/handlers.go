package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/busmesh/testorch/domain"
	"github.com/busmesh/testorch/infrastructure/logging"
)

// ControlPlane is the subset of dslgateway.ControlPlane this port calls.
// Declared locally so this package does not import dslgateway directly;
// a test double only has to satisfy these six methods.
type ControlPlane interface {
	InitializeTest(ctx context.Context, bucketRef string, tags []string) (domain.TestId, error)
	StartTest(ctx context.Context, testID domain.TestId, bucketRef string, tags []string) (accepted bool, reason string, err error)
	GetStatus(ctx context.Context, testID domain.TestId) (domain.TestStatus, error)
	GetQueueStatus(ctx context.Context, testIDFilter *domain.TestId) (domain.QueueStatus, error)
	CancelTest(ctx context.Context, testID domain.TestId) (cancelled bool, reason string, err error)
	Health(ctx context.Context) domain.HealthStatus
}

// Handlers wires the six §6 operations to a ControlPlane backend.
type Handlers struct {
	cp       ControlPlane
	validate *validator.Validate
	logger   *logging.Logger
}

// NewHandlers constructs a Handlers bound to cp.
func NewHandlers(cp ControlPlane, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewFromEnv("controlplane")
	}
	return &Handlers{cp: cp, validate: validator.New(), logger: logger}
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && ct != "application/json" {
		writeUnsupportedMediaType(w, "Content-Type must be application/json")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadRequest(w, "request body is not valid JSON")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationError(w, "request failed validation", map[string]any{"reason": err.Error()})
		return false
	}
	return true
}

// Submit handles POST /v1/tests.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}
	testID, err := h.cp.InitializeTest(r.Context(), req.BucketRef, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitResponse{TestID: testID, Message: "test created"})
}

// Start handles POST /v1/tests/{testId}/start.
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	testID := domain.TestId(mux.Vars(r)["testId"])

	var req StartRequest
	if !h.decode(w, r, &req) {
		return
	}

	accepted, reason, err := h.cp.StartTest(r.Context(), testID, req.BucketRef, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StartResponse{
		TestID:   testID,
		Accepted: accepted,
		TestType: req.TestType,
		Message:  reason,
	})
}

// Status handles GET /v1/tests/{testId}.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	testID := domain.TestId(mux.Vars(r)["testId"])

	status, err := h.cp.GetStatus(r.Context(), testID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(status))
}

func toStatusResponse(s domain.TestStatus) StatusResponse {
	resp := StatusResponse{
		TestID:    s.TestID,
		State:     s.State,
		BucketRef: s.BucketRef,
		Outcome:   string(s.Outcome),
	}
	if s.StartedAt != nil {
		ts := s.StartedAt.UTC().Format(time.RFC3339)
		resp.StartedAt = &ts
	}
	if s.EndedAt != nil {
		ts := s.EndedAt.UTC().Format(time.RFC3339)
		resp.EndedAt = &ts
	}
	if s.ErrorKind != domain.ErrorKindNone {
		resp.Error = &StatusError{Kind: s.ErrorKind, Message: s.ErrorMessage}
	}
	return resp
}

// QueueStatus handles GET /v1/tests.
func (h *Handlers) QueueStatus(w http.ResponseWriter, r *http.Request) {
	var filter *domain.TestId
	if raw := r.URL.Query().Get("testId"); raw != "" {
		id := domain.TestId(raw)
		filter = &id
	}

	qs, err := h.cp.GetQueueStatus(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QueueStatusResponse{CountsByState: qs.CountsByState, Executing: qs.Executing})
}

// Cancel handles POST /v1/tests/{testId}/cancel.
func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	testID := domain.TestId(mux.Vars(r)["testId"])

	cancelled, reason, err := h.cp.CancelTest(r.Context(), testID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CancelResponse{TestID: testID, Cancelled: cancelled, Message: reason})
}

// Health handles GET /healthz, delegating internally to queue-status per §6.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := h.cp.Health(r.Context())

	status := "healthy"
	actorSystem := "ready"
	if !health.Healthy {
		status = "unhealthy"
		actorSystem = "not_ready"
	}

	httpStatus := http.StatusOK
	if !health.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:      status,
		ActorSystem: actorSystem,
		Error:       health.Reason,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}
