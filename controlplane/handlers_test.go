package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/busmesh/testorch/domain"
	orcherrors "github.com/busmesh/testorch/infrastructure/errors"
)

type fakeControlPlane struct {
	submitID     domain.TestId
	submitErr    error
	startAccept  bool
	startReason  string
	startErr     error
	status       domain.TestStatus
	statusErr    error
	queueStatus  domain.QueueStatus
	queueErr     error
	cancelOK     bool
	cancelReason string
	cancelErr    error
	health       domain.HealthStatus
}

func (f *fakeControlPlane) InitializeTest(ctx context.Context, bucketRef string, tags []string) (domain.TestId, error) {
	return f.submitID, f.submitErr
}

func (f *fakeControlPlane) StartTest(ctx context.Context, testID domain.TestId, bucketRef string, tags []string) (bool, string, error) {
	return f.startAccept, f.startReason, f.startErr
}

func (f *fakeControlPlane) GetStatus(ctx context.Context, testID domain.TestId) (domain.TestStatus, error) {
	return f.status, f.statusErr
}

func (f *fakeControlPlane) GetQueueStatus(ctx context.Context, testIDFilter *domain.TestId) (domain.QueueStatus, error) {
	return f.queueStatus, f.queueErr
}

func (f *fakeControlPlane) CancelTest(ctx context.Context, testID domain.TestId) (bool, string, error) {
	return f.cancelOK, f.cancelReason, f.cancelErr
}

func (f *fakeControlPlane) Health(ctx context.Context) domain.HealthStatus {
	return f.health
}

func newTestRouter(cp *fakeControlPlane) *mux.Router {
	h := NewHandlers(cp, nil)
	router := mux.NewRouter()
	RegisterRoutes(router, h, nil)
	return router
}

func doRequest(router *mux.Router, method, path string, body []byte) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmit_HappyPath(t *testing.T) {
	cp := &fakeControlPlane{submitID: "t-1"}
	router := newTestRouter(cp)

	rec := doRequest(router, http.MethodPost, "/v1/tests", []byte(`{"bucketRef":"s3://bucket/a"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SubmitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TestID != "t-1" {
		t.Fatalf("expected t-1, got %s", resp.TestID)
	}
}

func TestSubmit_MalformedJSONIsBadRequest(t *testing.T) {
	cp := &fakeControlPlane{}
	router := newTestRouter(cp)

	rec := doRequest(router, http.MethodPost, "/v1/tests", []byte(`{not json`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error != string(kindBadRequest) {
		t.Fatalf("expected bad_request kind, got %s", env.Error)
	}
}

func TestStart_MissingBucketRefFailsValidation(t *testing.T) {
	cp := &fakeControlPlane{startAccept: true}
	router := newTestRouter(cp)

	rec := doRequest(router, http.MethodPost, "/v1/tests/t-1/start", []byte(`{}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error != string(kindValidationError) {
		t.Fatalf("expected validation_error kind, got %s", env.Error)
	}
}

func TestStart_DelegatesAndAccepts(t *testing.T) {
	cp := &fakeControlPlane{startAccept: true}
	router := newTestRouter(cp)

	rec := doRequest(router, http.MethodPost, "/v1/tests/t-1/start", []byte(`{"bucketRef":"s3://bucket/a"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp StartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Accepted || resp.TestID != "t-1" {
		t.Fatalf("expected accepted for t-1, got %+v", resp)
	}
}

func TestStatus_NotFoundMapsToNotFoundKind(t *testing.T) {
	cp := &fakeControlPlane{statusErr: orcherrors.NotFound("test", "t-404")}
	router := newTestRouter(cp)

	rec := doRequest(router, http.MethodGet, "/v1/tests/t-404", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error != string(kindNotFound) {
		t.Fatalf("expected not_found kind, got %s", env.Error)
	}
}

func TestStatus_ReportsErrorKindOnFailedTest(t *testing.T) {
	cp := &fakeControlPlane{status: domain.TestStatus{
		TestID:       "t-1",
		State:        domain.StateFailed,
		Outcome:      domain.OutcomeFailed,
		ErrorKind:    domain.ErrorKindExecutor,
		ErrorMessage: "scenario step failed",
	}}
	router := newTestRouter(cp)

	rec := doRequest(router, http.MethodGet, "/v1/tests/t-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Kind != domain.ErrorKindExecutor {
		t.Fatalf("expected executor error kind, got %+v", resp.Error)
	}
}

func TestQueueStatus_ReturnsCounts(t *testing.T) {
	cp := &fakeControlPlane{queueStatus: domain.QueueStatus{
		CountsByState: map[domain.State]int{domain.StateExecuting: 1},
	}}
	router := newTestRouter(cp)

	rec := doRequest(router, http.MethodGet, "/v1/tests", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp QueueStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CountsByState[domain.StateExecuting] != 1 {
		t.Fatalf("expected 1 executing, got %+v", resp.CountsByState)
	}
}

func TestCancel_Delegates(t *testing.T) {
	cp := &fakeControlPlane{cancelOK: true, cancelReason: "cancelled by operator"}
	router := newTestRouter(cp)

	rec := doRequest(router, http.MethodPost, "/v1/tests/t-1/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp CancelResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Cancelled {
		t.Fatalf("expected cancelled=true, got %+v", resp)
	}
}

func TestHealth_HealthyReturns200(t *testing.T) {
	cp := &fakeControlPlane{health: domain.HealthStatus{Healthy: true}}
	router := newTestRouter(cp)

	rec := doRequest(router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" {
		t.Fatalf("expected healthy, got %s", resp.Status)
	}
}

func TestHealth_UnhealthyReturns503(t *testing.T) {
	cp := &fakeControlPlane{health: domain.HealthStatus{Healthy: false, Reason: "dispatcher circuit is open"}}
	router := newTestRouter(cp)

	rec := doRequest(router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRouter_UnknownPathIsNotFoundEnvelope(t *testing.T) {
	cp := &fakeControlPlane{}
	router := newTestRouter(cp)

	rec := doRequest(router, http.MethodGet, "/v1/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error != string(kindNotFound) {
		t.Fatalf("expected not_found kind, got %s", env.Error)
	}
}

func TestRouter_WrongMethodIsMethodNotAllowedEnvelope(t *testing.T) {
	cp := &fakeControlPlane{}
	router := newTestRouter(cp)

	rec := doRequest(router, http.MethodDelete, "/v1/tests", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error != string(kindMethodNotAllowed) {
		t.Fatalf("expected method_not_allowed kind, got %s", env.Error)
	}
}
