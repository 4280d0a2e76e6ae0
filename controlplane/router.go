package controlplane

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/busmesh/testorch/infrastructure/logging"
	"github.com/busmesh/testorch/infrastructure/middleware"
)

// RegisterRoutes binds the six §6 HTTP operations, per SPEC_FULL.md §6's
// method/path table, onto router. Route-local middleware (tracing, security
// headers) layers under the process-wide stack service.Run already applies
// (access log, metrics, panic-recover, body limit).
func RegisterRoutes(router *mux.Router, h *Handlers, logger *logging.Logger) {
	if logger == nil {
		logger = logging.NewFromEnv("controlplane")
	}
	sub := router.PathPrefix("").Subrouter()
	sub.Use(middleware.NewTracingMiddleware(logger).Handler)
	sub.Use(middleware.NewSecurityHeadersMiddleware(nil).Handler)

	sub.HandleFunc("/v1/tests", h.Submit).Methods(http.MethodPost)
	sub.HandleFunc("/v1/tests", h.QueueStatus).Methods(http.MethodGet)
	sub.HandleFunc("/v1/tests/{testId}/start", h.Start).Methods(http.MethodPost)
	sub.HandleFunc("/v1/tests/{testId}", h.Status).Methods(http.MethodGet)
	sub.HandleFunc("/v1/tests/{testId}/cancel", h.Cancel).Methods(http.MethodPost)
	sub.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeNotFoundRoute(w, r)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMethodNotAllowed(w, r)
	})
}
