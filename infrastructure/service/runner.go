package service

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/busmesh/testorch/infrastructure/logging"
	"github.com/busmesh/testorch/infrastructure/metrics"
	"github.com/busmesh/testorch/infrastructure/middleware"
)

// Run is the orchestrator's process entry point. It applies the standard
// middleware stack, starts the HTTP server, blocks until SIGINT/SIGTERM,
// then drains in-flight requests and stops the Runner.
func Run(svc Runner, cfg ServerConfig, logger *logging.Logger) {
	ctx := context.Background()

	applyMiddleware(svc, svc.ID(), logger, cfg.MetricsEnabled)

	if err := svc.Start(ctx); err != nil {
		log.Fatalf("failed to start %s: %v", svc.Name(), err)
	}

	port := resolvePort(cfg.Port)
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           svc.Router(),
		ReadTimeout:       nonZero(cfg.ReadTimeout, 30*time.Second),
		ReadHeaderTimeout: nonZero(cfg.ReadHeaderTimeout, 10*time.Second),
		WriteTimeout:      nonZero(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:       nonZero(cfg.IdleTimeout, 120*time.Second),
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Printf("%s listening on port %s", svc.Name(), port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down...")
	shutdownTimeout := nonZero(cfg.ShutdownTimeout, 30*time.Second)
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		log.Printf("service stop error: %v", err)
	}
	log.Println("stopped")
}

func applyMiddleware(svc Runner, serviceName string, logger *logging.Logger, metricsEnabled bool) {
	svc.Router().Use(middleware.LoggingMiddleware(logger))
	svc.Router().Use(middleware.NewRecoveryMiddleware(logger).Handler)
	if metricsEnabled && metrics.Enabled() {
		collector := metrics.Init(serviceName)
		svc.Router().Use(middleware.MetricsMiddleware(serviceName, collector))
		svc.Router().Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	svc.Router().Use(middleware.NewBodyLimitMiddleware(0).Handler)
}

func resolvePort(configured string) string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	if configured != "" {
		return configured
	}
	return "8080"
}

func nonZero(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
