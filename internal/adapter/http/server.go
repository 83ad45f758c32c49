// Package http exposes the service's operational endpoints and the
// read-only analytics artifacts: per-road risk profiles, classifier
// metrics, and a severity prediction entry point.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/traffic-risk-etl/internal/artifact"
	"github.com/couchcryptid/traffic-risk-etl/internal/domain"
	"github.com/couchcryptid/traffic-risk-etl/internal/risk"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes health, readiness, metrics, and artifact HTTP endpoints.
type Server struct {
	httpServer *http.Server
	artifacts  *artifact.Store
	logger     *slog.Logger
}

// NewServer creates the HTTP server. Artifact endpoints read the current
// snapshot from the artifact store; they never block on ingestion or
// training.
func NewServer(addr string, ready ReadinessChecker, artifacts *artifact.Store, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		artifacts: artifacts,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/risk-profiles", s.handleRiskProfiles)
	mux.HandleFunc("GET /api/v1/classifier/metrics", s.handleClassifierMetrics)
	mux.HandleFunc("POST /api/v1/predict", s.handlePredict)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleRiskProfiles returns the current profile set, most dangerous road
// first. An empty list is a valid answer before the first aggregation run.
func (s *Server) handleRiskProfiles(w http.ResponseWriter, _ *http.Request) {
	profiles := s.artifacts.Profiles()
	if profiles == nil {
		profiles = []risk.Profile{} // an array, possibly empty, never null
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(profiles),
		"roads": profiles,
	})
}

func (s *Server) handleClassifierMetrics(w http.ResponseWriter, _ *http.Request) {
	model := s.artifacts.Classifier()
	if model == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no trained model"})
		return
	}
	writeJSON(w, http.StatusOK, model)
}

// predictRequest carries a named feature map; the server validates it
// against the trained model's recorded feature list.
type predictRequest struct {
	Features map[string]float64 `json:"features"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	model := s.artifacts.Classifier()
	if model == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no trained model"})
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	severity, err := model.Predict(req.Features)
	if err != nil {
		var mismatch *domain.FeatureShapeMismatchError
		if errors.As(err, &mismatch) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": mismatch.Error()})
			return
		}
		s.logger.Error("prediction failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "prediction failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"severity": severity,
		"features": model.Features,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
