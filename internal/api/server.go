// Package api exposes the HTTP interface for the crawler service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/regwatch-id/bpk-crawler/internal/config"
	"github.com/regwatch-id/bpk-crawler/internal/regwatch"
)

// JobRunner launches and cancels crawl jobs. Satisfied by the orchestrator.
type JobRunner interface {
	Launch(jobID string)
	Cancel(ctx context.Context, jobID string) error
}

// Server wires HTTP handlers to the job store and orchestrator.
type Server struct {
	router chi.Router
	jobs   regwatch.JobStore
	runner JobRunner
	idGen  regwatch.IDGenerator
	clock  regwatch.Clock
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobs regwatch.JobStore,
	runner JobRunner,
	idGen regwatch.IDGenerator,
	clock regwatch.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		jobs:   jobs,
		runner: runner,
		idGen:  idGen,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(timeoutMiddleware(cfg.RequestTimeout()))
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/crawl", s.submitCrawl)
		r.Route("/crawl/jobs", func(r chi.Router) {
			r.Get("/", s.listJobs)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Post("/cancel", s.cancelJob)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type crawlRequest struct {
	MaxItems  *int    `json:"max_items"`
	Years     []int   `json:"years"`
	JenisIDs  []int   `json:"jenis_ids"`
	CreatedBy string  `json:"created_by"`
	Rate      float64 `json:"rate"`
}

// submitCrawl validates the request, persists a pending job, and launches it
// in the background. The 202 response carries only the job ID; progress is
// polled through the job endpoints.
func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	params, err := s.toParameters(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "generate job id")
		return
	}
	now := s.clock.Now()
	job := regwatch.CrawlJob{
		ID:         jobID,
		Status:     regwatch.JobStatusPending,
		Parameters: params,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.jobs.Create(r.Context(), job); err != nil {
		s.logger.Error("create job failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "create job")
		return
	}
	s.runner.Launch(jobID)
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(regwatch.JobStatusPending),
	})
}

func (s *Server) toParameters(req crawlRequest) (regwatch.CrawlParameters, error) {
	if req.CreatedBy == "" {
		return regwatch.CrawlParameters{}, errors.New("created_by is required")
	}
	params := regwatch.CrawlParameters{
		MaxItems:  s.cfg.Crawler.MaxItemsDefault,
		Years:     req.Years,
		JenisIDs:  req.JenisIDs,
		CreatedBy: req.CreatedBy,
		Rate:      req.Rate,
	}
	if req.Rate < 0 {
		return regwatch.CrawlParameters{}, errors.New("rate must be >= 0")
	}
	if req.MaxItems != nil {
		if *req.MaxItems <= 0 {
			return regwatch.CrawlParameters{}, errors.New("max_items must be > 0")
		}
		params.MaxItems = *req.MaxItems
	}
	if len(params.Years) == 0 {
		params.Years = append([]int(nil), s.cfg.Crawler.YearsDefault...)
	}
	for _, y := range params.Years {
		if y < 1900 || y > 2100 {
			return regwatch.CrawlParameters{}, fmt.Errorf("invalid year %d", y)
		}
	}
	if len(params.JenisIDs) == 0 {
		params.JenisIDs = append([]int(nil), s.cfg.Crawler.JenisIDsDefault...)
	}
	for _, id := range params.JenisIDs {
		if id <= 0 {
			return regwatch.CrawlParameters{}, fmt.Errorf("invalid jenis id %d", id)
		}
	}
	return params, nil
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}
	jobs, err := s.jobs.List(r.Context(), page, limit)
	if err != nil {
		s.logger.Error("list jobs failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "list jobs")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"page":  page,
		"limit": limit,
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.Get(r.Context(), jobID)
	if errors.Is(err, regwatch.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("get job failed", zap.String("job_id", jobID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "get job")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := s.jobs.Get(r.Context(), jobID); errors.Is(err, regwatch.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	err := s.runner.Cancel(r.Context(), jobID)
	switch {
	case errors.Is(err, regwatch.ErrJobTerminal):
		s.writeError(w, http.StatusConflict, "job already finished")
	case err != nil:
		s.logger.Error("cancel job failed", zap.String("job_id", jobID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "cancel job")
	default:
		s.writeJSON(w, http.StatusOK, map[string]string{
			"job_id": jobID,
			"status": string(regwatch.JobStatusCancelled),
		})
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"internal server error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}
