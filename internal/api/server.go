// Package api exposes the HTTP interface for the harvester service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codecatalog/harvester/internal/catalog"
	"github.com/codecatalog/harvester/internal/config"
	"github.com/codecatalog/harvester/internal/harvester"
	"github.com/codecatalog/harvester/internal/metrics"
)

// Runner executes one harvest run.
type Runner interface {
	Run(ctx context.Context, opts harvester.Options) catalog.Result
}

// Reader serves the catalog read surface.
type Reader interface {
	GetProblem(ctx context.Context, slug string) (catalog.Problem, error)
	ListProblems(ctx context.Context, limit, offset int) ([]catalog.Problem, error)
	ListTags(ctx context.Context) ([]catalog.Tag, error)
}

// Server wires HTTP handlers to the harvester and the catalog store.
type Server struct {
	router chi.Router
	runner Runner
	reader Reader
	runs   *runRegistry
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, reader Reader, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		runner: runner,
		reader: reader,
		runs:   newRunRegistry(),
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/harvests", func(r chi.Router) {
			r.Post("/", s.startHarvest)
			r.Get("/{run_id}", s.getHarvest)
		})
		r.Route("/problems", func(r chi.Router) {
			r.Get("/", s.listProblems)
			r.Get("/{slug}", s.getProblem)
		})
		r.Get("/tags", s.listTags)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type harvestRequest struct {
	Limit        *int  `json:"limit"`
	FetchDetails *bool `json:"fetch_details"`
	StrictStats  *bool `json:"strict_stats"`
}

func (s *Server) startHarvest(w http.ResponseWriter, r *http.Request) {
	var req harvestRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	opts := s.harvestOptions(req)
	if opts.Limit <= 0 {
		s.writeError(w, http.StatusBadRequest, "limit must be > 0")
		return
	}

	runID := uuid.NewString()
	s.runs.start(runID)
	// The run outlives the request; detach it from the request context.
	go func() {
		result := s.runner.Run(context.Background(), opts)
		s.runs.complete(runID, result)
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) harvestOptions(req harvestRequest) harvester.Options {
	delayMin, delayMax := s.cfg.Harvest.DelayRange()
	opts := harvester.Options{
		Limit:        s.cfg.Harvest.Limit,
		FetchDetails: s.cfg.Harvest.FetchDetails,
		DelayMin:     delayMin,
		DelayMax:     delayMax,
		StrictStats:  s.cfg.Harvest.StrictStats,
	}
	if req.Limit != nil {
		opts.Limit = *req.Limit
	}
	if req.FetchDetails != nil {
		opts.FetchDetails = *req.FetchDetails
	}
	if req.StrictStats != nil {
		opts.StrictStats = *req.StrictStats
	}
	return opts
}

func (s *Server) getHarvest(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	state, ok := s.runs.get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) listProblems(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit <= 0 || limit > 200 || offset < 0 {
		s.writeError(w, http.StatusBadRequest, "invalid limit/offset")
		return
	}
	problems, err := s.reader.ListProblems(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list problems")
		return
	}
	if problems == nil {
		problems = []catalog.Problem{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"problems": problems})
}

func (s *Server) getProblem(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	problem, err := s.reader.GetProblem(r.Context(), slug)
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "problem not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to fetch problem")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"problem": problem})
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.reader.ListTags(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	if tags == nil {
		tags = []catalog.Tag{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
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
