// Package httpapi exposes the simulation pipeline over HTTP: one
// endpoint to run a backtest, plus health and metrics.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/dualmomentum/internal/app"
	"github.com/sawpanic/dualmomentum/internal/config"
	"github.com/sawpanic/dualmomentum/internal/data"
	"github.com/sawpanic/dualmomentum/internal/metrics"
)

const maxRequestBody = 1 << 20

// Server routes simulation requests to a Runner.
type Server struct {
	runner *app.Runner
	reg    *metrics.Registry
	router *mux.Router
}

// NewServer builds the router with logging and request-ID middleware.
func NewServer(runner *app.Runner, reg *metrics.Registry) *Server {
	s := &Server{runner: runner, reg: reg, router: mux.NewRouter()}

	s.router.Use(requestIDMiddleware, loggingMiddleware)
	s.router.HandleFunc("/v1/backtest", s.handleBacktest).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", reg.Handler()).Methods(http.MethodGet)
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks serving on addr with sane timeouts.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("http server listening")
	return srv.ListenAndServe()
}

// errorBody is the discriminated error record every failure returns.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}
	cfg, err := config.ParseSimulationJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "config_error", err.Error())
		return
	}

	result, err := s.runner.Run(r.Context(), cfg)
	if err != nil {
		status, kind := classify(err)
		hlog.FromRequest(r).Error().Err(err).Str("kind", kind).Msg("backtest failed")
		writeError(w, status, kind, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// classify maps pipeline error types onto HTTP statuses: configuration
// problems are the caller's fault, missing market data is upstream's.
func classify(err error) (int, string) {
	switch {
	case config.IsConfigError(err):
		return http.StatusBadRequest, "config_error"
	case data.IsUnavailable(err):
		return http.StatusBadGateway, "data_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorBody{Kind: kind, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	h := hlog.NewHandler(log.Logger)
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("request handled")
	})
	return h(access(next))
}
