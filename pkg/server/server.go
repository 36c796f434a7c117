// Package server exposes the selection engine over HTTP: the query API
// consumed by editor integrations and the admin API for reload and stats.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/opus67/skillctx/pkg/engine"
	"github.com/opus67/skillctx/pkg/history"
	"github.com/opus67/skillctx/pkg/logger"
	"github.com/opus67/skillctx/pkg/registry"
	"github.com/opus67/skillctx/pkg/selector"
	"github.com/opus67/skillctx/pkg/types/selection"
)

// Config holds the listen address of the HTTP server.
type Config struct {
	Host string
	Port int
}

// Validate checks the listen configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Server serves the query and admin APIs for one engine.
type Server struct {
	router  *mux.Router
	engine  *engine.Engine
	source  registry.Source
	store   *history.Store
	config  *Config
	httpSrv *http.Server
}

// New creates a server for the engine. source is what reload reads from;
// store may be nil when history is disabled.
func New(eng *engine.Engine, source registry.Source, store *history.Store, config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		router: mux.NewRouter(),
		engine: eng,
		source: source,
		store:  store,
		config: config,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/select", s.handleSelect).Methods("POST")
	api.HandleFunc("/reload", s.handleReload).Methods("POST")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	api.HandleFunc("/skills/{id}", s.handleGetSkill).Methods("GET")
	api.HandleFunc("/history", s.handleHistory).Methods("GET")

	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.loggingMiddleware)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var reqCtx selection.Context
	if err := json.NewDecoder(r.Body).Decode(&reqCtx); err != nil {
		s.writeError(w, r, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}

	sel, err := s.engine.Select(r.Context(), reqCtx)
	if err != nil {
		status := http.StatusInternalServerError
		var exhausted *selector.BudgetExhaustedError
		if errors.As(err, &exhausted) {
			status = http.StatusUnprocessableEntity
		}
		s.writeError(w, r, status, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, sel)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reload(r.Context(), s.source); err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"status":     "ok",
		"skillCount": s.engine.Stats().SkillCount,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.engine.Skills())
}

func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	skill, err := s.engine.Get(id)
	if err != nil {
		var notFound *registry.NotFoundError
		if errors.As(err, &notFound) {
			s.writeError(w, r, http.StatusNotFound, err)
			return
		}
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, skill)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("selection history is not enabled"))
		return
	}
	records, err := s.store.Recent(r.Context(), 50)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, records)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.G(r.Context()).WithError(err).Error("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logger.G(r.Context()).WithError(err).WithField("status", status).Warn("request failed")
	s.writeJSON(w, r, status, map[string]string{"error": err.Error()})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := logger.WithLogger(r.Context(), logger.G(r.Context()).WithField("request_id", requestID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		logger.G(r.Context()).
			WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", recorder.status).
			WithField("duration", time.Since(start).String()).
			Info("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving and blocks until the context is canceled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.G(ctx).WithField("addr", addr).Info("skillctx server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}
