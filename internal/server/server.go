// Package server provides the HTTP server for the formrep rep counter.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/ayusman/formrep/internal/config"
	"github.com/ayusman/formrep/internal/plugin"
	"github.com/ayusman/formrep/internal/server/api"
	"github.com/ayusman/formrep/internal/session"
	"github.com/ayusman/formrep/internal/store"
)

// Pipeline is the running rep counter as seen by the HTTP handlers.
type Pipeline interface {
	Config() config.Config
	IsEnabled() bool
	SetEnabled(enabled bool)
	Last() session.Report
	Summary() session.Summary
	History() []session.Report
	Reps() []session.Rep
	NewSession() (string, error)
	UseProfile(p *store.Profile) (string, error)
	Subscribe() (<-chan session.Report, func())
	LatestJPEG() []byte
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Version   string
	// LogRequests logs every API request except the long-lived streams.
	LogRequests bool
	Store       *store.Store
	Pipeline  Pipeline
	Plugins   *plugin.Manager
}

// Server serves the formrep REST API, live streams and dashboard.
type Server struct {
	config  Config
	mux     *http.ServeMux
	handler http.Handler
	start   time.Time
}

// healthResponse is the body of GET /api/health.
type healthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
	Profile string `json:"profile,omitempty"`
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	s.handler = s.mux
	if config.LogRequests {
		s.handler = logRequests(s.mux)
	}
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		var activator api.Activator
		if s.config.Pipeline != nil {
			activator = s.config.Pipeline
		}
		profiles := api.NewProfileHandler(s.config.Store, activator)
		s.mux.Handle("/api/profiles", profiles)
		s.mux.Handle("/api/profiles/", profiles)

		hooks := api.NewHookHandler(s.config.Store, s.config.Plugins)
		s.mux.Handle("/api/hooks", hooks)
		s.mux.Handle("/api/hooks/", hooks)
	}

	if p := s.config.Pipeline; p != nil {
		s.mux.Handle("/api/session", NewSessionHandler(p))
		s.mux.Handle("/api/enabled", NewEnabledHandler(p))
		s.mux.Handle("/api/stream", NewStreamHandler(p))
		s.mux.Handle("/api/reps", NewRepsHandler(p))
		s.mux.Handle("/api/chart", NewChartHandler(p))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/stream", "/api/reps":
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %v", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{
		Status:  "ok",
		Uptime:  time.Since(s.start).Round(time.Second).String(),
		Version: s.config.Version,
	}
	if p := s.config.Pipeline; p != nil {
		enabled := p.IsEnabled()
		resp.Enabled = &enabled
		resp.Profile = p.Config().Profile
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
