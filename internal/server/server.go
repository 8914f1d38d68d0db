package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/kapu/kokoro-diary-go/internal/export"
	"github.com/kapu/kokoro-diary-go/internal/metrics"
	"github.com/kapu/kokoro-diary-go/internal/pipeline"
	"go.uber.org/zap"
)

// Pipeline is the request lifecycle as seen by the transport.
type Pipeline interface {
	StateSource
	Submit(ctx context.Context, sub pipeline.Submission) (domain.RequestState, error)
	Reset() (domain.RequestState, error)
	State() domain.RequestState
}

// History serves the recent-entries view and the full export.
type History interface {
	Recent(ctx context.Context) ([]domain.DiaryLogEntry, error)
	ExportAll(ctx context.Context, now time.Time) (*export.Artifact, error)
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

type Options struct {
	Addr         string
	HealthChecks map[string]HealthCheck
	Now          func() time.Time
}

type Server struct {
	pipeline Pipeline
	history  History
	recorder *metrics.Recorder
	hub      *Hub
	opts     Options
	logger   *zap.Logger

	httpServer *http.Server
}

func New(p Pipeline, history History, recorder *metrics.Recorder, opts Options, logger *zap.Logger) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		pipeline: p,
		history:  history,
		recorder: recorder,
		hub:      NewHub(p, logger),
		opts:     opts,
		logger:   logger,
	}

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/history/export", s.handleExport)
	mux.Handle("GET /ws", s.hub)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.recorder.Handler())

	return s.logRequests(mux)
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not reported as an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.opts.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Closing WebSocket clients", zap.Int("clients", s.hub.ClientCount()))
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The upgrader needs the raw writer for hijacking.
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
