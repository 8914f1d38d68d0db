package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kapu/kokoro-diary-go/internal/constants"
	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/kapu/kokoro-diary-go/internal/export"
	"github.com/kapu/kokoro-diary-go/internal/pipeline"
	"github.com/kapu/kokoro-diary-go/internal/util"
	apperrors "github.com/kapu/kokoro-diary-go/pkg/errors"
	"go.uber.org/zap"
)

const (
	maxBodyBytes       = 64 << 10
	spotifyTokenHeader = "X-Spotify-Token"
	healthCheckTimeout = 3 * time.Second
)

type analyzeRequest struct {
	Text         string `json:"text"`
	Category     string `json:"category"`
	SpotifyToken string `json:"spotify_token,omitempty"`
}

type stateResponse struct {
	State domain.RequestState `json:"state"`
	Error string              `json:"error,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error,omitempty"`
	Notice string `json:"notice,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if n := util.RuneLen(strings.TrimSpace(req.Text)); n < constants.DiaryInputLimits.MinRunes {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("text must be at least %d characters", constants.DiaryInputLimits.MinRunes),
		})
		return
	}

	category, err := domain.ParseMusicCategory(req.Category)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	token := strings.TrimSpace(req.SpotifyToken)
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(r.Header.Get(spotifyTokenHeader), "Bearer "))
	}

	state, err := s.pipeline.Submit(r.Context(), pipeline.Submission{
		Text:         req.Text,
		Category:     category,
		SpotifyToken: token,
	})
	if err != nil {
		writeJSON(w, submitStatus(err), stateResponse{State: state, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, stateResponse{State: state})
}

func submitStatus(err error) int {
	var (
		validationErr *apperrors.ValidationError
		analysisErr   *apperrors.AnalysisError
	)
	switch {
	case errors.Is(err, pipeline.ErrRequestInFlight):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrEmptyText), errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &analysisErr):
		return analysisErr.StatusCode
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	state, err := s.pipeline.Reset()
	if err != nil {
		writeJSON(w, http.StatusConflict, stateResponse{State: state, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{State: state})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{State: s.pipeline.State()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.history.Recent(r.Context())
	if err != nil {
		s.logger.Error("Failed to load history", zap.Error(err))
		writeJSON(w, statusFor(err), errorResponse{Error: "failed to load history"})
		return
	}
	if entries == nil {
		entries = []domain.DiaryLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	artifact, err := s.history.ExportAll(r.Context(), s.opts.Now())
	switch {
	case errors.Is(err, export.ErrNothingToExport):
		writeJSON(w, http.StatusNotFound, errorResponse{Notice: constants.Notices.NothingToExport})
		return
	case err != nil:
		s.logger.Error("History export failed", zap.Error(err))
		writeJSON(w, statusFor(err), errorResponse{Error: "export failed", Notice: constants.Notices.ExportFailed})
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, artifact.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Body); err != nil {
		s.logger.Warn("Failed to write export body", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.opts.HealthChecks))
	for name, check := range s.opts.HealthChecks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"phase":  s.pipeline.State().Phase,
		"checks": checks,
	})
}

// statusFor maps an AppError-derived error to its HTTP status, defaulting to 500.
func statusFor(err error) int {
	var (
		persistenceErr *apperrors.PersistenceError
		appErr         *apperrors.AppError
	)
	switch {
	case errors.As(err, &persistenceErr):
		return persistenceErr.StatusCode
	case errors.As(err, &appErr) && appErr.StatusCode > 0:
		return appErr.StatusCode
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
