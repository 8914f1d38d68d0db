package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kapu/kokoro-diary-go/internal/constants"
	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/kapu/kokoro-diary-go/internal/export"
	"github.com/kapu/kokoro-diary-go/internal/metrics"
	"github.com/kapu/kokoro-diary-go/internal/pipeline"
	apperrors "github.com/kapu/kokoro-diary-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAnalyzer struct {
	result *domain.AnalysisResult
	err    error
	block  chan struct{}
}

func (s *stubAnalyzer) Analyze(context.Context, string, domain.MusicCategory) (*domain.AnalysisResult, error) {
	if s.block != nil {
		<-s.block
	}
	return s.result, s.err
}

type stubDispatcher struct {
	lookups   domain.Lookups
	lastToken string
}

func (s *stubDispatcher) Dispatch(_ context.Context, _, _, token string) domain.Lookups {
	s.lastToken = token
	return s.lookups
}

type stubHistory struct {
	recent []domain.DiaryLogEntry
	all    []domain.DiaryLogEntry
	err    error
}

func (s *stubHistory) FetchRecent(context.Context, int) ([]domain.DiaryLogEntry, error) {
	return s.recent, s.err
}

func (s *stubHistory) FetchAll(context.Context) ([]domain.DiaryLogEntry, error) {
	return s.all, s.err
}

func analysis() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Emotions:     domain.EmotionVector{Joy: 0.8, Sad: 0.05, Energy: 0.6, Calm: 0.7, Stress: 0.1},
		Colors:       []string{"#E0F2FE", "#FCE7F3"},
		SpotifyQuery: "YOASOBI - 群青",
		YouTubeQuery: "YOASOBI 群青",
		Comment:      "いい一日でしたね。",
		Hashtags:     []string{"散歩"},
	}
}

type fixture struct {
	server     *Server
	lifecycle  *pipeline.Lifecycle
	analyzer   *stubAnalyzer
	dispatcher *stubDispatcher
	history    *stubHistory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		analyzer:   &stubAnalyzer{result: analysis()},
		dispatcher: &stubDispatcher{},
		history:    &stubHistory{},
	}
	recorder := metrics.NewRecorder()
	f.lifecycle = pipeline.NewLifecycle(f.analyzer, f.dispatcher, pipeline.Options{Recorder: recorder}, zap.NewNop())
	t.Cleanup(f.lifecycle.Close)

	f.server = New(f.lifecycle, export.NewExporter(f.history, zap.NewNop()), recorder, Options{
		Now: func() time.Time { return time.Date(2024, 5, 2, 3, 0, 0, 0, time.UTC) },
	}, zap.NewNop())
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var resp stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAnalyzeSuccess(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/analyze", `{"text":"散歩していて気持ちよかった","category":"J-Pop"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeState(t, rec)
	assert.Equal(t, domain.PhaseResult, resp.State.Phase)
	require.NotNil(t, resp.State.Bundle)
	assert.Nil(t, resp.State.Bundle.Track)
	assert.Nil(t, resp.State.Bundle.Video)
	assert.Equal(t, []string{"#E0F2FE", "#FCE7F3"}, resp.State.Palette)
	assert.Contains(t, resp.State.Bundle.Embeds.YouTube, "listType=search")
}

func TestAnalyzeTokenFromHeader(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/analyze", `{"text":"今日はいい日だった","category":"western"}`,
		spotifyTokenHeader, "Bearer abc123")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", f.dispatcher.lastToken)
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "too short", body: `{"text":"短い","category":"J-Pop"}`},
		{name: "whitespace", body: `{"text":"      ","category":"J-Pop"}`},
		{name: "unknown category", body: `{"text":"今日はいい日だった","category":"K-Pop"}`},
		{name: "malformed", body: `{"text":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/api/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.True(t, f.lifecycle.State().IsIdle())
		})
	}
}

func TestAnalyzeFailureReturnsErrorState(t *testing.T) {
	f := newFixture(t)
	f.analyzer.result = nil
	f.analyzer.err = apperrors.NewAnalysisError("analysis payload invalid", "gemini", domain.ErrMissingChannel)

	rec := f.do(t, http.MethodPost, "/api/analyze", `{"text":"散歩していて気持ちよかった","category":"J-Pop"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeState(t, rec)
	assert.Equal(t, domain.PhaseError, resp.State.Phase)
	assert.Equal(t, constants.Notices.AnalysisFailed, resp.State.Notice)
	assert.Equal(t, constants.DefaultPalette, resp.State.Palette)
	assert.NotEmpty(t, resp.Error)
}

func TestAnalyzeConflictWhileInFlight(t *testing.T) {
	f := newFixture(t)
	f.analyzer.block = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.do(t, http.MethodPost, "/api/analyze", `{"text":"一件目の日記です","category":"J-Pop"}`)
	}()

	require.Eventually(t, func() bool { return f.lifecycle.State().IsAnalyzing() }, time.Second, 5*time.Millisecond)

	rec := f.do(t, http.MethodPost, "/api/analyze", `{"text":"二件目の日記です","category":"J-Pop"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(f.analyzer.block)
	<-done
}

func TestResetAndState(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/analyze", `{"text":"散歩していて気持ちよかった","category":"J-Pop"}`)

	rec := f.do(t, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PhaseResult, decodeState(t, rec).State.Phase)

	rec = f.do(t, http.MethodPost, "/api/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeState(t, rec)
	assert.Equal(t, domain.PhaseIdle, resp.State.Phase)
	assert.Nil(t, resp.State.Bundle)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	f.history.recent = []domain.DiaryLogEntry{{ID: "1", Content: "x"}}
	rec = f.do(t, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []domain.DiaryLogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 1)
}

func TestHistoryQueryFailure(t *testing.T) {
	f := newFixture(t)
	f.history.err = apperrors.NewPersistenceError("failed to query diaries", "fetch_recent", errors.New("connection refused"))

	rec := f.do(t, http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.history.all = []domain.DiaryLogEntry{{
		ID:        "1",
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Content:   "散歩していて気持ちよかった",
		Emotions:  domain.EmotionVector{Joy: 0.8},
	}}

	rec := f.do(t, http.MethodGet, "/api/history/export", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="diary_all_2024-05-02.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, export.Format(f.history.all), rec.Body.String())
}

func TestExportEmpty(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/history/export", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, constants.Notices.NothingToExport, resp.Notice)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	f.server.opts.HealthChecks = map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	}

	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f.server.opts.HealthChecks["cache"] = func(context.Context) error { return errors.New("dial tcp: refused") }
	rec = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "refused")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/analyze", `{"text":"散歩していて気持ちよかった","category":"J-Pop"}`)

	rec := f.do(t, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(body, []byte("lifecycle_transitions_total")))
}

func TestWebSocketStreamsTransitions(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	readState := func() domain.RequestState {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var state domain.RequestState
		require.NoError(t, conn.ReadJSON(&state))
		return state
	}

	assert.Equal(t, domain.PhaseIdle, readState().Phase)

	resp, err := http.Post(ts.URL+"/api/analyze", "application/json",
		strings.NewReader(`{"text":"散歩していて気持ちよかった","category":"J-Pop"}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, domain.PhaseAnalyzing, readState().Phase)
	result := readState()
	assert.Equal(t, domain.PhaseResult, result.Phase)
	assert.Equal(t, "#E0F2FE", result.Palette[0])
}

func TestHubRefusesClientsAfterClose(t *testing.T) {
	hub := NewHub(pipeline.NewLifecycle(&stubAnalyzer{}, &stubDispatcher{}, pipeline.Options{}, zap.NewNop()), zap.NewNop())
	hub.Close()

	client := &wsClient{send: make(chan []byte, 1), done: make(chan struct{})}
	assert.False(t, hub.add(client))
	assert.Equal(t, 0, hub.ClientCount())

	select {
	case <-client.done:
	default:
		t.Fatal("refused client was not stopped")
	}
}

func TestShutdownDisconnectsWebSocketClients(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var state domain.RequestState
	require.NoError(t, conn.ReadJSON(&state))
	require.Eventually(t, func() bool { return f.server.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	f.server.hub.Close()

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}
}
