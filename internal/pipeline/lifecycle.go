package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kapu/kokoro-diary-go/internal/constants"
	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/kapu/kokoro-diary-go/internal/metrics"
	"github.com/kapu/kokoro-diary-go/internal/util"
	apperrors "github.com/kapu/kokoro-diary-go/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrEmptyText       = errors.New("diary text is empty")
	ErrRequestInFlight = errors.New("a request is already being analyzed")
)

// Analyzer produces the structured analysis for one diary entry.
type Analyzer interface {
	Analyze(ctx context.Context, text string, category domain.MusicCategory) (*domain.AnalysisResult, error)
}

// LookupDispatcher resolves both music lookups. It never fails.
type LookupDispatcher interface {
	Dispatch(ctx context.Context, spotifyQuery, youtubeQuery, spotifyToken string) domain.Lookups
}

// TokenSource supplies the server-side Spotify token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Submission is one diary entry to analyze.
type Submission struct {
	Text         string
	Category     domain.MusicCategory
	SpotifyToken string
}

type Options struct {
	AnalysisTimeout time.Duration
	// ErrorRecovery returns an Error state to Idle after the delay. Zero keeps Error until Reset.
	ErrorRecovery time.Duration
	Tokens        TokenSource
	Recorder      *metrics.Recorder
	Now           func() time.Time
	NewID         func() string
}

// Observer is notified on every transition. Observers run under the lifecycle lock, so they
// must not block or call back into the Lifecycle.
type Observer func(domain.RequestState)

// Lifecycle owns the single request slot: Idle -> Analyzing -> Result | Error -> Idle.
type Lifecycle struct {
	analyzer   Analyzer
	dispatcher LookupDispatcher
	opts       Options
	logger     *zap.Logger

	mu            sync.Mutex
	state         domain.RequestState
	generation    uint64
	observers     map[int]Observer
	nextObserver  int
	recoveryTimer *time.Timer
}

func NewLifecycle(analyzer Analyzer, dispatcher LookupDispatcher, opts Options, logger *zap.Logger) *Lifecycle {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}

	return &Lifecycle{
		analyzer:   analyzer,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger,
		state:      domain.IdleState(constants.DefaultPalette, opts.Now()),
		observers:  make(map[int]Observer),
	}
}

// State returns a snapshot of the current state.
func (l *Lifecycle) State() domain.RequestState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Subscribe registers an observer and returns its unsubscribe func. The observer receives the
// current state immediately, then every transition, so it never misses or reorders one.
func (l *Lifecycle) Subscribe(fn Observer) func() {
	l.mu.Lock()
	id := l.nextObserver
	l.nextObserver++
	l.observers[id] = fn
	fn(l.state)
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.observers, id)
		l.mu.Unlock()
	}
}

// Submit runs one request to a terminal state and returns it. Blank text and a request
// already in flight are rejected without touching the state. Once started, a request is not
// cancelled by ctx; only the configured deadlines bound it.
func (l *Lifecycle) Submit(ctx context.Context, sub Submission) (domain.RequestState, error) {
	if util.IsBlank(sub.Text) {
		return l.State(), ErrEmptyText
	}
	if !sub.Category.IsValid() {
		return l.State(), apperrors.NewValidationError("unknown music category", "category", sub.Category)
	}

	l.mu.Lock()
	if l.state.IsAnalyzing() {
		current := l.state
		l.mu.Unlock()
		return current, ErrRequestInFlight
	}
	requestID := l.opts.NewID()
	l.transitionLocked(domain.AnalyzingState(requestID, l.state.Palette, l.opts.Now()))
	l.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	logger := l.logger.With(zap.String("request_id", requestID))
	logger.Info("Diary request started",
		zap.String("category", sub.Category.String()),
		zap.Int("length", util.RuneLen(sub.Text)),
	)

	analysis, err := l.analyze(ctx, sub)
	if err != nil {
		logger.Warn("Diary request failed", zap.Error(err))
		return l.fail(requestID), err
	}

	token := l.resolveToken(ctx, sub.SpotifyToken, logger)
	lookups := l.dispatcher.Dispatch(ctx, analysis.SpotifyQuery, analysis.YouTubeQuery, token)
	bundle := Aggregate(requestID, *analysis, lookups, l.opts.Now())

	l.mu.Lock()
	next := domain.ResultState(bundle, l.opts.Now())
	l.transitionLocked(next)
	l.mu.Unlock()

	logger.Info("Diary request completed",
		zap.Bool("track", lookups.Track != nil),
		zap.Bool("video", lookups.Video != nil),
		zap.String("accent", bundle.AccentColor()),
	)

	return next, nil
}

// Reset returns Result or Error to Idle. Idle stays Idle; Analyzing cannot be interrupted.
func (l *Lifecycle) Reset() (domain.RequestState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.state.IsAnalyzing():
		return l.state, ErrRequestInFlight
	case l.state.IsIdle():
		return l.state, nil
	}

	l.transitionLocked(domain.IdleState(constants.DefaultPalette, l.opts.Now()))
	return l.state, nil
}

// Close stops a pending auto-recovery timer.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recoveryTimer != nil {
		l.recoveryTimer.Stop()
		l.recoveryTimer = nil
	}
}

func (l *Lifecycle) analyze(ctx context.Context, sub Submission) (*domain.AnalysisResult, error) {
	if l.opts.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.AnalysisTimeout)
		defer cancel()
	}

	analysis, err := l.analyzer.Analyze(ctx, sub.Text, sub.Category)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, apperrors.NewAnalysisError("analysis returned no payload", "", nil)
	}
	return analysis, nil
}

func (l *Lifecycle) fail(requestID string) domain.RequestState {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := domain.ErrorState(requestID, constants.Notices.AnalysisFailed, constants.DefaultPalette, l.opts.Now())
	l.transitionLocked(next)

	if l.opts.ErrorRecovery > 0 {
		gen := l.generation
		l.recoveryTimer = time.AfterFunc(l.opts.ErrorRecovery, func() {
			l.recover(gen)
		})
	}
	return next
}

func (l *Lifecycle) recover(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.generation != gen || !l.state.IsError() {
		return
	}
	l.transitionLocked(domain.IdleState(constants.DefaultPalette, l.opts.Now()))
	l.logger.Debug("Error state recovered to idle")
}

// resolveToken prefers the token carried by the submission. Provider failures mean no token.
func (l *Lifecycle) resolveToken(ctx context.Context, explicit string, logger *zap.Logger) string {
	if explicit != "" {
		return explicit
	}
	if l.opts.Tokens == nil {
		return ""
	}

	token, err := l.opts.Tokens.Token(ctx)
	if err != nil {
		logger.Warn("Spotify token unavailable, skipping track lookup", zap.Error(err))
		return ""
	}
	return token
}

func (l *Lifecycle) transitionLocked(next domain.RequestState) {
	if l.recoveryTimer != nil {
		l.recoveryTimer.Stop()
		l.recoveryTimer = nil
	}

	l.generation++
	l.state = next
	l.opts.Recorder.ObserveTransition(next.Phase.String())

	for _, fn := range l.observers {
		fn(next)
	}
}
