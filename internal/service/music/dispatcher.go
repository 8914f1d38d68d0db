package music

import (
	"context"
	"errors"
	"time"

	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/kapu/kokoro-diary-go/internal/metrics"
	"github.com/kapu/kokoro-diary-go/internal/service/spotify"
	"github.com/kapu/kokoro-diary-go/internal/service/youtube"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

const (
	serviceSpotify = "spotify"
	serviceYouTube = "youtube"
)

type TrackSearcher interface {
	SearchTrack(ctx context.Context, query, token string) (*domain.MusicTrack, error)
}

type VideoSearcher interface {
	SearchVideo(ctx context.Context, query string) (*domain.VideoReference, error)
}

// Dispatcher runs the Spotify and YouTube lookups side by side and waits for both. Any
// failure, timeout or panic inside one lookup leaves that side nil; Dispatch never fails.
type Dispatcher struct {
	tracks   TrackSearcher
	videos   VideoSearcher
	timeout  time.Duration
	recorder *metrics.Recorder
	logger   *zap.Logger
}

// NewDispatcher accepts nil searchers; a missing searcher always yields nil.
func NewDispatcher(tracks TrackSearcher, videos VideoSearcher, timeout time.Duration, recorder *metrics.Recorder, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		tracks:   tracks,
		videos:   videos,
		timeout:  timeout,
		recorder: recorder,
		logger:   logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, spotifyQuery, youtubeQuery, spotifyToken string) domain.Lookups {
	var (
		lookups domain.Lookups
		wg      conc.WaitGroup
	)

	if spotifyToken == "" || d.tracks == nil {
		d.recorder.ObserveLookup(serviceSpotify, metrics.OutcomeSkipped, 0)
		d.logger.Debug("Spotify lookup skipped (no token)")
	} else {
		wg.Go(func() {
			lookups.Track = d.lookupTrack(ctx, spotifyQuery, spotifyToken)
		})
	}

	if d.videos == nil {
		d.recorder.ObserveLookup(serviceYouTube, metrics.OutcomeSkipped, 0)
	} else {
		wg.Go(func() {
			lookups.Video = d.lookupVideo(ctx, youtubeQuery)
		})
	}

	if recovered := wg.WaitAndRecover(); recovered != nil {
		d.logger.Error("Music lookup panicked", zap.String("panic", recovered.String()))
	}

	return lookups
}

func (d *Dispatcher) lookupTrack(ctx context.Context, query, token string) *domain.MusicTrack {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	completed := false
	defer func() {
		if !completed {
			d.recorder.ObserveLookup(serviceSpotify, metrics.OutcomePanic, time.Since(start))
		}
	}()

	track, err := d.tracks.SearchTrack(ctx, query, token)
	completed = true

	switch {
	case errors.Is(err, spotify.ErrTokenInvalid):
		d.recorder.ObserveLookup(serviceSpotify, metrics.OutcomeUnauth, time.Since(start))
		d.logger.Warn("Spotify token rejected, continuing without track", zap.String("query", query))
		return nil
	case err != nil:
		d.recorder.ObserveLookup(serviceSpotify, outcomeFor(err), time.Since(start))
		d.logger.Warn("Spotify lookup failed", zap.String("query", query), zap.Error(err))
		return nil
	case track == nil:
		d.recorder.ObserveLookup(serviceSpotify, metrics.OutcomeNotFound, time.Since(start))
		return nil
	}

	d.recorder.ObserveLookup(serviceSpotify, metrics.OutcomeSuccess, time.Since(start))
	return track
}

func (d *Dispatcher) lookupVideo(ctx context.Context, query string) *domain.VideoReference {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	completed := false
	defer func() {
		if !completed {
			d.recorder.ObserveLookup(serviceYouTube, metrics.OutcomePanic, time.Since(start))
		}
	}()

	video, err := d.videos.SearchVideo(ctx, query)
	completed = true

	var quotaErr *youtube.QuotaExceededError
	switch {
	case errors.As(err, &quotaErr):
		d.recorder.ObserveLookup(serviceYouTube, metrics.OutcomeFailure, time.Since(start))
		d.logger.Warn("YouTube quota exhausted, falling back to search embed",
			zap.Time("reset", quotaErr.ResetTime))
		return nil
	case err != nil:
		d.recorder.ObserveLookup(serviceYouTube, outcomeFor(err), time.Since(start))
		d.logger.Warn("YouTube lookup failed", zap.String("query", query), zap.Error(err))
		return nil
	case video == nil:
		d.recorder.ObserveLookup(serviceYouTube, metrics.OutcomeNotFound, time.Since(start))
		return nil
	}

	d.recorder.ObserveLookup(serviceYouTube, metrics.OutcomeSuccess, time.Since(start))
	return video
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout > 0 {
		return context.WithTimeout(ctx, d.timeout)
	}
	return context.WithCancel(ctx)
}

func outcomeFor(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeFailure
}
