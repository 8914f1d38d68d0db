package music

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/kapu/kokoro-diary-go/internal/metrics"
	"github.com/kapu/kokoro-diary-go/internal/service/spotify"
	apperrors "github.com/kapu/kokoro-diary-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTracks struct {
	fn    func(ctx context.Context, query, token string) (*domain.MusicTrack, error)
	calls int32
}

func (f *fakeTracks) SearchTrack(ctx context.Context, query, token string) (*domain.MusicTrack, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fn(ctx, query, token)
}

type fakeVideos struct {
	fn    func(ctx context.Context, query string) (*domain.VideoReference, error)
	calls int32
}

func (f *fakeVideos) SearchVideo(ctx context.Context, query string) (*domain.VideoReference, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fn(ctx, query)
}

var (
	track = &domain.MusicTrack{ID: "t1", Name: "群青", Artist: "YOASOBI"}
	video = &domain.VideoReference{VideoID: "v1"}
)

func okTracks() *fakeTracks {
	return &fakeTracks{fn: func(context.Context, string, string) (*domain.MusicTrack, error) { return track, nil }}
}

func okVideos() *fakeVideos {
	return &fakeVideos{fn: func(context.Context, string) (*domain.VideoReference, error) { return video, nil }}
}

func newDispatcher(tracks TrackSearcher, videos VideoSearcher, timeout time.Duration) *Dispatcher {
	return NewDispatcher(tracks, videos, timeout, metrics.NewRecorder(), zap.NewNop())
}

func TestDispatchBothSucceed(t *testing.T) {
	lookups := newDispatcher(okTracks(), okVideos(), time.Second).Dispatch(context.Background(), "q1", "q2", "token")
	assert.Equal(t, track, lookups.Track)
	assert.Equal(t, video, lookups.Video)
}

func TestDispatchWithoutTokenSkipsSpotify(t *testing.T) {
	tracks := okTracks()
	videos := okVideos()

	lookups := newDispatcher(tracks, videos, time.Second).Dispatch(context.Background(), "q1", "q2", "")

	assert.Nil(t, lookups.Track)
	assert.Equal(t, video, lookups.Video)
	assert.Equal(t, int32(0), atomic.LoadInt32(&tracks.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&videos.calls))
}

func TestDispatchDegradesFailuresIndependently(t *testing.T) {
	tests := []struct {
		name      string
		tracks    *fakeTracks
		videos    *fakeVideos
		wantTrack bool
		wantVideo bool
	}{
		{
			name: "expired token",
			tracks: &fakeTracks{fn: func(context.Context, string, string) (*domain.MusicTrack, error) {
				return nil, apperrors.NewMusicLookupError("search rejected", "spotify", "q1", 401, spotify.ErrTokenInvalid)
			}},
			videos:    okVideos(),
			wantVideo: true,
		},
		{
			name:   "video failure",
			tracks: okTracks(),
			videos: &fakeVideos{fn: func(context.Context, string) (*domain.VideoReference, error) {
				return nil, errors.New("connection reset")
			}},
			wantTrack: true,
		},
		{
			name: "track panic",
			tracks: &fakeTracks{fn: func(context.Context, string, string) (*domain.MusicTrack, error) {
				panic("boom")
			}},
			videos:    okVideos(),
			wantVideo: true,
		},
		{
			name:   "no matches",
			tracks: &fakeTracks{fn: func(context.Context, string, string) (*domain.MusicTrack, error) { return nil, nil }},
			videos: &fakeVideos{fn: func(context.Context, string) (*domain.VideoReference, error) { return nil, nil }},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lookups domain.Lookups
			require.NotPanics(t, func() {
				lookups = newDispatcher(tt.tracks, tt.videos, time.Second).Dispatch(context.Background(), "q1", "q2", "token")
			})

			assert.Equal(t, tt.wantTrack, lookups.Track != nil)
			assert.Equal(t, tt.wantVideo, lookups.Video != nil)
		})
	}
}

func TestDispatchAppliesLookupTimeout(t *testing.T) {
	slow := &fakeVideos{fn: func(ctx context.Context, _ string) (*domain.VideoReference, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	start := time.Now()
	lookups := newDispatcher(okTracks(), slow, 50*time.Millisecond).Dispatch(context.Background(), "q1", "q2", "token")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Nil(t, lookups.Video)
	assert.Equal(t, track, lookups.Track)
}

func TestDispatchRunsLookupsConcurrently(t *testing.T) {
	var barrier sync.WaitGroup
	barrier.Add(2)
	both := make(chan struct{})
	go func() {
		barrier.Wait()
		close(both)
	}()

	wait := func(ctx context.Context) error {
		barrier.Done()
		select {
		case <-both:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	tracks := &fakeTracks{fn: func(ctx context.Context, _, _ string) (*domain.MusicTrack, error) {
		if err := wait(ctx); err != nil {
			return nil, err
		}
		return track, nil
	}}
	videos := &fakeVideos{fn: func(ctx context.Context, _ string) (*domain.VideoReference, error) {
		if err := wait(ctx); err != nil {
			return nil, err
		}
		return video, nil
	}}

	lookups := newDispatcher(tracks, videos, 2*time.Second).Dispatch(context.Background(), "q1", "q2", "token")
	assert.NotNil(t, lookups.Track)
	assert.NotNil(t, lookups.Video)
}

func TestDispatchWithoutVideoSearcher(t *testing.T) {
	lookups := newDispatcher(okTracks(), nil, time.Second).Dispatch(context.Background(), "q1", "q2", "token")
	assert.NotNil(t, lookups.Track)
	assert.Nil(t, lookups.Video)
}
