package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	apperrors "github.com/kapu/kokoro-diary-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const searchBody = `{
  "tracks": {
    "items": [
      {
        "id": "4iV5W9uYEdYUVa79Axb7Rh",
        "name": "群青",
        "uri": "spotify:track:4iV5W9uYEdYUVa79Axb7Rh",
        "artists": [{"name": "YOASOBI"}, {"name": "Ayase"}],
        "album": {"images": [{"url": "https://i.scdn.co/image/large"}, {"url": "https://i.scdn.co/image/small"}]}
      }
    ]
  }
}`

func TestSearchTrack(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantTrack  bool
		wantErr    bool
		wantTokErr bool
	}{
		{name: "match", status: http.StatusOK, body: searchBody, wantTrack: true},
		{name: "no match", status: http.StatusOK, body: `{"tracks":{"items":[]}}`},
		{name: "expired token", status: http.StatusUnauthorized, body: `{"error":{"status":401}}`, wantErr: true, wantTokErr: true},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantErr: true},
		{name: "malformed body", status: http.StatusOK, body: `{"tracks":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/search", r.URL.Path)
				assert.Equal(t, "track", r.URL.Query().Get("type"))
				assert.Equal(t, "1", r.URL.Query().Get("limit"))
				assert.Equal(t, "YOASOBI - 群青", r.URL.Query().Get("q"))
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := NewClient(server.Client(), server.URL+"/", nil, zap.NewNop())
			track, err := client.SearchTrack(context.Background(), "YOASOBI - 群青", "test-token")

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, track)
				assert.Equal(t, tt.wantTokErr, errors.Is(err, ErrTokenInvalid))

				var lookupErr *apperrors.MusicLookupError
				assert.True(t, errors.As(err, &lookupErr))
				return
			}

			require.NoError(t, err)
			if !tt.wantTrack {
				assert.Nil(t, track)
				return
			}
			require.NotNil(t, track)
			assert.Equal(t, "4iV5W9uYEdYUVa79Axb7Rh", track.ID)
			assert.Equal(t, "群青", track.Name)
			assert.Equal(t, "YOASOBI, Ayase", track.Artist)
			assert.Equal(t, "https://i.scdn.co/image/large", track.AlbumArtURL)
		})
	}
}

func TestSearchTrackWithoutTokenMakesNoCall(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	client := NewClient(server.Client(), server.URL, nil, zap.NewNop())
	track, err := client.SearchTrack(context.Background(), "anything", "")

	assert.ErrorIs(t, err, ErrNoToken)
	assert.Nil(t, track)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestTrackWithoutImages(t *testing.T) {
	track := spotifyTrack{ID: "x", Name: "n", Artists: []spotifyArtist{{Name: "A"}}}.toDomain()
	assert.Equal(t, "", track.AlbumArtURL)
	assert.Equal(t, "A", track.Artist)
}
