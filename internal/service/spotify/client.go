package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/kapu/kokoro-diary-go/internal/service/cache"
	apperrors "github.com/kapu/kokoro-diary-go/pkg/errors"
	"go.uber.org/zap"
)

const serviceName = "spotify"

var (
	// ErrTokenInvalid is returned for HTTP 401: the access token expired or was revoked.
	ErrTokenInvalid = errors.New("spotify access token expired or invalid")
	ErrNoToken      = errors.New("spotify access token missing")
)

// Client searches the Spotify Web API. Tracks found are cached by query; a missing track is
// not an error.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *cache.CacheService
	logger     *zap.Logger
}

func NewClient(httpClient *http.Client, baseURL string, cacheSvc *cache.CacheService, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cache:      cacheSvc,
		logger:     logger,
	}
}

// SearchTrack returns the top track for query, or nil when Spotify has no match.
func (c *Client) SearchTrack(ctx context.Context, query, token string) (*domain.MusicTrack, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var cached domain.MusicTrack
	if found, err := c.cache.GetLookup(ctx, cache.KindTrack, query, &cached); err == nil && found {
		c.logger.Debug("Spotify cache hit", zap.String("query", query))
		return &cached, nil
	}

	searchURL, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("spotify: invalid search url: %w", err)
	}
	params := searchURL.Query()
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", "1")
	searchURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("spotify: create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewMusicLookupError("search request failed", serviceName, query, 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperrors.NewMusicLookupError("search rejected", serviceName, query, resp.StatusCode, ErrTokenInvalid)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.NewMusicLookupError("search failed", serviceName, query, resp.StatusCode,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperrors.NewMusicLookupError("search decode failed", serviceName, query, resp.StatusCode, err)
	}

	if len(body.Tracks.Items) == 0 {
		return nil, nil
	}

	track := body.Tracks.Items[0].toDomain()
	if err := c.cache.SetLookup(ctx, cache.KindTrack, query, track); err != nil {
		c.logger.Debug("Spotify cache write skipped", zap.Error(err))
	}

	return track, nil
}
