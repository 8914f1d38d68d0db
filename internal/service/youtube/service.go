package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kapu/kokoro-diary-go/internal/constants"
	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/kapu/kokoro-diary-go/internal/metrics"
	"github.com/kapu/kokoro-diary-go/internal/service/cache"
	apperrors "github.com/kapu/kokoro-diary-go/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const serviceName = "youtube"

type YouTubeService struct {
	service    *youtube.Service
	cache      *cache.CacheService
	recorder   *metrics.Recorder
	logger     *zap.Logger
	now        func() time.Time
	quotaUsed  int
	quotaMu    sync.Mutex
	quotaReset time.Time
}

func NewYouTubeService(ctx context.Context, apiKey string, cacheSvc *cache.CacheService, recorder *metrics.Recorder, logger *zap.Logger, extra ...option.ClientOption) (*YouTubeService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("YouTube API key is required")
	}

	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, extra...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	ys := &YouTubeService{
		service:  service,
		cache:    cacheSvc,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
	ys.quotaReset = ys.nextQuotaReset()

	logger.Info("YouTube search service initialized",
		zap.Time("quotaReset", ys.quotaReset))

	return ys, nil
}

func (ys *YouTubeService) nextQuotaReset() time.Time {
	pt, err := time.LoadLocation(constants.YouTubeQuota.ResetLocation)
	if err != nil {
		pt = time.FixedZone("PT", -8*60*60)
	}
	now := ys.now().In(pt)
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, pt)
}

func (ys *YouTubeService) checkQuota(cost int) error {
	ys.quotaMu.Lock()
	defer ys.quotaMu.Unlock()

	if ys.now().After(ys.quotaReset) {
		ys.quotaUsed = 0
		ys.quotaReset = ys.nextQuotaReset()
		ys.recorder.SetQuotaUsed(0)
		ys.logger.Info("YouTube API quota auto-reset",
			zap.Time("nextReset", ys.quotaReset))
	}

	limit := constants.YouTubeQuota.DailyLimit
	if ys.quotaUsed+cost > limit-constants.YouTubeQuota.SafetyMargin {
		return &QuotaExceededError{
			Used:      ys.quotaUsed,
			Limit:     limit,
			Requested: cost,
			ResetTime: ys.quotaReset,
		}
	}

	return nil
}

func (ys *YouTubeService) consumeQuota(cost int) {
	ys.quotaMu.Lock()
	defer ys.quotaMu.Unlock()

	ys.quotaUsed += cost
	ys.recorder.SetQuotaUsed(ys.quotaUsed)
	remaining := constants.YouTubeQuota.DailyLimit - ys.quotaUsed

	ys.logger.Debug("YouTube API quota consumed",
		zap.Int("cost", cost),
		zap.Int("used", ys.quotaUsed),
		zap.Int("remaining", remaining))

	if remaining < constants.YouTubeQuota.SafetyMargin*2 {
		ys.logger.Warn("YouTube API quota running low",
			zap.Int("remaining", remaining),
			zap.Time("resetTime", ys.quotaReset))
	}
}

// SearchVideo returns the first video result for query, or nil when nothing matches.
func (ys *YouTubeService) SearchVideo(ctx context.Context, query string) (*domain.VideoReference, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var cached domain.VideoReference
	if found, err := ys.cache.GetLookup(ctx, cache.KindVideo, query, &cached); err == nil && found {
		ys.logger.Debug("YouTube cache hit (quota saved)", zap.String("query", query))
		return &cached, nil
	}

	cost := constants.YouTubeQuota.SearchCost
	if err := ys.checkQuota(cost); err != nil {
		return nil, err
	}

	call := ys.service.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(1)

	response, err := call.Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			if isQuotaError(apiErr) {
				ys.markQuotaExhausted()
				return nil, ys.quotaError(cost)
			}
			return nil, apperrors.NewMusicLookupError("search failed", serviceName, query, apiErr.Code, err)
		}
		return nil, apperrors.NewMusicLookupError("search request failed", serviceName, query, 0, err)
	}

	ys.consumeQuota(cost)

	for _, item := range response.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}

		video := &domain.VideoReference{VideoID: item.Id.VideoId}
		if item.Snippet != nil {
			video.Title = item.Snippet.Title
		}

		if err := ys.cache.SetLookup(ctx, cache.KindVideo, query, video); err != nil {
			ys.logger.Debug("YouTube cache write skipped", zap.Error(err))
		}
		return video, nil
	}

	return nil, nil
}

func isQuotaError(apiErr *googleapi.Error) bool {
	if apiErr.Code != 403 && apiErr.Code != 429 {
		return false
	}
	if len(apiErr.Errors) == 0 {
		return apiErr.Code == 429
	}
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded":
			return true
		}
	}
	return false
}

// markQuotaExhausted trusts the server over the local estimate until the next reset.
func (ys *YouTubeService) markQuotaExhausted() {
	ys.quotaMu.Lock()
	defer ys.quotaMu.Unlock()
	ys.quotaUsed = constants.YouTubeQuota.DailyLimit
	ys.recorder.SetQuotaUsed(ys.quotaUsed)
}

func (ys *YouTubeService) quotaError(requested int) *QuotaExceededError {
	ys.quotaMu.Lock()
	defer ys.quotaMu.Unlock()
	return &QuotaExceededError{
		Used:      ys.quotaUsed,
		Limit:     constants.YouTubeQuota.DailyLimit,
		Requested: requested,
		ResetTime: ys.quotaReset,
	}
}

func (ys *YouTubeService) GetQuotaStatus() (used int, remaining int, resetTime time.Time) {
	ys.quotaMu.Lock()
	defer ys.quotaMu.Unlock()

	limit := constants.YouTubeQuota.DailyLimit
	if ys.now().After(ys.quotaReset) {
		return 0, limit, ys.nextQuotaReset()
	}

	return ys.quotaUsed, limit - ys.quotaUsed, ys.quotaReset
}

type QuotaExceededError struct {
	Used      int
	Limit     int
	Requested int
	ResetTime time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("YouTube API quota exceeded: used %d/%d (requested %d more), resets at %s",
		e.Used, e.Limit, e.Requested, e.ResetTime.Format(time.RFC3339))
}
