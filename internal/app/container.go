package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kapu/kokoro-diary-go/internal/config"
	"github.com/kapu/kokoro-diary-go/internal/constants"
	"github.com/kapu/kokoro-diary-go/internal/export"
	"github.com/kapu/kokoro-diary-go/internal/metrics"
	"github.com/kapu/kokoro-diary-go/internal/pipeline"
	"github.com/kapu/kokoro-diary-go/internal/prompt"
	"github.com/kapu/kokoro-diary-go/internal/server"
	"github.com/kapu/kokoro-diary-go/internal/service/ai"
	"github.com/kapu/kokoro-diary-go/internal/service/cache"
	"github.com/kapu/kokoro-diary-go/internal/service/database"
	"github.com/kapu/kokoro-diary-go/internal/service/music"
	"github.com/kapu/kokoro-diary-go/internal/service/spotify"
	"github.com/kapu/kokoro-diary-go/internal/service/youtube"
	"github.com/kapu/kokoro-diary-go/internal/util"
	"github.com/kapu/kokoro-diary-go/pkg/errors"
	"go.uber.org/zap"
)

// Container bundles the assembled services. Build does all the heavy initialization so that
// commands only pick the pieces they need.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Recorder *metrics.Recorder

	Models    *ai.ModelManager
	Analysis  *ai.AnalysisClient
	Lifecycle *pipeline.Lifecycle
	History   *export.Exporter

	healthChecks map[string]server.HealthCheck
	closers      []func()
}

// NewServer wires the HTTP transport onto the container's lifecycle and history.
func (c *Container) NewServer() *server.Server {
	return server.New(c.Lifecycle, c.History, c.Recorder, server.Options{
		Addr:         c.Config.Server.Addr,
		HealthChecks: c.healthChecks,
	}, c.Logger)
}

// Close releases resources in reverse construction order.
func (c *Container) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build assembles every service. Optional collaborators (Redis, YouTube, Spotify, the diary
// store) are skipped with a log line when unconfigured or unreachable; the pipeline degrades
// around them. An unreachable store keeps failing the database health check.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c := &Container{
		Config:       cfg,
		Logger:       logger,
		Recorder:     metrics.NewRecorder(),
		healthChecks: make(map[string]server.HealthCheck),
	}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	// Lookup cache
	cacheSvc := openCache(ctx, cfg, c.Recorder, logger)
	if cacheSvc != nil {
		c.closers = append(c.closers, func() {
			_ = cacheSvc.Close()
		})
		c.healthChecks["cache"] = cacheSvc.Ping
	}

	// Diary store
	store, storeErr := openStore(ctx, cfg, logger)
	if storeErr != nil {
		logger.Warn("Diary store unavailable, history will be empty", zap.Error(storeErr))
		unavailable := errors.NewServiceError("diary store unavailable", "database", "open", storeErr)
		c.healthChecks["database"] = func(context.Context) error {
			return unavailable
		}
	}
	if store != nil {
		c.closers = append(c.closers, func() {
			_ = store.Close()
		})
		c.healthChecks["database"] = store.Ping
	}
	c.History = export.NewExporter(database.NewDiaryRepository(store, logger), logger)

	// AI stack
	c.Models, err = ai.NewModelManager(ctx, ai.ModelManagerConfig{
		GeminiAPIKey:       cfg.Gemini.APIKey,
		OpenAIAPIKey:       cfg.OpenAI.APIKey,
		DefaultGeminiModel: cfg.Gemini.Model,
		DefaultOpenAIModel: cfg.OpenAI.Model,
		EnableFallback:     cfg.OpenAI.EnableFallback,
		Recorder:           c.Recorder,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model manager: %w", err)
	}
	c.healthChecks["analysis"] = func(context.Context) error {
		if status := c.Models.CircuitStatus(); status.State == util.CircuitStateOpen {
			return fmt.Errorf("circuit open after %d failures", status.FailureCount)
		}
		return nil
	}

	prompts := prompt.DefaultPromptBuilder()
	c.Analysis = ai.NewAnalysisClient(c.Models, prompts, logger)

	// Music lookups
	httpClient := &http.Client{Timeout: constants.APIConfig.HTTPTimeout}
	tracks := spotify.NewClient(httpClient, cfg.Spotify.BaseURL, cacheSvc, logger)
	tokens := spotify.NewTokenProvider(cfg.Spotify.AccessToken, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.TokenURL, httpClient)
	if tokens == nil {
		logger.Info("Spotify token not configured, track lookup only runs with a per-request token")
	}

	var videos music.VideoSearcher
	if cfg.YouTube.APIKey != "" {
		ytSvc, ytErr := youtube.NewYouTubeService(ctx, cfg.YouTube.APIKey, cacheSvc, c.Recorder, logger)
		if ytErr != nil {
			logger.Warn("Failed to initialize YouTube service, video lookup disabled", zap.Error(ytErr))
		} else {
			videos = ytSvc
		}
	} else {
		logger.Warn("YOUTUBE_API_KEY not set, results will use the search-list embed")
	}

	dispatcher := music.NewDispatcher(tracks, videos, cfg.Pipeline.LookupTimeout, c.Recorder, logger)

	var tokenSource pipeline.TokenSource
	if tokens != nil {
		tokenSource = tokens
	}

	c.Lifecycle = pipeline.NewLifecycle(c.Analysis, dispatcher, pipeline.Options{
		AnalysisTimeout: cfg.Pipeline.AnalysisTimeout,
		ErrorRecovery:   cfg.Pipeline.ErrorRecoveryDelay,
		Tokens:          tokenSource,
		Recorder:        c.Recorder,
	}, logger)
	c.closers = append(c.closers, c.Lifecycle.Close)

	logger.Info("Application services assembled",
		zap.String("model", c.Models.DefaultGeminiModel()),
		zap.Bool("cache", cacheSvc != nil),
		zap.Bool("store", store != nil),
		zap.Bool("youtube", videos != nil),
		zap.Bool("spotify_token", tokens != nil),
	)

	return c, nil
}

// OpenHistory opens only the diary store, for commands that never analyze.
func OpenHistory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*export.Exporter, func(), error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		_ = store.Close()
	}
	return export.NewExporter(database.NewDiaryRepository(store, logger), logger), closeFn, nil
}

func openCache(ctx context.Context, cfg *config.Config, recorder *metrics.Recorder, logger *zap.Logger) *cache.CacheService {
	if cfg.Redis.Host == "" {
		logger.Info("REDIS_HOST not set, lookup cache disabled")
		return nil
	}

	cacheSvc, err := cache.NewCacheService(ctx, cache.CacheConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	}, recorder, logger)
	if err != nil {
		logger.Warn("Redis unavailable, lookup cache disabled", zap.Error(err))
		return nil
	}
	return cacheSvc
}

// openStore returns nil without error when no store is configured.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.Service, error) {
	if !cfg.StorageConfigured() {
		logger.Info("Diary store not configured, history will be empty",
			zap.String("driver", cfg.Storage.Driver))
		return nil, nil
	}

	switch cfg.Storage.Driver {
	case "sqlite":
		svc, err := database.OpenSQLite(ctx, cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return svc, nil
	case "postgres":
		svc, err := database.OpenPostgres(ctx, cfg.PostgresDSN(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}
