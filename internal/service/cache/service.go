package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kapu/kokoro-diary-go/internal/metrics"
	apperrors "github.com/kapu/kokoro-diary-go/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "kokoro:lookup"

// Lookup kinds used in keys and metrics.
const (
	KindTrack = "track"
	KindVideo = "video"
)

// CacheService is the optional Redis-backed lookup cache. A nil *CacheService is a valid,
// always-missing cache so lookups work without Redis.
type CacheService struct {
	client   *redis.Client
	ttl      time.Duration
	recorder *metrics.Recorder
	logger   *zap.Logger
}

type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

func NewCacheService(ctx context.Context, cfg CacheConfig, recorder *metrics.Recorder, logger *zap.Logger) (*CacheService, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.NewCacheError("failed to connect to Redis", "ping", "", err)
	}

	logger.Info("Redis connected",
		zap.String("addr", addr),
		zap.Int("db", cfg.DB),
		zap.Duration("ttl", cfg.TTL),
	)

	return newCacheService(client, cfg.TTL, recorder, logger), nil
}

func newCacheService(client *redis.Client, ttl time.Duration, recorder *metrics.Recorder, logger *zap.Logger) *CacheService {
	return &CacheService{client: client, ttl: ttl, recorder: recorder, logger: logger}
}

// LookupKey hashes the normalized query so arbitrary user text never lands in a key.
func LookupKey(kind, query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha1.Sum([]byte(normalized))
	return fmt.Sprintf("%s:%s:%s", keyPrefix, kind, hex.EncodeToString(sum[:]))
}

// GetLookup decodes a cached lookup into dest and reports whether it was present.
func (c *CacheService) GetLookup(ctx context.Context, kind, query string, dest any) (bool, error) {
	if c == nil {
		return false, nil
	}

	key := LookupKey(kind, query)
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		c.recorder.ObserveCache(kind, metrics.OutcomeMiss)
		return false, nil
	}
	if err != nil {
		c.recorder.ObserveCache(kind, metrics.OutcomeFailure)
		c.logger.Warn("Cache get failed", zap.String("key", key), zap.Error(err))
		return false, apperrors.NewCacheError("get failed", "get", key, err)
	}

	if err := json.Unmarshal([]byte(value), dest); err != nil {
		c.recorder.ObserveCache(kind, metrics.OutcomeFailure)
		c.logger.Warn("Cache unmarshal failed", zap.String("key", key), zap.Error(err))
		return false, apperrors.NewCacheError("unmarshal failed", "get", key, err)
	}

	c.recorder.ObserveCache(kind, metrics.OutcomeHit)
	return true, nil
}

func (c *CacheService) SetLookup(ctx context.Context, kind, query string, value any) error {
	if c == nil {
		return nil
	}

	key := LookupKey(kind, query)
	data, err := json.Marshal(value)
	if err != nil {
		return apperrors.NewCacheError("marshal failed", "set", key, err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache set failed", zap.String("key", key), zap.Error(err))
		return apperrors.NewCacheError("set failed", "set", key, err)
	}
	return nil
}

func (c *CacheService) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *CacheService) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
