package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Counter(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// CacheService wraps the cache repository with metrics. Cache failures are
// logged and reported as misses; they never fail the caller.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get reports whether key was found and decoded into dest.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores the value using the default TTL when ttl is not positive.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.repo.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes cached values matching pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

// Generation reads the counter stamped into keys of a cached family. ok is false
// when the counter cannot be read; callers then bypass the cache.
func (s *CacheService) Generation(ctx context.Context, counter string) (gen int64, ok bool) {
	if !s.Enabled() {
		return 0, false
	}
	gen, err := s.repo.Counter(ctx, counter)
	if err != nil {
		s.logger.Warn("cache generation read failed", zap.String("counter", counter), zap.Error(err))
		return 0, false
	}
	return gen, true
}

// SetForGeneration stores value only while counter still equals gen, so a
// payload loaded before an invalidation is never written back.
func (s *CacheService) SetForGeneration(ctx context.Context, counter string, gen int64, key string, value interface{}, ttl time.Duration) {
	current, ok := s.Generation(ctx, counter)
	if !ok || current != gen {
		return
	}
	s.Set(ctx, key, value, ttl)
}

// InvalidateGeneration bumps counter before removing keys matching pattern.
// Readers holding the old generation can no longer publish under a live key.
func (s *CacheService) InvalidateGeneration(ctx context.Context, counter, pattern string) {
	if !s.Enabled() {
		return
	}
	if _, err := s.repo.Incr(ctx, counter); err != nil {
		s.logger.Warn("cache generation bump failed", zap.String("counter", counter), zap.Error(err))
	}
	s.Invalidate(ctx, pattern)
}
