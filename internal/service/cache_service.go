package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

// Cache namespaces. Course lists embed seat counts and the dashboard aggregates them,
// so both are dropped together whenever a course or an application changes.
const (
	cacheNamespaceCourses   = "courses"
	cacheNamespaceDashboard = "dash"
)

var catalogueNamespaces = []string{cacheNamespaceCourses, cacheNamespaceDashboard}

// CacheRepository abstracts persistence for cached course lists and dashboard payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

func courseCacheKey(name string) string {
	return cacheNamespaceCourses + ":" + name
}

func dashboardCacheKey(name string) string {
	return cacheNamespaceDashboard + ":" + name
}

// CacheService fronts the catalogue and dashboard caches and feeds hit/miss metrics.
// Read and write failures are returned to the caller, which decides whether to log them.
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
		defaultTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active. Safe on a nil receiver.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get loads key into dest and reports a hit. A miss is not an error.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	}
	return false, err
}

// Set stores value under key. A non-positive ttl falls back to the service default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	return err
}

// InvalidateCatalogue drops every cached course list and the dashboard summary.
func (s *CacheService) InvalidateCatalogue(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	for _, namespace := range catalogueNamespaces {
		if err := s.repo.DeleteByPattern(ctx, namespace+":*"); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("namespace", namespace), zap.Error(err))
		}
	}
}
