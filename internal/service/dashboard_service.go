package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/lms-admin-api/internal/dto"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

var cacheKeyDashboardSummary = dashboardCacheKey("summary")

type courseCounter interface {
	Count(ctx context.Context) (int, error)
	CountOpen(ctx context.Context, now time.Time) (int, error)
	CountInProgress(ctx context.Context, now time.Time) (int, error)
}

type enrollmentCounter interface {
	CountStudents(ctx context.Context) (int, error)
	CompletionCounts(ctx context.Context) (completed int, eligible int, err error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Courses     courseCounter
	Enrollments enrollmentCounter
	Cache       *CacheService
	Metrics     *MetricsService
	Logger      *zap.Logger
	Config      DashboardServiceConfig
}

// DashboardService composes the admin home summary.
type DashboardService struct {
	courses     courseCounter
	enrollments enrollmentCounter
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
	cfg         DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		courses:     params.Courses,
		enrollments: params.Enrollments,
		cache:       params.Cache,
		metrics:     params.Metrics,
		logger:      logger,
		now:         time.Now,
		cfg:         cfg,
	}
}

// Summary returns the dashboard cards and whether they came from cache.
func (s *DashboardService) Summary(ctx context.Context) (*dto.DashboardSummary, bool, error) {
	if s.cache != nil {
		var cached dto.DashboardSummary
		hit, err := s.cache.Get(ctx, cacheKeyDashboardSummary, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
		if hit {
			return &cached, true, nil
		}
	}

	summary, err := s.compose(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKeyDashboardSummary, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, false, nil
}

func (s *DashboardService) compose(ctx context.Context) (*dto.DashboardSummary, error) {
	now := s.now().UTC()
	summary := &dto.DashboardSummary{GeneratedAt: now}
	var completed, eligible int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.timed("dashboard_total_courses", func() (err error) {
			summary.TotalCourses, err = s.courses.Count(gctx)
			return err
		})
	})
	g.Go(func() error {
		return s.timed("dashboard_open_courses", func() (err error) {
			summary.OpenCourses, err = s.courses.CountOpen(gctx, now)
			return err
		})
	})
	g.Go(func() error {
		return s.timed("dashboard_active_courses", func() (err error) {
			summary.ActiveCourses, err = s.courses.CountInProgress(gctx, now)
			return err
		})
	})
	g.Go(func() error {
		return s.timed("dashboard_total_students", func() (err error) {
			summary.TotalStudents, err = s.enrollments.CountStudents(gctx)
			return err
		})
	})
	g.Go(func() error {
		return s.timed("dashboard_completion", func() (err error) {
			completed, eligible, err = s.enrollments.CompletionCounts(gctx)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary.CompletionRate = percentage(completed, eligible)
	return summary, nil
}

func (s *DashboardService) timed(label string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveDBQuery(label, time.Since(start))
	return err
}

// percentage returns part/whole*100 rounded to one decimal, 0 when whole is 0.
func percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
