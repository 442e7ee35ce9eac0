package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-admin-api/internal/dto"
	"github.com/noah-isme/lms-admin-api/internal/repository"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

type fakeCourseCounter struct {
	total, open, active int
	calls               int32
	err                 error
}

func (f *fakeCourseCounter) Count(context.Context) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.total, f.err
}

func (f *fakeCourseCounter) CountOpen(_ context.Context, now time.Time) (int, error) {
	if !now.Equal(feb10) {
		return 0, errors.New("unexpected reference instant")
	}
	return f.open, nil
}

func (f *fakeCourseCounter) CountInProgress(context.Context, time.Time) (int, error) {
	return f.active, nil
}

type fakeEnrollmentCounter struct {
	students, completed, eligible int
}

func (f fakeEnrollmentCounter) CountStudents(context.Context) (int, error) {
	return f.students, nil
}

func (f fakeEnrollmentCounter) CompletionCounts(context.Context) (int, int, error) {
	return f.completed, f.eligible, nil
}

func newTestDashboard(courses *fakeCourseCounter, cache *CacheService) *DashboardService {
	svc := NewDashboardService(DashboardServiceParams{
		Courses:     courses,
		Enrollments: fakeEnrollmentCounter{students: 42, completed: 1, eligible: 3},
		Cache:       cache,
		Metrics:     NewMetricsService(),
		Logger:      zap.NewNop(),
	})
	svc.now = func() time.Time { return feb10 }
	return svc
}

func TestDashboardSummary(t *testing.T) {
	courses := &fakeCourseCounter{total: 12, open: 4, active: 3}
	svc := newTestDashboard(courses, nil)

	summary, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, dto.DashboardSummary{
		TotalCourses:   12,
		OpenCourses:    4,
		ActiveCourses:  3,
		TotalStudents:  42,
		CompletionRate: 33.3,
		GeneratedAt:    feb10,
	}, *summary)
}

func TestDashboardSummaryCachesResult(t *testing.T) {
	courses := &fakeCourseCounter{total: 12}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	svc := newTestDashboard(courses, cache)

	_, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	summary, cached, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 12, summary.TotalCourses)
	assert.Equal(t, int32(1), atomic.LoadInt32(&courses.calls))
}

func TestDashboardSummaryPropagatesQueryFailure(t *testing.T) {
	svc := newTestDashboard(&fakeCourseCounter{err: errors.New("db down")}, nil)

	_, _, err := svc.Summary(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, percentage(5, 0))
	assert.Equal(t, 50.0, percentage(1, 2))
	assert.Equal(t, 66.7, percentage(2, 3))
	assert.Equal(t, 100.0, percentage(4, 4))
}

type fakeStatisticsRepo struct {
	since      time.Time
	monthly    []repository.MonthlyBucket
	completion []repository.MonthlyBucket
	categories []dto.CategoryBreakdown
}

func (f *fakeStatisticsRepo) MonthlyApplications(_ context.Context, since time.Time) ([]repository.MonthlyBucket, error) {
	f.since = since
	return f.monthly, nil
}

func (f *fakeStatisticsRepo) MonthlyCompletion(_ context.Context, since time.Time) ([]repository.MonthlyBucket, error) {
	f.since = since
	return f.completion, nil
}

func (f *fakeStatisticsRepo) CategoryBreakdown(context.Context) ([]dto.CategoryBreakdown, error) {
	return f.categories, nil
}

func TestStatisticsEnrollmentsZeroFillsMissingMonths(t *testing.T) {
	repo := &fakeStatisticsRepo{monthly: []repository.MonthlyBucket{
		{Month: time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), Count: 7},
		{Month: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), Count: 3},
	}}
	svc := NewStatisticsService(repo, 6, zap.NewNop())
	svc.now = func() time.Time { return feb10 }

	series, err := svc.Enrollments(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), repo.since)
	assert.Equal(t, []dto.MonthlyCount{
		{Month: "2023-12", Count: 7},
		{Month: "2024-01", Count: 0},
		{Month: "2024-02", Count: 3},
	}, series.Months)
	assert.Equal(t, 10, series.Total)
}

func TestStatisticsEnrollmentsDefaultAndBounds(t *testing.T) {
	svc := NewStatisticsService(&fakeStatisticsRepo{}, 0, zap.NewNop())
	svc.now = func() time.Time { return feb10 }

	series, err := svc.Enrollments(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, series.Months, 6)
	assert.Equal(t, "2023-09", series.Months[0].Month)

	_, err = svc.Enrollments(context.Background(), 25)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	_, err = svc.Completion(context.Background(), -1)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStatisticsCompletionRates(t *testing.T) {
	repo := &fakeStatisticsRepo{completion: []repository.MonthlyBucket{
		{Month: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), Completed: 2, Decided: 8},
	}}
	svc := NewStatisticsService(repo, 6, zap.NewNop())
	svc.now = func() time.Time { return feb10 }

	series, err := svc.Completion(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []dto.MonthlyRate{
		{Month: "2024-01", Rate: 25, Completed: 2, Decided: 8},
		{Month: "2024-02", Rate: 0},
	}, series.Months)
}

func TestStatisticsCategoriesNeverNil(t *testing.T) {
	svc := NewStatisticsService(&fakeStatisticsRepo{}, 6, zap.NewNop())
	rows, err := svc.Categories(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestMonthWindowCrossesYearBoundary(t *testing.T) {
	keys, since := monthWindow(time.Date(2024, time.January, 31, 23, 0, 0, 0, time.UTC), 2)
	assert.Equal(t, []string{"2023-12", "2024-01"}, keys)
	assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), since)
}
