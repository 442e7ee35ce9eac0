package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-admin-api/internal/dto"
	"github.com/noah-isme/lms-admin-api/internal/middleware"
	"github.com/noah-isme/lms-admin-api/internal/service"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

type fakeDashboardSrv struct {
	summary *dto.DashboardSummary
	hit     bool
	err     error
}

func (f *fakeDashboardSrv) Summary(context.Context) (*dto.DashboardSummary, bool, error) {
	return f.summary, f.hit, f.err
}

func TestDashboardHandlerSummary(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{summary: &dto.DashboardSummary{TotalCourses: 7, CompletionRate: 42.5}, hit: true})
	c, rec := newTestContext(http.MethodGet, "/dashboard", "")
	middleware.WithResponseMeta()(c)

	handler.Summary(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, string(env.Data), `"totalCourses":7`)
	assert.Contains(t, string(env.Data), `"completionRate":42.5`)
}

func TestDashboardHandlerSummaryFailure(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{err: appErrors.Wrap(errors.New("db down"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard")})
	c, rec := newTestContext(http.MethodGet, "/dashboard", "")

	handler.Summary(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, c.Errors, 1)
}

type fakeStatisticsSrv struct {
	months int
	err    error
}

func (f *fakeStatisticsSrv) Enrollments(_ context.Context, months int) (*dto.EnrollmentSeries, error) {
	f.months = months
	return &dto.EnrollmentSeries{Months: []dto.MonthlyCount{{Month: "2024-02", Count: 3}}, Total: 3}, f.err
}

func (f *fakeStatisticsSrv) Completion(_ context.Context, months int) (*dto.CompletionSeries, error) {
	f.months = months
	return &dto.CompletionSeries{}, f.err
}

func (f *fakeStatisticsSrv) Categories(context.Context) ([]dto.CategoryBreakdown, error) {
	return []dto.CategoryBreakdown{{Category: "programming", Courses: 2, Enrollments: 9}}, f.err
}

func TestStatisticsHandlerMonthsParam(t *testing.T) {
	srv := &fakeStatisticsSrv{}
	handler := NewStatisticsHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/statistics/enrollments?months=12", "")
	handler.Enrollments(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12, srv.months)

	c, rec = newTestContext(http.MethodGet, "/statistics/completion", "")
	handler.Completion(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, srv.months)

	c, rec = newTestContext(http.MethodGet, "/statistics/enrollments?months=abc", "")
	handler.Enrollments(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatisticsHandlerCategories(t *testing.T) {
	handler := NewStatisticsHandler(&fakeStatisticsSrv{})
	c, rec := newTestContext(http.MethodGet, "/statistics/categories", "")

	handler.Categories(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"enrollments":9`)
}

type fakePinger struct {
	err error
}

func (f fakePinger) PingContext(context.Context) error {
	return f.err
}

func TestMetricsHandlerReady(t *testing.T) {
	handler := NewMetricsHandler(service.NewMetricsService(), fakePinger{})
	c, rec := newTestContext(http.MethodGet, "/ready", "")
	handler.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	handler = NewMetricsHandler(nil, fakePinger{err: errors.New("connection refused")})
	c, rec = newTestContext(http.MethodGet, "/ready", "")
	handler.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsHandlerPrometheusAndSnapshot(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordRegistration(service.OutcomeAdmitted)
	handler := NewMetricsHandler(metrics, nil)

	c, rec := newTestContext(http.MethodGet, "/metrics", "")
	handler.Prometheus(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `registration_attempts_total{outcome="admitted"} 1`)

	c, rec = newTestContext(http.MethodGet, "/metrics/summary", "")
	handler.Snapshot(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"registrationsAdmitted":1`)
}
