package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-admin-api/internal/dto"
	"github.com/noah-isme/lms-admin-api/internal/repository"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

const maxStatisticsMonths = 24

type statisticsRepository interface {
	MonthlyApplications(ctx context.Context, since time.Time) ([]repository.MonthlyBucket, error)
	MonthlyCompletion(ctx context.Context, since time.Time) ([]repository.MonthlyBucket, error)
	CategoryBreakdown(ctx context.Context) ([]dto.CategoryBreakdown, error)
}

// StatisticsService builds the chart series of the statistics page.
type StatisticsService struct {
	repo          statisticsRepository
	logger        *zap.Logger
	now           func() time.Time
	defaultMonths int
}

// NewStatisticsService constructs a StatisticsService.
func NewStatisticsService(repo statisticsRepository, defaultMonths int, logger *zap.Logger) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultMonths <= 0 || defaultMonths > maxStatisticsMonths {
		defaultMonths = 6
	}
	return &StatisticsService{repo: repo, logger: logger, now: time.Now, defaultMonths: defaultMonths}
}

// Enrollments returns monthly application counts for the last months, oldest first, zero-filled.
func (s *StatisticsService) Enrollments(ctx context.Context, months int) (*dto.EnrollmentSeries, error) {
	months, err := s.resolveMonths(months)
	if err != nil {
		return nil, err
	}
	keys, since := monthWindow(s.now().UTC(), months)
	rows, err := s.repo.MonthlyApplications(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment statistics")
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Month.UTC().Format(monthLayout)] += row.Count
	}

	series := &dto.EnrollmentSeries{Months: make([]dto.MonthlyCount, 0, len(keys))}
	for _, key := range keys {
		series.Months = append(series.Months, dto.MonthlyCount{Month: key, Count: counts[key]})
		series.Total += counts[key]
	}
	return series, nil
}

// Completion returns the monthly completion rate of applications, grouped by application month.
func (s *StatisticsService) Completion(ctx context.Context, months int) (*dto.CompletionSeries, error) {
	months, err := s.resolveMonths(months)
	if err != nil {
		return nil, err
	}
	keys, since := monthWindow(s.now().UTC(), months)
	rows, err := s.repo.MonthlyCompletion(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completion statistics")
	}
	byMonth := make(map[string]repository.MonthlyBucket, len(rows))
	for _, row := range rows {
		byMonth[row.Month.UTC().Format(monthLayout)] = row
	}

	series := &dto.CompletionSeries{Months: make([]dto.MonthlyRate, 0, len(keys))}
	for _, key := range keys {
		row := byMonth[key]
		series.Months = append(series.Months, dto.MonthlyRate{
			Month:     key,
			Rate:      percentage(row.Completed, row.Decided),
			Completed: row.Completed,
			Decided:   row.Decided,
		})
	}
	return series, nil
}

// Categories returns per-category course and enrollment totals.
func (s *StatisticsService) Categories(ctx context.Context) ([]dto.CategoryBreakdown, error) {
	rows, err := s.repo.CategoryBreakdown(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category statistics")
	}
	if rows == nil {
		rows = []dto.CategoryBreakdown{}
	}
	return rows, nil
}

func (s *StatisticsService) resolveMonths(months int) (int, error) {
	if months == 0 {
		return s.defaultMonths, nil
	}
	if months < 0 || months > maxStatisticsMonths {
		return 0, appErrors.Clone(appErrors.ErrValidation, "months must be between 1 and 24")
	}
	return months, nil
}

const monthLayout = "2006-01"

// monthWindow returns the YYYY-MM keys of the last n months ending with now's month,
// and the first instant of the oldest month.
func monthWindow(now time.Time, n int) ([]string, time.Time) {
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	since := current.AddDate(0, -(n - 1), 0)
	keys := make([]string, 0, n)
	for m := since; !m.After(current); m = m.AddDate(0, 1, 0) {
		keys = append(keys, m.Format(monthLayout))
	}
	return keys, since
}
