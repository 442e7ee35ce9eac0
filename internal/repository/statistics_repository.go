package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-admin-api/internal/dto"
)

// MonthlyBucket is a raw aggregate row keyed by the first instant of a month.
type MonthlyBucket struct {
	Month     time.Time `db:"month"`
	Count     int       `db:"count"`
	Completed int       `db:"completed"`
	Decided   int       `db:"decided"`
}

// StatisticsRepository runs the aggregate queries behind the statistics charts.
type StatisticsRepository struct {
	db *sqlx.DB
}

// NewStatisticsRepository constructs the repository.
func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// MonthlyApplications counts applications per month of applied_at since the given instant.
// Months without applications are absent from the result.
func (r *StatisticsRepository) MonthlyApplications(ctx context.Context, since time.Time) ([]MonthlyBucket, error) {
	const query = `SELECT date_trunc('month', applied_at) AS month, COUNT(*) AS count
        FROM applications WHERE applied_at >= $1
        GROUP BY 1 ORDER BY 1`
	var rows []MonthlyBucket
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("monthly applications: %w", err)
	}
	return rows, nil
}

// MonthlyCompletion groups applications by month of applied_at and counts completed versus admitted ones.
func (r *StatisticsRepository) MonthlyCompletion(ctx context.Context, since time.Time) ([]MonthlyBucket, error) {
	const query = `SELECT date_trunc('month', applied_at) AS month,
        COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed,
        COUNT(*) FILTER (WHERE status IN ('APPROVED', 'COMPLETED')) AS decided
        FROM applications WHERE applied_at >= $1
        GROUP BY 1 ORDER BY 1`
	var rows []MonthlyBucket
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("monthly completion: %w", err)
	}
	return rows, nil
}

// CategoryBreakdown returns course and enrollment counts per category.
func (r *StatisticsRepository) CategoryBreakdown(ctx context.Context) ([]dto.CategoryBreakdown, error) {
	const query = `SELECT c.category AS category,
        COUNT(DISTINCT c.id) AS courses,
        COUNT(a.id) FILTER (WHERE a.status IN ('PENDING', 'APPROVED', 'COMPLETED')) AS enrollments
        FROM courses c LEFT JOIN applications a ON a.course_id = c.id
        GROUP BY c.category ORDER BY c.category`
	var rows []dto.CategoryBreakdown
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	return rows, nil
}
