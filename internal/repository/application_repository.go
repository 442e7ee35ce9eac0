package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-admin-api/internal/models"
)

var (
	// ErrDuplicateApplication is returned when the user already holds a seat in the course.
	ErrDuplicateApplication = errors.New("application already exists for user and course")
	// ErrCapacityExhausted is returned when the conditional seat increment matched no row.
	ErrCapacityExhausted = errors.New("course capacity exhausted")
)

const applicationColumns = `id, course_id, user_id, status, applied_at, decided_at, completed_at`

const seatHoldingStatuses = `('PENDING', 'APPROVED', 'COMPLETED')`

// RegistrationGate decides, against the locked course row, whether a registration may proceed.
type RegistrationGate func(course models.Course) error

// TransitionGuard validates a status change against the locked application row.
type TransitionGuard func(current models.Application) error

// ApplicationRepository persists course applications and the seat counters they drive.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Register commits a PENDING application in a single transaction. The course row is locked
// before gate runs so that the decision and the seat increment observe the same counter.
func (r *ApplicationRepository) Register(ctx context.Context, application *models.Application, gate RegistrationGate) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var course models.Course
	lockQuery := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1 FOR UPDATE`, courseColumns)
	if err = tx.GetContext(ctx, &course, lockQuery, application.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock course: %w", err)
	}

	if gate != nil {
		if err = gate(course); err != nil {
			return err
		}
	}

	var existing int
	dupQuery := `SELECT COUNT(*) FROM applications WHERE course_id = $1 AND user_id = $2 AND status IN ` + seatHoldingStatuses
	if err = tx.GetContext(ctx, &existing, dupQuery, application.CourseID, application.UserID); err != nil {
		return fmt.Errorf("check duplicate application: %w", err)
	}
	if existing > 0 {
		err = ErrDuplicateApplication
		return err
	}

	if application.ID == "" {
		application.ID = uuid.NewString()
	}
	if application.AppliedAt.IsZero() {
		application.AppliedAt = time.Now().UTC()
	}
	application.Status = models.ApplicationStatusPending

	const insertQuery = `INSERT INTO applications (id, course_id, user_id, status, applied_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err = tx.ExecContext(ctx, insertQuery, application.ID, application.CourseID, application.UserID, application.Status, application.AppliedAt); err != nil {
		return fmt.Errorf("insert application: %w", err)
	}

	const seatQuery = `UPDATE courses SET current_participants = current_participants + 1, updated_at = $2
        WHERE id = $1 AND current_participants < max_participants`
	res, err := tx.ExecContext(ctx, seatQuery, application.CourseID, application.AppliedAt)
	if err != nil {
		return fmt.Errorf("increment participants: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment participants rows: %w", err)
	}
	if affected == 0 {
		err = ErrCapacityExhausted
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	return nil
}

// UpdateStatus moves an application to next under a row lock. Leaving a seat-holding status
// releases one seat on the course, floored at zero.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, next models.ApplicationStatus, at time.Time, guard TransitionGuard) (updated *models.Application, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Application
	lockQuery := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1 FOR UPDATE`, applicationColumns)
	if err = tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock application: %w", err)
	}

	if guard != nil {
		if err = guard(current); err != nil {
			return nil, err
		}
	}

	result := current
	result.Status = next
	switch next {
	case models.ApplicationStatusApproved, models.ApplicationStatusRejected, models.ApplicationStatusCancelled:
		result.DecidedAt = &at
	case models.ApplicationStatusCompleted:
		result.CompletedAt = &at
	}

	const updateQuery = `UPDATE applications SET status = $2, decided_at = $3, completed_at = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, id, result.Status, result.DecidedAt, result.CompletedAt); err != nil {
		return nil, fmt.Errorf("update application status: %w", err)
	}

	if current.Status.HoldsSeat() && !next.HoldsSeat() {
		const releaseQuery = `UPDATE courses SET current_participants = GREATEST(current_participants - 1, 0), updated_at = $2 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, releaseQuery, current.CourseID, at); err != nil {
			return nil, fmt.Errorf("release seat: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status change: %w", err)
	}
	return &result, nil
}

// FindByID returns an application with its course details.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	const query = `SELECT a.id, a.course_id, a.user_id, a.status, a.applied_at, a.decided_at, a.completed_at,
        c.title AS course_title, c.category AS course_category
        FROM applications a JOIN courses c ON c.id = a.course_id WHERE a.id = $1`
	var detail models.ApplicationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns applications matching filter with pagination.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("a.user_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("a.course_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT a.id, a.course_id, a.user_id, a.status, a.applied_at, a.decided_at, a.completed_at,
        c.title AS course_title, c.category AS course_category
        FROM applications a JOIN courses c ON c.id = a.course_id%s
        ORDER BY a.applied_at %s, a.id LIMIT %d OFFSET %d`, clause, order, size, (page-1)*size)

	var items []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM applications a"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return items, total, nil
}

// ListRoster returns every seat-holding application of a course ordered by application time.
func (r *ApplicationRepository) ListRoster(ctx context.Context, courseID string) ([]models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE course_id = $1 AND status IN %s ORDER BY applied_at ASC, id`, applicationColumns, seatHoldingStatuses)
	var items []models.Application
	if err := r.db.SelectContext(ctx, &items, query, courseID); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return items, nil
}

// CountSeatHolders returns the number of seat-holding applications for a course.
func (r *ApplicationRepository) CountSeatHolders(ctx context.Context, courseID string) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM applications WHERE course_id = $1 AND status IN ` + seatHoldingStatuses
	if err := r.db.GetContext(ctx, &total, query, courseID); err != nil {
		return 0, fmt.Errorf("count seat holders: %w", err)
	}
	return total, nil
}

// CountStudents returns the number of distinct users with a non-cancelled application.
func (r *ApplicationRepository) CountStudents(ctx context.Context) (int, error) {
	var total int
	const query = `SELECT COUNT(DISTINCT user_id) FROM applications WHERE status <> 'CANCELLED'`
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return total, nil
}

// CompletionCounts returns the number of completed applications and of those approved or completed.
func (r *ApplicationRepository) CompletionCounts(ctx context.Context) (completed int, eligible int, err error) {
	var row struct {
		Completed int `db:"completed"`
		Eligible  int `db:"eligible"`
	}
	const query = `SELECT
        COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed,
        COUNT(*) FILTER (WHERE status IN ('APPROVED', 'COMPLETED')) AS eligible
        FROM applications`
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("completion counts: %w", err)
	}
	return row.Completed, row.Eligible, nil
}
