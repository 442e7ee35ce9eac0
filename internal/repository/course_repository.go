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
	"github.com/lib/pq"

	"github.com/noah-isme/lms-admin-api/internal/models"
	"github.com/noah-isme/lms-admin-api/internal/registration"
)

const courseColumns = `id, title, category, instructor, credits, description, registration_start, registration_end,
        start_date, end_date, max_participants, current_participants, created_at, updated_at`

// foreignKeyViolation is the Postgres SQLSTATE raised when a referenced row is deleted.
const foreignKeyViolation = "23503"

// ErrCourseReferenced reports that applications still point at the course.
var ErrCourseReferenced = errors.New("course is referenced by applications")

// CourseRepository handles persistence of courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// stateCondition mirrors registration.Classify in SQL with inclusive bounds.
func stateCondition(state registration.State, placeholder string) string {
	switch state {
	case registration.StateUpcoming:
		return fmt.Sprintf("registration_start > %s", placeholder)
	case registration.StateClosed:
		return fmt.Sprintf("registration_end < %s", placeholder)
	case registration.StateOpen:
		return fmt.Sprintf("registration_start <= %[1]s AND registration_end >= %[1]s", placeholder)
	}
	return ""
}

// List returns courses filtered by the provided criteria. now anchors the state filter.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter, now time.Time) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%[1]d OR instructor ILIKE $%[1]d)", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.State != "" {
		if cond := stateCondition(filter.State, fmt.Sprintf("$%d", len(args)+1)); cond != "" {
			conditions = append(conditions, cond)
			args = append(args, now)
		}
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"registration_start": "registration_start",
		"start_date":         "start_date",
		"title":              "title",
		"created_at":         "created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "registration_start"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM courses%s ORDER BY %s %s, id LIMIT %d OFFSET %d`, courseColumns, clause, orderBy, order, size, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// ListAvailable returns courses open for registration at now with seats left.
func (r *CourseRepository) ListAvailable(ctx context.Context, now time.Time) ([]models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses
        WHERE %s AND current_participants < max_participants
        ORDER BY registration_end ASC, id`, courseColumns, stateCondition(registration.StateOpen, "$1"))
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, now); err != nil {
		return nil, fmt.Errorf("list available courses: %w", err)
	}
	return courses, nil
}

// NextRegistrationStart returns the earliest registration_start after now, if any course is still upcoming.
func (r *CourseRepository) NextRegistrationStart(ctx context.Context, now time.Time) (time.Time, bool, error) {
	query := "SELECT MIN(registration_start) FROM courses WHERE " + stateCondition(registration.StateUpcoming, "$1")
	var next sql.NullTime
	if err := r.db.GetContext(ctx, &next, query, now); err != nil {
		return time.Time{}, false, fmt.Errorf("next registration start: %w", err)
	}
	if !next.Valid {
		return time.Time{}, false, nil
	}
	return next.Time, true, nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, title, category, instructor, credits, description, registration_start, registration_end,
        start_date, end_date, max_participants, current_participants, created_at, updated_at)
        VALUES (:id, :title, :category, :instructor, :credits, :description, :registration_start, :registration_end,
        :start_date, :end_date, :max_participants, :current_participants, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update overwrites editable course fields. current_participants is owned by the application commit path.
// The capacity guard keeps max_participants from dropping below the live count.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) (bool, error) {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, category = :category, instructor = :instructor, credits = :credits,
        description = :description, registration_start = :registration_start, registration_end = :registration_end,
        start_date = :start_date, end_date = :end_date, max_participants = :max_participants, updated_at = :updated_at
        WHERE id = :id AND current_participants <= :max_participants`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return false, fmt.Errorf("update course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update course rows: %w", err)
	}
	return affected == 1, nil
}

// Delete removes a course.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return ErrCourseReferenced
		}
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// Count returns the catalogue size.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses`); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return total, nil
}

// CountOpen returns courses whose registration window contains now.
func (r *CourseRepository) CountOpen(ctx context.Context, now time.Time) (int, error) {
	var total int
	query := "SELECT COUNT(*) FROM courses WHERE " + stateCondition(registration.StateOpen, "$1")
	if err := r.db.GetContext(ctx, &total, query, now); err != nil {
		return 0, fmt.Errorf("count open courses: %w", err)
	}
	return total, nil
}

// CountInProgress returns courses whose teaching period contains now.
func (r *CourseRepository) CountInProgress(ctx context.Context, now time.Time) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM courses WHERE start_date <= $1 AND end_date >= $1`
	if err := r.db.GetContext(ctx, &total, query, now); err != nil {
		return 0, fmt.Errorf("count in-progress courses: %w", err)
	}
	return total, nil
}
