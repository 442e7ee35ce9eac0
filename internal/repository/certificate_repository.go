package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-admin-api/internal/models"
)

const certificateColumns = `id, serial_number, application_id, student_name, course_title, completion_date, grade,
        status, file_path, issued_at, error_message, created_at`

// CertificateRepository persists certificate rows and their rendering state.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Create inserts a PENDING certificate.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.Status == "" {
		cert.Status = models.CertificateStatusPending
	}
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificates (id, serial_number, application_id, student_name, course_title, completion_date, grade,
        status, file_path, issued_at, error_message, created_at)
        VALUES (:id, :serial_number, :application_id, :student_name, :course_title, :completion_date, :grade,
        :status, :file_path, :issued_at, :error_message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// GetByID returns a certificate by its identifier.
func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE id = $1`, certificateColumns)
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, id); err != nil {
		return nil, err
	}
	return &cert, nil
}

// ExistsForApplication reports whether a certificate was already requested for the application.
func (r *CertificateRepository) ExistsForApplication(ctx context.Context, applicationID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM certificates WHERE application_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, applicationID); err != nil {
		return false, fmt.Errorf("check certificate existence: %w", err)
	}
	return exists, nil
}

// List returns certificates matching filter, newest first.
func (r *CertificateRepository) List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error) {
	var conditions []string
	var args []interface{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(student_name ILIKE $%[1]d OR course_title ILIKE $%[1]d)", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM certificates%s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		certificateColumns, clause, size, (page-1)*size)
	var items []models.Certificate
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list certificates: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM certificates"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count certificates: %w", err)
	}
	return items, total, nil
}

// MarkIssued records the rendered file and clears any previous error.
func (r *CertificateRepository) MarkIssued(ctx context.Context, id, filePath string, issuedAt time.Time) error {
	const query = `UPDATE certificates SET status = $2, file_path = $3, issued_at = $4, error_message = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.CertificateStatusIssued, filePath, issuedAt); err != nil {
		return fmt.Errorf("mark certificate issued: %w", err)
	}
	return nil
}

// MarkFailed records the final rendering error.
func (r *CertificateRepository) MarkFailed(ctx context.Context, id, message string) error {
	const query = `UPDATE certificates SET status = $2, error_message = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.CertificateStatusFailed, message); err != nil {
		return fmt.Errorf("mark certificate failed: %w", err)
	}
	return nil
}

// ListPending fetches certificates still waiting for rendering (used for cold start recovery).
func (r *CertificateRepository) ListPending(ctx context.Context, limit int) ([]models.Certificate, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE status = 'PENDING' ORDER BY created_at ASC LIMIT $1`, certificateColumns)
	var items []models.Certificate
	if err := r.db.SelectContext(ctx, &items, query, limit); err != nil {
		return nil, fmt.Errorf("list pending certificates: %w", err)
	}
	return items, nil
}
