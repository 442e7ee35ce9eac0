package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-admin-api/internal/dto"
	"github.com/noah-isme/lms-admin-api/internal/models"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
	"github.com/noah-isme/lms-admin-api/pkg/export"
	"github.com/noah-isme/lms-admin-api/pkg/jobs"
)

// CertificateJobType labels certificate rendering jobs on the queue.
const CertificateJobType = "certificate.render"

type certificateStore interface {
	Create(ctx context.Context, cert *models.Certificate) error
	GetByID(ctx context.Context, id string) (*models.Certificate, error)
	ExistsForApplication(ctx context.Context, applicationID string) (bool, error)
	List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error)
	MarkIssued(ctx context.Context, id, filePath string, issuedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string) error
	ListPending(ctx context.Context, limit int) ([]models.Certificate, error)
}

type applicationFinder interface {
	FindByID(ctx context.Context, id string) (*models.ApplicationDetail, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupTempOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string) (resourceID, relPath string, expiresAt time.Time, err error)
}

type certificateRenderer interface {
	RenderCertificate(content export.CertificateContent) ([]byte, error)
}

// CreateCertificateRequest is the payload for requesting a certificate.
type CreateCertificateRequest struct {
	ApplicationID string `json:"applicationId" validate:"required,max=64"`
	StudentName   string `json:"studentName" validate:"required,max=100"`
	Grade         string `json:"grade" validate:"required,max=10"`
}

// CertificateServiceConfig governs link building and temp file cleanup.
type CertificateServiceConfig struct {
	APIPrefix       string
	CleanupInterval time.Duration
}

// CertificateDownload aggregates resolved download data.
type CertificateDownload struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// CertificateService orchestrates certificate requests, links and downloads.
type CertificateService struct {
	certs        certificateStore
	applications applicationFinder
	queue        jobDispatcher
	storage      fileStorage
	signer       downloadSigner
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
	cfg          CertificateServiceConfig
}

// NewCertificateService constructs the certificate service.
func NewCertificateService(certs certificateStore, applications applicationFinder, queue jobDispatcher, storage fileStorage, signer downloadSigner, validate *validator.Validate, logger *zap.Logger, cfg CertificateServiceConfig) *CertificateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	return &CertificateService{
		certs:        certs,
		applications: applications,
		queue:        queue,
		storage:      storage,
		signer:       signer,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
		cfg:          cfg,
	}
}

// List returns certificates plus pagination data.
func (s *CertificateService) List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, *models.Pagination, error) {
	items, total, err := s.certs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a certificate by id.
func (s *CertificateService) Get(ctx context.Context, id string) (*models.Certificate, error) {
	cert, err := s.certs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return cert, nil
}

// Request creates a PENDING certificate for a completed application and queues rendering.
func (s *CertificateService) Request(ctx context.Context, req CreateCertificateRequest) (*models.Certificate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid certificate payload")
	}
	application, err := s.applications.FindByID(ctx, req.ApplicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if application.Status != models.ApplicationStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificates are issued for completed applications only")
	}
	exists, err := s.certs.ExistsForApplication(ctx, application.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check certificate")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "certificate already requested for application")
	}

	now := s.now().UTC()
	completion := now
	if application.CompletedAt != nil {
		completion = application.CompletedAt.UTC()
	}
	cert := &models.Certificate{
		SerialNumber:   newSerialNumber(now),
		ApplicationID:  application.ID,
		StudentName:    strings.TrimSpace(req.StudentName),
		CourseTitle:    application.CourseTitle,
		CompletionDate: completion,
		Grade:          strings.TrimSpace(req.Grade),
		Status:         models.CertificateStatusPending,
		CreatedAt:      now,
	}
	if err := s.certs.Create(ctx, cert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create certificate")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: cert.ID, Type: CertificateJobType}); err != nil {
		if markErr := s.certs.MarkFailed(ctx, cert.ID, "failed to enqueue rendering"); markErr != nil {
			s.logger.Warn("failed to mark certificate failed", zap.String("certificate_id", cert.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue certificate rendering")
	}
	s.logger.Info("certificate requested", zap.String("certificate_id", cert.ID), zap.String("serial", cert.SerialNumber))
	return cert, nil
}

// Link issues a signed download link for an issued certificate.
func (s *CertificateService) Link(ctx context.Context, id string) (*dto.CertificateLink, error) {
	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert.Status != models.CertificateStatusIssued || cert.FilePath == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificate is not issued yet")
	}
	token, expiresAt, err := s.signer.Generate(cert.ID, *cert.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &dto.CertificateLink{
		CertificateID: cert.ID,
		Token:         token,
		URL:           fmt.Sprintf("%s/certificates/download/%s", prefix, token),
		ExpiresAt:     expiresAt,
	}, nil
}

// ResolveDownload validates token and opens the stored certificate file.
func (s *CertificateService) ResolveDownload(ctx context.Context, token string) (*CertificateDownload, error) {
	certID, relPath, expiresAt, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	cert, err := s.Get(ctx, certID)
	if err != nil {
		return nil, err
	}
	if cert.Status != models.CertificateStatusIssued || cert.FilePath == nil || *cert.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match certificate")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open certificate file")
	}
	return &CertificateDownload{File: file, Filename: filepath.Base(relPath), ExpiresAt: expiresAt}, nil
}

// RecoverPending re-enqueues certificates left PENDING by a previous process.
func (s *CertificateService) RecoverPending(ctx context.Context) int {
	pending, err := s.certs.ListPending(ctx, 100)
	if err != nil {
		s.logger.Warn("failed to recover pending certificates", zap.Error(err))
		return 0
	}
	requeued := 0
	for _, cert := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: cert.ID, Type: CertificateJobType}); err != nil {
			s.logger.Warn("failed to requeue certificate", zap.String("certificate_id", cert.ID), zap.Error(err))
			continue
		}
		requeued++
	}
	if requeued > 0 {
		s.logger.Info("pending certificates requeued", zap.Int("count", requeued))
	}
	return requeued
}

// StartCleanup boots a goroutine that removes stray temp files periodically.
func (s *CertificateService) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupTemp()
			}
		}
	}()
}

func (s *CertificateService) cleanupTemp() {
	removed, err := s.storage.CleanupTempOlderThan(s.cfg.CleanupInterval)
	if err != nil {
		s.logger.Warn("certificate temp cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("certificate temp files removed", zap.Int("count", len(removed)))
	}
}

func newSerialNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("CERT-%d-%s", now.Year(), suffix)
}

// CertificateWorker renders queued certificates.
type CertificateWorker struct {
	certs    certificateStore
	renderer certificateRenderer
	storage  fileStorage
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewCertificateWorker constructs a worker.
func NewCertificateWorker(certs certificateStore, renderer certificateRenderer, storage fileStorage, metrics *MetricsService, logger *zap.Logger) *CertificateWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateWorker{
		certs:    certs,
		renderer: renderer,
		storage:  storage,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle processes a queue job. Certificates that are no longer PENDING are skipped.
func (w *CertificateWorker) Handle(ctx context.Context, job jobs.Job) error {
	cert, err := w.certs.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load certificate %s: %w", job.ID, err)
	}
	if cert.Status != models.CertificateStatusPending {
		return nil
	}

	issuedAt := w.now().UTC()
	payload, err := w.renderer.RenderCertificate(export.CertificateContent{
		SerialNumber:   cert.SerialNumber,
		StudentName:    cert.StudentName,
		CourseTitle:    cert.CourseTitle,
		Grade:          cert.Grade,
		CompletionDate: cert.CompletionDate,
		IssuedAt:       issuedAt,
	})
	if err != nil {
		return fmt.Errorf("render certificate: %w", err)
	}
	relPath, err := w.storage.Save(cert.SerialNumber+".pdf", payload)
	if err != nil {
		return fmt.Errorf("store certificate: %w", err)
	}
	if err := w.certs.MarkIssued(ctx, cert.ID, relPath, issuedAt); err != nil {
		if delErr := w.storage.Delete(relPath); delErr != nil {
			w.logger.Warn("failed to remove unreferenced certificate file", zap.String("path", relPath), zap.Error(delErr))
		}
		return err
	}
	w.logger.Info("certificate issued", zap.String("certificate_id", cert.ID), zap.String("path", relPath))
	return nil
}

// OnResult is installed as the queue result hook; it records metrics and marks exhausted jobs FAILED.
func (w *CertificateWorker) OnResult(job jobs.Job, err error, final bool) {
	switch {
	case err == nil:
		w.metrics.RecordCertificateRender("issued")
		return
	case !final:
		w.metrics.RecordCertificateRender("retry")
		return
	}
	w.metrics.RecordCertificateRender("failed")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if markErr := w.certs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
		w.logger.Warn("failed to mark certificate failed", zap.String("certificate_id", job.ID), zap.Error(markErr))
	}
}
