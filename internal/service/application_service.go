package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-admin-api/internal/models"
	"github.com/noah-isme/lms-admin-api/internal/repository"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

type applicationRepository interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ApplicationDetail, error)
	UpdateStatus(ctx context.Context, id string, next models.ApplicationStatus, at time.Time, guard repository.TransitionGuard) (*models.Application, error)
}

// UpdateApplicationStatusRequest is the payload of an application status change.
type UpdateApplicationStatusRequest struct {
	Status models.ApplicationStatus `json:"status" validate:"required,oneof=APPROVED REJECTED COMPLETED CANCELLED"`
}

// ApplicationService manages the review lifecycle of course applications.
type ApplicationService struct {
	repo      applicationRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewApplicationService constructs an ApplicationService.
func NewApplicationService(repo applicationRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{repo: repo, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// List returns applications plus pagination data.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, *models.Pagination, error) {
	if filter.Status != "" && !isApplicationStatus(filter.Status) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown application status")
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an application by id.
func (s *ApplicationService) Get(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return detail, nil
}

// UpdateStatus applies a lifecycle transition. Seats are released when the application leaves a seat-holding status.
func (s *ApplicationService) UpdateStatus(ctx context.Context, id string, req UpdateApplicationStatusRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	guard := func(current models.Application) error {
		if !current.Status.CanTransitionTo(req.Status) {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot move application from %s to %s", current.Status, req.Status))
		}
		return nil
	}

	updated, err := s.repo.UpdateStatus(ctx, id, req.Status, s.now().UTC(), guard)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application status")
	}

	s.logger.Info("application status changed",
		zap.String("application_id", id),
		zap.String("status", string(updated.Status)),
	)
	s.cache.InvalidateCatalogue(ctx)
	return updated, nil
}

func isApplicationStatus(status models.ApplicationStatus) bool {
	switch status {
	case models.ApplicationStatusPending, models.ApplicationStatusApproved, models.ApplicationStatusRejected,
		models.ApplicationStatusCompleted, models.ApplicationStatusCancelled:
		return true
	}
	return false
}
