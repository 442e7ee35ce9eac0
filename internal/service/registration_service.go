package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-admin-api/internal/models"
	"github.com/noah-isme/lms-admin-api/internal/registration"
	"github.com/noah-isme/lms-admin-api/internal/repository"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

type courseFinder interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type applicationRegistrar interface {
	Register(ctx context.Context, application *models.Application, gate repository.RegistrationGate) error
}

// ApplyRequest is the payload of a registration attempt.
type ApplyRequest struct {
	CourseID string `json:"courseId" validate:"required,max=64"`
	UserID   string `json:"userId" validate:"required,max=64"`
}

// RegistrationService answers "can this user register now" and commits registrations.
type RegistrationService struct {
	courses      courseFinder
	applications applicationRegistrar
	cache        *CacheService
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(courses courseFinder, applications applicationRegistrar, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		courses:      courses,
		applications: applications,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// Check evaluates the course window at the current instant without side effects.
func (s *RegistrationService) Check(ctx context.Context, courseID string) (*models.RegistrationStatus, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	now := s.now().UTC()
	window := course.Window()
	admission, err := registration.CanRegister(window, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidWindow.Code, appErrors.ErrInvalidWindow.Status, appErrors.ErrInvalidWindow.Message)
	}
	return &models.RegistrationStatus{
		CourseID:       course.ID,
		State:          admission.State,
		Admitted:       admission.Admitted,
		Reason:         admission.Reason,
		RemainingSeats: window.RemainingSeats(),
		EvaluatedAt:    now,
	}, nil
}

// Apply commits a registration. The window is re-evaluated against the locked course row.
func (s *RegistrationService) Apply(ctx context.Context, req ApplyRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	now := s.now().UTC()
	application := &models.Application{CourseID: req.CourseID, UserID: req.UserID, AppliedAt: now}

	gate := func(course models.Course) error {
		admission, err := registration.CanRegister(course.Window(), now)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInvalidWindow.Code, appErrors.ErrInvalidWindow.Status, appErrors.ErrInvalidWindow.Message)
		}
		if !admission.Admitted {
			return denialError(admission.Reason)
		}
		return nil
	}

	err := s.applications.Register(ctx, application, gate)
	outcome := registrationOutcome(err)
	s.metrics.RecordRegistration(outcome)
	if err != nil {
		s.logger.Info("registration denied",
			zap.String("course_id", req.CourseID),
			zap.String("user_id", req.UserID),
			zap.String("outcome", outcome),
		)
		return nil, mapRegistrationError(err)
	}

	s.logger.Info("registration committed",
		zap.String("application_id", application.ID),
		zap.String("course_id", req.CourseID),
		zap.String("user_id", req.UserID),
	)
	s.cache.InvalidateCatalogue(ctx)
	return application, nil
}

func denialError(reason registration.DenialReason) *appErrors.Error {
	switch reason {
	case registration.ReasonNotYetOpen:
		return appErrors.ErrRegistrationNotOpen
	case registration.ReasonClosed:
		return appErrors.ErrRegistrationClosed
	default:
		return appErrors.ErrCourseFull
	}
}

func registrationOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeAdmitted
	case errors.Is(err, appErrors.ErrRegistrationNotOpen):
		return OutcomeNotYetOpen
	case errors.Is(err, appErrors.ErrRegistrationClosed):
		return OutcomeClosed
	case errors.Is(err, appErrors.ErrCourseFull), errors.Is(err, repository.ErrCapacityExhausted):
		return OutcomeFull
	case errors.Is(err, repository.ErrDuplicateApplication):
		return OutcomeAlreadyApplied
	case errors.Is(err, appErrors.ErrInvalidWindow):
		return OutcomeInvalidWindow
	default:
		return OutcomeError
	}
}

func mapRegistrationError(err error) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	case errors.Is(err, repository.ErrDuplicateApplication):
		return appErrors.ErrAlreadyApplied
	case errors.Is(err, repository.ErrCapacityExhausted):
		return appErrors.ErrCourseFull
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register application")
	}
}
