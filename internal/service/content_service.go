package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-admin-api/internal/models"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

type contentRepository interface {
	List(ctx context.Context, filter models.ContentFilter) ([]models.Content, int, error)
	FindByID(ctx context.Context, id string) (*models.Content, error)
	Create(ctx context.Context, content *models.Content) error
	Update(ctx context.Context, content *models.Content) error
	Delete(ctx context.Context, id string) error
}

// ContentRequest is the payload for creating and updating contents.
type ContentRequest struct {
	Title           string             `json:"title" validate:"required,max=200"`
	Type            models.ContentType `json:"type" validate:"required,oneof=VIDEO PDF DOCUMENT LINK"`
	DurationMinutes *int               `json:"durationMinutes" validate:"omitempty,min=0"`
	CourseID        *string            `json:"courseId" validate:"omitempty,max=64"`
}

// ContentService manages learning materials.
type ContentService struct {
	repo      contentRepository
	courses   courseFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewContentService constructs a ContentService.
func NewContentService(repo contentRepository, courses courseFinder, validate *validator.Validate, logger *zap.Logger) *ContentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentService{repo: repo, courses: courses, validator: validate, logger: logger}
}

// List returns contents plus pagination data.
func (s *ContentService) List(ctx context.Context, filter models.ContentFilter) ([]models.Content, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contents")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a content by id.
func (s *ContentService) Get(ctx context.Context, id string) (*models.Content, error) {
	content, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load content")
	}
	return content, nil
}

// Create stores a new content.
func (s *ContentService) Create(ctx context.Context, req ContentRequest) (*models.Content, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	content := &models.Content{}
	applyContentRequest(content, req)
	if err := s.repo.Create(ctx, content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create content")
	}
	return content, nil
}

// Update modifies an existing content.
func (s *ContentService) Update(ctx context.Context, id string, req ContentRequest) (*models.Content, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	content, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyContentRequest(content, req)
	if err := s.repo.Update(ctx, content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update content")
	}
	return content, nil
}

// Delete removes a content.
func (s *ContentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete content")
	}
	return nil
}

func (s *ContentService) validate(ctx context.Context, req ContentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid content payload")
	}
	courseID := normalizeOptional(req.CourseID)
	if courseID == nil || s.courses == nil {
		return nil
	}
	if _, err := s.courses.FindByID(ctx, *courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "courseId does not reference an existing course")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return nil
}

func applyContentRequest(content *models.Content, req ContentRequest) {
	content.Title = strings.TrimSpace(req.Title)
	content.Type = req.Type
	content.DurationMinutes = req.DurationMinutes
	content.CourseID = normalizeOptional(req.CourseID)
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
