package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-admin-api/internal/models"
	"github.com/noah-isme/lms-admin-api/internal/registration"
	"github.com/noah-isme/lms-admin-api/internal/repository"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

var cacheKeyAvailableCourses = courseCacheKey("available")

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter, now time.Time) ([]models.Course, int, error)
	ListAvailable(ctx context.Context, now time.Time) ([]models.Course, error)
	NextRegistrationStart(ctx context.Context, now time.Time) (time.Time, bool, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) (bool, error)
	Delete(ctx context.Context, id string) error
}

type seatHolderCounter interface {
	CountSeatHolders(ctx context.Context, courseID string) (int, error)
}

// CourseRequest is the payload for creating and updating courses.
type CourseRequest struct {
	Title             string    `json:"title" validate:"required,max=200"`
	Category          string    `json:"category" validate:"required,max=100"`
	Instructor        string    `json:"instructor" validate:"required,max=100"`
	Credits           int       `json:"credits" validate:"min=0,max=30"`
	Description       string    `json:"description" validate:"max=5000"`
	RegistrationStart time.Time `json:"registrationStart" validate:"required"`
	RegistrationEnd   time.Time `json:"registrationEnd" validate:"required"`
	StartDate         time.Time `json:"startDate" validate:"required"`
	EndDate           time.Time `json:"endDate" validate:"required,gtefield=StartDate"`
	MaxParticipants   int       `json:"maxParticipants" validate:"required,min=1"`
}

// CourseServiceConfig tunes caching of the available list.
type CourseServiceConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// CourseService manages the course catalogue.
type CourseService struct {
	repo      courseRepository
	seats     seatHolderCounter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	cfg       CourseServiceConfig
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, seats seatHolderCounter, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg CourseServiceConfig) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &CourseService{
		repo:      repo,
		seats:     seats,
		cache:     cache,
		validator: validate,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// List returns course views with pagination data.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseView, *models.Pagination, error) {
	if filter.State != "" && !isRegistrationState(filter.State) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "state must be UPCOMING, OPEN or CLOSED")
	}
	now := s.now().UTC()
	courses, total, err := s.repo.List(ctx, filter, now)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return toCourseViews(courses, now), &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Available returns courses accepting registrations now. The bool reports a cache hit.
func (s *CourseService) Available(ctx context.Context) ([]models.CourseView, bool, error) {
	now := s.now().UTC()
	if s.cfg.CacheEnabled && s.cache != nil {
		var cached []models.Course
		hit, err := s.cache.Get(ctx, cacheKeyAvailableCourses, &cached)
		if err != nil {
			s.logger.Warn("available courses cache read failed", zap.Error(err))
		}
		if hit {
			return filterAdmitting(toCourseViews(cached, now)), true, nil
		}
	}

	courses, err := s.repo.ListAvailable(ctx, now)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available courses")
	}
	if s.cfg.CacheEnabled && s.cache != nil {
		s.cacheAvailable(ctx, courses, now)
	}
	return toCourseViews(courses, now), false, nil
}

// cacheAvailable stores the open list for at most the configured TTL and never past the next registration_start.
func (s *CourseService) cacheAvailable(ctx context.Context, courses []models.Course, now time.Time) {
	ttl := s.cfg.CacheTTL
	next, ok, err := s.repo.NextRegistrationStart(ctx, now)
	if err != nil {
		s.logger.Warn("available courses not cached", zap.Error(err))
		return
	}
	if ok {
		if untilOpen := next.Sub(now); untilOpen < ttl {
			ttl = untilOpen
		}
	}
	if err := s.cache.Set(ctx, cacheKeyAvailableCourses, courses, ttl); err != nil {
		s.logger.Warn("available courses cache write failed", zap.Error(err))
	}
}

// Get returns a single course view.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseView, error) {
	course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	view := models.NewCourseView(*course, s.now().UTC())
	return &view, nil
}

// Create adds a course to the catalogue.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.CourseView, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	course := &models.Course{}
	applyCourseRequest(course, req)
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.cache.InvalidateCatalogue(ctx)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("title", course.Title))
	view := models.NewCourseView(*course, s.now().UTC())
	return &view, nil
}

// Update modifies a course. Capacity may not drop below the current participant count.
func (s *CourseService) Update(ctx context.Context, id string, req CourseRequest) (*models.CourseView, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.MaxParticipants < course.CurrentParticipants {
		return nil, appErrors.Clone(appErrors.ErrConflict, "maxParticipants cannot be lower than current participants")
	}
	applyCourseRequest(course, req)
	ok, err := s.repo.Update(ctx, course)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "maxParticipants cannot be lower than current participants")
	}
	s.cache.InvalidateCatalogue(ctx)
	view := models.NewCourseView(*course, s.now().UTC())
	return &view, nil
}

// Delete removes a course that nobody holds a seat in.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if s.seats != nil {
		holders, err := s.seats.CountSeatHolders(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course applications")
		}
		if holders > 0 {
			return appErrors.Clone(appErrors.ErrConflict, "course has active applications")
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCourseReferenced) {
			return appErrors.Clone(appErrors.ErrConflict, "course has application history")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.cache.InvalidateCatalogue(ctx)
	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}

func (s *CourseService) load(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *CourseService) validate(req CourseRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	window := registration.Window{Start: req.RegistrationStart, End: req.RegistrationEnd}
	if err := window.Validate(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidWindow.Code, appErrors.ErrInvalidWindow.Status, appErrors.ErrInvalidWindow.Message)
	}
	return nil
}

func applyCourseRequest(course *models.Course, req CourseRequest) {
	course.Title = strings.TrimSpace(req.Title)
	course.Category = strings.TrimSpace(req.Category)
	course.Instructor = strings.TrimSpace(req.Instructor)
	course.Credits = req.Credits
	course.Description = strings.TrimSpace(req.Description)
	course.RegistrationStart = req.RegistrationStart.UTC()
	course.RegistrationEnd = req.RegistrationEnd.UTC()
	course.StartDate = req.StartDate.UTC()
	course.EndDate = req.EndDate.UTC()
	course.MaxParticipants = req.MaxParticipants
}

// toCourseViews derives view fields and drops repeated ids, keeping the first occurrence.
func toCourseViews(courses []models.Course, now time.Time) []models.CourseView {
	seen := make(map[string]struct{}, len(courses))
	views := make([]models.CourseView, 0, len(courses))
	for _, course := range courses {
		if _, dup := seen[course.ID]; dup {
			continue
		}
		seen[course.ID] = struct{}{}
		views = append(views, models.NewCourseView(course, now))
	}
	return views
}

func filterAdmitting(views []models.CourseView) []models.CourseView {
	out := views[:0]
	for _, view := range views {
		if view.RegistrationState == registration.StateOpen && view.RemainingSeats > 0 {
			out = append(out, view)
		}
	}
	return out
}

func isRegistrationState(state registration.State) bool {
	switch state {
	case registration.StateUpcoming, registration.StateOpen, registration.StateClosed:
		return true
	}
	return false
}
