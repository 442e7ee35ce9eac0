package service

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-admin-api/internal/models"
	"github.com/noah-isme/lms-admin-api/internal/registration"
	"github.com/noah-isme/lms-admin-api/internal/repository"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

// fakeRegistrar emulates the transactional commit: it runs the gate against the
// stored course and then applies the duplicate and capacity checks.
type fakeRegistrar struct {
	courses   map[string]*models.Course
	applied   map[string]bool
	committed []models.Application
	forceErr  error
}

func newFakeRegistrar(courses ...models.Course) *fakeRegistrar {
	r := &fakeRegistrar{courses: map[string]*models.Course{}, applied: map[string]bool{}}
	for i := range courses {
		c := courses[i]
		r.courses[c.ID] = &c
	}
	return r
}

func (f *fakeRegistrar) Register(_ context.Context, application *models.Application, gate repository.RegistrationGate) error {
	if f.forceErr != nil {
		return f.forceErr
	}
	course, ok := f.courses[application.CourseID]
	if !ok {
		return sql.ErrNoRows
	}
	if err := gate(*course); err != nil {
		return err
	}
	key := application.CourseID + "/" + application.UserID
	if f.applied[key] {
		return repository.ErrDuplicateApplication
	}
	if course.CurrentParticipants >= course.MaxParticipants {
		return repository.ErrCapacityExhausted
	}
	f.applied[key] = true
	course.CurrentParticipants++
	application.ID = "app-" + application.UserID
	application.Status = models.ApplicationStatusPending
	f.committed = append(f.committed, *application)
	return nil
}

func (f *fakeRegistrar) FindByID(_ context.Context, id string) (*models.Course, error) {
	course, ok := f.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *course
	return &clone, nil
}

func scrapeMetrics(metrics *MetricsService) string {
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func newTestRegistrationService(registrar *fakeRegistrar, metrics *MetricsService, at time.Time) *RegistrationService {
	svc := NewRegistrationService(registrar, registrar, nil, metrics, nil, zap.NewNop())
	svc.now = func() time.Time { return at }
	return svc
}

func TestRegistrationServiceCheck(t *testing.T) {
	registrar := newFakeRegistrar(openCourse("course-1", 30, 30))
	svc := newTestRegistrationService(registrar, nil, feb10)

	status, err := svc.Check(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, registration.StateOpen, status.State)
	assert.False(t, status.Admitted)
	assert.Equal(t, registration.ReasonFull, status.Reason)
	assert.Equal(t, 0, status.RemainingSeats)
	assert.Equal(t, feb10, status.EvaluatedAt)
}

func TestRegistrationServiceCheckInvalidWindow(t *testing.T) {
	course := openCourse("course-1", 30, 0)
	course.RegistrationStart, course.RegistrationEnd = course.RegistrationEnd, course.RegistrationStart
	svc := newTestRegistrationService(newFakeRegistrar(course), nil, feb10)

	_, err := svc.Check(context.Background(), "course-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidWindow.Code, appErrors.FromError(err).Code)
	assert.ErrorIs(t, err, registration.ErrInvalidWindow)
}

func TestRegistrationServiceCheckMissingCourse(t *testing.T) {
	svc := newTestRegistrationService(newFakeRegistrar(), nil, feb10)
	_, err := svc.Check(context.Background(), "nope")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceApplyOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		at      time.Time
		current int
		code    string
		outcome string
	}{
		{name: "admitted at window start", at: feb1, current: 0, outcome: OutcomeAdmitted},
		{name: "admitted at window end", at: feb28, current: 29, outcome: OutcomeAdmitted},
		{name: "before window", at: feb1.Add(-time.Nanosecond), current: 0, code: "REGISTRATION_NOT_OPEN", outcome: OutcomeNotYetOpen},
		{name: "after window even with seats", at: feb28.Add(time.Nanosecond), current: 0, code: "REGISTRATION_CLOSED", outcome: OutcomeClosed},
		{name: "closed takes precedence over full", at: feb28.AddDate(0, 0, 1), current: 30, code: "REGISTRATION_CLOSED", outcome: OutcomeClosed},
		{name: "full while open", at: feb10, current: 30, code: "COURSE_FULL", outcome: OutcomeFull},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			metrics := NewMetricsService()
			registrar := newFakeRegistrar(openCourse("course-1", 30, tc.current))
			svc := newTestRegistrationService(registrar, metrics, tc.at)

			app, err := svc.Apply(context.Background(), ApplyRequest{CourseID: "course-1", UserID: "user-1"})
			if tc.code == "" {
				require.NoError(t, err)
				assert.Equal(t, models.ApplicationStatusPending, app.Status)
				assert.Equal(t, tc.at, app.AppliedAt)
			} else {
				require.Error(t, err)
				assert.Equal(t, tc.code, appErrors.FromError(err).Code)
				assert.Empty(t, registrar.committed)
			}
			assert.Contains(t, scrapeMetrics(metrics), `registration_attempts_total{outcome="`+tc.outcome+`"} 1`)
		})
	}
}

func TestRegistrationServiceApplyDuplicate(t *testing.T) {
	metrics := NewMetricsService()
	registrar := newFakeRegistrar(openCourse("course-1", 30, 0))
	svc := newTestRegistrationService(registrar, metrics, feb10)

	_, err := svc.Apply(context.Background(), ApplyRequest{CourseID: "course-1", UserID: "user-1"})
	require.NoError(t, err)

	_, err = svc.Apply(context.Background(), ApplyRequest{CourseID: "course-1", UserID: "user-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyApplied.Code, appErrors.FromError(err).Code)
	assert.Contains(t, scrapeMetrics(metrics), `registration_attempts_total{outcome="`+OutcomeAlreadyApplied+`"} 1`)
	assert.Equal(t, 1, registrar.courses["course-1"].CurrentParticipants)
}

func TestRegistrationServiceApplyLastSeat(t *testing.T) {
	registrar := newFakeRegistrar(openCourse("course-1", 2, 1))
	svc := newTestRegistrationService(registrar, nil, feb10)

	_, err := svc.Apply(context.Background(), ApplyRequest{CourseID: "course-1", UserID: "user-1"})
	require.NoError(t, err)

	_, err = svc.Apply(context.Background(), ApplyRequest{CourseID: "course-1", UserID: "user-2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCourseFull.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 2, registrar.courses["course-1"].CurrentParticipants)
}

func TestRegistrationServiceApplyCapacityRaceMapsToFull(t *testing.T) {
	registrar := newFakeRegistrar(openCourse("course-1", 30, 0))
	registrar.forceErr = repository.ErrCapacityExhausted
	metrics := NewMetricsService()
	svc := newTestRegistrationService(registrar, metrics, feb10)

	_, err := svc.Apply(context.Background(), ApplyRequest{CourseID: "course-1", UserID: "user-1"})
	assert.Equal(t, appErrors.ErrCourseFull.Code, appErrors.FromError(err).Code)
	assert.Contains(t, scrapeMetrics(metrics), `registration_attempts_total{outcome="`+OutcomeFull+`"} 1`)
}

func TestRegistrationServiceApplyValidation(t *testing.T) {
	svc := newTestRegistrationService(newFakeRegistrar(), nil, feb10)
	_, err := svc.Apply(context.Background(), ApplyRequest{CourseID: "course-1"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Apply(context.Background(), ApplyRequest{CourseID: "missing", UserID: "user-1"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceApplyInvalidatesCaches(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	registrar := newFakeRegistrar(openCourse("course-1", 30, 0))
	svc := NewRegistrationService(registrar, registrar, cache, nil, nil, zap.NewNop())
	svc.now = func() time.Time { return feb10 }

	_, err := svc.Apply(context.Background(), ApplyRequest{CourseID: "course-1", UserID: "user-1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"courses:*", "dash:*"}, cacheRepo.invalidated)
}
