package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-admin-api/internal/models"
	"github.com/noah-isme/lms-admin-api/internal/repository"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

type fakeApplicationRepo struct {
	applications map[string]models.Application
	released     int
	lastFilter   models.ApplicationFilter
}

func (f *fakeApplicationRepo) List(_ context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	f.lastFilter = filter
	items := make([]models.ApplicationDetail, 0, len(f.applications))
	for _, app := range f.applications {
		if filter.UserID != "" && app.UserID != filter.UserID {
			continue
		}
		items = append(items, models.ApplicationDetail{Application: app, CourseTitle: "Go Basics"})
	}
	return items, len(items), nil
}

func (f *fakeApplicationRepo) FindByID(_ context.Context, id string) (*models.ApplicationDetail, error) {
	app, ok := f.applications[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.ApplicationDetail{Application: app, CourseTitle: "Go Basics"}, nil
}

func (f *fakeApplicationRepo) UpdateStatus(_ context.Context, id string, next models.ApplicationStatus, at time.Time, guard repository.TransitionGuard) (*models.Application, error) {
	current, ok := f.applications[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if err := guard(current); err != nil {
		return nil, err
	}
	if current.Status.HoldsSeat() && !next.HoldsSeat() {
		f.released++
	}
	current.Status = next
	current.DecidedAt = &at
	f.applications[id] = current
	return &current, nil
}

func newFakeApplicationRepo(apps ...models.Application) *fakeApplicationRepo {
	repo := &fakeApplicationRepo{applications: map[string]models.Application{}}
	for _, app := range apps {
		repo.applications[app.ID] = app
	}
	return repo
}

func TestApplicationServiceUpdateStatusTransitions(t *testing.T) {
	repo := newFakeApplicationRepo(
		models.Application{ID: "app-1", CourseID: "course-1", UserID: "user-1", Status: models.ApplicationStatusPending},
		models.Application{ID: "app-2", CourseID: "course-1", UserID: "user-2", Status: models.ApplicationStatusRejected},
	)
	svc := NewApplicationService(repo, nil, nil, zap.NewNop())
	svc.now = func() time.Time { return feb10 }

	updated, err := svc.UpdateStatus(context.Background(), "app-1", UpdateApplicationStatusRequest{Status: models.ApplicationStatusApproved})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, updated.Status)
	assert.Equal(t, 0, repo.released)

	updated, err = svc.UpdateStatus(context.Background(), "app-1", UpdateApplicationStatusRequest{Status: models.ApplicationStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusCancelled, updated.Status)
	assert.Equal(t, 1, repo.released)

	_, err = svc.UpdateStatus(context.Background(), "app-2", UpdateApplicationStatusRequest{Status: models.ApplicationStatusApproved})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceUpdateStatusValidation(t *testing.T) {
	svc := NewApplicationService(newFakeApplicationRepo(), nil, nil, zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), "app-1", UpdateApplicationStatusRequest{Status: models.ApplicationStatusPending})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateStatus(context.Background(), "missing", UpdateApplicationStatusRequest{Status: models.ApplicationStatusApproved})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceList(t *testing.T) {
	repo := newFakeApplicationRepo(
		models.Application{ID: "app-1", UserID: "user-1", Status: models.ApplicationStatusPending},
		models.Application{ID: "app-2", UserID: "user-2", Status: models.ApplicationStatusPending},
	)
	svc := NewApplicationService(repo, nil, nil, zap.NewNop())

	items, pagination, err := svc.List(context.Background(), models.ApplicationFilter{UserID: "user-1", Page: 2, PageSize: 5})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Go Basics", items[0].CourseTitle)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 5, pagination.PageSize)

	_, _, err = svc.List(context.Background(), models.ApplicationFilter{Status: "WAITLISTED"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

type fakeRosterLister struct {
	roster []models.Application
}

func (f fakeRosterLister) ListRoster(context.Context, string) ([]models.Application, error) {
	return f.roster, nil
}

func TestRosterServiceExport(t *testing.T) {
	courses := newFakeCourseRepo(openCourse("course-1", 30, 2))
	roster := fakeRosterLister{roster: []models.Application{
		{ID: "app-1", UserID: "user-1", Status: models.ApplicationStatusApproved, AppliedAt: feb10},
		{ID: "app-2", UserID: "user-2", Status: models.ApplicationStatusPending, AppliedAt: feb10.Add(time.Hour)},
	}}
	svc := NewRosterService(courses, roster, nil, nil, zap.NewNop())
	svc.now = func() time.Time { return feb10 }

	file, err := svc.Export(context.Background(), "course-1", RosterFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "roster_Go_Basics_20240210_000000.csv", file.Filename)
	assert.Contains(t, string(file.Data), "user-2")
	assert.Contains(t, file.ContentType, "text/csv")

	file, err = svc.Export(context.Background(), "course-1", RosterFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, len(file.Data) > 4 && string(file.Data[:4]) == "%PDF")

	_, err = svc.Export(context.Background(), "course-1", "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Export(context.Background(), "missing", RosterFormatCSV)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceExportUsesConfiguredZone(t *testing.T) {
	courses := newFakeCourseRepo(openCourse("course-1", 30, 1))
	roster := fakeRosterLister{roster: []models.Application{{ID: "app-1", UserID: "user-1", Status: models.ApplicationStatusPending, AppliedAt: feb10}}}
	svc := NewRosterService(courses, roster, nil, nil, zap.NewNop()).WithLocation(time.FixedZone("KST", 9*60*60))

	file, err := svc.Export(context.Background(), "course-1", RosterFormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(file.Data), "2024-02-10T09:00:00+09:00")
}
