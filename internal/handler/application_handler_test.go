package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-admin-api/internal/models"
	"github.com/noah-isme/lms-admin-api/internal/service"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

type fakeApplicationSrv struct {
	lastFilter models.ApplicationFilter
	lastStatus service.UpdateApplicationStatusRequest
	err        error
}

func (f *fakeApplicationSrv) List(_ context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, *models.Pagination, error) {
	f.lastFilter = filter
	return []models.ApplicationDetail{}, &models.Pagination{Page: 1, PageSize: 20}, f.err
}

func (f *fakeApplicationSrv) Get(_ context.Context, id string) (*models.ApplicationDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.ApplicationDetail{Application: models.Application{ID: id}}, nil
}

func (f *fakeApplicationSrv) UpdateStatus(_ context.Context, id string, req service.UpdateApplicationStatusRequest) (*models.Application, error) {
	f.lastStatus = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Application{ID: id, Status: req.Status}, nil
}

type fakeRegistrar struct {
	last service.ApplyRequest
	err  error
}

func (f *fakeRegistrar) Apply(_ context.Context, req service.ApplyRequest) (*models.Application, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Application{ID: "app-1", CourseID: req.CourseID, UserID: req.UserID, Status: models.ApplicationStatusPending}, nil
}

func TestApplicationHandlerApply(t *testing.T) {
	reg := &fakeRegistrar{}
	handler := NewApplicationHandler(nil, reg)
	c, rec := newTestContext(http.MethodPost, "/applications", `{"courseId":"course-1","userId":"user-1"}`)

	handler.Apply(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "course-1", reg.last.CourseID)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"status":"PENDING"`)
}

func TestApplicationHandlerApplyDenials(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "not yet open", err: appErrors.ErrRegistrationNotOpen, status: http.StatusConflict, code: "REGISTRATION_NOT_OPEN"},
		{name: "closed", err: appErrors.ErrRegistrationClosed, status: http.StatusConflict, code: "REGISTRATION_CLOSED"},
		{name: "full", err: appErrors.ErrCourseFull, status: http.StatusConflict, code: "COURSE_FULL"},
		{name: "duplicate", err: appErrors.ErrAlreadyApplied, status: http.StatusConflict, code: "ALREADY_APPLIED"},
		{name: "invalid window", err: appErrors.ErrInvalidWindow, status: http.StatusUnprocessableEntity, code: "INVALID_WINDOW"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewApplicationHandler(nil, &fakeRegistrar{err: tc.err})
			c, rec := newTestContext(http.MethodPost, "/applications", `{"courseId":"course-1","userId":"user-1"}`)

			handler.Apply(c)

			assert.Equal(t, tc.status, rec.Code)
			env := decodeEnvelope(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestApplicationHandlerListFilters(t *testing.T) {
	srv := &fakeApplicationSrv{}
	handler := NewApplicationHandler(srv, nil)
	c, rec := newTestContext(http.MethodGet, "/applications?userId=user-1&status=pending", "")

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", srv.lastFilter.UserID)
	assert.Equal(t, models.ApplicationStatusPending, srv.lastFilter.Status)
}

func TestApplicationHandlerUpdateStatusNormalisesCase(t *testing.T) {
	srv := &fakeApplicationSrv{}
	handler := NewApplicationHandler(srv, nil)
	c, rec := newTestContext(http.MethodPatch, "/applications/app-1/status", `{"status":"approved"}`)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}

	handler.UpdateStatus(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ApplicationStatusApproved, srv.lastStatus.Status)
}

func TestApplicationHandlerGetNotFound(t *testing.T) {
	handler := NewApplicationHandler(&fakeApplicationSrv{err: appErrors.Clone(appErrors.ErrNotFound, "application not found")}, nil)
	c, rec := newTestContext(http.MethodGet, "/applications/missing", "")

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
