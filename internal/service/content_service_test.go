package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-admin-api/internal/models"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

type fakeContentRepo struct {
	items map[string]models.Content
}

func (f *fakeContentRepo) List(context.Context, models.ContentFilter) ([]models.Content, int, error) {
	out := make([]models.Content, 0, len(f.items))
	for _, item := range f.items {
		out = append(out, item)
	}
	return out, len(out), nil
}

func (f *fakeContentRepo) FindByID(_ context.Context, id string) (*models.Content, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (f *fakeContentRepo) Create(_ context.Context, content *models.Content) error {
	content.ID = "content-1"
	f.items[content.ID] = *content
	return nil
}

func (f *fakeContentRepo) Update(_ context.Context, content *models.Content) error {
	f.items[content.ID] = *content
	return nil
}

func (f *fakeContentRepo) Delete(_ context.Context, id string) error {
	delete(f.items, id)
	return nil
}

func strPtr(v string) *string { return &v }

func TestContentServiceCreate(t *testing.T) {
	repo := &fakeContentRepo{items: map[string]models.Content{}}
	svc := NewContentService(repo, newFakeCourseRepo(openCourse("course-1", 30, 0)), nil, zap.NewNop())

	content, err := svc.Create(context.Background(), ContentRequest{Title: "  Intro video ", Type: models.ContentTypeVideo, CourseID: strPtr(" course-1 ")})
	require.NoError(t, err)
	assert.Equal(t, "Intro video", content.Title)
	require.NotNil(t, content.CourseID)
	assert.Equal(t, "course-1", *content.CourseID)

	standalone, err := svc.Create(context.Background(), ContentRequest{Title: "Handbook", Type: models.ContentTypePDF, CourseID: strPtr("  ")})
	require.NoError(t, err)
	assert.Nil(t, standalone.CourseID)
}

func TestContentServiceRejectsInvalidPayloads(t *testing.T) {
	svc := NewContentService(&fakeContentRepo{items: map[string]models.Content{}}, newFakeCourseRepo(), nil, zap.NewNop())

	_, err := svc.Create(context.Background(), ContentRequest{Title: "Clip", Type: "GIF"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), ContentRequest{Title: "Clip", Type: models.ContentTypeVideo, CourseID: strPtr("ghost")})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestContentServiceUpdateAndDelete(t *testing.T) {
	repo := &fakeContentRepo{items: map[string]models.Content{
		"content-1": {ID: "content-1", Title: "Old", Type: models.ContentTypeLink},
	}}
	svc := NewContentService(repo, nil, nil, zap.NewNop())

	updated, err := svc.Update(context.Background(), "content-1", ContentRequest{Title: "New", Type: models.ContentTypeDocument})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, models.ContentTypeDocument, repo.items["content-1"].Type)

	require.NoError(t, svc.Delete(context.Background(), "content-1"))
	err = svc.Delete(context.Background(), "content-1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
