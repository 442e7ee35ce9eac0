package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-admin-api/internal/dto"
	"github.com/noah-isme/lms-admin-api/internal/models"
	"github.com/noah-isme/lms-admin-api/internal/service"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

type fakeCertificateSrv struct {
	downloadPath string
	err          error
}

func (f *fakeCertificateSrv) List(context.Context, models.CertificateFilter) ([]models.Certificate, *models.Pagination, error) {
	return []models.Certificate{}, &models.Pagination{Page: 1, PageSize: 20}, f.err
}

func (f *fakeCertificateSrv) Get(_ context.Context, id string) (*models.Certificate, error) {
	return &models.Certificate{ID: id}, f.err
}

func (f *fakeCertificateSrv) Request(_ context.Context, req service.CreateCertificateRequest) (*models.Certificate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Certificate{ID: "cert-1", ApplicationID: req.ApplicationID, Status: models.CertificateStatusPending}, nil
}

func (f *fakeCertificateSrv) Link(_ context.Context, id string) (*dto.CertificateLink, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.CertificateLink{CertificateID: id, Token: "tok", URL: "/api/v1/certificates/download/tok", ExpiresAt: time.Now().Add(time.Minute)}, nil
}

func (f *fakeCertificateSrv) ResolveDownload(context.Context, string) (*service.CertificateDownload, error) {
	if f.err != nil {
		return nil, f.err
	}
	file, err := os.Open(f.downloadPath)
	if err != nil {
		return nil, err
	}
	return &service.CertificateDownload{File: file, Filename: filepath.Base(f.downloadPath)}, nil
}

func TestCertificateHandlerCreateAccepted(t *testing.T) {
	handler := NewCertificateHandler(&fakeCertificateSrv{})
	c, rec := newTestContext(http.MethodPost, "/certificates", `{"applicationId":"app-1","studentName":"Lee","grade":"A"}`)

	handler.Create(c)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"status":"PENDING"`)
}

func TestCertificateHandlerCreatePrecondition(t *testing.T) {
	handler := NewCertificateHandler(&fakeCertificateSrv{err: appErrors.Clone(appErrors.ErrPreconditionFailed, "not completed")})
	c, rec := newTestContext(http.MethodPost, "/certificates", `{"applicationId":"app-1","studentName":"Lee","grade":"A"}`)

	handler.Create(c)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestCertificateHandlerLink(t *testing.T) {
	handler := NewCertificateHandler(&fakeCertificateSrv{})
	c, rec := newTestContext(http.MethodGet, "/certificates/cert-1/link", "")
	c.Params = gin.Params{{Key: "id", Value: "cert-1"}}

	handler.Link(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), "/certificates/download/tok")
}

func TestCertificateHandlerDownloadStreamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CERT-2024-ABCDEF12.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3 fake"), 0o644))
	handler := NewCertificateHandler(&fakeCertificateSrv{downloadPath: path})
	c, rec := newTestContext(http.MethodGet, "/certificates/download/tok", "")
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	handler.Download(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "CERT-2024-ABCDEF12.pdf")
	assert.Equal(t, "%PDF-1.3 fake", rec.Body.String())
}

func TestCertificateHandlerDownloadForbidden(t *testing.T) {
	handler := NewCertificateHandler(&fakeCertificateSrv{err: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")})
	c, rec := newTestContext(http.MethodGet, "/certificates/download/bad", "")

	handler.Download(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
