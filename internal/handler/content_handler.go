package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-admin-api/internal/models"
	"github.com/noah-isme/lms-admin-api/internal/service"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
	"github.com/noah-isme/lms-admin-api/pkg/response"
)

type contentService interface {
	List(ctx context.Context, filter models.ContentFilter) ([]models.Content, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Content, error)
	Create(ctx context.Context, req service.ContentRequest) (*models.Content, error)
	Update(ctx context.Context, id string, req service.ContentRequest) (*models.Content, error)
	Delete(ctx context.Context, id string) error
}

// ContentHandler exposes learning material endpoints.
type ContentHandler struct {
	contents contentService
}

// NewContentHandler constructs ContentHandler.
func NewContentHandler(contents contentService) *ContentHandler {
	return &ContentHandler{contents: contents}
}

// List godoc
// @Summary List contents
// @Tags Contents
// @Produce json
// @Param type query string false "VIDEO, PDF, DOCUMENT or LINK"
// @Param courseId query string false "Filter by course"
// @Param search query string false "Search title"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /contents [get]
func (h *ContentHandler) List(c *gin.Context) {
	var filter models.ContentFilter
	filter.Type = models.ContentType(strings.ToUpper(strings.TrimSpace(c.Query("type"))))
	filter.CourseID = strings.TrimSpace(c.Query("courseId"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageParams(c)

	contents, pagination, err := h.contents.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contents, pagination)
}

// Get godoc
// @Summary Get content
// @Tags Contents
// @Produce json
// @Param id path string true "Content ID"
// @Success 200 {object} response.Envelope
// @Router /contents/{id} [get]
func (h *ContentHandler) Get(c *gin.Context) {
	content, err := h.contents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, nil)
}

// Create godoc
// @Summary Create content
// @Tags Contents
// @Accept json
// @Produce json
// @Param payload body service.ContentRequest true "Content payload"
// @Success 201 {object} response.Envelope
// @Router /contents [post]
func (h *ContentHandler) Create(c *gin.Context) {
	var req service.ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	content, err := h.contents.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, content)
}

// Update godoc
// @Summary Update content
// @Tags Contents
// @Accept json
// @Produce json
// @Param id path string true "Content ID"
// @Param payload body service.ContentRequest true "Content payload"
// @Success 200 {object} response.Envelope
// @Router /contents/{id} [put]
func (h *ContentHandler) Update(c *gin.Context) {
	var req service.ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	content, err := h.contents.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, nil)
}

// Delete godoc
// @Summary Delete content
// @Tags Contents
// @Param id path string true "Content ID"
// @Success 204
// @Router /contents/{id} [delete]
func (h *ContentHandler) Delete(c *gin.Context) {
	if err := h.contents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
