package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-admin-api/internal/dto"
	"github.com/noah-isme/lms-admin-api/pkg/response"
)

type statisticsService interface {
	Enrollments(ctx context.Context, months int) (*dto.EnrollmentSeries, error)
	Completion(ctx context.Context, months int) (*dto.CompletionSeries, error)
	Categories(ctx context.Context) ([]dto.CategoryBreakdown, error)
}

// StatisticsHandler serves the chart data of the statistics page.
type StatisticsHandler struct {
	statistics statisticsService
}

// NewStatisticsHandler constructs StatisticsHandler.
func NewStatisticsHandler(statistics statisticsService) *StatisticsHandler {
	return &StatisticsHandler{statistics: statistics}
}

// Enrollments godoc
// @Summary Monthly application counts
// @Tags Statistics
// @Produce json
// @Param months query int false "Number of months (1-24)"
// @Success 200 {object} response.Envelope
// @Router /statistics/enrollments [get]
func (h *StatisticsHandler) Enrollments(c *gin.Context) {
	months, err := monthsParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	series, err := h.statistics.Enrollments(c.Request.Context(), months)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, series, nil)
}

// Completion godoc
// @Summary Monthly completion rate
// @Tags Statistics
// @Produce json
// @Param months query int false "Number of months (1-24)"
// @Success 200 {object} response.Envelope
// @Router /statistics/completion [get]
func (h *StatisticsHandler) Completion(c *gin.Context) {
	months, err := monthsParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	series, err := h.statistics.Completion(c.Request.Context(), months)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, series, nil)
}

// Categories godoc
// @Summary Courses and enrollments per category
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /statistics/categories [get]
func (h *StatisticsHandler) Categories(c *gin.Context) {
	rows, err := h.statistics.Categories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
