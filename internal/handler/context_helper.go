package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-admin-api/internal/middleware"
	appErrors "github.com/noah-isme/lms-admin-api/pkg/errors"
)

// pageParams reads page and limit query parameters, leaving zero values for the service defaults.
func pageParams(c *gin.Context) (int, int) {
	var page, size int
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		size = v
	}
	return page, size
}

// monthsParam parses an optional months query parameter; 0 means "use the default".
func monthsParam(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("months"))
	if raw == "" {
		return 0, nil
	}
	months, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "months must be an integer")
	}
	return months, nil
}

// withCacheMeta marks the cache outcome on the response meta.
func withCacheMeta(c *gin.Context, cacheHit bool) map[string]interface{} {
	middleware.SetCacheHit(c, cacheHit)
	return middleware.ExtractMeta(c)
}
