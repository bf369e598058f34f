package handlers

import (
	"strconv"
	"strings"

	"usmleapp/internal/config"

	"github.com/gin-gonic/gin"
)

// ParsePagination extracts limit and offset query params, clamping them to the
// configured bounds. Missing or malformed values fall back to the defaults.
func ParsePagination(c *gin.Context) (limit, offset int) {
	limit = config.DefaultPageSize
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > config.MaxPageSize {
		limit = config.MaxPageSize
	}

	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// ParseCSVParam splits a comma-separated query parameter into trimmed,
// non-empty values. An absent parameter yields nil, which downstream filter
// code treats as unrestricted.
func ParseCSVParam(c *gin.Context, name string) []string {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

// ParseIntParam parses an integer query parameter, returning the fallback when
// the parameter is absent or malformed.
func ParseIntParam(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
