package handlers

import (
	"net/http/httptest"
	"testing"

	"usmleapp/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func testContextWithQuery(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return c
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", config.DefaultPageSize, 0},
		{"explicit values", "limit=50&offset=10", 50, 10},
		{"limit clamped to max", "limit=5000", config.MaxPageSize, 0},
		{"zero limit falls back", "limit=0", config.DefaultPageSize, 0},
		{"negative limit falls back", "limit=-3", config.DefaultPageSize, 0},
		{"negative offset falls back", "offset=-1", config.DefaultPageSize, 0},
		{"malformed values", "limit=abc&offset=xyz", config.DefaultPageSize, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testContextWithQuery(tt.query)
			limit, offset := ParsePagination(c)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestParseCSVParam(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"absent param is nil", "", nil},
		{"single value", "systems=Cardiovascular", []string{"Cardiovascular"}},
		{"multiple values", "systems=Cardiovascular,Respiratory", []string{"Cardiovascular", "Respiratory"}},
		{"whitespace trimmed", "systems=%20Renal%20,%20Endocrine", []string{"Renal", "Endocrine"}},
		{"empty segments dropped", "systems=Renal,,Endocrine,", []string{"Renal", "Endocrine"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testContextWithQuery(tt.query)
			assert.Equal(t, tt.want, ParseCSVParam(c, "systems"))
		})
	}
}

func TestParseIntParam(t *testing.T) {
	c := testContextWithQuery("step=2&bad=xyz")

	assert.Equal(t, 2, ParseIntParam(c, "step", 1))
	assert.Equal(t, 1, ParseIntParam(c, "missing", 1))
	assert.Equal(t, 1, ParseIntParam(c, "bad", 1))
}
