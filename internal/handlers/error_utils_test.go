package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	contextutils "usmleapp/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandleAppError_SentinelStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unauthorized", contextutils.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"invalid credentials", contextutils.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"question not found", contextutils.ErrQuestionNotFound, http.StatusNotFound, "QUESTION_NOT_FOUND"},
		{"step not found", contextutils.ErrStepNotFound, http.StatusNotFound, "STEP_NOT_FOUND"},
		{"practice set not found", contextutils.ErrPracticeSetNotFound, http.StatusNotFound, "PRACTICE_SET_NOT_FOUND"},
		{"record not found", contextutils.ErrRecordNotFound, http.StatusNotFound, "RECORD_NOT_FOUND"},
		{"empty question pool", contextutils.ErrNoMatchingQuestions, http.StatusBadRequest, "NO_MATCHING_QUESTIONS"},
		{"internal error", contextutils.ErrInternalError, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := errorTestContext()
			HandleAppError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeErrorBody(t, w)
			assert.Equal(t, tt.wantCode, body["code"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestHandleAppError_PlainErrorBecomesInternal(t *testing.T) {
	c, w := errorTestContext()

	HandleAppError(c, errors.New("disk full"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeErrorBody(t, w)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body["code"])
}

func TestHandleAppError_ValidationErrorCarriesFieldErrors(t *testing.T) {
	c, w := errorTestContext()

	appErr := contextutils.NewAppError(
		contextutils.ErrorCodeValidationFailed,
		contextutils.SeverityWarn,
		"Validation failed",
		"1 field(s) failed validation",
	).WithFieldErrors([]contextutils.FieldError{
		{Field: "MaxQuestions", Rule: "required", Reason: "failed on the 'required' rule"},
	})
	HandleAppError(c, appErr)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeErrorBody(t, w)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
	fields, ok := body["fieldErrors"].([]interface{})
	require.True(t, ok, "field errors must be present in the body")
	require.Len(t, fields, 1)
}

func TestHandleAppError_AttachesErrorToContext(t *testing.T) {
	c, _ := errorTestContext()

	HandleAppError(c, contextutils.ErrUnauthorized)

	require.Len(t, c.Errors, 1)
}

func TestStandardizeHTTPError(t *testing.T) {
	c, w := errorTestContext()

	StandardizeHTTPError(c, http.StatusBadRequest, "Bad input", "details")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeErrorBody(t, w)
	assert.Equal(t, "INVALID_INPUT", body["code"])
	assert.Equal(t, "Bad input", body["message"])
}
