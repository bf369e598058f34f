package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"usmleapp/internal/models"
	"usmleapp/internal/observability"
	"usmleapp/internal/services"
	contextutils "usmleapp/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// AttemptHandler records answer attempts and serves the attempt history
type AttemptHandler struct {
	attemptService services.AttemptServiceInterface
	logger         *observability.Logger
}

// NewAttemptHandler creates a new AttemptHandler instance
func NewAttemptHandler(attemptService services.AttemptServiceInterface, logger *observability.Logger) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService, logger: logger}
}

// RecordAttempt handles POST /v1/attempts
func (h *AttemptHandler) RecordAttempt(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "record_attempt")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req models.RecordAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}

	span.SetAttributes(
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(req.QuestionID),
	)

	attempt, err := h.attemptService.RecordAttempt(c.Request.Context(), userID, req)
	if err != nil {
		if !errors.Is(err, contextutils.ErrQuestionNotFound) {
			h.logger.Error(c.Request.Context(), "Failed to record attempt", err, map[string]interface{}{"user_id": userID, "question_id": req.QuestionID})
		}
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// ListAttempts handles GET /v1/attempts. An optional questionId query
// parameter narrows the history to a single question.
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_attempts")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	questionID := ParseIntParam(c, "questionId", 0)
	if questionID < 0 {
		HandleValidationError(c, "questionId", c.Query("questionId"), "must be a positive integer")
		return
	}
	limit, offset := ParsePagination(c)

	span.SetAttributes(
		observability.AttributeUserID(userID),
		observability.AttributeLimit(limit),
		attribute.Int("attempt.offset", offset),
	)

	attempts, total, err := h.attemptService.ListAttempts(c.Request.Context(), userID, questionID, limit, offset)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to list attempts", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AttemptListResponse{
		Success: true,
		Data:    attempts,
		Pagination: models.Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(attempts) < total,
		},
	})
}

// Bookmark handles POST /v1/questions/:id/bookmark
func (h *AttemptHandler) Bookmark(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "bookmark_question")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	questionID, err := strconv.Atoi(c.Param("id"))
	if err != nil || questionID <= 0 {
		HandleValidationError(c, "question id", c.Param("id"), "must be a positive integer")
		return
	}

	var req models.BookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return
	}

	if appErr, fieldErrs := contextutils.ValidateStruct(req); appErr != nil {
		HandleAppError(c, appErr.WithFieldErrors(fieldErrs))
		return
	}

	span.SetAttributes(
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(questionID),
		attribute.Bool("question.bookmark", *req.Bookmark),
	)

	if err := h.attemptService.SetBookmark(c.Request.Context(), userID, questionID, *req.Bookmark); err != nil {
		if !errors.Is(err, contextutils.ErrQuestionNotFound) {
			h.logger.Error(c.Request.Context(), "Failed to set bookmark", err, map[string]interface{}{"user_id": userID, "question_id": questionID})
		}
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "bookmarked": *req.Bookmark})
}
