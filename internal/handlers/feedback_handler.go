package handlers

import (
	"net/http"

	"usmleapp/internal/models"
	"usmleapp/internal/observability"
	"usmleapp/internal/services"
	contextutils "usmleapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// FeedbackHandler accepts user feedback and serves the admin listing
type FeedbackHandler struct {
	feedbackService services.FeedbackServiceInterface
	logger          *observability.Logger
}

// NewFeedbackHandler creates a new FeedbackHandler instance
func NewFeedbackHandler(feedbackService services.FeedbackServiceInterface, logger *observability.Logger) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService, logger: logger}
}

// Submit handles POST /v1/feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_feedback")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req models.FeedbackRequest
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

	span.SetAttributes(observability.AttributeUserID(userID))

	fb, err := h.feedbackService.SubmitFeedback(c.Request.Context(), userID, req)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to submit feedback", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, fb)
}

// List handles GET /v1/admin/feedback
func (h *FeedbackHandler) List(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_feedback")
	defer observability.FinishSpan(span, nil)

	limit, offset := ParsePagination(c)

	items, total, err := h.feedbackService.ListFeedback(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to list feedback", err, nil)
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feedback": items,
		"pagination": models.Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
		},
	})
}
