package handlers

import (
	"errors"
	"net/http"

	"usmleapp/internal/observability"
	"usmleapp/internal/services"
	contextutils "usmleapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// ProgressHandler serves the derived progress views: per-topic cards for a
// step, per-subtopic rows for a topic, and the step-level summary.
type ProgressHandler struct {
	progressService services.ProgressServiceInterface
	logger          *observability.Logger
}

// NewProgressHandler creates a new ProgressHandler instance
func NewProgressHandler(progressService services.ProgressServiceInterface, logger *observability.Logger) *ProgressHandler {
	return &ProgressHandler{progressService: progressService, logger: logger}
}

// TopicCards handles GET /v1/progress/topics?step=N
func (h *ProgressHandler) TopicCards(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "progress_topic_cards")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	stepNumber := ParseIntParam(c, "step", 0)
	if stepNumber <= 0 {
		HandleValidationError(c, "step", c.Query("step"), "must be a positive integer")
		return
	}

	span.SetAttributes(observability.AttributeUserID(userID), observability.AttributeStepID(stepNumber))

	cards, err := h.progressService.TopicProgressCards(c.Request.Context(), userID, stepNumber)
	if err != nil {
		if !errors.Is(err, contextutils.ErrStepNotFound) {
			h.logger.Error(c.Request.Context(), "Failed to load topic progress", err, map[string]interface{}{"user_id": userID, "step": stepNumber})
		}
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"topics": cards})
}

// SubtopicRows handles GET /v1/progress/subtopics?topic=N
func (h *ProgressHandler) SubtopicRows(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "progress_subtopic_rows")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	topicID := ParseIntParam(c, "topic", 0)
	if topicID <= 0 {
		HandleValidationError(c, "topic", c.Query("topic"), "must be a positive integer")
		return
	}

	span.SetAttributes(observability.AttributeUserID(userID), observability.AttributeTopicID(topicID))

	rows, err := h.progressService.SubtopicProgress(c.Request.Context(), userID, topicID)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to load subtopic progress", err, map[string]interface{}{"user_id": userID, "topic_id": topicID})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subtopics": rows})
}

// StepSummary handles GET /v1/progress/step?step=N
func (h *ProgressHandler) StepSummary(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "progress_step_summary")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	stepNumber := ParseIntParam(c, "step", 0)
	if stepNumber <= 0 {
		HandleValidationError(c, "step", c.Query("step"), "must be a positive integer")
		return
	}

	span.SetAttributes(observability.AttributeUserID(userID), observability.AttributeStepID(stepNumber))

	summary, err := h.progressService.StepProgress(c.Request.Context(), userID, stepNumber)
	if err != nil {
		if !errors.Is(err, contextutils.ErrStepNotFound) {
			h.logger.Error(c.Request.Context(), "Failed to load step progress", err, map[string]interface{}{"user_id": userID, "step": stepNumber})
		}
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
