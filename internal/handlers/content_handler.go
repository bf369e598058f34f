package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"usmleapp/internal/observability"
	"usmleapp/internal/services"
	contextutils "usmleapp/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ContentHandler serves the read-only content hierarchy: steps, their topics
// and subtopics, and individual questions.
type ContentHandler struct {
	contentService services.ContentServiceInterface
	logger         *observability.Logger
}

// NewContentHandler creates a new ContentHandler instance
func NewContentHandler(contentService services.ContentServiceInterface, logger *observability.Logger) *ContentHandler {
	return &ContentHandler{contentService: contentService, logger: logger}
}

// ListSteps handles GET /v1/steps
func (h *ContentHandler) ListSteps(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_steps")
	defer observability.FinishSpan(span, nil)

	steps, err := h.contentService.ListSteps(c.Request.Context())
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to list steps", err, nil)
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"steps": steps})
}

// ListTopics handles GET /v1/steps/:step/topics
func (h *ContentHandler) ListTopics(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_topics")
	defer observability.FinishSpan(span, nil)

	stepNumber, err := strconv.Atoi(c.Param("step"))
	if err != nil || stepNumber <= 0 {
		HandleValidationError(c, "step", c.Param("step"), "must be a positive integer")
		return
	}
	span.SetAttributes(attribute.Int("content.step", stepNumber))

	topics, err := h.contentService.ListTopics(c.Request.Context(), stepNumber)
	if err != nil {
		if errors.Is(err, contextutils.ErrStepNotFound) {
			HandleAppError(c, err)
			return
		}
		h.logger.Error(c.Request.Context(), "Failed to list topics", err, map[string]interface{}{"step": stepNumber})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

// ListSubtopics handles GET /v1/topics/:id/subtopics
func (h *ContentHandler) ListSubtopics(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_subtopics")
	defer observability.FinishSpan(span, nil)

	topicID, err := strconv.Atoi(c.Param("id"))
	if err != nil || topicID <= 0 {
		HandleValidationError(c, "topic id", c.Param("id"), "must be a positive integer")
		return
	}
	span.SetAttributes(observability.AttributeTopicID(topicID))

	subtopics, err := h.contentService.ListSubtopics(c.Request.Context(), topicID)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to list subtopics", err, map[string]interface{}{"topic_id": topicID})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subtopics": subtopics})
}

// GetQuestion handles GET /v1/questions/:id. The reveal query parameter
// requests the explanation and answer key, which the service only grants when
// the user has attempted the question.
func (h *ContentHandler) GetQuestion(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_question")
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

	reveal := c.Query("reveal") == "true"
	span.SetAttributes(
		observability.AttributeUserID(userID),
		observability.AttributeQuestionID(questionID),
		attribute.Bool("question.reveal", reveal),
	)

	question, err := h.contentService.GetQuestion(c.Request.Context(), userID, questionID, reveal)
	if err != nil {
		if !errors.Is(err, contextutils.ErrQuestionNotFound) {
			h.logger.Error(c.Request.Context(), "Failed to get question", err, map[string]interface{}{"question_id": questionID})
		}
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}
