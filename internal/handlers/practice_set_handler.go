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

// PracticeSetHandler handles practice set creation, listing, deletion, and
// the live filter-count endpoints that back the set builder UI.
type PracticeSetHandler struct {
	practiceSetService services.PracticeSetServiceInterface
	filterService      services.FilterServiceInterface
	logger             *observability.Logger
}

// NewPracticeSetHandler creates a new PracticeSetHandler instance
func NewPracticeSetHandler(practiceSetService services.PracticeSetServiceInterface, filterService services.FilterServiceInterface, logger *observability.Logger) *PracticeSetHandler {
	return &PracticeSetHandler{
		practiceSetService: practiceSetService,
		filterService:      filterService,
		logger:             logger,
	}
}

// CreateCustomSet handles POST /v1/practice-sets/custom
func (h *PracticeSetHandler) CreateCustomSet(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "create_custom_set")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req models.CreateCustomSetRequest
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
		attribute.Int("practice_set.max_questions", req.MaxQuestions),
		attribute.Int("practice_set.step", req.Step),
	)

	resp, err := h.practiceSetService.CreateCustomSet(c.Request.Context(), userID, req)
	if err != nil {
		if !errors.Is(err, contextutils.ErrNoMatchingQuestions) && !errors.Is(err, contextutils.ErrStepNotFound) {
			h.logger.Error(c.Request.Context(), "Failed to create custom practice set", err, map[string]interface{}{"user_id": userID})
		}
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(observability.AttributeSetID(resp.PracticeSetID))
	c.JSON(http.StatusCreated, resp)
}

// FilteredCount handles POST /v1/practice-sets/filtered-count. It returns the
// number of questions the posted filter specification currently matches, so
// the builder can show a live preview before the set is created.
func (h *PracticeSetHandler) FilteredCount(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "filtered_count")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	var req models.FilteredCountRequest
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

	stepID, err := h.filterService.ResolveStep(c.Request.Context(), req.Step)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(observability.AttributeUserID(userID), observability.AttributeStepID(stepID))

	count, err := h.filterService.CountMatching(c.Request.Context(), userID, stepID, req.Filters.ToSpec())
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to count matching questions", err, map[string]interface{}{"user_id": userID, "step_id": stepID})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// FilterCounts handles GET /v1/practice-sets/filter-counts. Systems and
// disciplines arrive as comma-separated query parameters and narrow the pool
// the per-axis counts are computed over.
func (h *PracticeSetHandler) FilterCounts(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "filter_counts")
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

	stepID, err := h.filterService.ResolveStep(c.Request.Context(), stepNumber)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	systems := ParseCSVParam(c, "systems")
	disciplines := ParseCSVParam(c, "disciplines")

	span.SetAttributes(
		observability.AttributeUserID(userID),
		observability.AttributeStepID(stepID),
		attribute.Int("filter.systems", len(systems)),
		attribute.Int("filter.disciplines", len(disciplines)),
	)

	resp, err := h.filterService.FilterCounts(c.Request.Context(), userID, stepID, systems, disciplines)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to compute filter counts", err, map[string]interface{}{"user_id": userID, "step_id": stepID})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListSets handles GET /v1/practice-sets
func (h *PracticeSetHandler) ListSets(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "list_practice_sets")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	span.SetAttributes(observability.AttributeUserID(userID))

	sets, err := h.practiceSetService.ListSetsForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Failed to list practice sets", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"practiceSets": sets})
}

// DeleteSet handles DELETE /v1/practice-sets/:id
func (h *PracticeSetHandler) DeleteSet(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_practice_set")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	setID, err := strconv.Atoi(c.Param("id"))
	if err != nil || setID <= 0 {
		HandleValidationError(c, "practice set id", c.Param("id"), "must be a positive integer")
		return
	}

	span.SetAttributes(observability.AttributeUserID(userID), observability.AttributeSetID(setID))

	if err := h.practiceSetService.DeleteSet(c.Request.Context(), userID, setID); err != nil {
		if !errors.Is(err, contextutils.ErrPracticeSetNotFound) {
			h.logger.Error(c.Request.Context(), "Failed to delete practice set", err, map[string]interface{}{"user_id": userID, "set_id": setID})
		}
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Practice set deleted"})
}

// QuestionIDs handles GET /v1/practice-sets/:id/question-ids
func (h *PracticeSetHandler) QuestionIDs(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "practice_set_question_ids")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	setID, err := strconv.Atoi(c.Param("id"))
	if err != nil || setID <= 0 {
		HandleValidationError(c, "practice set id", c.Param("id"), "must be a positive integer")
		return
	}

	span.SetAttributes(observability.AttributeUserID(userID), observability.AttributeSetID(setID))

	ids, err := h.practiceSetService.QuestionIDsForSet(c.Request.Context(), userID, setID)
	if err != nil {
		if !errors.Is(err, contextutils.ErrPracticeSetNotFound) {
			h.logger.Error(c.Request.Context(), "Failed to load practice set question ids", err, map[string]interface{}{"user_id": userID, "set_id": setID})
		}
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"questionIds": ids})
}

// updateStatusRequest is the body of PATCH /v1/practice-sets/:id/status
type updateStatusRequest struct {
	Status models.SetStatus `json:"status" validate:"required,oneof=NOT_STARTED IN_PROGRESS COMPLETED PAUSED"`
}

// UpdateStatus handles PATCH /v1/practice-sets/:id/status
func (h *PracticeSetHandler) UpdateStatus(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "update_practice_set_status")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	setID, err := strconv.Atoi(c.Param("id"))
	if err != nil || setID <= 0 {
		HandleValidationError(c, "practice set id", c.Param("id"), "must be a positive integer")
		return
	}

	var req updateStatusRequest
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
		observability.AttributeSetID(setID),
		attribute.String("practice_set.status", string(req.Status)),
	)

	if err := h.practiceSetService.UpdateSessionStatus(c.Request.Context(), userID, setID, req.Status); err != nil {
		if !errors.Is(err, contextutils.ErrPracticeSetNotFound) {
			h.logger.Error(c.Request.Context(), "Failed to update practice set status", err, map[string]interface{}{"user_id": userID, "set_id": setID})
		}
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "status": req.Status})
}
