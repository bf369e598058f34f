package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"usmleapp/internal/config"
	"usmleapp/internal/models"
	"usmleapp/internal/observability"
	contextutils "usmleapp/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPracticeSetService for testing
type MockPracticeSetService struct {
	mock.Mock
}

func (m *MockPracticeSetService) CreateCustomSet(ctx context.Context, userID int, req models.CreateCustomSetRequest) (*models.CreateCustomSetResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreateCustomSetResponse), args.Error(1)
}

func (m *MockPracticeSetService) DeleteSet(ctx context.Context, userID, practiceSetID int) error {
	args := m.Called(ctx, userID, practiceSetID)
	return args.Error(0)
}

func (m *MockPracticeSetService) ListSetsForUser(ctx context.Context, userID int) ([]models.PracticeSetSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PracticeSetSummary), args.Error(1)
}

func (m *MockPracticeSetService) QuestionIDsForSet(ctx context.Context, userID, sessionID int) ([]int, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockPracticeSetService) UpdateSessionStatus(ctx context.Context, userID, sessionID int, status models.SetStatus) error {
	args := m.Called(ctx, userID, sessionID, status)
	return args.Error(0)
}

// MockFilterService for testing
type MockFilterService struct {
	mock.Mock
}

func (m *MockFilterService) MatchingQuestionIDs(ctx context.Context, userID, stepID int, spec models.FilterSpec) ([]int, error) {
	args := m.Called(ctx, userID, stepID, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockFilterService) CountMatching(ctx context.Context, userID, stepID int, spec models.FilterSpec) (int, error) {
	args := m.Called(ctx, userID, stepID, spec)
	return args.Int(0), args.Error(1)
}

func (m *MockFilterService) FilterCounts(ctx context.Context, userID, stepID int, systems, disciplines []string) (*models.FilterCountsResponse, error) {
	args := m.Called(ctx, userID, stepID, systems, disciplines)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FilterCountsResponse), args.Error(1)
}

func (m *MockFilterService) ResolveStep(ctx context.Context, stepNumber int) (int, error) {
	args := m.Called(ctx, stepNumber)
	return args.Int(0), args.Error(1)
}

func setupPracticeSetTestRouter(practice *MockPracticeSetService, filter *MockFilterService, authenticated bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	store := cookie.NewStore([]byte("test-secret"))
	router.Use(sessions.Sessions("test-session", store))

	if authenticated {
		router.Use(func(c *gin.Context) {
			c.Set("user_id", 7)
			c.Set("username", "student")
		})
	}

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	handler := NewPracticeSetHandler(practice, filter, logger)

	router.POST("/practice-sets/custom", handler.CreateCustomSet)
	router.POST("/practice-sets/filtered-count", handler.FilteredCount)
	router.GET("/practice-sets", handler.ListSets)
	router.DELETE("/practice-sets/:id", handler.DeleteSet)

	return router
}

func TestPracticeSetHandler_CreateCustomSet_EmptyPool(t *testing.T) {
	practice := new(MockPracticeSetService)
	filter := new(MockFilterService)
	router := setupPracticeSetTestRouter(practice, filter, true)

	practice.On("CreateCustomSet", mock.Anything, 7, mock.Anything).
		Return(nil, contextutils.ErrNoMatchingQuestions)

	body, _ := json.Marshal(models.CreateCustomSetRequest{
		Name:         "Empty",
		MaxQuestions: 10,
		Step:         1,
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/practice-sets/custom", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NO_MATCHING_QUESTIONS", resp["code"])
	assert.NotEmpty(t, resp["message"])
}

func TestPracticeSetHandler_CreateCustomSet_Success(t *testing.T) {
	practice := new(MockPracticeSetService)
	filter := new(MockFilterService)
	router := setupPracticeSetTestRouter(practice, filter, true)

	practice.On("CreateCustomSet", mock.Anything, 7, mock.Anything).
		Return(&models.CreateCustomSetResponse{
			ID:             12,
			PracticeSetID:  4,
			Name:           "Cardio",
			TotalQuestions: 10,
			Status:         models.SetStatusNotStarted,
		}, nil)

	body, _ := json.Marshal(models.CreateCustomSetRequest{
		Name:         "Cardio",
		MaxQuestions: 10,
		Step:         1,
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/practice-sets/custom", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp models.CreateCustomSetResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.ID)
	assert.Equal(t, 10, resp.TotalQuestions)
	practice.AssertExpectations(t)
}

func TestPracticeSetHandler_CreateCustomSet_Unauthenticated(t *testing.T) {
	practice := new(MockPracticeSetService)
	filter := new(MockFilterService)
	router := setupPracticeSetTestRouter(practice, filter, false)

	body, _ := json.Marshal(models.CreateCustomSetRequest{Name: "x", MaxQuestions: 5, Step: 1})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/practice-sets/custom", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	practice.AssertNotCalled(t, "CreateCustomSet", mock.Anything, mock.Anything, mock.Anything)
}

func TestPracticeSetHandler_FilteredCount(t *testing.T) {
	practice := new(MockPracticeSetService)
	filter := new(MockFilterService)
	router := setupPracticeSetTestRouter(practice, filter, true)

	filter.On("ResolveStep", mock.Anything, 1).Return(3, nil)
	filter.On("CountMatching", mock.Anything, 7, 3, mock.Anything).Return(42, nil)

	body, _ := json.Marshal(map[string]interface{}{"step": 1})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/practice-sets/filtered-count", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":42}`, w.Body.String())
}

func TestPracticeSetHandler_FilteredCount_UnknownStep(t *testing.T) {
	practice := new(MockPracticeSetService)
	filter := new(MockFilterService)
	router := setupPracticeSetTestRouter(practice, filter, true)

	filter.On("ResolveStep", mock.Anything, 9).Return(0, contextutils.ErrStepNotFound)

	body, _ := json.Marshal(map[string]interface{}{"step": 9})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/practice-sets/filtered-count", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPracticeSetHandler_DeleteSet_NotFound(t *testing.T) {
	practice := new(MockPracticeSetService)
	filter := new(MockFilterService)
	router := setupPracticeSetTestRouter(practice, filter, true)

	practice.On("DeleteSet", mock.Anything, 7, 99).Return(contextutils.ErrPracticeSetNotFound)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/practice-sets/99", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPracticeSetHandler_DeleteSet_InvalidID(t *testing.T) {
	practice := new(MockPracticeSetService)
	filter := new(MockFilterService)
	router := setupPracticeSetTestRouter(practice, filter, true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/practice-sets/abc", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	practice.AssertNotCalled(t, "DeleteSet", mock.Anything, mock.Anything, mock.Anything)
}
