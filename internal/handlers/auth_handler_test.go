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

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserService for testing
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) AuthenticateUser(ctx context.Context, username, password string) (*models.User, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) CreateUser(ctx context.Context, username, email, password string, isAdmin bool) (*models.User, error) {
	args := m.Called(ctx, username, email, password, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdatePassword(ctx context.Context, userID int, password string) error {
	args := m.Called(ctx, userID, password)
	return args.Error(0)
}

func (m *MockUserService) UpdateLastActive(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserService) EnsureAdminUser(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func setupAuthTestRouter(userService *MockUserService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	store := cookie.NewStore([]byte("test-secret"))
	router.Use(sessions.Sessions("test-session", store))

	cfg := &config.Config{
		Server: config.ServerConfig{
			SessionSecret: "test-secret",
			AdminUsername: "admin",
			AdminPassword: "password",
		},
	}

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	handler := NewAuthHandler(userService, cfg, logger)

	router.POST("/login", handler.Login)
	router.POST("/logout", handler.Logout)
	router.GET("/status", handler.Status)

	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestAuthHandler_Login_Success(t *testing.T) {
	mockUserService := new(MockUserService)
	router := setupAuthTestRouter(mockUserService)

	testUser := &models.User{ID: 1, Username: "student"}
	mockUserService.On("AuthenticateUser", mock.Anything, "student", "secret123").Return(testUser, nil)
	mockUserService.On("UpdateLastActive", mock.Anything, 1).Return(nil)

	w := postJSON(t, router, "/login", models.LoginRequest{Username: "student", Password: "secret123"})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])

	cookies := w.Result().Cookies()
	assert.NotEmpty(t, cookies, "login must set a session cookie")

	mockUserService.AssertExpectations(t)
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	mockUserService := new(MockUserService)
	router := setupAuthTestRouter(mockUserService)

	mockUserService.On("AuthenticateUser", mock.Anything, "student", "wrong").
		Return(nil, assert.AnError)

	w := postJSON(t, router, "/login", models.LoginRequest{Username: "student", Password: "wrong"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockUserService.AssertExpectations(t)
}

func TestAuthHandler_Login_MissingFields(t *testing.T) {
	mockUserService := new(MockUserService)
	router := setupAuthTestRouter(mockUserService)

	w := postJSON(t, router, "/login", map[string]string{"username": "student"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockUserService.AssertNotCalled(t, "AuthenticateUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthHandler_Login_MalformedJSON(t *testing.T) {
	mockUserService := new(MockUserService)
	router := setupAuthTestRouter(mockUserService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Login_UpdateLastActiveFailureIsNonFatal(t *testing.T) {
	mockUserService := new(MockUserService)
	router := setupAuthTestRouter(mockUserService)

	testUser := &models.User{ID: 3, Username: "student"}
	mockUserService.On("AuthenticateUser", mock.Anything, "student", "secret123").Return(testUser, nil)
	mockUserService.On("UpdateLastActive", mock.Anything, 3).Return(assert.AnError)

	w := postJSON(t, router, "/login", models.LoginRequest{Username: "student", Password: "secret123"})

	assert.Equal(t, http.StatusOK, w.Code)
	mockUserService.AssertExpectations(t)
}

func TestAuthHandler_Logout(t *testing.T) {
	mockUserService := new(MockUserService)
	router := setupAuthTestRouter(mockUserService)

	w := postJSON(t, router, "/logout", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
}

func TestAuthHandler_Status_Unauthenticated(t *testing.T) {
	mockUserService := new(MockUserService)
	router := setupAuthTestRouter(mockUserService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["authenticated"])
	assert.Nil(t, resp["user"])
}

func TestAuthHandler_Status_Authenticated(t *testing.T) {
	mockUserService := new(MockUserService)
	router := setupAuthTestRouter(mockUserService)

	testUser := &models.User{ID: 5, Username: "student"}
	mockUserService.On("AuthenticateUser", mock.Anything, "student", "secret123").Return(testUser, nil)
	mockUserService.On("UpdateLastActive", mock.Anything, 5).Return(nil)
	mockUserService.On("GetUserByID", mock.Anything, 5).Return(testUser, nil)

	login := postJSON(t, router, "/login", models.LoginRequest{Username: "student", Password: "secret123"})
	require.Equal(t, http.StatusOK, login.Code)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	for _, c := range login.Result().Cookies() {
		req.AddCookie(c)
	}
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["authenticated"])

	user, ok := resp["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "student", user["username"])

	mockUserService.AssertExpectations(t)
}
