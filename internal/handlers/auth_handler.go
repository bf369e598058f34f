package handlers

import (
	"net/http"

	"usmleapp/internal/config"
	"usmleapp/internal/middleware"
	"usmleapp/internal/models"
	"usmleapp/internal/observability"
	"usmleapp/internal/services"
	contextutils "usmleapp/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// AuthHandler handles authentication related HTTP requests
type AuthHandler struct {
	userService services.UserServiceInterface
	config      *config.Config
	logger      *observability.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService services.UserServiceInterface, cfg *config.Config, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		config:      cfg,
		logger:      logger,
	}
}

// Login handles user login requests
func (h *AuthHandler) Login(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "login")
	defer observability.FinishSpan(span, nil)

	var req models.LoginRequest
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
		attribute.String("auth.username", req.Username),
		attribute.Bool("auth.password_provided", req.Password != ""),
	)

	user, err := h.userService.AuthenticateUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Warn(c.Request.Context(), "Authentication failed for user", map[string]interface{}{"username": req.Username})
		HandleAppError(c, contextutils.ErrInvalidCredentials)
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", user.ID),
		attribute.String("user.username", user.Username),
	)

	if err := h.userService.UpdateLastActive(c.Request.Context(), user.ID); err != nil {
		// Non-fatal; the login itself succeeded
		h.logger.Warn(c.Request.Context(), "Failed to update last active for user", map[string]interface{}{"user_id": user.ID, "error": err.Error()})
	}

	session := sessions.Default(c)
	session.Set(middleware.UserIDKey, user.ID)
	session.Set(middleware.UsernameKey, user.Username)

	if err := session.Save(); err != nil {
		h.logger.Error(c.Request.Context(), "Failed to save session", err, map[string]interface{}{"user_id": user.ID})
		HandleAppError(c, contextutils.WrapError(err, "failed to create session"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user":    user,
	})
}

// Logout handles user logout requests
func (h *AuthHandler) Logout(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "logout")
	defer observability.FinishSpan(span, nil)

	session := sessions.Default(c)
	if userID := session.Get(middleware.UserIDKey); userID != nil {
		if id, ok := userID.(int); ok {
			span.SetAttributes(attribute.Int("user.id", id))
		}
	}

	session.Clear()
	if err := session.Save(); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to clear session"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logout successful",
	})
}

// Status returns the current authentication status
func (h *AuthHandler) Status(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "auth_status")
	defer observability.FinishSpan(span, nil)

	session := sessions.Default(c)
	rawID := session.Get(middleware.UserIDKey)

	userID, ok := rawID.(int)
	if !ok || userID <= 0 {
		span.SetAttributes(attribute.Bool("auth.authenticated", false))
		c.JSON(http.StatusOK, gin.H{"authenticated": false, "user": nil})
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error(c.Request.Context(), "Error getting user by ID", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, contextutils.ErrInternalError)
		return
	}

	if user == nil {
		// Stale session referencing a removed account
		session.Clear()
		if err := session.Save(); err != nil {
			h.logger.Error(c.Request.Context(), "Error saving session", err, nil)
		}
		span.SetAttributes(attribute.Bool("auth.authenticated", false))
		c.JSON(http.StatusOK, gin.H{"authenticated": false, "user": nil})
		return
	}

	span.SetAttributes(
		attribute.Bool("auth.authenticated", true),
		attribute.Int("user.id", user.ID),
		attribute.String("user.username", user.Username),
	)

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          user,
	})
}
