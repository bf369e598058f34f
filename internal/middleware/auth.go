// Package middleware provides authentication and authorization middleware for the Gin web framework.
package middleware

import (
	"context"
	"net/http"

	"usmleapp/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys for storing user information
const (
	// UserIDKey is the key used to store user ID in session
	UserIDKey = "user_id"
	// UsernameKey is the key used to store username in session
	UsernameKey = "username"
)

// UserLookup is the slice of the user service the admin check needs
type UserLookup interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

func rejectUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": "Authentication required",
		"code":  "UNAUTHORIZED",
	})
	c.Abort()
}

// sessionUserID extracts a valid user id and username from the session.
// Returns false when either is missing or malformed; there is no fallback
// identity, a bad session always fails closed.
func sessionUserID(c *gin.Context) (int, string, bool) {
	session := sessions.Default(c)

	userID := session.Get(UserIDKey)
	if userID == nil {
		return 0, "", false
	}
	userIDInt, ok := userID.(int)
	if !ok {
		// JSON numbers round-trip through some session stores as float64
		userIDFloat, ok := userID.(float64)
		if !ok {
			return 0, "", false
		}
		userIDInt = int(userIDFloat)
	}
	if userIDInt <= 0 {
		return 0, "", false
	}

	username, ok := session.Get(UsernameKey).(string)
	if !ok || username == "" {
		return 0, "", false
	}
	return userIDInt, username, true
}

// RequireAuth returns a middleware that requires an authenticated session.
// Unauthenticated requests get 401; handlers behind it can rely on the
// user_id context value being a real user id.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, username, ok := sessionUserID(c)
		if !ok {
			rejectUnauthorized(c)
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(UsernameKey, username)
		c.Next()
	}
}

// RequireAdmin returns a middleware that requires an authenticated admin user
func RequireAdmin(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, username, ok := sessionUserID(c)
		if !ok {
			rejectUnauthorized(c)
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check admin status",
				"code":  "INTERNAL_SERVER_ERROR",
			})
			c.Abort()
			return
		}
		if user == nil || !user.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Admin access required",
				"code":  "FORBIDDEN",
			})
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(UsernameKey, username)
		c.Next()
	}
}
