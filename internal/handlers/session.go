package handlers

import (
	"usmleapp/internal/middleware"

	"github.com/gin-gonic/gin"
)

// GetUserIDFromSession retrieves the authenticated user ID placed in the gin
// context by RequireAuth. Returns (0, false) when the request is not
// authenticated; callers must treat that as a hard 401, never as a guest.
func GetUserIDFromSession(c *gin.Context) (int, bool) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}
