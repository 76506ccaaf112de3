package util

import (
	"github.com/gin-gonic/gin"
)

// Context keys written by the auth middleware.
const (
	ContextUserID  = "user_id"
	ContextIsAdmin = "is_admin"
)

// OptionalUserID returns the authenticated user id, or nil for anonymous requests.
// It never writes a response.
func OptionalUserID(c *gin.Context) *int64 {
	raw, exists := c.Get(ContextUserID)
	if !exists {
		return nil
	}
	userID, ok := raw.(int64)
	if !ok || userID < 1 {
		return nil
	}
	return &userID
}

// GetUserIDFromContext extracts the authenticated user id.
// If the request is anonymous it responds with 401 and returns false.
func GetUserIDFromContext(c *gin.Context) (int64, bool) {
	userID := OptionalUserID(c)
	if userID == nil {
		RespondUnauthorized(c)
		return 0, false
	}
	return *userID, true
}

// IsAdmin reports the admin flag supplied by the auth middleware.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(ContextIsAdmin)
}
