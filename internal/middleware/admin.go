package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/trailsocial/engagement/internal/util"
)

// RequireAdmin middleware ensures the request is authenticated and the user is an admin.
// The admin flag comes from the verified token (set by OptionalAuth).
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := util.GetUserIDFromContext(c); !ok {
			return
		}

		if !util.IsAdmin(c) {
			util.RespondForbidden(c, "Admin access required")
			return
		}

		c.Next()
	}
}

// RequireAuth rejects requests without an authenticated user.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := util.GetUserIDFromContext(c); !ok {
			return
		}
		c.Next()
	}
}
