package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/trailsocial/engagement/internal/auth"
	"github.com/trailsocial/engagement/internal/logger"
	"github.com/trailsocial/engagement/internal/util"
	"go.uber.org/zap"
)

// OptionalAuth resolves a bearer token into user_id/is_admin when one is sent.
// Requests without an Authorization header continue anonymously; a header
// that fails validation is rejected rather than silently downgraded.
func OptionalAuth(validator auth.TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || validator == nil {
			c.Next()
			return
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			util.RespondUnauthorized(c, "Invalid authorization header")
			return
		}

		claims, err := validator.ValidateToken(strings.TrimSpace(tokenString))
		if err != nil {
			logger.Log.Debug("Rejected bearer token",
				logger.WithRequestID(c.GetString("request_id")),
				zap.Error(err),
			)
			util.RespondUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(util.ContextUserID, claims.UserID)
		c.Set(util.ContextIsAdmin, claims.IsAdmin)
		c.Next()
	}
}
