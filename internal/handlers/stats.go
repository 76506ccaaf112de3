package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/trailsocial/engagement/internal/models"
)

// GetProfileViewStats returns the view totals across a user's entries,
// comments and profile
// GET /api/users/:nickname/view-stats
func (h *Handlers) GetProfileViewStats(c *gin.Context) {
	userID, err := h.content.UserIDByNickname(c.Request.Context(), c.Param("nickname"))
	if err != nil {
		h.respondError(c, models.TargetProfile, "lookup_user", err)
		return
	}

	stats, err := h.counters.ProfileViewStats(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, models.TargetProfile, "profile_view_stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
