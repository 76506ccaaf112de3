package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/trailsocial/engagement/internal/logger"
	"github.com/trailsocial/engagement/internal/util"
	"go.uber.org/zap"
)

// RebuildViewCounts recomputes every cached view counter from the event log.
// POST /api/admin/view-counts/rebuild
func (h *Handlers) RebuildViewCounts(c *gin.Context) {
	rows, err := h.counters.Rebuild(c.Request.Context())
	if err != nil {
		h.respondError(c, "", "rebuild_view_counts", err)
		return
	}

	if userID := util.OptionalUserID(c); userID != nil {
		logger.Log.Info("View counts rebuilt by admin",
			logger.WithUserID(*userID),
			zap.Int64("rows_written", rows),
		)
	}
	c.JSON(http.StatusOK, gin.H{"rows_written": rows})
}
