package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/trailsocial/engagement/internal/engagement"
	"github.com/trailsocial/engagement/internal/models"
	"github.com/trailsocial/engagement/internal/util"
)

// ClapRequest is the body of a clap submission. Count is the caller's new
// absolute total for the target, not an increment.
type ClapRequest struct {
	Count    *int `json:"count"`
	MaxClaps *int `json:"max_claps,omitempty"`
}

// AddEntryClap sets the caller's clap total on an entry
// POST /api/entries/:token/claps
func (h *Handlers) AddEntryClap(c *gin.Context) {
	h.addClap(c, models.TargetEntry)
}

// AddCommentClap sets the caller's clap total on a comment. Comments always
// use the default cap.
// POST /api/comments/:token/claps
func (h *Handlers) AddCommentClap(c *gin.Context) {
	h.addClap(c, models.TargetComment)
}

func (h *Handlers) addClap(c *gin.Context, targetType models.TargetType) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	target, ok := h.decodeTarget(c, targetType)
	if !ok {
		return
	}

	var req ClapRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Count == nil {
		util.RespondValidationError(c, "count", "Clap count is required")
		return
	}

	limit := engagement.DefaultClapCap
	if targetType == models.TargetEntry {
		limit = engagement.ResolveCap(util.IsAdmin(c), req.MaxClaps)
	}

	ownerID, ok := h.lookupOwner(c, target)
	if !ok {
		return
	}
	if ownerID == userID {
		util.RespondForbidden(c, "You cannot clap for your own "+string(targetType)+"s")
		return
	}

	result, err := h.claps.SetClap(c.Request.Context(), target, userID, *req.Count, limit)
	if errors.Is(err, engagement.ErrClapOutOfRange) {
		util.RespondValidationError(c, "count", fmt.Sprintf("Clap count must be between 1 and %d", limit))
		return
	}
	if err != nil {
		h.respondError(c, target.Type, "set_clap", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"total_claps": result.TotalClaps,
		"user_claps":  result.UserClaps,
	})
}

// GetEntryClaps returns an entry's clap total, plus the caller's own claps
// when authenticated
// GET /api/entries/:token/claps
func (h *Handlers) GetEntryClaps(c *gin.Context) {
	h.getClaps(c, models.TargetEntry)
}

// GetCommentClaps returns a comment's clap total
// GET /api/comments/:token/claps
func (h *Handlers) GetCommentClaps(c *gin.Context) {
	h.getClaps(c, models.TargetComment)
}

func (h *Handlers) getClaps(c *gin.Context, targetType models.TargetType) {
	target, ok := h.decodeTarget(c, targetType)
	if !ok {
		return
	}
	if _, ok := h.lookupOwner(c, target); !ok {
		return
	}

	ctx := c.Request.Context()
	total, err := h.claps.GetTotal(ctx, target)
	if err != nil {
		h.respondError(c, target.Type, "get_claps", err)
		return
	}

	summary := engagement.ClapSummary{Total: total}
	if userID := util.OptionalUserID(c); userID != nil {
		userClaps, err := h.claps.GetUserTotal(ctx, target, *userID)
		if err != nil {
			h.respondError(c, target.Type, "get_user_claps", err)
			return
		}
		summary.UserClaps = &userClaps
	}

	c.JSON(http.StatusOK, gin.H{
		"total":      summary.Total,
		"user_claps": summary.UserClaps,
	})
}

// GetClapCounts returns clap summaries for a list of tokens in one query.
// GET /api/claps?type=entry&ids=tok1,tok2
func (h *Handlers) GetClapCounts(c *gin.Context) {
	targetType, tokens, ids, ok := h.parseBatch(c)
	if !ok {
		return
	}

	userID := util.OptionalUserID(c)
	summaries, err := h.claps.GetBatch(c.Request.Context(), targetType, ids, userID)
	if err != nil {
		h.respondError(c, targetType, "get_clap_counts", err)
		return
	}

	result := make(map[string]engagement.ClapSummary, len(tokens))
	for i, token := range tokens {
		summary, found := summaries[ids[i]]
		if !found {
			summary = engagement.ClapSummary{}
			if userID != nil {
				var zero int64
				summary.UserClaps = &zero
			}
		}
		result[token] = summary
	}
	c.JSON(http.StatusOK, gin.H{"claps": result})
}
