package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/trailsocial/engagement/internal/engagement"
	"github.com/trailsocial/engagement/internal/metrics"
	"github.com/trailsocial/engagement/internal/models"
	"github.com/trailsocial/engagement/internal/util"
)

// RecordEntryView records a view of an entry
// POST /api/entries/:token/views
func (h *Handlers) RecordEntryView(c *gin.Context) {
	h.recordContentView(c, models.TargetEntry)
}

// RecordCommentView records a view of a comment
// POST /api/comments/:token/views
func (h *Handlers) RecordCommentView(c *gin.Context) {
	h.recordContentView(c, models.TargetComment)
}

func (h *Handlers) recordContentView(c *gin.Context, targetType models.TargetType) {
	target, ok := h.decodeTarget(c, targetType)
	if !ok {
		return
	}
	if _, ok := h.lookupOwner(c, target); !ok {
		return
	}
	h.recordView(c, target)
}

// RecordProfileView records a view of a user's profile. Owners viewing their
// own profile get the current count back without a write.
// POST /api/users/:nickname/views
func (h *Handlers) RecordProfileView(c *gin.Context) {
	userID, err := h.content.UserIDByNickname(c.Request.Context(), c.Param("nickname"))
	if err != nil {
		h.respondError(c, models.TargetProfile, "lookup_user", err)
		return
	}
	target := engagement.ProfileTarget(userID)

	if viewerID := util.OptionalUserID(c); viewerID != nil && *viewerID == userID {
		count, err := h.counters.Get(c.Request.Context(), target)
		if err != nil {
			h.respondError(c, target.Type, "get_view_count", err)
			return
		}
		metrics.Get().ViewsTotal.WithLabelValues(string(target.Type), "self").Inc()
		c.Set("view_recorded", false)
		c.JSON(http.StatusOK, engagement.ViewResult{Recorded: false, ViewCount: count})
		return
	}

	h.recordView(c, target)
}

func (h *Handlers) recordView(c *gin.Context, target engagement.Target) {
	identity := h.resolver.Resolve(util.OptionalUserID(c), c.Request, readFingerprint(c))

	result, err := h.recorder.RecordView(c.Request.Context(), target, identity)
	if err != nil {
		h.respondError(c, target.Type, "record_view", err)
		return
	}

	c.Set("view_recorded", result.Recorded)
	c.JSON(http.StatusOK, result)
}

// GetEntryViews returns an entry's view count
// GET /api/entries/:token/views
func (h *Handlers) GetEntryViews(c *gin.Context) {
	h.getViews(c, models.TargetEntry)
}

// GetCommentViews returns a comment's view count
// GET /api/comments/:token/views
func (h *Handlers) GetCommentViews(c *gin.Context) {
	h.getViews(c, models.TargetComment)
}

func (h *Handlers) getViews(c *gin.Context, targetType models.TargetType) {
	target, ok := h.decodeTarget(c, targetType)
	if !ok {
		return
	}
	if _, ok := h.lookupOwner(c, target); !ok {
		return
	}

	count, err := h.counters.Get(c.Request.Context(), target)
	if err != nil {
		h.respondError(c, target.Type, "get_view_count", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"view_count": count})
}

// GetViewCounts returns view counts for a list of tokens in one query.
// Tokens that do not decode are left out; decodable tokens without views
// report 0.
// GET /api/views?type=entry&ids=tok1,tok2
func (h *Handlers) GetViewCounts(c *gin.Context) {
	targetType, tokens, ids, ok := h.parseBatch(c)
	if !ok {
		return
	}

	counts, err := h.counters.GetBatch(c.Request.Context(), targetType, ids)
	if err != nil {
		h.respondError(c, targetType, "get_view_counts", err)
		return
	}

	result := make(map[string]int64, len(tokens))
	for i, token := range tokens {
		result[token] = counts[ids[i]]
	}
	c.JSON(http.StatusOK, gin.H{"view_counts": result})
}

// parseBatch reads ?type= and ?ids= and decodes the tokens. The returned
// tokens and ids are parallel slices.
func (h *Handlers) parseBatch(c *gin.Context) (models.TargetType, []string, []int64, bool) {
	targetType, valid := models.ParseTargetType(c.DefaultQuery("type", string(models.TargetEntry)))
	if !valid || !targetType.Clappable() {
		util.RespondValidationError(c, "type", "type must be entry or comment")
		return "", nil, nil, false
	}

	raw := util.ParseTokenList(c.Query("ids"))
	tokens := make([]string, 0, len(raw))
	ids := make([]int64, 0, len(raw))
	for _, token := range raw {
		id, ok := h.obfuscator.Decode(token)
		if !ok {
			metrics.Get().InvalidTokensTotal.WithLabelValues(string(targetType)).Inc()
			continue
		}
		tokens = append(tokens, token)
		ids = append(ids, id)
	}
	return targetType, tokens, ids, true
}
