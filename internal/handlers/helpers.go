package handlers

import (
	stderrors "errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/trailsocial/engagement/internal/engagement"
	"github.com/trailsocial/engagement/internal/errors"
	"github.com/trailsocial/engagement/internal/logger"
	"github.com/trailsocial/engagement/internal/metrics"
	"github.com/trailsocial/engagement/internal/middleware"
	"github.com/trailsocial/engagement/internal/models"
	"github.com/trailsocial/engagement/internal/repository"
	"github.com/trailsocial/engagement/internal/util"
	"github.com/trailsocial/engagement/internal/viewer"
	"go.uber.org/zap"
)

// maxBodyBytes caps how much of a view body is read for the fingerprint.
const maxBodyBytes = 4096

// resourceName is the human label used in error messages.
func resourceName(t models.TargetType) string {
	switch t {
	case models.TargetEntry:
		return "Entry"
	case models.TargetComment:
		return "Comment"
	case models.TargetProfile:
		return "User"
	}
	return "Target"
}

// decodeTarget turns the :token path parameter into a target, answering 400
// on tokens that do not decode.
func (h *Handlers) decodeTarget(c *gin.Context, targetType models.TargetType) (engagement.Target, bool) {
	id, ok := h.obfuscator.Decode(c.Param("token"))
	if !ok {
		metrics.Get().InvalidTokensTotal.WithLabelValues(string(targetType)).Inc()
		util.RespondWithAPIError(c, errors.InvalidToken(string(targetType)))
		return engagement.Target{}, false
	}
	return engagement.Target{Type: targetType, ID: id}, true
}

// owner returns the author of an entry or comment.
func (h *Handlers) owner(c *gin.Context, target engagement.Target) (int64, error) {
	switch target.Type {
	case models.TargetEntry:
		return h.content.EntryOwner(c.Request.Context(), target.ID)
	case models.TargetComment:
		return h.content.CommentOwner(c.Request.Context(), target.ID)
	}
	return 0, engagement.ErrInvalidTargetType
}

// lookupOwner resolves the target's author, answering 404 or 500 itself.
func (h *Handlers) lookupOwner(c *gin.Context, target engagement.Target) (int64, bool) {
	ownerID, err := h.owner(c, target)
	if err != nil {
		h.respondError(c, target.Type, "lookup_owner", err)
		return 0, false
	}
	return ownerID, true
}

// respondError maps domain errors to API errors. Unknown errors are logged
// and answered with a generic 500.
func (h *Handlers) respondError(c *gin.Context, targetType models.TargetType, operation string, err error) {
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		util.RespondNotFound(c, resourceName(targetType))
	case stderrors.Is(err, repository.ErrInvalidInput):
		util.RespondBadRequest(c, "Nickname is required")
	case stderrors.Is(err, engagement.ErrInvalidTargetType):
		util.RespondValidationError(c, "type", "type must be entry or comment")
	case stderrors.Is(err, engagement.ErrClapOutOfRange):
		util.RespondValidationError(c, "count", err.Error())
	case stderrors.Is(err, engagement.ErrRebuildInProgress):
		util.RespondWithAPIError(c, errors.Conflict("View count rebuild already in progress"))
	default:
		logger.Log.Error("Engagement operation failed",
			zap.String("operation", operation),
			zap.String("target_type", string(targetType)),
			logger.WithRequestID(c.GetString("request_id")),
			zap.Error(err),
		)
		middleware.RecordError("database", c.FullPath())
		util.RespondInternalError(c)
	}
}

// readFingerprint reads the optional JSON body of a view request.
func readFingerprint(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		return ""
	}
	return viewer.ReadFingerprint(body)
}
