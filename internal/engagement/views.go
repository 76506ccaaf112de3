package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/trailsocial/engagement/internal/logger"
	"github.com/trailsocial/engagement/internal/metrics"
	"github.com/trailsocial/engagement/internal/models"
	"github.com/trailsocial/engagement/internal/viewer"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultDedupWindow is how long a viewer's view of a target suppresses
// further views from the same viewer.
const DefaultDedupWindow = 24 * time.Hour

// ViewResult is the outcome of one view submission.
type ViewResult struct {
	Recorded  bool  `json:"recorded"`
	ViewCount int64 `json:"view_count"`
}

// Recorder deduplicates and records views.
//
// Two concurrent first-time views from one viewer may both be recorded: the
// dedup lookup and the insert are not serialized. That over-count is accepted.
type Recorder struct {
	db       *gorm.DB
	counters *CounterCache
	window   time.Duration
	now      Clock
}

// NewRecorder creates a Recorder. A non-positive window means DefaultDedupWindow.
func NewRecorder(db *gorm.DB, counters *CounterCache, window time.Duration) *Recorder {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Recorder{db: db, counters: counters, window: window, now: utcNow}
}

// SetClock replaces the recorder's clock, and the counter cache's with it.
func (r *Recorder) SetClock(now Clock) {
	r.now = now
	r.counters.now = now
}

// Window returns the dedup window in use.
func (r *Recorder) Window() time.Duration {
	return r.window
}

// RecordView counts a view of target by identity unless the same identity
// already viewed it within the dedup window. Authenticated and anonymous
// identities are separate spaces: a user id never matches an anonymous hash.
// The returned count is read after the write.
func (r *Recorder) RecordView(ctx context.Context, target Target, identity viewer.Identity) (ViewResult, error) {
	if !target.Type.Valid() {
		return ViewResult{}, ErrInvalidTargetType
	}

	start := time.Now()
	defer func() {
		metrics.Get().ViewRecordDuration.WithLabelValues(string(target.Type)).Observe(time.Since(start).Seconds())
	}()

	db := r.db.WithContext(ctx)
	now := r.now().UTC()

	seen, err := r.seenWithinWindow(db, target, identity, now.Add(-r.window))
	if err != nil {
		return ViewResult{}, err
	}
	if seen {
		count, err := r.counters.get(db, target)
		if err != nil {
			return ViewResult{}, err
		}
		metrics.Get().ViewsTotal.WithLabelValues(string(target.Type), "deduplicated").Inc()
		return ViewResult{Recorded: false, ViewCount: count}, nil
	}

	event := models.ViewEvent{
		TargetType: target.Type,
		TargetID:   target.ID,
		CreatedAt:  now,
	}
	if identity.Authenticated() {
		uid := *identity.UserID
		event.ViewerID = &uid
		// The column is NOT NULL; authenticated rows carry an empty hash.
		event.ViewerHash = []byte{}
	} else {
		event.ViewerHash = identity.Hash
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("failed to insert view event: %w", err)
		}
		return r.counters.increment(tx, target)
	})
	if err != nil {
		return ViewResult{}, err
	}

	count, err := r.counters.get(db, target)
	if err != nil {
		return ViewResult{}, err
	}

	metrics.Get().ViewsTotal.WithLabelValues(string(target.Type), "recorded").Inc()
	logger.Log.Debug("View recorded",
		logger.WithTarget(string(target.Type), target.ID),
		logger.WithViewer(identity.String()),
		zap.Int64("view_count", count),
	)
	return ViewResult{Recorded: true, ViewCount: count}, nil
}

func (r *Recorder) seenWithinWindow(db *gorm.DB, target Target, identity viewer.Identity, since time.Time) (bool, error) {
	q := db.Model(&models.ViewEvent{}).
		Where("target_type = ? AND target_id = ?", target.Type, target.ID)
	if identity.Authenticated() {
		q = q.Where("viewer_id = ?", *identity.UserID)
	} else {
		q = q.Where("viewer_id IS NULL AND viewer_hash = ?", identity.Hash)
	}

	var ids []uint64
	if err := q.Where("created_at > ?", since).Limit(1).Pluck("id", &ids).Error; err != nil {
		return false, fmt.Errorf("failed to check recent views: %w", err)
	}
	return len(ids) > 0, nil
}
