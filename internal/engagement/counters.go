package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/trailsocial/engagement/internal/logger"
	"github.com/trailsocial/engagement/internal/metrics"
	"github.com/trailsocial/engagement/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	rebuildLockKey = "engagement:lock:rebuild-view-counts"
	rebuildLockTTL = 15 * time.Minute
)

// CounterCache reads and maintains the per-target view_counts table.
type CounterCache struct {
	db     *gorm.DB
	locker Locker
	now    Clock
}

// NewCounterCache creates a CounterCache. A nil locker falls back to an
// in-process LocalLocker.
func NewCounterCache(db *gorm.DB, locker Locker) *CounterCache {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &CounterCache{db: db, locker: locker, now: utcNow}
}

// Get returns the cached view count for a target, 0 when no row exists.
func (c *CounterCache) Get(ctx context.Context, target Target) (int64, error) {
	if !target.Type.Valid() {
		return 0, ErrInvalidTargetType
	}
	return c.get(c.db.WithContext(ctx), target)
}

func (c *CounterCache) get(db *gorm.DB, target Target) (int64, error) {
	var counts []int64
	err := db.Model(&models.ViewCount{}).
		Where("target_type = ? AND target_id = ?", target.Type, target.ID).
		Limit(1).
		Pluck("view_count", &counts).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read view count: %w", err)
	}
	if len(counts) == 0 {
		return 0, nil
	}
	return counts[0], nil
}

// GetBatch returns counts for many targets of one type in a single query.
// Targets without a counter row are absent from the result.
func (c *CounterCache) GetBatch(ctx context.Context, targetType models.TargetType, ids []int64) (map[int64]int64, error) {
	if !targetType.Valid() {
		return nil, ErrInvalidTargetType
	}
	result := make(map[int64]int64, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []models.ViewCount
	err := c.db.WithContext(ctx).
		Select("target_id", "view_count").
		Where("target_type = ? AND target_id IN ?", targetType, ids).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read view counts: %w", err)
	}

	for _, row := range rows {
		result[row.TargetID] = row.ViewCount
	}
	return result, nil
}

// Increment adds one to a target's counter, creating the row at 1.
func (c *CounterCache) Increment(ctx context.Context, target Target) error {
	if !target.Type.Valid() {
		return ErrInvalidTargetType
	}
	return c.increment(c.db.WithContext(ctx), target)
}

// increment is a single atomic upsert; concurrent callers never lose updates.
func (c *CounterCache) increment(db *gorm.DB, target Target) error {
	now := c.now()
	row := models.ViewCount{
		TargetType: target.Type,
		TargetID:   target.ID,
		ViewCount:  1,
		UpdatedAt:  now,
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "target_type"}, {Name: "target_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"view_count": gorm.Expr("view_counts.view_count + 1"),
			"updated_at": now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to increment view count: %w", err)
	}
	return nil
}

// Rebuild recomputes every counter from the raw view events and returns the
// number of counter rows written. Only one rebuild runs at a time.
func (c *CounterCache) Rebuild(ctx context.Context) (int64, error) {
	m := metrics.Get()

	acquired, err := c.locker.Acquire(ctx, rebuildLockKey, rebuildLockTTL)
	if err != nil {
		m.CounterRebuilds.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("failed to acquire rebuild lock: %w", err)
	}
	if !acquired {
		m.CounterRebuilds.WithLabelValues("busy").Inc()
		return 0, ErrRebuildInProgress
	}
	defer func() {
		if err := c.locker.Release(context.WithoutCancel(ctx), rebuildLockKey); err != nil {
			logger.WarnWithFields("Failed to release rebuild lock", err)
		}
	}()

	start := time.Now()
	now := c.now()
	var written int64
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM view_counts").Error; err != nil {
			return err
		}
		res := tx.Exec(`INSERT INTO view_counts (target_type, target_id, view_count, updated_at)
			SELECT target_type, target_id, COUNT(*), ?
			FROM view_events
			GROUP BY target_type, target_id`, now)
		if res.Error != nil {
			return res.Error
		}
		written = res.RowsAffected
		return nil
	})
	if err != nil {
		m.CounterRebuilds.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("failed to rebuild view counts: %w", err)
	}

	elapsed := time.Since(start)
	m.CounterRebuilds.WithLabelValues("ok").Inc()
	m.CounterRebuildRows.Set(float64(written))
	m.CounterRebuildLength.Observe(elapsed.Seconds())

	logger.Log.Info("View counts rebuilt",
		zap.Int64("rows_written", written),
		zap.Duration("duration", elapsed),
	)
	return written, nil
}

// Drift counts counter rows that disagree with the event log: rows whose
// value differs from COUNT(*) of their events, plus targets with events but
// no row. It is zero right after a Rebuild.
func (c *CounterCache) Drift(ctx context.Context) (int64, error) {
	var drift int64
	err := c.db.WithContext(ctx).Raw(`
		SELECT
			(SELECT COUNT(*) FROM view_counts vc
			 WHERE vc.view_count <> (
				SELECT COUNT(*) FROM view_events ve
				WHERE ve.target_type = vc.target_type AND ve.target_id = vc.target_id
			 ))
			+
			(SELECT COUNT(*) FROM (
				SELECT DISTINCT target_type, target_id FROM view_events
			 ) ev
			 WHERE NOT EXISTS (
				SELECT 1 FROM view_counts vc
				WHERE vc.target_type = ev.target_type AND vc.target_id = ev.target_id
			 ))`).Scan(&drift).Error
	if err != nil {
		return 0, fmt.Errorf("failed to measure counter drift: %w", err)
	}
	return drift, nil
}

// DeleteTarget removes a target's counter and raw view events. Content
// deletion calls this since polymorphic targets carry no foreign keys.
func (c *CounterCache) DeleteTarget(ctx context.Context, target Target) error {
	if !target.Type.Valid() {
		return ErrInvalidTargetType
	}
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("target_type = ? AND target_id = ?", target.Type, target.ID).
			Delete(&models.ViewCount{}).Error; err != nil {
			return fmt.Errorf("failed to delete view count: %w", err)
		}
		if err := tx.Where("target_type = ? AND target_id = ?", target.Type, target.ID).
			Delete(&models.ViewEvent{}).Error; err != nil {
			return fmt.Errorf("failed to delete view events: %w", err)
		}
		return nil
	})
}
