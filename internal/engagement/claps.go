package engagement

import (
	"context"
	"fmt"

	"github.com/trailsocial/engagement/internal/logger"
	"github.com/trailsocial/engagement/internal/metrics"
	"github.com/trailsocial/engagement/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DefaultClapCap is the per-user clap limit for one target.
	DefaultClapCap = 50
	// MaxAdminClapCap bounds the custom cap an administrator may request.
	MaxAdminClapCap = 100000
)

// ResolveCap returns the clap cap for a submission. Administrators may raise
// it with requested; out-of-range or non-admin requests get the default.
func ResolveCap(isAdmin bool, requested *int) int {
	if isAdmin && requested != nil && *requested >= 1 && *requested <= MaxAdminClapCap {
		return *requested
	}
	return DefaultClapCap
}

// ClapResult is returned after a clap is set.
type ClapResult struct {
	TotalClaps int64 `json:"total_claps"`
	UserClaps  int64 `json:"user_claps"`
}

// ClapSummary is one target's clap totals in a batch read. UserClaps is set
// only when the batch was asked for a specific user.
type ClapSummary struct {
	Total     int64  `json:"total"`
	UserClaps *int64 `json:"user_claps,omitempty"`
}

// ClapLedger stores one absolute clap total per (target, user) for entries
// and comments.
//
// A submission replaces the user's previous total. Concurrent submissions from
// one user resolve last-writer-wins.
type ClapLedger struct {
	db  *gorm.DB
	now Clock
}

// NewClapLedger creates a ClapLedger.
func NewClapLedger(db *gorm.DB) *ClapLedger {
	return &ClapLedger{db: db, now: utcNow}
}

// SetClap sets userID's clap total on target to newTotal, which must lie in
// [1, limit]. Out-of-range values return ErrClapOutOfRange without writing.
func (l *ClapLedger) SetClap(ctx context.Context, target Target, userID int64, newTotal, limit int) (ClapResult, error) {
	if !target.Type.Clappable() {
		return ClapResult{}, ErrInvalidTargetType
	}
	if newTotal < 1 || newTotal > limit {
		metrics.Get().ClapsRejectedTotal.WithLabelValues(string(target.Type), "out_of_range").Inc()
		return ClapResult{}, fmt.Errorf("%w: must be between 1 and %d", ErrClapOutOfRange, limit)
	}

	now := l.now()
	row := models.Clap{
		TargetType: target.Type,
		TargetID:   target.ID,
		UserID:     userID,
		ClapCount:  newTotal,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var result ClapResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "target_type"}, {Name: "target_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"clap_count", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to upsert clap: %w", err)
		}

		total, err := l.total(tx, target)
		if err != nil {
			return err
		}
		result = ClapResult{TotalClaps: total, UserClaps: int64(newTotal)}
		return nil
	})
	if err != nil {
		return ClapResult{}, err
	}

	metrics.Get().ClapsSetTotal.WithLabelValues(string(target.Type)).Inc()
	logger.Log.Debug("Clap set",
		logger.WithTarget(string(target.Type), target.ID),
		logger.WithUserID(userID),
		zap.Int("clap_count", newTotal),
	)
	return result, nil
}

// GetTotal returns the sum of all users' claps on target.
func (l *ClapLedger) GetTotal(ctx context.Context, target Target) (int64, error) {
	if !target.Type.Clappable() {
		return 0, ErrInvalidTargetType
	}
	return l.total(l.db.WithContext(ctx), target)
}

func (l *ClapLedger) total(db *gorm.DB, target Target) (int64, error) {
	var total int64
	err := db.Model(&models.Clap{}).
		Select("COALESCE(SUM(clap_count), 0)").
		Where("target_type = ? AND target_id = ?", target.Type, target.ID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum claps: %w", err)
	}
	return total, nil
}

// GetUserTotal returns userID's clap total on target, 0 when none.
func (l *ClapLedger) GetUserTotal(ctx context.Context, target Target, userID int64) (int64, error) {
	if !target.Type.Clappable() {
		return 0, ErrInvalidTargetType
	}

	var counts []int64
	err := l.db.WithContext(ctx).Model(&models.Clap{}).
		Where("target_type = ? AND target_id = ? AND user_id = ?", target.Type, target.ID, userID).
		Limit(1).
		Pluck("clap_count", &counts).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read user claps: %w", err)
	}
	if len(counts) == 0 {
		return 0, nil
	}
	return counts[0], nil
}

// GetBatch returns clap summaries for many targets of one type in a single
// grouped query. Targets without claps are absent from the result.
func (l *ClapLedger) GetBatch(ctx context.Context, targetType models.TargetType, ids []int64, userID *int64) (map[int64]ClapSummary, error) {
	if !targetType.Clappable() {
		return nil, ErrInvalidTargetType
	}
	result := make(map[int64]ClapSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	type row struct {
		TargetID  int64
		Total     int64
		UserClaps int64
	}
	var rows []row

	q := l.db.WithContext(ctx).Model(&models.Clap{})
	if userID != nil {
		q = q.Select("target_id, SUM(clap_count) AS total, SUM(CASE WHEN user_id = ? THEN clap_count ELSE 0 END) AS user_claps", *userID)
	} else {
		q = q.Select("target_id, SUM(clap_count) AS total")
	}
	err := q.Where("target_type = ? AND target_id IN ?", targetType, ids).
		Group("target_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read clap counts: %w", err)
	}

	for _, r := range rows {
		summary := ClapSummary{Total: r.Total}
		if userID != nil {
			userClaps := r.UserClaps
			summary.UserClaps = &userClaps
		}
		result[r.TargetID] = summary
	}
	return result, nil
}

// DeleteTarget removes every clap on target.
func (l *ClapLedger) DeleteTarget(ctx context.Context, target Target) error {
	if !target.Type.Clappable() {
		return ErrInvalidTargetType
	}
	err := l.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", target.Type, target.ID).
		Delete(&models.Clap{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete claps: %w", err)
	}
	return nil
}

// DeleteUser removes every clap a user has given, on entries and comments.
func (l *ClapLedger) DeleteUser(ctx context.Context, userID int64) error {
	if err := l.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Clap{}).Error; err != nil {
		return fmt.Errorf("failed to delete user claps: %w", err)
	}
	return nil
}
