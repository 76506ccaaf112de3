package engagement

import (
	"context"
	"fmt"

	"github.com/trailsocial/engagement/internal/models"
)

// ProfileStats aggregates the view counters of everything a user owns.
type ProfileStats struct {
	TotalEntryViews   int64 `json:"total_entry_views"`
	TotalCommentViews int64 `json:"total_comment_views"`
	TotalProfileViews int64 `json:"total_profile_views"`
}

// ProfileViewStats sums the cached view counts of a user's entries and
// comments, plus their profile's own count, in one statement.
func (c *CounterCache) ProfileViewStats(ctx context.Context, userID int64) (ProfileStats, error) {
	var stats ProfileStats
	err := c.db.WithContext(ctx).Raw(`
		SELECT
			COALESCE((
				SELECT SUM(vc.view_count)
				FROM view_counts vc
				INNER JOIN entries e ON vc.target_id = e.id
				WHERE vc.target_type = ? AND e.user_id = ? AND e.deleted_at IS NULL
			), 0) AS total_entry_views,
			COALESCE((
				SELECT SUM(vc.view_count)
				FROM view_counts vc
				INNER JOIN comments c ON vc.target_id = c.id
				WHERE vc.target_type = ? AND c.user_id = ? AND c.deleted_at IS NULL
			), 0) AS total_comment_views,
			COALESCE((
				SELECT view_count
				FROM view_counts
				WHERE target_type = ? AND target_id = ?
			), 0) AS total_profile_views`,
		models.TargetEntry, userID,
		models.TargetComment, userID,
		models.TargetProfile, userID,
	).Scan(&stats).Error
	if err != nil {
		return ProfileStats{}, fmt.Errorf("failed to read profile view stats: %w", err)
	}
	return stats, nil
}
