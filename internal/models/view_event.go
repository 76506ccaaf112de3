package models

import (
	"time"
)

// ViewEvent is one qualifying view of a target. Rows are append-only.
// Authenticated views carry ViewerID; anonymous views leave it NULL and are
// keyed by ViewerHash alone. The two identity spaces are never compared.
type ViewEvent struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TargetType TargetType `gorm:"type:varchar(16);not null" json:"target_type"`
	TargetID   int64      `gorm:"not null" json:"target_id"`
	ViewerID   *int64     `json:"viewer_id,omitempty"`
	ViewerHash []byte     `gorm:"not null" json:"-"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
}

// TableName specifies the table name
func (ViewEvent) TableName() string {
	return "view_events"
}

// ViewCount is the denormalized per-target view counter.
// view_count always equals COUNT(*) of view_events for the target after a rebuild.
type ViewCount struct {
	TargetType TargetType `gorm:"primaryKey;type:varchar(16)" json:"target_type"`
	TargetID   int64      `gorm:"primaryKey;autoIncrement:false" json:"target_id"`
	ViewCount  int64      `gorm:"not null" json:"view_count"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName specifies the table name
func (ViewCount) TableName() string {
	return "view_counts"
}
