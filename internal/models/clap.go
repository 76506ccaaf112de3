package models

import "time"

// Clap holds one user's absolute clap total for one entry or comment.
// The row is overwritten on every clap, never incremented.
type Clap struct {
	TargetType TargetType `gorm:"primaryKey;type:varchar(16)" json:"target_type"`
	TargetID   int64      `gorm:"primaryKey;autoIncrement:false" json:"target_id"`
	UserID     int64      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	ClapCount  int        `gorm:"not null;check:chk_claps_clap_count,clap_count >= 1" json:"clap_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName specifies the table name
func (Clap) TableName() string {
	return "claps"
}
