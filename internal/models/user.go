package models

import (
	"time"

	"gorm.io/gorm"
)

// The content tables below are owned by the platform's CRUD service. This
// service only reads them to check existence and ownership; the structs carry
// just the columns it needs.

// User is a platform account; profiles are addressed by Nickname.
type User struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	Nickname  string         `gorm:"size:64;uniqueIndex;not null" json:"nickname"`
	Email     string         `gorm:"size:255" json:"email,omitempty"`
	IsAdmin   bool           `gorm:"default:false" json:"is_admin"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

// Entry is a top-level post.
type Entry struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	UserID    int64          `gorm:"not null;index" json:"user_id"`
	Text      string         `gorm:"type:text" json:"text"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (Entry) TableName() string {
	return "entries"
}

// Comment is a reply attached to an entry.
type Comment struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	EntryID   int64          `gorm:"not null;index" json:"entry_id"`
	UserID    int64          `gorm:"not null;index" json:"user_id"`
	Text      string         `gorm:"type:text" json:"text"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (Comment) TableName() string {
	return "comments"
}
