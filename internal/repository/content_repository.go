package repository

import (
	"context"
	"errors"

	"github.com/trailsocial/engagement/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("content not found")
	ErrInvalidInput = errors.New("invalid input")
)

// ContentRepository answers the existence and ownership questions the
// engagement endpoints ask about entries, comments and profiles. The content
// itself is owned elsewhere; this is read-only.
type ContentRepository interface {
	// EntryOwner returns the author of an entry.
	EntryOwner(ctx context.Context, entryID int64) (int64, error)
	// CommentOwner returns the author of a comment.
	CommentOwner(ctx context.Context, commentID int64) (int64, error)
	// UserIDByNickname resolves a profile nickname, case-insensitively.
	UserIDByNickname(ctx context.Context, nickname string) (int64, error)
	// UserExists reports whether a user id names a live account.
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// contentRepository implements ContentRepository on the shared tables
type contentRepository struct {
	db *gorm.DB
}

// NewContentRepository creates a new content repository
func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

// EntryOwner gets the user id of an entry's author
func (r *contentRepository) EntryOwner(ctx context.Context, entryID int64) (int64, error) {
	return r.owner(ctx, &models.Entry{}, entryID)
}

// CommentOwner gets the user id of a comment's author
func (r *contentRepository) CommentOwner(ctx context.Context, commentID int64) (int64, error) {
	return r.owner(ctx, &models.Comment{}, commentID)
}

func (r *contentRepository) owner(ctx context.Context, model interface{}, id int64) (int64, error) {
	var owners []int64
	err := r.db.WithContext(ctx).Model(model).
		Where("id = ?", id).
		Limit(1).
		Pluck("user_id", &owners).Error
	if err != nil {
		return 0, err
	}
	if len(owners) == 0 {
		return 0, ErrNotFound
	}
	return owners[0], nil
}

// UserIDByNickname gets a user id by nickname
func (r *contentRepository) UserIDByNickname(ctx context.Context, nickname string) (int64, error) {
	if nickname == "" {
		return 0, ErrInvalidInput
	}

	var user models.User
	err := r.db.WithContext(ctx).
		Select("id").
		Where("LOWER(nickname) = LOWER(?)", nickname).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// UserExists checks whether a user exists
func (r *contentRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Count(&count).Error
	return count > 0, err
}
