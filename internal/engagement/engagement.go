// Package engagement implements view counting with per-viewer deduplication,
// the denormalized view counter cache, and the per-user clap ledgers for
// entries and comments.
package engagement

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/trailsocial/engagement/internal/models"
)

var (
	ErrInvalidTargetType = errors.New("invalid target type")
	ErrClapOutOfRange    = errors.New("clap count out of range")
	ErrRebuildInProgress = errors.New("view count rebuild already in progress")
)

// Target identifies one piece of content by type and internal id.
type Target struct {
	Type models.TargetType
	ID   int64
}

// EntryTarget is shorthand for an entry target.
func EntryTarget(id int64) Target { return Target{Type: models.TargetEntry, ID: id} }

// CommentTarget is shorthand for a comment target.
func CommentTarget(id int64) Target { return Target{Type: models.TargetComment, ID: id} }

// ProfileTarget is shorthand for a profile target; id is the user id.
func ProfileTarget(userID int64) Target { return Target{Type: models.TargetProfile, ID: userID} }

// Clock returns the current time. Stores use it so tests can move time.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

// Locker serializes maintenance jobs across processes.
type Locker interface {
	// Acquire takes key for at most ttl. It reports false when someone else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time)}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

func (l *LocalLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
	return nil
}
