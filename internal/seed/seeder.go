package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/trailsocial/engagement/internal/engagement"
	"github.com/trailsocial/engagement/internal/logger"
	"github.com/trailsocial/engagement/internal/models"
	"github.com/trailsocial/engagement/internal/viewer"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options sizes a seeding run.
type Options struct {
	Users    int
	Entries  int
	Comments int
	Views    int
	Claps    int
	// Seed makes a run reproducible; 0 picks a random seed.
	Seed uint64
}

// DevOptions is the default size for a local development database.
func DevOptions() Options {
	return Options{Users: 50, Entries: 200, Comments: 400, Views: 5000, Claps: 800}
}

// Summary reports what a run created.
type Summary struct {
	Users       int   `json:"users"`
	Entries     int   `json:"entries"`
	Comments    int   `json:"comments"`
	ViewEvents  int   `json:"view_events"`
	CounterRows int64 `json:"counter_rows"`
	Claps       int   `json:"claps"`
}

// Seeder handles database seeding operations
type Seeder struct {
	db       *gorm.DB
	counters *engagement.CounterCache
	claps    *engagement.ClapLedger
	faker    *gofakeit.Faker
	now      time.Time
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, counters *engagement.CounterCache, claps *engagement.ClapLedger, seed uint64) *Seeder {
	return &Seeder{
		db:       db,
		counters: counters,
		claps:    claps,
		faker:    gofakeit.New(seed),
		now:      time.Now().UTC(),
	}
}

// Run creates synthetic users, entries and comments, then engagement on them.
// View events are written directly with timestamps spread over the last 30
// days, and the counter cache is rebuilt from them.
func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	var summary Summary

	logger.Log.Info("Creating users...")
	users, err := s.seedUsers(ctx, opts.Users)
	if err != nil {
		return summary, fmt.Errorf("failed to seed users: %w", err)
	}
	summary.Users = len(users)

	logger.Log.Info("Creating entries...")
	entries, err := s.seedEntries(ctx, users, opts.Entries)
	if err != nil {
		return summary, fmt.Errorf("failed to seed entries: %w", err)
	}
	summary.Entries = len(entries)

	logger.Log.Info("Creating comments...")
	comments, err := s.seedComments(ctx, users, entries, opts.Comments)
	if err != nil {
		return summary, fmt.Errorf("failed to seed comments: %w", err)
	}
	summary.Comments = len(comments)

	logger.Log.Info("Creating view events...")
	summary.ViewEvents, err = s.seedViews(ctx, users, entries, comments, opts.Views)
	if err != nil {
		return summary, fmt.Errorf("failed to seed views: %w", err)
	}

	summary.CounterRows, err = s.counters.Rebuild(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to rebuild view counts: %w", err)
	}

	logger.Log.Info("Creating claps...")
	summary.Claps, err = s.seedClaps(ctx, users, entries, comments, opts.Claps)
	if err != nil {
		return summary, fmt.Errorf("failed to seed claps: %w", err)
	}

	logger.Log.Info("Seeding complete",
		zap.Int("users", summary.Users),
		zap.Int("entries", summary.Entries),
		zap.Int("comments", summary.Comments),
		zap.Int("view_events", summary.ViewEvents),
		zap.Int64("counter_rows", summary.CounterRows),
		zap.Int("claps", summary.Claps),
	)
	return summary, nil
}

// Clean deletes engagement data and content rows, engagement first.
func (s *Seeder) Clean(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	for _, table := range []string{"claps", "view_counts", "view_events", "comments", "entries", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	return nil
}

func (s *Seeder) pastTime() time.Time {
	return s.faker.DateRange(s.now.AddDate(0, 0, -30), s.now).UTC()
}

func (s *Seeder) seedUsers(ctx context.Context, count int) ([]models.User, error) {
	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		createdAt := s.pastTime()
		users = append(users, models.User{
			// The index suffix keeps nicknames unique across runs of the faker.
			Nickname:  fmt.Sprintf("%s%d", s.faker.Username(), i),
			Email:     fmt.Sprintf("seed%d.%s", i, s.faker.Email()),
			IsAdmin:   i == 0,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		})
	}
	if len(users) == 0 {
		return users, nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&users, 100).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Seeder) seedEntries(ctx context.Context, users []models.User, count int) ([]models.Entry, error) {
	if len(users) == 0 || count == 0 {
		return nil, nil
	}
	entries := make([]models.Entry, 0, count)
	for i := 0; i < count; i++ {
		createdAt := s.pastTime()
		entries = append(entries, models.Entry{
			UserID:    users[s.faker.IntN(len(users))].ID,
			Text:      s.faker.HipsterSentence(),
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		})
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&entries, 100).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Seeder) seedComments(ctx context.Context, users []models.User, entries []models.Entry, count int) ([]models.Comment, error) {
	if len(users) == 0 || len(entries) == 0 || count == 0 {
		return nil, nil
	}
	comments := make([]models.Comment, 0, count)
	for i := 0; i < count; i++ {
		entry := entries[s.faker.IntN(len(entries))]
		createdAt := s.faker.DateRange(entry.CreatedAt, s.now).UTC()
		comments = append(comments, models.Comment{
			EntryID:   entry.ID,
			UserID:    users[s.faker.IntN(len(users))].ID,
			Text:      s.faker.HipsterSentence(),
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		})
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&comments, 100).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// seedViews writes view events across all three target types. Roughly a
// third come from signed-in users; the rest carry an anonymous viewer hash.
func (s *Seeder) seedViews(ctx context.Context, users []models.User, entries []models.Entry, comments []models.Comment, count int) (int, error) {
	if len(users) == 0 || count == 0 {
		return 0, nil
	}

	events := make([]models.ViewEvent, 0, count)
	for i := 0; i < count; i++ {
		var target engagement.Target
		switch roll := s.faker.IntN(10); {
		case roll < 6 && len(entries) > 0:
			target = engagement.EntryTarget(entries[s.faker.IntN(len(entries))].ID)
		case roll < 8 && len(comments) > 0:
			target = engagement.CommentTarget(comments[s.faker.IntN(len(comments))].ID)
		default:
			target = engagement.ProfileTarget(users[s.faker.IntN(len(users))].ID)
		}

		event := models.ViewEvent{
			TargetType: target.Type,
			TargetID:   target.ID,
			CreatedAt:  s.pastTime(),
		}
		if s.faker.IntN(3) == 0 {
			viewerID := users[s.faker.IntN(len(users))].ID
			event.ViewerID = &viewerID
			event.ViewerHash = []byte{}
		} else {
			event.ViewerHash = viewer.Hash(s.faker.IPv4Address(), s.faker.UserAgent(), "")
		}
		events = append(events, event)
	}

	if err := s.db.WithContext(ctx).CreateInBatches(&events, 500).Error; err != nil {
		return 0, err
	}
	return len(events), nil
}

// seedClaps sets random clap totals through the ledger, skipping self-claps.
func (s *Seeder) seedClaps(ctx context.Context, users []models.User, entries []models.Entry, comments []models.Comment, count int) (int, error) {
	if len(users) == 0 || (len(entries) == 0 && len(comments) == 0) {
		return 0, nil
	}

	created := 0
	for i := 0; i < count; i++ {
		clapper := users[s.faker.IntN(len(users))].ID

		var target engagement.Target
		var owner int64
		if len(comments) == 0 || (len(entries) > 0 && s.faker.IntN(4) != 0) {
			entry := entries[s.faker.IntN(len(entries))]
			target, owner = engagement.EntryTarget(entry.ID), entry.UserID
		} else {
			comment := comments[s.faker.IntN(len(comments))]
			target, owner = engagement.CommentTarget(comment.ID), comment.UserID
		}
		if owner == clapper {
			continue
		}

		total := s.faker.Number(1, engagement.DefaultClapCap)
		if _, err := s.claps.SetClap(ctx, target, clapper, total, engagement.DefaultClapCap); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
