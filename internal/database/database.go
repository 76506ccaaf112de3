package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/trailsocial/engagement/internal/config"
	"github.com/trailsocial/engagement/internal/logger"
	"github.com/trailsocial/engagement/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open creates and configures a connection for the configured driver.
func Open(cfg config.DatabaseConfig, verbose bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		// WAL + busy timeout let concurrent handlers share the file.
		dialector = sqlite.Open(cfg.DSN() + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	logLevel := gormlogger.Warn
	if verbose {
		logLevel = gormlogger.Info
	}
	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY storms.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

// Migrate creates the engagement tables and their lookup indexes.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := db.AutoMigrate(
		&models.ViewEvent{},
		&models.ViewCount{},
		&models.Clap{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Log.Info("Database migrations completed")
	return nil
}

// MigrateContent creates the minimal content tables this service reads.
// Production deployments share those tables with the CRUD service; this is
// for local development, seeding and tests.
func MigrateContent(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Entry{}, &models.Comment{}); err != nil {
		return fmt.Errorf("failed to migrate content tables: %w", err)
	}
	return nil
}

// createIndexes creates the dedup and aggregate indexes. The statements are
// valid on both PostgreSQL and SQLite.
func createIndexes(db *gorm.DB) error {
	statements := []string{
		// Dedup lookup for authenticated viewers
		"CREATE INDEX IF NOT EXISTS idx_view_events_viewer ON view_events (target_type, target_id, viewer_id, created_at)",
		// Dedup lookup for anonymous viewers
		"CREATE INDEX IF NOT EXISTS idx_view_events_hash ON view_events (target_type, target_id, viewer_hash, created_at)",
		// Per-target totals for claps
		"CREATE INDEX IF NOT EXISTS idx_claps_target ON claps (target_type, target_id)",
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
