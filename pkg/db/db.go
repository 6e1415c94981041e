package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/obot-platform/pagerduty-app/pkg/types"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store represents the database connection and operations
type Store struct {
	db     *gorm.DB
	dbType string // "postgres" or "sqlite"
	now    func() time.Time
}

// New creates a new database connection and sets up the schema
func New(dsn string) (*Store, error) {
	var gormDB *gorm.DB
	var dbType string
	var err error

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	if dsn == "" {
		dataDir := "data"
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}

		sqlitePath := filepath.Join(dataDir, "pagerduty_app.db")
		gormDB, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
		dbType = "sqlite"
	} else if IsPostgres(dsn) {
		gormDB, err = gorm.Open(postgres.Open(dsn), gormConfig)
		dbType = "postgres"
	} else {
		gormDB, err = gorm.Open(sqlite.Open(dsn), gormConfig)
		dbType = "sqlite"
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbType == "sqlite" {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY under concurrent callbacks.
		sqlDB, err := gormDB.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	database := &Store{db: gormDB, dbType: dbType, now: time.Now}

	if err := database.setupSchema(); err != nil {
		return nil, fmt.Errorf("failed to setup schema: %w", err)
	}

	return database, nil
}

// IsPostgres reports whether dsn points at PostgreSQL rather than a SQLite file
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func (d *Store) setupSchema() error {
	if err := d.db.AutoMigrate(&types.CorrelationEntry{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database schema: %w", err)
	}
	return nil
}

// SetClock replaces the time source used for expiry checks
func (d *Store) SetClock(now func() time.Time) {
	d.now = now
}

// StoreCorrelation persists a new in-flight authorization. The state is the
// primary key, so a colliding state is rejected rather than overwritten.
func (d *Store) StoreCorrelation(entry *types.CorrelationEntry) error {
	return d.db.Create(entry).Error
}

// ConsumeCorrelation returns and deletes the entry for state. Only the caller
// whose delete removes the row gets the entry, so concurrent callbacks with
// the same state cannot both proceed. Expired entries count as missing.
func (d *Store) ConsumeCorrelation(state string) (*types.CorrelationEntry, error) {
	if state == "" {
		return nil, types.ErrCorrelationNotFound
	}

	var entry types.CorrelationEntry
	err := d.db.First(&entry, "state = ?", state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrCorrelationNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get correlation entry: %w", err)
	}

	result := d.db.Where("state = ?", state).Delete(&types.CorrelationEntry{})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to delete correlation entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, types.ErrCorrelationNotFound
	}

	if !d.now().Before(entry.ExpiresAt) {
		return nil, types.ErrCorrelationNotFound
	}

	return &entry, nil
}

// CleanupExpiredCorrelations removes entries past their expiry
func (d *Store) CleanupExpiredCorrelations() error {
	result := d.db.Where("expires_at < ?", d.now()).Delete(&types.CorrelationEntry{})
	if result.Error != nil {
		return fmt.Errorf("failed to cleanup expired correlation entries: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		log.Info().Int64("count", result.RowsAffected).Msg("Deleted expired correlation entries")
	}
	return nil
}

// Close closes the database connection
func (d *Store) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
