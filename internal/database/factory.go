package database

import (
	"fmt"
	"os"
	"path/filepath"

	"recvault/internal/config"
	"recvault/internal/database/migrations"
)

// NewStoreFromConfig opens the index store described by the config, creating
// the containing directory if needed.
func NewStoreFromConfig(cfg config.DatabaseConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path not configured")
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	return NewSQLiteStore(cfg.Path)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp brings the database schema to the latest version.
func (s *SQLiteStore) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}
