// Package database provides the persistent inventory store backing the
// scanner's online duplicate checking and scan history.
package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/openmediakit/librarian/internal/config"
	"github.com/openmediakit/librarian/internal/logger"
)

var db *gorm.DB

// Initialize sets up the database connection from configuration and runs
// schema migrations.
func Initialize(cfg *config.DatabaseConfig) error {
	var err error

	switch cfg.Type {
	case "postgres":
		db, err = connectPostgres(cfg)
	case "sqlite", "":
		db, err = connectSQLite(cfg)
	default:
		return fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("database initialized", "type", cfg.Type)
	return nil
}

// Migrate runs schema migrations for all inventory models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&MediaLibrary{},
		&MediaFileRecord{},
		&MediaDirectoryRecord{},
		&ScanSummary{},
	)
}

// GetDB returns the shared database handle, or nil before Initialize.
func GetDB() *gorm.DB {
	return db
}

// SetDB replaces the shared handle. Intended for tests.
func SetDB(handle *gorm.DB) {
	db = handle
}

func connectPostgres(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port)

	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

func connectSQLite(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	path := cfg.DatabasePath
	if path == "" {
		path = "librarian.db"
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		os.MkdirAll(dir, 0755)
	}

	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}
