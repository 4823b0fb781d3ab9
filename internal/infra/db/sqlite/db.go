// Package sqlite is the shared bot store. Every process opens the same file,
// so every write path treats a busy database as retryable.
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	glebarez "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"telegram-pix-manager/internal/config"
)

// Open opens (or creates) the store file. PRAGMAs go in the DSN so that every
// pooled connection gets them, not only the first one.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(glebarez.Open(dsn(cfg)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}

	// Short-lived connections: idle handles are not kept across calls.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(0)
		sqlDB.SetConnMaxLifetime(time.Minute)
	}
	return db, nil
}

func dsn(cfg config.DatabaseConfig) string {
	busy := cfg.BusyTimeout.Milliseconds()
	if busy <= 0 {
		busy = 5000
	}
	pragmas := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", busy),
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
	}
	return cfg.Path + "?" + strings.Join(pragmas, "&")
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

const createBots = `CREATE TABLE IF NOT EXISTS bots (
	token TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	bot_id INTEGER NOT NULL,
	bot_username TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT 1,
	gateway_token TEXT
)`

const createProcesses = `CREATE TABLE IF NOT EXISTS bot_processes (
	token TEXT PRIMARY KEY,
	pid INTEGER NOT NULL
)`

// additiveColumns evolve the bots table. Each ALTER fails harmlessly once the
// column exists; order matters only for readability.
var additiveColumns = []string{
	"ALTER TABLE bots ADD COLUMN last_activity DATETIME",
	"ALTER TABLE bots ADD COLUMN mp_refresh_token TEXT",
	"ALTER TABLE bots ADD COLUMN mp_user_id TEXT",
	"ALTER TABLE bots ADD COLUMN gateway_type TEXT DEFAULT 'pushinpay'",
	"ALTER TABLE bots ADD COLUMN is_public BOOLEAN DEFAULT 0",
	"ALTER TABLE bots ADD COLUMN mp_access_token TEXT",
}

// Migrate creates both tables if absent and adds newer columns. Safe to run
// from every process on every start.
func Migrate(db *gorm.DB) error {
	for _, stmt := range []string{createBots, createProcesses} {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	for _, stmt := range additiveColumns {
		if err := db.Exec(stmt).Error; err != nil && !isDuplicateColumn(err) {
			return fmt.Errorf("migrate %q: %w", stmt, err)
		}
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column")
}
