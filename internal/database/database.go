package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the sqlite connection for the collection-date service.
type DB struct {
	*sql.DB
	logger zerolog.Logger
}

// NewDB opens the database at path, configures the pool and runs migrations.
func NewDB(path string, logger zerolog.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	instance := &DB{
		DB:     db,
		logger: logger.With().Str("component", "database").Logger(),
	}

	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	instance.logger.Info().Str("path", path).Msg("database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		// Exclusions: single dates and inclusive ranges. Range records
		// additionally materialize one single row per covered day.
		`CREATE TABLE IF NOT EXISTS exclusions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			date TEXT,
			range_start TEXT,
			range_end TEXT,
			reason TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings key-value store: global settings and the category
		// rule map, each persisted as one serialized JSON value.
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Product to category assignments (boundary copy of the
		// storefront's catalog relation).
		`CREATE TABLE IF NOT EXISTS product_categories (
			product_id INTEGER NOT NULL,
			category_id TEXT NOT NULL,
			PRIMARY KEY (product_id, category_id)
		)`,

		// Selected collection dates persisted as order metadata.
		`CREATE TABLE IF NOT EXISTS order_collection_dates (
			order_id TEXT PRIMARY KEY,
			collection_date TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Aggregated selections per date, refreshed by the stats job.
		`CREATE TABLE IF NOT EXISTS collection_date_stats (
			collection_date TEXT PRIMARY KEY,
			selections INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_exclusions_kind ON exclusions(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_exclusions_date ON exclusions(date)`,
		`CREATE INDEX IF NOT EXISTS idx_exclusions_range ON exclusions(range_start, range_end)`,
		`CREATE INDEX IF NOT EXISTS idx_order_dates_date ON order_collection_dates(collection_date)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
