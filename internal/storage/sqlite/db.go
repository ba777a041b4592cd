// Package sqlite
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"bluegreen-server/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

func NewSqliteDB(dbPath string, log logger.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database not responding: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Info("sqlite: connection established", "path", dbPath)

	if err := runMigration(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func runMigration(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trace_id TEXT NOT NULL,
		app TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		from_slot TEXT NOT NULL DEFAULT '',
		to_slot TEXT NOT NULL DEFAULT '',
		emergency INTEGER NOT NULL DEFAULT 0,
		detail TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		error_kind TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_operations_app_started ON operations (app, started_at DESC);
	`
	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to migrate operations table: %w", err)
	}
	return nil
}
