package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all tables and indexes. It is idempotent.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if err := createDiningTable(ctx, db); err != nil {
		return err
	}
	return createAnnouncementsTable(ctx, db)
}

func createDiningTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS dining (
		date TEXT PRIMARY KEY,
		items TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create dining table: %w", err)
	}
	return nil
}

func createAnnouncementsTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS announcements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		summary TEXT,
		source TEXT CHECK(source IN ('website', 'teams')) NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_announcements_created_at ON announcements(created_at);
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create announcements table: %w", err)
	}
	return nil
}
