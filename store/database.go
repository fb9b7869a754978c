// Package store database for the slide catalog and press-image sync state
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{db: db}

	// Create table if it doesn't exist
	if err := database.createTable(); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return database, nil
}

func (d *Database) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS slides (
		path TEXT NOT NULL,
		"order" INTEGER NOT NULL,
		PRIMARY KEY (path)
	);
	CREATE INDEX IF NOT EXISTS idx_slides_order ON slides("order");
	CREATE TABLE IF NOT EXISTS sync_state (
		singleton INTEGER NOT NULL DEFAULT 1 CHECK (singleton = 1),
		bucket    TEXT NOT NULL,
		prefix    TEXT NOT NULL,
		synced_at INTEGER NOT NULL,
		slides    INTEGER NOT NULL,
		PRIMARY KEY (singleton)
	);
	`
	_, err := d.db.Exec(query)
	return err
}

// GetSlides returns the catalog in display order. An empty catalog yields no slides and no error.
func (d *Database) GetSlides() ([]Slide, error) {
	query := `
		SELECT path, "order"
		FROM slides
		ORDER BY "order" ASC
	`
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query slides: %w", err)
	}
	defer rows.Close()

	var slides []Slide
	for rows.Next() {
		var s Slide
		if err := rows.Scan(&s.Path, &s.Order); err != nil {
			return nil, fmt.Errorf("failed to scan slide: %w", err)
		}
		slides = append(slides, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return slides, nil
}

// GetSlidePaths returns the catalog paths in display order.
func (d *Database) GetSlidePaths() ([]string, error) {
	slides, err := d.GetSlides()
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(slides))
	for i, s := range slides {
		paths[i] = s.Path
	}
	return paths, nil
}

// ReplaceSlides swaps the whole catalog for paths, ordered as given.
func (d *Database) ReplaceSlides(paths []string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM slides`); err != nil {
		return fmt.Errorf("failed to clear slides: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO slides (path, "order") VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare slide insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range paths {
		if _, err := stmt.Exec(p, i); err != nil {
			return fmt.Errorf("failed to insert slide %s: %w", p, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit slides: %w", err)
	}
	return nil
}

func (d *Database) GetSlideCount() (int, error) {
	query := `SELECT COUNT(*) FROM slides`
	var count int
	err := d.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get slide count: %w", err)
	}
	return count, nil
}

// GetSyncState returns the last sync, or nil when no sync has completed.
func (d *Database) GetSyncState() (*SyncState, error) {
	const query = `
		SELECT bucket,
		       prefix,
		       synced_at,
		       slides
		FROM sync_state
		WHERE singleton = 1
	`

	var state SyncState
	var syncedAt int64
	err := d.db.QueryRow(query).Scan(&state.Bucket, &state.Prefix, &syncedAt, &state.Slides)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync state: %w", err)
	}
	state.SyncedAt = time.Unix(syncedAt, 0).UTC()
	return &state, nil
}

func (d *Database) UpsertSyncState(s *SyncState) error {
	const stmt = `
		INSERT INTO sync_state (
			singleton,
			bucket,
			prefix,
			synced_at,
			slides
		) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(singleton) DO UPDATE SET
			bucket    = excluded.bucket,
			prefix    = excluded.prefix,
			synced_at = excluded.synced_at,
			slides    = excluded.slides
	`

	_, err := d.db.Exec(
		stmt,
		s.Bucket,
		s.Prefix,
		s.SyncedAt.Unix(),
		s.Slides,
	)
	if err != nil {
		return fmt.Errorf("upsert sync state: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}
