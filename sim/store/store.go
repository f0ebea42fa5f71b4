// Package store persists campaign statistics in SQLite: one row per
// (run, cycle, column) plus the per-run summary.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite statistics database. It is safe for concurrent use by
// the runs of a campaign.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Campaign identifies a batch of runs.
type Campaign struct {
	ID    string
	Seed  int64
	Runs  int
	Label string
}

// Run identifies one run of a campaign.
type Run struct {
	ID         string
	CampaignID string
	RunNum     int
	Seed       int64
}

// WriteCampaign records c. Writing the same id twice is a no-op.
func (s *Store) WriteCampaign(ctx context.Context, c Campaign) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, seed, runs, label)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, c.ID, c.Seed, c.Runs, c.Label)
	if err != nil {
		return fmt.Errorf("write campaign: %w", err)
	}
	return nil
}

// WriteRun records r. The campaign must exist.
func (s *Store) WriteRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, campaign_id, run_num, seed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, r.ID, r.CampaignID, r.RunNum, r.Seed)
	if err != nil {
		return fmt.Errorf("write run %d: %w", r.RunNum, err)
	}
	return nil
}
