// Copyright the m2converter authors, 2026. All rights reserved.

// Package catalog persists a record of conversion runs in a local SQLite
// database, so past conversions can be listed without re-scanning output
// directories.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages the conversion run database.
type Store struct {
	db *sql.DB
}

// Run is one recorded conversion.
type Run struct {
	// ID is assigned by the database.
	ID int64 `json:"id"`

	// SourceFile is the converted imzML file.
	SourceFile string `json:"source_file"`

	// OutputDir received the run's artifacts.
	OutputDir string `json:"output_dir"`

	// TolerancePPM is the matching window the run used.
	TolerancePPM float64 `json:"tolerance_ppm"`

	// Targets is the resolved target count; Processed and Failed split it
	// into successes and per-target failures.
	Targets   int `json:"targets"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`

	// Outputs lists the files the run wrote.
	Outputs []string `json:"outputs"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Open opens or creates the catalog database at path, creating parent
// directories and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating catalog schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_file TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		tolerance_ppm REAL NOT NULL,
		targets INTEGER NOT NULL,
		processed INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		outputs TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}
	return nil
}

// Record inserts one run and returns its assigned ID.
func (s *Store) Record(ctx context.Context, run Run) (int64, error) {
	outputsJSON, err := json.Marshal(run.Outputs)
	if err != nil {
		return 0, fmt.Errorf("encoding outputs: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (source_file, output_dir, tolerance_ppm, targets,
			processed, failed, outputs, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.SourceFile, run.OutputDir, run.TolerancePPM, run.Targets,
		run.Processed, run.Failed, string(outputsJSON),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	return res.LastInsertId()
}

// List returns the most recent runs, newest first. A non-positive limit
// returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, source_file, output_dir, tolerance_ppm, targets,
		processed, failed, outputs, started_at, finished_at
		FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run         Run
			outputsJSON string
			startedAt   string
			finishedAt  string
		)
		if err := rows.Scan(&run.ID, &run.SourceFile, &run.OutputDir,
			&run.TolerancePPM, &run.Targets, &run.Processed, &run.Failed,
			&outputsJSON, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if err := json.Unmarshal([]byte(outputsJSON), &run.Outputs); err != nil {
			return nil, fmt.Errorf("decoding outputs for run %d: %w", run.ID, err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
