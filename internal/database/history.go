package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/portalshot/internal/model"
)

// FileName is the database file inside the data directory.
const FileName = "portalshot.db"

// HistoryDB provides SQLite-based storage for capture runs.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per finished run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		input_path TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		target_count INTEGER NOT NULL,
		captured_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		group_count INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- The change log of each run, in append order
	CREATE TABLE IF NOT EXISTS change_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		previous_hash TEXT NOT NULL DEFAULT '',
		current_hash TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		UNIQUE(run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_records_run ON change_records(run_id);
	CREATE INDEX IF NOT EXISTS idx_records_url ON change_records(url);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RunSummary describes one saved run.
type RunSummary struct {
	ID            int64     `json:"id"`
	InputPath     string    `json:"input_path"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	TargetCount   int       `json:"target_count"`
	CapturedCount int       `json:"captured_count"`
	FailedCount   int       `json:"failed_count"`
	GroupCount    int       `json:"group_count"`
}

// SaveRun stores a run and its change records in one transaction and
// returns the new run ID.
func (h *HistoryDB) SaveRun(ctx context.Context, result *model.RunResult) (id int64, err error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (input_path, started_at, finished_at, target_count, captured_count, failed_count, group_count)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.InputPath,
		result.StartedAt.UTC().Format(time.RFC3339Nano),
		result.FinishedAt.UTC().Format(time.RFC3339Nano),
		len(result.Targets),
		len(result.Captured),
		result.FailedCount(),
		len(result.Groups),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO change_records (run_id, seq, url, previous_hash, current_hash, status)
	VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for seq, r := range result.Changes {
		if _, err = stmt.ExecContext(ctx, id, seq, r.URL, string(r.Previous), string(r.Current), string(r.Status)); err != nil {
			return 0, fmt.Errorf("failed to insert change record: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

const runColumns = `id, input_path, started_at, finished_at, target_count, captured_count, failed_count, group_count`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunSummary, error) {
	var (
		run               RunSummary
		started, finished string
	)
	if err := s.Scan(&run.ID, &run.InputPath, &started, &finished,
		&run.TargetCount, &run.CapturedCount, &run.FailedCount, &run.GroupCount); err != nil {
		return RunSummary{}, err
	}
	run.StartedAt = parseTimestamp(started)
	run.FinishedAt = parseTimestamp(finished)
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID.
func (h *HistoryDB) GetRun(ctx context.Context, id int64) (*RunSummary, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// LatestRunID returns the ID of the most recent run.
func (h *HistoryDB) LatestRunID(ctx context.Context) (int64, error) {
	var id int64
	err := h.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoRuns
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get latest run: %w", err)
	}
	return id, nil
}

// GetRunRecords returns the change records of a run in append order.
func (h *HistoryDB) GetRunRecords(ctx context.Context, runID int64) ([]model.ChangeRecord, error) {
	if _, err := h.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := h.db.QueryContext(ctx, `
	SELECT url, previous_hash, current_hash, status
	FROM change_records WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query change records: %w", err)
	}
	defer rows.Close()

	var records []model.ChangeRecord
	for rows.Next() {
		var r model.ChangeRecord
		var prev, cur, status string
		if err := rows.Scan(&r.URL, &prev, &cur, &status); err != nil {
			return nil, fmt.Errorf("failed to scan change record: %w", err)
		}
		r.Previous = model.Fingerprint(prev)
		r.Current = model.Fingerprint(cur)
		r.Status = model.ChangeStatus(status)
		records = append(records, r)
	}
	return records, rows.Err()
}

// LatestFingerprints returns the last fingerprint of every URL that was
// captured successfully in a run. URLs whose last attempt failed keep their
// earlier fingerprint from the same run, if any.
func (h *HistoryDB) LatestFingerprints(ctx context.Context, runID int64) (map[string]model.Fingerprint, error) {
	records, err := h.GetRunRecords(ctx, runID)
	if err != nil {
		return nil, err
	}

	prints := make(map[string]model.Fingerprint)
	for _, r := range records {
		if r.Current != "" {
			prints[r.URL] = r.Current
		}
	}
	return prints, nil
}

// timestampFormats contains the timestamp formats the runs table may hold.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseTimestamp parses a stored timestamp, returning zero time when no
// format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
