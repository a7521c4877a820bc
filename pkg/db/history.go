package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Metadata keys.
const (
	KeyDestinationFile = "destination_file"
	KeyLastRunAll      = "last_run_all"
)

// RunRecord represents one importer run.
type RunRecord struct {
	ID         int64
	Importer   string
	Mode       string
	StartDate  sql.NullString
	EndDate    sql.NullString
	Returncode int
	Errors     []string
	RunAt      time.Time
}

// Succeeded reports whether the importer exited cleanly without errors.
func (r RunRecord) Succeeded() bool {
	return r.Returncode == 0 && len(r.Errors) == 0
}

// CommitRecord represents one write of the destination ledger file.
type CommitRecord struct {
	ID              int64
	DestinationFile string
	SnapshotPath    sql.NullString
	CheckPassed     bool
	CheckErrors     int
	Forced          bool
	CommittedAt     time.Time
}

// History manages run and commit history.
type History struct {
	conn *Connection
}

// NewHistory creates a new History instance.
func NewHistory(conn *Connection) *History {
	return &History{conn: conn}
}

// RecordRun records an importer run.
func (h *History) RecordRun(record RunRecord) error {
	errs := record.Errors
	if errs == nil {
		errs = []string{}
	}
	encoded, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("failed to encode run errors: %w", err)
	}

	query := `
		INSERT INTO collect_runs (importer, mode, start_date, end_date, returncode, errors)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = h.conn.Exec(query,
		record.Importer,
		record.Mode,
		record.StartDate,
		record.EndDate,
		record.Returncode,
		string(encoded),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (h *History) RecentRuns(limit int) ([]RunRecord, error) {
	query := `
		SELECT id, importer, mode, start_date, end_date, returncode, errors, run_at
		FROM collect_runs
		ORDER BY run_at DESC, id DESC
		LIMIT ?
	`

	rows, err := h.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

// LastRun returns the most recent run of importer, or nil if it never ran.
func (h *History) LastRun(importer string) (*RunRecord, error) {
	query := `
		SELECT id, importer, mode, start_date, end_date, returncode, errors, run_at
		FROM collect_runs
		WHERE importer = ?
		ORDER BY run_at DESC, id DESC
		LIMIT 1
	`

	record, err := scanRun(h.conn.QueryRow(query, importer))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last run: %w", err)
	}
	return record, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*RunRecord, error) {
	var record RunRecord
	var errs string
	if err := s.Scan(
		&record.ID,
		&record.Importer,
		&record.Mode,
		&record.StartDate,
		&record.EndDate,
		&record.Returncode,
		&errs,
		&record.RunAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(errs), &record.Errors); err != nil {
		return nil, fmt.Errorf("failed to decode run errors: %w", err)
	}
	return &record, nil
}

// RecordCommit records a write of the destination file.
func (h *History) RecordCommit(record CommitRecord) error {
	query := `
		INSERT INTO commits (destination_file, snapshot_path, check_passed, check_errors, forced)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := h.conn.Exec(query,
		record.DestinationFile,
		record.SnapshotPath,
		record.CheckPassed,
		record.CheckErrors,
		record.Forced,
	)
	if err != nil {
		return fmt.Errorf("failed to record commit: %w", err)
	}

	return nil
}

// RecentCommits returns up to limit commits, newest first.
func (h *History) RecentCommits(limit int) ([]CommitRecord, error) {
	query := `
		SELECT id, destination_file, snapshot_path, check_passed, check_errors, forced, committed_at
		FROM commits
		ORDER BY committed_at DESC, id DESC
		LIMIT ?
	`

	rows, err := h.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent commits: %w", err)
	}
	defer rows.Close()

	var records []CommitRecord
	for rows.Next() {
		var record CommitRecord
		if err := rows.Scan(
			&record.ID,
			&record.DestinationFile,
			&record.SnapshotPath,
			&record.CheckPassed,
			&record.CheckErrors,
			&record.Forced,
			&record.CommittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan commit: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// Stats represents history statistics.
type Stats struct {
	TotalRuns    int
	FailedRuns   int
	TotalCommits int
	LastRun      sql.NullString
	LastCommit   sql.NullString
}

// GetStats retrieves history statistics.
func (h *History) GetStats() (*Stats, error) {
	var stats Stats

	err := h.conn.QueryRow(`SELECT COUNT(*) FROM collect_runs`).Scan(&stats.TotalRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to get run count: %w", err)
	}

	err = h.conn.QueryRow(`SELECT COUNT(*) FROM collect_runs WHERE returncode != 0 OR errors != '[]'`).Scan(&stats.FailedRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed run count: %w", err)
	}

	err = h.conn.QueryRow(`SELECT COUNT(*) FROM commits`).Scan(&stats.TotalCommits)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit count: %w", err)
	}

	err = h.conn.QueryRow(`SELECT MAX(run_at) FROM collect_runs`).Scan(&stats.LastRun)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get last run time: %w", err)
	}

	err = h.conn.QueryRow(`SELECT MAX(committed_at) FROM commits`).Scan(&stats.LastCommit)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get last commit time: %w", err)
	}

	return &stats, nil
}

// GetMetadata retrieves a metadata value, or "" when unset.
func (h *History) GetMetadata(key string) (string, error) {
	query := `SELECT value FROM metadata WHERE key = ?`

	var value string
	err := h.conn.QueryRow(query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}

	return value, nil
}

// SetMetadata sets a metadata value.
func (h *History) SetMetadata(key, value string) error {
	query := `
		INSERT INTO metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := h.conn.Exec(query, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}

	return nil
}
