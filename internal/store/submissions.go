package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	StatusSubmitted = "submitted"
	StatusFailed    = "failed"
	StatusPartial   = "partial"
)

// Submission is one submission document outcome in the local ledger.
type Submission struct {
	ID        int
	RunID     string
	SiteID    int
	Date      string
	Worker    string
	HeaderID  int
	Lines     int
	Minutes   int
	Status    string
	Error     string
	CreatedAt time.Time
}

func (db *DB) InsertSubmission(ctx context.Context, s *Submission) (int64, error) {
	var headerID sql.NullInt64
	if s.HeaderID != 0 {
		headerID = sql.NullInt64{Int64: int64(s.HeaderID), Valid: true}
	}
	var errText sql.NullString
	if s.Error != "" {
		errText = sql.NullString{String: s.Error, Valid: true}
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO submissions (run_id, site_id, date, worker, header_id, lines, minutes, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.SiteID, s.Date, s.Worker, headerID, s.Lines, s.Minutes, s.Status, errText,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting submission: %w", err)
	}
	return result.LastInsertId()
}

func (db *DB) GetRunSubmissions(ctx context.Context, runID string) ([]Submission, error) {
	return db.querySubmissions(ctx,
		`SELECT id, run_id, site_id, date, worker, header_id, lines, minutes, status, error, created_at
		 FROM submissions
		 WHERE run_id = ?
		 ORDER BY id ASC`,
		runID,
	)
}

func (db *DB) GetRecentSubmissions(ctx context.Context, limit int) ([]Submission, error) {
	return db.querySubmissions(ctx,
		`SELECT id, run_id, site_id, date, worker, header_id, lines, minutes, status, error, created_at
		 FROM submissions
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
}

func (db *DB) GetFailedSubmissions(ctx context.Context) ([]Submission, error) {
	return db.querySubmissions(ctx,
		`SELECT id, run_id, site_id, date, worker, header_id, lines, minutes, status, error, created_at
		 FROM submissions
		 WHERE status != 'submitted'
		 ORDER BY id ASC`,
	)
}

func (db *DB) querySubmissions(ctx context.Context, query string, args ...interface{}) ([]Submission, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying submissions: %w", err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		var s Submission
		var headerID sql.NullInt64
		var errText sql.NullString
		var createdStr string

		if err := rows.Scan(
			&s.ID, &s.RunID, &s.SiteID, &s.Date, &s.Worker, &headerID,
			&s.Lines, &s.Minutes, &s.Status, &errText, &createdStr,
		); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}

		s.HeaderID = int(headerID.Int64)
		s.Error = errText.String
		if t, err := time.Parse(time.DateTime, createdStr); err == nil {
			s.CreatedAt = t
		} else if t, err := time.Parse(time.RFC3339, createdStr); err == nil {
			s.CreatedAt = t
		}

		out = append(out, s)
	}

	return out, rows.Err()
}
