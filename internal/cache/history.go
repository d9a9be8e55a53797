package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/vitalsync/vitalsync/internal/export"
	"github.com/vitalsync/vitalsync/internal/health"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS export_history (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	ran_at         TIMESTAMP NOT NULL,
	source         TEXT NOT NULL,
	range_start    TEXT NOT NULL,
	range_end      TEXT NOT NULL,
	success_count  INTEGER NOT NULL,
	total_count    INTEGER NOT NULL,
	was_cancelled  INTEGER NOT NULL DEFAULT 0,
	failure_reason TEXT NOT NULL DEFAULT ''
);
`

// HistoryEntry is one recorded export run.
type HistoryEntry struct {
	ID            int64     `db:"id"`
	RanAt         time.Time `db:"ran_at"`
	Source        string    `db:"source"`
	RangeStart    string    `db:"range_start"`
	RangeEnd      string    `db:"range_end"`
	SuccessCount  int       `db:"success_count"`
	TotalCount    int       `db:"total_count"`
	WasCancelled  bool      `db:"was_cancelled"`
	FailureReason string    `db:"failure_reason"`
}

// RecordSuccess persists a run that exported at least one day.
func (s *Store) RecordSuccess(ctx context.Context, res export.Result, source string, rangeStart, rangeEnd time.Time) error {
	return s.insertHistory(ctx, res, source, rangeStart, rangeEnd, "")
}

// RecordFailure persists a run with zero successes and its primary reason.
func (s *Store) RecordFailure(ctx context.Context, res export.Result, source string, rangeStart, rangeEnd time.Time, reason export.FailureReason) error {
	return s.insertHistory(ctx, res, source, rangeStart, rangeEnd, string(reason))
}

func (s *Store) insertHistory(ctx context.Context, res export.Result, source string, rangeStart, rangeEnd time.Time, reason string) error {
	const q = `
	INSERT INTO export_history
		(ran_at, source, range_start, range_end, success_count, total_count, was_cancelled, failure_reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		time.Now().UTC(), source,
		rangeStart.Format(health.DayLayout), rangeEnd.Format(health.DayLayout),
		res.SuccessCount, res.TotalCount, res.WasCancelled, reason)
	if err != nil {
		return fmt.Errorf("record export history: %w", err)
	}
	return nil
}

// History returns the most recent export runs, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []HistoryEntry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT * FROM export_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("read export history: %w", err)
	}
	return entries, nil
}
