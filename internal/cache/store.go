package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vitalsync/vitalsync/internal/health"
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS health_records (
	day                TEXT PRIMARY KEY,
	steps              INTEGER NOT NULL DEFAULT 0,
	active_energy_kcal REAL    NOT NULL DEFAULT 0,
	exercise_minutes   INTEGER NOT NULL DEFAULT 0,
	stand_hours        INTEGER NOT NULL DEFAULT 0,
	resting_heart_rate REAL    NOT NULL DEFAULT 0,
	average_heart_rate REAL    NOT NULL DEFAULT 0,
	sleep_minutes      INTEGER NOT NULL DEFAULT 0,
	workout_count      INTEGER NOT NULL DEFAULT 0,
	source_device      TEXT    NOT NULL DEFAULT '',
	synced_at          TIMESTAMP NOT NULL
);
`

type recordRow struct {
	Day              string    `db:"day"`
	Steps            int       `db:"steps"`
	ActiveEnergyKcal float64   `db:"active_energy_kcal"`
	ExerciseMinutes  int       `db:"exercise_minutes"`
	StandHours       int       `db:"stand_hours"`
	RestingHeartRate float64   `db:"resting_heart_rate"`
	AverageHeartRate float64   `db:"average_heart_rate"`
	SleepMinutes     int       `db:"sleep_minutes"`
	WorkoutCount     int       `db:"workout_count"`
	SourceDevice     string    `db:"source_device"`
	SyncedAt         time.Time `db:"synced_at"`
}

func (r *recordRow) toRecord() (*health.DailyRecord, error) {
	date, err := time.Parse(health.DayLayout, r.Day)
	if err != nil {
		return nil, fmt.Errorf("parse cached day %q: %w", r.Day, err)
	}
	return &health.DailyRecord{
		Date:             date,
		Steps:            r.Steps,
		ActiveEnergyKcal: r.ActiveEnergyKcal,
		ExerciseMinutes:  r.ExerciseMinutes,
		StandHours:       r.StandHours,
		RestingHeartRate: r.RestingHeartRate,
		AverageHeartRate: r.AverageHeartRate,
		SleepMinutes:     r.SleepMinutes,
		WorkoutCount:     r.WorkoutCount,
	}, nil
}

// Store caches synchronized daily records, keyed by calendar day. Writes
// overwrite whole days: last writer wins, no merge.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) (*Store, error) {
	if _, err := db.Exec(recordsSchema); err != nil {
		return nil, fmt.Errorf("migrate health_records: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		return nil, fmt.Errorf("migrate export_history: %w", err)
	}
	return &Store{db: db}, nil
}

// UpsertRecords stores a synchronized batch, replacing any existing record
// for the same day.
func (s *Store) UpsertRecords(ctx context.Context, records []health.DailyRecord, sourceDevice string) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	const q = `
	INSERT OR REPLACE INTO health_records
		(day, steps, active_energy_kcal, exercise_minutes, stand_hours,
		 resting_heart_rate, average_heart_rate, sleep_minutes, workout_count,
		 source_device, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	for _, rec := range records {
		_, err := tx.ExecContext(ctx, q,
			rec.DayKey(), rec.Steps, rec.ActiveEnergyKcal, rec.ExerciseMinutes,
			rec.StandHours, rec.RestingHeartRate, rec.AverageHeartRate,
			rec.SleepMinutes, rec.WorkoutCount, sourceDevice, now)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", rec.DayKey(), err)
		}
	}

	return tx.Commit()
}

// Record returns the cached record for date, or nil when the day is absent.
func (s *Store) Record(ctx context.Context, date time.Time) (*health.DailyRecord, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM health_records WHERE day = ?`, date.Format(health.DayLayout))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	return row.toRecord()
}

// Fetch satisfies the export fetch contract: scheduled exports read the
// cache, never the live source.
func (s *Store) Fetch(ctx context.Context, date time.Time) (*health.DailyRecord, error) {
	return s.Record(ctx, date)
}

// RecordRange returns cached records between start and end inclusive, in
// chronological order. Missing days are simply absent.
func (s *Store) RecordRange(ctx context.Context, start, end time.Time) ([]health.DailyRecord, error) {
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM health_records WHERE day >= ? AND day <= ? ORDER BY day`,
		start.Format(health.DayLayout), end.Format(health.DayLayout))
	if err != nil {
		return nil, fmt.Errorf("read record range: %w", err)
	}
	return rowsToRecords(rows)
}

// AllRecords returns every cached record in chronological order.
func (s *Store) AllRecords(ctx context.Context) ([]health.DailyRecord, error) {
	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM health_records ORDER BY day`); err != nil {
		return nil, fmt.Errorf("read all records: %w", err)
	}
	return rowsToRecords(rows)
}

// Count returns the number of cached days.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM health_records`); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func rowsToRecords(rows []recordRow) ([]health.DailyRecord, error) {
	out := make([]health.DailyRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}
