package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/vitalsync/internal/export"
	"github.com/vitalsync/vitalsync/internal/health"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := NewSqliteDB(WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

func rec(y int, m time.Month, d, steps int) health.DailyRecord {
	return health.DailyRecord{
		Date:  time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Steps: steps,
	}
}

func TestNewSqliteDB_File_CreatesParent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "cache.db")

	db, err := NewSqliteDB(WithPath(dbPath))
	require.NoError(t, err)
	defer db.Close()

	assert.DirExists(t, filepath.Dir(dbPath))
}

func TestStore_UpsertAndRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRecords(ctx, []health.DailyRecord{
		rec(2024, 4, 1, 5000),
		rec(2024, 4, 2, 7000),
	}, "phone"))

	got, err := store.Record(ctx, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 5000, got.Steps)
	assert.Equal(t, "2024-04-01", got.DayKey())

	missing, err := store.Record(ctx, time.Date(2024, 4, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, missing)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_LastWriterWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertRecords(ctx, []health.DailyRecord{rec(2024, 4, 1, 5000)}, "phone"))
	require.NoError(t, store.UpsertRecords(ctx, []health.DailyRecord{rec(2024, 4, 1, 9999)}, "phone"))

	got, err := store.Record(ctx, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 9999, got.Steps)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_RecordRange_Chronological(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Insert out of order; reads come back sorted by day.
	require.NoError(t, store.UpsertRecords(ctx, []health.DailyRecord{
		rec(2024, 4, 3, 3),
		rec(2024, 4, 1, 1),
		rec(2024, 4, 2, 2),
		rec(2024, 4, 9, 9),
	}, "phone"))

	got, err := store.RecordRange(ctx,
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Steps)
	assert.Equal(t, 2, got[1].Steps)
	assert.Equal(t, 3, got[2].Steps)

	all, err := store.AllRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestStore_History(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC)

	ok := export.Result{SuccessCount: 3, TotalCount: 3}
	require.NoError(t, store.RecordSuccess(ctx, ok, export.SourceScheduled, start, end))

	bad := export.Result{TotalCount: 2, FailedDates: []export.FailedDate{{Reason: export.ReasonFileWrite}}}
	require.NoError(t, store.RecordFailure(ctx, bad, export.SourceManual, start, end, bad.PrimaryFailureReason()))

	entries, err := store.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, export.SourceManual, entries[0].Source)
	assert.Equal(t, string(export.ReasonFileWrite), entries[0].FailureReason)
	assert.Equal(t, export.SourceScheduled, entries[1].Source)
	assert.Empty(t, entries[1].FailureReason)
	assert.Equal(t, "2024-04-01", entries[1].RangeStart)
	assert.Equal(t, 3, entries[1].SuccessCount)
}
