package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/vitalsync/internal/health"
)

func TestFileWriter_Markdown(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vault", "Health")
	rec := &health.DailyRecord{
		Date:  time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		Steps: 8421,
	}

	require.NoError(t, FileWriter{}.Write(context.Background(), rec, dir))

	data, err := os.ReadFile(filepath.Join(dir, "2025-06-14.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Steps: 8421")
}

func TestFileWriter_JSON(t *testing.T) {
	dir := t.TempDir()
	rec := &health.DailyRecord{
		Date:  time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		Steps: 8421,
	}

	require.NoError(t, FileWriter{Format: FormatJSON}.Write(context.Background(), rec, dir))

	data, err := os.ReadFile(filepath.Join(dir, "2025-06-14.json"))
	require.NoError(t, err)
	var got health.DailyRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 8421, got.Steps)
}

func TestFileWriter_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	rec := &health.DailyRecord{
		Date:  time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		Steps: 100,
	}
	require.NoError(t, FileWriter{}.Write(context.Background(), rec, dir))

	rec.Steps = 200
	require.NoError(t, FileWriter{}.Write(context.Background(), rec, dir))

	data, err := os.ReadFile(filepath.Join(dir, "2025-06-14.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Steps: 200")
	assert.NotContains(t, string(data), "Steps: 100")
}

func TestFileWriter_UnknownFormat(t *testing.T) {
	rec := &health.DailyRecord{Date: time.Now()}
	err := FileWriter{Format: "yaml"}.Write(context.Background(), rec, t.TempDir())
	assert.Error(t, err)
}
