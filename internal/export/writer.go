package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vitalsync/vitalsync/internal/health"
	"github.com/vitalsync/vitalsync/internal/utils"
)

// Output formats for exported files.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// FileWriter writes one file per exported day into the destination
// directory, named after the day (2025-06-14.md). Rewriting an existing
// file replaces it, so re-exporting a day is safe.
type FileWriter struct {
	Format string
}

func (w FileWriter) Write(_ context.Context, rec *health.DailyRecord, destination string) error {
	if err := utils.EnsureDir(destination); err != nil {
		return fmt.Errorf("open destination: %w", err)
	}

	var (
		content []byte
		ext     string
	)
	switch w.Format {
	case FormatJSON:
		data, err := health.RenderJSON(rec)
		if err != nil {
			return fmt.Errorf("render %s: %w", rec.DayKey(), err)
		}
		content, ext = data, ".json"
	case FormatMarkdown, "":
		content, ext = []byte(health.RenderMarkdown(rec)), ".md"
	default:
		return fmt.Errorf("unknown export format %q", w.Format)
	}

	path := filepath.Join(destination, rec.DayKey()+ext)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
