package export

import (
	"context"
	"log/slog"
	"time"

	"github.com/vitalsync/vitalsync/internal/health"
)

// Fetcher supplies the record for one date. Foreground exports fetch from
// the live source; scheduled catch-ups fetch from the local cache.
type Fetcher interface {
	Fetch(ctx context.Context, date time.Time) (*health.DailyRecord, error)
}

// Writer persists one record to the destination. Foreground writers manage
// their own scoped destination access per call; background writers assume
// the caller pre-opened access for the whole batch.
type Writer interface {
	Write(ctx context.Context, rec *health.DailyRecord, destination string) error
}

// HistoryRecorder persists run outcomes.
type HistoryRecorder interface {
	RecordSuccess(ctx context.Context, res Result, source string, rangeStart, rangeEnd time.Time) error
	RecordFailure(ctx context.Context, res Result, source string, rangeStart, rangeEnd time.Time, reason FailureReason) error
}

// ProgressFunc fires after each date is scheduled, in input order.
type ProgressFunc func(processed, total int, dateLabel string)

// Run source labels for the export history.
const (
	SourceManual    = "manual"
	SourceScheduled = "scheduled"
)

// Orchestrator drives a date-range export. It holds no state of its own;
// every run is a pure function of its inputs and collaborators.
type Orchestrator struct {
	Fetch    Fetcher
	Write    Writer
	Progress ProgressFunc
}

// ExportDates is the foreground mode: dates are attempted strictly in the
// order supplied, cancellation is polled once per date boundary, and one
// date's failure never stops the rest.
func (o *Orchestrator) ExportDates(ctx context.Context, dates []time.Time, destination string) Result {
	res := Result{TotalCount: len(dates)}

	for i, date := range dates {
		// Cancellation never splits a date: either it was fully attempted
		// or it was never started.
		if ctx.Err() != nil {
			res.WasCancelled = true
			slog.Info("export cancelled", "attempted", i, "total", len(dates))
			return res
		}

		o.exportOne(ctx, date, destination, false, &res)
		if o.Progress != nil {
			o.Progress(i+1, len(dates), date.Format(health.DayLayout))
		}
	}
	return res
}

// ExportBatch is the background mode: the caller already holds destination
// access for the whole batch, so there is no per-date acquisition and no
// cancellation polling. Empty records classify as noHealthData instead of
// being written.
func (o *Orchestrator) ExportBatch(ctx context.Context, dates []time.Time, destination string) Result {
	res := Result{TotalCount: len(dates)}

	for i, date := range dates {
		o.exportOne(ctx, date, destination, true, &res)
		if o.Progress != nil {
			o.Progress(i+1, len(dates), date.Format(health.DayLayout))
		}
	}
	return res
}

func (o *Orchestrator) exportOne(ctx context.Context, date time.Time, destination string, batch bool, res *Result) {
	rec, err := o.Fetch.Fetch(ctx, date)
	if err != nil {
		res.FailedDates = append(res.FailedDates, FailedDate{
			Date:    date,
			Reason:  classifyFetch(err),
			Details: err.Error(),
		})
		return
	}
	if rec == nil || (batch && !rec.HasData()) {
		res.FailedDates = append(res.FailedDates, FailedDate{
			Date:   date,
			Reason: ReasonNoHealthData,
		})
		return
	}

	if err := o.Write.Write(ctx, rec, destination); err != nil {
		res.FailedDates = append(res.FailedDates, FailedDate{
			Date:    date,
			Reason:  classifyWrite(err),
			Details: err.Error(),
		})
		return
	}

	res.SuccessCount++
}

// RecordResult forwards res to the history recorder: the success path when
// anything exported (even partially), the failure path otherwise.
func RecordResult(ctx context.Context, h HistoryRecorder, res Result, source string, rangeStart, rangeEnd time.Time) error {
	if h == nil {
		return nil
	}
	if res.SuccessCount > 0 {
		return h.RecordSuccess(ctx, res, source, rangeStart, rangeEnd)
	}
	return h.RecordFailure(ctx, res, source, rangeStart, rangeEnd, res.PrimaryFailureReason())
}
