package export

import (
	"fmt"
	"time"
)

// FailedDate records one date's classified failure. Details carries the
// underlying error text for the unknown bucket.
type FailedDate struct {
	Date    time.Time
	Reason  FailureReason
	Details string
}

// Result aggregates one export run. For a run that was not truncated by
// cancellation, SuccessCount + len(FailedDates) == TotalCount; a cancelled
// run simply never attempted the remainder.
type Result struct {
	SuccessCount int
	TotalCount   int
	FailedDates  []FailedDate
	WasCancelled bool
}

// IsFullSuccess reports every date exported and nothing cancelled.
func (r Result) IsFullSuccess() bool {
	return r.SuccessCount == r.TotalCount && r.TotalCount > 0 && !r.WasCancelled
}

// IsPartialSuccess reports some but not all dates exported, or any
// successes on a cancelled run.
func (r Result) IsPartialSuccess() bool {
	if r.SuccessCount > 0 && r.SuccessCount < r.TotalCount {
		return true
	}
	return r.SuccessCount > 0 && r.WasCancelled
}

// IsFailure reports an attempted run with zero successes.
func (r Result) IsFailure() bool {
	return r.SuccessCount == 0 && r.TotalCount > 0
}

// PrimaryFailureReason is the first failed date's reason, in chronological
// order, or unknown when nothing failed.
func (r Result) PrimaryFailureReason() FailureReason {
	if len(r.FailedDates) == 0 {
		return ReasonUnknown
	}
	return r.FailedDates[0].Reason
}

// Summary is the user-facing one-liner for this result.
func (r Result) Summary() string {
	switch {
	case r.WasCancelled:
		return fmt.Sprintf("Export stopped: %d of %d days exported", r.SuccessCount, r.TotalCount)
	case r.IsFullSuccess():
		return fmt.Sprintf("Exported %d days", r.SuccessCount)
	case r.IsPartialSuccess():
		return fmt.Sprintf("Exported %d of %d days", r.SuccessCount, r.TotalCount)
	default:
		return fmt.Sprintf("Export failed: %s", r.PrimaryFailureReason().Description())
	}
}
