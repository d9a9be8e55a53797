package export

import (
	"time"

	"github.com/vitalsync/vitalsync/internal/health"
)

// DateRange yields each calendar day from start through end, inclusive,
// incrementing by one calendar day. start > end yields nothing.
func DateRange(start, end time.Time) []time.Time {
	first := health.Day(start)
	last := health.Day(end)

	var out []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
