package schedule

import (
	"time"

	"github.com/vitalsync/vitalsync/internal/health"
)

// Frequency of scheduled exports.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Schedule is the persisted export schedule. Only the Manager mutates it;
// the UI reads it for display.
type Schedule struct {
	IsEnabled       bool
	Frequency       Frequency
	PreferredHour   int
	PreferredMinute int
	LastExportDate  *time.Time
}

// DefaultSchedule is what a fresh install starts with.
func DefaultSchedule() Schedule {
	return Schedule{
		Frequency:     FrequencyDaily,
		PreferredHour: 9,
	}
}

// preferredMinuteOfDay is the due threshold within a day.
func (s Schedule) preferredMinuteOfDay() int {
	return s.PreferredHour*60 + s.PreferredMinute
}

// oldestEligible is the earliest day a catch-up may reach back to: yesterday
// for daily, seven days back for weekly.
func (s Schedule) oldestEligible(today time.Time) time.Time {
	if s.Frequency == FrequencyWeekly {
		return today.AddDate(0, 0, -7)
	}
	return today.AddDate(0, 0, -1)
}

// coveredThrough infers the newest already-exported day. An export run on
// day D exports day D-1's data, so the last run day minus one is covered.
// With no prior export, fall back to the day before the oldest-eligible
// date so the full window opens up.
func (s Schedule) coveredThrough(today time.Time) time.Time {
	if s.LastExportDate != nil {
		return health.Day(*s.LastExportDate).AddDate(0, 0, -1)
	}
	return s.oldestEligible(today).AddDate(0, 0, -1)
}

// catchUpRange computes the inclusive date range a catch-up export should
// cover right now. ok is false when nothing is due.
func (s Schedule) catchUpRange(now time.Time) (start, end time.Time, ok bool) {
	if s.satisfied(now) {
		return time.Time{}, time.Time{}, false
	}

	today := health.Day(now)
	yesterday := today.AddDate(0, 0, -1)

	covered := s.coveredThrough(today)
	if !covered.Before(yesterday) {
		return time.Time{}, time.Time{}, false
	}

	start = covered.AddDate(0, 0, 1)
	if oldest := s.oldestEligible(today); start.Before(oldest) {
		start = oldest
	}
	return start, yesterday, true
}

// satisfied reports whether the last export already covers this due-check:
// an export whose run day is yesterday or later needs nothing.
func (s Schedule) satisfied(now time.Time) bool {
	if s.LastExportDate == nil {
		return false
	}
	yesterday := health.Day(now).AddDate(0, 0, -1)
	return !health.Day(*s.LastExportDate).Before(yesterday)
}
