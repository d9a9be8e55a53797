package health

import (
	"time"
)

// DayLayout is the canonical date-key format for daily records.
const DayLayout = "2006-01-02"

// DailyRecord is one calendar day of aggregated health metrics.
// Aggregation happens on the source device; this is the already-rolled-up form.
type DailyRecord struct {
	Date             time.Time `json:"date" msgpack:"date" db:"-"`
	Steps            int       `json:"steps" msgpack:"steps"`
	ActiveEnergyKcal float64   `json:"active_energy_kcal" msgpack:"active_energy_kcal"`
	ExerciseMinutes  int       `json:"exercise_minutes" msgpack:"exercise_minutes"`
	StandHours       int       `json:"stand_hours" msgpack:"stand_hours"`
	RestingHeartRate float64   `json:"resting_heart_rate" msgpack:"resting_heart_rate"`
	AverageHeartRate float64   `json:"average_heart_rate" msgpack:"average_heart_rate"`
	SleepMinutes     int       `json:"sleep_minutes" msgpack:"sleep_minutes"`
	WorkoutCount     int       `json:"workout_count" msgpack:"workout_count"`
}

// DayKey returns the record's date-key ("2006-01-02"), the identity the
// cache stores and overwrites by.
func (r *DailyRecord) DayKey() string {
	return r.Date.Format(DayLayout)
}

// HasData reports whether the record carries any actual metric content.
// Empty records are skipped by exports rather than written as blank files.
func (r *DailyRecord) HasData() bool {
	return r.Steps > 0 ||
		r.ActiveEnergyKcal > 0 ||
		r.ExerciseMinutes > 0 ||
		r.StandHours > 0 ||
		r.RestingHeartRate > 0 ||
		r.AverageHeartRate > 0 ||
		r.SleepMinutes > 0 ||
		r.WorkoutCount > 0
}

// Day truncates t to the start of its calendar day, preserving location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
