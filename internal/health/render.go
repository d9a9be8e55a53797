package health

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown formats a daily record as a small markdown note.
func RenderMarkdown(r *DailyRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Health %s\n\n", r.Date.Format(DayLayout))
	fmt.Fprintf(&b, "- Steps: %d\n", r.Steps)
	fmt.Fprintf(&b, "- Active Energy: %.0f kcal\n", r.ActiveEnergyKcal)
	fmt.Fprintf(&b, "- Exercise: %d min\n", r.ExerciseMinutes)
	fmt.Fprintf(&b, "- Stand Hours: %d\n", r.StandHours)
	if r.RestingHeartRate > 0 {
		fmt.Fprintf(&b, "- Resting HR: %.0f bpm\n", r.RestingHeartRate)
	}
	if r.AverageHeartRate > 0 {
		fmt.Fprintf(&b, "- Average HR: %.0f bpm\n", r.AverageHeartRate)
	}
	if r.SleepMinutes > 0 {
		fmt.Fprintf(&b, "- Sleep: %s\n", formatSleep(r.SleepMinutes))
	}
	if r.WorkoutCount > 0 {
		fmt.Fprintf(&b, "- Workouts: %d\n", r.WorkoutCount)
	}
	return b.String()
}

// RenderJSON formats a daily record as indented JSON.
func RenderJSON(r *DailyRecord) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func formatSleep(minutes int) string {
	d := time.Duration(minutes) * time.Minute
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
