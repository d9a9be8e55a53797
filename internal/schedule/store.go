package schedule

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"

	"github.com/vitalsync/vitalsync/internal/utils"
)

const (
	keyEnabled         = "is_enabled"
	keyFrequency       = "frequency"
	keyPreferredHour   = "preferred_hour"
	keyPreferredMinute = "preferred_minute"
	keyLastExportDate  = "last_export_date"
)

// Store persists the export schedule to a JSON file. The schedule is small
// and changes rarely, so every mutation is written through immediately.
type Store struct {
	v    *viper.Viper
	path string
}

func NewStore(path string) *Store {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	return &Store{v: v, path: path}
}

// Load reads the persisted schedule. A missing file yields the defaults.
func (s *Store) Load() (Schedule, error) {
	if err := s.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound) {
			return DefaultSchedule(), nil
		}
		return Schedule{}, fmt.Errorf("read schedule: %w", err)
	}

	sched := Schedule{
		IsEnabled:       s.v.GetBool(keyEnabled),
		Frequency:       Frequency(s.v.GetString(keyFrequency)),
		PreferredHour:   s.v.GetInt(keyPreferredHour),
		PreferredMinute: s.v.GetInt(keyPreferredMinute),
	}
	if sched.Frequency != FrequencyDaily && sched.Frequency != FrequencyWeekly {
		sched.Frequency = FrequencyDaily
	}
	if raw := s.v.GetString(keyLastExportDate); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Schedule{}, fmt.Errorf("parse last export date: %w", err)
		}
		sched.LastExportDate = &ts
	}
	return sched, nil
}

// Save writes the schedule through to disk.
func (s *Store) Save(sched Schedule) error {
	s.v.Set(keyEnabled, sched.IsEnabled)
	s.v.Set(keyFrequency, string(sched.Frequency))
	s.v.Set(keyPreferredHour, sched.PreferredHour)
	s.v.Set(keyPreferredMinute, sched.PreferredMinute)
	last := ""
	if sched.LastExportDate != nil {
		last = sched.LastExportDate.Format(time.RFC3339)
	}
	s.v.Set(keyLastExportDate, last)

	if err := utils.EnsureParent(s.path); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}
