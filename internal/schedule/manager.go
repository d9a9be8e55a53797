package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"github.com/vitalsync/vitalsync/internal/export"
	"github.com/vitalsync/vitalsync/internal/utils"
)

// DefaultCheckInterval is how often the manager re-evaluates the schedule.
// The check is cheap, so a coarse interval still catches a due export within
// half an hour of its preferred time, including after wake from sleep.
const DefaultCheckInterval = 30 * time.Minute

const lockFileName = ".vitalsync.lock"

// Config wires a Manager to its collaborators.
type Config struct {
	Store       *Store
	Fetch       export.Fetcher
	Write       export.Writer
	History     export.HistoryRecorder
	Notifier    Notifier
	Destination string

	// CheckInterval overrides DefaultCheckInterval when positive.
	CheckInterval time.Duration

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Manager runs scheduled background exports. It keeps the persisted
// schedule loaded, re-checks it periodically, and when a check finds the
// schedule due it exports every uncovered day up to yesterday in one batch.
type Manager struct {
	cfg   Config
	log   *slog.Logger
	now   func() time.Time
	cron  *cron.Cron
	entry cron.EntryID

	mu    sync.Mutex
	sched Schedule

	// exporting guards against overlapping catch-up runs. A due-check that
	// finds a run already in flight returns without doing anything.
	exporting atomic.Bool
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("schedule manager: store is required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	sched, err := cfg.Store.Load()
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:   cfg,
		log:   slog.With("component", "schedule"),
		now:   now,
		cron:  cron.New(),
		sched: sched,
	}, nil
}

// Start begins periodic due-checks. When the schedule is enabled an
// immediate check runs as well, so an export missed while the process was
// down is caught up right away.
func (m *Manager) Start() {
	spec := fmt.Sprintf("@every %s", m.cfg.CheckInterval)
	entry, err := m.cron.AddFunc(spec, m.dueCheck)
	if err != nil {
		m.log.Error("failed to register due-check timer", "spec", spec, "error", err)
		return
	}
	m.entry = entry
	m.cron.Start()
	if m.Schedule().IsEnabled {
		go m.dueCheck()
	}
	m.log.Info("schedule manager started", "interval", m.cfg.CheckInterval)
}

// Stop halts the periodic checks. An in-flight export batch finishes.
func (m *Manager) Stop() {
	<-m.cron.Stop().Done()
	m.log.Info("schedule manager stopped")
}

// Schedule returns a copy of the current schedule.
func (m *Manager) Schedule() Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sched
}

// SetEnabled turns scheduled exports on or off. Enabling triggers an
// immediate due-check.
func (m *Manager) SetEnabled(enabled bool) error {
	if err := m.update(func(s *Schedule) { s.IsEnabled = enabled }); err != nil {
		return err
	}
	if enabled {
		go m.dueCheck()
	}
	return nil
}

// SetFrequency sets how often exports should run.
func (m *Manager) SetFrequency(f Frequency) error {
	if f != FrequencyDaily && f != FrequencyWeekly {
		return fmt.Errorf("unknown frequency %q", f)
	}
	return m.update(func(s *Schedule) { s.Frequency = f })
}

// SetPreferredTime sets the time of day after which a due-check may export.
func (m *Manager) SetPreferredTime(hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid preferred time %02d:%02d", hour, minute)
	}
	return m.update(func(s *Schedule) {
		s.PreferredHour = hour
		s.PreferredMinute = minute
	})
}

func (m *Manager) update(mutate func(*Schedule)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.sched
	mutate(&next)
	if err := m.cfg.Store.Save(next); err != nil {
		return err
	}
	m.sched = next
	return nil
}

// dueCheck decides whether a scheduled export is due and runs the catch-up
// batch when it is. Re-running the check after a completed export is a
// no-op because the advanced LastExportDate satisfies it.
func (m *Manager) dueCheck() {
	if !m.exporting.CompareAndSwap(false, true) {
		return
	}
	defer m.exporting.Store(false)

	now := m.now()
	sched := m.Schedule()

	if !sched.IsEnabled {
		return
	}
	minuteOfDay := now.Hour()*60 + now.Minute()
	if minuteOfDay < sched.preferredMinuteOfDay() {
		return
	}
	if sched.satisfied(now) {
		return
	}
	start, end, ok := sched.catchUpRange(now)
	if !ok {
		return
	}
	m.runCatchUp(now, start, end)
}

func (m *Manager) runCatchUp(now, start, end time.Time) {
	dates := export.DateRange(start, end)
	m.log.Info("scheduled export starting",
		"from", start.Format(time.DateOnly),
		"to", end.Format(time.DateOnly),
		"days", len(dates))

	// Opening the destination up front is the background mode's pre-acquired
	// access; on a fresh install the directory does not exist yet.
	if err := utils.EnsureDir(m.cfg.Destination); err != nil {
		m.log.Warn("scheduled export skipped, destination unavailable", "error", err)
		m.notify("Export failed", export.ReasonAccessDenied.Description())
		return
	}

	// Hold the destination lock for the whole batch so a concurrent manual
	// export in another process cannot interleave partial writes.
	lock := flock.New(filepath.Join(m.cfg.Destination, lockFileName))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		m.log.Warn("scheduled export skipped, destination is locked", "error", err)
		m.notify("Export failed", export.ReasonAccessDenied.Description())
		return
	}
	defer lock.Unlock()

	orch := &export.Orchestrator{Fetch: m.cfg.Fetch, Write: m.cfg.Write}
	ctx := context.Background()
	res := orch.ExportBatch(ctx, dates, m.cfg.Destination)

	if m.cfg.History != nil {
		if err := export.RecordResult(ctx, m.cfg.History, res, export.SourceScheduled, start, end); err != nil {
			m.log.Warn("failed to record export history", "error", err)
		}
	}

	if res.SuccessCount > 0 {
		if err := m.update(func(s *Schedule) { s.LastExportDate = &now }); err != nil {
			m.log.Error("failed to persist last export date", "error", err)
		}
		m.log.Info("scheduled export finished", "exported", res.SuccessCount, "total", res.TotalCount)
		m.notify("Export complete", res.Summary())
		return
	}

	// Nothing was exported, so the window stays open and the next
	// due-check retries the same range.
	m.log.Warn("scheduled export produced no files", "reason", res.PrimaryFailureReason())
	m.notify("Export failed", res.Summary())
}

func (m *Manager) notify(title, body string) {
	if err := m.cfg.Notifier.Notify(title, body); err != nil {
		m.log.Debug("notification failed", "error", err)
	}
}
