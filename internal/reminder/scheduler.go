// Package reminder implements the proactive ANC reminder engine.
//
// This file implements the wake scheduler that triggers reminder checks on
// a daily clock time, or on a short interval in test configurations.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oumacare/ancare/internal/models"
)

// DefaultScheduleTime is the daily wall-clock check time (24-hour HH:MM).
const DefaultScheduleTime = "08:00"

// DefaultTestInterval is the trigger period used in test mode.
const DefaultTestInterval = time.Minute

// WakeScheduler owns the single recurring trigger that fires reminder
// checks. It is an explicit object constructed with its dependencies; there
// is no process-wide instance.
type WakeScheduler struct {
	checker      *Checker
	scheduleTime string
	testMode     bool
	testInterval time.Duration

	mu       sync.Mutex
	cron     *cron.Cron
	entryID  cron.EntryID
	hasEntry bool
	running  bool

	remindersSent atomic.Int64
}

// SchedulerOption configures a WakeScheduler.
type SchedulerOption func(*WakeScheduler)

// WithScheduleTime sets the daily check time in 24-hour HH:MM format.
func WithScheduleTime(hhmm string) SchedulerOption {
	return func(s *WakeScheduler) {
		if hhmm != "" {
			s.scheduleTime = hhmm
		}
	}
}

// WithTestMode switches the trigger from the daily clock to a short fixed
// interval, for accelerated testing.
func WithTestMode(enabled bool) SchedulerOption {
	return func(s *WakeScheduler) { s.testMode = enabled }
}

// WithTestInterval overrides the test-mode trigger period.
func WithTestInterval(d time.Duration) SchedulerOption {
	return func(s *WakeScheduler) {
		if d > 0 {
			s.testInterval = d
		}
	}
}

// NewWakeScheduler creates a stopped scheduler around the given checker.
func NewWakeScheduler(checker *Checker, opts ...SchedulerOption) *WakeScheduler {
	s := &WakeScheduler{
		checker:      checker,
		scheduleTime: DefaultScheduleTime,
		testInterval: DefaultTestInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	slog.Info("ANC reminder scheduler initialized", "test_mode", s.testMode, "schedule_time", s.scheduleTime)
	return s
}

// Start registers the recurring trigger and begins firing. Starting replaces
// any previously registered trigger rather than duplicating it. Returns
// models.ErrSchedulerRunning if already started.
func (s *WakeScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		slog.Warn("scheduler already running")
		return models.ErrSchedulerRunning
	}

	spec, err := s.cronSpec()
	if err != nil {
		return err
	}

	if s.cron == nil {
		// Standard 5-field cron parser plus descriptors for @every, with
		// panic recovery around jobs.
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		s.cron = cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	}

	if s.hasEntry {
		s.cron.Remove(s.entryID)
		s.hasEntry = false
	}

	id, err := s.cron.AddFunc(spec, s.runScheduledCheck)
	if err != nil {
		return fmt.Errorf("failed to register reminder trigger %q: %w", spec, err)
	}
	s.entryID = id
	s.hasEntry = true

	s.cron.Start()
	s.running = true

	if s.testMode {
		slog.Info("scheduler started in test mode", "interval", s.testInterval)
	} else {
		slog.Info("scheduler started", "schedule_time", s.scheduleTime)
	}
	return nil
}

// Stop prevents future trigger fires. A check already in flight runs to
// completion. Returns models.ErrSchedulerStopped if not running.
func (s *WakeScheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		slog.Warn("scheduler not running")
		return models.ErrSchedulerStopped
	}

	s.cron.Stop()
	s.running = false
	slog.Info("scheduler stopped")
	return nil
}

// TriggerImmediateCheck runs the reminder check out-of-band, without waiting
// for the clock trigger.
func (s *WakeScheduler) TriggerImmediateCheck(ctx context.Context) (models.CheckSummary, error) {
	slog.Info("triggering immediate ANC reminder check")
	summary, err := s.checker.RunCheck(ctx)
	s.remindersSent.Add(int64(summary.RemindersSent))
	return summary, err
}

// Stats returns a snapshot of the scheduler's counters and trigger state.
// NextRun is nil while the scheduler is stopped.
func (s *WakeScheduler) Stats() models.SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := models.SchedulerStats{
		IsRunning:          s.running,
		TotalChecks:        s.checker.CheckCount(),
		TotalRemindersSent: s.remindersSent.Load(),
		TestMode:           s.testMode,
		ScheduleTime:       s.scheduleTime,
	}
	if s.running && s.hasEntry {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			stats.NextRun = &next
		}
	}
	return stats
}

func (s *WakeScheduler) runScheduledCheck() {
	if _, err := s.TriggerImmediateCheck(context.Background()); err != nil {
		slog.Error("scheduled ANC reminder check failed", "error", err)
	}
}

// cronSpec renders the trigger expression for the active mode.
func (s *WakeScheduler) cronSpec() (string, error) {
	if s.testMode {
		return fmt.Sprintf("@every %s", s.testInterval), nil
	}
	var hour, minute int
	if _, err := fmt.Sscanf(s.scheduleTime, "%d:%d", &hour, &minute); err != nil {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidSchedule, s.scheduleTime)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidSchedule, s.scheduleTime)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
