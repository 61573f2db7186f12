package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oumacare/ancare/internal/models"
)

func newTestScheduler(t *testing.T, opts ...SchedulerOption) *WakeScheduler {
	t.Helper()
	checker := NewChecker(StaticSource(nil), nil)
	// A long test interval keeps the cron trigger from firing mid-test.
	base := []SchedulerOption{WithTestMode(true), WithTestInterval(time.Hour)}
	return NewWakeScheduler(checker, append(base, opts...)...)
}

func TestSchedulerStartStopLifecycle(t *testing.T) {
	s := newTestScheduler(t)

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error starting: %v", err)
	}
	if err := s.Start(); !errors.Is(err, models.ErrSchedulerRunning) {
		t.Errorf("expected ErrSchedulerRunning on double start, got %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected error stopping: %v", err)
	}
	if err := s.Stop(); !errors.Is(err, models.ErrSchedulerStopped) {
		t.Errorf("expected ErrSchedulerStopped on double stop, got %v", err)
	}
	// Restart must replace the trigger, not duplicate it.
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error restarting: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected error stopping after restart: %v", err)
	}
}

func TestSchedulerInvalidScheduleTime(t *testing.T) {
	for _, bad := range []string{"8am", "25:00", "08:61", "-1:30"} {
		checker := NewChecker(StaticSource(nil), nil)
		s := NewWakeScheduler(checker, WithScheduleTime(bad))
		if err := s.Start(); !errors.Is(err, models.ErrInvalidSchedule) {
			t.Errorf("schedule %q: expected ErrInvalidSchedule, got %v", bad, err)
		}
	}
}

func TestSchedulerStats(t *testing.T) {
	s := newTestScheduler(t)

	stats := s.Stats()
	if stats.IsRunning {
		t.Error("scheduler should report stopped before Start")
	}
	if stats.NextRun != nil {
		t.Error("NextRun should be nil while stopped")
	}
	if !stats.TestMode {
		t.Error("expected test mode in stats")
	}

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	stats = s.Stats()
	if !stats.IsRunning {
		t.Error("scheduler should report running after Start")
	}
	if stats.NextRun == nil {
		t.Fatal("expected a next run time while running")
	}
	if !stats.NextRun.After(time.Now()) {
		t.Errorf("next run should be in the future, got %v", stats.NextRun)
	}
}

func TestSchedulerTriggerImmediateCheck(t *testing.T) {
	delivered := 0
	handler := HandlerFunc(func(ctx context.Context, rem models.Reminder) error {
		delivered++
		return nil
	})
	records := []models.PregnancyRecord{
		{Phone: "254700000001", Name: "Amina", LMPDate: lmpDaysAgo(66)},
	}
	checker := NewChecker(StaticSource(records), handler, WithCheckerClock(func() time.Time { return checkNow }))
	s := NewWakeScheduler(checker)

	// An immediate check works even while the scheduler is stopped.
	summary, err := s.TriggerImmediateCheck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.RemindersSent != 1 || delivered != 1 {
		t.Errorf("expected 1 reminder delivered, got summary=%d handler=%d", summary.RemindersSent, delivered)
	}

	stats := s.Stats()
	if stats.TotalChecks != 1 {
		t.Errorf("expected 1 total check, got %d", stats.TotalChecks)
	}
	if stats.TotalRemindersSent != 1 {
		t.Errorf("expected 1 total reminder sent, got %d", stats.TotalRemindersSent)
	}
}

func TestCronSpec(t *testing.T) {
	checker := NewChecker(StaticSource(nil), nil)

	daily := NewWakeScheduler(checker, WithScheduleTime("07:30"))
	spec, err := daily.cronSpec()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec != "30 7 * * *" {
		t.Errorf("expected daily spec %q, got %q", "30 7 * * *", spec)
	}

	test := NewWakeScheduler(checker, WithTestMode(true), WithTestInterval(30*time.Second))
	spec, err = test.cronSpec()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec != "@every 30s" {
		t.Errorf("expected test spec %q, got %q", "@every 30s", spec)
	}
}
