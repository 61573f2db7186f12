package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oumacare/ancare/internal/models"
	"github.com/oumacare/ancare/internal/schedule"
	"github.com/oumacare/ancare/internal/store"
)

// UpcomingReminderWindowDays bounds how close the next visit must be before
// an upcoming reminder is emitted.
const UpcomingReminderWindowDays = 7

// Default tuning for the dispatch loop.
const (
	// DefaultDeliveryTimeout caps one delivery-handler call so a stuck
	// external runtime cannot starve the scheduler.
	DefaultDeliveryTimeout = 30 * time.Second
	// DefaultDedupCooldown is the window within which a reminder for the
	// same (patient, visit, type) key is not re-sent.
	DefaultDedupCooldown = 24 * time.Hour
)

// Checker is the reminder aggregator: it scans the active pregnancy records,
// computes each schedule, and dispatches the due reminders sequentially
// through the configured delivery handler.
type Checker struct {
	source          RecordSource
	handler         Handler
	dedup           store.ReminderDedupRepo
	cooldown        time.Duration
	deliveryTimeout time.Duration
	now             func() time.Time

	checkCount atomic.Int64
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithDedup enables duplicate-reminder suppression backed by the given repo.
// A reminder for the same (patient, visit, type) key is skipped if one was
// sent within the cool-down window.
func WithDedup(repo store.ReminderDedupRepo, cooldown time.Duration) CheckerOption {
	return func(c *Checker) {
		c.dedup = repo
		if cooldown > 0 {
			c.cooldown = cooldown
		}
	}
}

// WithDeliveryTimeout sets the per-delivery deadline.
func WithDeliveryTimeout(d time.Duration) CheckerOption {
	return func(c *Checker) {
		if d > 0 {
			c.deliveryTimeout = d
		}
	}
}

// WithCheckerClock overrides the clock, for tests.
func WithCheckerClock(now func() time.Time) CheckerOption {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

// NewChecker creates a reminder checker. A nil handler falls back to
// LogHandler; duplicate suppression is off unless WithDedup is given.
func NewChecker(source RecordSource, handler Handler, opts ...CheckerOption) *Checker {
	if handler == nil {
		handler = LogHandler{}
	}
	c := &Checker{
		source:          source,
		handler:         handler,
		cooldown:        DefaultDedupCooldown,
		deliveryTimeout: DefaultDeliveryTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckCount returns how many checks have run so far.
func (c *Checker) CheckCount() int64 { return c.checkCount.Load() }

// RunCheck performs one reminder check: fetch records, compute schedules,
// build the reminder set, and dispatch it sequentially. A record-fetch
// failure aborts the run and is returned as the run-level error; individual
// delivery failures are logged and counted but never abort the batch.
func (c *Checker) RunCheck(ctx context.Context) (models.CheckSummary, error) {
	checkNumber := c.checkCount.Add(1)
	summary := models.CheckSummary{CheckNumber: checkNumber}
	slog.Info("starting ANC reminder check", "check", checkNumber)

	records, err := c.source.Fetch(ctx)
	if err != nil {
		slog.Error("ANC reminder check aborted, record fetch failed", "check", checkNumber, "error", err)
		return summary, fmt.Errorf("fetch pregnancy records: %w", err)
	}
	summary.RecordsChecked = len(records)
	slog.Info("fetched active pregnancy records", "check", checkNumber, "count", len(records))

	now := c.now()
	reminders := c.buildReminders(records, now)
	slog.Info("dispatching reminders", "check", checkNumber, "count", len(reminders))

	for _, rem := range reminders {
		if c.suppressed(rem, now) {
			summary.RemindersSuppressed++
			continue
		}

		dctx, cancel := context.WithTimeout(ctx, c.deliveryTimeout)
		err := c.handler.Deliver(dctx, rem)
		cancel()
		if err != nil {
			slog.Error("failed to send reminder", "check", checkNumber, "to", rem.Record.Phone, "type", rem.Type, "error", err)
			summary.RemindersFailed++
			continue
		}

		summary.RemindersSent++
		slog.Info("reminder sent", "check", checkNumber, "to", rem.Record.Phone, "type", rem.Type, "visit", rem.Visit.VisitNumber)
		c.recordSent(rem, now)
	}

	slog.Info("ANC reminder check complete",
		"check", checkNumber,
		"records_checked", summary.RecordsChecked,
		"reminders_sent", summary.RemindersSent,
		"reminders_failed", summary.RemindersFailed,
		"reminders_suppressed", summary.RemindersSuppressed)
	return summary, nil
}

// buildReminders computes the reminder set for one pass. Each record can
// contribute at most one upcoming reminder plus one overdue reminder per
// overdue visit.
func (c *Checker) buildReminders(records []models.PregnancyRecord, now time.Time) []models.Reminder {
	var reminders []models.Reminder
	for _, record := range records {
		sched, err := schedule.Calculate(record.LMPDate, now)
		if err != nil {
			slog.Warn("failed to calculate schedule for record", "phone", record.Phone, "error", err)
			continue
		}

		if next := sched.NextVisit; next != nil && next.DaysUntil >= 0 && next.DaysUntil <= UpcomingReminderWindowDays {
			reminders = append(reminders, models.Reminder{
				Type:   models.ReminderTypeUpcoming,
				Record: record,
				Visit:  *next,
				Message: fmt.Sprintf("Reminder: You have an ANC visit coming up in %d days (Visit #%d on %s)",
					next.DaysUntil, next.VisitNumber, next.ScheduledDate),
			})
		}

		for _, overdue := range sched.OverdueVisits {
			reminders = append(reminders, models.Reminder{
				Type:   models.ReminderTypeOverdue,
				Record: record,
				Visit:  overdue,
				Message: fmt.Sprintf("Important: Your ANC Visit #%d is %d days overdue. Please schedule an appointment.",
					overdue.VisitNumber, overdue.DaysOverdue),
			})
		}
	}
	return reminders
}

// suppressed reports whether the dedup repo has a send for this key inside
// the cool-down window. Dedup lookup failures fail open: a reminder is sent
// rather than silently dropped.
func (c *Checker) suppressed(rem models.Reminder, now time.Time) bool {
	if c.dedup == nil {
		return false
	}
	last, err := c.dedup.LastReminderSent(rem.Record.Phone, rem.Visit.VisitNumber, string(rem.Type))
	if err != nil {
		slog.Error("reminder dedup lookup failed, sending anyway", "to", rem.Record.Phone, "error", err)
		return false
	}
	if last == nil || now.Sub(*last) >= c.cooldown {
		return false
	}
	slog.Debug("reminder suppressed within cooldown",
		"to", rem.Record.Phone, "visit", rem.Visit.VisitNumber, "type", rem.Type, "last_sent", *last)
	return true
}

func (c *Checker) recordSent(rem models.Reminder, now time.Time) {
	if c.dedup == nil {
		return
	}
	if err := c.dedup.RecordReminderSent(rem.Record.Phone, rem.Visit.VisitNumber, string(rem.Type), now); err != nil {
		slog.Error("failed to record reminder send for dedup", "to", rem.Record.Phone, "error", err)
	}
}
