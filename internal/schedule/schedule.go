// Package schedule computes the ANC visit schedule for a pregnancy.
//
// All calculations derive from a single anchor date, the last menstrual
// period (LMP). The functions are pure: identical (LMP, now) inputs always
// yield identical output.
package schedule

import (
	"fmt"
	"time"

	"github.com/oumacare/ancare/internal/models"
)

// Classification boundaries, in days relative to the scheduled visit date.
const (
	// OverdueThresholdDays is how many days past due a visit may be before
	// it is flagged overdue rather than due_now.
	OverdueThresholdDays = 7
	// UpcomingWindowDays is how far ahead a visit counts as upcoming.
	UpcomingWindowDays = 14
)

// EDDOffsetDays is Naegele's rule: the estimated due date is LMP + 280 days.
const EDDOffsetDays = 280

const dayDuration = 24 * time.Hour

// Calculate returns the full 8-visit ANC schedule for the given LMP date,
// classified relative to now. A malformed LMP date yields an error wrapping
// models.ErrInvalidLMPDate and no visit list; the date is never guessed.
func Calculate(lmpDate string, now time.Time) (*models.ANCSchedule, error) {
	lmp, err := time.ParseInLocation(models.LMPDateLayout, lmpDate, now.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidLMPDate, lmpDate)
	}

	result := &models.ANCSchedule{
		LMPDate:          lmpDate,
		GestationalWeeks: floorDays(now.Sub(lmp)) / 7,
		TotalVisits:      len(models.VisitWeeks),
		Visits:           make([]models.ANCVisit, 0, len(models.VisitWeeks)),
	}

	for i, week := range models.VisitWeeks {
		scheduled := lmp.AddDate(0, 0, week*7)
		days := floorDays(scheduled.Sub(now))
		visit := models.ANCVisit{
			VisitNumber:   i + 1,
			Week:          week,
			ScheduledDate: scheduled.Format(models.LMPDateLayout),
			Status:        classify(days),
			DaysUntil:     days,
		}
		if visit.Status == models.VisitStatusOverdue {
			visit.DaysOverdue = -days
			result.OverdueVisits = append(result.OverdueVisits, visit)
		}
		if result.NextVisit == nil &&
			(visit.Status == models.VisitStatusUpcoming || visit.Status == models.VisitStatusDueNow) {
			v := visit
			result.NextVisit = &v
		}
		result.Visits = append(result.Visits, visit)
	}

	return result, nil
}

// CalculateEDD returns the estimated due date (LMP + 280 days) and the
// current gestational age in whole weeks. Same error contract as Calculate.
func CalculateEDD(lmpDate string, now time.Time) (*models.EDDResult, error) {
	lmp, err := time.ParseInLocation(models.LMPDateLayout, lmpDate, now.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidLMPDate, lmpDate)
	}
	return &models.EDDResult{
		EDD:              lmp.AddDate(0, 0, EDDOffsetDays).Format(models.LMPDateLayout),
		GestationalWeeks: floorDays(now.Sub(lmp)) / 7,
	}, nil
}

// classify maps a signed day delta to a visit status. The rules are
// evaluated in order; boundaries at -7, 0 and 14 are exact.
func classify(daysUntil int) models.VisitStatus {
	switch {
	case daysUntil < -OverdueThresholdDays:
		return models.VisitStatusOverdue
	case daysUntil < 0:
		return models.VisitStatusDueNow
	case daysUntil <= UpcomingWindowDays:
		return models.VisitStatusUpcoming
	default:
		return models.VisitStatusScheduled
	}
}

// floorDays converts a duration to whole days, rounding toward negative
// infinity so that a visit scheduled earlier today already reads as -1.
func floorDays(d time.Duration) int {
	days := int(d / dayDuration)
	if d < 0 && d%dayDuration != 0 {
		days--
	}
	return days
}
