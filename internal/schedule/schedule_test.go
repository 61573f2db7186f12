package schedule

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/oumacare/ancare/internal/models"
)

// noon gives a current instant partway through the day, so a visit scheduled
// earlier today already reads as one day in the past.
var noon = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func lmpDaysAgo(now time.Time, days int) string {
	return now.AddDate(0, 0, -days).Format(models.LMPDateLayout)
}

func TestCalculateInvalidLMPDate(t *testing.T) {
	_, err := Calculate("01-03-2025", noon)
	if err == nil {
		t.Fatal("expected error for malformed LMP date")
	}
	if !errors.Is(err, models.ErrInvalidLMPDate) {
		t.Errorf("expected ErrInvalidLMPDate, got %v", err)
	}
}

func TestCalculateProducesEightVisits(t *testing.T) {
	sched, err := Calculate(lmpDaysAgo(noon, 70), noon)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sched.TotalVisits != 8 || len(sched.Visits) != 8 {
		t.Fatalf("expected 8 visits, got total=%d len=%d", sched.TotalVisits, len(sched.Visits))
	}
	lmp, _ := time.ParseInLocation(models.LMPDateLayout, sched.LMPDate, time.UTC)
	for i, visit := range sched.Visits {
		if visit.VisitNumber != i+1 {
			t.Errorf("visit %d: wrong visit number %d", i, visit.VisitNumber)
		}
		if visit.Week != models.VisitWeeks[i] {
			t.Errorf("visit %d: expected week %d, got %d", i+1, models.VisitWeeks[i], visit.Week)
		}
		want := lmp.AddDate(0, 0, visit.Week*7).Format(models.LMPDateLayout)
		if visit.ScheduledDate != want {
			t.Errorf("visit %d: expected date %s, got %s", i+1, want, visit.ScheduledDate)
		}
	}
}

func TestCalculateIsPure(t *testing.T) {
	lmp := lmpDaysAgo(noon, 154)
	first, err := Calculate(lmp, noon)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Calculate(lmp, noon)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different schedules")
	}
}

func TestCalculateNineWeeksPregnant(t *testing.T) {
	// First visit (week 10) is one week ahead.
	midnight := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	sched, err := Calculate(lmpDaysAgo(midnight, 63), midnight)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sched.GestationalWeeks != 9 {
		t.Errorf("expected 9 gestational weeks, got %d", sched.GestationalWeeks)
	}
	if sched.NextVisit == nil {
		t.Fatal("expected a next visit")
	}
	if sched.NextVisit.VisitNumber != 1 || sched.NextVisit.DaysUntil != 7 {
		t.Errorf("expected visit 1 in 7 days, got visit %d in %d days",
			sched.NextVisit.VisitNumber, sched.NextVisit.DaysUntil)
	}
	if sched.NextVisit.Status != models.VisitStatusUpcoming {
		t.Errorf("expected upcoming status, got %s", sched.NextVisit.Status)
	}
	if len(sched.OverdueVisits) != 0 {
		t.Errorf("expected no overdue visits, got %d", len(sched.OverdueVisits))
	}
}

func TestCalculateTwentyWeeksPregnant(t *testing.T) {
	// Visit 2 (week 20) falls today; checked at noon it reads as due_now.
	// Visit 1 (week 10) is 10 weeks past and overdue.
	sched, err := Calculate(lmpDaysAgo(noon, 140), noon)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sched.GestationalWeeks != 20 {
		t.Errorf("expected 20 gestational weeks, got %d", sched.GestationalWeeks)
	}
	if sched.NextVisit == nil {
		t.Fatal("expected a next visit")
	}
	if sched.NextVisit.VisitNumber != 2 {
		t.Errorf("expected next visit 2, got %d", sched.NextVisit.VisitNumber)
	}
	if sched.NextVisit.Status != models.VisitStatusDueNow {
		t.Errorf("expected due_now, got %s", sched.NextVisit.Status)
	}
	if len(sched.OverdueVisits) != 1 || sched.OverdueVisits[0].VisitNumber != 1 {
		t.Fatalf("expected visit 1 overdue, got %+v", sched.OverdueVisits)
	}
	if sched.OverdueVisits[0].DaysOverdue != 71 {
		t.Errorf("expected 71 days overdue, got %d", sched.OverdueVisits[0].DaysOverdue)
	}
}

func TestCalculateThirtySixWeeksPregnant(t *testing.T) {
	sched, err := Calculate(lmpDaysAgo(noon, 252), noon)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sched.OverdueVisits) != 5 {
		t.Fatalf("expected visits 1-5 overdue, got %d", len(sched.OverdueVisits))
	}
	for i, visit := range sched.OverdueVisits {
		if visit.VisitNumber != i+1 {
			t.Errorf("overdue slot %d: expected visit %d, got %d", i, i+1, visit.VisitNumber)
		}
		if visit.DaysOverdue != -visit.DaysUntil {
			t.Errorf("visit %d: DaysOverdue %d does not mirror DaysUntil %d",
				visit.VisitNumber, visit.DaysOverdue, visit.DaysUntil)
		}
	}
	if sched.NextVisit == nil || sched.NextVisit.VisitNumber != 6 {
		t.Fatalf("expected next visit 6, got %+v", sched.NextVisit)
	}
	if sched.NextVisit.Status != models.VisitStatusDueNow {
		t.Errorf("expected due_now for week-36 visit, got %s", sched.NextVisit.Status)
	}
	// Weeks 38 and 40 remain in the future.
	if got := sched.Visits[6].Status; got != models.VisitStatusUpcoming {
		t.Errorf("expected week-38 visit upcoming, got %s", got)
	}
	if got := sched.Visits[7].Status; got != models.VisitStatusScheduled {
		t.Errorf("expected week-40 visit scheduled, got %s", got)
	}
}

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		daysUntil int
		want      models.VisitStatus
	}{
		{-8, models.VisitStatusOverdue},
		{-7, models.VisitStatusDueNow},
		{-1, models.VisitStatusDueNow},
		{0, models.VisitStatusUpcoming},
		{14, models.VisitStatusUpcoming},
		{15, models.VisitStatusScheduled},
	}
	for _, tc := range cases {
		if got := classify(tc.daysUntil); got != tc.want {
			t.Errorf("classify(%d): expected %s, got %s", tc.daysUntil, tc.want, got)
		}
	}
}

func TestFloorDays(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{12 * time.Hour, 0},
		{24 * time.Hour, 1},
		{-12 * time.Hour, -1},
		{-24 * time.Hour, -1},
		{-36 * time.Hour, -2},
	}
	for _, tc := range cases {
		if got := floorDays(tc.d); got != tc.want {
			t.Errorf("floorDays(%s): expected %d, got %d", tc.d, tc.want, got)
		}
	}
}

func TestCalculateEDD(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	result, err := CalculateEDD("2025-01-01", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EDD != "2025-10-08" {
		t.Errorf("expected EDD 2025-10-08, got %s", result.EDD)
	}
	if result.GestationalWeeks != 10 {
		t.Errorf("expected 10 gestational weeks, got %d", result.GestationalWeeks)
	}
}

func TestCalculateEDDInvalidDate(t *testing.T) {
	_, err := CalculateEDD("not-a-date", noon)
	if !errors.Is(err, models.ErrInvalidLMPDate) {
		t.Errorf("expected ErrInvalidLMPDate, got %v", err)
	}
}
