// Package models defines the core data structures for ancare.
//
// It includes pregnancy records, the derived ANC visit schedule, reminders,
// and the shared error variables used across modules.
package models

import (
	"errors"
	"fmt"
	"time"
)

// LMPDateLayout is the calendar date format used for LMP and visit dates.
const LMPDateLayout = "2006-01-02"

// VisitWeeks lists the fixed gestational week offsets for the 8 ANC visits,
// in ascending order. Visit numbers are 1-based indexes into this table.
var VisitWeeks = []int{10, 20, 26, 30, 34, 36, 38, 40}

// Error variables for better error handling and testability
var (
	ErrInvalidLMPDate       = errors.New("invalid LMP date, expected YYYY-MM-DD format")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionNotPaused     = errors.New("session is not paused")
	ErrSchedulerRunning     = errors.New("scheduler already running")
	ErrSchedulerStopped     = errors.New("scheduler not running")
	ErrEmptyUserID          = errors.New("user ID cannot be empty")
	ErrNoSessionForUser     = errors.New("no session exists for user")
	ErrInvalidSchedule      = errors.New("invalid schedule time, expected HH:MM format")
	ErrEmptyQuery           = errors.New("search query cannot be empty")
	ErrServiceStopped       = errors.New("messaging service has been stopped")
	ErrNoRuntimeResponse    = errors.New("no choices returned from runtime")
	ErrRecipientTooShort    = errors.New("recipient phone number is too short")
	ErrEmptyRecipient       = errors.New("recipient cannot be empty")
	ErrReminderNotDelivered = errors.New("reminder was not delivered")
)

// RecordStatus represents the lifecycle status of a pregnancy record.
type RecordStatus string

const (
	// RecordStatusActive indicates an ongoing pregnancy under care.
	RecordStatusActive RecordStatus = "active"
	// RecordStatusCompleted indicates the pregnancy has concluded.
	RecordStatusCompleted RecordStatus = "completed"
	// RecordStatusInactive indicates care was interrupted or declined.
	RecordStatusInactive RecordStatus = "inactive"
	// RecordStatusArchived indicates the record is retained for history only.
	RecordStatusArchived RecordStatus = "archived"
)

// IsValidRecordStatus checks if the given record status is supported.
func IsValidRecordStatus(s RecordStatus) bool {
	switch s {
	case RecordStatusActive, RecordStatusCompleted, RecordStatusInactive, RecordStatusArchived:
		return true
	default:
		return false
	}
}

// PregnancyRecord is a patient record as read from the external record
// source. The reminder engine never writes these; the phone number is the
// unique key.
type PregnancyRecord struct {
	Phone     string            `json:"phone"`
	Name      string            `json:"name"`
	Age       int               `json:"age,omitempty"`
	LMPDate   string            `json:"lmp_date"`
	EDD       string            `json:"edd,omitempty"`
	Location  string            `json:"location,omitempty"`
	Country   string            `json:"country,omitempty"`
	RiskLevel string            `json:"risk_level,omitempty"`
	Status    RecordStatus      `json:"status,omitempty"`
	Medical   map[string]string `json:"medical,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitzero"`
	UpdatedAt time.Time         `json:"updated_at,omitzero"`
}

// Validate checks the fields the reminder engine depends on.
func (r *PregnancyRecord) Validate() error {
	if r.Phone == "" {
		return errors.New("phone is required")
	}
	if r.LMPDate == "" {
		return errors.New("lmp_date is required")
	}
	if _, err := time.Parse(LMPDateLayout, r.LMPDate); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLMPDate, r.LMPDate)
	}
	if r.Status != "" && !IsValidRecordStatus(r.Status) {
		return fmt.Errorf("invalid record status %q", r.Status)
	}
	return nil
}

// VisitStatus classifies a single ANC visit relative to the current instant.
type VisitStatus string

const (
	// VisitStatusScheduled is a visit more than 14 days in the future.
	VisitStatusScheduled VisitStatus = "scheduled"
	// VisitStatusUpcoming is a visit between 0 and 14 days away.
	VisitStatusUpcoming VisitStatus = "upcoming"
	// VisitStatusDueNow is a visit up to 7 days in the recent past.
	VisitStatusDueNow VisitStatus = "due_now"
	// VisitStatusOverdue is a visit more than 7 days past its date.
	VisitStatusOverdue VisitStatus = "overdue"
)

// ANCVisit is one entry of the derived visit schedule. DaysUntil is signed;
// negative values mean the scheduled date is in the past. DaysOverdue is
// only populated for overdue visits.
type ANCVisit struct {
	VisitNumber   int         `json:"visit_number"`
	Week          int         `json:"week"`
	ScheduledDate string      `json:"scheduled_date"`
	Status        VisitStatus `json:"status"`
	DaysUntil     int         `json:"days_until"`
	DaysOverdue   int         `json:"days_overdue,omitempty"`
}

// ANCSchedule is the full result of a schedule calculation for one record.
type ANCSchedule struct {
	LMPDate          string     `json:"lmp_date"`
	GestationalWeeks int        `json:"current_gestational_age"`
	TotalVisits      int        `json:"total_visits"`
	Visits           []ANCVisit `json:"anc_schedule"`
	NextVisit        *ANCVisit  `json:"next_visit,omitempty"`
	OverdueVisits    []ANCVisit `json:"overdue_visits,omitempty"`
}

// EDDResult holds an estimated due date calculation (Naegele's rule).
type EDDResult struct {
	EDD              string `json:"edd"`
	GestationalWeeks int    `json:"gestational_weeks"`
}

// ReminderType distinguishes upcoming-visit reminders from overdue ones.
type ReminderType string

const (
	// ReminderTypeUpcoming is sent when the next visit is within 7 days.
	ReminderTypeUpcoming ReminderType = "upcoming"
	// ReminderTypeOverdue is sent for each visit more than 7 days past due.
	ReminderTypeOverdue ReminderType = "overdue"
)

// Reminder is an ephemeral unit of work constructed during one aggregation
// pass and handed to a delivery handler. It is never persisted.
type Reminder struct {
	Type    ReminderType    `json:"type"`
	Record  PregnancyRecord `json:"record"`
	Visit   ANCVisit        `json:"visit"`
	Message string          `json:"message"`
}

// CheckSummary reports the outcome of one reminder check run.
type CheckSummary struct {
	RecordsChecked      int   `json:"records_checked"`
	RemindersSent       int   `json:"reminders_sent"`
	RemindersFailed     int   `json:"reminders_failed,omitempty"`
	RemindersSuppressed int   `json:"reminders_suppressed,omitempty"`
	CheckNumber         int64 `json:"check_number"`
}

// SchedulerStats is the stats snapshot exposed by the wake scheduler.
type SchedulerStats struct {
	IsRunning          bool       `json:"is_running"`
	TotalChecks        int64      `json:"total_checks"`
	TotalRemindersSent int64      `json:"total_reminders_sent"`
	TestMode           bool       `json:"test_mode"`
	ScheduleTime       string     `json:"schedule_time"`
	NextRun            *time.Time `json:"next_run,omitempty"`
}

// MemoryStats is the stats snapshot exposed by the session/memory store.
type MemoryStats struct {
	TotalSessions int `json:"total_sessions"`
	TotalUsers    int `json:"total_users"`
	CacheSize     int `json:"cache_size"`
	StoreSize     int `json:"store_size"`
}

// MemoryFragment is one keyword-recall match from stored conversation text.
type MemoryFragment struct {
	SessionID string    `json:"session_id"`
	Role      EventRole `json:"role"`
	Text      string    `json:"text"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope for the stats surface.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
