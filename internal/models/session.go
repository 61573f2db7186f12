// Package models defines session structures shared between the memory store
// and the resume coordinator.
package models

import "time"

// SessionSchemaVersion is the current version of the persisted session
// record format. Readers must tolerate older versions.
const SessionSchemaVersion = 1

// EventRole identifies who authored a session event.
type EventRole string

const (
	// RolePatient marks a message written by the patient.
	RolePatient EventRole = "patient"
	// RoleAgent marks a reply from the conversational runtime.
	RoleAgent EventRole = "agent"
	// RoleSystem marks an engine-authored message such as a reminder.
	RoleSystem EventRole = "system"
)

// SessionEvent is one entry of a session's ordered message log.
type SessionEvent struct {
	Role      EventRole `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// PauseInfo carries the fields that are only meaningful while a session is
// paused. A nil PauseInfo on SessionState means the session is active.
type PauseInfo struct {
	Reason    string    `json:"reason"`
	Since     time.Time `json:"since"`
	LastTopic string    `json:"last_topic,omitempty"`
}

// SessionState is the mutable per-session state map, with the pause flag
// modeled as a tagged value rather than loose booleans.
type SessionState struct {
	Pause            *PauseInfo        `json:"pause,omitempty"`
	SystemInitiated  bool              `json:"system_initiated,omitempty"`
	LastReminderTime *time.Time        `json:"last_reminder_time,omitempty"`
	Data             map[string]string `json:"data,omitempty"`
}

// Paused reports whether the session is currently paused.
func (s *SessionState) Paused() bool { return s.Pause != nil }

// SessionKey uniquely identifies a session.
type SessionKey struct {
	App       string
	UserID    string
	SessionID string
}

// Session is a durable conversation record keyed by (application, user,
// session). It is created on first interaction or first reminder delivery
// and mutated on every turn.
type Session struct {
	SchemaVersion int            `json:"schema_version"`
	App           string         `json:"application"`
	UserID        string         `json:"user_id"`
	SessionID     string         `json:"session_id"`
	State         SessionState   `json:"state"`
	Events        []SessionEvent `json:"events"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewSession creates an empty session at the current schema version.
func NewSession(app, userID, sessionID string, now time.Time) *Session {
	return &Session{
		SchemaVersion: SessionSchemaVersion,
		App:           app,
		UserID:        userID,
		SessionID:     sessionID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Key returns the unique (application, user, session) triple.
func (s *Session) Key() SessionKey {
	return SessionKey{App: s.App, UserID: s.UserID, SessionID: s.SessionID}
}

// AppendEvent adds an entry to the session's message log and bumps the
// updated timestamp.
func (s *Session) AppendEvent(role EventRole, text string, now time.Time) {
	s.Events = append(s.Events, SessionEvent{Role: role, Text: text, Timestamp: now})
	s.UpdatedAt = now
}

// Clone returns a deep copy so cached sessions can be handed out without
// sharing the events slice or state map.
func (s *Session) Clone() *Session {
	c := *s
	if s.Events != nil {
		c.Events = make([]SessionEvent, len(s.Events))
		copy(c.Events, s.Events)
	}
	if s.State.Pause != nil {
		p := *s.State.Pause
		c.State.Pause = &p
	}
	if s.State.LastReminderTime != nil {
		t := *s.State.LastReminderTime
		c.State.LastReminderTime = &t
	}
	if s.State.Data != nil {
		c.State.Data = make(map[string]string, len(s.State.Data))
		for k, v := range s.State.Data {
			c.State.Data[k] = v
		}
	}
	return &c
}
