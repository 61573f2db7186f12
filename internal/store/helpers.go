package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/oumacare/ancare/internal/models"
)

// marshalSession serializes the structured session columns. State and events
// are stored separately so the record stays readable across schema versions.
func marshalSession(sess models.Session) (stateJSON, eventsJSON string, err error) {
	stateBytes, err := json.Marshal(sess.State)
	if err != nil {
		return "", "", fmt.Errorf("marshal session state: %w", err)
	}
	events := sess.Events
	if events == nil {
		events = []models.SessionEvent{}
	}
	eventBytes, err := json.Marshal(events)
	if err != nil {
		return "", "", fmt.Errorf("marshal session events: %w", err)
	}
	return string(stateBytes), string(eventBytes), nil
}

func unmarshalSession(sess *models.Session, stateJSON, eventsJSON string) error {
	if stateJSON != "" {
		if err := json.Unmarshal([]byte(stateJSON), &sess.State); err != nil {
			return fmt.Errorf("unmarshal session state: %w", err)
		}
	}
	if eventsJSON != "" {
		if err := json.Unmarshal([]byte(eventsJSON), &sess.Events); err != nil {
			return fmt.Errorf("unmarshal session events: %w", err)
		}
	}
	return nil
}

// scanSession scans a session from sql.Rows.
func scanSession(rows *sql.Rows) (*models.Session, error) {
	var sess models.Session
	var stateJSON, eventsJSON string
	err := rows.Scan(&sess.App, &sess.UserID, &sess.SessionID, &sess.SchemaVersion,
		&stateJSON, &eventsJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan session failed: %w", err)
	}
	if err := unmarshalSession(&sess, stateJSON, eventsJSON); err != nil {
		return nil, err
	}
	return &sess, nil
}

// scanSessionRow scans a session from a single sql.Row. Returns
// sql.ErrNoRows unchanged so callers can map it to a nil session.
func scanSessionRow(row *sql.Row) (*models.Session, error) {
	var sess models.Session
	var stateJSON, eventsJSON string
	err := row.Scan(&sess.App, &sess.UserID, &sess.SessionID, &sess.SchemaVersion,
		&stateJSON, &eventsJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalSession(&sess, stateJSON, eventsJSON); err != nil {
		return nil, err
	}
	return &sess, nil
}
