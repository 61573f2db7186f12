// Package store provides storage backends for ancare sessions.
//
// This file implements the SQLite-backed session repository.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oumacare/ancare/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a SessionRepo and ReminderDedupRepo backed by a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time interface checks.
var (
	_ SessionRepo       = (*SQLiteStore)(nil)
	_ ReminderDedupRepo = (*SQLiteStore)(nil)
)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// UpsertSession stores or replaces a full session record.
func (s *SQLiteStore) UpsertSession(sess models.Session) error {
	stateJSON, eventsJSON, err := marshalSession(sess)
	if err != nil {
		slog.Error("SQLiteStore UpsertSession marshal failed", "error", err, "userID", sess.UserID, "sessionID", sess.SessionID)
		return err
	}

	query := `
		INSERT OR REPLACE INTO sessions (application, user_id, session_id, schema_version, state, events, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query, sess.App, sess.UserID, sess.SessionID, sess.SchemaVersion,
		stateJSON, eventsJSON, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore UpsertSession failed", "error", err, "userID", sess.UserID, "sessionID", sess.SessionID)
		return fmt.Errorf("failed to upsert session %s/%s: %w", sess.UserID, sess.SessionID, err)
	}
	slog.Debug("SQLiteStore UpsertSession succeeded", "userID", sess.UserID, "sessionID", sess.SessionID)
	return nil
}

// GetSession retrieves one session, or nil if it does not exist.
func (s *SQLiteStore) GetSession(app, userID, sessionID string) (*models.Session, error) {
	query := `SELECT application, user_id, session_id, schema_version, state, events, created_at, updated_at
			  FROM sessions WHERE application = ? AND user_id = ? AND session_id = ?`

	row := s.db.QueryRow(query, app, userID, sessionID)
	sess, err := scanSessionRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSession not found", "userID", userID, "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "userID", userID, "sessionID", sessionID)
		return nil, err
	}
	return sess, nil
}

// ListSessions returns every stored session for an application, oldest
// update first.
func (s *SQLiteStore) ListSessions(app string) ([]models.Session, error) {
	query := `SELECT application, user_id, session_id, schema_version, state, events, created_at, updated_at
			  FROM sessions WHERE application = ? ORDER BY updated_at`

	rows, err := s.db.Query(query, app)
	if err != nil {
		slog.Error("SQLiteStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			slog.Error("SQLiteStore ListSessions scan failed", "error", err)
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("SQLiteStore ListSessions succeeded", "count", len(sessions))
	return sessions, nil
}

// DeleteUserSessions removes all sessions for a user.
func (s *SQLiteStore) DeleteUserSessions(app, userID string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE application = ? AND user_id = ?`, app, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteUserSessions failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to delete sessions for %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	slog.Debug("SQLiteStore DeleteUserSessions succeeded", "userID", userID, "deleted", n)
	return int(n), nil
}

// CountSessions reports the number of stored sessions for an application.
func (s *SQLiteStore) CountSessions(app string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE application = ?`, app).Scan(&count)
	if err != nil {
		slog.Error("SQLiteStore CountSessions failed", "error", err)
		return 0, err
	}
	return count, nil
}

// LastReminderSent returns when a reminder with the given key was last sent.
func (s *SQLiteStore) LastReminderSent(phone string, visitNumber int, reminderType string) (*time.Time, error) {
	var at time.Time
	err := s.db.QueryRow(
		`SELECT last_sent_at FROM reminder_dedup WHERE phone = ? AND visit_number = ? AND reminder_type = ?`,
		phone, visitNumber, reminderType,
	).Scan(&at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reminder dedup lookup failed: %w", err)
	}
	return &at, nil
}

// RecordReminderSent upserts the last-sent timestamp for a reminder key.
func (s *SQLiteStore) RecordReminderSent(phone string, visitNumber int, reminderType string, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO reminder_dedup (phone, visit_number, reminder_type, last_sent_at) VALUES (?, ?, ?, ?)`,
		phone, visitNumber, reminderType, at,
	)
	if err != nil {
		return fmt.Errorf("record reminder sent failed: %w", err)
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
