// Package store provides storage backends for ancare sessions.
//
// This file implements the PostgreSQL-backed session repository.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/oumacare/ancare/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a SessionRepo and ReminderDedupRepo backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time interface checks.
var (
	_ SessionRepo       = (*PostgresStore)(nil)
	_ ReminderDedupRepo = (*PostgresStore)(nil)
)

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// UpsertSession stores or replaces a full session record.
func (s *PostgresStore) UpsertSession(sess models.Session) error {
	stateJSON, eventsJSON, err := marshalSession(sess)
	if err != nil {
		slog.Error("PostgresStore UpsertSession marshal failed", "error", err, "userID", sess.UserID, "sessionID", sess.SessionID)
		return err
	}

	query := `
		INSERT INTO sessions (application, user_id, session_id, schema_version, state, events, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (application, user_id, session_id) DO UPDATE SET
			schema_version = EXCLUDED.schema_version,
			state = EXCLUDED.state,
			events = EXCLUDED.events,
			updated_at = EXCLUDED.updated_at`
	_, err = s.db.Exec(query, sess.App, sess.UserID, sess.SessionID, sess.SchemaVersion,
		stateJSON, eventsJSON, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore UpsertSession failed", "error", err, "userID", sess.UserID, "sessionID", sess.SessionID)
		return fmt.Errorf("failed to upsert session %s/%s: %w", sess.UserID, sess.SessionID, err)
	}
	slog.Debug("PostgresStore UpsertSession succeeded", "userID", sess.UserID, "sessionID", sess.SessionID)
	return nil
}

// GetSession retrieves one session, or nil if it does not exist.
func (s *PostgresStore) GetSession(app, userID, sessionID string) (*models.Session, error) {
	query := `SELECT application, user_id, session_id, schema_version, state, events, created_at, updated_at
			  FROM sessions WHERE application = $1 AND user_id = $2 AND session_id = $3`

	row := s.db.QueryRow(query, app, userID, sessionID)
	sess, err := scanSessionRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSession not found", "userID", userID, "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "userID", userID, "sessionID", sessionID)
		return nil, err
	}
	return sess, nil
}

// ListSessions returns every stored session for an application.
func (s *PostgresStore) ListSessions(app string) ([]models.Session, error) {
	query := `SELECT application, user_id, session_id, schema_version, state, events, created_at, updated_at
			  FROM sessions WHERE application = $1 ORDER BY updated_at`

	rows, err := s.db.Query(query, app)
	if err != nil {
		slog.Error("PostgresStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			slog.Error("PostgresStore ListSessions scan failed", "error", err)
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("PostgresStore ListSessions succeeded", "count", len(sessions))
	return sessions, nil
}

// DeleteUserSessions removes all sessions for a user.
func (s *PostgresStore) DeleteUserSessions(app, userID string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE application = $1 AND user_id = $2`, app, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteUserSessions failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to delete sessions for %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	slog.Debug("PostgresStore DeleteUserSessions succeeded", "userID", userID, "deleted", n)
	return int(n), nil
}

// CountSessions reports the number of stored sessions for an application.
func (s *PostgresStore) CountSessions(app string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE application = $1`, app).Scan(&count)
	if err != nil {
		slog.Error("PostgresStore CountSessions failed", "error", err)
		return 0, err
	}
	return count, nil
}

// LastReminderSent returns when a reminder with the given key was last sent.
func (s *PostgresStore) LastReminderSent(phone string, visitNumber int, reminderType string) (*time.Time, error) {
	var at time.Time
	err := s.db.QueryRow(
		`SELECT last_sent_at FROM reminder_dedup WHERE phone = $1 AND visit_number = $2 AND reminder_type = $3`,
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
func (s *PostgresStore) RecordReminderSent(phone string, visitNumber int, reminderType string, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO reminder_dedup (phone, visit_number, reminder_type, last_sent_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (phone, visit_number, reminder_type) DO UPDATE SET last_sent_at = EXCLUDED.last_sent_at`,
		phone, visitNumber, reminderType, at,
	)
	if err != nil {
		return fmt.Errorf("record reminder sent failed: %w", err)
	}
	return nil
}

// Close closes the PostgreSQL connection pool.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres connection pool")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres connection pool", "error", err)
	}
	return err
}
