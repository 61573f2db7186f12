// Package store provides storage backends for ancare sessions.
//
// It includes SQLite and PostgreSQL backed repositories with an in-memory
// implementation for tests and DSN-less runs, plus the write-through
// MemoryService that callers use for session recall.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/oumacare/ancare/internal/models"
)

// SessionRepo is the durable backing store for session records, keyed
// uniquely by the (application, user, session) triple.
type SessionRepo interface {
	// UpsertSession stores or replaces a full session record.
	UpsertSession(s models.Session) error

	// GetSession retrieves one session, or nil if it does not exist.
	GetSession(app, userID, sessionID string) (*models.Session, error)

	// ListSessions returns every stored session for an application,
	// used to warm the in-process cache on startup.
	ListSessions(app string) ([]models.Session, error)

	// DeleteUserSessions removes all sessions for a user and reports how
	// many were deleted.
	DeleteUserSessions(app, userID string) (int, error)

	// CountSessions reports the number of stored sessions for an application.
	CountSessions(app string) (int, error)

	// Close releases the underlying resources.
	Close() error
}

// ReminderDedupRepo records when a reminder for a specific visit was last
// sent, so repeated scheduler runs can suppress duplicates within a
// cool-down window.
type ReminderDedupRepo interface {
	// LastReminderSent returns when a reminder with the given key was last
	// sent, or nil if never.
	LastReminderSent(phone string, visitNumber int, reminderType string) (*time.Time, error)

	// RecordReminderSent upserts the last-sent timestamp for a key.
	RecordReminderSent(phone string, visitNumber int, reminderType string, at time.Time) error
}

// InMemoryStore keeps sessions and dedup records in process memory. It backs
// tests and configurations without a database DSN.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[models.SessionKey]models.Session
	dedup    map[dedupKey]time.Time
}

type dedupKey struct {
	phone        string
	visitNumber  int
	reminderType string
}

// Compile-time interface checks.
var (
	_ SessionRepo       = (*InMemoryStore)(nil)
	_ ReminderDedupRepo = (*InMemoryStore)(nil)
)

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[models.SessionKey]models.Session),
		dedup:    make(map[dedupKey]time.Time),
	}
}

func (s *InMemoryStore) UpsertSession(sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Key()] = *sess.Clone()
	return nil
}

func (s *InMemoryStore) GetSession(app, userID, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[models.SessionKey{App: app, UserID: userID, SessionID: sessionID}]
	if !ok {
		return nil, nil
	}
	return sess.Clone(), nil
}

func (s *InMemoryStore) ListSessions(app string) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Session
	for key, sess := range s.sessions {
		if key.App == app {
			out = append(out, *sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteUserSessions(app, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key := range s.sessions {
		if key.App == app && key.UserID == userID {
			delete(s.sessions, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemoryStore) CountSessions(app string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for key := range s.sessions {
		if key.App == app {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) LastReminderSent(phone string, visitNumber int, reminderType string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.dedup[dedupKey{phone: phone, visitNumber: visitNumber, reminderType: reminderType}]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

func (s *InMemoryStore) RecordReminderSent(phone string, visitNumber int, reminderType string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dedup[dedupKey{phone: phone, visitNumber: visitNumber, reminderType: reminderType}] = at
	return nil
}
