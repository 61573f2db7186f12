// Package store provides the write-through session memory service.
package store

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/oumacare/ancare/internal/models"
)

// MemoryService fronts a SessionRepo with an in-process cache. All sessions
// are loaded into the cache at startup; writes go through to the backing
// store with last-write-wins semantics.
//
// A persistence failure degrades the write to cache-only: the session stays
// visible to the running process but is lost on restart. This trades
// durability for availability on the reminder path and is logged loudly so
// operators can see it happening.
type MemoryService struct {
	app  string
	repo SessionRepo

	mu    sync.RWMutex
	cache map[models.SessionKey]*models.Session
}

// NewMemoryService creates a memory service for one application namespace.
func NewMemoryService(app string, repo SessionRepo) *MemoryService {
	return &MemoryService{
		app:   app,
		repo:  repo,
		cache: make(map[models.SessionKey]*models.Session),
	}
}

// App returns the application namespace this service serves.
func (m *MemoryService) App() string { return m.app }

// Load warms the cache with every stored session. Call once at startup.
func (m *MemoryService) Load() error {
	sessions, err := m.repo.ListSessions(m.app)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range sessions {
		sess := sessions[i]
		m.cache[sess.Key()] = &sess
	}
	slog.Info("MemoryService loaded sessions from store", "count", len(sessions))
	return nil
}

// AddSessionToMemory updates the cache and persists the session. Store
// failures are logged and swallowed; the cache keeps the write.
func (m *MemoryService) AddSessionToMemory(sess *models.Session) error {
	if sess == nil {
		return nil
	}
	copied := sess.Clone()

	m.mu.Lock()
	m.cache[copied.Key()] = copied
	m.mu.Unlock()

	if err := m.repo.UpsertSession(*copied); err != nil {
		slog.Error("MemoryService persistence failed, session retained in cache only and will be lost on restart",
			"error", err, "userID", copied.UserID, "sessionID", copied.SessionID)
		return nil
	}
	slog.Debug("MemoryService session persisted", "userID", copied.UserID, "sessionID", copied.SessionID)
	return nil
}

// GetSession returns a copy of a cached session, or nil if unknown.
func (m *MemoryService) GetSession(userID, sessionID string) *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.cache[models.SessionKey{App: m.app, UserID: userID, SessionID: sessionID}]
	if !ok {
		return nil
	}
	return sess.Clone()
}

// LatestSession returns a copy of the user's most recently updated session,
// or nil if the user has none.
func (m *MemoryService) LatestSession(userID string) *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *models.Session
	for key, sess := range m.cache {
		if key.UserID != userID {
			continue
		}
		if latest == nil || sess.UpdatedAt.After(latest.UpdatedAt) {
			latest = sess
		}
	}
	if latest == nil {
		return nil
	}
	return latest.Clone()
}

// ClearUserMemory removes all of a user's sessions from cache and store.
func (m *MemoryService) ClearUserMemory(userID string) (int, error) {
	m.mu.Lock()
	for key := range m.cache {
		if key.UserID == userID {
			delete(m.cache, key)
		}
	}
	m.mu.Unlock()

	deleted, err := m.repo.DeleteUserSessions(m.app, userID)
	if err != nil {
		slog.Error("MemoryService ClearUserMemory store delete failed", "error", err, "userID", userID)
		return 0, err
	}
	slog.Info("MemoryService cleared user memory", "userID", userID, "deleted", deleted)
	return deleted, nil
}

// SearchMemory tokenizes the query into lowercase keywords and scans every
// cached session of the user for any keyword match. This is keyword recall,
// not semantic search.
func (m *MemoryService) SearchMemory(userID, query string) []models.MemoryFragment {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []models.MemoryFragment
	for key, sess := range m.cache {
		if key.UserID != userID {
			continue
		}
		for _, event := range sess.Events {
			lower := strings.ToLower(event.Text)
			for _, kw := range keywords {
				if strings.Contains(lower, kw) {
					matches = append(matches, models.MemoryFragment{
						SessionID: sess.SessionID,
						Role:      event.Role,
						Text:      event.Text,
					})
					break
				}
			}
		}
	}
	slog.Debug("MemoryService SearchMemory", "userID", userID, "keywords", len(keywords), "matches", len(matches))
	return matches
}

// Stats reports session counts for the cache and the backing store.
func (m *MemoryService) Stats() models.MemoryStats {
	m.mu.RLock()
	users := make(map[string]struct{})
	for key := range m.cache {
		users[key.UserID] = struct{}{}
	}
	cacheSize := len(m.cache)
	m.mu.RUnlock()

	storeSize, err := m.repo.CountSessions(m.app)
	if err != nil {
		slog.Error("MemoryService Stats store count failed", "error", err)
		storeSize = -1
	}

	return models.MemoryStats{
		TotalSessions: cacheSize,
		TotalUsers:    len(users),
		CacheSize:     cacheSize,
		StoreSize:     storeSize,
	}
}
