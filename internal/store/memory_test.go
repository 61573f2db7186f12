package store

import (
	"errors"
	"testing"
	"time"

	"github.com/oumacare/ancare/internal/models"
)

// failingRepo simulates a backing store whose writes fail.
type failingRepo struct {
	*InMemoryStore
}

func (f *failingRepo) UpsertSession(s models.Session) error {
	return errors.New("disk full")
}

func TestMemoryServiceWriteThrough(t *testing.T) {
	repo := NewInMemoryStore()
	m := NewMemoryService("ancare", repo)

	sess := models.NewSession("ancare", "user", "sess-1", sessionTime)
	sess.AppendEvent(models.RolePatient, "I have a question", sessionTime)
	if err := m.AddSessionToMemory(sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The write must land in cache and store.
	if got := m.GetSession("user", "sess-1"); got == nil {
		t.Fatal("session missing from cache")
	}
	stored, err := repo.GetSession("ancare", "user", "sess-1")
	if err != nil || stored == nil {
		t.Fatalf("session missing from backing store: %v", err)
	}
}

func TestMemoryServiceLoadWarmsCache(t *testing.T) {
	repo := NewInMemoryStore()
	sess := models.NewSession("ancare", "user", "sess-1", sessionTime)
	if err := repo.UpsertSession(*sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := NewMemoryService("ancare", repo)
	if err := m.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.GetSession("user", "sess-1"); got == nil {
		t.Error("session not loaded into cache")
	}
}

func TestMemoryServicePersistenceFailureKeepsCache(t *testing.T) {
	m := NewMemoryService("ancare", &failingRepo{NewInMemoryStore()})

	sess := models.NewSession("ancare", "user", "sess-1", sessionTime)
	if err := m.AddSessionToMemory(sess); err != nil {
		t.Fatalf("store failure should degrade, not error: %v", err)
	}
	if got := m.GetSession("user", "sess-1"); got == nil {
		t.Error("session should remain readable from cache after a store failure")
	}
}

func TestMemoryServiceGetSessionReturnsCopy(t *testing.T) {
	m := NewMemoryService("ancare", NewInMemoryStore())
	sess := models.NewSession("ancare", "user", "sess-1", sessionTime)
	sess.AppendEvent(models.RolePatient, "original", sessionTime)
	if err := m.AddSessionToMemory(sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := m.GetSession("user", "sess-1")
	first.Events[0].Text = "mutated"
	first.AppendEvent(models.RoleAgent, "extra", sessionTime)

	second := m.GetSession("user", "sess-1")
	if len(second.Events) != 1 || second.Events[0].Text != "original" {
		t.Error("mutating a returned session must not affect the cache")
	}
}

func TestMemoryServiceLatestSession(t *testing.T) {
	m := NewMemoryService("ancare", NewInMemoryStore())
	if got := m.LatestSession("user"); got != nil {
		t.Error("expected nil for user with no sessions")
	}

	older := models.NewSession("ancare", "user", "sess-old", sessionTime)
	newer := models.NewSession("ancare", "user", "sess-new", sessionTime.Add(time.Hour))
	other := models.NewSession("ancare", "someone-else", "sess-x", sessionTime.Add(2*time.Hour))
	for _, sess := range []*models.Session{older, newer, other} {
		if err := m.AddSessionToMemory(sess); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got := m.LatestSession("user")
	if got == nil || got.SessionID != "sess-new" {
		t.Errorf("expected sess-new, got %+v", got)
	}
}

func TestMemoryServiceClearUserMemory(t *testing.T) {
	repo := NewInMemoryStore()
	m := NewMemoryService("ancare", repo)
	for _, id := range []string{"sess-1", "sess-2"} {
		if err := m.AddSessionToMemory(models.NewSession("ancare", "user", id, sessionTime)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := m.AddSessionToMemory(models.NewSession("ancare", "keeper", "sess-3", sessionTime)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deleted, err := m.ClearUserMemory("user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}
	if m.GetSession("user", "sess-1") != nil {
		t.Error("cleared session still in cache")
	}
	if m.GetSession("keeper", "sess-3") == nil {
		t.Error("other user's session should survive")
	}
	count, _ := repo.CountSessions("ancare")
	if count != 1 {
		t.Errorf("expected 1 session left in store, got %d", count)
	}
}

func TestMemoryServiceSearchMemory(t *testing.T) {
	m := NewMemoryService("ancare", NewInMemoryStore())
	sess := models.NewSession("ancare", "user", "sess-1", sessionTime)
	sess.AppendEvent(models.RolePatient, "I felt dizzy this morning", sessionTime)
	sess.AppendEvent(models.RoleAgent, "Dizziness can have many causes", sessionTime)
	sess.AppendEvent(models.RolePatient, "Also some back pain", sessionTime)
	if err := m.AddSessionToMemory(sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	matches := m.SearchMemory("user", "DIZZY")
	if len(matches) != 1 {
		t.Fatalf("expected 1 case-insensitive match, got %d", len(matches))
	}
	if matches[0].Role != models.RolePatient {
		t.Errorf("expected patient event, got %s", matches[0].Role)
	}

	// Any keyword matches; dizziness and pain hit different events.
	matches = m.SearchMemory("user", "dizziness pain")
	if len(matches) != 2 {
		t.Errorf("expected 2 matches for multi-keyword query, got %d", len(matches))
	}

	if got := m.SearchMemory("user", "   "); got != nil {
		t.Error("blank query should return nothing")
	}
	if got := m.SearchMemory("stranger", "dizzy"); got != nil {
		t.Error("search must be scoped to the user")
	}
}

func TestMemoryServiceStats(t *testing.T) {
	m := NewMemoryService("ancare", NewInMemoryStore())
	for _, key := range [][2]string{{"user-a", "sess-1"}, {"user-a", "sess-2"}, {"user-b", "sess-3"}} {
		if err := m.AddSessionToMemory(models.NewSession("ancare", key[0], key[1], sessionTime)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	stats := m.Stats()
	if stats.TotalSessions != 3 || stats.CacheSize != 3 {
		t.Errorf("expected 3 sessions in cache, got %+v", stats)
	}
	if stats.TotalUsers != 2 {
		t.Errorf("expected 2 users, got %d", stats.TotalUsers)
	}
	if stats.StoreSize != 3 {
		t.Errorf("expected 3 sessions in store, got %d", stats.StoreSize)
	}
}
