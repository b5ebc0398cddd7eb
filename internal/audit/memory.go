package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

func fill(e *Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
}

// MemoryStore keeps entries in process. Used when no database is
// configured, and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Record(_ context.Context, e *Entry) error {
	fill(e)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

// Entries returns a copy of everything recorded, in insertion order.
func (m *MemoryStore) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Entry(nil), m.entries...)
}

func (m *MemoryStore) UserActivity(_ context.Context, userID string, since, until time.Time, limit int) ([]Entry, error) {
	return m.query(func(e Entry) bool { return e.UserID == userID && within(e, since, until) }, true, limit), nil
}

func (m *MemoryStore) SessionTrail(_ context.Context, sessionID string) ([]Entry, error) {
	return m.query(func(e Entry) bool { return e.SessionID == sessionID }, false, 0), nil
}

func (m *MemoryStore) FailedOperations(_ context.Context, since, until time.Time, limit int) ([]Entry, error) {
	return m.query(func(e Entry) bool { return e.Failed() && within(e, since, until) }, true, limit), nil
}

func (m *MemoryStore) query(keep func(Entry) bool, newestFirst bool, limit int) []Entry {
	m.mu.RLock()
	out := []Entry{}
	for _, e := range m.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if newestFirst {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func within(e Entry, since, until time.Time) bool {
	if !since.IsZero() && e.Timestamp.Before(since) {
		return false
	}
	if !until.IsZero() && e.Timestamp.After(until) {
		return false
	}
	return true
}
