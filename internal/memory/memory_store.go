package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type record struct {
	mu       sync.Mutex
	session  Session
	messages []Message
}

// MemoryStore keeps sessions in process. Each session has its own lock so
// turns in different sessions never contend.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*record
	now      func() time.Time
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*record), now: time.Now}
}

func (m *MemoryStore) lookup(sessionID string) (*record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return r, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, userID string) (*Session, error) {
	now := m.now().UTC()
	s := Session{ID: uuid.NewString(), UserID: userID, Status: StatusActive, CreatedAt: now, UpdatedAt: now}

	m.mu.Lock()
	m.sessions[s.ID] = &record{session: s}
	m.mu.Unlock()
	return &s, nil
}

func (m *MemoryStore) GetSession(_ context.Context, sessionID string) (*Session, error) {
	r, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.session
	return &s, nil
}

func (m *MemoryStore) ListSessions(_ context.Context, userID string, opts ListOptions) ([]Session, error) {
	m.mu.RLock()
	out := []Session{}
	for _, r := range m.sessions {
		r.mu.Lock()
		s := r.session
		r.mu.Unlock()
		if s.UserID != userID || (opts.Status != "" && s.Status != opts.Status) {
			continue
		}
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit := limitOr(opts.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, sessionID string, msg Message) (*Message, error) {
	r, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session.Status != StatusActive {
		return nil, ErrSessionInactive
	}

	now := m.now().UTC()
	msg.ID = uuid.NewString()
	msg.SessionID = sessionID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	r.messages = append(r.messages, msg)
	r.session.UpdatedAt = now
	r.session.MessageCount = len(r.messages)
	return &msg, nil
}

func (m *MemoryStore) LastMessages(_ context.Context, sessionID string, n int) ([]Message, error) {
	r, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	start := 0
	if n >= 0 && len(r.messages) > n {
		start = len(r.messages) - n
	}
	return append([]Message{}, r.messages[start:]...), nil
}

func (m *MemoryStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	return m.LastMessages(ctx, sessionID, -1)
}

func (m *MemoryStore) SetStatus(_ context.Context, sessionID string, status Status) error {
	r, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.session.Status.CanTransition(status) {
		return ErrInvalidTransition
	}
	r.session.Status = status
	r.session.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) ExpireInactive(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now().UTC()
	n := 0
	for _, r := range m.sessions {
		r.mu.Lock()
		if r.session.Status == StatusActive && r.session.UpdatedAt.Before(cutoff) {
			r.session.Status = StatusExpired
			r.session.UpdatedAt = now
			n++
		}
		r.mu.Unlock()
	}
	return n, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
