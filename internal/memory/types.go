package memory

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionInactive   = errors.New("session is no longer active")
	ErrSessionForbidden  = errors.New("session belongs to another user")
	ErrInvalidTransition = errors.New("invalid session status transition")
)

// Status is the lifecycle state of a session. Transitions only go forward:
// active to archived or active to expired.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
	StatusExpired  Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusArchived, StatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether a session may move from s to next.
func (s Status) CanTransition(next Status) bool {
	return s == StatusActive && (next == StatusArchived || next == StatusExpired)
}

// Role of a message author
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Session is the mutable metadata of one conversation.
type Session struct {
	ID           string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Message is one append-only conversation turn.
type Message struct {
	ID        string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ListOptions filters ListSessions. A zero Status matches every status.
type ListOptions struct {
	Status Status
	Limit  int
}

// DefaultListLimit caps ListSessions when no limit is given.
const DefaultListLimit = 50

// Store persists sessions and their messages.
type Store interface {
	CreateSession(ctx context.Context, userID string) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// ListSessions returns a user's sessions, most recently updated first.
	ListSessions(ctx context.Context, userID string, opts ListOptions) ([]Session, error)

	// AppendMessage adds msg to an active session and bumps the session's
	// updated_at and message count as one atomic step.
	AppendMessage(ctx context.Context, sessionID string, msg Message) (*Message, error)

	// LastMessages returns up to n most recent messages, oldest first.
	LastMessages(ctx context.Context, sessionID string, n int) ([]Message, error)
	History(ctx context.Context, sessionID string) ([]Message, error)

	SetStatus(ctx context.Context, sessionID string, status Status) error
	DeleteSession(ctx context.Context, sessionID string) error

	// ExpireInactive marks active sessions last updated before cutoff as
	// expired and returns how many changed.
	ExpireInactive(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}

func limitOr(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
