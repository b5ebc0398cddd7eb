package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/avvvet/rhoai-intent/internal/models"
)

// DefaultWindow is how many recent messages feed context resolution.
const DefaultWindow = 20

// Manager is the conversation layer over a Store: ownership checks, the
// bounded context window and transcript rendering.
type Manager struct {
	store  Store
	window int
	logger *zap.Logger
}

func NewManager(store Store, window int, logger *zap.Logger) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Manager{store: store, window: window, logger: logger.Named("memory")}
}

// Store exposes the underlying store for session listing and admin tasks.
func (m *Manager) Store() Store {
	return m.store
}

// Session loads a session owned by userID.
func (m *Manager) Session(ctx context.Context, sessionID, userID string) (*Session, error) {
	s, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		return nil, ErrSessionForbidden
	}
	return s, nil
}

// GetOrCreate returns the named session, or a fresh one when sessionID is
// empty. A named session that does not exist is an error, not a create.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID, userID string) (*Session, error) {
	if sessionID != "" {
		return m.Session(ctx, sessionID, userID)
	}
	s, err := m.store.CreateSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	m.logger.Info("session created", zap.String("session_id", s.ID), zap.String("user_id", userID))
	return s, nil
}

// ContextWindow returns the most recent messages of a session, oldest first,
// in the shape the intent parser consumes.
func (m *Manager) ContextWindow(ctx context.Context, sessionID string) ([]models.ConversationMessage, error) {
	msgs, err := m.store.LastMessages(ctx, sessionID, m.window)
	if err != nil {
		return nil, fmt.Errorf("failed to load context window: %w", err)
	}
	out := make([]models.ConversationMessage, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, models.ConversationMessage{Role: msg.Role, Content: msg.Content})
	}
	return out, nil
}

func (m *Manager) add(ctx context.Context, sessionID, role, content string) (*Message, error) {
	msg, err := m.store.AppendMessage(ctx, sessionID, Message{Role: role, Content: content})
	if err != nil {
		return nil, fmt.Errorf("failed to save %s message: %w", role, err)
	}
	m.logger.Debug("message saved", zap.String("session_id", sessionID), zap.String("role", role))
	return msg, nil
}

func (m *Manager) AddUserMessage(ctx context.Context, sessionID, content string) (*Message, error) {
	return m.add(ctx, sessionID, RoleUser, content)
}

func (m *Manager) AddAssistantMessage(ctx context.Context, sessionID, content string) (*Message, error) {
	return m.add(ctx, sessionID, RoleAssistant, content)
}

func (m *Manager) AddSystemMessage(ctx context.Context, sessionID, content string) (*Message, error) {
	return m.add(ctx, sessionID, RoleSystem, content)
}

// History returns every message of a session owned by userID.
func (m *Manager) History(ctx context.Context, sessionID, userID string) ([]Message, error) {
	if _, err := m.Session(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return m.store.History(ctx, sessionID)
}

func (m *Manager) List(ctx context.Context, userID string, opts ListOptions) ([]Session, error) {
	return m.store.ListSessions(ctx, userID, opts)
}

// Archive closes a session owned by userID.
func (m *Manager) Archive(ctx context.Context, sessionID, userID string) error {
	if _, err := m.Session(ctx, sessionID, userID); err != nil {
		return err
	}
	if err := m.store.SetStatus(ctx, sessionID, StatusArchived); err != nil {
		return err
	}
	m.logger.Info("session archived", zap.String("session_id", sessionID))
	return nil
}

// Delete removes a session and its messages regardless of owner.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	m.logger.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

// ExpireIdle marks sessions with no activity for idle as expired.
func (m *Manager) ExpireIdle(ctx context.Context, idle time.Duration) (int, error) {
	n, err := m.store.ExpireInactive(ctx, time.Now().Add(-idle))
	if err != nil {
		return n, fmt.Errorf("failed to expire sessions: %w", err)
	}
	if n > 0 {
		m.logger.Info("sessions expired", zap.Int("count", n), zap.Duration("idle", idle))
	}
	return n, nil
}

// Transcript renders the whole conversation as "User: ..." lines.
func (m *Manager) Transcript(ctx context.Context, sessionID string) (string, error) {
	msgs, err := m.store.History(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "No previous conversation.", nil
	}
	return Transcript(msgs)
}

// Transcript converts messages to langchaingo chat messages and renders
// them with the User/Assistant prefixes.
func Transcript(msgs []Message) (string, error) {
	chat := make([]llms.ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case RoleUser:
			chat = append(chat, llms.HumanChatMessage{Content: msg.Content})
		case RoleAssistant:
			chat = append(chat, llms.AIChatMessage{Content: msg.Content})
		case RoleSystem:
			chat = append(chat, llms.SystemChatMessage{Content: msg.Content})
		default:
			return "", fmt.Errorf("unknown message role %q", msg.Role)
		}
	}
	out, err := llms.GetBufferString(chat, "User", "Assistant")
	if err != nil {
		return "", fmt.Errorf("failed to render transcript: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// IsClientError reports whether err is a session lookup failure the caller
// caused.
func IsClientError(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionForbidden) ||
		errors.Is(err, ErrSessionInactive) || errors.Is(err, ErrInvalidTransition)
}

func (m *Manager) Close() error {
	return m.store.Close()
}
