package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/avvvet/rhoai-intent/internal/models"
)

func TestManager_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), 0, zaptest.NewLogger(t))

	s, err := m.GetOrCreate(ctx, "", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", s.UserID)

	again, err := m.GetOrCreate(ctx, s.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, s.ID, again.ID)

	_, err = m.GetOrCreate(ctx, s.ID, "bob")
	assert.ErrorIs(t, err, ErrSessionForbidden)

	_, err = m.GetOrCreate(ctx, "no-such-session", "alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.True(t, IsClientError(err))
}

func TestManager_ContextWindow(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), 2, zaptest.NewLogger(t))
	s, err := m.GetOrCreate(ctx, "", "alice")
	require.NoError(t, err)

	_, err = m.AddUserMessage(ctx, s.ID, "Deploy sentiment-analysis")
	require.NoError(t, err)
	_, err = m.AddAssistantMessage(ctx, s.ID, "The sentiment-analysis model is running with 2 replicas.")
	require.NoError(t, err)
	_, err = m.AddUserMessage(ctx, s.ID, "Scale it to 5 replicas")
	require.NoError(t, err)

	window, err := m.ContextWindow(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.ConversationMessage{
		{Role: RoleAssistant, Content: "The sentiment-analysis model is running with 2 replicas."},
		{Role: RoleUser, Content: "Scale it to 5 replicas"},
	}, window)

	history, err := m.History(ctx, s.ID, "alice")
	require.NoError(t, err)
	assert.Len(t, history, 3)

	_, err = m.History(ctx, s.ID, "bob")
	assert.ErrorIs(t, err, ErrSessionForbidden)
}

func TestManager_ArchiveAndExpire(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store, 0, zaptest.NewLogger(t))

	a, _ := m.GetOrCreate(ctx, "", "alice")
	b, _ := m.GetOrCreate(ctx, "", "alice")

	assert.ErrorIs(t, m.Archive(ctx, a.ID, "bob"), ErrSessionForbidden)
	require.NoError(t, m.Archive(ctx, a.ID, "alice"))
	assert.ErrorIs(t, m.Archive(ctx, a.ID, "alice"), ErrInvalidTransition)

	_, err := m.AddUserMessage(ctx, a.ID, "hello")
	assert.ErrorIs(t, err, ErrSessionInactive)

	n, err := m.ExpireIdle(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = m.ExpireIdle(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetSession(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)

	require.NoError(t, m.Delete(ctx, b.ID))
	list, err := m.List(ctx, "alice", ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestManager_Transcript(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), 0, zaptest.NewLogger(t))
	s, _ := m.GetOrCreate(ctx, "", "alice")

	empty, err := m.Transcript(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "No previous conversation.", empty)

	_, _ = m.AddUserMessage(ctx, s.ID, "list my notebooks")
	_, _ = m.AddAssistantMessage(ctx, s.ID, "Found 2 notebooks.")

	out, err := m.Transcript(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "User: list my notebooks\nAssistant: Found 2 notebooks.", out)

	_, err = Transcript([]Message{{Role: "tool", Content: "x"}})
	assert.Error(t, err)
}
