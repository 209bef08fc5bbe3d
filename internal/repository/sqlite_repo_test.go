package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-llm/internal/config"
	"chat-llm/internal/db"
	"chat-llm/internal/domain"
)

func newTestSQLite(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.EnsureSQLiteSchema(context.Background(), sqlDB))
	return sqlDB
}

func newConversation(title, session string, at time.Time) domain.Conversation {
	return domain.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		SessionID: session,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func newMessage(role domain.Role, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: at,
	}
}

func TestSQLiteConversationRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteConversationRepository(newTestSQLite(t))
	now := time.Now().UTC().Truncate(time.Microsecond)

	conv := newConversation("Hello", "s1", now)
	require.NoError(t, repo.Create(ctx, conv))

	got, err := repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, conv.Title, got.Title)
	require.Equal(t, "s1", got.SessionID)
	require.True(t, got.CreatedAt.Equal(now))

	bySession, err := repo.GetBySessionID(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, conv.ID, bySession.ID)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteConversationRepository_DuplicateSession(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteConversationRepository(newTestSQLite(t))
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newConversation("a", "same", now)))
	err := repo.Create(ctx, newConversation("b", "same", now))
	require.ErrorIs(t, err, ErrDuplicateSession)
}

func TestSQLiteConversationRepository_TouchIsMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteConversationRepository(newTestSQLite(t))
	now := time.Now().UTC().Truncate(time.Microsecond)

	conv := newConversation("t", "s1", now)
	require.NoError(t, repo.Create(ctx, conv))

	later := now.Add(time.Minute)
	require.NoError(t, repo.Touch(ctx, conv.ID, later))
	require.NoError(t, repo.Touch(ctx, conv.ID, now.Add(-time.Hour)))

	got, err := repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	require.True(t, got.UpdatedAt.Equal(later), "updated_at went backwards: %v", got.UpdatedAt)

	require.ErrorIs(t, repo.Touch(ctx, "missing", later), ErrNotFound)
}

func TestSQLiteConversationRepository_ListMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteConversationRepository(newTestSQLite(t))
	now := time.Now().UTC()

	older := newConversation("older", "s1", now.Add(-time.Hour))
	newer := newConversation("newer", "s2", now)
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Touch(ctx, older.ID, now.Add(time.Minute)))

	list, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, older.ID, list[0].ID)
	require.Equal(t, newer.ID, list[1].ID)
}

func TestSQLiteMessageRepository_AppendExchangeOrdersAndTouches(t *testing.T) {
	ctx := context.Background()
	sqlDB := newTestSQLite(t)
	convs := NewSQLiteConversationRepository(sqlDB)
	msgs := NewSQLiteMessageRepository(sqlDB)
	now := time.Now().UTC().Truncate(time.Microsecond)

	conv := newConversation("c", "s1", now)
	require.NoError(t, convs.Create(ctx, conv))

	user := newMessage(domain.RoleUser, "hi", now.Add(time.Second))
	reply := newMessage(domain.RoleAssistant, "hello", now.Add(2*time.Second))
	require.NoError(t, msgs.AppendExchange(ctx, conv.ID, reply.CreatedAt, reply, user))

	list, err := msgs.ListByConversationID(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, domain.RoleUser, list[0].Role)
	require.Equal(t, domain.RoleAssistant, list[1].Role)
	require.Equal(t, conv.ID, list[0].ConversationID)

	count, err := msgs.CountByRole(ctx, conv.ID, domain.RoleUser)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	got, err := convs.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	require.True(t, got.UpdatedAt.Equal(reply.CreatedAt))
}

func TestSQLiteMessageRepository_AppendExchangeUnknownConversation(t *testing.T) {
	ctx := context.Background()
	msgs := NewSQLiteMessageRepository(newTestSQLite(t))
	now := time.Now().UTC()

	err := msgs.AppendExchange(ctx, "missing", now, newMessage(domain.RoleUser, "x", now))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteConversationRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	sqlDB := newTestSQLite(t)
	convs := NewSQLiteConversationRepository(sqlDB)
	msgs := NewSQLiteMessageRepository(sqlDB)
	now := time.Now().UTC()

	conv := newConversation("c", "s1", now)
	require.NoError(t, convs.Create(ctx, conv))
	require.NoError(t, msgs.AppendExchange(ctx, conv.ID, now,
		newMessage(domain.RoleUser, "a", now),
		newMessage(domain.RoleAssistant, "b", now.Add(time.Millisecond)),
	))

	require.NoError(t, convs.Delete(ctx, conv.ID))

	_, err := convs.GetByID(ctx, conv.ID)
	require.ErrorIs(t, err, ErrNotFound)

	var remaining int
	require.NoError(t, sqlDB.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&remaining))
	require.Zero(t, remaining)

	require.ErrorIs(t, convs.Delete(ctx, conv.ID), ErrNotFound)
}

func TestSQLiteMessageRepository_OrphanAdoption(t *testing.T) {
	ctx := context.Background()
	sqlDB := newTestSQLite(t)
	convs := NewSQLiteConversationRepository(sqlDB)
	msgs := NewSQLiteMessageRepository(sqlDB)
	now := time.Now().UTC()

	_, err := sqlDB.Exec(`
		INSERT INTO messages (id, conversation_id, session_id, role, content, created_at) VALUES
		('m1', NULL, 'legacy-a', 'user', 'one', ?),
		('m2', NULL, 'legacy-a', 'assistant', 'two', ?),
		('m3', NULL, NULL, 'user', 'three', ?)
	`, now, now.Add(time.Second), now.Add(2*time.Second))
	require.NoError(t, err)

	sessions, err := msgs.ListOrphanSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"", "legacy-a"}, sessions)

	conv := newConversation(domain.MigratedConversationTitle, "legacy-a", now)
	require.NoError(t, convs.Create(ctx, conv))

	n, err := msgs.AdoptOrphans(ctx, "legacy-a", conv.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = msgs.AdoptOrphans(ctx, "legacy-a", conv.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	sessions, err = msgs.ListOrphanSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{""}, sessions)
}

func TestOpenSQLiteStore(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{DatabaseURL: "sqlite://:memory:"}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	require.Equal(t, "sqlite", store.Backend)
	require.NoError(t, store.Ping(ctx))

	conv := newConversation("via store", "store-session", time.Now().UTC())
	require.NoError(t, store.Conversations.Create(ctx, conv))
	got, err := store.Conversations.GetBySessionID(ctx, "store-session")
	require.NoError(t, err)
	require.Equal(t, conv.ID, got.ID)
}
