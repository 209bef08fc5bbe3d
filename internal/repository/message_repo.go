package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"chat-llm/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) error
	AppendExchange(ctx context.Context, conversationID string, at time.Time, messages ...domain.Message) error
	ListByConversationID(ctx context.Context, conversationID string) ([]domain.Message, error)
	CountByRole(ctx context.Context, conversationID string, role domain.Role) (int, error)
	ListOrphanSessions(ctx context.Context) ([]string, error)
	AdoptOrphans(ctx context.Context, legacySessionID, conversationID string) (int64, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

const (
	pgForeignKeyViolation = "23503"

	insertMessagePg = `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
)

func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) error {
	_, err := r.pool.Exec(ctx, insertMessagePg,
		message.ID,
		message.ConversationID,
		string(message.Role),
		message.Content,
		message.CreatedAt,
	)
	return mapPgMessageErr(err)
}

// AppendExchange inserta los mensajes y refresca updated_at de la conversacion en una sola transaccion.
func (r *PgMessageRepository) AppendExchange(ctx context.Context, conversationID string, at time.Time, messages ...domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := touchConversation(ctx, tx, conversationID, at); err != nil {
		return err
	}
	for _, m := range messages {
		if _, err := tx.Exec(ctx, insertMessagePg,
			m.ID,
			conversationID,
			string(m.Role),
			m.Content,
			m.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert %s message: %w", m.Role, mapPgMessageErr(err))
		}
	}
	return tx.Commit(ctx)
}

func (r *PgMessageRepository) ListByConversationID(ctx context.Context, conversationID string) ([]domain.Message, error) {
	const query = `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *PgMessageRepository) CountByRole(ctx context.Context, conversationID string, role domain.Role) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1 AND role = $2
	`
	var n int
	if err := r.pool.QueryRow(ctx, query, conversationID, string(role)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgMessageRepository) ListOrphanSessions(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT COALESCE(session_id, '')
		FROM messages
		WHERE conversation_id IS NULL
		ORDER BY 1
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStrings(rows)
}

func (r *PgMessageRepository) AdoptOrphans(ctx context.Context, legacySessionID, conversationID string) (int64, error) {
	const query = `
		UPDATE messages
		SET conversation_id = $1
		WHERE conversation_id IS NULL AND COALESCE(session_id, '') = $2
	`
	tag, err := r.pool.Exec(ctx, query, conversationID, legacySessionID)
	if err != nil {
		return 0, mapPgMessageErr(err)
	}
	return tag.RowsAffected(), nil
}

func mapPgMessageErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrNotFound
	}
	return err
}

func scanMessages(rows rowScanner) ([]domain.Message, error) {
	messages := make([]domain.Message, 0)
	for rows.Next() {
		var msg domain.Message
		var role string
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&role,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		msg.Role = domain.Role(role)
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func scanStrings(rows rowScanner) ([]string, error) {
	out := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
