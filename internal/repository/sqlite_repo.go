package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"chat-llm/internal/domain"
)

// SQLiteConversationRepository implementa ConversationRepository sobre database/sql + go-sqlite3.
type SQLiteConversationRepository struct {
	db *sql.DB
}

func NewSQLiteConversationRepository(db *sql.DB) *SQLiteConversationRepository {
	return &SQLiteConversationRepository{db: db}
}

func (r *SQLiteConversationRepository) Create(ctx context.Context, conversation domain.Conversation) error {
	const query = `
		INSERT INTO conversations (id, title, session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		conversation.ID,
		conversation.Title,
		conversation.SessionID,
		conversation.CreatedAt.UTC(),
		conversation.UpdatedAt.UTC(),
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrDuplicateSession
	}
	return err
}

func (r *SQLiteConversationRepository) GetByID(ctx context.Context, id string) (domain.Conversation, error) {
	const query = `
		SELECT id, title, session_id, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`
	return r.getOne(ctx, query, id)
}

func (r *SQLiteConversationRepository) GetBySessionID(ctx context.Context, sessionID string) (domain.Conversation, error) {
	const query = `
		SELECT id, title, session_id, created_at, updated_at
		FROM conversations
		WHERE session_id = ?
	`
	return r.getOne(ctx, query, sessionID)
}

func (r *SQLiteConversationRepository) getOne(ctx context.Context, query, arg string) (domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&c.ID,
		&c.Title,
		&c.SessionID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Conversation{}, ErrNotFound
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func (r *SQLiteConversationRepository) List(ctx context.Context, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, title, session_id, created_at, updated_at
		FROM conversations
		ORDER BY updated_at DESC, created_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanConversations(rows)
}

func (r *SQLiteConversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return touchConversationSQL(ctx, r.db, id, at)
}

func (r *SQLiteConversationRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func touchConversationSQL(ctx context.Context, db sqlExecer, id string, at time.Time) error {
	const query = `
		UPDATE conversations
		SET updated_at = CASE WHEN updated_at < ? THEN ? ELSE updated_at END
		WHERE id = ?
	`
	at = at.UTC()
	res, err := db.ExecContext(ctx, query, at, at, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SQLiteMessageRepository implementa MessageRepository sobre SQLite.
type SQLiteMessageRepository struct {
	db *sql.DB
}

func NewSQLiteMessageRepository(db *sql.DB) *SQLiteMessageRepository {
	return &SQLiteMessageRepository{db: db}
}

const insertMessageSQLite = `
	INSERT INTO messages (id, conversation_id, role, content, created_at)
	VALUES (?, ?, ?, ?, ?)
`

func (r *SQLiteMessageRepository) Create(ctx context.Context, message domain.Message) error {
	_, err := r.db.ExecContext(ctx, insertMessageSQLite,
		message.ID,
		message.ConversationID,
		string(message.Role),
		message.Content,
		message.CreatedAt.UTC(),
	)
	return mapSQLiteMessageErr(err)
}

func (r *SQLiteMessageRepository) AppendExchange(ctx context.Context, conversationID string, at time.Time, messages ...domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := touchConversationSQL(ctx, tx, conversationID, at); err != nil {
		return err
	}
	for _, m := range messages {
		if _, err := tx.ExecContext(ctx, insertMessageSQLite,
			m.ID,
			conversationID,
			string(m.Role),
			m.Content,
			m.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert %s message: %w", m.Role, mapSQLiteMessageErr(err))
		}
	}
	return tx.Commit()
}

func (r *SQLiteMessageRepository) ListByConversationID(ctx context.Context, conversationID string) ([]domain.Message, error) {
	const query = `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *SQLiteMessageRepository) CountByRole(ctx context.Context, conversationID string, role domain.Role) (int, error) {
	const query = `SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND role = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, query, conversationID, string(role)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *SQLiteMessageRepository) ListOrphanSessions(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT COALESCE(session_id, '')
		FROM messages
		WHERE conversation_id IS NULL
		ORDER BY 1
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStrings(rows)
}

func (r *SQLiteMessageRepository) AdoptOrphans(ctx context.Context, legacySessionID, conversationID string) (int64, error) {
	const query = `
		UPDATE messages
		SET conversation_id = ?
		WHERE conversation_id IS NULL AND COALESCE(session_id, '') = ?
	`
	res, err := r.db.ExecContext(ctx, query, conversationID, legacySessionID)
	if err != nil {
		return 0, mapSQLiteMessageErr(err)
	}
	return res.RowsAffected()
}

func mapSQLiteMessageErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return ErrNotFound
	}
	return err
}
