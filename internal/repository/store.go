package repository

import (
	"context"
	"fmt"

	"chat-llm/internal/config"
	"chat-llm/internal/db"
)

// Store agrupa los repositorios sobre el backend elegido por DATABASE_URL.
type Store struct {
	Backend       string
	Conversations ConversationRepository
	Messages      MessageRepository

	ping  func(ctx context.Context) error
	close func()
}

// Open conecta a Postgres (postgres://...) o SQLite (sqlite://ruta) y asegura el esquema.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg.UsesSQLite() {
		sqlDB, err := db.OpenSQLite(cfg.SQLitePath())
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := db.EnsureSQLiteSchema(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("ensure sqlite schema: %w", err)
		}
		return &Store{
			Backend:       "sqlite",
			Conversations: NewSQLiteConversationRepository(sqlDB),
			Messages:      NewSQLiteMessageRepository(sqlDB),
			ping:          sqlDB.PingContext,
			close:         func() { _ = sqlDB.Close() },
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure postgres schema: %w", err)
	}
	return &Store{
		Backend:       "postgres",
		Conversations: NewPgConversationRepository(pool),
		Messages:      NewPgMessageRepository(pool),
		ping:          func(ctx context.Context) error { return db.Ping(ctx, pool) },
		close:         pool.Close,
	}, nil
}

// Ping verifica conectividad con el backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

func (s *Store) Close() {
	s.close()
}
