package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-llm/internal/domain"
	"chat-llm/internal/repository"
)

// BackfillResult resume una corrida del backfill.
type BackfillResult struct {
	ConversationsCreated int
	ConversationsReused  int
	MessagesAdopted      int64
}

// BackfillService asigna los mensajes legacy (sin conversacion) a conversaciones,
// una por session_id legacy. Es idempotente: sin huerfanos no hace nada.
type BackfillService struct {
	logger        *zap.Logger
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	now           func() time.Time
}

func NewBackfillService(logger *zap.Logger, conversations repository.ConversationRepository, messages repository.MessageRepository) *BackfillService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackfillService{
		logger:        logger,
		conversations: conversations,
		messages:      messages,
		now:           time.Now,
	}
}

func (s *BackfillService) Run(ctx context.Context) (BackfillResult, error) {
	var res BackfillResult
	if s == nil || s.conversations == nil || s.messages == nil {
		return res, errors.New("backfill service not configured")
	}

	sessions, err := s.messages.ListOrphanSessions(ctx)
	if err != nil {
		return res, fmt.Errorf("list orphan sessions: %w", err)
	}
	if len(sessions) == 0 {
		s.logger.Info("backfill: no orphan messages")
		return res, nil
	}

	for _, legacy := range sessions {
		conv, created, err := s.conversationFor(ctx, legacy)
		if err != nil {
			return res, err
		}
		if created {
			res.ConversationsCreated++
		} else {
			res.ConversationsReused++
		}

		n, err := s.messages.AdoptOrphans(ctx, legacy, conv.ID)
		if err != nil {
			return res, fmt.Errorf("adopt orphans for session %q: %w", legacy, err)
		}
		res.MessagesAdopted += n

		if err := s.conversations.Touch(ctx, conv.ID, s.now().UTC().Truncate(time.Microsecond)); err != nil {
			return res, fmt.Errorf("touch conversation: %w", err)
		}
		s.logger.Info("backfill: messages adopted",
			zap.String("legacy_session", legacy),
			zap.String("conversation_id", conv.ID),
			zap.Int64("messages", n),
		)
	}
	return res, nil
}

func (s *BackfillService) conversationFor(ctx context.Context, legacySession string) (domain.Conversation, bool, error) {
	sessionID := strings.TrimSpace(legacySession)
	if sessionID != "" {
		conv, err := s.conversations.GetBySessionID(ctx, sessionID)
		if err == nil {
			return conv, false, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.Conversation{}, false, fmt.Errorf("get conversation by session: %w", err)
		}
	} else {
		sessionID = "migrated_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	conv := domain.Conversation{
		ID:        uuid.NewString(),
		Title:     domain.MigratedConversationTitle,
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return domain.Conversation{}, false, fmt.Errorf("create migrated conversation: %w", err)
	}
	return conv, true, nil
}
