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
	"chat-llm/internal/llm"
	"chat-llm/internal/repository"
)

// ExchangeRecorder recibe el resultado de cada send-message (metricas).
type ExchangeRecorder interface {
	RecordExchange(result string)
}

const (
	ExchangeOK               = "ok"
	ExchangeCompletionFailed = "completion_failed"
	ExchangeStorageFailed    = "storage_failed"

	defaultListLimit = 50
	maxListLimit     = 200
)

// ChatService orquesta conversaciones: persistencia, prompt y llamada al LLM.
type ChatService struct {
	logger        *zap.Logger
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	llmClient     llm.ChatClient
	locker        ConversationLocker
	recorder      ExchangeRecorder
	now           func() time.Time
}

func NewChatService(
	logger *zap.Logger,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	llmClient llm.ChatClient,
	locker ConversationLocker,
	recorder ExchangeRecorder,
) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewMemoryConversationLocker()
	}
	return &ChatService{
		logger:        logger,
		conversations: conversations,
		messages:      messages,
		llmClient:     llmClient,
		locker:        locker,
		recorder:      recorder,
		now:           time.Now,
	}
}

type SendMessageInput struct {
	Message        string
	ConversationID string
	SessionID      string
}

type SendMessageResult struct {
	Conversation     domain.Conversation
	UserMessage      domain.Message
	AssistantMessage domain.Message
}

// Reply devuelve el texto generado por el asistente.
func (r SendMessageResult) Reply() string {
	return r.AssistantMessage.Content
}

// SendMessage resuelve (o crea) la conversacion, pide respuesta al LLM con el historial completo
// y persiste el par user/assistant de forma atomica. Si el LLM falla no se persiste el intercambio
// y el error envuelve ErrCompletionFailed; el resultado incluye igualmente la conversacion.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (SendMessageResult, error) {
	if !s.configured() {
		return SendMessageResult{}, ErrChatServiceNotConfigured
	}

	content := strings.TrimSpace(in.Message)
	if content == "" {
		return SendMessageResult{}, ErrInvalidInput
	}

	conv, err := s.resolveConversation(ctx, in, content)
	if err != nil {
		return SendMessageResult{}, err
	}
	result := SendMessageResult{Conversation: conv}

	unlock, err := s.locker.Lock(ctx, conv.ID)
	if err != nil {
		return result, fmt.Errorf("lock conversation: %w", err)
	}
	defer unlock()

	history, err := s.messages.ListByConversationID(ctx, conv.ID)
	if err != nil {
		s.record(ExchangeStorageFailed)
		return result, fmt.Errorf("list messages: %w", err)
	}
	previousUsers, err := s.messages.CountByRole(ctx, conv.ID, domain.RoleUser)
	if err != nil {
		s.record(ExchangeStorageFailed)
		return result, fmt.Errorf("count user messages: %w", err)
	}

	userMsg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        content,
		CreatedAt:      s.timestampAfter(lastTimestamp(history)),
	}

	prompt := FormatPrompt(append(history, userMsg))
	opts := llm.CompletionOptions{
		Trace: llm.TraceMetadata{
			TraceID:  conv.ID,
			SpanName: SpanName(conv.Title, previousUsers+1),
		},
	}

	reply, err := s.llmClient.Complete(ctx, prompt, opts)
	if err != nil {
		s.record(ExchangeCompletionFailed)
		s.logger.Error("completion failed",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
		return result, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	assistantMsg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        reply,
		CreatedAt:      s.timestampAfter(userMsg.CreatedAt),
	}

	if err := s.messages.AppendExchange(ctx, conv.ID, assistantMsg.CreatedAt, userMsg, assistantMsg); err != nil {
		s.record(ExchangeStorageFailed)
		if errors.Is(err, repository.ErrNotFound) {
			return result, ErrConversationNotFound
		}
		return result, fmt.Errorf("persist exchange: %w", err)
	}

	if assistantMsg.CreatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = assistantMsg.CreatedAt
	}
	s.record(ExchangeOK)

	return SendMessageResult{
		Conversation:     conv,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

func (s *ChatService) resolveConversation(ctx context.Context, in SendMessageInput, content string) (domain.Conversation, error) {
	if id := strings.TrimSpace(in.ConversationID); id != "" {
		return s.getConversation(ctx, id)
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID != "" {
		conv, err := s.conversations.GetBySessionID(ctx, sessionID)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.Conversation{}, fmt.Errorf("get conversation by session: %w", err)
		}
	} else {
		sessionID = uuid.NewString()
	}

	conv := s.newConversation(DeriveTitle(content), sessionID)
	err := s.conversations.Create(ctx, conv)
	if errors.Is(err, repository.ErrDuplicateSession) {
		// Otro request creo la conversacion para la misma sesion.
		return s.conversations.GetBySessionID(ctx, sessionID)
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	s.logger.Info("conversation created", zap.String("conversation_id", conv.ID))
	return conv, nil
}

// CreateConversation crea una conversacion vacia con el titulo dado o el titulo por defecto.
func (s *ChatService) CreateConversation(ctx context.Context, title string) (domain.Conversation, error) {
	if s == nil || s.conversations == nil {
		return domain.Conversation{}, ErrChatServiceNotConfigured
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultConversationTitle
	}
	conv := s.newConversation(title, uuid.NewString())
	if err := s.conversations.Create(ctx, conv); err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// History devuelve los mensajes de la conversacion en orden ascendente.
func (s *ChatService) History(ctx context.Context, conversationID string) ([]domain.Message, error) {
	if !s.configured() {
		return nil, ErrChatServiceNotConfigured
	}
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByConversationID(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// DeleteConversation elimina la conversacion y todos sus mensajes.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID string) error {
	if s == nil || s.conversations == nil {
		return ErrChatServiceNotConfigured
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return ErrConversationNotFound
	}
	err := s.conversations.Delete(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrConversationNotFound
	}
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	s.logger.Info("conversation deleted", zap.String("conversation_id", conversationID))
	return nil
}

// ListConversations devuelve las conversaciones mas recientemente activas primero.
func (s *ChatService) ListConversations(ctx context.Context, limit int) ([]domain.Conversation, error) {
	if s == nil || s.conversations == nil {
		return nil, ErrChatServiceNotConfigured
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.conversations.List(ctx, limit)
}

func (s *ChatService) getConversation(ctx context.Context, id string) (domain.Conversation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Conversation{}, ErrConversationNotFound
	}
	conv, err := s.conversations.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

func (s *ChatService) newConversation(title, sessionID string) domain.Conversation {
	now := s.timestamp()
	return domain.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *ChatService) configured() bool {
	return s != nil && s.conversations != nil && s.messages != nil && s.llmClient != nil
}

func (s *ChatService) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordExchange(result)
	}
}

// timestamp trunca a microsegundos, la precision que conserva Postgres.
func (s *ChatService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// timestampAfter garantiza un instante estrictamente posterior a prev.
func (s *ChatService) timestampAfter(prev time.Time) time.Time {
	now := s.timestamp()
	if !prev.IsZero() && !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

func lastTimestamp(history []domain.Message) time.Time {
	var last time.Time
	for _, m := range history {
		if m.CreatedAt.After(last) {
			last = m.CreatedAt
		}
	}
	return last
}
