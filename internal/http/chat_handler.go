package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-llm/internal/domain"
	"chat-llm/internal/service"
)

// ChatHandler expone las operaciones de conversaciones y mensajes.
type ChatHandler struct {
	logger  *zap.Logger
	chatSvc *service.ChatService
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(logger *zap.Logger, chatSvc *service.ChatService) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		logger:  logger,
		chatSvc: chatSvc,
	}
}

type historyMessage struct {
	Role      domain.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

type conversationView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Send maneja POST /send.
func (h *ChatHandler) Send(c *gin.Context) {
	var req struct {
		Message        string `json:"message"`
		ConversationID string `json:"conversation_id"`
		SessionID      string `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid send request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	res, err := h.chatSvc.SendMessage(c.Request.Context(), service.SendMessageInput{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		SessionID:      req.SessionID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": service.ErrConversationNotFound.Error()})
		case errors.Is(err, service.ErrCompletionFailed):
			c.JSON(http.StatusBadGateway, gin.H{
				"error":           service.ErrCompletionFailed.Error(),
				"conversation_id": res.Conversation.ID,
			})
		default:
			h.logger.Error("send message failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"response":        res.Reply(),
		"conversation_id": res.Conversation.ID,
		"session_id":      res.Conversation.SessionID,
		"user_message_id": res.UserMessage.ID,
		"ai_message_id":   res.AssistantMessage.ID,
	})
}

// History maneja GET /history/:conversation_id.
func (h *ChatHandler) History(c *gin.Context) {
	msgs, err := h.chatSvc.History(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		h.writeError(c, "get history failed", err)
		return
	}

	out := make([]historyMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, historyMessage{Role: m.Role, Content: m.Content, Timestamp: m.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// CreateConversation maneja POST /conversation/create. El body es opcional.
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("invalid create conversation request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	conv, err := h.chatSvc.CreateConversation(c.Request.Context(), req.Title)
	if err != nil {
		h.writeError(c, "create conversation failed", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":         true,
		"conversation_id": conv.ID,
		"session_id":      conv.SessionID,
		"title":           conv.Title,
	})
}

// DeleteConversation maneja DELETE /conversation/:conversation_id.
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	if err := h.chatSvc.DeleteConversation(c.Request.Context(), c.Param("conversation_id")); err != nil {
		h.writeError(c, "delete conversation failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListConversations maneja GET /conversations?limit=N.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	convs, err := h.chatSvc.ListConversations(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, "list conversations failed", err)
		return
	}

	out := make([]conversationView, 0, len(convs))
	for _, conv := range convs {
		out = append(out, conversationView{
			ID:        conv.ID,
			Title:     conv.Title,
			SessionID: conv.SessionID,
			CreatedAt: conv.CreatedAt,
			UpdatedAt: conv.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

func (h *ChatHandler) writeError(c *gin.Context, msg string, err error) {
	if errors.Is(err, service.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": service.ErrConversationNotFound.Error()})
		return
	}
	h.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
