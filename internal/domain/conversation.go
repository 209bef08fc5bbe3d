package domain

import "time"

// DefaultConversationTitle se usa cuando una conversacion se crea sin titulo.
const DefaultConversationTitle = "New Conversation"

// MigratedConversationTitle titula las conversaciones creadas por el backfill de mensajes legacy.
const MigratedConversationTitle = "Migrated Conversation"

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
