package service

import (
	"sort"

	"chat-llm/internal/domain"
	"chat-llm/internal/llm"
)

// SystemPrompt es la instruccion fija que encabeza cada prompt.
const SystemPrompt = "You are a helpful AI assistant. Provide clear, concise, and helpful responses."

// FormatPrompt convierte el historial en el payload de chat completions:
// una entrada system seguida de cada mensaje en orden cronologico.
// No modifica el slice recibido.
func FormatPrompt(history []domain.Message) []llm.Message {
	ordered := make([]domain.Message, len(history))
	copy(ordered, history)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	out := make([]llm.Message, 0, len(ordered)+1)
	out = append(out, llm.Message{Role: string(domain.RoleSystem), Content: SystemPrompt})
	for _, m := range ordered {
		out = append(out, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}
