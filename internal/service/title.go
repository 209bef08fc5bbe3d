package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"chat-llm/internal/domain"
)

const (
	maxTitleRunes = 50
	titleEllipsis = "..."
)

// DeriveTitle toma los primeros 50 caracteres del mensaje y agrega "..." si se corto.
func DeriveTitle(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.DefaultConversationTitle
	}
	if utf8.RuneCountInString(message) <= maxTitleRunes {
		return message
	}
	return string([]rune(message)[:maxTitleRunes]) + titleEllipsis
}

// SpanName arma la etiqueta de traza: titulo de la conversacion y ordinal del mensaje de usuario.
func SpanName(title string, userOrdinal int) string {
	return fmt.Sprintf("%s - message %d", title, userOrdinal)
}
