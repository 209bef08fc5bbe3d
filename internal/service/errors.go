package service

import "errors"

var (
	ErrChatServiceNotConfigured = errors.New("chat service not configured")
	ErrInvalidInput             = errors.New("message cannot be empty")
	ErrConversationNotFound     = errors.New("conversation not found")
	// ErrCompletionFailed indica que no se pudo generar respuesta; el intercambio no se persiste.
	ErrCompletionFailed = errors.New("could not generate a reply")
)
