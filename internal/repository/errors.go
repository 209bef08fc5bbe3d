package repository

import "errors"

var (
	// ErrNotFound se devuelve cuando el registro buscado no existe.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateSession se devuelve al crear una conversacion con un session_id ya usado.
	ErrDuplicateSession = errors.New("session id already in use")
)

// rowScanner es la interfaz minima comun a pgx.Rows y *sql.Rows para escanear y simplificar tests.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}
