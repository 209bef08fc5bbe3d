package llm

import (
	"errors"
	"fmt"
)

// ErrUpstream envuelve cualquier fallo de transporte o de la API de completions.
var ErrUpstream = errors.New("llm upstream failure")

// StatusError captura respuestas no-2xx del proveedor.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm http error: status=%d body=%s", e.StatusCode, e.Body)
}
