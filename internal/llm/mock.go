package llm

import (
	"context"
	"sync"
)

// MockClient permite tests y corridas offline sin llamar a un LLM real.
type MockClient struct {
	Response string
	Err      error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall registra los argumentos de cada invocacion.
type MockCall struct {
	Messages []Message
	Options  CompletionOptions
}

func (m *MockClient) Complete(_ context.Context, messages []Message, opts CompletionOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Message, len(messages))
	copy(cp, messages)
	m.calls = append(m.calls, MockCall{Messages: cp, Options: opts})
	return m.Response, m.Err
}

// Calls devuelve una copia de las invocaciones registradas.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}
