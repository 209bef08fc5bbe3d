package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NotConfiguredReply es la respuesta fija cuando no hay API key configurada.
const NotConfiguredReply = "OpenAI API key not configured. Please set OPENAI_API_KEY environment variable."

// ChatClient define la interfaz para generar respuestas de chat con un LLM.
type ChatClient interface {
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error)
}

// Message es un par rol/contenido tal como lo espera la API de chat completions.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TraceMetadata correlaciona la llamada con observabilidad externa. No afecta la respuesta.
type TraceMetadata struct {
	TraceID  string
	SpanName string
}

// CompletionOptions permite sobreescribir el modelo y adjuntar metadata de trazas.
type CompletionOptions struct {
	Model string
	Trace TraceMetadata
}

// CompletionObserver recibe el resultado de cada llamada (p.ej. metricas Prometheus).
type CompletionObserver interface {
	ObserveCompletion(outcome string, duration time.Duration)
}

const (
	OutcomeSuccess       = "success"
	OutcomeError         = "error"
	OutcomeNotConfigured = "not_configured"

	defaultBaseURL    = "https://api.openai.com/v1"
	maxResponseBytes  = 1 << 20
	maxErrorBodyBytes = 4096
)

// HTTPClient implementa ChatClient usando una API OpenAI-compatible.
// Se construye una vez y se comparte entre requests.
type HTTPClient struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
	logger      *zap.Logger
	observer    CompletionObserver
}

type Option func(*HTTPClient)

func WithMaxTokens(n int) Option {
	return func(c *HTTPClient) { c.maxTokens = n }
}

func WithTemperature(t float64) Option {
	return func(c *HTTPClient) { c.temperature = t }
}

func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.client = &http.Client{Timeout: d}
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *HTTPClient) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

func WithObserver(o CompletionObserver) Option {
	return func(c *HTTPClient) { c.observer = o }
}

// NewHTTPClient construye un cliente HTTP apuntando a la API de chat completions.
func NewHTTPClient(baseURL, apiKey, model string, logger *zap.Logger, opts ...Option) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      strings.TrimSpace(apiKey),
		model:       model,
		temperature: 0.7,
		client:      &http.Client{Timeout: 60 * time.Second},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		c.logger.Warn("llm api key not configured; replies will be a placeholder")
	}
	c.logger.Info("llm client initialized", zap.String("model", c.model))
	return c
}

// Configured indica si hay credencial para llamar a la API.
func (c *HTTPClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

func (c *HTTPClient) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error) {
	start := time.Now()
	if !c.Configured() {
		c.observe(OutcomeNotConfigured, start)
		return NotConfiguredReply, nil
	}

	model := opts.Model
	if model == "" {
		model = c.model
	}

	reply, err := c.do(ctx, c.buildRequest(model, messages, opts.Trace))
	if err != nil {
		c.observe(OutcomeError, start)
		c.logger.Error("llm completion failed",
			zap.String("model", model),
			zap.String("trace_id", opts.Trace.TraceID),
			zap.Error(err),
		)
		return "", err
	}
	c.observe(OutcomeSuccess, start)
	return reply, nil
}

func (c *HTTPClient) buildRequest(model string, messages []Message, trace TraceMetadata) chatRequest {
	req := chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if trace.TraceID != "" {
		req.User = trace.TraceID
		req.Metadata = map[string]string{"trace_id": trace.TraceID}
	}
	if trace.SpanName != "" {
		if req.Metadata == nil {
			req.Metadata = map[string]string{}
		}
		req.Metadata["span_name"] = trace.SpanName
	}
	return req
}

func (c *HTTPClient) do(ctx context.Context, reqBody chatRequest) (string, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %w", ErrUpstream, err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("llm completion request", zap.String("model", reqBody.Model), zap.Int("messages", len(reqBody.Messages)))

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: do request: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", fmt.Errorf("%w: %w", ErrUpstream, &StatusError{StatusCode: resp.StatusCode, Body: string(buf)})
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrUpstream, err)
	}

	var cr chatResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return "", fmt.Errorf("%w: unmarshal response: %w", ErrUpstream, err)
	}
	if cr.Error != nil {
		return "", fmt.Errorf("%w: api error: %s", ErrUpstream, cr.Error.Message)
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty response", ErrUpstream)
	}

	return cr.Choices[0].Message.Content, nil
}

func (c *HTTPClient) observe(outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveCompletion(outcome, time.Since(start))
	}
}

type chatRequest struct {
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature"`
	User        string            `json:"user,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
