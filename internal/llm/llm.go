// Package llm talks to the local language model that writes the summaries.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Backend names accepted in Config.Backend.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// ErrEmptyResponse is returned when the model answers with no completion at all.
var ErrEmptyResponse = errors.New("empty response from model")

// Request is a single completion call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Client is a connection to one model on one backend.
type Client interface {
	Generator
	// Ping checks that the backend is up and serves the configured model.
	Ping(ctx context.Context) error
	Model() string
	Close()
}

// Config selects and tunes the backend.
type Config struct {
	Backend     string
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	LoadRetries int
}

// NewClient builds the client for cfg.Backend without contacting it.
func NewClient(cfg Config) (Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	switch cfg.Backend {
	case BackendOllama, "":
		return NewOllamaClient(cfg.BaseURL, cfg.Model, timeout), nil
	case BackendOpenAI:
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model, timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model backend status %d: %s", e.StatusCode, truncate(e.Message, 200))
}

// Retryable reports whether the failure is transient.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRetryable checks if an error is worth retrying. Transport errors are; replies such as
// 401 or 404 are not.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}

// ModelLoadError means the model could not be made ready. It is fatal for the process.
type ModelLoadError struct {
	Backend string
	Model   string
	Err     error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s (%s): %v", e.Model, e.Backend, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
