// Package llm is the model caller: one synchronous chat-completion
// operation against the configured provider.
//
// Provider selection is decided once at construction from credentials:
// Fireworks when FIREWORKS_API_KEY is set, else OpenAI when OPENAI_API_KEY
// is set, else an in-process mock for offline use. Later environment
// changes never flip providers mid-run.
package llm

import (
	"context"
	"fmt"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat-style completion request.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Response carries the assistant text of a completion.
type Response struct {
	Content string `json:"content"`
}

// Client is the model caller. Implementations must not retry.
type Client interface {
	// Call performs one completion and returns the assistant content.
	Call(ctx context.Context, req Request) (Response, error)
	// Provider names the selected backend ("fireworks", "openai", "mock").
	Provider() string
}

// Config selects and configures the provider.
type Config struct {
	ModelName      string
	OpenAIKey      string
	FireworksKey   string
	FireworksModel string
}

// New builds the model caller for the given credentials.
func New(cfg Config) Client {
	switch {
	case cfg.FireworksKey != "":
		return newFireworksClient(cfg)
	case cfg.OpenAIKey != "":
		return newOpenAIClient(cfg)
	default:
		return NewMockClient()
	}
}

// ModelError reports a provider failure: a non-2xx HTTP response or a
// response with no assistant content. Status is 0 when no HTTP status
// applies.
type ModelError struct {
	Status  int
	Message string
}

func (e *ModelError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("model call failed with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("model call failed: %s", e.Message)
}
