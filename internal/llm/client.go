// Package llm provides chat completion client implementations.
package llm

import "context"

// Message represents a chat message on the wire.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Client is the interface completion providers implement.
type Client interface {
	// Complete sends the full conversation history to the provider and
	// returns the assistant's reply text. An empty reply is a valid,
	// successful result. Failures are returned as *APIError so callers
	// can translate them for the user.
	Complete(ctx context.Context, model, apiKey string, messages []Message) (string, error)
}
