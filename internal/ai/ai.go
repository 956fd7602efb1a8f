// Package ai talks to the embedding and chat completion models.
package ai

import "context"

// Message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat message sent to the completion model.
type Message struct {
	Role    string
	Content string
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer produces a single non-streaming chat completion.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
