package ai

import "context"

// Message is a single chat turn sent to the model.
type Message struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// Request carries everything one generation call needs.
type Request struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
}

// Result is the raw model reply plus usage accounting.
type Result struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}

// Generator port (interface untuk model text-generation)
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}
