// Package assistant defines the chat assistant collaborator. The service
// layer only talks to the Assistant interface; gemini provides the
// production implementation.
package assistant

import (
	"context"
	"errors"
)

// ErrExhausted is returned when every configured model is rate limited or
// unavailable.
var ErrExhausted = errors.New("assistant: all models exhausted")

// Request is a single chat turn.
type Request struct {
	// Instructions are system-level context: persona, platform knowledge,
	// the text of an article the user asked about.
	Instructions []string `json:"instructions,omitempty"`
	// Message is what the user typed.
	Message string `json:"message"`
}

// Reply is the assistant's answer and the model that produced it.
type Reply struct {
	Answer string `json:"answer"`
	Model  string `json:"model,omitempty"`
}

// Assistant answers a chat message.
type Assistant interface {
	Ask(ctx context.Context, req Request) (*Reply, error)
}
