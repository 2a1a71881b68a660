// Package llm defines a minimal text-generation provider contract shared by
// the greeter and the concrete provider implementations.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// MessageRole labels one conversation message.
type MessageRole string

const (
	// MessageRoleSystem carries behavioral instructions.
	MessageRoleSystem MessageRole = "system"
	// MessageRoleUser carries end-user input.
	MessageRoleUser MessageRole = "user"
	// MessageRoleAssistant carries prior model output.
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    MessageRole
	Content string
}

// GenerateRequest describes one non-streaming generation call.
type GenerateRequest struct {
	// Model is the provider-specific model identifier.
	Model string
	// Messages is the ordered conversation, oldest first.
	Messages []Message
	// Temperature above zero overrides the provider default.
	Temperature float64
	// MaxOutputTokens above zero caps the response length.
	MaxOutputTokens int
}

// Validate checks request coherence before dispatch.
func (r GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("validate generate request: missing model")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("validate generate request: no messages")
	}
	for index, message := range r.Messages {
		switch message.Role {
		case MessageRoleSystem, MessageRoleUser, MessageRoleAssistant:
		default:
			return fmt.Errorf("validate generate request: messages[%d] unsupported role %q", index, message.Role)
		}
		if strings.TrimSpace(message.Content) == "" {
			return fmt.Errorf("validate generate request: messages[%d] empty content", index)
		}
	}

	return nil
}

// Provider generates one complete text response per request.
type Provider interface {
	// Generate returns the full response text for one request.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
