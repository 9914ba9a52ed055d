// Package llm holds the chat backends used to classify call transcripts.
package llm

import "context"

// Message is a chat message in the OpenAI/Ollama wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema describes the expected JSON output structure for structured chat responses.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty describes a single field within a Schema.
type SchemaProperty struct {
	Type        any    `json:"type"`
	Description string `json:"description,omitempty"`
}

// Chatter sends a conversation to a model and returns the assistant reply.
// A non-nil schema asks the backend for JSON output.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []Message, schema *Schema) (string, error)
}
