package provider

import (
	"context"
	"encoding/json"
)

// Request is one chat completion call. ImageDataURI optionally attaches
// a rendered chart as a base64 data URI for vision-capable models, and
// Schema optionally requests structured JSON output.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	ImageDataURI string
	Schema       *ResponseSchema
}

// ResponseSchema names a strict JSON schema for the model's reply.
type ResponseSchema struct {
	Name   string
	Schema json.RawMessage
}

// ModelProvider abstracts an LLM backend behind an OpenAI-compatible
// chat interface.
type ModelProvider interface {
	ID() string
	Call(ctx context.Context, req Request) (string, error)
}
