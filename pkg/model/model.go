// Package model defines the provider surface the generation engine drives,
// plus resolution of "provider:modelId" strings into concrete backends.
package model

import (
	"context"

	"github.com/cexll/genrun-go/pkg/message"
)

// Model describes the behavior every language-model backend must support.
// Generate is a unary request/response call, while GenerateStream delivers
// incremental updates through the supplied callback.
type Model interface {
	Generate(ctx context.Context, messages []message.Message) (message.Message, error)
	GenerateStream(ctx context.Context, messages []message.Message, cb StreamCallback) error
}

// ModelWithTools is an optional interface for models that support tool
// calling. When implemented the engine passes tool schemas so the model can
// drive tool selection.
type ModelWithTools interface {
	Model
	GenerateWithTools(ctx context.Context, messages []message.Message, tools []map[string]any) (message.Message, error)
}

// StreamerWithTools combines streaming output with tool schemas. The engine
// prefers this interface so observers see partial text while tools stay
// available.
type StreamerWithTools interface {
	Model
	GenerateStreamWithTools(ctx context.Context, messages []message.Message, tools []map[string]any, cb StreamCallback) error
}

// StreamCallback consumes incremental output produced by a streaming call.
// Chunks arrive in order; Final marks the complete accumulated message.
type StreamCallback func(StreamResult) error

// StreamResult wraps a partial or final model response. When Final is true
// the stream is complete, Message carries the whole response including any
// tool calls, and Usage holds the token counts the provider reported for
// the call.
type StreamResult struct {
	Message message.Message
	Usage   TokenUsage
	Final   bool
}

// TokenUsage holds the token counts reported for one provider call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates another call's counts into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}
