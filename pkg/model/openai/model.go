// Package openai adapts the official OpenAI SDK to the model surface the
// generation engine drives.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cexll/genrun-go/pkg/message"
	modelpkg "github.com/cexll/genrun-go/pkg/model"
	"github.com/cexll/genrun-go/pkg/telemetry"
)

var (
	_ modelpkg.ModelWithTools    = (*Client)(nil)
	_ modelpkg.StreamerWithTools = (*Client)(nil)
)

func init() {
	modelpkg.RegisterProvider("openai", func(modelID string) (modelpkg.Model, error) {
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, errors.New("OPENAI_API_KEY is not set")
		}
		return New(apiKey, modelID, os.Getenv("OPENAI_BASE_URL"), 0), nil
	})
}

// Client wraps the official OpenAI SDK.
type Client struct {
	client    openaisdk.Client
	model     openaisdk.ChatModel
	maxTokens int
}

// New creates an OpenAI-backed model. An empty baseURL uses the SDK default.
func New(apiKey, modelID, baseURL string, maxTokens int) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		client:    openaisdk.NewClient(opts...),
		model:     openaisdk.ChatModel(modelID),
		maxTokens: maxTokens,
	}
}

func (c *Client) params(messages []message.Message, tools []map[string]any) (openaisdk.ChatCompletionNewParams, error) {
	messageParams, err := toOpenAIMessages(messages)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}
	params := openaisdk.ChatCompletionNewParams{
		Messages: messageParams,
		Model:    c.model,
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(c.maxTokens))
	}
	if len(tools) > 0 {
		toolParams, err := toOpenAITools(tools)
		if err != nil {
			return openaisdk.ChatCompletionNewParams{}, fmt.Errorf("convert tools: %w", err)
		}
		params.Tools = toolParams
	}
	return params, nil
}

// Generate performs a blocking call without tools.
func (c *Client) Generate(ctx context.Context, messages []message.Message) (message.Message, error) {
	return c.GenerateWithTools(ctx, messages, nil)
}

// GenerateWithTools performs a blocking call with tool definitions.
func (c *Client) GenerateWithTools(ctx context.Context, messages []message.Message, tools []map[string]any) (_ message.Message, err error) {
	ctx, span := telemetry.StartSpan(ctx, "model.openai.generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("llm.provider", "openai"),
			attribute.String("llm.model", string(c.model)),
			attribute.Int("llm.tools_count", len(tools)),
		)...),
	)
	defer telemetry.EndSpan(span, err)

	params, err := c.params(messages, tools)
	if err != nil {
		return message.Message{}, err
	}
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return message.Message{}, fmt.Errorf("openai call: %w", err)
	}
	if len(completion.Choices) == 0 {
		return message.Message{}, errors.New("openai response has no choices")
	}
	return fromOpenAIMessage(completion.Choices[0].Message)
}

// GenerateStream streams without tools.
func (c *Client) GenerateStream(ctx context.Context, messages []message.Message, cb modelpkg.StreamCallback) error {
	return c.GenerateStreamWithTools(ctx, messages, nil, cb)
}

// GenerateStreamWithTools streams incremental text while tool schemas remain
// attached; the final callback carries the fully accumulated message.
func (c *Client) GenerateStreamWithTools(ctx context.Context, messages []message.Message, tools []map[string]any, cb modelpkg.StreamCallback) (err error) {
	if cb == nil {
		return errors.New("openai stream callback is required")
	}

	ctx, span := telemetry.StartSpan(ctx, "model.openai.stream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("llm.provider", "openai"),
			attribute.String("llm.model", string(c.model)),
			attribute.Int("llm.tools_count", len(tools)),
		)...),
	)
	defer telemetry.EndSpan(span, err)

	params, err := c.params(messages, tools)
	if err != nil {
		return err
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openaisdk.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		if !acc.AddChunk(chunk) {
			return errors.New("accumulate stream chunk failed")
		}
		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta; delta.Content != "" {
				if err := cb(modelpkg.StreamResult{
					Message: message.Assistant(delta.Content),
				}); err != nil {
					return err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}
	if len(acc.Choices) == 0 {
		return errors.New("openai stream produced no choices")
	}

	finalMsg, err := fromOpenAIMessage(acc.Choices[0].Message)
	if err != nil {
		return err
	}
	return cb(modelpkg.StreamResult{
		Message: finalMsg,
		Usage:   usageFrom(acc.Usage),
		Final:   true,
	})
}

func usageFrom(usage openaisdk.CompletionUsage) modelpkg.TokenUsage {
	return modelpkg.TokenUsage{
		InputTokens:  int(usage.PromptTokens),
		OutputTokens: int(usage.CompletionTokens),
		TotalTokens:  int(usage.TotalTokens),
	}
}
