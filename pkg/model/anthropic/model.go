// Package anthropic adapts the official Anthropic SDK to the model surface
// the generation engine drives.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cexll/genrun-go/pkg/message"
	modelpkg "github.com/cexll/genrun-go/pkg/model"
	"github.com/cexll/genrun-go/pkg/telemetry"
)

const defaultMaxTokens = 4096

var (
	_ modelpkg.ModelWithTools    = (*Client)(nil)
	_ modelpkg.StreamerWithTools = (*Client)(nil)
)

func init() {
	modelpkg.RegisterProvider("anthropic", func(modelID string) (modelpkg.Model, error) {
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is not set")
		}
		return New(apiKey, modelID, os.Getenv("ANTHROPIC_BASE_URL"), 0), nil
	})
}

// Client wraps the official Anthropic SDK.
type Client struct {
	client    *anthropicsdk.Client
	model     anthropicsdk.Model
	maxTokens int
}

// New creates an Anthropic-backed model. An empty baseURL uses the SDK
// default; maxTokens <= 0 falls back to a sensible cap.
func New(apiKey, modelID, baseURL string, maxTokens int) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropicsdk.NewClient(opts...)
	return &Client{
		client:    &client,
		model:     anthropicsdk.Model(modelID),
		maxTokens: maxTokens,
	}
}

func (c *Client) params(messages []message.Message, tools []map[string]any) (anthropicsdk.MessageNewParams, error) {
	systemBlocks, messageParams := toAnthropicMessages(messages)
	maxTokens := c.maxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := anthropicsdk.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(maxTokens),
		Messages:  messageParams,
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(tools) > 0 {
		toolParams, err := toAnthropicTools(tools)
		if err != nil {
			return anthropicsdk.MessageNewParams{}, fmt.Errorf("convert tools: %w", err)
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
	ctx, span := telemetry.StartSpan(ctx, "model.anthropic.generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("llm.provider", "anthropic"),
			attribute.String("llm.model", string(c.model)),
			attribute.Int("llm.tools_count", len(tools)),
		)...),
	)
	defer telemetry.EndSpan(span, err)

	params, err := c.params(messages, tools)
	if err != nil {
		return message.Message{}, err
	}
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return message.Message{}, fmt.Errorf("anthropic call: %w", err)
	}
	return fromAnthropicMessage(*resp), nil
}

// GenerateStream streams without tools.
func (c *Client) GenerateStream(ctx context.Context, messages []message.Message, cb modelpkg.StreamCallback) error {
	return c.GenerateStreamWithTools(ctx, messages, nil, cb)
}

// GenerateStreamWithTools streams incremental text while tool schemas remain
// attached; the final callback carries the fully accumulated message.
func (c *Client) GenerateStreamWithTools(ctx context.Context, messages []message.Message, tools []map[string]any, cb modelpkg.StreamCallback) (err error) {
	if cb == nil {
		return errors.New("anthropic stream callback is required")
	}

	ctx, span := telemetry.StartSpan(ctx, "model.anthropic.stream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("llm.provider", "anthropic"),
			attribute.String("llm.model", string(c.model)),
			attribute.Int("llm.tools_count", len(tools)),
		)...),
	)
	defer telemetry.EndSpan(span, err)

	params, err := c.params(messages, tools)
	if err != nil {
		return err
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	accumulated := anthropicsdk.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := accumulated.Accumulate(event); err != nil {
			return fmt.Errorf("accumulate stream: %w", err)
		}
		switch delta := event.AsAny().(type) {
		case anthropicsdk.ContentBlockDeltaEvent:
			if text, ok := delta.Delta.AsAny().(anthropicsdk.TextDelta); ok {
				if err := cb(modelpkg.StreamResult{
					Message: message.Assistant(text.Text),
				}); err != nil {
					return err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic stream: %w", err)
	}

	return cb(modelpkg.StreamResult{
		Message: fromAnthropicMessage(accumulated),
		Usage:   usageFrom(accumulated),
		Final:   true,
	})
}

func usageFrom(msg anthropicsdk.Message) modelpkg.TokenUsage {
	in := int(msg.Usage.InputTokens)
	out := int(msg.Usage.OutputTokens)
	return modelpkg.TokenUsage{
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
	}
}
