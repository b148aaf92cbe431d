package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/cexll/genrun-go/pkg/message"
)

// toAnthropicMessages splits system messages into system blocks and maps the
// remaining conversation onto the SDK message params. Tool-role messages
// become tool_result blocks on a user turn, per the Anthropic protocol.
func toAnthropicMessages(messages []message.Message) ([]anthropicsdk.TextBlockParam, []anthropicsdk.MessageParam) {
	var systemBlocks []anthropicsdk.TextBlockParam
	params := make([]anthropicsdk.MessageParam, 0, len(messages))

	for _, msg := range messages {
		role := message.NormalizeRole(msg.Role)
		if role == message.RoleSystem {
			if strings.TrimSpace(msg.Content) != "" {
				systemBlocks = append(systemBlocks, anthropicsdk.TextBlockParam{Text: msg.Content})
			}
			continue
		}
		blocks := contentBlocks(role, msg)
		if len(blocks) == 0 {
			blocks = []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(".")}
		}
		params = append(params, anthropicsdk.MessageParam{
			Role:    anthropicRole(role),
			Content: blocks,
		})
	}

	if len(params) == 0 {
		params = append(params, anthropicsdk.MessageParam{
			Role:    anthropicsdk.MessageParamRoleUser,
			Content: []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(".")},
		})
	}
	return systemBlocks, params
}

func contentBlocks(role string, msg message.Message) []anthropicsdk.ContentBlockParamUnion {
	switch role {
	case message.RoleTool:
		if blocks, ok := toolResultBlocks(msg); ok {
			return blocks
		}
	case message.RoleAssistant:
		return assistantBlocks(msg)
	}
	if msg.Content == "" {
		return nil
	}
	return []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(msg.Content)}
}

func assistantBlocks(msg message.Message) []anthropicsdk.ContentBlockParamUnion {
	var blocks []anthropicsdk.ContentBlockParamUnion
	if msg.Content != "" {
		blocks = append(blocks, anthropicsdk.NewTextBlock(msg.Content))
	}
	for _, call := range msg.ToolCalls {
		name := strings.TrimSpace(call.Name)
		id := strings.TrimSpace(call.ID)
		if name == "" || id == "" {
			continue
		}
		args := call.Clone().Arguments
		if args == nil {
			args = map[string]any{}
		}
		blocks = append(blocks, anthropicsdk.NewToolUseBlock(id, args, name))
	}
	return blocks
}

func toolResultBlocks(msg message.Message) ([]anthropicsdk.ContentBlockParamUnion, bool) {
	if len(msg.ToolCalls) == 0 {
		return nil, false
	}
	blocks := make([]anthropicsdk.ContentBlockParamUnion, 0, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		id := strings.TrimSpace(call.ID)
		if id == "" {
			return nil, false
		}
		result := anthropicsdk.ToolResultBlockParam{
			ToolUseID: id,
			Content: []anthropicsdk.ToolResultBlockParamContentUnion{
				{OfText: &anthropicsdk.TextBlockParam{Text: msg.Content}},
			},
		}
		if isErrorPayload(msg.Content) {
			result.IsError = anthropicsdk.Bool(true)
		}
		blocks = append(blocks, anthropicsdk.ContentBlockParamUnion{OfToolResult: &result})
	}
	return blocks, true
}

// isErrorPayload recognizes the engine's JSON tool-failure envelope.
func isErrorPayload(content string) bool {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < 2 || trimmed[0] != '{' {
		return false
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return false
	}
	errVal, ok := payload["error"]
	if !ok {
		return false
	}
	switch v := errVal.(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case bool:
		return v
	default:
		return v != nil
	}
}

func toAnthropicTools(tools []map[string]any) ([]anthropicsdk.ToolUnionParam, error) {
	out := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, def := range tools {
		fn, ok := def["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		inputSchema, err := toInputSchema(fn["parameters"])
		if err != nil {
			return nil, fmt.Errorf("parameters for %s: %w", name, err)
		}
		param := anthropicsdk.ToolParam{Name: name, InputSchema: inputSchema}
		if desc, _ := fn["description"].(string); strings.TrimSpace(desc) != "" {
			param.Description = anthropicsdk.String(desc)
		}
		out = append(out, anthropicsdk.ToolUnionParam{OfTool: &param})
	}
	return out, nil
}

func toInputSchema(raw any) (anthropicsdk.ToolInputSchemaParam, error) {
	params, _ := raw.(map[string]any)
	if len(params) == 0 {
		return anthropicsdk.ToolInputSchemaParam{Type: "object"}, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return anthropicsdk.ToolInputSchemaParam{}, fmt.Errorf("marshal schema: %w", err)
	}
	var schema anthropicsdk.ToolInputSchemaParam
	if err := json.Unmarshal(data, &schema); err != nil {
		return anthropicsdk.ToolInputSchemaParam{}, fmt.Errorf("unmarshal schema: %w", err)
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema, nil
}

func fromAnthropicMessage(msg anthropicsdk.Message) message.Message {
	out := message.Message{Role: string(msg.Role)}
	var textParts []string
	for _, block := range msg.Content {
		switch content := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			textParts = append(textParts, content.Text)
		case anthropicsdk.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, message.ToolCall{
				ID:        content.ID,
				Name:      content.Name,
				Arguments: decodeToolInput(content.Input),
			})
		}
	}
	out.Content = strings.Join(textParts, "\n")
	if strings.TrimSpace(out.Role) == "" {
		out.Role = message.RoleAssistant
	}
	return out
}

func decodeToolInput(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{"value": value}
}

func anthropicRole(role string) anthropicsdk.MessageParamRole {
	if role == message.RoleAssistant {
		return anthropicsdk.MessageParamRoleAssistant
	}
	// Tool results ride on user turns.
	return anthropicsdk.MessageParamRoleUser
}
