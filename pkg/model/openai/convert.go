package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"

	"github.com/cexll/genrun-go/pkg/message"
)

func toOpenAIMessages(messages []message.Message) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	params := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for idx, msg := range messages {
		switch message.NormalizeRole(msg.Role) {
		case message.RoleSystem:
			params = append(params, openaisdk.SystemMessage(msg.Content))
		case message.RoleAssistant:
			union, err := assistantParam(msg)
			if err != nil {
				return nil, fmt.Errorf("messages[%d]: %w", idx, err)
			}
			params = append(params, union)
		case message.RoleTool:
			id := firstToolCallID(msg.ToolCalls)
			if id == "" {
				return nil, fmt.Errorf("messages[%d]: tool message missing tool_call_id", idx)
			}
			params = append(params, openaisdk.ToolMessage(msg.Content, id))
		default:
			params = append(params, openaisdk.UserMessage(msg.Content))
		}
	}
	if len(params) == 0 {
		params = append(params, openaisdk.UserMessage(""))
	}
	return params, nil
}

func assistantParam(msg message.Message) (openaisdk.ChatCompletionMessageParamUnion, error) {
	asst := openaisdk.ChatCompletionAssistantMessageParam{}
	if msg.Content != "" || len(msg.ToolCalls) == 0 {
		asst.Content.OfString = openaisdk.String(msg.Content)
	}
	for idx, call := range msg.ToolCalls {
		name := strings.TrimSpace(call.Name)
		if name == "" {
			return openaisdk.ChatCompletionMessageParamUnion{}, fmt.Errorf("tool_calls[%d]: missing name", idx)
		}
		asst.ToolCalls = append(asst.ToolCalls, openaisdk.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openaisdk.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openaisdk.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      name,
					Arguments: encodeArguments(call.Arguments),
				},
			},
		})
	}
	return openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &asst}, nil
}

func toOpenAITools(tools []map[string]any) ([]openaisdk.ChatCompletionToolUnionParam, error) {
	out := make([]openaisdk.ChatCompletionToolUnionParam, 0, len(tools))
	for idx, entry := range tools {
		fn, ok := entry["function"].(map[string]any)
		if !ok || len(fn) == 0 {
			return nil, fmt.Errorf("tools[%d]: missing function definition", idx)
		}
		name, _ := fn["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("tools[%d]: missing function name", idx)
		}
		def := openaisdk.FunctionDefinitionParam{Name: name}
		if desc, _ := fn["description"].(string); strings.TrimSpace(desc) != "" {
			def.Description = openaisdk.String(desc)
		}
		if rawParams, ok := fn["parameters"].(map[string]any); ok && len(rawParams) > 0 {
			def.Parameters = openaisdk.FunctionParameters(rawParams)
		}
		out = append(out, openaisdk.ChatCompletionToolUnionParam{
			OfFunction: &openaisdk.ChatCompletionFunctionToolParam{Function: def},
		})
	}
	return out, nil
}

func fromOpenAIMessage(msg openaisdk.ChatCompletionMessage) (message.Message, error) {
	role := strings.TrimSpace(string(msg.Role))
	if role == "" {
		role = message.RoleAssistant
	}
	content := msg.Content
	if content == "" && strings.TrimSpace(msg.Refusal) != "" {
		content = msg.Refusal
	}
	out := message.Message{Role: role, Content: content}
	for idx, call := range msg.ToolCalls {
		fn := call.Function
		if strings.TrimSpace(fn.Name) == "" {
			return message.Message{}, fmt.Errorf("tool_calls[%d]: missing name", idx)
		}
		args, err := decodeArguments(fn.Arguments)
		if err != nil {
			return message.Message{}, fmt.Errorf("tool_calls[%d]: %w", idx, err)
		}
		out.ToolCalls = append(out.ToolCalls, message.ToolCall{
			ID:        call.ID,
			Name:      fn.Name,
			Arguments: args,
		})
	}
	return out, nil
}

func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return args, nil
}

func firstToolCallID(calls []message.ToolCall) string {
	for _, call := range calls {
		if id := strings.TrimSpace(call.ID); id != "" {
			return id
		}
	}
	return ""
}
