package openai

import (
	"testing"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexll/genrun-go/pkg/message"
)

func TestToOpenAIMessagesRoles(t *testing.T) {
	params, err := toOpenAIMessages([]message.Message{
		message.System("rules"),
		message.User("question"),
		message.Assistant("answer"),
		{Role: message.RoleTool, Content: "result", ToolCalls: []message.ToolCall{{ID: "call-1", Name: "echo"}}},
	})
	require.NoError(t, err)
	require.Len(t, params, 4)
	assert.NotNil(t, params[0].OfSystem)
	assert.NotNil(t, params[1].OfUser)
	assert.NotNil(t, params[2].OfAssistant)
	assert.NotNil(t, params[3].OfTool)
}

func TestToolMessageRequiresCallID(t *testing.T) {
	_, err := toOpenAIMessages([]message.Message{
		{Role: message.RoleTool, Content: "orphan result"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool_call_id")
}

func TestAssistantToolCallsEncodeArguments(t *testing.T) {
	params, err := toOpenAIMessages([]message.Message{{
		Role: message.RoleAssistant,
		ToolCalls: []message.ToolCall{{
			ID:        "call-1",
			Name:      "createTask",
			Arguments: map[string]any{"description": "A"},
		}},
	}})
	require.NoError(t, err)
	asst := params[0].OfAssistant
	require.NotNil(t, asst)
	require.Len(t, asst.ToolCalls, 1)
	fn := asst.ToolCalls[0].OfFunction
	require.NotNil(t, fn)
	assert.Equal(t, "createTask", fn.Function.Name)
	assert.JSONEq(t, `{"description":"A"}`, fn.Function.Arguments)
}

func TestToOpenAIToolsRejectsMissingName(t *testing.T) {
	_, err := toOpenAITools([]map[string]any{{
		"type":     "function",
		"function": map[string]any{"description": "nameless"},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing function name")
}

func TestUsageFrom(t *testing.T) {
	u := usageFrom(openaisdk.CompletionUsage{PromptTokens: 7, CompletionTokens: 9, TotalTokens: 16})
	assert.Equal(t, 7, u.InputTokens)
	assert.Equal(t, 9, u.OutputTokens)
	assert.Equal(t, 16, u.TotalTokens)
}

func TestDecodeArguments(t *testing.T) {
	args, err := decodeArguments(`{"id":"task-1"}`)
	require.NoError(t, err)
	assert.Equal(t, "task-1", args["id"])

	args, err = decodeArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = decodeArguments("{broken")
	assert.Error(t, err)
}
