package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsDeep(t *testing.T) {
	src := Message{
		Role:    RoleAssistant,
		Content: "calling",
		ToolCalls: []ToolCall{{
			ID:        "call-1",
			Name:      "finishTask",
			Arguments: map[string]any{"result": "8"},
		}},
	}
	dup := src.Clone()
	dup.ToolCalls[0].Arguments["result"] = "mutated"
	assert.Equal(t, "8", src.ToolCalls[0].Arguments["result"])
}

func TestHistoryReplaceDoesNotAlias(t *testing.T) {
	h := NewHistory()
	h.Append(User("hello"))

	replacement := []Message{System("rebuilt"), User("task")}
	h.Replace(replacement)
	replacement[0].Content = "mutated"

	got := h.All()
	require.Len(t, got, 2)
	assert.Equal(t, "rebuilt", got[0].Content)
	assert.Equal(t, 2, h.Len())
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, RoleSystem, NormalizeRole(" System "))
	assert.Equal(t, RoleUser, NormalizeRole("unknown"))
	assert.Equal(t, RoleTool, NormalizeRole("tool"))
}

func TestEqual(t *testing.T) {
	a := []Message{System("a"), User("b")}
	b := []Message{System("a"), User("b")}
	assert.True(t, Equal(a, b))
	b[1].Content = "c"
	assert.False(t, Equal(a, b))
	assert.False(t, Equal(a, a[:1]))
}
