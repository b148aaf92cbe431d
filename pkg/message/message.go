package message

import "strings"

// Conversation roles understood by the orchestration core. The tool role only
// appears on the provider wire when a tool result is echoed back to the model.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in an ordered conversation. Order is meaningful,
// oldest first.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall records a model-issued tool invocation attached to a message.
type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant builds an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// NormalizeRole lowercases and trims a role, defaulting unknown values to user.
func NormalizeRole(role string) string {
	switch r := strings.ToLower(strings.TrimSpace(role)); r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return r
	default:
		return RoleUser
	}
}

// Clone returns a deep copy of the message so hook output never aliases
// engine-owned state.
func (m Message) Clone() Message {
	out := m
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, call := range m.ToolCalls {
			out.ToolCalls[i] = call.Clone()
		}
	}
	return out
}

// Clone deep-copies the tool call arguments.
func (c ToolCall) Clone() ToolCall {
	out := c
	if len(c.Arguments) > 0 {
		out.Arguments = make(map[string]any, len(c.Arguments))
		for k, v := range c.Arguments {
			out.Arguments[k] = v
		}
	}
	return out
}

// CloneAll deep-copies a message slice.
func CloneAll(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, msg := range msgs {
		out[i] = msg.Clone()
	}
	return out
}

// Equal reports whether two sequences carry identical roles and content.
// Tool calls participate via name and id only; argument maps are compared
// by the caller when it matters.
func Equal(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Role != b[i].Role || a[i].Content != b[i].Content {
			return false
		}
		if len(a[i].ToolCalls) != len(b[i].ToolCalls) {
			return false
		}
		for j := range a[i].ToolCalls {
			if a[i].ToolCalls[j].ID != b[i].ToolCalls[j].ID || a[i].ToolCalls[j].Name != b[i].ToolCalls[j].Name {
				return false
			}
		}
	}
	return true
}
