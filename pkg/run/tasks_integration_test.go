package run

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexll/genrun-go/pkg/message"
	"github.com/cexll/genrun-go/pkg/tasks"
)

func finishCall(result string) message.Message {
	return message.Message{Role: message.RoleAssistant, ToolCalls: []message.ToolCall{
		{ID: "call-" + result[:1], Name: "finishTask", Arguments: map[string]any{"result": result}},
	}}
}

func TestRunTaskListReplacesHistoryEachStep(t *testing.T) {
	m := &scriptedModel{responses: []message.Message{
		finishCall("Fortran, Lisp, C"),
		finishCall("Lisp appeared in 1958."),
		message.Assistant("All tasks handled."),
	}}

	list, err := tasks.NewList([]tasks.Task{
		{Prompt: "Name three old languages."},
		{
			Prompt: "Give a release year for one of them.",
			Validate: func(result string) string {
				if !strings.ContainsAny(result, "0123456789") {
					return "include a year"
				}
				return ""
			},
		},
	})
	require.NoError(t, err)

	res, err := Run(context.Background(), Options{Model: m}, func(s *Setup) (string, error) {
		require.NoError(t, list.Attach(s.Tools, s.Hooks))
		return "Work through the tasks.", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "All tasks handled.", res.Text)
	assert.True(t, list.Done())
	require.Len(t, list.Completed(), 2)

	// First call: task 1 view plus the turn text.
	first := m.call(0)
	assert.True(t, containsContent(first, "[Task 1/2]"))
	assert.True(t, containsContent(first, "Work through the tasks."))

	// Second call: the hook rebuilt the view for task 2 and discarded the
	// turn text and the tool trace of task 1.
	second := m.call(1)
	assert.True(t, containsContent(second, "[Task 2/2]"))
	assert.False(t, containsContent(second, "Work through the tasks."))
	for _, msg := range second {
		assert.NotEqual(t, message.RoleTool, msg.Role)
	}
	assert.True(t, containsContent(second, "Fortran, Lisp, C"), "completed summary carries task 1's result")
}

func TestRunTaskListRejectionShowsFeedback(t *testing.T) {
	m := &scriptedModel{responses: []message.Message{
		finishCall("no numbers here"),
		finishCall("1958"),
		message.Assistant("done"),
	}}

	list, err := tasks.NewList([]tasks.Task{
		{
			Prompt: "Give a year.",
			Validate: func(result string) string {
				if !strings.ContainsAny(result, "0123456789") {
					return "include a year"
				}
				return ""
			},
		},
	})
	require.NoError(t, err)

	_, err = Run(context.Background(), Options{Model: m}, func(s *Setup) (string, error) {
		require.NoError(t, list.Attach(s.Tools, s.Hooks))
		return "Go.", nil
	})
	require.NoError(t, err)

	// After the rejection the rebuilt view repeats the feedback.
	second := m.call(1)
	assert.True(t, containsContent(second, "include a year"))
	assert.True(t, list.Done())
}

func containsContent(msgs []message.Message, substr string) bool {
	for _, msg := range msgs {
		if strings.Contains(msg.Content, substr) {
			return true
		}
	}
	return false
}
