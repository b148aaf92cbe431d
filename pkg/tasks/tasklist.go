// Package tasks implements the two task-tracking state machines that drive
// the hook pipeline: a fixed pre-validated sequential list and an
// agent-directed dynamic board.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/cexll/genrun-go/pkg/hook"
	"github.com/cexll/genrun-go/pkg/message"
	"github.com/cexll/genrun-go/pkg/tool"
)

const listInstructions = "You are working through a fixed list of tasks, one at a time. " +
	"Complete the current task, then submit your result with the finishTask tool. " +
	"If the result is rejected you will receive feedback; revise and submit again. " +
	"Do not skip ahead to later tasks."

// Task is one entry in a static list. Validate inspects a submitted result
// and returns feedback text when the result is rejected, or empty to accept.
// A nil Validate accepts everything.
type Task struct {
	Prompt   string
	Validate func(result string) string
}

// CompletedTask pairs a task with its accepted result.
type CompletedTask struct {
	Task   Task
	Result string
}

// List is the sequential task state machine. The cursor only moves forward;
// terminal state is cursor == len(tasks).
type List struct {
	mu              sync.Mutex
	tasks           []Task
	cursor          int
	completed       []CompletedTask
	pendingFeedback string
}

// NewList builds a list over a fixed task array. An empty array is a
// configuration error raised immediately, not deferred to execution.
func NewList(tasks []Task) (*List, error) {
	if len(tasks) == 0 {
		return nil, errors.New("tasks: task list is empty")
	}
	return &List{tasks: append([]Task(nil), tasks...)}, nil
}

// CurrentIndex returns the forward-only cursor.
func (l *List) CurrentIndex() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// Completed returns the accepted tasks in completion order.
func (l *List) Completed() []CompletedTask {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]CompletedTask(nil), l.completed...)
}

// PendingFeedback returns the feedback from the last rejected submission.
func (l *List) PendingFeedback() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pendingFeedback
}

// Done reports whether every task has been accepted.
func (l *List) Done() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor == len(l.tasks)
}

// Tool returns the finishTask tool. The result is always model-facing text;
// a rejected submission is a failure-style message, never a run failure.
func (l *List) Tool() tool.Tool {
	return &tool.Func{
		ToolName: "finishTask",
		ToolDesc: "Submit the result for the current task. The result is validated; on rejection you receive feedback and must retry the same task.",
		ToolSchema: tool.ObjectSchema(map[string]*jsonschema.Schema{
			"result": tool.StringProperty("The result of the current task"),
		}, "result"),
		Fn: func(_ context.Context, args map[string]any) (any, error) {
			result, _ := args["result"].(string)
			return l.finish(result), nil
		},
	}
}

func (l *List) finish(result string) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor == len(l.tasks) {
		return "All tasks are already complete."
	}

	current := l.tasks[l.cursor]
	if current.Validate != nil {
		if feedback := current.Validate(result); feedback != "" {
			l.pendingFeedback = feedback
			return fmt.Sprintf("Result rejected: %s\nRevise your result and call finishTask again.", feedback)
		}
	}

	l.completed = append(l.completed, CompletedTask{Task: current, Result: result})
	l.pendingFeedback = ""
	l.cursor++

	if l.cursor == len(l.tasks) {
		return "Task accepted. All tasks are now complete."
	}
	return fmt.Sprintf("Task accepted. Next task: %s", l.tasks[l.cursor].Prompt)
}

// Hook returns the history-replacing hook. Prior raw turns are intentionally
// discarded each application to keep context bounded and focused.
func (l *List) Hook() hook.Hook {
	return func(_ []message.Message) []message.Message {
		return l.Snapshot()
	}
}

// Snapshot rebuilds the visible conversation from internal state.
func (l *List) Snapshot() []message.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	msgs := []message.Message{message.System(listInstructions)}

	if len(l.completed) > 0 {
		lines := make([]string, 0, len(l.completed))
		for i, done := range l.completed {
			lines = append(lines, fmt.Sprintf("Task %d: %s\nResult: %s", i+1, done.Task.Prompt, done.Result))
		}
		msgs = append(msgs, message.System("Completed tasks:\n"+strings.Join(lines, "\n")))
	}

	if l.cursor+1 < len(l.tasks) {
		var sb strings.Builder
		sb.WriteString("Upcoming tasks:\n")
		for _, task := range l.tasks[l.cursor+1:] {
			sb.WriteString("- ")
			sb.WriteString(task.Prompt)
			sb.WriteByte('\n')
		}
		msgs = append(msgs, message.System(strings.TrimRight(sb.String(), "\n")))
	}

	if l.cursor < len(l.tasks) {
		msgs = append(msgs, message.User(fmt.Sprintf("[Task %d/%d] %s", l.cursor+1, len(l.tasks), l.tasks[l.cursor].Prompt)))
		if l.pendingFeedback != "" {
			msgs = append(msgs, message.System("Your previous result was rejected: "+l.pendingFeedback))
		}
	}

	return msgs
}

// Attach registers the finishTask tool and the snapshot hook on a run.
func (l *List) Attach(reg *tool.Registry, pipe *hook.Pipeline) error {
	if err := reg.Register(l.Tool()); err != nil {
		return err
	}
	pipe.Register(l.Hook())
	return nil
}
