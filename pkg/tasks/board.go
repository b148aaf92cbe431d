package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/cexll/genrun-go/pkg/hook"
	"github.com/cexll/genrun-go/pkg/message"
	"github.com/cexll/genrun-go/pkg/tool"
)

// Dynamic task statuses. Transitions only move forward:
// pending -> in_progress -> completed.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

const boardInstructions = "You manage your own task list. Break the work into tasks with createTask, " +
	"mark a task with startTask before working on it, and record the outcome with completeTask. " +
	"Use updateTask and deleteTask to reshape pending tasks, and getTaskList to review progress. " +
	"You cannot finish until every task is completed."

// DynamicTask is one agent-created unit of work.
type DynamicTask struct {
	ID          string
	Description string
	Status      string
	Result      string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Board is the agent-directed task state machine. Tasks are keyed by id with
// a separate insertion-order list for display; ids are monotonic and never
// reused, even after deletion.
type Board struct {
	mu      sync.Mutex
	tasks   map[string]*DynamicTask
	order   []string
	nextID  int
	started bool
	now     func() time.Time
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{tasks: map[string]*DynamicTask{}, nextID: 1, now: time.Now}
}

// Started reports whether at least one task was ever created. The hook only
// begins replacing history once this is true.
func (b *Board) Started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// Counts returns the pending, in-progress, and completed tallies.
func (b *Board) Counts() (pending, inProgress, completed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.countsLocked()
}

func (b *Board) countsLocked() (pending, inProgress, completed int) {
	for _, task := range b.tasks {
		switch task.Status {
		case StatusPending:
			pending++
		case StatusInProgress:
			inProgress++
		case StatusCompleted:
			completed++
		}
	}
	return
}

// AllCompleted reports whether the board is non-empty and every task is done.
func (b *Board) AllCompleted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.order) == 0 {
		return false
	}
	pending, inProgress, _ := b.countsLocked()
	return pending == 0 && inProgress == 0
}

// Tasks returns copies of all tasks in insertion order.
func (b *Board) Tasks() []DynamicTask {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DynamicTask, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.tasks[id])
	}
	return out
}

// Get returns a copy of one task.
func (b *Board) Get(id string) (DynamicTask, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	task, ok := b.tasks[id]
	if !ok {
		return DynamicTask{}, false
	}
	return *task, true
}

func (b *Board) create(description string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := fmt.Sprintf("task-%d", b.nextID)
	b.nextID++
	b.tasks[id] = &DynamicTask{
		ID:          id,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   b.now(),
	}
	b.order = append(b.order, id)
	b.started = true
	return fmt.Sprintf("Created %s: %s", id, description)
}

func (b *Board) update(id, description string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	task, ok := b.tasks[id]
	if !ok {
		return fmt.Sprintf("Error: task %s not found", id)
	}
	switch task.Status {
	case StatusCompleted:
		return fmt.Sprintf("Error: %s is completed and can no longer be updated", id)
	case StatusInProgress:
		return fmt.Sprintf("Error: %s is in progress and cannot be updated", id)
	}
	task.Description = description
	return fmt.Sprintf("Updated %s: %s", id, description)
}

func (b *Board) start(id string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	task, ok := b.tasks[id]
	if !ok {
		return fmt.Sprintf("Error: task %s not found", id)
	}
	switch task.Status {
	case StatusCompleted:
		return fmt.Sprintf("Error: %s is already completed", id)
	case StatusInProgress:
		return fmt.Sprintf("Note: %s is already in progress", id)
	}
	task.Status = StatusInProgress
	return fmt.Sprintf("Started %s: %s", id, task.Description)
}

func (b *Board) complete(id, result string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	task, ok := b.tasks[id]
	if !ok {
		return fmt.Sprintf("Error: task %s not found", id)
	}
	if task.Status == StatusCompleted {
		return fmt.Sprintf("Error: %s is already completed", id)
	}
	// Completing directly from pending is allowed; startTask is encouraged
	// by the instructions but not enforced.
	task.Status = StatusCompleted
	task.Result = result
	task.CompletedAt = b.now()

	_, _, completed := b.countsLocked()
	if completed == len(b.order) {
		return fmt.Sprintf("Completed %s. All %d tasks are complete.", id, len(b.order))
	}
	return fmt.Sprintf("Completed %s. %d of %d tasks complete.", id, completed, len(b.order))
}

func (b *Board) delete(id string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	task, ok := b.tasks[id]
	if !ok {
		return fmt.Sprintf("Error: task %s not found", id)
	}
	switch task.Status {
	case StatusCompleted:
		return fmt.Sprintf("Error: %s is completed and cannot be deleted", id)
	case StatusInProgress:
		return fmt.Sprintf("Error: %s is in progress and cannot be deleted", id)
	}
	delete(b.tasks, id)
	for i, ordered := range b.order {
		if ordered == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return fmt.Sprintf("Deleted %s", id)
}

func (b *Board) report() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.order) == 0 {
		return "No tasks have been created yet."
	}

	_, _, completed := b.countsLocked()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task list (%d/%d completed)\n", completed, len(b.order))

	writeSection := func(header, prefix, status string, withResult bool) {
		var lines []string
		for _, id := range b.order {
			task := b.tasks[id]
			if task.Status != status {
				continue
			}
			line := fmt.Sprintf("%s %s: %s", prefix, task.ID, task.Description)
			if withResult && strings.TrimSpace(task.Result) != "" {
				line += fmt.Sprintf(" (result: %s)", task.Result)
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			return
		}
		sb.WriteByte('\n')
		sb.WriteString(header)
		sb.WriteByte('\n')
		sb.WriteString(strings.Join(lines, "\n"))
		sb.WriteByte('\n')
	}

	writeSection("Completed:", "✓", StatusCompleted, true)
	writeSection("In Progress:", "→", StatusInProgress, false)
	writeSection("Pending:", "•", StatusPending, false)

	return strings.TrimRight(sb.String(), "\n")
}

// current picks the task presented to the model: the single in-progress task
// if one exists, otherwise the first pending task in insertion order.
func (b *Board) currentLocked() *DynamicTask {
	for _, id := range b.order {
		if b.tasks[id].Status == StatusInProgress {
			return b.tasks[id]
		}
	}
	for _, id := range b.order {
		if b.tasks[id].Status == StatusPending {
			return b.tasks[id]
		}
	}
	return nil
}

// Hook returns the completion-gating history hook. It stays inert until the
// first task is created, then fully replaces the conversation on every
// application: as long as any task is incomplete the outstanding work is
// re-presented instead of letting the model move on.
func (b *Board) Hook() hook.Hook {
	return func(_ []message.Message) []message.Message {
		return b.Snapshot()
	}
}

// Snapshot rebuilds the visible conversation from board state. Returns nil
// (the pipeline's no-change sentinel) while the board is unstarted.
func (b *Board) Snapshot() []message.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}

	msgs := []message.Message{message.System(boardInstructions)}

	var completedLines []string
	for _, id := range b.order {
		task := b.tasks[id]
		if task.Status != StatusCompleted {
			continue
		}
		line := fmt.Sprintf("✓ %s: %s", task.ID, task.Description)
		if strings.TrimSpace(task.Result) != "" {
			line += fmt.Sprintf("\n  Result: %s", task.Result)
		}
		completedLines = append(completedLines, line)
	}
	if len(completedLines) > 0 {
		msgs = append(msgs, message.System("Completed tasks:\n"+strings.Join(completedLines, "\n")))
	}

	current := b.currentLocked()

	var upcomingLines []string
	for _, id := range b.order {
		task := b.tasks[id]
		if task.Status == StatusCompleted {
			continue
		}
		if current != nil && task.ID == current.ID {
			continue
		}
		upcomingLines = append(upcomingLines, fmt.Sprintf("- %s: %s", task.ID, task.Description))
	}
	if len(upcomingLines) > 0 {
		msgs = append(msgs, message.System("Upcoming tasks:\n"+strings.Join(upcomingLines, "\n")))
	}

	if current == nil {
		msgs = append(msgs, message.User("All tasks are complete. Provide a final summary of the work and its results."))
		return msgs
	}

	if current.Status == StatusInProgress {
		msgs = append(msgs, message.System(fmt.Sprintf("Reminder: %s is already in progress. Finish it and record the outcome with completeTask.", current.ID)))
	}
	msgs = append(msgs, message.User(fmt.Sprintf("Current task (%s): %s", current.ID, current.Description)))
	return msgs
}

// Tools returns the six board tools. Every result is model-facing text;
// operating on an unknown or finished task is an expected agent mistake, not
// an execution failure.
func (b *Board) Tools() []tool.Tool {
	idProp := tool.StringProperty("Task id, e.g. task-1")
	return []tool.Tool{
		&tool.Func{
			ToolName: "createTask",
			ToolDesc: "Create a new task with the given description. Returns the allocated task id.",
			ToolSchema: tool.ObjectSchema(map[string]*jsonschema.Schema{
				"description": tool.StringProperty("What the task should accomplish"),
			}, "description"),
			Fn: func(_ context.Context, args map[string]any) (any, error) {
				desc, _ := args["description"].(string)
				return b.create(desc), nil
			},
		},
		&tool.Func{
			ToolName: "updateTask",
			ToolDesc: "Replace the description of a pending task.",
			ToolSchema: tool.ObjectSchema(map[string]*jsonschema.Schema{
				"id":          idProp,
				"description": tool.StringProperty("The new description"),
			}, "id", "description"),
			Fn: func(_ context.Context, args map[string]any) (any, error) {
				id, _ := args["id"].(string)
				desc, _ := args["description"].(string)
				return b.update(id, desc), nil
			},
		},
		&tool.Func{
			ToolName: "startTask",
			ToolDesc: "Mark a task as in progress before working on it.",
			ToolSchema: tool.ObjectSchema(map[string]*jsonschema.Schema{
				"id": idProp,
			}, "id"),
			Fn: func(_ context.Context, args map[string]any) (any, error) {
				id, _ := args["id"].(string)
				return b.start(id), nil
			},
		},
		&tool.Func{
			ToolName: "completeTask",
			ToolDesc: "Mark a task as completed, recording its result.",
			ToolSchema: tool.ObjectSchema(map[string]*jsonschema.Schema{
				"id":     idProp,
				"result": tool.StringProperty("The outcome of the task"),
			}, "id", "result"),
			Fn: func(_ context.Context, args map[string]any) (any, error) {
				id, _ := args["id"].(string)
				result, _ := args["result"].(string)
				return b.complete(id, result), nil
			},
		},
		&tool.Func{
			ToolName: "deleteTask",
			ToolDesc: "Delete a pending task that is no longer needed.",
			ToolSchema: tool.ObjectSchema(map[string]*jsonschema.Schema{
				"id": idProp,
			}, "id"),
			Fn: func(_ context.Context, args map[string]any) (any, error) {
				id, _ := args["id"].(string)
				return b.delete(id), nil
			},
		},
		&tool.Func{
			ToolName:   "getTaskList",
			ToolDesc:   "Show the current task list grouped by status.",
			ToolSchema: tool.ObjectSchema(nil),
			Fn: func(_ context.Context, _ map[string]any) (any, error) {
				return b.report(), nil
			},
		},
	}
}

// Attach registers the six tools and the gating hook on a run.
func (b *Board) Attach(reg *tool.Registry, pipe *hook.Pipeline) error {
	for _, t := range b.Tools() {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	pipe.Register(b.Hook())
	return nil
}
