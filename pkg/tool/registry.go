package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// CallRecord tracks one tool invocation. The record is appended to the
// recorder before the executor runs, so observers see it in a pending state,
// and the same record is mutated in place on completion.
type CallRecord struct {
	Tool   string
	Args   map[string]any
	Result any
	Err    string
	Done   bool
}

// Recorder receives call records as they are created. The run's execution
// state implements this.
type Recorder interface {
	RecordToolCall(rec *CallRecord)
}

// ValidationError reports tool arguments that violate the declared schema.
type ValidationError struct {
	Tool   string
	Fields []string
	cause  error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("tool %s: invalid arguments for fields [%s]: %v", e.Tool, strings.Join(e.Fields, ", "), e.cause)
	}
	return fmt.Sprintf("tool %s: invalid arguments: %v", e.Tool, e.cause)
}

func (e *ValidationError) Unwrap() error { return e.cause }

type entry struct {
	tool     Tool
	resolved *jsonschema.Resolved
}

// Registry stores tool definitions for one run. Definitions are immutable
// once registered.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Register adds a tool. Name collisions within the same run fail.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return errors.New("tool: tool is nil")
	}
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return errors.New("tool: tool name is empty")
	}

	var resolved *jsonschema.Resolved
	if schema := t.Schema(); schema != nil {
		var err error
		resolved, err = schema.Resolve(nil)
		if err != nil {
			return fmt.Errorf("tool: resolve schema for %s: %w", name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("tool: %s already registered", name)
	}
	r.entries[name] = entry{tool: t, resolved: resolved}
	r.order = append(r.order, name)
	return nil
}

// RegisterFunc is shorthand for registering a closure-backed tool.
func (r *Registry) RegisterFunc(name, desc string, schema *jsonschema.Schema, fn func(ctx context.Context, args map[string]any) (any, error)) error {
	return r.Register(&Func{ToolName: name, ToolDesc: desc, ToolSchema: schema, Fn: fn})
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// Definitions returns the provider-facing tool definitions, sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		defs = append(defs, Definition{
			Name:        name,
			Description: strings.TrimSpace(e.tool.Description()),
			Parameters:  SchemaToMap(e.tool.Schema()),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute validates args against the tool's schema, records the call before
// invocation, and mutates the same record on completion. Executor errors are
// recorded and re-raised so the provider protocol can surface them to the
// model as a tool failure.
func (r *Registry) Execute(ctx context.Context, recorder Recorder, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool: %s not registered", name)
	}

	if err := validateArgs(e, name, args); err != nil {
		return nil, err
	}

	rec := &CallRecord{Tool: name, Args: args}
	if recorder != nil {
		recorder.RecordToolCall(rec)
	}

	result, err := e.tool.Execute(ctx, args)
	rec.Done = true
	if err != nil {
		rec.Err = err.Error()
		return nil, err
	}
	rec.Result = result
	return result, nil
}

func validateArgs(e entry, name string, args map[string]any) error {
	if e.resolved == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := e.resolved.Validate(args); err != nil {
		return &ValidationError{Tool: name, Fields: violatedFields(e.tool.Schema(), args), cause: err}
	}
	return nil
}

// violatedFields names missing required properties; deeper violations are
// only described by the wrapped cause.
func violatedFields(schema *jsonschema.Schema, args map[string]any) []string {
	if schema == nil {
		return nil
	}
	var fields []string
	for _, req := range schema.Required {
		if _, ok := args[req]; !ok {
			fields = append(fields, req)
		}
	}
	sort.Strings(fields)
	return fields
}
