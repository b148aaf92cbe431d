package run

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cexll/genrun-go/pkg/message"
	"github.com/cexll/genrun-go/pkg/model"
	"github.com/cexll/genrun-go/pkg/schema"
	"github.com/cexll/genrun-go/pkg/telemetry"
)

type engine struct {
	model      model.Model
	system     string
	schema     *schema.Response
	retries    int
	maxSteps   int
	controller *Controller
}

// execute runs the attempt loop. Every attempt rebuilds its base from the
// prompt builder through the hook pipeline, so hooks that replace history
// (task machines) stay authoritative and former failed output never leaks
// into a retry except as the explicit feedback tail.
func (e *engine) execute(ctx context.Context, setup *Setup, turn string) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "run.execute",
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("run.id", setup.State.ID()),
			attribute.String("run.label", setup.State.Label()),
		)...))
	result, err := e.attempts(ctx, setup, turn)
	telemetry.EndSpan(span, err)
	return result, err
}

func (e *engine) attempts(ctx context.Context, setup *Setup, turn string) (*Result, error) {
	tools := wireDefinitions(setup)

	var lastErr error
	var lastRaw string
	total := e.retries + 1
	for attempt := 1; attempt <= total; attempt++ {
		tail := []message.Message{message.User(turn)}
		if attempt > 1 {
			tail = append(tail,
				message.Assistant(lastRaw),
				message.User(schema.Feedback(lastErr)),
			)
		}

		final, err := e.converse(ctx, setup, tail, tools)
		if err != nil {
			return nil, err
		}
		if e.schema == nil {
			return &Result{Text: final, State: setup.State}, nil
		}

		value, derr := e.schema.Decode(final)
		if derr == nil {
			return &Result{Text: final, Value: value, State: setup.State}, nil
		}
		setup.State.RecordAttempt(ValidationAttempt{
			Attempt:     attempt,
			RawResponse: final,
			ErrorText:   derr.Error(),
		})
		lastErr, lastRaw = derr, final
	}
	return nil, &RetryExhaustedError{Attempts: total, LastErr: lastErr}
}

// converse drives one attempt: model steps interleaved with tool execution
// until the model answers without tool calls or the step budget runs out.
// The first call sees the hook-applied prompt base plus the turn tail; every
// later call reapplies the pipeline to the accumulated conversation, so a
// history-replacing hook rebuilds the visible context each step and tool
// traces are intentionally discarded from it.
func (e *engine) converse(ctx context.Context, setup *Setup, tail []message.Message, tools []map[string]any) (string, error) {
	conversation := append(setup.Hooks.Apply(setup.Prompt.Messages()), tail...)

	var final message.Message
	for step := 0; step < e.maxSteps; step++ {
		var err error
		if conversation, err = e.checkpoint(ctx, setup, conversation); err != nil {
			return "", err
		}
		if step > 0 {
			conversation = setup.Hooks.Apply(conversation)
		}

		final, err = e.step(ctx, setup, e.withSystem(conversation), tools)
		if err != nil {
			return "", err
		}
		conversation = append(conversation, final)
		setup.State.ObserveConversation(conversation)

		if len(final.ToolCalls) == 0 {
			return final.Content, nil
		}
		for _, call := range final.ToolCalls {
			conversation = append(conversation, e.runTool(ctx, setup, call))
		}
		setup.State.ObserveConversation(conversation)
	}
	// Step budget spent: the last assistant text stands as the answer.
	return final.Content, nil
}

func (e *engine) withSystem(conversation []message.Message) []message.Message {
	if e.system == "" {
		return conversation
	}
	out := make([]message.Message, 0, len(conversation)+1)
	out = append(out, message.System(e.system))
	return append(out, conversation...)
}

// checkpoint honors pause and picks up injected messages. Consulted between
// steps only; a live provider call is never interrupted.
func (e *engine) checkpoint(ctx context.Context, setup *Setup, conversation []message.Message) ([]message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.controller == nil {
		return conversation, nil
	}
	if err := e.controller.wait(ctx); err != nil {
		return nil, err
	}
	if injected := e.controller.drain(); len(injected) > 0 {
		conversation = append(conversation, injected...)
		setup.State.ObserveConversation(conversation)
	}
	return conversation, nil
}

// step issues one model call, preferring streaming so the state buffer shows
// partial output while the call is live.
func (e *engine) step(ctx context.Context, setup *Setup, conversation []message.Message, tools []map[string]any) (message.Message, error) {
	setup.State.ResetStream()

	var final message.Message
	cb := func(res model.StreamResult) error {
		if res.Final {
			final = res.Message
			setup.State.AddUsage(res.Usage)
			return nil
		}
		setup.State.AppendStream(res.Message.Content)
		return nil
	}

	switch m := e.model.(type) {
	case model.StreamerWithTools:
		if err := m.GenerateStreamWithTools(ctx, conversation, tools, cb); err != nil {
			return message.Message{}, err
		}
		return final, nil
	case model.ModelWithTools:
		if len(tools) > 0 {
			return m.GenerateWithTools(ctx, conversation, tools)
		}
	}
	if len(tools) > 0 {
		return message.Message{}, fmt.Errorf("run: model %T does not support tool calling", e.model)
	}
	if err := e.model.GenerateStream(ctx, conversation, cb); err != nil {
		return message.Message{}, err
	}
	return final, nil
}

// runTool resolves one requested call. Failures never abort the run: they
// come back to the model as an error payload on the tool turn.
func (e *engine) runTool(ctx context.Context, setup *Setup, call message.ToolCall) message.Message {
	result, err := setup.Tools.Execute(ctx, setup.State, call.Name, call.Arguments)
	content := ""
	if err != nil {
		content = errorPayload(err)
	} else {
		content = stringify(result)
	}
	return message.Message{
		Role:      message.RoleTool,
		Content:   content,
		ToolCalls: []message.ToolCall{{ID: call.ID, Name: call.Name}},
	}
}

func wireDefinitions(setup *Setup) []map[string]any {
	defs := setup.Tools.Definitions()
	if len(defs) == 0 {
		return nil
	}
	wired := make([]map[string]any, 0, len(defs))
	for _, def := range defs {
		wired = append(wired, def.Wire())
	}
	return wired
}

func errorPayload(err error) string {
	data, merr := json.Marshal(map[string]string{"error": err.Error()})
	if merr != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
