package run

import (
	"context"
	"errors"
	"strings"

	"github.com/cexll/genrun-go/pkg/hook"
	"github.com/cexll/genrun-go/pkg/model"
	"github.com/cexll/genrun-go/pkg/prompt"
	"github.com/cexll/genrun-go/pkg/schema"
	"github.com/cexll/genrun-go/pkg/tool"
)

const (
	// DefaultRetries is the schema-validation retry budget: three retries,
	// four attempts total.
	DefaultRetries = 3

	// DefaultMaxSteps bounds the tool-call loop within one attempt.
	DefaultMaxSteps = 25
)

// Options configures one run.
type Options struct {
	// Model is the resolved provider handle. Required.
	Model model.Model

	// SystemPrompts are joined and sent as the system turn, ahead of
	// anything the hook pipeline produces.
	SystemPrompts []string

	// ResponseSchema, when set, gates the final answer: non-conforming
	// output triggers the validation-retry loop.
	ResponseSchema *schema.Response

	// Retries is the validation retry budget. Zero means DefaultRetries;
	// use a negative value for no retries.
	Retries int

	// MaxSteps bounds tool-call steps per attempt. Zero means
	// DefaultMaxSteps.
	MaxSteps int

	// Label names the run for the embedding application and for trace
	// persistence. The engine never interprets it.
	Label string

	// Controller, when set, is consulted between steps for pause and
	// message injection.
	Controller *Controller

	// Notify is a fire-and-forget UI refresh callback.
	Notify func()
}

// Setup hands the caller the construction surface of a run: the prompt
// builder, the tool registry, the hook pipeline, and the live state. The
// build function populates these and returns the turn text.
type Setup struct {
	Prompt *prompt.Builder
	Tools  *tool.Registry
	Hooks  *hook.Pipeline
	State  *ExecutionState
}

// BuildFunc assembles a run. It registers tools and hooks, seeds the prompt
// builder, and returns the text of the turn that starts the conversation.
type BuildFunc func(s *Setup) (string, error)

// Result carries a finished run's output. Value is set only when a response
// schema was declared; Text always holds the final raw text.
type Result struct {
	Text  string
	Value any
	State *ExecutionState
}

// Run executes one orchestration run to completion.
func Run(ctx context.Context, opts Options, build BuildFunc) (*Result, error) {
	if opts.Model == nil {
		return nil, errors.New("run: model is required")
	}
	if build == nil {
		return nil, errors.New("run: build function is required")
	}
	retries := opts.Retries
	switch {
	case retries == 0:
		retries = DefaultRetries
	case retries < 0:
		retries = 0
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	setup := &Setup{
		Prompt: prompt.NewBuilder(),
		Tools:  tool.NewRegistry(),
		Hooks:  hook.NewPipeline(),
		State:  NewExecutionState(opts.Label, opts.Notify),
	}
	turn, err := build(setup)
	if err != nil {
		return nil, err
	}

	eng := &engine{
		model:      opts.Model,
		system:     strings.Join(opts.SystemPrompts, "\n\n"),
		schema:     opts.ResponseSchema,
		retries:    retries,
		maxSteps:   maxSteps,
		controller: opts.Controller,
	}
	return eng.execute(ctx, setup, turn)
}
